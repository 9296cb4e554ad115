package connect

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/alanbriolat/connect-archiver"
	"github.com/alanbriolat/connect-archiver/generic"
	"github.com/alanbriolat/connect-archiver/util"
)

const downloadQuery = "?download=zip"

var accountIDPattern = regexp.MustCompile(`account_id\s*=\s*(\d+)`)

// CandidateList is an ordered, duplicate-free list of archive URLs, most likely first.
type CandidateList []string

// A Shape is one URL layout under which some server generation exposes a recording archive.
type Shape struct {
	Name         string
	NeedsAccount bool
	Path         func(id string, account string) string
}

// Shapes in the order they are tried.
var Shapes = []Shape{
	{Name: "id/id", Path: func(id, _ string) string { return "/" + id + "/output/" + id + ".zip" }},
	{Name: "id/output", Path: func(id, _ string) string { return "/" + id + "/output/output.zip" }},
	{Name: "p-id/id", Path: func(id, _ string) string { return "/p" + id + "/output/" + id + ".zip" }},
	{Name: "p-id/output", Path: func(id, _ string) string { return "/p" + id + "/output/output.zip" }},
	{Name: "content/id", NeedsAccount: true, Path: func(id, account string) string {
		return "/content/" + account + "/" + id + "-1/output/" + id + "-1.zip"
	}},
	{Name: "content/output", NeedsAccount: true, Path: func(id, account string) string {
		return "/content/" + account + "/" + id + "-1/output/output.zip"
	}},
}

// BuildCandidates applies every applicable Shape to origin ("scheme://host"). Shapes needing an account are skipped
// when account is empty.
func BuildCandidates(origin string, id string, account string) CandidateList {
	escapedID := url.PathEscape(id)
	escapedAccount := url.PathEscape(account)
	urls := make([]string, 0, len(Shapes))
	for _, shape := range Shapes {
		if shape.NeedsAccount && account == "" {
			continue
		}
		urls = append(urls, origin+shape.Path(escapedID, escapedAccount)+downloadQuery)
	}
	return generic.Unique(urls)
}

type Locator struct {
	pages   PageFetcher
	timeout time.Duration
}

func NewLocator(pages PageFetcher, timeout time.Duration) *Locator {
	return &Locator{pages: pages, timeout: timeout}
}

// AccountID looks for the account identifier embedded in the recording page. Any failure just means None.
func (l *Locator) AccountID(ctx context.Context, pageURL string) generic.Option[string] {
	body, err := l.pages.GetText(ctx, pageURL, l.timeout)
	if err != nil {
		connect_archiver.Logger(ctx).Debug("account probe failed", zap.Error(err))
		return generic.None[string]()
	}
	if m := accountIDPattern.FindStringSubmatch(body); m != nil {
		return generic.Some(m[1])
	}
	return generic.None[string]()
}

// Locate lists the archive URLs to try for id, all on the same origin as rawURL.
func (l *Locator) Locate(ctx context.Context, rawURL string, id Identifier) (CandidateList, error) {
	u, err := util.ParseHTTPURL(rawURL)
	if err != nil {
		return nil, err
	}
	if id.Value == "" {
		return nil, fmt.Errorf("empty recording identifier")
	}
	account := l.AccountID(ctx, u.String()).UnwrapOr("")
	candidates := BuildCandidates(util.Origin(u), id.Value, account)
	connect_archiver.Logger(ctx).Sugar().Debugw("built archive candidates",
		"count", len(candidates), "account_id", account, "kind", id.Kind)
	return candidates, nil
}
