package connect

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/alanbriolat/connect-archiver"
	"github.com/alanbriolat/connect-archiver/generic"
	"github.com/alanbriolat/connect-archiver/util"
)

var ErrNotFound = errors.New("could not derive a recording identifier")

// Ways the playback page embeds the SCO ID, most specific first.
var serverIDPatterns = []struct {
	name    string
	pattern *regexp.Regexp
}{
	{"json-sco-id", regexp.MustCompile(`(?i)"sco-id"\s*:\s*"(\d+)"`)},
	{"query-sco-id", regexp.MustCompile(`(?i)sco-id=(\d+)`)},
	{"query-recording-id", regexp.MustCompile(`(?i)recording-id=(\d+)`)},
	{"colon-scoid", regexp.MustCompile(`(?i)scoid:(\d+)`)},
}

// The path token is the trailing run of these characters in the last path segment, so "lecture.html" gives "html".
var pathTokenPattern = regexp.MustCompile(`[A-Za-z0-9_-]+$`)

type page struct {
	url  *url.URL
	body string
}

type Resolver struct {
	pages   PageFetcher
	timeout time.Duration
	probes  connect_archiver.ProbeList[page, Identifier]
}

func NewResolver(pages PageFetcher, timeout time.Duration) *Resolver {
	r := &Resolver{pages: pages, timeout: timeout}
	for i, p := range serverIDPatterns {
		pattern := p.pattern
		r.probes.MustCreate(p.name, func(_ context.Context, pg page) generic.Option[Identifier] {
			if m := pattern.FindStringSubmatch(pg.body); m != nil {
				return generic.Some(Identifier{Value: m[1], Kind: KindServerID})
			}
			return generic.None[Identifier]()
		}, int16(i))
	}
	r.probes.MustAdd(connect_archiver.Probe[page, Identifier]{
		Name: "path-token",
		Run:  probePathToken,
	}.WithPriority(connect_archiver.PriorityLowest))
	return r
}

func probePathToken(_ context.Context, pg page) generic.Option[Identifier] {
	segment, err := util.LastPathSegment(pg.url)
	if err != nil {
		return generic.None[Identifier]()
	}
	token := pathTokenPattern.FindString(segment)
	if token == "" {
		return generic.None[Identifier]()
	}
	return generic.Some(Identifier{Value: token, Kind: KindPathToken})
}

// Resolve derives the recording identifier for rawURL. Failing to fetch the page is not fatal: the path token
// fallback still applies. ErrNotFound means no probe produced an identifier.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) (Identifier, error) {
	log := connect_archiver.Logger(ctx).Sugar()
	u, err := util.ParseHTTPURL(rawURL)
	if err != nil {
		return Identifier{}, fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	log.Infof("Analyzing URL: %s", u)
	log.Debugw("identifier probes", "order", r.probes.List())
	body, err := r.pages.GetText(ctx, u.String(), r.timeout)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Identifier{}, ctxErr
		}
		log.Warnw("initial page analysis failed, falling back to URL path", zap.Error(err))
		body = ""
	}

	match, err := r.probes.First(ctx, page{url: u, body: body})
	if errors.Is(err, connect_archiver.ErrNoMatch) {
		return Identifier{}, ErrNotFound
	} else if err != nil {
		return Identifier{}, err
	}
	log.Infow("resolved recording identifier", "probe", match.ProbeName, "kind", match.Value.Kind, "id", match.Value.Value)
	return match.Value, nil
}
