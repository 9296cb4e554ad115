package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/alanbriolat/connect-archiver"
)

const chunkSize = 100 * 1024

var (
	// ErrExhausted means no candidate produced an archive. It wraps the per-candidate failures.
	ErrExhausted  = errors.New("no candidate URL produced an archive")
	ErrBadStatus  = errors.New("unexpected HTTP status")
	ErrNotArchive = errors.New("response is a web page, not an archive")
)

type Fetcher struct {
	client   *http.Client
	timeout  time.Duration
	progress connect_archiver.ProgressFunc
	log      *zap.SugaredLogger
}

type FetcherOption func(*Fetcher)

// WithTransferTimeout bounds each candidate request, including reading the whole body. Zero means no limit beyond
// the caller's context.
func WithTransferTimeout(timeout time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.timeout = timeout
	}
}

// WithProgress receives byte counts for each accepted candidate. Counts restart at zero for every candidate.
func WithProgress(callback connect_archiver.ProgressFunc) FetcherOption {
	return func(f *Fetcher) {
		f.progress = callback
	}
}

func WithFetchLogger(logger *zap.Logger) FetcherOption {
	return func(f *Fetcher) {
		f.log = logger.Named("fetch").Sugar()
	}
}

func NewFetcher(client *http.Client, opts ...FetcherOption) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	f := &Fetcher{client: client, log: zap.NewNop().Sugar()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch tries each candidate in order and saves the first real archive to dest, returning the URL that served it.
// Nothing is written for rejected candidates. Once ctx is done the remaining candidates are not attempted.
func (f *Fetcher) Fetch(ctx context.Context, candidates []string, dest string) (string, error) {
	var result error
	for i, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		f.log.Infof("Trying download URL %d of %d: %s", i+1, len(candidates), candidate)
		err := f.fetchOne(ctx, candidate, dest)
		if err == nil {
			return candidate, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		f.log.Warnw("candidate failed", "url", candidate, zap.Error(err))
		result = multierror.Append(result, multierror.Prefix(err, fmt.Sprintf("[%v]", candidate)))
	}
	if result == nil {
		return "", ErrExhausted
	}
	return "", fmt.Errorf("%w: %w", ErrExhausted, result)
}

func (f *Fetcher) fetchOne(ctx context.Context, candidate string, dest string) error {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, candidate, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s", ErrBadStatus, resp.Status)
	}
	if isHTML(resp.Header.Get("Content-Type")) {
		return ErrNotArchive
	}

	f.log.Infof("Downloading archive (%s)", describeSize(resp.ContentLength))
	return f.save(ctx, resp, dest)
}

// save streams an accepted response to dest via a ".part" file, which is removed on any failure.
func (f *Fetcher) save(ctx context.Context, resp *http.Response, dest string) (err error) {
	partPath := dest + ".part"
	out, err := os.Create(partPath)
	if err != nil {
		return fmt.Errorf("failed to open target file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = out.Close()
			_ = os.Remove(partPath)
		}
	}()

	progress := connect_archiver.NewProgress(f.progress)
	progress.SetExpectedBytes(resp.ContentLength)
	buf := make([]byte, chunkSize)
	if _, err = io.CopyBuffer(io.MultiWriter(out, progress), connect_archiver.NewContextReader(ctx, resp.Body), buf); err != nil {
		return fmt.Errorf("failed to save stream: %w", err)
	}
	if err = out.Close(); err != nil {
		return fmt.Errorf("failed to close target file: %w", err)
	}
	if err = os.Rename(partPath, dest); err != nil {
		return fmt.Errorf("failed to move archive into place: %w", err)
	}
	downloaded, _ := progress.Progress()
	f.log.Infof("Downloaded %s", humanize.Bytes(uint64(downloaded)))
	return nil
}

func isHTML(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = contentType
	}
	return strings.Contains(strings.ToLower(mediaType), "html")
}

func describeSize(n int64) string {
	if n < 0 {
		return "unknown size"
	}
	return humanize.Bytes(uint64(n))
}
