package reconstruct

import (
	"github.com/alanbriolat/connect-archiver"
	"github.com/alanbriolat/connect-archiver/download"
	"github.com/alanbriolat/connect-archiver/internal/session"
	"github.com/alanbriolat/connect-archiver/provider/connect"
	"github.com/alanbriolat/connect-archiver/transcode"
)

// NewFromSession builds a Reconstructor whose network components all share s and its timeouts. progress may be
// nil.
func NewFromSession(config Config, s *session.Session, transcoder transcode.Transcoder, progress connect_archiver.ProgressFunc, opts ...Option) *Reconstructor {
	sessionConfig := s.Config()
	fetchOpts := []download.FetcherOption{
		download.WithTransferTimeout(sessionConfig.TransferTimeout),
		download.WithProgress(progress),
	}
	if config.Logger != nil {
		fetchOpts = append(fetchOpts, download.WithFetchLogger(config.Logger))
	}
	return New(
		config,
		connect.NewResolver(s, sessionConfig.ProbeTimeout),
		connect.NewLocator(s, sessionConfig.AccountTimeout),
		download.NewFetcher(s.Client(), fetchOpts...),
		transcoder,
		opts...,
	)
}
