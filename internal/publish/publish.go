// Package publish copies finished recordings to remote storage.
package publish

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/alanbriolat/connect-archiver/internal/config"
	"github.com/alanbriolat/connect-archiver/reconstruct"
)

const (
	KindNone = ""
	KindS3   = "s3"
	KindSFTP = "sftp"
)

// New creates the Publisher selected by cfg.Kind, or returns nil if publishing is disabled.
func New(cfg config.Publish, logger *zap.Logger) (reconstruct.Publisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Kind {
	case KindNone:
		return nil, nil
	case KindS3:
		return NewS3(cfg.S3, logger), nil
	case KindSFTP:
		p, err := NewSFTP(cfg.SFTP, logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown publisher kind %q", cfg.Kind)
	}
}
