package config

import (
	"github.com/alanbriolat/connect-archiver/internal/session"
	"github.com/alanbriolat/connect-archiver/transcode"
)

const (
	defaultTargetDir       = "."
	defaultProbeSeconds    = 15
	defaultAccountSeconds  = 10
	defaultTransferSeconds = 2 * 60 * 60
	defaultHeaderSeconds   = 30
	defaultLogLevel        = "info"
	defaultSFTPPort        = 22
)

// Default returns a configuration populated with the built-in defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			TargetDir: defaultTargetDir,
		},
		Session: Session{
			CookieDomain: session.DefaultCookieDomain,
			UserAgent:    session.DefaultUserAgent,
		},
		Timeouts: Timeouts{
			ProbeSeconds:    defaultProbeSeconds,
			AccountSeconds:  defaultAccountSeconds,
			TransferSeconds: defaultTransferSeconds,
			HeaderSeconds:   defaultHeaderSeconds,
		},
		Transcode: Transcode{
			FFmpegBinary: transcode.DefaultBinary,
			Quality:      string(transcode.DefaultQuality),
		},
		Logging: Logging{
			Level: defaultLogLevel,
		},
		Publish: Publish{
			SFTP: SFTP{Port: defaultSFTPPort},
		},
	}
}
