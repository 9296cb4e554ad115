package config

import (
	"errors"
	"fmt"

	"go.uber.org/zap/zapcore"

	"github.com/alanbriolat/connect-archiver/transcode"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTimeouts(); err != nil {
		return err
	}
	if err := c.validateTranscode(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validatePublish(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateTimeouts() error {
	values := []struct {
		name  string
		value int
	}{
		{"timeouts.probe_seconds", c.Timeouts.ProbeSeconds},
		{"timeouts.account_seconds", c.Timeouts.AccountSeconds},
		{"timeouts.transfer_seconds", c.Timeouts.TransferSeconds},
		{"timeouts.header_seconds", c.Timeouts.HeaderSeconds},
	}
	for _, v := range values {
		if v.value <= 0 {
			return fmt.Errorf("%s must be positive", v.name)
		}
	}
	return nil
}

func (c *Config) validateTranscode() error {
	if c.Transcode.FFmpegBinary == "" {
		return errors.New("transcode.ffmpeg_binary must be set")
	}
	if _, err := transcode.ParseQuality(c.Transcode.Quality); err != nil {
		return fmt.Errorf("transcode.quality: %w", err)
	}
	return nil
}

func (c *Config) validateLogging() error {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	return nil
}

func (c *Config) validatePublish() error {
	switch c.Publish.Kind {
	case "":
		return nil
	case "s3":
		if c.Publish.S3.Bucket == "" {
			return errors.New("publish.s3.bucket must be set")
		}
		if c.Publish.S3.Region == "" {
			return errors.New("publish.s3.region must be set")
		}
		if c.Publish.S3.AccessKey == "" || c.Publish.S3.SecretKey == "" {
			return errors.New("publish.s3.access_key and publish.s3.secret_key must be set (or AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY)")
		}
		return nil
	case "sftp":
		sftp := c.Publish.SFTP
		if sftp.Host == "" || sftp.User == "" {
			return errors.New("publish.sftp.host and publish.sftp.user must be set")
		}
		if sftp.Password == "" && sftp.PrivateKey == "" {
			return errors.New("publish.sftp requires a password or private_key")
		}
		if sftp.Port <= 0 || sftp.Port > 65535 {
			return fmt.Errorf("publish.sftp.port %d out of range", sftp.Port)
		}
		return nil
	default:
		return fmt.Errorf("publish.kind %q is not one of \"\", \"s3\", \"sftp\"", c.Publish.Kind)
	}
}
