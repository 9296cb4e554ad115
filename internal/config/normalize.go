package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeSession()
	c.normalizeTranscode()
	c.normalizeLogging()
	return c.normalizePublish()
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.TargetDir) == "" {
		c.Paths.TargetDir = defaultTargetDir
	}
	if c.Paths.TargetDir, err = expandPath(c.Paths.TargetDir); err != nil {
		return fmt.Errorf("paths.target_dir: %w", err)
	}
	if c.Paths.HistoryDB, err = expandPath(strings.TrimSpace(c.Paths.HistoryDB)); err != nil {
		return fmt.Errorf("paths.history_db: %w", err)
	}
	return nil
}

func (c *Config) normalizeSession() {
	if c.Session.Cookies == "" {
		if value, ok := os.LookupEnv("CONNECT_ARCHIVER_COOKIES"); ok {
			c.Session.Cookies = value
		}
	}
	c.Session.Cookies = strings.TrimSpace(c.Session.Cookies)
	c.Session.CookieDomain = strings.TrimSpace(c.Session.CookieDomain)
	c.Session.UserAgent = strings.TrimSpace(c.Session.UserAgent)
}

func (c *Config) normalizeTranscode() {
	c.Transcode.FFmpegBinary = strings.TrimSpace(c.Transcode.FFmpegBinary)
	c.Transcode.Quality = strings.ToLower(strings.TrimSpace(c.Transcode.Quality))
}

func (c *Config) normalizeLogging() {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func (c *Config) normalizePublish() error {
	c.Publish.Kind = strings.ToLower(strings.TrimSpace(c.Publish.Kind))

	s3 := &c.Publish.S3
	if s3.AccessKey == "" {
		s3.AccessKey = os.Getenv("AWS_ACCESS_KEY_ID")
	}
	if s3.SecretKey == "" {
		s3.SecretKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	}
	if s3.Region == "" {
		s3.Region = os.Getenv("AWS_REGION")
	}
	s3.Prefix = strings.Trim(strings.TrimSpace(s3.Prefix), "/")

	sftp := &c.Publish.SFTP
	if sftp.Port == 0 {
		sftp.Port = defaultSFTPPort
	}
	// private_key may also hold the key itself, so only "~" paths are expanded
	sftp.PrivateKey = strings.TrimSpace(sftp.PrivateKey)
	if strings.HasPrefix(sftp.PrivateKey, "~") {
		var err error
		if sftp.PrivateKey, err = expandPath(sftp.PrivateKey); err != nil {
			return fmt.Errorf("publish.sftp.private_key: %w", err)
		}
	}
	return nil
}
