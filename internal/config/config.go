package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

const historyFileName = ".connect-archiver.db"

// Paths controls where output and state are stored.
type Paths struct {
	TargetDir string `toml:"target_dir"`
	// HistoryDB defaults to a hidden file inside TargetDir.
	HistoryDB string `toml:"history_db"`
}

// Session contains settings for talking to the conferencing server.
type Session struct {
	Cookies      string `toml:"cookies"`
	CookieDomain string `toml:"cookie_domain"`
	UserAgent    string `toml:"user_agent"`
}

// Timeouts are all in seconds.
type Timeouts struct {
	ProbeSeconds    int `toml:"probe_seconds"`
	AccountSeconds  int `toml:"account_seconds"`
	TransferSeconds int `toml:"transfer_seconds"`
	HeaderSeconds   int `toml:"header_seconds"`
}

type Transcode struct {
	FFmpegBinary string `toml:"ffmpeg_binary"`
	Quality      string `toml:"quality"`
}

type Logging struct {
	Level string `toml:"level"`
}

// S3 contains settings for uploading finished recordings to an S3-compatible bucket.
type S3 struct {
	Bucket    string `toml:"bucket"`
	Region    string `toml:"region"`
	Prefix    string `toml:"prefix"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	// Endpoint overrides the AWS endpoint, e.g. for MinIO.
	Endpoint string `toml:"endpoint"`
}

// SFTP contains settings for uploading finished recordings to a remote host.
type SFTP struct {
	Host       string `toml:"host"`
	Port       int    `toml:"port"`
	User       string `toml:"user"`
	Password   string `toml:"password"`
	PrivateKey string `toml:"private_key"`
	RemoteDir  string `toml:"remote_dir"`
}

// Publish selects an optional destination that finished recordings are copied to.
type Publish struct {
	Kind string `toml:"kind"`
	S3   S3     `toml:"s3"`
	SFTP SFTP   `toml:"sftp"`
}

// Config encapsulates all configuration values for connect-archiver.
type Config struct {
	Paths     Paths     `toml:"paths"`
	Session   Session   `toml:"session"`
	Timeouts  Timeouts  `toml:"timeouts"`
	Transcode Transcode `toml:"transcode"`
	Logging   Logging   `toml:"logging"`
	Publish   Publish   `toml:"publish"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/connect-archiver/config.toml")
}

// Load parses, normalizes and validates a configuration file. With an empty path the default location is used if
// a file exists there; an explicitly named file must exist. Also returns the resolved path and whether a file was
// read.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		info, err := os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return "", false, fmt.Errorf("config file %q does not exist", expanded)
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		if info.IsDir() {
			return "", false, fmt.Errorf("config path %q is a directory", expanded)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	return defaultPath, false, nil
}

// HistoryPath is the history database location, defaulting to a hidden file in the target directory.
func (c *Config) HistoryPath() string {
	if c.Paths.HistoryDB != "" {
		return c.Paths.HistoryDB
	}
	return filepath.Join(c.Paths.TargetDir, historyFileName)
}

func (t Timeouts) Probe() time.Duration {
	return time.Duration(t.ProbeSeconds) * time.Second
}

func (t Timeouts) Account() time.Duration {
	return time.Duration(t.AccountSeconds) * time.Second
}

func (t Timeouts) Transfer() time.Duration {
	return time.Duration(t.TransferSeconds) * time.Second
}

func (t Timeouts) Header() time.Duration {
	return time.Duration(t.HeaderSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath applies the same "~" expansion and absolutising used for configured paths.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a commented sample configuration file to path.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
