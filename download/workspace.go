// Package download manages the per-recording working directory and moves archive bytes into it: fetching the zip
// from the first candidate URL that serves one, and unpacking it safely.
package download

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/alanbriolat/connect-archiver/util"
)

const workDirPrefix = "connect_archiver_"

// ErrWorkspace is a local filesystem failure inside the working directory.
var ErrWorkspace = errors.New("working directory failure")

type workspaceConfig struct {
	baseDir string
	logger  *zap.Logger
}

type WorkspaceOption func(*workspaceConfig)

// WithBaseDir sets the directory that working directories are created under (default: current directory).
func WithBaseDir(dir string) WorkspaceOption {
	return func(c *workspaceConfig) {
		c.baseDir = dir
	}
}

func WithLogger(logger *zap.Logger) WorkspaceOption {
	return func(c *workspaceConfig) {
		c.logger = logger
	}
}

// A Workspace is the working directory for one recording identifier. It is deterministic so that an archive left
// behind by an interrupted run can be found again.
type Workspace struct {
	config workspaceConfig
	id     string
	dir    string
	log    *zap.SugaredLogger
}

// WorkDirName is the name of the working directory used for the recording identifier id.
func WorkDirName(id string) string {
	return workDirPrefix + util.SanitizeToken(id)
}

// ArchiveName is the file name the recording archive is saved as inside the working directory.
func ArchiveName(id string) string {
	return util.SanitizeToken(id) + ".zip"
}

// NewWorkspace describes the working directory for id without touching the filesystem; see Create.
func NewWorkspace(id string, opts ...WorkspaceOption) *Workspace {
	config := workspaceConfig{baseDir: "."}
	for _, opt := range opts {
		opt(&config)
	}
	if config.logger == nil {
		config.logger = zap.NewNop()
	}
	return &Workspace{
		config: config,
		id:     id,
		dir:    filepath.Join(config.baseDir, WorkDirName(id)),
		log:    config.logger.Named("workspace").Sugar().With("dir", WorkDirName(id)),
	}
}

func (w *Workspace) Dir() string {
	return w.dir
}

// Path joins name onto the working directory.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.dir, name)
}

// ArchivePath is where the recording archive lives inside the working directory.
func (w *Workspace) ArchivePath() string {
	return w.Path(ArchiveName(w.id))
}

// Exists reports whether the working directory is already present, e.g. from an earlier interrupted run.
func (w *Workspace) Exists() bool {
	info, err := os.Stat(w.dir)
	return err == nil && info.IsDir()
}

// Create makes the working directory (and its base directory). An existing directory is kept as-is.
func (w *Workspace) Create() error {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return fmt.Errorf("%w: create: %w", ErrWorkspace, err)
	}
	return nil
}

// Remove deletes the working directory and everything in it. Failures are logged, not returned.
func (w *Workspace) Remove() {
	if err := os.RemoveAll(w.dir); err != nil {
		w.log.Warnf("Failed to clean up working directory: %v", err)
		return
	}
	w.log.Debug("removed working directory")
}

// WithWorkspace creates the working directory for id, runs f with it and always removes it afterwards.
func WithWorkspace(id string, f func(w *Workspace) error, opts ...WorkspaceOption) error {
	w := NewWorkspace(id, opts...)
	if err := w.Create(); err != nil {
		return err
	}
	defer w.Remove()
	return f(w)
}
