// Package reconstruct drives the whole pipeline for a recording URL: resolve the identifier, locate and fetch the
// archive, classify the fragments, transcode them in two passes and place the result.
package reconstruct

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/r3labs/diff/v3"
	"go.uber.org/zap"

	"github.com/alanbriolat/connect-archiver"
	"github.com/alanbriolat/connect-archiver/download"
	"github.com/alanbriolat/connect-archiver/provider/connect"
	"github.com/alanbriolat/connect-archiver/stream"
	"github.com/alanbriolat/connect-archiver/transcode"
	"github.com/alanbriolat/connect-archiver/util"
)

type IdentifierResolver interface {
	Resolve(ctx context.Context, rawURL string) (connect.Identifier, error)
}

type ArchiveLocator interface {
	Locate(ctx context.Context, rawURL string, id connect.Identifier) (connect.CandidateList, error)
}

type ArchiveFetcher interface {
	// Fetch saves the first real archive among candidates to dest and returns the URL it came from.
	Fetch(ctx context.Context, candidates []string, dest string) (string, error)
}

// Publisher copies a finished recording somewhere else, returning a description of where it went.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, localPath string) (string, error)
}

type Config struct {
	TargetDir string
	Quality   transcode.Quality
	Logger    *zap.Logger
}

type Reconstructor struct {
	config     Config
	output     connect_archiver.OutputConfig
	resolver   IdentifierResolver
	locator    ArchiveLocator
	fetcher    ArchiveFetcher
	transcoder transcode.Transcoder
	history    History
	publisher  Publisher
	log        *zap.Logger
}

type Option func(*Reconstructor)

func WithHistory(history History) Option {
	return func(r *Reconstructor) {
		if history != nil {
			r.history = history
		}
	}
}

func WithPublisher(publisher Publisher) Option {
	return func(r *Reconstructor) {
		r.publisher = publisher
	}
}

func New(config Config, resolver IdentifierResolver, locator ArchiveLocator, fetcher ArchiveFetcher, transcoder transcode.Transcoder, opts ...Option) *Reconstructor {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.Quality == "" {
		config.Quality = transcode.DefaultQuality
	}
	output := connect_archiver.NewOutputConfig(config.TargetDir)
	config.TargetDir = output.TargetDir
	r := &Reconstructor{
		config:     config,
		output:     output,
		resolver:   resolver,
		locator:    locator,
		fetcher:    fetcher,
		transcoder: transcoder,
		history:    NopHistory{},
		log:        config.Logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Reconstructor) TargetDir() string {
	return r.config.TargetDir
}

// Run reconstructs one recording. The returned Job is always non-nil and records the final state; the error is
// the same as Job.Err. Skipping because the output already exists is not an error.
func (r *Reconstructor) Run(ctx context.Context, req JobRequest) (*Job, error) {
	job := &Job{
		ID:         NewJobID(),
		URL:        req.URL,
		OutputName: req.OutputName,
		Started:    time.Now(),
	}
	log := r.log.Named("job").With(zap.String("job_id", string(job.ID)), zap.String("url", job.URL))
	ctx = connect_archiver.WithLogger(ctx, log)
	log.Sugar().Infof("--- Processing URL: %s ---", job.URL)

	err := r.run(ctx, job)
	if job.Identifier.Value != "" {
		ctx = withRecordingID(ctx, job.Identifier)
	}
	if err != nil {
		job.Err = err
		r.transition(ctx, job, StateFailed)
		connect_archiver.Logger(ctx).Error("reconstruction failed",
			zap.String("category", Category(err)), zap.Error(err))
	}
	job.Finished = time.Now()
	if err := r.history.PutRecord(job.Record()); err != nil {
		connect_archiver.Logger(ctx).Warn("failed to record job history", zap.Error(err))
	}
	return job, err
}

func (r *Reconstructor) run(ctx context.Context, job *Job) (err error) {
	if err := os.MkdirAll(r.config.TargetDir, 0755); err != nil {
		return fmt.Errorf("%w: failed to create target directory: %w", ErrPlacement, err)
	}

	// Skip before any network activity when the destination is already known
	if job.OutputName != "" {
		if job.Destination, err = r.output.DestinationPath(job.OutputName, ""); err != nil {
			return fmt.Errorf("%w: %w", ErrPlacement, err)
		}
		if fileExists(job.Destination) {
			return r.skip(ctx, job)
		}
	} else if record := r.previousRecord(ctx, job.URL); record != nil {
		job.Destination = record.Destination
		job.Identifier = connect.Identifier{Value: record.RecordingID, Kind: record.IdentifierKind}
		return r.skip(ctx, job)
	}

	r.transition(ctx, job, StateResolving)
	id, err := r.resolver.Resolve(ctx, job.URL)
	if err != nil {
		return wrapUnlessCancelled(ctx, ErrResolution, err)
	}
	job.Identifier = id
	ctx = withRecordingID(ctx, id)
	log := connect_archiver.Logger(ctx)

	if job.Destination == "" {
		if job.Destination, err = r.output.DestinationPath("", id.Value); err != nil {
			return fmt.Errorf("%w: %w", ErrPlacement, err)
		}
	}
	log.Sugar().Infof("Final video will be named: %q", filepath.Base(job.Destination))

	workspaceOpts := []download.WorkspaceOption{download.WithBaseDir(r.config.TargetDir), download.WithLogger(log)}
	job.WorkDir = download.NewWorkspace(id.Value, workspaceOpts...).Dir()

	lock := flock.New(filepath.Join(r.config.TargetDir, ".connect_archiver_"+util.SanitizeToken(id.Value)+".lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("%w: acquire lock: %w", ErrJobBusy, err)
	}
	if !locked {
		// The working directory belongs to whoever holds the lock, so leave it alone
		if fileExists(job.Destination) {
			return r.skip(ctx, job)
		}
		return fmt.Errorf("%w: %s", ErrJobBusy, id)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			log.Warn("failed to release job lock", zap.Error(err))
		}
		_ = os.Remove(lock.Path())
	}()

	if fileExists(job.Destination) {
		if stale := download.NewWorkspace(id.Value, workspaceOpts...); stale.Exists() {
			log.Debug("removing stale working directory", zap.String("dir", stale.Dir()))
			stale.Remove()
		}
		return r.skip(ctx, job)
	}

	return download.WithWorkspace(id.Value, func(workspace *download.Workspace) error {
		return r.reconstruct(ctx, job, workspace)
	}, workspaceOpts...)
}

// reconstruct turns the recording archive into the final output, working inside workspace. The caller holds the
// job lock.
func (r *Reconstructor) reconstruct(ctx context.Context, job *Job, workspace *download.Workspace) error {
	log := connect_archiver.Logger(ctx)
	job.ArchivePath = workspace.ArchivePath()

	if fileExists(job.ArchivePath) {
		log.Warn("archive already exists from an earlier run, skipping download", zap.String("archive", job.ArchivePath))
	} else if err := r.fetch(ctx, job); err != nil {
		return err
	}

	r.transition(ctx, job, StateExtracting)
	if _, err := download.Extract(job.ArchivePath, workspace.Dir(), log); err != nil {
		switch {
		case errors.Is(err, download.ErrUnsafePath):
			return fmt.Errorf("%w: %w", ErrArchiveInvalid, err)
		case errors.Is(err, ErrArchiveInvalid), errors.Is(err, ErrWorkspace):
			return err
		default:
			return fmt.Errorf("%w: extract: %w", ErrWorkspace, err)
		}
	}

	r.transition(ctx, job, StateClassifying)
	groups, err := stream.Classify(workspace.Dir(), log)
	if err != nil {
		return fmt.Errorf("%w: classify: %w", ErrWorkspace, err)
	}
	videoFiles, err := groups.Require(stream.RoleScreenshare)
	if err != nil {
		return err
	}
	audioFiles := groups.Get(stream.RoleCameraVoip).UnwrapOr(videoFiles)

	pair := transcode.NewNormalizedPair(workspace.Dir())
	r.transition(ctx, job, StateNormalizingVideo)
	if err := r.transcoder.NormalizeVideo(ctx, videoFiles, pair.VideoPath, r.config.Quality); err != nil {
		return wrapTranscode(err)
	}
	r.transition(ctx, job, StateNormalizingAudio)
	if err := r.transcoder.NormalizeAudio(ctx, audioFiles, pair.AudioPath); err != nil {
		return wrapTranscode(err)
	}
	job.TempOutput = workspace.Path(filepath.Base(job.Destination))
	r.transition(ctx, job, StateMerging)
	if err := r.transcoder.Merge(ctx, pair, job.TempOutput, r.config.Quality); err != nil {
		return wrapTranscode(err)
	}

	r.transition(ctx, job, StatePlacing)
	if err := place(job.TempOutput, job.Destination); err != nil {
		return err
	}
	log.Sugar().Infof("Success! Video saved to: %s", absPath(job.Destination))

	if r.publisher != nil {
		r.transition(ctx, job, StatePublishing)
		if location, err := r.publisher.Publish(ctx, job.Destination); err != nil {
			log.Warn("publishing failed, output is still available locally",
				zap.String("publisher", r.publisher.Name()), zap.Error(err))
		} else {
			job.PublishedTo = location
			log.Info("published output", zap.String("publisher", r.publisher.Name()), zap.String("location", location))
		}
	}

	r.transition(ctx, job, StateDone)
	return nil
}

func (r *Reconstructor) fetch(ctx context.Context, job *Job) error {
	r.transition(ctx, job, StateLocating)
	candidates, err := r.locator.Locate(ctx, job.URL, job.Identifier)
	if err != nil {
		return wrapUnlessCancelled(ctx, ErrLocationExhausted, err)
	}
	if len(candidates) == 0 {
		return fmt.Errorf("%w: no candidate URLs", ErrLocationExhausted)
	}

	r.transition(ctx, job, StateFetching)
	source, err := r.fetcher.Fetch(ctx, candidates, job.ArchivePath)
	if err != nil {
		return wrapUnlessCancelled(ctx, ErrLocationExhausted, err)
	}
	job.SourceURL = source
	return nil
}

// previousRecord returns the history record for url if it says the recording was completed (or found already
// complete) and the output is still there.
func (r *Reconstructor) previousRecord(ctx context.Context, url string) *JobRecord {
	record, err := r.history.GetRecord(url)
	if err != nil {
		connect_archiver.Logger(ctx).Warn("failed to read job history", zap.Error(err))
		return nil
	}
	if record == nil || (record.State != StateDone && record.State != StateSkippedExisting) || record.Destination == "" || !fileExists(record.Destination) {
		return nil
	}
	return record
}

func (r *Reconstructor) skip(ctx context.Context, job *Job) error {
	connect_archiver.Logger(ctx).Sugar().Warnf("Output file %q already exists in the destination. Skipping.",
		filepath.Base(job.Destination))
	r.transition(ctx, job, StateSkippedExisting)
	return nil
}

func (r *Reconstructor) transition(ctx context.Context, job *Job, state State) {
	log := connect_archiver.Logger(ctx)
	old := *job
	job.State = state
	if state.IsTerminal() {
		job.Finished = time.Now()
	}
	log.Info("state changed", zap.String("from", string(old.State)), zap.String("to", string(state)))

	if !log.Core().Enabled(zap.DebugLevel) {
		return
	}
	changes, err := diff.Diff(old, *job)
	if err != nil {
		log.Sugar().Errorf("failed to diff old and new job state: %v", err)
		return
	}
	for _, change := range changes {
		log.Sugar().Debugf("%v: %#v -> %#v", change.Path, change.From, change.To)
	}
}

// place moves src to dst without ever replacing an existing dst.
func place(src string, dst string) error {
	err := os.Link(src, dst)
	if err == nil {
		_ = os.Remove(src)
		return nil
	}
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("%w: %s already exists", ErrPlacement, dst)
	}
	// Hard links aren't supported everywhere; fall back to a rename after a final existence check
	if fileExists(dst) {
		return fmt.Errorf("%w: %s already exists", ErrPlacement, dst)
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("%w: %w", ErrPlacement, err)
	}
	return nil
}

func withRecordingID(ctx context.Context, id connect.Identifier) context.Context {
	return connect_archiver.WithLogger(ctx, connect_archiver.Logger(ctx).With(zap.String("recording_id", id.Value)))
}

func wrapUnlessCancelled(ctx context.Context, category error, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return err
	}
	if errors.Is(err, category) {
		return err
	}
	return fmt.Errorf("%w: %w", category, err)
}

func wrapTranscode(err error) error {
	if errors.Is(err, ErrTranscode) || errors.Is(err, ErrEnvironment) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrTranscode, err)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
