package transcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultBinary = "ffmpeg"

	// Sample rate all audio is resampled to before concatenation.
	audioSampleRate = 48000
	// Bitrate of the intermediate audio file; the final bitrate comes from the Quality.
	intermediateAudioBitrate = "192k"
	// How long ffmpeg gets to exit after SIGINT before it is killed.
	interruptGrace = 10 * time.Second
	// Upper bound on captured ffmpeg output included in errors.
	maxErrorOutput = 4096
)

// Runner executes name with args, returning an error that describes any failure.
type Runner func(ctx context.Context, name string, args ...string) error

// FFmpeg implements Transcoder by running the ffmpeg command line tool.
type FFmpeg struct {
	binary string
	runner Runner
	log    *zap.SugaredLogger
}

func NewFFmpeg(binary string, logger *zap.Logger) *FFmpeg {
	if binary == "" {
		binary = DefaultBinary
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FFmpeg{
		binary: binary,
		runner: ExecRunner,
		log:    logger.Named("ffmpeg").Sugar(),
	}
}

// WithRunner replaces how commands are executed (for testing).
func (f *FFmpeg) WithRunner(runner Runner) *FFmpeg {
	f.runner = runner
	return f
}

func (f *FFmpeg) Binary() string {
	return f.binary
}

func (f *FFmpeg) NormalizeVideo(ctx context.Context, files []string, out string, quality Quality) error {
	if len(files) == 0 {
		return fmt.Errorf("%w: normalize video: %w", ErrTranscode, ErrNoInputs)
	}
	f.log.Infof("Normalizing %d video fragments (%s quality)", len(files), quality)
	return f.run(ctx, "normalize video", out, videoArgs(files, out, quality.Preset()))
}

func (f *FFmpeg) NormalizeAudio(ctx context.Context, files []string, out string) error {
	if len(files) == 0 {
		return fmt.Errorf("%w: normalize audio: %w", ErrTranscode, ErrNoInputs)
	}
	f.log.Infof("Normalizing %d audio fragments", len(files))
	return f.run(ctx, "normalize audio", out, audioArgs(files, out))
}

func (f *FFmpeg) Merge(ctx context.Context, pair NormalizedPair, out string, quality Quality) error {
	f.log.Info("Merging normalized video and audio")
	return f.run(ctx, "merge", out, mergeArgs(pair, out, quality.Preset()))
}

func (f *FFmpeg) run(ctx context.Context, step string, out string, args []string) error {
	f.log.Debugw("running ffmpeg", "step", step, "args", args)
	start := time.Now()
	if err := f.runner(ctx, f.binary, args...); err != nil {
		// Don't leave a truncated output behind for a later run to mistake for a result
		_ = os.Remove(out)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %s: %w", ErrTranscode, step, ctxErr)
		}
		return fmt.Errorf("%w: %s: %w", ErrTranscode, step, err)
	}
	f.log.Debugw("ffmpeg finished", "step", step, "elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

func commonArgs() []string {
	return []string{"-y", "-hide_banner", "-loglevel", "error", "-nostdin"}
}

func inputArgs(files []string) []string {
	args := make([]string, 0, 2*len(files))
	for _, file := range files {
		args = append(args, "-i", file)
	}
	return args
}

// videoArgs concatenates the video of every input after bringing each to the same frame size, aspect ratio, frame
// rate and zero-based timestamps.
func videoArgs(files []string, out string, p Preset) []string {
	var graph strings.Builder
	for i := range files {
		fmt.Fprintf(&graph,
			"[%d:v]scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,setsar=1,fps=%d,setpts=PTS-STARTPTS[v%d];",
			i, p.Width, p.Height, p.Width, p.Height, p.FrameRate, i)
	}
	for i := range files {
		fmt.Fprintf(&graph, "[v%d]", i)
	}
	fmt.Fprintf(&graph, "concat=n=%d:v=1:a=0[vout]", len(files))

	args := commonArgs()
	args = append(args, inputArgs(files)...)
	return append(args,
		"-filter_complex", graph.String(),
		"-map", "[vout]",
		"-an",
		"-c:v", "libx264",
		"-preset", p.X264Preset,
		"-crf", fmt.Sprint(p.CRF),
		"-pix_fmt", "yuv420p",
		out,
	)
}

// audioArgs concatenates the audio of every input after resampling with drift compensation.
func audioArgs(files []string, out string) []string {
	var graph strings.Builder
	for i := range files {
		fmt.Fprintf(&graph,
			"[%d:a]aresample=%d:async=1,aformat=channel_layouts=stereo,asetpts=PTS-STARTPTS[a%d];",
			i, audioSampleRate, i)
	}
	for i := range files {
		fmt.Fprintf(&graph, "[a%d]", i)
	}
	fmt.Fprintf(&graph, "concat=n=%d:v=0:a=1[aout]", len(files))

	args := commonArgs()
	args = append(args, inputArgs(files)...)
	return append(args,
		"-filter_complex", graph.String(),
		"-map", "[aout]",
		"-vn",
		"-c:a", "aac",
		"-b:a", intermediateAudioBitrate,
		out,
	)
}

func mergeArgs(pair NormalizedPair, out string, p Preset) []string {
	args := commonArgs()
	return append(args,
		"-i", pair.VideoPath,
		"-i", pair.AudioPath,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "copy",
		"-c:a", "aac",
		"-b:a", p.AudioBitrate,
		"-shortest",
		"-movflags", "+faststart",
		out,
	)
}

// ExecRunner runs the command as a child process. Cancelling ctx interrupts the process, and kills it if it has
// not exited within a grace period. Output is only kept for the error message.
func ExecRunner(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = interruptGrace
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, tail(output.String(), maxErrorOutput))
	}
	return nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) > n {
		s = "..." + s[len(s)-n:]
	}
	return s
}

// Preflight checks that binary can be found and executed, returning the first line of its version output. Any
// failure is ErrEnvironment.
func Preflight(ctx context.Context, binary string) (string, error) {
	if binary == "" {
		binary = DefaultBinary
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		return "", fmt.Errorf("%w: %q not found: %w", ErrEnvironment, binary, err)
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	output, err := exec.CommandContext(ctx, path, "-version").Output() //nolint:gosec
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("%w: %q -version failed: %s", ErrEnvironment, binary, tail(string(exitErr.Stderr), 512))
		}
		return "", fmt.Errorf("%w: %q: %w", ErrEnvironment, binary, err)
	}
	version, _, _ := strings.Cut(strings.TrimSpace(string(output)), "\n")
	return strings.TrimSpace(version), nil
}
