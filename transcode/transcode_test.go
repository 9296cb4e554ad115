package transcode

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	assert_ "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	name string
	args []string
}

type recordingRunner struct {
	calls []call
	err   error
}

func (r *recordingRunner) Run(_ context.Context, name string, args ...string) error {
	r.calls = append(r.calls, call{name: name, args: args})
	return r.err
}

func argAfter(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func TestParseQuality(t *testing.T) {
	assert := assert_.New(t)

	for _, name := range QualityNames() {
		q, err := ParseQuality(name)
		assert.NoError(err)
		assert.Equal(name, q.String())
	}
	q, err := ParseQuality(" HIGH ")
	assert.NoError(err)
	assert.Equal(QualityHigh, q)
	q, err = ParseQuality("")
	assert.NoError(err)
	assert.Equal(QualityMedium, q)
	_, err = ParseQuality("lossless")
	assert.Error(err)

	assert.Equal(QualityMedium.Preset(), Quality("bogus").Preset())
	assert.Less(QualityUltra.Preset().CRF, QualityLow.Preset().CRF)
}

func TestFFmpeg_NormalizeVideo(t *testing.T) {
	assert := assert_.New(t)
	runner := &recordingRunner{}
	f := NewFFmpeg("/opt/ffmpeg", nil).WithRunner(runner.Run)

	err := f.NormalizeVideo(context.Background(), []string{"/w/screenshare_1.flv", "/w/screenshare_2.flv"}, "/w/normalized_video.mkv", QualityHigh)
	require.NoError(t, err)
	require.Len(t, runner.calls, 1)
	c := runner.calls[0]
	assert.Equal("/opt/ffmpeg", c.name)
	assert.Equal("/w/normalized_video.mkv", c.args[len(c.args)-1])
	assert.Equal([]string{"-i", "/w/screenshare_1.flv", "-i", "/w/screenshare_2.flv"}, c.args[5:9])
	graph := argAfter(c.args, "-filter_complex")
	assert.Contains(graph, "[0:v]scale=1920:1080:force_original_aspect_ratio=decrease,pad=1920:1080")
	assert.Contains(graph, "fps=30,setpts=PTS-STARTPTS[v1];")
	assert.True(strings.HasSuffix(graph, "[v0][v1]concat=n=2:v=1:a=0[vout]"), graph)
	assert.Equal("slow", argAfter(c.args, "-preset"))
	assert.Equal("20", argAfter(c.args, "-crf"))
	assert.Contains(c.args, "-an")
}

func TestFFmpeg_NormalizeAudio(t *testing.T) {
	assert := assert_.New(t)
	runner := &recordingRunner{}
	f := NewFFmpeg("", nil).WithRunner(runner.Run)

	require.NoError(t, f.NormalizeAudio(context.Background(), []string{"a.flv"}, "out.m4a"))
	c := runner.calls[0]
	assert.Equal(DefaultBinary, c.name)
	assert.Equal("[0:a]aresample=48000:async=1,aformat=channel_layouts=stereo,asetpts=PTS-STARTPTS[a0];[a0]concat=n=1:v=0:a=1[aout]",
		argAfter(c.args, "-filter_complex"))
	assert.Equal("aac", argAfter(c.args, "-c:a"))
	assert.Contains(c.args, "-vn")

	err := f.NormalizeAudio(context.Background(), nil, "out.m4a")
	assert.ErrorIs(err, ErrTranscode)
	assert.ErrorIs(err, ErrNoInputs)
	assert.Len(runner.calls, 1)
}

func TestFFmpeg_Merge(t *testing.T) {
	assert := assert_.New(t)
	runner := &recordingRunner{}
	f := NewFFmpeg("", nil).WithRunner(runner.Run)
	pair := NewNormalizedPair("/w")
	assert.Equal(filepath.Join("/w", "normalized_video.mkv"), pair.VideoPath)
	assert.Equal(filepath.Join("/w", "normalized_audio.m4a"), pair.AudioPath)

	require.NoError(t, f.Merge(context.Background(), pair, "/w/recording_1.mp4", QualityLow))
	args := runner.calls[0].args
	assert.Equal(pair.VideoPath, args[6])
	assert.Equal(pair.AudioPath, args[8])
	assert.Equal("copy", argAfter(args, "-c:v"))
	assert.Equal("96k", argAfter(args, "-b:a"))
	assert.Equal("+faststart", argAfter(args, "-movflags"))
	assert.Contains(args, "-shortest")
}

func TestFFmpeg_FailureRemovesOutput(t *testing.T) {
	assert := assert_.New(t)
	out := filepath.Join(t.TempDir(), "partial.mkv")
	runner := &recordingRunner{err: errors.New("exit status 1: Invalid data found")}
	f := NewFFmpeg("", nil).WithRunner(func(ctx context.Context, name string, args ...string) error {
		_ = os.WriteFile(out, []byte("truncated"), 0644)
		return runner.Run(ctx, name, args...)
	})

	err := f.NormalizeVideo(context.Background(), []string{"x.flv"}, out, QualityMedium)
	assert.ErrorIs(err, ErrTranscode)
	assert.Contains(err.Error(), "Invalid data found")
	assert.NoFileExists(out)
}

func TestExecRunner(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	assert := assert_.New(t)

	assert.NoError(ExecRunner(context.Background(), "sh", "-c", "exit 0"))
	err := ExecRunner(context.Background(), "sh", "-c", "echo broken input >&2; exit 3")
	assert.Error(err)
	assert.Contains(err.Error(), "broken input")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	err = ExecRunner(ctx, "sh", "-c", "exec sleep 30")
	assert.Error(err)
	assert.True(time.Since(start) < 5*time.Second, "cancelled command should stop promptly")
}

func TestPreflight(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	assert := assert_.New(t)
	binDir := t.TempDir()

	good := filepath.Join(binDir, "ffmpeg-good")
	require.NoError(t, os.WriteFile(good, []byte("#!/bin/sh\necho 'ffmpeg version 6.1 Copyright'\necho 'built with gcc'\n"), 0o755))
	version, err := Preflight(context.Background(), good)
	assert.NoError(err)
	assert.Equal("ffmpeg version 6.1 Copyright", version)

	bad := filepath.Join(binDir, "ffmpeg-bad")
	require.NoError(t, os.WriteFile(bad, []byte("#!/bin/sh\necho 'missing libs' >&2\nexit 127\n"), 0o755))
	_, err = Preflight(context.Background(), bad)
	assert.ErrorIs(err, ErrEnvironment)
	assert.Contains(err.Error(), "missing libs")

	_, err = Preflight(context.Background(), "clearly-not-present-binary")
	assert.ErrorIs(err, ErrEnvironment)
}
