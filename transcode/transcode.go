// Package transcode turns groups of heterogeneous media fragments into a single MP4 using a two-pass approach:
// each stream is first normalized to one consistent file, then the normalized video and audio are merged.
package transcode

import (
	"context"
	"errors"
	"path/filepath"
)

const (
	NormalizedVideoName = "normalized_video.mkv"
	NormalizedAudioName = "normalized_audio.m4a"
)

var (
	ErrTranscode   = errors.New("transcode failed")
	ErrEnvironment = errors.New("transcoding tool unavailable")
	ErrNoInputs    = errors.New("no input files")
)

// NormalizedPair is the output of the first pass, stored in the job's working directory.
type NormalizedPair struct {
	VideoPath string
	AudioPath string
}

// NewNormalizedPair places the intermediate files inside dir.
func NewNormalizedPair(dir string) NormalizedPair {
	return NormalizedPair{
		VideoPath: filepath.Join(dir, NormalizedVideoName),
		AudioPath: filepath.Join(dir, NormalizedAudioName),
	}
}

type Transcoder interface {
	// NormalizeVideo concatenates files, in order, into one video-only file at out.
	NormalizeVideo(ctx context.Context, files []string, out string, quality Quality) error
	// NormalizeAudio concatenates the audio of files, in order, into one audio-only file at out.
	NormalizeAudio(ctx context.Context, files []string, out string) error
	// Merge combines a NormalizedPair into the final MP4 at out.
	Merge(ctx context.Context, pair NormalizedPair, out string, quality Quality) error
}
