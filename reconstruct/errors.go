package reconstruct

import (
	"context"
	"errors"

	"github.com/alanbriolat/connect-archiver/download"
	"github.com/alanbriolat/connect-archiver/stream"
	"github.com/alanbriolat/connect-archiver/transcode"
)

// Failure categories. A failed Job's Err wraps exactly one of these.
var (
	ErrResolution        = errors.New("could not resolve recording identifier")
	ErrLocationExhausted = errors.New("no archive found at any candidate location")
	ErrArchiveInvalid    = download.ErrArchiveInvalid
	ErrMissingStream     = stream.ErrMissingStream
	ErrTranscode         = transcode.ErrTranscode
	ErrEnvironment       = transcode.ErrEnvironment
	ErrJobBusy           = errors.New("recording is already being processed")
	ErrPlacement         = errors.New("could not place output")
	ErrWorkspace         = download.ErrWorkspace
)

var categories = []struct {
	err  error
	name string
}{
	{ErrResolution, "ResolutionFailure"},
	{ErrLocationExhausted, "LocationExhausted"},
	{ErrArchiveInvalid, "ArchiveInvalid"},
	{ErrMissingStream, "MissingRequiredStream"},
	{ErrEnvironment, "EnvironmentFailure"},
	{ErrTranscode, "TranscodeFailure"},
	{ErrJobBusy, "JobBusy"},
	{ErrPlacement, "PlacementFailure"},
	{ErrWorkspace, "WorkspaceFailure"},
	{context.Canceled, "Cancelled"},
	{context.DeadlineExceeded, "Timeout"},
}

// Category names the failure category of err, or "Other" if it doesn't match one.
func Category(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range categories {
		if errors.Is(err, c.err) {
			return c.name
		}
	}
	return "Other"
}
