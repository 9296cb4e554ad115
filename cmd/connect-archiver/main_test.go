package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/alanbriolat/connect-archiver/internal/boltdb"
	"github.com/alanbriolat/connect-archiver/reconstruct"
)

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	var out bytes.Buffer
	app := newApp(context.Background(), zap.NewNop(), zap.NewAtomicLevel())
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(append([]string{"connect-archiver"}, args...))
	return out.String(), err
}

func TestUsageErrors(t *testing.T) {
	cases := map[string][]string{
		"nothing to do":       {},
		"url and file":        {"--file", "links.csv", "https://host.example/p1/"},
		"output with file":    {"--file", "links.csv", "--output", "x"},
		"too many urls":       {"https://host.example/p1/", "https://host.example/p2/"},
		"bad quality":         {"--quality", "lossless", "https://host.example/p1/"},
		"missing config file": {"--config", "/definitely/not/here.toml", "https://host.example/p1/"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := runApp(t, args...)
			require.Error(t, err)
			if name != "missing config file" {
				var usage usageError
				assert_.True(t, errors.As(err, &usage), "expected a usage error, got %v", err)
			}
		})
	}
}

func TestHistoryCommand(t *testing.T) {
	assert := assert_.New(t)
	target := t.TempDir()

	out, err := runApp(t, "--target", target, "history")
	assert.NoError(err)
	assert.Contains(out, "No history yet.")

	db, err := boltdb.New(filepath.Join(target, ".connect-archiver.db"))
	require.NoError(t, err)
	require.NoError(t, db.PutRecord(&reconstruct.JobRecord{
		URL:         "https://host.example/p77/",
		RecordingID: "77",
		State:       reconstruct.StateDone,
		Destination: "/videos/recording_77.mp4",
	}))
	require.NoError(t, db.Close())

	out, err = runApp(t, "--target", target, "history")
	assert.NoError(err)
	assert.Contains(out, "https://host.example/p77/")
	assert.Contains(out, "recording_77.mp4")
	assert.Contains(out, "done")

	out, err = runApp(t, "--target", target, "history", "--forget", "https://host.example/p77/")
	assert.NoError(err)
	assert.Contains(out, "Forgot https://host.example/p77/")

	out, err = runApp(t, "--target", target, "history", "--forget", "https://host.example/p77/")
	assert.NoError(err)
	assert.Contains(out, "No history for https://host.example/p77/")

	db, err = boltdb.New(filepath.Join(target, ".connect-archiver.db"))
	require.NoError(t, err)
	defer db.Close()
	record, err := db.GetRecord("https://host.example/p77/")
	assert.NoError(err)
	assert.Nil(record)
}

func TestRenderOutcomes(t *testing.T) {
	assert := assert_.New(t)
	rendered := renderOutcomes([]reconstruct.Outcome{
		{Index: 1, Request: reconstruct.JobRequest{URL: "https://host.example/p1/"}, Job: &reconstruct.Job{State: reconstruct.StateDone, Destination: "/v/recording_1.mp4"}},
		{Index: 2, Request: reconstruct.JobRequest{URL: "https://host.example/p2/"}, Err: reconstruct.ErrLocationExhausted},
	})
	assert.Contains(rendered, "URL")
	assert.Contains(rendered, "/v/recording_1.mp4")
	assert.Contains(rendered, "failed: LocationExhausted")
	assert.Equal("", renderTable(nil, nil, nil))
}

func TestProgressBar(t *testing.T) {
	assert := assert_.New(t)
	var out bytes.Buffer
	bar := newProgressBar(&out)
	assert.NotPanics(func() {
		bar.Update(0, 1024)
		bar.Update(512, 1024)
		bar.Update(1024, 1024)
	})
	// A new download restarts the bar
	assert.NotPanics(func() { bar.Update(0, 2048) })
	assert.Equal(int64(0), bar.last)
	assert.Equal(int64(2048), bar.expected)
}

func TestProgressBar_UnknownSize(t *testing.T) {
	assert := assert_.New(t)
	var out bytes.Buffer
	bar := newProgressBar(&out)
	assert.NotPanics(func() {
		bar.Update(0, -1)
		bar.Update(100*1024, -1)
		bar.Update(5*1024*1024, -1)
	})
	assert.Equal(int64(-1), bar.expected)
	assert.Equal(int64(5*1024*1024), bar.last)
}

func TestProgressBar_ZeroSize(t *testing.T) {
	assert := assert_.New(t)
	var out bytes.Buffer
	bar := newProgressBar(&out)
	assert.NotPanics(func() {
		bar.Update(0, 0)
		bar.Update(4096, 0)
	})
	assert.Equal(int64(-1), bar.expected, "zero is treated as unknown")
}

func TestProgressBar_SizeBecomesKnown(t *testing.T) {
	assert := assert_.New(t)
	var out bytes.Buffer
	bar := newProgressBar(&out)
	assert.NotPanics(func() {
		bar.Update(0, -1)
		bar.Update(0, 4096)
		bar.Update(8192, 4096)
	})
	assert.Equal(int64(4096), bar.expected)
}
