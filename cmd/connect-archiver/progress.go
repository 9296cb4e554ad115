package main

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// progressBar renders archive downloads. Each new download (the byte count going backwards) or change of expected
// size starts a fresh bar. An unknown or zero expected size shows a spinner with a running byte count.
type progressBar struct {
	mu       sync.Mutex
	w        io.Writer
	bar      *progressbar.ProgressBar
	last     int64
	expected int64
}

func newProgressBar(w io.Writer) *progressBar {
	return &progressBar{w: w}
}

func (p *progressBar) Update(downloaded int64, expected int64) {
	if expected <= 0 {
		expected = -1
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar == nil || downloaded < p.last || expected != p.expected {
		if p.bar != nil {
			_ = p.bar.Finish()
		}
		p.bar = p.newBar(expected)
		p.expected = expected
	}
	// Rendering problems must never interrupt the download
	_ = p.bar.Set64(downloaded)
	p.last = downloaded
}

func (p *progressBar) newBar(expected int64) *progressbar.ProgressBar {
	options := []progressbar.Option{
		progressbar.OptionSetWriter(p.w),
		progressbar.OptionSetDescription("downloading"),
		progressbar.OptionShowBytes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(100 * time.Millisecond),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(p.w) }),
	}
	if expected < 0 {
		options = append(options, progressbar.OptionSpinnerType(14))
	}
	return progressbar.NewOptions64(expected, options...)
}
