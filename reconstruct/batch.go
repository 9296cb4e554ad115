package reconstruct

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
)

// ParseBatch reads "URL[,filename]" rows. Lines starting with "#" are comments; blank rows and rows with an empty
// URL cell are skipped.
func ParseBatch(r io.Reader) ([]JobRequest, error) {
	reader := csv.NewReader(r)
	reader.Comment = '#'
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var requests []JobRequest
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return nil, fmt.Errorf("failed to parse batch file: %w", err)
		}
		if len(row) == 0 {
			continue
		}
		req := JobRequest{URL: strings.TrimSpace(row[0])}
		if req.URL == "" {
			continue
		}
		if len(row) > 1 {
			req.OutputName = strings.TrimSpace(row[1])
		}
		requests = append(requests, req)
	}
	return requests, nil
}

// Runner runs a single job; *Reconstructor implements it.
type Runner interface {
	Run(ctx context.Context, req JobRequest) (*Job, error)
}

// Outcome is the result of one job in a batch.
type Outcome struct {
	Index   int
	Request JobRequest
	Job     *Job
	Err     error
}

// Status is a short human-readable description of the outcome.
func (o Outcome) Status() string {
	switch {
	case o.Err != nil:
		return "failed: " + Category(o.Err)
	case o.Job == nil:
		return "not run"
	case o.Job.State == StateSkippedExisting:
		return "skipped (exists)"
	default:
		return string(o.Job.State)
	}
}

type Batch struct {
	runner Runner
	log    *zap.SugaredLogger
}

func NewBatch(runner Runner, logger *zap.Logger) *Batch {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Batch{runner: runner, log: logger.Named("batch").Sugar()}
}

// Run processes requests one at a time, continuing past failures. Only cancellation of ctx stops it early, in
// which case the outcomes so far are returned along with the context's error.
func (b *Batch) Run(ctx context.Context, requests []JobRequest) ([]Outcome, error) {
	b.log.Infof("Found %d links to process", len(requests))
	outcomes := make([]Outcome, 0, len(requests))
	for i, req := range requests {
		if err := ctx.Err(); err != nil {
			b.log.Warnf("batch interrupted after %d of %d links", i, len(requests))
			return outcomes, err
		}
		b.log.Infof("--- processing link %d of %d ---", i+1, len(requests))
		job, err := b.runner.Run(ctx, req)
		outcomes = append(outcomes, Outcome{Index: i + 1, Request: req, Job: job, Err: err})
		if err != nil {
			b.log.Errorw("link failed, continuing with the next one", "index", i+1, "url", req.URL, zap.Error(err))
		}
	}
	if err := ctx.Err(); err != nil {
		return outcomes, err
	}
	b.log.Info("batch complete")
	return outcomes, nil
}

// Failed counts the outcomes that ended in failure.
func Failed(outcomes []Outcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}
