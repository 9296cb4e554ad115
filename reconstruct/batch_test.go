package reconstruct

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBatch(t *testing.T) {
	assert := assert_.New(t)
	input := strings.Join([]string{
		"# recordings for the spring term",
		"https://host.example/p1/",
		"",
		"https://host.example/p2/, Week 2 lecture",
		",orphan name",
		`"https://host.example/p3/","Week 3, part 1"`,
		"https://host.example/p4/,,ignored",
	}, "\n")

	requests, err := ParseBatch(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal([]JobRequest{
		{URL: "https://host.example/p1/"},
		{URL: "https://host.example/p2/", OutputName: "Week 2 lecture"},
		{URL: "https://host.example/p3/", OutputName: "Week 3, part 1"},
		{URL: "https://host.example/p4/"},
	}, requests)

	_, err = ParseBatch(strings.NewReader(`"unterminated`))
	assert.Error(err)

	requests, err = ParseBatch(strings.NewReader(""))
	assert.NoError(err)
	assert.Empty(requests)
}

type scriptedRunner struct {
	results map[string]error
	seen    []string
	cancel  context.CancelFunc
}

func (r *scriptedRunner) Run(_ context.Context, req JobRequest) (*Job, error) {
	r.seen = append(r.seen, req.URL)
	if r.cancel != nil && len(r.seen) == 2 {
		r.cancel()
	}
	err := r.results[req.URL]
	job := &Job{URL: req.URL, State: StateDone, Err: err}
	if err != nil {
		job.State = StateFailed
	}
	if req.OutputName == "exists" {
		job.State = StateSkippedExisting
	}
	return job, err
}

func TestBatch_ContinuesPastFailures(t *testing.T) {
	assert := assert_.New(t)
	runner := &scriptedRunner{results: map[string]error{
		"u2": fmt.Errorf("%w: nothing matched", ErrResolution),
	}}
	requests := []JobRequest{{URL: "u1"}, {URL: "u2"}, {URL: "u3", OutputName: "exists"}}

	outcomes, err := NewBatch(runner, nil).Run(context.Background(), requests)
	assert.NoError(err)
	assert.Equal([]string{"u1", "u2", "u3"}, runner.seen)
	require.Len(t, outcomes, 3)
	assert.Equal(1, outcomes[0].Index)
	assert.Equal("done", outcomes[0].Status())
	assert.Equal("failed: ResolutionFailure", outcomes[1].Status())
	assert.Equal("skipped (exists)", outcomes[2].Status())
	assert.Equal(1, Failed(outcomes))
}

func TestBatch_StopsOnCancel(t *testing.T) {
	assert := assert_.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runner := &scriptedRunner{cancel: cancel}
	requests := []JobRequest{{URL: "u1"}, {URL: "u2"}, {URL: "u3"}}

	outcomes, err := NewBatch(runner, nil).Run(ctx, requests)
	assert.ErrorIs(err, context.Canceled)
	assert.Len(outcomes, 2)
	assert.Equal([]string{"u1", "u2"}, runner.seen)
}

func TestCategory(t *testing.T) {
	assert := assert_.New(t)
	assert.Equal("", Category(nil))
	assert.Equal("Other", Category(errors.New("mystery")))
	assert.Equal("EnvironmentFailure", Category(fmt.Errorf("wrapped: %w", ErrEnvironment)))
	assert.Equal("TranscodeFailure", Category(fmt.Errorf("%w: merge", ErrTranscode)))
	assert.Equal("Timeout", Category(context.DeadlineExceeded))
}
