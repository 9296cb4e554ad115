package connect_archiver

import (
	"context"
	"strings"
	"testing"

	assert_ "github.com/stretchr/testify/assert"

	"github.com/alanbriolat/connect-archiver/generic"
)

func prefixProbe(prefix string, calls *[]string, name string) ProbeFunc[string, string] {
	return func(_ context.Context, in string) generic.Option[string] {
		*calls = append(*calls, name)
		return generic.SomeIf(name, strings.HasPrefix(in, prefix))
	}
}

func TestProbeList_Add(t *testing.T) {
	assert := assert_.New(t)

	var l ProbeList[string, string]
	var calls []string
	assert.ErrorIs(l.Add(Probe[string, string]{Name: "", Run: prefixProbe("a", &calls, "x")}), ErrInvalidProbe)
	assert.ErrorIs(l.Add(Probe[string, string]{Name: "x"}), ErrInvalidProbe)
	assert.NoError(l.Add(Probe[string, string]{Name: "x", Run: prefixProbe("a", &calls, "x")}))
	assert.ErrorIs(l.Add(Probe[string, string]{Name: "x", Run: prefixProbe("a", &calls, "x")}), ErrDuplicateProbe)
	assert.Panics(func() { l.MustCreate("x", prefixProbe("a", &calls, "x"), PriorityDefault) })
}

func TestProbeList_Order(t *testing.T) {
	assert := assert_.New(t)

	var l ProbeList[string, string]
	var calls []string
	l.MustCreate("fallback", prefixProbe("", &calls, "fallback"), PriorityLowest)
	l.MustCreate("first", prefixProbe("a", &calls, "first"), PriorityDefault)
	l.MustCreate("second", prefixProbe("ab", &calls, "second"), PriorityDefault)
	l.MustAdd(Probe[string, string]{Name: "early", Run: prefixProbe("z", &calls, "early")}.WithPriority(PriorityHighest))
	assert.Equal([]string{"early", "first", "second", "fallback"}, l.List())

	match, err := l.First(context.Background(), "abc")
	assert.NoError(err)
	assert.Equal("first", match.ProbeName)
	assert.Equal([]string{"early", "first"}, calls, "evaluation should stop at the first match")

	calls = nil
	match, err = l.First(context.Background(), "q")
	assert.NoError(err)
	assert.Equal("fallback", match.Value)
	assert.Equal([]string{"early", "first", "second", "fallback"}, calls)
}

func TestProbeList_NoMatch(t *testing.T) {
	assert := assert_.New(t)

	var l ProbeList[string, string]
	var calls []string
	l.MustCreate("a", prefixProbe("a", &calls, "a"), PriorityDefault)
	_, err := l.First(context.Background(), "b")
	assert.ErrorIs(err, ErrNoMatch)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls = nil
	_, err = l.First(ctx, "a")
	assert.ErrorIs(err, context.Canceled)
	assert.Empty(calls)
}
