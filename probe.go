package connect_archiver

import (
	"context"
	"errors"
	"math"
	"sort"

	"github.com/alanbriolat/connect-archiver/generic"
)

var (
	ErrDuplicateProbe = errors.New("duplicate probe name")
	ErrInvalidProbe   = errors.New("invalid probe")
	ErrNoMatch        = errors.New("no probe matched the input")
)

var (
	PriorityHighest int16 = math.MinInt16
	PriorityDefault int16 = 0
	PriorityLowest  int16 = math.MaxInt16
)

// ProbeFunc inspects the input and optionally produces a result. Probes report their own soft failures (e.g. via
// the context logger) and return None rather than an error.
type ProbeFunc[In any, Out any] func(context.Context, In) generic.Option[Out]

// A Probe is one ranked way of deriving an Out from an In.
type Probe[In any, Out any] struct {
	Name string
	Run  ProbeFunc[In, Out]
	// Priority of the probe, lower (including negative) means running earlier.
	Priority int16
}

func (p Probe[In, Out]) WithPriority(priority int16) Probe[In, Out] {
	p.Priority = priority
	return p
}

// A ProbeMatch is the result of the first Probe that produced a value.
type ProbeMatch[Out any] struct {
	ProbeName string
	Value     Out
}

// A ProbeList is an ordered collection of Probe instances, evaluated "first acceptable wins".
type ProbeList[In any, Out any] struct {
	probes []*Probe[In, Out]
	names  generic.Set[string]
}

// Add registers a Probe. Probe.Name and Probe.Run must be set, and Probe.Name must be unique within the ProbeList.
// Probes with equal priority keep the order they were added in.
func (l *ProbeList[In, Out]) Add(p Probe[In, Out]) error {
	if l.names == nil {
		l.names = generic.NewSet[string]()
	}
	if p.Name == "" || p.Run == nil {
		return ErrInvalidProbe
	}
	if !l.names.Add(p.Name) {
		return ErrDuplicateProbe
	}
	l.probes = append(l.probes, &p)
	sort.SliceStable(l.probes, func(i, j int) bool {
		return l.probes[i].Priority < l.probes[j].Priority
	})
	return nil
}

// MustAdd wraps Add but panics if there is an error.
func (l *ProbeList[In, Out]) MustAdd(p Probe[In, Out]) {
	generic.Unwrap_(l.Add(p))
}

// MustCreate is a shortcut for MustAdd(Probe{Name: ..., Run: ..., Priority: ...}).
func (l *ProbeList[In, Out]) MustCreate(name string, f ProbeFunc[In, Out], priority int16) {
	l.MustAdd(Probe[In, Out]{Name: name, Run: f, Priority: priority})
}

// List returns the names of registered probes in evaluation order.
func (l *ProbeList[In, Out]) List() []string {
	names := make([]string, 0, len(l.probes))
	for _, p := range l.probes {
		names = append(names, p.Name)
	}
	return names
}

// First runs each Probe in priority order and returns the first value produced, or ErrNoMatch. A cancelled context
// stops evaluation early with the context's error.
func (l *ProbeList[In, Out]) First(ctx context.Context, in In) (*ProbeMatch[Out], error) {
	for _, p := range l.probes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if value, ok := p.Run(ctx, in).Get(); ok {
			return &ProbeMatch[Out]{ProbeName: p.Name, Value: value}, nil
		}
	}
	return nil, ErrNoMatch
}
