package analysis

import (
	"context"
	"errors"
	"sync"
	"time"

	"quant-api/pkg/stream"
)

// scriptedGen replies to the n-th Stream call with the n-th script.
type scriptedGen struct {
	mu      sync.Mutex
	scripts []script
	prompts []string
	temps   []float64
}

type script struct {
	deltas  []string
	openErr error
	failErr error // returned by Err after all deltas
}

func (g *scriptedGen) Stream(ctx context.Context, prompt string, temperature float64) (TextStream, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	idx := len(g.prompts)
	g.prompts = append(g.prompts, prompt)
	g.temps = append(g.temps, temperature)
	if idx >= len(g.scripts) {
		return nil, errors.New("unexpected generation")
	}
	s := g.scripts[idx]
	if s.openErr != nil {
		return nil, s.openErr
	}
	return &sliceStream{ctx: ctx, deltas: s.deltas, err: s.failErr, pos: -1}, nil
}

func (g *scriptedGen) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

type sliceStream struct {
	ctx    context.Context
	deltas []string
	err    error
	pos    int
	closed bool
}

func (s *sliceStream) Next() bool {
	if s.ctx.Err() != nil {
		s.err = s.ctx.Err()
		return false
	}
	s.pos++
	return s.pos < len(s.deltas)
}

func (s *sliceStream) Delta() string { return s.deltas[s.pos] }
func (s *sliceStream) Err() error    { return s.err }
func (s *sliceStream) Close() error  { s.closed = true; return nil }

type memStore struct {
	saved []*Record
	err   error
}

func (m *memStore) Save(_ context.Context, rec *Record) error {
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, rec)
	return nil
}

func fixedClock() func() time.Time {
	ts := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	return func() time.Time { return ts }
}

func collect(seq func(func(stream.Event) bool)) []stream.Event {
	var out []stream.Event
	seq(func(ev stream.Event) bool {
		out = append(out, ev)
		return true
	})
	return out
}
