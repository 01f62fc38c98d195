package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"quant-api/pkg/stream"
)

// Phase is the lifecycle position of a Runner.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseStarted
	PhaseStreaming
	PhaseCompleted
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseStarted:
		return "started"
	case PhaseStreaming:
		return "streaming"
	case PhaseCompleted:
		return "completed"
	case PhaseFailed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Terminal reports whether no further events can follow.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// FinishFunc turns the accumulated text of a stage into its completion payload.
type FinishFunc func(text string) (any, error)

// Outcome is what a stage leaves behind once its events are consumed.
type Outcome struct {
	Stage Stage
	Text  string
	// Data is the completion payload; nil unless the stage completed.
	Data json.RawMessage
}

// RunnerOption customises a Runner.
type RunnerOption func(*Runner)

// WithClock overrides the time source used for status timestamps.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// Runner drives one generation and reports it as stream events:
// one started status, a content event per non-empty delta, then exactly one
// Complete or Error. A Runner runs once.
type Runner struct {
	stage       Stage
	gen         TextGenerator
	temperature float64
	finish      FinishFunc
	now         func() time.Time

	phase Phase
	text  strings.Builder
}

// NewRunner builds a Runner for stage. A nil finish completes with {"analysis": text}.
func NewRunner(stage Stage, gen TextGenerator, temperature float64, finish FinishFunc, opts ...RunnerOption) *Runner {
	r := &Runner{
		stage:       stage,
		gen:         gen,
		temperature: temperature,
		finish:      finish,
		now:         time.Now,
	}
	if r.finish == nil {
		r.finish = func(text string) (any, error) {
			return map[string]string{"analysis": text}, nil
		}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Stage returns the stage this runner executes.
func (r *Runner) Stage() Stage { return r.stage }

// Phase returns the current lifecycle phase.
func (r *Runner) Phase() Phase { return r.phase }

// Text returns the text accumulated so far.
func (r *Runner) Text() string { return r.text.String() }

// Run streams the stage for prompt into yield. The returned error is a
// *StageError when the stage failed (its Error event has already been
// yielded), ErrStopped when yield asked to stop, or ErrRunnerUsed.
func (r *Runner) Run(ctx context.Context, prompt string, yield func(stream.Event) bool) (Outcome, error) {
	if r.phase != PhaseIdle {
		return Outcome{Stage: r.stage}, ErrRunnerUsed
	}
	r.phase = PhaseStarted
	if !yield(stream.Started(r.now())) {
		r.phase = PhaseFailed
		return r.outcome(nil), ErrStopped
	}
	if err := ctx.Err(); err != nil {
		return r.fail(err, yield)
	}

	ts, err := r.gen.Stream(ctx, prompt, r.temperature)
	if err != nil {
		return r.fail(err, yield)
	}
	if ts == nil {
		return r.fail(ErrNoStream, yield)
	}
	defer ts.Close()

	r.phase = PhaseStreaming
	for ts.Next() {
		delta := ts.Delta()
		if delta == "" {
			continue
		}
		r.text.WriteString(delta)
		if !yield(stream.Content{Text: delta}) {
			r.phase = PhaseFailed
			return r.outcome(nil), ErrStopped
		}
	}
	if err := ts.Err(); err != nil {
		return r.fail(err, yield)
	}

	payload, err := r.finish(r.text.String())
	if err != nil {
		return r.fail(err, yield)
	}
	ev, err := stream.NewComplete(payload)
	if err != nil {
		return r.fail(err, yield)
	}
	r.phase = PhaseCompleted
	out := r.outcome(ev.Data)
	if !yield(ev) {
		return out, ErrStopped
	}
	return out, nil
}

// Events exposes Run as an iterator. Breaking out of the loop stops the generation.
func (r *Runner) Events(ctx context.Context, prompt string) iter.Seq[stream.Event] {
	return func(yield func(stream.Event) bool) {
		_, _ = r.Run(ctx, prompt, yield)
	}
}

func (r *Runner) fail(cause error, yield func(stream.Event) bool) (Outcome, error) {
	r.phase = PhaseFailed
	serr := &StageError{Stage: r.stage, Err: cause}
	if !yield(stream.Error{Message: serr.Error()}) {
		return r.outcome(nil), errors.Join(ErrStopped, serr)
	}
	return r.outcome(nil), serr
}

func (r *Runner) outcome(data json.RawMessage) Outcome {
	return Outcome{Stage: r.stage, Text: r.text.String(), Data: data}
}
