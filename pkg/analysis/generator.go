// Package analysis runs the staged news, filing and prediction analysis over a
// streaming text generator and emits the result as a stream of events.
package analysis

import "context"

// TextStream yields the text deltas of one generation. Next blocks until a
// delta is available or the generation ends; Err reports why it ended.
type TextStream interface {
	Next() bool
	Delta() string
	Err() error
	Close() error
}

// TextGenerator opens a streaming generation for prompt. Timeouts are the
// generator's concern and surface through TextStream.Err.
type TextGenerator interface {
	Stream(ctx context.Context, prompt string, temperature float64) (TextStream, error)
}
