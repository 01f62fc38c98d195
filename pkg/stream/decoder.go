package stream

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// DecodeError reports a malformed fragment that the decoder skipped.
type DecodeError struct {
	Fragment string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("stream: malformed event %q: %v", e.Fragment, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

const maxFragmentPreview = 64

// Decoder reassembles events from a byte stream that may split objects at any
// position. It is not safe for concurrent use.
type Decoder struct {
	buf []byte
}

// Feed appends p to the internal buffer and returns every event that is now
// complete. Malformed fragments are dropped and reported as joined
// *DecodeError values; the returned events are valid even when err != nil.
func (d *Decoder) Feed(p []byte) ([]Event, error) {
	d.buf = append(d.buf, p...)

	var (
		events []Event
		errs   []error
	)
	for {
		d.buf = bytes.TrimLeft(d.buf, " \t\r\n")
		if len(d.buf) == 0 {
			break
		}
		if d.buf[0] != '{' {
			errs = append(errs, d.skip(errors.New("expected object")))
			continue
		}

		dec := json.NewDecoder(bytes.NewReader(d.buf))
		var raw json.RawMessage
		err := dec.Decode(&raw)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			errs = append(errs, d.skip(err))
			continue
		}
		consumed := int(dec.InputOffset())
		ev, err := Unmarshal(raw)
		if err != nil {
			errs = append(errs, newDecodeError(d.buf[:consumed], err))
		} else {
			events = append(events, ev)
		}
		d.buf = d.buf[consumed:]
	}

	if len(d.buf) == 0 {
		d.buf = nil
	}
	return events, errors.Join(errs...)
}

// Buffered reports the number of bytes held while waiting for the rest of a value.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// skip drops bytes up to the next candidate object start.
func (d *Decoder) skip(cause error) error {
	next := bytes.IndexByte(d.buf[1:], '{')
	var dropped []byte
	if next < 0 {
		dropped, d.buf = d.buf, d.buf[len(d.buf):]
	} else {
		dropped, d.buf = d.buf[:next+1], d.buf[next+1:]
	}
	return newDecodeError(dropped, cause)
}

func newDecodeError(fragment []byte, err error) *DecodeError {
	preview := string(fragment)
	if len(preview) > maxFragmentPreview {
		preview = preview[:maxFragmentPreview] + "..."
	}
	return &DecodeError{Fragment: preview, Err: err}
}

// Reader pulls events from an io.Reader through a Decoder.
type Reader struct {
	r       io.Reader
	dec     Decoder
	chunk   []byte
	pending []Event
	err     error
}

const defaultChunkSize = 4 << 10

// NewReader returns a Reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r, chunk: make([]byte, defaultChunkSize)}
}

// Next returns the next event. It returns io.EOF once the source is drained
// and io.ErrUnexpectedEOF if the source ended inside a value. A *DecodeError
// is not fatal; callers may keep calling Next.
func (r *Reader) Next() (Event, error) {
	for len(r.pending) == 0 {
		if r.err != nil {
			return nil, r.err
		}
		n, readErr := r.r.Read(r.chunk)
		var decErr error
		if n > 0 {
			r.pending, decErr = r.dec.Feed(r.chunk[:n])
		}
		if readErr != nil {
			r.err = readErr
			if errors.Is(readErr, io.EOF) && r.dec.Buffered() > 0 {
				r.err = io.ErrUnexpectedEOF
			}
		}
		if decErr != nil {
			return nil, decErr
		}
	}
	ev := r.pending[0]
	r.pending = r.pending[1:]
	return ev, nil
}
