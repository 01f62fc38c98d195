package stream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

const timestampLayout = time.RFC3339Nano

var emptyObject = json.RawMessage(`{}`)

type statusWire struct {
	Type      Kind   `json:"type"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

type contentWire struct {
	Type    Kind   `json:"type"`
	Content string `json:"content"`
}

type completeWire struct {
	Type Kind            `json:"type"`
	Data json.RawMessage `json:"data"`
}

type errorWire struct {
	Type  Kind   `json:"type"`
	Error string `json:"error"`
}

// Marshal encodes a single event as one self-contained JSON object.
func Marshal(ev Event) ([]byte, error) {
	switch e := ev.(type) {
	case Status:
		return json.Marshal(statusWire{Type: KindStatus, Status: e.Status, Timestamp: e.Timestamp.UTC().Format(timestampLayout)})
	case Content:
		return json.Marshal(contentWire{Type: KindContent, Content: e.Text})
	case Complete:
		data := e.Data
		if len(bytes.TrimSpace(data)) == 0 {
			data = emptyObject
		}
		return json.Marshal(completeWire{Type: KindComplete, Data: data})
	case Error:
		return json.Marshal(errorWire{Type: KindError, Error: e.Message})
	case nil:
		return nil, fmt.Errorf("stream: nil event")
	default:
		return nil, fmt.Errorf("stream: unsupported event %T", ev)
	}
}

// Unmarshal parses one JSON object into its event variant.
func Unmarshal(data []byte) (Event, error) {
	var probe struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, err
	}
	switch probe.Type {
	case KindStatus:
		var w statusWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}
		ts, err := time.Parse(timestampLayout, w.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("status timestamp: %w", err)
		}
		return Status{Status: w.Status, Timestamp: ts}, nil
	case KindContent:
		var w contentWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}
		return Content{Text: w.Content}, nil
	case KindComplete:
		var w completeWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}
		return Complete{Data: w.Data}, nil
	case KindError:
		var w errorWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}
		return Error{Message: w.Error}, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", probe.Type)
	}
}

// Encoder writes newline-delimited events, flushing after each one when the
// destination supports it.
type Encoder struct {
	w io.Writer
}

// NewEncoder returns an encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes ev followed by a newline.
func (e *Encoder) Encode(ev Event) error {
	data, err := Marshal(ev)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if _, err := e.w.Write(data); err != nil {
		return err
	}
	switch f := e.w.(type) {
	case interface{ Flush() error }:
		return f.Flush()
	case interface{ Flush() }:
		f.Flush()
	}
	return nil
}
