// Package stream defines the analysis event protocol and its JSON wire codec.
package stream

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind identifies an event variant on the wire.
type Kind string

const (
	KindStatus   Kind = "status"
	KindContent  Kind = "content"
	KindComplete Kind = "complete"
	KindError    Kind = "error"
)

// StatusStarted is the only status value emitted by stage runners.
const StatusStarted = "started"

// Event is a closed union over Status, Content, Complete and Error.
type Event interface {
	Kind() Kind
	isEvent()
}

// Status announces a stage transition.
type Status struct {
	Status    string
	Timestamp time.Time
}

// Content carries one text delta.
type Content struct {
	Text string
}

// Complete carries a stage or pipeline payload encoded as a JSON object.
type Complete struct {
	Data json.RawMessage
}

// Error carries a human readable fault description.
type Error struct {
	Message string
}

func (Status) Kind() Kind   { return KindStatus }
func (Content) Kind() Kind  { return KindContent }
func (Complete) Kind() Kind { return KindComplete }
func (Error) Kind() Kind    { return KindError }

func (Status) isEvent()   {}
func (Content) isEvent()  {}
func (Complete) isEvent() {}
func (Error) isEvent()    {}

// Started builds the status event emitted when a stage begins.
func Started(now time.Time) Status {
	return Status{Status: StatusStarted, Timestamp: now.UTC()}
}

// NewComplete marshals payload into a Complete event.
func NewComplete(payload any) (Complete, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Complete{}, fmt.Errorf("stream: marshal complete payload: %w", err)
	}
	return Complete{Data: data}, nil
}

// Decode unmarshals the payload into v.
func (c Complete) Decode(v any) error {
	if len(c.Data) == 0 {
		return fmt.Errorf("stream: complete event has no data")
	}
	return json.Unmarshal(c.Data, v)
}

// IsTerminal reports whether ev ends a stage.
func IsTerminal(ev Event) bool {
	switch ev.(type) {
	case Complete, Error:
		return true
	default:
		return false
	}
}
