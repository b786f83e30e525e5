package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	app "roomguard/internal/rooms/application"
)

// Message is the payload handed to every sink.
type Message struct {
	Target   string    `json:"-"`
	Title    string    `json:"title"`
	Body     string    `json:"body"`
	Kind     string    `json:"kind"`
	RoomID   int64     `json:"room_id"`
	RoomName string    `json:"room_name"`
	GasLevel float64   `json:"gas_level,omitempty"`
	RaisedAt time.Time `json:"raised_at"`
}

// MessageFromAlert converts an application alert.
func MessageFromAlert(alert app.Alert) Message {
	return Message{
		Target:   alert.Target,
		Title:    alert.Title,
		Body:     alert.Body,
		Kind:     string(alert.Kind),
		RoomID:   alert.RoomID,
		RoomName: alert.RoomName,
		GasLevel: alert.GasLevel,
		RaisedAt: alert.RaisedAt,
	}
}

// Sink delivers a message to one channel.
type Sink interface {
	Send(ctx context.Context, msg Message) error
}

// DeliveryError reports a failed delivery on a named sink.
type DeliveryError struct {
	Sink string
	Err  error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("notify %s: %v", e.Sink, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// MultiSink fans a message out to several sinks.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink constructs a MultiSink, skipping nil sinks.
func NewMultiSink(sinks ...Sink) *MultiSink {
	m := &MultiSink{}
	for _, sink := range sinks {
		if sink != nil {
			m.sinks = append(m.sinks, sink)
		}
	}
	return m
}

// Len returns the number of configured sinks.
func (m *MultiSink) Len() int {
	if m == nil {
		return 0
	}
	return len(m.sinks)
}

// Send delivers to every sink and joins their errors.
func (m *MultiSink) Send(ctx context.Context, msg Message) error {
	if m == nil {
		return nil
	}
	var errs []error
	for _, sink := range m.sinks {
		if err := sink.Send(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
