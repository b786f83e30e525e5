package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const sinkMQTT = "mqtt"

// Publisher publishes raw payloads to a broker topic.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// MQTTSink publishes alerts as JSON to <prefix>/<room_id>.
type MQTTSink struct {
	publisher Publisher
	prefix    string
	qos       byte
}

// NewMQTTSink constructs an MQTT sink.
func NewMQTTSink(publisher Publisher, prefix string, qos byte) (*MQTTSink, error) {
	if publisher == nil {
		return nil, errors.New("mqtt sink: nil publisher")
	}
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		return nil, errors.New("mqtt sink: empty topic prefix")
	}
	return &MQTTSink{publisher: publisher, prefix: prefix, qos: qos}, nil
}

// Topic returns the alert topic of a room.
func (s *MQTTSink) Topic(roomID int64) string {
	return fmt.Sprintf("%s/%d", s.prefix, roomID)
}

// Send publishes the alert.
func (s *MQTTSink) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return &DeliveryError{Sink: sinkMQTT, Err: err}
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return &DeliveryError{Sink: sinkMQTT, Err: err}
	}
	if err := s.publisher.Publish(s.Topic(msg.RoomID), s.qos, false, payload); err != nil {
		return &DeliveryError{Sink: sinkMQTT, Err: err}
	}
	return nil
}
