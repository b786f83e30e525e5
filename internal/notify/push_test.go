package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushSinkSendsGatewayRequest(t *testing.T) {
	var (
		gotAuth string
		gotBody pushRequest
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":1,"failure":0}`))
	}))
	defer server.Close()

	sink, err := NewPushSink(server.URL, "server-key", time.Second)
	require.NoError(t, err)

	err = sink.Send(context.Background(), MessageFromAlert(fireAlert("device-token")))
	require.NoError(t, err)
	assert.Equal(t, "key=server-key", gotAuth)
	assert.Equal(t, "device-token", gotBody.To)
	assert.Equal(t, "Fire Alert", gotBody.Notification.Title)
	assert.Equal(t, "Fire detected in Kitchen", gotBody.Notification.Body)
	assert.Equal(t, "4", gotBody.Data["room_id"])
	assert.Equal(t, "fire", gotBody.Data["kind"])
}

func TestPushSinkReportsGatewayFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":0,"failure":1,"results":[{"error":"NotRegistered"}]}`))
	}))
	defer server.Close()

	sink, err := NewPushSink(server.URL, "", time.Second)
	require.NoError(t, err)

	err = sink.Send(context.Background(), MessageFromAlert(fireAlert("stale-token")))
	var derr *DeliveryError
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, sinkPush, derr.Sink)
	assert.Contains(t, err.Error(), "NotRegistered")
}

func TestPushSinkReportsHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	sink, err := NewPushSink(server.URL, "wrong", time.Second)
	require.NoError(t, err)
	err = sink.Send(context.Background(), MessageFromAlert(fireAlert("token")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestPushSinkSkipsEmptyTarget(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	sink, err := NewPushSink(server.URL, "", time.Second)
	require.NoError(t, err)
	require.NoError(t, sink.Send(context.Background(), MessageFromAlert(fireAlert(""))))
	assert.False(t, called)
}

type fakePublisher struct {
	topic   string
	payload []byte
	err     error
}

func (p *fakePublisher) Publish(topic string, _ byte, _ bool, payload []byte) error {
	p.topic = topic
	p.payload = payload
	return p.err
}

func TestMQTTSinkPublishesJSON(t *testing.T) {
	pub := &fakePublisher{}
	sink, err := NewMQTTSink(pub, "roomguard/alerts/", 1)
	require.NoError(t, err)

	require.NoError(t, sink.Send(context.Background(), MessageFromAlert(fireAlert("token"))))
	assert.Equal(t, "roomguard/alerts/4", pub.topic)

	var msg Message
	require.NoError(t, json.Unmarshal(pub.payload, &msg))
	assert.Equal(t, "Fire Alert", msg.Title)
	assert.Equal(t, "fire", msg.Kind)
	assert.Empty(t, msg.Target)
}

func TestMQTTSinkWrapsPublishError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("not connected")}
	sink, err := NewMQTTSink(pub, "roomguard/alerts", 0)
	require.NoError(t, err)

	err = sink.Send(context.Background(), MessageFromAlert(fireAlert("token")))
	var derr *DeliveryError
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, sinkMQTT, derr.Sink)
}
