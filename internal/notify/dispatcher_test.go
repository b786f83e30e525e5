package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	app "roomguard/internal/rooms/application"
)

type recordingSink struct {
	mu       sync.Mutex
	messages []Message
	err      error
}

func (s *recordingSink) Send(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func fireAlert(target string) app.Alert {
	return app.Alert{
		Kind:     app.AlertFire,
		RoomID:   4,
		RoomName: "Kitchen",
		OwnerID:  1,
		Target:   target,
		Title:    "Fire Alert",
		Body:     "Fire detected in Kitchen",
		RaisedAt: time.Date(2026, 1, 10, 10, 15, 0, 0, time.UTC),
	}
}

func TestDispatcherEmptyTargetIsNoop(t *testing.T) {
	sink := &recordingSink{}
	d, err := NewDispatcher(sink)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	d.Notify(context.Background(), fireAlert(""))
	d.Notify(context.Background(), fireAlert("   "))
	if sink.count() != 0 {
		t.Fatalf("expected no delivery for empty target")
	}
}

func TestDispatcherDeliversMessage(t *testing.T) {
	sink := &recordingSink{}
	d, _ := NewDispatcher(sink)
	d.Notify(context.Background(), fireAlert("token-1"))
	if sink.count() != 1 {
		t.Fatalf("expected one delivery, got %d", sink.count())
	}
	msg := sink.messages[0]
	if msg.Target != "token-1" || msg.Title != "Fire Alert" || msg.Kind != "fire" || msg.RoomID != 4 {
		t.Fatalf("unexpected message %+v", msg)
	}
}

func TestDispatcherSinkFailureIsSwallowed(t *testing.T) {
	sink := &recordingSink{err: errors.New("gateway down")}
	d, _ := NewDispatcher(sink)
	d.Notify(context.Background(), fireAlert("token-1"))
	if sink.count() != 1 {
		t.Fatalf("expected attempted delivery")
	}
}

func TestDispatcherAppliesTimeout(t *testing.T) {
	blocked := make(chan struct{})
	sink := sinkFunc(func(ctx context.Context, _ Message) error {
		<-ctx.Done()
		close(blocked)
		return ctx.Err()
	})
	d, _ := NewDispatcher(sink, WithTimeout(20*time.Millisecond))

	done := make(chan struct{})
	go func() {
		d.Notify(context.Background(), fireAlert("token-1"))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("notify did not return after timeout")
	}
	<-blocked
}

func TestDispatcherCooldown(t *testing.T) {
	sink := &recordingSink{}
	clock := &fakeClock{now: time.Date(2026, 1, 10, 10, 0, 0, 0, time.UTC)}
	d, _ := NewDispatcher(sink, WithClock(clock), WithCooldown(10*time.Minute))

	d.Notify(context.Background(), fireAlert("token-1"))
	clock.Advance(5 * time.Minute)
	d.Notify(context.Background(), fireAlert("token-1"))
	if sink.count() != 1 {
		t.Fatalf("expected cooldown to suppress, got %d", sink.count())
	}
	clock.Advance(6 * time.Minute)
	d.Notify(context.Background(), fireAlert("token-1"))
	if sink.count() != 2 {
		t.Fatalf("expected delivery after cooldown, got %d", sink.count())
	}
}

func TestDispatcherDedupeOnlyIdenticalContent(t *testing.T) {
	sink := &recordingSink{}
	clock := &fakeClock{now: time.Date(2026, 1, 10, 10, 0, 0, 0, time.UTC)}
	d, _ := NewDispatcher(sink, WithClock(clock), WithDedupeWindow(time.Hour))

	d.Notify(context.Background(), fireAlert("token-1"))
	d.Notify(context.Background(), fireAlert("token-1"))
	other := fireAlert("token-1")
	other.Body = "Fire detected in Kitchen again"
	d.Notify(context.Background(), other)
	if sink.count() != 2 {
		t.Fatalf("expected 2 deliveries, got %d", sink.count())
	}
}

func TestDispatcherFailedDeliveryDoesNotStartCooldown(t *testing.T) {
	sink := &recordingSink{err: errors.New("down")}
	d, _ := NewDispatcher(sink, WithCooldown(time.Hour))
	d.Notify(context.Background(), fireAlert("token-1"))
	sink.err = nil
	d.Notify(context.Background(), fireAlert("token-1"))
	if sink.count() != 2 {
		t.Fatalf("expected retry after failure, got %d", sink.count())
	}
}

func TestWebhookSinkPayload(t *testing.T) {
	payloadCh := make(chan webhookPayload, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var payload webhookPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		payloadCh <- payload
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sink, err := NewWebhookSink(server.URL, nil)
	if err != nil {
		t.Fatalf("new webhook sink: %v", err)
	}
	alert := fireAlert("token-1")
	alert.Kind = app.AlertGasLevel
	alert.Title = "Gas Alert"
	alert.GasLevel = 350
	if err := sink.Send(context.Background(), MessageFromAlert(alert)); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case payload := <-payloadCh:
		if payload.MsgType != "text" {
			t.Fatalf("expected msgtype text, got %s", payload.MsgType)
		}
		checks := []string{
			"[Gas Alert]",
			"Room: Kitchen (#4)",
			"Gas Level: 350.00 PPM",
			"Raised At: 2026-01-10T10:15:00Z",
		}
		for _, check := range checks {
			if !strings.Contains(payload.Text.Content, check) {
				t.Fatalf("expected content to contain %q, got %q", check, payload.Text.Content)
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout waiting for webhook payload")
	}
}

func TestWebhookSinkNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	sink, _ := NewWebhookSink(server.URL, nil)
	err := sink.Send(context.Background(), MessageFromAlert(fireAlert("t")))
	var derr *DeliveryError
	if !errors.As(err, &derr) || derr.Sink != sinkWebhook {
		t.Fatalf("expected webhook delivery error, got %v", err)
	}
}

func TestMultiSinkJoinsErrors(t *testing.T) {
	ok := &recordingSink{}
	bad := &recordingSink{err: errors.New("down")}
	multi := NewMultiSink(ok, nil, bad)
	if multi.Len() != 2 {
		t.Fatalf("nil sinks must be skipped")
	}
	err := multi.Send(context.Background(), MessageFromAlert(fireAlert("t")))
	if err == nil {
		t.Fatalf("expected joined error")
	}
	if ok.count() != 1 || bad.count() != 1 {
		t.Fatalf("every sink must be attempted")
	}
}

type sinkFunc func(ctx context.Context, msg Message) error

func (f sinkFunc) Send(ctx context.Context, msg Message) error { return f(ctx, msg) }
