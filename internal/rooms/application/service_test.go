package application

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	rooms "roomguard/internal/rooms/domain"
	"roomguard/internal/rooms/infrastructure/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []Alert
}

func (n *recordingNotifier) Notify(_ context.Context, alert Alert) {
	n.mu.Lock()
	n.alerts = append(n.alerts, alert)
	n.mu.Unlock()
}

func (n *recordingNotifier) all() []Alert {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Alert(nil), n.alerts...)
}

type failingStore struct {
	rooms.Store
	err error
}

func (s failingStore) Within(ctx context.Context, fn func(ctx context.Context, tx rooms.Repositories) error) error {
	return s.Store.Within(ctx, func(ctx context.Context, tx rooms.Repositories) error {
		if err := fn(ctx, tx); err != nil {
			return err
		}
		return s.err
	})
}

type fixture struct {
	store    *memory.Store
	clock    *fakeClock
	notifier *recordingNotifier
	room     rooms.Room
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	store.SetPushTarget(1, "device-token")
	room := rooms.Room{Name: "Kitchen", OwnerID: 1}
	if err := store.Rooms().Create(context.Background(), &room); err != nil {
		t.Fatalf("create room: %v", err)
	}
	return &fixture{
		store:    store,
		clock:    &fakeClock{now: time.Date(2026, 1, 10, 10, 15, 0, 0, time.UTC)},
		notifier: &recordingNotifier{},
		room:     room,
	}
}

func (f *fixture) options(extra ...Option) []Option {
	return append([]Option{
		WithClock(f.clock),
		WithNotifier(f.notifier),
		WithOwnerDirectory(f.store),
	}, extra...)
}

func TestToggleFireCreatesDefaultStateAndAlerts(t *testing.T) {
	f := newFixture(t)
	svc, err := NewSafetyService(f.store, f.options()...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ctx := context.Background()

	fire, err := svc.ToggleFire(ctx, f.room.ID)
	if err != nil {
		t.Fatalf("toggle fire: %v", err)
	}
	if !fire {
		t.Fatalf("expected fire detected")
	}
	state, err := svc.Status(ctx, f.room.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !state.FireDetected || state.GasDetected || !state.ValveOn {
		t.Fatalf("unexpected state %+v", state)
	}

	alerts := f.notifier.all()
	if len(alerts) != 1 {
		t.Fatalf("expected one alert, got %d", len(alerts))
	}
	alert := alerts[0]
	if alert.Title != "Fire Alert" || !strings.Contains(alert.Body, "Kitchen") || alert.Target != "device-token" {
		t.Fatalf("unexpected alert %+v", alert)
	}

	fire, err = svc.ToggleFire(ctx, f.room.ID)
	if err != nil || fire {
		t.Fatalf("expected fire cleared, got %v %v", fire, err)
	}
	if len(f.notifier.all()) != 1 {
		t.Fatalf("clearing fire must not alert")
	}
}

func TestToggleGasClosesValveAndAlerts(t *testing.T) {
	f := newFixture(t)
	svc, _ := NewSafetyService(f.store, f.options()...)

	result, err := svc.ToggleGas(context.Background(), f.room.ID)
	if err != nil {
		t.Fatalf("toggle gas: %v", err)
	}
	if !result.GasDetected || result.ValveOn {
		t.Fatalf("expected gas on valve off, got %+v", result)
	}
	alerts := f.notifier.all()
	if len(alerts) != 1 || alerts[0].Title != "Gas Leak Detected" {
		t.Fatalf("unexpected alerts %+v", alerts)
	}
	if !strings.Contains(alerts[0].Body, "Valve turned OFF") {
		t.Fatalf("body must mention the valve: %q", alerts[0].Body)
	}
}

func TestToggleValveRequiresState(t *testing.T) {
	f := newFixture(t)
	svc, _ := NewSafetyService(f.store, f.options()...)
	ctx := context.Background()

	if _, err := svc.ToggleValve(ctx, f.room.ID); !errors.Is(err, rooms.ErrSafetyStateNotFound) {
		t.Fatalf("expected ErrSafetyStateNotFound, got %v", err)
	}
	if state, _ := f.store.SafetyStates().Get(ctx, f.room.ID); state != nil {
		t.Fatalf("valve toggle must not create a state")
	}

	if _, err := svc.ToggleFire(ctx, f.room.ID); err != nil {
		t.Fatalf("toggle fire: %v", err)
	}
	valve, err := svc.ToggleValve(ctx, f.room.ID)
	if err != nil {
		t.Fatalf("toggle valve: %v", err)
	}
	if valve {
		t.Fatalf("expected valve off")
	}
	if len(f.notifier.all()) != 1 {
		t.Fatalf("valve toggle must not alert")
	}
}

func TestToggleValveAutoCreate(t *testing.T) {
	f := newFixture(t)
	svc, _ := NewSafetyService(f.store, f.options(WithValveAutoCreate(true))...)

	valve, err := svc.ToggleValve(context.Background(), f.room.ID)
	if err != nil {
		t.Fatalf("toggle valve: %v", err)
	}
	if valve {
		t.Fatalf("expected default open valve to close")
	}
}

func TestTogglesUnknownRoom(t *testing.T) {
	f := newFixture(t)
	svc, _ := NewSafetyService(f.store, f.options()...)
	ctx := context.Background()

	if _, err := svc.ToggleFire(ctx, 999); !errors.Is(err, rooms.ErrRoomNotFound) {
		t.Fatalf("fire: expected ErrRoomNotFound, got %v", err)
	}
	if _, err := svc.ToggleGas(ctx, 999); !errors.Is(err, rooms.ErrRoomNotFound) {
		t.Fatalf("gas: expected ErrRoomNotFound, got %v", err)
	}
	if _, err := svc.ToggleValve(ctx, 999); !errors.Is(err, rooms.ErrRoomNotFound) {
		t.Fatalf("valve: expected ErrRoomNotFound, got %v", err)
	}
	if _, err := svc.Status(ctx, 999); !errors.Is(err, rooms.ErrRoomNotFound) {
		t.Fatalf("status: expected ErrRoomNotFound, got %v", err)
	}
	if _, err := svc.Status(ctx, f.room.ID); !errors.Is(err, rooms.ErrSafetyStateNotFound) {
		t.Fatalf("status: expected ErrSafetyStateNotFound, got %v", err)
	}
}

func TestToggleCommitFailureRollsBackAndSkipsAlert(t *testing.T) {
	f := newFixture(t)
	store := failingStore{Store: f.store, err: errors.New("commit failed")}
	svc, _ := NewSafetyService(store, f.options()...)

	_, err := svc.ToggleFire(context.Background(), f.room.ID)
	var perr *rooms.PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("expected persistence error, got %v", err)
	}
	if state, _ := f.store.SafetyStates().Get(context.Background(), f.room.ID); state != nil {
		t.Fatalf("state must be rolled back")
	}
	if len(f.notifier.all()) != 0 {
		t.Fatalf("no alert after failed commit")
	}
}

func TestSubmitHourlyScenario(t *testing.T) {
	f := newFixture(t)
	svc, err := NewIngestService(f.store, f.options()...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ctx := context.Background()
	base := time.Date(2026, 1, 10, 10, 15, 0, 0, time.UTC)

	result, err := svc.Submit(ctx, f.room.ID, 120, base)
	if err != nil {
		t.Fatalf("10:15 submit: %v", err)
	}
	if result.GasDetected || !result.ValveOn || !result.RecordedAt.Equal(base) {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(f.notifier.all()) != 0 {
		t.Fatalf("safe reading must not alert")
	}

	if _, err := svc.Submit(ctx, f.room.ID, 350, base.Add(30*time.Minute)); !errors.Is(err, rooms.ErrDuplicateBucket) {
		t.Fatalf("10:45 submit: expected ErrDuplicateBucket, got %v", err)
	}
	state, _ := f.store.SafetyStates().Get(ctx, f.room.ID)
	if state.GasDetected || !state.ValveOn {
		t.Fatalf("rejected reading changed state: %+v", state)
	}

	result, err = svc.Submit(ctx, f.room.ID, 350, base.Add(50*time.Minute))
	if err != nil {
		t.Fatalf("11:05 submit: %v", err)
	}
	if !result.GasDetected || result.ValveOn {
		t.Fatalf("expected detection, got %+v", result)
	}
	alerts := f.notifier.all()
	if len(alerts) != 1 || alerts[0].Title != "Gas Alert" || alerts[0].Kind != AlertGasLevel {
		t.Fatalf("unexpected alerts %+v", alerts)
	}
	if !strings.Contains(alerts[0].Body, "Kitchen") {
		t.Fatalf("alert body must name the room: %q", alerts[0].Body)
	}

	list, err := svc.History(ctx, rooms.GasQuery{RoomID: f.room.ID})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(list) != 2 || list[0].GasLevel != 350 || list[1].GasLevel != 120 {
		t.Fatalf("unexpected history %+v", list)
	}
}

func TestSubmitSafeReadingKeepsValveClosed(t *testing.T) {
	f := newFixture(t)
	svc, _ := NewIngestService(f.store, f.options()...)
	ctx := context.Background()
	base := time.Date(2026, 1, 10, 10, 0, 0, 0, time.UTC)

	if _, err := svc.Submit(ctx, f.room.ID, 400, base); err != nil {
		t.Fatalf("submit: %v", err)
	}
	result, err := svc.Submit(ctx, f.room.ID, 50, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.GasDetected || result.ValveOn {
		t.Fatalf("safe reading must clear gas without reopening valve: %+v", result)
	}
}

func TestSubmitDefaultsToNow(t *testing.T) {
	f := newFixture(t)
	svc, _ := NewIngestService(f.store, f.options()...)

	result, err := svc.Submit(context.Background(), f.room.ID, 10, time.Time{})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !result.RecordedAt.Equal(f.clock.Now()) {
		t.Fatalf("expected recorded_at %s, got %s", f.clock.Now(), result.RecordedAt)
	}
}

func TestSubmitUnknownRoom(t *testing.T) {
	f := newFixture(t)
	svc, _ := NewIngestService(f.store, f.options()...)
	if _, err := svc.Submit(context.Background(), 404, 10, time.Time{}); !errors.Is(err, rooms.ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
	if _, err := svc.History(context.Background(), rooms.GasQuery{RoomID: 404}); !errors.Is(err, rooms.ErrRoomNotFound) {
		t.Fatalf("history: expected ErrRoomNotFound, got %v", err)
	}
}

func TestSubmitCustomThreshold(t *testing.T) {
	f := newFixture(t)
	svc, _ := NewIngestService(f.store, f.options(WithThreshold(100))...)
	result, err := svc.Submit(context.Background(), f.room.ID, 150, time.Time{})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !result.GasDetected {
		t.Fatalf("expected detection above custom threshold")
	}
}

func TestSubmitEmptyPushTargetStillNotifies(t *testing.T) {
	f := newFixture(t)
	f.store.SetPushTarget(1, "")
	svc, _ := NewIngestService(f.store, f.options()...)
	if _, err := svc.Submit(context.Background(), f.room.ID, 500, time.Time{}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	alerts := f.notifier.all()
	if len(alerts) != 1 || alerts[0].Target != "" {
		t.Fatalf("expected alert with empty target, got %+v", alerts)
	}
}

func TestConcurrentSubmitsSameHourAcceptOne(t *testing.T) {
	f := newFixture(t)
	svc, _ := NewIngestService(f.store, f.options()...)
	at := time.Date(2026, 1, 10, 12, 5, 0, 0, time.UTC)

	const workers = 20
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		dupes    int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Submit(context.Background(), f.room.ID, float64(i), at.Add(time.Duration(i)*time.Second))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case errors.Is(err, rooms.ErrDuplicateBucket):
				dupes++
			}
		}(i)
	}
	wg.Wait()
	if accepted != 1 || dupes != workers-1 {
		t.Fatalf("expected 1 accepted and %d duplicates, got %d and %d", workers-1, accepted, dupes)
	}
}

func TestRoomLifecycle(t *testing.T) {
	f := newFixture(t)
	roomsSvc, _ := NewRoomService(f.store, f.options()...)
	ingest, _ := NewIngestService(f.store, f.options()...)
	safety, _ := NewSafetyService(f.store, f.options()...)
	ctx := context.Background()

	created, err := roomsSvc.Create(ctx, rooms.Room{Name: "Garage", SpaceType: "home", OwnerID: 1})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.State == nil || !created.State.ValveOn {
		t.Fatalf("expected default status, got %+v", created.State)
	}
	if _, err := roomsSvc.Create(ctx, rooms.Room{OwnerID: 1}); !errors.Is(err, rooms.ErrInvalidRoom) {
		t.Fatalf("expected ErrInvalidRoom, got %v", err)
	}

	list, err := roomsSvc.List(ctx, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 rooms, got %d", len(list))
	}

	if _, err := ingest.Submit(ctx, created.Room.ID, 100, time.Time{}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := roomsSvc.Delete(ctx, 2, created.Room.ID); !errors.Is(err, rooms.ErrRoomNotFound) {
		t.Fatalf("foreign owner delete: expected ErrRoomNotFound, got %v", err)
	}
	if err := roomsSvc.Delete(ctx, 1, created.Room.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := safety.Status(ctx, created.Room.ID); !errors.Is(err, rooms.ErrRoomNotFound) {
		t.Fatalf("status after delete: expected ErrRoomNotFound, got %v", err)
	}
	if readings, _ := f.store.GasReadings().Query(ctx, rooms.GasQuery{RoomID: created.Room.ID}); len(readings) != 0 {
		t.Fatalf("readings must be deleted with the room")
	}
	if state, _ := f.store.SafetyStates().Get(ctx, created.Room.ID); state != nil {
		t.Fatalf("status must be deleted with the room")
	}
}
