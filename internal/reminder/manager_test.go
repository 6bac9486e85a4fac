package reminder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"healthvault/internal/eventbus"
	"healthvault/internal/storage"
	logx "healthvault/pkg/logx"
)

type fakeScheduler struct {
	mu        sync.Mutex
	seq       int
	live      map[string]Request
	requests  []Request
	cancels   []string
	regErr    error
	cancelErr error
	block     bool
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{live: map[string]Request{}}
}

func (f *fakeScheduler) Register(ctx context.Context, req Request) (string, error) {
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.regErr != nil {
		return "", f.regErr
	}
	f.seq++
	id := fmt.Sprintf("notif-%d", f.seq)
	f.live[id] = req
	return id, nil
}

func (f *fakeScheduler) Cancel(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels = append(f.cancels, id)
	if f.cancelErr != nil {
		return f.cancelErr
	}
	delete(f.live, id)
	return nil
}

func (f *fakeScheduler) Live(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.live))
	for id := range f.live {
		out = append(out, id)
	}
	return out, nil
}

// failingBlobs fails writes after the first n succeed.
type failingBlobs struct {
	*storage.Memory
	okWrites int
}

func (b *failingBlobs) Set(ctx context.Context, key string, v []byte) error {
	if b.okWrites <= 0 {
		return errors.New("disk full")
	}
	b.okWrites--
	return b.Memory.Set(ctx, key, v)
}

var testNow = time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC)

func newTestManager(t *testing.T, sched Scheduler, kv Blobs) (*Manager, eventbus.Bus) {
	t.Helper()
	if kv == nil {
		kv = storage.NewMemory()
	}
	bus := eventbus.New()
	m := NewManager(Config{},
		NewStore(kv, StoreConfig{}, logx.Nop()),
		NewPlanner(time.UTC, fixedClock(testNow)),
		sched, logx.Nop(), bus)
	return m, bus
}

func mustList(t *testing.T, m *Manager) []Reminder {
	t.Helper()
	list, err := m.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	return list
}

func TestCreateThenList(t *testing.T) {
	t.Parallel()
	sched := newFakeScheduler()
	m, bus := newTestManager(t, sched, nil)
	events, unsub := bus.Subscribe(4, EventCreated)
	defer unsub()

	at := testNow.Add(5 * time.Minute)
	r, err := m.Create(context.Background(), "Take pill", at, false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if r.ID != "notif-1" {
		t.Fatalf("id = %q, want scheduler id notif-1", r.ID)
	}

	list := mustList(t, m)
	if len(list) != 1 {
		t.Fatalf("List has %d entries, want 1", len(list))
	}
	got := list[0]
	if got.Text != "Take pill" || got.IsRecurring || !got.FireTime.Equal(at) || got.ID != r.ID {
		t.Fatalf("stored reminder = %+v", got)
	}

	req := sched.requests[0]
	if req.Title != DefaultTitle || req.Body != "Take pill" {
		t.Fatalf("request content = %q/%q", req.Title, req.Body)
	}
	want := Trigger{Year: 2026, Month: time.October, Day: 15, Hour: 8, Minute: 5}
	if req.Trigger != want {
		t.Fatalf("trigger = %+v, want %+v", req.Trigger, want)
	}
	if len(events) != 1 {
		t.Fatalf("expected one created event, got %d", len(events))
	}
}

func TestCreateDailySendsHourMinuteOnly(t *testing.T) {
	t.Parallel()
	sched := newFakeScheduler()
	m, _ := newTestManager(t, sched, nil)

	tomorrow9 := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	if _, err := m.Create(context.Background(), "Vitamin", tomorrow9, true); err != nil {
		t.Fatalf("Create: %v", err)
	}
	got := sched.requests[0].Trigger
	if got != (Trigger{Hour: 9, Minute: 0, Repeats: true}) {
		t.Fatalf("trigger = %+v, want {hour:9 minute:0 repeats:true}", got)
	}
	if list := mustList(t, m); len(list) != 1 || !list[0].IsRecurring {
		t.Fatalf("List = %+v", list)
	}
}

func TestCreateValidationLeavesStoreUnchanged(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		text string
		at   time.Time
		want error
	}{
		{name: "empty text", text: "", at: testNow.Add(time.Hour), want: ErrEmptyText},
		{name: "blank text", text: "   \t", at: testNow.Add(time.Hour), want: ErrEmptyText},
		{name: "yesterday", text: "x", at: testNow.AddDate(0, 0, -1), want: ErrInvalidSchedule},
		{name: "now", text: "x", at: testNow, want: ErrInvalidSchedule},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			sched := newFakeScheduler()
			m, _ := newTestManager(t, sched, nil)
			if _, err := m.Create(context.Background(), "keep", testNow.Add(time.Hour), false); err != nil {
				t.Fatalf("seed Create: %v", err)
			}
			before := mustList(t, m)

			_, err := m.Create(context.Background(), tt.text, tt.at, false)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if len(sched.requests) != 1 {
				t.Fatalf("scheduler saw %d requests, want only the seed", len(sched.requests))
			}
			after := mustList(t, m)
			if len(after) != len(before) || !after[0].Equal(before[0]) {
				t.Fatalf("store changed: before %+v after %+v", before, after)
			}
		})
	}
}

func TestCreateAdapterFailureDoesNotPersist(t *testing.T) {
	t.Parallel()
	sched := newFakeScheduler()
	sched.regErr = errors.New("permission denied")
	m, _ := newTestManager(t, sched, nil)

	_, err := m.Create(context.Background(), "x", testNow.Add(time.Hour), false)
	if !errors.Is(err, ErrAdapterRegistration) {
		t.Fatalf("err = %v, want ErrAdapterRegistration", err)
	}
	if list := mustList(t, m); len(list) != 0 {
		t.Fatalf("store has %d entries after failed registration", len(list))
	}
}

func TestCreateRegisterTimeout(t *testing.T) {
	t.Parallel()
	sched := newFakeScheduler()
	sched.block = true
	m, _ := newTestManager(t, sched, nil)
	m.Apply(Config{RegisterTimeout: 20 * time.Millisecond})

	_, err := m.Create(context.Background(), "x", testNow.Add(time.Hour), false)
	if !errors.Is(err, ErrAdapterRegistration) {
		t.Fatalf("err = %v, want ErrAdapterRegistration", err)
	}
}

func TestCreateRollsBackWhenStoreWriteFails(t *testing.T) {
	t.Parallel()
	sched := newFakeScheduler()
	m, _ := newTestManager(t, sched, &failingBlobs{Memory: storage.NewMemory()})

	_, err := m.Create(context.Background(), "x", testNow.Add(time.Hour), false)
	if !errors.Is(err, ErrStorePersist) {
		t.Fatalf("err = %v, want ErrStorePersist", err)
	}
	if len(sched.cancels) != 1 || sched.cancels[0] != "notif-1" {
		t.Fatalf("expected rollback cancel of notif-1, got %v", sched.cancels)
	}
	if live, _ := sched.Live(context.Background()); len(live) != 0 {
		t.Fatalf("orphan registrations left: %v", live)
	}
}

func TestDeleteRemovesExactlyThatEntry(t *testing.T) {
	t.Parallel()
	sched := newFakeScheduler()
	m, _ := newTestManager(t, sched, nil)
	ctx := context.Background()

	var ids []string
	for _, text := range []string{"a", "b", "c"} {
		r, err := m.Create(ctx, text, testNow.Add(time.Hour), false)
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		ids = append(ids, r.ID)
	}

	if err := m.Delete(ctx, ids[1]); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	list := mustList(t, m)
	if len(list) != 2 || list[0].ID != ids[0] || list[1].ID != ids[2] {
		t.Fatalf("List after delete = %+v", list)
	}
	if len(sched.cancels) != 1 || sched.cancels[0] != ids[1] {
		t.Fatalf("cancels = %v", sched.cancels)
	}

	// Idempotent: a second delete changes nothing and does not hit the scheduler.
	if err := m.Delete(ctx, ids[1]); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
	again := mustList(t, m)
	if len(again) != 2 || len(sched.cancels) != 1 {
		t.Fatalf("second delete changed state: list=%+v cancels=%v", again, sched.cancels)
	}
}

func TestDeleteUnknownIsNoop(t *testing.T) {
	t.Parallel()
	sched := newFakeScheduler()
	m, _ := newTestManager(t, sched, nil)
	ctx := context.Background()
	if _, err := m.Create(ctx, "a", testNow.Add(time.Hour), true); err != nil {
		t.Fatalf("Create: %v", err)
	}
	before := mustList(t, m)
	if err := m.Delete(ctx, "missing"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	after := mustList(t, m)
	if len(after) != 1 || !after[0].Equal(before[0]) {
		t.Fatalf("list changed: %+v", after)
	}
}

func TestDeleteProceedsWhenCancelFails(t *testing.T) {
	t.Parallel()
	sched := newFakeScheduler()
	m, _ := newTestManager(t, sched, nil)
	ctx := context.Background()
	r, err := m.Create(ctx, "a", testNow.Add(time.Hour), false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	sched.cancelErr = errors.New("unknown id")
	if err := m.Delete(ctx, r.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if list := mustList(t, m); len(list) != 0 {
		t.Fatalf("reminder still listed: %+v", list)
	}
}

func TestReconcilePrunesFiredReminders(t *testing.T) {
	t.Parallel()
	sched := newFakeScheduler()
	m, _ := newTestManager(t, sched, nil)
	ctx := context.Background()
	a, _ := m.Create(ctx, "a", testNow.Add(time.Hour), false)
	b, _ := m.Create(ctx, "b", testNow.Add(time.Hour), true)

	// Simulate the one-shot firing inside the scheduler.
	sched.mu.Lock()
	delete(sched.live, a.ID)
	sched.mu.Unlock()

	pruned, err := m.Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(pruned) != 1 || pruned[0].ID != a.ID {
		t.Fatalf("pruned = %+v", pruned)
	}
	if list := mustList(t, m); len(list) != 1 || list[0].ID != b.ID {
		t.Fatalf("List after reconcile = %+v", list)
	}
	if len(sched.cancels) != 0 {
		t.Fatalf("reconcile must not cancel anything, got %v", sched.cancels)
	}
}

func TestReconcileUnsupported(t *testing.T) {
	t.Parallel()
	var s Scheduler = struct{ Scheduler }{newFakeScheduler()}
	m, _ := newTestManager(t, s, nil)
	if _, err := m.Reconcile(context.Background()); !errors.Is(err, ErrReconcileUnsupported) {
		t.Fatalf("err = %v, want ErrReconcileUnsupported", err)
	}
}

func TestStrictCorruptStoreBlocksCreate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	kv := storage.NewMemory()
	_ = kv.Set(ctx, DefaultStorageKey, []byte("garbage"))
	sched := newFakeScheduler()
	m := NewManager(Config{}, NewStore(kv, StoreConfig{Strict: true}, logx.Nop()),
		NewPlanner(time.UTC, fixedClock(testNow)), sched, logx.Nop(), nil)

	if _, err := m.Create(ctx, "x", testNow.Add(time.Hour), false); !errors.Is(err, ErrStoreCorrupt) {
		t.Fatalf("err = %v, want ErrStoreCorrupt", err)
	}
	if len(sched.requests) != 0 {
		t.Fatal("nothing should be registered while the store is corrupt")
	}
	b, _, _ := kv.Get(ctx, DefaultStorageKey)
	if string(b) != "garbage" {
		t.Fatalf("corrupt blob was overwritten: %q", b)
	}
}

func TestGet(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(t, newFakeScheduler(), nil)
	ctx := context.Background()
	r, _ := m.Create(ctx, "a", testNow.Add(time.Hour), false)
	got, ok, err := m.Get(ctx, r.ID)
	if err != nil || !ok || !got.Equal(r) {
		t.Fatalf("Get = %+v, %v, %v", got, ok, err)
	}
	if _, ok, _ := m.Get(ctx, "nope"); ok {
		t.Fatal("Get found a missing id")
	}
}

func TestCreateFarFutureKeepsExistingReminders(t *testing.T) {
	t.Parallel()
	sched := newFakeScheduler()
	m, _ := newTestManager(t, sched, nil)
	ctx := context.Background()
	near, err := m.Create(ctx, "near", testNow.Add(time.Hour), false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := m.Create(ctx, "far", time.Date(10000, 1, 2, 9, 0, 0, 0, time.UTC), false); !errors.Is(err, ErrInvalidSchedule) {
		t.Fatalf("far Create err = %v, want ErrInvalidSchedule", err)
	}
	list := mustList(t, m)
	if len(list) != 1 || list[0].ID != near.ID {
		t.Fatalf("list = %+v, want only %s", list, near.ID)
	}
	if live, _ := sched.Live(ctx); len(live) != 1 {
		t.Fatalf("live = %v, want one registration", live)
	}
}
