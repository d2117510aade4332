package history

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/taxilian/envlog/internal/model"
)

// fakeStore records every call and fails when err is set.
type fakeStore struct {
	mu       sync.Mutex
	calls    []string
	err      error
	nextID   int
	renumber bool          // assign a fresh id to every create
	block    chan struct{} // when set, calls wait for it to close
}

func (s *fakeStore) record(call string) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
	return s.err
}

func (s *fakeStore) Create(ctx context.Context, r model.Record) (model.Record, error) {
	if err := s.record(fmt.Sprintf("create(%d,%.0f,%.0f)", r.ID, r.Temperature, r.Humidity)); err != nil {
		return model.Record{}, err
	}
	if r.ID == 0 || s.renumber {
		s.nextID++
		r.ID = s.nextID
	}
	return r, nil
}

func (s *fakeStore) Update(ctx context.Context, r model.Record) (model.Record, error) {
	if err := s.record(fmt.Sprintf("update(%d,%.0f)", r.ID, r.Temperature)); err != nil {
		return model.Record{}, err
	}
	return r, nil
}

func (s *fakeStore) Delete(ctx context.Context, id int) error {
	return s.record(fmt.Sprintf("delete(%d)", id))
}

func (s *fakeStore) List(ctx context.Context) ([]model.Record, error) {
	return nil, s.record("list")
}

func (s *fakeStore) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// memKV is an in-memory KV whose writes can be made to fail.
type memKV struct {
	data    map[string]string
	setErr  error
	getErr  error
	setCall int
}

func newMemKV() *memKV { return &memKV{data: map[string]string{}} }

func (kv *memKV) Get(key string) (string, bool, error) {
	if kv.getErr != nil {
		return "", false, kv.getErr
	}
	v, ok := kv.data[key]
	return v, ok, nil
}

func (kv *memKV) Set(key, value string) error {
	kv.setCall++
	if kv.setErr != nil {
		return kv.setErr
	}
	kv.data[key] = value
	return nil
}

func reading(id int, temp, humidity float64) model.Record {
	return model.Record{
		ID:          id,
		Date:        "2025-03-09",
		Time:        "08:00",
		Shift:       model.ShiftMorning,
		Day:         9,
		Temperature: temp,
		Humidity:    humidity,
		Person:      "Ana",
	}
}

func setupManager(t *testing.T, opts ...Option) (*Manager, *fakeStore, *memKV) {
	t.Helper()
	store := &fakeStore{nextID: 100}
	kv := newMemKV()
	m := New(store, kv, opts...)
	if err := m.Load(); err != nil {
		t.Fatalf("failed to load: %v", err)
	}
	return m, store, kv
}

func mustRecord(t *testing.T, m *Manager, action model.Action, data model.Record, before *model.Record) model.ChangeRecord {
	t.Helper()
	c, err := m.Record(action, data, before)
	if err != nil {
		t.Fatalf("record %s: %v", action, err)
	}
	return c
}

func ids(stack []model.ChangeRecord) []int {
	out := make([]int, len(stack))
	for i, c := range stack {
		out[i] = c.Data.ID
	}
	return out
}

func TestUndo_CreateIssuesDelete(t *testing.T) {
	m, store, _ := setupManager(t)
	mustRecord(t, m, model.ActionCreate, reading(1, 20, 50), nil)
	mustRecord(t, m, model.ActionCreate, reading(2, 22, 50), nil)

	change, err := m.Undo(context.Background())
	if err != nil {
		t.Fatalf("undo: %v", err)
	}
	if change.Data.ID != 2 {
		t.Errorf("undid record %d, want 2", change.Data.ID)
	}
	if got := store.Calls(); !reflect.DeepEqual(got, []string{"delete(2)"}) {
		t.Errorf("calls = %v, want [delete(2)]", got)
	}
	if got := ids(m.History()); !reflect.DeepEqual(got, []int{1}) {
		t.Errorf("undo stack = %v, want [1]", got)
	}
	if got := ids(m.Undone()); !reflect.DeepEqual(got, []int{2}) {
		t.Errorf("redo stack = %v, want [2]", got)
	}
}

func TestUndo_DeleteRecreatesOriginal(t *testing.T) {
	m, store, _ := setupManager(t)
	mustRecord(t, m, model.ActionDelete, reading(5, 19, 60), nil)

	if _, err := m.Undo(context.Background()); err != nil {
		t.Fatalf("undo: %v", err)
	}
	if got := store.Calls(); !reflect.DeepEqual(got, []string{"create(5,19,60)"}) {
		t.Errorf("calls = %v, want [create(5,19,60)]", got)
	}
}

func TestUndo_UpdateUsesPreImage(t *testing.T) {
	m, store, _ := setupManager(t)
	before := reading(7, 18, 50)
	mustRecord(t, m, model.ActionUpdate, reading(7, 25, 50), &before)

	if _, err := m.Undo(context.Background()); err != nil {
		t.Fatalf("undo: %v", err)
	}
	if _, err := m.Redo(context.Background()); err != nil {
		t.Fatalf("redo: %v", err)
	}
	want := []string{"update(7,18)", "update(7,25)"}
	if got := store.Calls(); !reflect.DeepEqual(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
}

func TestUndo_UpdateWithoutPreImageReplays(t *testing.T) {
	m, store, _ := setupManager(t)
	mustRecord(t, m, model.ActionUpdate, reading(7, 25, 50), nil)

	if _, err := m.Undo(context.Background()); err != nil {
		t.Fatalf("undo: %v", err)
	}
	if got := store.Calls(); !reflect.DeepEqual(got, []string{"update(7,25)"}) {
		t.Errorf("calls = %v, want [update(7,25)]", got)
	}
}

func TestUndo_EmptyHistory(t *testing.T) {
	m, store, _ := setupManager(t)

	_, err := m.Undo(context.Background())
	if !errors.Is(err, ErrEmptyHistory) {
		t.Fatalf("expected ErrEmptyHistory, got %v", err)
	}
	if len(store.Calls()) != 0 {
		t.Errorf("expected no remote calls, got %v", store.Calls())
	}

	_, err = m.Redo(context.Background())
	if !errors.Is(err, ErrEmptyHistory) {
		t.Fatalf("expected ErrEmptyHistory from redo, got %v", err)
	}
}

func TestUndo_FailureRollsBack(t *testing.T) {
	m, store, kv := setupManager(t)
	mustRecord(t, m, model.ActionCreate, reading(1, 20, 50), nil)
	mustRecord(t, m, model.ActionDelete, reading(2, 21, 51), nil)
	mustRecord(t, m, model.ActionCreate, reading(3, 22, 52), nil)
	if _, err := m.Undo(context.Background()); err != nil {
		t.Fatalf("setup undo: %v", err)
	}

	undoBefore, redoBefore := m.History(), m.Undone()
	persisted := kv.data[StorageKey]

	store.err = errors.New("network down")
	_, err := m.Undo(context.Background())

	var rce *RemoteCallError
	if !errors.As(err, &rce) {
		t.Fatalf("expected RemoteCallError, got %v", err)
	}
	if rce.Op != "undo" || rce.Change.Data.ID != 2 {
		t.Errorf("unexpected error details: %+v", rce)
	}
	if !strings.Contains(err.Error(), "network down") {
		t.Errorf("error should carry the reason, got %q", err.Error())
	}
	if !reflect.DeepEqual(m.History(), undoBefore) {
		t.Errorf("undo stack changed after failed undo")
	}
	if !reflect.DeepEqual(m.Undone(), redoBefore) {
		t.Errorf("redo stack changed after failed undo")
	}
	if kv.data[StorageKey] != persisted {
		t.Errorf("persisted history changed after failed undo")
	}
}

func TestRedo_FailureRollsBack(t *testing.T) {
	m, store, _ := setupManager(t)
	mustRecord(t, m, model.ActionCreate, reading(1, 20, 50), nil)
	mustRecord(t, m, model.ActionCreate, reading(2, 21, 50), nil)
	if _, err := m.Undo(context.Background()); err != nil {
		t.Fatalf("setup undo: %v", err)
	}
	undoBefore, redoBefore := m.History(), m.Undone()

	store.err = errors.New("HTTP 500")
	if _, err := m.Redo(context.Background()); err == nil {
		t.Fatal("expected redo to fail")
	}
	if !reflect.DeepEqual(m.History(), undoBefore) || !reflect.DeepEqual(m.Undone(), redoBefore) {
		t.Errorf("stacks changed after failed redo")
	}

	store.err = nil
	if _, err := m.Redo(context.Background()); err != nil {
		t.Fatalf("retry redo: %v", err)
	}
	if got := ids(m.History()); !reflect.DeepEqual(got, []int{2, 1}) {
		t.Errorf("undo stack after retry = %v, want [2 1]", got)
	}
}

func TestUndoThenRedo_RestoresStacks(t *testing.T) {
	m, store, _ := setupManager(t)
	before := reading(3, 20, 40)
	mustRecord(t, m, model.ActionCreate, reading(1, 20, 50), nil)
	mustRecord(t, m, model.ActionDelete, reading(2, 21, 51), nil)
	mustRecord(t, m, model.ActionUpdate, reading(3, 22, 52), &before)
	mustRecord(t, m, model.ActionCreate, reading(4, 23, 53), nil)
	if _, err := m.Undo(context.Background()); err != nil {
		t.Fatalf("setup undo: %v", err)
	}

	for _, n := range []int{1, 2, 3} {
		undoBefore, redoBefore := m.History(), m.Undone()
		for i := 0; i < n; i++ {
			if _, err := m.Undo(context.Background()); err != nil {
				t.Fatalf("undo: %v", err)
			}
		}
		for i := 0; i < n; i++ {
			if _, err := m.Redo(context.Background()); err != nil {
				t.Fatalf("redo: %v", err)
			}
		}
		if !reflect.DeepEqual(m.History(), undoBefore) {
			t.Errorf("n=%d: undo stack not restored:\n got  %v\n want %v", n, ids(m.History()), ids(undoBefore))
		}
		if !reflect.DeepEqual(m.Undone(), redoBefore) {
			t.Errorf("n=%d: redo stack not restored", n)
		}
	}
	if len(store.Calls()) != 13 {
		t.Errorf("expected 13 remote calls, got %d", len(store.Calls()))
	}
}

func TestRedo_Dispatch(t *testing.T) {
	m, store, _ := setupManager(t)
	mustRecord(t, m, model.ActionCreate, reading(1, 20, 50), nil)
	mustRecord(t, m, model.ActionDelete, reading(2, 21, 51), nil)

	for i := 0; i < 2; i++ {
		if _, err := m.Undo(context.Background()); err != nil {
			t.Fatalf("undo: %v", err)
		}
	}
	for i := 0; i < 2; i++ {
		if _, err := m.Redo(context.Background()); err != nil {
			t.Fatalf("redo: %v", err)
		}
	}

	want := []string{"create(2,21,51)", "delete(1)", "create(1,20,50)", "delete(2)"}
	if got := store.Calls(); !reflect.DeepEqual(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
}

func TestRedo_CreateFollowsReassignedID(t *testing.T) {
	m, store, _ := setupManager(t)
	mustRecord(t, m, model.ActionCreate, reading(8, 20, 50), nil)
	if _, err := m.Undo(context.Background()); err != nil {
		t.Fatalf("undo: %v", err)
	}
	store.renumber = true
	store.nextID = 41

	change, err := m.Redo(context.Background())
	if err != nil {
		t.Fatalf("redo: %v", err)
	}
	if change.Data.ID != 42 {
		t.Errorf("redo returned id %d, want 42", change.Data.ID)
	}
	if got := ids(m.History()); !reflect.DeepEqual(got, []int{42}) {
		t.Errorf("undo stack = %v, want [42]", got)
	}

	if _, err := m.Undo(context.Background()); err != nil {
		t.Fatalf("second undo: %v", err)
	}
	calls := store.Calls()
	if calls[len(calls)-1] != "delete(42)" {
		t.Errorf("last call = %q, want delete(42)", calls[len(calls)-1])
	}
}

func TestUndo_RecreateRetargetsOlderEntries(t *testing.T) {
	m, store, _ := setupManager(t)
	ctx := context.Background()
	mustRecord(t, m, model.ActionCreate, reading(8, 20, 50), nil)
	before := reading(8, 20, 50)
	mustRecord(t, m, model.ActionUpdate, reading(8, 24, 50), &before)
	mustRecord(t, m, model.ActionCreate, reading(9, 18, 40), nil)
	mustRecord(t, m, model.ActionDelete, reading(8, 24, 50), nil)
	store.renumber = true
	store.nextID = 41

	change, err := m.Undo(ctx)
	if err != nil {
		t.Fatalf("undo delete: %v", err)
	}
	if change.Data.ID != 42 {
		t.Fatalf("recreated under %d, want 42", change.Data.ID)
	}
	if got := ids(m.History()); !reflect.DeepEqual(got, []int{9, 42, 42}) {
		t.Errorf("undo stack = %v, want [9 42 42]", got)
	}
	if got := m.History()[1].Before; got == nil || got.ID != 42 {
		t.Errorf("pre-image not retargeted: %+v", got)
	}

	store.renumber = false
	for i := 0; i < 3; i++ {
		if _, err := m.Undo(ctx); err != nil {
			t.Fatalf("undo %d: %v", i, err)
		}
	}
	calls := store.Calls()
	want := []string{"delete(9)", "update(42,20)", "delete(42)"}
	if got := calls[len(calls)-3:]; !reflect.DeepEqual(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
}

func TestRedo_RecreateRetargetsNewerEntries(t *testing.T) {
	m, store, _ := setupManager(t)
	ctx := context.Background()
	mustRecord(t, m, model.ActionCreate, reading(8, 20, 50), nil)
	before := reading(8, 20, 50)
	mustRecord(t, m, model.ActionUpdate, reading(8, 24, 50), &before)
	mustRecord(t, m, model.ActionCreate, reading(9, 18, 40), nil)
	for i := 0; i < 3; i++ {
		if _, err := m.Undo(ctx); err != nil {
			t.Fatalf("undo %d: %v", i, err)
		}
	}
	store.renumber = true
	store.nextID = 41

	if _, err := m.Redo(ctx); err != nil {
		t.Fatalf("redo create: %v", err)
	}
	if got := ids(m.Undone()); !reflect.DeepEqual(got, []int{42, 9}) {
		t.Errorf("redo stack = %v, want [42 9]", got)
	}
	if got := ids(m.History()); !reflect.DeepEqual(got, []int{42}) {
		t.Errorf("undo stack = %v, want [42]", got)
	}
}

func TestUndo_CreateWithoutIDFails(t *testing.T) {
	m, store, _ := setupManager(t)
	mustRecord(t, m, model.ActionCreate, reading(0, 20, 50), nil)

	_, err := m.Undo(context.Background())
	if !errors.Is(err, model.ErrMissingID) {
		t.Fatalf("expected ErrMissingID, got %v", err)
	}
	if len(store.Calls()) != 0 {
		t.Errorf("expected no remote call, got %v", store.Calls())
	}
	if !m.CanUndo() || m.CanRedo() {
		t.Errorf("expected stacks rolled back")
	}
}

func TestRecord_BoundEvictsOldest(t *testing.T) {
	m, _, _ := setupManager(t)
	for i := 1; i <= MaxHistory; i++ {
		mustRecord(t, m, model.ActionCreate, reading(i, 20, 50), nil)
	}
	if n := len(m.History()); n != MaxHistory {
		t.Fatalf("expected %d entries, got %d", MaxHistory, n)
	}

	mustRecord(t, m, model.ActionUpdate, reading(999, 30, 50), nil)

	hist := m.History()
	if len(hist) != MaxHistory {
		t.Fatalf("size = %d, want %d", len(hist), MaxHistory)
	}
	if hist[0].Action != model.ActionUpdate || hist[0].Data.ID != 999 {
		t.Errorf("newest entry = %+v, want the pushed update", hist[0])
	}
	if oldest := hist[len(hist)-1]; oldest.Data.ID != 2 {
		t.Errorf("oldest entry id = %d, want 2 (id 1 evicted)", oldest.Data.ID)
	}
}

func TestRecord_BoundHoldsForAnySequence(t *testing.T) {
	m, _, _ := setupManager(t, WithMaxHistory(5))
	for i := 1; i <= 23; i++ {
		mustRecord(t, m, model.ActionCreate, reading(i, 20, 50), nil)
		if n := len(m.History()); n > 5 {
			t.Fatalf("after %d records size = %d", i, n)
		}
		if i%4 == 0 {
			if _, err := m.Undo(context.Background()); err != nil {
				t.Fatalf("undo: %v", err)
			}
		}
	}
	got := ids(m.History())
	if want := []int{23, 22, 21, 19, 18}; !reflect.DeepEqual(got, want) {
		t.Errorf("history = %v, want %v", got, want)
	}
}

func TestRecord_ClearsRedo(t *testing.T) {
	m, _, _ := setupManager(t)
	mustRecord(t, m, model.ActionCreate, reading(1, 20, 50), nil)
	mustRecord(t, m, model.ActionCreate, reading(2, 20, 50), nil)
	for i := 0; i < 2; i++ {
		if _, err := m.Undo(context.Background()); err != nil {
			t.Fatalf("undo: %v", err)
		}
	}
	if !m.CanRedo() {
		t.Fatal("expected redo entries")
	}

	mustRecord(t, m, model.ActionCreate, reading(3, 20, 50), nil)
	if m.CanRedo() {
		t.Errorf("redo stack not cleared: %v", ids(m.Undone()))
	}
}

func TestRecord_StampsTimestamp(t *testing.T) {
	fixed := time.Date(2025, 3, 9, 12, 0, 0, 0, time.UTC)
	m, _, _ := setupManager(t, WithClock(func() time.Time { return fixed }))
	c := mustRecord(t, m, model.ActionCreate, reading(1, 20, 50), nil)
	if !c.Timestamp.Equal(fixed) {
		t.Errorf("timestamp = %v, want %v", c.Timestamp, fixed)
	}
}

func TestRecord_PersistenceWarning(t *testing.T) {
	m, _, kv := setupManager(t)
	kv.setErr = errors.New("disk full")

	c, err := m.Record(model.ActionCreate, reading(1, 20, 50), nil)
	if err == nil {
		t.Fatal("expected persistence warning")
	}
	if !IsWarning(err) {
		t.Errorf("expected PersistenceWarning, got %T", err)
	}
	if c.Data.ID != 1 || len(m.History()) != 1 {
		t.Errorf("in-memory change should stand")
	}
}

func TestUndo_PersistenceWarningKeepsTransfer(t *testing.T) {
	m, _, kv := setupManager(t)
	mustRecord(t, m, model.ActionCreate, reading(1, 20, 50), nil)
	kv.setErr = errors.New("disk full")

	_, err := m.Undo(context.Background())
	if !IsWarning(err) {
		t.Fatalf("expected PersistenceWarning, got %v", err)
	}
	if m.CanUndo() || !m.CanRedo() {
		t.Errorf("transfer should stand despite persistence failure")
	}
}

func TestPersistAndLoad(t *testing.T) {
	m, store, kv := setupManager(t)
	before := reading(3, 18, 40)
	mustRecord(t, m, model.ActionCreate, reading(1, 20, 50), nil)
	mustRecord(t, m, model.ActionUpdate, reading(3, 22, 52), &before)
	if _, err := m.Undo(context.Background()); err != nil {
		t.Fatalf("undo: %v", err)
	}

	reloaded := New(store, kv)
	if err := reloaded.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := ids(reloaded.History()); !reflect.DeepEqual(got, []int{1}) {
		t.Errorf("reloaded history = %v, want [1]", got)
	}
	if reloaded.CanRedo() {
		t.Errorf("redo stack must not be persisted")
	}
	got, want := reloaded.History()[0], m.History()[0]
	if got.ID != want.ID || got.Data != want.Data || !got.Timestamp.Equal(want.Timestamp) {
		t.Errorf("reloaded entry differs:\n got  %+v\n want %+v", got, want)
	}
}

func TestLoad_Corrupt(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "{oops"},
		{"bad action", `[{"action":"rename","data":{"id":1},"timestamp":"2025-01-01T00:00:00Z"}]`},
		{"delete without id", `[{"action":"delete","data":{"id":""},"timestamp":"2025-01-01T00:00:00Z"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kv := newMemKV()
			kv.data[StorageKey] = tt.raw
			m := New(&fakeStore{}, kv)
			err := m.Load()
			if !errors.Is(err, ErrCorruptHistory) {
				t.Fatalf("expected ErrCorruptHistory, got %v", err)
			}
			if m.CanUndo() {
				t.Errorf("history should start empty")
			}
		})
	}
}

func TestLoad_BrowserFormat(t *testing.T) {
	// Entries written by the browser client: string fields, no change id.
	raw := `[
		{"action":"create","data":{"id":"","fecha":"2025-03-01","hora":"08:00","jornada":"MAÑANA","dia":"1","temperatura":"20","humedad":"50","persona":"Ana","observaciones":""},"timestamp":"2025-03-01T08:01:02.123Z"},
		{"action":"delete","data":{"id":4,"fecha":"2025-03-01","hora":"14:30","jornada":"TARDE","dia":1,"temperatura":21,"humedad":55,"persona":"Luis","observaciones":"-"},"timestamp":"2025-03-01T14:31:00.000Z"}
	]`
	kv := newMemKV()
	kv.data[StorageKey] = raw
	m := New(&fakeStore{}, kv)
	if err := m.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	hist := m.History()
	if len(hist) != 2 || hist[0].Action != model.ActionDelete || hist[0].Data.ID != 4 {
		t.Errorf("unexpected history: %+v", hist)
	}
}

func TestLoad_TruncatesToBound(t *testing.T) {
	m, store, kv := setupManager(t)
	for i := 1; i <= 10; i++ {
		mustRecord(t, m, model.ActionCreate, reading(i, 20, 50), nil)
	}
	small := New(store, kv, WithMaxHistory(3))
	if err := small.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := ids(small.History()); !reflect.DeepEqual(got, []int{10, 9, 8}) {
		t.Errorf("history = %v, want [10 9 8]", got)
	}
}

func TestLoad_ReadError(t *testing.T) {
	kv := newMemKV()
	kv.getErr = errors.New("locked")
	m := New(&fakeStore{}, kv)
	if err := m.Load(); err == nil || errors.Is(err, ErrCorruptHistory) {
		t.Errorf("expected plain read error, got %v", err)
	}
}

func TestHistory_DoesNotMutate(t *testing.T) {
	m, _, kv := setupManager(t)
	mustRecord(t, m, model.ActionCreate, reading(1, 20, 50), nil)
	writes := kv.setCall

	h := m.History()
	h[0].Data.ID = 77

	if m.History()[0].Data.ID != 1 {
		t.Errorf("History returned a view into the stack")
	}
	if kv.setCall != writes {
		t.Errorf("History wrote to storage")
	}
}

func TestClear(t *testing.T) {
	m, _, kv := setupManager(t)
	mustRecord(t, m, model.ActionCreate, reading(1, 20, 50), nil)
	if err := m.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if m.CanUndo() || kv.data[StorageKey] != "[]" {
		t.Errorf("expected empty history, stored %q", kv.data[StorageKey])
	}
}

func TestUndo_BusyWhileInFlight(t *testing.T) {
	m, store, _ := setupManager(t)
	mustRecord(t, m, model.ActionCreate, reading(1, 20, 50), nil)
	mustRecord(t, m, model.ActionCreate, reading(2, 20, 50), nil)

	store.block = make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := m.Undo(context.Background())
		done <- err
	}()

	// Wait until the first undo has moved its entry.
	deadline := time.Now().Add(2 * time.Second)
	for !m.CanRedo() {
		if time.Now().After(deadline) {
			t.Fatal("first undo never started")
		}
		time.Sleep(time.Millisecond)
	}

	if _, err := m.Undo(context.Background()); !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy, got %v", err)
	}
	if _, err := m.Redo(context.Background()); !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy from redo, got %v", err)
	}
	if got := ids(m.History()); !reflect.DeepEqual(got, []int{1}) {
		t.Errorf("pending state should show the optimistic move, got %v", got)
	}

	close(store.block)
	if err := <-done; err != nil {
		t.Fatalf("first undo: %v", err)
	}
}

func TestUndo_Timeout(t *testing.T) {
	store := &slowStore{}
	kv := newMemKV()
	m := New(store, kv, WithCallTimeout(10*time.Millisecond))
	if _, err := m.Record(model.ActionCreate, reading(1, 20, 50), nil); err != nil {
		t.Fatalf("record: %v", err)
	}

	_, err := m.Undo(context.Background())
	var rce *RemoteCallError
	if !errors.As(err, &rce) || !rce.Timeout() {
		t.Fatalf("expected timed-out RemoteCallError, got %v", err)
	}
	if !m.CanUndo() {
		t.Errorf("entry should be back on the undo stack")
	}
}

// slowStore blocks until the context is done.
type slowStore struct{ fakeStore }

func (s *slowStore) Delete(ctx context.Context, id int) error {
	<-ctx.Done()
	return ctx.Err()
}
