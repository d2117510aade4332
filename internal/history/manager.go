// Package history keeps the local undo/redo log of changes made on the
// remote record store.
//
// A Manager is created once per process with New, initialized from the
// persistent store with Load, and passed to whatever drives user actions.
// Callers apply a mutation on the RemoteStore first and call Record only
// after it succeeded; Undo and Redo issue the inverse call themselves.
package history

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/taxilian/envlog/internal/model"
)

const (
	// MaxHistory bounds the undo stack; the oldest entry is evicted beyond it.
	MaxHistory = 50
	// StorageKey is the PersistentKV key holding the serialized undo stack.
	StorageKey = "changeHistory"
)

// RemoteStore is the record endpoint the inverse operations are issued against.
type RemoteStore interface {
	Create(ctx context.Context, r model.Record) (model.Record, error)
	Update(ctx context.Context, r model.Record) (model.Record, error)
	Delete(ctx context.Context, id int) error
	List(ctx context.Context) ([]model.Record, error)
}

// KV is durable string storage for the undo stack.
type KV interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
}

// Manager owns the undo and redo stacks.
//
// Undo and Redo move the entry between stacks before issuing the remote
// call, so while the call is pending History already reflects the move.
// A second Undo/Redo during that window is rejected with ErrBusy; Record
// and Clear wait for it to finish.
type Manager struct {
	store       RemoteStore
	kv          KV
	max         int
	now         func() time.Time
	callTimeout time.Duration

	op sync.Mutex // serializes mutators

	mu   sync.RWMutex
	undo []model.ChangeRecord // oldest first
	redo []model.ChangeRecord // oldest first
}

// Option configures a Manager.
type Option func(*Manager)

// WithMaxHistory overrides MaxHistory (mainly for tests).
func WithMaxHistory(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.max = n
		}
	}
}

// WithClock sets the time source used to stamp changes.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithCallTimeout bounds each inverse remote call.
func WithCallTimeout(d time.Duration) Option {
	return func(m *Manager) { m.callTimeout = d }
}

// New returns a Manager with empty stacks. Call Load to restore the
// persisted undo stack.
func New(store RemoteStore, kv KV, opts ...Option) *Manager {
	m := &Manager{
		store: store,
		kv:    kv,
		max:   MaxHistory,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load replaces the undo stack with the persisted one and empties redo.
// An absent key leaves the history empty. A stack that fails validation
// also leaves it empty and returns an error wrapping ErrCorruptHistory.
func (m *Manager) Load() error {
	m.op.Lock()
	defer m.op.Unlock()

	m.mu.Lock()
	m.undo = nil
	m.redo = nil
	m.mu.Unlock()

	raw, ok, err := m.kv.Get(StorageKey)
	if err != nil {
		return fmt.Errorf("failed to read change history: %w", err)
	}
	if !ok || raw == "" {
		return nil
	}
	stack, err := decodeStack(raw)
	if err != nil {
		return err
	}
	if len(stack) > m.max {
		stack = stack[len(stack)-m.max:]
	}

	m.mu.Lock()
	m.undo = stack
	m.mu.Unlock()
	return nil
}

// Record logs a mutation that has already been applied on the RemoteStore.
// before is the pre-update record for updates, or nil.
//
// The change is pushed, the oldest entry evicted past the bound, the redo
// stack cleared, and the undo stack persisted. The returned error, if any,
// is a *PersistenceWarning; the change is recorded either way.
func (m *Manager) Record(action model.Action, data model.Record, before *model.Record) (model.ChangeRecord, error) {
	m.op.Lock()
	defer m.op.Unlock()

	change := model.NewChangeRecord(action, data, before, m.now())

	m.mu.Lock()
	m.undo = append(m.undo, change)
	if len(m.undo) > m.max {
		m.undo = append([]model.ChangeRecord(nil), m.undo[len(m.undo)-m.max:]...)
	}
	m.redo = nil
	m.mu.Unlock()

	return change, m.persist()
}

// Undo reverses the most recent change: a create is deleted, a delete is
// recreated with its original id and fields, and an update is rewritten with
// its pre-image (or replayed when none was captured).
func (m *Manager) Undo(ctx context.Context) (model.ChangeRecord, error) {
	return m.transfer(ctx, opUndo)
}

// Redo re-applies the most recently undone change.
func (m *Manager) Redo(ctx context.Context) (model.ChangeRecord, error) {
	return m.transfer(ctx, opRedo)
}

type opKind string

const (
	opUndo opKind = "undo"
	opRedo opKind = "redo"
)

func (m *Manager) transfer(ctx context.Context, op opKind) (model.ChangeRecord, error) {
	if !m.op.TryLock() {
		return model.ChangeRecord{}, ErrBusy
	}
	defer m.op.Unlock()

	m.mu.Lock()
	from, to := &m.undo, &m.redo
	if op == opRedo {
		from, to = &m.redo, &m.undo
	}
	if len(*from) == 0 {
		m.mu.Unlock()
		return model.ChangeRecord{}, ErrEmptyHistory
	}
	change := (*from)[len(*from)-1]
	*from = (*from)[:len(*from)-1]
	*to = append(*to, change)
	m.mu.Unlock()

	result, err := m.apply(ctx, op, change)
	if err != nil {
		m.mu.Lock()
		*to = (*to)[:len(*to)-1]
		*from = append(*from, change)
		m.mu.Unlock()
		return change, &RemoteCallError{Op: string(op), Change: change, Err: err}
	}

	// A recreate may come back under a new id. The moved entry and every
	// entry still to be replayed in the same direction (older ones on undo,
	// newer ones on redo) name the same reading and must follow it.
	if oldID := change.Data.ID; result.ID != 0 && result.ID != oldID {
		m.mu.Lock()
		retarget((*to)[len(*to)-1:], oldID, result.ID)
		if oldID != 0 {
			retarget(*from, oldID, result.ID)
		}
		change = (*to)[len(*to)-1]
		m.mu.Unlock()
	}

	return change, m.persist()
}

// retarget rewrites references to oldID in changes to newID.
func retarget(changes []model.ChangeRecord, oldID, newID int) {
	for i := range changes {
		c := &changes[i]
		if c.Data.ID == oldID {
			c.Data.ID = newID
		}
		if c.Before != nil && c.Before.ID == oldID {
			b := *c.Before
			b.ID = newID
			c.Before = &b
		}
	}
}

// apply issues the remote call for op on change. The returned record is the
// one the endpoint reported for creates; it is zero otherwise.
func (m *Manager) apply(ctx context.Context, op opKind, change model.ChangeRecord) (model.Record, error) {
	if m.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.callTimeout)
		defer cancel()
	}

	data := change.Data
	switch change.Action {
	case model.ActionCreate:
		if op == opUndo {
			return model.Record{}, m.delete(ctx, data.ID)
		}
		return m.store.Create(ctx, data)

	case model.ActionDelete:
		if op == opUndo {
			return m.store.Create(ctx, data)
		}
		return model.Record{}, m.delete(ctx, data.ID)

	case model.ActionUpdate:
		if op == opUndo && change.Before != nil {
			data = *change.Before
		}
		_, err := m.store.Update(ctx, data)
		return model.Record{}, err
	}
	return model.Record{}, fmt.Errorf("unknown action %q", change.Action)
}

func (m *Manager) delete(ctx context.Context, id int) error {
	if id == 0 {
		return model.ErrMissingID
	}
	return m.store.Delete(ctx, id)
}

// History returns the undo stack, most recent first. It never mutates state.
func (m *Manager) History() []model.ChangeRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return reversed(m.undo)
}

// Undone returns the redo stack, most recent first.
func (m *Manager) Undone() []model.ChangeRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return reversed(m.redo)
}

// CanUndo reports whether the undo stack is non-empty.
func (m *Manager) CanUndo() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.undo) > 0
}

// CanRedo reports whether the redo stack is non-empty.
func (m *Manager) CanRedo() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.redo) > 0
}

// Clear empties both stacks and persists the empty undo stack.
func (m *Manager) Clear() error {
	m.op.Lock()
	defer m.op.Unlock()

	m.mu.Lock()
	m.undo = nil
	m.redo = nil
	m.mu.Unlock()
	return m.persist()
}

// persist writes the undo stack. Failures are reported as a
// *PersistenceWarning and never roll back the in-memory state.
func (m *Manager) persist() error {
	m.mu.RLock()
	encoded, err := encodeStack(m.undo)
	m.mu.RUnlock()
	if err != nil {
		return &PersistenceWarning{Err: err}
	}
	if err := m.kv.Set(StorageKey, encoded); err != nil {
		return &PersistenceWarning{Err: err}
	}
	return nil
}

func reversed(stack []model.ChangeRecord) []model.ChangeRecord {
	out := make([]model.ChangeRecord, len(stack))
	for i, c := range stack {
		out[len(stack)-1-i] = c
	}
	return out
}
