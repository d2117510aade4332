// Package records applies user mutations to the remote store and keeps the
// change history and the local cache in step with it.
//
// Every front end (CLI, TUI, HTTP API) goes through a Service so that a
// mutation is always sent to the endpoint first and logged for undo only
// after it succeeded.
package records

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/taxilian/envlog/internal/history"
	"github.com/taxilian/envlog/internal/model"
)

var (
	// ErrNotFound is returned when a record id is neither cached nor listed.
	ErrNotFound = errors.New("record not found")
	// ErrInvalidRecord wraps validation failures; nothing was sent.
	ErrInvalidRecord = errors.New("invalid record")
)

// Remote is the record endpoint.
type Remote interface {
	history.RemoteStore
	Dashboard(ctx context.Context) (model.Dashboard, error)
}

// Cache is the local copy of the last listing.
type Cache interface {
	ReplaceRecords(records []model.Record) error
	PutRecord(r model.Record) error
	RemoveRecord(id int) error
	GetRecord(id int) (model.Record, error)
	ListRecords() ([]model.Record, error)
}

// Service wires the remote store, the change history and the cache.
type Service struct {
	remote  Remote
	history *history.Manager
	cache   Cache
	warn    func(error)
}

// Option configures a Service.
type Option func(*Service)

// WithWarningHandler receives non-fatal problems (history or cache writes
// that failed after the remote call succeeded). The default logs them.
func WithWarningHandler(fn func(error)) Option {
	return func(s *Service) {
		if fn != nil {
			s.warn = fn
		}
	}
}

// New returns a Service. cache may be nil.
func New(remote Remote, hist *history.Manager, cache Cache, opts ...Option) *Service {
	s := &Service{
		remote:  remote,
		history: hist,
		cache:   cache,
		warn: func(err error) {
			log.Printf("warning: %v", err)
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// History returns the change history manager.
func (s *Service) History() *history.Manager {
	return s.history
}

// List fetches the active sheet (oldest first) and refreshes the cache.
func (s *Service) List(ctx context.Context) ([]model.Record, error) {
	recs, err := s.remote.List(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.ReplaceRecords(recs); err != nil {
			s.warn(fmt.Errorf("record cache not updated: %w", err))
		}
	}
	return recs, nil
}

// Cached returns the cached listing, oldest first.
func (s *Service) Cached() ([]model.Record, error) {
	if s.cache == nil {
		return nil, nil
	}
	recs, err := s.cache.ListRecords()
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(recs)-1; i < j; i, j = i+1, j-1 {
		recs[i], recs[j] = recs[j], recs[i]
	}
	return recs, nil
}

// Dashboard returns the aggregates computed by the endpoint.
func (s *Service) Dashboard(ctx context.Context) (model.Dashboard, error) {
	return s.remote.Dashboard(ctx)
}

// Add creates r on the endpoint and logs the stored record.
func (s *Service) Add(ctx context.Context, r model.Record) (model.Record, error) {
	r.ID = 0
	if err := r.Validate(); err != nil {
		return model.Record{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	created, err := s.remote.Create(ctx, r)
	if err != nil {
		return model.Record{}, err
	}
	if created.ID == 0 {
		id, err := s.assignedID(ctx, created)
		if err != nil {
			s.warn(fmt.Errorf("create not recorded for undo: %w", err))
			return created, nil
		}
		created.ID = id
	}
	s.cachePut(created)
	s.record(model.ActionCreate, created, nil)
	return created, nil
}

// assignedID looks up the id the endpoint gave r when its reply carried
// none: the newest listed reading with the same fields.
func (s *Service) assignedID(ctx context.Context, r model.Record) (int, error) {
	recs, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	id := 0
	for _, got := range recs {
		if got.ID > id && sameReading(got, r) {
			id = got.ID
		}
	}
	if id == 0 {
		return 0, fmt.Errorf("%w: new reading not found in the listing", model.ErrMissingID)
	}
	return id, nil
}

func sameReading(a, b model.Record) bool {
	return a.Date == b.Date && a.Time == b.Time &&
		a.Temperature == b.Temperature && a.Humidity == b.Humidity &&
		a.Person == b.Person && a.Notes == b.Notes
}

// Edit replaces the record with r.ID by r. The current record is captured
// first so the change can be undone.
func (s *Service) Edit(ctx context.Context, r model.Record) (model.Record, error) {
	if r.ID == 0 {
		return model.Record{}, model.ErrMissingID
	}
	if err := r.Validate(); err != nil {
		return model.Record{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	before, err := s.Get(ctx, r.ID)
	if err != nil {
		return model.Record{}, err
	}
	updated, err := s.remote.Update(ctx, r)
	if err != nil {
		return model.Record{}, err
	}
	s.cachePut(updated)
	s.record(model.ActionUpdate, updated, &before)
	return updated, nil
}

// Delete removes id from the endpoint. The full record is logged so the
// deletion can be undone.
func (s *Service) Delete(ctx context.Context, id int) (model.Record, error) {
	if id == 0 {
		return model.Record{}, model.ErrMissingID
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return model.Record{}, err
	}
	if err := s.remote.Delete(ctx, id); err != nil {
		return model.Record{}, err
	}
	s.cacheRemove(id)
	s.record(model.ActionDelete, current, nil)
	return current, nil
}

// Get returns the record with id as the endpoint holds it now. The cache
// answers only when the endpoint cannot be read.
func (s *Service) Get(ctx context.Context, id int) (model.Record, error) {
	recs, err := s.List(ctx)
	if err != nil {
		if s.cache != nil {
			if r, cerr := s.cache.GetRecord(id); cerr == nil {
				return r, nil
			}
		}
		return model.Record{}, err
	}
	for _, r := range recs {
		if r.ID == id {
			return r, nil
		}
	}
	return model.Record{}, fmt.Errorf("%w: %d", ErrNotFound, id)
}

// Undo reverses the most recent change and updates the cache to match.
func (s *Service) Undo(ctx context.Context) (model.ChangeRecord, error) {
	change, err := s.history.Undo(ctx)
	if err != nil && !history.IsWarning(err) {
		return change, err
	}
	if err != nil {
		s.warn(err)
	}
	switch change.Action {
	case model.ActionCreate:
		s.cacheRemove(change.Data.ID)
	case model.ActionDelete:
		s.cachePut(change.Data)
	case model.ActionUpdate:
		if change.Before != nil {
			s.cachePut(*change.Before)
		} else {
			s.cachePut(change.Data)
		}
	}
	return change, nil
}

// Redo re-applies the most recently undone change and updates the cache.
func (s *Service) Redo(ctx context.Context) (model.ChangeRecord, error) {
	change, err := s.history.Redo(ctx)
	if err != nil && !history.IsWarning(err) {
		return change, err
	}
	if err != nil {
		s.warn(err)
	}
	switch change.Action {
	case model.ActionCreate, model.ActionUpdate:
		s.cachePut(change.Data)
	case model.ActionDelete:
		s.cacheRemove(change.Data.ID)
	}
	return change, nil
}

func (s *Service) record(action model.Action, data model.Record, before *model.Record) {
	if _, err := s.history.Record(action, data, before); err != nil {
		s.warn(err)
	}
}

func (s *Service) cachePut(r model.Record) {
	if s.cache == nil || r.ID == 0 {
		return
	}
	if err := s.cache.PutRecord(r); err != nil {
		s.warn(fmt.Errorf("record cache not updated: %w", err))
	}
}

func (s *Service) cacheRemove(id int) {
	if s.cache == nil || id == 0 {
		return
	}
	if err := s.cache.RemoveRecord(id); err != nil {
		s.warn(fmt.Errorf("record cache not updated: %w", err))
	}
}
