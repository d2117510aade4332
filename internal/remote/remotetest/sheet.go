// Package remotetest provides an in-memory record endpoint for tests.
package remotetest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/taxilian/envlog/internal/model"
)

// Sheet is an in-memory stand-in for the spreadsheet endpoint. Ids are
// assigned sequentially; a deleted record recreated with its id keeps it.
type Sheet struct {
	mu        sync.Mutex
	rows      map[int]model.Record
	nextID    int
	calls     []string
	err       error
	dash      model.Dashboard
	block     chan struct{}
	listCalls int
	archive   map[int][]model.ArchivedRecord
}

// NewSheet returns a Sheet holding records.
func NewSheet(records ...model.Record) *Sheet {
	s := &Sheet{rows: map[int]model.Record{}, archive: map[int][]model.ArchivedRecord{}}
	for _, r := range records {
		if r.ID == 0 {
			s.nextID++
			r.ID = s.nextID
		}
		if r.ID > s.nextID {
			s.nextID = r.ID
		}
		s.rows[r.ID] = r
	}
	return s
}

// SetBlock makes mutations wait until ch is closed (nil to stop blocking).
func (s *Sheet) SetBlock(ch chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.block = ch
}

// begin waits on the block channel for mutations and returns with s.mu held.
func (s *Sheet) begin(call string, mutation bool) error {
	s.mu.Lock()
	block := s.block
	s.mu.Unlock()
	if mutation && block != nil {
		<-block
	}
	s.mu.Lock()
	s.calls = append(s.calls, call)
	return s.err
}

// List returns the rows ordered by id.
func (s *Sheet) List(ctx context.Context) ([]model.Record, error) {
	if err := s.begin("list", false); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	defer s.mu.Unlock()
	s.listCalls++
	return s.sorted(), nil
}

func (s *Sheet) Create(ctx context.Context, r model.Record) (model.Record, error) {
	if err := s.begin(fmt.Sprintf("create(%d)", r.ID), true); err != nil {
		s.mu.Unlock()
		return model.Record{}, err
	}
	defer s.mu.Unlock()
	if _, taken := s.rows[r.ID]; r.ID == 0 || taken {
		s.nextID++
		r.ID = s.nextID
	}
	if r.ID > s.nextID {
		s.nextID = r.ID
	}
	s.rows[r.ID] = r
	return r, nil
}

func (s *Sheet) Update(ctx context.Context, r model.Record) (model.Record, error) {
	if err := s.begin(fmt.Sprintf("update(%d)", r.ID), true); err != nil {
		s.mu.Unlock()
		return model.Record{}, err
	}
	defer s.mu.Unlock()
	if _, ok := s.rows[r.ID]; !ok {
		return model.Record{}, fmt.Errorf("record %d not found", r.ID)
	}
	s.rows[r.ID] = r
	return r, nil
}

func (s *Sheet) Delete(ctx context.Context, id int) error {
	if err := s.begin(fmt.Sprintf("delete(%d)", id), true); err != nil {
		s.mu.Unlock()
		return err
	}
	defer s.mu.Unlock()
	if _, ok := s.rows[id]; !ok {
		return fmt.Errorf("record %d not found", id)
	}
	delete(s.rows, id)
	return nil
}

func (s *Sheet) Dashboard(ctx context.Context) (model.Dashboard, error) {
	if err := s.begin("dashboard", false); err != nil {
		s.mu.Unlock()
		return model.Dashboard{}, err
	}
	defer s.mu.Unlock()
	return s.dash, nil
}

// Row returns the stored record with id.
func (s *Sheet) Row(id int) (model.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	return r, ok
}

// Rows returns every stored record ordered by id.
func (s *Sheet) Rows() []model.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sorted()
}

// Calls returns the calls made so far, e.g. "create(0)", "delete(3)".
func (s *Sheet) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// ListCalls counts successful List calls.
func (s *Sheet) ListCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listCalls
}

// SetErr makes every following call fail with err (nil to clear).
func (s *Sheet) SetErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// SetDashboard sets what Dashboard returns.
func (s *Sheet) SetDashboard(d model.Dashboard) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dash = d
}

func (s *Sheet) sorted() []model.Record {
	out := make([]model.Record, 0, len(s.rows))
	for _, r := range s.rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
