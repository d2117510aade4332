package history

import (
	"context"
	"errors"
	"fmt"

	"github.com/taxilian/envlog/internal/model"
)

var (
	// ErrEmptyHistory is returned by Undo or Redo when there is nothing to move.
	ErrEmptyHistory = errors.New("no changes in history")
	// ErrBusy is returned by Undo or Redo while another undo/redo is in flight.
	ErrBusy = errors.New("another undo/redo is in progress")
	// ErrCorruptHistory is returned by Load when the persisted stack fails validation.
	ErrCorruptHistory = errors.New("stored change history is corrupt")
)

// RemoteCallError reports a failed inverse call. The stacks have already
// been restored to their state before the Undo/Redo call, so it is safe to retry.
type RemoteCallError struct {
	Op     string // "undo" or "redo"
	Change model.ChangeRecord
	Err    error
}

func (e *RemoteCallError) Error() string {
	return fmt.Sprintf("%s of %s (record %d) failed: %v", e.Op, e.Change.Action, e.Change.Data.ID, e.Err)
}

func (e *RemoteCallError) Unwrap() error { return e.Err }

// Timeout reports whether the call was abandoned because its deadline passed.
func (e *RemoteCallError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// PersistenceWarning reports that the undo stack could not be written.
// The in-memory change stands; only durability across sessions is affected.
type PersistenceWarning struct {
	Err error
}

func (w *PersistenceWarning) Error() string {
	return fmt.Sprintf("warning: change history not saved: %v", w.Err)
}

func (w *PersistenceWarning) Unwrap() error { return w.Err }

// IsWarning reports whether err only carries a PersistenceWarning, meaning the
// operation itself succeeded.
func IsWarning(err error) bool {
	var w *PersistenceWarning
	return errors.As(err, &w)
}
