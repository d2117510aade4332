package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Action is the kind of mutation a ChangeRecord logs.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

func (a Action) IsValid() bool {
	return a == ActionCreate || a == ActionUpdate || a == ActionDelete
}

// ChangeRecord is a mutation that has already been applied on the endpoint,
// with enough data to reverse it.
//
// Data is the payload sent for create and update, and the full record as it
// was just before deletion for delete. Before is the pre-update record when
// the caller captured it; entries without it replay Data on undo.
type ChangeRecord struct {
	ID        string    `json:"changeId,omitempty"`
	Action    Action    `json:"action"`
	Data      Record    `json:"data"`
	Before    *Record   `json:"before,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewChangeRecord stamps a change with a fresh id and the given time.
func NewChangeRecord(action Action, data Record, before *Record, now time.Time) ChangeRecord {
	return ChangeRecord{
		ID:        uuid.NewString(),
		Action:    action,
		Data:      data,
		Before:    before,
		Timestamp: now.UTC(),
	}
}

// Validate checks that the change carries what its inverse operation needs.
func (c ChangeRecord) Validate() error {
	if !c.Action.IsValid() {
		return fmt.Errorf("invalid action %q", c.Action)
	}
	if c.Timestamp.IsZero() {
		return fmt.Errorf("%s change has no timestamp", c.Action)
	}
	switch c.Action {
	case ActionUpdate, ActionDelete:
		if c.Data.ID == 0 {
			return fmt.Errorf("%s change: %w", c.Action, ErrMissingID)
		}
	}
	if c.Before != nil && c.Before.ID != c.Data.ID {
		return fmt.Errorf("%s change: pre-image id %d does not match %d", c.Action, c.Before.ID, c.Data.ID)
	}
	return nil
}

// Verb is the past-tense description used in history listings.
func (a Action) Verb() string {
	switch a {
	case ActionCreate:
		return "created"
	case ActionUpdate:
		return "updated"
	case ActionDelete:
		return "deleted"
	default:
		return string(a)
	}
}
