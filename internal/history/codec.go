package history

import (
	"encoding/json"
	"fmt"

	"github.com/taxilian/envlog/internal/model"
)

// encodeStack serializes the undo stack oldest first, the layout the
// browser client kept in localStorage.
func encodeStack(stack []model.ChangeRecord) (string, error) {
	if stack == nil {
		stack = []model.ChangeRecord{}
	}
	data, err := json.Marshal(stack)
	if err != nil {
		return "", fmt.Errorf("failed to serialize history: %w", err)
	}
	return string(data), nil
}

// decodeStack parses and validates a persisted stack. Any invalid entry
// rejects the whole stack.
func decodeStack(s string) ([]model.ChangeRecord, error) {
	var stack []model.ChangeRecord
	if err := json.Unmarshal([]byte(s), &stack); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptHistory, err)
	}
	for i, c := range stack {
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrCorruptHistory, i, err)
		}
	}
	return stack, nil
}
