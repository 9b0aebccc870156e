package models

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// BlockedError is returned when a guardrail blocking rule fired. The action
// never reaches the queue.
type BlockedError struct {
	Reasons []Warning
}

func (e *BlockedError) Error() string {
	codes := make([]string, 0, len(e.Reasons))
	for _, r := range e.Reasons {
		codes = append(codes, r.Code)
	}
	return fmt.Sprintf("action blocked by guardrails: %s", strings.Join(codes, ", "))
}

// QueueStateError is returned when an operation is attempted on an entry
// not in a valid source state (e.g. cancelling a committed entry).
type QueueStateError struct {
	EntryID uuid.UUID
	Status  string
	Op      string
}

func (e *QueueStateError) Error() string {
	return fmt.Sprintf("cannot %s entry %s in status %s", e.Op, e.EntryID, e.Status)
}

// ExecutionError is returned when the entity mutation service failed or was
// unreachable. The failure is also recorded in the audit log; the entry is
// left in failed status and never retried automatically.
type ExecutionError struct {
	EntryID uuid.UUID
	Code    string
	Message string
}

func (e *ExecutionError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("mutation failed (%s): %s", e.Code, e.Message)
	}
	return fmt.Sprintf("mutation failed: %s", e.Message)
}

// IrreversibleError is returned when undo is requested for an action type
// with no defined compensating mapping.
type IrreversibleError struct {
	ActionType string
}

func (e *IrreversibleError) Error() string {
	return fmt.Sprintf("action type %s has no compensating action", e.ActionType)
}
