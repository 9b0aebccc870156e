package models

import (
	"time"

	"github.com/google/uuid"
)

// Queue entry statuses
const (
	QueueStatusPending   = "pending"
	QueueStatusConfirmed = "confirmed"
	QueueStatusExecuting = "executing"
	QueueStatusCommitted = "committed"
	QueueStatusFailed    = "failed"
	QueueStatusCancelled = "cancelled"
)

// Valid queue entry transitions: from -> []to
var ValidQueueTransitions = map[string][]string{
	QueueStatusPending:   {QueueStatusConfirmed, QueueStatusCancelled},
	QueueStatusConfirmed: {QueueStatusExecuting, QueueStatusCancelled},
	QueueStatusExecuting: {QueueStatusCommitted, QueueStatusFailed},
	QueueStatusCommitted: {},
	QueueStatusFailed:    {},
	QueueStatusCancelled: {},
}

func IsValidQueueTransition(from, to string) bool {
	allowed, ok := ValidQueueTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// QueueEntry is a staged action plus its lifecycle metadata.
type QueueEntry struct {
	ID           uuid.UUID  `json:"id"`
	Action       *Action    `json:"action"`
	Status       string     `json:"status"`
	SupersededBy *uuid.UUID `json:"superseded_by,omitempty"` // set when replaced by a later action
	QueuedAt     time.Time  `json:"queued_at"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty"`
}

// IsTerminal reports whether no further transitions are possible.
func (e *QueueEntry) IsTerminal() bool {
	return len(ValidQueueTransitions[e.Status]) == 0
}
