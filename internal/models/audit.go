package models

import (
	"time"

	"github.com/google/uuid"
)

// Audit entry statuses
const (
	AuditStatusSuccess = "success"
	AuditStatusFailed  = "failed"
)

// AuditEntry is the durable record of one executed (or attempted) mutation.
// Entries are append-only: rollback appends a new entry with
// source=rollback, it never edits history.
type AuditEntry struct {
	ID           uuid.UUID   `json:"id"`
	AccountID    string      `json:"account_id"`
	ActorUserID  *uuid.UUID  `json:"actor_user_id,omitempty"`
	ActionType   string      `json:"action_type"`
	EntityType   string      `json:"entity_type"`
	EntityID     string      `json:"entity_id"`
	EntityName   string      `json:"entity_name"`
	BeforeValue  ActionValue `json:"before_value"`
	AfterValue   ActionValue `json:"after_value"`
	Status       string      `json:"status"`
	ErrorMessage *string     `json:"error_message,omitempty"`
	Source       string      `json:"source"` // user/ai/rule/rollback
	CreatedAt    time.Time   `json:"created_at"`
}

// Reversible reports whether a deterministic compensating action can be
// derived from this entry. Failed attempts changed nothing, so there is
// nothing to undo.
func (e *AuditEntry) Reversible() bool {
	return e.Status == AuditStatusSuccess && IsInvertible(e.ActionType)
}

// AuditFilter narrows audit queries. Zero values mean "no filter".
type AuditFilter struct {
	AccountID  string
	EntityType string
	EntityID   string
	Status     string
	Source     string
	Limit      int
	Offset     int
}
