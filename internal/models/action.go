package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Action types (closed enum). Destructive removals are deliberately absent:
// hard deletes bypass the queue/undo pipeline entirely.
const (
	ActionPauseEntity     = "pause_entity"
	ActionEnableEntity    = "enable_entity"
	ActionUpdateBudget    = "update_budget"
	ActionUpdateMatchType = "update_match_type"
	ActionUpdateBid       = "update_bid"
)

// Entity statuses on the ads platform side.
const (
	EntityStatusEnabled = "ENABLED"
	EntityStatusPaused  = "PAUSED"
)

// Action sources
const (
	SourceUser     = "user"
	SourceAI       = "ai"
	SourceRule     = "rule"
	SourceRollback = "rollback"
)

var validActionTypes = map[string]bool{
	ActionPauseEntity:     true,
	ActionEnableEntity:    true,
	ActionUpdateBudget:    true,
	ActionUpdateMatchType: true,
	ActionUpdateBid:       true,
}

func IsValidActionType(t string) bool {
	return validActionTypes[t]
}

// ActionValue is the tagged union of mutation payloads, keyed by action type.
// Exactly one field is set for a well-formed value.
type ActionValue struct {
	EntityStatus *string `json:"entity_status,omitempty"` // pause_entity / enable_entity
	BudgetMicros *int64  `json:"budget_micros,omitempty"` // update_budget
	MatchType    *string `json:"match_type,omitempty"`    // update_match_type
	BidMicros    *int64  `json:"bid_micros,omitempty"`    // update_bid
}

// FieldForActionType returns the platform field name an action type mutates.
func FieldForActionType(actionType string) string {
	switch actionType {
	case ActionPauseEntity, ActionEnableEntity:
		return "status"
	case ActionUpdateBudget:
		return "budget_micros"
	case ActionUpdateMatchType:
		return "match_type"
	case ActionUpdateBid:
		return "bid_micros"
	}
	return ""
}

// Validate checks that the value carries the payload its action type requires.
func (v ActionValue) Validate(actionType string) error {
	switch actionType {
	case ActionPauseEntity, ActionEnableEntity:
		if v.EntityStatus == nil {
			return fmt.Errorf("action type %s requires entity_status", actionType)
		}
	case ActionUpdateBudget:
		if v.BudgetMicros == nil {
			return fmt.Errorf("action type %s requires budget_micros", actionType)
		}
	case ActionUpdateMatchType:
		if v.MatchType == nil {
			return fmt.Errorf("action type %s requires match_type", actionType)
		}
	case ActionUpdateBid:
		if v.BidMicros == nil {
			return fmt.Errorf("action type %s requires bid_micros", actionType)
		}
	default:
		return fmt.Errorf("unknown action type %q", actionType)
	}
	return nil
}

// Action is a proposed mutation of one entity on the ads platform.
// Immutable once created.
type Action struct {
	ID           uuid.UUID   `json:"id"`
	Type         string      `json:"action_type"`
	EntityType   string      `json:"entity_type"` // campaign / ad_group / keyword
	EntityID     string      `json:"entity_id"`   // platform-side opaque id
	EntityName   string      `json:"entity_name"` // display only
	CurrentValue ActionValue `json:"current_value"`
	NewValue     ActionValue `json:"new_value"`
	Reason       *string     `json:"reason,omitempty"`
	AccountID    string      `json:"account_id"` // platform customer id
	ActorUserID  *uuid.UUID  `json:"actor_user_id,omitempty"`
	Source       string      `json:"source"`
	CreatedAt    time.Time   `json:"created_at"`
}

// EntityKey identifies the mutation target for conflict detection and
// per-entity serialization.
func (a *Action) EntityKey() string {
	return a.EntityType + ":" + a.EntityID
}

func (a *Action) Validate() error {
	if !IsValidActionType(a.Type) {
		return fmt.Errorf("unknown action type %q", a.Type)
	}
	if a.EntityType == "" || a.EntityID == "" {
		return fmt.Errorf("entity_type and entity_id are required")
	}
	if err := a.CurrentValue.Validate(a.Type); err != nil {
		return fmt.Errorf("current_value: %w", err)
	}
	if err := a.NewValue.Validate(a.Type); err != nil {
		return fmt.Errorf("new_value: %w", err)
	}
	return nil
}

// inverseActionTypes maps each reversible action type to the type of its
// compensating action. A type absent from this map has no defined inverse
// and is therefore not undoable.
var inverseActionTypes = map[string]string{
	ActionPauseEntity:     ActionEnableEntity,
	ActionEnableEntity:    ActionPauseEntity,
	ActionUpdateBudget:    ActionUpdateBudget,
	ActionUpdateMatchType: ActionUpdateMatchType,
	ActionUpdateBid:       ActionUpdateBid,
}

func IsInvertible(actionType string) bool {
	_, ok := inverseActionTypes[actionType]
	return ok
}

// InverseAction derives the compensating action for a committed audit entry:
// the action that restores beforeValue. The result re-enters the normal
// propose/queue/execute path, it is not a privileged bypass.
func InverseAction(e *AuditEntry) (*Action, error) {
	invType, ok := inverseActionTypes[e.ActionType]
	if !ok {
		return nil, &IrreversibleError{ActionType: e.ActionType}
	}
	if e.Status != AuditStatusSuccess {
		return nil, &IrreversibleError{ActionType: e.ActionType}
	}

	return &Action{
		ID:           uuid.New(),
		Type:         invType,
		EntityType:   e.EntityType,
		EntityID:     e.EntityID,
		EntityName:   e.EntityName,
		CurrentValue: e.AfterValue,
		NewValue:     e.BeforeValue,
		AccountID:    e.AccountID,
		ActorUserID:  e.ActorUserID,
		Source:       SourceRollback,
		CreatedAt:    time.Now(),
	}, nil
}
