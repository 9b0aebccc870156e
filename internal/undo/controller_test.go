package undo

import (
	"testing"
	"time"

	"github.com/adpilot/backend/internal/models"
	"github.com/google/uuid"
)

func strPtr(s string) *string { return &s }

func committedPause(entityID string) *models.AuditEntry {
	return &models.AuditEntry{
		ID:          uuid.New(),
		AccountID:   "123-456-7890",
		ActionType:  models.ActionPauseEntity,
		EntityType:  "campaign",
		EntityID:    entityID,
		EntityName:  "Campaign " + entityID,
		BeforeValue: models.ActionValue{EntityStatus: strPtr(models.EntityStatusEnabled)},
		AfterValue:  models.ActionValue{EntityStatus: strPtr(models.EntityStatusPaused)},
		Status:      models.AuditStatusSuccess,
		Source:      models.SourceUser,
		CreatedAt:   time.Now(),
	}
}

func TestUndoDerivesCompensatingAction(t *testing.T) {
	c := NewController(10)
	entry := committedPause("X123")
	c.RecordCommit(entry)

	if !c.CanUndo() {
		t.Fatal("CanUndo = false after a committed pause")
	}
	if c.LastAction() == "" {
		t.Error("LastAction must describe the top entry")
	}

	popped, action, err := c.TakeUndo()
	if err != nil {
		t.Fatalf("TakeUndo failed: %v", err)
	}
	if popped.ID != entry.ID {
		t.Error("popped entry is not the recorded one")
	}
	if action.Type != models.ActionEnableEntity {
		t.Errorf("compensating type = %s, want enable_entity", action.Type)
	}
	if *action.NewValue.EntityStatus != models.EntityStatusEnabled {
		t.Errorf("compensating new value = %s, want ENABLED", *action.NewValue.EntityStatus)
	}
	if action.Source != models.SourceRollback {
		t.Errorf("compensating source = %s, want rollback", action.Source)
	}
	if c.CanUndo() {
		t.Error("CanUndo must be false after the only entry was taken")
	}
}

func TestRedoReplaysOriginal(t *testing.T) {
	c := NewController(10)
	entry := committedPause("X123")
	c.RecordCommit(entry)

	popped, _, err := c.TakeUndo()
	if err != nil {
		t.Fatalf("TakeUndo failed: %v", err)
	}
	c.PushRedo(popped)

	if !c.CanRedo() {
		t.Fatal("CanRedo = false after undo")
	}
	_, action, err := c.TakeRedo()
	if err != nil {
		t.Fatalf("TakeRedo failed: %v", err)
	}
	if action.Type != models.ActionPauseEntity {
		t.Errorf("redo type = %s, want the original pause", action.Type)
	}
	if *action.NewValue.EntityStatus != models.EntityStatusPaused {
		t.Errorf("redo new value = %s, want PAUSED", *action.NewValue.EntityStatus)
	}
}

func TestClearRedoOnNewAction(t *testing.T) {
	c := NewController(10)
	c.RecordCommit(committedPause("X1"))

	popped, _, _ := c.TakeUndo()
	c.PushRedo(popped)
	if !c.CanRedo() {
		t.Fatal("setup: expected redo available")
	}

	// A newly queued user action invalidates redo even though undo history
	// may remain.
	c.RecordCommit(committedPause("X2"))
	c.ClearRedo()

	if c.CanRedo() {
		t.Error("redo stack must be empty after a new action is queued")
	}
	if !c.CanUndo() {
		t.Error("undo stack must survive ClearRedo")
	}
}

func TestIrreversibleTopReportsCannotUndo(t *testing.T) {
	c := NewController(10)
	entry := committedPause("X1")
	entry.ActionType = "remove_entity" // no inverse mapping
	c.RecordCommit(entry)

	if c.CanUndo() {
		t.Error("CanUndo must be false for an action type with no inverse")
	}
	if _, _, err := c.TakeUndo(); err == nil {
		t.Error("TakeUndo must refuse rather than guess an inverse")
	}
}

func TestFailedCommitNotRecorded(t *testing.T) {
	c := NewController(10)
	entry := committedPause("X1")
	entry.Status = models.AuditStatusFailed
	c.RecordCommit(entry)

	if c.CanUndo() {
		t.Error("failed executions must not enter the undo stack")
	}
}

func TestStackBounded(t *testing.T) {
	c := NewController(3)
	for i := 0; i < 5; i++ {
		c.RecordCommit(committedPause(uuid.NewString()))
	}

	var taken int
	for c.CanUndo() {
		if _, _, err := c.TakeUndo(); err != nil {
			break
		}
		taken++
	}
	if taken != 3 {
		t.Errorf("undo depth = %d, want bounded at 3", taken)
	}
}

func TestRestoreUndoAfterBlockedRollback(t *testing.T) {
	c := NewController(10)
	entry := committedPause("X1")
	c.RecordCommit(entry)

	popped, _, _ := c.TakeUndo()
	// Guardrails blocked the compensating action; the entry goes back.
	c.RestoreUndo(popped)

	if !c.CanUndo() {
		t.Error("entry must return to the undo stack after a blocked rollback")
	}
}
