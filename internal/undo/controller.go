// Package undo keeps a bounded history of committed mutations and derives
// compensating actions from their audit entries. Rollback is not a
// privileged path: the compensating action re-enters the normal
// propose/queue/execute pipeline and can itself be blocked by guardrails.
package undo

import (
	"fmt"
	"sync"
	"time"

	"github.com/adpilot/backend/internal/models"
	"github.com/google/uuid"
)

// Controller holds the undo and redo stacks for one session. Stacks are
// bounded; the oldest entries are evicted.
type Controller struct {
	mu    sync.Mutex
	depth int
	undo  []*models.AuditEntry
	redo  []*models.AuditEntry
}

const defaultDepth = 10

func NewController(depth int) *Controller {
	if depth <= 0 {
		depth = defaultDepth
	}
	return &Controller{depth: depth}
}

// RecordCommit pushes a committed entry onto the undo stack. Entries from
// rollback executions are managed through PushRedo/undo bookkeeping by the
// caller and must not be recorded here.
func (c *Controller) RecordCommit(entry *models.AuditEntry) {
	if entry.Status != models.AuditStatusSuccess {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.undo = push(c.undo, entry, c.depth)
}

// ClearRedo drops the redo stack. Called whenever a new (non-undo/redo)
// action is queued, so redo never replays something invalidated by a newer
// user action.
func (c *Controller) ClearRedo() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.redo = nil
}

// CanUndo reports whether the top of the undo stack has a defined
// compensating mapping. An irreversible top entry means false; no
// best-effort guessing.
func (c *Controller) CanUndo() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.undo) == 0 {
		return false
	}
	return c.undo[len(c.undo)-1].Reversible()
}

func (c *Controller) CanRedo() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.redo) == 0 {
		return false
	}
	return c.redo[len(c.redo)-1].Reversible()
}

// LastAction describes the entry undo would compensate, for UI display.
func (c *Controller) LastAction() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.undo) == 0 {
		return ""
	}
	e := c.undo[len(c.undo)-1]
	return fmt.Sprintf("%s on %s %q", e.ActionType, e.EntityType, e.EntityName)
}

// TakeUndo pops the most recent undoable entry and returns it together
// with its compensating action. The caller executes the action through the
// pipeline and, on success, calls PushRedo with the popped entry; on
// failure it calls RestoreUndo to put the entry back.
func (c *Controller) TakeUndo() (*models.AuditEntry, *models.Action, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.undo) == 0 {
		return nil, nil, fmt.Errorf("nothing to undo")
	}
	entry := c.undo[len(c.undo)-1]
	action, err := models.InverseAction(entry)
	if err != nil {
		return nil, nil, err
	}
	c.undo = c.undo[:len(c.undo)-1]
	return entry, action, nil
}

// TakeRedo pops the most recent undone entry and returns the action that
// re-applies it.
func (c *Controller) TakeRedo() (*models.AuditEntry, *models.Action, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.redo) == 0 {
		return nil, nil, fmt.Errorf("nothing to redo")
	}
	entry := c.redo[len(c.redo)-1]

	// Redo replays the original entry: before/after as first committed.
	action := &models.Action{
		ID:           uuid.New(),
		Type:         entry.ActionType,
		EntityType:   entry.EntityType,
		EntityID:     entry.EntityID,
		EntityName:   entry.EntityName,
		CurrentValue: entry.BeforeValue,
		NewValue:     entry.AfterValue,
		AccountID:    entry.AccountID,
		ActorUserID:  entry.ActorUserID,
		Source:       models.SourceRollback,
		CreatedAt:    time.Now(),
	}
	c.redo = c.redo[:len(c.redo)-1]
	return entry, action, nil
}

// PushRedo records an undone entry so it can be replayed.
func (c *Controller) PushRedo(entry *models.AuditEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.redo = push(c.redo, entry, c.depth)
}

// RestoreUndo puts an entry back on the undo stack after a failed or
// blocked rollback attempt.
func (c *Controller) RestoreUndo(entry *models.AuditEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.undo = push(c.undo, entry, c.depth)
}

// RestoreRedo puts an entry back on the redo stack after a failed or
// blocked replay attempt.
func (c *Controller) RestoreRedo(entry *models.AuditEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.redo = push(c.redo, entry, c.depth)
}

func push(stack []*models.AuditEntry, entry *models.AuditEntry, depth int) []*models.AuditEntry {
	stack = append(stack, entry)
	if len(stack) > depth {
		stack = stack[len(stack)-depth:]
	}
	return stack
}
