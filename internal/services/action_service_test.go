package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/adpilot/backend/internal/models"
	"github.com/adpilot/backend/internal/pipeline"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func strPtr(s string) *string { return &s }

type stubGuardrailSource struct {
	cfg *models.GuardrailConfig
}

func (s *stubGuardrailSource) Get(_ context.Context, accountID string) (*models.GuardrailConfig, error) {
	cfg := *s.cfg
	cfg.AccountID = accountID
	return &cfg, nil
}

type stubSnapshots struct {
	snap *models.Snapshot
}

func (s *stubSnapshots) FetchSnapshot(_ context.Context, _ string, _ []string) (*models.Snapshot, error) {
	if s.snap == nil {
		return &models.Snapshot{}, nil
	}
	return s.snap, nil
}

type stubMutator struct {
	mu      sync.Mutex
	applied map[string]models.ActionValue // entity key -> last value
	failFor map[string]error
}

func newStubMutator() *stubMutator {
	return &stubMutator{
		applied: make(map[string]models.ActionValue),
		failFor: make(map[string]error),
	}
}

func (m *stubMutator) Mutate(_ context.Context, _, entityType, entityID, _ string, newValue models.ActionValue) error {
	key := entityType + ":" + entityID
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failFor[key]; err != nil {
		return err
	}
	m.applied[key] = newValue
	return nil
}

type memAudit struct {
	mu      sync.Mutex
	entries []*models.AuditEntry
}

func (a *memAudit) Record(_ context.Context, e *models.AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
	return nil
}

func (a *memAudit) len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}

type fixture struct {
	svc     *ActionService
	mutator *stubMutator
	audit   *memAudit
	cfg     *models.GuardrailConfig
	userID  uuid.UUID
}

func newFixture() *fixture {
	cfg := &models.GuardrailConfig{
		Enabled:              true,
		MaxBulkActions:       20,
		MaxBudgetDeltaPct:    100,
		WarnBudgetDeltaPct:   50,
		MaxSpendAtRiskMicros: 1_000_000_000,
	}
	mut := newStubMutator()
	audit := &memAudit{}
	executor := pipeline.NewExecutor(mut, audit, nil, zap.NewNop())
	svc := NewActionService(executor, &stubGuardrailSource{cfg: cfg}, &stubSnapshots{}, nil, 10, zap.NewNop())
	return &fixture{svc: svc, mutator: mut, audit: audit, cfg: cfg, userID: uuid.New()}
}

func pauseAction(entityID string) *models.Action {
	return &models.Action{
		ID:           uuid.New(),
		Type:         models.ActionPauseEntity,
		EntityType:   "campaign",
		EntityID:     entityID,
		EntityName:   "Campaign " + entityID,
		CurrentValue: models.ActionValue{EntityStatus: strPtr(models.EntityStatusEnabled)},
		NewValue:     models.ActionValue{EntityStatus: strPtr(models.EntityStatusPaused)},
		AccountID:    "123-456-7890",
		Source:       models.SourceUser,
		CreatedAt:    time.Now(),
	}
}

func TestPauseExecuteUndoScenario(t *testing.T) {
	f := newFixture()
	f.cfg.Enabled = false // guardrails disabled for the canonical scenario
	ctx := context.Background()

	entry, _, err := f.svc.ConfirmAndQueue(ctx, f.userID, pauseAction("X123"))
	if err != nil {
		t.Fatalf("queue failed: %v", err)
	}
	if _, err := f.svc.Confirm(f.userID, entry.ID); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}

	audit, err := f.svc.Execute(ctx, f.userID, entry.ID)
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if audit.Status != models.AuditStatusSuccess {
		t.Fatalf("audit status = %s, want success", audit.Status)
	}
	if *audit.BeforeValue.EntityStatus != models.EntityStatusEnabled ||
		*audit.AfterValue.EntityStatus != models.EntityStatusPaused {
		t.Errorf("before/after = %v/%v, want ENABLED/PAUSED",
			*audit.BeforeValue.EntityStatus, *audit.AfterValue.EntityStatus)
	}

	if got := f.svc.History(f.userID); !got.CanUndo || got.CanRedo {
		t.Fatalf("history after commit = %+v, want undo only", got)
	}

	before := f.audit.len()
	rollback, err := f.svc.Undo(ctx, f.userID)
	if err != nil {
		t.Fatalf("undo failed: %v", err)
	}
	if rollback.ActionType != models.ActionEnableEntity {
		t.Errorf("rollback type = %s, want enable_entity", rollback.ActionType)
	}
	if rollback.Source != models.SourceRollback {
		t.Errorf("rollback source = %s, want rollback", rollback.Source)
	}
	if *rollback.BeforeValue.EntityStatus != models.EntityStatusPaused ||
		*rollback.AfterValue.EntityStatus != models.EntityStatusEnabled {
		t.Error("rollback must restore the pre-action value")
	}

	// Rollback appends; history is never edited in place.
	if f.audit.len() != before+1 {
		t.Errorf("audit length = %d, want %d", f.audit.len(), before+1)
	}

	// The entity's observable field is back to its pre-action value.
	applied := f.mutator.applied["campaign:X123"]
	if applied.EntityStatus == nil || *applied.EntityStatus != models.EntityStatusEnabled {
		t.Errorf("entity left in %v, want ENABLED", applied.EntityStatus)
	}

	if got := f.svc.History(f.userID); !got.CanRedo {
		t.Errorf("history after undo = %+v, want redo available", got)
	}
}

func TestRedoReappliesAndIsUndoable(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	entry, _, _ := f.svc.ConfirmAndQueue(ctx, f.userID, pauseAction("X1"))
	f.svc.Confirm(f.userID, entry.ID)
	f.svc.Execute(ctx, f.userID, entry.ID)
	if _, err := f.svc.Undo(ctx, f.userID); err != nil {
		t.Fatalf("undo failed: %v", err)
	}

	redone, err := f.svc.Redo(ctx, f.userID)
	if err != nil {
		t.Fatalf("redo failed: %v", err)
	}
	if redone.ActionType != models.ActionPauseEntity {
		t.Errorf("redo type = %s, want pause_entity", redone.ActionType)
	}

	applied := f.mutator.applied["campaign:X1"]
	if *applied.EntityStatus != models.EntityStatusPaused {
		t.Errorf("entity = %s after redo, want PAUSED", *applied.EntityStatus)
	}
	if got := f.svc.History(f.userID); !got.CanUndo {
		t.Errorf("redone commit must be undoable again: %+v", got)
	}
}

func TestNewActionClearsRedo(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	e1, _, _ := f.svc.ConfirmAndQueue(ctx, f.userID, pauseAction("X1"))
	f.svc.Confirm(f.userID, e1.ID)
	f.svc.Execute(ctx, f.userID, e1.ID)
	f.svc.Undo(ctx, f.userID)

	if got := f.svc.History(f.userID); !got.CanRedo {
		t.Fatal("setup: redo should be available after undo")
	}

	// Merely queuing (not executing) a new user action clears redo.
	if _, _, err := f.svc.ConfirmAndQueue(ctx, f.userID, pauseAction("X2")); err != nil {
		t.Fatalf("queue failed: %v", err)
	}
	if got := f.svc.History(f.userID); got.CanRedo {
		t.Errorf("redo must be cleared by a newly queued action: %+v", got)
	}
}

func TestBulkBlockAddsZeroEntries(t *testing.T) {
	f := newFixture()
	f.cfg.MaxBulkActions = 20
	ctx := context.Background()

	actions := make([]*models.Action, 50)
	for i := range actions {
		actions[i] = pauseAction(uuid.NewString())
	}

	entries, result, err := f.svc.ConfirmAndQueueBulk(ctx, f.userID, actions)
	var blocked *models.BlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("error = %v, want *BlockedError", err)
	}
	if result.Allowed {
		t.Error("result.Allowed = true, want false")
	}
	var found bool
	for _, r := range result.BlockReasons {
		if r.Code == models.RuleBulkSizeExceeded {
			found = true
		}
	}
	if !found {
		t.Errorf("block reasons missing bulk-size code: %+v", result.BlockReasons)
	}
	if len(entries) != 0 {
		t.Errorf("%d entries staged, want 0", len(entries))
	}
	if len(f.svc.QueueSnapshot(f.userID)) != 0 {
		t.Error("queue must stay empty after a bulk block")
	}
}

func TestBulkCollapsesConflictsBeforeAggregates(t *testing.T) {
	f := newFixture()
	f.cfg.MaxBulkActions = 2
	ctx := context.Background()

	// Three submissions, two of them for the same entity: de-duplicated
	// intent is 2, which passes the limit of 2.
	a1 := pauseAction("X1")
	a2 := pauseAction("X2")
	a3 := pauseAction("X1")

	entries, _, err := f.svc.ConfirmAndQueueBulk(ctx, f.userID, []*models.Action{a1, a2, a3})
	if err != nil {
		t.Fatalf("bulk queue failed: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("staged %d entries, want 2 after de-duplication", len(entries))
	}
}

func TestFailedExecutionNotUndoable(t *testing.T) {
	f := newFixture()
	f.mutator.failFor["campaign:Y9"] = errors.New("UNAVAILABLE: upstream timeout")
	ctx := context.Background()

	entry, _, _ := f.svc.ConfirmAndQueue(ctx, f.userID, pauseAction("Y9"))
	f.svc.Confirm(f.userID, entry.ID)

	audit, err := f.svc.Execute(ctx, f.userID, entry.ID)
	if err != nil {
		t.Fatalf("execute should capture failure: %v", err)
	}
	if audit.Status != models.AuditStatusFailed {
		t.Fatalf("audit status = %s, want failed", audit.Status)
	}
	if audit.ErrorMessage == nil {
		t.Error("error message must be set")
	}
	if got := f.svc.History(f.userID); got.CanUndo {
		t.Errorf("failed mutation must not be undoable: %+v", got)
	}
}

func TestUndoBlockedByGuardrailsRestoresHistory(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	entry, _, _ := f.svc.ConfirmAndQueue(ctx, f.userID, pauseAction("X1"))
	f.svc.Confirm(f.userID, entry.ID)
	f.svc.Execute(ctx, f.userID, entry.ID)

	// Block the compensating enable_entity before undoing.
	f.cfg.BlockedActionTypes = []string{models.ActionEnableEntity}

	_, err := f.svc.Undo(ctx, f.userID)
	var blocked *models.BlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("error = %v, want *BlockedError (rollback passes guardrails too)", err)
	}
	if got := f.svc.History(f.userID); !got.CanUndo {
		t.Errorf("blocked rollback must leave the entry undoable: %+v", got)
	}
}

func TestProposeHasNoSideEffect(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	result, err := f.svc.Propose(ctx, pauseAction("X1"))
	if err != nil {
		t.Fatalf("propose failed: %v", err)
	}
	if !result.Allowed {
		t.Errorf("propose result = %+v, want allowed", result)
	}
	if len(f.svc.QueueSnapshot(f.userID)) != 0 {
		t.Error("propose must not stage anything")
	}
	if f.audit.len() != 0 {
		t.Error("propose must not write audit entries")
	}
}
