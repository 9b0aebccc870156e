package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/adpilot/backend/internal/models"
	"github.com/adpilot/backend/internal/queue"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func strPtr(s string) *string { return &s }

type fakeMutator struct {
	mu       sync.Mutex
	calls    []string // entity keys in call order
	failFor  map[string]error
	inFlight map[string]int
	maxSame  int // max concurrent calls observed for one entity
}

func newFakeMutator() *fakeMutator {
	return &fakeMutator{
		failFor:  make(map[string]error),
		inFlight: make(map[string]int),
	}
}

func (m *fakeMutator) Mutate(_ context.Context, _, entityType, entityID, _ string, newValue models.ActionValue) error {
	key := entityType + ":" + entityID

	m.mu.Lock()
	call := key
	if newValue.EntityStatus != nil {
		call = key + "=" + *newValue.EntityStatus
	}
	m.calls = append(m.calls, call)
	m.inFlight[key]++
	if m.inFlight[key] > m.maxSame {
		m.maxSame = m.inFlight[key]
	}
	err := m.failFor[key]
	m.mu.Unlock()

	time.Sleep(2 * time.Millisecond) // widen the overlap window

	m.mu.Lock()
	m.inFlight[key]--
	m.mu.Unlock()
	return err
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

func stage(t *testing.T, q *queue.Queue, action *models.Action) uuid.UUID {
	t.Helper()
	entry := q.Add(action)
	if _, err := q.Confirm(entry.ID); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	return entry.ID
}

func TestExecuteSuccess(t *testing.T) {
	q := queue.New()
	mut := newFakeMutator()
	audit := &memAudit{}
	x := NewExecutor(mut, audit, nil, zap.NewNop())

	id := stage(t, q, pauseAction("X123"))
	entry, err := x.Execute(context.Background(), q, id)
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	if entry.Status != models.AuditStatusSuccess {
		t.Errorf("audit status = %s, want success", entry.Status)
	}
	if *entry.BeforeValue.EntityStatus != models.EntityStatusEnabled {
		t.Errorf("before = %v, want ENABLED", *entry.BeforeValue.EntityStatus)
	}
	if *entry.AfterValue.EntityStatus != models.EntityStatusPaused {
		t.Errorf("after = %v, want PAUSED", *entry.AfterValue.EntityStatus)
	}

	got, _ := q.Get(id)
	if got.Status != models.QueueStatusCommitted {
		t.Errorf("queue status = %s, want committed", got.Status)
	}
	if len(audit.entries) != 1 {
		t.Errorf("audit entries = %d, want 1", len(audit.entries))
	}
}

func TestExecuteFailureRecordedNotRetried(t *testing.T) {
	q := queue.New()
	mut := newFakeMutator()
	mut.failFor["campaign:Y9"] = errors.New("RESOURCE_EXHAUSTED: mutation rejected")
	audit := &memAudit{}
	x := NewExecutor(mut, audit, nil, zap.NewNop())

	id := stage(t, q, pauseAction("Y9"))
	entry, err := x.Execute(context.Background(), q, id)
	if err != nil {
		t.Fatalf("execute should capture the failure, not return it: %v", err)
	}

	if entry.Status != models.AuditStatusFailed {
		t.Errorf("audit status = %s, want failed", entry.Status)
	}
	if entry.ErrorMessage == nil || *entry.ErrorMessage == "" {
		t.Error("error message must be set on failed audit entry")
	}
	if entry.Reversible() {
		t.Error("failed entry must not be reversible")
	}

	got, _ := q.Get(id)
	if got.Status != models.QueueStatusFailed {
		t.Errorf("queue status = %s, want failed", got.Status)
	}
	if len(mut.calls) != 1 {
		t.Errorf("mutator called %d times, want exactly 1 (no retry)", len(mut.calls))
	}
}

func TestExecuteRejectsUnconfirmedEntry(t *testing.T) {
	q := queue.New()
	x := NewExecutor(newFakeMutator(), &memAudit{}, nil, zap.NewNop())

	entry := q.Add(pauseAction("X1")) // still pending
	_, err := x.Execute(context.Background(), q, entry.ID)
	var qse *models.QueueStateError
	if !errors.As(err, &qse) {
		t.Fatalf("error = %v, want *QueueStateError", err)
	}
}

func TestExecuteBatchSerializesPerEntity(t *testing.T) {
	q := queue.New()
	mut := newFakeMutator()
	audit := &memAudit{}
	x := NewExecutor(mut, audit, nil, zap.NewNop())

	// Two sequential mutations for X1, one for X2.
	first := stage(t, q, pauseAction("X1"))
	second := stage(t, q, func() *models.Action {
		a := pauseAction("X1")
		a.Type = models.ActionEnableEntity
		a.CurrentValue = models.ActionValue{EntityStatus: strPtr(models.EntityStatusPaused)}
		a.NewValue = models.ActionValue{EntityStatus: strPtr(models.EntityStatusEnabled)}
		return a
	}())
	third := stage(t, q, pauseAction("X2"))

	results := x.ExecuteBatch(context.Background(), q, []uuid.UUID{first, second, third})
	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}

	if mut.maxSame > 1 {
		t.Errorf("same entity mutated concurrently (%d in flight)", mut.maxSame)
	}

	// FIFO per entity: pause on X1 hits the platform before enable on X1.
	var x1Order []string
	for _, call := range mut.calls {
		switch call {
		case "campaign:X1=" + models.EntityStatusPaused, "campaign:X1=" + models.EntityStatusEnabled:
			x1Order = append(x1Order, call)
		}
	}
	want := []string{
		"campaign:X1=" + models.EntityStatusPaused,
		"campaign:X1=" + models.EntityStatusEnabled,
	}
	if len(x1Order) != 2 || x1Order[0] != want[0] || x1Order[1] != want[1] {
		t.Errorf("X1 call order = %v, want %v", x1Order, want)
	}
	if results[first].Status != models.AuditStatusSuccess || results[second].Status != models.AuditStatusSuccess {
		t.Error("expected both X1 mutations to commit")
	}
}
