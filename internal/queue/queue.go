// Package queue holds the in-memory staged-action queue for one dashboard
// session. All mutation goes through a single lock so rapid interleaved
// add/cancel/reconcile calls cannot race.
package queue

import (
	"sync"
	"time"

	"github.com/adpilot/backend/internal/models"
	"github.com/google/uuid"
)

type Queue struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*models.QueueEntry
	order   []uuid.UUID // FIFO insertion order
}

func New() *Queue {
	return &Queue{
		entries: make(map[uuid.UUID]*models.QueueEntry),
	}
}

// Add stages an action as a new pending entry. Guardrail evaluation happens
// in the calling layer before Add: a blocked action never reaches the queue.
func (q *Queue) Add(action *models.Action) *models.QueueEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.addLocked(action)
}

func (q *Queue) addLocked(action *models.Action) *models.QueueEntry {
	entry := &models.QueueEntry{
		ID:       uuid.New(),
		Action:   action,
		Status:   models.QueueStatusPending,
		QueuedAt: time.Now(),
	}
	q.entries[entry.ID] = entry
	q.order = append(q.order, entry.ID)
	return entry
}

// Get returns a copy-safe pointer to the entry, or a QueueStateError when
// the id is unknown.
func (q *Queue) Get(id uuid.UUID) (*models.QueueEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	entry, ok := q.entries[id]
	if !ok {
		return nil, &models.QueueStateError{EntryID: id, Status: "unknown", Op: "get"}
	}
	return entry, nil
}

// Confirm moves a pending entry to confirmed, making it eligible for
// execution.
func (q *Queue) Confirm(id uuid.UUID) (*models.QueueEntry, error) {
	return q.transition(id, models.QueueStatusConfirmed, "confirm")
}

// Cancel withdraws an entry before execution. Cancelling an executing or
// finished entry is a QueueStateError, not a silent no-op.
func (q *Queue) Cancel(id uuid.UUID) (*models.QueueEntry, error) {
	return q.transition(id, models.QueueStatusCancelled, "cancel")
}

func (q *Queue) transition(id uuid.UUID, to, op string) (*models.QueueEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	entry, ok := q.entries[id]
	if !ok {
		return nil, &models.QueueStateError{EntryID: id, Status: "unknown", Op: op}
	}
	if !models.IsValidQueueTransition(entry.Status, to) {
		return nil, &models.QueueStateError{EntryID: id, Status: entry.Status, Op: op}
	}
	entry.Status = to
	now := time.Now()
	entry.ResolvedAt = &now
	return entry, nil
}

// MarkExecuting atomically claims an entry for execution. It fails unless
// the entry is confirmed and no other entry for the same entity is
// currently executing; this is the serialization point for the
// one-in-flight-per-entity invariant.
func (q *Queue) MarkExecuting(id uuid.UUID) (*models.QueueEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	entry, ok := q.entries[id]
	if !ok {
		return nil, &models.QueueStateError{EntryID: id, Status: "unknown", Op: "execute"}
	}
	if !models.IsValidQueueTransition(entry.Status, models.QueueStatusExecuting) {
		return nil, &models.QueueStateError{EntryID: id, Status: entry.Status, Op: "execute"}
	}

	key := entry.Action.EntityKey()
	for _, other := range q.entries {
		if other.ID != id && other.Status == models.QueueStatusExecuting && other.Action.EntityKey() == key {
			return nil, &models.QueueStateError{EntryID: id, Status: entry.Status, Op: "execute"}
		}
	}

	entry.Status = models.QueueStatusExecuting
	return entry, nil
}

// MarkResult records the execution outcome for an executing entry.
func (q *Queue) MarkResult(id uuid.UUID, committed bool) error {
	to := models.QueueStatusFailed
	if committed {
		to = models.QueueStatusCommitted
	}
	_, err := q.transition(id, to, "finish")
	return err
}

// List returns entries in FIFO order.
func (q *Queue) List() []*models.QueueEntry {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]*models.QueueEntry, 0, len(q.order))
	for _, id := range q.order {
		out = append(out, q.entries[id])
	}
	return out
}

// ListByStatus returns entries with the given status in FIFO order.
func (q *Queue) ListByStatus(status string) []*models.QueueEntry {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []*models.QueueEntry
	for _, id := range q.order {
		if e := q.entries[id]; e.Status == status {
			out = append(out, e)
		}
	}
	return out
}

// SizeByStatus returns entry counts keyed by status.
func (q *Queue) SizeByStatus() map[string]int {
	q.mu.Lock()
	defer q.mu.Unlock()

	sizes := make(map[string]int)
	for _, e := range q.entries {
		sizes[e.Status]++
	}
	return sizes
}

// ExpirePending cancels pending entries queued before the cutoff and
// returns them. Used by the janitor so an abandoned confirmation dialog
// cannot pin a stale mutation.
func (q *Queue) ExpirePending(cutoff time.Time) []*models.QueueEntry {
	q.mu.Lock()
	defer q.mu.Unlock()

	var expired []*models.QueueEntry
	now := time.Now()
	for _, id := range q.order {
		e := q.entries[id]
		if e.Status == models.QueueStatusPending && e.QueuedAt.Before(cutoff) {
			e.Status = models.QueueStatusCancelled
			e.ResolvedAt = &now
			expired = append(expired, e)
		}
	}
	return expired
}
