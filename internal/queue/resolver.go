package queue

import (
	"time"

	"github.com/adpilot/backend/internal/models"
)

// Resolution outcomes for a newly proposed action against queue state.
const (
	ResolutionEnqueue = "enqueue"
	ResolutionReplace = "replace"
)

type Resolution struct {
	Outcome    string             `json:"outcome"`
	Superseded *models.QueueEntry `json:"superseded,omitempty"`
}

// resolveLocked applies last-intent-wins: a pending entry for the same
// entity is superseded by the new action. Entries already confirmed,
// executing or finished are left alone; the new action simply queues behind
// them and the per-entity in-flight invariant serializes execution.
func (q *Queue) resolveLocked(action *models.Action) Resolution {
	key := action.EntityKey()
	for i := len(q.order) - 1; i >= 0; i-- {
		e := q.entries[q.order[i]]
		if e.Status != models.QueueStatusPending || e.Action.EntityKey() != key {
			continue
		}
		return Resolution{Outcome: ResolutionReplace, Superseded: e}
	}
	return Resolution{Outcome: ResolutionEnqueue}
}

// AddReconciled stages an action, first resolving conflicts with existing
// pending entries under the same lock. A superseded entry is cancelled with
// a reference to its replacement; it stays visible for audit purposes but
// is excluded from execution.
func (q *Queue) AddReconciled(action *models.Action) (*models.QueueEntry, Resolution) {
	q.mu.Lock()
	defer q.mu.Unlock()

	res := q.resolveLocked(action)
	entry := q.addLocked(action)

	if res.Outcome == ResolutionReplace {
		now := time.Now()
		res.Superseded.Status = models.QueueStatusCancelled
		res.Superseded.SupersededBy = &entry.ID
		res.Superseded.ResolvedAt = &now
	}
	return entry, res
}

// DedupeBatch collapses a bulk submission to one action per entity,
// keeping the last occurrence (last intent wins). Aggregate guardrail
// counts must reflect de-duplicated intent, not raw submission count.
func DedupeBatch(actions []*models.Action) []*models.Action {
	seen := make(map[string]int, len(actions))
	var out []*models.Action
	for _, a := range actions {
		key := a.EntityKey()
		if idx, ok := seen[key]; ok {
			out[idx] = a
			continue
		}
		seen[key] = len(out)
		out = append(out, a)
	}
	return out
}
