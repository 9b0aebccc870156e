// Package pipeline drains validated queue entries into the external entity
// mutation service and records every attempt in the audit log.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/adpilot/backend/internal/events"
	"github.com/adpilot/backend/internal/models"
	"github.com/adpilot/backend/internal/queue"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Mutator applies one mutation on the ads platform. It is assumed
// network-fallible and not idempotent, so the pipeline never retries.
type Mutator interface {
	Mutate(ctx context.Context, accountID, entityType, entityID, field string, newValue models.ActionValue) error
}

// AuditRecorder appends one audit entry. Implemented by the postgres audit
// repository; tests substitute an in-memory fake.
type AuditRecorder interface {
	Record(ctx context.Context, entry *models.AuditEntry) error
}

type Executor struct {
	mutator   Mutator
	audit     AuditRecorder
	publisher events.Publisher
	log       *zap.Logger
}

func NewExecutor(mutator Mutator, audit AuditRecorder, publisher events.Publisher, log *zap.Logger) *Executor {
	return &Executor{
		mutator:   mutator,
		audit:     audit,
		publisher: publisher,
		log:       log,
	}
}

// Execute runs one confirmed entry: confirmed -> executing -> committed or
// failed. The claim on the executing status is atomic per entity; once
// executing, the entry runs to completion, there is no mid-flight cancel.
// Service failures are captured into the audit trail and the returned
// entry, not thrown away: a failed mutation is a normal, inspectable
// outcome. The returned error is non-nil only for queue-state problems.
func (x *Executor) Execute(ctx context.Context, q *queue.Queue, entryID uuid.UUID) (*models.AuditEntry, error) {
	entry, err := q.MarkExecuting(entryID)
	if err != nil {
		return nil, err
	}

	action := entry.Action
	mutErr := x.mutator.Mutate(ctx, action.AccountID, action.EntityType, action.EntityID,
		models.FieldForActionType(action.Type), action.NewValue)

	audit := &models.AuditEntry{
		ID:          uuid.New(),
		AccountID:   action.AccountID,
		ActorUserID: action.ActorUserID,
		ActionType:  action.Type,
		EntityType:  action.EntityType,
		EntityID:    action.EntityID,
		EntityName:  action.EntityName,
		BeforeValue: action.CurrentValue,
		AfterValue:  action.NewValue,
		Source:      action.Source,
		CreatedAt:   time.Now(),
	}

	if mutErr != nil {
		// No response and an explicit failure response are recorded the
		// same way.
		msg := mutErr.Error()
		audit.Status = models.AuditStatusFailed
		audit.ErrorMessage = &msg
		_ = q.MarkResult(entryID, false)
	} else {
		audit.Status = models.AuditStatusSuccess
		_ = q.MarkResult(entryID, true)
	}

	if err := x.audit.Record(ctx, audit); err != nil {
		x.log.Error("failed to record audit entry",
			zap.String("entry_id", entryID.String()),
			zap.String("entity", action.EntityKey()),
			zap.Error(err),
		)
	}

	x.publishOutcome(ctx, entry, audit)

	if mutErr != nil {
		x.log.Warn("mutation failed",
			zap.String("entry_id", entryID.String()),
			zap.String("entity", action.EntityKey()),
			zap.String("action_type", action.Type),
			zap.Error(mutErr),
		)
	} else {
		x.log.Info("mutation committed",
			zap.String("entry_id", entryID.String()),
			zap.String("entity", action.EntityKey()),
			zap.String("action_type", action.Type),
		)
	}

	return audit, nil
}

// ExecuteBatch runs a set of confirmed entries. Different entities execute
// concurrently; entries for the same entity keep FIFO order within one
// worker. Results are returned keyed by entry id.
func (x *Executor) ExecuteBatch(ctx context.Context, q *queue.Queue, entryIDs []uuid.UUID) map[uuid.UUID]*models.AuditEntry {
	groups := make(map[string][]uuid.UUID)
	var keys []string
	for _, id := range entryIDs {
		entry, err := q.Get(id)
		if err != nil {
			continue
		}
		key := entry.Action.EntityKey()
		if _, ok := groups[key]; !ok {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], id)
	}

	var mu sync.Mutex
	results := make(map[uuid.UUID]*models.AuditEntry, len(entryIDs))

	var wg sync.WaitGroup
	for _, key := range keys {
		wg.Add(1)
		go func(ids []uuid.UUID) {
			defer wg.Done()
			for _, id := range ids {
				audit, err := x.Execute(ctx, q, id)
				if err != nil {
					x.log.Warn("skipping entry in batch", zap.String("entry_id", id.String()), zap.Error(err))
					continue
				}
				mu.Lock()
				results[id] = audit
				mu.Unlock()
			}
		}(groups[key])
	}
	wg.Wait()

	return results
}

func (x *Executor) publishOutcome(ctx context.Context, entry *models.QueueEntry, audit *models.AuditEntry) {
	if x.publisher == nil {
		return
	}
	eventType := events.EventActionCommitted
	if audit.Status == models.AuditStatusFailed {
		eventType = events.EventActionFailed
	}
	_ = x.publisher.Publish(ctx, events.StreamActions, events.Event{
		Type: eventType,
		Payload: map[string]any{
			"entry_id":    entry.ID.String(),
			"audit_id":    audit.ID.String(),
			"account_id":  audit.AccountID,
			"entity_type": audit.EntityType,
			"entity_id":   audit.EntityID,
			"action_type": audit.ActionType,
			"status":      audit.Status,
		},
	})
}
