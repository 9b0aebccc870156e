package services

import (
	"context"
	"sync"
	"time"

	"github.com/adpilot/backend/internal/events"
	"github.com/adpilot/backend/internal/guardrails"
	"github.com/adpilot/backend/internal/models"
	"github.com/adpilot/backend/internal/pipeline"
	"github.com/adpilot/backend/internal/queue"
	"github.com/adpilot/backend/internal/undo"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SnapshotProvider supplies current entity state for guardrail evaluation.
type SnapshotProvider interface {
	FetchSnapshot(ctx context.Context, accountID string, entityKeys []string) (*models.Snapshot, error)
}

// GuardrailConfigSource yields the effective guardrail config per account.
type GuardrailConfigSource interface {
	Get(ctx context.Context, accountID string) (*models.GuardrailConfig, error)
}

// session bundles the per-user queue and history. One dashboard session
// owns both; there is no cross-session sharing.
type session struct {
	queue   *queue.Queue
	history *undo.Controller
}

// ActionService orchestrates the propose -> guardrail -> queue ->
// execute -> audit -> history flow. It never touches display state; it
// only emits committed/failed outcomes over the event bus.
type ActionService struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*session

	executor   *pipeline.Executor
	guardrails GuardrailConfigSource
	snapshots  SnapshotProvider
	publisher  events.Publisher
	undoDepth  int
	log        *zap.Logger
}

func NewActionService(
	executor *pipeline.Executor,
	guardrailSource GuardrailConfigSource,
	snapshots SnapshotProvider,
	publisher events.Publisher,
	undoDepth int,
	log *zap.Logger,
) *ActionService {
	return &ActionService{
		sessions:   make(map[uuid.UUID]*session),
		executor:   executor,
		guardrails: guardrailSource,
		snapshots:  snapshots,
		publisher:  publisher,
		undoDepth:  undoDepth,
		log:        log,
	}
}

func (s *ActionService) session(userID uuid.UUID) *session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[userID]
	if !ok {
		sess = &session{
			queue:   queue.New(),
			history: undo.NewController(s.undoDepth),
		}
		s.sessions[userID] = sess
	}
	return sess
}

// snapshotFor fetches entity state for the given actions. A snapshot
// provider outage degrades to an empty snapshot: snapshot-dependent rules
// simply find nothing, configuration-only rules still run.
func (s *ActionService) snapshotFor(ctx context.Context, accountID string, actions []*models.Action) *models.Snapshot {
	keys := make([]string, 0, len(actions))
	for _, a := range actions {
		keys = append(keys, a.EntityKey())
	}
	snap, err := s.snapshots.FetchSnapshot(ctx, accountID, keys)
	if err != nil {
		s.log.Warn("snapshot fetch failed, evaluating without entity state",
			zap.String("account_id", accountID), zap.Error(err))
		return &models.Snapshot{}
	}
	return snap
}

// Propose evaluates an action without any side effect, so the UI can show
// warnings in a confirmation dialog before committing to the queue.
func (s *ActionService) Propose(ctx context.Context, action *models.Action) (models.GuardrailResult, error) {
	if err := action.Validate(); err != nil {
		return models.GuardrailResult{}, err
	}
	cfg, err := s.guardrails.Get(ctx, action.AccountID)
	if err != nil {
		return models.GuardrailResult{}, err
	}
	snap := s.snapshotFor(ctx, action.AccountID, []*models.Action{action})
	return guardrails.Evaluate(action, snap, cfg), nil
}

// ConfirmAndQueue evaluates, then stages a single action. A blocked action
// never reaches the queue; a warned action is staged (the caller confirmed
// it). Queuing a new user action clears the redo stack.
func (s *ActionService) ConfirmAndQueue(ctx context.Context, userID uuid.UUID, action *models.Action) (*models.QueueEntry, models.GuardrailResult, error) {
	if err := action.Validate(); err != nil {
		return nil, models.GuardrailResult{}, err
	}
	cfg, err := s.guardrails.Get(ctx, action.AccountID)
	if err != nil {
		return nil, models.GuardrailResult{}, err
	}
	snap := s.snapshotFor(ctx, action.AccountID, []*models.Action{action})
	result := guardrails.Evaluate(action, snap, cfg)
	if !result.Allowed {
		return nil, result, &models.BlockedError{Reasons: result.BlockReasons}
	}

	sess := s.session(userID)
	entry, res := sess.queue.AddReconciled(action)
	sess.history.ClearRedo()

	s.publishQueueEvents(ctx, userID, entry, res)
	return entry, result, nil
}

// ConfirmAndQueueBulk stages a batch. Conflicting intents for one entity
// collapse to the last before aggregate rules run, and admission is
// all-or-nothing: a bulk block stages zero entries.
func (s *ActionService) ConfirmAndQueueBulk(ctx context.Context, userID uuid.UUID, actions []*models.Action) ([]*models.QueueEntry, models.GuardrailResult, error) {
	if len(actions) == 0 {
		return nil, models.GuardrailResult{Allowed: true}, nil
	}
	accountID := actions[0].AccountID
	for _, a := range actions {
		if err := a.Validate(); err != nil {
			return nil, models.GuardrailResult{}, err
		}
	}

	deduped := queue.DedupeBatch(actions)

	cfg, err := s.guardrails.Get(ctx, accountID)
	if err != nil {
		return nil, models.GuardrailResult{}, err
	}
	snap := s.snapshotFor(ctx, accountID, deduped)
	result := guardrails.EvaluateBulk(deduped, snap, cfg)
	if !result.Allowed {
		return nil, result, &models.BlockedError{Reasons: result.BlockReasons}
	}

	sess := s.session(userID)
	entries := make([]*models.QueueEntry, 0, len(deduped))
	for _, a := range deduped {
		entry, res := sess.queue.AddReconciled(a)
		entries = append(entries, entry)
		s.publishQueueEvents(ctx, userID, entry, res)
	}
	sess.history.ClearRedo()

	return entries, result, nil
}

func (s *ActionService) Confirm(userID uuid.UUID, entryID uuid.UUID) (*models.QueueEntry, error) {
	return s.session(userID).queue.Confirm(entryID)
}

func (s *ActionService) Cancel(userID uuid.UUID, entryID uuid.UUID) (*models.QueueEntry, error) {
	return s.session(userID).queue.Cancel(entryID)
}

// Execute runs one confirmed entry and records the commit in undo history
// when it came from a user/AI proposal.
func (s *ActionService) Execute(ctx context.Context, userID uuid.UUID, entryID uuid.UUID) (*models.AuditEntry, error) {
	sess := s.session(userID)
	audit, err := s.executor.Execute(ctx, sess.queue, entryID)
	if err != nil {
		return nil, err
	}
	if audit.Status == models.AuditStatusSuccess && audit.Source != models.SourceRollback {
		sess.history.RecordCommit(audit)
	}
	return audit, nil
}

// ExecuteConfirmed drains every confirmed entry. Different entities run
// concurrently; same-entity entries keep FIFO order.
func (s *ActionService) ExecuteConfirmed(ctx context.Context, userID uuid.UUID) ([]*models.AuditEntry, error) {
	sess := s.session(userID)

	confirmed := sess.queue.ListByStatus(models.QueueStatusConfirmed)
	ids := make([]uuid.UUID, 0, len(confirmed))
	for _, e := range confirmed {
		ids = append(ids, e.ID)
	}

	results := s.executor.ExecuteBatch(ctx, sess.queue, ids)

	audits := make([]*models.AuditEntry, 0, len(results))
	for _, id := range ids {
		audit, ok := results[id]
		if !ok {
			continue
		}
		if audit.Status == models.AuditStatusSuccess && audit.Source != models.SourceRollback {
			sess.history.RecordCommit(audit)
		}
		audits = append(audits, audit)
	}
	return audits, nil
}

func (s *ActionService) QueueSnapshot(userID uuid.UUID) []*models.QueueEntry {
	return s.session(userID).queue.List()
}

func (s *ActionService) QueueStats(userID uuid.UUID) map[string]int {
	return s.session(userID).queue.SizeByStatus()
}

// HistoryState describes undo/redo availability for UI display.
type HistoryState struct {
	CanUndo    bool   `json:"can_undo"`
	CanRedo    bool   `json:"can_redo"`
	LastAction string `json:"last_action,omitempty"`
}

func (s *ActionService) History(userID uuid.UUID) HistoryState {
	h := s.session(userID).history
	return HistoryState{
		CanUndo:    h.CanUndo(),
		CanRedo:    h.CanRedo(),
		LastAction: h.LastAction(),
	}
}

// Undo derives the compensating action for the most recent commit and runs
// it through the normal guardrail/queue/execute path. A rollback that
// guardrails would block is blocked and surfaced, not forced through.
func (s *ActionService) Undo(ctx context.Context, userID uuid.UUID) (*models.AuditEntry, error) {
	sess := s.session(userID)

	original, action, err := sess.history.TakeUndo()
	if err != nil {
		return nil, err
	}

	audit, err := s.runRollback(ctx, sess, action)
	if err != nil {
		sess.history.RestoreUndo(original)
		return nil, err
	}
	if audit.Status == models.AuditStatusSuccess {
		sess.history.PushRedo(original)
	} else {
		sess.history.RestoreUndo(original)
	}
	return audit, nil
}

// Redo re-applies the most recently undone action through the same path.
func (s *ActionService) Redo(ctx context.Context, userID uuid.UUID) (*models.AuditEntry, error) {
	sess := s.session(userID)

	original, action, err := sess.history.TakeRedo()
	if err != nil {
		return nil, err
	}

	audit, err := s.runRollback(ctx, sess, action)
	if err != nil {
		sess.history.RestoreRedo(original)
		return nil, err
	}
	if audit.Status == models.AuditStatusSuccess {
		// The replayed commit is undoable again.
		sess.history.RecordCommit(audit)
	} else {
		sess.history.RestoreRedo(original)
	}
	return audit, nil
}

// runRollback pushes a history-synthesized action through guardrails, the
// queue and the pipeline, exactly as any new action.
func (s *ActionService) runRollback(ctx context.Context, sess *session, action *models.Action) (*models.AuditEntry, error) {
	cfg, err := s.guardrails.Get(ctx, action.AccountID)
	if err != nil {
		return nil, err
	}
	snap := s.snapshotFor(ctx, action.AccountID, []*models.Action{action})
	result := guardrails.Evaluate(action, snap, cfg)
	if !result.Allowed {
		return nil, &models.BlockedError{Reasons: result.BlockReasons}
	}

	entry, res := sess.queue.AddReconciled(action)
	s.publishQueueEvents(ctx, uuid.Nil, entry, res)
	if _, err := sess.queue.Confirm(entry.ID); err != nil {
		return nil, err
	}
	return s.executor.Execute(ctx, sess.queue, entry.ID)
}

func (s *ActionService) publishQueueEvents(ctx context.Context, userID uuid.UUID, entry *models.QueueEntry, res queue.Resolution) {
	if s.publisher == nil {
		return
	}
	_ = s.publisher.Publish(ctx, events.StreamActions, events.Event{
		Type: events.EventActionQueued,
		Payload: map[string]any{
			"entry_id":    entry.ID.String(),
			"user_id":     userID.String(),
			"account_id":  entry.Action.AccountID,
			"entity_type": entry.Action.EntityType,
			"entity_id":   entry.Action.EntityID,
			"action_type": entry.Action.Type,
		},
	})
	if res.Outcome == queue.ResolutionReplace && res.Superseded != nil {
		_ = s.publisher.Publish(ctx, events.StreamActions, events.Event{
			Type: events.EventActionSuperseded,
			Payload: map[string]any{
				"entry_id":      res.Superseded.ID.String(),
				"superseded_by": entry.ID.String(),
				"account_id":    entry.Action.AccountID,
			},
		})
	}
}

// StartJanitor expires stale pending entries on an interval so abandoned
// confirmation dialogs cannot pin old mutations. Runs until ctx is done.
func (s *ActionService) StartJanitor(ctx context.Context, interval, pendingTTL time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.expireStale(pendingTTL)
			}
		}
	}()
}

func (s *ActionService) expireStale(pendingTTL time.Duration) {
	cutoff := time.Now().Add(-pendingTTL)

	s.mu.Lock()
	sessions := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	for _, sess := range sessions {
		for _, entry := range sess.queue.ExpirePending(cutoff) {
			s.log.Info("expired stale pending entry",
				zap.String("entry_id", entry.ID.String()),
				zap.String("entity", entry.Action.EntityKey()),
			)
		}
	}
}
