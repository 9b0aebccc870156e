package handlers

import (
	"errors"
	"time"

	"github.com/adpilot/backend/internal/http/dto"
	"github.com/adpilot/backend/internal/middleware"
	"github.com/adpilot/backend/internal/models"
	"github.com/adpilot/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ActionHandler struct {
	actionService *services.ActionService
	log           *zap.Logger
}

func NewActionHandler(actionService *services.ActionService, log *zap.Logger) *ActionHandler {
	return &ActionHandler{actionService: actionService, log: log}
}

func (h *ActionHandler) buildAction(c *fiber.Ctx, req dto.ActionRequest) *models.Action {
	source := req.Source
	if source == "" || source == models.SourceRollback {
		// Rollback entries come only from the history controller.
		source = models.SourceUser
	}
	userID := middleware.GetUserID(c)
	return &models.Action{
		ID:           uuid.New(),
		Type:         req.ActionType,
		EntityType:   req.EntityType,
		EntityID:     req.EntityID,
		EntityName:   req.EntityName,
		CurrentValue: req.CurrentValue,
		NewValue:     req.NewValue,
		Reason:       req.Reason,
		AccountID:    middleware.GetAccountID(c),
		ActorUserID:  &userID,
		Source:       source,
		CreatedAt:    time.Now(),
	}
}

// respondError maps the error taxonomy onto HTTP statuses. Guardrail
// blocks and queue-state errors surface directly; execution failures never
// arrive here, they are captured in the audit trail.
func respondError(c *fiber.Ctx, err error, result *models.GuardrailResult) error {
	var blocked *models.BlockedError
	if errors.As(err, &blocked) {
		resp := dto.BlockedResponse{Error: blocked.Error(), BlockReasons: blocked.Reasons}
		if result != nil {
			resp.Warnings = result.Warnings
		}
		return c.Status(fiber.StatusUnprocessableEntity).JSON(resp)
	}

	var queueState *models.QueueStateError
	if errors.As(err, &queueState) {
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Error: queueState.Error()})
	}

	var irreversible *models.IrreversibleError
	if errors.As(err, &irreversible) {
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Error: irreversible.Error()})
	}

	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: err.Error()})
}

// Propose evaluates an action without staging it.
func (h *ActionHandler) Propose(c *fiber.Ctx) error {
	var req dto.ActionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	result, err := h.actionService.Propose(c.Context(), h.buildAction(c, req))
	if err != nil {
		return respondError(c, err, nil)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: result})
}

// Queue stages a single confirmed action.
func (h *ActionHandler) Queue(c *fiber.Ctx) error {
	var req dto.ActionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	userID := middleware.GetUserID(c)
	entry, result, err := h.actionService.ConfirmAndQueue(c.Context(), userID, h.buildAction(c, req))
	if err != nil {
		return respondError(c, err, &result)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: dto.QueueActionResponse{
		Entry:     entry,
		Guardrail: result,
	}})
}

// QueueBulk stages a batch all-or-nothing.
func (h *ActionHandler) QueueBulk(c *fiber.Ctx) error {
	var req dto.BulkActionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}
	if len(req.Actions) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "actions are required"})
	}

	actions := make([]*models.Action, 0, len(req.Actions))
	for _, r := range req.Actions {
		actions = append(actions, h.buildAction(c, r))
	}

	userID := middleware.GetUserID(c)
	entries, result, err := h.actionService.ConfirmAndQueueBulk(c.Context(), userID, actions)
	if err != nil {
		return respondError(c, err, &result)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: dto.QueueActionResponse{
		Entries:   entries,
		Guardrail: result,
	}})
}

func (h *ActionHandler) QueueSnapshot(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	return c.JSON(dto.SuccessResponse{OK: true, Data: h.actionService.QueueSnapshot(userID)})
}

func (h *ActionHandler) QueueStats(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	return c.JSON(dto.SuccessResponse{OK: true, Data: h.actionService.QueueStats(userID)})
}

func (h *ActionHandler) Confirm(c *fiber.Ctx) error {
	entryID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid entry id"})
	}

	userID := middleware.GetUserID(c)
	entry, err := h.actionService.Confirm(userID, entryID)
	if err != nil {
		return respondError(c, err, nil)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: entry})
}

func (h *ActionHandler) Cancel(c *fiber.Ctx) error {
	entryID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid entry id"})
	}

	userID := middleware.GetUserID(c)
	entry, err := h.actionService.Cancel(userID, entryID)
	if err != nil {
		return respondError(c, err, nil)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: entry})
}

// Execute runs one confirmed entry. A failed mutation is a 200 with
// status=failed in the audit entry, not an HTTP error.
func (h *ActionHandler) Execute(c *fiber.Ctx) error {
	entryID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid entry id"})
	}

	userID := middleware.GetUserID(c)
	audit, err := h.actionService.Execute(c.Context(), userID, entryID)
	if err != nil {
		return respondError(c, err, nil)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: audit})
}

// ExecuteConfirmed drains every confirmed entry in the session queue.
func (h *ActionHandler) ExecuteConfirmed(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	audits, err := h.actionService.ExecuteConfirmed(c.Context(), userID)
	if err != nil {
		h.log.Error("batch execution failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: audits})
}

func (h *ActionHandler) History(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	return c.JSON(dto.SuccessResponse{OK: true, Data: h.actionService.History(userID)})
}

func (h *ActionHandler) Undo(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	audit, err := h.actionService.Undo(c.Context(), userID)
	if err != nil {
		return respondError(c, err, nil)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: audit})
}

func (h *ActionHandler) Redo(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	audit, err := h.actionService.Redo(c.Context(), userID)
	if err != nil {
		return respondError(c, err, nil)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: audit})
}
