package handlers

import (
	"github.com/adpilot/backend/internal/http/dto"
	"github.com/adpilot/backend/internal/middleware"
	"github.com/adpilot/backend/internal/models"
	"github.com/adpilot/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type GuardrailHandler struct {
	guardrailService *services.GuardrailService
	log              *zap.Logger
}

func NewGuardrailHandler(guardrailService *services.GuardrailService, log *zap.Logger) *GuardrailHandler {
	return &GuardrailHandler{guardrailService: guardrailService, log: log}
}

func (h *GuardrailHandler) Get(c *fiber.Ctx) error {
	cfg, err := h.guardrailService.Get(c.Context(), middleware.GetAccountID(c))
	if err != nil {
		h.log.Error("guardrail config fetch failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: cfg})
}

func (h *GuardrailHandler) Update(c *fiber.Ctx) error {
	var req dto.UpdateGuardrailsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	for _, t := range req.BlockedActionTypes {
		if !models.IsValidActionType(t) {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "unknown action type: " + t})
		}
	}

	cfg := &models.GuardrailConfig{
		AccountID:            middleware.GetAccountID(c),
		Enabled:              req.Enabled,
		MaxBulkActions:       req.MaxBulkActions,
		MaxBudgetDeltaPct:    req.MaxBudgetDeltaPct,
		WarnBudgetDeltaPct:   req.WarnBudgetDeltaPct,
		MaxSpendAtRiskMicros: req.MaxSpendAtRiskMicros,
		BlockedActionTypes:   req.BlockedActionTypes,
	}

	if err := h.guardrailService.Update(c.Context(), cfg); err != nil {
		h.log.Error("guardrail config update failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: cfg})
}
