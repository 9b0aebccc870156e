package handlers

import (
	"github.com/adpilot/backend/internal/auth"
	"github.com/adpilot/backend/internal/config"
	"github.com/adpilot/backend/internal/http/dto"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type AuthHandler struct {
	cfg *config.Config
	log *zap.Logger
}

func NewAuthHandler(cfg *config.Config, log *zap.Logger) *AuthHandler {
	return &AuthHandler{cfg: cfg, log: log}
}

// CreateSession exchanges a configured account API key for a JWT bound to
// that account and role.
func (h *AuthHandler) CreateSession(c *fiber.Ctx) error {
	var req dto.SessionRequest
	if err := c.BodyParser(&req); err != nil || req.APIKey == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "api_key is required"})
	}

	key, ok := h.cfg.LookupAPIKey(req.APIKey)
	if !ok {
		h.log.Debug("session rejected: unknown api key")
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: "invalid api key"})
	}

	userID := uuid.New() // one fresh session identity per login
	token, err := auth.GenerateJWT(h.cfg.JWTSecret, userID, key.AccountID, key.Role, h.cfg.JWTExpiration)
	if err != nil {
		h.log.Error("failed to sign session token", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.SessionResponse{
		Token:     token,
		AccountID: key.AccountID,
		Role:      key.Role,
	}})
}
