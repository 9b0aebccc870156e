package dto

import "github.com/adpilot/backend/internal/models"

type SessionResponse struct {
	Token     string `json:"token"`
	AccountID string `json:"account_id"`
	Role      string `json:"role"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

// BlockedResponse carries every guardrail finding so the UI can show all
// reasons, not just the first.
type BlockedResponse struct {
	Error        string           `json:"error"`
	BlockReasons []models.Warning `json:"block_reasons"`
	Warnings     []models.Warning `json:"warnings,omitempty"`
}

// QueueActionResponse pairs the staged entry with the evaluation that
// admitted it.
type QueueActionResponse struct {
	Entry     *models.QueueEntry     `json:"entry,omitempty"`
	Entries   []*models.QueueEntry   `json:"entries,omitempty"`
	Guardrail models.GuardrailResult `json:"guardrail"`
}

type ActionTypeInfo struct {
	ID         string `json:"id"`
	Label      string `json:"label"`
	Field      string `json:"field"`
	Invertible bool   `json:"invertible"`
}
