package handlers

import (
	"github.com/adpilot/backend/internal/http/dto"
	"github.com/adpilot/backend/internal/models"
	"github.com/gofiber/fiber/v2"
)

type MetaHandler struct{}

func NewMetaHandler() *MetaHandler {
	return &MetaHandler{}
}

var actionTypeInfos = []dto.ActionTypeInfo{
	{ID: models.ActionPauseEntity, Label: "Pause"},
	{ID: models.ActionEnableEntity, Label: "Enable"},
	{ID: models.ActionUpdateBudget, Label: "Update budget"},
	{ID: models.ActionUpdateMatchType, Label: "Change match type"},
	{ID: models.ActionUpdateBid, Label: "Update bid"},
}

// GetActionTypes lists the supported action types with their mutated field
// and whether they can be undone. The UI uses the invertible flag to grey
// out undo affordances.
func (h *MetaHandler) GetActionTypes(c *fiber.Ctx) error {
	out := make([]dto.ActionTypeInfo, 0, len(actionTypeInfos))
	for _, info := range actionTypeInfos {
		info.Field = models.FieldForActionType(info.ID)
		info.Invertible = models.IsInvertible(info.ID)
		out = append(out, info)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: out})
}
