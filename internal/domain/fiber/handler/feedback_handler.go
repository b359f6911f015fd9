package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/intellego/platform/internal/apperror"
	"github.com/intellego/platform/internal/dto"
	"github.com/intellego/platform/internal/middleware"
	"github.com/intellego/platform/internal/usecase"
	"github.com/intellego/platform/internal/util"
)

type FeedbackHandler struct {
	uc *usecase.FeedbackUsecase
}

func NewFeedbackHandler(uc *usecase.FeedbackUsecase) *FeedbackHandler {
	return &FeedbackHandler{uc: uc}
}

func (h *FeedbackHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/feedback/:reportId", h.Get)
	router.Patch("/feedback/:reportId", middleware.RequireInstructor(), h.Apply)
}

func (h *FeedbackHandler) Get(c *fiber.Ctx) error {
	reportID, err := parseUUIDParam(c, "reportId")
	if err != nil {
		return respondError(c, "invalid report id", err)
	}

	view, err := h.uc.Get(c.UserContext(), reportID)
	if err != nil {
		return respondError(c, "failed to load feedback", err)
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Code:    fiber.StatusOK,
		Message: "Success",
		Data:    view,
	})
}

// Apply runs one state-machine action and returns the resulting view.
func (h *FeedbackHandler) Apply(c *fiber.Ctx) error {
	reportID, err := parseUUIDParam(c, "reportId")
	if err != nil {
		return respondError(c, "invalid report id", err)
	}

	var req dto.FeedbackActionRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, "invalid request body", apperror.NewValidationError("body", "must be valid JSON"))
	}

	if _, err := h.uc.Apply(c.UserContext(), reportID, middleware.InstructorID(c), req); err != nil {
		return respondError(c, "failed to update feedback", err)
	}

	view, err := h.uc.Get(c.UserContext(), reportID)
	if err != nil {
		return respondError(c, "failed to load feedback", err)
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Code:    fiber.StatusOK,
		Message: "Feedback " + req.Action + " applied",
		Data:    view,
	})
}
