package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/intellego/platform/internal/apperror"
	"github.com/intellego/platform/internal/dto"
	"github.com/intellego/platform/internal/middleware"
	"github.com/intellego/platform/internal/usecase"
	"github.com/intellego/platform/internal/util"
)

type ReportHandler struct {
	uc *usecase.ReportUsecase
}

func NewReportHandler(uc *usecase.ReportUsecase) *ReportHandler {
	return &ReportHandler{uc: uc}
}

func (h *ReportHandler) RegisterRoutes(router fiber.Router) {
	router.Post("/reports", middleware.RateLimiter(10, time.Minute), h.Submit)
	router.Get("/reports", h.Overview)
}

func (h *ReportHandler) Submit(c *fiber.Ctx) error {
	var req dto.SubmitReportRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, "invalid request body", apperror.NewValidationError("body", "must be valid JSON"))
	}

	report, err := h.uc.Submit(c.UserContext(), usecase.SubmitInput{
		StudentID: req.StudentID,
		Subject:   req.Subject,
		Answers:   req.Answers,
	})
	if err != nil {
		return respondError(c, "failed to submit report", err)
	}

	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Code:    fiber.StatusCreated,
		Message: "Report submitted",
		Data:    usecase.ToReportDTO(report),
	})
}

func (h *ReportHandler) Overview(c *fiber.Ctx) error {
	studentID, err := uuid.Parse(c.Query("student_id"))
	if err != nil {
		return respondError(c, "invalid student id", apperror.NewValidationError("student_id", "must be a valid UUID"))
	}

	overview, pagination, err := h.uc.Overview(
		c.UserContext(),
		studentID,
		c.Query("subject"),
		c.QueryInt("page", 1),
		c.QueryInt("page_size", 10),
	)
	if err != nil {
		return respondError(c, "failed to load reports", err)
	}

	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Code:       fiber.StatusOK,
		Message:    "Success",
		Data:       overview,
		Pagination: pagination,
	})
}
