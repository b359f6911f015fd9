package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/intellego/platform/internal/apperror"
	"github.com/intellego/platform/internal/dto"
	"github.com/intellego/platform/internal/middleware"
	"github.com/intellego/platform/internal/usecase"
	"github.com/intellego/platform/internal/util"
)

type BatchHandler struct {
	uc *usecase.BatchUsecase
}

func NewBatchHandler(uc *usecase.BatchUsecase) *BatchHandler {
	return &BatchHandler{uc: uc}
}

func (h *BatchHandler) RegisterRoutes(router fiber.Router) {
	group := router.Group("/batch-feedback", middleware.RequireInstructor())
	group.Post("/", middleware.RateLimiter(2, 10*time.Second), h.Start)
	group.Get("/", h.Pending)
	group.Get("/:jobId", h.Progress)
}

// Start launches a batch over the reports pending at call time. An empty
// body means every subject.
func (h *BatchHandler) Start(c *fiber.Ctx) error {
	var req dto.StartBatchRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return respondError(c, "invalid request body", apperror.NewValidationError("body", "must be valid JSON"))
		}
	}

	res, err := h.uc.Start(c.UserContext(), req.Subject)
	if err != nil {
		return respondError(c, "failed to start batch", err)
	}

	code := fiber.StatusAccepted
	message := "Batch started"
	if !res.JobStarted {
		code = fiber.StatusOK
		message = "No pending reports"
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Code:    code,
		Message: message,
		Data:    res,
	})
}

func (h *BatchHandler) Pending(c *fiber.Ctx) error {
	pending, err := h.uc.Pending(c.UserContext(), c.Query("subject"))
	if err != nil {
		return respondError(c, "failed to count pending reports", err)
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Code:    fiber.StatusOK,
		Message: "Success",
		Data:    pending,
	})
}

func (h *BatchHandler) Progress(c *fiber.Ctx) error {
	job, err := h.uc.Progress(c.UserContext(), c.Params("jobId"))
	if err != nil {
		return respondError(c, "failed to load job", err)
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Code:    fiber.StatusOK,
		Message: "Success",
		Data:    job,
	})
}
