package handler

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/intellego/platform/internal/apperror"
	"github.com/intellego/platform/internal/dto"
	"github.com/intellego/platform/internal/logger"
	"github.com/intellego/platform/internal/middleware"
	"github.com/intellego/platform/internal/usecase"
	"github.com/intellego/platform/internal/util"
)

const maxExamFileSize = 5 * 1024 * 1024

var examExtensions = map[string]bool{".md": true, ".pdf": true}

type EvaluationHandler struct {
	uc        *usecase.EvaluationUsecase
	uploadDir string
	log       *logger.Logger
}

func NewEvaluationHandler(uc *usecase.EvaluationUsecase, uploadDir string, log *logger.Logger) *EvaluationHandler {
	return &EvaluationHandler{uc: uc, uploadDir: uploadDir, log: log}
}

func (h *EvaluationHandler) RegisterRoutes(router fiber.Router) {
	group := router.Group("/evaluations", middleware.RequireInstructor())
	group.Post("/", middleware.RateLimiter(5, 10*time.Second), h.Upload)
	group.Get("/", h.List)
	group.Patch("/:id", h.Correct)
}

func (h *EvaluationHandler) Upload(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return respondError(c, "file is required", apperror.NewValidationError("file", "is required"))
	}
	if file.Size > maxExamFileSize {
		return respondError(c, "file too large", apperror.NewValidationError("file", "file size is too large (max 5MB)"))
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !examExtensions[ext] {
		return respondError(c, "unsupported file type", apperror.NewValidationError("file", "only .md and .pdf files are accepted"))
	}

	in := usecase.UploadInput{
		FileName:     filepath.Base(file.Filename),
		Subject:      c.FormValue("subject"),
		Division:     c.FormValue("division"),
		AcademicYear: c.FormValue("academic_year"),
		Campus:       c.FormValue("campus"),
		ExamTopic:    c.FormValue("exam_topic"),
		Preview:      c.FormValue("preview") == "true",
		InstructorID: middleware.InstructorID(c),
	}
	if raw := c.FormValue("exam_date"); raw != "" {
		in.ExamDate, err = time.Parse(time.DateOnly, raw)
		if err != nil {
			return respondError(c, "invalid exam date", apperror.NewValidationError("exam_date", "must be YYYY-MM-DD"))
		}
	}
	if raw := c.FormValue("student_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return respondError(c, "invalid student id", apperror.NewValidationError("student_id", "must be a valid UUID"))
		}
		in.StudentID = &id
	}

	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		return util.ErrorResponse(c, util.ErrorResponseFormat{Message: "cannot save file"}, err)
	}
	// Stored under a generated name; matching uses the original filename.
	in.Path = filepath.Join(h.uploadDir, uuid.NewString()+ext)
	if err := c.SaveFile(file, in.Path); err != nil {
		return util.ErrorResponse(c, util.ErrorResponseFormat{Message: "cannot save file"}, err)
	}
	res, err := h.uc.Upload(c.UserContext(), in)
	if err != nil || in.Preview {
		h.discard(in.Path)
	}
	if err != nil {
		return respondError(c, "failed to evaluate exam", err)
	}

	code, message := fiber.StatusCreated, "Evaluation stored"
	if res.Preview {
		code, message = fiber.StatusOK, "Evaluation preview"
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Code:    code,
		Message: message,
		Data:    usecase.ToEvaluationDTO(res.Evaluation, res.Student.Name),
		Meta: fiber.Map{
			"preview":    res.Preview,
			"confidence": res.Match.Confidence,
			"ambiguous":  res.Match.Ambiguous,
		},
	})
}

// discard removes an upload that will not back a stored evaluation.
func (h *EvaluationHandler) discard(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		h.log.Warn("remove upload failed", "path", path, "error", err)
	}
}

func (h *EvaluationHandler) List(c *fiber.Ctx) error {
	studentID, err := uuid.Parse(c.Query("student_id"))
	if err != nil {
		return respondError(c, "invalid student id", apperror.NewValidationError("student_id", "must be a valid UUID"))
	}
	evals, err := h.uc.ListByStudent(c.UserContext(), studentID)
	if err != nil {
		return respondError(c, "failed to list evaluations", err)
	}
	out := make([]dto.EvaluationDTO, 0, len(evals))
	for i := range evals {
		out = append(out, usecase.ToEvaluationDTO(&evals[i], ""))
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Code:    fiber.StatusOK,
		Message: "Success",
		Data:    out,
	})
}

func (h *EvaluationHandler) Correct(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return respondError(c, "invalid evaluation id", err)
	}
	var req dto.CorrectEvaluationRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, "invalid request body", apperror.NewValidationError("body", "must be valid JSON"))
	}

	eval, err := h.uc.Correct(c.UserContext(), id, middleware.InstructorID(c), req)
	if err != nil {
		return respondError(c, "failed to correct evaluation", err)
	}
	h.log.Info("evaluation corrected", "evaluation_id", eval.ID, "instructor_id", middleware.InstructorID(c))
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Code:    fiber.StatusOK,
		Message: "Evaluation updated",
		Data:    usecase.ToEvaluationDTO(eval, ""),
	})
}
