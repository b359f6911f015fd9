package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/intellego/platform/internal/apperror"
	"github.com/intellego/platform/internal/usecase"
	"github.com/intellego/platform/internal/util"
)

type errorKind struct {
	target error
	status int
	code   string
}

// Order matters: the first matching sentinel wins.
var errorKinds = []errorKind{
	{apperror.ErrValidation, fiber.StatusBadRequest, "validation_error"},
	{apperror.ErrNotEnrolled, fiber.StatusBadRequest, "not_enrolled"},
	{apperror.ErrAlreadySubmitted, fiber.StatusBadRequest, "already_submitted"},
	{apperror.ErrNotFound, fiber.StatusNotFound, "not_found"},
	{apperror.ErrAlreadyGenerated, fiber.StatusConflict, "already_generated"},
	{apperror.ErrNotApproved, fiber.StatusConflict, "not_approved"},
	{apperror.ErrInvalidTransition, fiber.StatusConflict, "invalid_transition"},
	{apperror.ErrConflict, fiber.StatusConflict, "conflict"},
	{apperror.ErrLowConfidence, fiber.StatusUnprocessableEntity, "low_confidence"},
	{apperror.ErrDelivery, fiber.StatusBadGateway, "delivery_failed"},
}

func classify(err error) (int, string) {
	for _, k := range errorKinds {
		if errors.Is(err, k.target) {
			return k.status, k.code
		}
	}
	return fiber.StatusInternalServerError, "internal_error"
}

// respondError maps domain errors onto the response envelope. Server errors
// keep the generic message; client errors surface the error text.
func respondError(c *fiber.Ctx, message string, err error) error {
	status, code := classify(err)
	details := fiber.Map{"code": code}

	var ve *apperror.ValidationError
	if errors.As(err, &ve) {
		details["field"] = ve.Field
	}
	var te *apperror.TransitionError
	if errors.As(err, &te) {
		details["from"] = te.From
		details["action"] = te.Action
		details["allowed_actions"] = append([]string{}, te.Allowed...)
	}
	if candidate, ok := usecase.LowConfidenceCandidate(err); ok {
		details["candidate"] = candidate
	}

	if status < fiber.StatusInternalServerError {
		message = err.Error()
	}
	return util.ErrorResponse(c, util.ErrorResponseFormat{
		Code:    status,
		Message: message,
		Details: details,
	}, err)
}

func parseUUIDParam(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, apperror.NewValidationError(name, "must be a valid UUID")
	}
	return id, nil
}
