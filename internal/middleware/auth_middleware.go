package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/intellego/platform/internal/model"
	"github.com/intellego/platform/internal/util"
)

const (
	HeaderUserRole = "X-User-Role"
	HeaderUserID   = "X-User-ID"

	localInstructorID = "instructor_id"
)

// RequireInstructor trusts the role and id headers set by the upstream auth
// proxy.
func RequireInstructor() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !strings.EqualFold(c.Get(HeaderUserRole), model.RoleInstructor) {
			return util.ErrorResponse(c, util.ErrorResponseFormat{
				Code:    fiber.StatusForbidden,
				Message: "instructor role required",
			})
		}
		id, err := uuid.Parse(c.Get(HeaderUserID))
		if err != nil {
			return util.ErrorResponse(c, util.ErrorResponseFormat{
				Code:    fiber.StatusUnauthorized,
				Message: "missing or invalid " + HeaderUserID,
			})
		}
		c.Locals(localInstructorID, id)
		return c.Next()
	}
}

// InstructorID returns the id stored by RequireInstructor.
func InstructorID(c *fiber.Ctx) uuid.UUID {
	id, _ := c.Locals(localInstructorID).(uuid.UUID)
	return id
}
