package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequireInstructor(t *testing.T) {
	app := fiber.New()
	app.Get("/", RequireInstructor(), func(c *fiber.Ctx) error {
		return c.SendString(InstructorID(c).String())
	})
	id := uuid.New()

	tests := []struct {
		name string
		role string
		user string
		want int
	}{
		{"instructor", "INSTRUCTOR", id.String(), http.StatusOK},
		{"case insensitive role", "instructor", id.String(), http.StatusOK},
		{"student", "STUDENT", id.String(), http.StatusForbidden},
		{"missing role", "", id.String(), http.StatusForbidden},
		{"bad user id", "INSTRUCTOR", "abc", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(HeaderUserRole, tt.role)
			req.Header.Set(HeaderUserID, tt.user)
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}
