package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func staffApp(role interface{}) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if role != nil {
			c.Locals("user_role", role)
		}
		return c.Next()
	})
	app.Use(RequireRole("teacher", "admin"))
	app.Patch("/submissions/1/publish", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func TestRequireRoleAllowsStaff(t *testing.T) {
	for _, role := range []string{"teacher", "admin", " Teacher "} {
		resp, err := staffApp(role).Test(httptest.NewRequest(http.MethodPatch, "/submissions/1/publish", nil))
		require.NoError(t, err)
		require.Equal(t, fiber.StatusOK, resp.StatusCode, "role %q", role)
	}
}

func TestRequireRoleRejectsLearners(t *testing.T) {
	resp, err := staffApp("student").Test(httptest.NewRequest(http.MethodPatch, "/submissions/1/publish", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestRequireRoleRejectsMissingRole(t *testing.T) {
	resp, err := staffApp(nil).Test(httptest.NewRequest(http.MethodPatch, "/submissions/1/publish", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}
