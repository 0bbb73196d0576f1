package routes

import (
	"context"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"leadomation/models"
)

type countRunner int

func (r countRunner) Run(context.Context) (int, error) { return int(r), nil }

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, models.Migrate(db))

	app := fiber.New()
	SetupRoutes(app, Options{
		DB:         db,
		Sequences:  countRunner(4),
		Lifecycle:  countRunner(2),
		CronSecret: "cron-secret",
		RateLimit:  100,
		JobTimeout: time.Minute,
		Version:    "test",
	})
	return app
}

func request(t *testing.T, app *fiber.App, method, path, token string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestJobRoutes(t *testing.T) {
	app := newTestApp(t)

	status, body := request(t, app, fiber.MethodPost, "/api/execute-sequences", "cron-secret")
	assert.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `{"processed":4}`, body)

	status, body = request(t, app, fiber.MethodPost, "/api/cron/daily-emails", "cron-secret")
	assert.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `{"sent":2}`, body)

	status, _ = request(t, app, fiber.MethodPost, "/api/execute-sequences", "")
	assert.Equal(t, fiber.StatusUnauthorized, status)

	for _, method := range []string{fiber.MethodGet, fiber.MethodPut, fiber.MethodDelete, fiber.MethodPatch, fiber.MethodOptions} {
		status, body = request(t, app, method, "/api/execute-sequences", "cron-secret")
		assert.Equal(t, fiber.StatusMethodNotAllowed, status, method)
		assert.Empty(t, body, method)
	}
}

func TestInfraRoutes(t *testing.T) {
	app := newTestApp(t)

	status, _ := request(t, app, fiber.MethodGet, "/health", "")
	assert.Equal(t, fiber.StatusOK, status)

	status, body := request(t, app, fiber.MethodGet, "/metrics", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, body, "go_goroutines")

	status, _ = request(t, app, fiber.MethodGet, "/track/open/abc", "")
	assert.Equal(t, fiber.StatusOK, status)

	status, _ = request(t, app, fiber.MethodGet, "/nope", "")
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestJobRoutes_Preflight(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(fiber.MethodOptions, "/api/execute-sequences", nil)
	req.Header.Set(fiber.HeaderOrigin, "https://app.leadomation.co.uk")
	req.Header.Set(fiber.HeaderAccessControlRequestMethod, fiber.MethodPost)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	assert.Contains(t, resp.Header.Get(fiber.HeaderAccessControlAllowMethods), fiber.MethodPost)
}

func TestMetricsAfterMixedTraffic(t *testing.T) {
	app := newTestApp(t)

	for _, method := range []string{fiber.MethodGet, fiber.MethodPut, fiber.MethodDelete, fiber.MethodPatch, fiber.MethodPost} {
		request(t, app, method, "/api/cron/daily-emails", "cron-secret")
		request(t, app, method, "/health", "")
	}

	status, body := request(t, app, fiber.MethodGet, "/metrics", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, body, `http_requests_total{method="PATCH",path="/api/cron/daily-emails",status="405"}`)
}
