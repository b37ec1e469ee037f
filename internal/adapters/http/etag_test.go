package http_test

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	handler "github.com/samirrijal/pedalnav/internal/adapters/http"
	"github.com/samirrijal/pedalnav/internal/core/domain"
)

func etagApp() *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/window", handler.ETagMiddleware(), func(c *fiber.Ctx) error {
		return c.SendString("window")
	})
	app.Get("/empty", handler.ETagMiddleware(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app
}

func conditionalGet(t *testing.T, app *fiber.App, path, ifNoneMatch string) (int, string) {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	if ifNoneMatch != "" {
		req.Header.Set("If-None-Match", ifNoneMatch)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestETag_IfNoneMatchForms(t *testing.T) {
	app := etagApp()

	req := httptest.NewRequest("GET", "/window", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	etag := resp.Header.Get("ETag")
	require.Regexp(t, `^W/"[0-9a-f]{16}"$`, etag)
	strong := etag[2:]

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"exact", etag, 304},
		{"strong form of the same tag", strong, 304},
		{"list containing the tag", `W/"0000000000000000", ` + etag, 304},
		{"wildcard", "*", 304},
		{"other tag", `W/"0000000000000000"`, 200},
		{"none", "", 200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := conditionalGet(t, app, "/window", tt.header)
			assert.Equal(t, tt.status, status)
			if status == 304 {
				assert.Empty(t, body)
			} else {
				assert.Equal(t, "window", body)
			}
		})
	}
}

func TestETag_SkipsEmptyBodies(t *testing.T) {
	req := httptest.NewRequest("GET", "/empty", nil)
	resp, err := etagApp().Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, 204, resp.StatusCode)
	assert.Empty(t, resp.Header.Get("ETag"))
}

// A contribution changes the feature window body, so a client holding the
// old tag gets the fresh window instead of 304.
func TestETag_FeatureWindowChangesAfterContribution(t *testing.T) {
	app := setupApp(makeDeps(t))

	resp := do(t, app, "GET", "/v1/features?"+view, nil)
	require.Equal(t, 200, resp.StatusCode)
	before := resp.Header.Get("ETag")
	resp.Body.Close()

	status, _ := conditionalGet(t, app, "/v1/features?"+view, before)
	require.Equal(t, 304, status)

	resp = do(t, app, "POST", "/v1/features/warnings", handler.ContributionRequest{
		Location: &domain.Coordinate{Lat: 43.2655, Lon: -2.9300},
		Category: "broken_glass",
	})
	require.Equal(t, 201, resp.StatusCode)
	resp.Body.Close()

	status, body := conditionalGet(t, app, "/v1/features?"+view, before)
	assert.Equal(t, 200, status)
	assert.Contains(t, body, "broken_glass")
}

func TestDocs_ServesEmbeddedSpec(t *testing.T) {
	app := setupApp(makeDeps(t))

	status, body := conditionalGet(t, app, "/docs", "")
	assert.Equal(t, 200, status)
	assert.Contains(t, body, "/docs/openapi.yaml")

	req := httptest.NewRequest("GET", "/docs/openapi.yaml", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "application/yaml", resp.Header.Get("Content-Type"))
	assert.NotEmpty(t, resp.Header.Get("ETag"))
	spec, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(spec), "title: PedalNav API")
}
