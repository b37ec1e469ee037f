package http_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	handler "github.com/samirrijal/pedalnav/internal/adapters/http"
)

// loadOpenAPISpec finds api/openapi.yaml by walking up from the test directory.
func loadOpenAPISpec(t *testing.T) *openapi3.T {
	t.Helper()
	dir, _ := os.Getwd()
	for i := 0; i < 5; i++ {
		candidate := filepath.Join(dir, "api", "openapi.yaml")
		if data, err := os.ReadFile(candidate); err == nil {
			loader := &openapi3.Loader{IsExternalRefsAllowed: false}
			spec, err := loader.LoadFromData(data)
			require.NoError(t, err, "parse %s", candidate)
			return spec
		}
		dir = filepath.Dir(dir)
	}
	t.Fatal("could not find api/openapi.yaml")
	return nil
}

func TestOpenAPISpec_Valid(t *testing.T) {
	spec := loadOpenAPISpec(t)
	require.NoError(t, spec.Validate(context.Background()))

	assert.Equal(t, "PedalNav API", spec.Info.Title)
	assert.Equal(t, "1.0.0", spec.Info.Version)
	assert.NotEmpty(t, spec.Servers)

	for _, schema := range []string{"APIError", "Coordinate", "BoundingBox", "LocationFix", "Route", "Snapshot"} {
		assert.Contains(t, spec.Components.Schemas, schema)
	}
}

// Every REST route the router registers must be documented.
func TestOpenAPISpec_CoversRouter(t *testing.T) {
	spec := loadOpenAPISpec(t)

	app := fiber.New()
	handler.SetupRoutes(app, makeDeps(t))

	for _, r := range app.GetRoutes(true) {
		if !strings.HasPrefix(r.Path, "/v1/") && r.Path != "/graphql" {
			continue
		}
		if r.Method == fiber.MethodHead {
			continue
		}
		path := strings.TrimSuffix(r.Path, "/")
		path = strings.ReplaceAll(path, ":id", "{id}")

		item := spec.Paths.Find(path)
		if !assert.NotNil(t, item, "undocumented path %s", path) {
			continue
		}
		assert.NotNil(t, item.GetOperation(r.Method), "undocumented operation %s %s", r.Method, path)
	}
}
