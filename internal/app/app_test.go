package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/gezibash/arc-contract/internal/config"
	"github.com/gezibash/arc-contract/internal/observability"
)

func newObs(t *testing.T) *observability.Observability {
	t.Helper()
	obs, err := observability.New(context.Background(), observability.ObsConfig{LogLevel: "error"}, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = obs.Close(context.Background()) })
	return obs
}

func baseConfig(t *testing.T, backend string) config.Config {
	return config.Config{
		DataDir:   t.TempDir(),
		HTTP:      config.HTTPConfig{Addr: ":0"},
		Storage:   config.BackendConfig{Backend: backend},
		Lifecycle: config.LifecycleConfig{MaxRetries: 3, Concurrency: 2},
	}
}

func TestNewServesRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	for _, backend := range []string{"memory", "badger", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			a, err := New(context.Background(), baseConfig(t, backend), newObs(t))
			if err != nil {
				t.Fatalf("New: %v", err)
			}

			rec := httptest.NewRecorder()
			body := strings.NewReader(`{"ecosystem":"eco"}`)
			req := httptest.NewRequest(http.MethodPost, "/contracts", body)
			req.Header.Set("Content-Type", "application/json")
			a.Router.ServeHTTP(rec, req)
			if rec.Code != http.StatusCreated {
				t.Fatalf("create: %d %s", rec.Code, rec.Body)
			}

			rec = httptest.NewRecorder()
			a.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/contracts/all", nil))
			if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ecosystem":"eco"`) {
				t.Fatalf("list: %d %s", rec.Code, rec.Body)
			}
		})
	}
}

func TestNewUnknownBackend(t *testing.T) {
	if _, err := New(context.Background(), baseConfig(t, "tape"), newObs(t)); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestNewCatalogFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := `
rules:
  - id: custom-1
    description: Custom rule
    requestedFields:
      - name: target
        type: string
    policy:
      permission:
        - action: read
          target: "@{target}"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := baseConfig(t, "memory")
	cfg.Policy.Catalog = path

	catalog, err := NewCatalog(cfg)
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	if _, ok := catalog.Get("custom-1"); !ok {
		t.Fatal("custom rule not loaded")
	}

	cfg.Policy.Catalog = filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := NewCatalog(cfg); err == nil {
		t.Fatal("expected error for missing catalog")
	}
}
