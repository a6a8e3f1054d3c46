// Package apitest runs an in-process contract service for client and CLI
// tests.
package apitest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/gezibash/arc-contract/internal/contractstore"
	"github.com/gezibash/arc-contract/internal/contractstore/physical"
	_ "github.com/gezibash/arc-contract/internal/contractstore/physical/memory"
	"github.com/gezibash/arc-contract/internal/httpapi"
	"github.com/gezibash/arc-contract/internal/lifecycle"
	"github.com/gezibash/arc-contract/internal/policy/compiler"
	"github.com/gezibash/arc-contract/internal/policy/pdp"
)

// NewServer starts a service on the memory backend with the built-in rule
// catalog. Contract ids are c-1, c-2, ... in creation order. The server
// and store are closed on test cleanup.
func NewServer(t testing.TB) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	backend, err := physical.New(context.Background(), "memory", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	store := contractstore.New(backend, nil)
	t.Cleanup(func() { _ = store.Close() })

	catalog, err := compiler.Default()
	if err != nil {
		t.Fatal(err)
	}
	evaluator, err := pdp.NewDefault()
	if err != nil {
		t.Fatal(err)
	}
	var n atomic.Int64
	opts := lifecycle.DefaultOptions()
	opts.NewID = func() string { return fmt.Sprintf("c-%d", n.Add(1)) }
	m := lifecycle.New(store, catalog, evaluator, nil, opts)

	srv := httptest.NewServer(httpapi.NewRouter(m, httpapi.Options{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}))
	t.Cleanup(srv.Close)
	return srv
}
