package redis

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"

	"github.com/gezibash/arc-contract/internal/contractstore/physical"
	"github.com/gezibash/arc-contract/internal/contractstore/physical/backendtest"
	"github.com/gezibash/arc-contract/internal/storage"
)

// Set ARC_CONTRACT_TEST_REDIS_ADDR (e.g. localhost:6379) to run against a
// live server. Every test uses its own key prefix.
func redisAddr(t *testing.T) string {
	t.Helper()
	addr := os.Getenv("ARC_CONTRACT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("ARC_CONTRACT_TEST_REDIS_ADDR not set")
	}
	return addr
}

func TestConformance(t *testing.T) {
	addr := redisAddr(t)
	backendtest.Run(t, func(t *testing.T) physical.Backend {
		b, err := NewFactory(context.Background(), storage.Merge(Defaults(), map[string]string{
			KeyAddr:      addr,
			KeyKeyPrefix: "arc-contract-test:" + uuid.NewString() + ":",
		}))
		if err != nil {
			t.Fatal(err)
		}
		return b
	})
}

func TestFactoryConfigErrors(t *testing.T) {
	var ce *storage.ConfigError
	cases := []storage.Config{
		{KeyAddr: ""},
		{KeyAddr: "localhost:1", KeyDB: "-1"},
		{KeyAddr: "localhost:1", KeyDialTimeout: "soon"},
	}
	for _, cfg := range cases {
		if _, err := NewFactory(context.Background(), cfg); !errors.As(err, &ce) || ce.Backend != "redis" {
			t.Errorf("%v: err = %v", cfg, err)
		}
	}
}
