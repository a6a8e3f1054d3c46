package cli

import (
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/gezibash/arc-contract/internal/config"
	"github.com/gezibash/arc-contract/pkg/client"
	"github.com/gezibash/arc-contract/pkg/logging"
)

// NewClient creates an API client configured from viper settings.
// The server URL is resolved from: --server > ARC_CONTRACT_SERVER env > default.
//
// Client-side logs are written to {data_dir}/log/cli.log instead of stdout.
func NewClient(v *viper.Viper, opts ...client.Option) (*client.Client, io.Closer, error) {
	var base config.BaseConfig
	if err := v.Unmarshal(&base); err != nil {
		return nil, nil, err
	}

	logger, closer := clientLogger(v, base.Observability)
	c, err := client.New(base.ResolvedServerURL(), append([]client.Option{client.WithLogger(logger)}, opts...)...)
	if err != nil {
		_ = closer.Close()
		return nil, nil, err
	}
	return c, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func clientLogger(v *viper.Viper, obs config.ObservabilityConfig) (*logging.Logger, io.Closer) {
	level, format := obs.LogLevel, obs.LogFormat
	if level == "" {
		level = config.Common.LogLevel
	}
	if format == "" {
		format = config.Common.LogFormat
	}

	dataDir := v.GetString("data_dir")
	if dataDir == "" {
		dataDir = config.DefaultDataDir()
	}
	logDir := filepath.Join(dataDir, "log")
	if err := os.MkdirAll(logDir, 0o700); err != nil {
		return logging.Open(level, format, io.Discard), nopCloser{}
	}
	f, err := os.OpenFile(filepath.Join(logDir, "cli.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600) //nolint:gosec // path is constructed from known data dir
	if err != nil {
		return logging.Open(level, format, io.Discard), nopCloser{}
	}
	return logging.Open(level, format, f), f
}
