// Package config loads arc-contract configuration from flags, environment
// and config files through viper.
package config

import (
	"os"
	"path/filepath"
)

// EnvPrefix prefixes every environment override, e.g. ARC_CONTRACT_HTTP_ADDR.
const EnvPrefix = "ARC_CONTRACT"

// Common contains default values shared by the server and the CLI.
var Common = struct {
	ServerURL string
	LogLevel  string
	LogFormat string
	DataDir   string
}{
	ServerURL: "http://localhost:3000",
	LogLevel:  "info",
	LogFormat: "text",
	DataDir:   DefaultDataDir(),
}

// ServerDefaults contains default values for the serve command.
var ServerDefaults = struct {
	HTTPAddr         string
	RequestTimeout   string
	GRPCAddr         string
	EnableReflection bool
	MetricsAddr      string
	Backend          string
	MaxRetries       int
	OperationTimeout string
	Concurrency      int
}{
	HTTPAddr:         ":3000",
	RequestTimeout:   "30s",
	GRPCAddr:         ":50051",
	EnableReflection: false,
	MetricsAddr:      ":9090",
	Backend:          "badger",
	MaxRetries:       5,
	OperationTimeout: "10s",
	Concurrency:      8,
}

// DefaultDataDir returns the default data directory (~/.arc-contract).
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".arc-contract"
	}
	return filepath.Join(home, ".arc-contract")
}
