package config

import "os"

// BaseConfig holds the fields shared by every CLI command that talks to a
// running server. Command configs embed it with mapstructure:",squash".
type BaseConfig struct {
	ServerURL     string              `mapstructure:"server"`
	Output        string              `mapstructure:"output"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// ResolvedServerURL returns the server URL, checking config >
// ARC_CONTRACT_SERVER env > default.
func (c BaseConfig) ResolvedServerURL() string {
	if c.ServerURL != "" {
		return c.ServerURL
	}
	if u := os.Getenv(EnvPrefix + "_SERVER"); u != "" {
		return u
	}
	return Common.ServerURL
}
