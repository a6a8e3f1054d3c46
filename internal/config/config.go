package config

import (
	"fmt"
	"maps"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gezibash/arc-contract/internal/lifecycle"
)

// Config is the server configuration.
type Config struct {
	DataDir       string              `mapstructure:"data_dir"`
	HTTP          HTTPConfig          `mapstructure:"http"`
	GRPC          GRPCConfig          `mapstructure:"grpc"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Storage       BackendConfig       `mapstructure:"storage"`
	Lifecycle     LifecycleConfig     `mapstructure:"lifecycle"`
	Policy        PolicyConfig        `mapstructure:"policy"`
}

type HTTPConfig struct {
	Addr           string        `mapstructure:"addr"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	CORSOrigins    []string      `mapstructure:"cors_origins"`
}

type GRPCConfig struct {
	Addr             string `mapstructure:"addr"`
	EnableReflection bool   `mapstructure:"enable_reflection"`
}

type ObservabilityConfig struct {
	LogLevel       string  `mapstructure:"log_level"`
	LogFormat      string  `mapstructure:"log_format"`
	MetricsAddr    string  `mapstructure:"metrics_addr"`
	OTLPEndpoint   string  `mapstructure:"otlp_endpoint"`
	OTLPProtocol   string  `mapstructure:"otlp_protocol"`
	OTLPInsecure   bool    `mapstructure:"otlp_insecure"`
	SampleRatio    float64 `mapstructure:"sample_ratio"`
	ServiceName    string  `mapstructure:"service_name"`
	ServiceVersion string  `mapstructure:"service_version"`
}

// BackendConfig names a storage backend and its string options.
type BackendConfig struct {
	Backend string            `mapstructure:"backend"`
	Config  map[string]string `mapstructure:"config"`
}

type LifecycleConfig struct {
	MaxRetries       int           `mapstructure:"max_retries"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout"`
	Concurrency      int           `mapstructure:"concurrency"`
}

// PolicyConfig points at an optional YAML rule catalog that extends and
// overrides the built-in templates by id.
type PolicyConfig struct {
	Catalog string `mapstructure:"catalog"`
}

func setDefaults(v *viper.Viper) {
	SetCommonDefaults(v)
	v.SetDefault("http.addr", ServerDefaults.HTTPAddr)
	v.SetDefault("http.request_timeout", ServerDefaults.RequestTimeout)
	v.SetDefault("http.cors_origins", []string{})
	v.SetDefault("grpc.addr", ServerDefaults.GRPCAddr)
	v.SetDefault("grpc.enable_reflection", ServerDefaults.EnableReflection)
	v.SetDefault("observability.metrics_addr", ServerDefaults.MetricsAddr)
	v.SetDefault("observability.otlp_endpoint", "")
	v.SetDefault("observability.otlp_protocol", "http")
	v.SetDefault("observability.sample_ratio", 1.0)
	v.SetDefault("observability.service_name", "arc-contract")
	v.SetDefault("observability.service_version", "dev")
	v.SetDefault("storage.backend", ServerDefaults.Backend)
	v.SetDefault("lifecycle.max_retries", ServerDefaults.MaxRetries)
	v.SetDefault("lifecycle.operation_timeout", ServerDefaults.OperationTimeout)
	v.SetDefault("lifecycle.concurrency", ServerDefaults.Concurrency)
	v.SetDefault("policy.catalog", "")
}

// BindServeFlags binds cobra flags to viper for the serve command.
func BindServeFlags(cmd *cobra.Command, v *viper.Viper) {
	f := cmd.Flags()

	f.String("config", "", "config file path")
	f.String("data-dir", "", "data directory (default ~/.arc-contract)")
	f.String("addr", "", "HTTP listen address")
	f.String("grpc-addr", "", "gRPC health listen address")
	f.String("metrics-addr", "", "metrics HTTP listen address")
	f.String("backend", "", "storage backend (badger, memory, sqlite, redis, postgres, s3)")
	f.String("log-format", "", "log format (json, text)")
	f.String("catalog", "", "policy rule catalog (YAML)")
	f.Bool("reflection", false, "enable gRPC reflection")

	_ = v.BindPFlag("data_dir", f.Lookup("data-dir"))
	_ = v.BindPFlag("http.addr", f.Lookup("addr"))
	_ = v.BindPFlag("grpc.addr", f.Lookup("grpc-addr"))
	_ = v.BindPFlag("observability.metrics_addr", f.Lookup("metrics-addr"))
	_ = v.BindPFlag("storage.backend", f.Lookup("backend"))
	_ = v.BindPFlag("observability.log_format", f.Lookup("log-format"))
	_ = v.BindPFlag("policy.catalog", f.Lookup("catalog"))
	_ = v.BindPFlag("grpc.enable_reflection", f.Lookup("reflection"))
}

// Load reads config from flags, env, and file, returning the merged Config.
func Load(v *viper.Viper, configFile string) (Config, error) {
	setDefaults(v)
	if err := Read(v, configFile, "$HOME/.arc-contract", "/etc/arc-contract"); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c Config) Validate() error {
	if c.HTTP.Addr == "" {
		return fmt.Errorf("config: http.addr is required")
	}
	if c.Storage.Backend == "" {
		return fmt.Errorf("config: storage.backend is required")
	}
	if c.Lifecycle.MaxRetries < 0 {
		return fmt.Errorf("config: lifecycle.max_retries must not be negative")
	}
	if c.Lifecycle.Concurrency < 1 {
		return fmt.Errorf("config: lifecycle.concurrency must be at least 1")
	}
	return nil
}

// StorageConfig returns the backend options, pointing file-based backends
// at the data directory when no path is configured.
func (c Config) StorageConfig() map[string]string {
	out := maps.Clone(c.Storage.Config)
	if out == nil {
		out = make(map[string]string)
	}
	if out["path"] == "" {
		switch c.Storage.Backend {
		case "badger":
			out["path"] = filepath.Join(c.DataDir, "contracts")
		case "sqlite":
			out["path"] = filepath.Join(c.DataDir, "contracts.db")
		}
	}
	return out
}

// LifecycleOptions maps the lifecycle section onto manager options.
func (c Config) LifecycleOptions() lifecycle.Options {
	opts := lifecycle.DefaultOptions()
	opts.MaxRetries = c.Lifecycle.MaxRetries
	opts.OperationTimeout = c.Lifecycle.OperationTimeout
	opts.Concurrency = c.Lifecycle.Concurrency
	return opts
}
