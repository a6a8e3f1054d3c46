package config

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// SetCommonDefaults configures the defaults shared by all commands.
func SetCommonDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", Common.DataDir)
	v.SetDefault("observability.log_level", Common.LogLevel)
	v.SetDefault("observability.log_format", Common.LogFormat)
}

// BindCommonFlags binds the client flags to viper.
func BindCommonFlags(cmd *cobra.Command, v *viper.Viper) {
	f := cmd.PersistentFlags()

	f.String("server", "", "contract service URL (default http://localhost:3000)")
	f.StringP("output", "o", "text", "output format (text, json, markdown)")
	f.String("log-level", "", "log level (debug, info, warn, error)")

	_ = v.BindPFlag("server", f.Lookup("server"))
	_ = v.BindPFlag("output", f.Lookup("output"))
	_ = v.BindPFlag("observability.log_level", f.Lookup("log-level"))
}

// Read wires env lookups and reads the config file. A missing file is only
// an error when it was named explicitly.
func Read(v *viper.Viper, configFile string, configPaths ...string) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("arc-contract")
		v.SetConfigType("hcl")
		v.AddConfigPath(".")
		for _, p := range configPaths {
			v.AddConfigPath(p)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) && configFile != "" {
			return err
		}
	}
	return nil
}

// LoadInto applies common defaults, reads flags, env and file, and
// unmarshals into cfg.
func LoadInto(v *viper.Viper, configFile string, cfg any, paths ...string) error {
	SetCommonDefaults(v)
	if err := Read(v, configFile, paths...); err != nil {
		return err
	}
	return v.Unmarshal(cfg)
}
