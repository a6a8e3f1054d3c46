package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gezibash/arc-contract/cmd/arc-contract/contract"
	"github.com/gezibash/arc-contract/cmd/arc-contract/processing"
	"github.com/gezibash/arc-contract/internal/config"
)

func main() {
	if err := newRootCmd(viper.New()).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "arc-contract",
		Short:         "Ecosystem contract service",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	config.BindCommonFlags(rootCmd, v)
	rootCmd.PersistentFlags().String("data-dir", "", "data directory (default ~/.arc-contract)")
	_ = v.BindPFlag("data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))

	rootCmd.AddCommand(newServeCmd(v))
	rootCmd.AddCommand(contract.Entrypoint(v))
	rootCmd.AddCommand(processing.Entrypoint(v))
	rootCmd.AddCommand(newRulesCmd(v))
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}
