package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gezibash/arc-contract/internal/cli"
	"github.com/gezibash/arc-contract/pkg/client"
)

func newRulesCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "List the policy rule catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.RunCommand(cli.CommandConfig{
				Name:    "rules",
				Viper:   v,
				Timeout: 30 * time.Second,
				Run: func(ctx context.Context, c *client.Client, out *cli.Output) error {
					rules, err := c.Rules(ctx)
					if err != nil {
						return err
					}
					return out.Templates(rules.Templates)
				},
			})
		},
	}
}
