// Package processing implements the "arc-contract processing" commands
// that manage a contract's data processing ledger.
package processing

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gezibash/arc-contract/internal/cli"
	"github.com/gezibash/arc-contract/internal/contract"
	"github.com/gezibash/arc-contract/pkg/client"
)

const commandTimeout = 30 * time.Second

type processingCmd struct {
	v    *viper.Viper
	opts []client.Option
}

// Entrypoint returns the processing command tree.
func Entrypoint(v *viper.Viper, opts ...client.Option) *cobra.Command {
	p := &processingCmd{v: v, opts: opts}

	cmd := &cobra.Command{
		Use:     "processing",
		Aliases: []string{"processings"},
		Short:   "Manage data processing records",
	}
	cmd.AddCommand(
		newListCmd(p),
		newInsertCmd(p),
		newUpdateCmd(p),
		newDeactivateCmd(p),
		newDeleteCmd(p),
	)
	return cmd
}

func (p *processingCmd) run(name string, fn func(ctx context.Context, api *client.Client, out *cli.Output) error) error {
	return cli.RunCommand(cli.CommandConfig{
		Name:    "processing " + name,
		Viper:   p.v,
		Timeout: commandTimeout,
		Options: p.opts,
		Run:     fn,
	})
}

func newListCmd(p *processingCmd) *cobra.Command {
	var (
		participant     string
		includeInactive bool
	)

	cmd := &cobra.Command{
		Use:   "list <contract-id>",
		Short: "List processing records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return p.run("list", func(ctx context.Context, api *client.Client, out *cli.Output) error {
				var (
					recs []contract.DataProcessing
					err  error
				)
				if participant != "" {
					recs, err = api.ProcessingsFor(ctx, args[0], participant, includeInactive)
				} else {
					recs, err = api.Processings(ctx, args[0])
				}
				if err != nil {
					return err
				}
				return out.Processings(recs)
			})
		},
	}

	cmd.Flags().StringVar(&participant, "participant", "", "only records referencing this participant")
	cmd.Flags().BoolVar(&includeInactive, "include-inactive", false, "with --participant: include superseded records")
	return cmd
}

func newInsertCmd(p *processingCmd) *cobra.Command {
	return &cobra.Command{
		Use:   "insert <contract-id> [file | json]",
		Short: "Insert processing records",
		Long:  "Insert a JSON array of processing records. Either all records are stored or none.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var recs []contract.DataProcessing
			if err := cli.DecodeInput(inputArg(args, 1), &recs); err != nil {
				return err
			}
			return p.run("insert", func(ctx context.Context, api *client.Client, out *cli.Output) error {
				stored, err := api.InsertProcessings(ctx, args[0], recs)
				if err != nil {
					return err
				}
				return out.Processings(stored)
			})
		},
	}
}

func newUpdateCmd(p *processingCmd) *cobra.Command {
	return &cobra.Command{
		Use:   "update <contract-id> <catalog-id> [file | json]",
		Short: "Supersede the active record of a catalog id",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			var rec contract.DataProcessing
			if err := cli.DecodeInput(inputArg(args, 2), &rec); err != nil {
				return err
			}
			return p.run("update", func(ctx context.Context, api *client.Client, out *cli.Output) error {
				next, err := api.UpdateProcessing(ctx, args[0], args[1], rec)
				if err != nil {
					return err
				}
				return out.Processings([]contract.DataProcessing{*next})
			})
		},
	}
}

func newDeactivateCmd(p *processingCmd) *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate <contract-id> <record-id>",
		Short: "Mark a processing record inactive",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return p.run("deactivate", func(ctx context.Context, api *client.Client, out *cli.Output) error {
				rec, err := api.DeactivateProcessing(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return out.Processings([]contract.DataProcessing{*rec})
			})
		},
	}
}

func newDeleteCmd(p *processingCmd) *cobra.Command {
	var chain string

	cmd := &cobra.Command{
		Use:   "delete <contract-id> <catalog-id>",
		Short: "Delete the records of a catalog id with a given infrastructure chain",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var infra []contract.InfrastructureService
			if chain != "" {
				if err := cli.DecodeInput(chain, &infra); err != nil {
					return err
				}
			}
			return p.run("delete", func(ctx context.Context, api *client.Client, out *cli.Output) error {
				if err := api.DeleteProcessing(ctx, args[0], args[1], infra); err != nil {
					return err
				}
				return out.Result("processing-deleted", "Processing records deleted").
					With("contract", args[0]).
					With("catalog_id", args[1]).
					Render()
			})
		},
	}

	cmd.Flags().StringVar(&chain, "infrastructure", "", "infrastructure chain as a JSON array (file or literal)")
	return cmd
}

func inputArg(args []string, i int) string {
	if len(args) > i {
		return args[i]
	}
	return ""
}
