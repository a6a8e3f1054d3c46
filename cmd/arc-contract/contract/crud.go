package contract

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/gezibash/arc-contract/internal/cli"
	"github.com/gezibash/arc-contract/internal/contract"
	"github.com/gezibash/arc-contract/pkg/client"
)

func newCreateCmd(c *contractCmd) *cobra.Command {
	var (
		ecosystem    string
		orchestrator string
		profile      string
		role         string
		fromInput    bool
	)

	cmd := &cobra.Command{
		Use:   "create [file | json]",
		Short: "Create a pending contract",
		Long: "Create a contract from flags, or from a JSON draft given as a file, " +
			"literal text or stdin (--input). Flags override draft fields.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var d contract.Draft
			if len(args) == 1 || fromInput {
				if err := cli.DecodeInput(inputArg(args, 0), &d); err != nil {
					return err
				}
			}
			if ecosystem != "" {
				d.Ecosystem = ecosystem
			}
			if orchestrator != "" {
				d.Orchestrator = orchestrator
			}
			if profile != "" {
				d.Profile = profile
			}
			if role != "" {
				d.Role = role
			}
			return c.run("create", func(ctx context.Context, api *client.Client, out *cli.Output) error {
				created, err := api.Create(ctx, d)
				if err != nil {
					return err
				}
				return out.Contract(created)
			})
		},
	}

	cmd.Flags().StringVar(&ecosystem, "ecosystem", "", "ecosystem identifier")
	cmd.Flags().StringVar(&orchestrator, "orchestrator", "", "orchestrator participant")
	cmd.Flags().StringVar(&profile, "profile", "", "ODRL profile")
	cmd.Flags().StringVar(&role, "role", "", "role seeded with the draft's policies")
	cmd.Flags().BoolVar(&fromInput, "input", false, "read the draft from stdin")
	return cmd
}

func newGetCmd(c *contractCmd) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a contract",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run("get", func(ctx context.Context, api *client.Client, out *cli.Output) error {
				got, err := api.Get(ctx, args[0])
				if err != nil {
					return err
				}
				return out.Contract(got)
			})
		},
	}
}

func newListCmd(c *contractCmd) *cobra.Command {
	var (
		status      string
		limit       int
		participant string
		signed      string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List contracts",
		Long: "List contracts, optionally filtered by status (pending, signed, revoked " +
			"or their negations notPending, notSigned, notRevoked). With --participant, " +
			"list the contracts that reference the participant instead.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			hasSigned, err := parseOptionalBool(signed)
			if err != nil {
				return fmt.Errorf("--signed: %w", err)
			}
			if hasSigned != nil && participant == "" {
				return fmt.Errorf("--signed requires --participant")
			}
			return c.run("list", func(ctx context.Context, api *client.Client, out *cli.Output) error {
				var cs []*contract.Contract
				if participant != "" {
					cs, err = api.ListFor(ctx, participant, hasSigned)
				} else {
					cs, err = api.List(ctx, status, limit)
				}
				if err != nil {
					return err
				}
				return out.Contracts(cs)
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "status filter")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of contracts (0 for all)")
	cmd.Flags().StringVar(&participant, "participant", "", "list contracts referencing this participant")
	cmd.Flags().StringVar(&signed, "signed", "", "with --participant: only contracts the participant has (true) or has not (false) signed")
	return cmd
}

func parseOptionalBool(s string) (*bool, error) {
	if s == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func newUpdateCmd(c *contractCmd) *cobra.Command {
	var ecosystem, orchestrator, profile string

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update contract fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var p contract.Patch
			if cmd.Flags().Changed("ecosystem") {
				p.Ecosystem = &ecosystem
			}
			if cmd.Flags().Changed("orchestrator") {
				p.Orchestrator = &orchestrator
			}
			if cmd.Flags().Changed("profile") {
				p.Profile = &profile
			}
			if p.Ecosystem == nil && p.Orchestrator == nil && p.Profile == nil {
				return fmt.Errorf("nothing to update")
			}
			return c.run("update", func(ctx context.Context, api *client.Client, out *cli.Output) error {
				updated, err := api.Update(ctx, args[0], p)
				if err != nil {
					return err
				}
				return out.Contract(updated)
			})
		},
	}

	cmd.Flags().StringVar(&ecosystem, "ecosystem", "", "new ecosystem")
	cmd.Flags().StringVar(&orchestrator, "orchestrator", "", "new orchestrator")
	cmd.Flags().StringVar(&profile, "profile", "", "new ODRL profile")
	return cmd
}

func newDeleteCmd(c *contractCmd) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a contract",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run("delete", func(ctx context.Context, api *client.Client, out *cli.Output) error {
				if err := api.Delete(ctx, args[0]); err != nil {
					return err
				}
				return out.Result("contract-deleted", "Contract deleted").With("id", args[0]).Render()
			})
		},
	}
}

func newPurgeCmd(c *contractCmd) *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete every contract with a status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run("purge", func(ctx context.Context, api *client.Client, out *cli.Output) error {
				n, err := api.Purge(ctx, status)
				if err != nil {
					return err
				}
				return out.Result("contracts-purged", "Contracts purged").
					With("status", status).
					With("deleted", n).
					Render()
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status to purge (e.g. revoked, notSigned)")
	_ = cmd.MarkFlagRequired("status")
	return cmd
}

func newODRLCmd(c *contractCmd) *cobra.Command {
	return &cobra.Command{
		Use:   "odrl <id>",
		Short: "Print a contract as an ODRL agreement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run("odrl", func(ctx context.Context, api *client.Client, out *cli.Output) error {
				doc, err := api.ODRL(ctx, args[0])
				if err != nil {
					return err
				}
				return out.Value("odrl", doc).Render()
			})
		},
	}
}
