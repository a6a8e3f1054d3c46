package contract

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gezibash/arc-contract/internal/cli"
	"github.com/gezibash/arc-contract/internal/lifecycle"
	"github.com/gezibash/arc-contract/pkg/client"
)

// ErrDenied is returned by check when the exploitation is not authorized,
// so the process exits non-zero.
var ErrDenied = errors.New("exploitation denied")

func newSignCmd(c *contractCmd) *cobra.Command {
	var participant, signature, role string

	cmd := &cobra.Command{
		Use:   "sign <id>",
		Short: "Sign a contract as a participant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run("sign", func(ctx context.Context, api *client.Client, out *cli.Output) error {
				signed, err := api.Sign(ctx, args[0], participant, signature, role)
				if err != nil {
					return err
				}
				return out.Contract(signed)
			})
		},
	}

	cmd.Flags().StringVar(&participant, "participant", "", "signing participant")
	cmd.Flags().StringVar(&signature, "signature", "", "participant signature")
	cmd.Flags().StringVar(&role, "role", "", "role the participant signs under")
	_ = cmd.MarkFlagRequired("participant")
	_ = cmd.MarkFlagRequired("signature")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func newRevokeCmd(c *contractCmd) *cobra.Command {
	var participant string

	cmd := &cobra.Command{
		Use:   "revoke <id>",
		Short: "Revoke a participant's signature",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run("revoke", func(ctx context.Context, api *client.Client, out *cli.Output) error {
				revoked, err := api.Revoke(ctx, args[0], participant)
				if err != nil {
					return err
				}
				return out.Contract(revoked)
			})
		},
	}

	cmd.Flags().StringVar(&participant, "participant", "", "participant to revoke")
	_ = cmd.MarkFlagRequired("participant")
	return cmd
}

func newCheckCmd(c *contractCmd) *cobra.Command {
	var (
		role        string
		participant string
		offering    string
		action      string
		target      string
	)

	cmd := &cobra.Command{
		Use:   "check <id> [file | json]",
		Short: "Check whether an exploitation is authorized",
		Long: "Evaluate an exploitation request against a contract. The request is " +
			"a JSON check document, or is built from --action, --target and the scope flags.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var req lifecycle.CheckRequest
			if len(args) == 2 {
				if err := cli.DecodeInput(args[1], &req); err != nil {
					return err
				}
			}
			if role != "" {
				req.Role = role
			}
			if participant != "" || offering != "" {
				req.Offering = &lifecycle.OfferingRef{Participant: participant, ServiceOffering: offering}
			}
			if action != "" {
				req.Request.Action = action
			}
			if target != "" {
				req.Request.Target = target
			}
			if req.Request.Action == "" {
				return fmt.Errorf("an action is required")
			}
			return c.run("check", func(ctx context.Context, api *client.Client, out *cli.Output) error {
				d, err := api.CheckExploitation(ctx, args[0], req)
				if err != nil {
					return err
				}
				if err := out.Decision(d); err != nil {
					return err
				}
				if !d.Authorized {
					return ErrDenied
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&role, "role", "", "evaluate the policies of this role")
	cmd.Flags().StringVar(&participant, "participant", "", "offering participant")
	cmd.Flags().StringVar(&offering, "offering", "", "evaluate the policies of this service offering")
	cmd.Flags().StringVar(&action, "action", "", "requested action")
	cmd.Flags().StringVar(&target, "target", "", "requested target")
	return cmd
}
