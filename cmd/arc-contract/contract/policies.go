package contract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gezibash/arc-contract/internal/cli"
	"github.com/gezibash/arc-contract/internal/contract"
	"github.com/gezibash/arc-contract/internal/lifecycle"
	"github.com/gezibash/arc-contract/internal/policy/compiler"
	"github.com/gezibash/arc-contract/pkg/client"
)

// injectKind tells which injection route a document targets.
type injectKind int

const (
	injectSingle injectKind = iota
	injectFlat
	injectRoles
)

// classifyInjection inspects a JSON document: an object is one injection,
// an array of objects with "roles" is a role injection list, any other
// array is a flat injection list.
func classifyInjection(data []byte) (injectKind, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return 0, fmt.Errorf("empty injection document")
	}
	switch data[0] {
	case '{':
		return injectSingle, nil
	case '[':
		var probe []map[string]json.RawMessage
		if err := json.Unmarshal(data, &probe); err != nil {
			return 0, fmt.Errorf("decode injections: %w", err)
		}
		if len(probe) > 0 {
			if _, ok := probe[0]["roles"]; ok {
				return injectRoles, nil
			}
		}
		return injectFlat, nil
	}
	return 0, fmt.Errorf("injection document must be a JSON object or array")
}

func newInjectCmd(c *contractCmd) *cobra.Command {
	return &cobra.Command{
		Use:   "inject <id> [file | json]",
		Short: "Inject catalog policies into role bundles",
		Long: "Compile catalog rules and attach them to contract roles. The document is " +
			"one injection {ruleId, values, role}, a flat list of injections, or a list " +
			"of {roles, policies} entries.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := cli.ReadInput(inputArg(args, 1))
			if err != nil {
				return err
			}
			kind, err := classifyInjection(data)
			if err != nil {
				return err
			}
			id := args[0]
			return c.run("inject", func(ctx context.Context, api *client.Client, out *cli.Output) error {
				var updated *contract.Contract
				switch kind {
				case injectSingle:
					var inj compiler.Injection
					if err := json.Unmarshal(data, &inj); err != nil {
						return err
					}
					updated, err = api.InjectPolicy(ctx, id, inj)
				case injectRoles:
					var entries []lifecycle.RoleInjection
					if err := json.Unmarshal(data, &entries); err != nil {
						return err
					}
					updated, err = api.InjectPolicies(ctx, id, entries)
				default:
					var injs []compiler.Injection
					if err := json.Unmarshal(data, &injs); err != nil {
						return err
					}
					updated, err = api.InjectFlat(ctx, id, injs)
				}
				if err != nil {
					return err
				}
				return out.Contract(updated)
			})
		},
	}
}

func newOfferingCmd(c *contractCmd) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "offering",
		Short: "Manage service offering policies",
	}
	cmd.AddCommand(
		newOfferingInjectCmd(c),
		newOfferingGetCmd(c),
		newOfferingClearCmd(c),
		newOfferingRemoveCmd(c),
	)
	return cmd
}

func offeringFlags(cmd *cobra.Command, participant, offering *string) {
	cmd.Flags().StringVar(participant, "participant", "", "participant owning the offering")
	cmd.Flags().StringVar(offering, "offering", "", "service offering identifier")
	_ = cmd.MarkFlagRequired("participant")
	_ = cmd.MarkFlagRequired("offering")
}

func newOfferingInjectCmd(c *contractCmd) *cobra.Command {
	var participant, offering string

	cmd := &cobra.Command{
		Use:   "inject <id> [file | json]",
		Short: "Add compiled policies to a service offering",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var injs []compiler.Injection
			if err := cli.DecodeInput(inputArg(args, 1), &injs); err != nil {
				return err
			}
			return c.run("offering inject", func(ctx context.Context, api *client.Client, out *cli.Output) error {
				updated, err := api.InjectOfferingPolicies(ctx, args[0], participant, offering, injs)
				if err != nil {
					return err
				}
				return out.Contract(updated)
			})
		},
	}
	offeringFlags(cmd, &participant, &offering)
	return cmd
}

func newOfferingGetCmd(c *contractCmd) *cobra.Command {
	var participant, offering string

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show the policies of a service offering",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run("offering get", func(ctx context.Context, api *client.Client, out *cli.Output) error {
				bundles, err := api.OfferingPolicies(ctx, args[0], participant, offering)
				if err != nil {
					return err
				}
				return out.Value("offering-policies", bundles).Render()
			})
		},
	}
	offeringFlags(cmd, &participant, &offering)
	return cmd
}

func newOfferingClearCmd(c *contractCmd) *cobra.Command {
	var participant, offering string

	cmd := &cobra.Command{
		Use:   "clear <id>",
		Short: "Remove every policy of a service offering",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run("offering clear", func(ctx context.Context, api *client.Client, out *cli.Output) error {
				updated, err := api.ClearOfferingPolicies(ctx, args[0], participant, offering)
				if err != nil {
					return err
				}
				return out.Contract(updated)
			})
		},
	}
	offeringFlags(cmd, &participant, &offering)
	return cmd
}

func newOfferingRemoveCmd(c *contractCmd) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <offering>",
		Short: "Remove a service offering from every contract",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run("offering remove", func(ctx context.Context, api *client.Client, out *cli.Output) error {
				n, err := api.RemoveOffering(ctx, args[0])
				if err != nil {
					return err
				}
				return out.Result("offering-removed", "Service offering removed").
					With("offering", args[0]).
					With("modified", n).
					Render()
			})
		},
	}
}
