// Package contract implements the "arc-contract contract" commands.
package contract

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gezibash/arc-contract/internal/cli"
	"github.com/gezibash/arc-contract/pkg/client"
)

const commandTimeout = 30 * time.Second

type contractCmd struct {
	v *viper.Viper
	// opts are appended to every client; tests use them to reach an
	// in-process server.
	opts []client.Option
}

// Entrypoint returns the contract command tree.
func Entrypoint(v *viper.Viper, opts ...client.Option) *cobra.Command {
	c := &contractCmd{v: v, opts: opts}

	cmd := &cobra.Command{
		Use:     "contract",
		Aliases: []string{"contracts"},
		Short:   "Manage ecosystem contracts",
	}
	cmd.AddCommand(
		newCreateCmd(c),
		newGetCmd(c),
		newListCmd(c),
		newUpdateCmd(c),
		newDeleteCmd(c),
		newPurgeCmd(c),
		newSignCmd(c),
		newRevokeCmd(c),
		newODRLCmd(c),
		newCheckCmd(c),
		newInjectCmd(c),
		newOfferingCmd(c),
	)
	return cmd
}

func (c *contractCmd) run(name string, fn func(ctx context.Context, api *client.Client, out *cli.Output) error) error {
	return cli.RunCommand(cli.CommandConfig{
		Name:    "contract " + name,
		Viper:   c.v,
		Timeout: commandTimeout,
		Options: c.opts,
		Run:     fn,
	})
}

func inputArg(args []string, i int) string {
	if len(args) > i {
		return args[i]
	}
	return ""
}
