package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/viper"

	"github.com/gezibash/arc-contract/pkg/client"
)

// CommandConfig configures a CLI command that talks to the contract service.
type CommandConfig struct {
	// Name identifies this command in logs.
	Name string

	// Viper holds the command's configuration.
	Viper *viper.Viper

	// Timeout for the command operation. Zero means no timeout.
	Timeout time.Duration

	// Options are passed to the API client.
	Options []client.Option

	// Run is the command's business logic.
	Run func(ctx context.Context, c *client.Client, out *Output) error
}

// RunCommand executes a CLI command with standard infrastructure setup.
// Handles: NewClient -> signal context -> timeout -> Output -> Run -> Close.
func RunCommand(cfg CommandConfig) error {
	if cfg.Name == "" {
		return fmt.Errorf("command name required")
	}
	if cfg.Viper == nil {
		return fmt.Errorf("viper required")
	}
	if cfg.Run == nil {
		return fmt.Errorf("run function required")
	}

	c, closer, err := NewClient(cfg.Viper, cfg.Options...)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	defer func() { _ = closer.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	return cfg.Run(ctx, c, NewOutputFromViper(cfg.Viper))
}
