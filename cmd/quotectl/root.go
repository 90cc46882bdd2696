package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jsamuelsen/quotekeeper/internal/app"
	"github.com/jsamuelsen/quotekeeper/internal/bootstrap"
	"github.com/jsamuelsen/quotekeeper/internal/platform/config"
	"github.com/jsamuelsen/quotekeeper/internal/platform/logging"
)

// cli carries flag values and output streams shared by every subcommand.
type cli struct {
	out    io.Writer
	errOut io.Writer

	configDir string
	profile   string
	verbose   bool
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	c := &cli{out: out, errOut: errOut}

	root := &cobra.Command{
		Use:   "quotectl",
		Short: "Manage the quotekeeper store",
		Long: `quotectl reads and edits the quotekeeper store directly.

It loads the same configuration as the service (configs/base.yaml, the
profile file, then APP_* environment variables) and opens the configured
storage backend.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.SetOut(out)
	root.SetErr(errOut)

	root.PersistentFlags().StringVar(&c.configDir, "config-dir", config.DefaultConfigDir, "directory holding base.yaml and profile files")
	root.PersistentFlags().StringVarP(&c.profile, "profile", "p", defaultProfile(), "configuration profile")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "log at debug level")

	root.AddCommand(
		c.listCmd(),
		c.categoriesCmd(),
		c.filterCmd(),
		c.addCmd(),
		c.editCmd(),
		c.deleteCmd(),
		c.randomCmd(),
		c.exportCmd(),
		c.importCmd(),
		c.syncCmd(),
	)

	return root
}

func defaultProfile() string {
	if p := os.Getenv("APP_ENVIRONMENT"); p != "" {
		return p
	}

	return "local"
}

// run opens the store, hands the quote service to fn and closes everything
// afterwards, waiting for outstanding mirror requests.
func (c *cli) run(cmd *cobra.Command, fn func(ctx context.Context, svc *app.QuoteService) error) (err error) {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadFrom(c.configDir, c.profile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	level := cfg.Log.Level
	if c.verbose {
		level = "debug"
	}

	logger := logging.NewWithWriter(&logging.Config{
		Level:   level,
		Format:  "pretty",
		Service: "quotectl",
		Version: Version,
	}, c.errOut)

	components, err := bootstrap.New(ctx, cfg, logger, bootstrap.Options{})
	if err != nil {
		return err
	}

	defer func() {
		err = errors.Join(err, components.Close())
	}()

	return fn(ctx, components.Service)
}
