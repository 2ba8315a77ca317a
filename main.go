package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"google.golang.org/api/option"

	"github.com/etnz/rddsetup/console"
	"github.com/etnz/rddsetup/rddapp"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "rddsetup",
		Short: "Create the Google Drive folder and template spreadsheet for Odoo RDD",
		Long: `rddsetup finds or creates the "Odoo RDD" folder in Google Drive and the
"Odoo_RDD_Template" spreadsheet inside it, then prints their IDs.

Running it again is safe: existing files are found and reused.`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configPath, cmd.Flags().Changed("config"))
			if err != nil {
				return err
			}
			logger := newLogger(cmd.ErrOrStderr(), verbose)
			return run(cmd.Context(), cfg, cmd.OutOrStdout(), logger)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", rddapp.DefaultConfigFile, "config file path")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print debug logs on stderr")

	return cmd
}

// loadConfig reads the config file. The default file is optional, an
// explicitly given one is not.
func loadConfig(path string, explicit bool) (*rddapp.Config, error) {
	if explicit {
		return rddapp.LoadConfig(path)
	}
	return rddapp.LoadConfigOrDefault(path)
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	if !verbose {
		return slog.New(slog.DiscardHandler)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// run authenticates, provisions and prints the results. Failures are reported
// on out and end the run normally. opts are passed to the Google services.
func run(ctx context.Context, cfg *rddapp.Config, out io.Writer, logger *slog.Logger, opts ...option.ClientOption) error {
	p := console.New(out)
	p.Banner()

	auth, err := rddapp.NewAuthenticator(cfg, out, logger)
	if err != nil {
		return err
	}

	ts, err := auth.TokenSource(ctx)
	if errors.Is(err, rddapp.ErrCredentialsNotFound) {
		p.MissingCredentials(cfg.CredentialsFile)
		return nil
	}
	if err != nil {
		p.Error(err)
		return nil
	}

	app, err := rddapp.New(ctx, cfg, ts, logger, opts...)
	if err != nil {
		p.Error(err)
		return nil
	}

	res, err := app.Provision(ctx, cfg, p)
	if err != nil {
		// already printed through the Reporter
		return nil
	}

	p.Summary(res)
	if res.Library == nil {
		p.LibraryInstructions(cfg.LibraryName)
	}
	return nil
}
