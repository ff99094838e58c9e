// Command leadcrm runs the outreach CRM: the HTTP API, migrations, CSV imports and the MCP
// tool server.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	// Sending windows use IANA zones; embed the database for minimal container images.
	_ "time/tzdata"

	"github.com/sersweai/leadcrm/internal/infra/config"
	"github.com/sersweai/leadcrm/internal/infra/logging"
	"github.com/sersweai/leadcrm/internal/version"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out, errOut io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(errOut)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(errOut, "Error:", err) //nolint:errcheck
		return 1
	}
	return 0
}

// app carries what PersistentPreRunE loads for every subcommand.
type app struct {
	cfg    config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	var (
		logLevel  string
		logFormat string
	)

	root := &cobra.Command{
		Use:   "leadcrm",
		Short: "Outreach CRM for local-business web design leads",
		Long: `leadcrm tracks leads, sends outreach email sequences with follow-ups,
records opens and clicks, and manages a small deal pipeline.

Configuration comes from the environment (a .env file is read when present)
and an optional OUTREACH_CONFIG YAML file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			if logFormat != "" {
				cfg.LogFormat = logFormat
			}
			logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			a.cfg, a.logger = cfg, logger
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "", "override LOG_FORMAT (json, console)")

	root.AddCommand(
		newServeCmd(a),
		newMigrateCmd(a),
		newImportCmd(a),
		newMCPCmd(a),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String()) //nolint:errcheck
		},
	}
}
