package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sersweai/leadcrm/internal/api"
	"github.com/sersweai/leadcrm/internal/domain/crm"
	"github.com/sersweai/leadcrm/internal/domain/leadimport"
	"github.com/sersweai/leadcrm/internal/infra/database"
	"github.com/sersweai/leadcrm/internal/infra/eventbus"
	"github.com/sersweai/leadcrm/internal/infra/mailer"
	"github.com/sersweai/leadcrm/internal/mcpserver"
	"github.com/sersweai/leadcrm/internal/server"
)

// openDatabase opens DATABASE_URL and applies pending migrations.
func (a *app) openDatabase(ctx context.Context) (*database.DB, error) {
	db, err := database.Open(a.cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and dashboard endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if addr != "" {
				a.cfg.Addr = addr
			}
			loc, err := time.LoadLocation(a.cfg.SendTimezone)
			if err != nil {
				return fmt.Errorf("SEND_TIMEZONE %q: %w", a.cfg.SendTimezone, err)
			}
			m, err := mailer.New(a.cfg, a.logger.Named("mailer"))
			if err != nil {
				return err
			}
			if m == nil {
				a.logger.Warn("no mail provider configured; sends will be rejected",
					zap.String("provider", a.cfg.MailProvider))
			}
			db, err := a.openDatabase(ctx)
			if err != nil {
				return err
			}

			bus := eventbus.New()
			srvCfg := server.DefaultConfig()
			srvCfg.Addr = a.cfg.Addr
			srv := server.NewServer(api.Deps{
				DB:       db,
				Config:   a.cfg,
				Mailer:   m,
				Bus:      bus,
				Logger:   a.logger,
				Location: loc,
			}, srvCfg)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return srv.Run(gctx) })
			if a.cfg.ImportInbox != "" {
				importer := leadimport.NewImporter(crm.NewLeadService(db), bus, a.logger.Named("import"))
				g.Go(func() error { return watchInbox(gctx, a.cfg.ImportInbox, importer, a.logger) })
			}
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides LEADCRM_ADDR)")
	return cmd
}

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := a.openDatabase(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()
			v, err := database.MigrationVersion(cmd.Context(), db)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "database at migration version %d\n", v) //nolint:errcheck
			return nil
		},
	}
}

func newImportCmd(a *app) *cobra.Command {
	var watchDir string
	cmd := &cobra.Command{
		Use:   "import [file.csv ...]",
		Short: "Import leads from CSV exports, or watch an inbox directory with --watch",
		Example: `  leadcrm import leads-oakland.csv leads-fremont.csv
  leadcrm import --watch ./inbox`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if watchDir == "" && len(args) == 0 {
				return errors.New("import needs at least one CSV file or --watch DIR")
			}
			ctx := cmd.Context()
			db, err := a.openDatabase(ctx)
			if err != nil {
				return err
			}
			defer db.Close()
			importer := leadimport.NewImporter(crm.NewLeadService(db), nil, a.logger.Named("import"))

			total := 0
			for _, path := range args {
				n, err := importFile(ctx, importer, path)
				if err != nil {
					return err
				}
				total += n
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d leads\n", filepath.Base(path), n) //nolint:errcheck
			}
			if len(args) > 1 {
				fmt.Fprintf(cmd.OutOrStdout(), "total: %d leads\n", total) //nolint:errcheck
			}
			if watchDir != "" {
				return watchInbox(ctx, watchDir, importer, a.logger)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&watchDir, "watch", "", "watch DIR and import every CSV dropped into it")
	return cmd
}

func importFile(ctx context.Context, importer *leadimport.Importer, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	n, err := importer.Import(ctx, f, filepath.Base(path))
	if err != nil {
		return 0, fmt.Errorf("import %s: %w", path, err)
	}
	return n, nil
}

// watchInbox runs the fsnotify inbox watcher until ctx is done.
func watchInbox(ctx context.Context, dir string, importer *leadimport.Importer, logger *zap.Logger) error {
	w, err := leadimport.NewWatcher(dir, importer, logger.Named("watcher"))
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	w.Stop()
	return nil
}

func newMCPCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve CRM tools to an agent over MCP on stdin/stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := a.openDatabase(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			leads := crm.NewLeadService(db)
			srv := mcpserver.New(mcpserver.Services{
				Leads:    leads,
				Timeline: crm.NewTimelineService(leads, crm.NewEmailService(db), crm.NewEventService(db)),
				Stats:    crm.NewStatsService(db),
				Deals:    crm.NewDealService(db),
			}, a.logger.Named("mcp"))
			return srv.Run(cmd.Context())
		},
	}
}
