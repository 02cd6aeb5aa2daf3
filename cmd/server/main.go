/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the fleetlog server, and offers the same store to
  a couple of operator commands. Handles configuration, dependency
  injection, and graceful shutdown.

COMMANDS:
  serve              Run the HTTP API
  seed <scenario>    Reset the store and load a demo scenario
  export <kind>      Write a report file without going through HTTP

STARTUP SEQUENCE (serve):
  1. Load configuration (.env, config file, FLEETLOG_* env, flags)
  2. Open the configured store (sqlite, postgres or memory)
  3. Ensure the bootstrap admin exists
  4. Optionally load a seed scenario
  5. Start the session sweeper
  6. Start server with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the sweeper
  4. Close database connection

EXAMPLES:
  # Run with file database
  FLEETLOG_AUTH_SECRET=change-me ./server serve --db-path ./data/fleet.db

  # Run against Postgres
  ./server serve --db-driver postgres --db-url postgres://fleet@localhost/fleet

  # In-memory demo with data
  ./server serve --db-driver memory --seed busy-day

  # Export yesterday's mileage
  ./server export mileage --date 2024-01-14 --format xlsx --out mileage.xlsx

SEE ALSO:
  - config/config.go: Keys and defaults
  - api/server.go: Router configuration
*/
package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/warp/fleetlog/api"
	"github.com/warp/fleetlog/auth"
	"github.com/warp/fleetlog/config"
	"github.com/warp/fleetlog/fleet"
	"github.com/warp/fleetlog/fleet/store"
	"github.com/warp/fleetlog/report"
	"github.com/warp/fleetlog/store/postgres"
	"github.com/warp/fleetlog/store/sqlite"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := config.New()
	var configFile string

	root := &cobra.Command{
		Use:          "server",
		Short:        "Rider mileage and equipment tracker",
		SilenceUsage: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "config file (yaml, toml or json)")
	pf.String("db-driver", config.DriverSQLite, "storage driver: sqlite, postgres or memory")
	pf.String("db-path", "fleetlog.db", "SQLite database path")
	pf.String("db-url", "", "PostgreSQL connection URL")
	bindFlags(v, pf, map[string]string{
		"db.driver": "db-driver",
		"db.path":   "db-path",
		"db.url":    "db-url",
	})

	load := func() (*config.Config, error) { return config.Load(v, configFile) }
	root.AddCommand(newServeCmd(v, load), newSeedCmd(load), newExportCmd(load))
	return root
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			log.Fatalf("Failed to bind flag %s: %v", name, err)
		}
	}
}

// =============================================================================
// WIRING
// =============================================================================

// app holds everything the commands share.
type app struct {
	cfg     *config.Config
	store   fleet.Store
	auth    *auth.Authenticator
	handler *api.Handler
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.DB.Driver, err)
	}

	authn := auth.New(st, auth.Config{
		Secret:          []byte(cfg.Auth.Secret),
		SessionTTL:      cfg.Auth.SessionTTL,
		AdminEmail:      cfg.Auth.AdminEmail,
		AdminPassword:   cfg.Auth.AdminPassword,
		DefaultLanguage: cfg.App.Language,
	})
	if err := authn.EnsureAdmin(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("bootstrap admin: %w", err)
	}

	return &app{
		cfg:     cfg,
		store:   st,
		auth:    authn,
		handler: api.NewHandler(st, authn, cfg.App.Location),
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		log.Printf("Failed to close store: %v", err)
	}
}

func openStore(ctx context.Context, cfg *config.Config) (fleet.Store, error) {
	switch cfg.DB.Driver {
	case config.DriverMemory:
		log.Printf("[Store] Using in-memory store, data is lost on exit")
		return store.NewMemory(), nil
	case config.DriverPostgres:
		st, err := postgres.New(ctx, cfg.DB.URL)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		st, err := sqlite.New(cfg.DB.Path)
		if err != nil {
			return nil, err
		}
		return st, nil
	}
}

// =============================================================================
// SERVE
// =============================================================================

func newServeCmd(v *viper.Viper, load func() (*config.Config, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}
	fs := cmd.Flags()
	fs.Int("port", 8080, "HTTP server port")
	fs.String("static-dir", "", "directory with the built web client")
	fs.String("seed", "", "load a demo scenario on startup (resets data)")
	bindFlags(v, fs, map[string]string{
		"http.port":       "port",
		"http.static_dir": "static-dir",
		"seed.scenario":   "seed",
	})
	return cmd
}

func serve(cfg *config.Config) error {
	a, err := newApp(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.Seed.Scenario != "" {
		if err := a.handler.Seed(context.Background(), cfg.Seed.Scenario); err != nil {
			return fmt.Errorf("seed %s: %w", cfg.Seed.Scenario, err)
		}
	}

	sweeper := api.NewSessionSweeper(a.auth)
	sweeper.SweepInterval = cfg.Scheduler.SweepInterval
	sweeper.Enabled = cfg.Scheduler.Enabled
	sweeper.Start()
	defer sweeper.Stop()

	router := api.NewRouter(a.handler, api.RouterOptions{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		StaticDir:      cfg.HTTP.StaticDir,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("🚀 Server starting on http://localhost:%d", cfg.HTTP.Port)
		log.Printf("📊 API available at http://localhost:%d/api (store: %s)", cfg.HTTP.Port, cfg.DB.Driver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("Server stopped")
	return nil
}

// =============================================================================
// SEED
// =============================================================================

func newSeedCmd(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:       "seed <scenario>",
		Short:     "Reset the store and load a demo scenario",
		Args:      cobra.ExactArgs(1),
		ValidArgs: api.ScenarioIDs(),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if cfg.DB.Driver == config.DriverMemory {
				log.Printf("[Seed] The memory store does not outlive this command")
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.handler.Seed(cmd.Context(), args[0])
		},
	}
}

// =============================================================================
// EXPORT
// =============================================================================

func newExportCmd(load func() (*config.Config, error)) *cobra.Command {
	var format, out, lang string
	query := map[string]*string{}

	cmd := &cobra.Command{
		Use:   "export <mileage|equipment|riders>",
		Short: "Write a report file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := report.ParseKind(args[0])
			if err != nil {
				return err
			}
			fmtKind, err := report.ParseFormat(format)
			if err != nil {
				return err
			}
			q := url.Values{}
			for key, val := range query {
				if *val != "" {
					q.Set(key, *val)
				}
			}
			f, err := api.ParseFilter(q)
			if err != nil {
				return err
			}

			cfg, err := load()
			if err != nil {
				return err
			}
			opts := report.Options{Language: cfg.App.Language, Location: cfg.App.Location}
			if lang != "" {
				if opts.Language = fleet.Language(lang); !opts.Language.Valid() {
					return fmt.Errorf("unsupported language %q (use fr or en)", lang)
				}
			}

			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			table, degraded := a.handler.BuildReport(cmd.Context(), kind, f, opts)
			if degraded {
				return errors.New("store read failed, report would be empty")
			}

			var buf bytes.Buffer
			if err := report.Write(&buf, table, fmtKind); err != nil {
				return err
			}
			if out == "" {
				out = report.FileName(kind, fmtKind, time.Now(), cfg.App.Location)
			}
			if err := writeOutput(cmd.OutOrStdout(), out, buf.Bytes()); err != nil {
				return err
			}
			log.Printf("[Export] Wrote %s (%d rows)", out, len(table.Rows))
			return nil
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&format, "format", "csv", "csv or xlsx")
	fs.StringVar(&out, "out", "", "output file, - for stdout (default: generated name)")
	fs.StringVar(&lang, "lang", "", "column language, fr or en (default: app.language)")
	for key, usage := range map[string]string{
		"date":     "single day, YYYY-MM-DD",
		"from":     "range start, YYYY-MM-DD",
		"to":       "range end, YYYY-MM-DD",
		"rider_id": "only this rider",
		"q":        "search text",
		"type":     "entry type, ignored by equipment",
		"shift":    "1 or 2",
	} {
		query[key] = fs.String(flagName(key), "", usage)
	}
	return cmd
}

// writeOutput writes data to stdout when out is "-", otherwise to the file
// out. A failed close is reported since the file was just written.
func writeOutput(stdout io.Writer, out string, data []byte) (err error) {
	if out == "-" {
		_, err = stdout.Write(data)
		return err
	}
	file, err := os.Create(out)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", out, cerr)
		}
	}()
	_, err = file.Write(data)
	return err
}

func flagName(key string) string {
	if key == "rider_id" {
		return "rider"
	}
	return key
}
