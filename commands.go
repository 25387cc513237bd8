package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/Zachkp/folio/internal/config"
	"github.com/Zachkp/folio/internal/content"
	"github.com/Zachkp/folio/internal/logging"
	"github.com/Zachkp/folio/internal/session"
)

// settings collects defaults, environment and bound flags.
var settings = config.New()

var rootCmd = &cobra.Command{
	Use:   "folio",
	Short: "Bilingual portfolio site with a typewriter intro and ambient equalizer",
	Long: `folio serves a Spanish/English portfolio and CV.

The hero intro is typed out on the server and streamed to the page, and the
ambient music toggle gets its equalizer bars over a WebSocket.

Running 'folio' without a subcommand starts the server.`,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
}

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password <password>",
	Short: "Print a bcrypt hash for ADMIN_PASSWORD_HASH",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := bcrypt.GenerateFromPassword([]byte(args[0]), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(hash))
		return nil
	},
}

// Execute runs the command line.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	cobra.OnInitialize(initConfig)

	// assigned here: runServe refers back to both commands
	rootCmd.RunE = runServe
	serveCmd.RunE = runServe

	for _, c := range []*cobra.Command{rootCmd, serveCmd} {
		c.Flags().String("port", "", "port to listen on (env PORT)")
		c.Flags().String("db", "", "sqlite database path (env DB_PATH)")
	}
	settings.BindPFlag("PORT", serveCmd.Flags().Lookup("port"))
	settings.BindPFlag("DB_PATH", serveCmd.Flags().Lookup("db"))

	rootCmd.AddCommand(serveCmd, prerenderCmd, previewCmd, hashPasswordCmd)
}

func initConfig() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, "Error loading .env:", err)
	}
}

// runServe is shared by the root and serve commands; flags given to the root
// command are copied over.
func runServe(cmd *cobra.Command, args []string) error {
	if cmd == rootCmd {
		for _, name := range []string{"port", "db"} {
			if f := rootCmd.Flags().Lookup(name); f.Changed {
				serveCmd.Flags().Set(name, f.Value.String())
			}
		}
	}

	cfg, err := config.Load(settings)
	if err != nil {
		return err
	}
	log := logging.New(os.Stderr, cfg.LogLevel, cfg.LogPretty)
	gin.SetMode(cfg.GinMode)

	db, err := openDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	flags, err := openFlagStore(cfg, db, log)
	if err != nil {
		return err
	}
	defer flags.Close()

	catalog, err := content.LoadCatalog()
	if err != nil {
		return err
	}

	srv := newServer(cfg, log, db, flags, catalog)
	router, err := srv.routes()
	if err != nil {
		return fmt.Errorf("build routes: %w", err)
	}

	sched, err := newScheduler(srv, logging.Component(log, "scheduler"))
	if err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		// streams watch their request context, so shutdown ends them
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() { errc <- httpSrv.ListenAndServe() }()
	log.Info().Str("addr", httpSrv.Addr).Str("mode", cfg.GinMode).Msg("listening")

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("shutdown")
	}
	srv.wg.Wait()
	return nil
}

// openFlagStore uses Redis when REDIS_URL is set and the site database
// otherwise.
func openFlagStore(cfg *config.Config, db *sql.DB, log zerolog.Logger) (session.Store, error) {
	if cfg.RedisURL != "" {
		store, err := session.NewRedisStore(cfg.RedisURL, cfg.SessionTTL)
		if err != nil {
			return nil, err
		}
		log.Info().Msg("session flags in redis")
		return store, nil
	}
	return session.NewSQLiteStore(db)
}
