package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/wagate/wagate/internal/config"
	"github.com/wagate/wagate/internal/logging"
	"github.com/wagate/wagate/internal/provider"
	"github.com/wagate/wagate/internal/server"
	"github.com/wagate/wagate/internal/session"
	"github.com/wagate/wagate/internal/store"
	"github.com/wagate/wagate/internal/webhook"
)

var (
	serveConfigDir string
	serveHost      string
	servePort      int
	serveDataDir   string
	serveLogLevel  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway and its admin HTTP API",
	Long: `Start the gateway: open the session store, bring persisted device
sessions back up, and serve the admin HTTP API.

Configuration is read from wagate.json / wagate.jsonc (working directory
or XDG config dir), a .env file, WAGATE_* environment variables, and the
flags below, in increasing priority.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveConfigDir, "config", "c", "", "Directory to read wagate.json from (defaults to the working directory)")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to listen on")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on")
	serveCmd.Flags().StringVar(&serveDataDir, "data-dir", "", "Directory for the database and provider state")
	serveCmd.Flags().StringVar(&serveLogLevel, "log-level", "", "Log level (debug|info|warn|error)")
}

func runServe(cmd *cobra.Command, args []string) error {
	// .env first so config interpolation and env overrides see it.
	_ = godotenv.Load()

	configDir := serveConfigDir
	if configDir == "" {
		configDir, _ = os.Getwd()
	}

	cfg, err := config.Load(configDir)
	if err != nil {
		return err
	}

	// Flags beat files and environment.
	if serveHost != "" {
		cfg.Server.Host = serveHost
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}
	if serveDataDir != "" {
		cfg.DataDir = serveDataDir
	}
	if serveLogLevel != "" {
		cfg.Log.Level = serveLogLevel
	}
	config.Finalize(cfg)

	logging.Init(logging.Config{
		Level:  logging.ParseLevel(cfg.Log.Level),
		Pretty: cfg.Log.Pretty,
	})
	defer logging.Close()

	log := logging.Component("main")
	log.Info().Str("version", Version).Str("driver", cfg.Provider.Driver).Msg("Starting wagate")

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	factory, err := provider.DefaultRegistry().Get(cfg.Provider.Driver)
	if err != nil {
		return err
	}

	stateDir := config.ProviderStateDir(cfg.DataDir)
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	sessions := session.NewService(st, factory, stateDir, cfg.Provider.Options)
	sessions.SetInboundHandler(webhook.NewDispatcher(st, sessions))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Bring stored devices back up without holding the API hostage;
	// sessions appear one by one as they reconnect.
	go func() {
		if err := sessions.StartAll(ctx); err != nil {
			log.Warn().Err(err).Msg("Session restore did not finish")
		}
	}()

	serverCfg := server.DefaultConfig()
	serverCfg.Host = cfg.Server.Host
	serverCfg.Port = cfg.Server.Port
	serverCfg.APIKey = cfg.APIKey
	serverCfg.EnableCORS = cfg.Server.EnableCORS
	if cfg.Server.ReadTimeout > 0 {
		serverCfg.ReadTimeout = time.Duration(cfg.Server.ReadTimeout) * time.Second
	}
	if cfg.Server.WriteTimeout > 0 {
		serverCfg.WriteTimeout = time.Duration(cfg.Server.WriteTimeout) * time.Second
	}

	srv := server.New(serverCfg, st, sessions)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// Wait for interrupt signal
	<-ctx.Done()
	stop()

	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}
	if err := sessions.Close(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Session teardown error")
	}

	log.Info().Msg("Gateway stopped")
	return nil
}
