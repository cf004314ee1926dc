package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/acastellana/clawcondos/internal/condo"
	"github.com/acastellana/clawcondos/internal/config"
	"github.com/acastellana/clawcondos/internal/engine"
	"github.com/acastellana/clawcondos/internal/health"
	"github.com/acastellana/clawcondos/internal/metrics"
	"github.com/acastellana/clawcondos/internal/notify"
	"github.com/acastellana/clawcondos/internal/planlog"
	"github.com/acastellana/clawcondos/internal/rpc"
	"github.com/acastellana/clawcondos/internal/store"
)

func main() {
	// Setup structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()

	if os.Getenv("ENVIRONMENT") == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	log.Logger = logger

	// Load config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err == nil {
		zerolog.SetGlobalLevel(level)
	}

	logger.Info().
		Str("environment", cfg.Environment).
		Str("listen_addr", cfg.ListenAddr).
		Bool("slack_enabled", cfg.SlackEnabled()).
		Bool("gateway_enabled", cfg.GatewayEnabled()).
		Msg("starting clawcondos board")

	// Board store
	st, err := store.New(cfg.DataPath, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open board store")
	}
	if _, err := st.Load(); err != nil {
		logger.Fatal().Err(err).Str("path", st.Path()).Msg("board file unreadable")
	}
	logger.Info().Str("path", st.Path()).Msg("board store ready")

	// Metrics
	m := metrics.New()

	// Role bindings
	bindings, err := cfg.ParseAgentRoles()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid agent role bindings")
	}
	roles := condo.NewRoleResolver(bindings)

	// Notifications + session messaging
	var slackPoster notify.SlackPoster
	if cfg.SlackEnabled() {
		slackPoster = notify.NewSlackClient(cfg.SlackBotToken)
		logger.Info().Str("channel", cfg.SlackNotifyChannel).Msg("slack announcements enabled")
	} else {
		logger.Info().Msg("slack not configured, skipping announcements")
	}
	notifier := notify.New(slackPoster, cfg.SlackNotifyChannel, m, logger)
	messenger := notify.NewMessenger(cfg.SessionGatewayURL, cfg.SessionGatewayToken, m, logger)

	// Engine and condo service
	logbuf := planlog.New(cfg.PlanLogCapacity)
	eng := engine.New(st, logbuf, notifier, messenger, roles, m, logger)
	condos := condo.NewService(st, logger)

	// Health checker
	checker := health.NewChecker(logger)
	checker.Register("store", func(ctx context.Context) health.Status {
		if _, err := st.Load(); err != nil {
			return health.StatusDown
		}
		return health.StatusOK
	})

	// API server
	handlers := rpc.NewHandlers(eng, condos, checker, logger)
	server := rpc.NewServer(rpc.ServerConfig{
		ListenAddr: cfg.ListenAddr,
		Auth: rpc.AuthConfig{
			Mode:   cfg.AuthMode,
			APIKey: cfg.APIKey,
		},
	}, handlers, m, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
		if err := server.Shutdown(); err != nil {
			logger.Error().Err(err).Msg("server shutdown failed")
		}
	case err := <-errCh:
		if err != nil {
			logger.Fatal().Err(err).Msg("api server failed")
		}
	}

	logger.Info().Msg("clawcondos board stopped")
}
