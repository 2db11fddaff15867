package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sessionwatch/sessionwatch/internal/analysis"
	"github.com/sessionwatch/sessionwatch/internal/dispatch"
	"github.com/sessionwatch/sessionwatch/internal/logger"
	"github.com/sessionwatch/sessionwatch/internal/server"
	"github.com/sessionwatch/sessionwatch/internal/store"
	memorystore "github.com/sessionwatch/sessionwatch/internal/store/memory"
	postgresstore "github.com/sessionwatch/sessionwatch/internal/store/postgres"
	"github.com/sessionwatch/sessionwatch/internal/webhook"
	"github.com/sessionwatch/sessionwatch/internal/worker"
)

type ServerCmd struct {
	// Server configuration
	Listen string `help:"HTTP server listen address" default:"0.0.0.0:8080" env:"SESSIONWATCH_LISTEN"`

	// Webhook configuration
	SigningSecret    string        `help:"webhook signing secret from the identity provider" env:"SESSIONWATCH_SIGNING_SECRET"`
	WebhookTolerance time.Duration `help:"allowed webhook timestamp skew" default:"5m" env:"SESSIONWATCH_WEBHOOK_TOLERANCE"`

	// CORS configuration
	CORSOrigins []string `help:"allowed CORS origins for API requests" default:"" env:"SESSIONWATCH_CORS_ORIGINS"`

	// Analysis configuration
	Analysis AnalysisFlags `embed:"" prefix:"analysis-"`

	// Store configuration
	StoreType     string             `help:"store type (memory or postgres)" default:"memory" env:"SESSIONWATCH_STORE_TYPE" enum:"memory,postgres"`
	PostgresStore PostgresStoreFlags `embed:"" prefix:"postgres-"`
}

type AnalysisFlags struct {
	Enabled bool   `help:"run the anomaly-analysis pipeline" default:"true" env:"SESSIONWATCH_ANALYSIS_ENABLED"`
	APIKey  string `help:"generative language API key" env:"SESSIONWATCH_ANALYSIS_API_KEY"`
	Model   string `help:"generative model name" default:"gemini-2.0-flash-exp" env:"SESSIONWATCH_ANALYSIS_MODEL"`
	BaseURL string `help:"generative language API base URL override" default:"" env:"SESSIONWATCH_ANALYSIS_BASE_URL"`
}

func (a *AnalysisFlags) Validate() error {
	if a.Enabled && a.APIKey == "" {
		return errors.New("analysis API key is required (--analysis-api-key or SESSIONWATCH_ANALYSIS_API_KEY)")
	}
	return nil
}

type PostgresStoreFlags struct {
	// Connection Configuration
	ConnString string `help:"PostgreSQL connection string" env:"POSTGRES_CONNECTION_STRING"`

	// Connection Pool Configuration
	MaxConns        int32 `help:"maximum number of connections in pool" default:"20"`
	MinConns        int32 `help:"minimum number of connections in pool" default:"5"`
	MaxConnLifetime int32 `help:"maximum connection lifetime in seconds" default:"3600"`
	MaxConnIdleTime int32 `help:"maximum connection idle time in seconds" default:"1800"`

	// Migration Configuration
	AutoMigrate bool `help:"run database migrations on startup" default:"false" env:"SESSIONWATCH_POSTGRES_AUTO_MIGRATE"`
}

func (s *PostgresStoreFlags) Validate() error {
	if s.ConnString == "" {
		return errors.New("PostgreSQL connection string is required (--postgres-conn-string or POSTGRES_CONNECTION_STRING)")
	}
	return nil
}

func (c *ServerCmd) Run(globals *Globals) error {
	log := logger.Setup(globals.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Str("version", globals.Version).Bool("debug", globals.Debug).Msg("Starting server")

	if c.SigningSecret == "" {
		return errors.New("webhook signing secret is required (--signing-secret or SESSIONWATCH_SIGNING_SECRET)")
	}

	verifier, err := webhook.NewVerifier(c.SigningSecret)
	if err != nil {
		return fmt.Errorf("failed to create webhook verifier: %w", err)
	}
	verifier = verifier.WithTolerance(c.WebhookTolerance)

	// Create stores based on store type
	var (
		sessionStore store.SessionStore
		profileStore store.ProfileStore
	)

	switch c.StoreType {
	case "postgres":
		if err := c.PostgresStore.Validate(); err != nil {
			return fmt.Errorf("failed to validate postgres flags: %w", err)
		}

		poolCfg := &postgresstore.PoolConfig{
			ConnString:      c.PostgresStore.ConnString,
			MaxConns:        c.PostgresStore.MaxConns,
			MinConns:        c.PostgresStore.MinConns,
			MaxConnLifetime: c.PostgresStore.MaxConnLifetime,
			MaxConnIdleTime: c.PostgresStore.MaxConnIdleTime,
		}
		pool, err := postgresstore.NewPool(ctx, poolCfg)
		if err != nil {
			return fmt.Errorf("failed to create store pool: %w", err)
		}
		defer pool.Close()

		if c.PostgresStore.AutoMigrate {
			if err := postgresstore.RunMigrations(ctx, pool); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
		}

		sessionStore = postgresstore.NewSessionStore(pool)
		profileStore = postgresstore.NewProfileStore(pool)
		log.Info().Msg("Using PostgreSQL stores")

	default:
		sessionStore = memorystore.NewSessionStore()
		profileStore = memorystore.NewProfileStore()
		log.Info().Msg("Using in-memory stores")
	}

	// Wire the advisory analysis pipeline
	var trigger dispatch.AnalysisTrigger = dispatch.NoopTrigger{}
	if c.Analysis.Enabled {
		if err := c.Analysis.Validate(); err != nil {
			return fmt.Errorf("failed to validate analysis flags: %w", err)
		}

		gemini, err := analysis.NewGeminiClient(analysis.GeminiConfig{
			APIKey:  c.Analysis.APIKey,
			Model:   c.Analysis.Model,
			BaseURL: c.Analysis.BaseURL,
		})
		if err != nil {
			return fmt.Errorf("failed to create analysis client: %w", err)
		}

		analysisWorker := worker.NewAnalysisWorker(
			analysis.NewAggregator(sessionStore),
			analysis.NewAnalyzer(gemini),
		)
		go analysisWorker.Run(ctx)
		defer analysisWorker.Stop()

		trigger = analysisWorker
		log.Info().Str("model", c.Analysis.Model).Msg("Analysis pipeline enabled")
	} else {
		log.Warn().Msg("Analysis pipeline is disabled")
	}

	srv := server.New(server.Config{
		Verifier:    verifier,
		Dispatcher:  dispatch.NewDispatcher(sessionStore, trigger),
		Sessions:    sessionStore,
		Profiles:    profileStore,
		Trigger:     trigger,
		CORSOrigins: c.CORSOrigins,
		Logger:      log,
	})

	httpServer := configureHTTPServer(c.Listen, srv.Handler())

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", c.Listen).Msg("Starting HTTP server")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}

	return nil
}
