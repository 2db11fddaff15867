package server

import (
	"net/http"

	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/sessionwatch/sessionwatch/internal/dispatch"
	httpmiddleware "github.com/sessionwatch/sessionwatch/internal/http"
	"github.com/sessionwatch/sessionwatch/internal/store"
	"github.com/sessionwatch/sessionwatch/internal/webhook"
)

// Config wires the server's collaborators. All handles are constructed once
// at process start and passed in; the server holds no module-level state.
type Config struct {
	Verifier   *webhook.Verifier
	Dispatcher *dispatch.Dispatcher
	Sessions   store.SessionStore
	Profiles   store.ProfileStore
	Trigger    dispatch.AnalysisTrigger

	// CORSOrigins lists the allowed origins for the API routes.
	CORSOrigins []string

	Logger zerolog.Logger
}

// Server exposes the ingestion and query endpoints.
type Server struct {
	verifier   *webhook.Verifier
	dispatcher *dispatch.Dispatcher
	sessions   store.SessionStore
	profiles   store.ProfileStore
	trigger    dispatch.AnalysisTrigger

	corsOrigins []string
	logger      zerolog.Logger
}

// New creates a server from the given configuration.
func New(cfg Config) *Server {
	trigger := cfg.Trigger
	if trigger == nil {
		trigger = dispatch.NoopTrigger{}
	}

	return &Server{
		verifier:    cfg.Verifier,
		dispatcher:  cfg.Dispatcher,
		sessions:    cfg.Sessions,
		profiles:    cfg.Profiles,
		trigger:     trigger,
		corsOrigins: cfg.CORSOrigins,
		logger:      cfg.Logger,
	}
}

// Handler returns the fully wired HTTP handler: routes, request logging,
// client IP extraction, and CORS on the API surface.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/webhooks", s.handleWebhook)
	mux.HandleFunc("POST /api/fetch-session", s.handleFetchSession)
	mux.HandleFunc("POST /api/profile", s.handleProfile)
	mux.HandleFunc("POST /api/analysis", s.handleAnalysis)
	mux.HandleFunc("GET /healthz", s.handleHealthz)

	var handler http.Handler = mux
	handler = withCORS(s.corsOrigins, handler)
	handler = httpmiddleware.ClientIPMiddleware()(handler)
	handler = httpmiddleware.RequestLogger(s.logger)(handler)

	return handler
}

// withCORS adds CORS support for browser callers of the API routes.
func withCORS(allowedOrigins []string, h http.Handler) http.Handler {
	if len(allowedOrigins) == 0 {
		return h
	}

	middleware := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost},
		AllowedHeaders:   []string{"Content-Type", webhook.HeaderID, webhook.HeaderTimestamp, webhook.HeaderSignature},
		AllowCredentials: true,
	})
	return middleware.Handler(h)
}
