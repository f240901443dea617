// Package api exposes the coordinator's hard core over an authenticated
// JSON-over-HTTP RPC surface, routed with go-chi and CORS-wrapped with
// go-chi/cors — the router/CORS pairing the jordigilh-kubernaut example
// exercises over a chi-routed gateway.
package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/OHMS-DeAI/ohms-coordinator/internal/coordinator"
	"github.com/OHMS-DeAI/ohms-coordinator/internal/economics"
	"github.com/OHMS-DeAI/ohms-coordinator/internal/logging"
)

// Server exposes §6.1's public RPC surface over HTTP.
type Server struct {
	state      *coordinator.State
	log        logging.ComponentLogger
	router     chi.Router
	econHealth func(context.Context) (economics.Health, error)

	policyMu sync.Mutex
	policy   swarmPolicy
}

// Options configures an api.Server.
type Options struct {
	Authenticator   Authenticator
	CORSOrigins     []string
	EconHealthCheck func(context.Context) (economics.Health, error)
}

// NewServer builds a Server wired to state and routes every §6.1 RPC.
func NewServer(state *coordinator.State, log logging.ComponentLogger, opts Options) *Server {
	if log == nil {
		log = logging.NoOp{}
	}
	authn := opts.Authenticator
	if authn == nil {
		authn = BearerTokenAuthenticator{}
	}

	s := &Server{
		state:      state,
		log:        log.WithComponent("api"),
		econHealth: opts.EconHealthCheck,
		policy:     swarmPolicy{MaxFanoutK: 3},
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(otelhttp.NewMiddleware("ohms-coordinator"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOriginsOrDefault(opts.CORSOrigins),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(requireAuth(authn, s.log))

		r.Post("/v1/agents", s.handleRegisterAgent)
		r.Get("/v1/agents", s.handleListAgents)
		r.Get("/v1/agents/mine", s.handleListUserAgents)
		r.Get("/v1/agents/{id}", s.handleGetAgent)
		r.Post("/v1/agents/{id}/health", s.handleUpdateAgentHealth)
		r.Post("/v1/agents/{id}/status", s.handleUpdateAgentStatus)

		r.Post("/v1/route", s.handleRouteRequest)
		r.Post("/v1/route/best", s.handleRouteBestResult)
		r.Get("/v1/routing-stats", s.handleGetRoutingStats)

		r.Post("/v1/instructions", s.handleCreateAgentsFromInstructions)
		r.Get("/v1/instructions", s.handleListInstructionRequests)
		r.Get("/v1/instructions/{requestID}/analysis", s.handleGetInstructionAnalysis)
		r.Get("/v1/instructions/{requestID}/status", s.handleGetAgentCreationStatus)
		r.Get("/v1/spawning/metrics", s.handleGetAgentSpawningMetrics)
		r.Get("/v1/coordination/networks", s.handleGetCoordinationNetworks)

		r.Get("/v1/quota", s.handleGetUserQuotaStatus)
		r.Post("/v1/quota/tier", s.handleUpgradeSubscriptionTier)
		r.Get("/v1/quota/tier", s.handleGetSubscriptionTierInfo)
		r.Post("/v1/quota/tokens/validate", s.handleValidateTokenUsageQuota)
		r.Get("/v1/economics/health", s.handleGetEconomicsHealth)

		r.Put("/v1/swarm-policy", s.handleSetSwarmPolicy)
		r.Get("/v1/swarm-policy", s.handleGetSwarmPolicy)
	})

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Serve starts an HTTP server on addr, shutting down gracefully when ctx
// is cancelled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("coordinator listening", map[string]interface{}{"addr": addr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func corsOriginsOrDefault(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
