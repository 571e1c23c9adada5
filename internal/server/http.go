package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/edwardmadi/eurodollar-protocol/internal/ingestion"
	"github.com/edwardmadi/eurodollar-protocol/internal/observability"
	"github.com/edwardmadi/eurodollar-protocol/internal/query"
)

// HTTPServer is the HTTP/JSON surface: command submission for admin and
// manual operations, read views over projections, and operational endpoints.
// Bulk command traffic goes over NATS, not here.
type HTTPServer struct {
	httpServer *http.Server
	logger     zerolog.Logger
}

// Deps holds everything the HTTP handlers need.
type Deps struct {
	Submitter       *ingestion.Submitter
	QueryService    *query.QueryService
	HealthChecker   *observability.HealthChecker
	DomainSeparator string
	Logger          zerolog.Logger
}

// NewHTTPServer builds the gin router and wraps it in an http.Server.
func NewHTTPServer(addr string, deps *Deps) *HTTPServer {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	setupRoutes(router, deps)

	return &HTTPServer{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: deps.Logger.With().Str("component", "http_server").Logger(),
	}
}

func setupRoutes(router *gin.Engine, deps *Deps) {
	if deps.HealthChecker != nil {
		router.GET("/healthz", gin.WrapF(deps.HealthChecker.LivenessHandler))
		router.GET("/readyz", gin.WrapF(deps.HealthChecker.ReadinessHandler))
	}
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	{
		v1.POST("/commands/:type", SubmitCommand(deps.Submitter))

		v1.GET("/status", GetStatus(deps.QueryService))
		v1.GET("/domain-separator", GetDomainSeparator(deps.DomainSeparator))

		accounts := v1.Group("/accounts")
		{
			accounts.GET("/:address/balance", GetBalance(deps.QueryService))
			accounts.GET("/:address/nonce", GetNonce(deps.QueryService))
			accounts.GET("/:address/roles", GetRolesOf(deps.QueryService))
			accounts.GET("/:address/history", GetTransferHistory(deps.QueryService))
			accounts.GET("/:address/blocked", GetBlocked(deps.QueryService))
		}

		v1.GET("/allowances/:owner/:spender", GetAllowance(deps.QueryService))
		v1.GET("/blocklist", GetBlocklist(deps.QueryService))
		v1.GET("/roles/:role/holders", GetRoleHolders(deps.QueryService))

		admin := v1.Group("/admin")
		{
			admin.GET("/integrity", VerifyIntegrity(deps.QueryService))
		}
	}
}

// Start runs the server until ctx is cancelled (blocking).
func (s *HTTPServer) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.logger.Info().Msg("HTTP server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("HTTP server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
