package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"gatehouse/api/internal/gate"
	"gatehouse/api/internal/httpapi"
	"gatehouse/api/internal/middleware"
	"gatehouse/api/internal/models"
	"gatehouse/api/internal/repos"
	"gatehouse/shared/authx"
	"gatehouse/shared/cachex"
	"gatehouse/shared/clients/registry"
	"gatehouse/shared/config"
	"gatehouse/shared/dbx"
	"gatehouse/shared/httpx"
	"gatehouse/shared/lockx"
	"gatehouse/shared/logx"
	"gatehouse/shared/metricsx"
	"gatehouse/shared/observability"
	"gatehouse/shared/sitex"
)

type statusResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Env     string `json:"env,omitempty"`
	Version string `json:"version,omitempty"`
}

// outboxPublisher adapts the outbox repository to the gate service's
// publisher contract.
type outboxPublisher struct {
	pool *pgxpool.Pool
	repo *repos.OutboxRepo
}

func (p outboxPublisher) Emit(ctx context.Context, event models.OutboxEvent) error {
	_, err := p.repo.Insert(ctx, p.pool, event)
	return err
}

func main() {
	cfg, readyProblems := config.Load("api", 8080)
	version := strings.TrimSpace(os.Getenv("VERSION"))
	logger := logx.New(cfg.ServiceName, cfg.Env, version, cfg.LogLevel)

	if cfg.DatabaseURL == "" {
		readyProblems = append(readyProblems, config.Problem{Field: "DATABASE_URL", Message: "DATABASE_URL is required"})
	}

	var dbPool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		var err error
		dbPool, err = dbx.NewPool(cfg)
		if err != nil {
			readyProblems = append(readyProblems, config.Problem{Field: "DATABASE_URL", Message: "failed to connect to database"})
			logger.Error(context.Background(), "db_init_failed", "database init failed",
				slog.String("error_code", "FAILED_PRECONDITION"),
				slog.String("error", err.Error()),
			)
		}
	}

	shutdownTracer := func(context.Context) error { return nil }
	if cfg.OtelEnabled {
		var err error
		shutdownTracer, err = observability.InitTracer(context.Background(), observability.TracerConfig{
			ServiceName: cfg.ServiceName,
			Env:         cfg.Env,
			Endpoint:    cfg.OtelEndpoint,
			Insecure:    cfg.OtelInsecure,
			SampleRatio: cfg.OtelSampleRatio,
		})
		if err != nil {
			logger.Warn(context.Background(), "otel_init_failed", "tracer init failed", slog.String("error", err.Error()))
			shutdownTracer = func(context.Context) error { return nil }
		}
	}

	sitesRepo := repos.NewSitesRepo(dbPool)
	usersRepo := repos.NewUsersRepo(dbPool)
	auditRepo := repos.NewAuditRepo(dbPool)
	badgesRepo := repos.NewBadgesRepo(dbPool)
	admissionsRepo := repos.NewAdmissionsRepo(dbPool)
	alertsRepo := repos.NewAlertsRepo(dbPool)
	profilesRepo := repos.NewProfilesRepo(dbPool)
	restrictionsRepo := repos.NewRestrictionsRepo(dbPool)
	outboxRepo := repos.NewOutboxRepo(dbPool)

	var locks lockx.Keyed
	var cache *cachex.Client
	if cfg.RedisAddr != "" {
		var err error
		cache, err = cachex.New(cfg)
		if err != nil {
			readyProblems = append(readyProblems, config.Problem{Field: "REDIS_ADDR", Message: "failed to initialize redis client"})
		} else {
			locks = lockx.NewRedisKeyed(cache.Client(), time.Duration(cfg.LockTTLSeconds)*time.Second)
		}
	}

	var registryClient *registry.Client
	if cfg.RegistryEnabled && cfg.RegistryAPIURL != "" {
		var err error
		registryClient, err = registry.New(cfg)
		if err != nil {
			readyProblems = append(readyProblems, config.Problem{Field: "REGISTRY_API_URL", Message: "failed to initialize registry client"})
		}
	}

	gateSvc := gate.NewService(gate.Deps{
		Admissions:   admissionsRepo,
		Badges:       badgesRepo,
		Alerts:       alertsRepo,
		Profiles:     profilesRepo,
		Restrictions: restrictionsRepo,
		Locks:        locks,
		Outbox:       outboxPublisher{pool: dbPool, repo: outboxRepo},
		Logger:       logger,
		Thresholds: gate.PermanenceThresholds{
			EarlyWarnMinutes: cfg.PermanenceWarnMin,
			HardMaxMinutes:   cfg.PermanenceMaxMin,
		},
	})

	var verifier *authx.JWTVerifier
	if cfg.OIDCIssuer != "" && cfg.OIDCAudience != "" {
		var err error
		verifier, err = authx.NewJWTVerifier(cfg.OIDCIssuer, cfg.OIDCAudience, cfg.OIDCJWKSURL, cfg.JWKSTTLSeconds, cfg.JWTClockSkewSec)
		if err != nil {
			readyProblems = append(readyProblems, config.Problem{Field: "OIDC_ISSUER", Message: "failed to initialize JWT verifier"})
		}
	}

	metricsx.Register()

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metricsx.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, statusResponse{
			Status:  "ok",
			Service: cfg.ServiceName,
			Env:     cfg.Env,
			Version: version,
		})
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if len(readyProblems) > 0 {
			httpx.WriteError(
				w,
				r,
				http.StatusServiceUnavailable,
				"FAILED_PRECONDITION",
				"service not ready: invalid configuration",
				map[string]any{"problems": readyProblems},
			)
			return
		}
		if err := dbx.Ping(r.Context(), dbPool); err != nil {
			httpx.WriteError(
				w,
				r,
				http.StatusServiceUnavailable,
				"FAILED_PRECONDITION",
				"service not ready: database unavailable",
				map[string]any{"problem": "db_ping_failed"},
			)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, statusResponse{
			Status:  "ready",
			Service: cfg.ServiceName,
			Env:     cfg.Env,
			Version: version,
		})
	})

	mux.HandleFunc("GET /api/v1/me", func(w http.ResponseWriter, r *http.Request) {
		auth, ok := authx.FromContext(r.Context())
		if !ok {
			httpx.WriteError(w, r, http.StatusUnauthorized, "UNAUTHENTICATED", "missing auth context", nil)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"subject": auth.Subject,
			"email":   auth.Email,
			"name":    auth.Name,
			"roles":   auth.Roles,
			"claims":  auth.Claims,
		})
	})
	mux.HandleFunc("GET /api/v1/sites/current", func(w http.ResponseWriter, r *http.Request) {
		site, ok := sitex.FromContext(r.Context())
		if !ok || site.ID == "" {
			httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "missing site", nil)
			return
		}
		siteID, err := uuid.Parse(site.ID)
		if err != nil {
			httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid site id", nil)
			return
		}
		record, err := sitesRepo.GetSiteByID(r.Context(), siteID)
		if err != nil {
			httpx.WriteError(w, r, http.StatusNotFound, "NOT_FOUND", "site not found", nil)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"site_id": record.SiteID,
			"slug":    record.Slug,
			"name":    record.Name,
		})
	})

	httpapi.Handlers{
		Gate:         gateSvc,
		Badges:       badgesRepo,
		Restrictions: restrictionsRepo,
		Profiles:     profilesRepo,
		Users:        usersRepo,
		Registry:     registryClient,
		Cache:        cache,
		Outbox:       outboxPublisher{pool: dbPool, repo: outboxRepo},
		Logger:       logger,
	}.Register(mux)

	notFound := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteError(w, r, http.StatusNotFound, "NOT_FOUND", "route not found", nil)
	})

	skipInfra := func(r *http.Request) bool {
		return r.URL.Path == "/healthz" || r.URL.Path == "/readyz" || r.URL.Path == "/metrics"
	}

	handler := httpx.WrapServeMux(mux, notFound)
	handler = middleware.DBRequiredMiddleware{
		Pool: dbPool,
		Skip: skipInfra,
	}.Wrap(handler)
	handler = middleware.AuditMiddleware{
		Enabled: cfg.AuditEnabled,
		Repo:    auditRepo,
		Logger:  logger,
		Skip:    skipInfra,
	}.Wrap(handler)
	handler = middleware.SiteMiddleware{
		Sites: sitesRepo,
		Skip:  skipInfra,
	}.Wrap(handler)
	handler = middleware.AuthMiddleware{
		Verifier: verifier,
		Skip:     skipInfra,
	}.Wrap(handler)
	var corsOrigins []string
	if v := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS")); v != "" {
		corsOrigins = strings.Split(v, ",")
	}
	handler = middleware.CORSMiddleware{
		AllowedOrigins: corsOrigins,
		MaxAge:         10 * time.Minute,
	}.Wrap(handler)
	handler = middleware.RateLimitMiddleware{
		Limiter: middleware.NewIPRateLimiter(20, 40, 2*time.Minute),
		Skip:    skipInfra,
	}.Wrap(handler)
	handler = metricsx.Instrument(handler)
	handler = httpx.WithTimeout(cfg.RequestTimeout, handler)
	handler = httpx.WithRequestID(handler)
	handler = httpx.WithRecover(logger, handler)
	handler = httpx.WithRequestLog(logger, httpx.RequestLogOptions{SkipPaths: map[string]bool{"/healthz": true, "/metrics": true}}, handler)

	server := &http.Server{
		Addr:              net.JoinHostPort("", strconv.Itoa(cfg.HTTPPort)),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(context.Background(), "service_start", "starting service",
			slog.String("addr", server.Addr),
			slog.Int("http_port", cfg.HTTPPort),
			slog.String("log_level", cfg.LogLevel),
			slog.Int("request_timeout_ms", cfg.RequestTimeoutMS),
		)
		errCh <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info(context.Background(), "shutdown_signal", "received signal", slog.String("signal", sig.String()))
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), "server_failed", "server failed",
				slog.String("error_code", "INTERNAL_ERROR"),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(context.Background(), "shutdown_failed", "shutdown failed",
			slog.String("error_code", "INTERNAL_ERROR"),
			slog.String("error", err.Error()),
		)
	}
	if cache != nil {
		_ = cache.Close()
	}
	if dbPool != nil {
		dbPool.Close()
	}
	if err := shutdownTracer(context.Background()); err != nil {
		logger.Warn(context.Background(), "otel_shutdown_failed", "tracer shutdown failed", slog.String("error", err.Error()))
	}
	logger.Info(context.Background(), "service_stop", "service stopped")
}
