// Package app wires the authorization pipeline's collaborators together
// from loaded configuration and starts the HTTP server. It is the single
// place a Redis client, the policy engine backend, and every C1-C10
// component are constructed and handed to pipeline.New.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/byteness/sentinel-authz/audit"
	"github.com/byteness/sentinel-authz/entitlement"
	"github.com/byteness/sentinel-authz/internal/config"
	"github.com/byteness/sentinel-authz/logging"
	"github.com/byteness/sentinel-authz/pipeline"
	"github.com/byteness/sentinel-authz/pipeline/httpglue"
	"github.com/byteness/sentinel-authz/policy"
	"github.com/byteness/sentinel-authz/ratelimit"
	"github.com/byteness/sentinel-authz/replay"
	"github.com/byteness/sentinel-authz/risk"
	"github.com/byteness/sentinel-authz/session"
	"github.com/byteness/sentinel-authz/telemetry"
)

// Run connects to Redis, assembles the pipeline, and serves HTTP until ctx
// is canceled.
func Run(ctx context.Context, cfg *config.Config) error {
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("starting sentineld", "listen", cfg.ListenAddr(), "policyMode", cfg.PolicyMode)

	rdb, err := newRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error("closing redis client", "error", err)
		}
	}()

	auditLog, closeAudit, err := newAuditLog(cfg, rdb)
	if err != nil {
		return fmt.Errorf("building audit log: %w", err)
	}
	defer closeAudit()

	sessions := session.NewRedisStore(rdb, cfg.SessionTTL, auditLog)
	observed := risk.NewRedisObservedStore(rdb)
	limiter := ratelimit.NewRedisLimiter(rdb)
	entitlements := entitlement.NewRedisStore(rdb)
	entitlementSvc := entitlement.NewService(entitlements, sessions, auditLog)
	_ = entitlementSvc // exposed for an administrative API the HTTP surface below doesn't mount yet

	riskEngine := risk.NewEngine(cfg.RiskWeight, cfg.RiskThresholdMedium, cfg.RiskThresholdHigh, cfg.RiskThresholdCritical)
	riskService := risk.NewService(riskEngine, sessions, auditLog)

	policyClient, closePolicy, err := newPolicyClient(ctx, cfg, rdb)
	if err != nil {
		return fmt.Errorf("building policy client: %w", err)
	}
	defer closePolicy()

	reg := prometheus.NewRegistry()
	reg.MustRegister(telemetry.All()...)

	p := pipeline.New(pipeline.Deps{
		Sessions:     sessions,
		Observed:     observed,
		RiskService:  riskService,
		Limiter:      limiter,
		Entitlements: entitlements,
		Tenants:      pipeline.NewStaticTenantLookup(nil, pipeline.TenantInfo{Plan: "free"}),
		Policy:       policyClient,
		Audit:        auditLog,
	})

	var middleware func(http.Handler) http.Handler
	if cfg.RequireAntiReplay {
		checker := replay.NewChecker(replay.NewRedisStore(rdb), cfg.ReplayWindow)
		middleware = httpglue.MiddlewareWithReplay(p, checker)
		logger.Info("anti-replay guard enabled", "window", cfg.ReplayWindow)
	} else {
		middleware = httpglue.Middleware(p)
	}

	router := chi.NewRouter()
	router.Handle(cfg.MetricsPath, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	router.Group(func(r chi.Router) {
		r.Use(middleware)
		r.Handle("/*", applicationHandler())
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("serving http: %w", err)
	}
}

// applicationHandler stands in for the resource handlers a deployment
// mounts behind the pipeline. It returns 204 so an operator can verify
// end-to-end wiring (session, risk, policy, audit) with a single request
// before plugging in real application routes.
func applicationHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, ok := httpglue.RequestFromContext(r.Context())
		if !ok {
			http.Error(w, "internal error: pipeline request missing from context", http.StatusInternalServerError)
			return
		}
		w.Header().Set("X-Subject-Id", req.Session.SubjectID)
		w.WriteHeader(http.StatusNoContent)
	})
}

// newAuditLog builds the hash-chained audit log over either stdout (the
// "-" sentinel, matching SENTINEL_AUDIT_LOG_PATH's teacher-derived
// convention) or a shared Redis list. The returned closer drains the
// durable queue's dead-letter entries back to the store one last time
// before the process exits, best-effort.
func newAuditLog(cfg *config.Config, rdb *redis.Client) (*audit.Log, func(), error) {
	var store audit.Store
	if cfg.AuditLogPath == "-" {
		store = audit.NewLogStore(logging.NewJSONLogger(os.Stdout))
	} else {
		store = audit.NewRedisStore(rdb, "audit:"+cfg.AuditLogPath)
	}

	queue := audit.NewDurableQueue(store, cfg.AuditDLQSize)

	var (
		log *audit.Log
		err error
	)
	if cfg.AuditHMACKey != "" {
		log, err = audit.NewSignedLog("", []byte(cfg.AuditHMACKey), queue)
		if err != nil {
			return nil, nil, fmt.Errorf("building signed audit chain: %w", err)
		}
	} else {
		log = audit.NewLog("", queue)
	}

	closer := func() {
		queue.Close()
		if n := queue.Replay(context.Background()); n > 0 {
			slog.Info("replayed dead-lettered audit records at shutdown", "count", n)
		}
	}
	return log, closer, nil
}

// newPolicyClient selects the policy engine backend per cfg.PolicyMode and
// wraps it in the configured decision-cache layer (C6).
func newPolicyClient(ctx context.Context, cfg *config.Config, rdb *redis.Client) (policy.Client, func(), error) {
	var (
		backend policy.Client
		closer  = func() {}
	)

	switch cfg.PolicyMode {
	case "embedded":
		embedded, err := policy.NewEmbeddedClient(ctx, cfg.PolicyWasmPath)
		if err != nil {
			return nil, nil, fmt.Errorf("loading embedded policy module: %w", err)
		}
		backend = embedded
		closer = func() {
			if err := embedded.Close(context.Background()); err != nil {
				slog.Error("closing embedded policy module", "error", err)
			}
		}
	case "remote":
		backend = policy.NewRemoteClient(cfg.PolicyURL, cfg.PolicyTimeout)
	default:
		return nil, nil, fmt.Errorf("unknown policy mode %q", cfg.PolicyMode)
	}

	if cfg.DecisionCacheMode == "redis" {
		return policy.NewRedisDecisionCache(rdb, backend, cfg.DecisionCacheTTL), closer, nil
	}
	return policy.NewCachedClient(backend, cfg.DecisionCacheTTL), closer, nil
}

func newRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return client, nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
