package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/august4056/parallel/pkg/adapters/supabase"
	"github.com/august4056/parallel/pkg/audit"
	"github.com/august4056/parallel/pkg/auth"
	"github.com/august4056/parallel/pkg/config"
	"github.com/august4056/parallel/pkg/grader"
	"github.com/august4056/parallel/pkg/hardening"
	"github.com/august4056/parallel/pkg/httpx"
	"github.com/august4056/parallel/pkg/logging"
	"github.com/august4056/parallel/pkg/metrics"
	"github.com/august4056/parallel/pkg/models"
	"github.com/august4056/parallel/pkg/ratelimit"
	"github.com/august4056/parallel/pkg/store"
	"github.com/august4056/parallel/pkg/stream"
	"github.com/august4056/parallel/pkg/telemetry"
)

// courseStore is the row store behind the gateway. *supabase.Client is the
// production implementation.
type courseStore interface {
	ListAssignments(ctx context.Context) ([]models.Assignment, error)
	InsertAssignment(ctx context.Context, in supabase.AssignmentInsert) (models.Assignment, error)
	ListSubmissions(ctx context.Context, assignmentID, userID string) ([]models.Submission, error)
	InsertSubmission(ctx context.Context, in supabase.SubmissionInsert) (models.Submission, error)
	FetchGrade(ctx context.Context, submissionID string) (*models.Grade, error)
}

type Server struct {
	Log      zerolog.Logger
	Verifier *auth.Verifier
	Store    courseStore
	Grader   *grader.Dispatcher
	Metrics  *metrics.Registry
	Events   *stream.Hub
	Audit    *audit.Recorder
	Limiter  ratelimit.Limiter

	RateLimitPerMinute int
	MaxBodyBytes       int64
	CORSAllowedOrigins string
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logging.New("error", "gateway", os.Stderr)
		fallback.Fatal().Err(err).Msg("config load failed")
	}
	log := logging.New(cfg.LogLevel, "gateway", os.Stdout)
	if err := run(context.Background(), cfg, log); err != nil {
		log.Fatal().Err(err).Msg("gateway failed")
	}
}

func run(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	if err := hardening.ValidateProduction(cfg.HardeningOptions()); err != nil {
		return err
	}

	shutdownTelemetry, err := telemetry.Init(ctx, "gateway")
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTelemetry(context.Background()) }()

	storeClient, err := supabase.New(cfg.SupabaseURL, cfg.SupabaseServiceKey)
	if err != nil {
		return err
	}
	storeClient.HTTP = telemetry.InstrumentClient(storeClient.HTTP)

	verifier := auth.NewVerifier(auth.Config{
		Mode:   cfg.AuthMode,
		Secret: cfg.SupabaseJWTSecret,
		Issuer: cfg.Issuer(),
		APIKey: cfg.SupabaseAnonKey,
	})

	reg := metrics.NewRegistry()

	var limiter ratelimit.Limiter
	if cfg.RateLimitPerMinute > 0 {
		if cfg.RedisAddr != "" {
			redisClient, err := store.NewRedis(ctx, cfg.RedisOptions())
			if err != nil {
				log.Warn().Err(err).Msg("redis unavailable, using in-memory rate limits")
				limiter = ratelimit.NewInMemory(time.Minute)
			} else {
				defer redisClient.Close()
				limiter = ratelimit.NewRedis(redisClient, time.Minute)
			}
		} else {
			limiter = ratelimit.NewInMemory(time.Minute)
		}
	}

	dispatcher := grader.New(cfg.GraderDispatchURL, cfg.GraderDispatchToken, log, reg)
	dispatcher.HTTP = telemetry.InstrumentClient(dispatcher.HTTP)

	s := &Server{
		Log:      log,
		Verifier: verifier,
		Store:    storeClient,
		Grader:   dispatcher,
		Metrics:  reg,
		Events:   stream.NewHub(),
		Audit: &audit.Recorder{
			Log:      log,
			HashSalt: []byte(cfg.AuditHashSalt),
			Redact:   cfg.AuditRedact,
		},
		Limiter:            limiter,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		MaxBodyBytes:       cfg.MaxBodyBytes,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("gateway listening")
		errCh <- httpServer.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		grace := time.Duration(cfg.ShutdownGraceSec) * time.Second
		shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(httpx.CORSMiddleware(s.CORSAllowedOrigins))
	r.Use(httpx.SecurityHeadersMiddleware)
	r.Use(logging.RequestLogger(s.Log))
	r.Use(s.metricsMiddleware)
	r.Use(telemetry.HTTPMiddleware("gateway"))
	r.Use(s.limitRequestBodyMiddleware)

	r.Get("/health", s.handleHealth)

	r.Group(func(g chi.Router) {
		g.Use(auth.Optional(s.Verifier))
		g.Use(s.rateLimitMiddleware)
		g.Get("/assignments", s.listAssignments)
	})

	r.Group(func(g chi.Router) {
		g.Use(auth.Required(s.Verifier))
		g.Use(s.rateLimitMiddleware)
		g.Post("/assignments", s.withRoles(s.createAssignment, models.RoleInstructor))
		g.Post("/submissions", s.withRoles(s.createSubmission, models.RoleStudent))
		g.Get("/submissions", s.withRoles(s.listSubmissions, models.RoleStudent, models.RoleInstructor))
		g.Get("/grades/{submissionId}", s.withRoles(s.getGrade, models.RoleStudent, models.RoleInstructor))
		g.Get("/metrics", s.withRoles(s.Metrics.Handler(), models.RoleInstructor))
		g.Get("/metrics/prometheus", s.withRoles(s.Metrics.PrometheusHandler(), models.RoleInstructor))
		g.Get("/events", s.withRoles(s.streamEvents, models.RoleInstructor))
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) withRoles(h http.HandlerFunc, roles ...models.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := auth.PrincipalFromContext(r.Context())
		if !ok {
			httpx.WriteErr(w, httpx.AuthenticationErr("Missing bearer token"))
			return
		}
		for _, role := range roles {
			if principal.Role == role {
				h(w, r)
				return
			}
		}
		s.record(audit.Entry{
			Event:    audit.EventAuthDenied,
			Actor:    principal.Subject,
			Role:     principal.Role,
			ClientIP: httpx.ClientIP(r),
			Detail:   map[string]interface{}{"path": r.URL.Path},
		})
		httpx.WriteErr(w, httpx.AuthorizationErr("Insufficient role"))
	}
}

func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := logging.NewStatusRecorder(w)
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)
		path := r.Method + " " + r.URL.Path
		s.Metrics.Observe(path, rec.Status, elapsed)
		s.Metrics.ObserveLatency(path, elapsed)
		if rec.Status == http.StatusUnauthorized {
			s.Metrics.Inc(metrics.AuthFailures)
		}
	})
}

func (s *Server) limitRequestBodyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.MaxBodyBytes > 0 && r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, s.MaxBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimitMiddleware runs after token verification. Authenticated
// callers are budgeted per subject, anonymous ones per client address.
// The health endpoint sits outside the limited groups.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Limiter == nil || s.RateLimitPerMinute <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		var subject string
		if principal, ok := auth.PrincipalFromContext(r.Context()); ok {
			subject = principal.Subject
		}
		decision := s.Limiter.Allow(ratelimit.KeyFor(subject, httpx.ClientIP(r)), s.RateLimitPerMinute)
		if !decision.Allowed {
			s.Metrics.Inc(metrics.RateLimitedRequests)
			retryAfter := int(time.Until(decision.ResetAt).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			httpx.Error(w, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) record(e audit.Entry) {
	if s.Audit != nil {
		s.Audit.Record(e)
	}
}

func (s *Server) publish(eventType string, data interface{}) {
	if s.Events != nil {
		s.Events.Publish(stream.NewEvent(eventType, data))
	}
}
