package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"leavehub/internal/domain/audit"
	"leavehub/internal/domain/notify"
	"leavehub/internal/domain/rollover"
	"leavehub/internal/platform/config"
	"leavehub/internal/platform/db"
	"leavehub/internal/platform/email"
	"leavehub/internal/platform/jobs"
	"leavehub/internal/platform/metrics"
	audithandler "leavehub/internal/transport/http/handlers/audit"
	rolloverhandler "leavehub/internal/transport/http/handlers/rollover"
	"leavehub/internal/transport/http/middleware"
)

// App holds the wired application. Tests construct one with New and drive
// requests through Router without binding a listener.
type App struct {
	Config config.Config
	DB     *db.Pool
	Router http.Handler
	Jobs   *jobs.Service

	stopJobs context.CancelFunc
}

// New connects to the database, runs migrations and seeding when configured,
// wires services and handlers, and starts the background scheduler. The
// caller owns the returned App and must Close it.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, cfg.MigrationsDir); err != nil {
			pool.Close()
			return nil, err
		}
	}

	if cfg.RunSeed {
		if err := db.Seed(ctx, pool, cfg); err != nil {
			pool.Close()
			return nil, err
		}
	}

	rolloverStore := rollover.NewStore(pool)
	notifier := notify.New(email.New(cfg), cfg.EmailFrom)
	rolloverSvc := rollover.NewService(rolloverStore, notifier)
	auditSvc := audit.New(pool)
	idemStore := middleware.NewIdempotencyStore(pool)
	jobsSvc := jobs.New(pool, cfg, rolloverSvc)

	// The scheduler outlives the startup context; Close cancels it.
	jobsCtx, stopJobs := context.WithCancel(context.Background())
	jobsSvc.Start(jobsCtx)

	collector := metrics.New()

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.Environment == "production"))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	if cfg.MetricsEnabled {
		router.Use(middleware.Metrics(collector))
	}
	router.Use(middleware.Auth(cfg.JWTSecret))
	router.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute))
	router.Use(middleware.SensitiveMutationRateLimit(cfg.RateLimitPerMinute, time.Minute))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if cfg.MetricsEnabled {
		router.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			if err := json.NewEncoder(w).Encode(collector.Snapshot()); err != nil {
				log.Printf("metrics encode failed: %v", err)
			}
		})
	}

	router.Route("/api/v1", func(r chi.Router) {
		rolloverHandler := rolloverhandler.NewHandler(rolloverSvc, jobsSvc, auditSvc, idemStore, cfg.RolloverNotify)
		rolloverHandler.RegisterRoutes(r)

		auditHandler := audithandler.NewHandler(auditSvc)
		auditHandler.RegisterRoutes(r)
	})

	return &App{
		Config:   cfg,
		DB:       pool,
		Router:   router,
		Jobs:     jobsSvc,
		stopJobs: stopJobs,
	}, nil
}

// Close stops the scheduler and releases the database pool.
func (a *App) Close() {
	if a.stopJobs != nil {
		a.stopJobs()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}

func Run() {
	cfg := config.Load()

	app, err := New(context.Background(), cfg)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}
	defer app.Close()

	log.Printf("leavehub server listening on %s", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, app.Router); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
