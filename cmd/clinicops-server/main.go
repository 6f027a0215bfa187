package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clinicops/clinicops/internal/config"
	"github.com/clinicops/clinicops/internal/domain/clinic"
	"github.com/clinicops/clinicops/internal/domain/equipment"
	"github.com/clinicops/clinicops/internal/domain/event"
	"github.com/clinicops/clinicops/internal/domain/pipeline"
	"github.com/clinicops/clinicops/internal/domain/staff"
	"github.com/clinicops/clinicops/internal/platform/auth"
	"github.com/clinicops/clinicops/internal/platform/db"
	"github.com/clinicops/clinicops/internal/platform/metrics"
	"github.com/clinicops/clinicops/internal/platform/middleware"
	"github.com/clinicops/clinicops/internal/platform/notification"
	"github.com/clinicops/clinicops/internal/platform/validation"
	"github.com/clinicops/clinicops/internal/platform/webhook"
	"github.com/clinicops/clinicops/internal/platform/worker"
)

const (
	version         = "0.1.0"
	requestTimeout  = 30 * time.Second
	shutdownTimeout = 10 * time.Second
	exportPath      = "/api/v1/events/export"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "clinicops-server",
		Short: "Clinic operations API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

// withMigrator loads config, opens the pool and hands a migrator to fn.
func withMigrator(fn func(ctx context.Context, m *db.Migrator) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()

	m, err := db.NewMigrator(pool)
	if err != nil {
		return err
	}
	defer m.Close()
	return fn(ctx, m)
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(ctx context.Context, m *db.Migrator) error {
				count, err := m.Up(ctx)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Printf("Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(ctx context.Context, m *db.Migrator) error {
				statuses, err := m.Status(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
				fmt.Println("---------- ---------------------------------------- ---------- --------------------")
				for _, s := range statuses {
					status := "pending"
					appliedAt := ""
					if s.Applied {
						status = "applied"
						if s.AppliedAt != nil {
							appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
						}
					}
					fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(ctx context.Context, m *db.Migrator) error {
				v, err := m.Down(ctx)
				if err != nil {
					return err
				}
				if v == 0 {
					fmt.Println("Nothing to roll back.")
					return nil
				}
				fmt.Printf("Rolled back migration %d.\n", v)
				return nil
			})
		},
	})

	return cmd
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg != nil && cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// newRateLimiter uses Redis when REDIS_URL is set so limits hold across
// replicas. An unreachable Redis falls back to the in-memory limiter.
func newRateLimiter(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (middleware.Limiter, func()) {
	rlCfg := rateLimitConfig(cfg)
	if cfg.RedisURL == "" {
		return middleware.NewMemoryLimiter(rlCfg), func() {}
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Warn().Err(err).Msg("invalid REDIS_URL, using in-memory rate limiter")
		return middleware.NewMemoryLimiter(rlCfg), func() {}
	}
	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Warn().Err(err).Msg("redis unreachable, using in-memory rate limiter")
		rdb.Close()
		return middleware.NewMemoryLimiter(rlCfg), func() {}
	}
	logger.Info().Msg("rate limiting backed by redis")
	return middleware.NewRedisLimiter(rdb, rlCfg), func() { rdb.Close() }
}

func rateLimitConfig(cfg *config.Config) middleware.RateLimitConfig {
	rlCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rlCfg.RequestsPerSecond <= 0 || rlCfg.BurstSize <= 0 {
		rlCfg = middleware.DefaultRateLimitConfig()
	}
	return rlCfg
}

// newServer builds the echo instance with global middleware, public
// endpoints and the authenticated /api/v1 group.
func newServer(cfg *config.Config, logger zerolog.Logger, reg *metrics.Registry, limiter middleware.Limiter) (*echo.Echo, *echo.Group) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validation.New()

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	e.Use(echomw.BodyLimit("2M"))
	e.Use(reg.Middleware())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.RequestTimeout(requestTimeout, exportPath))

	jwtCfg := auth.JWTConfig{
		Issuer:     cfg.AuthIssuer,
		SigningKey: []byte(cfg.AuthSecret),
		Skipper:    auth.AuthSkipper,
	}
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware(jwtCfg))
	} else {
		e.Use(auth.JWTMiddleware(jwtCfg))
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/metrics", echo.WrapHandler(reg.Handler()))

	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.RateLimitWith(limiter, rateLimitConfig(cfg)))
	return e, apiV1
}

func newDispatcher(cfg *config.Config, pool *worker.Pool, reg *metrics.Registry, logger zerolog.Logger) (*notification.Dispatcher, error) {
	opts := []notification.Option{notification.WithMetrics(reg)}
	if len(cfg.WebhookURLs) > 0 {
		d, err := webhook.NewDeliverer(cfg.WebhookURLs, cfg.WebhookSecret)
		if err != nil {
			return nil, fmt.Errorf("configure webhooks: %w", err)
		}
		opts = append(opts, notification.WithWebhooks(d))
	}
	if cfg.SMTPEnabled() {
		opts = append(opts, notification.WithEmail(notification.NewSMTPSender(
			cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom)))
	}
	if cfg.TwilioEnabled() {
		opts = append(opts, notification.WithSMS(notification.NewTwilioSender(
			cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber)))
	}
	logger.Info().
		Int("webhooks", len(cfg.WebhookURLs)).
		Bool("email", cfg.SMTPEnabled()).
		Bool("sms", cfg.TwilioEnabled()).
		Msg("notification channels configured")
	return notification.NewDispatcher(pool, logger, opts...), nil
}

func registerDomains(api *echo.Group, pool *pgxpool.Pool, notifier event.Notifier, reg *metrics.Registry, logger zerolog.Logger) {
	clinicSvc := clinic.NewService(clinic.NewClinicRepo(pool), clinic.NewDepartmentRepo(pool))
	clinic.NewHandler(clinicSvc).RegisterRoutes(api)

	staffSvc := staff.NewService(staff.NewRepo(pool))
	staff.NewHandler(staffSvc).RegisterRoutes(api)

	equipmentSvc := equipment.NewService(
		equipment.NewEquipmentRepo(pool),
		equipment.NewDetailRepo(pool),
		equipment.NewParameterRepo(pool),
	)
	equipment.NewHandler(equipmentSvc).RegisterRoutes(api)

	eventSvc := event.NewService(event.NewStore(pool), notifier, reg, logger)
	event.NewHandler(eventSvc, staffSvc).RegisterRoutes(api)

	pipelineSvc := pipeline.NewService(pipeline.NewRepo(pool))
	pipeline.NewHandler(pipelineSvc).RegisterRoutes(api)
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	workers, err := worker.New(context.Background(), "notifications", cfg.WorkerPoolSize, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to start worker pool")
	}

	reg := metrics.New()
	dispatcher, err := newDispatcher(cfg, workers, reg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure notifications")
	}

	limiter, closeLimiter := newRateLimiter(ctx, cfg, logger)
	defer closeLimiter()

	e, apiV1 := newServer(cfg, logger, reg, limiter)
	migrator, err := db.NewMigrator(pool)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open migrator")
	}
	defer migrator.Close()
	e.GET("/health/db", db.HealthHandler(pool, migrator))
	registerDomains(apiV1, pool, dispatcher, reg, logger)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	// Lets in-flight deliveries finish, then cancels any still running.
	workers.Shutdown(shutdownTimeout)
	logger.Info().Msg("server stopped")
	return nil
}
