package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/carecircle/api/internal/config"
	"github.com/carecircle/api/internal/domain/binder"
	"github.com/carecircle/api/internal/domain/careshift"
	"github.com/carecircle/api/internal/domain/circle"
	"github.com/carecircle/api/internal/domain/discharge"
	"github.com/carecircle/api/internal/domain/handoff"
	"github.com/carecircle/api/internal/domain/task"
	"github.com/carecircle/api/internal/platform/audit"
	"github.com/carecircle/api/internal/platform/auth"
	"github.com/carecircle/api/internal/platform/db"
	"github.com/carecircle/api/internal/platform/entitlement"
	"github.com/carecircle/api/internal/platform/events"
	"github.com/carecircle/api/internal/platform/middleware"
	"github.com/carecircle/api/internal/platform/translate"
	"github.com/carecircle/api/migrations"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "carecircle-server",
		Short: "CareCircle API server",
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

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			return withMigrator(dir, func(ctx context.Context, m *db.Migrator, schema string) error {
				fmt.Fprintf(cmd.OutOrStdout(), "Running migrations on schema: %s\n", schema)
				count, err := m.Up(ctx, schema)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	}
	upCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			return withMigrator(dir, func(ctx context.Context, m *db.Migrator, schema string) error {
				statuses, err := m.Status(ctx, schema)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				printStatus(cmd.OutOrStdout(), schema, statuses)
				return nil
			})
		},
	}
	statusCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.AddCommand(statusCmd)

	return cmd
}

func migrationSource(dir string) fs.FS {
	if dir == "" {
		return migrations.FS
	}
	return os.DirFS(dir)
}

func withMigrator(dir string, fn func(ctx context.Context, m *db.Migrator, schema string) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if dir == "" {
		dir = cfg.MigrationsDir
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBSchema, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()

	return fn(ctx, db.NewMigrator(pool, migrationSource(dir)), cfg.DBSchema)
}

func printStatus(w io.Writer, schema string, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "Migration status for schema: %s\n", schema)
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func newLogger(env string, out io.Writer) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Logger()
	}
	return zerolog.New(out).With().Timestamp().Logger()
}

func newRedis(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

// buildEntitlements returns the checker for cfg.EntitlementMode. Remote
// lookups are cached in redis when a client is given.
func buildEntitlements(cfg *config.Config, rdb *redis.Client, logger zerolog.Logger) (entitlement.Checker, error) {
	switch cfg.EntitlementMode {
	case "static":
		return entitlement.Static{entitlement.FeatureDischargeWizard: true}, nil
	case "remote":
		var checker entitlement.Checker = entitlement.NewRemoteChecker(cfg.EntitlementURL, cfg.EntitlementAPIKey)
		if rdb != nil && cfg.EntitlementCacheTTL > 0 {
			checker = entitlement.NewCachedChecker(checker, rdb, cfg.EntitlementCacheTTL, logger)
		}
		return checker, nil
	}
	return nil, fmt.Errorf("unknown entitlement mode %q", cfg.EntitlementMode)
}

func authMiddleware(cfg *config.Config) echo.MiddlewareFunc {
	if cfg.IsDev() && cfg.AuthIssuer == "" && cfg.AuthSigningKey == "" {
		return auth.DevAuthMiddleware()
	}
	return auth.JWTMiddleware(auth.JWTConfig{
		Issuer:     cfg.AuthIssuer,
		Audience:   cfg.AuthAudience,
		JWKSURL:    cfg.AuthJWKSURL,
		SigningKey: []byte(cfg.AuthSigningKey),
	})
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Env, os.Stdout)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()

	// Database
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBSchema, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Str("schema", cfg.DBSchema).Msg("connected to database")

	var healthDeps []db.Dependency

	// Redis
	rdb, err := newRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	if rdb != nil {
		defer rdb.Close()
		healthDeps = append(healthDeps, db.Dependency{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}

	entitlements, err := buildEntitlements(cfg, rdb, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure entitlements")
	}

	// Events
	var publisher events.Publisher = events.NopPublisher{}
	if cfg.MQTTBroker != "" {
		mqttPub, err := events.NewMQTTPublisher(events.MQTTConfig{
			Broker:   cfg.MQTTBroker,
			ClientID: cfg.MQTTClientID,
			Username: cfg.MQTTUsername,
			Password: cfg.MQTTPassword,
		}, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to mqtt broker")
		}
		defer mqttPub.Close()
		publisher = mqttPub
		healthDeps = append(healthDeps, db.Dependency{Name: "mqtt", Check: mqttPub.Check})
	}

	// Translation is optional; without it the translations endpoint answers 503.
	var translator translate.Translator
	if cfg.GenAIAPIKey != "" {
		gt, err := translate.NewGenAITranslator(ctx, cfg.GenAIAPIKey, cfg.GenAIModel)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create translator")
		}
		translator = gt
	}

	auditSink := audit.MultiSink{audit.NewPGSink(pool), audit.NewLogSink(logger)}
	tx := db.Transactor(pool)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader, auth.DevActorHeader},
	}))
	e.Use(echomw.BodyLimit("1M"))
	e.Use(middleware.Sanitize(logger))

	e.GET("/health", db.HealthHandler(pool, healthDeps...))
	e.GET("/version", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"version": version})
	})

	apiV1 := e.Group("/api/v1",
		authMiddleware(cfg),
		auth.RequireActor(),
		middleware.RequestTimeout(cfg.RequestTimeout, cfg.GenerateTimeout, "/generate"),
		middleware.Audit(logger, auditSink),
	)

	// Circles
	circleSvc := circle.NewService(circle.NewMemberRepoPG(pool))
	circle.NewHandler(circleSvc).RegisterRoutes(apiV1)

	// Artifacts
	taskSvc := task.NewService(task.NewTaskRepoPG(pool))
	task.NewHandler(taskSvc, circleSvc).RegisterRoutes(apiV1)

	binderSvc := binder.NewService(binder.NewItemRepoPG(pool))
	binder.NewHandler(binderSvc, circleSvc).RegisterRoutes(apiV1)

	shiftSvc := careshift.NewService(careshift.NewShiftRepoPG(pool))
	careshift.NewHandler(shiftSvc, circleSvc).RegisterRoutes(apiV1)

	handoffSvc := handoff.NewService(handoff.NewHandoffRepoPG(pool), tx, translator, publisher, logger)
	handoff.NewHandler(handoffSvc, circleSvc).RegisterRoutes(apiV1)

	// Discharge wizard
	records := discharge.NewRecordRepoPG(pool)
	checklist := discharge.NewChecklistRepoPG(pool)
	templates, err := discharge.DefaultTemplates()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load checklist templates")
	}
	dischargeSvc := discharge.NewService(records, checklist, templates, tx)
	orchestrator := discharge.NewOrchestrator(discharge.Deps{
		Records:      records,
		Checklist:    checklist,
		Tasks:        taskSvc,
		Binder:       binderSvc,
		Shifts:       shiftSvc,
		Handoffs:     handoffSvc,
		Members:      circleSvc,
		Entitlements: entitlements,
		Audit:        auditSink,
		Events:       publisher,
		Tx:           tx,
		Logger:       logger,
		Concurrency:  cfg.GeneratorConcurrency,
	})
	discharge.NewHandler(dischargeSvc, orchestrator, circleSvc).
		RegisterRoutes(apiV1, middleware.RateLimit(middleware.GenerateRateLimitConfig()))

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("version", version).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
