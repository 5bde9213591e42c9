package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/health-assistant/health-assistant/internal/config"
	"github.com/health-assistant/health-assistant/internal/domain/aichat"
	"github.com/health-assistant/health-assistant/internal/domain/article"
	"github.com/health-assistant/health-assistant/internal/domain/drug"
	"github.com/health-assistant/health-assistant/internal/domain/identity"
	"github.com/health-assistant/health-assistant/internal/domain/medication"
	"github.com/health-assistant/health-assistant/internal/platform/auth"
	"github.com/health-assistant/health-assistant/internal/platform/captcha"
	"github.com/health-assistant/health-assistant/internal/platform/db"
	"github.com/health-assistant/health-assistant/internal/platform/middleware"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "health-server",
		Short: "Medication reminder and health information API server",
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

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

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

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
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
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.RequestTimeout(30 * time.Second))

	// Platform services
	tokens := auth.NewTokenManager(cfg.JWTSecret, time.Duration(cfg.JWTTTLHours)*time.Hour)
	captchas := captcha.New(cfg.CaptchaWidth, cfg.CaptchaHeight, cfg.CaptchaLength,
		time.Duration(cfg.CaptchaTTLSecs)*time.Second)

	// Repositories
	userRepo := identity.NewUserRepoPG(pool)
	planRepo := medication.NewPlanRepoPG(pool)
	recordRepo := medication.NewRecordRepoPG(pool)
	drugRepo := drug.NewRepoPG(pool)
	articleRepo := article.NewRepoPG(pool)
	sessionRepo := aichat.NewSessionRepoPG(pool)
	messageRepo := aichat.NewMessageRepoPG(pool)

	// Services
	inTx := medication.TxRunner(func(ctx context.Context, fn func(ctx context.Context) error) error {
		return db.WithTx(ctx, pool, fn)
	})
	identitySvc := identity.NewService(userRepo, tokens, captchas)
	medicationSvc := medication.NewService(planRepo, recordRepo, inTx)
	drugSvc := drug.NewService(drugRepo)
	articleSvc := article.NewService(articleRepo)
	difyClient := aichat.NewDifyClient(cfg.DifyBaseURL, cfg.DifyAPIKey)
	aichatSvc := aichat.NewService(sessionRepo, messageRepo, difyClient)

	// API groups: public routes carry no token, everything else goes
	// through the JWT middleware.
	apiV1 := e.Group("/api/v1")

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}

	// The limiter sits after auth on the protected group so it keys by
	// user id; public endpoints are keyed by client IP.
	public := apiV1.Group("", middleware.RateLimit(rateLimitCfg))
	protected := apiV1.Group("", auth.Middleware(tokens), middleware.RateLimit(rateLimitCfg))

	// Handlers
	identityHandler := identity.NewHandler(identitySvc)
	identityHandler.RegisterPublicRoutes(public)
	identityHandler.RegisterRoutes(protected)

	medication.NewHandler(medicationSvc).RegisterRoutes(protected)
	drug.NewHandler(drugSvc).RegisterRoutes(protected)
	article.NewHandler(articleSvc).RegisterRoutes(protected)

	chatQuota := middleware.NewChatQuota()
	quotaCtx, quotaCancel := context.WithCancel(ctx)
	defer quotaCancel()
	go chatQuota.StartCleanup(quotaCtx, time.Hour)
	aichat.NewHandler(aichatSvc).RegisterRoutes(protected, middleware.ChatQuotaMiddleware(chatQuota))

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
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
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
