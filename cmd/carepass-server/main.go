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

	"github.com/carepass/carepass/internal/config"
	"github.com/carepass/carepass/internal/domain/account"
	"github.com/carepass/carepass/internal/domain/patient"
	"github.com/carepass/carepass/internal/domain/policy"
	"github.com/carepass/carepass/internal/domain/record"
	"github.com/carepass/carepass/internal/platform/auth"
	"github.com/carepass/carepass/internal/platform/db"
	"github.com/carepass/carepass/internal/platform/middleware"
	"github.com/carepass/carepass/internal/platform/mirror"
	"github.com/carepass/carepass/internal/platform/phi"
	"github.com/carepass/carepass/internal/platform/qr"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "carepass-server",
		Short: "Health identity and insurance provisioning API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())

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
			sdb, err := db.Open(ctx, cfg.DatabasePath)
			if err != nil {
				return err
			}
			defer sdb.Close()

			count, err := db.NewMigrator(sdb, dir).Up(ctx)
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
			sdb, err := db.Open(ctx, cfg.DatabasePath)
			if err != nil {
				return err
			}
			defer sdb.Close()

			statuses, err := db.NewMigrator(sdb, dir).Status(ctx)
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

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the default admin, hospital, and insurer accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			sdb, err := db.Open(ctx, cfg.DatabasePath)
			if err != nil {
				return err
			}
			defer sdb.Close()

			tokens := auth.NewTokenManager([]byte(cfg.SessionSecret), cfg.SessionTTL)
			svc := account.NewService(account.NewRepo(sdb), tokens, logger)
			return svc.Seed(ctx)
		},
	}
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
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	sessionSecret := cfg.SessionSecret
	if sessionSecret == "" {
		sessionSecret = "dev-session-secret"
		logger.Warn().Msg("SESSION_SECRET not set; using a development default")
	}

	// Database
	ctx := context.Background()
	sdb, err := db.Open(ctx, cfg.DatabasePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open database")
	}
	defer sdb.Close()

	applied, err := db.NewMigrator(sdb, "./migrations").Up(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("migrations failed")
	}
	if applied > 0 {
		logger.Info().Int("applied", applied).Msg("migrations applied")
	}
	logger.Info().Str("path", cfg.DatabasePath).Msg("database ready")

	// Identity-token cipher
	key, err := phi.LoadKey(cfg.EncryptionKey, cfg.KeyFile)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load encryption key")
	}
	cipher, err := phi.NewEncryptor(key)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create token cipher")
	}

	// QR image store
	images, err := qr.NewFSStore(cfg.QRDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create qr store")
	}

	// Supabase mirror (optional)
	var notifier mirror.Notifier = mirror.Noop{}
	if cfg.SupabaseURL != "" && cfg.SupabaseKey != "" {
		notifier = mirror.NewClient(cfg.SupabaseURL, cfg.SupabaseKey, logger)
		logger.Info().Str("url", cfg.SupabaseURL).Msg("supabase mirror enabled")
	}

	tokens := auth.NewTokenManager([]byte(sessionSecret), cfg.SessionTTL)
	runner := db.Runner{DB: sdb}

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

	// Health check
	e.GET("/health", func(c echo.Context) error {
		h := db.Check(c.Request().Context(), sdb)
		status := http.StatusOK
		if !h.Healthy {
			status = http.StatusServiceUnavailable
		}
		return c.JSON(status, h)
	})

	// Public auth endpoints
	public := e.Group("/api/v1")
	accountSvc := account.NewService(account.NewRepo(sdb), tokens, logger)
	account.NewHandler(accountSvc).RegisterRoutes(public)

	// Authenticated API
	api := e.Group("/api/v1", auth.Middleware(tokens))

	patientSvc := patient.NewService(patient.NewRepo(sdb), cipher)
	patient.NewHandler(patientSvc, images).RegisterRoutes(api)

	recordSvc := record.NewService(record.NewRepo(sdb), runner, notifier, logger)
	record.NewHandler(recordSvc).RegisterRoutes(api)

	policySvc := policy.NewService(policy.NewRepo(sdb), runner, patientSvc, recordSvc, cipher, images, notifier, logger)
	policy.NewHandler(policySvc).RegisterRoutes(api)

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
