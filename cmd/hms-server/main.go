package main

import (
	"context"
	crypto_rand "crypto/rand"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/medilink/hms/internal/config"
	"github.com/medilink/hms/internal/domain/identity"
	"github.com/medilink/hms/internal/domain/passwordreset"
	"github.com/medilink/hms/internal/domain/records"
	"github.com/medilink/hms/internal/domain/scheduling"
	"github.com/medilink/hms/internal/platform/bot"
	"github.com/medilink/hms/internal/platform/db"
	"github.com/medilink/hms/internal/platform/middleware"
	"github.com/medilink/hms/internal/platform/notification"
	"github.com/medilink/hms/internal/platform/session"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "hms-server",
		Short: "Hospital Management System API Server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(adminCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HMS API server",
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
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is required")
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
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is required")
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
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func adminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage admin accounts",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create an admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			username, _ := cmd.Flags().GetString("username")
			password, _ := cmd.Flags().GetString("password")
			fullName, _ := cmd.Flags().GetString("full-name")
			email, _ := cmd.Flags().GetString("email")
			if username == "" || password == "" || fullName == "" || email == "" {
				return fmt.Errorf("--username, --password, --full-name, and --email are required")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is required")
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := identity.NewService(identity.NewRepoPG(pool))
			id, err := svc.RegisterAdmin(ctx, identity.RegisterAdminInput{
				Username: username,
				Password: password,
				FullName: fullName,
				Email:    email,
			})
			if err != nil {
				return err
			}
			fmt.Printf("Admin %q created with id %s\n", id.NaturalKey, id.ID)
			return nil
		},
	}
	createCmd.Flags().String("username", "", "Login username")
	createCmd.Flags().String("password", "", "Initial password")
	createCmd.Flags().String("full-name", "", "Display name")
	createCmd.Flags().String("email", "", "Contact email")
	cmd.AddCommand(createCmd)

	return cmd
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" || os.Getenv("ENV") == "" {
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

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Session store: redis when configured, in-process otherwise. A single
	// instance works fine on the memory store; redis lets sessions survive
	// restarts and span replicas.
	var store session.Store
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid REDIS_URL")
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		store = session.NewRedisStore(client)
		logger.Info().Msg("using redis session store")
	} else {
		store = session.NewMemoryStore()
		logger.Warn().Msg("REDIS_URL not set; sessions are held in process memory")
	}

	secret := []byte(cfg.SessionSecret)
	if len(secret) == 0 {
		// Development fallback. Every restart invalidates all sessions.
		secret = make([]byte, 32)
		if _, err := crypto_rand.Read(secret); err != nil {
			logger.Fatal().Err(err).Msg("failed to generate session secret")
		}
		logger.Warn().Msg("SESSION_SECRET not set; using a random per-process secret")
	}
	sessions := session.NewManager(store, secret, cfg.SessionTTL)

	// Mailer: real SMTP when configured, log-only otherwise.
	var sender notification.EmailSender
	if cfg.SMTPHost != "" {
		sender = notification.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom)
		logger.Info().Str("host", cfg.SMTPHost).Msg("using SMTP mail delivery")
	} else {
		sender = notification.NewLogSender(logger)
		logger.Warn().Msg("SMTP_HOST not set; outgoing mail is logged, not delivered")
	}
	mailer := notification.NewMailer(sender, notification.NewTemplateEngine(), logger)

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
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(session.Middleware(sessions))

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	// Route groups. The public group carries no auth requirement; the rest
	// gate on the caller's user type.
	apiV1 := e.Group("/api/v1")
	authed := e.Group("/api/v1", session.RequireUserType(session.UserTypeAdmin, session.UserTypeDoctor, session.UserTypePatient))
	patientGroup := e.Group("/api/v1", session.RequireUserType(session.UserTypePatient))
	doctorGroup := e.Group("/api/v1", session.RequireUserType(session.UserTypeDoctor))
	adminGroup := e.Group("/api/v1", session.RequireUserType(session.UserTypeAdmin))
	staffGroup := e.Group("/api/v1", session.RequireUserType(session.UserTypeAdmin, session.UserTypeDoctor))

	// Identity domain
	identitySvc := identity.NewService(identity.NewRepoPG(pool))
	identityHandler := identity.NewHandler(identitySvc, sessions)
	identityHandler.RegisterRoutes(apiV1, authed, adminGroup)

	// Scheduling domain
	schedSvc := scheduling.NewService(scheduling.NewRepoPG(pool))
	schedHandler := scheduling.NewHandler(schedSvc)
	schedHandler.SetNotifier(newBookingNotifier(identitySvc, mailer, logger))
	schedHandler.RegisterRoutes(authed, patientGroup, doctorGroup, adminGroup)

	// Medical records domain
	recordsSvc := records.NewService(records.NewRepoPG(pool))
	recordsHandler := records.NewHandler(recordsSvc)
	recordsHandler.RegisterRoutes(authed, doctorGroup, staffGroup)

	// Password reset domain
	resetSvc := passwordreset.NewService(
		passwordreset.NewRepoPG(pool),
		identitySvc,
		func(ctx context.Context, fn func(ctx context.Context) error) error {
			return db.WithTx(ctx, pool, fn)
		},
		cfg.ResetTokenTTL,
	)
	resetHandler := passwordreset.NewHandler(resetSvc, mailer, cfg.BaseURL, logger)
	resetHandler.RegisterRoutes(apiV1)

	// Chatbot. Registered on the public group so anonymous visitors can chat;
	// the history endpoint checks for a principal itself.
	botHandler := bot.NewHandler(bot.NewResponder(), bot.NewHistoryRepoPG(pool), logger)
	botHandler.RegisterRoutes(apiV1)

	// Start server with graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
