package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"gorm-forestadmin/internal/config"
	"gorm-forestadmin/internal/engine"
	"gorm-forestadmin/internal/logging"
	"gorm-forestadmin/pkg/agent"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the Forest Admin routes",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

var apimapCmd = &cobra.Command{
	Use:   "apimap",
	Short: "Write the schema file and send the apimap to Forest Admin",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		a, db, err := openAgent(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer db.Close()
		return a.SendApimap(cmd.Context())
	},
}

func setup() (*config.Config, *zap.Logger, error) {
	var paths []string
	if configPath != "" {
		paths = append(paths, configPath)
	}
	cfg, err := config.Load(paths...)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func openAgent(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*agent.Agent, *agent.Database, error) {
	db, err := agent.Open(ctx, cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	logger.Info("database connected", zap.String("driver", db.Dialect.Name()))

	a, err := agent.New(cfg.Forest, logger, db, demoModels())
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return a, db, nil
}

func serve(ctx context.Context) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	a, db, err := openAgent(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.Forest.SendApimapOnStart {
		if err := a.SendApimap(ctx); err != nil {
			// the agent still serves charts with the schema file on disk
			logger.Warn("apimap not sent", zap.Error(err))
		}
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          engine.ErrorHandler(logger),
		DisableStartupMessage: true,
	})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.Forest.CorsOrigins, ","),
		AllowHeaders:     "Authorization, Content-Type",
		AllowCredentials: true,
	}))
	app.Use(requestLogger(logger))
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	a.Mount(app)

	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		logger.Info("starting server", zap.String("addr", addr))
		errCh <- app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// requestLogger logs every request through zap.
func requestLogger(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		logger.Info("request",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().StatusCode()),
			zap.Duration("latency", time.Since(start)),
			zap.Error(err))
		return err
	}
}
