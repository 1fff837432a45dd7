package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/heritagelens/vision-relay/internal/auth"
	"github.com/heritagelens/vision-relay/internal/config"
	"github.com/heritagelens/vision-relay/internal/handlers"
	"github.com/heritagelens/vision-relay/internal/logging"
	"github.com/heritagelens/vision-relay/internal/usecase"
	"github.com/heritagelens/vision-relay/internal/visionclient"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vision-relay",
		Short: "Image label detection relay for Heritage Lens",
		Long: `Accepts JPEG, PNG and WebP uploads on POST /analyze, validates them and
returns the labels detected by Google Cloud Vision.

Credentials are read from GOOGLE_CREDENTIALS_BASE64 (base64-encoded service
account JSON). The process exits at startup when they are missing or invalid.`,
		SilenceUsage: true,
		RunE:         runServer,
	}

	cmd.Flags().StringP("port", "p", "", "Port to listen on (overrides PORT)")
	cmd.Flags().String("env-file", ".env", "Optional dotenv file loaded before reading the environment")
	cmd.Flags().StringP("log-level", "l", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")
	return cmd
}

func runServer(cmd *cobra.Command, _ []string) error {
	envFile, _ := cmd.Flags().GetString("env-file")
	if err := config.LoadDotEnv(envFile); err != nil {
		return fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Port = port
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = level
	}

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	detector, client, err := visionclient.DialLabelDetector(ctx, cfg.Credentials, cfg.VisionMaxResults, logger)
	if err != nil {
		logger.Error("failed to connect to cloud vision", zap.Error(err))
		return err
	}
	defer client.Close()
	logger.Info("cloud vision client ready", zap.Stringer("credentials", cfg.Credentials))

	uc := usecase.NewAnalysisUseCase(detector, usecase.NewMetrics(), cfg.VisionTimeout, logger)

	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if auth.Enabled(cfg.JWTSecret) {
		logger.Info("bearer authentication enabled for /analyze")
	}
	router := handlers.NewRouter(uc, handlers.RouterOptions{
		Logger:         logger,
		AllowOrigins:   cfg.AllowOrigins,
		AuthMiddleware: auth.JWTMiddleware(cfg.JWTSecret, cfg.JWTAudience),
	})

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("vision relay listening", zap.String("addr", cfg.Addr()))
	if err := serveHTTPServer(server, cfg.ShutdownTimeout, logger); err != nil {
		logger.Error("server failed", zap.Error(err))
		return err
	}
	return nil
}

func serveHTTPServer(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger) error {
	return serveHTTPServerWithOptions(server, shutdownTimeout, logger, nil, nil)
}

func serveHTTPServerWithOptions(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, listener net.Listener, signalCh <-chan os.Signal) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if listener != nil {
			err = server.Serve(listener)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	var (
		sigCh       <-chan os.Signal
		stopSignals func()
	)

	if signalCh != nil {
		sigCh = signalCh
		stopSignals = func() {}
	} else {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		sigCh = ch
		stopSignals = func() {
			signal.Stop(ch)
		}
	}
	defer stopSignals()

	select {
	case err := <-errCh:
		return err
	case sig, ok := <-sigCh:
		if !ok {
			return <-errCh
		}
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}
