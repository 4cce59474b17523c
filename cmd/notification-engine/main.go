package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"notification-engine/internal/aggregator"
	"notification-engine/internal/api"
	"notification-engine/internal/common/camunda"
	"notification-engine/internal/common/config"
	"notification-engine/internal/common/logger"
	refresh "notification-engine/internal/workers/notifications/refresh-notifications"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const app = "notification-engine"

// Actual version can be specified in build command.
var version = "unknown"

var (
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "Aggregates job-provider notifications from approval, recommendation and paid status sources",
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the refresh trigger and the Zeebe worker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve()
		},
	}

	refreshCmd = &cobra.Command{
		Use:   "refresh",
		Short: "Run one aggregation pass for a user and print the result",
		RunE: func(cmd *cobra.Command, _ []string) error {
			userID, _ := cmd.Flags().GetString("user")
			filter, _ := cmd.Flags().GetString("filter")
			return refreshOnce(cmd.Context(), userID, filter)
		},
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("%s version: %s\n", app, version)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is configs/config.yaml with the APP_ENVIRONMENT overlay)")

	refreshCmd.Flags().String("user", "", "job provider user id")
	refreshCmd.Flags().String("filter", aggregator.FilterAll, "all, unread or a notification type")
	_ = refreshCmd.MarkFlagRequired("user")

	rootCmd.AddCommand(serveCmd, refreshCmd, versionCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		return config.LoadFromFile(cfgFile)
	}
	return config.Load()
}

func serve() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting notification engine...", zap.String("version", version))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := buildEngine(ctx, cfg, zapLog)
	if err != nil {
		return err
	}

	if err := e.forwardEvents(ctx, log); err != nil {
		zapLog.Error("SNS forwarding disabled", zap.Error(err))
	}

	trigger := aggregator.NewTrigger(e.aggregator, config.GetDuration(cfg.Notifications.PollInterval), log)
	go trigger.Run(ctx)

	// --- Zeebe worker ---
	var zeebe *camunda.Client
	var jobWorker *camunda.Worker
	if cfg.Camunda.Enabled && config.IsWorkerEnabled(cfg, refresh.WorkerName) {
		zeebe, err = camunda.NewClient(ctx, camunda.ConfigFromApp(cfg.Camunda))
		if err != nil {
			e.shutdown(context.Background())
			return fmt.Errorf("zeebe client failed: %w", err)
		}
		zapLog.Info("Zeebe client connected successfully")

		handler, err := refresh.NewHandler(refresh.HandlerOptions{
			AppConfig: cfg,
			Refresher: e.aggregator,
			Logger:    log,
		})
		if err != nil {
			e.shutdown(context.Background())
			return fmt.Errorf("failed to create %s handler: %w", refresh.WorkerName, err)
		}
		jobWorker = zeebe.OpenWorker(handler, handler.GetConfig().MaxJobsActive, handler.GetConfig().Timeout, log)
	}

	// --- HTTP API, health and metrics ---
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	checks := e.readinessChecks()
	if zeebe != nil {
		checks["zeebe"] = zeebe.HealthCheck
	}
	srv := &http.Server{
		Addr:              cfg.App.HTTPAddress,
		Handler:           api.NewServer(e.aggregator, trigger, checks, log).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.App.HTTPAddress))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("HTTP server failed", zap.Error(err))
			stop()
		}
	}()

	// --- Graceful Shutdown ---
	<-ctx.Done()
	zapLog.Info("Shutdown signal received, stopping...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping HTTP server", zap.Error(err))
	}
	jobWorker.Close()
	if zeebe != nil {
		if err := zeebe.Close(); err != nil {
			zapLog.Error("Error closing Zeebe client", zap.Error(err))
		}
	}
	e.shutdown(shutdownCtx)

	zapLog.Info("Notification engine stopped gracefully")
	return nil
}

func refreshOnce(ctx context.Context, userID, filter string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	e, err := buildEngine(ctx, cfg, zapLog)
	if err != nil {
		return err
	}
	defer e.shutdown(context.Background())

	st, err := e.aggregator.RefreshState(ctx, userID)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]interface{}{
		"userId":        st.UserID,
		"loadFailed":    st.LoadFailed,
		"unread":        aggregator.UnreadCount(st.Notifications),
		"notifications": aggregator.FilterAndSort(st.Notifications, filter),
	})
}
