// Package main wires objectdb's components (store, queue, coordinator,
// inventory, metrics) into a single long-running process and exposes
// its Prometheus metrics over HTTP.
//
// The service is built from environment variables via the config
// package, following 12-factor conventions: flags and a config file
// are layered on top through Viper, matching the CLI structure the
// rest of the platform uses.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/evalgo-org/objectdb/config"
	"github.com/evalgo-org/objectdb/coordinator"
	"github.com/evalgo-org/objectdb/inventory"
	"github.com/evalgo-org/objectdb/kv"
	"github.com/evalgo-org/objectdb/metrics"
	"github.com/evalgo-org/objectdb/objlog"
	"github.com/evalgo-org/objectdb/queue"
	"github.com/evalgo-org/objectdb/resource"
	"github.com/evalgo-org/objectdb/store"
)

var cfgFile string

// rootCmd is the entry point: it builds the store-backed queue and
// starts the coordinator, inventory scheduler, and metrics collector,
// then serves their combined Prometheus exposition until an interrupt
// arrives. No worker pool, recovery loop or ticket publisher is run
// for the queue.
var rootCmd = &cobra.Command{
	Use:   "objectdbd",
	Short: "objectdb service: durable queue, leader election, and cluster inventory over a single object store",
	Run:   runServer,
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.objectdbd.yaml)")
	rootCmd.PersistentFlags().String("port", "", "HTTP server port")
	viper.BindPFlag("port", rootCmd.PersistentFlags().Lookup("port"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".objectdbd")
	}

	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func runServer(cmd *cobra.Command, args []string) {
	loader := config.NewConfigLoader("OBJECTDB")
	all, err := loader.LoadAll()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	if lvl, lerr := logrus.ParseLevel(all.Service.LogLevel); lerr == nil {
		objlog.Logger.SetLevel(lvl)
	}
	if all.Service.LogFormat == "json" {
		objlog.Logger.SetFormatter(&logrus.JSONFormatter{})
	}
	logger := objlog.For("objectdbd")

	backend, err := newBackend(cmd.Context(), all.Store)
	if err != nil {
		log.Fatalf("failed to initialize store backend: %v", err)
	}

	leases := kv.New(backend, "leases")
	coord := coordinator.New(leases, coordinator.Config{
		Name:                   all.Coordinator.Name,
		WorkerID:               all.Coordinator.WorkerID,
		LeaseTTL:               all.Coordinator.LeaseTTL,
		RenewInterval:          all.Coordinator.RenewInterval,
		HeartbeatTTL:           all.Coordinator.HeartbeatTTL,
		ColdStartEnabled:       all.Coordinator.ColdStartEnabled,
		ColdStartPhaseDuration: all.Coordinator.ColdStartPhaseDuration,
	})

	byStatus := []resource.PartitionSpec{{Name: "byStatus", Field: "status"}}
	entries := resource.New("queue_entries", backend, resource.Options{Timestamps: true, Partitions: byStatus})
	tickets := resource.New("queue_tickets", backend, resource.Options{Timestamps: true, Partitions: byStatus})
	dead := resource.New("queue_dead", backend, resource.Options{Timestamps: true})

	q, err := queue.New(queue.Config{
		Name:              all.Service.Name,
		LockTTL:           all.Queue.LockTTL,
		OrderingLockTTL:   all.Queue.OrderingLockTTL,
		VisibilityTimeout: all.Queue.VisibilityTimeout,
		PollBatchSize:     all.Queue.PollBatchSize,
		RecoveryInterval:  all.Queue.RecoveryInterval,
		TicketBatchSize:   all.Queue.TicketBatchSize,
		HeartbeatTTL:      all.Queue.HeartbeatTTL,
		OrderingGuarantee: all.Queue.OrderingGuarantee,
		FailureStrategy:   queue.FailureStrategy(all.Queue.FailureStrategy),
		MaxAttempts:       all.Queue.MaxAttempts,
	}, entries, tickets, dead, leases, coord, "")
	if err != nil {
		log.Fatalf("failed to initialize queue: %v", err)
	}
	_ = q

	inv := inventory.New(inventory.Config{
		LockTTL:     all.Inventory.LockTTL,
		LockTimeout: all.Inventory.LockTimeout,
	}, backend, nil)
	if all.Inventory.GlobalSchedule != "" {
		if err := inv.ScheduleGlobal(all.Inventory.GlobalSchedule, all.Inventory.RunOnStart); err != nil {
			log.Fatalf("failed to schedule inventory sync: %v", err)
		}
	}
	inv.StartScheduler()
	defer inv.StopScheduler()

	collector := metrics.New(metrics.Config{
		FlushInterval: all.Metrics.FlushInterval,
		RetentionDays: all.Metrics.RetentionDays,
		BufferLimit:   all.Metrics.BufferLimit,
	}, backend)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go collector.Run(ctx)

	electCtx, electCancel := context.WithCancel(context.Background())
	defer electCancel()
	go func() {
		if err := coord.Run(electCtx); err != nil && err != context.Canceled {
			logger.WithError(err).Error("coordinator stopped")
		}
	}()

	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	exporter := metrics.NewPrometheusExporter(collector)
	exporter.MountEcho(e, all.Metrics.ExposePath)

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	port := all.Server.Port
	if v := viper.GetString("port"); v != "" {
		fmt.Sscanf(v, "%d", &port)
	}

	go func() {
		addr := fmt.Sprintf(":%d", port)
		logger.WithField("addr", addr).Info("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), all.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Fatal(err)
	}
}

func newBackend(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Backend {
	case "s3":
		return store.NewS3Store(ctx, cfg.S3Config())
	case "memory", "":
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
