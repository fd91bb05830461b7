// Simulo API — сервис диспетчера симуляций.
//
// Поднимает пул compute worker'ов, принимает запросы на симуляции
// через REST API и раздаёт прогоны воркерам батчами.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Simulo/internal/api"
	"github.com/shaiso/Simulo/internal/config"
	"github.com/shaiso/Simulo/internal/engine"
	"github.com/shaiso/Simulo/internal/mq"
	"github.com/shaiso/Simulo/internal/pool"
	"github.com/shaiso/Simulo/internal/telemetry"
)

var startTime = time.Now()

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting simulo-api")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	staticConfig, err := cfg.StaticConfig()
	if err != nil {
		logger.Error("failed to read engine static config", "error", err)
		os.Exit(1)
	}

	// Транспорт до движка: подпроцессы или удалённые воркеры через AMQP
	var transport engine.Transport
	switch cfg.Engine.Transport {
	case "amqp":
		mqConn, err := mq.NewConnection(cfg.Engine.AMQPURL, logger)
		if err != nil {
			logger.Error("failed to connect to RabbitMQ", "error", err)
			os.Exit(1)
		}
		defer mqConn.Close()
		logger.Info("connected to RabbitMQ")

		if err := mq.SetupTopology(context.Background(), mqConn); err != nil {
			logger.Error("failed to declare topology", "error", err)
			os.Exit(1)
		}

		transport = &engine.AMQPTransport{Conn: mqConn, Logger: logger}

	default:
		transport = &engine.ProcTransport{
			Command: cfg.Engine.Command,
			Args:    cfg.Engine.Args,
			Logger:  logger,
		}
	}

	memory := pool.NewMemoryMonitor(pool.MemoryMonitorConfig{
		BudgetMB:      cfg.Memory.BudgetMB,
		CheckInterval: cfg.Memory.CheckInterval,
		Logger:        logger,
	})

	supervisor := pool.New(pool.Config{
		Transport:    transport,
		PoolSize:     cfg.Pool.Size,
		StaticConfig: staticConfig,
		Verbosity:    cfg.Engine.Verbosity,
		InitTimeout:  cfg.Pool.InitTimeout,
		BatchTimeout: cfg.Pool.BatchTimeout,
		RebuildLimit: cfg.Pool.RebuildLimit,
		Memory:       memory,
		Logger:       logger,
	})
	defer supervisor.Terminate()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := supervisor.Initialize(ctx); err != nil {
		logger.Error("failed to initialize worker pool", "error", err)
		os.Exit(1)
	}

	// Создаём API handler
	handler := api.NewHandler(api.Config{
		Dispatcher: supervisor,
		Logger:     logger,
	})

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	mux.Handle("/metrics", promhttp.Handler())

	// Регистрируем API маршруты
	handler.RegisterRoutes(mux)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.API.Port),
		Handler: mux,
	}

	go func() {
		logger.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	supervisor.Terminate()
	logger.Info("stopped")
}
