// Tendera Worker — выполняет отдельные work items.
//
// Worker:
//   - Получает work items из RabbitMQ
//   - Выполняет шаг автоматизации через portal client
//   - Реализует retry для идемпотентных типов задач
//   - Синхронно продвигает workflow через orchestrator
//
// Workers масштабируются горизонтально.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Tendera/internal/mq"
	"github.com/shaiso/Tendera/internal/orchestrator"
	"github.com/shaiso/Tendera/internal/portal"
	"github.com/shaiso/Tendera/internal/repo"
	"github.com/shaiso/Tendera/internal/telemetry"
	"github.com/shaiso/Tendera/internal/worker"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting tendera-worker")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	// Создаём репозитории
	workItemRepo := repo.NewWorkItemRepo(pool)
	workflowRepo := repo.NewWorkflowRepo(pool)
	statsRepo := repo.NewStatsRepo(pool)
	rfpRepo := repo.NewRFPRepo(pool)

	// RabbitMQ
	var publisher *mq.Publisher
	var mqConn *mq.Connection
	mqURL := os.Getenv("RABBITMQ_URL")
	if mqURL == "" {
		mqURL = mq.DefaultURL()
	}

	mqConn, err = mq.NewConnection(mqURL, logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, running in polling-only mode", "error", err)
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		// Создаём топологию
		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}

		publisher = mq.NewPublisher(mqConn, logger)
	}

	// Клиент сервиса автоматизации порталов
	portalURL := os.Getenv("PORTAL_BASE_URL")
	if portalURL == "" {
		portalURL = "http://localhost:9000"
	}

	portalClient, err := portal.NewClient(portal.Config{
		BaseURL: portalURL,
		Logger:  logger,
	})
	if err != nil {
		logger.Error("failed to create portal client", "error", err)
		os.Exit(1)
	}

	// Orchestrator здесь не запускается: worker использует его
	// только для синхронного продвижения workflow после task'а.
	orch := orchestrator.New(orchestrator.Config{
		WorkflowRepo: workflowRepo,
		WorkItemRepo: workItemRepo,
		StatsRepo:    statsRepo,
		RFPRepo:      rfpRepo,
		Publisher:    publisher,
		Logger:       logger,
	})

	// Создаём worker
	w := worker.New(worker.Config{
		WorkItemRepo: workItemRepo,
		WorkflowRepo: workflowRepo,
		Advancer:     orch,
		Publisher:    publisher,
		Conn:         mqConn,
		Registry:     worker.NewPortalRegistry(portalClient),
		Logger:       logger,
	})

	// Запускаем worker
	if err := w.Start(ctx); err != nil {
		logger.Error("failed to start worker", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8082"
	if v := os.Getenv("WORKER_PORT"); v != "" {
		port = ":" + v
	}

	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()

	// Останавливаем worker
	w.Stop()
	logger.Info("tendera-worker stopped")
}
