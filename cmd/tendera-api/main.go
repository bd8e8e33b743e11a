// Tendera API — HTTP-вход системы.
//
// API:
//   - Регистрация порталов и управление расписаниями
//   - Запуск discovery и submission workflows
//   - Трансляция прогресса сканирования через SSE
//   - Сводная статистика системы
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Tendera/internal/aggregator"
	"github.com/shaiso/Tendera/internal/api"
	"github.com/shaiso/Tendera/internal/broadcast"
	"github.com/shaiso/Tendera/internal/mq"
	"github.com/shaiso/Tendera/internal/repo"
	"github.com/shaiso/Tendera/internal/telemetry"
)

var (
	startTime = time.Now()
	reqTotal  = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tendera_api_http_requests_total",
		Help: "Total HTTP requests handled by tendera_api",
	})
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting tendera-api")

	// Подключаемся к базе данных
	pool, err := repo.NewPool(context.Background())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("connected to database")

	// Создаём репозитории
	portalRepo := repo.NewPortalRepo(pool)
	rfpRepo := repo.NewRFPRepo(pool)
	workflowRepo := repo.NewWorkflowRepo(pool)
	workItemRepo := repo.NewWorkItemRepo(pool)
	scheduleRepo := repo.NewScheduleRepo(pool)
	statsRepo := repo.NewStatsRepo(pool)

	// RabbitMQ: без него API работает, но прогресс не транслируется
	// и новые workflows подхватываются orchestrator'ом через polling.
	var publisher *mq.Publisher
	var mqConn *mq.Connection
	mqURL := os.Getenv("RABBITMQ_URL")
	if mqURL == "" {
		mqURL = mq.DefaultURL()
	}

	mqConn, err = mq.NewConnection(mqURL, logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, progress streaming degraded", "error", err)
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		// Создаём топологию
		if err := mq.SetupTopology(context.Background(), mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}

		publisher = mq.NewPublisher(mqConn, logger)
	}

	// Broadcaster раздаёт события прогресса SSE-подписчикам
	broadcaster := broadcast.NewBroadcaster(logger)
	defer broadcaster.Close()

	// Relay переносит scan.progress из RabbitMQ в broadcaster
	var relay *api.ProgressRelay
	if mqConn != nil {
		relay = api.NewProgressRelay(mqConn, broadcaster, logger)
	}

	// Aggregator собирает сводную статистику из БД
	agg := aggregator.New(aggregator.Config{
		Source: statsRepo,
		Logger: logger,
	})

	// Создаём API handler
	handler := api.NewHandler(api.Config{
		PortalRepo:   portalRepo,
		RFPRepo:      rfpRepo,
		WorkflowRepo: workflowRepo,
		WorkItemRepo: workItemRepo,
		ScheduleRepo: scheduleRepo,
		Aggregator:   agg,
		Broadcaster:  broadcaster,
		Publisher:    publisher,
		Logger:       logger,
	})

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		reqTotal.Inc()
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	mux.Handle("/metrics", promhttp.Handler())

	// Регистрируем API маршруты
	handler.RegisterRoutes(mux)

	addr := ":8080"
	if v := os.Getenv("API_PORT"); v != "" {
		addr = ":" + v
	}

	// Создаём HTTP сервер с возможностью graceful shutdown
	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	// Запускаем сервер в горутине
	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Ожидаем сигнал завершения
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if relay != nil {
		relay.Start(ctx)
	}

	<-ctx.Done()
	logger.Info("shutting down")

	if relay != nil {
		relay.Stop()
	}

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("stopped")
}
