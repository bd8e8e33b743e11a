package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики ядра оркестрации. Регистрируются в default registry,
// бинарники отдают их через promhttp на /metrics.
var (
	// PhaseTransitions — счётчик переходов фаз workflow'ов.
	// result: "success" или "failure".
	PhaseTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tendera_phase_transitions_total",
		Help: "Total workflow phase transitions",
	}, []string{"result"})

	// WorkItemAttempts — счётчик попыток выполнения задач по типу.
	WorkItemAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tendera_work_item_attempts_total",
		Help: "Total work item execution attempts by task type",
	}, []string{"task_type"})

	// WorkflowsFinished — счётчик завершённых workflow'ов по статусу.
	WorkflowsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tendera_workflows_finished_total",
		Help: "Total finished workflows by terminal status",
	}, []string{"status"})

	// ActiveWorkflows — количество workflow'ов в обработке.
	ActiveWorkflows = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tendera_active_workflows",
		Help: "Workflows currently tracked by the orchestrator",
	})

	// ScanObservers — количество подключённых наблюдателей прогресса.
	ScanObservers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tendera_scan_observers",
		Help: "Observers currently subscribed to progress sessions",
	})

	// RemoteRetries — счётчик повторов resilient portal client.
	RemoteRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tendera_portal_retries_total",
		Help: "Retried portal requests (429/503 responses)",
	})

	// MQReconnects — счётчик успешных переподключений к RabbitMQ.
	// Рост при стабильной сети — признак проблем брокера.
	MQReconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tendera_mq_reconnects_total",
		Help: "Successful RabbitMQ reconnects after a dropped connection",
	})
)
