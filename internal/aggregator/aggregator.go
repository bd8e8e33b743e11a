package aggregator

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Default configuration values.
const (
	defaultCacheTTL    = 5 * time.Second
	defaultRecentLimit = 10
)

// Source — источник сырых агрегатов (обычно *repo.StatsRepo).
//
// Агрегаты слабо типизированы: числа могут приходить как float64,
// nil или строки. Aggregator нормализует их на выходе.
type Source interface {
	CountByPhase(ctx context.Context) (map[string]int, error)
	CountByStatus(ctx context.Context) (map[string]int, error)
	RecentWorkflowStates(ctx context.Context, limit int) ([]map[string]any, error)
	PhaseStats(ctx context.Context) ([]map[string]any, error)
	TransitionSummary(ctx context.Context) (map[string]any, error)
}

// GlobalState — сводное состояние системы для дашборда.
type GlobalState struct {
	// Workflows — количество workflows по статусу.
	Workflows map[string]int `json:"workflows"`

	// ActivePhases — количество активных workflows по текущей фазе.
	ActivePhases map[string]int `json:"active_phases"`

	// Recent — последние завершённые workflows.
	Recent []WorkflowSnapshot `json:"recent"`

	// GeneratedAt — время формирования сводки.
	GeneratedAt time.Time `json:"generated_at"`
}

// WorkflowSnapshot — краткое состояние одного workflow.
type WorkflowSnapshot struct {
	ID       string  `json:"id"`
	Kind     string  `json:"kind"`
	Phase    string  `json:"phase"`
	Status   string  `json:"status"`
	Progress float64 `json:"progress"`
}

// PhaseStat — статистика выполнения одного типа задач.
type PhaseStat struct {
	TaskType      string  `json:"task_type"`
	Active        int     `json:"active"`
	Completed     int     `json:"completed"`
	Failed        int     `json:"failed"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
}

// TransitionSummary — сводка переходов фаз.
type TransitionSummary struct {
	Total         int     `json:"total"`
	Successful    int     `json:"successful"`
	Failed        int     `json:"failed"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
}

// Aggregator собирает статистику по workflows для read-only API.
//
// Aggregator — граница нормализации: что бы ни вернуло хранилище,
// каждое числовое поле на выходе — конечное число. Ошибки хранилища
// не пробрасываются наружу: наружу уходит нулевая сводка, ошибка
// логируется. Дашборд не должен падать из-за деградации БД.
type Aggregator struct {
	source      Source
	cacheTTL    time.Duration
	recentLimit int
	logger      *slog.Logger

	mu    sync.Mutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	value   any
	expires time.Time
}

// Config — конфигурация Aggregator.
type Config struct {
	Source Source

	// CacheTTL — время жизни кешированных сводок (default: 5s).
	CacheTTL time.Duration

	// RecentLimit — количество workflows в Recent (default: 10).
	RecentLimit int

	Logger *slog.Logger
}

// New создаёт новый Aggregator.
func New(cfg Config) *Aggregator {
	cacheTTL := cfg.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}

	recentLimit := cfg.RecentLimit
	if recentLimit <= 0 {
		recentLimit = defaultRecentLimit
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Aggregator{
		source:      cfg.Source,
		cacheTTL:    cacheTTL,
		recentLimit: recentLimit,
		logger:      logger,
		cache:       make(map[string]cacheEntry),
	}
}

// GlobalState возвращает сводное состояние системы.
func (a *Aggregator) GlobalState(ctx context.Context) GlobalState {
	if cached, ok := getCached[GlobalState](a, "global"); ok {
		return cached
	}

	state := GlobalState{
		Workflows:    make(map[string]int),
		ActivePhases: make(map[string]int),
		Recent:       []WorkflowSnapshot{},
		GeneratedAt:  time.Now(),
	}

	if byStatus, err := a.source.CountByStatus(ctx); err != nil {
		a.logger.Warn("failed to count workflows by status", "error", err)
	} else {
		state.Workflows = byStatus
	}

	if byPhase, err := a.source.CountByPhase(ctx); err != nil {
		a.logger.Warn("failed to count workflows by phase", "error", err)
	} else {
		state.ActivePhases = byPhase
	}

	if recent, err := a.source.RecentWorkflowStates(ctx, a.recentLimit); err != nil {
		a.logger.Warn("failed to load recent workflows", "error", err)
	} else {
		for _, raw := range recent {
			state.Recent = append(state.Recent, WorkflowSnapshot{
				ID:       toText(raw["id"], ""),
				Kind:     toText(raw["kind"], ""),
				Phase:    toText(raw["current_phase"], ""),
				Status:   toText(raw["status"], ""),
				Progress: toFiniteNumber(raw["progress"], 0),
			})
		}
	}

	putCached(a, "global", state)
	return state
}

// PhaseStatistics возвращает статистику выполнения по типам задач.
func (a *Aggregator) PhaseStatistics(ctx context.Context) []PhaseStat {
	if cached, ok := getCached[[]PhaseStat](a, "phases"); ok {
		return cached
	}

	stats := []PhaseStat{}

	raw, err := a.source.PhaseStats(ctx)
	if err != nil {
		a.logger.Warn("failed to load phase statistics", "error", err)
		putCached(a, "phases", stats)
		return stats
	}

	for _, row := range raw {
		stats = append(stats, PhaseStat{
			TaskType:      toText(row["task_type"], "unknown"),
			Active:        toCount(row["active"]),
			Completed:     toCount(row["completed"]),
			Failed:        toCount(row["failed"]),
			AvgDurationMs: toFiniteNumber(row["avg_duration_ms"], 0),
		})
	}

	putCached(a, "phases", stats)
	return stats
}

// TransitionSummary возвращает сводку переходов фаз.
func (a *Aggregator) TransitionSummary(ctx context.Context) TransitionSummary {
	if cached, ok := getCached[TransitionSummary](a, "transitions"); ok {
		return cached
	}

	var summary TransitionSummary

	raw, err := a.source.TransitionSummary(ctx)
	if err != nil {
		a.logger.Warn("failed to load transition summary", "error", err)
		putCached(a, "transitions", summary)
		return summary
	}

	summary = TransitionSummary{
		Total:         toCount(raw["total"]),
		Successful:    toCount(raw["successful"]),
		Failed:        toCount(raw["failed"]),
		AvgDurationMs: toFiniteNumber(raw["avg_duration_ms"], 0),
	}

	putCached(a, "transitions", summary)
	return summary
}

// getCached возвращает живое кешированное значение по ключу.
func getCached[T any](a *Aggregator, key string) (T, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var zero T
	entry, ok := a.cache[key]
	if !ok || time.Now().After(entry.expires) {
		return zero, false
	}
	value, ok := entry.value.(T)
	if !ok {
		return zero, false
	}
	return value, true
}

// putCached сохраняет значение в кеш с TTL агрегатора.
func putCached(a *Aggregator, key string, value any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cache[key] = cacheEntry{value: value, expires: time.Now().Add(a.cacheTTL)}
}
