package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Tendera/internal/domain"
)

// StatsRepo — источник сырых агрегатов для aggregator'а.
//
// Агрегаты возвращаются слабо типизированными (map[string]any из JSON):
// числа приходят как float64, отсутствующие значения — как nil.
// Нормализация к конечным числам — ответственность пакета aggregator,
// не репозитория.
type StatsRepo struct {
	pool *pgxpool.Pool
}

// NewStatsRepo создаёт новый StatsRepo.
func NewStatsRepo(pool *pgxpool.Pool) *StatsRepo {
	return &StatsRepo{pool: pool}
}

// RecordTransition записывает переход фазы.
func (r *StatsRepo) RecordTransition(ctx context.Context, t *domain.WorkflowTransition) error {
	query := `
		INSERT INTO workflow_transitions (id, workflow_id, from_phase, to_phase,
		                                  success, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.pool.Exec(ctx, query,
		t.ID,
		t.WorkflowID,
		t.FromPhase,
		t.ToPhase,
		t.Success,
		t.DurationMs,
		t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transition: %w", err)
	}
	return nil
}

// CountByPhase возвращает количество активных workflows по текущей фазе.
func (r *StatsRepo) CountByPhase(ctx context.Context) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT current_phase, COUNT(*)
		FROM workflows
		WHERE status = 'ACTIVE'
		GROUP BY current_phase
	`)
	if err != nil {
		return nil, fmt.Errorf("count by phase: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var phase string
		var count int
		if err := rows.Scan(&phase, &count); err != nil {
			return nil, fmt.Errorf("scan phase count: %w", err)
		}
		counts[phase] = count
	}
	return counts, rows.Err()
}

// CountByStatus возвращает количество workflows по статусу.
func (r *StatsRepo) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT status, COUNT(*)
		FROM workflows
		GROUP BY status
	`)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// RecentWorkflowStates возвращает последние завершённые workflows
// в сыром JSON-представлении.
func (r *StatsRepo) RecentWorkflowStates(ctx context.Context, limit int) ([]map[string]any, error) {
	query := `
		SELECT row_to_json(t)
		FROM (
			SELECT id, kind, current_phase, status, progress, finished_at
			FROM workflows
			WHERE status IN ('COMPLETED', 'FAILED')
			ORDER BY finished_at DESC
			LIMIT $1
		) t
	`
	return r.collectJSONRows(ctx, query, limit)
}

// PhaseStats возвращает сырую статистику по типам задач:
// активные, завершённые, упавшие, средняя длительность.
func (r *StatsRepo) PhaseStats(ctx context.Context) ([]map[string]any, error) {
	query := `
		SELECT row_to_json(t)
		FROM (
			SELECT task_type,
			       COUNT(*) FILTER (WHERE status = 'IN_PROGRESS')                AS active,
			       COUNT(*) FILTER (WHERE status = 'COMPLETED')                  AS completed,
			       COUNT(*) FILTER (WHERE status = 'FAILED')                     AS failed,
			       AVG(EXTRACT(EPOCH FROM (finished_at - started_at)) * 1000)
			           FILTER (WHERE finished_at IS NOT NULL)                    AS avg_duration_ms
			FROM work_items
			GROUP BY task_type
		) t
	`
	return r.collectJSONRows(ctx, query)
}

// TransitionSummary возвращает сырую сводку переходов фаз.
func (r *StatsRepo) TransitionSummary(ctx context.Context) (map[string]any, error) {
	query := `
		SELECT row_to_json(t)
		FROM (
			SELECT COUNT(*)                               AS total,
			       COUNT(*) FILTER (WHERE success)        AS successful,
			       COUNT(*) FILTER (WHERE NOT success)    AS failed,
			       AVG(duration_ms)                       AS avg_duration_ms
			FROM workflow_transitions
		) t
	`
	var raw []byte
	if err := r.pool.QueryRow(ctx, query).Scan(&raw); err != nil {
		return nil, fmt.Errorf("transition summary: %w", err)
	}

	var summary map[string]any
	if err := json.Unmarshal(raw, &summary); err != nil {
		return nil, fmt.Errorf("unmarshal summary: %w", err)
	}
	return summary, nil
}

// collectJSONRows выполняет запрос, возвращающий по одному
// JSON-объекту на строку.
func (r *StatsRepo) collectJSONRows(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	var result []map[string]any
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan stats row: %w", err)
		}
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("unmarshal stats row: %w", err)
		}
		result = append(result, m)
	}
	return result, rows.Err()
}
