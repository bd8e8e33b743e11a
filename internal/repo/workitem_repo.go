package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Tendera/internal/domain"
)

// WorkItemRepo — репозиторий для работы с work items.
type WorkItemRepo struct {
	pool *pgxpool.Pool
}

// NewWorkItemRepo создаёт новый WorkItemRepo.
func NewWorkItemRepo(pool *pgxpool.Pool) *WorkItemRepo {
	return &WorkItemRepo{pool: pool}
}

const workItemColumns = `id, workflow_id, task_type, status, attempt, inputs, result,
	       error, expected_completion, archived, started_at, finished_at, created_at`

// Create создаёт новый work item.
func (r *WorkItemRepo) Create(ctx context.Context, item *domain.WorkItem) error {
	inputsJSON, err := json.Marshal(item.Inputs)
	if err != nil {
		return fmt.Errorf("marshal inputs: %w", err)
	}

	query := `
		INSERT INTO work_items (id, workflow_id, task_type, status, attempt, inputs,
		                        expected_completion, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = r.pool.Exec(ctx, query,
		item.ID,
		item.WorkflowID,
		item.TaskType,
		item.Status,
		item.Attempt,
		inputsJSON,
		item.ExpectedCompletion,
		item.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert work item: %w", err)
	}
	return nil
}

// GetByID возвращает work item по ID.
func (r *WorkItemRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.WorkItem, error) {
	query := `SELECT ` + workItemColumns + ` FROM work_items WHERE id = $1`
	return scanWorkItem(r.pool.QueryRow(ctx, query, id))
}

// ListByWorkflowID возвращает все items workflow'а (включая архивные).
func (r *WorkItemRepo) ListByWorkflowID(ctx context.Context, workflowID uuid.UUID) ([]domain.WorkItem, error) {
	query := `
		SELECT ` + workItemColumns + `
		FROM work_items
		WHERE workflow_id = $1
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("list work items by workflow_id: %w", err)
	}
	defer rows.Close()

	return collectWorkItems(rows)
}

// Update обновляет work item.
func (r *WorkItemRepo) Update(ctx context.Context, item *domain.WorkItem) error {
	resultJSON, err := json.Marshal(item.Result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	query := `
		UPDATE work_items
		SET status = $2, attempt = $3, result = $4, error = $5,
		    started_at = $6, finished_at = $7
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		item.ID,
		item.Status,
		item.Attempt,
		resultJSON,
		nullString(item.Error),
		item.StartedAt,
		item.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("update work item: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListQueued возвращает items в статусе QUEUED (polling fallback воркера).
func (r *WorkItemRepo) ListQueued(ctx context.Context, limit int) ([]domain.WorkItem, error) {
	query := `
		SELECT ` + workItemColumns + `
		FROM work_items
		WHERE status = 'QUEUED' AND NOT archived
		ORDER BY created_at ASC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list queued work items: %w", err)
	}
	defer rows.Close()

	return collectWorkItems(rows)
}

// ListOverdue возвращает items, выполняющиеся дольше своего дедлайна.
// Используется оркестратором, чтобы ни один item не завис
// в IN_PROGRESS навсегда.
func (r *WorkItemRepo) ListOverdue(ctx context.Context, limit int) ([]domain.WorkItem, error) {
	query := `
		SELECT ` + workItemColumns + `
		FROM work_items
		WHERE status = 'IN_PROGRESS' AND NOT archived AND expected_completion < NOW()
		ORDER BY expected_completion ASC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list overdue work items: %w", err)
	}
	defer rows.Close()

	return collectWorkItems(rows)
}

// HasInProgress проверяет инвариант: есть ли уже item данного типа
// в IN_PROGRESS для workflow.
func (r *WorkItemRepo) HasInProgress(ctx context.Context, workflowID uuid.UUID, taskType domain.TaskType) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM work_items
			WHERE workflow_id = $1 AND task_type = $2 AND status = 'IN_PROGRESS'
		)
	`, workflowID, taskType).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check in-progress work item: %w", err)
	}
	return exists, nil
}

// ArchiveByWorkflowID архивирует все items завершённого workflow.
func (r *WorkItemRepo) ArchiveByWorkflowID(ctx context.Context, workflowID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE work_items SET archived = TRUE WHERE workflow_id = $1
	`, workflowID)
	if err != nil {
		return fmt.Errorf("archive work items: %w", err)
	}
	return nil
}

// --- Helpers ---

func scanWorkItem(row pgx.Row) (*domain.WorkItem, error) {
	var item domain.WorkItem
	var inputsJSON, resultJSON []byte
	var itemError *string

	err := row.Scan(
		&item.ID,
		&item.WorkflowID,
		&item.TaskType,
		&item.Status,
		&item.Attempt,
		&inputsJSON,
		&resultJSON,
		&itemError,
		&item.ExpectedCompletion,
		&item.Archived,
		&item.StartedAt,
		&item.FinishedAt,
		&item.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan work item: %w", err)
	}

	if inputsJSON != nil {
		if err := json.Unmarshal(inputsJSON, &item.Inputs); err != nil {
			return nil, fmt.Errorf("unmarshal inputs: %w", err)
		}
	}
	if resultJSON != nil {
		if err := json.Unmarshal(resultJSON, &item.Result); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
	}
	if itemError != nil {
		item.Error = *itemError
	}

	return &item, nil
}

func collectWorkItems(rows pgx.Rows) ([]domain.WorkItem, error) {
	var items []domain.WorkItem
	for rows.Next() {
		item, err := scanWorkItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}
