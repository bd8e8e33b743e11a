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

// WorkflowRepo — репозиторий для работы с workflows.
type WorkflowRepo struct {
	pool *pgxpool.Pool
}

// NewWorkflowRepo создаёт новый WorkflowRepo.
func NewWorkflowRepo(pool *pgxpool.Pool) *WorkflowRepo {
	return &WorkflowRepo{pool: pool}
}

const workflowColumns = `id, kind, portal_id, rfp_id, session_id, current_phase, status,
	       progress, context, error, idempotency_key, started_at, finished_at,
	       created_at, updated_at`

// Create создаёт новый workflow.
func (r *WorkflowRepo) Create(ctx context.Context, wf *domain.Workflow) error {
	contextJSON, err := json.Marshal(wf.Context)
	if err != nil {
		return fmt.Errorf("marshal context: %w", err)
	}

	query := `
		INSERT INTO workflows (id, kind, portal_id, rfp_id, session_id, current_phase,
		                       status, progress, context, idempotency_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = r.pool.Exec(ctx, query,
		wf.ID,
		wf.Kind,
		wf.PortalID,
		nullUUID(wf.RFPID),
		wf.SessionID,
		wf.CurrentPhase,
		wf.Status,
		wf.Progress,
		contextJSON,
		nullString(wf.IdempotencyKey),
		wf.CreatedAt,
		wf.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert workflow: %w", err)
	}
	return nil
}

// GetByID возвращает workflow по ID.
func (r *WorkflowRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Workflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows WHERE id = $1`
	return scanWorkflow(r.pool.QueryRow(ctx, query, id))
}

// GetBySessionID возвращает workflow по сессии прогресс-стрима.
func (r *WorkflowRepo) GetBySessionID(ctx context.Context, sessionID uuid.UUID) (*domain.Workflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows WHERE session_id = $1`
	return scanWorkflow(r.pool.QueryRow(ctx, query, sessionID))
}

// GetByIdempotencyKey возвращает workflow по ключу идемпотентности.
func (r *WorkflowRepo) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Workflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows WHERE idempotency_key = $1`
	return scanWorkflow(r.pool.QueryRow(ctx, query, key))
}

// WorkflowFilter — параметры фильтрации workflows.
type WorkflowFilter struct {
	PortalID *uuid.UUID
	Kind     domain.WorkflowKind
	Status   domain.WorkflowStatus
	Limit    int
	Offset   int
}

// List возвращает список workflows с фильтрацией.
func (r *WorkflowRepo) List(ctx context.Context, filter WorkflowFilter) ([]domain.Workflow, error) {
	query := `
		SELECT ` + workflowColumns + `
		FROM workflows
		WHERE ($1::uuid IS NULL OR portal_id = $1)
		  AND ($2::text IS NULL OR kind = $2)
		  AND ($3::text IS NULL OR status = $3)
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5
	`
	rows, err := r.pool.Query(ctx, query,
		nullUUID(filter.PortalID),
		nullString(string(filter.Kind)),
		nullString(string(filter.Status)),
		filter.Limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	defer rows.Close()

	return collectWorkflows(rows)
}

// ListQueued возвращает активные workflows, у которых первая фаза
// ещё не поставлена (polling fallback оркестратора).
func (r *WorkflowRepo) ListQueued(ctx context.Context, limit int) ([]domain.Workflow, error) {
	query := `
		SELECT ` + workflowColumns + `
		FROM workflows
		WHERE status = 'ACTIVE' AND current_phase = 'queued'
		ORDER BY created_at ASC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list queued workflows: %w", err)
	}
	defer rows.Close()

	return collectWorkflows(rows)
}

// Update обновляет изменяемые поля workflow.
func (r *WorkflowRepo) Update(ctx context.Context, wf *domain.Workflow) error {
	contextJSON, err := json.Marshal(wf.Context)
	if err != nil {
		return fmt.Errorf("marshal context: %w", err)
	}

	query := `
		UPDATE workflows
		SET current_phase = $2, status = $3, progress = $4, context = $5,
		    error = $6, started_at = $7, finished_at = $8, updated_at = $9
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		wf.ID,
		wf.CurrentPhase,
		wf.Status,
		wf.Progress,
		contextJSON,
		nullString(wf.Error),
		wf.StartedAt,
		wf.FinishedAt,
		wf.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update workflow: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountActive возвращает количество активных workflows.
func (r *WorkflowRepo) CountActive(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM workflows WHERE status = 'ACTIVE'
	`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active workflows: %w", err)
	}
	return count, nil
}

// --- Helpers ---

func scanWorkflow(row pgx.Row) (*domain.Workflow, error) {
	var wf domain.Workflow
	var contextJSON []byte
	var wfError, idempotencyKey *string

	err := row.Scan(
		&wf.ID,
		&wf.Kind,
		&wf.PortalID,
		&wf.RFPID,
		&wf.SessionID,
		&wf.CurrentPhase,
		&wf.Status,
		&wf.Progress,
		&contextJSON,
		&wfError,
		&idempotencyKey,
		&wf.StartedAt,
		&wf.FinishedAt,
		&wf.CreatedAt,
		&wf.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan workflow: %w", err)
	}

	if contextJSON != nil {
		if err := json.Unmarshal(contextJSON, &wf.Context); err != nil {
			return nil, fmt.Errorf("unmarshal context: %w", err)
		}
	}
	if wfError != nil {
		wf.Error = *wfError
	}
	if idempotencyKey != nil {
		wf.IdempotencyKey = *idempotencyKey
	}

	return &wf, nil
}

func collectWorkflows(rows pgx.Rows) ([]domain.Workflow, error) {
	var workflows []domain.Workflow
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, *wf)
	}
	return workflows, rows.Err()
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nullUUID возвращает nil для пустого UUID.
func nullUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil || *id == uuid.Nil {
		return nil
	}
	return id
}
