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

// RFPRepo — репозиторий для работы с найденными RFP.
type RFPRepo struct {
	pool *pgxpool.Pool
}

// NewRFPRepo создаёт новый RFPRepo.
func NewRFPRepo(pool *pgxpool.Pool) *RFPRepo {
	return &RFPRepo{pool: pool}
}

const rfpColumns = `id, portal_id, external_id, title, agency, url, status,
	       deadline, details, discovered_at, updated_at`

// Upsert создаёт RFP или обновляет существующий по (portal_id, external_id).
// Extraction-фаза может находить один и тот же RFP повторно.
func (r *RFPRepo) Upsert(ctx context.Context, rfp *domain.RFP) error {
	detailsJSON, err := json.Marshal(rfp.Details)
	if err != nil {
		return fmt.Errorf("marshal details: %w", err)
	}

	query := `
		INSERT INTO rfps (id, portal_id, external_id, title, agency, url, status,
		                  deadline, details, discovered_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (portal_id, external_id) DO UPDATE
		SET title = EXCLUDED.title, agency = EXCLUDED.agency, url = EXCLUDED.url,
		    status = EXCLUDED.status, deadline = EXCLUDED.deadline,
		    details = EXCLUDED.details, updated_at = EXCLUDED.updated_at
	`
	_, err = r.pool.Exec(ctx, query,
		rfp.ID,
		rfp.PortalID,
		rfp.ExternalID,
		rfp.Title,
		nullString(rfp.Agency),
		nullString(rfp.URL),
		rfp.Status,
		rfp.Deadline,
		detailsJSON,
		rfp.DiscoveredAt,
		rfp.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert rfp: %w", err)
	}
	return nil
}

// GetByID возвращает RFP по ID.
func (r *RFPRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.RFP, error) {
	query := `SELECT ` + rfpColumns + ` FROM rfps WHERE id = $1`
	return scanRFP(r.pool.QueryRow(ctx, query, id))
}

// RFPFilter — параметры фильтрации RFP.
type RFPFilter struct {
	PortalID *uuid.UUID
	Status   domain.RFPStatus
	Limit    int
	Offset   int
}

// List возвращает список RFP с фильтрацией и пагинацией.
func (r *RFPRepo) List(ctx context.Context, filter RFPFilter) ([]domain.RFP, error) {
	query := `
		SELECT ` + rfpColumns + `
		FROM rfps
		WHERE ($1::uuid IS NULL OR portal_id = $1)
		  AND ($2::text IS NULL OR status = $2)
		ORDER BY discovered_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.pool.Query(ctx, query,
		nullUUID(filter.PortalID),
		nullString(string(filter.Status)),
		filter.Limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list rfps: %w", err)
	}
	defer rows.Close()

	var rfps []domain.RFP
	for rows.Next() {
		rfp, err := scanRFP(rows)
		if err != nil {
			return nil, err
		}
		rfps = append(rfps, *rfp)
	}
	return rfps, rows.Err()
}

// UpdateStatus обновляет статус RFP.
func (r *RFPRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.RFPStatus) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE rfps SET status = $2, updated_at = NOW() WHERE id = $1
	`, id, status)
	if err != nil {
		return fmt.Errorf("update rfp status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Helpers ---

func scanRFP(row pgx.Row) (*domain.RFP, error) {
	var rfp domain.RFP
	var detailsJSON []byte
	var agency, url *string

	err := row.Scan(
		&rfp.ID,
		&rfp.PortalID,
		&rfp.ExternalID,
		&rfp.Title,
		&agency,
		&url,
		&rfp.Status,
		&rfp.Deadline,
		&detailsJSON,
		&rfp.DiscoveredAt,
		&rfp.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan rfp: %w", err)
	}

	if detailsJSON != nil {
		if err := json.Unmarshal(detailsJSON, &rfp.Details); err != nil {
			return nil, fmt.Errorf("unmarshal details: %w", err)
		}
	}
	if agency != nil {
		rfp.Agency = *agency
	}
	if url != nil {
		rfp.URL = *url
	}

	return &rfp, nil
}
