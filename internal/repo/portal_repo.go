package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Tendera/internal/domain"
)

// PortalRepo — репозиторий для работы с порталами закупок.
type PortalRepo struct {
	pool *pgxpool.Pool
}

// NewPortalRepo создаёт новый PortalRepo.
func NewPortalRepo(pool *pgxpool.Pool) *PortalRepo {
	return &PortalRepo{pool: pool}
}

// Create регистрирует новый портал.
func (r *PortalRepo) Create(ctx context.Context, portal *domain.Portal) error {
	query := `
		INSERT INTO portals (id, name, base_url, auth_kind, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query,
		portal.ID,
		portal.Name,
		portal.BaseURL,
		portal.AuthKind,
		portal.IsActive,
		portal.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert portal: %w", err)
	}
	return nil
}

// GetByID возвращает портал по ID.
func (r *PortalRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Portal, error) {
	query := `
		SELECT id, name, base_url, auth_kind, is_active, created_at
		FROM portals
		WHERE id = $1
	`
	var portal domain.Portal
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&portal.ID,
		&portal.Name,
		&portal.BaseURL,
		&portal.AuthKind,
		&portal.IsActive,
		&portal.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan portal: %w", err)
	}
	return &portal, nil
}

// ListWithCounts возвращает все порталы с количеством найденных RFP.
func (r *PortalRepo) ListWithCounts(ctx context.Context) ([]domain.PortalWithCounts, error) {
	query := `
		SELECT p.id, p.name, p.base_url, p.auth_kind, p.is_active, p.created_at,
		       COUNT(rf.id) AS rfp_count
		FROM portals p
		LEFT JOIN rfps rf ON rf.portal_id = p.id
		GROUP BY p.id
		ORDER BY p.name ASC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list portals: %w", err)
	}
	defer rows.Close()

	var portals []domain.PortalWithCounts
	for rows.Next() {
		var p domain.PortalWithCounts
		err := rows.Scan(
			&p.ID,
			&p.Name,
			&p.BaseURL,
			&p.AuthKind,
			&p.IsActive,
			&p.CreatedAt,
			&p.RFPCount,
		)
		if err != nil {
			return nil, fmt.Errorf("scan portal: %w", err)
		}
		portals = append(portals, p)
	}
	return portals, rows.Err()
}
