package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tu-usuario/facturador-pro/internal/domain/entity"
	"github.com/tu-usuario/facturador-pro/internal/domain/repository"
)

var _ repository.RoutingCodeRepository = (*RoutingCodeRepo)(nil)

// RoutingCodeRepo implementa RoutingCodeRepository sobre PostgreSQL.
type RoutingCodeRepo struct {
	q Querier
}

// NewRoutingCodeRepository construye el adaptador. Pasar pool o tx (Querier).
func NewRoutingCodeRepository(q Querier) *RoutingCodeRepo {
	return &RoutingCodeRepo{q: q}
}

// Upsert inserta o actualiza el código. La carga por cmd/seed es re-ejecutable:
// el catálogo oficial se refresca sin duplicar filas.
func (r *RoutingCodeRepo) Upsert(ctx context.Context, code *entity.RoutingCode) error {
	if code.ID == "" {
		code.ID = uuid.New().String()
	}
	const q = `
		INSERT INTO routing_codes (id, code, description, jurisdiction, created_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (code) DO UPDATE
		SET description = EXCLUDED.description, jurisdiction = EXCLUDED.jurisdiction`
	_, err := r.q.Exec(ctx, q, code.ID, code.Code, code.Description, code.Jurisdiction)
	if err != nil {
		return fmt.Errorf("upsert routing_code: %w", err)
	}
	return nil
}

func (r *RoutingCodeRepo) GetByCode(ctx context.Context, code string) (*entity.RoutingCode, error) {
	const q = `
		SELECT id, code, description, jurisdiction, created_at
		FROM routing_codes WHERE code = $1`
	var rc entity.RoutingCode
	err := r.q.QueryRow(ctx, q, code).Scan(&rc.ID, &rc.Code, &rc.Description, &rc.Jurisdiction, &rc.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get routing_code: %w", err)
	}
	return &rc, nil
}

// List devuelve los códigos, filtrados por jurisdicción si se indica.
func (r *RoutingCodeRepo) List(ctx context.Context, jurisdiction string) ([]*entity.RoutingCode, error) {
	const q = `
		SELECT id, code, description, jurisdiction, created_at
		FROM routing_codes
		WHERE $1 = '' OR jurisdiction = $1
		ORDER BY code`
	rows, err := r.q.Query(ctx, q, jurisdiction)
	if err != nil {
		return nil, fmt.Errorf("list routing_codes: %w", err)
	}
	defer rows.Close()
	var list []*entity.RoutingCode
	for rows.Next() {
		var rc entity.RoutingCode
		if err := rows.Scan(&rc.ID, &rc.Code, &rc.Description, &rc.Jurisdiction, &rc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan routing_code: %w", err)
		}
		list = append(list, &rc)
	}
	return list, rows.Err()
}
