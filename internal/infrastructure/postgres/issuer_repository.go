package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tu-usuario/facturador-pro/internal/domain"
	"github.com/tu-usuario/facturador-pro/internal/domain/entity"
	"github.com/tu-usuario/facturador-pro/internal/domain/repository"
)

var _ repository.IssuerRepository = (*IssuerRepo)(nil)

// IssuerRepo implementa IssuerRepository sobre PostgreSQL (usable con pool o tx).
type IssuerRepo struct {
	q Querier
}

// NewIssuerRepository construye el adaptador. Pasar pool o tx (Querier).
func NewIssuerRepository(q Querier) *IssuerRepo {
	return &IssuerRepo{q: q}
}

func (r *IssuerRepo) Create(ctx context.Context, is *entity.Issuer) error {
	if is.ID == "" {
		is.ID = uuid.New().String()
	}
	const q = `
		INSERT INTO issuers (id, name, nit, address, phone, email, environment, technical_key, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())`
	_, err := r.q.Exec(ctx, q,
		is.ID, is.Name, is.NIT, nullIfEmpty(is.Address), nullIfEmpty(is.Phone), nullIfEmpty(is.Email),
		is.Environment, nullIfEmpty(is.TechnicalKey), is.Status,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert issuer: %w", err)
	}
	return nil
}

func (r *IssuerRepo) GetByID(ctx context.Context, id string) (*entity.Issuer, error) {
	const q = `
		SELECT id, name, nit, COALESCE(address, ''), COALESCE(phone, ''), COALESCE(email, ''),
		       environment, COALESCE(technical_key, ''), status, created_at, updated_at
		FROM issuers WHERE id = $1`
	var is entity.Issuer
	err := r.q.QueryRow(ctx, q, id).Scan(
		&is.ID, &is.Name, &is.NIT, &is.Address, &is.Phone, &is.Email,
		&is.Environment, &is.TechnicalKey, &is.Status, &is.CreatedAt, &is.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get issuer: %w", err)
	}
	return &is, nil
}

func (r *IssuerRepo) Update(ctx context.Context, is *entity.Issuer) error {
	const q = `
		UPDATE issuers
		SET name = $2, nit = $3, address = $4, phone = $5, email = $6,
		    environment = $7, technical_key = $8, status = $9, updated_at = now()
		WHERE id = $1`
	_, err := r.q.Exec(ctx, q,
		is.ID, is.Name, is.NIT, nullIfEmpty(is.Address), nullIfEmpty(is.Phone), nullIfEmpty(is.Email),
		is.Environment, nullIfEmpty(is.TechnicalKey), is.Status,
	)
	if err != nil {
		return fmt.Errorf("update issuer: %w", err)
	}
	return nil
}

func (r *IssuerRepo) List(ctx context.Context) ([]*entity.Issuer, error) {
	const q = `
		SELECT id, name, nit, COALESCE(address, ''), COALESCE(phone, ''), COALESCE(email, ''),
		       environment, COALESCE(technical_key, ''), status, created_at, updated_at
		FROM issuers ORDER BY created_at DESC`
	rows, err := r.q.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list issuers: %w", err)
	}
	defer rows.Close()
	var list []*entity.Issuer
	for rows.Next() {
		var is entity.Issuer
		if err := rows.Scan(
			&is.ID, &is.Name, &is.NIT, &is.Address, &is.Phone, &is.Email,
			&is.Environment, &is.TechnicalKey, &is.Status, &is.CreatedAt, &is.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan issuer: %w", err)
		}
		list = append(list, &is)
	}
	return list, rows.Err()
}

func (r *IssuerRepo) CreateSeries(ctx context.Context, sr *entity.IssuerSeries) error {
	if sr.ID == "" {
		sr.ID = uuid.New().String()
	}
	const q = `
		INSERT INTO issuer_series
			(id, issuer_id, authorization_number, prefix, range_from, range_to, last_number_used, date_from, date_to, is_active, created_at, updated_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())`
	_, err := r.q.Exec(ctx, q,
		sr.ID, sr.IssuerID, sr.AuthorizationNumber, sr.Prefix,
		sr.RangeFrom, sr.RangeTo, sr.LastNumberUsed, sr.DateFrom, sr.DateTo, sr.IsActive,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert issuer_series: %w", err)
	}
	return nil
}

// GetSeries devuelve la serie activa más reciente del emisor para el prefijo.
func (r *IssuerRepo) GetSeries(ctx context.Context, issuerID, prefix string) (*entity.IssuerSeries, error) {
	const q = `
		SELECT id, issuer_id, authorization_number, prefix, range_from, range_to,
		       last_number_used, date_from, date_to, is_active, created_at, updated_at
		FROM issuer_series
		WHERE issuer_id = $1 AND prefix = $2 AND is_active = true
		ORDER BY date_from DESC
		LIMIT 1`
	sr, err := scanSeries(r.q.QueryRow(ctx, q, issuerID, prefix))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get issuer_series: %w", err)
	}
	return sr, nil
}

func (r *IssuerRepo) ListSeries(ctx context.Context, issuerID string) ([]*entity.IssuerSeries, error) {
	const q = `
		SELECT id, issuer_id, authorization_number, prefix, range_from, range_to,
		       last_number_used, date_from, date_to, is_active, created_at, updated_at
		FROM issuer_series
		WHERE issuer_id = $1
		ORDER BY date_from DESC`
	rows, err := r.q.Query(ctx, q, issuerID)
	if err != nil {
		return nil, fmt.Errorf("list issuer_series: %w", err)
	}
	defer rows.Close()
	var list []*entity.IssuerSeries
	for rows.Next() {
		sr, err := scanSeries(rows)
		if err != nil {
			return nil, fmt.Errorf("scan issuer_series: %w", err)
		}
		list = append(list, sr)
	}
	return list, rows.Err()
}

// ReserveNumber consume el siguiente consecutivo de la serie en una sola
// sentencia atómica: el cursor avanza a
// max(last_number_used, máximo ya persistido en fiscal_documents) + 1 y el
// RETURNING entrega el número reservado. Dos reservas concurrentes serializan
// sobre el lock de fila del UPDATE, así que no hay colisiones posibles; los
// números consumidos no se devuelven aunque la emisión posterior falle.
func (r *IssuerRepo) ReserveNumber(ctx context.Context, issuerID, prefix string) (int64, error) {
	const q = `
		UPDATE issuer_series s
		SET last_number_used = GREATEST(
		        s.last_number_used,
		        COALESCE((SELECT MAX(d.number)
		                  FROM fiscal_documents d
		                  WHERE d.issuer_id = s.issuer_id AND d.series = s.prefix), 0)
		    ) + 1,
		    updated_at = now()
		WHERE s.issuer_id = $1
		  AND s.prefix    = $2
		  AND s.is_active = true
		  AND now() BETWEEN s.date_from AND s.date_to
		  AND GREATEST(
		        s.last_number_used,
		        COALESCE((SELECT MAX(d.number)
		                  FROM fiscal_documents d
		                  WHERE d.issuer_id = s.issuer_id AND d.series = s.prefix), 0)
		      ) + 1 <= s.range_to
		RETURNING s.last_number_used`
	var number int64
	err := r.q.QueryRow(ctx, q, issuerID, prefix).Scan(&number)
	if err == nil {
		return number, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("reserve number: %w", err)
	}

	// Sin fila afectada: distinguir serie inexistente, vencida o agotada.
	sr, gerr := r.GetSeries(ctx, issuerID, prefix)
	if gerr != nil {
		return 0, gerr
	}
	if sr == nil {
		return 0, domain.ErrSeriesNotFound
	}
	if !sr.Vigente(time.Now()) {
		return 0, domain.ErrSeriesInactive
	}
	return 0, domain.ErrSeriesExhausted
}

// ── helpers ───────────────────────────────────────────────────────────────────

// pgxScanner abstrae pgx.Row y pgx.Rows para reutilizar scanSeries.
type pgxScanner interface {
	Scan(dest ...any) error
}

func scanSeries(row pgxScanner) (*entity.IssuerSeries, error) {
	var sr entity.IssuerSeries
	err := row.Scan(
		&sr.ID, &sr.IssuerID, &sr.AuthorizationNumber, &sr.Prefix,
		&sr.RangeFrom, &sr.RangeTo, &sr.LastNumberUsed,
		&sr.DateFrom, &sr.DateTo,
		&sr.IsActive, &sr.CreatedAt, &sr.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &sr, nil
}
