package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tu-usuario/facturador-pro/internal/domain"
	"github.com/tu-usuario/facturador-pro/internal/domain/entity"
	"github.com/tu-usuario/facturador-pro/internal/domain/repository"
)

var _ repository.SourceTransactionRepository = (*SourceTransactionRepo)(nil)

// SourceTransactionRepo implementa SourceTransactionRepository sobre PostgreSQL.
type SourceTransactionRepo struct {
	q Querier
}

// NewSourceTransactionRepository construye el adaptador. Pasar pool o tx (Querier).
func NewSourceTransactionRepository(q Querier) *SourceTransactionRepo {
	return &SourceTransactionRepo{q: q}
}

func (r *SourceTransactionRepo) Create(ctx context.Context, tx *entity.SourceTransaction) error {
	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	if tx.IssuanceStatus == "" {
		tx.IssuanceStatus = entity.IssuancePending
	}
	const q = `
		INSERT INTO source_transactions
			(id, issuer_id, kind, series, counterpart_name, counterpart_tax_id, complementary,
			 occurred_at, issuance_status, document_id, last_error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())`
	_, err := r.q.Exec(ctx, q,
		tx.ID, tx.IssuerID, tx.Kind, tx.Series,
		tx.CounterpartName, tx.CounterpartTaxID, nullIfEmpty(tx.Complementary),
		tx.OccurredAt, tx.IssuanceStatus, tx.DocumentID, nullIfEmpty(tx.LastError),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert source_transaction: %w", err)
	}
	return nil
}

func (r *SourceTransactionRepo) CreateItem(ctx context.Context, item *entity.SourceTransactionItem) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	const q = `
		INSERT INTO source_transaction_items
			(id, source_id, product_code, description, unit_code, quantity, unit_price, tax_rate)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.q.Exec(ctx, q,
		item.ID, item.SourceID, item.ProductCode, item.Description, item.UnitCode,
		item.Quantity, item.UnitPrice, item.TaxRate,
	)
	if err != nil {
		return fmt.Errorf("insert source_transaction_item: %w", err)
	}
	return nil
}

func (r *SourceTransactionRepo) CreateReference(ctx context.Context, ref *entity.SourceReferenceSpec) error {
	if ref.ID == "" {
		ref.ID = uuid.New().String()
	}
	const q = `
		INSERT INTO source_reference_specs
			(id, source_id, kind, electronic_key, jurisdiction, year_month, registration_id, book, book_series, book_number)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.q.Exec(ctx, q,
		ref.ID, ref.SourceID, ref.Kind,
		nullIfEmpty(ref.ElectronicKey), nullIfEmpty(ref.Jurisdiction), nullIfEmpty(ref.YearMonth),
		nullIfEmpty(ref.RegistrationID), nullIfEmpty(ref.Book), nullIfEmpty(ref.BookSeries),
		ref.BookNumber,
	)
	if err != nil {
		return fmt.Errorf("insert source_reference_spec: %w", err)
	}
	return nil
}

func (r *SourceTransactionRepo) GetByID(ctx context.Context, id string) (*entity.SourceTransaction, error) {
	const q = `
		SELECT id, issuer_id, kind, series, counterpart_name, counterpart_tax_id,
		       COALESCE(complementary, ''), occurred_at, issuance_status, document_id,
		       COALESCE(last_error, ''), created_at, updated_at
		FROM source_transactions WHERE id = $1`
	tx, err := scanSource(r.q.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get source_transaction: %w", err)
	}
	return tx, nil
}

func (r *SourceTransactionRepo) GetItems(ctx context.Context, sourceID string) ([]*entity.SourceTransactionItem, error) {
	const q = `
		SELECT id, source_id, product_code, description, unit_code, quantity, unit_price, tax_rate
		FROM source_transaction_items WHERE source_id = $1 ORDER BY id`
	rows, err := r.q.Query(ctx, q, sourceID)
	if err != nil {
		return nil, fmt.Errorf("list source_transaction_items: %w", err)
	}
	defer rows.Close()
	var list []*entity.SourceTransactionItem
	for rows.Next() {
		var it entity.SourceTransactionItem
		if err := rows.Scan(&it.ID, &it.SourceID, &it.ProductCode, &it.Description, &it.UnitCode,
			&it.Quantity, &it.UnitPrice, &it.TaxRate); err != nil {
			return nil, fmt.Errorf("scan source_transaction_item: %w", err)
		}
		list = append(list, &it)
	}
	return list, rows.Err()
}

func (r *SourceTransactionRepo) GetReferences(ctx context.Context, sourceID string) ([]*entity.SourceReferenceSpec, error) {
	const q = `
		SELECT id, source_id, kind,
		       COALESCE(electronic_key, ''), COALESCE(jurisdiction, ''), COALESCE(year_month, ''),
		       COALESCE(registration_id, ''), COALESCE(book, ''), COALESCE(book_series, ''), book_number
		FROM source_reference_specs WHERE source_id = $1 ORDER BY id`
	rows, err := r.q.Query(ctx, q, sourceID)
	if err != nil {
		return nil, fmt.Errorf("list source_reference_specs: %w", err)
	}
	defer rows.Close()
	var list []*entity.SourceReferenceSpec
	for rows.Next() {
		var ref entity.SourceReferenceSpec
		if err := rows.Scan(&ref.ID, &ref.SourceID, &ref.Kind,
			&ref.ElectronicKey, &ref.Jurisdiction, &ref.YearMonth,
			&ref.RegistrationID, &ref.Book, &ref.BookSeries, &ref.BookNumber); err != nil {
			return nil, fmt.Errorf("scan source_reference_spec: %w", err)
		}
		list = append(list, &ref)
	}
	return list, rows.Err()
}

// LinkDocument registra el documento borrador en la transacción de origen.
// Escribirlo dentro de la misma tx que crea el borrador lo convierte en la
// guarda durable contra dobles emisiones tras caída del proceso.
func (r *SourceTransactionRepo) LinkDocument(ctx context.Context, id, documentID string) error {
	const q = `
		UPDATE source_transactions
		SET document_id = $2, updated_at = now()
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, q, id, documentID)
	if err != nil {
		return fmt.Errorf("link document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// MarkIssued marca la transacción como facturada. Solo se invoca tras la
// autorización del documento.
func (r *SourceTransactionRepo) MarkIssued(ctx context.Context, id string) error {
	const q = `
		UPDATE source_transactions
		SET issuance_status = $2, last_error = NULL, updated_at = now()
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, q, id, entity.IssuanceInvoiced)
	if err != nil {
		return fmt.Errorf("mark issued: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// MarkIssuanceFailed registra el motivo en last_error pero deja el estado en
// pending: un operador corrige la causa y el reintento es posible sin tocar
// nada más.
func (r *SourceTransactionRepo) MarkIssuanceFailed(ctx context.Context, id, reason string) error {
	const q = `
		UPDATE source_transactions
		SET last_error = $2, updated_at = now()
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, q, id, reason)
	if err != nil {
		return fmt.Errorf("mark issuance failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *SourceTransactionRepo) List(ctx context.Context, issuerID string, limit, offset int) ([]*entity.SourceTransaction, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
		SELECT id, issuer_id, kind, series, counterpart_name, counterpart_tax_id,
		       COALESCE(complementary, ''), occurred_at, issuance_status, document_id,
		       COALESCE(last_error, ''), created_at, updated_at
		FROM source_transactions
		WHERE issuer_id = $1
		ORDER BY occurred_at DESC
		LIMIT $2 OFFSET $3`
	rows, err := r.q.Query(ctx, q, issuerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list source_transactions: %w", err)
	}
	defer rows.Close()
	var list []*entity.SourceTransaction
	for rows.Next() {
		tx, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan source_transaction: %w", err)
		}
		list = append(list, tx)
	}
	return list, rows.Err()
}

func scanSource(row pgxScanner) (*entity.SourceTransaction, error) {
	var tx entity.SourceTransaction
	err := row.Scan(
		&tx.ID, &tx.IssuerID, &tx.Kind, &tx.Series,
		&tx.CounterpartName, &tx.CounterpartTaxID, &tx.Complementary,
		&tx.OccurredAt, &tx.IssuanceStatus, &tx.DocumentID,
		&tx.LastError, &tx.CreatedAt, &tx.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &tx, nil
}
