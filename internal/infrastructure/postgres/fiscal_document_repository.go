package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tu-usuario/facturador-pro/internal/domain/entity"
	"github.com/tu-usuario/facturador-pro/internal/domain/repository"
)

var _ repository.FiscalDocumentRepository = (*FiscalDocumentRepo)(nil)

// FiscalDocumentRepo implementación de FiscalDocumentRepository (usable con pool o tx).
type FiscalDocumentRepo struct {
	q Querier
}

// NewFiscalDocumentRepository construye el adaptador. Pasar pool o tx (Querier).
func NewFiscalDocumentRepository(q Querier) *FiscalDocumentRepo {
	return &FiscalDocumentRepo{q: q}
}

// Create persiste la cabecera del documento. La tripleta (issuer_id, series,
// number) tiene constraint único: una colisión de consecutivo es un bug del
// reservador y debe aflorar, no taparse.
func (r *FiscalDocumentRepo) Create(ctx context.Context, doc *entity.FiscalDocument) error {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	const q = `
		INSERT INTO fiscal_documents
			(id, issuer_id, source_id, series, number, operation_kind, status, issued_at,
			 counterpart_name, counterpart_tax_id, net_total, tax_total, grand_total,
			 complementary, cude, xml_signed, qr_data, track_id, authority_errors,
			 created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`
	_, err := r.q.Exec(ctx, q,
		doc.ID, doc.IssuerID, doc.SourceID, doc.Series, doc.Number,
		doc.OperationKind, doc.Status, doc.IssuedAt,
		doc.CounterpartName, doc.CounterpartTaxID,
		doc.NetTotal, doc.TaxTotal, doc.GrandTotal,
		nullIfEmpty(doc.Complementary), nullIfEmpty(doc.CUDE), nullIfEmpty(doc.XMLSigned),
		nullIfEmpty(doc.QRData), nullIfEmpty(doc.TrackID), nullIfEmpty(doc.AuthorityErrors),
		doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("el consecutivo %s ya existe: %w", doc.FullNumber(), err)
		}
		return fmt.Errorf("insert fiscal_document: %w", err)
	}
	return nil
}

// CreateItem persiste una línea del documento.
func (r *FiscalDocumentRepo) CreateItem(ctx context.Context, it *entity.LineItem) error {
	if it.ID == "" {
		it.ID = uuid.New().String()
	}
	const q = `
		INSERT INTO fiscal_document_items
			(id, document_id, product_code, description, unit_code, quantity, unit_price, tax_rate, tax_amount, subtotal)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.q.Exec(ctx, q,
		it.ID, it.DocumentID, it.ProductCode, it.Description, it.UnitCode,
		it.Quantity, it.UnitPrice, it.TaxRate, it.TaxAmount, it.Subtotal,
	)
	if err != nil {
		return fmt.Errorf("insert fiscal_document_item: %w", err)
	}
	return nil
}

// CreateReference persiste un documento referenciado (variante electrónica o de libro).
func (r *FiscalDocumentRepo) CreateReference(ctx context.Context, ref *entity.ReferencedDocument) error {
	if ref.ID == "" {
		ref.ID = uuid.New().String()
	}
	const q = `
		INSERT INTO fiscal_document_references
			(id, document_id, kind, electronic_key, jurisdiction, year_month, registration_id, book, book_series, book_number)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.q.Exec(ctx, q,
		ref.ID, ref.DocumentID, ref.Kind,
		nullIfEmpty(ref.ElectronicKey), nullIfEmpty(ref.Jurisdiction), nullIfEmpty(ref.YearMonth),
		nullIfEmpty(ref.RegistrationID), nullIfEmpty(ref.Book), nullIfEmpty(ref.BookSeries),
		ref.BookNumber,
	)
	if err != nil {
		return fmt.Errorf("insert fiscal_document_reference: %w", err)
	}
	return nil
}

// Update actualiza los campos de autoridad del documento. La tripleta
// (issuer_id, series, number) nunca se toca: es inmutable tras el insert.
func (r *FiscalDocumentRepo) Update(ctx context.Context, doc *entity.FiscalDocument) error {
	const q = `
		UPDATE fiscal_documents
		SET cude             = COALESCE($2, cude),
		    xml_signed       = COALESCE($3, xml_signed),
		    status           = $4,
		    qr_data          = COALESCE($5, qr_data),
		    track_id         = COALESCE($6, track_id),
		    authority_errors = COALESCE($7, authority_errors),
		    updated_at       = $8
		WHERE id = $1`
	_, err := r.q.Exec(ctx, q,
		doc.ID,
		nullIfEmpty(doc.CUDE),
		nullIfEmpty(doc.XMLSigned),
		doc.Status,
		nullIfEmpty(doc.QRData),
		nullIfEmpty(doc.TrackID),
		nullIfEmpty(doc.AuthorityErrors),
		doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update fiscal_document: %w", err)
	}
	return nil
}

// UpdateStatus cambia solo estado y errores de autoridad.
func (r *FiscalDocumentRepo) UpdateStatus(ctx context.Context, id, status, authorityErrors string) error {
	const q = `
		UPDATE fiscal_documents
		SET status = $2, authority_errors = COALESCE($3, authority_errors), updated_at = $4
		WHERE id = $1`
	_, err := r.q.Exec(ctx, q, id, status, nullIfEmpty(authorityErrors), time.Now())
	if err != nil {
		return fmt.Errorf("update fiscal_document status: %w", err)
	}
	return nil
}

// GetByID obtiene un documento completo por ID.
func (r *FiscalDocumentRepo) GetByID(ctx context.Context, id string) (*entity.FiscalDocument, error) {
	const q = `
		SELECT id, issuer_id, source_id, series, number, operation_kind, status, issued_at,
		       counterpart_name, counterpart_tax_id, net_total, tax_total, grand_total,
		       complementary, cude, xml_signed, qr_data, track_id, authority_errors,
		       created_at, updated_at
		FROM fiscal_documents WHERE id = $1`
	var doc entity.FiscalDocument
	var complementary, cude, xmlSigned, qrData, trackID, authErrors *string
	err := r.q.QueryRow(ctx, q, id).Scan(
		&doc.ID, &doc.IssuerID, &doc.SourceID, &doc.Series, &doc.Number,
		&doc.OperationKind, &doc.Status, &doc.IssuedAt,
		&doc.CounterpartName, &doc.CounterpartTaxID,
		&doc.NetTotal, &doc.TaxTotal, &doc.GrandTotal,
		&complementary, &cude, &xmlSigned, &qrData, &trackID, &authErrors,
		&doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get fiscal_document: %w", err)
	}
	doc.Complementary = derefStr(complementary)
	doc.CUDE = derefStr(cude)
	doc.XMLSigned = derefStr(xmlSigned)
	doc.QRData = derefStr(qrData)
	doc.TrackID = derefStr(trackID)
	doc.AuthorityErrors = derefStr(authErrors)
	return &doc, nil
}

// GetStatus devuelve solo los campos de estado (consulta ligera para polling).
func (r *FiscalDocumentRepo) GetStatus(ctx context.Context, id string) (*entity.FiscalDocument, error) {
	const q = `
		SELECT id, issuer_id, series, number, status,
		       COALESCE(cude, ''), COALESCE(track_id, ''), COALESCE(authority_errors, '')
		FROM fiscal_documents WHERE id = $1`
	var doc entity.FiscalDocument
	err := r.q.QueryRow(ctx, q, id).Scan(
		&doc.ID, &doc.IssuerID, &doc.Series, &doc.Number, &doc.Status,
		&doc.CUDE, &doc.TrackID, &doc.AuthorityErrors,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get fiscal_document status: %w", err)
	}
	return &doc, nil
}

// GetItems obtiene todas las líneas de un documento.
func (r *FiscalDocumentRepo) GetItems(ctx context.Context, documentID string) ([]*entity.LineItem, error) {
	const q = `
		SELECT id, document_id, product_code, description, unit_code, quantity, unit_price, tax_rate, tax_amount, subtotal
		FROM fiscal_document_items WHERE document_id = $1 ORDER BY id`
	rows, err := r.q.Query(ctx, q, documentID)
	if err != nil {
		return nil, fmt.Errorf("list fiscal_document_items: %w", err)
	}
	defer rows.Close()
	var list []*entity.LineItem
	for rows.Next() {
		var it entity.LineItem
		if err := rows.Scan(&it.ID, &it.DocumentID, &it.ProductCode, &it.Description, &it.UnitCode,
			&it.Quantity, &it.UnitPrice, &it.TaxRate, &it.TaxAmount, &it.Subtotal); err != nil {
			return nil, fmt.Errorf("scan fiscal_document_item: %w", err)
		}
		list = append(list, &it)
	}
	return list, rows.Err()
}

// GetReferences obtiene los documentos referenciados.
func (r *FiscalDocumentRepo) GetReferences(ctx context.Context, documentID string) ([]*entity.ReferencedDocument, error) {
	const q = `
		SELECT id, document_id, kind,
		       COALESCE(electronic_key, ''), COALESCE(jurisdiction, ''), COALESCE(year_month, ''),
		       COALESCE(registration_id, ''), COALESCE(book, ''), COALESCE(book_series, ''), book_number
		FROM fiscal_document_references WHERE document_id = $1 ORDER BY id`
	rows, err := r.q.Query(ctx, q, documentID)
	if err != nil {
		return nil, fmt.Errorf("list fiscal_document_references: %w", err)
	}
	defer rows.Close()
	var list []*entity.ReferencedDocument
	for rows.Next() {
		var ref entity.ReferencedDocument
		if err := rows.Scan(&ref.ID, &ref.DocumentID, &ref.Kind,
			&ref.ElectronicKey, &ref.Jurisdiction, &ref.YearMonth,
			&ref.RegistrationID, &ref.Book, &ref.BookSeries, &ref.BookNumber); err != nil {
			return nil, fmt.Errorf("scan fiscal_document_reference: %w", err)
		}
		list = append(list, &ref)
	}
	return list, rows.Err()
}
