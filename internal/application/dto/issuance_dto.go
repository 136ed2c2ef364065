package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateSourceTransactionRequest entrada para registrar una transacción de
// origen pendiente de facturar.
type CreateSourceTransactionRequest struct {
	Kind             string                       `json:"kind" validate:"required,oneof=purchase deposit return shipment"`
	Series           string                       `json:"series" validate:"required,min=1,max=10"`
	CounterpartName  string                       `json:"counterpart_name" validate:"required,min=1,max=200"`
	CounterpartTaxID string                       `json:"counterpart_tax_id" validate:"required,min=1,max=20"`
	Complementary    string                       `json:"complementary"`
	OccurredAt       time.Time                    `json:"occurred_at"`
	Items            []SourceTransactionItemInput `json:"items" validate:"required,min=1,dive"`
	References       []SourceReferenceInput       `json:"references" validate:"dive"`
}

// SourceTransactionItemInput línea de la transacción de origen.
type SourceTransactionItemInput struct {
	ProductCode string          `json:"product_code"`
	Description string          `json:"description" validate:"required,min=1,max=300"`
	UnitCode    string          `json:"unit_code"`
	Quantity    decimal.Decimal `json:"quantity" validate:"required"`
	UnitPrice   decimal.Decimal `json:"unit_price" validate:"required"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
}

// SourceReferenceInput documento que el emitido debe referenciar: variante
// electrónica (electronic_key) o de libro (los demás campos).
type SourceReferenceInput struct {
	Kind           string `json:"kind" validate:"required,oneof=electronic paper"`
	ElectronicKey  string `json:"electronic_key"`
	Jurisdiction   string `json:"jurisdiction"`
	YearMonth      string `json:"year_month"`
	RegistrationID string `json:"registration_id"`
	Book           string `json:"book"`
	BookSeries     string `json:"book_series"`
	BookNumber     int64  `json:"book_number"`
}

// SourceTransactionResponse salida de una transacción de origen.
type SourceTransactionResponse struct {
	ID               string    `json:"id"`
	IssuerID         string    `json:"issuer_id"`
	Kind             string    `json:"kind"`
	Series           string    `json:"series"`
	CounterpartName  string    `json:"counterpart_name"`
	CounterpartTaxID string    `json:"counterpart_tax_id"`
	OccurredAt       time.Time `json:"occurred_at"`
	IssuanceStatus   string    `json:"issuance_status"`
	DocumentID       *string   `json:"document_id,omitempty"`
	LastError        string    `json:"last_error,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// SourceTransactionListResponse lista paginada.
type SourceTransactionListResponse struct {
	Items []SourceTransactionResponse `json:"items"`
	Page  PageResponse                `json:"page"`
}

// IssuanceProgressEvent evento de avance de una emisión (streaming).
type IssuanceProgressEvent struct {
	SourceID   string `json:"source_id"`
	DocumentID string `json:"document_id,omitempty"`
	State      string `json:"state"`
	Percent    int    `json:"percent"`
	Message    string `json:"message,omitempty"`
}

// FiscalDocumentResponse salida del documento emitido.
type FiscalDocumentResponse struct {
	ID              string          `json:"id"`
	IssuerID        string          `json:"issuer_id"`
	SourceID        string          `json:"source_id"`
	FullNumber      string          `json:"full_number"`
	Series          string          `json:"series"`
	Number          int64           `json:"number"`
	OperationKind   string          `json:"operation_kind"`
	Status          string          `json:"status"`
	IssuedAt        time.Time       `json:"issued_at"`
	CounterpartName string          `json:"counterpart_name"`
	NetTotal        decimal.Decimal `json:"net_total"`
	TaxTotal        decimal.Decimal `json:"tax_total"`
	GrandTotal      decimal.Decimal `json:"grand_total"`
	CUDE            string          `json:"cude,omitempty"`
	QRData          string          `json:"qr_data,omitempty"`
	TrackID         string          `json:"track_id,omitempty"`
	AuthorityErrors string          `json:"authority_errors,omitempty"`
}

// IssueResponse resultado de una emisión síncrona.
type IssueResponse struct {
	State    string                  `json:"state"`
	Document *FiscalDocumentResponse `json:"document,omitempty"`
}
