package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tipos de transacción de origen que disparan una emisión.
const (
	SourceKindPurchase = "purchase" // compra
	SourceKindDeposit  = "deposit"  // depósito / recepción en custodia
	SourceKindReturn   = "return"   // devolución
	SourceKindShipment = "shipment" // remesa / salida
)

// Estado de facturación de la transacción de origen.
const (
	IssuancePending  = "pending"
	IssuanceInvoiced = "invoiced"
	IssuanceFailed   = "failed"
)

// SourceTransaction representa el negocio de origen (compra, depósito,
// devolución, remesa) a partir del cual se emite un documento fiscal.
// DocumentID se enlaza al crear el borrador del documento; IssuanceStatus
// solo pasa a invoiced cuando la autoridad autoriza.
type SourceTransaction struct {
	ID               string
	IssuerID         string
	Kind             string // purchase | deposit | return | shipment
	Series           string // prefijo de la serie con la que debe emitirse
	CounterpartName  string
	CounterpartTaxID string
	Complementary    string
	OccurredAt       time.Time
	IssuanceStatus   string  // pending | invoiced | failed
	DocumentID       *string // documento fiscal asociado (nil hasta crear el borrador)
	LastError        string  // último motivo de fallo de emisión registrado
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// OperationKind deriva el sentido de la operación del tipo de transacción.
func (t *SourceTransaction) OperationKind() string {
	switch t.Kind {
	case SourceKindReturn, SourceKindShipment:
		return OperationOutbound
	default:
		return OperationInbound
	}
}

// SourceTransactionItem es una línea de la transacción de origen; siembra
// la línea correspondiente del documento fiscal como snapshot puro.
type SourceTransactionItem struct {
	ID          string
	SourceID    string
	ProductCode string
	Description string
	UnitCode    string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	TaxRate     decimal.Decimal
}

// SourceReferenceSpec describe un documento que el documento emitido debe
// referenciar (misma dualidad electrónica/papel que ReferencedDocument).
type SourceReferenceSpec struct {
	ID             string
	SourceID       string
	Kind           string // electronic | paper
	ElectronicKey  string
	Jurisdiction   string
	YearMonth      string
	RegistrationID string
	Book           string
	BookSeries     string
	BookNumber     int64
}
