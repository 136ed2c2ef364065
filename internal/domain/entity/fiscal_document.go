package entity

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Estados del documento fiscal frente a la autoridad.
const (
	DocumentStatusDraft       = "draft"       // Persistido con número reservado, aún sin transmitir
	DocumentStatusTransmitted = "transmitted" // Enviado al WS de la autoridad, respuesta pendiente
	DocumentStatusAuthorized  = "authorized"  // Autorizado por la autoridad
	DocumentStatusRejected    = "rejected"    // Rechazado por la autoridad con errores
	DocumentStatusError       = "error"       // Falló la generación, firma o transmisión
)

// Sentido de la operación que el documento ampara.
const (
	OperationInbound  = "inbound"  // Recepción (compras, depósitos)
	OperationOutbound = "outbound" // Salida (devoluciones, remesas)
)

// FiscalDocument representa la cabecera de un documento fiscal electrónico.
// La tripleta (IssuerID, Series, Number) es inmutable tras la primera escritura.
type FiscalDocument struct {
	ID               string
	IssuerID         string
	SourceID         string // Transacción de origen que motivó la emisión
	Series           string // Prefijo de la serie autorizada
	Number           int64  // Consecutivo asignado por el reservador de numeración
	OperationKind    string // inbound | outbound
	Status           string // draft, transmitted, authorized, rejected, error
	IssuedAt         time.Time
	CounterpartName  string // Snapshot de la contraparte al momento de emitir
	CounterpartTaxID string
	NetTotal         decimal.Decimal
	TaxTotal         decimal.Decimal
	GrandTotal       decimal.Decimal
	Complementary    string // Información complementaria libre (observaciones)
	CUDE             string // Código único del documento (SHA-384)
	XMLSigned        string // XML firmado (contenido completo)
	QRData           string // String para QR (NumDoc|FecDoc|...|CUDE|UrlValidacion)
	TrackID          string // ZipKey / TrackID devuelto por el WS tras el envío
	AuthorityErrors  string // Mensajes de rechazo devueltos por la autoridad
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// FullNumber devuelve la representación prefijo+consecutivo con relleno a
// nueve dígitos, como exige el nombre de archivo y la cadena del CUDE.
func (d *FiscalDocument) FullNumber() string {
	return fmt.Sprintf("%s%09d", d.Series, d.Number)
}
