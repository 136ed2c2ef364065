package issuance

import (
	"context"
	"time"

	"github.com/tu-usuario/facturador-pro/internal/domain/entity"
	"github.com/tu-usuario/facturador-pro/internal/domain/repository"
)

// DocumentSubmission agrupa todo lo que el gateway necesita para construir,
// firmar y entregar el documento a la autoridad.
type DocumentSubmission struct {
	Issuer     *entity.Issuer
	Series     *entity.IssuerSeries
	Document   *entity.FiscalDocument
	Items      []*entity.LineItem
	References []*entity.ReferencedDocument
}

// SubmitResult resultado de la entrega al WS de la autoridad.
type SubmitResult struct {
	TrackID  string // ZipKey devuelto por el WS tras recibir el paquete
	Accepted bool   // true si el WS aceptó el paquete para procesamiento
	Errors   string // mensajes de rechazo inmediato (payload malformado, etc.)
}

// Estados que puede devolver Poll.
const (
	PollProcessing = "processing" // aún sin veredicto
	PollAuthorized = "authorized"
	PollRejected   = "rejected"
	PollTimeout    = "timeout" // presupuesto de consultas agotado sin veredicto
	PollError      = "error"   // la autoridad reportó un error de procesamiento
)

// PollResult resultado de la consulta de estado acotada.
type PollResult struct {
	Status  string // authorized | rejected | timeout | error
	Details string // mensajes de la autoridad (vacío si no hay)
}

// AuthorityGateway define el puerto de salida hacia la autoridad certificadora.
// La implementación concreta usa SOAP; para tests se inyecta un stub.
type AuthorityGateway interface {
	// Submit construye el XML, lo firma, lo empaqueta y lo entrega al WS.
	// Un error de red o de generación es TransmissionError para el caller;
	// Accepted=false significa rechazo inmediato del paquete (no hay TrackID útil).
	Submit(ctx context.Context, sub *DocumentSubmission) (*SubmitResult, error)

	// Poll consulta el estado hasta maxAttempts veces con pausa fija entre
	// intentos. Devuelve timeout si se agota el presupuesto sin veredicto.
	// Honra la cancelación del contexto: deja de esperar pero jamás retracta
	// el envío ya realizado.
	Poll(ctx context.Context, trackID, documentID string, maxAttempts int, interval time.Duration) (*PollResult, error)
}

// TxRunner ejecuta fn dentro de una transacción que cubre la escritura del
// agregado documento + el enlace a la transacción de origen. Cualquier error
// de fn revierte la unidad completa.
type TxRunner interface {
	RunIssuance(ctx context.Context, fn func(
		docRepo repository.FiscalDocumentRepository,
		sourceRepo repository.SourceTransactionRepository,
	) error) error
}
