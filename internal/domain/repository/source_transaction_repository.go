package repository

import (
	"context"

	"github.com/tu-usuario/facturador-pro/internal/domain/entity"
)

// SourceTransactionRepository define el puerto de persistencia para las
// transacciones de origen y su conciliación con el documento emitido.
type SourceTransactionRepository interface {
	Create(ctx context.Context, tx *entity.SourceTransaction) error
	CreateItem(ctx context.Context, item *entity.SourceTransactionItem) error
	CreateReference(ctx context.Context, ref *entity.SourceReferenceSpec) error

	GetByID(ctx context.Context, id string) (*entity.SourceTransaction, error)
	GetItems(ctx context.Context, sourceID string) ([]*entity.SourceTransactionItem, error)
	GetReferences(ctx context.Context, sourceID string) ([]*entity.SourceReferenceSpec, error)

	// LinkDocument registra el documento borrador en la transacción de origen.
	// Se ejecuta al crear el borrador, no al autorizar: es la guarda durable de
	// idempotencia ante reintentos tras caída del proceso.
	LinkDocument(ctx context.Context, id, documentID string) error

	// MarkIssued marca la transacción como facturada (solo tras autorización).
	MarkIssued(ctx context.Context, id string) error

	// MarkIssuanceFailed registra el motivo del fallo en last_error y deja el
	// estado en pending para que un operador corrija y reintente.
	MarkIssuanceFailed(ctx context.Context, id, reason string) error

	List(ctx context.Context, issuerID string, limit, offset int) ([]*entity.SourceTransaction, error)
}
