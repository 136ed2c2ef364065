package repository

import (
	"context"

	"github.com/tu-usuario/facturador-pro/internal/domain/entity"
)

// FiscalDocumentRepository define el puerto de persistencia para el agregado
// documento fiscal (cabecera + líneas + referencias).
type FiscalDocumentRepository interface {
	Create(ctx context.Context, doc *entity.FiscalDocument) error
	CreateItem(ctx context.Context, item *entity.LineItem) error
	CreateReference(ctx context.Context, ref *entity.ReferencedDocument) error

	// Update actualiza los campos de autoridad del documento:
	// cude, xml_signed, status, qr_data, track_id, authority_errors.
	Update(ctx context.Context, doc *entity.FiscalDocument) error

	// UpdateStatus cambia solo el estado y los errores de autoridad (ligero,
	// para las transiciones transmitted/authorized/rejected/error).
	UpdateStatus(ctx context.Context, id, status, authorityErrors string) error

	GetByID(ctx context.Context, id string) (*entity.FiscalDocument, error)
	GetItems(ctx context.Context, documentID string) ([]*entity.LineItem, error)
	GetReferences(ctx context.Context, documentID string) ([]*entity.ReferencedDocument, error)

	// GetStatus devuelve solo los campos de estado (ligero, para polling).
	GetStatus(ctx context.Context, id string) (*entity.FiscalDocument, error)
}
