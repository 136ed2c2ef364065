package repository

import (
	"context"

	"github.com/tu-usuario/facturador-pro/internal/domain/entity"
)

// IssuerRepository define el puerto de persistencia para emisores y sus
// series de numeración autorizadas.
type IssuerRepository interface {
	Create(ctx context.Context, issuer *entity.Issuer) error
	GetByID(ctx context.Context, id string) (*entity.Issuer, error)
	Update(ctx context.Context, issuer *entity.Issuer) error
	List(ctx context.Context) ([]*entity.Issuer, error)

	CreateSeries(ctx context.Context, series *entity.IssuerSeries) error

	// GetSeries devuelve la serie activa del emisor para el prefijo dado.
	// Es la consulta crítica antes de reservar número: sin serie activa y
	// vigente no hay emisión posible.
	GetSeries(ctx context.Context, issuerID, prefix string) (*entity.IssuerSeries, error)

	// ListSeries lista todas las series de un emisor (activas e inactivas).
	ListSeries(ctx context.Context, issuerID string) ([]*entity.IssuerSeries, error)

	// ReserveNumber consume atómicamente el siguiente consecutivo de la serie:
	// max(último usado en la serie, máximo ya persistido en documentos) + 1,
	// escrito sobre la serie en la misma sentencia. Los números reservados no
	// se devuelven nunca, aunque la emisión posterior falle.
	ReserveNumber(ctx context.Context, issuerID, prefix string) (int64, error)
}
