package repository

import (
	"context"

	"github.com/tu-usuario/facturador-pro/internal/domain/entity"
)

// RoutingCodeRepository define el puerto para la tabla de códigos de
// circunscripción/clasificación de referencia (carga vía cmd/seed).
type RoutingCodeRepository interface {
	Upsert(ctx context.Context, code *entity.RoutingCode) error
	GetByCode(ctx context.Context, code string) (*entity.RoutingCode, error)
	List(ctx context.Context, jurisdiction string) ([]*entity.RoutingCode, error)
}
