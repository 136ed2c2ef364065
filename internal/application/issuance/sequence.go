package issuance

import (
	"context"
	"fmt"

	"github.com/tu-usuario/facturador-pro/internal/domain/repository"
)

// SequenceAllocator reserva consecutivos de una serie autorizada. La atomicidad
// la garantiza el repositorio (una sola sentencia read-modify-write sobre la
// serie); aquí solo se traduce el fallo a la taxonomía de emisión.
//
// Los números reservados se consumen siempre: si la emisión posterior falla,
// el hueco queda y el siguiente intento recibe un número estrictamente mayor.
type SequenceAllocator struct {
	issuers repository.IssuerRepository
}

// NewSequenceAllocator construye el reservador.
func NewSequenceAllocator(issuers repository.IssuerRepository) *SequenceAllocator {
	return &SequenceAllocator{issuers: issuers}
}

// Reserve consume el siguiente número de la serie del emisor.
func (a *SequenceAllocator) Reserve(ctx context.Context, issuerID, prefix string) (int64, error) {
	n, err := a.issuers.ReserveNumber(ctx, issuerID, prefix)
	if err != nil {
		return 0, newError(KindAllocation, StateReservingNumber,
			fmt.Sprintf("no se pudo reservar consecutivo de la serie %s", prefix), err)
	}
	return n, nil
}
