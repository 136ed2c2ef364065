package issuance_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tu-usuario/facturador-pro/internal/application/issuance"
	"github.com/tu-usuario/facturador-pro/internal/domain"
	"github.com/tu-usuario/facturador-pro/internal/domain/entity"
)

// TestReserve_ConcurrenciaSinColisiones: N reservas concurrentes sobre la misma
// serie deben producir exactamente el conjunto {k+1 .. k+N}: sin huecos en este
// escenario y, sobre todo, sin colisiones.
func TestReserve_ConcurrenciaSinColisiones(t *testing.T) {
	st := newFakeStore()
	repo := &fakeIssuerRepo{st: st}
	now := time.Now()
	require.NoError(t, repo.CreateSeries(context.Background(), &entity.IssuerSeries{
		ID: "series-1", IssuerID: "issuer-1", Prefix: "FV",
		RangeFrom: 1, RangeTo: 1_000_000, LastNumberUsed: 40, // k = 40
		DateFrom: now.AddDate(-1, 0, 0), DateTo: now.AddDate(1, 0, 0), IsActive: true,
	}))

	alloc := issuance.NewSequenceAllocator(repo)

	const n = 50
	results := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			num, err := alloc.Reserve(context.Background(), "issuer-1", "FV")
			assert.NoError(t, err, "ninguna reserva concurrente debe fallar")
			results <- num
		}()
	}
	wg.Wait()
	close(results)

	seen := map[int64]bool{}
	for num := range results {
		assert.False(t, seen[num], "el consecutivo %d se asignó dos veces", num)
		seen[num] = true
	}
	for want := int64(41); want <= int64(40+n); want++ {
		assert.True(t, seen[want], "falta el consecutivo %d en el conjunto asignado", want)
	}
	assert.Len(t, seen, n)
}

// TestReserve_SerieAgotada: superar el rango autorizado produce AllocationError
// sin escribir nada.
func TestReserve_SerieAgotada(t *testing.T) {
	st := newFakeStore()
	repo := &fakeIssuerRepo{st: st}
	now := time.Now()
	require.NoError(t, repo.CreateSeries(context.Background(), &entity.IssuerSeries{
		ID: "series-1", IssuerID: "issuer-1", Prefix: "FV",
		RangeFrom: 1, RangeTo: 5, LastNumberUsed: 5,
		DateFrom: now.AddDate(-1, 0, 0), DateTo: now.AddDate(1, 0, 0), IsActive: true,
	}))

	alloc := issuance.NewSequenceAllocator(repo)
	_, err := alloc.Reserve(context.Background(), "issuer-1", "FV")
	require.Error(t, err)
	assert.Equal(t, issuance.KindAllocation, issuance.KindOf(err))
	assert.ErrorIs(t, err, domain.ErrSeriesExhausted)

	sr, _ := repo.GetSeries(context.Background(), "issuer-1", "FV")
	assert.Equal(t, int64(5), sr.LastNumberUsed, "un fallo de reserva no debe mover el cursor")
}

// TestReserve_SerieInexistente traduce el fallo a AllocationError tipado.
func TestReserve_SerieInexistente(t *testing.T) {
	alloc := issuance.NewSequenceAllocator(&fakeIssuerRepo{st: newFakeStore()})
	_, err := alloc.Reserve(context.Background(), "issuer-1", "NOPE")
	require.Error(t, err)
	assert.Equal(t, issuance.KindAllocation, issuance.KindOf(err))
}
