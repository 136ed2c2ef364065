package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tu-usuario/facturador-pro/internal/application/issuance"
	"github.com/tu-usuario/facturador-pro/internal/domain/repository"
)

var _ issuance.TxRunner = (*TxRunner)(nil)

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner construye el runner con el pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// RunIssuance inicia una transacción con los repositorios del agregado de
// emisión atados a la tx (documento + transacción de origen) y hace Commit o
// Rollback. Es la frontera de atomicidad del agregado: cabecera, líneas,
// referencias y enlace se escriben juntos o no se escribe nada.
func (r *TxRunner) RunIssuance(ctx context.Context, fn func(
	docRepo repository.FiscalDocumentRepository,
	sourceRepo repository.SourceTransactionRepository,
) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	docRepo := NewFiscalDocumentRepository(tx)
	sourceRepo := NewSourceTransactionRepository(tx)

	if err := fn(docRepo, sourceRepo); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
