package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tu-usuario/facturador-pro/internal/application/dto"
	"github.com/tu-usuario/facturador-pro/internal/application/issuance"
	"github.com/tu-usuario/facturador-pro/internal/domain"
	"github.com/tu-usuario/facturador-pro/internal/domain/entity"
	"github.com/tu-usuario/facturador-pro/internal/domain/repository"
)

// SourceTransactionUseCase registra y consulta las transacciones de origen
// (compras, depósitos, devoluciones, remesas) pendientes de facturar.
type SourceTransactionUseCase struct {
	repo     repository.SourceTransactionRepository
	txRunner issuance.TxRunner
}

// NewSourceTransactionUseCase construye el caso de uso.
func NewSourceTransactionUseCase(repo repository.SourceTransactionRepository, txRunner issuance.TxRunner) *SourceTransactionUseCase {
	return &SourceTransactionUseCase{repo: repo, txRunner: txRunner}
}

// Create registra la transacción con sus líneas y referencias en una sola
// transacción: o queda completa o no queda nada.
func (uc *SourceTransactionUseCase) Create(ctx context.Context, issuerID string, in dto.CreateSourceTransactionRequest) (*dto.SourceTransactionResponse, error) {
	if len(in.Items) == 0 {
		return nil, domain.ErrInvalidInput
	}
	occurredAt := in.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}
	src := &entity.SourceTransaction{
		ID:               uuid.New().String(),
		IssuerID:         issuerID,
		Kind:             in.Kind,
		Series:           in.Series,
		CounterpartName:  in.CounterpartName,
		CounterpartTaxID: in.CounterpartTaxID,
		Complementary:    in.Complementary,
		OccurredAt:       occurredAt,
		IssuanceStatus:   entity.IssuancePending,
	}

	err := uc.txRunner.RunIssuance(ctx, func(
		_ repository.FiscalDocumentRepository,
		sourceRepo repository.SourceTransactionRepository,
	) error {
		if err := sourceRepo.Create(ctx, src); err != nil {
			return err
		}
		for _, item := range in.Items {
			if err := sourceRepo.CreateItem(ctx, &entity.SourceTransactionItem{
				ID:          uuid.New().String(),
				SourceID:    src.ID,
				ProductCode: item.ProductCode,
				Description: item.Description,
				UnitCode:    item.UnitCode,
				Quantity:    item.Quantity,
				UnitPrice:   item.UnitPrice,
				TaxRate:     item.TaxRate,
			}); err != nil {
				return err
			}
		}
		for _, ref := range in.References {
			if err := sourceRepo.CreateReference(ctx, &entity.SourceReferenceSpec{
				ID:             uuid.New().String(),
				SourceID:       src.ID,
				Kind:           ref.Kind,
				ElectronicKey:  ref.ElectronicKey,
				Jurisdiction:   ref.Jurisdiction,
				YearMonth:      ref.YearMonth,
				RegistrationID: ref.RegistrationID,
				Book:           ref.Book,
				BookSeries:     ref.BookSeries,
				BookNumber:     ref.BookNumber,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entityToSourceResponse(src), nil
}

// GetByID obtiene una transacción de origen.
func (uc *SourceTransactionUseCase) GetByID(ctx context.Context, id string) (*dto.SourceTransactionResponse, error) {
	src, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if src == nil {
		return nil, nil
	}
	return entityToSourceResponse(src), nil
}

// List lista las transacciones del emisor con paginación.
func (uc *SourceTransactionUseCase) List(ctx context.Context, issuerID string, page dto.PageRequest) (*dto.SourceTransactionListResponse, error) {
	page.DefaultPage()
	list, err := uc.repo.List(ctx, issuerID, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	items := make([]dto.SourceTransactionResponse, 0, len(list))
	for _, src := range list {
		items = append(items, *entityToSourceResponse(src))
	}
	return &dto.SourceTransactionListResponse{
		Items: items,
		Page:  dto.PageResponse{Limit: page.Limit, Offset: page.Offset},
	}, nil
}

func entityToSourceResponse(src *entity.SourceTransaction) *dto.SourceTransactionResponse {
	if src == nil {
		return nil
	}
	return &dto.SourceTransactionResponse{
		ID:               src.ID,
		IssuerID:         src.IssuerID,
		Kind:             src.Kind,
		Series:           src.Series,
		CounterpartName:  src.CounterpartName,
		CounterpartTaxID: src.CounterpartTaxID,
		OccurredAt:       src.OccurredAt,
		IssuanceStatus:   src.IssuanceStatus,
		DocumentID:       src.DocumentID,
		LastError:        src.LastError,
		CreatedAt:        src.CreatedAt,
	}
}
