package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tu-usuario/facturador-pro/internal/application/dto"
	"github.com/tu-usuario/facturador-pro/internal/domain"
	"github.com/tu-usuario/facturador-pro/internal/domain/entity"
	"github.com/tu-usuario/facturador-pro/internal/domain/repository"
	"github.com/tu-usuario/facturador-pro/pkg/fiscal"
)

// IssuerUseCase aplica reglas de negocio para emisores y sus series autorizadas.
type IssuerUseCase struct {
	repo repository.IssuerRepository
}

// NewIssuerUseCase construye el caso de uso con el puerto de persistencia.
func NewIssuerUseCase(repo repository.IssuerRepository) *IssuerUseCase {
	return &IssuerUseCase{repo: repo}
}

// Create registra un emisor. Valida el dígito de verificación del NIT.
func (uc *IssuerUseCase) Create(ctx context.Context, in dto.CreateIssuerRequest) (*dto.IssuerResponse, error) {
	if err := fiscal.ValidateNITVerificationDigit(in.NIT); err != nil {
		return nil, err
	}
	env := in.Environment
	if env == "" {
		env = "2" // habilitación por defecto: nadie arranca en producción
	}
	now := time.Now()
	issuer := &entity.Issuer{
		ID:           uuid.New().String(),
		Name:         in.Name,
		NIT:          in.NIT,
		Address:      in.Address,
		Phone:        in.Phone,
		Email:        in.Email,
		Environment:  env,
		TechnicalKey: in.TechnicalKey,
		Status:       "active",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := uc.repo.Create(ctx, issuer); err != nil {
		return nil, err
	}
	return entityToIssuerResponse(issuer), nil
}

// GetByID obtiene un emisor por ID.
func (uc *IssuerUseCase) GetByID(ctx context.Context, id string) (*dto.IssuerResponse, error) {
	issuer, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if issuer == nil {
		return nil, nil
	}
	return entityToIssuerResponse(issuer), nil
}

// List lista los emisores registrados.
func (uc *IssuerUseCase) List(ctx context.Context) (*dto.IssuerListResponse, error) {
	list, err := uc.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]dto.IssuerResponse, 0, len(list))
	for _, is := range list {
		items = append(items, *entityToIssuerResponse(is))
	}
	return &dto.IssuerListResponse{Items: items}, nil
}

// Update actualiza los campos provistos del emisor.
func (uc *IssuerUseCase) Update(ctx context.Context, id string, in dto.UpdateIssuerRequest) (*dto.IssuerResponse, error) {
	issuer, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if issuer == nil {
		return nil, domain.ErrNotFound
	}
	if in.Name != nil {
		issuer.Name = *in.Name
	}
	if in.Address != nil {
		issuer.Address = *in.Address
	}
	if in.Phone != nil {
		issuer.Phone = *in.Phone
	}
	if in.Email != nil {
		issuer.Email = *in.Email
	}
	if in.Environment != nil {
		issuer.Environment = *in.Environment
	}
	if in.TechnicalKey != nil {
		issuer.TechnicalKey = *in.TechnicalKey
	}
	if in.Status != nil {
		issuer.Status = *in.Status
	}
	issuer.UpdatedAt = time.Now()
	if err := uc.repo.Update(ctx, issuer); err != nil {
		return nil, err
	}
	return entityToIssuerResponse(issuer), nil
}

// CreateSeries registra una serie autorizada del emisor. El cursor arranca en
// range_from - 1: el primer número reservado será range_from.
func (uc *IssuerUseCase) CreateSeries(ctx context.Context, issuerID string, in dto.CreateSeriesRequest) (*dto.SeriesResponse, error) {
	issuer, err := uc.repo.GetByID(ctx, issuerID)
	if err != nil {
		return nil, err
	}
	if issuer == nil {
		return nil, domain.ErrNotFound
	}
	if in.RangeTo < in.RangeFrom {
		return nil, domain.ErrInvalidInput
	}
	now := time.Now()
	sr := &entity.IssuerSeries{
		ID:                  uuid.New().String(),
		IssuerID:            issuerID,
		AuthorizationNumber: in.AuthorizationNumber,
		Prefix:              in.Prefix,
		RangeFrom:           in.RangeFrom,
		RangeTo:             in.RangeTo,
		LastNumberUsed:      in.RangeFrom - 1,
		DateFrom:            in.DateFrom,
		DateTo:              in.DateTo,
		IsActive:            true,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := uc.repo.CreateSeries(ctx, sr); err != nil {
		return nil, err
	}
	return entityToSeriesResponse(sr), nil
}

// ListSeries lista las series del emisor.
func (uc *IssuerUseCase) ListSeries(ctx context.Context, issuerID string) ([]dto.SeriesResponse, error) {
	list, err := uc.repo.ListSeries(ctx, issuerID)
	if err != nil {
		return nil, err
	}
	items := make([]dto.SeriesResponse, 0, len(list))
	for _, sr := range list {
		items = append(items, *entityToSeriesResponse(sr))
	}
	return items, nil
}

func entityToIssuerResponse(is *entity.Issuer) *dto.IssuerResponse {
	if is == nil {
		return nil
	}
	return &dto.IssuerResponse{
		ID:          is.ID,
		Name:        is.Name,
		NIT:         is.NIT,
		Address:     is.Address,
		Phone:       is.Phone,
		Email:       is.Email,
		Environment: is.Environment,
		Status:      is.Status,
		CreatedAt:   is.CreatedAt,
		UpdatedAt:   is.UpdatedAt,
	}
}

func entityToSeriesResponse(sr *entity.IssuerSeries) *dto.SeriesResponse {
	if sr == nil {
		return nil
	}
	remaining := sr.RangeTo - sr.LastNumberUsed
	if remaining < 0 {
		remaining = 0
	}
	return &dto.SeriesResponse{
		ID:                  sr.ID,
		IssuerID:            sr.IssuerID,
		AuthorizationNumber: sr.AuthorizationNumber,
		Prefix:              sr.Prefix,
		RangeFrom:           sr.RangeFrom,
		RangeTo:             sr.RangeTo,
		LastNumberUsed:      sr.LastNumberUsed,
		DateFrom:            sr.DateFrom,
		DateTo:              sr.DateTo,
		IsActive:            sr.IsActive,
		Remaining:           remaining,
	}
}
