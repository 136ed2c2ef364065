package usecase

import (
	"context"

	"github.com/tu-usuario/facturador-pro/internal/application/dto"
	"github.com/tu-usuario/facturador-pro/internal/domain"
	"github.com/tu-usuario/facturador-pro/internal/domain/entity"
	"github.com/tu-usuario/facturador-pro/internal/domain/repository"
)

// DocumentUseCase consultas de lectura sobre documentos fiscales emitidos.
type DocumentUseCase struct {
	repo repository.FiscalDocumentRepository
}

// NewDocumentUseCase construye el caso de uso de consulta de documentos.
func NewDocumentUseCase(repo repository.FiscalDocumentRepository) *DocumentUseCase {
	return &DocumentUseCase{repo: repo}
}

// GetByID obtiene la cabecera completa del documento.
func (uc *DocumentUseCase) GetByID(ctx context.Context, id string) (*dto.FiscalDocumentResponse, error) {
	doc, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, domain.ErrNotFound
	}
	return FiscalDocumentToResponse(doc), nil
}

// GetStatus obtiene solo el estado del documento (consulta ligera).
func (uc *DocumentUseCase) GetStatus(ctx context.Context, id string) (*dto.FiscalDocumentResponse, error) {
	doc, err := uc.repo.GetStatus(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, domain.ErrNotFound
	}
	return FiscalDocumentToResponse(doc), nil
}

// GetXML devuelve el XML firmado del documento y el nombre de archivo sugerido.
func (uc *DocumentUseCase) GetXML(ctx context.Context, id string) ([]byte, string, error) {
	doc, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if doc == nil || doc.XMLSigned == "" {
		return nil, "", domain.ErrNotFound
	}
	return []byte(doc.XMLSigned), doc.FullNumber() + ".xml", nil
}

// FiscalDocumentToResponse mapea la entidad al DTO de salida.
func FiscalDocumentToResponse(doc *entity.FiscalDocument) *dto.FiscalDocumentResponse {
	if doc == nil {
		return nil
	}
	return &dto.FiscalDocumentResponse{
		ID:              doc.ID,
		IssuerID:        doc.IssuerID,
		SourceID:        doc.SourceID,
		FullNumber:      doc.FullNumber(),
		Series:          doc.Series,
		Number:          doc.Number,
		OperationKind:   doc.OperationKind,
		Status:          doc.Status,
		IssuedAt:        doc.IssuedAt,
		CounterpartName: doc.CounterpartName,
		NetTotal:        doc.NetTotal,
		TaxTotal:        doc.TaxTotal,
		GrandTotal:      doc.GrandTotal,
		CUDE:            doc.CUDE,
		QRData:          doc.QRData,
		TrackID:         doc.TrackID,
		AuthorityErrors: doc.AuthorityErrors,
	}
}
