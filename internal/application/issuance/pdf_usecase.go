package issuance

import (
	"context"
	"fmt"

	"github.com/tu-usuario/facturador-pro/internal/domain"
	"github.com/tu-usuario/facturador-pro/internal/domain/entity"
	"github.com/tu-usuario/facturador-pro/internal/domain/repository"
)

// DocumentPDFGenerator puerto de salida para la representación gráfica del
// documento fiscal.
type DocumentPDFGenerator interface {
	GenerateDocumentPDF(ctx context.Context, doc *entity.FiscalDocument, issuer *entity.Issuer, items []*entity.LineItem) ([]byte, error)
}

// PDFUseCase genera la representación gráfica de un documento emitido.
type PDFUseCase struct {
	docs    repository.FiscalDocumentRepository
	issuers repository.IssuerRepository
	gen     DocumentPDFGenerator
}

// NewPDFUseCase construye el caso de uso.
func NewPDFUseCase(
	docs repository.FiscalDocumentRepository,
	issuers repository.IssuerRepository,
	gen DocumentPDFGenerator,
) *PDFUseCase {
	return &PDFUseCase{docs: docs, issuers: issuers, gen: gen}
}

// GenerateByDocumentID genera el PDF de un documento y devuelve los bytes y
// el nombre de archivo sugerido.
func (uc *PDFUseCase) GenerateByDocumentID(ctx context.Context, documentID string) ([]byte, string, error) {
	doc, err := uc.docs.GetByID(ctx, documentID)
	if err != nil {
		return nil, "", err
	}
	if doc == nil {
		return nil, "", domain.ErrNotFound
	}
	issuer, err := uc.issuers.GetByID(ctx, doc.IssuerID)
	if err != nil {
		return nil, "", err
	}
	if issuer == nil {
		return nil, "", domain.ErrNotFound
	}
	items, err := uc.docs.GetItems(ctx, doc.ID)
	if err != nil {
		return nil, "", err
	}

	pdfBytes, err := uc.gen.GenerateDocumentPDF(ctx, doc, issuer, items)
	if err != nil {
		return nil, "", fmt.Errorf("generar representación gráfica: %w", err)
	}
	return pdfBytes, doc.FullNumber() + ".pdf", nil
}
