// Package fiscal contiene el cálculo del CUDE y las validaciones de dominio del
// documento fiscal electrónico, según Anexo Técnico 1.9. Usa catálogos de pkg/fiscal.
package fiscal

import (
	"errors"
	"fmt"

	"github.com/tu-usuario/facturador-pro/internal/domain/entity"
	"github.com/tu-usuario/facturador-pro/pkg/fiscal"

	"github.com/shopspring/decimal"
)

// ErrInvalidDocument agrupa errores de validación del documento.
var ErrInvalidDocument = errors.New("documento inválido para emisión")

// ValidateDocument valida la cabecera, las líneas y las referencias según
// reglas del Anexo Técnico 1.9. Para contrapartes jurídicas (NIT, tipo 31)
// exige dígito de verificación válido. Comprueba que los totales coincidan
// con la suma de los ítems y que cada referencia sea exactamente una de las
// dos variantes (electrónica o de libro físico).
func ValidateDocument(
	doc *entity.FiscalDocument,
	items []*entity.LineItem,
	refs []*entity.ReferencedDocument,
	counterpartIdentificationTypeCode string,
) error {
	if doc == nil {
		return fmt.Errorf("%w: documento nulo", ErrInvalidDocument)
	}
	var errs []error

	// Contraparte jurídica (NIT): debe tener dígito de verificación válido (Anexo 1.9).
	if counterpartIdentificationTypeCode == fiscal.IdentificationTypeNIT {
		if err := fiscal.ValidateNITVerificationDigit(doc.CounterpartTaxID); err != nil {
			errs = append(errs, fmt.Errorf("contraparte NIT: %w", err))
		}
	}

	// Totales coherentes con las líneas.
	if len(items) == 0 {
		errs = append(errs, fmt.Errorf("%w: el documento debe tener al menos una línea", ErrInvalidDocument))
	} else {
		var sumSubtotal, sumTax decimal.Decimal
		for _, it := range items {
			sumSubtotal = sumSubtotal.Add(it.Subtotal)
			// Impuesto por línea = Subtotal * TaxRate/100 (ej. IVA 19% sobre base).
			lineTax := it.Subtotal.Mul(it.TaxRate).Div(decimal.NewFromInt(100)).Round(2)
			sumTax = sumTax.Add(lineTax)
		}
		if !doc.NetTotal.Equal(sumSubtotal.Round(2)) {
			errs = append(errs, fmt.Errorf("net total (%s) no coincide con la suma de subtotales de líneas (%s)", doc.NetTotal.String(), sumSubtotal.Round(2).String()))
		}
		if !doc.TaxTotal.Equal(sumTax) {
			errs = append(errs, fmt.Errorf("tax total (%s) no coincide con la suma de impuestos por líneas (%s)", doc.TaxTotal.String(), sumTax.String()))
		}
		expectedGrand := sumSubtotal.Add(sumTax).Round(2)
		if !doc.GrandTotal.Equal(expectedGrand) {
			errs = append(errs, fmt.Errorf("grand total (%s) no coincide con net + tax (%s)", doc.GrandTotal.String(), expectedGrand.String()))
		}
	}

	for i, r := range refs {
		if err := validateReference(r); err != nil {
			errs = append(errs, fmt.Errorf("referencia %d: %w", i+1, err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(append([]error{ErrInvalidDocument}, errs...)...)
	}
	return nil
}

// validateReference exige exactamente una variante completa por referencia.
func validateReference(r *entity.ReferencedDocument) error {
	switch r.Kind {
	case entity.RefKindElectronic:
		if r.ElectronicKey == "" {
			return fmt.Errorf("variante electrónica sin clave del documento referenciado")
		}
	case entity.RefKindPaper:
		if r.Jurisdiction == "" || r.YearMonth == "" || r.RegistrationID == "" {
			return fmt.Errorf("variante de libro requiere circunscripción, período y registro")
		}
		if r.Book == "" || r.BookNumber <= 0 {
			return fmt.Errorf("variante de libro requiere libro y número positivo")
		}
	default:
		return fmt.Errorf("tipo de referencia desconocido: %q", r.Kind)
	}
	return nil
}
