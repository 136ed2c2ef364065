// Package authority implementa el adaptador SOAP hacia el web service de la
// autoridad certificadora: construcción del XML UBL 2.1, firma XAdES-EPES,
// empaquetado ZIP, entrega asíncrona y consulta de estado acotada.
package authority

import (
	"github.com/tu-usuario/facturador-pro/internal/domain/entity"
)

// DocumentBuildContext agrupa todos los datos necesarios para construir el
// XML del documento fiscal.
type DocumentBuildContext struct {
	Issuer     *entity.Issuer
	Series     *entity.IssuerSeries
	Document   *entity.FiscalDocument
	Items      []*entity.LineItem
	References []*entity.ReferencedDocument

	// Opcionales; si faltan se aplican los valores por defecto del catálogo.
	PaymentFormCode   string // 1=Contado, 2=Crédito
	PaymentMethodCode string // 10=Efectivo, 47=Transferencia, etc.

	IssuerIdentificationTypeCode      string // 31=NIT, 13=CC
	CounterpartIdentificationTypeCode string
}
