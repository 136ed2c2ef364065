package entity

import "github.com/shopspring/decimal"

// LineItem representa una línea de un documento fiscal.
// Los campos de producto son snapshot: no hay FK a un catálogo vivo.
type LineItem struct {
	ID          string
	DocumentID  string
	ProductCode string
	Description string
	UnitCode    string // código UNECE de unidad de medida (ver pkg/fiscal)
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	TaxRate     decimal.Decimal // porcentaje, ej. 19.00
	TaxAmount   decimal.Decimal
	Subtotal    decimal.Decimal // Quantity * UnitPrice, sin impuestos
}
