// Package fiscal: cálculo del CUDE (código único del documento electrónico) según
// Anexo Técnico DIAN 1.9. Algoritmo: SHA-384 sobre la cadena de concatenación en
// el orden estricto definido por la autoridad.

package fiscal

import (
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Códigos de impuesto para la cadena del CUDE.
const (
	CodImpIVA         = "01" // IVA
	CodImpImpoconsumo = "04" // Impoconsumo (Impuesto Nacional al Consumo)
	CodImpICA         = "03" // ICA
)

// CudeParams contiene los datos para calcular el CUDE en el orden exigido por la autoridad.
type CudeParams struct {
	NumDoc    string          // Número del documento (prefijo + consecutivo, sin espacios)
	FecDoc    string          // Fecha de emisión YYYY-MM-DD
	ValDoc    decimal.Decimal // Valor total sin impuestos (neto)
	ValImp_01 decimal.Decimal // Valor total IVA (código 01)
	ValImp_04 decimal.Decimal // Valor total Impoconsumo (código 04)
	ValImp_03 decimal.Decimal // Valor total ICA (código 03)
	ValPag    decimal.Decimal // Valor total a pagar (Grand Total)
	NitEmisor string          // NIT del emisor (solo dígitos)
	DocContra string          // Número de identificación de la contraparte (solo dígitos)
	ClTec     string          // Clave técnica de la serie autorizada (DB)
	TipoAmb   string          // '1' = Producción, '2' = Pruebas
}

// CudeCalculatorService calcula el CUDE según el Anexo Técnico 1.9.
type CudeCalculatorService struct{}

// NewCudeCalculatorService crea el servicio.
func NewCudeCalculatorService() *CudeCalculatorService {
	return &CudeCalculatorService{}
}

// Calculate genera el CUDE (hash hexadecimal) a partir de los parámetros.
// Fórmula (sin separadores): NumDoc + FecDoc + ValDoc + CodImp_01 + ValImp_01 + CodImp_04 + ValImp_04 + CodImp_03 + ValImp_03 + ValPag + NitEmisor + DocContra + ClTec + TipoAmb
// Algoritmo: SHA-384. Montos sin separador de miles, con punto decimal (ej: 1500.00).
func (s *CudeCalculatorService) Calculate(p *CudeParams) (string, error) {
	if p == nil {
		return "", fmt.Errorf("fiscal: CudeParams es obligatorio")
	}

	numDoc := regexp.MustCompile(`\s+`).ReplaceAllString(strings.TrimSpace(p.NumDoc), "")
	if numDoc == "" {
		return "", fmt.Errorf("fiscal: NumDoc es obligatorio")
	}
	if p.FecDoc == "" {
		return "", fmt.Errorf("fiscal: FecDoc es obligatorio (YYYY-MM-DD)")
	}

	nitEmisor := onlyDigits(p.NitEmisor)
	docContra := onlyDigits(p.DocContra)
	if nitEmisor == "" {
		return "", fmt.Errorf("fiscal: NitEmisor es obligatorio para el CUDE")
	}
	if docContra == "" {
		return "", fmt.Errorf("fiscal: DocContra es obligatorio para el CUDE")
	}
	if p.ClTec == "" {
		return "", fmt.Errorf("fiscal: ClTec es obligatoria para el CUDE")
	}
	tipoAmb := p.TipoAmb
	if tipoAmb == "" {
		tipoAmb = "1"
	}

	// Orden estricto de la autoridad (sin separadores)
	cadena := numDoc +
		p.FecDoc +
		formatAmount(p.ValDoc) +
		CodImpIVA + formatAmount(p.ValImp_01) +
		CodImpImpoconsumo + formatAmount(p.ValImp_04) +
		CodImpICA + formatAmount(p.ValImp_03) +
		formatAmount(p.ValPag) +
		nitEmisor +
		docContra +
		p.ClTec +
		tipoAmb

	hash := sha512.Sum384([]byte(cadena))
	return hex.EncodeToString(hash[:]), nil
}

// formatAmount formatea montos para la cadena CUDE: sin separador de miles, punto decimal, 2 decimales (ej: 1500.00).
func formatAmount(d decimal.Decimal) string {
	return d.Round(2).StringFixed(2)
}

// onlyDigits deja solo dígitos 0-9 (para NIT y documento).
func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
