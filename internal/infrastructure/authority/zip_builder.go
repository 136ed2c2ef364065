package authority

import (
	"archive/zip"
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/tu-usuario/facturador-pro/internal/domain/entity"
)

// CompressXMLToZip empaqueta el XML firmado en un archivo ZIP en memoria.
// El WS exige que el ZIP contenga un único archivo con el nombre:
//
//	{NIT_EMISOR}{SERIE}{NUMERO}.xml  (sin guiones ni espacios)
//
// Devuelve los bytes del ZIP listo para enviar.
func CompressXMLToZip(xmlBytes []byte, xmlFilename string) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	fw, err := zw.Create(xmlFilename)
	if err != nil {
		return nil, fmt.Errorf("zip: crear entrada %s: %w", xmlFilename, err)
	}
	if _, err := fw.Write(xmlBytes); err != nil {
		return nil, fmt.Errorf("zip: escribir XML: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("zip: cerrar archivo: %w", err)
	}
	return buf.Bytes(), nil
}

var nonDigit = regexp.MustCompile(`[^0-9]`)

// PackageFilenames genera los nombres de archivo requeridos para el ZIP y el
// XML interno. Formato: {NIT_EMISOR}{SERIE}{NUMERO} (sin DV, solo dígitos).
// Ejemplo: 830012345FV000000001
func PackageFilenames(issuer *entity.Issuer, doc *entity.FiscalDocument) (xmlName, zipName string) {
	nit := issuer.NIT
	// Quitar dígito de verificación si el NIT viene como "NNNNNNNNN-D"
	if idx := strings.Index(nit, "-"); idx != -1 {
		nit = nit[:idx]
	}
	nit = nonDigit.ReplaceAllString(nit, "")
	base := nit + doc.FullNumber()
	return base + ".xml", base + ".zip"
}
