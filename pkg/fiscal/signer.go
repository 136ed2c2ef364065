// Package fiscal: catálogos, validaciones y puertos compartidos de facturación
// electrónica (Anexo Técnico DIAN, Colombia).

package fiscal

import "crypto/tls"

// Signer firma un XML de documento fiscal y devuelve el XML con la firma
// inyectada en el ExtensionContent (XAdES-EPES).
type Signer interface {
	// Sign toma el XML del documento (sin firma) y el certificado con llave privada,
	// y retorna el XML con el nodo ds:Signature dentro de ext:ExtensionContent.
	Sign(xmlBytes []byte, cert tls.Certificate) ([]byte, error)
}
