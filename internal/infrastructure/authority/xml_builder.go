package authority

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/tu-usuario/facturador-pro/internal/domain/entity"
	"github.com/tu-usuario/facturador-pro/pkg/fiscal"
)

// Namespaces oficiales UBL 2.1 y extensiones de la autoridad (Anexo Técnico 1.9).
const (
	// Namespace por defecto (UBL Invoice)
	NsInvoice = "urn:oasis:names:specification:ubl:schema:xsd:Invoice-2"
	// Common Aggregate Components
	NsCac = "urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2"
	// Common Basic Components
	NsCbc = "urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2"
	// Extension Components
	NsExt = "urn:oasis:names:specification:ubl:schema:xsd:CommonExtensionComponents-2"
	// Extensiones de la autoridad (valor oficial para Anexo 1.8/1.9)
	NsSts = "dian:gov:co:facturaelectronica:v1"
	// XML Digital Signature
	NsDs = "http://www.w3.org/2000/09/xmldsig#"
	// XAdES (para la firma)
	NsXades = "http://uri.etsi.org/01903/v1.3.2#"
	// XML Schema Instance (para schemaLocation)
	nsXsi = "http://www.w3.org/2001/XMLSchema-instance"
	// Schema location UBL Invoice 2.1
	schemaLocationInvoice = "urn:oasis:names:specification:ubl:schema:xsd:Invoice-2 http://docs.oasis-open.org/ubl/os-UBL-2.1/xsd/maindoc/UBL-Invoice-2.1.xsd"
)

// XMLBuilderService construye el XML UBL 2.1 del documento fiscal (sin firma XAdES).
type XMLBuilderService struct{}

// NewXMLBuilderService crea el servicio.
func NewXMLBuilderService() *XMLBuilderService {
	return &XMLBuilderService{}
}

// Build genera el []byte del documento según UBL 2.1 y extensiones de la autoridad.
func (s *XMLBuilderService) Build(ctx *DocumentBuildContext) ([]byte, error) {
	if ctx == nil || ctx.Document == nil || ctx.Issuer == nil {
		return nil, fmt.Errorf("authority: faltan document o issuer en el contexto")
	}
	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")

	// Root <Invoice> con atributos obligatorios. Id para Reference URI en firma XAdES.
	root := xml.StartElement{
		Name: xml.Name{Space: NsInvoice, Local: "Invoice"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "Id"}, Value: "document-id"},
			{Name: xml.Name{Local: "xmlns"}, Value: NsInvoice},
			{Name: xml.Name{Local: "xmlns:cac"}, Value: NsCac},
			{Name: xml.Name{Local: "xmlns:cbc"}, Value: NsCbc},
			{Name: xml.Name{Local: "xmlns:ds"}, Value: NsDs},
			{Name: xml.Name{Local: "xmlns:ext"}, Value: NsExt},
			{Name: xml.Name{Local: "xmlns:sts"}, Value: NsSts},
			{Name: xml.Name{Local: "xmlns:xades"}, Value: NsXades},
			{Name: xml.Name{Local: "xmlns:xsi"}, Value: nsXsi},
			{Name: xml.Name{Space: nsXsi, Local: "schemaLocation"}, Value: schemaLocationInvoice},
		},
	}
	if err := enc.EncodeToken(root); err != nil {
		return nil, err
	}

	// ext:UBLExtensions siempre como primer hijo (requerido por el firmador).
	// Extensión 1: datos de la serie autorizada. Extensión 2: placeholder para ds:Signature.
	if err := s.writeUBLExtensions(enc, ctx); err != nil {
		return nil, err
	}

	doc := ctx.Document
	writeCbc(enc, "UBLVersionID", "2.1")
	writeCbc(enc, "CustomizationID", "10")
	writeCbc(enc, "ProfileID", "DIAN 2.1: Factura Electrónica de Venta")
	writeCbc(enc, "ID", doc.FullNumber())
	// cbc:UUID = código único del documento electrónico
	if doc.CUDE != "" {
		writeCbc(enc, "UUID", doc.CUDE)
	}
	writeCbc(enc, "IssueDate", doc.IssuedAt.Format("2006-01-02"))
	writeCbc(enc, "IssueTime", doc.IssuedAt.Format("15:04:05-07:00"))
	writeCbc(enc, "DocumentCurrencyCode", "COP")
	writeCbc(enc, "LineCountNumeric", strconv.Itoa(len(ctx.Items)))
	if doc.Complementary != "" {
		writeCbc(enc, "Note", doc.Complementary)
	}

	// ---- cac:BillingReference (documentos referenciados: electrónicos o de libro)
	for _, ref := range ctx.References {
		s.writeBillingReference(enc, ref)
	}
	// ---- cac:AccountingSupplierParty (emisor)
	if err := s.writeSupplierParty(enc, ctx); err != nil {
		return nil, err
	}
	// ---- cac:AccountingCustomerParty (contraparte)
	if err := s.writeCustomerParty(enc, ctx); err != nil {
		return nil, err
	}
	// ---- cac:PaymentMeans (forma y medio de pago)
	s.writePaymentMeans(enc, ctx)
	// ---- cac:TaxTotal
	if err := s.writeTaxTotal(enc, ctx); err != nil {
		return nil, err
	}
	// ---- cac:LegalMonetaryTotal
	if err := s.writeLegalMonetaryTotal(enc, ctx); err != nil {
		return nil, err
	}
	// ---- cac:InvoiceLine (cada línea)
	for i, line := range ctx.Items {
		if err := s.writeDocumentLine(enc, i+1, line); err != nil {
			return nil, err
		}
	}

	if err := enc.EncodeToken(root.End()); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCbc(enc *xml.Encoder, local, value string) {
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Space: NsCbc, Local: local}})
	_ = enc.EncodeToken(xml.CharData(value))
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Space: NsCbc, Local: local}})
}

func writeCbcAmount(enc *xml.Encoder, local, value string, currency string) {
	attr := []xml.Attr{}
	if currency != "" {
		attr = append(attr, xml.Attr{Name: xml.Name{Local: "currencyID"}, Value: currency})
	}
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Space: NsCbc, Local: local}, Attr: attr})
	_ = enc.EncodeToken(xml.CharData(value))
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Space: NsCbc, Local: local}})
}

// writeUBLExtensions escribe siempre ext:UBLExtensions como primer hijo.
// Extensión 1: control de numeración de la serie autorizada (si hay Series).
// Extensión 2: ExtensionContent vacío; el firmador inyectará aquí <ds:Signature>.
func (s *XMLBuilderService) writeUBLExtensions(enc *xml.Encoder, ctx *DocumentBuildContext) error {
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Space: NsExt, Local: "UBLExtensions"}})

	// 1. Extensión con los datos de la serie (o placeholder vacío)
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Space: NsExt, Local: "UBLExtension"}})
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Space: NsExt, Local: "ExtensionContent"}})
	if ctx.Series != nil {
		_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Space: NsSts, Local: "DianExtensions"}})
		_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Space: NsSts, Local: "InvoiceControl"}})
		writeSts(enc, "InvoiceAuthorization", ctx.Series.AuthorizationNumber)
		_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Space: NsSts, Local: "AuthorizationPeriod"}})
		writeSts(enc, "StartDate", ctx.Series.DateFrom.Format("2006-01-02"))
		writeSts(enc, "EndDate", ctx.Series.DateTo.Format("2006-01-02"))
		_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Space: NsSts, Local: "AuthorizationPeriod"}})
		_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Space: NsSts, Local: "AuthorizedInvoices"}})
		writeSts(enc, "Prefix", ctx.Series.Prefix)
		writeSts(enc, "From", strconv.FormatInt(ctx.Series.RangeFrom, 10))
		writeSts(enc, "To", strconv.FormatInt(ctx.Series.RangeTo, 10))
		_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Space: NsSts, Local: "AuthorizedInvoices"}})
		_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Space: NsSts, Local: "InvoiceControl"}})
		_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Space: NsSts, Local: "DianExtensions"}})
	}
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Space: NsExt, Local: "ExtensionContent"}})
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Space: NsExt, Local: "UBLExtension"}})

	// 2. Extensión para la firma (el signer inyectará <ds:Signature> aquí)
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Space: NsExt, Local: "UBLExtension"}})
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Space: NsExt, Local: "ExtensionContent"}})
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Space: NsExt, Local: "ExtensionContent"}})
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Space: NsExt, Local: "UBLExtension"}})

	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Space: NsExt, Local: "UBLExtensions"}})
	return nil
}

func writeSts(enc *xml.Encoder, local, value string) {
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Space: NsSts, Local: local}})
	_ = enc.EncodeToken(xml.CharData(value))
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Space: NsSts, Local: local}})
}

// writeBillingReference escribe el documento referenciado según su variante.
// Electrónico: InvoiceDocumentReference con el código único del documento previo.
// De libro (papel): AdditionalDocumentReference con los datos de registro.
func (s *XMLBuilderService) writeBillingReference(enc *xml.Encoder, ref *entity.ReferencedDocument) {
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Space: NsCac, Local: "BillingReference"}})
	switch ref.Kind {
	case entity.RefKindElectronic:
		_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Space: NsCac, Local: "InvoiceDocumentReference"}})
		writeCbc(enc, "ID", ref.ElectronicKey)
		writeCbcWithAttr(enc, "UUID", ref.ElectronicKey, "schemeName", "CUFE-SHA384")
		_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Space: NsCac, Local: "InvoiceDocumentReference"}})
	default:
		_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Space: NsCac, Local: "AdditionalDocumentReference"}})
		writeCbc(enc, "ID", ref.RegistrationID)
		writeCbc(enc, "IssueDate", ref.YearMonth+"-01")
		docType := "Libro " + ref.Book
		if ref.BookSeries != "" {
			docType += " " + ref.BookSeries
		}
		docType += " " + strconv.FormatInt(ref.BookNumber, 10) + " (" + ref.Jurisdiction + ")"
		writeCbc(enc, "DocumentType", docType)
		_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Space: NsCac, Local: "AdditionalDocumentReference"}})
	}
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Space: NsCac, Local: "BillingReference"}})
}

func (s *XMLBuilderService) writeSupplierParty(enc *xml.Encoder, ctx *DocumentBuildContext) error {
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Space: NsCac, Local: "AccountingSupplierParty"}})
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Space: NsCac, Local: "Party"}})

	// Identificación fiscal (NIT)
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Space: NsCac, Local: "PartyIdentification"}})
	_ = enc.EncodeToken(xml.StartElement{
		Name: xml.Name{Space: NsCbc, Local: "ID"},
		Attr: []xml.Attr{{Name: xml.Name{Local: "schemeID"}, Value: schemeIDFromCode(ctx.IssuerIdentificationTypeCode)}},
	})
	_ = enc.EncodeToken(xml.CharData(normalizeNIT(ctx.Issuer.NIT)))
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Space: NsCbc, Local: "ID"}})
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Space: NsCac, Local: "PartyIdentification"}})

	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Space: NsCac, Local: "PartyName"}})
	writeCbc(enc, "Name", ctx.Issuer.Name)
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Space: NsCac, Local: "PartyName"}})

	if ctx.Issuer.Address != "" {
		_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Space: NsCac, Local: "PostalAddress"}})
		writeCbc(enc, "StreetName", ctx.Issuer.Address)
		_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Space: NsCac, Local: "PostalAddress"}})
	}

	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Space: NsCac, Local: "Party"}})
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Space: NsCac, Local: "AccountingSupplierParty"}})
	return nil
}

func (s *XMLBuilderService) writeCustomerParty(enc *xml.Encoder, ctx *DocumentBuildContext) error {
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Space: NsCac, Local: "AccountingCustomerParty"}})
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Space: NsCac, Local: "Party"}})

	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Space: NsCac, Local: "PartyIdentification"}})
	_ = enc.EncodeToken(xml.StartElement{
		Name: xml.Name{Space: NsCbc, Local: "ID"},
		Attr: []xml.Attr{{Name: xml.Name{Local: "schemeID"}, Value: schemeIDFromCode(ctx.CounterpartIdentificationTypeCode)}},
	})
	_ = enc.EncodeToken(xml.CharData(normalizeNIT(ctx.Document.CounterpartTaxID)))
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Space: NsCbc, Local: "ID"}})
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Space: NsCac, Local: "PartyIdentification"}})

	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Space: NsCac, Local: "PartyName"}})
	writeCbc(enc, "Name", ctx.Document.CounterpartName)
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Space: NsCac, Local: "PartyName"}})

	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Space: NsCac, Local: "Party"}})
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Space: NsCac, Local: "AccountingCustomerParty"}})
	return nil
}

func (s *XMLBuilderService) writePaymentMeans(enc *xml.Encoder, ctx *DocumentBuildContext) {
	form := ctx.PaymentFormCode
	if form == "" {
		form = fiscal.PaymentFormContado
	}
	method := ctx.PaymentMethodCode
	if method == "" {
		method = fiscal.PaymentMethodEfectivo
	}
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Space: NsCac, Local: "PaymentMeans"}})
	writeCbc(enc, "ID", form)
	writeCbc(enc, "PaymentMeansCode", method)
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Space: NsCac, Local: "PaymentMeans"}})
}

func (s *XMLBuilderService) writeTaxTotal(enc *xml.Encoder, ctx *DocumentBuildContext) error {
	doc := ctx.Document
	percent := "19"
	if doc.NetTotal.IsPositive() {
		pct := doc.TaxTotal.Div(doc.NetTotal).Mul(decimal.NewFromInt(100)).Round(0)
		percent = pct.String()
	}
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Space: NsCac, Local: "TaxTotal"}})
	writeCbcAmount(enc, "TaxAmount", formatDecimal(doc.TaxTotal), "COP")
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Space: NsCac, Local: "TaxSubtotal"}})
	writeCbcAmount(enc, "TaxableAmount", formatDecimal(doc.NetTotal), "COP")
	writeCbcAmount(enc, "TaxAmount", formatDecimal(doc.TaxTotal), "COP")
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Space: NsCac, Local: "TaxCategory"}})
	writeCbc(enc, "ID", fiscal.TaxCodeIVA)
	writeCbc(enc, "Percent", percent)
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Space: NsCac, Local: "TaxCategory"}})
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Space: NsCac, Local: "TaxSubtotal"}})
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Space: NsCac, Local: "TaxTotal"}})
	return nil
}

func (s *XMLBuilderService) writeLegalMonetaryTotal(enc *xml.Encoder, ctx *DocumentBuildContext) error {
	doc := ctx.Document
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Space: NsCac, Local: "LegalMonetaryTotal"}})
	writeCbcAmount(enc, "LineExtensionAmount", formatDecimal(doc.NetTotal), "COP")
	writeCbcAmount(enc, "TaxExclusiveAmount", formatDecimal(doc.NetTotal), "COP")
	writeCbcAmount(enc, "TaxInclusiveAmount", formatDecimal(doc.GrandTotal), "COP")
	writeCbcAmount(enc, "PayableAmount", formatDecimal(doc.GrandTotal), "COP")
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Space: NsCac, Local: "LegalMonetaryTotal"}})
	return nil
}

func (s *XMLBuilderService) writeDocumentLine(enc *xml.Encoder, lineNum int, line *entity.LineItem) error {
	unitCode := line.UnitCode
	if unitCode == "" {
		unitCode = fiscal.UnitUnit
	}
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Space: NsCac, Local: "InvoiceLine"}})
	writeCbc(enc, "ID", strconv.Itoa(lineNum))
	writeCbcWithAttr(enc, "InvoicedQuantity", formatDecimal(line.Quantity), "unitCode", unitCode)
	writeCbcAmount(enc, "LineExtensionAmount", formatDecimal(line.Subtotal), "COP")

	// cac:Item
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Space: NsCac, Local: "Item"}})
	desc := line.Description
	if desc == "" {
		desc = "Item " + strconv.Itoa(lineNum)
	}
	writeCbc(enc, "Description", desc)
	if line.ProductCode != "" {
		_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Space: NsCac, Local: "SellersItemIdentification"}})
		writeCbc(enc, "ID", line.ProductCode)
		_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Space: NsCac, Local: "SellersItemIdentification"}})
	}
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Space: NsCac, Local: "Item"}})

	// cac:Price
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Space: NsCac, Local: "Price"}})
	writeCbcAmount(enc, "PriceAmount", formatDecimal(line.UnitPrice), "COP")
	writeCbcWithAttr(enc, "BaseQuantity", "1", "unitCode", unitCode)
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Space: NsCac, Local: "Price"}})

	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Space: NsCac, Local: "InvoiceLine"}})
	return nil
}

func schemeIDFromCode(code string) string {
	if code == fiscal.IdentificationTypeCC {
		return fiscal.IdentificationTypeCC
	}
	return fiscal.IdentificationTypeNIT
}

func normalizeNIT(nit string) string {
	var out []byte
	for _, b := range []byte(nit) {
		if b >= '0' && b <= '9' {
			out = append(out, b)
		}
	}
	return string(out)
}

func formatDecimal(d decimal.Decimal) string {
	return d.Round(2).StringFixed(2)
}

func writeCbcWithAttr(enc *xml.Encoder, local, value, attrLocal, attrValue string) {
	_ = enc.EncodeToken(xml.StartElement{
		Name: xml.Name{Space: NsCbc, Local: local},
		Attr: []xml.Attr{{Name: xml.Name{Local: attrLocal}, Value: attrValue}},
	})
	_ = enc.EncodeToken(xml.CharData(value))
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Space: NsCbc, Local: local}})
}
