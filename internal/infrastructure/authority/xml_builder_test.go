package authority_test

import (
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tu-usuario/facturador-pro/internal/domain/entity"
	"github.com/tu-usuario/facturador-pro/internal/infrastructure/authority"
)

// encoding/xml serializa los namespaces como xmlns por defecto en cada
// elemento, así que etree ve los tags sin prefijo ("ID", no "cbc:ID").

func buildContextFromSubmission() *authority.DocumentBuildContext {
	sub := buildSubmission()
	return &authority.DocumentBuildContext{
		Issuer:     sub.Issuer,
		Series:     sub.Series,
		Document:   sub.Document,
		Items:      sub.Items,
		References: sub.References,
	}
}

func parseXML(t *testing.T, xmlBytes []byte) *etree.Document {
	t.Helper()
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(xmlBytes), "el XML generado debe ser parseable")
	return doc
}

func TestBuild_EstructuraBasicaDelDocumento(t *testing.T) {
	builder := authority.NewXMLBuilderService()
	xmlBytes, err := builder.Build(buildContextFromSubmission())
	require.NoError(t, err)

	doc := parseXML(t, xmlBytes)
	root := doc.Root()
	require.NotNil(t, root)
	assert.Equal(t, "Invoice", localTag(root.Tag))
	assert.Equal(t, "document-id", root.SelectAttrValue("Id", ""),
		"el Id del root es la referencia de la firma XAdES")

	// El ID del documento es serie + número a 9 dígitos
	id := doc.FindElement("/Invoice/ID")
	require.NotNil(t, id)
	assert.Equal(t, "FV000000001", id.Text())

	// El UUID lleva el código único calculado
	uuidEl := doc.FindElement("/Invoice/UUID")
	require.NotNil(t, uuidEl)
	assert.Len(t, uuidEl.Text(), 96, "SHA-384 en hex")
}

func TestBuild_ExtensionesUBLSiemprePrimero(t *testing.T) {
	builder := authority.NewXMLBuilderService()
	xmlBytes, err := builder.Build(buildContextFromSubmission())
	require.NoError(t, err)

	doc := parseXML(t, xmlBytes)
	children := doc.Root().ChildElements()
	require.NotEmpty(t, children)
	assert.Equal(t, "UBLExtensions", localTag(children[0].Tag),
		"ext:UBLExtensions debe ser el primer hijo: lo exige el firmador")

	exts := children[0].ChildElements()
	require.Len(t, exts, 2, "una extensión de control y una para la firma")

	// La primera extensión lleva los datos de la serie autorizada
	auth := doc.FindElement("//InvoiceAuthorization")
	require.NotNil(t, auth)
	assert.Equal(t, "18764000000001", auth.Text())
	prefix := doc.FindElement("//AuthorizedInvoices/Prefix")
	require.NotNil(t, prefix)
	assert.Equal(t, "FV", prefix.Text())
}

func TestBuild_NITSinPuntosNiDV(t *testing.T) {
	builder := authority.NewXMLBuilderService()
	xmlBytes, err := builder.Build(buildContextFromSubmission())
	require.NoError(t, err)

	doc := parseXML(t, xmlBytes)
	supplierID := doc.FindElement("//AccountingSupplierParty//PartyIdentification/ID")
	require.NotNil(t, supplierID)
	assert.Equal(t, "8300123458", supplierID.Text(),
		"la identificación del emisor va solo con dígitos")
}

func TestBuild_TotalesConDosDecimales(t *testing.T) {
	builder := authority.NewXMLBuilderService()
	xmlBytes, err := builder.Build(buildContextFromSubmission())
	require.NoError(t, err)

	doc := parseXML(t, xmlBytes)
	payable := doc.FindElement("//LegalMonetaryTotal/PayableAmount")
	require.NotNil(t, payable)
	assert.Equal(t, "1190.00", payable.Text())
	assert.Equal(t, "COP", payable.SelectAttrValue("currencyID", ""))

	taxAmount := doc.FindElement("//TaxTotal/TaxAmount")
	require.NotNil(t, taxAmount)
	assert.Equal(t, "190.00", taxAmount.Text())
}

func TestBuild_ReferenciaElectronica(t *testing.T) {
	ctx := buildContextFromSubmission()
	ctx.References = []*entity.ReferencedDocument{{
		Kind:          entity.RefKindElectronic,
		ElectronicKey: "ab8e3c1f09d2b6e54477aa10c3b9f8d21c64e0a5b7d9f31226c8e4a0d5b71f39",
	}}

	builder := authority.NewXMLBuilderService()
	xmlBytes, err := builder.Build(ctx)
	require.NoError(t, err)

	doc := parseXML(t, xmlBytes)
	ref := doc.FindElement("//BillingReference/InvoiceDocumentReference/UUID")
	require.NotNil(t, ref, "la referencia electrónica va como InvoiceDocumentReference")
	assert.Equal(t, ctx.References[0].ElectronicKey, ref.Text())
	assert.Equal(t, "CUFE-SHA384", ref.SelectAttrValue("schemeName", ""))
}

func TestBuild_ReferenciaDeLibro(t *testing.T) {
	ctx := buildContextFromSubmission()
	ctx.References = []*entity.ReferencedDocument{{
		Kind:           entity.RefKindPaper,
		Jurisdiction:   "Cundinamarca",
		YearMonth:      "2024-04",
		RegistrationID: "REG-5521",
		Book:           "Mayor",
		BookSeries:     "A",
		BookNumber:     417,
	}}

	builder := authority.NewXMLBuilderService()
	xmlBytes, err := builder.Build(ctx)
	require.NoError(t, err)

	doc := parseXML(t, xmlBytes)
	ref := doc.FindElement("//BillingReference/AdditionalDocumentReference")
	require.NotNil(t, ref, "la referencia de libro va como AdditionalDocumentReference")

	id := ref.FindElement("ID")
	require.NotNil(t, id)
	assert.Equal(t, "REG-5521", id.Text())

	docType := ref.FindElement("DocumentType")
	require.NotNil(t, docType)
	assert.Contains(t, docType.Text(), "Mayor")
	assert.Contains(t, docType.Text(), "417")
	assert.Contains(t, docType.Text(), "Cundinamarca")
}

func TestBuild_LineasDelDocumento(t *testing.T) {
	builder := authority.NewXMLBuilderService()
	xmlBytes, err := builder.Build(buildContextFromSubmission())
	require.NoError(t, err)

	doc := parseXML(t, xmlBytes)
	lines := doc.FindElements("//InvoiceLine")
	require.Len(t, lines, 1)

	desc := lines[0].FindElement("Item/Description")
	require.NotNil(t, desc)
	assert.Equal(t, "Café tostado 500g", desc.Text())

	qty := lines[0].FindElement("InvoicedQuantity")
	require.NotNil(t, qty)
	assert.Equal(t, "10.00", qty.Text())
	assert.Equal(t, "94", qty.SelectAttrValue("unitCode", ""), "sin unidad explícita aplica el default del catálogo")
}

func TestBuild_ContextoIncompleto(t *testing.T) {
	builder := authority.NewXMLBuilderService()
	_, err := builder.Build(nil)
	assert.Error(t, err, "sin contexto no hay documento")

	_, err = builder.Build(&authority.DocumentBuildContext{})
	assert.Error(t, err, "sin document ni issuer no hay documento")
}

// localTag quita el prefijo de namespace si el parser lo conserva en Tag.
func localTag(tag string) string {
	for i := len(tag) - 1; i >= 0; i-- {
		if tag[i] == ':' {
			return tag[i+1:]
		}
	}
	return tag
}
