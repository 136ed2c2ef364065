package authority

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ── Constantes de entorno ──────────────────────────────────────────────────────

const (
	// AppEnvTest es el identificador de ambiente de habilitación/pruebas.
	AppEnvTest = "test"
	// AppEnvProd es el identificador de ambiente de producción.
	AppEnvProd = "prod"
	// AppEnvDev es el identificador local: no envía al WS.
	AppEnvDev = "dev"

	soapURLTest = "https://vpfe-hab.dian.gov.co/WcfDianCustomerServices.svc"
	soapURLProd = "https://vpfe.dian.gov.co/WcfDianCustomerServices.svc"

	soapNS         = "http://schemas.xmlsoap.org/soap/envelope/"
	soapNSTempuri  = "http://tempuri.org/"
	soapActionBase = "http://tempuri.org/IWcfDianCustomerServices/"
)

// ── Puertos (interfaces) ───────────────────────────────────────────────────────

// WSResult resultado de la entrega al WS de la autoridad.
type WSResult struct {
	TrackID  string // ZipKey devuelto por SendBillAsync / SendTestSetAsync
	Accepted bool   // true si el WS aceptó el paquete (HasErrors == false)
	Errors   string // mensajes de error/rechazo (puede ser vacío)
}

// StatusResult resultado de una consulta de estado puntual (GetStatusZip).
type StatusResult struct {
	Processed bool   // false mientras el lote sigue en cola de procesamiento
	Valid     bool   // veredicto (solo significativo si Processed)
	Details   string // descripción y mensajes de la autoridad
}

// Submitter define el puerto de salida para la entrega de paquetes al WS.
// La implementación concreta usa SOAP; para tests se inyecta un stub.
type Submitter interface {
	// SubmitZip envía el ZIP del documento electrónico al WS.
	// env debe ser "test" o "prod"; determina la URL del endpoint.
	// filename es el nombre del archivo ZIP (ej: "830012345FV000000001.zip").
	SubmitZip(ctx context.Context, zipBytes []byte, filename, env string) (*WSResult, error)
}

// StatusChecker define el puerto para la consulta puntual de estado por TrackID.
type StatusChecker interface {
	CheckStatus(ctx context.Context, trackID, env string) (*StatusResult, error)
}

// ── Implementación SOAP ────────────────────────────────────────────────────────

// SOAPClient implementa Submitter y StatusChecker usando el WS SOAP de la autoridad.
// Usa net/http de la stdlib; no requiere librerías de terceros.
type SOAPClient struct {
	httpClient *http.Client
}

// NewSOAPClient construye el cliente SOAP con un timeout de red generoso (60 s)
// ya que el WS puede tardar varios segundos en responder.
func NewSOAPClient() *SOAPClient {
	return &SOAPClient{
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

var (
	_ Submitter     = (*SOAPClient)(nil)
	_ StatusChecker = (*SOAPClient)(nil)
)

// ── Estructuras SOAP ──────────────────────────────────────────────────────────

type soapEnvelope struct {
	XMLName xml.Name   `xml:"s:Envelope"`
	XmlnsS  string     `xml:"xmlns:s,attr"`
	Header  soapHeader `xml:"s:Header"`
	Body    soapBody   `xml:"s:Body"`
}

type soapHeader struct{}

type soapBody struct {
	Content interface{}
}

func (b soapBody) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Name.Local = "s:Body"
	e.EncodeToken(start)
	if err := e.Encode(b.Content); err != nil {
		return err
	}
	return e.EncodeToken(start.End())
}

// sendBillAsyncBody cuerpo para la operación SendBillAsync (producción).
type sendBillAsyncBody struct {
	XMLName     xml.Name `xml:"SendBillAsync"`
	Xmlns       string   `xml:"xmlns,attr"`
	FileName    string   `xml:"fileName"`
	ContentFile string   `xml:"contentFile"` // ZIP en Base64
}

// sendTestSetAsyncBody cuerpo para la operación SendTestSetAsync (habilitación).
type sendTestSetAsyncBody struct {
	XMLName     xml.Name `xml:"SendTestSetAsync"`
	Xmlns       string   `xml:"xmlns,attr"`
	FileName    string   `xml:"fileName"`
	ContentFile string   `xml:"contentFile"` // ZIP en Base64
	TestSetID   string   `xml:"testSetId"`   // ID del set de pruebas (se puede dejar vacío)
}

// getStatusZipBody cuerpo para la operación GetStatusZip (consulta por TrackID).
type getStatusZipBody struct {
	XMLName xml.Name `xml:"GetStatusZip"`
	Xmlns   string   `xml:"xmlns,attr"`
	TrackID string   `xml:"trackId"`
}

// ── Estructuras de respuesta SOAP ─────────────────────────────────────────────

type soapResponseEnvelope struct {
	Body soapResponseBody `xml:"Body"`
}

type soapResponseBody struct {
	SendBillResponse     *sendBillAsyncResponse `xml:"SendBillAsyncResponse"`
	SendTestSetResponse  *sendTestSetAsyncResponse `xml:"SendTestSetAsyncResponse"`
	GetStatusZipResponse *getStatusZipResponse  `xml:"GetStatusZipResponse"`
	Fault                *soapFault             `xml:"Fault"`
}

type sendBillAsyncResponse struct {
	Result sendBillAsyncResult `xml:"SendBillAsyncResult"`
}

type sendTestSetAsyncResponse struct {
	Result sendBillAsyncResult `xml:"SendTestSetAsyncResult"`
}

type sendBillAsyncResult struct {
	HasErrors        bool     `xml:"HasErrors"`
	ErrorMessageList []string `xml:"ErrorMessageList>string"`
	ZipKey           string   `xml:"ZipKey"`
}

type getStatusZipResponse struct {
	Results []statusZipResult `xml:"GetStatusZipResult>DianResponse"`
}

type statusZipResult struct {
	IsValid           string   `xml:"IsValid"`
	StatusCode        string   `xml:"StatusCode"`
	StatusDescription string   `xml:"StatusDescription"`
	StatusMessage     string   `xml:"StatusMessage"`
	ErrorMessageList  []string `xml:"ErrorMessage>string"`
}

type soapFault struct {
	FaultCode   string `xml:"faultcode"`
	FaultString string `xml:"faultstring"`
}

// ── SubmitZip ─────────────────────────────────────────────────────────────────

// SubmitZip envía el ZIP al WS usando la operación SOAP correspondiente al entorno.
func (c *SOAPClient) SubmitZip(ctx context.Context, zipBytes []byte, filename, env string) (*WSResult, error) {
	var body interface{}
	b64Content := base64.StdEncoding.EncodeToString(zipBytes)
	var action string
	switch env {
	case AppEnvProd:
		action = "SendBillAsync"
		body = &sendBillAsyncBody{
			Xmlns:       soapNSTempuri,
			FileName:    filename,
			ContentFile: b64Content,
		}
	case AppEnvTest:
		action = "SendTestSetAsync"
		body = &sendTestSetAsyncBody{
			Xmlns:       soapNSTempuri,
			FileName:    filename,
			ContentFile: b64Content,
			TestSetID:   "", // vacío: la autoridad asigna uno automáticamente
		}
	default:
		return nil, fmt.Errorf("soap: entorno desconocido %q (usar 'test' o 'prod')", env)
	}

	rawBody, err := c.call(ctx, env, action, body)
	if err != nil {
		return nil, err
	}
	return c.parseSubmitResponse(rawBody, env)
}

// CheckStatus consulta el estado del lote por TrackID (operación GetStatusZip).
// Mientras el lote no ha sido procesado la respuesta viene vacía o sin veredicto;
// el caller decide cuántas veces insistir.
func (c *SOAPClient) CheckStatus(ctx context.Context, trackID, env string) (*StatusResult, error) {
	if env != AppEnvProd && env != AppEnvTest {
		return nil, fmt.Errorf("soap: entorno desconocido %q (usar 'test' o 'prod')", env)
	}
	body := &getStatusZipBody{Xmlns: soapNSTempuri, TrackID: trackID}
	rawBody, err := c.call(ctx, env, "GetStatusZip", body)
	if err != nil {
		return nil, err
	}
	return c.parseStatusResponse(rawBody)
}

// call serializa el envelope, ejecuta el POST y devuelve el cuerpo crudo.
func (c *SOAPClient) call(ctx context.Context, env, action string, body interface{}) ([]byte, error) {
	soapURL := soapURLTest
	if env == AppEnvProd {
		soapURL = soapURLProd
	}

	envelope := soapEnvelope{
		XmlnsS: soapNS,
		Body:   soapBody{Content: body},
	}
	xmlPayload, err := xml.MarshalIndent(envelope, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("soap: serializar envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, soapURL,
		bytes.NewReader(xmlPayload))
	if err != nil {
		return nil, fmt.Errorf("soap: crear request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", soapActionBase+action)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("soap: timeout o cancelación: %w", ctx.Err())
		}
		return nil, fmt.Errorf("soap: llamada HTTP fallida: %w", err)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // max 1 MB
	if err != nil {
		return nil, fmt.Errorf("soap: leer respuesta: %w", err)
	}
	return rawBody, nil
}

// parseSubmitResponse desempaqueta la respuesta SOAP y extrae TrackID y errores.
func (c *SOAPClient) parseSubmitResponse(rawBody []byte, env string) (*WSResult, error) {
	var envResp soapResponseEnvelope
	if err := xml.Unmarshal(rawBody, &envResp); err != nil {
		// Si no podemos parsear, devolvemos el raw como error pero no abortamos.
		return &WSResult{
			Accepted: false,
			Errors:   fmt.Sprintf("no se pudo parsear respuesta SOAP: %s", string(rawBody)),
		}, nil
	}

	// SOAP Fault (error de protocolo, autenticación, etc.)
	if envResp.Body.Fault != nil {
		return &WSResult{
			Accepted: false,
			Errors:   fmt.Sprintf("SOAP Fault [%s]: %s", envResp.Body.Fault.FaultCode, envResp.Body.Fault.FaultString),
		}, nil
	}

	var result *sendBillAsyncResult
	if env == AppEnvProd && envResp.Body.SendBillResponse != nil {
		result = &envResp.Body.SendBillResponse.Result
	} else if env == AppEnvTest && envResp.Body.SendTestSetResponse != nil {
		result = &envResp.Body.SendTestSetResponse.Result
	}

	if result == nil {
		return &WSResult{
			Accepted: false,
			Errors:   "respuesta SOAP vacía o inesperada: " + string(rawBody),
		}, nil
	}

	errMsg := strings.Join(result.ErrorMessageList, "; ")
	return &WSResult{
		TrackID:  result.ZipKey,
		Accepted: !result.HasErrors,
		Errors:   errMsg,
	}, nil
}

// parseStatusResponse desempaqueta la respuesta de GetStatusZip.
func (c *SOAPClient) parseStatusResponse(rawBody []byte) (*StatusResult, error) {
	var envResp soapResponseEnvelope
	if err := xml.Unmarshal(rawBody, &envResp); err != nil {
		return nil, fmt.Errorf("soap: parsear respuesta de estado: %w", err)
	}
	if envResp.Body.Fault != nil {
		return nil, fmt.Errorf("soap: fault en GetStatusZip [%s]: %s",
			envResp.Body.Fault.FaultCode, envResp.Body.Fault.FaultString)
	}
	resp := envResp.Body.GetStatusZipResponse
	if resp == nil || len(resp.Results) == 0 {
		// Sin resultado: el lote sigue en cola.
		return &StatusResult{Processed: false}, nil
	}

	res := resp.Results[0]
	details := res.StatusDescription
	if res.StatusMessage != "" {
		if details != "" {
			details += "; "
		}
		details += res.StatusMessage
	}
	if len(res.ErrorMessageList) > 0 {
		if details != "" {
			details += "; "
		}
		details += strings.Join(res.ErrorMessageList, "; ")
	}

	// StatusCode "98" identifica lote aún en procesamiento.
	if res.StatusCode == "98" || res.StatusCode == "" {
		return &StatusResult{Processed: false, Details: details}, nil
	}
	return &StatusResult{
		Processed: true,
		Valid:     strings.EqualFold(res.IsValid, "true"),
		Details:   details,
	}, nil
}
