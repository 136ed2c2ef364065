package authority

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/tu-usuario/facturador-pro/internal/application/issuance"
	"github.com/tu-usuario/facturador-pro/pkg/fiscal"
	"github.com/tu-usuario/facturador-pro/pkg/logger"
)

var _ issuance.AuthorityGateway = (*Gateway)(nil)

// GatewayConfig parámetros del gateway hacia la autoridad.
type GatewayConfig struct {
	// Environment es el TipoAmb del documento: "1" = producción, "2" = pruebas.
	Environment string
	// Simulate evita el envío real al WS (entornos locales sin certificado):
	// el Submit acepta siempre y el Poll autoriza de inmediato.
	Simulate bool
}

// Gateway implementa el puerto issuance.AuthorityGateway: construye el XML
// UBL, lo firma, lo empaqueta y lo entrega por SOAP, y consulta el veredicto
// con un presupuesto acotado de intentos.
type Gateway struct {
	builder   *XMLBuilderService
	signer    fiscal.Signer
	cert      tls.Certificate
	submitter Submitter
	checker   StatusChecker
	cfg       GatewayConfig
	log       *logger.Logger
}

// NewGateway construye el gateway. cert puede venir vacío (no se firma).
func NewGateway(
	submitter Submitter,
	checker StatusChecker,
	signer fiscal.Signer,
	cert tls.Certificate,
	cfg GatewayConfig,
	log *logger.Logger,
) *Gateway {
	return &Gateway{
		builder:   NewXMLBuilderService(),
		signer:    signer,
		cert:      cert,
		submitter: submitter,
		checker:   checker,
		cfg:       cfg,
		log:       log,
	}
}

// wsEnv traduce el TipoAmb al identificador de endpoint del WS.
func (g *Gateway) wsEnv() string {
	if g.cfg.Environment == "1" {
		return AppEnvProd
	}
	return AppEnvTest
}

// Submit construye, firma, empaqueta y entrega el documento.
// Un fallo de generación o de red se devuelve como error (el documento no
// salió); Accepted=false en el resultado significa rechazo inmediato del WS.
func (g *Gateway) Submit(ctx context.Context, sub *issuance.DocumentSubmission) (*issuance.SubmitResult, error) {
	buildCtx := &DocumentBuildContext{
		Issuer:     sub.Issuer,
		Series:     sub.Series,
		Document:   sub.Document,
		Items:      sub.Items,
		References: sub.References,
	}
	xmlBytes, err := g.builder.Build(buildCtx)
	if err != nil {
		return nil, fmt.Errorf("authority: construir XML: %w", err)
	}

	signedXML := xmlBytes
	if g.signer != nil && len(g.cert.Certificate) > 0 {
		signedXML, err = g.signer.Sign(xmlBytes, g.cert)
		if err != nil {
			return nil, fmt.Errorf("authority: firmar XML: %w", err)
		}
	}
	sub.Document.XMLSigned = string(signedXML)

	xmlName, zipName := PackageFilenames(sub.Issuer, sub.Document)
	zipBytes, err := CompressXMLToZip(signedXML, xmlName)
	if err != nil {
		return nil, fmt.Errorf("authority: empaquetar ZIP: %w", err)
	}

	if g.cfg.Simulate {
		if g.log != nil {
			g.log.Info().Str("document", sub.Document.FullNumber()).Msg("envío simulado: no se contacta al WS")
		}
		return &issuance.SubmitResult{
			TrackID:  "SIM-" + sub.Document.ID,
			Accepted: true,
		}, nil
	}

	res, err := g.submitter.SubmitZip(ctx, zipBytes, zipName, g.wsEnv())
	if err != nil {
		return nil, err
	}
	if g.log != nil {
		g.log.Info().
			Str("document", sub.Document.FullNumber()).
			Str("track_id", res.TrackID).
			Bool("accepted", res.Accepted).
			Msg("paquete entregado al WS")
	}
	return &issuance.SubmitResult{
		TrackID:  res.TrackID,
		Accepted: res.Accepted,
		Errors:   res.Errors,
	}, nil
}

// Poll consulta el estado hasta maxAttempts veces con pausa fija entre
// intentos. Un error transitorio de consulta no aborta el presupuesto; la
// cancelación del contexto sí (sin retractar el envío ya realizado).
func (g *Gateway) Poll(ctx context.Context, trackID, documentID string, maxAttempts int, interval time.Duration) (*issuance.PollResult, error) {
	if g.cfg.Simulate {
		return &issuance.PollResult{Status: issuance.PollAuthorized, Details: "autorización simulada"}, nil
	}
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		st, err := g.checker.CheckStatus(ctx, trackID, g.wsEnv())
		switch {
		case err != nil && ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil:
			if g.log != nil {
				g.log.Warn().Err(err).
					Str("track_id", trackID).
					Str("document_id", documentID).
					Int("attempt", attempt).
					Msg("consulta de estado fallida; se reintenta")
			}
		case st.Processed && st.Valid:
			return &issuance.PollResult{Status: issuance.PollAuthorized, Details: st.Details}, nil
		case st.Processed:
			return &issuance.PollResult{Status: issuance.PollRejected, Details: st.Details}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}

	return &issuance.PollResult{
		Status:  issuance.PollTimeout,
		Details: fmt.Sprintf("sin veredicto tras %d consultas", maxAttempts),
	}, nil
}
