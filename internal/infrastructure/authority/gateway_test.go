package authority_test

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/tls"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tu-usuario/facturador-pro/internal/application/issuance"
	"github.com/tu-usuario/facturador-pro/internal/domain/entity"
	"github.com/tu-usuario/facturador-pro/internal/infrastructure/authority"
)

// ── Stubs de los puertos SOAP ─────────────────────────────────────────────────

type stubSubmitter struct {
	result       *authority.WSResult
	err          error
	calls        int
	lastFilename string
	lastZip      []byte
	lastEnv      string
}

func (s *stubSubmitter) SubmitZip(_ context.Context, zipBytes []byte, filename, env string) (*authority.WSResult, error) {
	s.calls++
	s.lastZip = zipBytes
	s.lastFilename = filename
	s.lastEnv = env
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type stubChecker struct {
	results []*authority.StatusResult // se consumen en orden; el último se repite
	calls   int
}

func (s *stubChecker) CheckStatus(_ context.Context, _, _ string) (*authority.StatusResult, error) {
	idx := s.calls
	if idx >= len(s.results) {
		idx = len(s.results) - 1
	}
	s.calls++
	return s.results[idx], nil
}

var _ authority.Submitter = (*stubSubmitter)(nil)
var _ authority.StatusChecker = (*stubChecker)(nil)

func tlsCertEmpty() tls.Certificate { return tls.Certificate{} }

// ── Fixtures ──────────────────────────────────────────────────────────────────

func buildSubmission() *issuance.DocumentSubmission {
	issuedAt := time.Date(2024, 5, 17, 10, 30, 0, 0, time.UTC)
	return &issuance.DocumentSubmission{
		Issuer: &entity.Issuer{
			ID:          "iss-1",
			Name:        "Comercializadora Andina SAS",
			NIT:         "830.012.345-8",
			Environment: "2",
		},
		Series: &entity.IssuerSeries{
			AuthorizationNumber: "18764000000001",
			Prefix:              "FV",
			RangeFrom:           1,
			RangeTo:             5000000,
			DateFrom:            issuedAt.AddDate(-1, 0, 0),
			DateTo:              issuedAt.AddDate(1, 0, 0),
		},
		Document: &entity.FiscalDocument{
			ID:               "doc-1",
			IssuerID:         "iss-1",
			Series:           "FV",
			Number:           1,
			Status:           entity.DocumentStatusDraft,
			IssuedAt:         issuedAt,
			CounterpartName:  "Carlos Pérez",
			CounterpartTaxID: "79543210",
			NetTotal:         decimal.RequireFromString("1000.00"),
			TaxTotal:         decimal.RequireFromString("190.00"),
			GrandTotal:       decimal.RequireFromString("1190.00"),
			CUDE:             "97b8a19b1c752103fc5e51bae02dddf5001dcf0dde852a144903c2c4dd991bcaa21915abb4da4fb0a74ddafd6f032623",
		},
		Items: []*entity.LineItem{
			{
				ProductCode: "SKU-001",
				Description: "Café tostado 500g",
				Quantity:    decimal.NewFromInt(10),
				UnitPrice:   decimal.RequireFromString("100.00"),
				TaxRate:     decimal.RequireFromString("19"),
				TaxAmount:   decimal.RequireFromString("190.00"),
				Subtotal:    decimal.RequireFromString("1000.00"),
			},
		},
	}
}

// ── Submit ────────────────────────────────────────────────────────────────────

func TestSubmit_EntregaPaqueteAlWS(t *testing.T) {
	submitter := &stubSubmitter{result: &authority.WSResult{TrackID: "zip-key-1", Accepted: true}}
	gw := authority.NewGateway(submitter, &stubChecker{}, nil, tlsCertEmpty(),
		authority.GatewayConfig{Environment: "2"}, nil)

	sub := buildSubmission()
	res, err := gw.Submit(context.Background(), sub)
	require.NoError(t, err, "el envío no debe fallar")
	require.NotNil(t, res)

	assert.True(t, res.Accepted, "el WS aceptó el paquete")
	assert.Equal(t, "zip-key-1", res.TrackID)
	assert.Equal(t, 1, submitter.calls)
	assert.Equal(t, "830012345FV000000001.zip", submitter.lastFilename,
		"nombre del ZIP: NIT sin DV + serie + número a 9 dígitos")
	assert.Equal(t, "test", submitter.lastEnv, "TipoAmb 2 debe ir al endpoint de habilitación")
	assert.NotEmpty(t, sub.Document.XMLSigned, "el XML generado queda en el documento")

	// El ZIP debe contener exactamente un XML con el nombre esperado
	zr, err := zip.NewReader(bytes.NewReader(submitter.lastZip), int64(len(submitter.lastZip)))
	require.NoError(t, err, "el paquete debe ser un ZIP válido")
	require.Len(t, zr.File, 1)
	assert.Equal(t, "830012345FV000000001.xml", zr.File[0].Name)
}

func TestSubmit_ModoSimuladoNoContactaElWS(t *testing.T) {
	submitter := &stubSubmitter{result: &authority.WSResult{Accepted: true}}
	gw := authority.NewGateway(submitter, &stubChecker{}, nil, tlsCertEmpty(),
		authority.GatewayConfig{Environment: "2", Simulate: true}, nil)

	res, err := gw.Submit(context.Background(), buildSubmission())
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.Equal(t, "SIM-doc-1", res.TrackID)
	assert.Zero(t, submitter.calls, "en modo simulado jamás se llama al WS")
}

func TestSubmit_RechazoInmediatoDelPaquete(t *testing.T) {
	submitter := &stubSubmitter{result: &authority.WSResult{Accepted: false, Errors: "contenido malformado"}}
	gw := authority.NewGateway(submitter, &stubChecker{}, nil, tlsCertEmpty(),
		authority.GatewayConfig{Environment: "2"}, nil)

	res, err := gw.Submit(context.Background(), buildSubmission())
	require.NoError(t, err, "un rechazo del WS no es un error de red")
	assert.False(t, res.Accepted)
	assert.Contains(t, res.Errors, "malformado")
}

// ── Poll ──────────────────────────────────────────────────────────────────────

func TestPoll_AutorizaEnElSegundoIntento(t *testing.T) {
	checker := &stubChecker{results: []*authority.StatusResult{
		{Processed: false},
		{Processed: true, Valid: true, Details: "Procesado Correctamente"},
	}}
	gw := authority.NewGateway(&stubSubmitter{}, checker, nil, tlsCertEmpty(),
		authority.GatewayConfig{Environment: "2"}, nil)

	res, err := gw.Poll(context.Background(), "zip-key-1", "doc-1", 5, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, issuance.PollAuthorized, res.Status)
	assert.Equal(t, 2, checker.calls, "debe detenerse al primer veredicto")
}

func TestPoll_RechazoConDetalles(t *testing.T) {
	checker := &stubChecker{results: []*authority.StatusResult{
		{Processed: true, Valid: false, Details: "Regla FAD06: firma inválida"},
	}}
	gw := authority.NewGateway(&stubSubmitter{}, checker, nil, tlsCertEmpty(),
		authority.GatewayConfig{Environment: "2"}, nil)

	res, err := gw.Poll(context.Background(), "zip-key-1", "doc-1", 5, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, issuance.PollRejected, res.Status)
	assert.Contains(t, res.Details, "FAD06")
}

func TestPoll_AgotaElPresupuestoDeConsultas(t *testing.T) {
	checker := &stubChecker{results: []*authority.StatusResult{{Processed: false}}}
	gw := authority.NewGateway(&stubSubmitter{}, checker, nil, tlsCertEmpty(),
		authority.GatewayConfig{Environment: "2"}, nil)

	start := time.Now()
	res, err := gw.Poll(context.Background(), "zip-key-1", "doc-1", 3, 10*time.Millisecond)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, issuance.PollTimeout, res.Status)
	assert.Equal(t, 3, checker.calls, "exactamente maxAttempts consultas")
	assert.GreaterOrEqual(t, elapsed, 30*time.Millisecond,
		"debe respetar la pausa entre intentos")
}

func TestPoll_CancelacionDelContexto(t *testing.T) {
	checker := &stubChecker{results: []*authority.StatusResult{{Processed: false}}}
	gw := authority.NewGateway(&stubSubmitter{}, checker, nil, tlsCertEmpty(),
		authority.GatewayConfig{Environment: "2"}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := gw.Poll(ctx, "zip-key-1", "doc-1", 100, time.Second)
	require.ErrorIs(t, err, context.Canceled,
		"la cancelación corta la espera sin retractar el envío")
}
