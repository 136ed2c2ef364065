package issuance_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tu-usuario/facturador-pro/internal/application/issuance"
	"github.com/tu-usuario/facturador-pro/internal/domain"
	"github.com/tu-usuario/facturador-pro/internal/domain/entity"
	"github.com/tu-usuario/facturador-pro/internal/domain/repository"
)

// ──────────────────────────────────────────────────────────────────────────────
// Fakes en memoria. Un único store compartido respalda los tres repositorios;
// el tx runner emula rollback restaurando un snapshot del store si fn falla.
// ──────────────────────────────────────────────────────────────────────────────

type fakeStore struct {
	mu sync.Mutex

	issuers map[string]*entity.Issuer
	series  map[string]*entity.IssuerSeries // clave issuerID|prefix

	docs     map[string]*entity.FiscalDocument
	docItems map[string][]*entity.LineItem
	docRefs  map[string][]*entity.ReferencedDocument

	sources  map[string]*entity.SourceTransaction
	srcItems map[string][]*entity.SourceTransactionItem
	srcRefs  map[string][]*entity.SourceReferenceSpec

	reserveCalls   int
	failItemCreate bool // fuerza el fallo al persistir líneas (prueba de rollback)
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		issuers:  map[string]*entity.Issuer{},
		series:   map[string]*entity.IssuerSeries{},
		docs:     map[string]*entity.FiscalDocument{},
		docItems: map[string][]*entity.LineItem{},
		docRefs:  map[string][]*entity.ReferencedDocument{},
		sources:  map[string]*entity.SourceTransaction{},
		srcItems: map[string][]*entity.SourceTransactionItem{},
		srcRefs:  map[string][]*entity.SourceReferenceSpec{},
	}
}

func seriesKey(issuerID, prefix string) string { return issuerID + "|" + prefix }

// snapshot copia el estado mutable que una transacción puede tocar.
func (s *fakeStore) snapshot() *fakeStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := newFakeStore()
	for k, v := range s.docs {
		d := *v
		cp.docs[k] = &d
	}
	for k, v := range s.docItems {
		cp.docItems[k] = append([]*entity.LineItem(nil), v...)
	}
	for k, v := range s.docRefs {
		cp.docRefs[k] = append([]*entity.ReferencedDocument(nil), v...)
	}
	for k, v := range s.sources {
		src := *v
		if v.DocumentID != nil {
			id := *v.DocumentID
			src.DocumentID = &id
		}
		cp.sources[k] = &src
	}
	return cp
}

func (s *fakeStore) restore(snap *fakeStore) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = snap.docs
	s.docItems = snap.docItems
	s.docRefs = snap.docRefs
	s.sources = snap.sources
}

// ── IssuerRepository ──────────────────────────────────────────────────────────

type fakeIssuerRepo struct{ st *fakeStore }

var _ repository.IssuerRepository = (*fakeIssuerRepo)(nil)

func (r *fakeIssuerRepo) Create(_ context.Context, is *entity.Issuer) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	r.st.issuers[is.ID] = is
	return nil
}

func (r *fakeIssuerRepo) GetByID(_ context.Context, id string) (*entity.Issuer, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	is, ok := r.st.issuers[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return is, nil
}

func (r *fakeIssuerRepo) Update(_ context.Context, is *entity.Issuer) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	r.st.issuers[is.ID] = is
	return nil
}

func (r *fakeIssuerRepo) List(_ context.Context) ([]*entity.Issuer, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	out := make([]*entity.Issuer, 0, len(r.st.issuers))
	for _, is := range r.st.issuers {
		out = append(out, is)
	}
	return out, nil
}

func (r *fakeIssuerRepo) CreateSeries(_ context.Context, sr *entity.IssuerSeries) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	r.st.series[seriesKey(sr.IssuerID, sr.Prefix)] = sr
	return nil
}

func (r *fakeIssuerRepo) GetSeries(_ context.Context, issuerID, prefix string) (*entity.IssuerSeries, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	sr, ok := r.st.series[seriesKey(issuerID, prefix)]
	if !ok {
		return nil, domain.ErrSeriesNotFound
	}
	return sr, nil
}

func (r *fakeIssuerRepo) ListSeries(_ context.Context, issuerID string) ([]*entity.IssuerSeries, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var out []*entity.IssuerSeries
	for _, sr := range r.st.series {
		if sr.IssuerID == issuerID {
			out = append(out, sr)
		}
	}
	return out, nil
}

// ReserveNumber replica la semántica de la sentencia atómica:
// max(cursor de la serie, máximo persistido en documentos) + 1.
func (r *fakeIssuerRepo) ReserveNumber(_ context.Context, issuerID, prefix string) (int64, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	sr, ok := r.st.series[seriesKey(issuerID, prefix)]
	if !ok {
		return 0, domain.ErrSeriesNotFound
	}
	maxStored := sr.LastNumberUsed
	for _, d := range r.st.docs {
		if d.IssuerID == issuerID && d.Series == prefix && d.Number > maxStored {
			maxStored = d.Number
		}
	}
	next := maxStored + 1
	if next > sr.RangeTo {
		return 0, domain.ErrSeriesExhausted
	}
	sr.LastNumberUsed = next
	r.st.reserveCalls++
	return next, nil
}

// ── FiscalDocumentRepository ──────────────────────────────────────────────────

type fakeDocRepo struct{ st *fakeStore }

var _ repository.FiscalDocumentRepository = (*fakeDocRepo)(nil)

func (r *fakeDocRepo) Create(_ context.Context, doc *entity.FiscalDocument) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	d := *doc
	r.st.docs[doc.ID] = &d
	return nil
}

func (r *fakeDocRepo) CreateItem(_ context.Context, it *entity.LineItem) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if r.st.failItemCreate {
		return fmt.Errorf("fallo inyectado al escribir la línea")
	}
	r.st.docItems[it.DocumentID] = append(r.st.docItems[it.DocumentID], it)
	return nil
}

func (r *fakeDocRepo) CreateReference(_ context.Context, ref *entity.ReferencedDocument) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	r.st.docRefs[ref.DocumentID] = append(r.st.docRefs[ref.DocumentID], ref)
	return nil
}

func (r *fakeDocRepo) Update(_ context.Context, doc *entity.FiscalDocument) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	d := *doc
	r.st.docs[doc.ID] = &d
	return nil
}

func (r *fakeDocRepo) UpdateStatus(_ context.Context, id, status, authorityErrors string) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	d, ok := r.st.docs[id]
	if !ok {
		return domain.ErrNotFound
	}
	d.Status = status
	d.AuthorityErrors = authorityErrors
	return nil
}

func (r *fakeDocRepo) GetByID(_ context.Context, id string) (*entity.FiscalDocument, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	d, ok := r.st.docs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *fakeDocRepo) GetItems(_ context.Context, documentID string) ([]*entity.LineItem, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	return append([]*entity.LineItem(nil), r.st.docItems[documentID]...), nil
}

func (r *fakeDocRepo) GetReferences(_ context.Context, documentID string) ([]*entity.ReferencedDocument, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	return append([]*entity.ReferencedDocument(nil), r.st.docRefs[documentID]...), nil
}

func (r *fakeDocRepo) GetStatus(_ context.Context, id string) (*entity.FiscalDocument, error) {
	return r.GetByID(context.Background(), id)
}

// ── SourceTransactionRepository ───────────────────────────────────────────────

type fakeSourceRepo struct{ st *fakeStore }

var _ repository.SourceTransactionRepository = (*fakeSourceRepo)(nil)

func (r *fakeSourceRepo) Create(_ context.Context, tx *entity.SourceTransaction) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	r.st.sources[tx.ID] = tx
	return nil
}

func (r *fakeSourceRepo) CreateItem(_ context.Context, it *entity.SourceTransactionItem) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	r.st.srcItems[it.SourceID] = append(r.st.srcItems[it.SourceID], it)
	return nil
}

func (r *fakeSourceRepo) CreateReference(_ context.Context, ref *entity.SourceReferenceSpec) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	r.st.srcRefs[ref.SourceID] = append(r.st.srcRefs[ref.SourceID], ref)
	return nil
}

func (r *fakeSourceRepo) GetByID(_ context.Context, id string) (*entity.SourceTransaction, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	src, ok := r.st.sources[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *src
	return &cp, nil
}

func (r *fakeSourceRepo) GetItems(_ context.Context, sourceID string) ([]*entity.SourceTransactionItem, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	return append([]*entity.SourceTransactionItem(nil), r.st.srcItems[sourceID]...), nil
}

func (r *fakeSourceRepo) GetReferences(_ context.Context, sourceID string) ([]*entity.SourceReferenceSpec, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	return append([]*entity.SourceReferenceSpec(nil), r.st.srcRefs[sourceID]...), nil
}

func (r *fakeSourceRepo) LinkDocument(_ context.Context, id, documentID string) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	src, ok := r.st.sources[id]
	if !ok {
		return domain.ErrNotFound
	}
	src.DocumentID = &documentID
	return nil
}

func (r *fakeSourceRepo) MarkIssued(_ context.Context, id string) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	src, ok := r.st.sources[id]
	if !ok {
		return domain.ErrNotFound
	}
	src.IssuanceStatus = entity.IssuanceInvoiced
	src.LastError = ""
	return nil
}

func (r *fakeSourceRepo) MarkIssuanceFailed(_ context.Context, id, reason string) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	src, ok := r.st.sources[id]
	if !ok {
		return domain.ErrNotFound
	}
	src.LastError = reason
	src.IssuanceStatus = entity.IssuancePending
	return nil
}

func (r *fakeSourceRepo) List(_ context.Context, issuerID string, _, _ int) ([]*entity.SourceTransaction, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var out []*entity.SourceTransaction
	for _, src := range r.st.sources {
		if src.IssuerID == issuerID {
			out = append(out, src)
		}
	}
	return out, nil
}

// ── TxRunner con rollback por snapshot ────────────────────────────────────────

type fakeTxRunner struct {
	st   *fakeStore
	docs *fakeDocRepo
	srcs *fakeSourceRepo
}

func (r *fakeTxRunner) RunIssuance(_ context.Context, fn func(
	docRepo repository.FiscalDocumentRepository,
	sourceRepo repository.SourceTransactionRepository,
) error) error {
	snap := r.st.snapshot()
	if err := fn(r.docs, r.srcs); err != nil {
		r.st.restore(snap)
		return err
	}
	return nil
}

// ── Gateway stub ──────────────────────────────────────────────────────────────

type stubGateway struct {
	mu           sync.Mutex
	submitResult *issuance.SubmitResult
	submitErr    error
	pollResult   *issuance.PollResult
	pollErr      error
	blockPoll    chan struct{} // si no es nil, Poll espera el cierre o el ctx
	submits      int
	polls        int
}

var _ issuance.AuthorityGateway = (*stubGateway)(nil)

func (g *stubGateway) Submit(_ context.Context, _ *issuance.DocumentSubmission) (*issuance.SubmitResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.submits++
	if g.submitErr != nil {
		return nil, g.submitErr
	}
	if g.submitResult != nil {
		return g.submitResult, nil
	}
	return &issuance.SubmitResult{TrackID: "track-001", Accepted: true}, nil
}

func (g *stubGateway) Poll(ctx context.Context, _, _ string, _ int, _ time.Duration) (*issuance.PollResult, error) {
	g.mu.Lock()
	block := g.blockPoll
	g.polls++
	g.mu.Unlock()
	if block != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-block:
		}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pollErr != nil {
		return nil, g.pollErr
	}
	if g.pollResult != nil {
		return g.pollResult, nil
	}
	return &issuance.PollResult{Status: issuance.PollAuthorized}, nil
}

// ── Fixture ───────────────────────────────────────────────────────────────────

type world struct {
	st      *fakeStore
	orch    *issuance.Orchestrator
	gateway *stubGateway
	docs    *fakeDocRepo
	srcs    *fakeSourceRepo
	issuers *fakeIssuerRepo
}

func newWorld(t *testing.T) *world {
	t.Helper()
	st := newFakeStore()
	docs := &fakeDocRepo{st: st}
	srcs := &fakeSourceRepo{st: st}
	issuers := &fakeIssuerRepo{st: st}
	gw := &stubGateway{}
	orch := issuance.NewOrchestrator(
		issuers, docs, srcs,
		&fakeTxRunner{st: st, docs: docs, srcs: srcs},
		gw,
		issuance.Config{Environment: "2", PollMaxAttempts: 3, PollInterval: 10 * time.Millisecond},
		nil,
	)
	return &world{st: st, orch: orch, gateway: gw, docs: docs, srcs: srcs, issuers: issuers}
}

func (w *world) seedIssuer() *entity.Issuer {
	now := time.Now()
	is := &entity.Issuer{
		ID: "issuer-1", Name: "Acme SAS", NIT: "830012345",
		Environment: "2",
		TechnicalKey: "ab8e3c1f09d2b6e54477aa10c3b9f8d21c64e0a5b7d9f31226c8e4a0d5b71f39",
		Status:       "active", CreatedAt: now, UpdatedAt: now,
	}
	_ = (&fakeIssuerRepo{st: w.st}).Create(context.Background(), is)
	sr := &entity.IssuerSeries{
		ID: "series-1", IssuerID: is.ID, AuthorizationNumber: "18764000000001",
		Prefix: "FV", RangeFrom: 1, RangeTo: 5_000_000, LastNumberUsed: 0,
		DateFrom: now.AddDate(-1, 0, 0), DateTo: now.AddDate(1, 0, 0), IsActive: true,
	}
	_ = (&fakeIssuerRepo{st: w.st}).CreateSeries(context.Background(), sr)
	return is
}

func (w *world) seedSource(id string, qty, price, taxRate float64) *entity.SourceTransaction {
	now := time.Now()
	src := &entity.SourceTransaction{
		ID: id, IssuerID: "issuer-1", Kind: entity.SourceKindPurchase, Series: "FV",
		CounterpartName: "Proveedor Uno", CounterpartTaxID: "79543210",
		OccurredAt: now, IssuanceStatus: entity.IssuancePending,
		CreatedAt: now, UpdatedAt: now,
	}
	_ = w.srcs.Create(context.Background(), src)
	_ = w.srcs.CreateItem(context.Background(), &entity.SourceTransactionItem{
		ID: id + "-item-1", SourceID: id,
		ProductCode: "SKU-100", Description: "Insumo genérico", UnitCode: "94",
		Quantity:  decimal.NewFromFloat(qty),
		UnitPrice: decimal.NewFromFloat(price),
		TaxRate:   decimal.NewFromFloat(taxRate),
	})
	return src
}

// ──────────────────────────────────────────────────────────────────────────────
// Escenarios
// ──────────────────────────────────────────────────────────────────────────────

// TestIssue_FlujoCompletoAutorizado cubre el camino feliz de punta a punta:
// 1000 unidades a 1.00 sin impuesto producen un total de 1000.00, una sola
// línea, y la autorización deja la transacción de origen facturada y enlazada.
func TestIssue_FlujoCompletoAutorizado(t *testing.T) {
	w := newWorld(t)
	w.seedIssuer()
	w.seedSource("src-1", 1000, 1.00, 0)

	var events []issuance.ProgressEvent
	res, err := w.orch.Issue(context.Background(), "src-1", func(ev issuance.ProgressEvent) {
		events = append(events, ev)
	})
	require.NoError(t, err, "la emisión completa no debe fallar")
	require.NotNil(t, res)
	assert.Equal(t, issuance.StateAuthorized, res.State)

	doc := res.Document
	require.NotNil(t, doc)
	assert.Equal(t, entity.DocumentStatusAuthorized, doc.Status)
	assert.Equal(t, int64(1), doc.Number, "el primer consecutivo de la serie debe ser 1")
	assert.Equal(t, "FV000000001", doc.FullNumber())
	assert.True(t, doc.GrandTotal.Equal(decimal.NewFromInt(1000)),
		"1000 x 1.00 sin impuesto debe totalizar 1000.00, se obtuvo %s", doc.GrandTotal)
	assert.Len(t, doc.CUDE, 96, "el CUDE debe quedar calculado en la cabecera")

	items, _ := w.docs.GetItems(context.Background(), doc.ID)
	assert.Len(t, items, 1, "una línea de origen produce exactamente una línea de documento")

	src, _ := w.srcs.GetByID(context.Background(), "src-1")
	assert.Equal(t, entity.IssuanceInvoiced, src.IssuanceStatus,
		"la autorización debe marcar la transacción como facturada")
	require.NotNil(t, src.DocumentID)
	assert.Equal(t, doc.ID, *src.DocumentID, "la transacción debe quedar enlazada al documento")

	// El progreso es monótono y termina en 100.
	last := -1
	for _, ev := range events {
		assert.GreaterOrEqual(t, ev.Percent, last, "el porcentaje nunca retrocede")
		last = ev.Percent
	}
	assert.Equal(t, 100, last)
	assert.Equal(t, issuance.StateAuthorized, events[len(events)-1].State)
}

// TestIssue_PayloadMalformado: el WS rechaza el paquete de inmediato. El
// documento se conserva en borrador (no se borra) y la orquestación termina
// con TransmissionError en transmitting.
func TestIssue_PayloadMalformado(t *testing.T) {
	w := newWorld(t)
	w.seedIssuer()
	w.seedSource("src-1", 2, 50.00, 19)
	w.gateway.submitResult = &issuance.SubmitResult{Accepted: false, Errors: "malformed payload"}

	_, err := w.orch.Issue(context.Background(), "src-1", nil)
	require.Error(t, err)
	assert.Equal(t, issuance.KindTransmission, issuance.KindOf(err))

	var ie *issuance.Error
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, issuance.StateTransmitting, ie.State, "el fallo debe reportar el estado transmitting")

	src, _ := w.srcs.GetByID(context.Background(), "src-1")
	assert.Equal(t, entity.IssuancePending, src.IssuanceStatus, "la transacción sigue pendiente")
	require.NotNil(t, src.DocumentID)
	doc, _ := w.docs.GetByID(context.Background(), *src.DocumentID)
	assert.Equal(t, entity.DocumentStatusDraft, doc.Status, "el borrador se conserva, no se borra")
	assert.Contains(t, doc.AuthorityErrors, "malformed payload")
}

// TestIssue_RollbackSinReusoDeNumero: si falla la escritura de líneas, el
// agregado completo se revierte (no queda documento observable) y el siguiente
// intento recibe un número estrictamente mayor: los consecutivos se consumen,
// jamás se reutilizan.
func TestIssue_RollbackSinReusoDeNumero(t *testing.T) {
	w := newWorld(t)
	w.seedIssuer()
	w.seedSource("src-1", 3, 10.00, 0)

	w.st.mu.Lock()
	w.st.failItemCreate = true
	w.st.mu.Unlock()

	_, err := w.orch.Issue(context.Background(), "src-1", nil)
	require.Error(t, err)
	assert.Equal(t, issuance.KindPersistence, issuance.KindOf(err))

	w.st.mu.Lock()
	assert.Empty(t, w.st.docs, "tras el rollback no debe quedar documento observable")
	w.st.failItemCreate = false
	w.st.mu.Unlock()

	src, _ := w.srcs.GetByID(context.Background(), "src-1")
	assert.Nil(t, src.DocumentID, "el enlace también se revierte con el agregado")
	assert.NotEmpty(t, src.LastError, "el motivo del fallo queda registrado")

	res, err := w.orch.Issue(context.Background(), "src-1", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Document.Number,
		"el número 1 se consumió en el intento fallido; el reintento debe recibir el 2")
}

// TestIssue_RechazoDejaFuentePendiente: un rechazo de la autoridad marca el
// documento como rechazado con el motivo, pero la transacción de origen queda
// en pending (nunca invoiced) para corrección y reemisión.
func TestIssue_RechazoDejaFuentePendiente(t *testing.T) {
	w := newWorld(t)
	w.seedIssuer()
	w.seedSource("src-1", 1, 100.00, 19)
	w.gateway.pollResult = &issuance.PollResult{Status: issuance.PollRejected, Details: "NIT del adquiriente inválido"}

	_, err := w.orch.Issue(context.Background(), "src-1", nil)
	require.Error(t, err)
	assert.Equal(t, issuance.KindRejected, issuance.KindOf(err))

	src, _ := w.srcs.GetByID(context.Background(), "src-1")
	assert.Equal(t, entity.IssuancePending, src.IssuanceStatus)
	assert.Contains(t, src.LastError, "rechazado")

	doc, _ := w.docs.GetByID(context.Background(), *src.DocumentID)
	assert.Equal(t, entity.DocumentStatusRejected, doc.Status)
	assert.Contains(t, doc.AuthorityErrors, "NIT del adquiriente inválido")
}

// TestIssue_TimeoutEsDistintoDeRechazo: agotar el presupuesto de consultas sin
// veredicto produce timeout (no rejected), deja el documento transmitido y el
// mensaje dirige al operador a verificar por canal externo.
func TestIssue_TimeoutEsDistintoDeRechazo(t *testing.T) {
	w := newWorld(t)
	w.seedIssuer()
	w.seedSource("src-1", 1, 100.00, 19)
	w.gateway.pollResult = &issuance.PollResult{Status: issuance.PollTimeout}

	_, err := w.orch.Issue(context.Background(), "src-1", nil)
	require.Error(t, err)
	assert.Equal(t, issuance.KindTimeout, issuance.KindOf(err))
	assert.NotEqual(t, issuance.KindRejected, issuance.KindOf(err),
		"timeout jamás debe confundirse con rechazo")
	assert.Contains(t, err.Error(), "verificar", "el mensaje debe dirigir a verificación externa")

	src, _ := w.srcs.GetByID(context.Background(), "src-1")
	assert.Equal(t, entity.IssuancePending, src.IssuanceStatus)
	doc, _ := w.docs.GetByID(context.Background(), *src.DocumentID)
	assert.Equal(t, entity.DocumentStatusTransmitted, doc.Status,
		"sin veredicto el documento permanece transmitido")
}

// TestIssue_SegundaLlamadaNoAsignaOtroNumero: una segunda invocación mientras
// la primera sigue sin desenlace no debe reservar un segundo consecutivo.
func TestIssue_SegundaLlamadaNoAsignaOtroNumero(t *testing.T) {
	w := newWorld(t)
	w.seedIssuer()
	w.seedSource("src-1", 1, 100.00, 0)
	w.gateway.blockPoll = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := w.orch.Issue(context.Background(), "src-1", nil)
		done <- err
	}()

	// Esperar a que la primera emisión llegue al polling (Submit realizado).
	require.Eventually(t, func() bool {
		w.gateway.mu.Lock()
		defer w.gateway.mu.Unlock()
		return w.gateway.polls > 0
	}, time.Second, 5*time.Millisecond, "la primera emisión debe llegar al polling")

	_, err := w.orch.Issue(context.Background(), "src-1", nil)
	require.Error(t, err, "la segunda llamada concurrente debe rechazarse")
	assert.ErrorIs(t, err, domain.ErrIssuanceInFlight)

	w.st.mu.Lock()
	assert.Equal(t, 1, w.st.reserveCalls, "solo debe haberse reservado un consecutivo")
	w.st.mu.Unlock()

	close(w.gateway.blockPoll)
	require.NoError(t, <-done)
}

// TestIssue_CancelacionDuranteElPolling: cancelar el contexto a mitad del
// polling deja de esperar pero no retracta el envío: el documento permanece
// transmitido.
func TestIssue_CancelacionDuranteElPolling(t *testing.T) {
	w := newWorld(t)
	w.seedIssuer()
	w.seedSource("src-1", 1, 100.00, 0)
	w.gateway.blockPoll = make(chan struct{}) // nunca se cierra: solo sale por ctx

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := w.orch.Issue(ctx, "src-1", nil)
		done <- err
	}()

	require.Eventually(t, func() bool {
		w.gateway.mu.Lock()
		defer w.gateway.mu.Unlock()
		return w.gateway.polls > 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	err := <-done
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	src, _ := w.srcs.GetByID(context.Background(), "src-1")
	doc, _ := w.docs.GetByID(context.Background(), *src.DocumentID)
	assert.Equal(t, entity.DocumentStatusTransmitted, doc.Status,
		"la cancelación no debe retractar el envío ya realizado")
}

// TestIssue_ReanudaBorradorSinNuevoNumero: si la transacción ya enlaza un
// borrador (fallo de transmisión previo), el reintento reutiliza ese documento
// y retoma en transmitting sin reservar otro consecutivo.
func TestIssue_ReanudaBorradorSinNuevoNumero(t *testing.T) {
	w := newWorld(t)
	w.seedIssuer()
	w.seedSource("src-1", 2, 25.00, 19)

	// Primer intento: el WS rechaza el paquete, queda el borrador enlazado.
	w.gateway.submitResult = &issuance.SubmitResult{Accepted: false, Errors: "firma inválida"}
	_, err := w.orch.Issue(context.Background(), "src-1", nil)
	require.Error(t, err)

	w.st.mu.Lock()
	reservedBefore := w.st.reserveCalls
	w.st.mu.Unlock()

	// Segundo intento: el WS acepta y autoriza.
	w.gateway.submitResult = &issuance.SubmitResult{TrackID: "track-002", Accepted: true}
	res, err := w.orch.Issue(context.Background(), "src-1", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Document.Number, "el borrador conserva su consecutivo original")

	w.st.mu.Lock()
	assert.Equal(t, reservedBefore, w.st.reserveCalls,
		"reanudar un borrador no debe reservar un nuevo consecutivo")
	w.st.mu.Unlock()
}

// TestIssue_RehusaSiYaTransmitido: con un envío previo sin veredicto
// registrado, el reintento se rehúsa y dirige a verificación externa.
func TestIssue_RehusaSiYaTransmitido(t *testing.T) {
	w := newWorld(t)
	w.seedIssuer()
	w.seedSource("src-1", 1, 10.00, 0)

	now := time.Now()
	docID := "doc-prev"
	_ = w.docs.Create(context.Background(), &entity.FiscalDocument{
		ID: docID, IssuerID: "issuer-1", SourceID: "src-1", Series: "FV", Number: 7,
		Status: entity.DocumentStatusTransmitted, IssuedAt: now, TrackID: "track-old",
	})
	_ = w.srcs.LinkDocument(context.Background(), "src-1", docID)

	_, err := w.orch.Issue(context.Background(), "src-1", nil)
	require.Error(t, err)
	assert.Equal(t, issuance.KindValidation, issuance.KindOf(err))
	assert.Contains(t, err.Error(), "verificar", "debe dirigir a verificación por canal externo")

	w.st.mu.Lock()
	assert.Zero(t, w.st.reserveCalls, "no debe reservarse ningún consecutivo")
	w.st.mu.Unlock()
}

// TestIssue_ValidacionSinEfectos: un emisor sin clave técnica falla en
// validating con el campo faltante en el mensaje y sin efectos secundarios.
func TestIssue_ValidacionSinEfectos(t *testing.T) {
	w := newWorld(t)
	is := w.seedIssuer()
	is.TechnicalKey = ""
	w.seedSource("src-1", 1, 10.00, 0)

	_, err := w.orch.Issue(context.Background(), "src-1", nil)
	require.Error(t, err)
	assert.Equal(t, issuance.KindValidation, issuance.KindOf(err))
	assert.Contains(t, err.Error(), "clave técnica", "el mensaje debe nombrar el campo faltante")

	w.st.mu.Lock()
	assert.Zero(t, w.st.reserveCalls, "validating no debe consumir consecutivos")
	assert.Empty(t, w.st.docs, "validating no debe escribir documentos")
	w.st.mu.Unlock()
	src, _ := w.srcs.GetByID(context.Background(), "src-1")
	assert.Empty(t, src.LastError, "validating no deja rastro en la transacción de origen")
}

// TestIssue_ErrorDeRedEnTransmision: un fallo de red en Submit es
// TransmissionError; el documento queda en borrador listo para reanudación.
func TestIssue_ErrorDeRedEnTransmision(t *testing.T) {
	w := newWorld(t)
	w.seedIssuer()
	w.seedSource("src-1", 5, 20.00, 5)
	w.gateway.submitErr = errors.New("connection reset by peer")

	_, err := w.orch.Issue(context.Background(), "src-1", nil)
	require.Error(t, err)
	assert.Equal(t, issuance.KindTransmission, issuance.KindOf(err))

	src, _ := w.srcs.GetByID(context.Background(), "src-1")
	require.NotNil(t, src.DocumentID)
	doc, _ := w.docs.GetByID(context.Background(), *src.DocumentID)
	assert.Equal(t, entity.DocumentStatusDraft, doc.Status)
}
