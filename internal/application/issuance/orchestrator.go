package issuance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tu-usuario/facturador-pro/internal/domain"
	"github.com/tu-usuario/facturador-pro/internal/domain/entity"
	domfiscal "github.com/tu-usuario/facturador-pro/internal/domain/fiscal"
	"github.com/tu-usuario/facturador-pro/internal/domain/repository"
	"github.com/tu-usuario/facturador-pro/pkg/logger"
)

// Config parámetros de la orquestación.
type Config struct {
	Environment     string        // "1" = producción, "2" = pruebas; fallback si el emisor no lo define
	PollMaxAttempts int           // presupuesto de consultas de estado (default 30)
	PollInterval    time.Duration // pausa entre consultas (default 3 s)
}

// Result resultado de una emisión autorizada.
type Result struct {
	State    string
	Document *entity.FiscalDocument
}

// Orchestrator ejecuta el ciclo completo de emisión de un documento fiscal:
//
//	validating → reserving_number → creating_document → creating_items →
//	creating_references → transmitting → polling → authorized|rejected|timeout
//
// Cualquier estado puede terminar en error; el error tipado transporta el
// último estado alcanzado y el motivo. El consecutivo reservado se consume
// siempre, aunque la emisión posterior falle: huecos legales, colisiones nunca.
type Orchestrator struct {
	issuerRepo repository.IssuerRepository
	docRepo    repository.FiscalDocumentRepository
	sourceRepo repository.SourceTransactionRepository
	allocator  *SequenceAllocator
	txRunner   TxRunner
	gateway    AuthorityGateway
	cude       *domfiscal.CudeCalculatorService
	cfg        Config
	log        *logger.Logger

	// inflight evita dos emisiones simultáneas de la misma transacción de
	// origen dentro del proceso. La guarda durable es el document_id enlazado.
	inflight sync.Map
}

// NewOrchestrator construye el orquestador con todas sus dependencias.
func NewOrchestrator(
	issuerRepo repository.IssuerRepository,
	docRepo repository.FiscalDocumentRepository,
	sourceRepo repository.SourceTransactionRepository,
	txRunner TxRunner,
	gateway AuthorityGateway,
	cfg Config,
	log *logger.Logger,
) *Orchestrator {
	if cfg.PollMaxAttempts <= 0 {
		cfg.PollMaxAttempts = 30
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 3 * time.Second
	}
	return &Orchestrator{
		issuerRepo: issuerRepo,
		docRepo:    docRepo,
		sourceRepo: sourceRepo,
		allocator:  NewSequenceAllocator(issuerRepo),
		txRunner:   txRunner,
		gateway:    gateway,
		cude:       domfiscal.NewCudeCalculatorService(),
		cfg:        cfg,
		log:        log,
	}
}

// Issue emite el documento fiscal de la transacción de origen dada.
// onProgress (opcional) recibe un evento por transición de estado.
// Devuelve Result solo si la autoridad autorizó; en cualquier otro desenlace
// retorna un *Error con la clase, el estado alcanzado y el motivo.
func (o *Orchestrator) Issue(ctx context.Context, sourceID string, onProgress ProgressFunc) (*Result, error) {
	if _, loaded := o.inflight.LoadOrStore(sourceID, struct{}{}); loaded {
		return nil, newError(KindValidation, StateIdle,
			"ya hay una emisión en curso para esta transacción", domain.ErrIssuanceInFlight)
	}
	defer o.inflight.Delete(sourceID)

	res, err := o.issue(ctx, sourceID, onProgress)
	if err != nil {
		var ie *Error
		if errors.As(err, &ie) && ie.Kind != KindRejected && ie.Kind != KindTimeout && onProgress != nil {
			// rejected y timeout emiten su propio evento terminal; el resto cae a error
			// reportando el porcentaje del último estado alcanzado.
			onProgress(ProgressEvent{
				SourceID: sourceID,
				State:    StateError,
				Percent:  ProgressPercent(ie.State),
				Message:  ie.Reason,
			})
		}
	}
	return res, err
}

// IssueAsync dispara la emisión en una goroutine propia y devuelve el canal de
// eventos de avance. El canal se cierra al terminar; el contexto del caller no
// queda bloqueado por el presupuesto de polling.
func (o *Orchestrator) IssueAsync(sourceID string) <-chan ProgressEvent {
	events := make(chan ProgressEvent, 16)
	budget := time.Duration(o.cfg.PollMaxAttempts)*o.cfg.PollInterval + 60*time.Second
	go func() {
		defer close(events)
		ctx, cancel := context.WithTimeout(context.Background(), budget)
		defer cancel()
		_, _ = o.Issue(ctx, sourceID, func(ev ProgressEvent) { events <- ev })
	}()
	return events
}

// issue es el núcleo síncrono de la orquestación.
func (o *Orchestrator) issue(ctx context.Context, sourceID string, onProgress ProgressFunc) (*Result, error) {
	emit := func(state, docID, msg string) {
		if o.log != nil {
			o.log.Info().
				Str("source_id", sourceID).
				Str("document_id", docID).
				Str("state", state).
				Int("percent", ProgressPercent(state)).
				Msg(msg)
		}
		if onProgress != nil {
			onProgress(ProgressEvent{
				SourceID:   sourceID,
				DocumentID: docID,
				State:      state,
				Percent:    ProgressPercent(state),
				Message:    msg,
			})
		}
	}

	// failSource registra el motivo en la transacción de origen y la deja en
	// pending para corrección y reintento. Usa un contexto no cancelable: el
	// registro del fallo debe sobrevivir a la cancelación del caller.
	failSource := func(reason string) {
		if err := o.sourceRepo.MarkIssuanceFailed(context.WithoutCancel(ctx), sourceID, reason); err != nil && o.log != nil {
			o.log.Error().Err(err).Str("source_id", sourceID).Msg("no se pudo registrar el fallo de emisión")
		}
	}

	// ═══════════════════════════════════════════════════════════════════════
	// validating — sin efectos secundarios: un fallo aquí no escribe nada
	// ═══════════════════════════════════════════════════════════════════════
	emit(StateValidating, "", "validando emisor, serie y contraparte")

	source, err := o.sourceRepo.GetByID(ctx, sourceID)
	if err != nil || source == nil {
		if err == nil {
			err = domain.ErrNotFound
		}
		return nil, newError(KindValidation, StateValidating, "transacción de origen no encontrada", err)
	}
	if source.IssuanceStatus == entity.IssuanceInvoiced {
		return nil, newError(KindValidation, StateValidating,
			"la transacción ya fue facturada", domain.ErrAlreadyInvoiced)
	}

	issuer, err := o.issuerRepo.GetByID(ctx, source.IssuerID)
	if err != nil || issuer == nil {
		return nil, newError(KindValidation, StateValidating, "emisor no encontrado", err)
	}
	if issuer.NIT == "" {
		return nil, newError(KindValidation, StateValidating, "emisor sin NIT configurado", domain.ErrInvalidInput)
	}
	if issuer.TechnicalKey == "" {
		return nil, newError(KindValidation, StateValidating,
			"emisor sin clave técnica para el ambiente activo", domain.ErrInvalidInput)
	}
	if source.CounterpartTaxID == "" || source.CounterpartName == "" {
		return nil, newError(KindValidation, StateValidating,
			"contraparte sin identificación o nombre", domain.ErrInvalidInput)
	}

	series, err := o.issuerRepo.GetSeries(ctx, issuer.ID, source.Series)
	if err != nil || series == nil {
		return nil, newError(KindValidation, StateValidating,
			fmt.Sprintf("serie %q no encontrada para el emisor", source.Series), domain.ErrSeriesNotFound)
	}
	if !series.Vigente(time.Now()) {
		return nil, newError(KindValidation, StateValidating,
			fmt.Sprintf("serie %q inactiva o fuera de vigencia", series.Prefix), domain.ErrSeriesInactive)
	}

	srcItems, err := o.sourceRepo.GetItems(ctx, sourceID)
	if err != nil {
		return nil, newError(KindValidation, StateValidating, "error leyendo líneas de la transacción", err)
	}
	if len(srcItems) == 0 {
		return nil, newError(KindValidation, StateValidating,
			"la transacción no tiene líneas que facturar", domain.ErrInvalidInput)
	}
	refSpecs, err := o.sourceRepo.GetReferences(ctx, sourceID)
	if err != nil {
		return nil, newError(KindValidation, StateValidating, "error leyendo referencias de la transacción", err)
	}

	// Guarda durable de idempotencia: si ya hay documento enlazado, la acción
	// depende de su estado. Solo rejected/error habilitan asignación fresca.
	if source.DocumentID != nil && *source.DocumentID != "" {
		prior, perr := o.docRepo.GetStatus(ctx, *source.DocumentID)
		if perr == nil && prior != nil {
			switch prior.Status {
			case entity.DocumentStatusDraft:
				return o.resumeDraft(ctx, emit, failSource, source, issuer, series, *source.DocumentID)
			case entity.DocumentStatusTransmitted:
				return nil, newError(KindValidation, StateValidating,
					"ya existe un envío sin veredicto registrado: verificar el estado ante la autoridad por canal externo antes de reintentar",
					domain.ErrConflict)
			case entity.DocumentStatusAuthorized:
				return nil, newError(KindValidation, StateValidating,
					"la transacción ya tiene documento autorizado", domain.ErrAlreadyInvoiced)
			}
		}
	}

	// ═══════════════════════════════════════════════════════════════════════
	// reserving_number — atómico en una sentencia; nada escrito si falla
	// ═══════════════════════════════════════════════════════════════════════
	emit(StateReservingNumber, "", fmt.Sprintf("reservando consecutivo de la serie %s", series.Prefix))

	number, err := o.allocator.Reserve(ctx, issuer.ID, series.Prefix)
	if err != nil {
		return nil, err
	}

	// ═══════════════════════════════════════════════════════════════════════
	// creating_document — cabecera + CUDE + QR
	// ═══════════════════════════════════════════════════════════════════════
	now := time.Now()
	docID := uuid.New().String()
	emit(StateCreatingDocument, docID, fmt.Sprintf("creando documento %s%09d", series.Prefix, number))

	var net, tax decimal.Decimal
	docItems := make([]*entity.LineItem, len(srcItems))
	for i, it := range srcItems {
		subtotal := it.Quantity.Mul(it.UnitPrice).Round(2)
		lineTax := subtotal.Mul(it.TaxRate).Div(decimal.NewFromInt(100)).Round(2)
		net = net.Add(subtotal)
		tax = tax.Add(lineTax)
		docItems[i] = &entity.LineItem{
			ID:          uuid.New().String(),
			DocumentID:  docID,
			ProductCode: it.ProductCode,
			Description: it.Description,
			UnitCode:    it.UnitCode,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			TaxRate:     it.TaxRate,
			TaxAmount:   lineTax,
			Subtotal:    subtotal,
		}
	}

	doc := &entity.FiscalDocument{
		ID:               docID,
		IssuerID:         issuer.ID,
		SourceID:         sourceID,
		Series:           series.Prefix,
		Number:           number,
		OperationKind:    source.OperationKind(),
		Status:           entity.DocumentStatusDraft,
		IssuedAt:         now,
		CounterpartName:  source.CounterpartName,
		CounterpartTaxID: source.CounterpartTaxID,
		NetTotal:         net.Round(2),
		TaxTotal:         tax.Round(2),
		GrandTotal:       net.Add(tax).Round(2),
		Complementary:    source.Complementary,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	tipoAmb := issuer.Environment
	if tipoAmb == "" {
		tipoAmb = o.cfg.Environment
	}
	if tipoAmb == "" {
		tipoAmb = "2"
	}
	cude, err := o.cude.Calculate(&domfiscal.CudeParams{
		NumDoc:    doc.FullNumber(),
		FecDoc:    now.Format("2006-01-02"),
		ValDoc:    doc.NetTotal,
		ValImp_01: doc.TaxTotal,
		ValImp_04: decimal.Zero,
		ValImp_03: decimal.Zero,
		ValPag:    doc.GrandTotal,
		NitEmisor: issuer.NIT,
		DocContra: doc.CounterpartTaxID,
		ClTec:     issuer.TechnicalKey,
		TipoAmb:   tipoAmb,
	})
	if err != nil {
		e := newError(KindPersistence, StateCreatingDocument, "no se pudo calcular el CUDE", err)
		failSource(e.Reason + ": " + err.Error())
		return nil, e
	}
	doc.CUDE = cude
	doc.QRData = buildQRData(doc, tipoAmb)

	refs := make([]*entity.ReferencedDocument, len(refSpecs))
	for i, rs := range refSpecs {
		refs[i] = &entity.ReferencedDocument{
			ID:             uuid.New().String(),
			DocumentID:     docID,
			Kind:           rs.Kind,
			ElectronicKey:  rs.ElectronicKey,
			Jurisdiction:   rs.Jurisdiction,
			YearMonth:      rs.YearMonth,
			RegistrationID: rs.RegistrationID,
			Book:           rs.Book,
			BookSeries:     rs.BookSeries,
			BookNumber:     rs.BookNumber,
		}
	}

	if err := domfiscal.ValidateDocument(doc, docItems, refs, identTypeCode(doc.CounterpartTaxID)); err != nil {
		e := newError(KindValidation, StateCreatingDocument, "documento inválido para emisión", err)
		failSource(e.Reason + ": " + err.Error())
		return nil, e
	}

	// ═══════════════════════════════════════════════════════════════════════
	// creating_items / creating_references — agregado completo en una tx
	// ═══════════════════════════════════════════════════════════════════════
	stateReached := StateCreatingDocument
	err = o.txRunner.RunIssuance(ctx, func(
		docRepo repository.FiscalDocumentRepository,
		srcRepo repository.SourceTransactionRepository,
	) error {
		if err := docRepo.Create(ctx, doc); err != nil {
			return fmt.Errorf("crear cabecera: %w", err)
		}
		stateReached = StateCreatingItems
		emit(StateCreatingItems, docID, fmt.Sprintf("persistiendo %d líneas", len(docItems)))
		for _, it := range docItems {
			if err := docRepo.CreateItem(ctx, it); err != nil {
				return fmt.Errorf("crear línea %s: %w", it.ProductCode, err)
			}
		}
		stateReached = StateCreatingReferences
		emit(StateCreatingReferences, docID, fmt.Sprintf("persistiendo %d referencias", len(refs)))
		for _, r := range refs {
			if err := docRepo.CreateReference(ctx, r); err != nil {
				return fmt.Errorf("crear referencia: %w", err)
			}
		}
		// Enlace durable: un reintento tras caída encuentra el borrador.
		if err := srcRepo.LinkDocument(ctx, sourceID, docID); err != nil {
			return fmt.Errorf("enlazar documento a la transacción: %w", err)
		}
		return nil
	})
	if err != nil {
		e := newError(KindPersistence, stateReached,
			"el agregado fue revertido; el consecutivo reservado queda consumido", err)
		failSource(e.Reason + ": " + err.Error())
		return nil, e
	}

	return o.transmit(ctx, emit, failSource, sourceID, issuer, series, doc, docItems, refs)
}

// resumeDraft reanuda una emisión cuyo borrador ya existe (fallo previo de
// transmisión): no se reserva un segundo número, se retoma en transmitting.
func (o *Orchestrator) resumeDraft(
	ctx context.Context,
	emit func(state, docID, msg string),
	failSource func(reason string),
	source *entity.SourceTransaction,
	issuer *entity.Issuer,
	series *entity.IssuerSeries,
	documentID string,
) (*Result, error) {
	doc, err := o.docRepo.GetByID(ctx, documentID)
	if err != nil || doc == nil {
		return nil, newError(KindValidation, StateValidating, "borrador enlazado no encontrado", err)
	}
	items, err := o.docRepo.GetItems(ctx, documentID)
	if err != nil {
		return nil, newError(KindValidation, StateValidating, "error leyendo líneas del borrador", err)
	}
	refs, err := o.docRepo.GetReferences(ctx, documentID)
	if err != nil {
		return nil, newError(KindValidation, StateValidating, "error leyendo referencias del borrador", err)
	}
	emit(StateCreatingDocument, documentID,
		fmt.Sprintf("reanudando borrador %s sin reservar nuevo consecutivo", doc.FullNumber()))
	return o.transmit(ctx, emit, failSource, source.ID, issuer, series, doc, items, refs)
}

// transmit cubre transmitting y polling hasta el desenlace terminal.
func (o *Orchestrator) transmit(
	ctx context.Context,
	emit func(state, docID, msg string),
	failSource func(reason string),
	sourceID string,
	issuer *entity.Issuer,
	series *entity.IssuerSeries,
	doc *entity.FiscalDocument,
	items []*entity.LineItem,
	refs []*entity.ReferencedDocument,
) (*Result, error) {
	emit(StateTransmitting, doc.ID, "firmando y entregando el paquete a la autoridad")

	sub := &DocumentSubmission{
		Issuer:     issuer,
		Series:     series,
		Document:   doc,
		Items:      items,
		References: refs,
	}
	res, err := o.gateway.Submit(ctx, sub)
	if err != nil {
		e := newError(KindTransmission, StateTransmitting,
			"no se pudo entregar el paquete; el documento queda en borrador", err)
		failSource(e.Reason + ": " + err.Error())
		return nil, e
	}
	if !res.Accepted {
		// Rechazo inmediato del paquete: el borrador se conserva, no se borra.
		if uerr := o.docRepo.UpdateStatus(ctx, doc.ID, entity.DocumentStatusDraft, res.Errors); uerr != nil && o.log != nil {
			o.log.Error().Err(uerr).Str("document_id", doc.ID).Msg("no se pudo registrar el rechazo del paquete")
		}
		e := newError(KindTransmission, StateTransmitting,
			"la autoridad rechazó el paquete: "+res.Errors, nil)
		failSource(e.Reason)
		return nil, e
	}

	doc.TrackID = res.TrackID
	doc.Status = entity.DocumentStatusTransmitted
	doc.UpdatedAt = time.Now()
	if err := o.docRepo.Update(ctx, doc); err != nil {
		e := newError(KindPersistence, StateTransmitting,
			"no se pudo persistir el estado transmitido", err)
		failSource(e.Reason + ": " + err.Error())
		return nil, e
	}

	emit(StatePolling, doc.ID, fmt.Sprintf("consultando veredicto (track %s)", res.TrackID))

	poll, err := o.gateway.Poll(ctx, res.TrackID, doc.ID, o.cfg.PollMaxAttempts, o.cfg.PollInterval)
	if err != nil {
		// Cancelación del caller: se deja de esperar, el envío no se retracta
		// y el documento permanece transmitido.
		reason := "consulta de veredicto interrumpida; el documento sigue transmitido: verificar ante la autoridad por canal externo"
		failSource(reason)
		return nil, newError(KindTimeout, StatePolling, reason, err)
	}

	switch poll.Status {
	case PollAuthorized:
		if uerr := o.docRepo.UpdateStatus(ctx, doc.ID, entity.DocumentStatusAuthorized, ""); uerr != nil {
			e := newError(KindPersistence, StatePolling, "no se pudo persistir la autorización", uerr)
			failSource(e.Reason + ": " + uerr.Error())
			return nil, e
		}
		doc.Status = entity.DocumentStatusAuthorized
		if merr := o.sourceRepo.MarkIssued(context.WithoutCancel(ctx), sourceID); merr != nil && o.log != nil {
			o.log.Error().Err(merr).Str("source_id", sourceID).Msg("documento autorizado pero no se pudo marcar la transacción como facturada")
		}
		emit(StateAuthorized, doc.ID, fmt.Sprintf("documento %s autorizado", doc.FullNumber()))
		return &Result{State: StateAuthorized, Document: doc}, nil

	case PollRejected:
		if uerr := o.docRepo.UpdateStatus(ctx, doc.ID, entity.DocumentStatusRejected, poll.Details); uerr != nil && o.log != nil {
			o.log.Error().Err(uerr).Str("document_id", doc.ID).Msg("no se pudo persistir el rechazo")
		}
		doc.Status = entity.DocumentStatusRejected
		doc.AuthorityErrors = poll.Details
		reason := "rechazado por la autoridad: " + poll.Details
		failSource(reason)
		emit(StateRejected, doc.ID, reason)
		return nil, newError(KindRejected, StatePolling, reason, nil)

	case PollTimeout:
		// Distinto de rechazo: sin veredicto. El documento queda transmitido.
		reason := "sin veredicto tras agotar el presupuesto de consultas; el documento sigue transmitido: verificar ante la autoridad por canal externo"
		failSource(reason)
		emit(StateTimeout, doc.ID, reason)
		return nil, newError(KindTimeout, StatePolling, reason, nil)

	default:
		if uerr := o.docRepo.UpdateStatus(ctx, doc.ID, entity.DocumentStatusError, poll.Details); uerr != nil && o.log != nil {
			o.log.Error().Err(uerr).Str("document_id", doc.ID).Msg("no se pudo persistir el error de procesamiento")
		}
		doc.Status = entity.DocumentStatusError
		reason := "la autoridad reportó error de procesamiento: " + poll.Details
		failSource(reason)
		return nil, newError(KindTransmission, StatePolling, reason, nil)
	}
}

// ── helpers privados ──────────────────────────────────────────────────────────

func identTypeCode(taxID string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, taxID)
	if len(digits) >= 9 {
		return "31"
	}
	return "13"
}

// URLs de validación pública (QR).
const (
	qrValidationURLPruebas = "https://catalogo-vpfe.dian.gov.co/document/searchqr?documentkey="
	qrValidationURLProd    = "https://catalogo-vpfe.dian.gov.co/document/searchqr?documentkey="
)

// buildQRData genera el string para el QR: NumDoc|FecDoc|ValDoc|CodImp|ValImp|CUDE|UrlValidacion.
func buildQRData(doc *entity.FiscalDocument, tipoAmb string) string {
	base := qrValidationURLPruebas
	if tipoAmb == "1" {
		base = qrValidationURLProd
	}
	return strings.Join([]string{
		doc.FullNumber(),
		doc.IssuedAt.Format("2006-01-02"),
		doc.GrandTotal.Round(2).StringFixed(2),
		"01",
		doc.TaxTotal.Round(2).StringFixed(2),
		doc.CUDE,
		base + doc.CUDE,
	}, "|")
}
