package http

import (
	"bufio"
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/tu-usuario/facturador-pro/internal/application/dto"
	"github.com/tu-usuario/facturador-pro/internal/application/issuance"
	"github.com/tu-usuario/facturador-pro/internal/application/usecase"
	"github.com/tu-usuario/facturador-pro/internal/domain"
)

// DocumentHandler maneja la emisión de documentos fiscales y su consulta.
type DocumentHandler struct {
	orchestrator *issuance.Orchestrator
	docs         *usecase.DocumentUseCase
	pdf          *issuance.PDFUseCase
}

// NewDocumentHandler construye el handler con el orquestador y las consultas.
func NewDocumentHandler(orchestrator *issuance.Orchestrator, docs *usecase.DocumentUseCase, pdf *issuance.PDFUseCase) *DocumentHandler {
	return &DocumentHandler{orchestrator: orchestrator, docs: docs, pdf: pdf}
}

// Issue godoc
// @Summary      Emitir documento fiscal de una transacción de origen
// @Description  Con ?async=true responde un stream NDJSON de eventos de avance;
// @Description  sin él bloquea hasta el desenlace (autorizado, rechazado o timeout).
// @Tags         documents
// @Produce      json
// @Param        id     path   string  true   "ID de la transacción de origen"
// @Param        async  query  bool    false  "Emitir en segundo plano con stream de avance"
// @Success      200  {object}  dto.IssueResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Failure      422  {object}  dto.ErrorResponse
// @Router       /api/sources/{id}/issue [post]
func (h *DocumentHandler) Issue(c *fiber.Ctx) error {
	sourceID := c.Params("id")
	if sourceID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "MISSING_ID", Message: "id es requerido"})
	}
	if c.QueryBool("async") {
		return h.issueAsync(c, sourceID)
	}

	res, err := h.orchestrator.Issue(c.Context(), sourceID, nil)
	if err != nil {
		return issuanceErrorResponse(c, err)
	}
	return c.JSON(dto.IssueResponse{
		State:    res.State,
		Document: usecase.FiscalDocumentToResponse(res.Document),
	})
}

// issueAsync dispara la emisión en segundo plano y transmite cada evento de
// avance como una línea JSON. La conexión se cierra al llegar al estado terminal.
func (h *DocumentHandler) issueAsync(c *fiber.Ctx, sourceID string) error {
	events := h.orchestrator.IssueAsync(sourceID)
	c.Set(fiber.HeaderContentType, "application/x-ndjson")
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		enc := json.NewEncoder(w)
		for ev := range events {
			_ = enc.Encode(dto.IssuanceProgressEvent{
				SourceID:   ev.SourceID,
				DocumentID: ev.DocumentID,
				State:      ev.State,
				Percent:    ev.Percent,
				Message:    ev.Message,
			})
			if err := w.Flush(); err != nil {
				// cliente desconectado; la emisión sigue en su goroutine
				for range events {
				}
				return
			}
		}
	})
	return nil
}

// GetByID godoc
// @Summary      Obtener documento fiscal por ID
// @Tags         documents
// @Produce      json
// @Param        id   path  string  true  "ID del documento"
// @Success      200  {object}  dto.FiscalDocumentResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/documents/{id} [get]
func (h *DocumentHandler) GetByID(c *fiber.Ctx) error {
	out, err := h.docs.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "documento no encontrado"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.JSON(out)
}

// GetStatus godoc
// @Summary      Consultar estado del documento
// @Tags         documents
// @Produce      json
// @Param        id   path  string  true  "ID del documento"
// @Success      200  {object}  dto.FiscalDocumentResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/documents/{id}/status [get]
func (h *DocumentHandler) GetStatus(c *fiber.Ctx) error {
	out, err := h.docs.GetStatus(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "documento no encontrado"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.JSON(out)
}

// DownloadPDF godoc
// @Summary      Descargar representación gráfica (PDF)
// @Tags         documents
// @Produce      application/pdf
// @Param        id   path  string  true  "ID del documento"
// @Success      200  {file}  binary
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/documents/{id}/pdf [get]
func (h *DocumentHandler) DownloadPDF(c *fiber.Ctx) error {
	pdfBytes, filename, err := h.pdf.GenerateByDocumentID(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "documento no encontrado"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Send(pdfBytes)
}

// DownloadXML godoc
// @Summary      Descargar XML firmado del documento
// @Tags         documents
// @Produce      application/xml
// @Param        id   path  string  true  "ID del documento"
// @Success      200  {file}  binary
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/documents/{id}/xml [get]
func (h *DocumentHandler) DownloadXML(c *fiber.Ctx) error {
	xmlBytes, filename, err := h.docs.GetXML(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "documento sin XML firmado"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationXML)
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Send(xmlBytes)
}

// issuanceErrorResponse traduce el error tipado de la orquestación a HTTP.
func issuanceErrorResponse(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "transacción de origen no encontrada"})
	case errors.Is(err, domain.ErrIssuanceInFlight):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "IN_FLIGHT", Message: "ya hay una emisión en curso para esta transacción"})
	case errors.Is(err, domain.ErrAlreadyInvoiced):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "ALREADY_INVOICED", Message: "la transacción ya tiene documento autorizado"})
	}
	var ie *issuance.Error
	if !errors.As(err, &ie) {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	switch ie.Kind {
	case issuance.KindValidation:
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: ie.Reason})
	case issuance.KindAllocation:
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "ALLOCATION", Message: ie.Reason})
	case issuance.KindRejected:
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{Code: "REJECTED", Message: ie.Reason})
	case issuance.KindTransmission:
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Code: "TRANSMISSION", Message: ie.Reason})
	case issuance.KindTimeout:
		return c.Status(fiber.StatusGatewayTimeout).JSON(dto.ErrorResponse{Code: "TIMEOUT", Message: ie.Reason})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: ie.Reason})
	}
}
