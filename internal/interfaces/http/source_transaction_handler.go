package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/tu-usuario/facturador-pro/internal/application/dto"
	"github.com/tu-usuario/facturador-pro/internal/application/usecase"
	"github.com/tu-usuario/facturador-pro/internal/domain"
	"github.com/tu-usuario/facturador-pro/internal/domain/entity"
)

// SourceTransactionHandler maneja las transacciones de origen pendientes de facturar.
type SourceTransactionHandler struct {
	uc *usecase.SourceTransactionUseCase
}

// NewSourceTransactionHandler construye el handler inyectando el caso de uso.
func NewSourceTransactionHandler(uc *usecase.SourceTransactionUseCase) *SourceTransactionHandler {
	return &SourceTransactionHandler{uc: uc}
}

// Create godoc
// @Summary      Registrar transacción de origen
// @Tags         sources
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateSourceTransactionRequest  true  "Transacción con líneas y referencias"
// @Success      201   {object}  dto.SourceTransactionResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/sources [post]
func (h *SourceTransactionHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateSourceTransactionRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if !validSourceKind(in.Kind) {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "kind debe ser purchase, deposit, return o shipment"})
	}
	if in.Series == "" || in.CounterpartName == "" || in.CounterpartTaxID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "series, counterpart_name y counterpart_tax_id son requeridos"})
	}
	if len(in.Items) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "la transacción requiere al menos una línea"})
	}
	issuerID := GetIssuerID(c)
	if issuerID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token sin emisor asociado"})
	}
	out, err := h.uc.Create(c.Context(), issuerID, in)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// GetByID godoc
// @Summary      Obtener transacción de origen por ID
// @Tags         sources
// @Produce      json
// @Param        id   path  string  true  "ID de la transacción"
// @Success      200  {object}  dto.SourceTransactionResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/sources/{id} [get]
func (h *SourceTransactionHandler) GetByID(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "MISSING_ID", Message: "id es requerido"})
	}
	out, err := h.uc.GetByID(c.Context(), id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	if out == nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "transacción no encontrada"})
	}
	return c.JSON(out)
}

// List godoc
// @Summary      Listar transacciones de origen del emisor
// @Tags         sources
// @Produce      json
// @Param        limit   query  int  false  "Límite"   default(20)
// @Param        offset  query  int  false  "Offset"   default(0)
// @Success      200     {object}  dto.SourceTransactionListResponse
// @Router       /api/sources [get]
func (h *SourceTransactionHandler) List(c *fiber.Ctx) error {
	page := dto.PageRequest{
		Limit:  c.QueryInt("limit", 20),
		Offset: c.QueryInt("offset", 0),
	}
	if page.Limit > 100 {
		page.Limit = 100
	}
	out, err := h.uc.List(c.Context(), GetIssuerID(c), page)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.JSON(out)
}

func validSourceKind(kind string) bool {
	switch kind {
	case entity.SourceKindPurchase, entity.SourceKindDeposit, entity.SourceKindReturn, entity.SourceKindShipment:
		return true
	}
	return false
}
