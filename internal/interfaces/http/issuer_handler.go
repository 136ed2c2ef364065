package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/tu-usuario/facturador-pro/internal/application/dto"
	"github.com/tu-usuario/facturador-pro/internal/application/usecase"
	"github.com/tu-usuario/facturador-pro/internal/domain"
	"github.com/tu-usuario/facturador-pro/pkg/fiscal"
)

// IssuerHandler maneja las peticiones HTTP para emisores y sus series.
type IssuerHandler struct {
	uc *usecase.IssuerUseCase
}

// NewIssuerHandler construye el handler inyectando el caso de uso.
func NewIssuerHandler(uc *usecase.IssuerUseCase) *IssuerHandler {
	return &IssuerHandler{uc: uc}
}

// Create godoc
// @Summary      Registrar emisor
// @Tags         issuers
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateIssuerRequest  true  "Datos del emisor"
// @Success      201   {object}  dto.IssuerResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/issuers [post]
func (h *IssuerHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateIssuerRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if in.Name == "" || in.NIT == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "name y nit son requeridos"})
	}
	out, err := h.uc.Create(c.Context(), in)
	if err != nil {
		if errors.Is(err, fiscal.ErrInvalidNIT) {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_NIT", Message: err.Error()})
		}
		if errors.Is(err, domain.ErrDuplicate) {
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "DUPLICATE", Message: "emisor con ese NIT ya existe"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// GetByID godoc
// @Summary      Obtener emisor por ID
// @Tags         issuers
// @Produce      json
// @Param        id   path  string  true  "ID del emisor"
// @Success      200  {object}  dto.IssuerResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/issuers/{id} [get]
func (h *IssuerHandler) GetByID(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "MISSING_ID", Message: "id es requerido"})
	}
	out, err := h.uc.GetByID(c.Context(), id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	if out == nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "emisor no encontrado"})
	}
	return c.JSON(out)
}

// List godoc
// @Summary      Listar emisores
// @Tags         issuers
// @Produce      json
// @Success      200  {object}  dto.IssuerListResponse
// @Router       /api/issuers [get]
func (h *IssuerHandler) List(c *fiber.Ctx) error {
	out, err := h.uc.List(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.JSON(out)
}

// Update godoc
// @Summary      Actualizar emisor
// @Tags         issuers
// @Accept       json
// @Produce      json
// @Param        id    path  string                   true  "ID del emisor"
// @Param        body  body  dto.UpdateIssuerRequest  true  "Campos a actualizar"
// @Success      200   {object}  dto.IssuerResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/issuers/{id} [put]
func (h *IssuerHandler) Update(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "MISSING_ID", Message: "id es requerido"})
	}
	var in dto.UpdateIssuerRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	out, err := h.uc.Update(c.Context(), id, in)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "emisor no encontrado"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.JSON(out)
}

// CreateSeries godoc
// @Summary      Registrar serie autorizada del emisor
// @Tags         issuers
// @Accept       json
// @Produce      json
// @Param        id    path  string                   true  "ID del emisor"
// @Param        body  body  dto.CreateSeriesRequest  true  "Autorización, prefijo, rango y vigencia"
// @Success      201   {object}  dto.SeriesResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/issuers/{id}/series [post]
func (h *IssuerHandler) CreateSeries(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "MISSING_ID", Message: "id es requerido"})
	}
	var in dto.CreateSeriesRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if in.Prefix == "" || in.AuthorizationNumber == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "prefix y authorization_number son requeridos"})
	}
	out, err := h.uc.CreateSeries(c.Context(), id, in)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "emisor no encontrado"})
		}
		if errors.Is(err, domain.ErrInvalidInput) {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "range_to debe ser mayor o igual a range_from"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// ListSeries godoc
// @Summary      Listar series del emisor
// @Tags         issuers
// @Produce      json
// @Param        id   path  string  true  "ID del emisor"
// @Success      200  {array}  dto.SeriesResponse
// @Router       /api/issuers/{id}/series [get]
func (h *IssuerHandler) ListSeries(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "MISSING_ID", Message: "id es requerido"})
	}
	out, err := h.uc.ListSeries(c.Context(), id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.JSON(out)
}
