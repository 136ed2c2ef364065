package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound           = errors.New("recurso no encontrado")
	ErrUserNotFound       = errors.New("usuario no encontrado")
	ErrEmailAlreadyExists = errors.New("el email ya está registrado")
	ErrInvalidInput       = errors.New("entrada inválida")
	ErrDuplicate          = errors.New("recurso duplicado")
	ErrUnauthorized       = errors.New("no autorizado")
	ErrForbidden          = errors.New("acceso denegado")
	ErrConflict           = errors.New("conflicto con el estado actual")
	ErrSeriesNotFound     = errors.New("serie de numeración no encontrada")
	ErrSeriesInactive     = errors.New("serie de numeración inactiva o vencida")
	ErrSeriesExhausted    = errors.New("rango autorizado de la serie agotado")
	ErrIssuanceInFlight   = errors.New("ya existe una emisión en curso para la transacción")
	ErrAlreadyInvoiced    = errors.New("la transacción ya tiene documento autorizado")
)
