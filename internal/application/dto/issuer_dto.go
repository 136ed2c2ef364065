package dto

import "time"

// CreateIssuerRequest entrada para registrar un emisor.
type CreateIssuerRequest struct {
	Name         string `json:"name" validate:"required,min=1,max=200"`
	NIT          string `json:"nit" validate:"required,min=1,max=20"`
	Address      string `json:"address"`
	Phone        string `json:"phone"`
	Email        string `json:"email" validate:"omitempty,email"`
	Environment  string `json:"environment" validate:"omitempty,oneof=1 2"`
	TechnicalKey string `json:"technical_key"`
}

// UpdateIssuerRequest entrada para actualizar un emisor (campos opcionales).
type UpdateIssuerRequest struct {
	Name         *string `json:"name" validate:"omitempty,min=1,max=200"`
	Address      *string `json:"address"`
	Phone        *string `json:"phone"`
	Email        *string `json:"email" validate:"omitempty,email"`
	Environment  *string `json:"environment" validate:"omitempty,oneof=1 2"`
	TechnicalKey *string `json:"technical_key"`
	Status       *string `json:"status" validate:"omitempty,oneof=active suspended inactive"`
}

// IssuerResponse salida de un emisor (sin clave técnica).
type IssuerResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	NIT         string    `json:"nit"`
	Address     string    `json:"address"`
	Phone       string    `json:"phone"`
	Email       string    `json:"email"`
	Environment string    `json:"environment"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IssuerListResponse lista de emisores.
type IssuerListResponse struct {
	Items []IssuerResponse `json:"items"`
	Page  PageResponse     `json:"page"`
}

// CreateSeriesRequest entrada para registrar una serie autorizada del emisor.
type CreateSeriesRequest struct {
	AuthorizationNumber string    `json:"authorization_number" validate:"required"`
	Prefix              string    `json:"prefix" validate:"required,min=1,max=10"`
	RangeFrom           int64     `json:"range_from" validate:"required,min=1"`
	RangeTo             int64     `json:"range_to" validate:"required,gtfield=RangeFrom"`
	DateFrom            time.Time `json:"date_from" validate:"required"`
	DateTo              time.Time `json:"date_to" validate:"required"`
}

// SeriesResponse salida de una serie autorizada.
type SeriesResponse struct {
	ID                  string    `json:"id"`
	IssuerID            string    `json:"issuer_id"`
	AuthorizationNumber string    `json:"authorization_number"`
	Prefix              string    `json:"prefix"`
	RangeFrom           int64     `json:"range_from"`
	RangeTo             int64     `json:"range_to"`
	LastNumberUsed      int64     `json:"last_number_used"`
	DateFrom            time.Time `json:"date_from"`
	DateTo              time.Time `json:"date_to"`
	IsActive            bool      `json:"is_active"`
	Remaining           int64     `json:"remaining"`
}
