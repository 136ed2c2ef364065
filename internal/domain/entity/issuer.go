package entity

import "time"

// Issuer representa al emisor de documentos fiscales (contribuyente habilitado).
type Issuer struct {
	ID           string
	Name         string
	NIT          string // NIT colombiano (con o sin dígito de verificación)
	Address      string
	Phone        string
	Email        string
	Environment  string // "1" = producción, "2" = pruebas (habilitación)
	TechnicalKey string // Clave técnica asignada por la autoridad para el ambiente activo
	Status       string // active, suspended, inactive
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IssuerSeries representa una serie de numeración autorizada del emisor.
// Cada emisor puede tener varias series; solo una activa por prefijo.
// LastNumberUsed es el cursor de asignación: los números se consumen y nunca
// se liberan, por lo que el rango puede tener huecos pero jamás colisiones.
type IssuerSeries struct {
	ID                  string
	IssuerID            string
	AuthorizationNumber string    // Número de autorización de la serie (ej: "18764000000001")
	Prefix              string    // Prefijo autorizado (ej: "FV", "ND")
	RangeFrom           int64     // Número inicial del rango autorizado
	RangeTo             int64     // Número final del rango autorizado
	LastNumberUsed      int64     // Último número consumido (0 = ninguno)
	DateFrom            time.Time // Fecha de inicio de vigencia
	DateTo              time.Time // Fecha de vencimiento
	IsActive            bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Vigente indica si la serie puede asignar números en la fecha dada.
func (s *IssuerSeries) Vigente(at time.Time) bool {
	return s.IsActive && !at.Before(s.DateFrom) && !at.After(s.DateTo)
}
