package entity

import "time"

// RoutingCode es un código de circunscripción/clasificación de la tabla de
// referencia oficial. Se carga con cmd/seed y se consume como snapshot puro.
type RoutingCode struct {
	ID           string
	Code         string
	Description  string
	Jurisdiction string
	CreatedAt    time.Time
}
