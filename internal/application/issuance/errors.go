package issuance

import (
	"errors"
	"fmt"
)

// Kind clasifica el fallo de una orquestación de emisión.
type Kind string

const (
	KindValidation   Kind = "validation"   // emisor/serie/contraparte incompletos o estado incompatible
	KindAllocation   Kind = "allocation"   // no se pudo reservar consecutivo
	KindPersistence  Kind = "persistence"  // falló la escritura del agregado (rollback aplicado)
	KindTransmission Kind = "transmission" // falló el envío o la autoridad lo devolvió malformado
	KindRejected     Kind = "rejected"     // la autoridad rechazó el documento
	KindTimeout      Kind = "timeout"      // se agotó el presupuesto de consultas sin veredicto
)

// Error es el error tipado de la orquestación: transporta la clase de fallo,
// el último estado alcanzado y el motivo legible para el operador.
type Error struct {
	Kind   Kind
	State  string // último estado de la máquina alcanzado
	Reason string
	Err    error // causa subyacente (puede ser nil)
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("emisión [%s] en %s: %s: %v", e.Kind, e.State, e.Reason, e.Err)
	}
	return fmt.Sprintf("emisión [%s] en %s: %s", e.Kind, e.State, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// newError construye el error tipado de la orquestación.
func newError(kind Kind, state, reason string, err error) *Error {
	return &Error{Kind: kind, State: state, Reason: reason, Err: err}
}

// KindOf devuelve la clase del error si es un *Error de emisión; "" en caso contrario.
func KindOf(err error) Kind {
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Kind
	}
	return ""
}
