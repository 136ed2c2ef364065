package issuance

// Estados de la máquina de emisión. La progresión es lineal; cualquier estado
// puede saltar a error con el porcentaje alcanzado hasta ese momento.
const (
	StateIdle               = "idle"
	StateValidating         = "validating"
	StateReservingNumber    = "reserving_number"
	StateCreatingDocument   = "creating_document"
	StateCreatingItems      = "creating_items"
	StateCreatingReferences = "creating_references"
	StateTransmitting       = "transmitting"
	StatePolling            = "polling"
	StateAuthorized         = "authorized"
	StateRejected           = "rejected"
	StateTimeout            = "timeout"
	StateError              = "error"
)

// progressByState asigna el porcentaje de avance de cada estado. Es monótono:
// un fallo reporta el porcentaje del último estado alcanzado, nunca retrocede.
var progressByState = map[string]int{
	StateIdle:               0,
	StateValidating:         10,
	StateReservingNumber:    25,
	StateCreatingDocument:   40,
	StateCreatingItems:      55,
	StateCreatingReferences: 65,
	StateTransmitting:       75,
	StatePolling:            85,
	StateAuthorized:         100,
	StateRejected:           100,
	StateTimeout:            100,
	StateError:              100,
}

// ProgressPercent devuelve el porcentaje asociado al estado (0 si es desconocido).
func ProgressPercent(state string) int {
	return progressByState[state]
}

// ProgressEvent es la notificación de avance emitida en cada transición.
type ProgressEvent struct {
	SourceID   string
	DocumentID string // vacío hasta creating_document
	State      string
	Percent    int
	Message    string
}

// ProgressFunc recibe los eventos de avance. Puede ser nil (sin notificación).
type ProgressFunc func(ProgressEvent)
