package entity

// Variantes de documento referenciado.
const (
	RefKindElectronic = "electronic" // referencia por clave electrónica (CUDE/CUFE previo)
	RefKindPaper      = "paper"      // referencia a libro físico de registro
)

// ReferencedDocument representa un documento que el documento fiscal referencia,
// en una de dos variantes excluyentes: electrónica (clave) o de papel (libro).
type ReferencedDocument struct {
	ID         string
	DocumentID string
	Kind       string // electronic | paper

	// Variante electrónica
	ElectronicKey string // CUDE/CUFE del documento referenciado

	// Variante de papel (libro de registro)
	Jurisdiction   string // código de circunscripción donde se asentó el libro
	YearMonth      string // período AAAA-MM del asiento
	RegistrationID string // identificador del registro ante la autoridad local
	Book           string // libro
	BookSeries     string // serie dentro del libro
	BookNumber     int64  // número dentro de la serie
}
