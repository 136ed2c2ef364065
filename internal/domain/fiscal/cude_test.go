package fiscal_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tu-usuario/facturador-pro/internal/domain/fiscal"
)

// ──────────────────────────────────────────────────────────────────────────────
// TestCalculateCude valida que el cálculo SHA-384 del CUDE produce el hash
// exacto esperado para parámetros conocidos.
//
// Este test es el "canario en la mina" de la integración con la autoridad: si
// alguien modifica inadvertidamente la cadena de concatenación, el algoritmo o
// el formato de los montos, el test falla inmediatamente antes de llegar a
// producción.
//
// Vector de prueba calculado manualmente con SHA-384:
//
//	Cadena = NumDoc + FecDoc + ValDoc + CodImp01 + ValImp01 + CodImp04 + ValImp04 +
//	         CodImp03 + ValImp03 + ValPag + NitEmisor + DocContra + ClTec + TipoAmb
//	       = "FV000000840" + "2024-05-17" + "1000.00" +
//	         "01" + "190.00" + "04" + "0.00" + "03" + "0.00" +
//	         "1190.00" + "830012345" + "79543210" +
//	         "ab8e3c1f09d2b6e54477aa10c3b9f8d21c64e0a5b7d9f31226c8e4a0d5b71f39" + "2"
// ──────────────────────────────────────────────────────────────────────────────

const (
	testCudeExpected = "97b8a19b1c752103fc5e51bae02dddf5001dcf0dde852a144903c2c4dd991bcaa21915abb4da4fb0a74ddafd6f032623"

	testNitEmisor = "830012345"
	testDocContra = "79543210"
	testClTec     = "ab8e3c1f09d2b6e54477aa10c3b9f8d21c64e0a5b7d9f31226c8e4a0d5b71f39"
	testFecDoc    = "2024-05-17"
	testNumDoc    = "FV000000840"
	testTipoAmb   = "2"
)

func TestCalculateCude_VectorExacto(t *testing.T) {
	svc := fiscal.NewCudeCalculatorService()

	params := &fiscal.CudeParams{
		NumDoc:    testNumDoc,
		FecDoc:    testFecDoc,
		ValDoc:    decimal.NewFromFloat(1000),
		ValImp_01: decimal.NewFromFloat(190),
		ValImp_04: decimal.Zero,
		ValImp_03: decimal.Zero,
		ValPag:    decimal.NewFromFloat(1190),
		NitEmisor: testNitEmisor,
		DocContra: testDocContra,
		ClTec:     testClTec,
		TipoAmb:   testTipoAmb,
	}

	cude, err := svc.Calculate(params)
	require.NoError(t, err, "Calculate no debe retornar error con parámetros válidos")
	assert.Equal(t, testCudeExpected, cude,
		"El CUDE debe coincidir exactamente con el vector SHA-384 de referencia")
}

// TestCalculateCude_DeterministaIgual verifica que llamar Calculate dos veces
// con los mismos parámetros produce siempre el mismo hash (idempotente).
func TestCalculateCude_DeterministaIgual(t *testing.T) {
	svc := fiscal.NewCudeCalculatorService()
	params := buildTestParams()

	cude1, err1 := svc.Calculate(params)
	cude2, err2 := svc.Calculate(params)

	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, cude1, cude2, "El mismo input siempre debe producir el mismo CUDE")
}

// TestCalculateCude_DiferenteNumDoc verifica que cambiar el número del documento
// produce un hash distinto (sensibilidad al input).
func TestCalculateCude_DiferenteNumDoc(t *testing.T) {
	svc := fiscal.NewCudeCalculatorService()

	p1 := buildTestParams()
	p2 := buildTestParams()
	p2.NumDoc = "FV000000841" // solo cambia el consecutivo

	cude1, _ := svc.Calculate(p1)
	cude2, _ := svc.Calculate(p2)

	assert.NotEqual(t, cude1, cude2,
		"Documentos con números distintos deben tener CUDEs distintos")
}

// TestCalculateCude_TipoAmbienteAfectaHash verifica que producción (TipoAmb=1)
// y pruebas (TipoAmb=2) producen hashes diferentes.
func TestCalculateCude_TipoAmbienteAfectaHash(t *testing.T) {
	svc := fiscal.NewCudeCalculatorService()

	pPruebas := buildTestParams()
	pPruebas.TipoAmb = "2"

	pProduccion := buildTestParams()
	pProduccion.TipoAmb = "1"

	cudePruebas, _ := svc.Calculate(pPruebas)
	cudeProduccion, _ := svc.Calculate(pProduccion)

	assert.NotEqual(t, cudePruebas, cudeProduccion,
		"Los CUDEs de ambiente pruebas y producción deben ser distintos")
}

// ── Errores de validación ─────────────────────────────────────────────────────

func TestCalculateCude_ErrorSiNilParams(t *testing.T) {
	svc := fiscal.NewCudeCalculatorService()
	_, err := svc.Calculate(nil)
	assert.Error(t, err, "Calculate con nil debe retornar error")
}

func TestCalculateCude_ErrorSiNumDocVacio(t *testing.T) {
	svc := fiscal.NewCudeCalculatorService()
	p := buildTestParams()
	p.NumDoc = ""
	_, err := svc.Calculate(p)
	assert.Error(t, err, "Calculate sin NumDoc debe retornar error")
}

func TestCalculateCude_ErrorSiNitEmisorVacio(t *testing.T) {
	svc := fiscal.NewCudeCalculatorService()
	p := buildTestParams()
	p.NitEmisor = ""
	_, err := svc.Calculate(p)
	assert.Error(t, err, "Calculate sin NitEmisor debe retornar error")
}

func TestCalculateCude_ErrorSiClTecVacia(t *testing.T) {
	svc := fiscal.NewCudeCalculatorService()
	p := buildTestParams()
	p.ClTec = ""
	_, err := svc.Calculate(p)
	assert.Error(t, err, "Calculate sin ClTec debe retornar error")
}

// TestCalculateCude_LongitudHash valida que el hash SHA-384 tenga exactamente
// 96 caracteres hexadecimales (384 bits / 4 bits por nibble = 96 nibbles).
func TestCalculateCude_LongitudHash(t *testing.T) {
	svc := fiscal.NewCudeCalculatorService()
	cude, err := svc.Calculate(buildTestParams())
	require.NoError(t, err)
	assert.Len(t, cude, 96, "El CUDE debe tener 96 caracteres hexadecimales (SHA-384)")
}

// ── helper ────────────────────────────────────────────────────────────────────

func buildTestParams() *fiscal.CudeParams {
	return &fiscal.CudeParams{
		NumDoc:    testNumDoc,
		FecDoc:    testFecDoc,
		ValDoc:    decimal.NewFromFloat(1000),
		ValImp_01: decimal.NewFromFloat(190),
		ValImp_04: decimal.Zero,
		ValImp_03: decimal.Zero,
		ValPag:    decimal.NewFromFloat(1190),
		NitEmisor: testNitEmisor,
		DocContra: testDocContra,
		ClTec:     testClTec,
		TipoAmb:   testTipoAmb,
	}
}
