package fiscal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Vectores calculados a mano con el algoritmo módulo 11 de la DIAN
// (pesos 41,37,29,23,19,17,13,7,3 sobre los 9 primeros dígitos).
func TestValidateNITVerificationDigit_NITsValidos(t *testing.T) {
	valid := []string{
		"830012345-9",
		"830.012.345-9",
		"8300123459",
		"900373115-3",
	}
	for _, nit := range valid {
		assert.NoError(t, ValidateNITVerificationDigit(nit),
			"el NIT %s tiene dígito de verificación correcto", nit)
	}
}

func TestValidateNITVerificationDigit_DVIncorrecto(t *testing.T) {
	err := ValidateNITVerificationDigit("830012345-8")
	require.Error(t, err, "un DV incorrecto debe rechazarse")
	assert.ErrorIs(t, err, ErrInvalidNIT, "el error debe envolver ErrInvalidNIT")
}

func TestValidateNITVerificationDigit_SinDV(t *testing.T) {
	err := ValidateNITVerificationDigit("830012345")
	require.Error(t, err, "NIT de 9 dígitos sin DV debe rechazarse")
	assert.ErrorIs(t, err, ErrInvalidNIT)
}

func TestValidateNITVerificationDigit_MuyCorto(t *testing.T) {
	err := ValidateNITVerificationDigit("12345")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidNIT)
}

func TestComputeNITVerificationDigit(t *testing.T) {
	dv, err := ComputeNITVerificationDigit("830012345")
	require.NoError(t, err)
	assert.Equal(t, byte('9'), dv, "el DV de 830012345 es 9")

	dv, err = ComputeNITVerificationDigit("900.373.115")
	require.NoError(t, err)
	assert.Equal(t, byte('3'), dv, "el DV de 900373115 es 3")
}
