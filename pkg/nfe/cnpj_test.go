package nfe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCNPJ(t *testing.T) {
	// CNPJ de exemplo com dígitos verificadores corretos
	require.NoError(t, ValidateCNPJ("11.222.333/0001-81"))
	require.NoError(t, ValidateCNPJ("11222333000181"))

	assert.Error(t, ValidateCNPJ("11222333000182"), "dígito verificador trocado deve falhar")
	assert.Error(t, ValidateCNPJ("112223330001"), "comprimento inválido deve falhar")
	assert.Error(t, ValidateCNPJ("00000000000000"), "dígitos repetidos devem falhar")
}

func TestValidateCPF(t *testing.T) {
	require.NoError(t, ValidateCPF("529.982.247-25"))
	require.NoError(t, ValidateCPF("52998224725"))

	assert.Error(t, ValidateCPF("52998224726"))
	assert.Error(t, ValidateCPF("5299822472"))
	assert.Error(t, ValidateCPF("11111111111"))
}

func TestOnlyDigits(t *testing.T) {
	assert.Equal(t, "11222333000181", OnlyDigits("11.222.333/0001-81"))
	assert.Equal(t, "", OnlyDigits("abc"))
}
