package nfe

import (
	"fmt"
	"unicode"
)

// pesos para o primeiro e segundo dígitos verificadores do CNPJ (módulo 11).
var (
	cnpjWeightsFirst  = [12]int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	cnpjWeightsSecond = [13]int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
)

// ValidateCNPJ valida o CNPJ (com ou sem pontuação) pelos dois dígitos
// verificadores módulo 11. cnpj pode ser "12.345.678/0001-95" ou "12345678000195".
func ValidateCNPJ(cnpj string) error {
	digits := extractDigits(cnpj)
	if len(digits) != 14 {
		return fmt.Errorf("nfe: CNPJ deve ter 14 dígitos, foram encontrados %d", len(digits))
	}
	if allSameDigit(digits) {
		return fmt.Errorf("nfe: CNPJ inválido (dígitos repetidos)")
	}
	first := mod11Digit(digits[:12], cnpjWeightsFirst[:])
	if digits[12] != first {
		return fmt.Errorf("nfe: primeiro dígito verificador do CNPJ inválido: esperado %c, recebido %c", first, digits[12])
	}
	second := mod11Digit(digits[:13], cnpjWeightsSecond[:])
	if digits[13] != second {
		return fmt.Errorf("nfe: segundo dígito verificador do CNPJ inválido: esperado %c, recebido %c", second, digits[13])
	}
	return nil
}

// ValidateCPF valida o CPF do consumidor pelos dois dígitos verificadores.
func ValidateCPF(cpf string) error {
	digits := extractDigits(cpf)
	if len(digits) != 11 {
		return fmt.Errorf("nfe: CPF deve ter 11 dígitos, foram encontrados %d", len(digits))
	}
	if allSameDigit(digits) {
		return fmt.Errorf("nfe: CPF inválido (dígitos repetidos)")
	}
	// CPF usa pesos decrescentes 10..2 e 11..2.
	first := cpfDigit(digits[:9], 10)
	if digits[9] != first {
		return fmt.Errorf("nfe: primeiro dígito verificador do CPF inválido: esperado %c, recebido %c", first, digits[9])
	}
	second := cpfDigit(digits[:10], 11)
	if digits[10] != second {
		return fmt.Errorf("nfe: segundo dígito verificador do CPF inválido: esperado %c, recebido %c", second, digits[10])
	}
	return nil
}

// OnlyDigits devolve apenas os dígitos da string (CNPJ/CPF sem pontuação).
func OnlyDigits(s string) string {
	return string(extractDigits(s))
}

func mod11Digit(base []byte, weights []int) byte {
	var sum int
	for i, d := range base {
		sum += int(d-'0') * weights[i]
	}
	remainder := sum % 11
	if remainder < 2 {
		return '0'
	}
	return byte('0' + (11 - remainder))
}

func cpfDigit(base []byte, startWeight int) byte {
	var sum int
	for i, d := range base {
		sum += int(d-'0') * (startWeight - i)
	}
	remainder := sum % 11
	if remainder < 2 {
		return '0'
	}
	return byte('0' + (11 - remainder))
}

func allSameDigit(digits []byte) bool {
	for _, d := range digits[1:] {
		if d != digits[0] {
			return false
		}
	}
	return true
}

func extractDigits(s string) []byte {
	var out []byte
	for _, r := range s {
		if unicode.IsDigit(r) {
			out = append(out, byte(r))
		}
	}
	return out
}
