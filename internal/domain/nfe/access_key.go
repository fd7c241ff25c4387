// Package nfe: geração da chave de acesso da NFC-e (44 dígitos) e do
// conteúdo do QR Code v2, conforme o Manual de Orientação ao Contribuinte
// layout 4.00.

package nfe

import (
	"crypto/sha1"
	"encoding/binary"
	"fmt"
	"strconv"
	"time"

	pkgnfe "github.com/inovapos/pdv-fiscal/pkg/nfe"
)

// ModelNFCe código do modelo fiscal no campo mod da chave.
const ModelNFCe = "65"

// KeyParams dados para montar a chave de acesso na ordem exigida:
// cUF(2) + AAMM(4) + CNPJ(14) + mod(2) + série(3) + nNF(9) + tpEmis(1) + cNF(8) + cDV(1).
type KeyParams struct {
	UFCode   string    // código IBGE da UF do emitente
	IssuedAt time.Time // data de emissão (AAMM)
	CNPJ     string    // CNPJ do emitente, com ou sem pontuação
	Series   string    // série numérica (até 3 dígitos)
	Number   int64     // nNF (1..999999999)
	TpEmis   string    // "1" normal, "9" contingência
}

// AccessKeyGenerator monta a chave de acesso com cNF derivado de SHA-1
// sobre os campos da chave mais um nonce temporal. O nonce é injetável
// para testes determinísticos; apenas o dígito verificador é normativo.
type AccessKeyGenerator struct {
	nonce func() int64
}

// NewAccessKeyGenerator cria o gerador com nonce baseado no relógio.
func NewAccessKeyGenerator() *AccessKeyGenerator {
	return &AccessKeyGenerator{nonce: func() int64 { return time.Now().UnixNano() }}
}

// NewAccessKeyGeneratorWithNonce cria o gerador com fonte de nonce fixa (testes).
func NewAccessKeyGeneratorWithNonce(nonce func() int64) *AccessKeyGenerator {
	return &AccessKeyGenerator{nonce: nonce}
}

// Generate devolve a chave de 44 dígitos e o cNF usado.
func (g *AccessKeyGenerator) Generate(p *KeyParams) (key string, cnf string, err error) {
	if p == nil {
		return "", "", fmt.Errorf("nfe: KeyParams é obrigatório")
	}
	if !pkgnfe.ValidUFCodes[p.UFCode] {
		return "", "", fmt.Errorf("nfe: código de UF inválido: %q", p.UFCode)
	}
	cnpj := pkgnfe.OnlyDigits(p.CNPJ)
	if len(cnpj) != 14 {
		return "", "", fmt.Errorf("nfe: CNPJ deve ter 14 dígitos, foram encontrados %d", len(cnpj))
	}
	if p.IssuedAt.IsZero() {
		return "", "", fmt.Errorf("nfe: data de emissão é obrigatória")
	}
	series, err := strconv.Atoi(p.Series)
	if err != nil || series < 0 || series > 999 {
		return "", "", fmt.Errorf("nfe: série inválida: %q", p.Series)
	}
	if p.Number < 1 || p.Number > 999_999_999 {
		return "", "", fmt.Errorf("nfe: nNF fora do intervalo 1..999999999: %d", p.Number)
	}
	if p.TpEmis != pkgnfe.EmissionNormal && p.TpEmis != pkgnfe.EmissionContingency {
		return "", "", fmt.Errorf("nfe: tpEmis inválido: %q", p.TpEmis)
	}

	aamm := p.IssuedAt.Format("0601")
	cnf = g.deriveCNF(p, cnpj, aamm)

	base := p.UFCode +
		aamm +
		cnpj +
		ModelNFCe +
		fmt.Sprintf("%03d", series) +
		fmt.Sprintf("%09d", p.Number) +
		p.TpEmis +
		cnf

	dv, err := ComputeCheckDigit(base)
	if err != nil {
		return "", "", err
	}
	return base + string(dv), cnf, nil
}

// deriveCNF gera o código numérico de 8 dígitos. A regra de validação da
// SEFAZ exige cNF diferente de nNF; em caso de colisão soma 1 módulo 10^8.
func (g *AccessKeyGenerator) deriveCNF(p *KeyParams, cnpj, aamm string) string {
	h := sha1.New()
	h.Write([]byte(p.UFCode))
	h.Write([]byte(aamm))
	h.Write([]byte(cnpj))
	h.Write([]byte(p.Series))
	h.Write([]byte(strconv.FormatInt(p.Number, 10)))
	h.Write([]byte(strconv.FormatInt(g.nonce(), 10)))
	sum := h.Sum(nil)

	n := binary.BigEndian.Uint64(sum[:8]) % 100_000_000
	if int64(n) == p.Number {
		n = (n + 1) % 100_000_000
	}
	return fmt.Sprintf("%08d", n)
}

// ComputeCheckDigit calcula o dígito verificador módulo 11 dos 43 primeiros
// dígitos da chave: pesos 2..9 aplicados a partir do dígito mais à direita;
// resto < 2 resulta em 0, senão 11 menos o resto.
func ComputeCheckDigit(base string) (byte, error) {
	if len(base) != 43 {
		return 0, fmt.Errorf("nfe: base da chave deve ter 43 dígitos, foram encontrados %d", len(base))
	}
	var sum, weight = 0, 2
	for i := len(base) - 1; i >= 0; i-- {
		c := base[i]
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("nfe: base da chave contém caractere não numérico: %q", c)
		}
		sum += int(c-'0') * weight
		weight++
		if weight > 9 {
			weight = 2
		}
	}
	remainder := sum % 11
	if remainder < 2 {
		return '0', nil
	}
	return byte('0' + (11 - remainder)), nil
}

// ValidateAccessKey confere comprimento e dígito verificador de uma chave completa.
func ValidateAccessKey(key string) error {
	if len(key) != 44 {
		return fmt.Errorf("nfe: chave de acesso deve ter 44 dígitos, foram encontrados %d", len(key))
	}
	dv, err := ComputeCheckDigit(key[:43])
	if err != nil {
		return err
	}
	if key[43] != dv {
		return fmt.Errorf("nfe: dígito verificador da chave inválido: esperado %c, recebido %c", dv, key[43])
	}
	return nil
}
