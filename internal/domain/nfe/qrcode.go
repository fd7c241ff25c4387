package nfe

import (
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	pkgnfe "github.com/inovapos/pdv-fiscal/pkg/nfe"
)

// qrVersion versão do QR Code da NFC-e (campo nVersao).
const qrVersion = "2"

// Hosts de consulta do QR Code (SEFAZ-SP).
const (
	qrHostProduction   = "https://www.nfce.fazenda.sp.gov.br"
	qrHostHomologation = "https://www.homologacao.nfce.fazenda.sp.gov.br"
)

// QrCodeParams dados para montar o conteúdo do QR Code v2.
type QrCodeParams struct {
	AccessKey   string
	Environment string // "1" produção, "2" homologação
	CSC         string // segredo; entra só no hash, nunca na URL
	CSCTokenID  string // cIdToken; zeros à esquerda são removidos na URL
	TpEmis      string // "1" normal, "9" contingência

	// Campos exigidos apenas na emissão em contingência
	IssuedAt     time.Time       // dia da emissão (dd)
	Total        decimal.Decimal // vNF
	DigestBase64 string          // DigestValue da assinatura, em base64
}

// QrCodeBuilder monta a URL do QR Code v2.
// Online: p = chave|nVersao|tpAmb|cIdToken. Contingência acrescenta
// dd|vNF|digVal-hex antes do token. Hash final = SHA-1(p + CSC) em hex
// minúsculo, anexado como último campo.
type QrCodeBuilder struct{}

// NewQrCodeBuilder cria o serviço.
func NewQrCodeBuilder() *QrCodeBuilder {
	return &QrCodeBuilder{}
}

// Build devolve a URL completa do QR Code.
func (b *QrCodeBuilder) Build(p *QrCodeParams) (string, error) {
	if p == nil {
		return "", fmt.Errorf("nfe: QrCodeParams é obrigatório")
	}
	if err := ValidateAccessKey(p.AccessKey); err != nil {
		return "", err
	}
	if p.CSC == "" || p.CSCTokenID == "" {
		return "", fmt.Errorf("nfe: dados de CSC/Token inválidos")
	}
	tpAmb := p.Environment
	if tpAmb != pkgnfe.EnvironmentProduction && tpAmb != pkgnfe.EnvironmentHomologation {
		return "", fmt.Errorf("nfe: ambiente inválido: %q", p.Environment)
	}

	params := p.AccessKey + "|" + qrVersion + "|" + tpAmb

	if p.TpEmis != pkgnfe.EmissionNormal {
		if p.IssuedAt.IsZero() {
			return "", fmt.Errorf("nfe: data de emissão é obrigatória no QR Code de contingência")
		}
		digHex, err := base64ToHex(p.DigestBase64)
		if err != nil {
			return "", fmt.Errorf("nfe: DigestValue inválido: %w", err)
		}
		params += "|" + fmt.Sprintf("%02d", p.IssuedAt.Day()) +
			"|" + p.Total.Round(2).StringFixed(2) +
			"|" + digHex
	}

	params += "|" + strings.TrimLeft(p.CSCTokenID, "0")

	hash := sha1.Sum([]byte(params + p.CSC))
	hashHex := hex.EncodeToString(hash[:])

	return qrHost(tpAmb) + "/qrcode?p=" + params + "|" + hashHex, nil
}

// ConsultaURL devolve a URL de consulta por chave de acesso (campo urlChave).
func ConsultaURL(environment string) string {
	return qrHost(environment) + "/consulta"
}

func qrHost(environment string) string {
	if environment == pkgnfe.EnvironmentProduction {
		return qrHostProduction
	}
	return qrHostHomologation
}

func base64ToHex(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}
