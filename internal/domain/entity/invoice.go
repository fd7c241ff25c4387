package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados fiscais da NFC-e junto à SEFAZ.
const (
	StatusPending    = "PENDING"    // Gravada para reservar número, antes do envio
	StatusNoSend     = "NO_SEND"    // Emitida em contingência, aguardando transmissão
	StatusAuthorized = "AUTORIZADA" // cStat 100 (ou 150, autorização fora de prazo)
	StatusRejected   = "REJEITADA"  // Rejeitada pela SEFAZ
	StatusDuplicate  = "DUPLICADA"  // cStat 204, exige intervenção manual
)

// Invoice representa o cabeçalho de uma NFC-e (modelo 65).
type Invoice struct {
	ID        string
	ClientID  string
	CompanyID string
	BranchID  string

	Series string
	Number int64
	// AccessKey é a chave de acesso de 44 dígitos; CNF é o código numérico
	// aleatório (campo cNF) usado na chave.
	AccessKey string
	CNF       string

	CustomerCPF  string // CPF do consumidor, opcional
	CustomerName string

	IssuedAt time.Time

	TotalProducts decimal.Decimal
	TotalDiscount decimal.Decimal
	TotalFreight  decimal.Decimal
	TotalOther    decimal.Decimal
	Total         decimal.Decimal // vNF

	Status            string
	Contingency       bool
	ContingencyAt     time.Time
	ContingencyReason string

	// Retorno da SEFAZ
	Protocol     string // nProt do protNFe
	AuthorizedAt time.Time
	CStat        string
	XMotivo      string

	XMLBase64 string // documento de registro: NFe assinada ou nfeProc, em base64
	QRCode    string // conteúdo do QR Code v2
	URLChave  string // URL de consulta por chave de acesso

	Items    []InvoiceItem
	Payments []Payment

	CreatedAt time.Time
	UpdatedAt time.Time
}
