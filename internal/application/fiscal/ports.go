package fiscal

import (
	"context"
	"crypto/tls"

	"github.com/shopspring/decimal"

	"github.com/inovapos/pdv-fiscal/internal/domain/repository"
	"github.com/inovapos/pdv-fiscal/internal/infrastructure/nfe/signer"
)

// TxRunner executa uma função dentro de uma transação com os repositórios
// fiscais atados à tx. A reserva de número e a gravação da nota só podem
// acontecer juntas: o lock do controle de numeração dura até o commit.
type TxRunner interface {
	Run(ctx context.Context, fn func(
		invoiceRepo repository.InvoiceRepository,
		numberRepo repository.NumberControlRepository,
	) error) error
}

// Signer porto da assinatura XML-DSig. SignWithDetails devolve também o
// DigestValue do infNFe, necessário para o QR Code de contingência.
type Signer interface {
	SignWithDetails(xmlBytes []byte, cert tls.Certificate, qrCode, urlChave string) (*signer.SignOutput, error)
}

// SaleInput é a venda recebida do caixa.
type SaleInput struct {
	ClientID  string
	CompanyID string
	BranchID  string

	// Series sobrescreve a série padrão configurada; opcional.
	Series string

	CustomerCPF  string
	CustomerName string

	Items    []SaleItem
	Payments []SalePayment
}

// SaleItem é uma linha de produto da venda.
type SaleItem struct {
	ProductCode string
	Description string
	EAN         string
	NCM         string
	Unit        string
	// MaterialType entra na determinação do CFOP; vazio vira MERCADORIA.
	MaterialType string

	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
	Discount  decimal.Decimal
}

// SalePayment é um pagamento informado na venda.
type SalePayment struct {
	TPag         string
	Amount       decimal.Decimal
	Installments int
	IssuerCNPJ   string
	AuthCode     string
}
