package entity

import "github.com/shopspring/decimal"

// Payment é um pagamento informado no grupo pag da NFC-e.
type Payment struct {
	ID        string
	InvoiceID string

	TPag   string // código do meio de pagamento (tabela tPag)
	Amount decimal.Decimal

	// Dados do grupo card, presentes quando TPag é 03/04 e a integração
	// com a adquirente fornece os detalhes.
	Installments int
	IssuerCNPJ   string // CNPJ da credenciadora
	AuthCode     string // cAut
}

// HasCardDetail indica se o pagamento carrega dados suficientes para o grupo card.
func (p Payment) HasCardDetail() bool {
	return p.IssuerCNPJ != "" || p.AuthCode != ""
}
