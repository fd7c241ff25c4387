package entity

import "time"

// MaxInvoiceNumber é o teto do campo nNF (9 dígitos).
const MaxInvoiceNumber int64 = 999_999_999

// NumberControl é a linha de controle de numeração por
// (cliente, empresa, filial, série). LastNumber é o último número já usado;
// a reserva do próximo acontece com SELECT ... FOR UPDATE dentro da mesma
// transação que grava a nota.
type NumberControl struct {
	ClientID  string
	CompanyID string
	BranchID  string
	Series    string

	LastNumber int64
	UpdatedAt  time.Time
}
