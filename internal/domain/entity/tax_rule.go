package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// IcmsStRule é uma regra de determinação de ICMS-ST cadastrada para a filial.
// Na resolução vale a regra mais recente com StartDate <= data de emissão.
type IcmsStRule struct {
	ID       string
	ClientID string
	BranchID string
	NCM      string

	CST       string
	Rate      decimal.Decimal // alíquota percentual
	Reduction decimal.Decimal // redução de base percentual
	StartDate time.Time
}

// PisRule é uma regra de determinação de PIS.
type PisRule struct {
	ID       string
	ClientID string
	NCM      string

	CST       string
	Rate      decimal.Decimal
	Reduction decimal.Decimal
	StartDate time.Time
}

// CofinsRule é uma regra de determinação de COFINS.
type CofinsRule struct {
	ID       string
	ClientID string
	NCM      string

	CST       string
	Rate      decimal.Decimal
	Reduction decimal.Decimal
	StartDate time.Time
}

// CfopRule determina o CFOP por tipo de operação e rota fiscal.
type CfopRule struct {
	ID       string
	ClientID string

	InvoiceType  string // ex: "SAIDA_CONSUMIDOR"
	Country      string // ex: "BR"
	OriginState  string // sigla UF de origem
	DestState    string // sigla UF de destino
	MaterialType string // ex: "MERCADORIA", "SERVICO"

	CFOP string
}

// IbptRate percentuais aproximados de tributos por NCM (Lei 12.741/2012).
// Uso exclusivo para a observação informativa do infCpl; não entra no
// cálculo dos impostos da nota.
type IbptRate struct {
	NCM       string
	Federal   decimal.Decimal
	State     decimal.Decimal
	Municipal decimal.Decimal
	Source    string // ex: "IBPT"
}
