package entity

import "github.com/shopspring/decimal"

// InvoiceItem é uma linha de produto da NFC-e (grupo det/prod).
type InvoiceItem struct {
	ID        string
	InvoiceID string
	LineNo    int // nItem, sequencial a partir de 1

	ProductCode string
	Description string
	EAN         string // cEAN; vazio vira "SEM GTIN" no XML
	NCM         string
	CFOP        string
	Unit        string // uCom/uTrib

	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal // vUnCom, 10 casas decimais no XML
	Discount  decimal.Decimal
	Total     decimal.Decimal // vProd

	Taxes []ItemTax
}

// Tipos de imposto das linhas de tributação do item.
const (
	TaxICMS   = "ICMS"
	TaxPIS    = "PIS"
	TaxCOFINS = "COFINS"
)

// ItemTax é uma linha de tributação determinada para um item.
// CST "40" (isenta) produz uma linha com base, alíquota e valor zerados,
// que ainda assim é emitida no XML.
type ItemTax struct {
	ID        string
	ItemID    string
	TaxType   string // ICMS, PIS, COFINS
	CST       string
	Base      decimal.Decimal
	Rate      decimal.Decimal // percentual, 4 casas no XML
	Reduction decimal.Decimal // percentual de redução da base
	Value     decimal.Decimal
}
