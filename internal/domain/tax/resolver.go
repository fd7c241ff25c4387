// Package tax: determinação de impostos (ICMS-ST, PIS, COFINS), CFOP e
// divulgação aproximada de tributos (Lei 12.741/2012) para itens da NFC-e.

package tax

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/inovapos/pdv-fiscal/internal/domain"
	"github.com/inovapos/pdv-fiscal/internal/domain/entity"
	"github.com/inovapos/pdv-fiscal/internal/domain/repository"
)

// CstIcmsExempt CST de isenção: a linha de imposto ainda é emitida, zerada.
const CstIcmsExempt = "40"

// ResolveInput dados de um item para determinação fiscal.
type ResolveInput struct {
	ClientID string
	BranchID string

	InvoiceType  string
	Country      string
	OriginState  string
	DestState    string
	MaterialType string

	NCM       string
	ItemTotal decimal.Decimal
	IssueDate time.Time
}

// ResolvedItem resultado da determinação: CFOP e as três linhas de imposto.
type ResolvedItem struct {
	CFOP  string
	Taxes []entity.ItemTax
}

// Resolver determina CFOP e impostos de um item a partir das regras
// cadastradas. A ausência de regra para qualquer um dos três impostos,
// ou de CFOP, é erro duro: a venda inteira é recusada.
type Resolver struct {
	rules repository.TaxRuleRepository
}

// NewResolver cria o serviço.
func NewResolver(rules repository.TaxRuleRepository) *Resolver {
	return &Resolver{rules: rules}
}

// ResolveItem determina CFOP e calcula as linhas de ICMS-ST, PIS e COFINS.
// base = total × (1 − redução/100); valor = base × alíquota/100.
func (r *Resolver) ResolveItem(in *ResolveInput) (*ResolvedItem, error) {
	if in == nil {
		return nil, fmt.Errorf("tax: ResolveInput é obrigatório")
	}

	cfop, err := r.rules.FindCfop(in.ClientID, in.InvoiceType, in.Country, in.OriginState, in.DestState, in.MaterialType)
	if err != nil {
		return nil, fmt.Errorf("buscar CFOP: %w", err)
	}
	if cfop == nil {
		return nil, fmt.Errorf("%w: NCM %s", domain.ErrCfopMissing, in.NCM)
	}

	icms, err := r.rules.FindIcmsSt(in.ClientID, in.BranchID, in.NCM, in.IssueDate)
	if err != nil {
		return nil, fmt.Errorf("buscar regra ICMS-ST: %w", err)
	}
	if icms == nil {
		return nil, fmt.Errorf("%w: ICMS-ST, NCM %s", domain.ErrTaxRuleMissing, in.NCM)
	}

	pis, err := r.rules.FindPis(in.ClientID, in.NCM, in.IssueDate)
	if err != nil {
		return nil, fmt.Errorf("buscar regra PIS: %w", err)
	}
	if pis == nil {
		return nil, fmt.Errorf("%w: PIS, NCM %s", domain.ErrTaxRuleMissing, in.NCM)
	}

	cofins, err := r.rules.FindCofins(in.ClientID, in.NCM, in.IssueDate)
	if err != nil {
		return nil, fmt.Errorf("buscar regra COFINS: %w", err)
	}
	if cofins == nil {
		return nil, fmt.Errorf("%w: COFINS, NCM %s", domain.ErrTaxRuleMissing, in.NCM)
	}

	taxes := []entity.ItemTax{
		icmsLine(icms, in.ItemTotal),
		taxLine(entity.TaxPIS, pis.CST, pis.Rate, pis.Reduction, in.ItemTotal),
		taxLine(entity.TaxCOFINS, cofins.CST, cofins.Rate, cofins.Reduction, in.ItemTotal),
	}
	return &ResolvedItem{CFOP: cfop.CFOP, Taxes: taxes}, nil
}

func icmsLine(rule *entity.IcmsStRule, total decimal.Decimal) entity.ItemTax {
	if rule.CST == CstIcmsExempt {
		// Isenção: base, alíquota e valor zerados, mas a linha é emitida.
		return entity.ItemTax{
			TaxType: entity.TaxICMS,
			CST:     rule.CST,
			Base:    decimal.Zero,
			Rate:    decimal.Zero,
			Value:   decimal.Zero,
		}
	}
	return taxLine(entity.TaxICMS, rule.CST, rule.Rate, rule.Reduction, total)
}

func taxLine(taxType, cst string, rate, reduction, total decimal.Decimal) entity.ItemTax {
	hundred := decimal.NewFromInt(100)
	base := total.Mul(decimal.NewFromInt(1).Sub(reduction.Div(hundred)))
	value := base.Mul(rate.Div(hundred))
	return entity.ItemTax{
		TaxType:   taxType,
		CST:       cst,
		Base:      base,
		Rate:      rate,
		Reduction: reduction,
		Value:     value,
	}
}
