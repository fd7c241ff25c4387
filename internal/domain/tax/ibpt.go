package tax

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/inovapos/pdv-fiscal/internal/domain/entity"
	"github.com/inovapos/pdv-fiscal/internal/domain/repository"
)

// IbptResult totais aproximados de tributos por esfera (Lei 12.741/2012).
type IbptResult struct {
	Federal   decimal.Decimal
	State     decimal.Decimal
	Municipal decimal.Decimal
}

// Total soma das três esferas.
func (r IbptResult) Total() decimal.Decimal {
	return r.Federal.Add(r.State).Add(r.Municipal)
}

// IbptCalculator calcula a observação de tributos aproximados do infCpl.
// É divulgação informativa ao consumidor; não participa do cálculo dos
// impostos da nota. NCM sem alíquota cadastrada contribui com zero.
type IbptCalculator struct {
	rules repository.TaxRuleRepository
}

// NewIbptCalculator cria o serviço.
func NewIbptCalculator(rules repository.TaxRuleRepository) *IbptCalculator {
	return &IbptCalculator{rules: rules}
}

// Calculate agrega os valores aproximados por item (base × percentual / 100,
// arredondado a 2 casas por item e por esfera).
func (c *IbptCalculator) Calculate(items []entity.InvoiceItem) (IbptResult, error) {
	hundred := decimal.NewFromInt(100)
	var res IbptResult

	for _, it := range items {
		base := it.Total
		if base.IsZero() {
			base = it.UnitPrice.Mul(it.Quantity)
		}

		var rate *entity.IbptRate
		if it.NCM != "" {
			var err error
			rate, err = c.rules.FindIbpt(it.NCM)
			if err != nil {
				return IbptResult{}, fmt.Errorf("buscar alíquota IBPT do NCM %s: %w", it.NCM, err)
			}
		}
		if rate == nil {
			continue
		}

		res.Federal = res.Federal.Add(base.Mul(safePercent(rate.Federal)).Div(hundred).Round(2))
		res.State = res.State.Add(base.Mul(safePercent(rate.State)).Div(hundred).Round(2))
		res.Municipal = res.Municipal.Add(base.Mul(safePercent(rate.Municipal)).Div(hundred).Round(2))
	}

	res.Federal = res.Federal.Round(2)
	res.State = res.State.Round(2)
	res.Municipal = res.Municipal.Round(2)
	return res, nil
}

// Observation monta o texto do infCpl no formato exigido pelo varejo:
// "Tributos aproximados (Lei 12.741/2012): R$ 12,34 (Federal: R$ 8,22;
// Estadual: R$ 3,45; Municipal: R$ 0,67). Fonte: IBPT."
func (c *IbptCalculator) Observation(items []entity.InvoiceItem) (string, error) {
	res, err := c.Calculate(items)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"Tributos aproximados (Lei 12.741/2012): R$ %s (Federal: R$ %s; Estadual: R$ %s; Municipal: R$ %s). Fonte: IBPT.",
		formatBRL(res.Total()), formatBRL(res.Federal), formatBRL(res.State), formatBRL(res.Municipal),
	), nil
}

func safePercent(v decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return decimal.Zero
	}
	return v
}

// formatBRL formata um valor no padrão pt-BR: milhar com ponto, decimal com vírgula.
func formatBRL(d decimal.Decimal) string {
	s := d.Round(2).StringFixed(2)

	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart := s[:len(s)-3]
	fracPart := s[len(s)-2:]

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}

	out := b.String() + "," + fracPart
	if neg {
		out = "-" + out
	}
	return out
}
