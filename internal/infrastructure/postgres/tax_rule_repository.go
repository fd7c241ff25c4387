package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/inovapos/pdv-fiscal/internal/domain/entity"
	"github.com/inovapos/pdv-fiscal/internal/domain/repository"
)

var _ repository.TaxRuleRepository = (*TaxRuleRepo)(nil)

// TaxRuleRepo leitura das regras de tributação. Cada Find* devolve a regra
// mais recente com start_date <= data de emissão, ou nil quando não há regra.
type TaxRuleRepo struct {
	q Querier
}

// NewTaxRuleRepository constrói o adaptador. Passar pool ou tx (Querier).
func NewTaxRuleRepository(q Querier) *TaxRuleRepo {
	return &TaxRuleRepo{q: q}
}

// FindIcmsSt busca a regra de ICMS vigente para a filial e NCM.
func (r *TaxRuleRepo) FindIcmsSt(clientID, branchID, ncm string, issueDate time.Time) (*entity.IcmsStRule, error) {
	query := `
		SELECT id, client_id, branch_id, ncm, cst, rate, reduction, start_date
		FROM icms_st_rules
		WHERE client_id = $1 AND branch_id = $2 AND ncm = $3 AND start_date <= $4
		ORDER BY start_date DESC
		LIMIT 1`
	var rule entity.IcmsStRule
	err := r.q.QueryRow(context.Background(), query, clientID, branchID, ncm, issueDate).Scan(
		&rule.ID, &rule.ClientID, &rule.BranchID, &rule.NCM,
		&rule.CST, &rule.Rate, &rule.Reduction, &rule.StartDate,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find icms rule: %w", err)
	}
	return &rule, nil
}

// FindPis busca a regra de PIS vigente para o NCM.
func (r *TaxRuleRepo) FindPis(clientID, ncm string, issueDate time.Time) (*entity.PisRule, error) {
	query := `
		SELECT id, client_id, ncm, cst, rate, reduction, start_date
		FROM pis_rules
		WHERE client_id = $1 AND ncm = $2 AND start_date <= $3
		ORDER BY start_date DESC
		LIMIT 1`
	var rule entity.PisRule
	err := r.q.QueryRow(context.Background(), query, clientID, ncm, issueDate).Scan(
		&rule.ID, &rule.ClientID, &rule.NCM,
		&rule.CST, &rule.Rate, &rule.Reduction, &rule.StartDate,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find pis rule: %w", err)
	}
	return &rule, nil
}

// FindCofins busca a regra de COFINS vigente para o NCM.
func (r *TaxRuleRepo) FindCofins(clientID, ncm string, issueDate time.Time) (*entity.CofinsRule, error) {
	query := `
		SELECT id, client_id, ncm, cst, rate, reduction, start_date
		FROM cofins_rules
		WHERE client_id = $1 AND ncm = $2 AND start_date <= $3
		ORDER BY start_date DESC
		LIMIT 1`
	var rule entity.CofinsRule
	err := r.q.QueryRow(context.Background(), query, clientID, ncm, issueDate).Scan(
		&rule.ID, &rule.ClientID, &rule.NCM,
		&rule.CST, &rule.Rate, &rule.Reduction, &rule.StartDate,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find cofins rule: %w", err)
	}
	return &rule, nil
}

// FindCfop busca o CFOP pela rota fiscal da operação.
func (r *TaxRuleRepo) FindCfop(clientID, invoiceType, country, originState, destState, materialType string) (*entity.CfopRule, error) {
	query := `
		SELECT id, client_id, invoice_type, country, origin_state, dest_state, material_type, cfop
		FROM cfop_rules
		WHERE client_id = $1 AND invoice_type = $2 AND country = $3
		  AND origin_state = $4 AND dest_state = $5 AND material_type = $6
		LIMIT 1`
	var rule entity.CfopRule
	err := r.q.QueryRow(context.Background(), query,
		clientID, invoiceType, country, originState, destState, materialType,
	).Scan(
		&rule.ID, &rule.ClientID, &rule.InvoiceType, &rule.Country,
		&rule.OriginState, &rule.DestState, &rule.MaterialType, &rule.CFOP,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find cfop rule: %w", err)
	}
	return &rule, nil
}

// FindIbpt busca os percentuais IBPT do NCM para a observação da Lei 12.741.
func (r *TaxRuleRepo) FindIbpt(ncm string) (*entity.IbptRate, error) {
	query := `
		SELECT ncm, federal, state, municipal, COALESCE(source, 'IBPT')
		FROM ibpt_rates
		WHERE ncm = $1
		LIMIT 1`
	var rate entity.IbptRate
	err := r.q.QueryRow(context.Background(), query, ncm).Scan(
		&rate.NCM, &rate.Federal, &rate.State, &rate.Municipal, &rate.Source,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find ibpt rate: %w", err)
	}
	return &rate, nil
}
