package repository

import (
	"time"

	"github.com/inovapos/pdv-fiscal/internal/domain/entity"
)

// TaxRuleRepository porto de leitura das regras de tributação.
// Os Find* devolvem a regra mais recente com StartDate <= issueDate,
// ou nil quando não há regra cadastrada (erro de negócio do chamador).
type TaxRuleRepository interface {
	FindIcmsSt(clientID, branchID, ncm string, issueDate time.Time) (*entity.IcmsStRule, error)
	FindPis(clientID, ncm string, issueDate time.Time) (*entity.PisRule, error)
	FindCofins(clientID, ncm string, issueDate time.Time) (*entity.CofinsRule, error)
	FindCfop(clientID, invoiceType, country, originState, destState, materialType string) (*entity.CfopRule, error)
	FindIbpt(ncm string) (*entity.IbptRate, error)
}
