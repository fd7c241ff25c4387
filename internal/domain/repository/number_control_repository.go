package repository

import "github.com/inovapos/pdv-fiscal/internal/domain/entity"

// NumberControlRepository porto de persistência do controle de numeração.
// GetForUpdate deve ser chamado dentro de uma transação: trava a linha com
// SELECT ... FOR UPDATE e serializa vendas concorrentes na mesma série.
type NumberControlRepository interface {
	// GetForUpdate devolve a linha travada, ou nil se a série nunca foi usada.
	GetForUpdate(clientID, companyID, branchID, series string) (*entity.NumberControl, error)
	Create(control *entity.NumberControl) error
	UpdateLastNumber(control *entity.NumberControl) error
}
