package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/inovapos/pdv-fiscal/internal/domain"
	"github.com/inovapos/pdv-fiscal/internal/domain/entity"
	"github.com/inovapos/pdv-fiscal/internal/domain/repository"
)

var _ repository.NumberControlRepository = (*NumberControlRepo)(nil)

// NumberControlRepo implementação do controle de numeração. GetForUpdate só
// faz sentido dentro de uma transação: o lock dura até o commit/rollback.
type NumberControlRepo struct {
	q Querier
}

// NewNumberControlRepository constrói o adaptador. Passar pool ou tx (Querier).
func NewNumberControlRepository(q Querier) *NumberControlRepo {
	return &NumberControlRepo{q: q}
}

// GetForUpdate trava e devolve a linha de numeração da série, ou nil se a
// série nunca foi semeada.
func (r *NumberControlRepo) GetForUpdate(clientID, companyID, branchID, series string) (*entity.NumberControl, error) {
	query := `
		SELECT client_id, company_id, branch_id, series, last_number, updated_at
		FROM number_controls
		WHERE client_id = $1 AND company_id = $2 AND branch_id = $3 AND series = $4
		FOR UPDATE`
	var nc entity.NumberControl
	err := r.q.QueryRow(context.Background(), query, clientID, companyID, branchID, series).Scan(
		&nc.ClientID, &nc.CompanyID, &nc.BranchID, &nc.Series, &nc.LastNumber, &nc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("lock number control: %w", err)
	}
	return &nc, nil
}

// Create semeia a linha de numeração de uma série nova.
func (r *NumberControlRepo) Create(control *entity.NumberControl) error {
	query := `
		INSERT INTO number_controls (client_id, company_id, branch_id, series, last_number, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.q.Exec(context.Background(), query,
		control.ClientID, control.CompanyID, control.BranchID, control.Series,
		control.LastNumber, control.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("série já semeada: %w", domain.ErrDuplicate)
		}
		return fmt.Errorf("insert number control: %w", err)
	}
	return nil
}

// UpdateLastNumber grava o último número usado da série.
func (r *NumberControlRepo) UpdateLastNumber(control *entity.NumberControl) error {
	query := `
		UPDATE number_controls
		SET last_number = $5, updated_at = $6
		WHERE client_id = $1 AND company_id = $2 AND branch_id = $3 AND series = $4`
	tag, err := r.q.Exec(context.Background(), query,
		control.ClientID, control.CompanyID, control.BranchID, control.Series,
		control.LastNumber, control.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update number control: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
