package repository

import "github.com/inovapos/pdv-fiscal/internal/domain/entity"

// CompanyRepository porto de leitura da empresa emitente.
type CompanyRepository interface {
	GetByID(id string) (*entity.Company, error)
}

// BranchRepository porto de leitura da filial.
type BranchRepository interface {
	GetByID(id string) (*entity.Branch, error)
}
