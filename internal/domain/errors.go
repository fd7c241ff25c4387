package domain

import "errors"

// Erros de domínio (sem dependências externas).
var (
	ErrNotFound            = errors.New("recurso não encontrado")
	ErrInvalidInput        = errors.New("entrada inválida")
	ErrDuplicate           = errors.New("recurso duplicado")
	ErrConflict            = errors.New("conflito com o estado atual")
	ErrNumberingExhausted  = errors.New("numeração da série esgotada")
	ErrNumberingNotSeeded  = errors.New("controle de numeração não configurado para a série")
	ErrTaxRuleMissing      = errors.New("regra de tributação não encontrada para o item")
	ErrCfopMissing         = errors.New("CFOP não determinado para o item")
	ErrInvoiceAuthorized   = errors.New("nota autorizada não pode ser excluída")
)
