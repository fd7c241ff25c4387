// Package nfe: construção e mutação do XML da NFC-e (modelo 65, layout 4.00).
package nfe

import (
	"github.com/inovapos/pdv-fiscal/internal/domain/entity"
)

// NFeNamespace namespace do portal fiscal, obrigatório no elemento NFe.
const NFeNamespace = "http://www.portalfiscal.inf.br/nfe"

// LayoutVersion versão do leiaute no atributo versao do infNFe.
const LayoutVersion = "4.00"

// RespTec dados do responsável técnico (grupo infRespTec, NT 2018.005).
type RespTec struct {
	CNPJ    string
	Contact string
	Email   string
	Phone   string
}

// BuildInput dados para montar o XML da nota (sem assinatura).
type BuildInput struct {
	Invoice *entity.Invoice
	Company *entity.Company
	Branch  *entity.Branch

	Environment string // "1" produção, "2" homologação
	DhEmi       string // data/hora de emissão já formatada (RFC 3339 com offset)
	InfCpl      string // observação do infAdic (ex: divulgação IBPT)
	RespTec     RespTec
}
