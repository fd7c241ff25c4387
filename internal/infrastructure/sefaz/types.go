package sefaz

import (
	"context"
	"time"
)

// ── Constantes de ambiente ────────────────────────────────────────────────────

const (
	// EnvironmentProduction tpAmb=1.
	EnvironmentProduction = "1"
	// EnvironmentHomologation tpAmb=2 (homologação/testes).
	EnvironmentHomologation = "2"

	baseURLProduction   = "https://nfce.fazenda.sp.gov.br"
	baseURLHomologation = "https://homologacao.nfce.fazenda.sp.gov.br"
)

// Códigos cStat relevantes do retorno da SEFAZ.
const (
	CStatBatchProcessed    = "104" // lote processado
	CStatAuthorized        = "100" // autorizado o uso da NF-e
	CStatAuthorizedOutTime = "150" // autorizado fora de prazo
	CStatDuplicate         = "204" // duplicidade de NF-e
	CStatServiceUp         = "107" // serviço em operação
)

// Outcome classifica o resultado fiscal de uma submissão que chegou à SEFAZ.
// Falhas de transporte não produzem Outcome; são devolvidas como erro.
type Outcome string

const (
	OutcomeAuthorized Outcome = "AUTHORIZED"
	OutcomeDuplicate  Outcome = "DUPLICATE"
	OutcomeRejected   Outcome = "REJECTED"
)

// AuthorizationResult resultado da autorização de uma NFC-e.
type AuthorizationResult struct {
	Outcome      Outcome
	CStat        string // cStat do documento (ou do lote, se o lote foi recusado)
	XMotivo      string
	Protocol     string // nProt; vazio quando não autorizado
	AuthorizedAt time.Time

	// ProcXML é o nfeProc completo (NFe assinada + protNFe), pronto para
	// armazenamento e DANFE. Preenchido apenas quando autorizado.
	ProcXML []byte
}

// Authorized informa se a SEFAZ autorizou o uso do documento.
func (r *AuthorizationResult) Authorized() bool {
	return r.Outcome == OutcomeAuthorized
}

// StatusResult resultado da consulta de status do serviço.
type StatusResult struct {
	Online  bool
	CStat   string
	XMotivo string
}

// Authorizer define o porto de saída para o webservice de autorização da
// SEFAZ. A implementação concreta usa SOAP 1.2 com TLS mútuo; para tests se
// pode injetar um fake.
type Authorizer interface {
	// Submit envia a NFe assinada em um lote síncrono (indSinc=1) e devolve
	// a classificação do retorno. Erro não-nulo indica falha de transporte
	// (rede, timeout, HTTP != 200): o documento NÃO chegou a ser processado
	// e a emissão deve cair para contingência.
	Submit(ctx context.Context, signedNFe []byte) (*AuthorizationResult, error)

	// CheckStatus consulta o serviço de status (consStatServ). Online é true
	// apenas quando cStat == 107.
	CheckStatus(ctx context.Context) (*StatusResult, error)
}
