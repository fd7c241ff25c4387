package fiscal

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"time"

	"github.com/inovapos/pdv-fiscal/internal/domain"
	"github.com/inovapos/pdv-fiscal/internal/domain/entity"
	domnfe "github.com/inovapos/pdv-fiscal/internal/domain/nfe"
	"github.com/inovapos/pdv-fiscal/internal/domain/repository"
	"github.com/inovapos/pdv-fiscal/internal/domain/tax"
	infranfe "github.com/inovapos/pdv-fiscal/internal/infrastructure/nfe"
	"github.com/inovapos/pdv-fiscal/internal/infrastructure/sefaz"
	"github.com/inovapos/pdv-fiscal/pkg/config"
	"github.com/inovapos/pdv-fiscal/pkg/logger"
	pkgnfe "github.com/inovapos/pdv-fiscal/pkg/nfe"
)

// IssueOrchestrator executa o ciclo de emissão de uma NFC-e pendente:
//
//	chave de acesso → XML → QR Code → assinatura → envio síncrono → status
//
// Falha de transporte no envio não derruba a venda: a nota cai para
// contingência off-line (NO_SEND) e o cupom sai com o QR de contingência.
type IssueOrchestrator struct {
	invoiceRepo repository.InvoiceRepository
	keyGen      *domnfe.AccessKeyGenerator
	qrBuilder   *domnfe.QrCodeBuilder
	xmlBuilder  *infranfe.Builder
	signer      Signer
	authorizer  sefaz.Authorizer
	contingency *ContingencyCoordinator
	ibpt        *tax.IbptCalculator
	cert        tls.Certificate
	cfg         config.SefazConfig
	log         *logger.Logger
	now         func() time.Time
}

// NewIssueOrchestrator constrói o orquestrador com todas as dependências.
func NewIssueOrchestrator(
	invoiceRepo repository.InvoiceRepository,
	keyGen *domnfe.AccessKeyGenerator,
	qrBuilder *domnfe.QrCodeBuilder,
	xmlBuilder *infranfe.Builder,
	sgn Signer,
	authorizer sefaz.Authorizer,
	contingency *ContingencyCoordinator,
	ibpt *tax.IbptCalculator,
	cert tls.Certificate,
	cfg config.SefazConfig,
	log *logger.Logger,
) *IssueOrchestrator {
	return &IssueOrchestrator{
		invoiceRepo: invoiceRepo,
		keyGen:      keyGen,
		qrBuilder:   qrBuilder,
		xmlBuilder:  xmlBuilder,
		signer:      sgn,
		authorizer:  authorizer,
		contingency: contingency,
		ibpt:        ibpt,
		cert:        cert,
		cfg:         cfg,
		log:         log,
		now:         time.Now,
	}
}

// Issue emite a nota PENDING recém-gravada. inv deve vir hidratado com
// itens (e impostos) e pagamentos. Devolve a nota com o estado final:
// AUTORIZADA, REJEITADA, DUPLICADA ou NO_SEND (contingência).
func (o *IssueOrchestrator) Issue(ctx context.Context, inv *entity.Invoice, company *entity.Company, branch *entity.Branch) (*entity.Invoice, error) {
	if inv.Status != entity.StatusPending {
		return nil, domain.ErrConflict
	}

	key, cnf, err := o.keyGen.Generate(&domnfe.KeyParams{
		UFCode:   branch.UFCode,
		IssuedAt: inv.IssuedAt,
		CNPJ:     company.CNPJ,
		Series:   inv.Series,
		Number:   inv.Number,
		TpEmis:   pkgnfe.EmissionNormal,
	})
	if err != nil {
		return nil, err
	}
	inv.AccessKey = key
	inv.CNF = cnf

	infCpl, err := o.ibpt.Observation(inv.Items)
	if err != nil {
		return nil, err
	}

	doc, err := o.xmlBuilder.Build(&infranfe.BuildInput{
		Invoice:     inv,
		Company:     company,
		Branch:      branch,
		Environment: o.cfg.Environment,
		DhEmi:       inv.IssuedAt.Format("2006-01-02T15:04:05-07:00"),
		InfCpl:      infCpl,
		RespTec: infranfe.RespTec{
			CNPJ:    o.cfg.RespTecCNPJ,
			Contact: o.cfg.RespTecContact,
			Email:   o.cfg.RespTecEmail,
			Phone:   o.cfg.RespTecPhone,
		},
	})
	if err != nil {
		return nil, err
	}
	xmlBytes, err := doc.WriteToBytes()
	if err != nil {
		return nil, err
	}

	qrCode, err := o.qrBuilder.Build(&domnfe.QrCodeParams{
		AccessKey:   key,
		Environment: o.cfg.Environment,
		CSC:         o.cfg.CSC,
		CSCTokenID:  o.cfg.CSCTokenID,
		TpEmis:      pkgnfe.EmissionNormal,
	})
	if err != nil {
		return nil, err
	}
	urlChave := domnfe.ConsultaURL(o.cfg.Environment)

	signOut, err := o.signer.SignWithDetails(xmlBytes, o.cert, qrCode, urlChave)
	if err != nil {
		return nil, err
	}
	inv.QRCode = qrCode
	inv.URLChave = urlChave

	result, err := o.authorizer.Submit(ctx, signOut.XML)
	if err != nil {
		// Falha de transporte: a SEFAZ não processou o documento.
		if !o.cfg.ContingencyEnabled {
			return nil, err
		}
		o.log.Warn().Err(err).Str("invoice_id", inv.ID).Msg("SEFAZ inacessível, caindo para contingência")
		return o.contingency.Demote(inv, signOut, err.Error())
	}

	inv.CStat = result.CStat
	inv.XMotivo = result.XMotivo
	inv.UpdatedAt = o.now()

	switch {
	case result.Authorized():
		inv.Status = entity.StatusAuthorized
		inv.Protocol = result.Protocol
		inv.AuthorizedAt = result.AuthorizedAt
		if inv.AuthorizedAt.IsZero() {
			inv.AuthorizedAt = o.now()
		}
		inv.XMLBase64 = base64.StdEncoding.EncodeToString(result.ProcXML)
	case result.Outcome == sefaz.OutcomeDuplicate:
		inv.Status = entity.StatusDuplicate
		inv.XMLBase64 = base64.StdEncoding.EncodeToString(signOut.XML)
	default:
		inv.Status = entity.StatusRejected
		inv.XMLBase64 = base64.StdEncoding.EncodeToString(signOut.XML)
	}

	if err := o.invoiceRepo.UpdateFiscal(inv); err != nil {
		return nil, err
	}

	o.log.Info().
		Str("invoice_id", inv.ID).
		Str("status", inv.Status).
		Str("cstat", inv.CStat).
		Str("protocolo", inv.Protocol).
		Msg("emissão concluída")
	return inv, nil
}
