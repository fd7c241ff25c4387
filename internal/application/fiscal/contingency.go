package fiscal

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/inovapos/pdv-fiscal/internal/domain/entity"
	domnfe "github.com/inovapos/pdv-fiscal/internal/domain/nfe"
	"github.com/inovapos/pdv-fiscal/internal/domain/repository"
	infranfe "github.com/inovapos/pdv-fiscal/internal/infrastructure/nfe"
	"github.com/inovapos/pdv-fiscal/internal/infrastructure/nfe/signer"
	"github.com/inovapos/pdv-fiscal/internal/infrastructure/sefaz"
	"github.com/inovapos/pdv-fiscal/pkg/config"
	"github.com/inovapos/pdv-fiscal/pkg/logger"
	pkgnfe "github.com/inovapos/pdv-fiscal/pkg/nfe"
)

// ContingencyCoordinator cuida dos dois lados da contingência off-line:
// rebaixar uma nota cuja transmissão falhou (Demote) e retransmitir o
// acumulado quando o serviço volta (Flush).
type ContingencyCoordinator struct {
	invoiceRepo repository.InvoiceRepository
	authorizer  sefaz.Authorizer
	qrBuilder   *domnfe.QrCodeBuilder
	cfg         config.SefazConfig
	log         *logger.Logger
	now         func() time.Time
}

// NewContingencyCoordinator constrói o coordenador.
func NewContingencyCoordinator(
	invoiceRepo repository.InvoiceRepository,
	authorizer sefaz.Authorizer,
	qrBuilder *domnfe.QrCodeBuilder,
	cfg config.SefazConfig,
	log *logger.Logger,
) *ContingencyCoordinator {
	return &ContingencyCoordinator{
		invoiceRepo: invoiceRepo,
		authorizer:  authorizer,
		qrBuilder:   qrBuilder,
		cfg:         cfg,
		log:         log,
		now:         time.Now,
	}
}

// Demote rebaixa a nota para contingência off-line. O XML já assinado recebe
// tpEmis=9, dhCont e xJust (sem reassinatura) e o QR é trocado pelo de
// contingência, que carrega o DigestValue. A nota fica NO_SEND e o cupom
// pode sair na hora.
func (c *ContingencyCoordinator) Demote(inv *entity.Invoice, signOut *signer.SignOutput, reason string) (*entity.Invoice, error) {
	now := c.now()
	if reason == "" {
		reason = infranfe.DefaultContingencyReason
	}

	rewritten, err := infranfe.RewriteForContingency(signOut.XML, now, reason)
	if err != nil {
		return nil, err
	}

	qrCont, err := c.qrBuilder.Build(&domnfe.QrCodeParams{
		AccessKey:    inv.AccessKey,
		Environment:  c.cfg.Environment,
		CSC:          c.cfg.CSC,
		CSCTokenID:   c.cfg.CSCTokenID,
		TpEmis:       pkgnfe.EmissionContingency,
		IssuedAt:     inv.IssuedAt,
		Total:        inv.Total,
		DigestBase64: signOut.DigestBase64,
	})
	if err != nil {
		return nil, err
	}
	rewritten, err = infranfe.ReplaceQRCode(rewritten, qrCont)
	if err != nil {
		return nil, err
	}

	inv.Status = entity.StatusNoSend
	inv.Contingency = true
	inv.ContingencyAt = now
	inv.ContingencyReason = reason
	inv.QRCode = qrCont
	inv.XMLBase64 = base64.StdEncoding.EncodeToString(rewritten)
	inv.UpdatedAt = now

	if err := c.invoiceRepo.UpdateFiscal(inv); err != nil {
		return nil, err
	}

	c.log.Warn().
		Str("invoice_id", inv.ID).
		Str("motivo", reason).
		Msg("nota emitida em contingência off-line")
	return inv, nil
}

// FlushReport resume uma rodada de retransmissão de contingência.
type FlushReport struct {
	ServiceOnline bool
	Processed     int
	Authorized    int
	Duplicates    int
	Rejected      int
	// Interrupted indica que a rodada parou no meio por nova falha de
	// transporte; as notas restantes continuam NO_SEND.
	Interrupted bool
}

// flushBatchSize limite de notas por rodada de retransmissão.
const flushBatchSize = 50

// Flush retransmite as notas NO_SEND em série, mais antigas primeiro. Antes
// de qualquer envio consulta o status do serviço; fora do ar, não tenta.
// O XML armazenado é reenviado sem nenhuma alteração.
func (c *ContingencyCoordinator) Flush(ctx context.Context, clientID string) (*FlushReport, error) {
	report := &FlushReport{}

	status, err := c.authorizer.CheckStatus(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("consulta de status falhou, retransmissão adiada")
		return report, nil
	}
	if !status.Online {
		c.log.Warn().Str("cstat", status.CStat).Msg("SEFAZ fora do ar, retransmissão adiada")
		return report, nil
	}
	report.ServiceOnline = true

	pending, err := c.invoiceRepo.ListContingencyPending(clientID, flushBatchSize)
	if err != nil {
		return nil, err
	}

	for _, inv := range pending {
		xmlBytes, err := base64.StdEncoding.DecodeString(inv.XMLBase64)
		if err != nil {
			return report, fmt.Errorf("nota %s com XML armazenado corrompido: %w", inv.ID, err)
		}

		result, err := c.authorizer.Submit(ctx, xmlBytes)
		if err != nil {
			// Serviço caiu de novo; o restante fica para a próxima rodada.
			c.log.Warn().Err(err).Str("invoice_id", inv.ID).Msg("retransmissão interrompida")
			report.Interrupted = true
			return report, nil
		}
		report.Processed++

		inv.CStat = result.CStat
		inv.XMotivo = result.XMotivo
		inv.UpdatedAt = c.now()

		switch {
		case result.Authorized():
			inv.Status = entity.StatusAuthorized
			inv.Contingency = false
			inv.Protocol = result.Protocol
			inv.AuthorizedAt = result.AuthorizedAt
			if inv.AuthorizedAt.IsZero() {
				inv.AuthorizedAt = c.now()
			}
			inv.XMLBase64 = base64.StdEncoding.EncodeToString(result.ProcXML)
			report.Authorized++
		case result.Outcome == sefaz.OutcomeDuplicate:
			// Já existe nota autorizada com a mesma chave; exige conciliação
			// manual, não reenvio.
			inv.Status = entity.StatusDuplicate
			report.Duplicates++
		default:
			inv.Status = entity.StatusRejected
			report.Rejected++
		}

		if err := c.invoiceRepo.UpdateFiscal(inv); err != nil {
			return report, err
		}
	}

	c.log.Info().
		Int("processadas", report.Processed).
		Int("autorizadas", report.Authorized).
		Int("duplicadas", report.Duplicates).
		Int("rejeitadas", report.Rejected).
		Msg("rodada de retransmissão de contingência concluída")
	return report, nil
}
