package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/inovapos/pdv-fiscal/internal/application/dto"
	"github.com/inovapos/pdv-fiscal/internal/application/fiscal"
	"github.com/inovapos/pdv-fiscal/internal/infrastructure/sefaz"
)

// FiscalHandler operações de contingência e status do serviço da SEFAZ.
type FiscalHandler struct {
	coordinator *fiscal.ContingencyCoordinator
	authorizer  sefaz.Authorizer
}

// NewFiscalHandler constrói o handler.
func NewFiscalHandler(coordinator *fiscal.ContingencyCoordinator, authorizer sefaz.Authorizer) *FiscalHandler {
	return &FiscalHandler{coordinator: coordinator, authorizer: authorizer}
}

// FlushContingency retransmite em série as notas emitidas em contingência.
// POST /api/v1/contingency/flush?client_id=...
func (h *FiscalHandler) FlushContingency(c *fiber.Ctx) error {
	clientID := c.Query("client_id")
	if clientID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "client_id obrigatório"})
	}

	report, err := h.coordinator.Flush(c.Context(), clientID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.JSON(dto.FlushResponse{
		ServiceOnline: report.ServiceOnline,
		Processed:     report.Processed,
		Authorized:    report.Authorized,
		Duplicates:    report.Duplicates,
		Rejected:      report.Rejected,
		Interrupted:   report.Interrupted,
	})
}

// SefazStatus consulta o consStatServ do webservice.
// GET /api/v1/sefaz/status
func (h *FiscalHandler) SefazStatus(c *fiber.Ctx) error {
	status, err := h.authorizer.CheckStatus(c.Context())
	if err != nil {
		// Falha de transporte equivale a serviço fora do ar.
		return c.JSON(dto.SefazStatusResponse{Online: false, XMotivo: err.Error()})
	}
	return c.JSON(dto.SefazStatusResponse{
		Online:  status.Online,
		CStat:   status.CStat,
		XMotivo: status.XMotivo,
	})
}
