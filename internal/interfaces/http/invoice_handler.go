package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/inovapos/pdv-fiscal/internal/application/dto"
	"github.com/inovapos/pdv-fiscal/internal/domain"
	"github.com/inovapos/pdv-fiscal/internal/domain/entity"
	"github.com/inovapos/pdv-fiscal/internal/domain/repository"
)

// InvoiceHandler consulta e administração de notas já gravadas.
type InvoiceHandler struct {
	invoiceRepo repository.InvoiceRepository
}

// NewInvoiceHandler constrói o handler.
func NewInvoiceHandler(invoiceRepo repository.InvoiceRepository) *InvoiceHandler {
	return &InvoiceHandler{invoiceRepo: invoiceRepo}
}

// GetByID devolve a nota completa, com itens e XML de registro.
// GET /api/v1/invoices/:id
func (h *InvoiceHandler) GetByID(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "id obrigatório"})
	}

	inv, err := h.invoiceRepo.GetByID(id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	if inv == nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "nota não encontrada"})
	}

	items, err := h.invoiceRepo.GetItemsByInvoiceID(id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	for _, item := range items {
		inv.Items = append(inv.Items, *item)
	}

	return c.JSON(dto.InvoiceToResponse(inv, true))
}

// Delete apaga a nota e seus filhos. Nota autorizada exige force=true
// (uso administrativo; o documento fiscal continua existindo na SEFAZ).
// DELETE /api/v1/invoices/:id?force=true
func (h *InvoiceHandler) Delete(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "id obrigatório"})
	}
	force := c.QueryBool("force")

	if err := h.invoiceRepo.DeleteCascade(id, force); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "nota não encontrada"})
		case errors.Is(err, domain.ErrInvoiceAuthorized):
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "AUTHORIZED", Message: entity.StatusAuthorized + ": exclusão exige force=true"})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
		}
	}
	return c.SendStatus(fiber.StatusNoContent)
}
