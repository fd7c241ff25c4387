package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/inovapos/pdv-fiscal/internal/application/dto"
	"github.com/inovapos/pdv-fiscal/internal/application/fiscal"
	"github.com/inovapos/pdv-fiscal/internal/domain"
	"github.com/inovapos/pdv-fiscal/internal/domain/repository"
)

// SaleHandler atende a venda do caixa: grava a NFC-e e emite na hora.
type SaleHandler struct {
	createUC    *fiscal.CreateInvoiceUseCase
	issuer      *fiscal.IssueOrchestrator
	companyRepo repository.CompanyRepository
	branchRepo  repository.BranchRepository
}

// NewSaleHandler constrói o handler.
func NewSaleHandler(
	createUC *fiscal.CreateInvoiceUseCase,
	issuer *fiscal.IssueOrchestrator,
	companyRepo repository.CompanyRepository,
	branchRepo repository.BranchRepository,
) *SaleHandler {
	return &SaleHandler{
		createUC:    createUC,
		issuer:      issuer,
		companyRepo: companyRepo,
		branchRepo:  branchRepo,
	}
}

// Create grava a venda, reserva o número e emite a NFC-e de forma síncrona.
// A resposta traz o estado final da nota: AUTORIZADA, REJEITADA, DUPLICADA
// ou NO_SEND (contingência, cupom sai mesmo assim).
// POST /api/v1/sales
func (h *SaleHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateSaleRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "corpo inválido"})
	}

	in := &fiscal.SaleInput{
		ClientID:     req.ClientID,
		CompanyID:    req.CompanyID,
		BranchID:     req.BranchID,
		Series:       req.Series,
		CustomerCPF:  req.CustomerCPF,
		CustomerName: req.CustomerName,
	}
	for _, item := range req.Items {
		in.Items = append(in.Items, fiscal.SaleItem{
			ProductCode:  item.ProductCode,
			Description:  item.Description,
			EAN:          item.EAN,
			NCM:          item.NCM,
			Unit:         item.Unit,
			MaterialType: item.MaterialType,
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
			Discount:     item.Discount,
		})
	}
	for _, p := range req.Payments {
		in.Payments = append(in.Payments, fiscal.SalePayment{
			TPag:         p.TPag,
			Amount:       p.Amount,
			Installments: p.Installments,
			IssuerCNPJ:   p.IssuerCNPJ,
			AuthCode:     p.AuthCode,
		})
	}

	inv, err := h.createUC.Execute(c.Context(), in)
	if err != nil {
		return saleError(c, err)
	}

	company, err := h.companyRepo.GetByID(inv.CompanyID)
	if err != nil || company == nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: "empresa não encontrada após gravação"})
	}
	branch, err := h.branchRepo.GetByID(inv.BranchID)
	if err != nil || branch == nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: "filial não encontrada após gravação"})
	}

	issued, err := h.issuer.Issue(c.Context(), inv, company, branch)
	if err != nil {
		// A nota ficou PENDING; o caixa pode reemitir ou cancelar.
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Code: "ISSUE_FAILED", Message: err.Error()})
	}

	return c.Status(fiber.StatusCreated).JSON(dto.InvoiceToResponse(issued, false))
}

func saleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: err.Error()})
	case errors.Is(err, domain.ErrTaxRuleMissing), errors.Is(err, domain.ErrCfopMissing):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{Code: "TAX_RULE_MISSING", Message: err.Error()})
	case errors.Is(err, domain.ErrNumberingNotSeeded), errors.Is(err, domain.ErrNumberingExhausted):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "NUMBERING", Message: err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
}
