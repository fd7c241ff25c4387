package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/inovapos/pdv-fiscal/internal/application/fiscal"
	"github.com/inovapos/pdv-fiscal/internal/domain/repository"
	"github.com/inovapos/pdv-fiscal/internal/infrastructure/sefaz"
)

// RouterDeps dependências para o router.
type RouterDeps struct {
	CreateInvoice *fiscal.CreateInvoiceUseCase
	Issuer        *fiscal.IssueOrchestrator
	Contingency   *fiscal.ContingencyCoordinator
	Authorizer    sefaz.Authorizer

	InvoiceRepo repository.InvoiceRepository
	CompanyRepo repository.CompanyRepository
	BranchRepo  repository.BranchRepository
}

// Router registra as rotas da API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api/v1")

	// Vendas (caixa)
	saleHandler := NewSaleHandler(deps.CreateInvoice, deps.Issuer, deps.CompanyRepo, deps.BranchRepo)
	api.Post("/sales", saleHandler.Create)

	// Notas
	invoiceHandler := NewInvoiceHandler(deps.InvoiceRepo)
	api.Get("/invoices/:id", invoiceHandler.GetByID)
	api.Delete("/invoices/:id", invoiceHandler.Delete)

	// Contingência e status do serviço
	fiscalHandler := NewFiscalHandler(deps.Contingency, deps.Authorizer)
	api.Post("/contingency/flush", fiscalHandler.FlushContingency)
	api.Get("/sefaz/status", fiscalHandler.SefazStatus)
}
