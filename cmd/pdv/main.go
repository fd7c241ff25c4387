package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/inovapos/pdv-fiscal/internal/application/fiscal"
	domnfe "github.com/inovapos/pdv-fiscal/internal/domain/nfe"
	"github.com/inovapos/pdv-fiscal/internal/domain/tax"
	infranfe "github.com/inovapos/pdv-fiscal/internal/infrastructure/nfe"
	"github.com/inovapos/pdv-fiscal/internal/infrastructure/nfe/signer"
	"github.com/inovapos/pdv-fiscal/internal/infrastructure/postgres"
	"github.com/inovapos/pdv-fiscal/internal/infrastructure/sefaz"
	httpRouter "github.com/inovapos/pdv-fiscal/internal/interfaces/http"
	"github.com/inovapos/pdv-fiscal/pkg/config"
	"github.com/inovapos/pdv-fiscal/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("carregar configuração: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: "info",
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("tpAmb", cfg.Sefaz.Environment).
		Msg("iniciando aplicação")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexão com PostgreSQL")
	}
	defer pool.Close()

	invoiceRepo := postgres.NewInvoiceRepository(pool)
	taxRuleRepo := postgres.NewTaxRuleRepository(pool)
	companyRepo := postgres.NewCompanyRepository(pool)
	branchRepo := postgres.NewBranchRepository(pool)
	txRunner := postgres.NewTxRunner(pool)

	resolver := tax.NewResolver(taxRuleRepo)
	ibptCalc := tax.NewIbptCalculator(taxRuleRepo)

	// Certificado A1 carregado uma vez: assina o XML e autentica o TLS mútuo.
	cert, err := signer.Load(cfg.Sefaz.CertPath, cfg.Sefaz.CertKeyPath, cfg.Sefaz.CertPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("certificado digital")
	}

	httpClient := sefaz.NewHTTPClient(cert, cfg.Sefaz.Environment)
	authorizer := sefaz.NewClient(httpClient, cfg.Sefaz.Environment, cfg.Sefaz.UFCode, log)

	keyGen := domnfe.NewAccessKeyGenerator()
	qrBuilder := domnfe.NewQrCodeBuilder()
	xmlBuilder := infranfe.NewBuilder()
	signerSvc := signer.NewSignatureService()

	contingency := fiscal.NewContingencyCoordinator(invoiceRepo, authorizer, qrBuilder, cfg.Sefaz, log)
	issuer := fiscal.NewIssueOrchestrator(
		invoiceRepo, keyGen, qrBuilder, xmlBuilder,
		signerSvc, authorizer, contingency, ibptCalc,
		cert, cfg.Sefaz, log,
	)
	createInvoiceUC := fiscal.NewCreateInvoiceUseCase(
		txRunner, companyRepo, branchRepo, resolver, cfg.Sefaz, log,
	)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 90,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		CreateInvoice: createInvoiceUC,
		Issuer:        issuer,
		Contingency:   contingency,
		Authorizer:    authorizer,
		InvoiceRepo:   invoiceRepo,
		CompanyRepo:   companyRepo,
		BranchRepo:    branchRepo,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("sinal de desligamento recebido, encerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("encerramento do servidor")
	}

	log.Info().Msg("aplicação encerrada")
}
