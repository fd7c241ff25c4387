package fiscal

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/inovapos/pdv-fiscal/internal/domain"
	"github.com/inovapos/pdv-fiscal/internal/domain/entity"
	"github.com/inovapos/pdv-fiscal/internal/domain/repository"
	"github.com/inovapos/pdv-fiscal/internal/domain/tax"
	"github.com/inovapos/pdv-fiscal/pkg/config"
	"github.com/inovapos/pdv-fiscal/pkg/logger"
	pkgnfe "github.com/inovapos/pdv-fiscal/pkg/nfe"
)

// Rota fiscal padrão da venda presencial ao consumidor final.
const (
	invoiceTypeConsumerSale = "SAIDA_CONSUMIDOR"
	countryBrazil           = "BR"
	defaultMaterialType     = "MERCADORIA"
)

// CreateInvoiceUseCase grava a venda como NFC-e PENDING com número reservado.
// A determinação de impostos acontece antes da transação (falha barata);
// a reserva de número e a gravação acontecem dentro dela.
type CreateInvoiceUseCase struct {
	txRunner    TxRunner
	companyRepo repository.CompanyRepository
	branchRepo  repository.BranchRepository
	resolver    *tax.Resolver
	cfg         config.SefazConfig
	log         *logger.Logger
	now         func() time.Time
}

// NewCreateInvoiceUseCase constrói o caso de uso.
func NewCreateInvoiceUseCase(
	txRunner TxRunner,
	companyRepo repository.CompanyRepository,
	branchRepo repository.BranchRepository,
	resolver *tax.Resolver,
	cfg config.SefazConfig,
	log *logger.Logger,
) *CreateInvoiceUseCase {
	return &CreateInvoiceUseCase{
		txRunner:    txRunner,
		companyRepo: companyRepo,
		branchRepo:  branchRepo,
		resolver:    resolver,
		cfg:         cfg,
		log:         log,
		now:         time.Now,
	}
}

// Execute valida a venda, determina os impostos e grava nota, itens,
// impostos e pagamentos com o próximo número da série.
func (uc *CreateInvoiceUseCase) Execute(ctx context.Context, in *SaleInput) (*entity.Invoice, error) {
	if err := validateSale(in); err != nil {
		return nil, err
	}

	company, err := uc.companyRepo.GetByID(in.CompanyID)
	if err != nil {
		return nil, err
	}
	if company == nil {
		return nil, fmt.Errorf("empresa %s: %w", in.CompanyID, domain.ErrNotFound)
	}
	branch, err := uc.branchRepo.GetByID(in.BranchID)
	if err != nil {
		return nil, err
	}
	if branch == nil {
		return nil, fmt.Errorf("filial %s: %w", in.BranchID, domain.ErrNotFound)
	}

	series := in.Series
	if series == "" {
		series = uc.cfg.Series
	}
	now := uc.now()

	inv := &entity.Invoice{
		ClientID:     in.ClientID,
		CompanyID:    in.CompanyID,
		BranchID:     in.BranchID,
		Series:       series,
		CustomerCPF:  pkgnfe.OnlyDigits(in.CustomerCPF),
		CustomerName: in.CustomerName,
		IssuedAt:     now,
		Status:       entity.StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// Determinação fiscal item a item. Qualquer regra ausente recusa a
	// venda inteira antes de reservar número.
	for i, line := range in.Items {
		vProd := line.UnitPrice.Mul(line.Quantity)
		materialType := line.MaterialType
		if materialType == "" {
			materialType = defaultMaterialType
		}

		resolved, err := uc.resolver.ResolveItem(&tax.ResolveInput{
			ClientID:     in.ClientID,
			BranchID:     in.BranchID,
			InvoiceType:  invoiceTypeConsumerSale,
			Country:      countryBrazil,
			OriginState:  branch.CountryState,
			DestState:    branch.CountryState,
			MaterialType: materialType,
			NCM:          line.NCM,
			ItemTotal:    vProd.Sub(line.Discount),
			IssueDate:    now,
		})
		if err != nil {
			return nil, fmt.Errorf("item %d (%s): %w", i+1, line.Description, err)
		}

		inv.Items = append(inv.Items, entity.InvoiceItem{
			LineNo:      i + 1,
			ProductCode: line.ProductCode,
			Description: line.Description,
			EAN:         line.EAN,
			NCM:         line.NCM,
			CFOP:        resolved.CFOP,
			Unit:        line.Unit,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			Discount:    line.Discount,
			Total:       vProd,
			Taxes:       resolved.Taxes,
		})

		inv.TotalProducts = inv.TotalProducts.Add(vProd)
		inv.TotalDiscount = inv.TotalDiscount.Add(line.Discount)
	}
	// vNF = vProd − vDesc + vST + vFrete + vOutro, igual ao ICMSTot do XML.
	var vST decimal.Decimal
	for _, item := range inv.Items {
		for _, t := range item.Taxes {
			if t.TaxType == entity.TaxICMS {
				vST = vST.Add(t.Value)
			}
		}
	}
	inv.Total = inv.TotalProducts.Sub(inv.TotalDiscount).Add(vST).
		Add(inv.TotalFreight).Add(inv.TotalOther)

	for _, p := range in.Payments {
		inv.Payments = append(inv.Payments, entity.Payment{
			TPag:         p.TPag,
			Amount:       p.Amount,
			Installments: p.Installments,
			IssuerCNPJ:   p.IssuerCNPJ,
			AuthCode:     p.AuthCode,
		})
	}

	err = uc.txRunner.Run(ctx, func(
		invoiceRepo repository.InvoiceRepository,
		numberRepo repository.NumberControlRepository,
	) error {
		number, err := uc.allocateNumber(numberRepo, in, series, now)
		if err != nil {
			return err
		}
		inv.Number = number

		if err := invoiceRepo.Create(inv); err != nil {
			return err
		}
		for i := range inv.Items {
			item := &inv.Items[i]
			item.InvoiceID = inv.ID
			if err := invoiceRepo.CreateItem(item); err != nil {
				return err
			}
			for j := range item.Taxes {
				item.Taxes[j].ItemID = item.ID
				if err := invoiceRepo.CreateItemTax(&item.Taxes[j]); err != nil {
					return err
				}
			}
		}
		for i := range inv.Payments {
			inv.Payments[i].InvoiceID = inv.ID
			if err := invoiceRepo.CreatePayment(&inv.Payments[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.log.Info().
		Str("invoice_id", inv.ID).
		Str("series", inv.Series).
		Int64("number", inv.Number).
		Str("total", inv.Total.StringFixed(2)).
		Msg("venda gravada como NFC-e pendente")
	return inv, nil
}

// allocateNumber reserva o próximo nNF da série sob lock. Série nunca usada é
// semeada a partir de SEFAZ_FIRST_NUMBER; sem configuração, erro.
func (uc *CreateInvoiceUseCase) allocateNumber(
	numberRepo repository.NumberControlRepository,
	in *SaleInput, series string, now time.Time,
) (int64, error) {
	control, err := numberRepo.GetForUpdate(in.ClientID, in.CompanyID, in.BranchID, series)
	if err != nil {
		return 0, err
	}
	if control == nil {
		if uc.cfg.FirstNumber <= 0 {
			return 0, fmt.Errorf("série %s: %w", series, domain.ErrNumberingNotSeeded)
		}
		control = &entity.NumberControl{
			ClientID:   in.ClientID,
			CompanyID:  in.CompanyID,
			BranchID:   in.BranchID,
			Series:     series,
			LastNumber: uc.cfg.FirstNumber - 1,
			UpdatedAt:  now,
		}
		if err := numberRepo.Create(control); err != nil {
			return 0, err
		}
	}

	next := control.LastNumber + 1
	if next > entity.MaxInvoiceNumber {
		return 0, fmt.Errorf("série %s: %w", series, domain.ErrNumberingExhausted)
	}
	control.LastNumber = next
	control.UpdatedAt = now
	if err := numberRepo.UpdateLastNumber(control); err != nil {
		return 0, err
	}
	return next, nil
}

func validateSale(in *SaleInput) error {
	if in == nil {
		return fmt.Errorf("venda vazia: %w", domain.ErrInvalidInput)
	}
	if in.ClientID == "" || in.CompanyID == "" || in.BranchID == "" {
		return fmt.Errorf("cliente, empresa e filial são obrigatórios: %w", domain.ErrInvalidInput)
	}
	if len(in.Items) == 0 {
		return fmt.Errorf("venda sem itens: %w", domain.ErrInvalidInput)
	}
	for i, item := range in.Items {
		if item.Quantity.LessThanOrEqual(decimal.Zero) {
			return fmt.Errorf("item %d com quantidade inválida: %w", i+1, domain.ErrInvalidInput)
		}
		if item.UnitPrice.IsNegative() || item.Discount.IsNegative() {
			return fmt.Errorf("item %d com valores negativos: %w", i+1, domain.ErrInvalidInput)
		}
		if item.NCM == "" {
			return fmt.Errorf("item %d sem NCM: %w", i+1, domain.ErrInvalidInput)
		}
	}
	for i, p := range in.Payments {
		if !pkgnfe.ValidPaymentCodes[p.TPag] {
			return fmt.Errorf("pagamento %d com tPag desconhecido %q: %w", i+1, p.TPag, domain.ErrInvalidInput)
		}
		if p.Amount.IsNegative() {
			return fmt.Errorf("pagamento %d com valor negativo: %w", i+1, domain.ErrInvalidInput)
		}
	}
	if in.CustomerCPF != "" {
		if err := pkgnfe.ValidateCPF(in.CustomerCPF); err != nil {
			return fmt.Errorf("CPF do consumidor: %w", err)
		}
	}
	return nil
}
