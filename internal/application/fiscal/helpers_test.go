package fiscal_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/inovapos/pdv-fiscal/internal/application/fiscal"
	"github.com/inovapos/pdv-fiscal/internal/domain"
	"github.com/inovapos/pdv-fiscal/internal/domain/entity"
	"github.com/inovapos/pdv-fiscal/internal/domain/repository"
	"github.com/inovapos/pdv-fiscal/internal/infrastructure/sefaz"
	"github.com/inovapos/pdv-fiscal/pkg/config"
	"github.com/inovapos/pdv-fiscal/pkg/logger"
)

// ── Fakes de persistência ─────────────────────────────────────────────────────

type fakeInvoiceRepo struct {
	seq      int
	invoices map[string]entity.Invoice
	items    map[string][]entity.InvoiceItem
	taxes    map[string][]entity.ItemTax
	payments map[string][]entity.Payment
}

var _ repository.InvoiceRepository = (*fakeInvoiceRepo)(nil)

func newFakeInvoiceRepo() *fakeInvoiceRepo {
	return &fakeInvoiceRepo{
		invoices: map[string]entity.Invoice{},
		items:    map[string][]entity.InvoiceItem{},
		taxes:    map[string][]entity.ItemTax{},
		payments: map[string][]entity.Payment{},
	}
}

func (f *fakeInvoiceRepo) Create(inv *entity.Invoice) error {
	if inv.ID == "" {
		f.seq++
		inv.ID = fmt.Sprintf("inv-%d", f.seq)
	}
	f.invoices[inv.ID] = *inv
	return nil
}

func (f *fakeInvoiceRepo) CreateItem(item *entity.InvoiceItem) error {
	if item.ID == "" {
		item.ID = fmt.Sprintf("item-%s-%d", item.InvoiceID, item.LineNo)
	}
	f.items[item.InvoiceID] = append(f.items[item.InvoiceID], *item)
	return nil
}

func (f *fakeInvoiceRepo) CreateItemTax(tax *entity.ItemTax) error {
	f.taxes[tax.ItemID] = append(f.taxes[tax.ItemID], *tax)
	return nil
}

func (f *fakeInvoiceRepo) CreatePayment(p *entity.Payment) error {
	f.payments[p.InvoiceID] = append(f.payments[p.InvoiceID], *p)
	return nil
}

func (f *fakeInvoiceRepo) UpdateFiscal(inv *entity.Invoice) error {
	if inv.ID == "" {
		return domain.ErrNotFound
	}
	f.invoices[inv.ID] = *inv
	return nil
}

func (f *fakeInvoiceRepo) GetByID(id string) (*entity.Invoice, error) {
	inv, ok := f.invoices[id]
	if !ok {
		return nil, nil
	}
	return &inv, nil
}

func (f *fakeInvoiceRepo) GetItemsByInvoiceID(invoiceID string) ([]*entity.InvoiceItem, error) {
	var out []*entity.InvoiceItem
	for i := range f.items[invoiceID] {
		it := f.items[invoiceID][i]
		out = append(out, &it)
	}
	return out, nil
}

func (f *fakeInvoiceRepo) ListContingencyPending(clientID string, limit int) ([]*entity.Invoice, error) {
	var out []*entity.Invoice
	for id := range f.invoices {
		inv := f.invoices[id]
		if inv.ClientID == clientID && inv.Status == entity.StatusNoSend && inv.Contingency {
			out = append(out, &inv)
		}
	}
	// Mais antigas primeiro, como o adaptador real.
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].IssuedAt.Before(out[i].IssuedAt) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeInvoiceRepo) DeleteCascade(id string, force bool) error {
	inv, ok := f.invoices[id]
	if !ok {
		return domain.ErrNotFound
	}
	if inv.Status == entity.StatusAuthorized && !force {
		return domain.ErrInvoiceAuthorized
	}
	delete(f.invoices, id)
	return nil
}

type fakeNumberRepo struct {
	controls map[string]*entity.NumberControl
}

var _ repository.NumberControlRepository = (*fakeNumberRepo)(nil)

func newFakeNumberRepo() *fakeNumberRepo {
	return &fakeNumberRepo{controls: map[string]*entity.NumberControl{}}
}

func controlKey(clientID, companyID, branchID, series string) string {
	return clientID + "|" + companyID + "|" + branchID + "|" + series
}

func (f *fakeNumberRepo) GetForUpdate(clientID, companyID, branchID, series string) (*entity.NumberControl, error) {
	nc, ok := f.controls[controlKey(clientID, companyID, branchID, series)]
	if !ok {
		return nil, nil
	}
	cp := *nc
	return &cp, nil
}

func (f *fakeNumberRepo) Create(control *entity.NumberControl) error {
	key := controlKey(control.ClientID, control.CompanyID, control.BranchID, control.Series)
	if _, ok := f.controls[key]; ok {
		return domain.ErrDuplicate
	}
	cp := *control
	f.controls[key] = &cp
	return nil
}

func (f *fakeNumberRepo) UpdateLastNumber(control *entity.NumberControl) error {
	key := controlKey(control.ClientID, control.CompanyID, control.BranchID, control.Series)
	if _, ok := f.controls[key]; !ok {
		return domain.ErrNotFound
	}
	cp := *control
	f.controls[key] = &cp
	return nil
}

type fakeTxRunner struct {
	invoiceRepo *fakeInvoiceRepo
	numberRepo  *fakeNumberRepo
}

var _ fiscal.TxRunner = (*fakeTxRunner)(nil)

func (f *fakeTxRunner) Run(ctx context.Context, fn func(
	invoiceRepo repository.InvoiceRepository,
	numberRepo repository.NumberControlRepository,
) error) error {
	return fn(f.invoiceRepo, f.numberRepo)
}

type fakeCompanyRepo struct{ company *entity.Company }

func (f *fakeCompanyRepo) GetByID(id string) (*entity.Company, error) {
	if f.company == nil || f.company.ID != id {
		return nil, nil
	}
	return f.company, nil
}

type fakeBranchRepo struct{ branch *entity.Branch }

func (f *fakeBranchRepo) GetByID(id string) (*entity.Branch, error) {
	if f.branch == nil || f.branch.ID != id {
		return nil, nil
	}
	return f.branch, nil
}

// ── Fake de regras de tributação ──────────────────────────────────────────────

const testNCM = "22021000"

type fakeRuleRepo struct{}

var _ repository.TaxRuleRepository = (*fakeRuleRepo)(nil)

func (fakeRuleRepo) FindIcmsSt(clientID, branchID, ncm string, issueDate time.Time) (*entity.IcmsStRule, error) {
	if ncm != testNCM {
		return nil, nil
	}
	return &entity.IcmsStRule{CST: "60", Rate: decimal.NewFromInt(18)}, nil
}

func (fakeRuleRepo) FindPis(clientID, ncm string, issueDate time.Time) (*entity.PisRule, error) {
	if ncm != testNCM {
		return nil, nil
	}
	return &entity.PisRule{CST: "01", Rate: decimal.RequireFromString("1.65")}, nil
}

func (fakeRuleRepo) FindCofins(clientID, ncm string, issueDate time.Time) (*entity.CofinsRule, error) {
	if ncm != testNCM {
		return nil, nil
	}
	return &entity.CofinsRule{CST: "01", Rate: decimal.RequireFromString("7.6")}, nil
}

func (fakeRuleRepo) FindCfop(clientID, invoiceType, country, originState, destState, materialType string) (*entity.CfopRule, error) {
	if invoiceType != "SAIDA_CONSUMIDOR" || country != "BR" {
		return nil, nil
	}
	return &entity.CfopRule{CFOP: "5102"}, nil
}

func (fakeRuleRepo) FindIbpt(ncm string) (*entity.IbptRate, error) {
	if ncm != testNCM {
		return nil, nil
	}
	return &entity.IbptRate{
		NCM:     ncm,
		Federal: decimal.NewFromInt(10), State: decimal.NewFromInt(5),
		Municipal: decimal.NewFromInt(1), Source: "IBPT",
	}, nil
}

// ── Fake do webservice da SEFAZ ───────────────────────────────────────────────

type submitOutcome struct {
	res *sefaz.AuthorizationResult
	err error
}

type fakeAuthorizer struct {
	submits   []submitOutcome
	submitted [][]byte

	status    *sefaz.StatusResult
	statusErr error
}

var _ sefaz.Authorizer = (*fakeAuthorizer)(nil)

func (f *fakeAuthorizer) Submit(ctx context.Context, signedNFe []byte) (*sefaz.AuthorizationResult, error) {
	f.submitted = append(f.submitted, signedNFe)
	if len(f.submits) == 0 {
		return nil, fmt.Errorf("fakeAuthorizer sem resultado programado")
	}
	next := f.submits[0]
	if len(f.submits) > 1 {
		f.submits = f.submits[1:]
	}
	return next.res, next.err
}

func (f *fakeAuthorizer) CheckStatus(ctx context.Context) (*sefaz.StatusResult, error) {
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	if f.status == nil {
		return &sefaz.StatusResult{Online: true, CStat: "107"}, nil
	}
	return f.status, nil
}

// ── Fixtures ──────────────────────────────────────────────────────────────────

func testConfig() config.SefazConfig {
	return config.SefazConfig{
		Environment:        "2",
		UFCode:             "35",
		CSC:                "CSC-SEGREDO-DE-TESTE",
		CSCTokenID:         "000001",
		Series:             "1",
		FirstNumber:        100,
		ContingencyEnabled: true,
		RespTecCNPJ:        "12277179000108",
		RespTecContact:     "Responsavel Tecnico",
		RespTecEmail:       "tecnico@empresa.com",
		RespTecPhone:       "11999999999",
	}
}

func testCompany() *entity.Company {
	return &entity.Company{
		ID:       "comp-1",
		ClientID: "cli-1",
		CNPJ:     "11.222.333/0001-81",
		Name:     "Mercado Teste LTDA",
		IE:       "123456789012",
		Regime:   "SimplesNacional",
	}
}

func testBranch() *entity.Branch {
	return &entity.Branch{
		ID:           "branch-1",
		CompanyID:    "comp-1",
		UFCode:       "35",
		CityCode:     "3550308",
		CityName:     "Sao Paulo",
		Street:       "Rua Teste",
		Number:       "100",
		District:     "Centro",
		ZipCode:      "01001-000",
		CountryState: "SP",
	}
}

func testSale() *fiscal.SaleInput {
	return &fiscal.SaleInput{
		ClientID:  "cli-1",
		CompanyID: "comp-1",
		BranchID:  "branch-1",
		Items: []fiscal.SaleItem{
			{
				ProductCode: "COCA350",
				Description: "Refrigerante lata 350ml",
				NCM:         testNCM,
				Unit:        "UN",
				Quantity:    decimal.NewFromInt(2),
				UnitPrice:   decimal.RequireFromString("4.50"),
			},
		},
		Payments: []fiscal.SalePayment{
			{TPag: "01", Amount: decimal.RequireFromString("10.62")},
		},
	}
}

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Env: "development", Level: "error"})
}

func testCertificate(t *testing.T) tls.Certificate {
	t.Helper()

	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "MERCADO TESTE:11222333000181"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &priv.PublicKey, priv)
	require.NoError(t, err)
	leaf, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: priv, Leaf: leaf}
}
