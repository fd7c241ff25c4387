package nfe_test

import (
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	infranfe "github.com/inovapos/pdv-fiscal/internal/infrastructure/nfe"

	"github.com/inovapos/pdv-fiscal/internal/domain/entity"
)

const testAccessKey = "35231111222333000181650010000001231320890495"

func buildInput() *infranfe.BuildInput {
	return &infranfe.BuildInput{
		Invoice: &entity.Invoice{
			AccessKey:    testAccessKey,
			CustomerCPF:  "52998224725",
			CustomerName: "Cliente Teste",
			Items: []entity.InvoiceItem{
				{
					LineNo:      1,
					ProductCode: "COCA350",
					Description: "Refrigerante lata 350ml",
					NCM:         "2202.10.00",
					CFOP:        "5102",
					Unit:        "UN",
					Quantity:    decimal.NewFromInt(2),
					UnitPrice:   decimal.RequireFromString("4.50"),
					Total:       decimal.NewFromInt(9),
					Taxes: []entity.ItemTax{
						{TaxType: entity.TaxICMS, CST: "60", Base: decimal.NewFromInt(9), Rate: decimal.NewFromInt(18), Value: decimal.RequireFromString("1.62")},
						{TaxType: entity.TaxPIS, CST: "01", Base: decimal.NewFromInt(9), Rate: decimal.RequireFromString("1.65"), Value: decimal.RequireFromString("0.15")},
						{TaxType: entity.TaxCOFINS, CST: "01", Base: decimal.NewFromInt(9), Rate: decimal.RequireFromString("7.6"), Value: decimal.RequireFromString("0.68")},
					},
				},
			},
			Payments: []entity.Payment{
				{TPag: "01", Amount: decimal.NewFromInt(9)},
			},
		},
		Company: &entity.Company{
			CNPJ:   "11.222.333/0001-81",
			Name:   "Mercado Teste LTDA",
			IE:     "123456789012",
			Regime: "SimplesNacional",
		},
		Branch: &entity.Branch{
			UFCode:       "35",
			CityCode:     "3550308",
			CityName:     "Sao Paulo",
			Street:       "Rua Teste",
			Number:       "100",
			District:     "Centro",
			ZipCode:      "01001-000",
			CountryState: "SP",
		},
		Environment: "2",
		DhEmi:       "2023-11-29T14:30:00-03:00",
		InfCpl:      "Tributos aproximados (Lei 12.741/2012): R$ 2,45 (Federal: R$ 1,50; Estadual: R$ 0,90; Municipal: R$ 0,05). Fonte: IBPT.",
		RespTec: infranfe.RespTec{
			CNPJ:    "12277179000108",
			Contact: "Responsavel Tecnico",
			Email:   "tecnico@empresa.com",
			Phone:   "11999999999",
		},
	}
}

func mustBuild(t *testing.T, in *infranfe.BuildInput) *etree.Document {
	t.Helper()
	doc, err := infranfe.NewBuilder().Build(in)
	require.NoError(t, err)
	return doc
}

// Sem sigla cadastrada na filial, o campo UF do enderEmit sai da tabela IBGE.
func TestBuild_UFDerivadaDoCodigoIBGE(t *testing.T) {
	in := buildInput()
	in.Branch.CountryState = ""

	doc := mustBuild(t, in)
	assert.Equal(t, "SP", doc.FindElement("//enderEmit/UF").Text())
}

func elText(t *testing.T, doc *etree.Document, path string) string {
	t.Helper()
	el := doc.FindElement(path)
	require.NotNil(t, el, "elemento %s deve existir", path)
	return el.Text()
}

func TestBuild_EstruturaEOrdemDosGrupos(t *testing.T) {
	doc := mustBuild(t, buildInput())

	root := doc.SelectElement("NFe")
	require.NotNil(t, root)
	assert.Equal(t, "http://www.portalfiscal.inf.br/nfe", root.SelectAttrValue("xmlns", ""))

	infNFe := root.SelectElement("infNFe")
	require.NotNil(t, infNFe)
	assert.Equal(t, "NFe"+testAccessKey, infNFe.SelectAttrValue("Id", ""))
	assert.Equal(t, "4.00", infNFe.SelectAttrValue("versao", ""))

	var order []string
	for _, child := range infNFe.ChildElements() {
		order = append(order, child.Tag)
	}
	assert.Equal(t,
		[]string{"ide", "emit", "dest", "det", "total", "transp", "pag", "infAdic", "infRespTec"},
		order, "os grupos do infNFe devem sair na ordem estrita do leiaute")
}

func TestBuild_IdeDerivadoDaChave(t *testing.T) {
	doc := mustBuild(t, buildInput())

	assert.Equal(t, "35", elText(t, doc, "//ide/cUF"))
	assert.Equal(t, "32089049", elText(t, doc, "//ide/cNF"))
	assert.Equal(t, "65", elText(t, doc, "//ide/mod"))
	assert.Equal(t, "1", elText(t, doc, "//ide/serie"), "série sem zeros à esquerda")
	assert.Equal(t, "123", elText(t, doc, "//ide/nNF"), "nNF sem zeros à esquerda")
	assert.Equal(t, "1", elText(t, doc, "//ide/tpEmis"))
	assert.Equal(t, "5", elText(t, doc, "//ide/cDV"))
	assert.Equal(t, "2", elText(t, doc, "//ide/tpAmb"))
	assert.Equal(t, "4", elText(t, doc, "//ide/tpImp"), "DANFE NFC-e")
	assert.Equal(t, "3550308", elText(t, doc, "//ide/cMunFG"))
	assert.Equal(t, "2023-11-29T14:30:00-03:00", elText(t, doc, "//ide/dhEmi"))
}

func TestBuild_EmitComCRT(t *testing.T) {
	doc := mustBuild(t, buildInput())

	assert.Equal(t, "11222333000181", elText(t, doc, "//emit/CNPJ"))
	assert.Equal(t, "1", elText(t, doc, "//emit/CRT"), "SimplesNacional mapeia para CRT 1")
	assert.Equal(t, "01001000", elText(t, doc, "//emit/enderEmit/CEP"), "CEP sem pontuação")
	assert.Equal(t, "1058", elText(t, doc, "//emit/enderEmit/cPais"))
}

func TestBuild_ErroRegimeInvalido(t *testing.T) {
	in := buildInput()
	in.Company.Regime = "Lucro Imaginario"
	_, err := infranfe.NewBuilder().Build(in)
	assert.Error(t, err)
}

func TestBuild_DestHomologacaoUsaTextoObrigatorio(t *testing.T) {
	doc := mustBuild(t, buildInput())

	assert.Equal(t, "52998224725", elText(t, doc, "//dest/CPF"))
	assert.Equal(t, "NF-E EMITIDA EM AMBIENTE DE HOMOLOGACAO - SEM VALOR FISCAL",
		elText(t, doc, "//dest/xNome"))
	assert.Equal(t, "9", elText(t, doc, "//dest/indIEDest"))
}

func TestBuild_DestProducaoUsaNomeDoCliente(t *testing.T) {
	in := buildInput()
	in.Environment = "1"
	doc := mustBuild(t, in)

	assert.Equal(t, "Cliente Teste", elText(t, doc, "//dest/xNome"))
}

func TestBuild_DestCNPJPorHeuristicaDe14Digitos(t *testing.T) {
	in := buildInput()
	in.Invoice.CustomerCPF = "11.222.333/0001-81"
	doc := mustBuild(t, in)

	assert.Equal(t, "11222333000181", elText(t, doc, "//dest/CNPJ"))
	assert.Nil(t, doc.FindElement("//dest/CPF"))
}

func TestBuild_SemDocumentoNaoTemDest(t *testing.T) {
	in := buildInput()
	in.Invoice.CustomerCPF = ""
	doc := mustBuild(t, in)

	assert.Nil(t, doc.FindElement("//dest"))
}

func TestBuild_ErroDocumentoComTamanhoInvalido(t *testing.T) {
	in := buildInput()
	in.Invoice.CustomerCPF = "12345"
	_, err := infranfe.NewBuilder().Build(in)
	assert.Error(t, err)
}

func TestBuild_ItemFormatosDecimais(t *testing.T) {
	doc := mustBuild(t, buildInput())

	assert.Equal(t, "4.5000000000", elText(t, doc, "//det/prod/vUnCom"), "vUnCom com 10 casas")
	assert.Equal(t, "4.50", elText(t, doc, "//det/prod/vUnTrib"), "vUnTrib com 2 casas")
	assert.Equal(t, "9.00", elText(t, doc, "//det/prod/vProd"))
	assert.Equal(t, "SEM GTIN", elText(t, doc, "//det/prod/cEAN"))
	assert.Equal(t, "22021000", elText(t, doc, "//det/prod/NCM"), "NCM sem pontos")
	assert.Equal(t, "NOTA FISCAL EMITIDA EM AMBIENTE DE HOMOLOGACAO - SEM VALOR FISCAL",
		elText(t, doc, "//det/prod/xProd"))
}

func TestBuild_GrupoICMSPorCST(t *testing.T) {
	doc := mustBuild(t, buildInput())

	assert.NotNil(t, doc.FindElement("//det/imposto/ICMS/ICMS60"))
	assert.Equal(t, "60", elText(t, doc, "//det/imposto/ICMS/ICMS60/CST"))
	assert.Equal(t, "0", elText(t, doc, "//det/imposto/ICMS/ICMS60/orig"))
}

func TestBuild_PisCofinsVarianteFechada(t *testing.T) {
	in := buildInput()
	doc := mustBuild(t, in)

	// CST 01 vai no grupo Aliq
	assert.NotNil(t, doc.FindElement("//det/imposto/PIS/PISAliq"))
	assert.Equal(t, "1.6500", elText(t, doc, "//det/imposto/PIS/PISAliq/pPIS"), "alíquota com 4 casas")
	assert.NotNil(t, doc.FindElement("//det/imposto/COFINS/COFINSAliq"))

	// CST 99 vai no grupo Outr
	for i := range in.Invoice.Items[0].Taxes {
		tax := &in.Invoice.Items[0].Taxes[i]
		if tax.TaxType == entity.TaxPIS {
			tax.CST = "99"
		}
	}
	doc = mustBuild(t, in)
	assert.NotNil(t, doc.FindElement("//det/imposto/PIS/PISOutr"))
	assert.Nil(t, doc.FindElement("//det/imposto/PIS/PISAliq"))
}

func TestBuild_TotaisICMSTot(t *testing.T) {
	doc := mustBuild(t, buildInput())

	assert.Equal(t, "9.00", elText(t, doc, "//total/ICMSTot/vProd"))
	assert.Equal(t, "9.00", elText(t, doc, "//total/ICMSTot/vBCST"))
	assert.Equal(t, "1.62", elText(t, doc, "//total/ICMSTot/vST"))
	assert.Equal(t, "0.15", elText(t, doc, "//total/ICMSTot/vPIS"))
	assert.Equal(t, "0.68", elText(t, doc, "//total/ICMSTot/vCOFINS"))
	// vNF = vProd − vDesc + vST + vFrete + vSeg + vOutro = 9 − 0 + 1.62
	assert.Equal(t, "10.62", elText(t, doc, "//total/ICMSTot/vNF"))
	assert.Equal(t, "0.00", elText(t, doc, "//total/ICMSTot/vICMS"))
}

func TestBuild_TranspSemFrete(t *testing.T) {
	doc := mustBuild(t, buildInput())
	assert.Equal(t, "9", elText(t, doc, "//transp/modFrete"))
}

func TestBuild_PagamentoSimples(t *testing.T) {
	doc := mustBuild(t, buildInput())

	assert.Equal(t, "01", elText(t, doc, "//pag/detPag/tPag"))
	assert.Equal(t, "9.00", elText(t, doc, "//pag/detPag/vPag"))
	assert.Nil(t, doc.FindElement("//pag/detPag/card"))
}

// TestBuild_AjusteDeArredondamento pagamentos que não fecham com o total
// geram um detPag de ajuste com tPag 99 e a diferença.
func TestBuild_AjusteDeArredondamento(t *testing.T) {
	in := buildInput()
	in.Invoice.Payments = []entity.Payment{
		{TPag: "01", Amount: decimal.RequireFromString("8.50")},
	}
	doc := mustBuild(t, in)

	pags := doc.FindElements("//pag/detPag")
	require.Len(t, pags, 2)
	assert.Equal(t, "99", pags[1].SelectElement("tPag").Text())
	assert.Equal(t, "0.50", pags[1].SelectElement("vPag").Text())
}

// TestBuild_FallbackDinheiro sem pagamentos válidos o total inteiro sai
// como dinheiro.
func TestBuild_FallbackDinheiro(t *testing.T) {
	in := buildInput()
	in.Invoice.Payments = nil
	doc := mustBuild(t, in)

	pags := doc.FindElements("//pag/detPag")
	require.Len(t, pags, 1)
	assert.Equal(t, "01", pags[0].SelectElement("tPag").Text())
	assert.Equal(t, "9.00", pags[0].SelectElement("vPag").Text())
}

func TestBuild_CartaoComGrupoCard(t *testing.T) {
	in := buildInput()
	in.Invoice.Payments = []entity.Payment{
		{TPag: "03", Amount: decimal.NewFromInt(9), Installments: 3, IssuerCNPJ: "01027058000191", AuthCode: "A1B2C3"},
	}
	doc := mustBuild(t, in)

	card := doc.FindElement("//pag/detPag/card")
	require.NotNil(t, card)
	assert.Equal(t, "2", card.SelectElement("tpIntegra").Text(), "parcelado")
	assert.Equal(t, "01027058000191", card.SelectElement("CNPJ").Text())
	assert.Equal(t, "99", card.SelectElement("tBand").Text())
	assert.Equal(t, "A1B2C3", card.SelectElement("cAut").Text())
}

func TestBuild_InfRespTec(t *testing.T) {
	doc := mustBuild(t, buildInput())

	assert.Equal(t, "12277179000108", elText(t, doc, "//infRespTec/CNPJ"))
	assert.Equal(t, "tecnico@empresa.com", elText(t, doc, "//infRespTec/email"))
}

func TestBuild_InfAdicOpcional(t *testing.T) {
	in := buildInput()
	in.InfCpl = ""
	doc := mustBuild(t, in)
	assert.Nil(t, doc.FindElement("//infAdic"))
}

func TestBuild_ErroChaveInvalida(t *testing.T) {
	in := buildInput()
	in.Invoice.AccessKey = "123"
	_, err := infranfe.NewBuilder().Build(in)
	assert.Error(t, err)
}

// ── contingência ──────────────────────────────────────────────────────────────

func TestRewriteForContingency(t *testing.T) {
	doc := mustBuild(t, buildInput())
	xmlBytes, err := doc.WriteToBytes()
	require.NoError(t, err)

	dhCont := time.Date(2023, 11, 29, 15, 0, 0, 0, time.FixedZone("-03", -3*3600))
	out, err := infranfe.RewriteForContingency(xmlBytes, dhCont, "Queda do link do PDV")
	require.NoError(t, err)

	rewritten := etree.NewDocument()
	require.NoError(t, rewritten.ReadFromBytes(out))

	assert.Equal(t, "9", rewritten.FindElement("//ide/tpEmis").Text(), "tpEmis reescrito para 9")
	assert.Equal(t, "2023-11-29T15:00:00-03:00", rewritten.FindElement("//ide/dhCont").Text())
	assert.Equal(t, "Queda do link do PDV", rewritten.FindElement("//ide/xJust").Text())

	// Idempotência: reescrever de novo não duplica elementos.
	out2, err := infranfe.RewriteForContingency(out, dhCont, "")
	require.NoError(t, err)
	again := etree.NewDocument()
	require.NoError(t, again.ReadFromBytes(out2))
	assert.Len(t, again.FindElements("//ide/tpEmis"), 1)
	assert.Len(t, again.FindElements("//ide/dhCont"), 1)
	assert.Equal(t, infranfe.DefaultContingencyReason, again.FindElement("//ide/xJust").Text(),
		"justificativa vazia usa o texto padrão")
}

func TestRewriteForContingency_ErroSemIde(t *testing.T) {
	_, err := infranfe.RewriteForContingency([]byte("<outro/>"), time.Now(), "x")
	assert.Error(t, err)

	_, err = infranfe.RewriteForContingency([]byte("não é xml <"), time.Now(), "x")
	assert.Error(t, err)
}
