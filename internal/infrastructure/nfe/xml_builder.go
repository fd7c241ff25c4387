package nfe

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"

	"github.com/inovapos/pdv-fiscal/internal/domain/entity"
	pkgnfe "github.com/inovapos/pdv-fiscal/pkg/nfe"
)

// paymentTolerance diferença máxima tolerada entre pagamentos e total da
// nota antes de emitir o detPag de ajuste (tPag 99).
var paymentTolerance = decimal.RequireFromString("0.01")

// Builder monta o XML da NFC-e na ordem estrita do leiaute:
// ide, emit, dest, det*, total, transp, pag, infAdic, infRespTec.
type Builder struct{}

// NewBuilder cria o construtor de XML.
func NewBuilder() *Builder {
	return &Builder{}
}

// Build devolve o documento <NFe><infNFe Id="NFe{chave}" versao="4.00">...
// ainda sem assinatura e sem infNFeSupl.
func (b *Builder) Build(in *BuildInput) (*etree.Document, error) {
	if in == nil || in.Invoice == nil || in.Company == nil || in.Branch == nil {
		return nil, fmt.Errorf("nfe: BuildInput incompleto")
	}
	inv := in.Invoice
	if len(inv.AccessKey) != 44 {
		return nil, fmt.Errorf("nfe: chave de acesso inválida: %q", inv.AccessKey)
	}

	doc := etree.NewDocument()
	root := doc.CreateElement("NFe")
	root.CreateAttr("xmlns", NFeNamespace)

	infNFe := root.CreateElement("infNFe")
	infNFe.CreateAttr("versao", LayoutVersion)
	infNFe.CreateAttr("Id", "NFe"+inv.AccessKey)

	w := &xmlWriter{}
	b.addIde(w, infNFe, in)
	if err := b.addEmit(w, infNFe, in); err != nil {
		return nil, err
	}
	b.addDest(w, infNFe, in)
	b.addItems(w, infNFe, in)
	b.addTotal(w, infNFe, inv)
	b.addTransp(w, infNFe)
	b.addPag(w, infNFe, inv)
	b.addInfAdic(w, infNFe, in)
	b.addInfRespTec(w, infNFe, in)

	if w.err != nil {
		return nil, w.err
	}
	return doc, nil
}

// ── grupos do infNFe ──────────────────────────────────────────────────────────

func (b *Builder) addIde(w *xmlWriter, infNFe *etree.Element, in *BuildInput) {
	key := in.Invoice.AccessKey
	ide := infNFe.CreateElement("ide")

	// Campos derivados das posições fixas da chave de acesso.
	elements := []struct{ name, value string }{
		{"cUF", key[0:2]},
		{"cNF", key[35:43]},
		{"natOp", "VENDA AO CONSUMIDOR"},
		{"mod", key[20:22]},
		{"serie", strings.TrimLeft(key[22:25], "0")},
		{"nNF", strings.TrimLeft(key[25:34], "0")},
		{"dhEmi", in.DhEmi},
		{"tpNF", "1"},
		{"idDest", "1"},
		{"cMunFG", in.Branch.CityCode},
		{"tpImp", "4"},
		{"tpEmis", key[34:35]},
		{"cDV", key[43:44]},
		{"tpAmb", in.Environment},
		{"finNFe", "1"},
		{"indFinal", "1"},
		{"indPres", "1"},
		{"procEmi", "0"},
		{"verProc", "1.0"},
	}
	for _, e := range elements {
		w.child(ide, e.name, e.value)
	}
}

func (b *Builder) addEmit(w *xmlWriter, infNFe *etree.Element, in *BuildInput) error {
	crt, ok := pkgnfe.CRTByRegime[pkgnfe.TaxRegime(in.Company.Regime)]
	if !ok {
		return fmt.Errorf("nfe: regime tributário inválido: %q", in.Company.Regime)
	}

	emit := infNFe.CreateElement("emit")
	w.child(emit, "CNPJ", pkgnfe.OnlyDigits(in.Company.CNPJ))
	w.child(emit, "xNome", in.Company.Name)

	if in.Branch.CityCode != "" {
		// A sigla cadastrada tem prioridade; sem ela, deriva do código IBGE.
		uf := in.Branch.CountryState
		if uf == "" {
			uf = pkgnfe.UFAbbreviationByCode[in.Branch.UFCode]
		}

		ender := emit.CreateElement("enderEmit")
		w.child(ender, "xLgr", in.Branch.Street)
		w.child(ender, "nro", in.Branch.Number)
		w.child(ender, "xBairro", in.Branch.District)
		w.child(ender, "cMun", in.Branch.CityCode)
		w.child(ender, "xMun", in.Branch.CityName)
		w.child(ender, "UF", uf)
		w.child(ender, "CEP", pkgnfe.OnlyDigits(in.Branch.ZipCode))
		w.child(ender, "cPais", "1058")
		w.child(ender, "xPais", "BRASIL")
	}

	w.child(emit, "IE", in.Company.IE)
	w.child(emit, "CRT", crt)
	return nil
}

// addDest identifica o consumidor pelo documento: 11 dígitos CPF, 14 CNPJ.
// Sem documento não há grupo dest (NFC-e permite consumidor não identificado).
// Em homologação o nome é substituído pelo texto obrigatório da SEFAZ.
func (b *Builder) addDest(w *xmlWriter, infNFe *etree.Element, in *BuildInput) {
	doc := pkgnfe.OnlyDigits(in.Invoice.CustomerCPF)
	if doc == "" {
		return
	}

	dest := infNFe.CreateElement("dest")
	switch len(doc) {
	case 11:
		w.child(dest, "CPF", doc)
	case 14:
		w.child(dest, "CNPJ", doc)
	default:
		w.fail(fmt.Errorf("nfe: documento do consumidor deve ter 11 ou 14 dígitos, foram encontrados %d", len(doc)))
		return
	}

	if in.Environment == pkgnfe.EnvironmentHomologation {
		w.child(dest, "xNome", pkgnfe.HomologationRecipientName)
	} else {
		name := in.Invoice.CustomerName
		if strings.TrimSpace(name) == "" {
			name = "CONSUMIDOR"
		}
		w.child(dest, "xNome", name)
	}
	w.child(dest, "indIEDest", "9")
}

func (b *Builder) addItems(w *xmlWriter, infNFe *etree.Element, in *BuildInput) {
	for i := range in.Invoice.Items {
		item := &in.Invoice.Items[i]

		det := infNFe.CreateElement("det")
		det.CreateAttr("nItem", fmt.Sprintf("%d", item.LineNo))

		prod := det.CreateElement("prod")
		w.child(prod, "cProd", item.ProductCode)
		w.child(prod, "cEAN", eanOrDefault(item.EAN))

		desc := item.Description
		if in.Environment == pkgnfe.EnvironmentHomologation {
			desc = pkgnfe.HomologationProductName
		}
		w.child(prod, "xProd", desc)

		w.child(prod, "NCM", strings.ReplaceAll(item.NCM, ".", ""))
		w.child(prod, "CFOP", item.CFOP)
		w.child(prod, "uCom", item.Unit)
		w.child(prod, "qCom", item.Quantity.String())
		w.child(prod, "vUnCom", item.UnitPrice.StringFixed(10))
		w.child(prod, "vProd", fmt2(item.UnitPrice.Mul(item.Quantity)))
		w.child(prod, "cEANTrib", eanOrDefault(item.EAN))
		w.child(prod, "uTrib", item.Unit)
		w.child(prod, "qTrib", item.Quantity.String())
		w.child(prod, "vUnTrib", fmt2(item.UnitPrice))
		if item.Discount.IsPositive() {
			w.child(prod, "vDesc", fmt2(item.Discount))
		}
		w.child(prod, "indTot", "1")

		b.addImposto(w, det, item)
	}
}

func (b *Builder) addImposto(w *xmlWriter, det *etree.Element, item *entity.InvoiceItem) {
	imposto := det.CreateElement("imposto")

	icmsTax := findTax(item, entity.TaxICMS)
	icms := imposto.CreateElement("ICMS")
	icmsGroup := icms.CreateElement("ICMS" + cstOrDefault(icmsTax, "40"))
	w.child(icmsGroup, "orig", "0")
	w.child(icmsGroup, "CST", cstOrDefault(icmsTax, "40"))

	b.addPisCofins(w, imposto, "PIS", findTax(item, entity.TaxPIS))
	b.addPisCofins(w, imposto, "COFINS", findTax(item, entity.TaxCOFINS))
}

// pisCofinsVariant grupo do leiaute para PIS/COFINS conforme o CST.
type pisCofinsVariant int

const (
	variantAliquot pisCofinsVariant = iota // PISAliq/COFINSAliq (CST 01, 02)
	variantOther                           // PISOutr/COFINSOutr (demais CST)
)

func variantForCST(cst string) pisCofinsVariant {
	switch cst {
	case "01", "02":
		return variantAliquot
	default:
		return variantOther
	}
}

func (b *Builder) addPisCofins(w *xmlWriter, imposto *etree.Element, tag string, tax *entity.ItemTax) {
	group := imposto.CreateElement(tag)

	cst := cstOrDefault(tax, "01")
	var el *etree.Element
	switch variantForCST(cst) {
	case variantAliquot:
		el = group.CreateElement(tag + "Aliq")
	default:
		el = group.CreateElement(tag + "Outr")
	}

	w.child(el, "CST", cst)
	if tax != nil {
		w.child(el, "vBC", fmt2(tax.Base))
		w.child(el, "p"+tag, tax.Rate.StringFixed(4))
		w.child(el, "v"+tag, fmt2(tax.Value))
	}
}

func (b *Builder) addTotal(w *xmlWriter, infNFe *etree.Element, inv *entity.Invoice) {
	var vBCST, vST, vProd, vDesc, vPIS, vCOFINS decimal.Decimal

	for i := range inv.Items {
		item := &inv.Items[i]
		vProd = vProd.Add(item.UnitPrice.Mul(item.Quantity))
		vDesc = vDesc.Add(item.Discount)

		for j := range item.Taxes {
			tax := &item.Taxes[j]
			switch tax.TaxType {
			case entity.TaxICMS:
				vBCST = vBCST.Add(tax.Base)
				vST = vST.Add(tax.Value)
			case entity.TaxPIS:
				vPIS = vPIS.Add(tax.Value)
			case entity.TaxCOFINS:
				vCOFINS = vCOFINS.Add(tax.Value)
			}
		}
	}

	vFrete := inv.TotalFreight
	vOutro := inv.TotalOther
	vSeg := decimal.Zero
	vNF := vProd.Sub(vDesc).Add(vST).Add(vFrete).Add(vSeg).Add(vOutro)

	total := infNFe.CreateElement("total")
	icmsTot := total.CreateElement("ICMSTot")

	zero := fmt2(decimal.Zero)
	elements := []struct{ name, value string }{
		{"vBC", zero},
		{"vICMS", zero},
		{"vICMSDeson", zero},
		{"vFCP", zero},
		{"vBCST", fmt2(vBCST)},
		{"vST", fmt2(vST)},
		{"vFCPST", zero},
		{"vFCPSTRet", zero},
		{"vProd", fmt2(vProd)},
		{"vFrete", fmt2(vFrete)},
		{"vSeg", fmt2(vSeg)},
		{"vDesc", fmt2(vDesc)},
		{"vII", zero},
		{"vIPI", zero},
		{"vIPIDevol", zero},
		{"vPIS", fmt2(vPIS)},
		{"vCOFINS", fmt2(vCOFINS)},
		{"vOutro", fmt2(vOutro)},
		{"vNF", fmt2(vNF)},
		{"vTotTrib", zero},
	}
	for _, e := range elements {
		w.child(icmsTot, e.name, e.value)
	}
}

func (b *Builder) addTransp(w *xmlWriter, infNFe *etree.Element) {
	transp := infNFe.CreateElement("transp")
	// 9 = sem ocorrência de transporte (venda presencial)
	w.child(transp, "modFrete", "9")
}

// addPag emite um detPag por pagamento. Diferença de arredondamento acima
// da tolerância vira um detPag extra com tPag 99; sem pagamentos válidos o
// total sai como dinheiro (tPag 01).
func (b *Builder) addPag(w *xmlWriter, infNFe *etree.Element, inv *entity.Invoice) {
	pag := infNFe.CreateElement("pag")

	var total decimal.Decimal
	for i := range inv.Items {
		item := &inv.Items[i]
		total = total.Add(item.UnitPrice.Mul(item.Quantity)).Sub(item.Discount)
	}

	var paymentsSum decimal.Decimal
	hasValid := false
	for i := range inv.Payments {
		p := &inv.Payments[i]
		if !p.Amount.IsPositive() {
			continue
		}
		hasValid = true

		detPag := pag.CreateElement("detPag")
		w.child(detPag, "tPag", p.TPag)
		w.child(detPag, "vPag", fmt2(p.Amount))

		if pkgnfe.IsCardPayment(p.TPag) && p.HasCardDetail() {
			card := detPag.CreateElement("card")
			if p.Installments > 1 {
				w.child(card, "tpIntegra", "2")
			} else {
				w.child(card, "tpIntegra", "1")
			}
			if p.IssuerCNPJ != "" {
				w.child(card, "CNPJ", pkgnfe.OnlyDigits(p.IssuerCNPJ))
			}
			if p.AuthCode != "" {
				w.child(card, "tBand", "99")
				w.child(card, "cAut", p.AuthCode)
			}
		}

		paymentsSum = paymentsSum.Add(p.Amount)
	}

	if !hasValid {
		detPag := pag.CreateElement("detPag")
		w.child(detPag, "tPag", pkgnfe.PaymentCash)
		w.child(detPag, "vPag", fmt2(total))
		return
	}

	if paymentsSum.Sub(total).Abs().GreaterThan(paymentTolerance) {
		diff := total.Sub(paymentsSum)
		ajuste := pag.CreateElement("detPag")
		w.child(ajuste, "tPag", pkgnfe.PaymentOther)
		w.child(ajuste, "vPag", fmt2(diff))
	}
}

func (b *Builder) addInfAdic(w *xmlWriter, infNFe *etree.Element, in *BuildInput) {
	if in.InfCpl == "" {
		return
	}
	infAdic := infNFe.CreateElement("infAdic")
	w.child(infAdic, "infCpl", in.InfCpl)
}

func (b *Builder) addInfRespTec(w *xmlWriter, infNFe *etree.Element, in *BuildInput) {
	if in.RespTec.CNPJ == "" {
		return
	}
	respTec := infNFe.CreateElement("infRespTec")
	w.child(respTec, "CNPJ", pkgnfe.OnlyDigits(in.RespTec.CNPJ))
	w.child(respTec, "xContato", in.RespTec.Contact)
	w.child(respTec, "email", in.RespTec.Email)
	w.child(respTec, "fone", pkgnfe.OnlyDigits(in.RespTec.Phone))
}

// ── helpers ───────────────────────────────────────────────────────────────────

// xmlWriter acumula o primeiro erro de criação de elemento.
type xmlWriter struct {
	err error
}

// child cria um elemento filho com texto, validando o nome.
func (w *xmlWriter) child(parent *etree.Element, name, value string) {
	if w.err != nil {
		return
	}
	if err := validateElementName(name); err != nil {
		w.err = err
		return
	}
	parent.CreateElement(name).SetText(value)
}

func (w *xmlWriter) fail(err error) {
	if w.err == nil {
		w.err = err
	}
}

// validateElementName nome deve começar com letra ou underline e não pode
// conter espaços.
func validateElementName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("nfe: nome de elemento XML não pode ser vazio")
	}
	first := rune(name[0])
	if !unicode.IsLetter(first) && first != '_' {
		return fmt.Errorf("nfe: nome de elemento XML %q deve começar com letra ou underline", name)
	}
	if strings.ContainsAny(name, " \t\n\r") {
		return fmt.Errorf("nfe: nome de elemento XML %q não pode conter espaços", name)
	}
	return nil
}

func fmt2(d decimal.Decimal) string {
	return d.Round(2).StringFixed(2)
}

func eanOrDefault(ean string) string {
	if strings.TrimSpace(ean) == "" {
		return "SEM GTIN"
	}
	return ean
}

func cstOrDefault(tax *entity.ItemTax, def string) string {
	if tax == nil || tax.CST == "" {
		return def
	}
	return tax.CST
}

func findTax(item *entity.InvoiceItem, taxType string) *entity.ItemTax {
	for i := range item.Taxes {
		if item.Taxes[i].TaxType == taxType {
			return &item.Taxes[i]
		}
	}
	return nil
}
