// Package nfe contém catálogos e validações alinhados ao Manual de Orientação
// ao Contribuinte da NF-e/NFC-e, layout 4.00.
package nfe

// =============================================================================
// Tabela de códigos IBGE das UF (Anexo I do MOC - campo cUF)
// =============================================================================

// ValidUFCodes códigos IBGE de UF válidos para o campo cUF.
var ValidUFCodes = map[string]bool{
	"11": true, "12": true, "13": true, "14": true, "15": true, "16": true,
	"17": true, "21": true, "22": true, "23": true, "24": true, "25": true,
	"26": true, "27": true, "28": true, "29": true, "31": true, "32": true,
	"33": true, "35": true, "41": true, "42": true, "43": true, "50": true,
	"51": true, "52": true, "53": true,
}

// UFAbbreviationByCode sigla da UF por código IBGE (campo UF dos endereços).
var UFAbbreviationByCode = map[string]string{
	"11": "RO", "12": "AC", "13": "AM", "14": "RR", "15": "PA", "16": "AP",
	"17": "TO", "21": "MA", "22": "PI", "23": "CE", "24": "RN", "25": "PB",
	"26": "PE", "27": "AL", "28": "SE", "29": "BA", "31": "MG", "32": "ES",
	"33": "RJ", "35": "SP", "41": "PR", "42": "SC", "43": "RS", "50": "MS",
	"51": "MT", "52": "GO", "53": "DF",
}

// =============================================================================
// Tabela de Meios de Pagamento (campo tPag)
// =============================================================================

const (
	PaymentCash          = "01" // Dinheiro
	PaymentCheck         = "02" // Cheque
	PaymentCreditCard    = "03" // Cartão de Crédito
	PaymentDebitCard     = "04" // Cartão de Débito
	PaymentStoreCredit   = "05" // Crédito Loja
	PaymentFoodVoucher   = "10" // Vale Alimentação
	PaymentMealVoucher   = "11" // Vale Refeição
	PaymentPix           = "17" // Pagamento Instantâneo (PIX)
	PaymentNoPayment     = "90" // Sem pagamento
	PaymentOther         = "99" // Outros (usado também no ajuste de arredondamento)
)

// ValidPaymentCodes códigos tPag aceitos pelo layout 4.00 em uso no PDV.
var ValidPaymentCodes = map[string]bool{
	PaymentCash: true, PaymentCheck: true, PaymentCreditCard: true,
	PaymentDebitCard: true, PaymentStoreCredit: true, PaymentFoodVoucher: true,
	PaymentMealVoucher: true, PaymentPix: true, PaymentNoPayment: true,
	PaymentOther: true,
}

// IsCardPayment indica se o tPag exige (opcionalmente) o grupo card.
func IsCardPayment(tPag string) bool {
	return tPag == PaymentCreditCard || tPag == PaymentDebitCard
}

// =============================================================================
// Regime tributário do emitente (campo CRT)
// =============================================================================

// TaxRegime regime tributário cadastrado para a empresa emitente.
type TaxRegime string

const (
	RegimeSimplesNacional        TaxRegime = "SimplesNacional"
	RegimeSimplesNacionalExcesso TaxRegime = "SimplesNacionalExcesso"
	RegimeNormal                 TaxRegime = "Normal"
)

// CRTByRegime mapeia o regime cadastral para o código CRT do XML.
var CRTByRegime = map[TaxRegime]string{
	RegimeSimplesNacional:        "1",
	RegimeSimplesNacionalExcesso: "2",
	RegimeNormal:                 "3",
}

// =============================================================================
// Tipo de emissão (campo tpEmis)
// =============================================================================

const (
	EmissionNormal      = "1" // Emissão normal
	EmissionContingency = "9" // Contingência off-line da NFC-e
)

// =============================================================================
// Ambiente (campo tpAmb)
// =============================================================================

const (
	EnvironmentProduction   = "1"
	EnvironmentHomologation = "2"
)

// =============================================================================
// Textos obrigatórios em homologação (regra de validação da SEFAZ)
// =============================================================================

const (
	HomologationRecipientName = "NF-E EMITIDA EM AMBIENTE DE HOMOLOGACAO - SEM VALOR FISCAL"
	HomologationProductName   = "NOTA FISCAL EMITIDA EM AMBIENTE DE HOMOLOGACAO - SEM VALOR FISCAL"
)
