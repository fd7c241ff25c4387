package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/inovapos/pdv-fiscal/internal/domain/entity"
)

// CreateSaleRequest venda recebida do caixa para emissão de NFC-e.
type CreateSaleRequest struct {
	ClientID  string `json:"client_id"`
	CompanyID string `json:"company_id"`
	BranchID  string `json:"branch_id"`
	Series    string `json:"series,omitempty"`

	CustomerCPF  string `json:"customer_cpf,omitempty"`
	CustomerName string `json:"customer_name,omitempty"`

	Items    []SaleItemRequest    `json:"items"`
	Payments []SalePaymentRequest `json:"payments"`
}

// SaleItemRequest linha de produto da venda.
type SaleItemRequest struct {
	ProductCode  string `json:"product_code"`
	Description  string `json:"description"`
	EAN          string `json:"ean,omitempty"`
	NCM          string `json:"ncm"`
	Unit         string `json:"unit"`
	MaterialType string `json:"material_type,omitempty"`

	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Discount  decimal.Decimal `json:"discount"`
}

// SalePaymentRequest pagamento informado na venda.
type SalePaymentRequest struct {
	TPag         string          `json:"tpag"`
	Amount       decimal.Decimal `json:"amount"`
	Installments int             `json:"installments,omitempty"`
	IssuerCNPJ   string          `json:"issuer_cnpj,omitempty"`
	AuthCode     string          `json:"auth_code,omitempty"`
}

// InvoiceResponse estado fiscal da nota devolvido ao caixa.
type InvoiceResponse struct {
	ID        string `json:"id"`
	Series    string `json:"series"`
	Number    int64  `json:"number"`
	AccessKey string `json:"access_key,omitempty"`

	Status  string `json:"status"`
	CStat   string `json:"cstat,omitempty"`
	XMotivo string `json:"xmotivo,omitempty"`

	Protocol     string     `json:"protocol,omitempty"`
	AuthorizedAt *time.Time `json:"authorized_at,omitempty"`

	Contingency       bool   `json:"contingency"`
	ContingencyReason string `json:"contingency_reason,omitempty"`

	Total    decimal.Decimal `json:"total"`
	IssuedAt time.Time       `json:"issued_at"`

	QRCode    string `json:"qr_code,omitempty"`
	URLChave  string `json:"url_chave,omitempty"`
	XMLBase64 string `json:"xml_base64,omitempty"`

	Items []InvoiceItemResponse `json:"items,omitempty"`
}

// InvoiceItemResponse linha da nota.
type InvoiceItemResponse struct {
	LineNo      int             `json:"line_no"`
	ProductCode string          `json:"product_code"`
	Description string          `json:"description"`
	NCM         string          `json:"ncm"`
	CFOP        string          `json:"cfop"`
	Unit        string          `json:"unit"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Discount    decimal.Decimal `json:"discount"`
	Total       decimal.Decimal `json:"total"`
}

// FlushResponse resumo de uma rodada de retransmissão de contingência.
type FlushResponse struct {
	ServiceOnline bool `json:"service_online"`
	Processed     int  `json:"processed"`
	Authorized    int  `json:"authorized"`
	Duplicates    int  `json:"duplicates"`
	Rejected      int  `json:"rejected"`
	Interrupted   bool `json:"interrupted"`
}

// SefazStatusResponse resultado da consulta de status do serviço.
type SefazStatusResponse struct {
	Online  bool   `json:"online"`
	CStat   string `json:"cstat"`
	XMotivo string `json:"xmotivo"`
}

// InvoiceToResponse converte a entidade para o DTO de resposta.
func InvoiceToResponse(inv *entity.Invoice, withXML bool) InvoiceResponse {
	resp := InvoiceResponse{
		ID:                inv.ID,
		Series:            inv.Series,
		Number:            inv.Number,
		AccessKey:         inv.AccessKey,
		Status:            inv.Status,
		CStat:             inv.CStat,
		XMotivo:           inv.XMotivo,
		Protocol:          inv.Protocol,
		Contingency:       inv.Contingency,
		ContingencyReason: inv.ContingencyReason,
		Total:             inv.Total,
		IssuedAt:          inv.IssuedAt,
		QRCode:            inv.QRCode,
		URLChave:          inv.URLChave,
	}
	if !inv.AuthorizedAt.IsZero() {
		at := inv.AuthorizedAt
		resp.AuthorizedAt = &at
	}
	if withXML {
		resp.XMLBase64 = inv.XMLBase64
	}
	for _, item := range inv.Items {
		resp.Items = append(resp.Items, InvoiceItemResponse{
			LineNo:      item.LineNo,
			ProductCode: item.ProductCode,
			Description: item.Description,
			NCM:         item.NCM,
			CFOP:        item.CFOP,
			Unit:        item.Unit,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Discount:    item.Discount,
			Total:       item.Total,
		})
	}
	return resp
}
