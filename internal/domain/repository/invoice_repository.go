package repository

import "github.com/inovapos/pdv-fiscal/internal/domain/entity"

// InvoiceRepository define o porto de persistência de NFC-e e suas linhas.
type InvoiceRepository interface {
	Create(invoice *entity.Invoice) error
	CreateItem(item *entity.InvoiceItem) error
	CreateItemTax(tax *entity.ItemTax) error
	CreatePayment(payment *entity.Payment) error
	// UpdateFiscal atualiza os campos fiscais da nota:
	// status, chave, cnf, xml_base64, qr_code, url_chave, protocolo,
	// autorizada_em, cstat, xmotivo, contingência.
	UpdateFiscal(invoice *entity.Invoice) error
	GetByID(id string) (*entity.Invoice, error)
	GetItemsByInvoiceID(invoiceID string) ([]*entity.InvoiceItem, error)
	// ListContingencyPending devolve notas NO_SEND com flag de contingência,
	// mais antigas primeiro, para retransmissão serial.
	ListContingencyPending(clientID string, limit int) ([]*entity.Invoice, error)
	// DeleteCascade apaga impostos, itens, pagamentos e cabeçalho em uma
	// transação. Notas autorizadas só com force.
	DeleteCascade(id string, force bool) error
}
