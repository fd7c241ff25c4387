package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/inovapos/pdv-fiscal/internal/domain"
	"github.com/inovapos/pdv-fiscal/internal/domain/entity"
	"github.com/inovapos/pdv-fiscal/internal/domain/repository"
)

var _ repository.InvoiceRepository = (*InvoiceRepo)(nil)

// InvoiceRepo implementação de InvoiceRepository (usável com pool ou tx).
type InvoiceRepo struct {
	q Querier
}

// NewInvoiceRepository constrói o adaptador. Passar pool ou tx (Querier).
func NewInvoiceRepository(q Querier) *InvoiceRepo {
	return &InvoiceRepo{q: q}
}

// Create persiste o cabeçalho da nota.
func (r *InvoiceRepo) Create(invoice *entity.Invoice) error {
	if invoice.ID == "" {
		invoice.ID = uuid.New().String()
	}
	query := `
		INSERT INTO invoices (id, client_id, company_id, branch_id, series, number,
			access_key, cnf, customer_cpf, customer_name, issued_at,
			total_products, total_discount, total_freight, total_other, total,
			status, contingency, contingency_at, contingency_reason,
			protocol, authorized_at, cstat, xmotivo,
			xml_base64, qr_code, url_chave, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29)`
	_, err := r.q.Exec(context.Background(), query,
		invoice.ID, invoice.ClientID, invoice.CompanyID, invoice.BranchID,
		invoice.Series, invoice.Number,
		nullIfEmpty(invoice.AccessKey), nullIfEmpty(invoice.CNF),
		nullIfEmpty(invoice.CustomerCPF), nullIfEmpty(invoice.CustomerName),
		invoice.IssuedAt,
		invoice.TotalProducts, invoice.TotalDiscount, invoice.TotalFreight,
		invoice.TotalOther, invoice.Total,
		invoice.Status, invoice.Contingency,
		nullIfZeroTime(invoice.ContingencyAt), nullIfEmpty(invoice.ContingencyReason),
		nullIfEmpty(invoice.Protocol), nullIfZeroTime(invoice.AuthorizedAt),
		nullIfEmpty(invoice.CStat), nullIfEmpty(invoice.XMotivo),
		nullIfEmpty(invoice.XMLBase64), nullIfEmpty(invoice.QRCode), nullIfEmpty(invoice.URLChave),
		invoice.CreatedAt, invoice.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("número de nota já usado na série: %w", domain.ErrDuplicate)
		}
		return fmt.Errorf("insert invoice: %w", err)
	}
	return nil
}

// CreateItem persiste uma linha de produto.
func (r *InvoiceRepo) CreateItem(item *entity.InvoiceItem) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	query := `
		INSERT INTO invoice_items (id, invoice_id, line_no, product_code, description,
			ean, ncm, cfop, unit, quantity, unit_price, discount, total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := r.q.Exec(context.Background(), query,
		item.ID, item.InvoiceID, item.LineNo, item.ProductCode, item.Description,
		nullIfEmpty(item.EAN), item.NCM, item.CFOP, item.Unit,
		item.Quantity, item.UnitPrice, item.Discount, item.Total,
	)
	if err != nil {
		return fmt.Errorf("insert invoice item: %w", err)
	}
	return nil
}

// CreateItemTax persiste uma linha de tributação do item.
func (r *InvoiceRepo) CreateItemTax(tax *entity.ItemTax) error {
	if tax.ID == "" {
		tax.ID = uuid.New().String()
	}
	query := `
		INSERT INTO invoice_item_taxes (id, item_id, tax_type, cst, base, rate, reduction, value)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.q.Exec(context.Background(), query,
		tax.ID, tax.ItemID, tax.TaxType, tax.CST, tax.Base, tax.Rate, tax.Reduction, tax.Value,
	)
	if err != nil {
		return fmt.Errorf("insert item tax: %w", err)
	}
	return nil
}

// CreatePayment persiste um pagamento da nota.
func (r *InvoiceRepo) CreatePayment(payment *entity.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.New().String()
	}
	query := `
		INSERT INTO invoice_payments (id, invoice_id, tpag, amount, installments, issuer_cnpj, auth_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.q.Exec(context.Background(), query,
		payment.ID, payment.InvoiceID, payment.TPag, payment.Amount,
		payment.Installments, nullIfEmpty(payment.IssuerCNPJ), nullIfEmpty(payment.AuthCode),
	)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// UpdateFiscal atualiza os campos fiscais da nota após assinatura, envio ou
// queda para contingência.
func (r *InvoiceRepo) UpdateFiscal(invoice *entity.Invoice) error {
	query := `
		UPDATE invoices
		SET access_key         = COALESCE($2, access_key),
		    cnf                = COALESCE($3, cnf),
		    status             = $4,
		    contingency        = $5,
		    contingency_at     = COALESCE($6, contingency_at),
		    contingency_reason = COALESCE($7, contingency_reason),
		    protocol           = COALESCE($8, protocol),
		    authorized_at      = COALESCE($9, authorized_at),
		    cstat              = COALESCE($10, cstat),
		    xmotivo            = COALESCE($11, xmotivo),
		    xml_base64         = COALESCE($12, xml_base64),
		    qr_code            = COALESCE($13, qr_code),
		    url_chave          = COALESCE($14, url_chave),
		    updated_at         = $15
		WHERE id = $1`
	tag, err := r.q.Exec(context.Background(), query,
		invoice.ID,
		nullIfEmpty(invoice.AccessKey),
		nullIfEmpty(invoice.CNF),
		invoice.Status,
		invoice.Contingency,
		nullIfZeroTime(invoice.ContingencyAt),
		nullIfEmpty(invoice.ContingencyReason),
		nullIfEmpty(invoice.Protocol),
		nullIfZeroTime(invoice.AuthorizedAt),
		nullIfEmpty(invoice.CStat),
		nullIfEmpty(invoice.XMotivo),
		nullIfEmpty(invoice.XMLBase64),
		nullIfEmpty(invoice.QRCode),
		nullIfEmpty(invoice.URLChave),
		invoice.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update invoice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

const invoiceColumns = `id, client_id, company_id, branch_id, series, number,
	COALESCE(access_key, ''), COALESCE(cnf, ''),
	COALESCE(customer_cpf, ''), COALESCE(customer_name, ''), issued_at,
	total_products, total_discount, total_freight, total_other, total,
	status, contingency, contingency_at, COALESCE(contingency_reason, ''),
	COALESCE(protocol, ''), authorized_at, COALESCE(cstat, ''), COALESCE(xmotivo, ''),
	COALESCE(xml_base64, ''), COALESCE(qr_code, ''), COALESCE(url_chave, ''),
	created_at, updated_at`

func scanInvoice(row pgx.Row) (*entity.Invoice, error) {
	var inv entity.Invoice
	var contingencyAt, authorizedAt *time.Time
	err := row.Scan(
		&inv.ID, &inv.ClientID, &inv.CompanyID, &inv.BranchID, &inv.Series, &inv.Number,
		&inv.AccessKey, &inv.CNF,
		&inv.CustomerCPF, &inv.CustomerName, &inv.IssuedAt,
		&inv.TotalProducts, &inv.TotalDiscount, &inv.TotalFreight, &inv.TotalOther, &inv.Total,
		&inv.Status, &inv.Contingency, &contingencyAt, &inv.ContingencyReason,
		&inv.Protocol, &authorizedAt, &inv.CStat, &inv.XMotivo,
		&inv.XMLBase64, &inv.QRCode, &inv.URLChave,
		&inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	inv.ContingencyAt = derefTime(contingencyAt)
	inv.AuthorizedAt = derefTime(authorizedAt)
	return &inv, nil
}

// GetByID obtém uma nota completa por ID, ou nil se não existir.
func (r *InvoiceRepo) GetByID(id string) (*entity.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`
	inv, err := scanInvoice(r.q.QueryRow(context.Background(), query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	return inv, nil
}

// GetItemsByInvoiceID obtém todas as linhas de uma nota, em ordem de nItem.
func (r *InvoiceRepo) GetItemsByInvoiceID(invoiceID string) ([]*entity.InvoiceItem, error) {
	query := `
		SELECT id, invoice_id, line_no, product_code, description,
		       COALESCE(ean, ''), ncm, cfop, unit, quantity, unit_price, discount, total
		FROM invoice_items WHERE invoice_id = $1 ORDER BY line_no`
	rows, err := r.q.Query(context.Background(), query, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list invoice items: %w", err)
	}
	defer rows.Close()

	var list []*entity.InvoiceItem
	for rows.Next() {
		var it entity.InvoiceItem
		if err := rows.Scan(&it.ID, &it.InvoiceID, &it.LineNo, &it.ProductCode, &it.Description,
			&it.EAN, &it.NCM, &it.CFOP, &it.Unit, &it.Quantity, &it.UnitPrice, &it.Discount, &it.Total,
		); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		list = append(list, &it)
	}
	return list, rows.Err()
}

// ListContingencyPending devolve as notas NO_SEND em contingência, mais
// antigas primeiro. A retransmissão é serial para preservar a ordem de emissão.
func (r *InvoiceRepo) ListContingencyPending(clientID string, limit int) ([]*entity.Invoice, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE client_id = $1 AND status = $2 AND contingency = true
		ORDER BY issued_at ASC
		LIMIT $3`
	rows, err := r.q.Query(context.Background(), query, clientID, entity.StatusNoSend, limit)
	if err != nil {
		return nil, fmt.Errorf("list contingency pending: %w", err)
	}
	defer rows.Close()

	var list []*entity.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		list = append(list, inv)
	}
	return list, rows.Err()
}

// DeleteCascade apaga impostos, itens, pagamentos e cabeçalho. Nota autorizada
// só é apagada com force (uso administrativo).
func (r *InvoiceRepo) DeleteCascade(id string, force bool) error {
	ctx := context.Background()

	inv, err := r.GetByID(id)
	if err != nil {
		return err
	}
	if inv == nil {
		return domain.ErrNotFound
	}
	if inv.Status == entity.StatusAuthorized && !force {
		return domain.ErrInvoiceAuthorized
	}

	if _, err := r.q.Exec(ctx,
		`DELETE FROM invoice_item_taxes WHERE item_id IN (SELECT id FROM invoice_items WHERE invoice_id = $1)`, id); err != nil {
		return fmt.Errorf("delete item taxes: %w", err)
	}
	if _, err := r.q.Exec(ctx, `DELETE FROM invoice_items WHERE invoice_id = $1`, id); err != nil {
		return fmt.Errorf("delete items: %w", err)
	}
	if _, err := r.q.Exec(ctx, `DELETE FROM invoice_payments WHERE invoice_id = $1`, id); err != nil {
		return fmt.Errorf("delete payments: %w", err)
	}
	if _, err := r.q.Exec(ctx, `DELETE FROM invoices WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete invoice: %w", err)
	}
	return nil
}
