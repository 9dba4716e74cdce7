package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/qorikusi/storefront/internal/domain/payment"
)

const (
	insertReceiptSQL = `INSERT INTO receipts (
		owner, receipt_id, receipt_type, tax_id, name, issued_at, amount, series, number,
		payment_id, order_id, payment_amount, payment_method, payment_status, operation_number, paid_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	ON CONFLICT (owner, receipt_id) DO NOTHING`

	listReceiptsSQL = `SELECT
		receipt_id, receipt_type, tax_id, name, issued_at, amount, series, number,
		payment_id, order_id, payment_amount, payment_method, payment_status, operation_number, paid_at
	FROM receipts WHERE owner = $1 ORDER BY seq DESC`
)

var _ payment.Archive = (*Archive)(nil)

// Archive is a payment.Archive on the receipts table. Appending the same
// receipt twice keeps one row.
type Archive struct {
	pool *pgxpool.Pool
}

// NewArchive returns an Archive that uses the given pool.
func NewArchive(pool *pgxpool.Pool) *Archive {
	return &Archive{pool: pool}
}

func (a *Archive) Append(ctx context.Context, owner string, r payment.Receipt) error {
	p := r.Payment
	_, err := a.pool.Exec(ctx, insertReceiptSQL,
		owner, r.ID, string(r.Type), r.TaxID, r.Name, nullTime(r.IssuedAt), r.Amount, r.Series, r.Number,
		p.ID, p.OrderID, p.Amount, string(p.Method), string(p.Status), p.OperationNumber, nullTime(p.PaidAt),
	)
	if err != nil {
		return errors.Wrapf(err, "insert receipt %s", r.ID)
	}
	return nil
}

func (a *Archive) List(ctx context.Context, owner string) ([]payment.Receipt, error) {
	rows, err := a.pool.Query(ctx, listReceiptsSQL, owner)
	if err != nil {
		return nil, errors.Wrap(err, "list receipts")
	}
	out, err := pgx.CollectRows(rows, scanReceipt)
	if err != nil {
		return nil, errors.Wrap(err, "scan receipts")
	}
	return out, nil
}

func scanReceipt(row pgx.CollectableRow) (payment.Receipt, error) {
	var (
		r                  payment.Receipt
		issuedAt, paidAt   *time.Time
		typ, method, state string
	)
	err := row.Scan(
		&r.ID, &typ, &r.TaxID, &r.Name, &issuedAt, &r.Amount, &r.Series, &r.Number,
		&r.Payment.ID, &r.Payment.OrderID, &r.Payment.Amount, &method, &state, &r.Payment.OperationNumber, &paidAt,
	)
	if err != nil {
		return r, err
	}
	r.Type = payment.ReceiptType(typ)
	r.Payment.Method = payment.Method(method)
	r.Payment.Status = payment.Status(state)
	if issuedAt != nil {
		r.IssuedAt = issuedAt.UTC()
	}
	if paidAt != nil {
		r.Payment.PaidAt = paidAt.UTC()
	}
	return r, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
