// Package payment describes payments, the receipts issued for completed
// payments, and the remote payment service.
package payment

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrDeclined is returned by a Backend that rejects the payment outright.
var ErrDeclined = errors.New("payment declined")

// Method is how the customer pays.
type Method string

const (
	MethodCard     Method = "card"
	MethodWallet   Method = "wallet"
	MethodTransfer Method = "transfer"
)

// Valid reports whether m is a known method.
func (m Method) Valid() bool {
	switch m {
	case MethodCard, MethodWallet, MethodTransfer:
		return true
	}
	return false
}

// Status is the outcome reported by the payment service.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// ReceiptType selects the tax document issued for the payment.
type ReceiptType string

const (
	// ReceiptIndividual is issued to a person identified by an 8-digit id.
	ReceiptIndividual ReceiptType = "individual"
	// ReceiptBusiness is issued to a company identified by an 11-digit id.
	ReceiptBusiness ReceiptType = "business"
)

// Valid reports whether t is a known receipt type.
func (t ReceiptType) Valid() bool {
	return t == ReceiptIndividual || t == ReceiptBusiness
}

// TaxIDLength returns the number of digits the tax id must have for t, or
// zero for an unknown type.
func (t ReceiptType) TaxIDLength() int {
	switch t {
	case ReceiptIndividual:
		return 8
	case ReceiptBusiness:
		return 11
	}
	return 0
}

// Payment is created by the payment step. Status is set once by the
// backend response.
type Payment struct {
	ID              string          `json:"id"`
	OrderID         string          `json:"orderId"`
	Amount          decimal.Decimal `json:"amount"`
	Method          Method          `json:"method"`
	Status          Status          `json:"status"`
	OperationNumber string          `json:"operationNumber,omitempty"`
	PaidAt          time.Time       `json:"paidAt,omitzero"`
}

// Receipt exists only for completed payments.
type Receipt struct {
	ID       string          `json:"id"`
	Type     ReceiptType     `json:"type"`
	TaxID    string          `json:"taxId"`
	Name     string          `json:"name"`
	IssuedAt time.Time       `json:"issuedAt"`
	Amount   decimal.Decimal `json:"amount"`
	Series   string          `json:"series"`
	Number   string          `json:"number"`
	Payment  Payment         `json:"payment"`
}

// Request asks the payment service to charge an order.
type Request struct {
	OrderID      string
	Amount       decimal.Decimal
	Method       Method
	ReceiptType  ReceiptType
	CustomerID   string
	CustomerName string
}

// Backend is the remote payment service. A non-completed outcome is
// reported through Receipt.Payment.Status, not as an error.
type Backend interface {
	Process(ctx context.Context, req Request) (*Receipt, error)
}

// Archive keeps the receipts of completed payments per customer.
type Archive interface {
	Append(ctx context.Context, owner string, r Receipt) error
	// List returns the owner's receipts, newest first.
	List(ctx context.Context, owner string) ([]Receipt, error)
}
