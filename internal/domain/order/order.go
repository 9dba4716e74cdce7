// Package order describes orders placed through checkout and the remote
// order service that owns them.
package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ShippingStandard is the only shipping method the order service accepts.
const ShippingStandard = "Envío estándar"

// ErrNotFound is returned when an order does not exist or belongs to
// another user.
var ErrNotFound = errors.New("order not found")

// Status is the server-side order state.
type Status string

const (
	StatusPending   Status = "Pendiente"
	StatusPaid      Status = "Pagado"
	StatusShipped   Status = "Enviado"
	StatusDelivered Status = "Entregado"
	StatusCancelled Status = "Cancelado"
)

// Order is created once per successful checkout submission. Only Status
// changes afterwards.
type Order struct {
	ID             string          `json:"id"`
	Code           string          `json:"code"`
	Status         Status          `json:"status"`
	Total          decimal.Decimal `json:"total"`
	ShippingMethod string          `json:"shippingMethod"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// Line is one purchased product as recorded on the order.
type Line struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// Details is an order with its customer and lines, as shown in the profile.
type Details struct {
	Order
	Customer string `json:"customer,omitempty"`
	Lines    []Line `json:"lines"`
}

// Backend is the remote order service. All calls require an authenticated
// request.
type Backend interface {
	Create(ctx context.Context, cartID, shippingMethod string) (*Order, error)
	List(ctx context.Context) ([]Details, error)
	Get(ctx context.Context, orderID string) (*Details, error)
}
