package backend

import (
	"context"
	"net/http"

	"github.com/go-faster/jx"

	"github.com/qorikusi/storefront/internal/domain/order"
)

// OrderService calls the order service. Every call requires a token.
type OrderService struct {
	c *Client
}

// NewOrderService creates an OrderService.
func NewOrderService(c *Client) *OrderService {
	return &OrderService{c: c}
}

var _ order.Backend = (*OrderService)(nil)

// Create places an order for the contents of cartID.
func (s *OrderService) Create(ctx context.Context, cartID, shippingMethod string) (*order.Order, error) {
	var o order.Order
	err := s.c.do(ctx, request{
		method: http.MethodPost,
		path:   "/client/orders",
		body: func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("uuidCart", func(e *jx.Encoder) { e.Str(cartID) })
				e.Field("tipoEnvio", func(e *jx.Encoder) { e.Str(shippingMethod) })
			})
		},
		decode: func(d *jx.Decoder) error {
			return d.Obj(func(d *jx.Decoder, key string) error {
				return decodeOrderField(d, key, &o)
			})
		},
	})
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// List returns the caller's orders.
func (s *OrderService) List(ctx context.Context) ([]order.Details, error) {
	var out []order.Details
	err := s.c.do(ctx, request{
		method: http.MethodGet,
		path:   "/client/orders",
		decode: func(d *jx.Decoder) error {
			return d.Arr(func(d *jx.Decoder) error {
				var o order.Details
				if err := decodeOrderDetails(d, &o); err != nil {
					return err
				}
				out = append(out, o)
				return nil
			})
		},
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns one of the caller's orders.
func (s *OrderService) Get(ctx context.Context, orderID string) (*order.Details, error) {
	var o order.Details
	err := s.c.do(ctx, request{
		method:   http.MethodGet,
		path:     pathf("/client/orders/%s", orderID),
		decode:   func(d *jx.Decoder) error { return decodeOrderDetails(d, &o) },
		notFound: order.ErrNotFound,
	})
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// decodeOrderField reads one summary field into o; unknown keys are skipped.
func decodeOrderField(d *jx.Decoder, key string, o *order.Order) error {
	var err error
	switch key {
	case "uuidPedido":
		o.ID, err = decodeString(d)
	case "codigoPedido":
		o.Code, err = decodeString(d)
	case "estado":
		var s string
		s, err = decodeString(d)
		o.Status = order.Status(s)
	case "total":
		o.Total, err = decodeDecimal(d)
	case "tipoEnvio":
		o.ShippingMethod, err = decodeString(d)
	case "fechaPedido":
		o.CreatedAt, err = decodeTime(d)
	default:
		err = d.Skip()
	}
	return err
}

func decodeOrderDetails(d *jx.Decoder, o *order.Details) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "cliente":
			if d.Next() != jx.Object {
				return d.Skip()
			}
			return d.Obj(func(d *jx.Decoder, key string) error {
				if key != "uuidCliente" {
					return d.Skip()
				}
				var err error
				o.Customer, err = decodeString(d)
				return err
			})
		case "productos":
			if d.Next() == jx.Null {
				return d.Null()
			}
			return d.Arr(func(d *jx.Decoder) error {
				l, err := decodeOrderLine(d)
				if err != nil {
					return err
				}
				o.Lines = append(o.Lines, l)
				return nil
			})
		}
		return decodeOrderField(d, key, &o.Order)
	})
}

func decodeOrderLine(d *jx.Decoder) (order.Line, error) {
	var l order.Line
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "uuidProducto":
			l.ProductID, err = decodeString(d)
		case "nombre":
			l.Name, err = decodeString(d)
		case "precio":
			l.Price, err = decodeDecimal(d)
		case "cantidad":
			l.Quantity, err = decodeInt(d)
		case "subtotal":
			l.Subtotal, err = decodeDecimal(d)
		default:
			err = d.Skip()
		}
		return err
	})
	return l, err
}
