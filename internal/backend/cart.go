package backend

import (
	"context"
	"net/http"

	"github.com/go-faster/jx"

	"github.com/qorikusi/storefront/internal/domain/cart"
	"github.com/qorikusi/storefront/internal/domain/product"
)

// CartService calls the cart service. Requests carry the session token when
// there is one; anonymous carts need none.
type CartService struct {
	c *Client
}

// NewCartService creates a CartService.
func NewCartService(c *Client) *CartService {
	return &CartService{c: c}
}

var _ cart.Backend = (*CartService)(nil)

func (s *CartService) Create(ctx context.Context) (*cart.Cart, error) {
	var c cart.Cart
	err := s.c.do(ctx, request{
		method: http.MethodPost,
		path:   "/cart",
		body:   func(e *jx.Encoder) { e.ObjEmpty() },
		decode: func(d *jx.Decoder) error { return decodeCart(d, &c) },
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *CartService) Get(ctx context.Context, cartID string) (*cart.Cart, error) {
	var c cart.Cart
	err := s.c.do(ctx, request{
		method:   http.MethodGet,
		path:     pathf("/cart/%s", cartID),
		decode:   func(d *jx.Decoder) error { return decodeCart(d, &c) },
		notFound: cart.ErrNotFound,
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *CartService) AddItem(ctx context.Context, cartID, productID string, quantity int) error {
	return s.c.do(ctx, request{
		method: http.MethodPost,
		path:   pathf("/cart/%s/items", cartID),
		body: func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("uuidProducto", func(e *jx.Encoder) { e.Str(productID) })
				e.Field("cantidad", func(e *jx.Encoder) { e.Int(quantity) })
			})
		},
		notFound: cart.ErrNotFound,
	})
}

func (s *CartService) UpdateItem(ctx context.Context, cartID, productID string, quantity int) error {
	return s.c.do(ctx, request{
		method: http.MethodPut,
		path:   pathf("/cart/%s/items/%s", cartID, productID),
		body: func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("cantidad", func(e *jx.Encoder) { e.Int(quantity) })
			})
		},
		notFound: cart.ErrItemNotFound,
	})
}

func (s *CartService) RemoveItem(ctx context.Context, cartID, productID string) error {
	return s.c.do(ctx, request{
		method:   http.MethodDelete,
		path:     pathf("/cart/%s/items/%s", cartID, productID),
		notFound: cart.ErrItemNotFound,
	})
}

func (s *CartService) Clear(ctx context.Context, cartID string) error {
	return s.c.do(ctx, request{
		method:   http.MethodDelete,
		path:     pathf("/cart/%s", cartID),
		notFound: cart.ErrNotFound,
	})
}

func (s *CartService) Merge(ctx context.Context, anonymousID string) error {
	return s.c.do(ctx, request{
		method:   http.MethodPost,
		path:     pathf("/cart/%s/merge", anonymousID),
		notFound: cart.ErrNotFound,
	})
}

// decodeCart reads {uuidCarrito, detalles, total}.
func decodeCart(d *jx.Decoder, c *cart.Cart) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "uuidCarrito":
			c.ID, err = decodeString(d)
		case "total":
			c.Total, err = decodeDecimal(d)
		case "detalles":
			if d.Next() == jx.Null {
				return d.Null()
			}
			err = d.Arr(func(d *jx.Decoder) error {
				it, err := decodeCartItem(d)
				if err != nil {
					return err
				}
				c.Items = append(c.Items, it)
				return nil
			})
		default:
			err = d.Skip()
		}
		return err
	})
}

// decodeCartItem reads one detalle. Lines carry no stock.
func decodeCartItem(d *jx.Decoder) (cart.Item, error) {
	var it cart.Item
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "uuidProducto":
			it.Product.ID, err = decodeString(d)
		case "categoria":
			it.Product.Category, err = decodeString(d)
		case "nombre":
			it.Product.Name, err = decodeString(d)
		case "precio":
			it.Product.Price, err = decodeDecimal(d)
		case "imagen":
			it.Product.Image, err = decodeString(d)
		case "cantidad":
			it.Quantity, err = decodeInt(d)
		case "subtotal":
			it.Subtotal, err = decodeDecimal(d)
		default:
			err = d.Skip()
		}
		return err
	})
	return it, err
}

// decodeProduct reads a catalog product.
func decodeProduct(d *jx.Decoder, p *product.Product) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "uuidProducto":
			p.ID, err = decodeString(d)
		case "nombre":
			p.Name, err = decodeString(d)
		case "descripcion":
			p.Description, err = decodeString(d)
		case "categoria":
			p.Category, err = decodeString(d)
		case "precio":
			p.Price, err = decodeDecimal(d)
		case "stock":
			p.Stock, err = decodeInt(d)
		case "imagen":
			p.Image, err = decodeString(d)
		default:
			err = d.Skip()
		}
		return err
	})
}
