package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/qorikusi/storefront/internal/domain/product"
)

// CatalogService calls the product service: the public catalog and the
// admin product endpoints.
type CatalogService struct {
	c *Client
}

// NewCatalogService creates a CatalogService.
func NewCatalogService(c *Client) *CatalogService {
	return &CatalogService{c: c}
}

var (
	_ product.Source         = (*CatalogService)(nil)
	_ product.CategorySource = (*CatalogService)(nil)
)

// List returns one page of active products.
func (s *CatalogService) List(ctx context.Context, q product.Query) (*product.Page, error) {
	params := url.Values{}
	if q.Category != "" {
		params.Set("categoria", q.Category)
	}
	params.Set("page", strconv.Itoa(q.Page))
	if q.Size > 0 {
		params.Set("size", strconv.Itoa(q.Size))
	}

	var page product.Page
	err := s.c.do(ctx, request{
		method: http.MethodGet,
		path:   "/catalog/products",
		query:  params,
		public: true,
		decode: func(d *jx.Decoder) error { return decodePage(d, &page) },
	})
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// Get returns a single product.
func (s *CatalogService) Get(ctx context.Context, id string) (*product.Product, error) {
	var p product.Product
	err := s.c.do(ctx, request{
		method:   http.MethodGet,
		path:     pathf("/catalog/products/%s", id),
		public:   true,
		decode:   func(d *jx.Decoder) error { return decodeProduct(d, &p) },
		notFound: product.ErrNotFound,
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create adds a product. Requires the admin role.
func (s *CatalogService) Create(ctx context.Context, draft product.Draft) (*product.Product, error) {
	var p product.Product
	err := s.c.do(ctx, request{
		method: http.MethodPost,
		path:   "/admin/products",
		body:   func(e *jx.Encoder) { encodeDraft(e, draft) },
		decode: func(d *jx.Decoder) error { return decodeProduct(d, &p) },
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Update edits a product. Requires the admin role.
func (s *CatalogService) Update(ctx context.Context, id string, draft product.Draft) (*product.Product, error) {
	var p product.Product
	err := s.c.do(ctx, request{
		method:   http.MethodPatch,
		path:     pathf("/admin/products/%s", id),
		body:     func(e *jx.Encoder) { encodeDraft(e, draft) },
		decode:   func(d *jx.Decoder) error { return decodeProduct(d, &p) },
		notFound: product.ErrNotFound,
	})
	if err != nil {
		return nil, err
	}
	if p.ID == "" {
		p.ID = id
	}
	return &p, nil
}

// Delete removes a product. Requires the admin role.
func (s *CatalogService) Delete(ctx context.Context, id string) error {
	return s.c.do(ctx, request{
		method:   http.MethodDelete,
		path:     pathf("/admin/products/%s", id),
		notFound: product.ErrNotFound,
	})
}

func encodeDraft(e *jx.Encoder, d product.Draft) {
	e.Obj(func(e *jx.Encoder) {
		if d.CategoryID > 0 {
			e.Field("categoria", func(e *jx.Encoder) { e.Int(d.CategoryID) })
		}
		e.Field("nombre", func(e *jx.Encoder) { e.Str(d.Name) })
		e.Field("descripcion", func(e *jx.Encoder) { e.Str(d.Description) })
		e.Field("precio", func(e *jx.Encoder) { encodeDecimal(e, d.Price) })
		e.Field("stock", func(e *jx.Encoder) { e.Int(d.Stock) })
		if d.Image != "" {
			e.Field("imagen", func(e *jx.Encoder) { e.Str(d.Image) })
		}
	})
}

// decodePage reads a Spring Data page: {content, totalElements, totalPages,
// number, size}.
func decodePage(d *jx.Decoder, page *product.Page) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "content":
			err = d.Arr(func(d *jx.Decoder) error {
				var p product.Product
				if err := decodeProduct(d, &p); err != nil {
					return err
				}
				page.Items = append(page.Items, p)
				return nil
			})
		case "totalElements":
			page.TotalItems, err = decodeInt(d)
		case "totalPages":
			page.TotalPages, err = decodeInt(d)
		case "number":
			page.Number, err = decodeInt(d)
		case "size":
			page.Size, err = decodeInt(d)
		default:
			err = d.Skip()
		}
		return err
	})
}

// Categories lists every category. Requires the admin role.
func (s *CatalogService) Categories(ctx context.Context) ([]product.Category, error) {
	out := []product.Category{}
	err := s.c.do(ctx, request{
		method: http.MethodGet,
		path:   "/admin/categories",
		decode: func(d *jx.Decoder) error {
			return d.Arr(func(d *jx.Decoder) error {
				var c product.Category
				if err := decodeCategory(d, &c); err != nil {
					return err
				}
				out = append(out, c)
				return nil
			})
		},
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CreateCategory adds a category. Requires the admin role.
func (s *CatalogService) CreateCategory(ctx context.Context, name string) (*product.Category, error) {
	var c product.Category
	err := s.c.do(ctx, request{
		method: http.MethodPost,
		path:   "/admin/categories",
		body:   func(e *jx.Encoder) { encodeCategory(e, name) },
		decode: func(d *jx.Decoder) error { return decodeCategory(d, &c) },
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// UpdateCategory renames a category. Requires the admin role.
func (s *CatalogService) UpdateCategory(ctx context.Context, id int, name string) (*product.Category, error) {
	c := product.Category{ID: id, Name: name}
	err := s.c.do(ctx, request{
		method:   http.MethodPut,
		path:     pathf("/admin/categories/%s", strconv.Itoa(id)),
		body:     func(e *jx.Encoder) { encodeCategory(e, name) },
		decode:   func(d *jx.Decoder) error { return decodeCategory(d, &c) },
		notFound: product.ErrCategoryNotFound,
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// DeleteCategory removes a category. Requires the admin role.
func (s *CatalogService) DeleteCategory(ctx context.Context, id int) error {
	return s.c.do(ctx, request{
		method:   http.MethodDelete,
		path:     pathf("/admin/categories/%s", strconv.Itoa(id)),
		notFound: product.ErrCategoryNotFound,
	})
}

func encodeCategory(e *jx.Encoder, name string) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("nombre", func(e *jx.Encoder) { e.Str(name) })
	})
}

// decodeCategory reads {idCategoria, nombre}. Some endpoints send the id as
// a string.
func decodeCategory(d *jx.Decoder, c *product.Category) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "idCategoria", "id":
			switch d.Next() {
			case jx.String:
				s, err := d.Str()
				if err != nil {
					return err
				}
				n, err := strconv.Atoi(s)
				if err != nil {
					return errors.Wrapf(err, "parse category id %q", s)
				}
				c.ID = n
				return nil
			default:
				n, err := decodeInt(d)
				c.ID = n
				return err
			}
		case "nombre":
			name, err := decodeString(d)
			c.Name = name
			return err
		default:
			return d.Skip()
		}
	})
}
