package app

import (
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// microservices fakes the storefront REST services on one router,
// speaking their wire format.
type microservices struct {
	mu       sync.Mutex
	products map[string]wireProduct
	carts    map[string]*wireCart
	orders   []map[string]any
	clients  map[string]map[string]any
	seq      int
	listed   atomic.Int32
}

type wireProduct struct {
	ID       string          `json:"uuidProducto"`
	Name     string          `json:"nombre"`
	Category string          `json:"categoria"`
	Price    decimal.Decimal `json:"precio"`
	Stock    int             `json:"stock"`
}

type wireLine struct {
	ProductID string          `json:"uuidProducto"`
	Name      string          `json:"nombre"`
	Category  string          `json:"categoria"`
	Price     decimal.Decimal `json:"precio"`
	Quantity  int             `json:"cantidad"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type wireCart struct {
	ID    string          `json:"uuidCarrito"`
	Lines []wireLine      `json:"detalles"`
	Total decimal.Decimal `json:"total"`
}

func (c *wireCart) add(p wireProduct, quantity int) {
	defer c.retotal()
	for i := range c.Lines {
		if c.Lines[i].ProductID == p.ID {
			c.Lines[i].Quantity += quantity
			return
		}
	}
	c.Lines = append(c.Lines, wireLine{ProductID: p.ID, Name: p.Name, Category: p.Category, Price: p.Price, Quantity: quantity})
}

func (c *wireCart) retotal() {
	c.Total = decimal.Zero
	for i := range c.Lines {
		c.Lines[i].Subtotal = c.Lines[i].Price.Mul(decimal.NewFromInt(int64(c.Lines[i].Quantity)))
		c.Total = c.Total.Add(c.Lines[i].Subtotal)
	}
}

func newMicroservices() *microservices {
	return &microservices{
		products: map[string]wireProduct{
			"p-rug":  {ID: "p-rug", Name: "Alpaca rug", Category: "Hogar", Price: decimal.NewFromInt(180), Stock: 5},
			"p-lamp": {ID: "p-lamp", Name: "Clay lamp", Category: "Hogar", Price: decimal.NewFromInt(120), Stock: 2},
		},
		carts:   make(map[string]*wireCart),
		clients: make(map[string]map[string]any),
	}
}

func reply(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func fail(w http.ResponseWriter, status int, code string) {
	reply(w, status, map[string]any{"status": status, "code": code, "timestamp": "2026-03-01T12:00:00"})
}

func user(r *http.Request) string {
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer tok-")
}

func (m *microservices) Routes() http.Handler {
	r := chi.NewRouter()

	r.Post("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Login    string `json:"usuarioOCorreo"`
			Password string `json:"contrasenia"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Password != "secret" {
			fail(w, http.StatusUnauthorized, "BAD_CREDENTIALS")
			return
		}
		reply(w, http.StatusOK, map[string]any{
			"accessToken": "tok-" + req.Login,
			"tokenType":   "Bearer",
			"expiresIn":   3600,
			"roles":       []string{"CLIENT"},
		})
	})

	r.Get("/catalog/products", func(w http.ResponseWriter, r *http.Request) {
		m.listed.Add(1)
		m.mu.Lock()
		defer m.mu.Unlock()
		var content []wireProduct
		for _, p := range m.products {
			content = append(content, p)
		}
		slices.SortFunc(content, func(a, b wireProduct) int { return strings.Compare(a.ID, b.ID) })
		reply(w, http.StatusOK, map[string]any{
			"content":       content,
			"totalElements": len(content),
			"totalPages":    1,
			"number":        0,
			"size":          12,
		})
	})
	r.Get("/catalog/products/{id}", func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		defer m.mu.Unlock()
		p, ok := m.products[chi.URLParam(r, "id")]
		if !ok {
			fail(w, http.StatusNotFound, "PRODUCT_NOT_FOUND")
			return
		}
		reply(w, http.StatusOK, p)
	})

	r.Post("/cart", func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		defer m.mu.Unlock()
		id := "cart-user-" + user(r)
		if user(r) == "" {
			m.seq++
			id = fmt.Sprintf("cart-anon-%d", m.seq)
		}
		c, ok := m.carts[id]
		if !ok {
			c = &wireCart{ID: id, Lines: []wireLine{}}
			m.carts[id] = c
		}
		reply(w, http.StatusCreated, c)
	})
	r.Route("/cart/{id}", func(r chi.Router) {
		r.Get("/", m.withCart(func(w http.ResponseWriter, _ *http.Request, c *wireCart) {
			reply(w, http.StatusOK, c)
		}))
		r.Delete("/", m.withCart(func(w http.ResponseWriter, _ *http.Request, c *wireCart) {
			c.Lines = []wireLine{}
			c.retotal()
			reply(w, http.StatusNoContent, nil)
		}))
		r.Post("/items", m.withCart(func(w http.ResponseWriter, r *http.Request, c *wireCart) {
			var req struct {
				ProductID string `json:"uuidProducto"`
				Quantity  int    `json:"cantidad"`
			}
			_ = json.NewDecoder(r.Body).Decode(&req)
			p, ok := m.products[req.ProductID]
			if !ok {
				fail(w, http.StatusNotFound, "PRODUCT_NOT_FOUND")
				return
			}
			c.add(p, req.Quantity)
			reply(w, http.StatusOK, c)
		}))
		r.Put("/items/{product}", m.withCart(func(w http.ResponseWriter, r *http.Request, c *wireCart) {
			var req struct {
				Quantity int `json:"cantidad"`
			}
			_ = json.NewDecoder(r.Body).Decode(&req)
			for i := range c.Lines {
				if c.Lines[i].ProductID == chi.URLParam(r, "product") {
					c.Lines[i].Quantity = req.Quantity
					c.retotal()
					reply(w, http.StatusOK, c)
					return
				}
			}
			fail(w, http.StatusNotFound, "PRODUCT_NOT_FOUND_IN_CART")
		}))
		r.Post("/merge", m.withCart(func(w http.ResponseWriter, r *http.Request, anon *wireCart) {
			if user(r) == "" {
				fail(w, http.StatusUnauthorized, "INVALID_TOKEN")
				return
			}
			id := "cart-user-" + user(r)
			target, ok := m.carts[id]
			if !ok {
				target = &wireCart{ID: id, Lines: []wireLine{}}
				m.carts[id] = target
			}
			for _, l := range anon.Lines {
				target.add(m.products[l.ProductID], l.Quantity)
			}
			delete(m.carts, anon.ID)
			reply(w, http.StatusOK, target)
		}))
	})

	r.Post("/client/orders", func(w http.ResponseWriter, r *http.Request) {
		if user(r) == "" {
			fail(w, http.StatusUnauthorized, "INVALID_TOKEN")
			return
		}
		var req struct {
			CartID   string `json:"uuidCart"`
			Shipping string `json:"tipoEnvio"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		m.mu.Lock()
		defer m.mu.Unlock()
		c, ok := m.carts[req.CartID]
		if !ok || len(c.Lines) == 0 {
			fail(w, http.StatusBadRequest, "EMPTY_CART")
			return
		}
		for _, l := range c.Lines {
			p := m.products[l.ProductID]
			p.Stock -= l.Quantity
			m.products[l.ProductID] = p
		}
		o := map[string]any{
			"uuidPedido":   fmt.Sprintf("o-%d", len(m.orders)+1),
			"codigoPedido": fmt.Sprintf("ORD-%04d", len(m.orders)+1),
			"estado":       "Pendiente",
			"total":        c.Total.Add(decimal.NewFromInt(15)),
			"tipoEnvio":    req.Shipping,
			"fechaPedido":  "2026-03-01T12:00:00",
			"cliente":      map[string]any{"uuidCliente": user(r)},
			"productos":    c.Lines,
		}
		m.orders = append(m.orders, o)
		reply(w, http.StatusCreated, o)
	})
	r.Get("/client/orders", func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		defer m.mu.Unlock()
		reply(w, http.StatusOK, m.orders)
	})

	r.Get("/client", func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		defer m.mu.Unlock()
		c, ok := m.clients[user(r)]
		if !ok {
			fail(w, http.StatusNotFound, "CLIENT_NOT_FOUND")
			return
		}
		reply(w, http.StatusOK, c)
	})
	r.Patch("/client", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		m.mu.Lock()
		defer m.mu.Unlock()
		req["puntos"] = 0
		m.clients[user(r)] = req
		reply(w, http.StatusOK, req)
	})

	r.Post("/client/payments", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			OrderID string          `json:"uuidPedido"`
			Amount  decimal.Decimal `json:"monto"`
			Method  string          `json:"metodoPago"`
			Type    string          `json:"tipoComprobante"`
			TaxID   string          `json:"clienteDocumento"`
			Name    string          `json:"clienteNombre"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		reply(w, http.StatusCreated, map[string]any{
			"uuidBoleta":   "b-" + req.OrderID,
			"dni":          req.TaxID,
			"nombre":       req.Name,
			"fechaEmision": "2026-03-01T12:01:00",
			"montoTotal":   req.Amount,
			"serie":        "B001",
			"numero":       "000042",
			"pago": map[string]any{
				"uuidPago":        "pay-" + req.OrderID,
				"uuidPedido":      req.OrderID,
				"monto":           req.Amount,
				"metodoPago":      req.Method,
				"estadoPago":      "Completado",
				"fechaPago":       "2026-03-01T12:01:00",
				"numeroOperacion": "OP-1",
			},
		})
	})
	return r
}

// setStock changes stock behind the gateway's cache.
func (m *microservices) setStock(id string, stock int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.products[id]
	p.Stock = stock
	m.products[id] = p
}

func (m *microservices) withCart(fn func(http.ResponseWriter, *http.Request, *wireCart)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		defer m.mu.Unlock()
		c, ok := m.carts[chi.URLParam(r, "id")]
		if !ok {
			fail(w, http.StatusNotFound, "CART_NOT_FOUND")
			return
		}
		fn(w, r, c)
	}
}
