package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/qorikusi/storefront/internal/domain/product"
)

// ListProducts returns one catalog page. Search, price range and ordering
// apply to the fetched page only.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := product.Query{Category: q.Get("category")}

	var err error
	if query.Page, err = intParam(q.Get("page"), "page"); err != nil {
		respondError(w, r, err)
		return
	}
	if query.Size, err = intParam(q.Get("size"), "size"); err != nil {
		respondError(w, r, err)
		return
	}
	lo, err := decimalParam(q.Get("minPrice"), "minPrice")
	if err != nil {
		respondError(w, r, err)
		return
	}
	hi, err := decimalParam(q.Get("maxPrice"), "maxPrice")
	if err != nil {
		respondError(w, r, err)
		return
	}

	page, err := h.catalog.List(r.Context(), query)
	if err != nil {
		respondError(w, r, err)
		return
	}
	out := *page
	out.Items = product.Search(out.Items, q.Get("q"))
	if lo != nil || hi != nil {
		out.Items = product.FilterByPrice(out.Items, lo, hi)
	}
	out.Items = product.Sort(out.Items, product.SortOrder(q.Get("sort")))
	if out.Items == nil {
		out.Items = []product.Product{}
	}
	respondJSON(w, r, http.StatusOK, out)
}

// GetProduct returns a single product.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.catalog.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, p)
}

type productRequest struct {
	CategoryID  int             `json:"categoryId"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Image       string          `json:"image"`
}

func (req productRequest) draft() (product.Draft, error) {
	switch {
	case strings.TrimSpace(req.Name) == "":
		return product.Draft{}, &badRequestError{msg: "The product name is required."}
	case !req.Price.IsPositive():
		return product.Draft{}, &badRequestError{msg: "The price must be greater than zero."}
	case req.Stock < 0:
		return product.Draft{}, &badRequestError{msg: "The stock cannot be negative."}
	}
	return product.Draft{
		CategoryID:  req.CategoryID,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		Image:       req.Image,
	}, nil
}

// CreateProduct adds a product to the catalog.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	d, err := req.draft()
	if err != nil {
		respondError(w, r, err)
		return
	}
	p, err := h.catalog.Create(r.Context(), d)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusCreated, p)
}

// UpdateProduct edits a product in place.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	d, err := req.draft()
	if err != nil {
		respondError(w, r, err)
		return
	}
	p, err := h.catalog.Update(r.Context(), chi.URLParam(r, "id"), d)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, p)
}

// DeleteProduct removes a product from the catalog.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func intParam(v, name string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, &badRequestError{msg: "The " + name + " parameter must be a non-negative number."}
	}
	return n, nil
}

func decimalParam(v, name string) (*decimal.Decimal, error) {
	if v == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return nil, &badRequestError{msg: "The " + name + " parameter must be a number."}
	}
	return &d, nil
}
