package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/qorikusi/storefront/internal/domain/product"
)

// ListCategories returns every category.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.categories.List(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	if cats == nil {
		cats = []product.Category{}
	}
	respondJSON(w, r, http.StatusOK, cats)
}

// CreateCategory adds a category.
func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req product.CategoryDraft
	if err := decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	c, err := h.categories.Create(r.Context(), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusCreated, c)
}

// RenameCategory changes the name of a category.
func (h *Handler) RenameCategory(w http.ResponseWriter, r *http.Request) {
	id, err := categoryID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req product.CategoryDraft
	if err := decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	c, err := h.categories.Rename(r.Context(), id, req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, c)
}

// DeleteCategory removes a category.
func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := categoryID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.categories.Delete(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func categoryID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		return 0, &badRequestError{msg: "The category id must be a positive number."}
	}
	return id, nil
}
