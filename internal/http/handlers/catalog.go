package handlers

import (
	"net/http"
	"regexp"
	"strconv"

	"github.com/go-chi/chi/v5"

	"studio/internal/catalog"
	"studio/internal/domain"
)

const (
	cartSessionHeader = "X-Cart-Session"
	defaultSearchSize = 10
	maxSearchSize     = 50
)

var cartSessionPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{8,64}$`)

func (a *App) CatalogSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := defaultSearchSize
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			a.error(w, r, http.StatusBadRequest, "bad_request", "limit must be a positive number")
			return
		}
		limit = min(n, maxSearchSize)
	}
	results := a.Catalog.Search(q.Get("q"), q.Get("category"), limit)
	if results == nil {
		results = []catalog.Match{}
	}
	a.json(w, http.StatusOK, map[string]any{
		"results":    results,
		"categories": a.Catalog.Categories(),
	})
}

// cartSession keys the cart by the X-Cart-Session header, falling back to
// the signed-in user so a shopper keeps one cart across devices.
func (a *App) cartSession(r *http.Request) string {
	if s := r.Header.Get(cartSessionHeader); cartSessionPattern.MatchString(s) {
		return s
	}
	return "user:" + a.currentUserID(r)
}

func (a *App) CartGet(w http.ResponseWriter, r *http.Request) {
	sum, err := a.Cart.Get(r.Context(), a.cartSession(r))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, sum)
}

type cartReplaceRequest struct {
	Items []domain.CartItem `json:"items"`
}

func (a *App) CartReplace(w http.ResponseWriter, r *http.Request) {
	var req cartReplaceRequest
	if !a.decode(w, r, &req) {
		return
	}
	sum, err := a.Cart.Replace(r.Context(), a.cartSession(r), req.Items)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, sum)
}

type cartAddRequest struct {
	ProductID string `json:"product_id"`
	Color     string `json:"color"`
	Quantity  int    `json:"quantity"`
}

func (a *App) CartAdd(w http.ResponseWriter, r *http.Request) {
	var req cartAddRequest
	if !a.decode(w, r, &req) {
		return
	}
	sum, err := a.Cart.Add(r.Context(), a.cartSession(r), req.ProductID, req.Color, req.Quantity)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, sum)
}

func (a *App) CartRemove(w http.ResponseWriter, r *http.Request) {
	sum, err := a.Cart.Remove(r.Context(), a.cartSession(r), chi.URLParam(r, "itemID"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, sum)
}

func (a *App) CartCheckout(w http.ResponseWriter, r *http.Request) {
	receipt, err := a.Cart.Checkout(r.Context(), a.cartSession(r))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, receipt)
}
