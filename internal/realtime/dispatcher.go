package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"studio/internal/cart"
	"studio/internal/catalog"
	"studio/internal/domain"
	"studio/internal/infra"
)

// Action types surfaced to the UI.
const (
	ActionOpenCheckout       = "open_checkout"
	ActionStartVisualization = "start_visualization"
	ActionChangeColor        = "change_color"
	ActionCartUpdated        = "cart_updated"
)

// Action is a UI side effect produced by a function call.
type Action struct {
	Type      string        `json:"type"`
	ProductID string        `json:"product_id,omitempty"`
	Color     string        `json:"color,omitempty"`
	Cart      *cart.Summary `json:"cart,omitempty"`
}

// Products is the catalog surface the assistant may query.
type Products interface {
	FindByName(nameOrID string) (domain.Product, bool)
	Search(query, category string, limit int) []catalog.Match
	KnowledgeBase(topic string) []domain.KnowledgeEntry
}

// Cart is the cart surface the assistant may mutate.
type Cart interface {
	Add(ctx context.Context, sessionID, productID, color string, qty int) (cart.Summary, error)
	ChangeColor(ctx context.Context, sessionID, productID, color string) (cart.Summary, error)
	Get(ctx context.Context, sessionID string) (cart.Summary, error)
}

// Dispatcher runs assistant function calls against the local catalog and
// the shopper's cart.
type Dispatcher struct {
	Products  Products
	Cart      Cart
	SessionID string
	Logger    *infra.Logger
}

type productSummary struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Category string   `json:"category"`
	Price    float64  `json:"price"`
	Colors   []string `json:"colors,omitempty"`
	ImageURL string   `json:"image_url,omitempty"`
}

func summarize(p domain.Product) productSummary {
	return productSummary{ID: p.ID, Name: p.Name, Category: p.Category, Price: p.Price, Colors: p.Colors, ImageURL: p.ImageURL}
}

type errorOutput struct {
	Error string `json:"error"`
}

// Dispatch runs the named function. It never fails: problems are reported to
// the model as an {"error": ...} output.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, arguments json.RawMessage) (any, []Action) {
	logger := infra.NopLogger(d.Logger)
	var args struct {
		Query     string `json:"query"`
		Category  string `json:"category"`
		Limit     int    `json:"limit"`
		ProductID string `json:"product_id"`
		Color     string `json:"color"`
		Quantity  int    `json:"quantity"`
		Topic     string `json:"topic"`
	}
	if len(arguments) > 0 {
		if err := json.Unmarshal(arguments, &args); err != nil {
			logger.Warn().Err(err).Str("function", name).Msg("realtime: bad function arguments")
			return errorOutput{Error: "invalid arguments"}, nil
		}
	}

	switch name {
	case FnRecommendProducts:
		matches := d.Products.Search(args.Query, args.Category, args.Limit)
		out := make([]productSummary, 0, len(matches))
		for _, m := range matches {
			out = append(out, summarize(m.Product))
		}
		return map[string]any{"products": out}, nil

	case FnAddToCart:
		p, ok := d.Products.FindByName(args.ProductID)
		if !ok {
			return errorOutput{Error: "product not found"}, nil
		}
		sum, err := d.Cart.Add(ctx, d.SessionID, p.ID, args.Color, args.Quantity)
		if err != nil {
			return d.cartError(err), nil
		}
		return map[string]any{"added": summarize(p), "cart": sum}, []Action{{Type: ActionCartUpdated, Cart: &sum}}

	case FnInitiateCheckout:
		sum, err := d.Cart.Get(ctx, d.SessionID)
		if err != nil {
			return d.cartError(err), nil
		}
		if len(sum.Items) == 0 {
			return errorOutput{Error: "cart is empty"}, nil
		}
		return map[string]any{"status": "checkout_opened", "cart": sum}, []Action{{Type: ActionOpenCheckout, Cart: &sum}}

	case FnStartVisualization:
		p, ok := d.Products.FindByName(args.ProductID)
		if !ok {
			return errorOutput{Error: "product not found"}, nil
		}
		color := args.Color
		if color != "" && !p.HasColor(color) {
			return errorOutput{Error: "color not available: " + color}, nil
		}
		if color == "" && len(p.Colors) > 0 {
			color = p.Colors[0]
		}
		return map[string]any{"status": "visualizing", "product": summarize(p), "color": color},
			[]Action{{Type: ActionStartVisualization, ProductID: p.ID, Color: color}}

	case FnChangeProductColor:
		p, ok := d.Products.FindByName(args.ProductID)
		if !ok {
			return errorOutput{Error: "product not found"}, nil
		}
		if !p.HasColor(args.Color) {
			return map[string]any{"error": "color not available", "available": p.Colors}, nil
		}
		actions := []Action{{Type: ActionChangeColor, ProductID: p.ID, Color: args.Color}}
		out := map[string]any{"status": "color_changed", "product_id": p.ID, "color": args.Color}
		sum, err := d.Cart.ChangeColor(ctx, d.SessionID, p.ID, args.Color)
		if err != nil {
			return d.cartError(err), nil
		}
		if inCart(sum, p.ID) {
			out["cart"] = sum
			actions = append(actions, Action{Type: ActionCartUpdated, Cart: &sum})
		}
		return out, actions

	case FnGetKnowledgeBase:
		entries := d.Products.KnowledgeBase(args.Topic)
		if len(entries) == 0 {
			return map[string]any{"answer": "", "found": false}, nil
		}
		answers := make([]string, 0, len(entries))
		for _, e := range entries {
			answers = append(answers, e.Answer)
		}
		return map[string]any{"answer": strings.Join(answers, "\n"), "found": true}, nil
	}

	logger.Warn().Str("function", name).Msg("realtime: unknown function")
	return errorOutput{Error: "unknown function"}, nil
}

func inCart(sum cart.Summary, productID string) bool {
	for _, it := range sum.Items {
		if it.ProductID == productID {
			return true
		}
	}
	return false
}

func (d *Dispatcher) cartError(err error) errorOutput {
	switch {
	case errors.Is(err, cart.ErrUnknownProduct):
		return errorOutput{Error: "product not found"}
	case errors.Is(err, cart.ErrUnknownColor):
		return errorOutput{Error: "color not available"}
	}
	infra.NopLogger(d.Logger).Error().Err(err).Str("session_id", d.SessionID).Msg("realtime: cart operation failed")
	return errorOutput{Error: "cart unavailable"}
}
