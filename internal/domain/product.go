package domain

import "strings"

// Product is one entry of the storefront catalog.
type Product struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags,omitempty"`
	Colors      []string `json:"colors,omitempty"`
	Price       float64  `json:"price"`
	ImageURL    string   `json:"image_url,omitempty"`
}

// HasColor reports whether the product is offered in the given colour (case-insensitive).
func (p Product) HasColor(color string) bool {
	for _, c := range p.Colors {
		if strings.EqualFold(strings.TrimSpace(c), strings.TrimSpace(color)) {
			return true
		}
	}
	return false
}

// CartItem is one line of a shopping cart.
type CartItem struct {
	ID        string  `json:"id"`
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Color     string  `json:"color,omitempty"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

// KnowledgeEntry is an FAQ answer the assistant can quote.
type KnowledgeEntry struct {
	Topic    string   `json:"topic"`
	Keywords []string `json:"keywords,omitempty"`
	Answer   string   `json:"answer"`
}
