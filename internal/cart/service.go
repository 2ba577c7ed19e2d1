package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"studio/internal/domain"
	"studio/internal/infra"
)

var (
	ErrUnknownProduct = errors.New("unknown product")
	ErrUnknownColor   = errors.New("color not available for product")
	ErrEmptyCart      = errors.New("cart is empty")
)

// Products resolves catalog entries.
type Products interface {
	Product(id string) (domain.Product, bool)
}

// Summary is the cart with its totals.
type Summary struct {
	Items    []domain.CartItem `json:"items"`
	Count    int               `json:"count"`
	Subtotal float64           `json:"subtotal"`
}

// Receipt is what a checkout hands to the payment step.
type Receipt struct {
	OrderID string `json:"order_id"`
	Summary
}

type Service struct {
	store    Store
	products Products
	logger   *infra.Logger
}

func NewService(store Store, products Products, logger *infra.Logger) *Service {
	return &Service{store: store, products: products, logger: infra.NopLogger(logger)}
}

// Add puts qty units of a product into the cart. Lines are merged by product
// and colour; an empty colour picks the product's first one.
func (s *Service) Add(ctx context.Context, sessionID, productID, color string, qty int) (Summary, error) {
	if qty <= 0 {
		qty = 1
	}
	p, ok := s.products.Product(productID)
	if !ok {
		return Summary{}, fmt.Errorf("%w: %s", ErrUnknownProduct, productID)
	}
	color, err := resolveColor(p, color)
	if err != nil {
		return Summary{}, err
	}

	items, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return Summary{}, err
	}
	merged := false
	for i := range items {
		if items[i].ProductID == p.ID && strings.EqualFold(items[i].Color, color) {
			items[i].Quantity += qty
			merged = true
			break
		}
	}
	if !merged {
		items = append(items, domain.CartItem{
			ID:        uuid.NewString(),
			ProductID: p.ID,
			Name:      p.Name,
			Color:     color,
			Quantity:  qty,
			UnitPrice: p.Price,
		})
	}
	if err := s.store.Save(ctx, sessionID, items); err != nil {
		return Summary{}, err
	}
	s.logger.Debug().Str("session_id", sessionID).Str("product_id", p.ID).Int("qty", qty).Msg("cart: item added")
	return summarize(items), nil
}

// ChangeColor moves a cart line to another colour of the same product,
// merging with an existing line of that colour.
func (s *Service) ChangeColor(ctx context.Context, sessionID, productID, color string) (Summary, error) {
	p, ok := s.products.Product(productID)
	if !ok {
		return Summary{}, fmt.Errorf("%w: %s", ErrUnknownProduct, productID)
	}
	if !p.HasColor(color) {
		return Summary{}, fmt.Errorf("%w: %s in %s", ErrUnknownColor, p.Name, color)
	}
	color, _ = resolveColor(p, color)
	items, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return Summary{}, err
	}
	var out []domain.CartItem
	for _, it := range items {
		if it.ProductID == p.ID {
			it.Color = color
			if idx := indexOf(out, p.ID, color); idx >= 0 {
				out[idx].Quantity += it.Quantity
				continue
			}
		}
		out = append(out, it)
	}
	if err := s.store.Save(ctx, sessionID, out); err != nil {
		return Summary{}, err
	}
	return summarize(out), nil
}

// Remove deletes one cart line by its id.
func (s *Service) Remove(ctx context.Context, sessionID, itemID string) (Summary, error) {
	items, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return Summary{}, err
	}
	out := items[:0]
	for _, it := range items {
		if it.ID != itemID {
			out = append(out, it)
		}
	}
	if err := s.store.Save(ctx, sessionID, out); err != nil {
		return Summary{}, err
	}
	return summarize(out), nil
}

// Replace overwrites the cart with items, dropping unknown products.
func (s *Service) Replace(ctx context.Context, sessionID string, items []domain.CartItem) (Summary, error) {
	var out []domain.CartItem
	for _, it := range items {
		p, ok := s.products.Product(it.ProductID)
		if !ok || it.Quantity <= 0 {
			continue
		}
		color, err := resolveColor(p, it.Color)
		if err != nil {
			return Summary{}, err
		}
		if idx := indexOf(out, p.ID, color); idx >= 0 {
			out[idx].Quantity += it.Quantity
			continue
		}
		id := it.ID
		if id == "" {
			id = uuid.NewString()
		}
		out = append(out, domain.CartItem{ID: id, ProductID: p.ID, Name: p.Name, Color: color, Quantity: it.Quantity, UnitPrice: p.Price})
	}
	if err := s.store.Save(ctx, sessionID, out); err != nil {
		return Summary{}, err
	}
	return summarize(out), nil
}

func (s *Service) Get(ctx context.Context, sessionID string) (Summary, error) {
	items, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return Summary{}, err
	}
	return summarize(items), nil
}

// Checkout returns the totals and empties the cart.
func (s *Service) Checkout(ctx context.Context, sessionID string) (Receipt, error) {
	items, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return Receipt{}, err
	}
	if len(items) == 0 {
		return Receipt{}, ErrEmptyCart
	}
	if err := s.store.Save(ctx, sessionID, nil); err != nil {
		return Receipt{}, err
	}
	r := Receipt{OrderID: uuid.NewString(), Summary: summarize(items)}
	s.logger.Info().Str("session_id", sessionID).Str("order_id", r.OrderID).Float64("subtotal", r.Subtotal).Msg("cart: checked out")
	return r, nil
}

func resolveColor(p domain.Product, color string) (string, error) {
	color = strings.TrimSpace(color)
	if color == "" {
		if len(p.Colors) > 0 {
			return p.Colors[0], nil
		}
		return "", nil
	}
	for _, c := range p.Colors {
		if strings.EqualFold(c, color) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %s in %s", ErrUnknownColor, p.Name, color)
}

func indexOf(items []domain.CartItem, productID, color string) int {
	for i, it := range items {
		if it.ProductID == productID && strings.EqualFold(it.Color, color) {
			return i
		}
	}
	return -1
}

func summarize(items []domain.CartItem) Summary {
	s := Summary{Items: items}
	if s.Items == nil {
		s.Items = []domain.CartItem{}
	}
	for _, it := range items {
		s.Count += it.Quantity
		s.Subtotal += float64(it.Quantity) * it.UnitPrice
	}
	return s
}
