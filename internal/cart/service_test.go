package cart

import (
	"context"
	"errors"
	"testing"

	"studio/internal/domain"
)

type productMap map[string]domain.Product

func (m productMap) Product(id string) (domain.Product, bool) {
	p, ok := m[id]
	return p, ok
}

var testProducts = productMap{
	"tee":  {ID: "tee", Name: "Tee", Colors: []string{"White", "Black"}, Price: 100},
	"mug":  {ID: "mug", Name: "Mug", Price: 40},
	"tote": {ID: "tote", Name: "Tote", Colors: []string{"Natural"}, Price: 60},
}

func TestAddMergesByProductAndColor(t *testing.T) {
	svc := NewService(NewMemoryStore(), testProducts, nil)
	ctx := context.Background()

	if _, err := svc.Add(ctx, "s1", "tee", "black", 1); err != nil {
		t.Fatalf("Add returned error: %v", err)
	}
	if _, err := svc.Add(ctx, "s1", "tee", "Black", 2); err != nil {
		t.Fatalf("Add returned error: %v", err)
	}
	sum, err := svc.Add(ctx, "s1", "tee", "", 1)
	if err != nil {
		t.Fatalf("Add returned error: %v", err)
	}
	if len(sum.Items) != 2 {
		t.Fatalf("items = %+v, want two lines", sum.Items)
	}
	if sum.Items[0].Color != "Black" || sum.Items[0].Quantity != 3 {
		t.Fatalf("first line = %+v", sum.Items[0])
	}
	if sum.Items[1].Color != "White" || sum.Items[1].Quantity != 1 {
		t.Fatalf("second line = %+v", sum.Items[1])
	}
	if sum.Count != 4 || sum.Subtotal != 400 {
		t.Fatalf("count = %d subtotal = %v", sum.Count, sum.Subtotal)
	}
}

func TestAddRejectsUnknownProductAndColor(t *testing.T) {
	svc := NewService(NewMemoryStore(), testProducts, nil)
	if _, err := svc.Add(context.Background(), "s1", "hat", "", 1); !errors.Is(err, ErrUnknownProduct) {
		t.Fatalf("err = %v, want ErrUnknownProduct", err)
	}
	if _, err := svc.Add(context.Background(), "s1", "tee", "purple", 1); !errors.Is(err, ErrUnknownColor) {
		t.Fatalf("err = %v, want ErrUnknownColor", err)
	}
}

func TestChangeColorMergesLines(t *testing.T) {
	svc := NewService(NewMemoryStore(), testProducts, nil)
	ctx := context.Background()
	_, _ = svc.Add(ctx, "s1", "tee", "White", 1)
	_, _ = svc.Add(ctx, "s1", "tee", "Black", 2)
	_, _ = svc.Add(ctx, "s1", "mug", "", 1)

	sum, err := svc.ChangeColor(ctx, "s1", "tee", "black")
	if err != nil {
		t.Fatalf("ChangeColor returned error: %v", err)
	}
	if len(sum.Items) != 2 || sum.Items[0].Color != "Black" || sum.Items[0].Quantity != 3 {
		t.Fatalf("items = %+v", sum.Items)
	}
}

func TestCheckoutClearsCart(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store, testProducts, nil)
	ctx := context.Background()
	_, _ = svc.Add(ctx, "s1", "mug", "", 2)
	_, _ = svc.Add(ctx, "s1", "tote", "", 1)

	r, err := svc.Checkout(ctx, "s1")
	if err != nil {
		t.Fatalf("Checkout returned error: %v", err)
	}
	if r.OrderID == "" || r.Count != 3 || r.Subtotal != 140 {
		t.Fatalf("receipt = %+v", r)
	}
	left, _ := store.Load(ctx, "s1")
	if len(left) != 0 {
		t.Fatalf("cart not cleared: %+v", left)
	}
	if _, err := svc.Checkout(ctx, "s1"); !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("err = %v, want ErrEmptyCart", err)
	}
}

func TestReplaceDropsUnknownAndMerges(t *testing.T) {
	svc := NewService(NewMemoryStore(), testProducts, nil)
	sum, err := svc.Replace(context.Background(), "s1", []domain.CartItem{
		{ProductID: "tee", Color: "white", Quantity: 1},
		{ProductID: "ghost", Quantity: 5},
		{ProductID: "tee", Color: "White", Quantity: 2},
		{ProductID: "mug", Quantity: 0},
	})
	if err != nil {
		t.Fatalf("Replace returned error: %v", err)
	}
	if len(sum.Items) != 1 || sum.Items[0].Quantity != 3 || sum.Items[0].UnitPrice != 100 {
		t.Fatalf("items = %+v", sum.Items)
	}
}

func TestRemove(t *testing.T) {
	svc := NewService(NewMemoryStore(), testProducts, nil)
	sum, _ := svc.Add(context.Background(), "s1", "mug", "", 1)
	sum, err := svc.Remove(context.Background(), "s1", sum.Items[0].ID)
	if err != nil || len(sum.Items) != 0 || sum.Count != 0 {
		t.Fatalf("sum = %+v err = %v", sum, err)
	}
}
