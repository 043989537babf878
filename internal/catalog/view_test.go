package catalog_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

func int64Ptr(v int64) *int64 { return &v }

func seedCatalog(t *testing.T) *memory.CatalogStore {
	t.Helper()

	store := memory.NewCatalogStore()
	now := time.Now().UTC()
	products := []domain.Product{
		{
			ID: "simple", Shape: domain.ProductShapeSimple, Name: "Thé vert", BasePriceMinor: 100,
			Quantity: 5, MainPicture: "https://cdn/simple.jpg", CreatedAt: now,
		},
		{
			ID: "discounted", Shape: domain.ProductShapeSimple, Name: "Dattes", BasePriceMinor: 500,
			Discount: &domain.Discount{PriceMinor: 400, ExpiresAt: now.Add(time.Hour)}, Quantity: 10, CreatedAt: now,
		},
		{
			ID: "variable", Shape: domain.ProductShapeVariable, Name: "Melhfa", BasePriceMinor: 1000,
			MainPicture: "https://cdn/variable.jpg",
			Variants: []domain.Variant{
				{ID: "red-s", SKU: "REDS0001", Attributes: domain.VariantAttributes{Color: "red", Size: "S"}, Quantity: 2},
				{ID: "red-m", SKU: "REDM0001", Attributes: domain.VariantAttributes{Color: "red", Size: "M"}, Quantity: 0},
				{ID: "blue-s", SKU: "BLUS0001", Attributes: domain.VariantAttributes{Color: "blue", Size: "S"}, Quantity: 4, PriceMinor: int64Ptr(1200), MainPicture: "https://cdn/blue.jpg"},
			},
			CreatedAt: now,
		},
	}
	for _, p := range products {
		if err := store.Create(context.Background(), p); err != nil {
			t.Fatalf("seed %s: %v", p.ID, err)
		}
	}
	return store
}

func TestView_ResolveLine(t *testing.T) {
	t.Parallel()

	view := catalog.NewView(seedCatalog(t), nil)

	tests := []struct {
		name      string
		productID string
		qty       int32
		sel       domain.VariantSelector
		wantErr   error
		wantKey   domain.StockKey
		wantPrice int64
		wantSKU   string
		wantPic   string
	}{
		{
			name: "simple product ignores selector", productID: "simple", qty: 3,
			sel:     domain.VariantSelector{VariantID: "whatever"},
			wantKey: domain.StockKey{ProductID: "simple"}, wantPrice: 100, wantPic: "https://cdn/simple.jpg",
		},
		{
			name: "simple product with active discount", productID: "discounted", qty: 1,
			wantKey: domain.StockKey{ProductID: "discounted"}, wantPrice: 400,
		},
		{
			name: "variant by id", productID: "variable", qty: 2,
			sel:     domain.VariantSelector{VariantID: "red-s"},
			wantKey: domain.StockKey{ProductID: "variable", VariantID: "red-s"}, wantPrice: 1000, wantSKU: "REDS0001",
			wantPic: "https://cdn/variable.jpg",
		},
		{
			name: "variant by attributes with price override", productID: "variable", qty: 1,
			sel:     domain.VariantSelector{Attributes: &domain.VariantAttributes{Color: "blue", Size: "S"}},
			wantKey: domain.StockKey{ProductID: "variable", VariantID: "blue-s"}, wantPrice: 1200, wantSKU: "BLUS0001",
			wantPic: "https://cdn/blue.jpg",
		},
		{
			name: "id takes precedence over attributes", productID: "variable", qty: 1,
			sel:     domain.VariantSelector{VariantID: "red-s", Attributes: &domain.VariantAttributes{Color: "blue", Size: "S"}},
			wantKey: domain.StockKey{ProductID: "variable", VariantID: "red-s"}, wantPrice: 1000, wantSKU: "REDS0001",
			wantPic: "https://cdn/variable.jpg",
		},
		{name: "missing selector", productID: "variable", qty: 1, wantErr: domain.ErrVariantSelectorRequired},
		{
			name: "unknown variant", productID: "variable", qty: 1,
			sel: domain.VariantSelector{Attributes: &domain.VariantAttributes{Color: "green"}}, wantErr: domain.ErrVariantNotFound,
		},
		{
			name: "insufficient variant stock", productID: "variable", qty: 1,
			sel: domain.VariantSelector{VariantID: "red-m"}, wantErr: domain.ErrInsufficientStock,
		},
		{name: "insufficient simple stock", productID: "simple", qty: 6, wantErr: domain.ErrInsufficientStock},
		{name: "unknown product", productID: "nope", qty: 1, wantErr: domain.ErrProductNotFound},
		{name: "zero quantity", productID: "simple", qty: 0, wantErr: domain.ErrInvalidInput},
		{name: "empty product", productID: "", qty: 1, wantErr: domain.ErrInvalidInput},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			res, err := view.ResolveLine(context.Background(), tt.productID, tt.qty, tt.sel)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Slot.Key != tt.wantKey {
				t.Fatalf("key = %+v, want %+v", res.Slot.Key, tt.wantKey)
			}
			line := res.Line()
			if line.UnitPriceMinor != tt.wantPrice || line.TotalMinor != int64(tt.qty)*tt.wantPrice {
				t.Fatalf("unexpected pricing: %+v", line)
			}
			if line.SKU != tt.wantSKU || line.Picture != tt.wantPic {
				t.Fatalf("unexpected capture: %+v", line)
			}
			if tt.wantKey.VariantID != "" && line.Variant == nil {
				t.Fatal("variant attributes must be captured")
			}
		})
	}
}

func TestView_InsufficientStockCarriesContext(t *testing.T) {
	t.Parallel()

	view := catalog.NewView(seedCatalog(t), nil)
	_, err := view.ResolveLine(context.Background(), "simple", 9, domain.VariantSelector{})

	details, ok := domain.AsError(err)
	if !ok {
		t.Fatalf("expected structured error, got %v", err)
	}
	if details.Requested != 9 || details.Available != 5 || details.ResourceID != "simple" {
		t.Fatalf("unexpected error context: %+v", details)
	}
}

func TestLineResolution_LineIsDetachedFromSlot(t *testing.T) {
	t.Parallel()

	attrs := domain.VariantAttributes{Color: "red", Size: "S"}
	res := catalog.LineResolution{
		ProductID: "p", ProductName: "Melhfa", Quantity: 2,
		Slot: domain.StockSlot{Key: domain.StockKey{ProductID: "p", VariantID: "v"}, PriceMinor: 50, Attributes: &attrs},
	}
	line := res.Line()
	attrs.Color = "blue"

	if line.Variant.Color != "red" {
		t.Fatal("captured attributes must not alias the slot")
	}
	if line.StockKey() != res.Slot.Key {
		t.Fatalf("line key %+v differs from slot key", line.StockKey())
	}
}
