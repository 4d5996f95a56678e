package pricing

import (
	"testing"

	"github.com/fossodjateng-gif/afrofood-app/internal/models"
)

func price(v float64) *float64 {
	return &v
}

func TestTotalCents_DipDiscountOrdering(t *testing.T) {
	items := []models.OrderItem{
		{ID: "dip-green", Name: "Grüne Sauce", Qty: 1},
		{ID: "dip-chili", Name: "Chili Sauce", Qty: 2},
		{ID: "burger", Name: "Burger", Qty: 1, Price: price(10)},
	}

	// first dip unit free, second and third charged at 1 EUR, burger at 10 EUR
	got := TotalCents(items)

	if got != 1200 {
		t.Fatalf("expected 1200 cents, got %d", got)
	}
}

func TestTotalCents_FirstDipFreeOnly(t *testing.T) {
	items := []models.OrderItem{
		{ID: "dip-green", Name: "Grüne Sauce", Qty: 1},
	}

	if got := TotalCents(items); got != 0 {
		t.Fatalf("single dip should be free, got %d", got)
	}
}

func TestTotalCents_DipDiscountSpansItems(t *testing.T) {
	// the free unit is consumed by the first dip item even when later dip
	// items arrive under a different id
	items := []models.OrderItem{
		{ID: "dip-chili", Name: "Chili Sauce", Qty: 3},
		{ID: "dip-green", Name: "Grüne Sauce", Qty: 2},
	}

	if got := TotalCents(items); got != 400 {
		t.Fatalf("expected 400 cents for 5 dips, got %d", got)
	}
}

func TestTotalCents_FallbackPrices(t *testing.T) {
	items := []models.OrderItem{
		{ID: "ingwersaft", Name: "Ingwersaft", Qty: 2},
		{ID: "pollo-fino-2", Name: "Pollo Fino", Qty: 1},
	}

	if got := TotalCents(items); got != 2000 {
		t.Fatalf("expected 2000 cents, got %d", got)
	}
}

func TestTotalCents_ExplicitPriceWinsOverFallback(t *testing.T) {
	items := []models.OrderItem{
		{ID: "ingwersaft", Name: "Ingwersaft", Qty: 1, Price: price(3.5)},
	}

	if got := TotalCents(items); got != 350 {
		t.Fatalf("expected 350 cents, got %d", got)
	}
}

func TestTotalCents_UnknownItemWithoutPriceIsZero(t *testing.T) {
	items := []models.OrderItem{
		{ID: "mystery", Name: "Mystery Box", Qty: 4},
	}

	if got := TotalCents(items); got != 0 {
		t.Fatalf("expected 0 cents, got %d", got)
	}
}

func TestTotalCents_NegativeAndZeroQuantitiesSkipped(t *testing.T) {
	items := []models.OrderItem{
		{ID: "ingwersaft", Name: "Ingwersaft", Qty: 0},
		{ID: "puff-puff-1", Name: "Puff Puff", Qty: -2},
		{ID: "plantain-chips", Name: "Plantain Chips", Qty: 1},
	}

	if got := TotalCents(items); got != 500 {
		t.Fatalf("expected 500 cents, got %d", got)
	}
}

func TestTotalCents_RoundsHalfUp(t *testing.T) {
	items := []models.OrderItem{
		{Name: "Taster", Qty: 3, Price: price(0.115)}, // 0.345 EUR -> 35 cents
	}

	if got := TotalCents(items); got != 35 {
		t.Fatalf("expected 35 cents, got %d", got)
	}
}

func TestIsDipItem_FuzzyNameMatch(t *testing.T) {
	cases := []struct {
		item models.OrderItem
		want bool
	}{
		{models.OrderItem{ID: "dip-unknown", Name: "whatever"}, true},
		{models.OrderItem{Name: "Grüne Sauce"}, true},
		{models.OrderItem{Name: "CHILI-SAUCE scharf"}, true},
		{models.OrderItem{Name: "Sauce Hollandaise"}, false},
		{models.OrderItem{Name: "Chili con Carne"}, false},
		{models.OrderItem{ID: "burger", Name: "Burger"}, false},
	}

	for _, tc := range cases {
		if got := isDipItem(tc.item); got != tc.want {
			t.Fatalf("isDipItem(%q/%q) = %v, want %v", tc.item.ID, tc.item.Name, got, tc.want)
		}
	}
}

func TestNormalizeName(t *testing.T) {
	if got := normalizeName("  Grüne   Sauce! "); got != "grune sauce" {
		t.Fatalf("unexpected normalization: %q", got)
	}
}
