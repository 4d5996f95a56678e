package pricing

import (
	"math"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/fossodjateng-gif/afrofood-app/internal/models"
)

// Fallback unit prices in EUR for catalog items that arrive without an
// explicit price.
var fallbackPriceByID = map[string]float64{
	"ingwersaft":                            5,
	"hibiskussaft":                          5,
	"puff-puff-1":                           5,
	"plantain-chips":                        5,
	"bhb-1-2-kamerun-veganer-teller":        15,
	"attieke-poulet-2-elfenbeinkuste":       15,
	"batbout-mit-hahnchenfullung-2-marokko": 15,
	"pollo-fino-2":                          10,
	"bh-1-2":                                10,
	"batbout-mit-bohnenfullung-2":           10,
}

// The first dip unit across the whole ticket is free, every further unit is
// charged this flat surcharge.
const dipUnitSurchargeEUR = 1.0

// normalizeName folds an item name for fuzzy matching: accents stripped,
// lowercased, runs of non-alphanumerics collapsed to single spaces.
func normalizeName(name string) string {
	decomposed := norm.NFD.String(name)

	var b strings.Builder

	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}

		r = unicode.ToLower(r)

		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// isDipItem classifies dip sauces by id prefix, falling back to fuzzy name
// matching against the known dip-sauce names.
func isDipItem(item models.OrderItem) bool {
	if strings.HasPrefix(item.ID, "dip-") {
		return true
	}

	normalized := normalizeName(item.Name)

	return strings.Contains(normalized, "sauce") &&
		(strings.Contains(normalized, "grune") || strings.Contains(normalized, "chili"))
}

// unitPrice resolves the EUR unit price of an item: explicit finite price
// wins, then the fallback table, then zero.
func unitPrice(item models.OrderItem) float64 {
	if item.Price != nil && !math.IsNaN(*item.Price) && !math.IsInf(*item.Price, 0) {
		return *item.Price
	}

	if price, ok := fallbackPriceByID[item.ID]; ok {
		return price
	}

	return 0
}

// TotalCents computes the total charge for a ticket in minor currency units.
// Items are walked in list order because the dip discount depends on how many
// dip units were already seen: only units beyond the first free one, counted
// across all dip items combined, are charged.
func TotalCents(items []models.OrderItem) int64 {
	dipQtySoFar := 0
	totalEUR := 0.0

	for _, item := range items {
		qty := item.Qty

		if qty <= 0 {
			continue
		}

		if isDipItem(item) {
			paidQty := max(0, dipQtySoFar+qty-1) - max(0, dipQtySoFar-1)
			totalEUR += float64(paidQty) * dipUnitSurchargeEUR
			dipQtySoFar += qty
			continue
		}

		totalEUR += unitPrice(item) * float64(qty)
	}

	return int64(math.Round(totalEUR * 100))
}
