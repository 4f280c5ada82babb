// Package presets holds the indicator parameter catalogue and the default
// preset generator. The catalogue carries 60 parameter combinations the
// optimizer searches over; the generator produces a baseline preset for every
// symbol/timeframe/regime combination.
package presets

import (
	"fmt"

	"cascadeBot/internal/domain"
)

// VariantCount is the size of the parameter catalogue.
const VariantCount = 60

// The 60 parameter combinations. The first 26 rows are the base set, the
// rest extend the search space toward slower channels and wider bands.
var (
	variantI1 = []int{40, 50, 55, 60, 65, 70, 80, 90, 60, 55, 50, 45, 40, 35, 30, 150, 150, 200, 40, 200, 200, 200, 30, 20, 40, 15, 100, 110, 120, 130, 140, 160, 180, 100, 80, 75, 65, 55, 25, 18, 10, 12, 15, 20, 25, 30, 35, 75, 95, 180, 220, 250, 300, 320, 350, 400, 450, 500, 260, 280}
	variantI2 = []int{10, 11, 12, 14, 14, 14, 14, 15, 16, 16, 15, 16, 15, 15, 14, 14, 14, 14, 13, 14, 14, 14, 14, 14, 14, 14, 14, 14, 14, 14, 14, 14, 14, 16, 12, 13, 12, 13, 13, 12, 8, 9, 10, 12, 14, 16, 18, 20, 21, 22, 18, 20, 14, 16, 12, 8, 18, 20, 10, 14}
	variantI3 = []float64{0.3, 0.4, 0.5, 0.6, 0.8, 0.9, 1.0, 1.1, 1.2, 1.3, 1.4, 1.5, 1.6, 1.6, 1.7, 1.8, 2.0, 2.1, 1.1, 1.2, 1.4, 1.6, 2.3, 2.5, 2.7, 3.0, 1.05, 1.15, 1.25, 1.35, 1.45, 1.55, 1.65, 1.35, 0.65, 0.75, 0.55, 1.0, 2.0, 2.7, 0.2, 0.25, 0.35, 0.45, 0.6, 0.7, 0.85, 1.1, 1.3, 1.6, 1.9, 2.2, 2.6, 2.9, 3.2, 3.5, 4.0, 1.05, 0.55, 2.4}
	variantI4 = []float64{1.0, 1.1, 1.2, 1.3, 1.4, 1.5, 1.6, 1.7, 1.5, 1.6, 1.7, 1.8, 1.8, 1.9, 2.0, 2.2, 2.4, 2.6, 1.0, 1.6, 1.8, 2.0, 2.6, 3.0, 3.2, 3.5, 1.75, 1.85, 1.95, 2.05, 2.15, 2.25, 2.35, 1.9, 1.4, 1.5, 1.35, 1.55, 2.4, 3.1, 0.9, 1.0, 1.15, 1.25, 1.4, 1.55, 1.7, 1.85, 2.0, 2.2, 2.4, 2.6, 2.9, 3.1, 3.3, 3.5, 4.0, 1.35, 1.6, 2.8}
	variantI5 = []float64{1.0, 1.1, 1.2, 1.3, 1.4, 1.5, 1.6, 1.7, 1.5, 1.6, 1.7, 1.8, 1.8, 1.9, 1.5, 1.3, 1.5, 1.8, 1.0, 2.1, 2.4, 2.0, 2.6, 3.0, 3.2, 3.5, 1.75, 1.85, 1.75, 1.65, 1.55, 1.45, 1.55, 1.9, 1.25, 1.35, 1.15, 1.55, 2.2, 3.0, 0.8, 1.0, 1.2, 1.4, 1.6, 1.8, 2.0, 2.2, 2.4, 2.6, 2.8, 3.0, 3.2, 3.5, 3.8, 4.0, 4.2, 1.5, 2.1, 3.6}
)

// Variant returns the catalogue entry at the given index (0 based).
func Variant(index int) (domain.IndicatorParams, error) {
	if index < 0 || index >= VariantCount {
		return domain.IndicatorParams{}, fmt.Errorf("variant index must be in [0,%d), got %d", VariantCount, index)
	}
	return domain.IndicatorParams{
		I1: variantI1[index],
		I2: variantI2[index],
		I3: variantI3[index],
		I4: variantI4[index],
		I5: variantI5[index],
	}, nil
}

// AllVariants returns the full catalogue, in index order.
func AllVariants() []domain.IndicatorParams {
	out := make([]domain.IndicatorParams, VariantCount)
	for i := range out {
		out[i], _ = Variant(i)
	}
	return out
}
