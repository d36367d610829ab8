package calculator

import (
	"github.com/shopspring/decimal"

	"PBRSentinel/internal/model"
)

// TargetLevel returns the index level at which PBR would equal threshold,
// assuming book value stays fixed: close * threshold / pbr, rounded to 2 places.
// Missing when either input is missing or pbr is not positive.
func TargetLevel(close, pbr model.NullFloat, threshold float64) model.NullFloat {
	if !close.Valid || !pbr.Valid || pbr.Float <= 0 {
		return model.Missing()
	}
	c := decimal.NewFromFloat(close.Float)
	ratio := decimal.NewFromFloat(threshold).Div(decimal.NewFromFloat(pbr.Float))
	v, _ := c.Mul(ratio).Round(2).Float64()
	return model.Float(v)
}
