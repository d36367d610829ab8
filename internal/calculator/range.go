package calculator

import (
	"time"

	"PBRSentinel/internal/model"
)

// PBRRange scans the series for the lowest and highest valid PBR.
// Ties keep the earliest date. ok is false when no observation has a PBR.
func PBRRange(obs []model.Observation) (low, high model.Observation, ok bool) {
	for _, o := range obs {
		if !o.PBR.Valid {
			continue
		}
		if !ok {
			low, high, ok = o, o, true
			continue
		}
		if o.PBR.Float < low.PBR.Float {
			low = o
		}
		if o.PBR.Float > high.PBR.Float {
			high = o
		}
	}
	return low, high, ok
}

// MeanPBR averages the valid PBR values. Missing values are skipped, not counted as zero.
func MeanPBR(obs []model.Observation) (mean float64, n int) {
	sum := 0.0
	for _, o := range obs {
		if !o.PBR.Valid {
			continue
		}
		sum += o.PBR.Float
		n++
	}
	if n == 0 {
		return 0, 0
	}
	return sum / float64(n), n
}

func dateOrZero(o model.Observation, ok bool) time.Time {
	if !ok {
		return time.Time{}
	}
	return o.Date
}
