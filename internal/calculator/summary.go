package calculator

import (
	"errors"

	"PBRSentinel/internal/model"
)

// ErrEmptySeries is returned when there is no observation to summarize.
var ErrEmptySeries = errors.New("series has no observations")

// Summarize extracts the latest observation and computes mean/min/max PBR over
// the whole series. The series must already be normalized.
func Summarize(series *model.Series) (*model.Summary, error) {
	last, ok := series.Last()
	if !ok {
		return nil, ErrEmptySeries
	}

	sum := &model.Summary{
		LatestDate:  last.Date,
		LatestClose: last.Close,
		LatestPBR:   last.PBR,
		WindowStart: series.Observations[0].Date,
		WindowEnd:   last.Date,
	}

	mean, n := MeanPBR(series.Observations)
	sum.ValidPoints = n
	if n == 0 {
		return sum, nil
	}
	sum.MeanPBR = model.Float(mean)

	low, high, found := PBRRange(series.Observations)
	sum.MinPBR = low.PBR
	sum.MinPBRDate = dateOrZero(low, found)
	sum.MaxPBR = high.PBR
	sum.MaxPBRDate = dateOrZero(high, found)
	return sum, nil
}
