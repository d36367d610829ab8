package collector

import (
	"context"
	"time"

	"PBRSentinel/internal/model"
)

// Fetcher defines the interface for fetching index fundamentals.
type Fetcher interface {
	// ListIndices returns the provider's index catalog for a market.
	ListIndices(ctx context.Context, market string) ([]model.IndexRef, error)
	// FetchFundamentals returns daily close and PBR between from and to inclusive,
	// oldest first. Values are raw: zeros are not yet treated as missing.
	FetchFundamentals(ctx context.Context, ref model.IndexRef, from, to time.Time) ([]model.Observation, error)
	Name() string
}
