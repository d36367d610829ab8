package collector

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"PBRSentinel/internal/model"
)

// LookupError is returned when the configured index name is not in the catalog.
type LookupError struct {
	Key        string
	Candidates []string
}

func (e *LookupError) Error() string {
	if len(e.Candidates) == 0 {
		return fmt.Sprintf("index %q not found in catalog", e.Key)
	}
	return fmt.Sprintf("index %q not found in catalog (did you mean: %s)", e.Key, strings.Join(e.Candidates, ", "))
}

const maxCandidates = 5

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	Catalog      []model.IndexRef
	Observations []model.Observation
	Err          error

	ListCalls  int
	FetchCalls int
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) ListIndices(_ context.Context, market string) ([]model.IndexRef, error) {
	m.ListCalls++
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Catalog != nil {
		return m.Catalog, nil
	}
	return []model.IndexRef{{Market: market, Name: "코스피", ID: "1001", Group: "1", Code: "001"}}, nil
}

func (m *MockFetcher) FetchFundamentals(_ context.Context, _ model.IndexRef, from, to time.Time) ([]model.Observation, error) {
	m.FetchCalls++
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Observations != nil {
		return m.Observations, nil
	}
	return generateMockSeries(from, to), nil
}

// generateMockSeries produces one weekday observation per day with a slow PBR drift.
func generateMockSeries(from, to time.Time) []model.Observation {
	var out []model.Observation
	i := 0
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		pbr := 0.95 + 0.15*float64(i%200-100)/100
		out = append(out, model.Observation{
			Date:  d,
			Close: model.Float(2500 * pbr / 0.95),
			PBR:   model.Float(pbr),
		})
		i++
	}
	return out
}

// Normalize treats literal zero close or PBR values as missing.
func Normalize(obs []model.Observation) []model.Observation {
	out := make([]model.Observation, len(obs))
	for i, o := range obs {
		out[i] = model.Observation{
			Date:  o.Date,
			Close: o.Close.NonZero(),
			PBR:   o.PBR.NonZero(),
		}
	}
	return out
}

// Collector resolves the configured index and fetches its normalized series.
type Collector struct {
	Fetcher Fetcher
	Market  string
	Name    string
}

// NewCollector creates a new Collector.
func NewCollector(fetcher Fetcher, market, name string) *Collector {
	return &Collector{Fetcher: fetcher, Market: market, Name: name}
}

// Resolve looks up the index by "<market>:<name>" in the provider catalog.
func (c *Collector) Resolve(ctx context.Context) (model.IndexRef, error) {
	catalog, err := c.Fetcher.ListIndices(ctx, c.Market)
	if err != nil {
		return model.IndexRef{}, fmt.Errorf("list indices: %w", err)
	}
	key := model.IndexRef{Market: c.Market, Name: c.Name}.Key()
	byKey := make(map[string]model.IndexRef, len(catalog))
	for _, ref := range catalog {
		byKey[ref.Key()] = ref
	}
	if ref, ok := byKey[key]; ok {
		return ref, nil
	}
	return model.IndexRef{}, &LookupError{Key: key, Candidates: nearMatches(c.Name, catalog)}
}

// Collect resolves the index and returns its normalized series between from and to.
func (c *Collector) Collect(ctx context.Context, from, to time.Time) (*model.Series, error) {
	ref, err := c.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("index", ref.Key()).Str("id", ref.ID).Msg("index resolved")

	raw, err := c.Fetcher.FetchFundamentals(ctx, ref, from, to)
	if err != nil {
		return nil, fmt.Errorf("fetch fundamentals %s: %w", ref.ID, err)
	}
	sort.SliceStable(raw, func(i, j int) bool { return raw[i].Date.Before(raw[j].Date) })

	return &model.Series{
		Index:        ref,
		Observations: Normalize(raw),
		From:         from,
		To:           to,
		FetchedAt:    time.Now(),
	}, nil
}

// nearMatches returns catalog names that contain the query or are contained in it,
// falling back to names sharing the query's first rune.
func nearMatches(name string, catalog []model.IndexRef) []string {
	q := strings.ToLower(strings.TrimSpace(name))
	var strong, weak []string
	seen := make(map[string]bool)
	for _, ref := range catalog {
		n := strings.ToLower(ref.Name)
		if seen[ref.Key()] || n == "" || q == "" {
			continue
		}
		seen[ref.Key()] = true
		switch {
		case strings.Contains(n, q) || strings.Contains(q, n):
			strong = append(strong, ref.Key())
		case []rune(n)[0] == []rune(q)[0]:
			weak = append(weak, ref.Key())
		}
	}
	sort.Strings(strong)
	sort.Strings(weak)
	out := append(strong, weak...)
	if len(out) > maxCandidates {
		out = out[:maxCandidates]
	}
	return out
}
