package model

import (
	"math"
	"time"
)

// NullFloat is a float that may be missing. The zero value is missing.
type NullFloat struct {
	Float float64
	Valid bool
}

// Float wraps v as a present value. NaN and ±Inf are stored as missing.
func Float(v float64) NullFloat {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return NullFloat{}
	}
	return NullFloat{Float: v, Valid: true}
}

// Missing returns an absent value.
func Missing() NullFloat { return NullFloat{} }

// NonZero treats a literal zero as missing, the provider's placeholder for "no data".
func (n NullFloat) NonZero() NullFloat {
	if !n.Valid || n.Float == 0 {
		return NullFloat{}
	}
	return n
}

// Observation is one trading day of index fundamentals.
type Observation struct {
	Date  time.Time
	Close NullFloat
	PBR   NullFloat
}

// Series holds an index's daily fundamentals, oldest first.
type Series struct {
	Index        IndexRef
	Observations []Observation
	From         time.Time
	To           time.Time
	FetchedAt    time.Time
}

// Len returns the number of observations.
func (s *Series) Len() int { return len(s.Observations) }

// Last returns the most recent observation.
func (s *Series) Last() (Observation, bool) {
	if len(s.Observations) == 0 {
		return Observation{}, false
	}
	return s.Observations[len(s.Observations)-1], true
}

// IndexRef identifies an index in the provider's catalog.
type IndexRef struct {
	Market string // "KOSPI"
	Name   string // "코스피"
	ID     string // "1001"

	// KRX splits the ID into a group and a short code ("1", "001").
	Group string
	Code  string
}

// Key is the "<market>:<name>" lookup key used against the catalog.
func (r IndexRef) Key() string { return r.Market + ":" + r.Name }
