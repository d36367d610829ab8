package model

import "time"

// Summary holds the latest observation and the PBR statistics over the window.
type Summary struct {
	LatestDate  time.Time
	LatestClose NullFloat
	LatestPBR   NullFloat

	MeanPBR    NullFloat
	MinPBR     NullFloat
	MinPBRDate time.Time
	MaxPBR     NullFloat
	MaxPBRDate time.Time

	ValidPoints int // observations with a present PBR
	WindowStart time.Time
	WindowEnd   time.Time
}
