package recorder

import (
	"context"
	"time"
)

// Outcome is how a run ended.
type Outcome string

const (
	OutcomeSent   Outcome = "SENT"
	OutcomeFailed Outcome = "FAILED"
)

// RunRecord describes one job run that got past the business-day gate.
// Skipped days are never recorded.
type RunRecord struct {
	Outcome     Outcome
	Stage       string // pipeline step that failed, empty otherwise
	StartedAt   time.Time
	Duration    time.Duration
	LatestPBR   float64
	HasPBR      bool
	LatestClose float64
	HasClose    bool
	Alerted     bool
	Messages    int
}

// Recorder publishes run outcomes. Implementations must not fail the run.
type Recorder interface {
	RecordRun(ctx context.Context, rec *RunRecord) error
}
