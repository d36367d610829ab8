package recorder

import "context"

// NoopRecorder is used when no Pushgateway is configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordRun(_ context.Context, _ *RunRecord) error { return nil }
