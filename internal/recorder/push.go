package recorder

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const jobName = "pbr_sentinel"

// PushRecorder pushes run gauges to a Prometheus Pushgateway, grouped by index.
// It uses POST so the last-success gauge survives failed runs.
type PushRecorder struct {
	URL   string
	Index string

	pbr         prometheus.Gauge
	close       prometheus.Gauge
	alert       prometheus.Gauge
	messages    prometheus.Gauge
	duration    prometheus.Gauge
	lastRun     prometheus.Gauge
	lastSuccess prometheus.Gauge
	outcome     *prometheus.GaugeVec
}

// NewPushRecorder builds the gauges for the given index.
func NewPushRecorder(url, index string) *PushRecorder {
	return &PushRecorder{
		URL:         url,
		Index:       index,
		pbr:         gauge("pbr_latest", "Latest price-to-book ratio of the index."),
		close:       gauge("index_close_latest", "Latest closing level of the index."),
		alert:       gauge("alert_triggered", "1 when the threshold alert was sent in the last run."),
		messages:    gauge("messages_sent", "Messages delivered in the last run."),
		duration:    gauge("run_duration_seconds", "Wall time of the last run."),
		lastRun:     gauge("last_run_timestamp_seconds", "Unix time the last run started."),
		lastSuccess: gauge("last_success_timestamp_seconds", "Unix time of the last run that delivered its messages."),
		outcome: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: jobName,
			Name:      "run_outcome",
			Help:      "1 for the outcome of the last run; stage names the step that failed.",
		}, []string{"outcome", "stage"}),
	}
}

func gauge(name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: jobName, Name: name, Help: help})
}

func (r *PushRecorder) RecordRun(ctx context.Context, rec *RunRecord) error {
	pusher := push.New(r.URL, jobName).Grouping("index", r.Index)

	if rec.HasPBR {
		r.pbr.Set(rec.LatestPBR)
		pusher.Collector(r.pbr)
	}
	if rec.HasClose {
		r.close.Set(rec.LatestClose)
		pusher.Collector(r.close)
	}
	if rec.Alerted {
		r.alert.Set(1)
	} else {
		r.alert.Set(0)
	}
	r.messages.Set(float64(rec.Messages))
	r.duration.Set(rec.Duration.Seconds())
	r.lastRun.Set(float64(rec.StartedAt.Unix()))
	pusher.Collector(r.alert).Collector(r.messages).Collector(r.duration).Collector(r.lastRun)

	if rec.Outcome == OutcomeSent {
		r.lastSuccess.Set(float64(rec.StartedAt.Unix()))
		pusher.Collector(r.lastSuccess)
	}
	r.outcome.Reset()
	r.outcome.WithLabelValues(string(rec.Outcome), rec.Stage).Set(1)
	pusher.Collector(r.outcome)

	if err := pusher.AddContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
