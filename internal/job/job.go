// Package job runs the PBR notification pipeline once.
package job

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"PBRSentinel/internal/calculator"
	"PBRSentinel/internal/calendar"
	"PBRSentinel/internal/collector"
	"PBRSentinel/internal/model"
	"PBRSentinel/internal/notifier"
	"PBRSentinel/internal/recorder"
	"PBRSentinel/internal/strategy"
)

// Runner holds the explicit configuration and collaborators of one run.
type Runner struct {
	Collector    *collector.Collector
	Sender       notifier.Sender
	Calendar     *calendar.Calendar
	Recorder     recorder.Recorder
	Thresholds   model.Thresholds
	HistoryYears int
	ForceRun     bool
	IndexLabel   string

	Now    func() time.Time
	Stdout io.Writer
}

// Result is what a run produced.
type Result struct {
	RunID      string
	Skipped    bool
	SkipReason string
	Summary    *model.Summary
	Signal     *model.AlertSignal
	Messages   []string // rendered messages, in delivery order
	Sent       int
}

// Run executes gate → resolve → fetch → summarize → evaluate → render → deliver.
// Any error aborts the run; nothing is retried. A skipped day makes no network calls,
// the recorder included.
func (r *Runner) Run(ctx context.Context) (res *Result, err error) {
	now := r.now()
	res = &Result{RunID: uuid.NewString()}
	logger := log.With().Str("run_id", res.RunID).Logger()
	stage := "gate"

	defer func() {
		r.record(ctx, logger, res, now, stage, err)
	}()

	today := r.Calendar.Today(now)
	if ok, reason := r.Calendar.IsBusinessDay(now); !ok {
		if !r.ForceRun {
			res.Skipped, res.SkipReason = true, reason
			fmt.Fprintf(r.stdout(), "[SKIP] %s is not a KR business day (%s)\n", notifier.FormatDate(today), reason)
			return res, nil
		}
		logger.Info().Str("reason", reason).Msg("not a business day, FORCE_RUN set; continuing")
	}

	stage = "collect"
	from := today.AddDate(-r.HistoryYears, 0, 0)
	series, err := r.Collector.Collect(ctx, from, today)
	if err != nil {
		return res, err
	}
	logger.Info().
		Str("index", series.Index.Key()).
		Str("id", series.Index.ID).
		Int("observations", series.Len()).
		Msg("series collected")

	stage = "summarize"
	sum, err := calculator.Summarize(series)
	if err != nil {
		return res, fmt.Errorf("summarize %s: %w", series.Index.Key(), err)
	}
	res.Summary = sum
	res.Signal = strategy.Evaluate(sum, r.Thresholds)

	in := notifier.ReportInput{
		IndexName:  r.IndexLabel,
		Summary:    sum,
		Signal:     res.Signal,
		Thresholds: r.Thresholds,
		Years:      r.HistoryYears,
		RunAt:      now,
		KST:        r.Calendar.Location(),
	}
	res.Messages = append(res.Messages, notifier.FormatStatusReport(in))
	if res.Signal.Triggered {
		res.Messages = append(res.Messages, notifier.FormatAlert(in))
	}
	logger.Info().
		Str("date", notifier.FormatDate(sum.LatestDate)).
		Str("pbr", notifier.Two(sum.LatestPBR)).
		Str("mean", notifier.Two(sum.MeanPBR)).
		Bool("alert", res.Signal.Triggered).
		Msg("summary computed")

	stage = "deliver"
	for i, msg := range res.Messages {
		if err := r.Sender.Send(ctx, msg); err != nil {
			return res, fmt.Errorf("deliver message %d/%d: %w", i+1, len(res.Messages), err)
		}
		res.Sent++
	}
	stage = ""
	logger.Info().Int("sent", res.Sent).Msg("run complete")
	return res, nil
}

func (r *Runner) record(ctx context.Context, logger zerolog.Logger, res *Result, started time.Time, stage string, runErr error) {
	if r.Recorder == nil || (res.Skipped && runErr == nil) {
		return
	}
	rec := &recorder.RunRecord{
		Outcome:   recorder.OutcomeSent,
		StartedAt: started,
		Duration:  r.now().Sub(started),
		Messages:  res.Sent,
	}
	if runErr != nil {
		rec.Outcome = recorder.OutcomeFailed
		rec.Stage = stage
	}
	if s := res.Summary; s != nil {
		rec.LatestPBR, rec.HasPBR = s.LatestPBR.Float, s.LatestPBR.Valid
		rec.LatestClose, rec.HasClose = s.LatestClose.Float, s.LatestClose.Valid
	}
	if res.Signal != nil {
		rec.Alerted = res.Signal.Triggered && res.Sent == len(res.Messages)
	}
	if err := r.Recorder.RecordRun(ctx, rec); err != nil {
		logger.Warn().Err(err).Msg("record run failed")
	}
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Runner) stdout() io.Writer {
	if r.Stdout != nil {
		return r.Stdout
	}
	return os.Stdout
}
