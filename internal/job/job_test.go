package job

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PBRSentinel/internal/calculator"
	"PBRSentinel/internal/calendar"
	"PBRSentinel/internal/collector"
	"PBRSentinel/internal/model"
	"PBRSentinel/internal/notifier"
	"PBRSentinel/internal/recorder"
	"PBRSentinel/internal/strategy"
)

type fakeSender struct {
	sent   []string
	failAt int // 1-based; 0 never fails
}

func (f *fakeSender) Send(_ context.Context, text string) error {
	if f.failAt == len(f.sent)+1 {
		return &notifier.DeliveryError{StatusCode: 502, Body: "bad gateway"}
	}
	f.sent = append(f.sent, text)
	return nil
}

type fakeRecorder struct {
	runs []*recorder.RunRecord
}

func (f *fakeRecorder) RecordRun(_ context.Context, rec *recorder.RunRecord) error {
	f.runs = append(f.runs, rec)
	return nil
}

func at(s string) time.Time {
	t, err := time.ParseInLocation("2006-01-02 15:04", s, calendar.KST())
	if err != nil {
		panic(err)
	}
	return t
}

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

// history ends on 2024-01-05 with close 2500.0 and PBR 0.80; one zero PBR sits in the middle.
func history() []model.Observation {
	return []model.Observation{
		{Date: date("2020-03-19"), Close: model.Float(1457.64), PBR: model.Float(0.61)},
		{Date: date("2021-06-25"), Close: model.Float(3302.84), PBR: model.Float(1.32)},
		{Date: date("2023-01-02"), Close: model.Float(2225.67), PBR: model.Float(0)},
		{Date: date("2024-01-04"), Close: model.Float(2587.02), PBR: model.Float(0.89)},
		{Date: date("2024-01-05"), Close: model.Float(2500.0), PBR: model.Float(0.80)},
	}
}

type fixture struct {
	fetcher  *collector.MockFetcher
	sender   *fakeSender
	recorder *fakeRecorder
	stdout   *bytes.Buffer
	runner   *Runner
}

func newFixture(t *testing.T, now time.Time, extraHolidays ...string) *fixture {
	t.Helper()
	cal, err := calendar.New(extraHolidays)
	require.NoError(t, err)

	f := &fixture{
		fetcher:  &collector.MockFetcher{Observations: history()},
		sender:   &fakeSender{},
		recorder: &fakeRecorder{},
		stdout:   &bytes.Buffer{},
	}
	f.runner = &Runner{
		Collector:    collector.NewCollector(f.fetcher, "KOSPI", "코스피"),
		Sender:       f.sender,
		Calendar:     cal,
		Recorder:     f.recorder,
		Thresholds:   strategy.DefaultThresholds,
		HistoryYears: 10,
		IndexLabel:   "KOSPI",
		Now:          func() time.Time { return now },
		Stdout:       f.stdout,
	}
	return f
}

func TestRun_AlertScenario(t *testing.T) {
	f := newFixture(t, at("2024-01-05 09:05"))

	res, err := f.runner.Run(context.Background())
	require.NoError(t, err)

	assert.False(t, res.Skipped)
	require.Len(t, f.sender.sent, 2, "status report plus alert")
	assert.Equal(t, res.Messages, f.sender.sent)
	assert.Contains(t, f.sender.sent[0], "[KOSPI PBR] 오전 리포트")
	assert.Contains(t, f.sender.sent[0], "PBR 0.84 도달 지수: 2,625.00")
	assert.Contains(t, f.sender.sent[1], "🚨 조건 충족! KOSPI PBR=0.80")
	assert.Contains(t, f.sender.sent[1], "2,625.00")
	assert.Equal(t, model.Float(2625.00), res.Signal.TargetLevel)

	// the zero PBR is missing, so it is neither the minimum nor part of the mean
	assert.Equal(t, 4, res.Summary.ValidPoints)
	assert.Equal(t, 0.61, res.Summary.MinPBR.Float)
	assert.InDelta(t, (0.61+1.32+0.89+0.80)/4, res.Summary.MeanPBR.Float, 1e-9)

	require.Len(t, f.recorder.runs, 1)
	assert.Equal(t, recorder.OutcomeSent, f.recorder.runs[0].Outcome)
	assert.True(t, f.recorder.runs[0].Alerted)
	assert.Equal(t, 2, f.recorder.runs[0].Messages)
	assert.Empty(t, f.stdout.String())
}

func TestRun_NoAlertSendsStatusOnly(t *testing.T) {
	f := newFixture(t, at("2024-01-05 15:40"))
	obs := history()
	obs[len(obs)-1].PBR = model.Float(1.05)
	f.fetcher.Observations = obs

	res, err := f.runner.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, f.sender.sent, 1)
	assert.Contains(t, f.sender.sent[0], "오후 리포트")
	assert.False(t, res.Signal.Triggered)
}

func TestRun_FetchWindow(t *testing.T) {
	var gotFrom, gotTo time.Time
	f := newFixture(t, at("2024-01-05 09:05"))
	f.runner.Collector = collector.NewCollector(&windowFetcher{MockFetcher: f.fetcher, from: &gotFrom, to: &gotTo}, "KOSPI", "코스피")

	_, err := f.runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2014-01-05", gotFrom.Format("2006-01-02"))
	assert.Equal(t, "2024-01-05", gotTo.Format("2006-01-02"))
}

type windowFetcher struct {
	*collector.MockFetcher
	from, to *time.Time
}

func (w *windowFetcher) FetchFundamentals(ctx context.Context, ref model.IndexRef, from, to time.Time) ([]model.Observation, error) {
	*w.from, *w.to = from, to
	return w.MockFetcher.FetchFundamentals(ctx, ref, from, to)
}

func TestRun_SkipsWeekend(t *testing.T) {
	for _, now := range []string{"2024-01-06 09:05", "2024-01-07 09:05"} {
		t.Run(now, func(t *testing.T) {
			f := newFixture(t, at(now))

			res, err := f.runner.Run(context.Background())
			require.NoError(t, err)

			assert.True(t, res.Skipped)
			assert.Equal(t, "weekend", res.SkipReason)
			assert.Zero(t, f.fetcher.ListCalls)
			assert.Zero(t, f.fetcher.FetchCalls)
			assert.Empty(t, f.sender.sent)
			assert.Equal(t, "[SKIP] "+now[:10]+" is not a KR business day (weekend)\n", f.stdout.String())
			assert.Empty(t, f.recorder.runs, "skipped days are not recorded")
		})
	}
}

func TestRun_SkipMakesNoNetworkCalls(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	f := newFixture(t, at("2024-01-06 09:05"))
	f.runner.Recorder = recorder.NewPushRecorder(srv.URL, "KOSPI")
	f.runner.Sender = notifier.NewTelegramNotifier(srv.URL, "123:abc", "-1001", "")

	res, err := f.runner.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Zero(t, hits.Load())
	assert.Zero(t, f.fetcher.ListCalls)
}

func TestRun_PushesOutcomeOnBusinessDay(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	f := newFixture(t, at("2024-01-05 09:05"))
	f.runner.Recorder = recorder.NewPushRecorder(srv.URL, "KOSPI")

	_, err := f.runner.Run(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, hits.Load())
}

func TestRun_SkipsConfiguredHoliday(t *testing.T) {
	f := newFixture(t, at("2024-01-05 09:05"), "2024-01-05")

	res, err := f.runner.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Zero(t, f.fetcher.ListCalls)
	assert.Empty(t, f.sender.sent)
	assert.Contains(t, f.stdout.String(), "[SKIP] 2024-01-05")
}

func TestRun_ForceRunBypassesGate(t *testing.T) {
	f := newFixture(t, at("2024-01-06 09:05"))
	f.runner.ForceRun = true

	res, err := f.runner.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, 1, f.fetcher.FetchCalls)
	assert.Len(t, f.sender.sent, 2)
	assert.Empty(t, f.stdout.String())
}

func TestRun_FirstDeliveryFailureAbortsRun(t *testing.T) {
	f := newFixture(t, at("2024-01-05 09:05"))
	f.sender.failAt = 1

	res, err := f.runner.Run(context.Background())

	var de *notifier.DeliveryError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, 502, de.StatusCode)
	assert.Empty(t, f.sender.sent, "alert must not be attempted after the report fails")
	assert.Len(t, res.Messages, 2)
	assert.Equal(t, recorder.OutcomeFailed, f.recorder.runs[0].Outcome)
	assert.Equal(t, "deliver", f.recorder.runs[0].Stage)
	assert.False(t, f.recorder.runs[0].Alerted)
}

func TestRun_SecondDeliveryFailure(t *testing.T) {
	f := newFixture(t, at("2024-01-05 09:05"))
	f.sender.failAt = 2

	res, err := f.runner.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deliver message 2/2")
	assert.Equal(t, 1, res.Sent)
}

func TestRun_LookupFailure(t *testing.T) {
	f := newFixture(t, at("2024-01-05 09:05"))
	f.runner.Collector = collector.NewCollector(f.fetcher, "KOSPI", "코스닥")

	_, err := f.runner.Run(context.Background())

	var le *collector.LookupError
	require.ErrorAs(t, err, &le)
	assert.Zero(t, f.fetcher.FetchCalls)
	assert.Empty(t, f.sender.sent)
	assert.Equal(t, "collect", f.recorder.runs[0].Stage)
}

func TestRun_EmptySeries(t *testing.T) {
	f := newFixture(t, at("2024-01-05 09:05"))
	f.fetcher.Observations = []model.Observation{}

	_, err := f.runner.Run(context.Background())
	assert.ErrorIs(t, err, calculator.ErrEmptySeries)
	assert.Empty(t, f.sender.sent)
}
