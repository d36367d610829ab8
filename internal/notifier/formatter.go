package notifier

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"PBRSentinel/internal/model"
)

const na = "N/A"

// Two renders a ratio with two decimals, or "N/A" when missing or NaN.
func Two(v model.NullFloat) string {
	if !v.Valid {
		return na
	}
	return TwoFloat(v.Float)
}

// TwoFloat is Two for a bare float.
func TwoFloat(f float64) string {
	if math.IsNaN(f) {
		return na
	}
	return fmt.Sprintf("%.2f", f)
}

// Level renders an index level with thousands separators and two decimals.
func Level(v model.NullFloat) string {
	if !v.Valid || math.IsNaN(v.Float) {
		return na
	}
	return humanize.FormatFloat("#,###.##", v.Float)
}

// FormatDateString turns an 8-digit "20240105" into "2024-01-05"; other input is returned as is.
func FormatDateString(s string) string {
	if len(s) != 8 {
		return s
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return s
		}
	}
	return s[:4] + "-" + s[4:6] + "-" + s[6:]
}

// FormatDate renders t as 2006-01-02, or "N/A" for the zero time.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return na
	}
	return t.Format("2006-01-02")
}

// RunLabel names the scheduled run that produced a message: 오전 or 오후 in KST.
func RunLabel(t time.Time, kst *time.Location) string {
	if t.In(kst).Hour() < 12 {
		return "오전"
	}
	return "오후"
}

// FormatCondition renders the alert condition, e.g. "<= 0.84 또는 >= 1.60".
func FormatCondition(th model.Thresholds) string {
	cond := "<= " + TwoFloat(th.Low)
	if th.HighEnabled {
		cond += " 또는 >= " + TwoFloat(th.High)
	}
	return cond
}

// ReportInput carries everything the status report shows.
type ReportInput struct {
	IndexName  string
	Summary    *model.Summary
	Signal     *model.AlertSignal
	Thresholds model.Thresholds
	Years      int
	RunAt      time.Time
	KST        *time.Location
}

// FormatStatusReport formats the always-sent status message.
func FormatStatusReport(in ReportInput) string {
	var b strings.Builder
	s := in.Summary

	b.WriteString(fmt.Sprintf("[%s PBR] %s 리포트 (KST %s)\n\n",
		in.IndexName, RunLabel(in.RunAt, in.KST), in.RunAt.In(in.KST).Format("2006-01-02 15:04")))

	b.WriteString(fmt.Sprintf("기준일: %s\n", FormatDate(s.LatestDate)))
	b.WriteString(fmt.Sprintf("종가: %s\n", Level(s.LatestClose)))
	b.WriteString(fmt.Sprintf("PBR: %s\n\n", Two(s.LatestPBR)))

	b.WriteString(fmt.Sprintf("[최근 %d년]\n", in.Years))
	b.WriteString(fmt.Sprintf("평균: %s\n", Two(s.MeanPBR)))
	b.WriteString(fmt.Sprintf("최저: %s (%s)\n", Two(s.MinPBR), FormatDate(s.MinPBRDate)))
	b.WriteString(fmt.Sprintf("최고: %s (%s)\n\n", Two(s.MaxPBR), FormatDate(s.MaxPBRDate)))

	b.WriteString(fmt.Sprintf("조건: %s\n", FormatCondition(in.Thresholds)))
	if in.Thresholds.TargetEnabled && in.Signal != nil {
		b.WriteString(fmt.Sprintf("PBR %s 도달 지수: %s\n", TwoFloat(in.Thresholds.Low), Level(in.Signal.TargetLevel)))
	}
	return b.String()
}

// FormatAlert formats the extra message sent when the condition is met.
func FormatAlert(in ReportInput) string {
	var b strings.Builder
	sig := in.Signal

	b.WriteString(fmt.Sprintf("🚨 조건 충족! %s PBR=%s\n\n", in.IndexName, Two(sig.PBR)))
	b.WriteString(fmt.Sprintf("기준일: %s\n", FormatDate(in.Summary.LatestDate)))
	b.WriteString(fmt.Sprintf("종가: %s\n", Level(in.Summary.LatestClose)))
	switch {
	case sig.Has(model.TriggerLow):
		b.WriteString(fmt.Sprintf("하단 도달: PBR <= %s\n", TwoFloat(in.Thresholds.Low)))
	case sig.Has(model.TriggerHigh):
		b.WriteString(fmt.Sprintf("상단 도달: PBR >= %s\n", TwoFloat(in.Thresholds.High)))
	}
	if in.Thresholds.TargetEnabled {
		b.WriteString(fmt.Sprintf("PBR %s 도달 지수: %s\n", TwoFloat(in.Thresholds.Low), Level(sig.TargetLevel)))
	}
	return b.String()
}
