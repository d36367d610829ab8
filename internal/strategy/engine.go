package strategy

import (
	"PBRSentinel/internal/calculator"
	"PBRSentinel/internal/model"
)

// DefaultThresholds are the bounds the job ships with.
var DefaultThresholds = model.Thresholds{
	Low:           0.84,
	High:          1.60,
	HighEnabled:   true,
	TargetEnabled: true,
}

// Evaluate checks the latest PBR against the thresholds.
// The condition is pbr <= Low, or pbr >= High when HighEnabled. A missing PBR never triggers.
func Evaluate(sum *model.Summary, th model.Thresholds) *model.AlertSignal {
	sig := &model.AlertSignal{PBR: sum.LatestPBR}

	if th.TargetEnabled {
		sig.TargetLevel = calculator.TargetLevel(sum.LatestClose, sum.LatestPBR, th.Low)
	}

	if !sum.LatestPBR.Valid {
		return sig
	}
	pbr := sum.LatestPBR.Float
	if pbr <= th.Low {
		sig.Reasons = append(sig.Reasons, model.TriggerLow)
	}
	if th.HighEnabled && pbr >= th.High {
		sig.Reasons = append(sig.Reasons, model.TriggerHigh)
	}
	sig.Triggered = len(sig.Reasons) > 0
	return sig
}
