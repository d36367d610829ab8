package model

// TriggerType indicates which bound fired.
type TriggerType string

const (
	TriggerLow  TriggerType = "LOW"
	TriggerHigh TriggerType = "HIGH"
)

// Thresholds configures the alert condition.
type Thresholds struct {
	Low           float64
	High          float64
	HighEnabled   bool // include the high bound in the condition
	TargetEnabled bool // derive the index level at which PBR equals Low
}

// AlertSignal is the output of the threshold evaluation.
type AlertSignal struct {
	Triggered   bool
	Reasons     []TriggerType
	PBR         NullFloat
	TargetLevel NullFloat
}

// Has reports whether the given trigger fired.
func (s *AlertSignal) Has(t TriggerType) bool {
	for _, r := range s.Reasons {
		if r == t {
			return true
		}
	}
	return false
}
