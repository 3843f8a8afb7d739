package normalize

import (
	"sync/atomic"

	"github.com/kilianp07/fleetpulse/core/model"
)

const (
	ReasonMissingID     = "missing vehicle id"
	ReasonSpeedRange    = "speed out of range"
	ReasonPositionRange = "position out of range"
	ReasonSpeedWarning  = "speed exceeds threshold"
	ReasonBatteryLow    = "battery low"
	ReasonBatteryHot    = "battery overheating"
	ReasonMotorHot      = "motor overheating"
)

// Rule flags a record with Status and Reason when Match returns true.
type Rule struct {
	Status model.Status
	Reason string
	Match  func(r model.VehicleRecord) bool
}

// Rules builds the ordered rule set for t.
func Rules(t Thresholds) []Rule {
	return []Rule{
		{
			Status: model.StatusInvalid,
			Reason: ReasonMissingID,
			Match:  func(r model.VehicleRecord) bool { return r.ID == "" },
		},
		{
			Status: model.StatusInvalid,
			Reason: ReasonSpeedRange,
			Match:  func(r model.VehicleRecord) bool { return !r.SpeedInRange(t.MaxSpeed) },
		},
		{
			Status: model.StatusInvalid,
			Reason: ReasonPositionRange,
			Match:  func(r model.VehicleRecord) bool { return !r.PositionInRange() },
		},
		{
			Status: model.StatusWarning,
			Reason: ReasonSpeedWarning,
			Match: func(r model.VehicleRecord) bool {
				return r.Speed > t.WarnSpeed && r.Speed <= t.MaxSpeed
			},
		},
		{
			Status: model.StatusWarning,
			Reason: ReasonBatteryLow,
			Match: func(r model.VehicleRecord) bool {
				return r.Battery != nil && r.Battery.SoC < t.MinBatterySoC
			},
		},
		{
			Status: model.StatusWarning,
			Reason: ReasonBatteryHot,
			Match: func(r model.VehicleRecord) bool {
				return r.Battery != nil && r.Battery.Temperature > t.MaxBatteryTemp
			},
		},
		{
			Status: model.StatusWarning,
			Reason: ReasonMotorHot,
			Match: func(r model.VehicleRecord) bool {
				return r.Motor != nil && r.Motor.Temperature > t.MaxMotorTemp
			},
		},
	}
}

// Normalizer classifies vehicle records. It is safe for concurrent use;
// SetThresholds swaps the rule set atomically and never affects a batch that
// is already being normalized.
type Normalizer struct {
	rules atomic.Pointer[[]Rule]
}

// New returns a Normalizer for t. Zero thresholds take their default.
func New(t Thresholds) *Normalizer {
	n := &Normalizer{}
	n.SetThresholds(t)
	return n
}

// Default returns a Normalizer with DefaultThresholds.
func Default() *Normalizer { return New(DefaultThresholds()) }

// SetThresholds replaces the rule set. Zero thresholds take their default.
func (n *Normalizer) SetThresholds(t Thresholds) {
	rules := Rules(t.WithDefaults())
	n.rules.Store(&rules)
}

// Normalize annotates r. Every matching rule adds its reason and the most
// severe status wins. It never fails.
func (n *Normalizer) Normalize(r model.VehicleRecord) model.AnnotatedRecord {
	return apply(*n.rules.Load(), r)
}

// NormalizeAll annotates records preserving their order. The whole batch is
// evaluated against one rule set.
func (n *Normalizer) NormalizeAll(records []model.VehicleRecord) []model.AnnotatedRecord {
	rules := *n.rules.Load()
	out := make([]model.AnnotatedRecord, len(records))
	for i, r := range records {
		out[i] = apply(rules, r)
	}
	return out
}

func apply(rules []Rule, r model.VehicleRecord) model.AnnotatedRecord {
	out := model.AnnotatedRecord{VehicleRecord: r, Status: model.StatusNormal}
	for _, rule := range rules {
		if rule.Match(r) {
			out.Status = out.Status.Worse(rule.Status)
			out.Reasons = append(out.Reasons, rule.Reason)
		}
	}
	return out
}
