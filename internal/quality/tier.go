package quality

// Tier is a named quality level controlling the processing resolution and
// the derived filter-parameter scaling.
type Tier int

const (
	TierHigh Tier = iota
	TierMedium
	TierLow
)

func (t Tier) String() string {
	switch t {
	case TierHigh:
		return "high"
	case TierMedium:
		return "medium"
	case TierLow:
		return "low"
	default:
		return "unknown"
	}
}

// Scale is the processing-resolution factor applied to the source
// resolution before the stage runs.
func (t Tier) Scale() float64 {
	switch t {
	case TierMedium:
		return 0.75
	case TierLow:
		return 0.5
	default:
		return 1.0
	}
}

// Next cycles high -> medium -> low -> high, matching the explicit
// on-demand quality toggle.
func (t Tier) Next() Tier {
	switch t {
	case TierHigh:
		return TierMedium
	case TierMedium:
		return TierLow
	default:
		return TierHigh
	}
}
