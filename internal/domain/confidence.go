package domain

import "strings"

// Confidence is the trust tier attached to every observation when it enters the pipeline.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ParseConfidence maps text onto a Confidence, defaulting to medium.
func ParseConfidence(raw string) Confidence {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "high":
		return ConfidenceHigh
	case "low":
		return ConfidenceLow
	default:
		return ConfidenceMedium
	}
}

// Rank orders tiers; higher is more trustworthy.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	case ConfidenceLow:
		return 1
	default:
		return 0
	}
}

// Degrade lowers the tier by one step, bottoming out at low.
func (c Confidence) Degrade() Confidence {
	switch c {
	case ConfidenceHigh:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// Min returns the less trustworthy of c and other.
func (c Confidence) Min(other Confidence) Confidence {
	if other.Rank() < c.Rank() {
		return other
	}
	return c
}

func normalizeKey(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
