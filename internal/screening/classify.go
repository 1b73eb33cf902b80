package screening

import (
	"github.com/opensource-finance/harrier/internal/domain"
)

// Recommendation lists per risk tier. The text is data, not logic:
// downstream case-handling automation pattern-matches on it, so it must be
// reproduced verbatim per tier.
var recommendationsByTier = map[domain.RiskLevel][]string{
	domain.RiskCritical: {
		"Block the relationship or transaction immediately",
		"Escalate to the compliance officer",
		"Consider filing a regulatory report",
		"Notify senior management",
	},
	domain.RiskHigh: {
		"Block pending compliance review",
		"Document the review rationale",
	},
	domain.RiskMedium: {
		"Flag for manual review",
		"Request additional identity documentation",
	},
	domain.RiskLow: {
		"Proceed with standard due diligence",
	},
}

// Classify maps consolidated findings to an overall risk tier and its fixed
// recommendation list. The tier is derived solely from the maximum best
// score across findings (LOW when there are none): a pure, total,
// deterministic step function.
func Classify(findings []domain.Finding, cfg domain.ScreeningConfig) (domain.RiskLevel, []string) {
	maxScore := 0.0
	for _, f := range findings {
		if f.BestScore > maxScore {
			maxScore = f.BestScore
		}
	}

	level := domain.RiskLow
	switch {
	case len(findings) == 0:
		level = domain.RiskLow
	case maxScore >= cfg.CriticalThreshold:
		level = domain.RiskCritical
	case maxScore >= cfg.HighThreshold:
		level = domain.RiskHigh
	case maxScore >= cfg.MediumThreshold:
		level = domain.RiskMedium
	}

	return level, Recommendations(level)
}

// Recommendations returns the fixed recommendation list for a tier.
// The returned slice is a copy; callers may append to it.
func Recommendations(level domain.RiskLevel) []string {
	src := recommendationsByTier[level]
	out := make([]string, len(src))
	copy(out, src)
	return out
}
