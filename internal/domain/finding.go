package domain

import (
	"time"
)

// RiskLevel is the overall risk tier of a screening result.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// Finding is a consolidated, deduplicated match: candidates from different
// sources that resolve to the same identity key merged into one entry.
// BestScore equals the maximum effective score among merged candidates and
// ContributingSources is never empty.
type Finding struct {
	IdentityKey         string   `json:"identityKey"`
	BestScore           float64  `json:"bestScore"`
	ContributingSources []string `json:"contributingSources"`
	Aliases             []string `json:"aliases,omitempty"`
	RepresentativeName  string   `json:"representativeName"`
}

// ScreeningResult is the top-level output of one screening call. Created
// once, immutable, handed to the caller for logging/persistence elsewhere.
type ScreeningResult struct {
	RequestID       string                   `json:"requestId"`
	TenantID        string                   `json:"tenantId"`
	EntityName      string                   `json:"entityName"`
	MatchesFound    bool                     `json:"matchesFound"`
	Findings        []Finding                `json:"findings"`
	RiskLevel       RiskLevel                `json:"riskLevel"`
	Recommendations []string                 `json:"recommendations"`
	SourceOutcomes  map[string]SourceOutcome `json:"sourceOutcomes"`
	Timestamp       time.Time                `json:"timestamp"`

	// Policy results (if post-screening policies are configured)
	PolicyResults []PolicyResult `json:"policyResults,omitempty"`

	// Processing metadata
	Metadata ScreeningMetadata `json:"metadata"`
}

// ScreeningMetadata contains processing information.
type ScreeningMetadata struct {
	TraceID          string `json:"traceId,omitempty"`
	FanOutMs         int64  `json:"fanOutMs"`
	TotalMs          int64  `json:"totalMs"`
	SourcesQueried   int    `json:"sourcesQueried"`
	SourcesSucceeded int    `json:"sourcesSucceeded"`
	EngineVersion    string `json:"engineVersion"`
}

// MaxScore returns the highest finding score, or 0 with no findings.
func (r *ScreeningResult) MaxScore() float64 {
	max := 0.0
	for _, f := range r.Findings {
		if f.BestScore > max {
			max = f.BestScore
		}
	}
	return max
}

// SourceErrors counts sources that ended in error or timeout.
func (r *ScreeningResult) SourceErrors() int {
	n := 0
	for _, o := range r.SourceOutcomes {
		if o.Status != SourceSuccess {
			n++
		}
	}
	return n
}
