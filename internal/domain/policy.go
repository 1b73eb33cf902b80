package domain

// PolicyConfig defines a post-screening compliance policy.
// Policies are CEL expressions evaluated over the consolidated screening
// result; they add advisory outcomes on top of the core risk classifier.
type PolicyConfig struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenantId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`

	// CEL expression to evaluate
	Expression string `json:"expression"`

	// Outcome bands for score-to-outcome mapping
	Bands []PolicyBand `json:"bands"`

	// Whether policy is active
	Enabled bool `json:"enabled"`
}

// PolicyBand maps a score range to an outcome.
type PolicyBand struct {
	LowerLimit *float64 `json:"lowerLimit,omitempty"`
	UpperLimit *float64 `json:"upperLimit,omitempty"`
	Outcome    string   `json:"outcome"` // e.g., ".pass", ".review", ".escalate"
	Reason     string   `json:"reason"`
}

// PolicyResult is the output of a policy evaluation.
type PolicyResult struct {
	PolicyID  string  `json:"policyId"`
	TenantID  string  `json:"tenantId"`
	RequestID string  `json:"requestId"`
	Outcome   string  `json:"outcome"`
	Score     float64 `json:"score"`
	Reason    string  `json:"reason"`
	ProcessMs int64   `json:"processMs"`
}

// Predefined policy outcomes
const (
	PolicyOutcomePass     = ".pass"
	PolicyOutcomeReview   = ".review"
	PolicyOutcomeEscalate = ".escalate"
	PolicyOutcomeError    = ".err"
)
