package domain

// MatchCandidate is a single unconfirmed hit returned by one source for a
// query. Owned by the source adapter until handed to the consolidator; the
// core treats it as read-only.
type MatchCandidate struct {
	Name         string     `json:"name"`
	Type         EntityType `json:"type"`
	Jurisdiction string     `json:"jurisdiction"`

	// SourceScore is set when the source itself scores matches; nil means
	// the core computes a similarity score instead.
	SourceScore *float64 `json:"sourceScore,omitempty"`

	Aliases     []string `json:"aliases,omitempty"`
	DateOfBirth string   `json:"dateOfBirth,omitempty"`
	Nationality string   `json:"nationality,omitempty"`
	SourceID    string   `json:"sourceId"`
}

// SourceStatus is the terminal state of one source's screening call.
type SourceStatus string

const (
	SourceSuccess SourceStatus = "success"
	SourceError   SourceStatus = "error"
	SourceTimeout SourceStatus = "timeout"
)

// SourceOutcome records how a single source's call ended. Written once by
// the fan-out coordinator, never mutated after.
type SourceOutcome struct {
	Status      SourceStatus `json:"status"`
	MatchCount  int          `json:"matchCount"`
	ErrorDetail string       `json:"errorDetail,omitempty"`
}
