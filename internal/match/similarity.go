package match

import (
	"github.com/agnivade/levenshtein"
	"github.com/opensource-finance/harrier/internal/domain"
)

// Similarity computes a bounded [0,1] similarity between two names using
// normalized Levenshtein distance over their normalized forms:
// 1 - d / max(len). Two empty normalized strings are identical (1.0).
// Symmetric and reflexive.
func Similarity(a, b string) float64 {
	na := Normalize(a)
	nb := Normalize(b)

	if len(na) == 0 && len(nb) == 0 {
		return 1.0
	}

	d := levenshtein.ComputeDistance(na, nb)

	longest := len(na)
	if len(nb) > longest {
		longest = len(nb)
	}

	sim := 1.0 - float64(d)/float64(longest)
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}

// EffectiveScore returns the score used for admission and consolidation:
// the source-provided score when present, otherwise the name similarity
// between the query and the candidate.
func EffectiveScore(query *domain.EntityQuery, c *domain.MatchCandidate) float64 {
	if c.SourceScore != nil {
		s := *c.SourceScore
		if s < 0 {
			return 0
		}
		if s > 1 {
			return 1
		}
		return s
	}
	return Similarity(query.Name, c.Name)
}
