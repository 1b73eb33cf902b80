package screening

import (
	"sort"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/match"
)

// admittedCandidate pairs a candidate with its effective score and owner.
type admittedCandidate struct {
	candidate domain.MatchCandidate
	sourceID  string
	score     float64
}

// Consolidate merges admitted candidates across sources into deduplicated
// findings. Candidates sharing an identity key (normalized name + type +
// normalized jurisdiction) collapse into one finding whose best score is the
// maximum effective score among members. The result is independent of source
// processing order: findings are sorted by best score descending, then
// representative name ascending.
func Consolidate(query *domain.EntityQuery, candidatesBySource map[string][]domain.MatchCandidate, admissionThreshold float64) []domain.Finding {
	groups := make(map[string][]admittedCandidate)

	for sourceID, candidates := range candidatesBySource {
		for _, c := range candidates {
			// A candidate without a usable name is malformed: drop it
			// rather than failing the screening. One bad record from one
			// source must not invalidate the rest.
			if match.Normalize(c.Name) == "" {
				continue
			}

			score := match.EffectiveScore(query, &c)
			if score <= admissionThreshold {
				continue
			}

			key := identityKey(&c)
			groups[key] = append(groups[key], admittedCandidate{
				candidate: c,
				sourceID:  sourceID,
				score:     score,
			})
		}
	}

	findings := make([]domain.Finding, 0, len(groups))
	for key, members := range groups {
		findings = append(findings, mergeGroup(key, members))
	}

	sort.Slice(findings, func(i, j int) bool {
		if findings[i].BestScore != findings[j].BestScore {
			return findings[i].BestScore > findings[j].BestScore
		}
		return findings[i].RepresentativeName < findings[j].RepresentativeName
	})

	return findings
}

// identityKey derives the dedup key for a candidate. Empty jurisdiction or
// type still participates using the literal empty string: a candidate is
// never dropped for missing metadata.
func identityKey(c *domain.MatchCandidate) string {
	return match.Normalize(c.Name) + "|" + string(c.Type) + "|" + match.Normalize(c.Jurisdiction)
}

// mergeGroup reduces one identity group to a single finding.
func mergeGroup(key string, members []admittedCandidate) domain.Finding {
	best := members[0]
	sourceSet := make(map[string]struct{}, len(members))
	aliasSet := make(map[string]struct{})

	for _, m := range members {
		sourceSet[m.sourceID] = struct{}{}
		for _, alias := range m.candidate.Aliases {
			if alias != "" {
				aliasSet[alias] = struct{}{}
			}
		}
		if betterRepresentative(m, best) {
			best = m
		}
	}

	return domain.Finding{
		IdentityKey:         key,
		BestScore:           best.score,
		ContributingSources: sortedKeys(sourceSet),
		Aliases:             sortedKeys(aliasSet),
		RepresentativeName:  best.candidate.Name,
	}
}

// betterRepresentative picks the higher-scoring member; score ties break on
// shortest source id, then lexically, so the choice is deterministic.
func betterRepresentative(a, b admittedCandidate) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	if len(a.sourceID) != len(b.sourceID) {
		return len(a.sourceID) < len(b.sourceID)
	}
	return a.sourceID < b.sourceID
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
