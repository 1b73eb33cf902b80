package screening

import (
	"reflect"
	"testing"

	"github.com/opensource-finance/harrier/internal/domain"
)

func TestClassifyEmpty(t *testing.T) {
	cfg := domain.DefaultScreeningConfig()

	level, recs := Classify(nil, cfg)
	if level != domain.RiskLow {
		t.Errorf("expected LOW for no findings, got %s", level)
	}
	if !reflect.DeepEqual(recs, Recommendations(domain.RiskLow)) {
		t.Errorf("expected the LOW recommendation list, got %v", recs)
	}
}

func TestClassifyTiers(t *testing.T) {
	cfg := domain.DefaultScreeningConfig()

	tests := []struct {
		name  string
		score float64
		want  domain.RiskLevel
	}{
		{"Critical", 0.95, domain.RiskCritical},
		{"CriticalBoundary", 0.9, domain.RiskCritical},
		{"High", 0.85, domain.RiskHigh},
		{"HighBoundary", 0.8, domain.RiskHigh},
		{"Medium", 0.75, domain.RiskMedium},
		{"MediumBoundary", 0.7, domain.RiskMedium},
		{"Low", 0.65, domain.RiskLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			findings := []domain.Finding{{BestScore: tt.score, ContributingSources: []string{"x"}}}
			level, recs := Classify(findings, cfg)
			if level != tt.want {
				t.Errorf("score %v: expected %s, got %s", tt.score, tt.want, level)
			}
			if len(recs) == 0 {
				t.Error("every tier must carry recommendations")
			}
		})
	}
}

func TestClassifyUsesMaxScore(t *testing.T) {
	cfg := domain.DefaultScreeningConfig()

	findings := []domain.Finding{
		{BestScore: 0.65, ContributingSources: []string{"a"}},
		{BestScore: 0.92, ContributingSources: []string{"b"}},
		{BestScore: 0.71, ContributingSources: []string{"c"}},
	}

	level, _ := Classify(findings, cfg)
	if level != domain.RiskCritical {
		t.Errorf("any finding >= 0.9 must yield CRITICAL, got %s", level)
	}
}

func TestRecommendationsVerbatim(t *testing.T) {
	// Downstream automation pattern-matches on this text; pin it exactly.
	want := map[domain.RiskLevel][]string{
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

	for level, texts := range want {
		if got := Recommendations(level); !reflect.DeepEqual(got, texts) {
			t.Errorf("%s recommendations changed:\n got %v\nwant %v", level, got, texts)
		}
	}
}

func TestRecommendationsReturnsCopy(t *testing.T) {
	recs := Recommendations(domain.RiskLow)
	recs[0] = "mutated"
	if Recommendations(domain.RiskLow)[0] == "mutated" {
		t.Error("Recommendations must return a copy, not the backing slice")
	}
}
