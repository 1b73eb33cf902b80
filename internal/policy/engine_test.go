package policy

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/opensource-finance/harrier/internal/domain"
)

func TestEngineCreation(t *testing.T) {
	engine, err := NewEngine(nil, 5)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	defer engine.Close()

	if engine.PoliciesCount() != 0 {
		t.Errorf("expected 0 policies, got %d", engine.PoliciesCount())
	}
}

func TestLoadPolicy(t *testing.T) {
	engine, _ := NewEngine(nil, 5)
	defer engine.Close()

	cfg := &domain.PolicyConfig{
		ID:         "policy-001",
		Name:       "High Risk Country",
		Expression: `country == "IR" && max_score > 0.5`,
		Bands:      []domain.PolicyBand{},
		Enabled:    true,
	}

	if err := engine.LoadPolicy(cfg); err != nil {
		t.Fatalf("failed to load policy: %v", err)
	}

	if engine.PoliciesCount() != 1 {
		t.Errorf("expected 1 policy, got %d", engine.PoliciesCount())
	}
}

func TestLoadInvalidPolicy(t *testing.T) {
	engine, _ := NewEngine(nil, 5)
	defer engine.Close()

	cfg := &domain.PolicyConfig{
		ID:         "invalid-policy",
		Name:       "Invalid",
		Expression: "this is not valid CEL !!!",
		Enabled:    true,
	}

	if err := engine.LoadPolicy(cfg); err == nil {
		t.Error("expected error for invalid CEL expression")
	}
}

func TestEvaluateEscalationPolicy(t *testing.T) {
	engine, _ := NewEngine(nil, 5)
	defer engine.Close()

	zero := 0.0
	one := 1.0

	cfg := &domain.PolicyConfig{
		ID:         "sanctioned-country",
		Name:       "Sanctioned Country Escalation",
		Expression: `country == "KP" && match_count > 0 ? 1.0 : 0.0`,
		Bands: []domain.PolicyBand{
			{LowerLimit: &zero, UpperLimit: &one, Outcome: domain.PolicyOutcomePass, Reason: "No escalation"},
			{LowerLimit: &one, UpperLimit: nil, Outcome: domain.PolicyOutcomeEscalate, Reason: "Counterparty in sanctioned jurisdiction"},
		},
		Enabled: true,
	}
	engine.LoadPolicy(cfg)

	ctx := context.Background()

	input := &EvaluateInput{
		TenantID:   "tenant-001",
		RequestID:  "req-001",
		Query:      &domain.EntityQuery{Name: "Some Trader", Type: domain.EntityCorporate, Country: "KP"},
		MaxScore:   0.75,
		MatchCount: 1,
		RiskLevel:  domain.RiskMedium,
	}

	results, err := engine.EvaluateAll(ctx, input)
	if err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Outcome != domain.PolicyOutcomeEscalate {
		t.Errorf("expected escalate, got %s", results[0].Outcome)
	}

	// Same policy does not fire for a clean country.
	input.Query = &domain.EntityQuery{Name: "Some Trader", Type: domain.EntityCorporate, Country: "DE"}
	results, _ = engine.EvaluateAll(ctx, input)
	if results[0].Outcome != domain.PolicyOutcomePass {
		t.Errorf("expected pass, got %s", results[0].Outcome)
	}
}

func TestEvaluateScreenCountVariable(t *testing.T) {
	var calls atomic.Int64
	getter := func(ctx context.Context, tenantID, entityKey string, windowSecs int) (int64, error) {
		calls.Add(1)
		return 12, nil
	}

	engine, _ := NewEngine(getter, 5)
	defer engine.Close()

	one := 1.0
	cfg := &domain.PolicyConfig{
		ID:         "repeat-screening",
		Name:       "Repeat Screening Review",
		Expression: "screen_count > 10 ? 1.0 : 0.0",
		Bands: []domain.PolicyBand{
			{LowerLimit: &one, Outcome: domain.PolicyOutcomeReview, Reason: "Entity screened repeatedly"},
		},
		Enabled: true,
	}
	engine.LoadPolicy(cfg)

	input := &EvaluateInput{
		TenantID:       "tenant-001",
		Query:          &domain.EntityQuery{Name: "John Smith", Type: domain.EntityIndividual},
		VelocityWindow: 3600,
	}

	results, err := engine.EvaluateAll(context.Background(), input)
	if err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected one screen count lookup, got %d", calls.Load())
	}
	if results[0].Outcome != domain.PolicyOutcomeReview {
		t.Errorf("expected review, got %s", results[0].Outcome)
	}
}

func TestEvaluateRuntimeErrorIsIsolated(t *testing.T) {
	engine, _ := NewEngine(nil, 5)
	defer engine.Close()

	// Division by a zero-valued variable fails at runtime, not compile time.
	engine.LoadPolicy(&domain.PolicyConfig{
		ID:         "dividing",
		Name:       "Runtime Error",
		Expression: "1 / match_count",
		Enabled:    true,
	})
	engine.LoadPolicy(&domain.PolicyConfig{
		ID:         "healthy",
		Name:       "Healthy",
		Expression: "max_score > 0.5",
		Enabled:    true,
	})

	results, err := engine.EvaluateAll(context.Background(), &EvaluateInput{
		TenantID:  "tenant-001",
		Query:     &domain.EntityQuery{Name: "X", Type: domain.EntityIndividual},
		MaxScore:  0.9,
		RiskLevel: domain.RiskCritical,
	})
	if err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	var sawError, sawHealthy bool
	for _, r := range results {
		switch r.PolicyID {
		case "dividing":
			sawError = r.Outcome == domain.PolicyOutcomeError
		case "healthy":
			sawHealthy = r.Score == 1.0
		}
	}
	if !sawError {
		t.Error("expected runtime failure to be reported as .err outcome")
	}
	if !sawHealthy {
		t.Error("expected sibling policy unaffected by the failure")
	}
}

func TestReloadPolicies(t *testing.T) {
	engine, _ := NewEngine(nil, 5)
	defer engine.Close()

	engine.LoadPolicy(&domain.PolicyConfig{ID: "old", Name: "Old", Expression: "true", Enabled: true})

	err := engine.ReloadPolicies([]*domain.PolicyConfig{
		{ID: "new-1", Name: "New 1", Expression: "max_score > 0.8", Enabled: true},
		{ID: "new-2", Name: "New 2", Expression: "match_count > 3", Enabled: true},
		{ID: "disabled", Name: "Disabled", Expression: "true", Enabled: false},
	})
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}

	if engine.PoliciesCount() != 2 {
		t.Errorf("expected 2 policies after reload, got %d", engine.PoliciesCount())
	}
	for _, p := range engine.GetLoadedPolicies() {
		if p.ID == "old" {
			t.Error("old policy must be gone after reload")
		}
	}
}

func TestEscalations(t *testing.T) {
	results := []domain.PolicyResult{
		{PolicyID: "a", Outcome: domain.PolicyOutcomePass, Reason: "fine"},
		{PolicyID: "b", Outcome: domain.PolicyOutcomeEscalate, Reason: "sanctioned jurisdiction"},
		{PolicyID: "c", Outcome: domain.PolicyOutcomeReview, Reason: "repeat screening"},
		{PolicyID: "d", Outcome: domain.PolicyOutcomeError, Reason: "boom"},
	}

	got := Escalations(results)
	if len(got) != 2 || got[0] != "sanctioned jurisdiction" || got[1] != "repeat screening" {
		t.Errorf("unexpected escalation reasons: %v", got)
	}
}
