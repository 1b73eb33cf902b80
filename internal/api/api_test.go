package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/gateway"
	"github.com/opensource-finance/harrier/internal/policy"
	"github.com/opensource-finance/harrier/internal/screening"
)

// stubGateway is an in-memory source for handler tests.
type stubGateway struct {
	id         string
	candidates []domain.MatchCandidate
	err        error
}

func (g *stubGateway) ID() string { return g.id }

func (g *stubGateway) Screen(ctx context.Context, query *domain.EntityQuery) ([]domain.MatchCandidate, error) {
	if g.err != nil {
		return nil, g.err
	}
	return g.candidates, nil
}

// createTestServer creates a server with a screening engine over stub sources.
func createTestServer(gateways ...domain.SourceGateway) *Server {
	cfg := domain.ServerConfig{
		Host:         "localhost",
		Port:         8080,
		ReadTimeout:  30,
		WriteTimeout: 30,
	}

	engine := screening.NewEngine(gateways, domain.DefaultScreeningConfig())
	policies, _ := policy.NewEngine(nil, 5)
	registry := gateway.NewRegistry()
	for _, gw := range gateways {
		registry.Register(gw)
	}

	return NewServer(cfg, nil, nil, nil, engine, policies, registry, nil, "test-v1")
}

func score(v float64) *float64 { return &v }

func TestScreenEndpoint(t *testing.T) {
	server := createTestServer(
		&stubGateway{
			id: "ofac-sdn",
			candidates: []domain.MatchCandidate{
				{Name: "Viktor BOUT", Type: domain.EntityIndividual, SourceScore: score(0.95)},
			},
		},
		&stubGateway{
			id: "eu-sanctions",
			candidates: []domain.MatchCandidate{
				{Name: "Viktor Bout", Type: domain.EntityIndividual, SourceScore: score(0.88)},
			},
		},
	)

	t.Run("SuccessfulScreening", func(t *testing.T) {
		reqBody := domain.ScreeningRequest{
			Name: "Viktor Bout",
			Type: domain.EntityIndividual,
		}

		body, _ := json.Marshal(reqBody)
		req := httptest.NewRequest(http.MethodPost, "/screen", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp domain.ScreeningResult
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}

		if resp.RequestID == "" {
			t.Error("expected requestId in response")
		}
		if !resp.MatchesFound {
			t.Error("expected matches to be found")
		}
		// Both sources name the same individual; candidates consolidate.
		if len(resp.Findings) != 1 {
			t.Fatalf("expected 1 finding, got %d", len(resp.Findings))
		}
		if resp.Findings[0].BestScore != 0.95 {
			t.Errorf("expected best score 0.95, got %v", resp.Findings[0].BestScore)
		}
		if len(resp.Findings[0].ContributingSources) != 2 {
			t.Errorf("expected 2 contributing sources, got %v", resp.Findings[0].ContributingSources)
		}
		if resp.RiskLevel != domain.RiskCritical {
			t.Errorf("expected CRITICAL risk, got %s", resp.RiskLevel)
		}
		if len(resp.Recommendations) == 0 {
			t.Error("expected recommendations for critical risk")
		}
		if resp.Metadata.TraceID == "" {
			t.Error("expected traceId in metadata")
		}
		if resp.Metadata.SourcesQueried != 2 || resp.Metadata.SourcesSucceeded != 2 {
			t.Errorf("unexpected source counts: %+v", resp.Metadata)
		}
	})

	t.Run("MissingTenantID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/screen", bytes.NewBufferString("{}"))
		req.Header.Set("Content-Type", "application/json")
		// No X-Tenant-ID header

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/screen", bytes.NewBufferString("not-json"))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("EmptyName", func(t *testing.T) {
		body, _ := json.Marshal(domain.ScreeningRequest{Name: "   ", Type: domain.EntityIndividual})
		req := httptest.NewRequest(http.MethodPost, "/screen", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("InvalidEntityType", func(t *testing.T) {
		body, _ := json.Marshal(domain.ScreeningRequest{Name: "John Smith", Type: "ROBOT"})
		req := httptest.NewRequest(http.MethodPost, "/screen", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})
}

func TestScreenEndpointSourceFailure(t *testing.T) {
	// One source fails; the result still comes back with the healthy
	// source's findings and a per-source outcome map.
	server := createTestServer(
		&stubGateway{
			id: "ofac-sdn",
			candidates: []domain.MatchCandidate{
				{Name: "Acme Shell Corp", Type: domain.EntityCorporate, SourceScore: score(0.75)},
			},
		},
		&stubGateway{id: "flaky-source", err: context.DeadlineExceeded},
	)

	body, _ := json.Marshal(domain.ScreeningRequest{Name: "Acme Shell Corp", Type: domain.EntityCorporate})
	req := httptest.NewRequest(http.MethodPost, "/screen", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", "tenant-001")

	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp domain.ScreeningResult
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}

	if len(resp.Findings) != 1 {
		t.Errorf("expected 1 finding, got %d", len(resp.Findings))
	}
	if resp.RiskLevel != domain.RiskMedium {
		t.Errorf("expected MEDIUM risk, got %s", resp.RiskLevel)
	}
	if outcome := resp.SourceOutcomes["flaky-source"]; outcome.Status == domain.SourceSuccess {
		t.Errorf("expected failure outcome for flaky source, got %+v", outcome)
	}
	if outcome := resp.SourceOutcomes["ofac-sdn"]; outcome.Status != domain.SourceSuccess {
		t.Errorf("expected success outcome, got %+v", outcome)
	}
}

func TestHealthEndpoints(t *testing.T) {
	server := createTestServer()

	t.Run("Health", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}

		var resp map[string]string
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp["status"] != "healthy" {
			t.Errorf("expected healthy status, got %s", resp["status"])
		}
		if resp["version"] != "test-v1" {
			t.Errorf("expected version test-v1, got %s", resp["version"])
		}
	})

	t.Run("Ready", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ready", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}
	})
}

func TestGetScreeningWithoutRepository(t *testing.T) {
	server := createTestServer()

	req := httptest.NewRequest(http.MethodGet, "/screenings/some-id", nil)
	req.Header.Set("X-Tenant-ID", "tenant-001")

	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rr.Code)
	}
}

func TestPolicyEndpoints(t *testing.T) {
	server := createTestServer()

	t.Run("CreatePolicy", func(t *testing.T) {
		lower := 0.0
		reqBody := CreatePolicyRequest{
			ID:         "policy-high-velocity",
			Name:       "High screening velocity",
			Expression: "screen_count > 10 ? 1.0 : 0.0",
			Bands: []domain.PolicyBand{
				{LowerLimit: &lower, Outcome: domain.PolicyOutcomeReview, Reason: "entity screened repeatedly"},
			},
			Enabled: true,
		}

		body, _ := json.Marshal(reqBody)
		req := httptest.NewRequest(http.MethodPost, "/policies", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusCreated {
			t.Errorf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("CreatePolicyInvalidExpression", func(t *testing.T) {
		reqBody := CreatePolicyRequest{
			ID:         "policy-bad",
			Name:       "Broken policy",
			Expression: "this is not CEL )))",
			Enabled:    true,
		}

		body, _ := json.Marshal(reqBody)
		req := httptest.NewRequest(http.MethodPost, "/policies", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("ListPolicies", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/policies", nil)
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}

		var resp struct {
			Count int `json:"count"`
		}
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp.Count != 1 {
			t.Errorf("expected 1 loaded policy, got %d", resp.Count)
		}
	})

	t.Run("GetPolicy", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/policies/policy-high-velocity", nil)
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}
	})

	t.Run("GetPolicyNotFound", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/policies/nonexistent", nil)
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})
}

func TestCreateSourceValidation(t *testing.T) {
	server := createTestServer()

	t.Run("MissingEndpoint", func(t *testing.T) {
		body, _ := json.Marshal(CreateSourceRequest{
			ID:   "bad-http",
			Name: "HTTP source without endpoint",
			Kind: domain.SourceKindHTTP,
		})
		req := httptest.NewRequest(http.MethodPost, "/sources", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("UnknownKind", func(t *testing.T) {
		body, _ := json.Marshal(CreateSourceRequest{
			ID:   "bad-kind",
			Name: "Unsupported source",
			Kind: "ftp",
		})
		req := httptest.NewRequest(http.MethodPost, "/sources", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})
}
