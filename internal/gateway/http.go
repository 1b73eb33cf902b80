package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

// HTTPGateway is a generic REST/JSON source adapter: it POSTs the query to
// the provider endpoint and decodes the returned candidate list. Parsing is
// strict per candidate: one malformed record is skipped with a warning, the
// rest of the source's response is kept.
type HTTPGateway struct {
	id       string
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewHTTPGateway creates a gateway for a stored http source config.
// The provider API key, if any, is read from the configured environment
// variable so credentials never live in the database.
func NewHTTPGateway(cfg *domain.SourceConfig) *HTTPGateway {
	apiKey := ""
	if cfg.APIKeyEnv != "" {
		apiKey = os.Getenv(cfg.APIKeyEnv)
	}
	return &HTTPGateway{
		id:       cfg.ID,
		endpoint: cfg.Endpoint,
		apiKey:   apiKey,
		client: &http.Client{
			// Per-call deadlines come from the fan-out coordinator's
			// context; this is a safety net for dialing stalls.
			Timeout: 30 * time.Second,
		},
	}
}

// ID returns the source identifier.
func (g *HTTPGateway) ID() string { return g.id }

// screenResponse is the provider wire format for a screening response.
type screenResponse struct {
	Candidates []json.RawMessage `json:"candidates"`
}

// Screen queries the provider for candidates matching the query.
func (g *HTTPGateway) Screen(ctx context.Context, query *domain.EntityQuery) ([]domain.MatchCandidate, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("source %s request failed: %w", g.id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("source %s returned status %d", g.id, resp.StatusCode)
	}

	var decoded screenResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("source %s returned malformed response: %w", g.id, err)
	}

	return g.parseCandidates(decoded.Candidates), nil
}

// parseCandidates decodes each raw candidate independently so a single bad
// record does not fail the whole source.
func (g *HTTPGateway) parseCandidates(raw []json.RawMessage) []domain.MatchCandidate {
	candidates := make([]domain.MatchCandidate, 0, len(raw))

	for i, r := range raw {
		var c domain.MatchCandidate
		if err := json.Unmarshal(r, &c); err != nil {
			slog.Warn("skipping unparseable candidate",
				"source_id", g.id,
				"index", i,
				"error", err,
			)
			continue
		}
		if c.Name == "" {
			slog.Warn("skipping candidate without a name",
				"source_id", g.id,
				"index", i,
			)
			continue
		}

		c.SourceID = g.id
		candidates = append(candidates, c)
	}

	return candidates
}
