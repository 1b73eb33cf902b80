package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/gateway"
	"github.com/opensource-finance/harrier/internal/policy"
	"github.com/opensource-finance/harrier/internal/screening"
	"github.com/opensource-finance/harrier/internal/velocity"
)

// GlobalTenantID is used for sources and policies that apply to all tenants.
const GlobalTenantID = "*"

// Handler holds dependencies for API handlers.
type Handler struct {
	repo     domain.Repository
	cache    domain.Cache
	bus      domain.EventBus
	engine   *screening.Engine
	policies *policy.Engine
	registry *gateway.Registry
	velocity *velocity.Service
	version  string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, engine *screening.Engine, policies *policy.Engine, registry *gateway.Registry, vel *velocity.Service, version string) *Handler {
	return &Handler{
		repo:     repo,
		cache:    cache,
		bus:      bus,
		engine:   engine,
		policies: policies,
		registry: registry,
		velocity: vel,
		version:  version,
	}
}

// Screen handles POST /screen requests.
func (h *Handler) Screen(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	// Parse request
	var req domain.ScreeningRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.Type != "" && !domain.ValidEntityType(req.Type) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "type must be one of INDIVIDUAL, CORPORATE, VESSEL, AIRCRAFT",
		})
		return
	}

	query := req.ToQuery()
	queryKey := screening.QueryKey(query)
	cfg := h.engine.Config()

	// Serve identical repeat queries from the result cache
	if h.cache != nil && cfg.ResultCacheTTL > 0 {
		cached, err := h.cache.GetResult(ctx, tenantID, queryKey)
		if err != nil {
			slog.Warn("result cache lookup failed", "error", err)
		}
		if cached != nil {
			w.Header().Set("X-Cache", "hit")
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	result, err := h.engine.Screen(ctx, tenantID, query)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidQuery) {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": err.Error(),
			})
			return
		}
		slog.Error("screening failed", "error", err, "tenant_id", tenantID)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "screening failed",
		})
		return
	}
	result.Metadata.TraceID = traceID

	// Evaluate post-screening policies; escalation reasons are appended to
	// the result's recommendations.
	if h.policies != nil && h.policies.PoliciesCount() > 0 {
		policyResults, err := h.policies.EvaluateAll(ctx, &policy.EvaluateInput{
			TenantID:       tenantID,
			RequestID:      result.RequestID,
			Query:          query,
			MaxScore:       result.MaxScore(),
			MatchCount:     len(result.Findings),
			RiskLevel:      result.RiskLevel,
			SourceErrors:   result.SourceErrors(),
			VelocityWindow: 3600,
		})
		if err != nil {
			slog.Error("policy evaluation failed", "error", err, "request_id", result.RequestID)
		} else {
			result.PolicyResults = policyResults
			result.Recommendations = append(result.Recommendations, policy.Escalations(policyResults)...)
		}
	}

	// Persist the screening for audit retrieval and velocity counting
	if h.repo != nil {
		rec := &domain.ScreeningRecord{
			ID:        result.RequestID,
			TenantID:  tenantID,
			Query:     *query,
			Result:    result,
			CreatedAt: time.Now().UTC(),
		}
		if err := h.repo.SaveScreening(ctx, tenantID, rec); err != nil {
			slog.Error("failed to save screening", "error", err, "request_id", result.RequestID)
		}
	}

	if h.velocity != nil {
		h.velocity.Record(ctx, tenantID, query.Name, time.Hour)
	}

	if h.cache != nil && cfg.ResultCacheTTL > 0 {
		if err := h.cache.SetResult(ctx, tenantID, queryKey, result, cfg.ResultCacheTTL); err != nil {
			slog.Warn("failed to cache result", "error", err)
		}
	}

	h.publishResult(ctx, tenantID, result)

	writeJSON(w, http.StatusOK, result)
}

// publishResult emits completion and alert events for a screening result.
func (h *Handler) publishResult(ctx context.Context, tenantID string, result *domain.ScreeningResult) {
	if h.bus == nil {
		return
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return
	}

	if err := h.bus.Publish(ctx, tenantID, domain.TopicScreeningCompleted, payload); err != nil {
		slog.Error("failed to publish screening completed event", "error", err)
	}

	if result.RiskLevel == domain.RiskHigh || result.RiskLevel == domain.RiskCritical {
		if err := h.bus.Publish(ctx, tenantID, domain.TopicScreeningAlert, payload); err != nil {
			slog.Error("failed to publish screening alert event", "error", err)
		}
	}
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// GetScreening retrieves a stored screening by request ID.
func (h *Handler) GetScreening(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	requestID := chi.URLParam(r, "id")

	if requestID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "screening id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	rec, err := h.repo.GetScreening(ctx, tenantID, requestID)
	if err != nil {
		slog.Error("failed to get screening", "id", requestID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "screening not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// ListSources returns all stored source configurations.
func (h *Handler) ListSources(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	configs, err := h.repo.ListSourceConfigs(ctx, GlobalTenantID)
	if err != nil {
		slog.Error("failed to list source configs", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list sources",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sources": configs,
		"count":   len(configs),
		"active":  h.registry.Count(),
	})
}

// GetSource retrieves a source configuration by ID.
func (h *Handler) GetSource(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sourceID := chi.URLParam(r, "id")

	if sourceID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "source id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	cfg, err := h.repo.GetSourceConfig(ctx, GlobalTenantID, sourceID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "source not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, cfg)
}

// CreateSourceRequest is the request body for creating a source.
type CreateSourceRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Kind        string `json:"kind"`
	Endpoint    string `json:"endpoint,omitempty"`
	APIKeyEnv   string `json:"apiKeyEnv,omitempty"`
	Enabled     bool   `json:"enabled"`
}

// CreateSource creates a new source configuration.
// After saving, call POST /sources/reload to apply changes.
func (h *Handler) CreateSource(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ID == "" || req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id and name are required",
		})
		return
	}

	switch req.Kind {
	case domain.SourceKindHTTP:
		if req.Endpoint == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "endpoint is required for http sources",
			})
			return
		}
	case domain.SourceKindList:
		// List sources read entries from the repository; no endpoint.
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "kind must be http or list",
		})
		return
	}

	cfg := &domain.SourceConfig{
		ID:          req.ID,
		TenantID:    GlobalTenantID,
		Name:        req.Name,
		Description: req.Description,
		Kind:        req.Kind,
		Endpoint:    req.Endpoint,
		APIKeyEnv:   req.APIKeyEnv,
		Enabled:     req.Enabled,
	}

	if h.repo != nil {
		if err := h.repo.SaveSourceConfig(ctx, GlobalTenantID, cfg); err != nil {
			slog.Error("failed to save source config", "id", cfg.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save source",
			})
			return
		}
	}

	slog.Info("source created", "id", cfg.ID, "kind", cfg.Kind)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"source":  cfg,
		"message": "Source created. Call POST /sources/reload to apply changes.",
	})
}

// DeleteSource disables a source configuration and reloads the gateway set.
func (h *Handler) DeleteSource(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sourceID := chi.URLParam(r, "id")

	if sourceID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "source id is required",
		})
		return
	}

	if h.repo != nil {
		if err := h.repo.DeleteSourceConfig(ctx, GlobalTenantID, sourceID); err != nil {
			slog.Error("failed to delete source", "id", sourceID, "error", err)
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "source not found",
			})
			return
		}

		// Auto-reload gateways after delete
		if err := h.reloadGateways(ctx); err != nil {
			slog.Error("failed to reload gateways after delete", "error", err)
		}
	}

	slog.Info("source deleted", "id", sourceID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Source deleted and gateways reloaded.",
	})
}

// ReloadSources rebuilds the gateway set from stored source configurations.
// This enables hot-reloading without server restart.
func (h *Handler) ReloadSources(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	if err := h.reloadGateways(ctx); err != nil {
		slog.Error("failed to reload gateways", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload sources: " + err.Error(),
		})
		return
	}

	slog.Info("sources reloaded from database", "count", h.registry.Count())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "sources reloaded successfully",
		"count":   h.registry.Count(),
	})
}

func (h *Handler) reloadGateways(ctx context.Context) error {
	configs, err := h.repo.ListSourceConfigs(ctx, GlobalTenantID)
	if err != nil {
		return err
	}
	if err := h.registry.Reload(configs, h.repo); err != nil {
		return err
	}
	h.engine.SetGateways(h.registry.All())
	return nil
}

// ListPolicies returns all loaded policies from the engine.
func (h *Handler) ListPolicies(w http.ResponseWriter, r *http.Request) {
	if h.policies == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "policy engine not available",
		})
		return
	}

	loaded := h.policies.GetLoadedPolicies()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"policies": loaded,
		"count":    len(loaded),
		"source":   "database",
	})
}

// GetPolicy retrieves a policy by ID from the loaded engine policies.
func (h *Handler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	policyID := chi.URLParam(r, "id")

	if policyID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "policy id is required",
		})
		return
	}

	if h.policies == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "policy engine not available",
		})
		return
	}

	for _, p := range h.policies.GetLoadedPolicies() {
		if p.ID == policyID {
			writeJSON(w, http.StatusOK, p)
			return
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "policy not found",
	})
}

// CreatePolicyRequest is the request body for creating a policy.
type CreatePolicyRequest struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	Expression  string              `json:"expression"`
	Bands       []domain.PolicyBand `json:"bands"`
	Enabled     bool                `json:"enabled"`
}

// CreatePolicy creates a new policy and saves it to the database.
// Policies are saved globally (tenant_id = "*") so they apply to all tenants.
// After saving, call POST /policies/reload to hot-reload into the engine.
func (h *Handler) CreatePolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreatePolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ID == "" || req.Name == "" || req.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, and expression are required",
		})
		return
	}

	cfg := &domain.PolicyConfig{
		ID:          req.ID,
		TenantID:    GlobalTenantID,
		Name:        req.Name,
		Description: req.Description,
		Version:     "1.0.0",
		Expression:  req.Expression,
		Bands:       req.Bands,
		Enabled:     req.Enabled,
	}

	// Validate CEL expression by attempting to load
	if err := h.policies.LoadPolicy(cfg); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid CEL expression: " + err.Error(),
		})
		return
	}

	if h.repo != nil {
		if err := h.repo.SavePolicyConfig(ctx, GlobalTenantID, cfg); err != nil {
			slog.Error("failed to save policy config", "id", cfg.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save policy",
			})
			return
		}
	}

	slog.Info("policy created", "id", cfg.ID, "name", cfg.Name)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"policy":  cfg,
		"message": "Policy created. Call POST /policies/reload to apply changes.",
	})
}

// ReloadPolicies reloads all policies from the database into the engine.
func (h *Handler) ReloadPolicies(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	if h.policies == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "policy engine not available",
		})
		return
	}

	dbPolicies, err := h.repo.ListPolicyConfigs(ctx, GlobalTenantID)
	if err != nil {
		slog.Error("failed to list policies from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load policies from database",
		})
		return
	}

	if err := h.policies.ReloadPolicies(dbPolicies); err != nil {
		slog.Error("failed to reload policies into engine", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload policies: " + err.Error(),
		})
		return
	}

	slog.Info("policies reloaded from database", "count", len(dbPolicies))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "policies reloaded successfully",
		"count":   len(dbPolicies),
	})
}

// CreateListEntryRequest is the request body for importing a watchlist entry.
type CreateListEntryRequest struct {
	ID           string            `json:"id"`
	SourceID     string            `json:"sourceId"`
	Name         string            `json:"name"`
	Type         domain.EntityType `json:"type"`
	Jurisdiction string            `json:"jurisdiction,omitempty"`
	Aliases      []string          `json:"aliases,omitempty"`
	DateOfBirth  string            `json:"dateOfBirth,omitempty"`
	Nationality  string            `json:"nationality,omitempty"`
}

// CreateListEntry imports a watchlist entry for a list source.
func (h *Handler) CreateListEntry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateListEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ID == "" || req.SourceID == "" || req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, sourceId, and name are required",
		})
		return
	}
	if req.Type != "" && !domain.ValidEntityType(req.Type) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "type must be one of INDIVIDUAL, CORPORATE, VESSEL, AIRCRAFT",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	entry := &domain.ListEntry{
		ID:           req.ID,
		TenantID:     GlobalTenantID,
		SourceID:     req.SourceID,
		Name:         req.Name,
		Type:         req.Type,
		Jurisdiction: req.Jurisdiction,
		Aliases:      req.Aliases,
		DateOfBirth:  req.DateOfBirth,
		Nationality:  req.Nationality,
		CreatedAt:    time.Now().UTC(),
	}

	if err := h.repo.SaveListEntry(ctx, GlobalTenantID, entry); err != nil {
		slog.Error("failed to save list entry", "id", entry.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save entry",
		})
		return
	}

	writeJSON(w, http.StatusCreated, entry)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
