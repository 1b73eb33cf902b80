// Package worker provides async screening processing for the Pro tier.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/policy"
	"github.com/opensource-finance/harrier/internal/screening"
)

// Worker processes screening requests asynchronously from the EventBus.
type Worker struct {
	bus      domain.EventBus
	repo     domain.Repository
	engine   *screening.Engine
	policies *policy.Engine

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of tenants to process (empty = all via wildcard if supported)
	TenantIDs []string

	// WorkerCount is the number of concurrent workers per tenant
	WorkerCount int
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, repo domain.Repository, engine *screening.Engine, policies *policy.Engine) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:      bus,
		repo:     repo,
		engine:   engine,
		policies: policies,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins processing messages for the given tenants.
func (w *Worker) Start(cfg Config) error {
	if len(cfg.TenantIDs) == 0 {
		return w.startGlobalWorker()
	}

	for _, tenantID := range cfg.TenantIDs {
		if err := w.startTenantWorker(tenantID); err != nil {
			slog.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("workers started",
		"tenant_count", len(cfg.TenantIDs),
	)

	return nil
}

// startGlobalWorker starts a worker that processes all tenants (for testing/dev).
func (w *Worker) startGlobalWorker() error {
	// Subscribe using a special "global" tenant ID
	// In production, you'd want to subscribe with wildcards or JetStream
	sub, err := w.bus.Subscribe(w.ctx, "_global", domain.TopicScreeningRequested, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("global worker started")
	return nil
}

// startTenantWorker starts workers for a specific tenant.
func (w *Worker) startTenantWorker(tenantID string) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicScreeningRequested, func(ctx context.Context, msg *domain.Message) error {
		return w.processScreening(ctx, tenantID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("tenant worker started",
		"tenant_id", tenantID,
		"topic", domain.TopicScreeningRequested,
	)

	return nil
}

// handleMessage handles messages from global subscription.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	return w.processScreening(ctx, msg.TenantID, msg)
}

// ScreeningMessage is the message payload for async screening.
type ScreeningMessage struct {
	TenantID       string            `json:"tenantId"`
	TraceID        string            `json:"traceId,omitempty"`
	Name           string            `json:"name"`
	Type           domain.EntityType `json:"type,omitempty"`
	Address        string            `json:"address,omitempty"`
	Country        string            `json:"country,omitempty"`
	DateOfBirth    string            `json:"dateOfBirth,omitempty"`
	Nationality    string            `json:"nationality,omitempty"`
	VelocityWindow int               `json:"velocityWindow,omitempty"`
}

// processScreening runs a screening request through the pipeline.
func (w *Worker) processScreening(ctx context.Context, tenantID string, msg *domain.Message) error {
	start := time.Now()

	// Parse message
	var scrMsg ScreeningMessage
	if err := json.Unmarshal(msg.Payload, &scrMsg); err != nil {
		slog.Error("failed to parse screening message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	// Use message tenant if provided
	if scrMsg.TenantID != "" {
		tenantID = scrMsg.TenantID
	}

	traceID := scrMsg.TraceID
	if traceID == "" {
		traceID = msg.ID
	}

	slog.Debug("processing screening request",
		"entity_name", scrMsg.Name,
		"tenant_id", tenantID,
		"trace_id", traceID,
	)

	query := &domain.EntityQuery{
		Name:        scrMsg.Name,
		Type:        scrMsg.Type,
		Address:     scrMsg.Address,
		Country:     scrMsg.Country,
		DateOfBirth: scrMsg.DateOfBirth,
		Nationality: scrMsg.Nationality,
	}

	// 1. Screen across all sources
	result, err := w.engine.Screen(ctx, tenantID, query)
	if err != nil {
		slog.Error("screening failed",
			"entity_name", scrMsg.Name,
			"tenant_id", tenantID,
			"error", err,
		)
		return err
	}
	result.Metadata.TraceID = traceID

	// 2. Evaluate post-screening policies
	if w.policies != nil && w.policies.PoliciesCount() > 0 {
		velocityWindow := scrMsg.VelocityWindow
		if velocityWindow == 0 {
			velocityWindow = 3600 // Default 1 hour
		}

		policyResults, err := w.policies.EvaluateAll(ctx, &policy.EvaluateInput{
			TenantID:       tenantID,
			RequestID:      result.RequestID,
			Query:          query,
			MaxScore:       result.MaxScore(),
			MatchCount:     len(result.Findings),
			RiskLevel:      result.RiskLevel,
			SourceErrors:   result.SourceErrors(),
			VelocityWindow: velocityWindow,
		})
		if err != nil {
			slog.Error("policy evaluation failed",
				"request_id", result.RequestID,
				"error", err,
			)
		} else {
			result.PolicyResults = policyResults
			result.Recommendations = append(result.Recommendations, policy.Escalations(policyResults)...)
		}
	}

	// 3. Save screening
	if w.repo != nil {
		rec := &domain.ScreeningRecord{
			ID:        result.RequestID,
			TenantID:  tenantID,
			Query:     *query,
			Result:    result,
			CreatedAt: time.Now().UTC(),
		}
		if err := w.repo.SaveScreening(ctx, tenantID, rec); err != nil {
			slog.Error("failed to save screening",
				"request_id", result.RequestID,
				"error", err,
			)
		}
	}

	// 4. Publish result to completed topic
	resultPayload, _ := json.Marshal(result)
	if err := w.bus.Publish(ctx, tenantID, domain.TopicScreeningCompleted, resultPayload); err != nil {
		slog.Error("failed to publish screening result",
			"request_id", result.RequestID,
			"error", err,
		)
	}

	// 5. High and critical risk raises an alert
	if result.RiskLevel == domain.RiskHigh || result.RiskLevel == domain.RiskCritical {
		if err := w.bus.Publish(ctx, tenantID, domain.TopicScreeningAlert, resultPayload); err != nil {
			slog.Error("failed to publish alert",
				"request_id", result.RequestID,
				"error", err,
			)
		}
	}

	slog.Info("screening processed",
		"request_id", result.RequestID,
		"tenant_id", tenantID,
		"risk_level", result.RiskLevel,
		"findings", len(result.Findings),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
