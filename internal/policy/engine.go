// Package policy provides the CEL-Go based post-screening policy engine.
// Policies are tenant-configurable expressions evaluated over a consolidated
// screening result; they add advisory outcomes on top of the core risk
// classifier and never lower its tier.
package policy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/opensource-finance/harrier/internal/domain"
)

// Engine is the CEL-based policy evaluation engine.
type Engine struct {
	mu                sync.RWMutex
	env               *cel.Env
	compiledPolicies  map[string]*CompiledPolicy
	screenCountGetter ScreenCountGetter
	maxWorkers        int
}

// CompiledPolicy holds a pre-compiled CEL program.
type CompiledPolicy struct {
	Config  *domain.PolicyConfig
	Program cel.Program
}

// ScreenCountGetter returns how many times an entity was screened for a
// tenant within a time window. Backed by the cache's atomic counters.
type ScreenCountGetter func(ctx context.Context, tenantID, entityKey string, windowSecs int) (int64, error)

// NewEngine creates a new policy evaluation engine.
func NewEngine(screenCountGetter ScreenCountGetter, maxWorkers int) (*Engine, error) {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}

	// Create CEL environment with screening result variables
	env, err := cel.NewEnv(
		cel.Variable("query", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("entity_name", cel.StringType),
		cel.Variable("entity_type", cel.StringType),
		cel.Variable("country", cel.StringType),
		cel.Variable("max_score", cel.DoubleType),
		cel.Variable("match_count", cel.IntType),
		cel.Variable("risk_level", cel.StringType),
		cel.Variable("source_errors", cel.IntType),
		cel.Variable("screen_count", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:               env,
		compiledPolicies:  make(map[string]*CompiledPolicy),
		screenCountGetter: screenCountGetter,
		maxWorkers:        maxWorkers,
	}, nil
}

// ValidatePolicy compiles and validates a policy without mutating loaded policies.
func (e *Engine) ValidatePolicy(cfg *domain.PolicyConfig) error {
	if cfg == nil {
		return fmt.Errorf("policy config is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compilePolicy(cfg)
	return err
}

// LoadPolicy compiles and loads a policy into the engine.
func (e *Engine) LoadPolicy(cfg *domain.PolicyConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compilePolicy(cfg)
	if err != nil {
		return err
	}

	e.compiledPolicies[cfg.ID] = compiled

	return nil
}

// LoadPolicies compiles and loads multiple policies.
func (e *Engine) LoadPolicies(configs []*domain.PolicyConfig) error {
	for _, cfg := range configs {
		if cfg.Enabled {
			if err := e.LoadPolicy(cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

// EvaluateInput holds the screening outcome data for policy evaluation.
type EvaluateInput struct {
	TenantID       string
	RequestID      string
	Query          *domain.EntityQuery
	MaxScore       float64
	MatchCount     int
	RiskLevel      domain.RiskLevel
	SourceErrors   int
	VelocityWindow int // seconds; 0 skips the screen_count lookup
}

// EvaluateAll evaluates all loaded policies in parallel.
func (e *Engine) EvaluateAll(ctx context.Context, input *EvaluateInput) ([]domain.PolicyResult, error) {
	e.mu.RLock()
	policies := make([]*CompiledPolicy, 0, len(e.compiledPolicies))
	for _, p := range e.compiledPolicies {
		policies = append(policies, p)
	}
	e.mu.RUnlock()

	if len(policies) == 0 {
		return nil, nil
	}

	// Get screening velocity if a getter is available
	var screenCount int64
	if e.screenCountGetter != nil && input.VelocityWindow > 0 && input.Query != nil {
		count, err := e.screenCountGetter(ctx, input.TenantID, input.Query.Name, input.VelocityWindow)
		if err == nil {
			screenCount = count
		}
	}

	activation := e.buildActivation(input, screenCount)

	// Parallel evaluation using worker pool pattern
	results := make([]domain.PolicyResult, len(policies))
	var wg sync.WaitGroup

	// Limit concurrency with semaphore
	sem := make(chan struct{}, e.maxWorkers)

	for i, p := range policies {
		wg.Add(1)
		go func(idx int, cp *CompiledPolicy) {
			defer wg.Done()

			sem <- struct{}{}        // Acquire
			defer func() { <-sem }() // Release

			results[idx] = e.evaluatePolicy(cp, activation, input)
		}(i, p)
	}

	wg.Wait()

	return results, nil
}

func (e *Engine) buildActivation(input *EvaluateInput, screenCount int64) map[string]any {
	queryMap := map[string]any{}
	entityName, entityType, country := "", "", ""
	if input.Query != nil {
		entityName = input.Query.Name
		entityType = string(input.Query.Type)
		country = input.Query.Country
		queryMap = map[string]any{
			"name":         input.Query.Name,
			"type":         string(input.Query.Type),
			"address":      input.Query.Address,
			"country":      input.Query.Country,
			"date_of_birth": input.Query.DateOfBirth,
			"nationality":  input.Query.Nationality,
		}
	}

	return map[string]any{
		"query":         queryMap,
		"entity_name":   entityName,
		"entity_type":   entityType,
		"country":       country,
		"max_score":     input.MaxScore,
		"match_count":   input.MatchCount,
		"risk_level":    string(input.RiskLevel),
		"source_errors": input.SourceErrors,
		"screen_count":  screenCount,
	}
}

// evaluatePolicy evaluates a single policy and returns the result.
func (e *Engine) evaluatePolicy(cp *CompiledPolicy, activation map[string]any, input *EvaluateInput) domain.PolicyResult {
	start := time.Now()

	result := domain.PolicyResult{
		PolicyID:  cp.Config.ID,
		TenantID:  input.TenantID,
		RequestID: input.RequestID,
	}

	// Evaluate CEL expression
	out, _, err := cp.Program.Eval(activation)
	if err != nil {
		result.Outcome = domain.PolicyOutcomeError
		result.Reason = fmt.Sprintf("evaluation error: %v", err)
		result.ProcessMs = time.Since(start).Milliseconds()
		return result
	}

	// Convert result to score
	score := toScore(out)
	result.Score = score

	// Determine outcome based on bands
	result.Outcome, result.Reason = matchBand(score, cp.Config.Bands)
	result.ProcessMs = time.Since(start).Milliseconds()

	return result
}

// toScore converts a CEL value to a numeric score.
func toScore(val ref.Val) float64 {
	switch v := val.(type) {
	case types.Bool:
		if v {
			return 1.0
		}
		return 0.0
	case types.Double:
		return float64(v)
	case types.Int:
		return float64(v)
	default:
		return 0.0
	}
}

// matchBand finds the matching band for a score.
// Bands are evaluated in order: lower inclusive, upper exclusive,
// except when upper is nil (meaning infinity).
func matchBand(score float64, bands []domain.PolicyBand) (string, string) {
	for _, band := range bands {
		lower := 0.0
		hasUpper := band.UpperLimit != nil
		upper := float64(1e9) // effectively infinity

		if band.LowerLimit != nil {
			lower = *band.LowerLimit
		}
		if hasUpper {
			upper = *band.UpperLimit
		}

		if score >= lower {
			if !hasUpper || score < upper {
				return band.Outcome, band.Reason
			}
		}
	}

	// Default to pass if no band matches
	return domain.PolicyOutcomePass, "no matching band"
}

// PoliciesCount returns the number of loaded policies.
func (e *Engine) PoliciesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledPolicies)
}

// ReloadPolicies clears all existing policies and loads new ones.
// This enables hot-reloading of policies from the database.
func (e *Engine) ReloadPolicies(configs []*domain.PolicyConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	newPolicies := make(map[string]*CompiledPolicy)

	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}

		compiled, err := e.compilePolicy(cfg)
		if err != nil {
			return err
		}
		newPolicies[cfg.ID] = compiled
	}

	e.compiledPolicies = newPolicies

	return nil
}

// GetLoadedPolicies returns the currently loaded policy configurations.
func (e *Engine) GetLoadedPolicies() []*domain.PolicyConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()

	policies := make([]*domain.PolicyConfig, 0, len(e.compiledPolicies))
	for _, compiled := range e.compiledPolicies {
		policies = append(policies, compiled.Config)
	}
	return policies
}

// Close cleans up the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiledPolicies = make(map[string]*CompiledPolicy)
	return nil
}

func (e *Engine) compilePolicy(cfg *domain.PolicyConfig) (*CompiledPolicy, error) {
	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile policy %s: %w", cfg.ID, issues.Err())
	}

	outputType := ast.OutputType()
	if outputType != cel.BoolType && outputType != cel.DoubleType && outputType != cel.IntType {
		return nil, fmt.Errorf("policy %s: expression must return bool, int, or double, got %s", cfg.ID, outputType)
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for policy %s: %w", cfg.ID, err)
	}

	return &CompiledPolicy{
		Config:  cfg,
		Program: program,
	}, nil
}

// Escalations extracts the reasons of review/escalate outcomes, in input
// order, for appending to a result's recommendations.
func Escalations(results []domain.PolicyResult) []string {
	var reasons []string
	for _, r := range results {
		if r.Outcome == domain.PolicyOutcomeReview || r.Outcome == domain.PolicyOutcomeEscalate {
			if r.Reason != "" {
				reasons = append(reasons, r.Reason)
			}
		}
	}
	return reasons
}
