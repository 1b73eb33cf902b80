// Package screening implements the fan-out and match-consolidation engine:
// it queries all configured sources concurrently, tolerates any subset
// failing or timing out, merges duplicate candidates across sources and
// derives an overall risk verdict.
package screening

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

// sourceResult is one source's terminal state. Each fan-out goroutine owns
// exactly one slot, so no locking is needed beyond the join.
type sourceResult struct {
	sourceID   string
	candidates []domain.MatchCandidate
	outcome    domain.SourceOutcome
}

// ScreenAll dispatches the query to every gateway concurrently, bounding
// each call by sourceTimeout, and waits for all of them to reach a terminal
// state (success, error, or timeout). A slow or broken source only affects
// its own outcome: there is no early exit and no cancellation of siblings.
func ScreenAll(ctx context.Context, query *domain.EntityQuery, gateways []domain.SourceGateway, sourceTimeout time.Duration) (map[string][]domain.MatchCandidate, map[string]domain.SourceOutcome) {
	if sourceTimeout <= 0 {
		sourceTimeout = domain.DefaultScreeningConfig().SourceTimeout
	}

	results := make([]sourceResult, len(gateways))

	var wg sync.WaitGroup
	for i, gw := range gateways {
		wg.Add(1)
		go func(idx int, gw domain.SourceGateway) {
			defer wg.Done()
			results[idx] = screenOne(ctx, query, gw, sourceTimeout)
		}(i, gw)
	}
	wg.Wait()

	candidatesBySource := make(map[string][]domain.MatchCandidate, len(gateways))
	outcomes := make(map[string]domain.SourceOutcome, len(gateways))

	for _, r := range results {
		outcomes[r.sourceID] = r.outcome
		if r.outcome.Status == domain.SourceSuccess {
			candidatesBySource[r.sourceID] = r.candidates
		}
	}

	return candidatesBySource, outcomes
}

// screenReply carries a gateway's return values across the timeout select.
type screenReply struct {
	candidates []domain.MatchCandidate
	err        error
}

// screenOne runs a single gateway call under its own timeout context.
// The timeout cancels only this source's call; an adapter that ignores its
// context is abandoned (the buffered channel lets its goroutine finish).
func screenOne(ctx context.Context, query *domain.EntityQuery, gw domain.SourceGateway, timeout time.Duration) sourceResult {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	replyCh := make(chan screenReply, 1)
	go func() {
		candidates, err := gw.Screen(callCtx, query)
		replyCh <- screenReply{candidates: candidates, err: err}
	}()

	select {
	case reply := <-replyCh:
		if reply.err != nil {
			status := domain.SourceError
			if errors.Is(reply.err, context.DeadlineExceeded) {
				status = domain.SourceTimeout
			}
			return sourceResult{
				sourceID: gw.ID(),
				outcome:  domain.SourceOutcome{Status: status, ErrorDetail: reply.err.Error()},
			}
		}
		// Zero candidates is a valid, non-error outcome.
		return sourceResult{
			sourceID:   gw.ID(),
			candidates: reply.candidates,
			outcome: domain.SourceOutcome{
				Status:     domain.SourceSuccess,
				MatchCount: len(reply.candidates),
			},
		}

	case <-callCtx.Done():
		return sourceResult{
			sourceID: gw.ID(),
			outcome: domain.SourceOutcome{
				Status:      domain.SourceTimeout,
				ErrorDetail: callCtx.Err().Error(),
			},
		}
	}
}
