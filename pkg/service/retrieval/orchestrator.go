package retrieval

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/veille-ai/veille/pkg/domain/interfaces"
	"github.com/veille-ai/veille/pkg/domain/model"
	"github.com/veille-ai/veille/pkg/utils/errutil"
	"github.com/veille-ai/veille/pkg/utils/logging"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultProviderTimeout = 8 * time.Second
	DefaultBudget          = 12 * time.Second
	DefaultMaxResults      = 5
)

// Orchestrator runs providers in fixed priority order and returns the results of the first one
// that yields anything. The static fallback always runs last, so Retrieve never comes back empty.
type Orchestrator struct {
	providers       []interfaces.RetrievalProvider
	fallback        *Fallback
	providerTimeout time.Duration
	budget          time.Duration
	speculative     bool
}

type OrchestratorOption func(*Orchestrator)

// WithProviderTimeout bounds a single provider call
func WithProviderTimeout(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if d > 0 {
			o.providerTimeout = d
		}
	}
}

// WithBudget bounds the cumulative time spent on network providers
func WithBudget(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if d > 0 {
			o.budget = d
		}
	}
}

// WithSpeculative runs network providers concurrently. The winner is still chosen by priority.
func WithSpeculative(enabled bool) OrchestratorOption {
	return func(o *Orchestrator) {
		o.speculative = enabled
	}
}

// NewOrchestrator takes providers in priority order. A *Fallback in the list is moved to the
// final position; without one, a default Fallback is appended.
func NewOrchestrator(providers []interfaces.RetrievalProvider, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		providerTimeout: DefaultProviderTimeout,
		budget:          DefaultBudget,
	}

	for _, p := range providers {
		if p == nil {
			continue
		}
		if fb, ok := p.(*Fallback); ok {
			o.fallback = fb
			continue
		}
		o.providers = append(o.providers, p)
	}
	if o.fallback == nil {
		o.fallback = NewFallback()
	}

	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Providers returns the tiers in the order they are tried, fallback included
func (o *Orchestrator) Providers() []interfaces.RetrievalProvider {
	tiers := make([]interfaces.RetrievalProvider, 0, len(o.providers)+1)
	tiers = append(tiers, o.providers...)
	return append(tiers, o.fallback)
}

// Retrieve returns a non-empty list of results for query. Provider failures are absorbed.
func (o *Orchestrator) Retrieve(ctx context.Context, query string, maxResults int) []model.RetrievalResult {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	budgetCtx, cancel := context.WithTimeout(ctx, o.budget)
	defer cancel()

	var results []model.RetrievalResult
	if o.speculative {
		results = o.runSpeculative(budgetCtx, query, maxResults)
	} else {
		results = o.runSequential(budgetCtx, query, maxResults)
	}
	if len(results) > 0 {
		return results
	}

	logging.From(ctx).Info("using static fallback", "query", query)
	results = o.fallback.Synthesize(query, maxResults)
	if len(results) == 0 {
		results = NewFallback(WithFallbackClock(o.fallback.now)).Synthesize(query, maxResults)
	}
	return results
}

func (o *Orchestrator) runSequential(ctx context.Context, query string, maxResults int) []model.RetrievalResult {
	for _, p := range o.providers {
		if ctx.Err() != nil {
			logging.From(ctx).Info("retrieval budget exhausted, skipping provider", "provider", p.Name())
			continue
		}
		if results := o.call(ctx, p, query, maxResults); len(results) > 0 {
			return results
		}
	}
	return nil
}

func (o *Orchestrator) runSpeculative(ctx context.Context, query string, maxResults int) []model.RetrievalResult {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu    sync.Mutex
		slots = make([][]model.RetrievalResult, len(o.providers))
		done  = make([]bool, len(o.providers))
	)

	eg, egCtx := errgroup.WithContext(ctx)
	for i, p := range o.providers {
		eg.Go(func() error {
			results := o.call(egCtx, p, query, maxResults)

			mu.Lock()
			defer mu.Unlock()
			slots[i] = results
			done[i] = true
			if decided(slots, done) {
				cancel()
			}
			return nil
		})
	}
	_ = eg.Wait()

	for _, results := range slots {
		if len(results) > 0 {
			return results
		}
	}
	return nil
}

// decided reports whether the winner by priority is known: every provider ahead of the first
// non-empty one has finished.
func decided(slots [][]model.RetrievalResult, done []bool) bool {
	for i := range slots {
		if !done[i] {
			return false
		}
		if len(slots[i]) > 0 {
			return true
		}
	}
	return true
}

// call runs one provider under its own timeout and converts every failure into an empty result
func (o *Orchestrator) call(ctx context.Context, p interfaces.RetrievalProvider, query string, maxResults int) (results []model.RetrievalResult) {
	logger := logging.From(ctx)

	callCtx, cancel := context.WithTimeout(ctx, o.providerTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			_ = errutil.Handle(ctx, goerr.New("retrieval provider panicked",
				goerr.V("provider", p.Name()), goerr.V("panic", r)), "retrieval provider panicked")
			results = nil
		}
	}()

	started := time.Now()
	found, err := p.Search(callCtx, query, maxResults)
	if err != nil {
		if IsProviderError(err) {
			logger.Warn("retrieval provider failed",
				"provider", p.Name(),
				"error", err.Error(),
				"elapsed", time.Since(started),
			)
		} else {
			_ = errutil.Handle(ctx, goerr.Wrap(err, "unexpected retrieval provider error",
				goerr.V("provider", p.Name())), "unexpected retrieval provider error")
		}
		return nil
	}

	results = model.NormalizeResults(found, p.Name(), maxResults)
	if len(results) == 0 {
		logger.Debug("retrieval provider returned no results", "provider", p.Name())
		return nil
	}

	logger.Debug("retrieval provider succeeded",
		"provider", p.Name(),
		"count", len(results),
		"elapsed", time.Since(started),
	)
	return results
}
