package retrieval_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/veille-ai/veille/pkg/domain/interfaces"
	"github.com/veille-ai/veille/pkg/domain/model"
	"github.com/veille-ai/veille/pkg/service/retrieval"
)

type mockProvider struct {
	name     string
	searchFn func(ctx context.Context, query string, maxResults int) ([]model.RetrievalResult, error)
	calls    atomic.Int32
}

func (m *mockProvider) Name() string {
	return m.name
}

func (m *mockProvider) Search(ctx context.Context, query string, maxResults int) ([]model.RetrievalResult, error) {
	m.calls.Add(1)
	return m.searchFn(ctx, query, maxResults)
}

func succeeding(name string, titles ...string) *mockProvider {
	return &mockProvider{
		name: name,
		searchFn: func(ctx context.Context, query string, maxResults int) ([]model.RetrievalResult, error) {
			var results []model.RetrievalResult
			for _, title := range titles {
				results = append(results, model.RetrievalResult{Title: title, URL: "https://" + name + ".example/"})
			}
			return results, nil
		},
	}
}

func failing(name string, err error) *mockProvider {
	return &mockProvider{
		name: name,
		searchFn: func(ctx context.Context, query string, maxResults int) ([]model.RetrievalResult, error) {
			return nil, err
		},
	}
}

func blocking(name string) *mockProvider {
	return &mockProvider{
		name: name,
		searchFn: func(ctx context.Context, query string, maxResults int) ([]model.RetrievalResult, error) {
			<-ctx.Done()
			return nil, goerr.Wrap(retrieval.ErrProviderTimeout, "blocked", goerr.V("cause", ctx.Err()))
		},
	}
}

func delayed(name string, d time.Duration, title string) *mockProvider {
	return &mockProvider{
		name: name,
		searchFn: func(ctx context.Context, query string, maxResults int) ([]model.RetrievalResult, error) {
			select {
			case <-time.After(d):
				return []model.RetrievalResult{{Title: title}}, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	}
}

func newOrchestrator(providers []*mockProvider, opts ...retrieval.OrchestratorOption) *retrieval.Orchestrator {
	list := make([]interfaces.RetrievalProvider, 0, len(providers)+1)
	for _, p := range providers {
		list = append(list, p)
	}
	list = append(list, retrieval.NewFallback(retrieval.WithFallbackClock(fixedClock)))
	return retrieval.NewOrchestrator(list, opts...)
}

func TestOrchestrator_PriorityOrder(t *testing.T) {
	t.Run("first provider wins and later tiers are not called", func(t *testing.T) {
		scrape := succeeding("scrape", "from scrape")
		meta := succeeding("meta", "from meta")

		results := newOrchestrator([]*mockProvider{scrape, meta}).Retrieve(context.Background(), "q", 5)
		gt.Array(t, results).Length(1).Required()
		gt.Value(t, results[0].Title).Equal("from scrape")
		gt.Value(t, results[0].SourceLabel).Equal("scrape")
		gt.Value(t, meta.calls.Load()).Equal(int32(0))
	})

	t.Run("failed first tier falls through to second", func(t *testing.T) {
		scrape := failing("scrape", goerr.Wrap(retrieval.ErrProviderStatus, "blocked", goerr.V("status", 403)))
		meta := succeeding("meta", "from meta")

		results := newOrchestrator([]*mockProvider{scrape, meta}).Retrieve(context.Background(), "q", 5)
		gt.Array(t, results).Length(1).Required()
		gt.Value(t, results[0].Title).Equal("from meta")
	})

	t.Run("empty result set falls through", func(t *testing.T) {
		scrape := succeeding("scrape")
		meta := succeeding("meta", "from meta")

		results := newOrchestrator([]*mockProvider{scrape, meta}).Retrieve(context.Background(), "q", 5)
		gt.Value(t, results[0].Title).Equal("from meta")
		gt.Value(t, scrape.calls.Load()).Equal(int32(1))
	})

	t.Run("results without titles count as empty", func(t *testing.T) {
		scrape := &mockProvider{
			name: "scrape",
			searchFn: func(ctx context.Context, query string, maxResults int) ([]model.RetrievalResult, error) {
				return []model.RetrievalResult{{Title: "  ", Snippet: "orphan"}}, nil
			},
		}
		meta := succeeding("meta", "from meta")

		results := newOrchestrator([]*mockProvider{scrape, meta}).Retrieve(context.Background(), "q", 5)
		gt.Value(t, results[0].Title).Equal("from meta")
	})

	t.Run("caps to maxResults", func(t *testing.T) {
		scrape := succeeding("scrape", "a", "b", "c", "d")

		results := newOrchestrator([]*mockProvider{scrape}).Retrieve(context.Background(), "q", 2)
		gt.Array(t, results).Length(2)
	})
}

func TestOrchestrator_AllNetworkTiersFail(t *testing.T) {
	scrape := failing("scrape", goerr.Wrap(retrieval.ErrProviderTransport, "connection refused"))
	meta := failing("meta", goerr.Wrap(retrieval.ErrProviderPayload, "bad json"))

	results := newOrchestrator([]*mockProvider{scrape, meta}).Retrieve(context.Background(), "actualités France 2025", 5)
	gt.Array(t, results).Length(3).Required()

	generic := map[string]bool{"France TV Info": true, "Le Monde": true, "BBC Afrique": true}
	for _, r := range results {
		gt.Bool(t, generic[r.SourceLabel]).True()
	}
	gt.Value(t, scrape.calls.Load()).Equal(int32(1))
	gt.Value(t, meta.calls.Load()).Equal(int32(1))
}

func TestOrchestrator_AbsorbsUnexpectedFailures(t *testing.T) {
	t.Run("error outside the provider classes", func(t *testing.T) {
		scrape := failing("scrape", errors.New("boom"))
		results := newOrchestrator([]*mockProvider{scrape}).Retrieve(context.Background(), "q", 5)
		gt.Array(t, results).Length(3)
	})

	t.Run("panic", func(t *testing.T) {
		scrape := &mockProvider{
			name: "scrape",
			searchFn: func(ctx context.Context, query string, maxResults int) ([]model.RetrievalResult, error) {
				panic("nil map")
			},
		}
		meta := succeeding("meta", "from meta")

		results := newOrchestrator([]*mockProvider{scrape, meta}).Retrieve(context.Background(), "q", 5)
		gt.Value(t, results[0].Title).Equal("from meta")
	})
}

func TestOrchestrator_Timeouts(t *testing.T) {
	t.Run("per-provider timeout moves on to the next tier", func(t *testing.T) {
		scrape := blocking("scrape")
		meta := succeeding("meta", "from meta")

		o := newOrchestrator([]*mockProvider{scrape, meta},
			retrieval.WithProviderTimeout(50*time.Millisecond),
			retrieval.WithBudget(5*time.Second),
		)
		results := o.Retrieve(context.Background(), "q", 5)
		gt.Value(t, results[0].Title).Equal("from meta")
	})

	t.Run("exhausted budget skips remaining network tiers", func(t *testing.T) {
		scrape := blocking("scrape")
		meta := succeeding("meta", "from meta")

		o := newOrchestrator([]*mockProvider{scrape, meta},
			retrieval.WithProviderTimeout(5*time.Second),
			retrieval.WithBudget(50*time.Millisecond),
		)

		started := time.Now()
		results := o.Retrieve(context.Background(), "actualités", 5)
		gt.Bool(t, time.Since(started) < 2*time.Second).True()

		gt.Array(t, results).Length(3).Required()
		gt.Value(t, results[0].SourceLabel).Equal("France TV Info")
		gt.Value(t, meta.calls.Load()).Equal(int32(0))
	})

	t.Run("cancelled caller still gets the fallback", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		scrape := blocking("scrape")
		results := newOrchestrator([]*mockProvider{scrape}).Retrieve(ctx, "q", 5)
		gt.Array(t, results).Length(3)
		gt.Value(t, scrape.calls.Load()).Equal(int32(0))
	})
}

func TestOrchestrator_Speculative(t *testing.T) {
	t.Run("slower higher-priority provider still wins", func(t *testing.T) {
		scrape := delayed("scrape", 100*time.Millisecond, "from scrape")
		meta := succeeding("meta", "from meta")

		o := newOrchestrator([]*mockProvider{scrape, meta}, retrieval.WithSpeculative(true))
		results := o.Retrieve(context.Background(), "q", 5)
		gt.Array(t, results).Length(1).Required()
		gt.Value(t, results[0].Title).Equal("from scrape")
		gt.Value(t, meta.calls.Load()).Equal(int32(1))
	})

	t.Run("lower priority wins when higher fails", func(t *testing.T) {
		scrape := failing("scrape", goerr.Wrap(retrieval.ErrProviderStatus, "429"))
		meta := delayed("meta", 20*time.Millisecond, "from meta")

		o := newOrchestrator([]*mockProvider{scrape, meta}, retrieval.WithSpeculative(true))
		results := o.Retrieve(context.Background(), "q", 5)
		gt.Value(t, results[0].Title).Equal("from meta")
	})

	t.Run("winner known early cancels slower tiers", func(t *testing.T) {
		scrape := succeeding("scrape", "from scrape")
		meta := blocking("meta")

		o := newOrchestrator([]*mockProvider{scrape, meta},
			retrieval.WithSpeculative(true),
			retrieval.WithProviderTimeout(5*time.Second),
			retrieval.WithBudget(5*time.Second),
		)

		started := time.Now()
		results := o.Retrieve(context.Background(), "q", 5)
		gt.Bool(t, time.Since(started) < 2*time.Second).True()
		gt.Value(t, results[0].Title).Equal("from scrape")
	})

	t.Run("all fail", func(t *testing.T) {
		scrape := failing("scrape", retrieval.ErrNoResults)
		meta := blocking("meta")

		o := newOrchestrator([]*mockProvider{scrape, meta},
			retrieval.WithSpeculative(true),
			retrieval.WithBudget(50*time.Millisecond),
		)
		results := o.Retrieve(context.Background(), "sport", 5)
		gt.Array(t, results).Length(3).Required()
		gt.Value(t, results[0].SourceLabel).Equal("L'Équipe")
	})
}

func TestOrchestrator_FallbackAlwaysLast(t *testing.T) {
	fb := retrieval.NewFallback()
	meta := succeeding("meta", "x")

	o := retrieval.NewOrchestrator([]interfaces.RetrievalProvider{fb, meta})
	tiers := o.Providers()
	gt.Array(t, tiers).Length(2).Required()
	gt.Value(t, tiers[0].Name()).Equal("meta")
	gt.Value(t, tiers[1].Name()).Equal(fb.Name())

	t.Run("appended when omitted", func(t *testing.T) {
		tiers := retrieval.NewOrchestrator(nil).Providers()
		gt.Array(t, tiers).Length(1).Required()
		_, ok := tiers[0].(*retrieval.Fallback)
		gt.Bool(t, ok).True()
	})
}

func TestOrchestrator_NeverEmpty(t *testing.T) {
	queries := []string{"", " ", "bonjour", "actualités France 2025", "élection", "🙂", "a very long query " + string(make([]byte, 1000))}

	o := newOrchestrator([]*mockProvider{
		failing("scrape", retrieval.ErrProviderTimeout),
		succeeding("meta"),
	})

	for _, q := range queries {
		for _, max := range []int{-1, 0, 1, 5, 50} {
			results := o.Retrieve(context.Background(), q, max)
			gt.Number(t, len(results)).GreaterOrEqual(1)
			if max > 0 {
				gt.Number(t, len(results)).LessOrEqual(max)
			} else {
				gt.Number(t, len(results)).LessOrEqual(retrieval.DefaultMaxResults)
			}
			for _, r := range results {
				gt.Number(t, len([]rune(r.Snippet))).LessOrEqual(model.SnippetMaxLength + len(model.SnippetEllipsis))
			}
		}
	}
}
