// Package engine orchestrates reconciliation: one identifier at a time,
// one URL at a time, no concurrency. A retry wait anywhere in the stack
// stalls the whole pipeline, which is acceptable for this batch workload.
package engine

import (
	"context"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/delfi-foods/pricescout/internal/adapter"
	"github.com/delfi-foods/pricescout/internal/model"
	"github.com/delfi-foods/pricescout/internal/normalize"
	"github.com/delfi-foods/pricescout/internal/sink"
)

// Fetcher resolves a URL to a quote, degrading failures internally.
type Fetcher interface {
	Fetch(ctx context.Context, url string) model.Quote
	RequiresSession(url string) bool
}

// SessionRotator is the engine's handle on the shared browser session.
// Rotation failure means the run cannot continue.
type SessionRotator interface {
	Rotate() error
}

// quoteCacheSize bounds the per-identifier quote cache. URL lists repeat
// entries occasionally; within one identifier the same URL always yields
// the same quote, so refetching is wasted I/O.
const quoteCacheSize = 128

// Engine drives the per-identifier reconciliation state machine.
type Engine struct {
	fetcher     Fetcher
	session     SessionRotator // nil when no rendered sites are in play
	out         sink.Sink
	metrics     *adapter.Metrics
	rotateEvery int
	uses        int // rendered-session uses across the whole run
}

// Option configures the engine.
type Option func(*Engine)

// WithRotateEvery overrides the session rotation threshold.
func WithRotateEvery(n int) Option {
	return func(e *Engine) { e.rotateEvery = n }
}

// WithMetrics attaches collectors.
func WithMetrics(m *adapter.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New creates an engine. session may be nil when the URL set needs no
// rendering.
func New(fetcher Fetcher, session SessionRotator, out sink.Sink, opts ...Option) *Engine {
	e := &Engine{
		fetcher:     fetcher,
		session:     session,
		out:         out,
		rotateEvery: 10,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run reconciles every record in order and writes the final table. Each
// resolved identifier is appended to the sink immediately, so partial
// progress survives an external kill even though the table does not.
func (e *Engine) Run(ctx context.Context, records []model.Record) ([]model.ReconciliationResult, error) {
	var results []model.ReconciliationResult

	for _, rec := range records {
		res, diag, err := e.reconcile(ctx, rec)
		if err != nil {
			return results, err
		}
		if res == nil {
			// No quote produced a parseable price: the identifier is
			// dropped from both outputs.
			zap.L().Debug("identifier empty, dropped", zap.String("sku", rec.SKU))
			continue
		}

		if err := e.out.AppendDiagnostic(ctx, *diag); err != nil {
			return results, eris.Wrapf(err, "engine: append diagnostic %s", rec.SKU)
		}
		results = append(results, *res)

		zap.L().Info("identifier resolved",
			zap.String("sku", res.SKU),
			zap.String("source", res.WinningSource),
			zap.Float64("price", res.MinimumPrice),
		)
	}

	if err := e.out.WriteFinalTable(ctx, results); err != nil {
		return results, eris.Wrap(err, "engine: write final table")
	}
	return results, nil
}

// reconcile runs one identifier through Pending → Collecting →
// Resolved|Empty. A nil result means Empty.
func (e *Engine) reconcile(ctx context.Context, rec model.Record) (*model.ReconciliationResult, *sink.Diagnostic, error) {
	cache, err := lru.New[string, model.Quote](quoteCacheSize)
	if err != nil {
		return nil, nil, eris.Wrap(err, "engine: quote cache")
	}

	var quotes []model.Quote
	for _, raw := range rec.URLs {
		u := strings.TrimSpace(raw)
		if !strings.Contains(u, "http") {
			continue
		}

		if q, ok := cache.Get(u); ok {
			quotes = append(quotes, q)
			continue
		}

		if e.fetcher.RequiresSession(u) {
			if err := e.noteSessionUse(); err != nil {
				return nil, nil, err
			}
		}

		q := e.fetcher.Fetch(ctx, u)
		cache.Add(u, q)
		quotes = append(quotes, q)
	}

	return selectResult(rec.SKU, quotes)
}

// noteSessionUse counts one rendered fetch and rotates the session on the
// configured boundary. The counter is shared across identifiers; it is
// the only state carried between them.
func (e *Engine) noteSessionUse() error {
	e.uses++
	if e.session == nil || e.rotateEvery <= 0 || e.uses%e.rotateEvery != 0 {
		return nil
	}
	if err := e.session.Rotate(); err != nil {
		return eris.Wrap(err, "engine: rotate session")
	}
	e.metrics.IncSessionRotation()
	zap.L().Debug("session rotated", zap.Int("uses", e.uses))
	return nil
}

// selectResult normalizes every quote and picks the canonical outcome.
func selectResult(sku string, quotes []model.Quote) (*model.ReconciliationResult, *sink.Diagnostic, error) {
	minIdx := -1
	var minPrice float64
	storeCounts := make([]int, len(quotes))
	aggPrices := make([]float64, len(quotes))

	for i, q := range quotes {
		storeCounts[i] = q.StoreCount
		if v, ok := normalize.Clean(q.AggregatorPrice); ok {
			aggPrices[i] = v
		}

		if !q.HasPrice() {
			// Absent raw text never contributes to selection, even when
			// Clean would parse an empty-adjacent string.
			continue
		}
		v, ok := normalize.Clean(q.RawPrice)
		if !ok {
			continue
		}
		// Strict less-than keeps the first-seen quote on ties.
		if minIdx == -1 || v < minPrice {
			minIdx = i
			minPrice = v
		}
	}

	if minIdx == -1 {
		return nil, nil, nil
	}

	maxStore := 0
	for _, c := range storeCounts {
		if c > maxStore {
			maxStore = c
		}
	}
	var maxAgg float64
	for _, p := range aggPrices {
		if p > maxAgg {
			maxAgg = p
		}
	}

	res := &model.ReconciliationResult{
		SKU:                sku,
		WinningSource:      quotes[minIdx].SourceID,
		MinimumPrice:       minPrice,
		MaxStoreCount:      maxStore,
		MaxAggregatorPrice: maxAgg,
	}
	diag := &sink.Diagnostic{
		SKU:              sku,
		MinimumPrice:     minPrice,
		WinningSource:    res.WinningSource,
		StoreCounts:      storeCounts,
		AggregatorPrices: aggPrices,
	}
	return res, diag, nil
}
