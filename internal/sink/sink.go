// Package sink receives reconciliation output: an incremental diagnostic
// append log written as each identifier resolves, and a final structured
// table written once at the end of the run.
package sink

import (
	"context"

	"github.com/delfi-foods/pricescout/internal/model"
)

// Diagnostic is the per-identifier record appended as soon as the
// identifier resolves, so a killed run still leaves durable progress.
type Diagnostic struct {
	SKU              string
	MinimumPrice     float64
	WinningSource    string
	StoreCounts      []int
	AggregatorPrices []float64
}

// Sink is the engine's write boundary.
type Sink interface {
	AppendDiagnostic(ctx context.Context, d Diagnostic) error
	WriteFinalTable(ctx context.Context, rows []model.ReconciliationResult) error
}

// Multi fans writes out to several sinks. The first error wins but every
// sink still gets the write.
type Multi []Sink

func (m Multi) AppendDiagnostic(ctx context.Context, d Diagnostic) error {
	var firstErr error
	for _, s := range m {
		if err := s.AppendDiagnostic(ctx, d); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m Multi) WriteFinalTable(ctx context.Context, rows []model.ReconciliationResult) error {
	var firstErr error
	for _, s := range m {
		if err := s.WriteFinalTable(ctx, rows); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
