// Package adapter turns candidate URLs into raw price quotes. Each
// adapter implements one extraction capability; the Registry dispatches a
// URL to the right one and degrades failures into tagged quotes so a
// single bad source never aborts a reconciliation pass.
package adapter

import (
	"context"

	"github.com/delfi-foods/pricescout/internal/model"
)

// Kind identifies the extraction capability a URL requires.
type Kind int

const (
	// KindUnknown means no pattern in the route table matched.
	KindUnknown Kind = iota
	// KindStatic is a single non-interactive HTTP fetch plus DOM lookup.
	KindStatic
	// KindRendered requires a full browser session.
	KindRendered
	// KindAggregator is the marketplace comparison API.
	KindAggregator
)

// Adapter fetches a single URL and returns its raw quote. Extraction
// failures come back as *FetchError so the registry can tag them.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context, url string) (model.Quote, error)
}
