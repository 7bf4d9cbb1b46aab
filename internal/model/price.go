// Package model holds the core domain types shared across the
// reconciliation pipeline.
package model

// Record is one input row: a SKU and its ordered list of candidate URLs.
// The list may contain duplicates and entries that are not URLs at all;
// the engine filters those, not the parser.
type Record struct {
	SKU  string   `json:"sku"`
	URLs []string `json:"urls"`
}

// Quote is the raw per-source extraction result for a single URL, before
// any price normalization. A Quote is immutable once produced.
//
// RawPrice and AggregatorPrice are price text as extracted; an empty
// string means the source produced no price (out of stock, extraction
// failure, no competing shop). SourceID doubles as the diagnostic tag on
// failure paths ("classnotfound-<site>", "site-NA", ...), which operators
// use for triage.
type Quote struct {
	SourceID        string `json:"source_id"`
	RawPrice        string `json:"raw_price,omitempty"`
	StoreCount      int    `json:"store_count"`
	AggregatorPrice string `json:"aggregator_price,omitempty"`
}

// HasPrice reports whether the quote carries any price text at all.
func (q Quote) HasPrice() bool {
	return q.RawPrice != ""
}

// ReconciliationResult is the canonical per-SKU outcome: the lowest
// normalized price across all quotes and where it came from. SKUs where no
// quote yielded a parseable price produce no result.
//
// MaxStoreCount and MaxAggregatorPrice are maxima over every quote for the
// SKU, including quotes whose own price was unparseable. Zero means absent
// (both values are strictly positive when present); sinks render absent as
// an empty cell, never as 0.
type ReconciliationResult struct {
	SKU                string  `json:"sku"`
	WinningSource      string  `json:"winning_source"`
	MinimumPrice       float64 `json:"minimum_price"`
	MaxStoreCount      int     `json:"max_store_count,omitempty"`
	MaxAggregatorPrice float64 `json:"max_aggregator_price,omitempty"`
}
