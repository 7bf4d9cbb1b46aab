package adapter

import (
	"context"
	"errors"
	"strconv"

	"github.com/delfi-foods/pricescout/internal/model"
	"github.com/delfi-foods/pricescout/pkg/skroutz"
)

const aggregatorSite = "skroutz"

// AggregatorAdapter resolves a quote through the marketplace comparison
// client. The quote's price and aggregator reference price are the same
// value: the aggregator path never reports our own shop's price.
type AggregatorAdapter struct {
	client skroutz.Client
}

// NewAggregatorAdapter wraps a comparison client.
func NewAggregatorAdapter(client skroutz.Client) *AggregatorAdapter {
	return &AggregatorAdapter{client: client}
}

func (a *AggregatorAdapter) Name() string { return aggregatorSite }

func (a *AggregatorAdapter) Fetch(ctx context.Context, rawURL string) (model.Quote, error) {
	cmp, err := a.client.CompareProduct(ctx, rawURL)
	if err != nil {
		if errors.Is(err, skroutz.ErrInvalidURL) {
			return model.Quote{}, &FetchError{Kind: FailureMalformedURL, Site: aggregatorSite, Err: err}
		}
		return model.Quote{}, &FetchError{Kind: FailureUnresolved, Site: aggregatorSite, Err: err}
	}

	q := model.Quote{SourceID: aggregatorSite, StoreCount: cmp.ShopCount}
	if cmp.HasReference {
		price := strconv.FormatFloat(cmp.ReferencePrice, 'f', -1, 64)
		q.RawPrice = price
		q.AggregatorPrice = price
	}
	return q, nil
}
