package adapter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delfi-foods/pricescout/internal/model"
)

func TestResolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url      string
		wantKind Kind
		wantSite string
	}{
		{"https://www.skroutz.gr/s/123/product.html", KindAggregator, "skroutz"},
		{"https://www.e-fresh.gr/el/p/product", KindRendered, "e-fresh.gr"},
		{"https://glutenfreeyourself.gr/product/bread", KindStatic, "glutenfreeyourself.gr"},
		{"https://www.sklavenitis.gr/p/123", KindStatic, "sklavenitis.gr"},
		{"https://www.2pharmacy.gr/p/123", KindStatic, "2pharmacy.gr"},
		{"https://example.com/whatever", KindUnknown, "example.com"},
	}

	for _, tt := range tests {
		kind, site := Resolve(tt.url)
		assert.Equal(t, tt.wantKind, kind, tt.url)
		assert.Equal(t, tt.wantSite, site, tt.url)
	}
}

func TestFetchError_Tag(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind FailureKind
		site string
		want string
	}{
		{FailureUnknownSite, "example.com", "site-NA"},
		{FailureElementNotFound, "wefit.gr", "classnotfound-wefit.gr"},
		{FailureTransport, "bio2go.gr", "transport-bio2go.gr"},
		{FailureMalformedURL, "skroutz", "malformed-skroutz"},
		{FailureUnresolved, "skroutz", "aggregator-unresolved"},
	}

	for _, tt := range tests {
		fe := &FetchError{Kind: tt.kind, Site: tt.site}
		assert.Equal(t, tt.want, fe.Tag())
	}
}

type stubAdapter struct {
	quote model.Quote
	err   error
}

func (s *stubAdapter) Name() string { return "stub" }
func (s *stubAdapter) Fetch(context.Context, string) (model.Quote, error) {
	return s.quote, s.err
}

func TestRegistry_Fetch_UnknownSite(t *testing.T) {
	t.Parallel()

	r := NewRegistry(&stubAdapter{}, nil, &stubAdapter{}, nil)
	q := r.Fetch(context.Background(), "https://unknown-shop.example/product")
	assert.Equal(t, "site-NA", q.SourceID)
	assert.False(t, q.HasPrice())
}

func TestRegistry_Fetch_DegradesErrorToTaggedQuote(t *testing.T) {
	t.Parallel()

	static := &stubAdapter{err: &FetchError{Kind: FailureElementNotFound, Site: "wefit.gr"}}
	r := NewRegistry(static, nil, &stubAdapter{}, nil)

	q := r.Fetch(context.Background(), "https://www.wefit.gr/p/1")
	assert.Equal(t, "classnotfound-wefit.gr", q.SourceID)
	assert.False(t, q.HasPrice())
}

func TestRegistry_Fetch_PassesQuoteThrough(t *testing.T) {
	t.Parallel()

	static := &stubAdapter{quote: model.Quote{SourceID: "wefit.gr", RawPrice: "4,20€"}}
	r := NewRegistry(static, nil, &stubAdapter{}, NewMetrics())

	q := r.Fetch(context.Background(), "https://www.wefit.gr/p/1")
	require.True(t, q.HasPrice())
	assert.Equal(t, "wefit.gr", q.SourceID)
}

func TestRegistry_RequiresSession(t *testing.T) {
	t.Parallel()

	r := NewRegistry(&stubAdapter{}, &stubAdapter{}, &stubAdapter{}, nil)
	assert.True(t, r.RequiresSession("https://www.e-fresh.gr/el/p/x"))
	assert.False(t, r.RequiresSession("https://www.skroutz.gr/s/1/x"))
	assert.False(t, r.RequiresSession("https://www.wefit.gr/p/1"))
}
