package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delfi-foods/pricescout/internal/model"
	"github.com/delfi-foods/pricescout/internal/sink"
)

type fakeFetcher struct {
	quotes   map[string]model.Quote
	rendered map[string]bool
	calls    []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) model.Quote {
	f.calls = append(f.calls, url)
	if q, ok := f.quotes[url]; ok {
		return q
	}
	return model.Quote{SourceID: "unknown"}
}

func (f *fakeFetcher) RequiresSession(url string) bool { return f.rendered[url] }

type fakeRotator struct {
	rotations int
	err       error
}

func (r *fakeRotator) Rotate() error {
	if r.err != nil {
		return r.err
	}
	r.rotations++
	return nil
}

type memSink struct {
	diags []sink.Diagnostic
	table []model.ReconciliationResult
	wrote bool
}

func (m *memSink) AppendDiagnostic(_ context.Context, d sink.Diagnostic) error {
	m.diags = append(m.diags, d)
	return nil
}

func (m *memSink) WriteFinalTable(_ context.Context, rows []model.ReconciliationResult) error {
	m.table = rows
	m.wrote = true
	return nil
}

func TestRunResolvesIdentifier(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{quotes: map[string]model.Quote{
		"http://site-a.gr/p1": {SourceID: "site-a.gr", RawPrice: "12,50€"},
		"http://site-b.gr/p1": {SourceID: "eksantlimeno-site-b.gr"},
		"http://skroutz.gr/s/1/p1": {
			SourceID:        "skroutz",
			RawPrice:        "11",
			AggregatorPrice: "11",
			StoreCount:      3,
		},
	}}
	out := &memSink{}
	e := New(f, nil, out)

	results, err := e.Run(context.Background(), []model.Record{{
		SKU:  "SKU1",
		URLs: []string{"http://site-a.gr/p1", "http://site-b.gr/p1", "http://skroutz.gr/s/1/p1"},
	}})
	require.NoError(t, err)
	require.Len(t, results, 1)

	res := results[0]
	assert.Equal(t, "SKU1", res.SKU)
	assert.Equal(t, "skroutz", res.WinningSource)
	assert.Equal(t, 11.0, res.MinimumPrice)
	assert.Equal(t, 3, res.MaxStoreCount)
	assert.Equal(t, 11.0, res.MaxAggregatorPrice)

	require.Len(t, out.diags, 1)
	assert.Equal(t, []int{0, 0, 3}, out.diags[0].StoreCounts)
	assert.Equal(t, []float64{0, 0, 11}, out.diags[0].AggregatorPrices)
	assert.True(t, out.wrote)
	assert.Equal(t, results, out.table)
}

func TestRunFirstSeenWinsOnTie(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{quotes: map[string]model.Quote{
		"http://site-a.gr/p": {SourceID: "site-a.gr", RawPrice: "5,00€"},
		"http://site-b.gr/p": {SourceID: "site-b.gr", RawPrice: "5,00€"},
	}}
	e := New(f, nil, &memSink{})

	results, err := e.Run(context.Background(), []model.Record{{
		SKU:  "SKU1",
		URLs: []string{"http://site-a.gr/p", "http://site-b.gr/p"},
	}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "site-a.gr", results[0].WinningSource)
}

func TestRunDropsEmptyIdentifier(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{quotes: map[string]model.Quote{
		"http://site-a.gr/p": {SourceID: "classnotfound-site-a.gr"},
	}}
	out := &memSink{}
	e := New(f, nil, out)

	results, err := e.Run(context.Background(), []model.Record{{
		SKU:  "GONE",
		URLs: []string{"http://site-a.gr/p"},
	}})
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Empty(t, out.diags)
	assert.True(t, out.wrote, "final table is written even without rows")
}

func TestRunSkipsNonURLCells(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{quotes: map[string]model.Quote{
		"http://site-a.gr/p": {SourceID: "site-a.gr", RawPrice: "2,10€"},
	}}
	e := New(f, nil, &memSink{})

	_, err := e.Run(context.Background(), []model.Record{{
		SKU:  "SKU1",
		URLs: []string{"n/a", "", "see notes", "http://site-a.gr/p"},
	}})
	require.NoError(t, err)
	assert.Equal(t, []string{"http://site-a.gr/p"}, f.calls)
}

func TestRunCachesRepeatedURLWithinIdentifier(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{quotes: map[string]model.Quote{
		"http://site-a.gr/p": {SourceID: "site-a.gr", RawPrice: "2,10€"},
	}}
	e := New(f, nil, &memSink{})

	_, err := e.Run(context.Background(), []model.Record{{
		SKU:  "SKU1",
		URLs: []string{"http://site-a.gr/p", "http://site-a.gr/p"},
	}})
	require.NoError(t, err)
	assert.Len(t, f.calls, 1)
}

func TestRunRotatesSessionEveryTenUses(t *testing.T) {
	t.Parallel()

	quotes := make(map[string]model.Quote, 25)
	rendered := make(map[string]bool, 25)
	urls := make([]string, 25)
	for i := range urls {
		u := fmt.Sprintf("http://e-fresh.gr/p%d", i)
		urls[i] = u
		quotes[u] = model.Quote{SourceID: "e-fresh.gr", RawPrice: "1,00€"}
		rendered[u] = true
	}
	f := &fakeFetcher{quotes: quotes, rendered: rendered}
	rot := &fakeRotator{}
	e := New(f, rot, &memSink{})

	_, err := e.Run(context.Background(), []model.Record{{SKU: "SKU1", URLs: urls}})
	require.NoError(t, err)
	assert.Equal(t, 2, rot.rotations)
	assert.Len(t, f.calls, 25)
}

func TestRunRotateFailureIsFatal(t *testing.T) {
	t.Parallel()

	quotes := make(map[string]model.Quote)
	rendered := make(map[string]bool)
	urls := make([]string, 10)
	for i := range urls {
		u := fmt.Sprintf("http://e-fresh.gr/p%d", i)
		urls[i] = u
		quotes[u] = model.Quote{SourceID: "e-fresh.gr", RawPrice: "1,00€"}
		rendered[u] = true
	}
	f := &fakeFetcher{quotes: quotes, rendered: rendered}
	rot := &fakeRotator{err: eris.New("browser gone")}
	e := New(f, rot, &memSink{})

	_, err := e.Run(context.Background(), []model.Record{{SKU: "SKU1", URLs: urls}})
	require.Error(t, err)
	assert.Len(t, f.calls, 9, "the fetch behind the failed rotation never runs")
}

func TestRunCustomRotateThreshold(t *testing.T) {
	t.Parallel()

	quotes := make(map[string]model.Quote)
	rendered := make(map[string]bool)
	urls := make([]string, 6)
	for i := range urls {
		u := fmt.Sprintf("http://e-fresh.gr/p%d", i)
		urls[i] = u
		quotes[u] = model.Quote{SourceID: "e-fresh.gr", RawPrice: "1,00€"}
		rendered[u] = true
	}
	f := &fakeFetcher{quotes: quotes, rendered: rendered}
	rot := &fakeRotator{}
	e := New(f, rot, &memSink{}, WithRotateEvery(3))

	_, err := e.Run(context.Background(), []model.Record{{SKU: "SKU1", URLs: urls}})
	require.NoError(t, err)
	assert.Equal(t, 2, rot.rotations)
}

func TestSelectResultUnparseableRawPriceIgnored(t *testing.T) {
	t.Parallel()

	res, _, err := selectResult("SKU1", []model.Quote{
		{SourceID: "site-a.gr", RawPrice: "1.234,56"},
		{SourceID: "site-b.gr", RawPrice: "9,99€"},
	})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "site-b.gr", res.WinningSource)
	assert.Equal(t, 9.99, res.MinimumPrice)
}
