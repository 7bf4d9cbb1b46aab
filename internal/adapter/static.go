package adapter

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/delfi-foods/pricescout/internal/model"
	"github.com/delfi-foods/pricescout/internal/normalize"
)

// SiteRule is the declarative extraction recipe for one static site.
type SiteRule struct {
	// Site is the tag substring matched against URLs and used as the
	// quote's source id.
	Site string

	// Container scopes all lookups to this selector when set.
	Container string

	// StockSelector/StockText flag an out-of-stock product: when the
	// first StockSelector element's text equals StockText the site is
	// treated as sold out and no price is extracted.
	StockSelector string
	StockText     string

	// AvailabilityOutOfStock matches the schema.org availability
	// microdata value that marks a sold-out product.
	AvailabilityOutOfStock string

	// PriceSelector locates the price-bearing elements.
	PriceSelector string

	// PreferSecond picks the second match when two or more price
	// elements exist: WooCommerce renders strike-through price first and
	// sale price second.
	PreferSecond bool

	// DigitsOnly runs the digit-extraction pass for sites that bury the
	// price in free-form text.
	DigitsOnly bool
}

const outOfStockGreek = "Εξαντλημένο"

// DefaultSiteRules covers every static storefront the pipeline knows.
func DefaultSiteRules() []SiteRule {
	return []SiteRule{
		{
			Site:          "glutenfreeyourself.gr",
			Container:     "div.basel-scroll-content",
			StockSelector: "p.stock",
			StockText:     outOfStockGreek,
			PriceSelector: "span.woocommerce-Price-amount.amount",
			PreferSecond:  true,
		},
		{
			Site:                   "glutenfreeonline.gr",
			AvailabilityOutOfStock: "http://schema.org/OutOfStock",
			PriceSelector:          "span.PricesalesPrice",
		},
		{
			Site:          "thanopoulos.gr",
			PriceSelector: "span#price_display",
		},
		{
			Site:          "sklavenitis.gr",
			PriceSelector: "div.price",
			DigitsOnly:    true,
		},
		{
			Site:          "biohealthyfood.gr",
			Container:     "div.single-product-content",
			StockSelector: "p.stock",
			StockText:     outOfStockGreek,
			PriceSelector: "span.woocommerce-Price-amount.amount",
			PreferSecond:  true,
		},
		{
			Site:          "celiacshop.gr",
			Container:     "div.product-info.summary.col-fit.col.entry-summary.product-summary",
			PriceSelector: "span.woocommerce-Price-amount.amount",
			PreferSecond:  true,
		},
		{
			Site:          "eblokomarket.gr",
			PriceSelector: "span.product-price",
		},
		{
			Site:          "mymarket.gr",
			PriceSelector: "span.product-full--final-price",
		},
		{
			Site:          "bio2go.gr",
			PriceSelector: "span#price",
		},
		{
			Site:          "wefit.gr",
			PriceSelector: "span.actual-price",
		},
		{
			Site:          "2pharmacy.gr",
			PriceSelector: "span#our_price_display",
		},
		{
			Site:          "greenhousebio.gr",
			PriceSelector: `span[itemprop="price"]`,
		},
	}
}

// StaticAdapter performs one non-interactive HTTP fetch and a rule-driven
// DOM extraction.
type StaticAdapter struct {
	client *http.Client
	rules  []SiteRule
}

// StaticOption configures the static adapter.
type StaticOption func(*StaticAdapter)

// WithStaticHTTPClient sets a custom HTTP client.
func WithStaticHTTPClient(hc *http.Client) StaticOption {
	return func(a *StaticAdapter) { a.client = hc }
}

// NewStaticAdapter creates a static-page adapter over the given rules.
func NewStaticAdapter(rules []SiteRule, opts ...StaticOption) *StaticAdapter {
	a := &StaticAdapter{
		rules: rules,
		client: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *StaticAdapter) Name() string { return "static" }

// Fetch downloads the page and extracts a quote per the matching rule.
func (a *StaticAdapter) Fetch(ctx context.Context, rawURL string) (model.Quote, error) {
	rule, ok := a.ruleFor(rawURL)
	if !ok {
		return model.Quote{}, &FetchError{Kind: FailureUnknownSite, Site: hostOf(rawURL)}
	}

	doc, err := a.document(ctx, rawURL)
	if err != nil {
		return model.Quote{}, &FetchError{Kind: FailureTransport, Site: rule.Site, Err: err}
	}
	return extractQuote(doc, rule)
}

func (a *StaticAdapter) ruleFor(rawURL string) (SiteRule, bool) {
	for _, r := range a.rules {
		if strings.Contains(rawURL, r.Site) {
			return r, true
		}
	}
	return SiteRule{}, false
}

func (a *StaticAdapter) document(ctx context.Context, rawURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "static: create request")
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/78.0.3904.108 Safari/537.36")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "static: fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return nil, eris.Errorf("static: status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "static: parse html")
	}
	return doc, nil
}

// extractQuote applies a site rule to a parsed document.
func extractQuote(doc *goquery.Document, rule SiteRule) (model.Quote, error) {
	scope := doc.Selection
	if rule.Container != "" {
		scope = doc.Find(rule.Container)
	}

	if rule.AvailabilityOutOfStock != "" {
		if v, ok := doc.Find(`[itemprop="availability"]`).Attr("content"); ok && v == rule.AvailabilityOutOfStock {
			return model.Quote{SourceID: "eksantlimeno-" + rule.Site}, nil
		}
	}
	if rule.StockSelector != "" {
		stock := strings.TrimSpace(scope.Find(rule.StockSelector).First().Text())
		if stock == rule.StockText {
			return model.Quote{SourceID: "eksantlimeno-" + rule.Site}, nil
		}
	}

	prices := scope.Find(rule.PriceSelector)
	if prices.Length() == 0 {
		return model.Quote{}, &FetchError{Kind: FailureElementNotFound, Site: rule.Site}
	}

	sel := prices.Eq(0)
	if rule.PreferSecond && prices.Length() > 1 {
		sel = prices.Eq(1)
	}

	text := strings.TrimSpace(sel.Text())
	if rule.DigitsOnly {
		text = normalize.ExtractNumber(text)
	}
	if text == "" {
		return model.Quote{}, &FetchError{Kind: FailureElementNotFound, Site: rule.Site}
	}

	return model.Quote{SourceID: rule.Site, RawPrice: text}, nil
}
