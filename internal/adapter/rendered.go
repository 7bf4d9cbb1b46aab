package adapter

import (
	"context"
	"strings"

	"github.com/delfi-foods/pricescout/internal/model"
	"github.com/delfi-foods/pricescout/internal/render"
)

// RenderedRule describes extraction for a site that needs full page
// execution before its price exists in the DOM.
type RenderedRule struct {
	Site             string
	NotFoundSelector string
	PriceSelector    string
}

// DefaultRenderedRules covers the rendered storefronts.
func DefaultRenderedRules() []RenderedRule {
	return []RenderedRule{
		{
			Site:             "e-fresh.gr",
			NotFoundSelector: ".error-404",
			PriceSelector:    ".price",
		},
	}
}

// RenderedAdapter extracts quotes through the shared browser session.
type RenderedAdapter struct {
	nav   render.Navigator
	rules []RenderedRule
}

// NewRenderedAdapter creates a rendered-page adapter on top of a session.
func NewRenderedAdapter(nav render.Navigator, rules []RenderedRule) *RenderedAdapter {
	return &RenderedAdapter{nav: nav, rules: rules}
}

func (a *RenderedAdapter) Name() string { return "rendered" }

// Fetch navigates to the URL, checks the not-found marker, and pulls price
// text out of the rendered DOM. The price element renders the old price on
// the first line and the discounted one on the second, so the second line
// wins when present.
func (a *RenderedAdapter) Fetch(ctx context.Context, rawURL string) (model.Quote, error) {
	rule, ok := a.ruleFor(rawURL)
	if !ok {
		return model.Quote{}, &FetchError{Kind: FailureUnknownSite, Site: hostOf(rawURL)}
	}

	page, err := a.nav.Navigate(ctx, rawURL)
	if err != nil {
		return model.Quote{}, &FetchError{Kind: FailureTransport, Site: rule.Site, Err: err}
	}
	defer func() { _ = page.Release() }()

	notFound, err := page.Has(rule.NotFoundSelector)
	if err != nil {
		return model.Quote{}, &FetchError{Kind: FailureTransport, Site: rule.Site, Err: err}
	}
	if notFound {
		return model.Quote{}, &FetchError{Kind: FailureElementNotFound, Site: rule.Site}
	}

	texts, err := page.Texts(rule.PriceSelector)
	if err != nil {
		return model.Quote{}, &FetchError{Kind: FailureTransport, Site: rule.Site, Err: err}
	}

	return model.Quote{SourceID: rule.Site, RawPrice: pickPriceText(texts)}, nil
}

func (a *RenderedAdapter) ruleFor(rawURL string) (RenderedRule, bool) {
	for _, r := range a.rules {
		if strings.Contains(rawURL, r.Site) {
			return r, true
		}
	}
	return RenderedRule{}, false
}

// pickPriceText applies the sale-price convention twice: prefer the second
// matching element, then the second line of its text.
func pickPriceText(texts []string) string {
	if len(texts) == 0 {
		return ""
	}
	text := texts[0]
	if len(texts) > 1 {
		text = texts[1]
	}
	lines := strings.Split(text, "\n")
	price := lines[0]
	if len(lines) > 1 {
		price = lines[1]
	}
	return strings.TrimSpace(price)
}
