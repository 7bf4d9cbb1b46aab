package adapter

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/delfi-foods/pricescout/internal/model"
)

// route binds a URL substring pattern to an extraction capability. The
// table is evaluated top to bottom; first match wins.
type route struct {
	pattern string
	kind    Kind
	site    string
}

var routes = []route{
	{"skroutz.gr", KindAggregator, "skroutz"},
	{"e-fresh.gr", KindRendered, "e-fresh.gr"},
	{"glutenfreeyourself.gr", KindStatic, "glutenfreeyourself.gr"},
	{"glutenfreeonline.gr", KindStatic, "glutenfreeonline.gr"},
	{"thanopoulos.gr", KindStatic, "thanopoulos.gr"},
	{"sklavenitis.gr", KindStatic, "sklavenitis.gr"},
	{"biohealthyfood.gr", KindStatic, "biohealthyfood.gr"},
	{"celiacshop.gr", KindStatic, "celiacshop.gr"},
	{"eblokomarket.gr", KindStatic, "eblokomarket.gr"},
	{"mymarket.gr", KindStatic, "mymarket.gr"},
	{"bio2go.gr", KindStatic, "bio2go.gr"},
	{"wefit.gr", KindStatic, "wefit.gr"},
	{"2pharmacy.gr", KindStatic, "2pharmacy.gr"},
	{"greenhousebio.gr", KindStatic, "greenhousebio.gr"},
}

// Resolve matches a URL against the route table and returns its
// capability and site id. Unmatched URLs resolve to KindUnknown with the
// URL host as the site.
func Resolve(rawURL string) (Kind, string) {
	for _, r := range routes {
		if strings.Contains(rawURL, r.pattern) {
			return r.kind, r.site
		}
	}
	return KindUnknown, hostOf(rawURL)
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return u.Host
}

// Registry holds one adapter per capability and dispatches fetches.
type Registry struct {
	static     Adapter
	rendered   Adapter // nil when the run has no browser session
	aggregator Adapter
	metrics    *Metrics
}

// NewRegistry wires the capability adapters together.
func NewRegistry(static, rendered, aggregator Adapter, m *Metrics) *Registry {
	return &Registry{static: static, rendered: rendered, aggregator: aggregator, metrics: m}
}

// RequiresSession reports whether fetching this URL engages the rotating
// browser session.
func (r *Registry) RequiresSession(rawURL string) bool {
	kind, _ := Resolve(rawURL)
	return kind == KindRendered
}

// Fetch resolves the URL to an adapter and always returns a quote: any
// extraction failure is converted into an absent-price quote whose source
// id carries the diagnostic tag.
func (r *Registry) Fetch(ctx context.Context, rawURL string) model.Quote {
	kind, site := Resolve(rawURL)

	var a Adapter
	switch kind {
	case KindStatic:
		a = r.static
	case KindRendered:
		a = r.rendered
	case KindAggregator:
		a = r.aggregator
	}

	if a == nil {
		// Unknown site, or a rendered site with no session configured.
		fe := &FetchError{Kind: FailureUnknownSite, Site: site}
		if kind == KindRendered {
			fe = &FetchError{Kind: FailureTransport, Site: site}
			zap.L().Warn("no browser session configured for rendered site",
				zap.String("url", rawURL))
		}
		r.metrics.ObserveFetch(site, fe.Kind.String())
		return model.Quote{SourceID: fe.Tag()}
	}

	q, err := a.Fetch(ctx, rawURL)
	if err != nil {
		tag := "transport-" + site
		outcome := FailureTransport.String()
		var fe *FetchError
		if errors.As(err, &fe) {
			tag = fe.Tag()
			outcome = fe.Kind.String()
		}
		zap.L().Debug("fetch degraded",
			zap.String("url", rawURL),
			zap.String("tag", tag),
			zap.Error(err),
		)
		r.metrics.ObserveFetch(site, outcome)
		return model.Quote{SourceID: tag}
	}

	if q.HasPrice() {
		r.metrics.ObserveFetch(site, "ok")
	} else {
		r.metrics.ObserveFetch(site, "no_price")
	}
	return q
}
