// Package skroutz provides a client for the Skroutz marketplace
// price-comparison endpoint.
package skroutz

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Client defines the marketplace comparison operations.
type Client interface {
	// CompareProduct fetches the competing offers for the product behind
	// a public product URL and computes the competitor reference price.
	CompareProduct(ctx context.Context, productURL string) (*Comparison, error)
}

// Comparison is the resolved competitive picture for one product.
//
// ReferencePrice is the lowest competitor price: when our own shop holds
// the lowest offer it is the second-lowest price instead, and absent when
// we are the only shop listed. The aggregator never reports our own price
// as "the price".
type Comparison struct {
	ProductID      string
	ShopCount      int
	Offers         []Offer // ascending by price
	ReferencePrice float64
	HasReference   bool
}

// Offer is one shop's listing for the product.
type Offer struct {
	Price  float64
	ShopID int
}

// filterResponse mirrors the filter_products.json payload.
type filterResponse struct {
	ShopCount    int                    `json:"shop_count"`
	ProductCards map[string]productCard `json:"product_cards"`
}

type productCard struct {
	ShopID   int     `json:"shop_id"`
	RawPrice float64 `json:"raw_price"`
	Products []struct {
		Name string `json:"name"`
	} `json:"products"`
}

// ErrInvalidURL marks product URLs missing the /s/<id>/ path segment.
// Callers must not retry these.
var ErrInvalidURL = eris.New("skroutz: product url missing /s/<id>/ segment")

// ProductID extracts the numeric product identifier from a product URL.
func ProductID(productURL string) (string, error) {
	_, rest, ok := strings.Cut(productURL, "/s/")
	if !ok {
		return "", ErrInvalidURL
	}
	id, _, _ := strings.Cut(rest, "/")
	if id == "" {
		return "", ErrInvalidURL
	}
	return id, nil
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

// WithMaxAttempts overrides the total attempt cap.
func WithMaxAttempts(n int) Option {
	return func(c *httpClient) { c.maxAttempts = n }
}

// WithRetryWait overrides the fixed wait used for 403 responses, transport
// failures, and 429 responses without a Retry-After header.
func WithRetryWait(d time.Duration) Option {
	return func(c *httpClient) { c.retryWait = d }
}

// WithLimiter paces outgoing requests.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *httpClient) { c.limiter = l }
}

// WithRetryHook installs a callback invoked before every retry sleep.
func WithRetryHook(fn func(attempt int, reason string)) Option {
	return func(c *httpClient) { c.onRetry = fn }
}

type httpClient struct {
	baseURL     string
	ownShopID   int
	maxAttempts int
	retryWait   time.Duration
	http        *http.Client
	limiter     *rate.Limiter
	onRetry     func(attempt int, reason string)
}

// NewClient creates a comparison client. ownShopID identifies the
// operator's own shop so its offers are excluded from the reference price.
func NewClient(ownShopID int, opts ...Option) Client {
	c := &httpClient{
		baseURL:     "https://www.skroutz.gr",
		ownShopID:   ownShopID,
		maxAttempts: 3,
		retryWait:   5 * time.Second,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) CompareProduct(ctx context.Context, productURL string) (*Comparison, error) {
	id, err := ProductID(productURL)
	if err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("%s/s/%s/filter_products.json", c.baseURL, id)

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, eris.Wrap(err, "skroutz: limiter wait")
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, eris.Wrap(err, "skroutz: create request")
		}
		setBrowserHeaders(req, productURL)

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = eris.Wrap(err, "skroutz: fetch")
			if !c.sleepRetry(ctx, attempt, c.retryWait, "transport") {
				return nil, lastErr
			}
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = eris.Wrap(readErr, "skroutz: read body")
			if !c.sleepRetry(ctx, attempt, c.retryWait, "transport") {
				return nil, lastErr
			}
			continue
		}

		switch resp.StatusCode {
		case http.StatusOK:
			return c.parseComparison(id, body)

		case http.StatusForbidden:
			lastErr = eris.Errorf("skroutz: status 403 on attempt %d", attempt)
			if !c.sleepRetry(ctx, attempt, c.retryWait, "forbidden") {
				return nil, lastErr
			}

		case http.StatusTooManyRequests:
			wait := c.retryWait
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if secs, parseErr := strconv.Atoi(ra); parseErr == nil && secs >= 0 {
					wait = time.Duration(secs) * time.Second
				}
			}
			lastErr = eris.Errorf("skroutz: rate limited on attempt %d", attempt)
			if !c.sleepRetry(ctx, attempt, wait, "rate_limited") {
				return nil, lastErr
			}

		default:
			// Unexpected status burns the attempt with no wait.
			lastErr = eris.Errorf("skroutz: unexpected status %d", resp.StatusCode)
			if attempt >= c.maxAttempts {
				return nil, lastErr
			}
			if c.onRetry != nil {
				c.onRetry(attempt, "bad_status")
			}
		}
	}
	return nil, lastErr
}

// sleepRetry waits before the next attempt. It returns false when the
// attempt budget is exhausted or the context is done.
func (c *httpClient) sleepRetry(ctx context.Context, attempt int, wait time.Duration, reason string) bool {
	if attempt >= c.maxAttempts {
		return false
	}
	if c.onRetry != nil {
		c.onRetry(attempt, reason)
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (c *httpClient) parseComparison(id string, body []byte) (*Comparison, error) {
	var fr filterResponse
	if err := json.Unmarshal(body, &fr); err != nil {
		return nil, eris.Wrap(err, "skroutz: unmarshal response")
	}

	offers := make([]Offer, 0, len(fr.ProductCards))
	for _, card := range fr.ProductCards {
		offers = append(offers, Offer{Price: card.RawPrice, ShopID: card.ShopID})
	}
	sort.Slice(offers, func(i, j int) bool { return offers[i].Price < offers[j].Price })

	cmp := &Comparison{
		ProductID: id,
		ShopCount: fr.ShopCount,
		Offers:    offers,
	}

	switch {
	case len(offers) == 0:
		// No offers at all: no reference price.
	case offers[0].ShopID == c.ownShopID:
		// We hold the lowest offer; the competitor reference is the
		// runner-up, absent when we are alone on the product.
		if len(offers) > 1 {
			cmp.ReferencePrice = offers[1].Price
			cmp.HasReference = true
		}
	default:
		cmp.ReferencePrice = offers[0].Price
		cmp.HasReference = true
	}
	return cmp, nil
}

// setBrowserHeaders attaches a randomized client identity and the product
// page as referer so the request blends in with organic traffic.
func setBrowserHeaders(req *http.Request, productURL string) {
	req.Header.Set("User-Agent", gofakeit.UserAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-GB,en;q=0.9")
	req.Header.Set("Referer", productURL)
	req.Header.Set("Viewport-Width", "1920")
}
