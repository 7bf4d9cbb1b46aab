package adapter

import "fmt"

// FailureKind classifies why a fetch produced no price. The kind drives
// the diagnostic tag written into the degraded quote; downstream consumers
// use the tag for operational triage, never for control flow.
type FailureKind int

const (
	// FailureUnknownSite means no adapter claims the URL.
	FailureUnknownSite FailureKind = iota
	// FailureElementNotFound means the page loaded but the expected
	// markup was missing.
	FailureElementNotFound
	// FailureTransport covers network, DNS, and HTTP-status failures.
	FailureTransport
	// FailureMalformedURL means the URL lacks an expected path segment.
	FailureMalformedURL
	// FailureUnresolved means the aggregator exhausted its retry budget.
	FailureUnresolved
)

func (k FailureKind) String() string {
	switch k {
	case FailureUnknownSite:
		return "unknown_site"
	case FailureElementNotFound:
		return "element_not_found"
	case FailureTransport:
		return "transport"
	case FailureMalformedURL:
		return "malformed_url"
	case FailureUnresolved:
		return "unresolved"
	default:
		return "unknown"
	}
}

// FetchError is a structured extraction failure.
type FetchError struct {
	Kind FailureKind
	Site string
	Err  error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s (%s): %v", e.Site, e.Kind, e.Err)
	}
	return fmt.Sprintf("fetch %s (%s)", e.Site, e.Kind)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Tag renders the diagnostic source tag recorded on the degraded quote.
func (e *FetchError) Tag() string {
	switch e.Kind {
	case FailureUnknownSite:
		return "site-NA"
	case FailureElementNotFound:
		return "classnotfound-" + e.Site
	case FailureTransport:
		return "transport-" + e.Site
	case FailureMalformedURL:
		return "malformed-" + e.Site
	case FailureUnresolved:
		return "aggregator-unresolved"
	default:
		return "error-" + e.Site
	}
}
