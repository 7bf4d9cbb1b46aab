// Package render owns the stateful headless-browser session used for
// sites that only expose their price after full page execution.
package render

import (
	"context"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Navigator is the page-visiting capability adapters depend on.
type Navigator interface {
	Navigate(ctx context.Context, url string) (Page, error)
}

// Page is a loaded page handle. Release must be called when extraction is
// done; it clears client-side cached state before closing the page so one
// request never contaminates the next.
type Page interface {
	Has(selector string) (bool, error)
	Texts(selector string) ([]string, error)
	Release() error
}

// Config controls browser launch and navigation behavior.
type Config struct {
	Headless   bool
	Bin        string // browser binary; empty means auto-detect
	NavTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.NavTimeout <= 0 {
		c.NavTimeout = 45 * time.Second
	}
	return c
}

// Session is a long-lived browser session shared across rendered fetches.
// It is owned by a single engine run and never used concurrently. The
// engine rotates it explicitly after a fixed number of uses; there is no
// ambient timeout.
type Session struct {
	cfg     Config
	browser *rod.Browser
}

// Acquire launches a browser and connects to it. Failure here is fatal for
// the run; callers may wrap Acquire in their own retry.
func Acquire(cfg Config) (*Session, error) {
	cfg = cfg.withDefaults()

	l := launcher.New().Headless(cfg.Headless).Leakless(false)
	if cfg.Bin != "" {
		l = l.Bin(cfg.Bin)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return nil, eris.Wrap(err, "render: launch browser")
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, eris.Wrap(err, "render: connect browser")
	}

	zap.L().Debug("render: session acquired", zap.String("control_url", controlURL))
	return &Session{cfg: cfg, browser: browser}, nil
}

// Navigate clears session cookies, opens the URL, and waits for the load
// event.
func (s *Session) Navigate(ctx context.Context, url string) (Page, error) {
	if err := s.browser.SetCookies(nil); err != nil {
		zap.L().Warn("render: clear cookies", zap.Error(err))
	}

	p, err := s.browser.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return nil, eris.Wrapf(err, "render: open page %s", url)
	}
	p = p.Context(ctx).Timeout(s.cfg.NavTimeout)

	if err := p.WaitLoad(); err != nil {
		_ = p.Close()
		return nil, eris.Wrapf(err, "render: load %s", url)
	}
	return &rodPage{p: p}, nil
}

// Rotate disposes the current browser and replaces it with a fresh one.
// On failure the session is left without a usable browser and the run must
// stop.
func (s *Session) Rotate() error {
	if err := s.browser.Close(); err != nil {
		zap.L().Warn("render: close stale browser", zap.Error(err))
	}
	fresh, err := Acquire(s.cfg)
	if err != nil {
		return eris.Wrap(err, "render: rotate")
	}
	s.browser = fresh.browser
	zap.L().Debug("render: session rotated")
	return nil
}

// Dispose shuts the browser down.
func (s *Session) Dispose() error {
	return s.browser.Close()
}

type rodPage struct {
	p *rod.Page
}

func (rp *rodPage) Has(selector string) (bool, error) {
	ok, _, err := rp.p.Has(selector)
	if err != nil {
		return false, eris.Wrapf(err, "render: has %q", selector)
	}
	return ok, nil
}

func (rp *rodPage) Texts(selector string) ([]string, error) {
	els, err := rp.p.Elements(selector)
	if err != nil {
		return nil, eris.Wrapf(err, "render: elements %q", selector)
	}
	texts := make([]string, 0, len(els))
	for _, el := range els {
		t, err := el.Text()
		if err != nil {
			return nil, eris.Wrapf(err, "render: element text %q", selector)
		}
		texts = append(texts, t)
	}
	return texts, nil
}

func (rp *rodPage) Release() error {
	if _, err := rp.p.Eval(`() => {
		window.localStorage.clear();
		window.sessionStorage.clear();
	}`); err != nil {
		zap.L().Warn("render: clear storage", zap.Error(err))
	}
	return rp.p.Close()
}
