package browser

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"clipvault/pkg/collector"
	errs "clipvault/pkg/errors"
	"clipvault/pkg/logger"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// DefaultNavigationTimeout bounds one page load, matching the HTTP client's
// per-request default
const DefaultNavigationTimeout = 30 * time.Second

// Options configure a Source
type Options struct {
	Headless bool
	// BrowserPath is the Chrome binary; empty lets the launcher find or fetch one
	BrowserPath string
	// RemoteURL connects to an already running browser instead of launching one
	RemoteURL string
	// Headers are sent with every navigation; Cookie and User-Agent are
	// applied through their own browser settings
	Headers           http.Header
	SkipCertCheck     bool
	NavigationTimeout time.Duration
	Logger            logger.Logger
}

// Source is a collector.ItemSource that loads item URLs in a browser tab and
// decodes the rendered response body as JSON.
type Source struct {
	endpoint collector.Endpoint
	opts     Options
	logger   logger.Logger

	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
}

// New creates a Source. Call Start before fetching.
func New(endpoint collector.Endpoint, opts Options) *Source {
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = DefaultNavigationTimeout
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Source{
		endpoint: endpoint,
		opts:     opts,
		logger:   log.WithField("component", "browser"),
	}
}

// Start launches (or connects to) the browser and installs cookies
func (s *Source) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.browser != nil {
		return nil
	}

	controlURL := s.opts.RemoteURL
	if controlURL == "" {
		l := launcher.New().Headless(s.opts.Headless).Set("lang", "en-US")
		if s.opts.BrowserPath != "" {
			l = l.Bin(s.opts.BrowserPath)
		}
		u, err := l.Context(ctx).Launch()
		if err != nil {
			return errs.Wrap(errs.ErrorTypeUnknown, err, "launch browser")
		}
		controlURL = u
		s.lnch = l
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		s.cleanupLocked()
		return errs.Wrap(errs.ErrorTypeNetwork, err, "connect to browser")
	}
	s.browser = b

	if s.opts.SkipCertCheck {
		if err := b.IgnoreCertErrors(true); err != nil {
			s.logger.WithError(err).Warn("Could not disable certificate checks in browser")
		}
	}

	if raw := s.opts.Headers.Get("Cookie"); raw != "" {
		cookies := ParseCookies(raw, cookieDomain(s.endpoint.BaseURL))
		if err := b.SetCookies(cookies); err != nil {
			s.cleanupLocked()
			return errs.Wrap(errs.ErrorTypeUnknown, err, "install cookies")
		}
		s.logger.DebugWithFields("Installed cookies", map[string]interface{}{"count": len(cookies)})
	}

	s.logger.InfoWithFields("Browser ready", map[string]interface{}{
		"headless": s.opts.Headless,
		"remote":   s.opts.RemoteURL != "",
	})
	return nil
}

// Close shuts the browser down
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanupLocked()
	return nil
}

func (s *Source) cleanupLocked() {
	if s.browser != nil {
		s.browser.Close()
		s.browser = nil
	}
	if s.lnch != nil {
		s.lnch.Cleanup()
		s.lnch = nil
	}
}

// FetchRoot loads the item for ref
func (s *Source) FetchRoot(ctx context.Context, ref string) (*collector.Item, error) {
	var item collector.Item
	if err := s.getJSON(ctx, s.endpoint.NormalizeRef(ref, ""), &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// FetchPage loads one related-items page following cursor
func (s *Source) FetchPage(ctx context.Context, ref, cursor string) (*collector.PageListing, error) {
	var page collector.PageListing
	if err := s.getJSON(ctx, s.endpoint.NormalizeRef(ref, cursor), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (s *Source) getJSON(ctx context.Context, pageURL string, target interface{}) error {
	s.mu.Lock()
	b := s.browser
	s.mu.Unlock()
	if b == nil {
		return errs.New(errs.ErrorTypeUnknown, 0, "browser not started")
	}

	page, err := b.Page(proto.TargetCreateTarget{})
	if err != nil {
		return errs.Wrap(errs.ErrorTypeUnknown, err, "open tab")
	}
	defer page.Close()

	if ua := s.opts.Headers.Get("User-Agent"); ua != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: ua}); err != nil {
			s.logger.WithError(err).Debug("Could not override user agent")
		}
	}
	if extra := ExtraHeaders(s.opts.Headers); len(extra) > 0 {
		if _, err := page.SetExtraHeaders(extra); err != nil {
			return errs.Wrap(errs.ErrorTypeUnknown, err, "set request headers")
		}
	}

	navCtx, cancel := context.WithTimeout(ctx, s.opts.NavigationTimeout)
	defer cancel()

	start := time.Now()
	p := page.Context(navCtx)
	if err := p.Navigate(pageURL); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errs.Wrap(errs.ErrorTypeNetwork, err, "navigate %s", pageURL)
	}
	if err := p.WaitLoad(); err != nil {
		s.logger.WithError(err).Warn("Page load did not settle")
	}

	res, err := p.Eval(`() => document.body ? document.body.innerText : ""`)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeParsing, err, "read page body")
	}
	logger.LogRequest(s.logger, http.MethodGet, pageURL, 0, time.Since(start))

	return DecodeBody(res.Value.Str(), target)
}

// DecodeBody parses the text of a rendered JSON response
func DecodeBody(text string, target interface{}) error {
	body := strings.TrimSpace(text)
	if body == "" {
		return errs.New(errs.ErrorTypeParsing, 0, "empty page body")
	}
	if body[0] != '{' && body[0] != '[' {
		preview := body
		if len(preview) > 80 {
			preview = preview[:80] + "..."
		}
		return errs.New(errs.ErrorTypeParsing, 0, "page body is not JSON: %q", preview)
	}
	if err := json.Unmarshal([]byte(body), target); err != nil {
		return errs.Wrap(errs.ErrorTypeParsing, err, "failed to parse JSON")
	}
	return nil
}

// ExtraHeaders flattens h into the name/value list rod expects, leaving out
// headers the browser manages itself.
func ExtraHeaders(h http.Header) []string {
	var out []string
	for name, values := range h {
		switch http.CanonicalHeaderKey(name) {
		case "Cookie", "User-Agent", "Content-Type", "Content-Length", "Host":
			continue
		}
		if len(values) == 0 || values[0] == "" {
			continue
		}
		out = append(out, name, values[0])
	}
	return out
}
