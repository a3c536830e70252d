package webpage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

var _ Fetcher = (*RodFetcher)(nil)

type RodConfig struct {
	Timeout   time.Duration
	IdleWait  time.Duration
	NoSandbox bool
	// Bin is the Chromium binary. Empty means the one rod finds or downloads.
	Bin string
}

func DefaultRodConfig() RodConfig {
	return RodConfig{
		Timeout:  30 * time.Second,
		IdleWait: 2 * time.Second,
	}
}

// RodFetcher renders pages in headless Chromium so that script-built content
// is present. The browser starts on first use and is shared by all fetches.
type RodFetcher struct {
	cfg RodConfig

	mu       sync.Mutex
	browser  *rod.Browser
	launcher *launcher.Launcher
}

func NewRodFetcher(cfg RodConfig) *RodFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRodConfig().Timeout
	}
	return &RodFetcher{cfg: cfg}
}

func (f *RodFetcher) connect() (*rod.Browser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.browser != nil {
		return f.browser, nil
	}

	l := launcher.New().
		Headless(true).
		NoSandbox(f.cfg.NoSandbox).
		Delete("use-mock-keychain")
	if f.cfg.Bin != "" {
		l = l.Bin(f.cfg.Bin)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	f.browser = browser
	f.launcher = l
	return browser, nil
}

func (f *RodFetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	if err := ValidateURL(rawURL); err != nil {
		return nil, err
	}

	browser, err := f.connect()
	if err != nil {
		return nil, err
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	defer page.Close()

	p := page.Context(ctx).Timeout(f.cfg.Timeout)
	if err := p.Navigate(rawURL); err != nil {
		return nil, fmt.Errorf("navigation failed: %w", err)
	}
	if err := p.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait load: %w", err)
	}
	if f.cfg.IdleWait > 0 {
		_ = p.WaitIdle(f.cfg.IdleWait)
	}

	body, err := p.HTML()
	if err != nil {
		return nil, fmt.Errorf("failed to get HTML: %w", err)
	}

	finalURL := rawURL
	if info, err := p.Info(); err == nil && info.URL != "" {
		finalURL = info.URL
	}

	return &Page{URL: finalURL, ContentType: "text/html", Body: body}, nil
}

// Close shuts the browser down and kills the Chromium process.
func (f *RodFetcher) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.browser != nil {
		_ = f.browser.Close()
		f.browser = nil
	}
	if f.launcher != nil {
		f.launcher.Kill()
		f.launcher.Cleanup()
		f.launcher = nil
	}
}
