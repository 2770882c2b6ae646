// Package browser provides a rod-backed page driver for the browser tool.
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Config holds browser configuration.
type Config struct {
	Headless            bool `json:"headless"`
	NavigationTimeoutMs int  `json:"navigation_timeout_ms"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Headless:            true,
		NavigationTimeoutMs: 30000,
	}
}

// Driver owns a lazily launched browser instance. It is safe for concurrent
// use; each Fetch opens its own page.
type Driver struct {
	cfg Config

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
}

// NewDriver creates a driver. The browser process starts on first Fetch.
func NewDriver(cfg Config) *Driver {
	if cfg.NavigationTimeoutMs <= 0 {
		cfg.NavigationTimeoutMs = DefaultConfig().NavigationTimeoutMs
	}
	return &Driver{cfg: cfg}
}

func (d *Driver) ensureStarted() (*rod.Browser, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.browser != nil {
		return d.browser, nil
	}

	l := launcher.New().Headless(d.cfg.Headless)
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	d.launcher = l
	d.browser = b
	return b, nil
}

// Fetch navigates to url and returns the page title and the text content of
// selector (the page body when selector is empty).
func (d *Driver) Fetch(ctx context.Context, url, selector string) (string, string, error) {
	b, err := d.ensureStarted()
	if err != nil {
		return "", "", err
	}

	page, err := b.Page(proto.TargetCreateTarget{})
	if err != nil {
		return "", "", fmt.Errorf("open page: %w", err)
	}
	defer page.Close()

	navTimeout := time.Duration(d.cfg.NavigationTimeoutMs) * time.Millisecond
	ctx, cancel := context.WithTimeout(ctx, navTimeout)
	defer cancel()
	page = page.Context(ctx)

	if err := page.Navigate(url); err != nil {
		return "", "", fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return "", "", fmt.Errorf("wait load: %w", err)
	}

	info, err := page.Info()
	if err != nil {
		return "", "", fmt.Errorf("page info: %w", err)
	}

	if selector == "" {
		selector = "body"
	}
	el, err := page.Element(selector)
	if err != nil {
		return info.Title, "", fmt.Errorf("element %q: %w", selector, err)
	}
	text, err := el.Text()
	if err != nil {
		return info.Title, "", fmt.Errorf("element text: %w", err)
	}

	return info.Title, text, nil
}

// Shutdown closes the browser and cleans up the launched process.
func (d *Driver) Shutdown() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.browser == nil {
		return nil
	}
	err := d.browser.Close()
	d.launcher.Cleanup()
	d.browser = nil
	d.launcher = nil
	return err
}
