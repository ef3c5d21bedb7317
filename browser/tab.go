package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Tab wraps a Rod page with relay-specific setup: stealth, resource
// blocking, and window geometry access for popup delivery.
type Tab struct {
	Page    *rod.Page
	PageURL string
	TabID   int64
	manager *Manager
}

// Bounds is a window geometry snapshot.
type Bounds struct {
	Left   int
	Top    int
	Width  int
	Height int
}

// TabOptions tunes tab creation.
type TabOptions struct {
	// Incognito opens the tab inside a fresh incognito browser context,
	// isolated from the persistent profile.
	Incognito bool
}

// OpenTab creates a stealth tab, navigates to the URL, and waits for the
// load event. The returned Tab holds an Acquire on the manager until Close.
func OpenTab(ctx context.Context, mgr *Manager, pageURL string, tabID int64, opts TabOptions) (*Tab, error) {
	b := mgr.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}

	if opts.Incognito {
		var err error
		if b, err = b.Incognito(); err != nil {
			return nil, fmt.Errorf("browser: incognito context: %w", err)
		}
	}

	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}
	mgr.Acquire()

	if len(mgr.cfg.ResourceBlocking) > 0 {
		if err := applyResourceBlocking(page, mgr.cfg.ResourceBlocking); err != nil {
			mgr.cfg.Logger.Warn("browser: resource blocking failed", "error", err)
		}
	}

	navCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		page.Close()
		mgr.Release()
		return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}

	if err := page.Context(navCtx).WaitLoad(); err != nil {
		mgr.cfg.Logger.Warn("browser: wait load timeout", "url", pageURL, "error", err)
	}

	return &Tab{
		Page:    page,
		PageURL: pageURL,
		TabID:   tabID,
		manager: mgr,
	}, nil
}

// CurrentURL returns the page's current location, which may differ from
// PageURL after redirects.
func (t *Tab) CurrentURL(ctx context.Context) (string, error) {
	res, err := t.Page.Context(ctx).Eval(`() => window.location.href`)
	if err != nil {
		return "", fmt.Errorf("browser: current url: %w", err)
	}
	return res.Value.Str(), nil
}

// WindowBounds reads the geometry of the window hosting this tab.
func (t *Tab) WindowBounds(ctx context.Context) (Bounds, error) {
	win, err := proto.BrowserGetWindowForTarget{}.Call(t.Page.Context(ctx))
	if err != nil {
		return Bounds{}, fmt.Errorf("browser: get window: %w", err)
	}
	b := win.Bounds
	out := Bounds{}
	if b.Left != nil {
		out.Left = *b.Left
	}
	if b.Top != nil {
		out.Top = *b.Top
	}
	if b.Width != nil {
		out.Width = *b.Width
	}
	if b.Height != nil {
		out.Height = *b.Height
	}
	return out, nil
}

// SetWindowBounds moves and resizes the window hosting this tab.
func (t *Tab) SetWindowBounds(ctx context.Context, b Bounds) error {
	win, err := proto.BrowserGetWindowForTarget{}.Call(t.Page.Context(ctx))
	if err != nil {
		return fmt.Errorf("browser: get window: %w", err)
	}
	err = proto.BrowserSetWindowBounds{
		WindowID: win.WindowID,
		Bounds: &proto.BrowserBounds{
			Left:   &b.Left,
			Top:    &b.Top,
			Width:  &b.Width,
			Height: &b.Height,
		},
	}.Call(t.Page.Context(ctx))
	if err != nil {
		return fmt.Errorf("browser: set window bounds: %w", err)
	}
	return nil
}

// Close closes the tab and releases its hold on the manager.
func (t *Tab) Close() error {
	if t.Page == nil {
		return nil
	}
	err := t.Page.Close()
	t.Page = nil
	t.manager.Release()
	return err
}
