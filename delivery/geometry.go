package delivery

import (
	"context"
	"time"

	"github.com/Lanshuns/ebutia/browser"
	"github.com/Lanshuns/ebutia/settings"
)

const (
	defaultPopupWidth  = 500
	defaultPopupHeight = 800
	popupMargin        = 16

	// A move is persisted only after the bounds have held still for a
	// full poll; dragging produces a burst of intermediate positions.
	geometryPollInterval = 1 * time.Second
)

// placePopup sizes the freshly opened window, preferring the user's last
// saved position and falling back to a right-aligned default, then starts
// watching for moves when a save hook is configured.
func (d *Deliverer) placePopup(ctx context.Context, tab *browser.Tab, s settings.Settings) {
	b := popupBounds(s.WindowPosition, d.screenWidth(ctx, tab))
	if err := tab.SetWindowBounds(ctx, b); err != nil {
		d.logger.Warn("popup placement failed", "tab_id", tab.TabID, "error", err)
	}
	if d.cfg.SaveGeometry != nil {
		go d.watchGeometry(ctx, tab)
	}
}

// popupBounds computes the popup geometry: the saved position when one
// exists, otherwise the default size anchored to the right screen edge.
func popupBounds(saved *settings.WindowPosition, screenWidth int) browser.Bounds {
	if saved != nil && saved.Width > 0 && saved.Height > 0 {
		return browser.Bounds{
			Left:   saved.Left,
			Top:    saved.Top,
			Width:  saved.Width,
			Height: saved.Height,
		}
	}
	left := screenWidth - defaultPopupWidth - popupMargin
	if left < 0 {
		left = 0
	}
	return browser.Bounds{
		Left:   left,
		Top:    popupMargin,
		Width:  defaultPopupWidth,
		Height: defaultPopupHeight,
	}
}

func (d *Deliverer) screenWidth(ctx context.Context, tab *browser.Tab) int {
	res, err := tab.Page.Context(ctx).Eval(`() => screen.availWidth`)
	if err != nil {
		return 1920
	}
	if w := res.Value.Int(); w > 0 {
		return w
	}
	return 1920
}

func (d *Deliverer) watchGeometry(ctx context.Context, tab *browser.Tab) {
	watchBounds(ctx, func(ctx context.Context) (browser.Bounds, error) {
		return tab.WindowBounds(ctx)
	}, geometryPollInterval, func(b browser.Bounds) {
		d.cfg.SaveGeometry(ctx, settings.WindowPosition{
			Left:   b.Left,
			Top:    b.Top,
			Width:  b.Width,
			Height: b.Height,
		})
	})
}

// watchBounds polls for window geometry changes and calls save once a
// changed geometry has settled. It returns when ctx is done or the poll
// starts failing (the window is gone).
func watchBounds(ctx context.Context, poll func(context.Context) (browser.Bounds, error), interval time.Duration, save func(browser.Bounds)) {
	last, err := poll(ctx)
	if err != nil {
		return
	}
	dirty := false

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		cur, err := poll(ctx)
		if err != nil {
			return
		}
		switch {
		case cur != last:
			last = cur
			dirty = true
		case dirty:
			save(cur)
			dirty = false
		}
	}
}
