// Package delivery opens the destination chatbot page and gets the
// composed prompt into it, via URL query parameter, script fill, or both.
package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/Lanshuns/ebutia/browser"
	"github.com/Lanshuns/ebutia/filler"
	"github.com/Lanshuns/ebutia/handoff"
	"github.com/Lanshuns/ebutia/registry"
	"github.com/Lanshuns/ebutia/settings"
	"github.com/Lanshuns/ebutia/target"
)

// TranscriptToken marks where an externally supplied transcript is
// spliced into a stored prompt. Resolution happens at consume time so the
// persisted handoff row stays small.
const TranscriptToken = "{transcript}"

// PrivateWindowError reports that private-window delivery was requested
// but the relay is not configured to permit it.
type PrivateWindowError struct{}

func (e *PrivateWindowError) Error() string {
	return "delivery: private window delivery is not permitted"
}

// Config wires a Deliverer.
type Config struct {
	Manager  *browser.Manager
	Registry *registry.Registry
	Handoff  *handoff.Store
	Driver   *filler.Driver

	// AllowPrivate permits incognito delivery when settings request it.
	AllowPrivate bool

	// SaveGeometry, when set, persists popup window moves. Called off
	// the delivery path.
	SaveGeometry func(context.Context, settings.WindowPosition)

	Logger *slog.Logger
}

// Deliverer executes the tail of the pipeline: persist handoff, open the
// page, and fill.
type Deliverer struct {
	cfg    Config
	logger *slog.Logger

	nextTab atomic.Int64

	mu       sync.Mutex
	sessions map[int64]*filler.Session
}

func New(cfg Config) *Deliverer {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Deliverer{
		cfg:      cfg,
		logger:   cfg.Logger,
		sessions: make(map[int64]*filler.Session),
	}
}

// Open delivers res to its chatbot. transcript, when non-empty, resolves
// the transcript token inside the prompt at consume time. The returned Tab
// stays open; callers own its lifecycle.
func (d *Deliverer) Open(ctx context.Context, res target.BuildResult, s settings.Settings, transcript string) (*browser.Tab, error) {
	if s.UsePrivateWindow && !d.cfg.AllowPrivate {
		return nil, &PrivateWindowError{}
	}

	desc := d.cfg.Registry.Lookup(res.ChatbotKey)
	tabID := d.nextTab.Add(1)

	if NeedsHandoff(res.UseQueryParam, &desc) {
		err := d.cfg.Handoff.Put(ctx, handoff.Payload{
			Prompt:       res.Prompt,
			DeliveryMode: string(s.OpenIn),
			TargetURL:    res.TargetURL,
		}, tabID)
		if err != nil {
			return nil, fmt.Errorf("delivery: persist handoff: %w", err)
		}
	}

	tab, err := browser.OpenTab(ctx, d.cfg.Manager, res.TargetURL, tabID,
		browser.TabOptions{Incognito: s.UsePrivateWindow})
	if err != nil {
		return nil, err
	}

	if s.OpenIn == settings.DeliveryPopup {
		d.placePopup(ctx, tab, s)
	}

	payload, err := d.cfg.Handoff.Consume(ctx, tabID)
	if err != nil {
		d.logger.Warn("handoff consume failed", "tab_id", tabID, "error", err)
	}

	prompt := res.Prompt
	if payload != nil {
		prompt = payload.Prompt
	} else if res.UseQueryParam && !desc.RequiresScriptFill() {
		// The query parameter already carried the prompt and no script
		// work is pending on this chatbot.
		return tab, nil
	}
	prompt = ResolveTranscript(prompt, transcript)

	if cur, cerr := tab.CurrentURL(ctx); cerr == nil && LandedPromptMatches(cur, prompt) {
		d.logger.Debug("prompt already in landed URL, skipping fill",
			"chatbot", desc.Key, "tab_id", tabID)
		return tab, nil
	}

	if _, err := d.cfg.Driver.Deliver(ctx, tab.Page, &desc, prompt, d.session(tabID)); err != nil {
		return tab, err
	}
	return tab, nil
}

func (d *Deliverer) session(tabID int64) *filler.Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	sess, ok := d.sessions[tabID]
	if !ok {
		sess = &filler.Session{}
		d.sessions[tabID] = sess
	}
	return sess
}

// CloseTab closes the tab and drops its session state.
func (d *Deliverer) CloseTab(tab *browser.Tab) error {
	d.mu.Lock()
	delete(d.sessions, tab.TabID)
	d.mu.Unlock()
	return tab.Close()
}

// NeedsHandoff reports whether the prompt must be persisted across the
// navigation: always when the URL cannot carry it, and also for chatbots
// whose page still needs script work after landing.
func NeedsHandoff(useQueryParam bool, desc *registry.Descriptor) bool {
	return !useQueryParam || desc.RequiresScriptFill()
}

// ResolveTranscript splices transcript into prompt wherever the
// transcript token appears. With an empty transcript the token is removed.
func ResolveTranscript(prompt, transcript string) string {
	if !strings.Contains(prompt, TranscriptToken) {
		return prompt
	}
	return strings.TrimSpace(strings.ReplaceAll(prompt, TranscriptToken, transcript))
}

// LandedPromptMatches reports whether the page's current URL already
// carries prompt in its q parameter, in which case filling would submit
// the same prompt twice.
func LandedPromptMatches(rawURL, prompt string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	q := u.Query().Get("q")
	return q != "" && q == prompt
}
