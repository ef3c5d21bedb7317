// Package filler locates a chatbot's prompt input on a rendered page,
// fills it, and submits. The page-side work runs as one injected script
// evaluated against the live DOM; the Go side owns the retry schedule and
// per-session state.
package filler

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"

	"github.com/Lanshuns/ebutia/registry"
)

//go:embed fill.js
var fillJS string

const (
	// Chatbot frontends render their composer asynchronously; the input
	// is polled this many times before giving up.
	defaultAttempts = 20
	defaultInterval = 1 * time.Second
)

// Result reports what the injected script accomplished in one pass.
type Result struct {
	Found     bool `json:"found"`
	Filled    bool `json:"filled"`
	Toggled   bool `json:"toggled"`
	Submitted bool `json:"submitted"`
}

// Session carries per-tab state that must survive across fills. The web
// search toggle in particular is flipped at most once per session; a
// second flip would turn it back off.
type Session struct {
	webSearchToggled bool
}

// fillArg is the config object handed to fill.js.
type fillArg struct {
	InputSelectors  []string `json:"inputSelectors"`
	SubmitSelectors []string `json:"submitSelectors"`
	ToggleSelectors []string `json:"toggleSelectors,omitempty"`
	Text            string   `json:"text"`
	ShadowHost      string   `json:"shadowHost,omitempty"`
	SettleMs        int64    `json:"settleMs"`
	Toggle          bool     `json:"toggle"`
	Submit          bool     `json:"submit"`
}

type evalFunc func(ctx context.Context, page *rod.Page, arg fillArg) (Result, error)

// Driver delivers prompts into chatbot pages.
type Driver struct {
	logger   *slog.Logger
	attempts int
	interval time.Duration
	eval     evalFunc
}

// New builds a Driver with the default retry schedule.
func New(logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{
		logger:   logger,
		attempts: defaultAttempts,
		interval: defaultInterval,
		eval:     rodEval,
	}
}

// Deliver fills desc's input on page with prompt and submits it, retrying
// until the input appears or the schedule is exhausted. Exhaustion is not
// an error: the page may legitimately never grow an input (login walls,
// layout changes), and the user still has the prompt on their clipboard
// path. The returned Result reports Found=false in that case.
func (d *Driver) Deliver(ctx context.Context, page *rod.Page, desc *registry.Descriptor, prompt string, sess *Session) (Result, error) {
	arg := fillArg{
		InputSelectors:  desc.InputSelectors,
		SubmitSelectors: desc.SubmitSelectors,
		Text:            prompt,
		ShadowHost:      desc.ShadowHostSelector,
		SettleMs:        desc.SettleDelay().Milliseconds(),
		Submit:          true,
	}
	if len(desc.WebSearchSelectors) > 0 && sess != nil && !sess.webSearchToggled {
		arg.Toggle = true
		arg.ToggleSelectors = desc.WebSearchSelectors
	}

	for attempt := 1; attempt <= d.attempts; attempt++ {
		res, err := d.eval(ctx, page, arg)
		if err != nil {
			d.logger.Debug("fill attempt failed", "chatbot", desc.Key, "attempt", attempt, "error", err)
		} else if res.Found {
			if res.Toggled && sess != nil {
				sess.webSearchToggled = true
			}
			d.logger.Info("prompt delivered",
				"chatbot", desc.Key, "attempt", attempt, "submitted", res.Submitted)
			return res, nil
		}

		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-time.After(d.interval):
		}
	}

	d.logger.Warn("input never appeared, giving up", "chatbot", desc.Key, "attempts", d.attempts)
	return Result{}, nil
}

func rodEval(ctx context.Context, page *rod.Page, arg fillArg) (Result, error) {
	res, err := page.Context(ctx).Eval(fillJS, arg)
	if err != nil {
		return Result{}, fmt.Errorf("filler: eval fill script: %w", err)
	}
	var out Result
	if err := json.Unmarshal([]byte(res.Value.Str()), &out); err != nil {
		return Result{}, fmt.Errorf("filler: decode fill result: %w", err)
	}
	return out, nil
}
