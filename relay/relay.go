// Package relay orchestrates the pipeline: detect the video, gather the
// transcript when wanted, compose the prompt, resolve the destination
// chatbot, and hand the result to delivery.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Lanshuns/ebutia/browser"
	"github.com/Lanshuns/ebutia/delivery"
	"github.com/Lanshuns/ebutia/prompt"
	"github.com/Lanshuns/ebutia/registry"
	"github.com/Lanshuns/ebutia/settings"
	"github.com/Lanshuns/ebutia/target"
	"github.com/Lanshuns/ebutia/transcript"
)

// FallbackChoice is the operator's answer when a video has no usable
// transcript.
type FallbackChoice string

const (
	// FallbackOnce degrades this action to a URL-based summary.
	FallbackOnce FallbackChoice = "once"
	// FallbackAlways degrades this action and persists the preference.
	FallbackAlways FallbackChoice = "always"
	// FallbackCancel abandons the action.
	FallbackCancel FallbackChoice = "cancel"
)

// Prompter answers the transcript-fallback question. Implementations may
// ask a human or apply a fixed policy.
type Prompter interface {
	NoTranscriptFallback(ctx context.Context, reason string) (FallbackChoice, error)
}

// Config wires a Relay.
type Config struct {
	Registry  *registry.Registry
	Settings  *settings.Store
	Probe     *transcript.Probe
	Extractor *transcript.Extractor
	Manager   *browser.Manager
	Deliverer *delivery.Deliverer
	Prompter  Prompter
	Logger    *slog.Logger
}

// Relay executes actions end to end.
type Relay struct {
	cfg    Config
	logger *slog.Logger

	inspect func(ctx context.Context, videoURL string) (*transcript.VideoInfo, error)
	extract func(ctx context.Context, videoURL, videoID string) (*transcript.Data, error)
	deliver func(ctx context.Context, res target.BuildResult, s settings.Settings, transcriptText string) error
}

func New(cfg Config) *Relay {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	r := &Relay{cfg: cfg, logger: cfg.Logger}
	r.inspect = r.inspectPage
	r.extract = r.extractTranscript
	r.deliver = r.deliverTarget
	return r
}

// ActionRequest describes one button press worth of work.
type ActionRequest struct {
	// VideoURL is the watch-page URL. Optional for chat actions started
	// away from a video.
	VideoURL string

	Action prompt.Action

	// UserText is the operator's prompt for chat actions.
	UserText string

	// IsHover marks an action aimed at a link rather than the current
	// page, which routes to the URL chatbot and appends the link to the
	// prompt.
	IsHover bool
}

// ActionResult reports what was composed and where it went.
type ActionResult struct {
	ChatbotKey     string `json:"chatbot"`
	TargetURL      string `json:"target_url"`
	Prompt         string `json:"prompt"`
	UsedTranscript bool   `json:"used_transcript"`
	Delivered      bool   `json:"delivered"`
}

// Summarize runs the summarize action for a watch-page URL.
func (r *Relay) Summarize(ctx context.Context, videoURL string) (*ActionResult, error) {
	return r.HandleAction(ctx, ActionRequest{VideoURL: videoURL, Action: prompt.ActionSummarize})
}

// Ask runs a chat action with the given text, optionally anchored to a
// video URL.
func (r *Relay) Ask(ctx context.Context, text, videoURL string, hover bool) (*ActionResult, error) {
	return r.HandleAction(ctx, ActionRequest{
		VideoURL: videoURL,
		Action:   prompt.ActionChat,
		UserText: text,
		IsHover:  hover,
	})
}

// HandleAction is the full pipeline. Ordering is fixed: transcript
// extraction (when needed) completes before composition, composition
// before delivery.
func (r *Relay) HandleAction(ctx context.Context, req ActionRequest) (*ActionResult, error) {
	s := r.settingsOrDefault(ctx)

	switch req.Action {
	case prompt.ActionChat:
		return r.handleChat(ctx, req, s)
	case prompt.ActionSummarize:
		return r.handleSummarize(ctx, req, s)
	default:
		return nil, &Error{Op: "action", Kind: KindConfig,
			Err: fmt.Errorf("unknown action %q", req.Action)}
	}
}

func (r *Relay) handleChat(ctx context.Context, req ActionRequest, s settings.Settings) (*ActionResult, error) {
	text := strings.TrimSpace(req.UserText)
	if text == "" {
		return nil, &Error{Op: "ask", Kind: KindConfig, Err: errors.New("empty prompt")}
	}

	override := text + prompt.LanguageInstruction(s.Language)
	var (
		transcriptText string
		usedTranscript bool
	)

	videoID, onWatchPage := VideoID(req.VideoURL)
	switch {
	case req.VideoURL != "" && req.IsHover:
		// The destination page knows nothing about the link; carry it
		// inside the prompt.
		override += "\n\n" + req.VideoURL
	case onWatchPage && s.SummarySource == settings.SourceTranscript:
		data, err := r.fetchTranscript(ctx, WatchURL(videoID), videoID)
		switch {
		case err == nil:
			transcriptText = transcript.FormatForPrompt(data)
			override += "\n\n" + transcriptText
			usedTranscript = true
		default:
			if ferr := r.fallbackToURL(ctx, &s, err); ferr != nil {
				return nil, ferr
			}
			s.SummarySource = settings.SourceURL
		}
	}

	res, err := target.Resolve(r.cfg.Registry, req.VideoURL, s, override, prompt.ActionChat, req.IsHover)
	if err != nil {
		return nil, &Error{Op: "ask", Kind: KindConfig, Err: err}
	}
	return r.finish(ctx, "ask", res, s, transcriptText, usedTranscript)
}

func (r *Relay) handleSummarize(ctx context.Context, req ActionRequest, s settings.Settings) (*ActionResult, error) {
	videoID, ok := VideoID(req.VideoURL)
	if !ok {
		return nil, &Error{Op: "summarize", Kind: KindConfig,
			Err: fmt.Errorf("not a watch page: %s", req.VideoURL)}
	}
	videoURL := WatchURL(videoID)

	var (
		override       string
		usedTranscript bool
	)
	if s.SummarySource == settings.SourceTranscript {
		data, err := r.fetchTranscript(ctx, videoURL, videoID)
		switch {
		case err == nil:
			override = transcript.FormatForPrompt(data)
			usedTranscript = true
		default:
			if ferr := r.fallbackToURL(ctx, &s, err); ferr != nil {
				return nil, ferr
			}
			s.SummarySource = settings.SourceURL
		}
	}

	res, err := target.Resolve(r.cfg.Registry, videoURL, s, override, prompt.ActionSummarize, false)
	if err != nil {
		return nil, &Error{Op: "summarize", Kind: KindConfig, Err: err}
	}
	return r.finish(ctx, "summarize", res, s, override, usedTranscript)
}

func (r *Relay) finish(ctx context.Context, op string, res target.BuildResult, s settings.Settings, transcriptText string, usedTranscript bool) (*ActionResult, error) {
	if err := r.deliver(ctx, res, s, transcriptText); err != nil {
		return nil, &Error{Op: op, Kind: Classify(err), Err: err}
	}
	r.logger.Info("action delivered",
		"op", op, "chatbot", res.ChatbotKey, "query_param", res.UseQueryParam,
		"used_transcript", usedTranscript)
	return &ActionResult{
		ChatbotKey:     res.ChatbotKey,
		TargetURL:      res.TargetURL,
		Prompt:         res.Prompt,
		UsedTranscript: usedTranscript,
		Delivered:      true,
	}, nil
}

// Transcript fetches the transcript for a watch-page URL without
// delivering anything.
func (r *Relay) Transcript(ctx context.Context, videoURL string) (*transcript.Data, error) {
	videoID, ok := VideoID(videoURL)
	if !ok {
		return nil, &Error{Op: "transcript", Kind: KindConfig,
			Err: fmt.Errorf("not a watch page: %s", videoURL)}
	}
	data, err := r.fetchTranscript(ctx, WatchURL(videoID), videoID)
	if err != nil {
		var appErr *Error
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, &Error{Op: "transcript", Kind: Classify(err), Err: err}
	}
	return data, nil
}

// fetchTranscript probes the page over HTTP first, then drives the
// transcript panel. A probe that positively reports no captions saves
// opening a page at all; a failed probe is only logged.
func (r *Relay) fetchTranscript(ctx context.Context, videoURL, videoID string) (*transcript.Data, error) {
	info, err := r.inspect(ctx, videoURL)
	if err != nil {
		r.logger.Warn("caption probe failed", "video_id", videoID, "error", err)
	} else if info != nil && !info.HasCaptions {
		return nil, &Error{Op: "transcript", Kind: KindTranscriptDisabled,
			Err: fmt.Errorf("no caption tracks for video %s", videoID)}
	}
	return r.extract(ctx, videoURL, videoID)
}

// fallbackToURL decides whether a failed transcript degrades the action
// to a URL-based summary. Returning nil means proceed URL-only.
func (r *Relay) fallbackToURL(ctx context.Context, s *settings.Settings, cause error) error {
	kind := Classify(cause)
	r.logger.Warn("transcript unavailable", "kind", kind, "error", cause)

	if s.UseURLWhenNoTranscript {
		return nil
	}
	if r.cfg.Prompter == nil {
		var appErr *Error
		if errors.As(cause, &appErr) {
			return cause
		}
		return &Error{Op: "transcript", Kind: kind, Err: cause}
	}

	choice, err := r.cfg.Prompter.NoTranscriptFallback(ctx, UserMessage(kind))
	if err != nil {
		return &Error{Op: "transcript", Kind: KindUnknown, Err: err}
	}
	switch choice {
	case FallbackAlways:
		s.UseURLWhenNoTranscript = true
		if r.cfg.Settings != nil {
			if err := r.cfg.Settings.Set(ctx, *s); err != nil {
				r.logger.Warn("persisting fallback preference failed", "error", err)
			}
		}
		return nil
	case FallbackOnce:
		return nil
	default:
		return ErrCancelled
	}
}

func (r *Relay) settingsOrDefault(ctx context.Context) settings.Settings {
	if r.cfg.Settings == nil {
		return settings.Default()
	}
	s, err := r.cfg.Settings.Get(ctx)
	if err != nil {
		// Never block an action on the settings store.
		r.logger.Warn("settings read failed, using defaults", "error", err)
		return settings.Default()
	}
	return s
}

func (r *Relay) inspectPage(ctx context.Context, videoURL string) (*transcript.VideoInfo, error) {
	if r.cfg.Probe == nil {
		return nil, nil
	}
	return r.cfg.Probe.Inspect(ctx, videoURL)
}

func (r *Relay) extractTranscript(ctx context.Context, videoURL, videoID string) (*transcript.Data, error) {
	tab, err := browser.OpenTab(ctx, r.cfg.Manager, videoURL, 0, browser.TabOptions{})
	if err != nil {
		return nil, err
	}
	defer tab.Close()
	return r.cfg.Extractor.Extract(ctx, tab.Page, videoID)
}

func (r *Relay) deliverTarget(ctx context.Context, res target.BuildResult, s settings.Settings, transcriptText string) error {
	_, err := r.cfg.Deliverer.Open(ctx, res, s, transcriptText)
	return err
}
