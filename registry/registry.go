// Package registry holds the static per-chatbot capability descriptors and
// the watch-page scraping selectors.
//
// Everything here is data: DOM selectors for mutable third-party markup are
// kept out of logic so they can be updated (or overridden from a YAML file)
// without touching the pipeline. The registry is read-only after load.
package registry

import (
	"fmt"
	"strings"
	"time"
)

// FillStrategy names how the Fill Driver must treat a destination page.
type FillStrategy string

const (
	// FillStandard types into a regular input in the main document.
	FillStandard FillStrategy = "standard"
	// FillShadowDOM locates the input inside a shadow root reachable
	// through a host element.
	FillShadowDOM FillStrategy = "shadow-dom"
	// FillToggle activates an auxiliary control (web search) before
	// typing, once per session.
	FillToggle FillStrategy = "toggle-then-fill"
)

// Descriptor is the static capability and selector record for one chatbot.
type Descriptor struct {
	Key     string `yaml:"key"`
	BaseURL string `yaml:"base_url"`

	// URLPatterns are substrings matched against a page URL to recognise
	// this chatbot's pages. First declaration wins on ambiguity.
	URLPatterns []string `yaml:"url_patterns"`

	// InputSelectors is the ordered fallback list for the prompt input.
	InputSelectors []string `yaml:"input_selectors"`

	// SubmitSelectors is the ordered fallback list for the send control.
	SubmitSelectors []string `yaml:"submit_selectors"`

	// WebSearchSelectors locate the auxiliary web-search toggle, when the
	// chatbot has one.
	WebSearchSelectors []string `yaml:"web_search_selectors"`

	// AcceptsQueryParam reports whether the destination reads a prompt
	// from a q= query parameter.
	AcceptsQueryParam bool `yaml:"accepts_query_param"`

	// ShadowHostSelector, when set, names the element whose shadow root
	// contains the input.
	ShadowHostSelector string `yaml:"shadow_host_selector"`

	// GuestPath, when set, replaces the base URL path for anonymous
	// sessions (guest mode).
	GuestPath string `yaml:"guest_path"`

	// FillStrategy selects the fill behaviour. Default: standard.
	FillStrategy FillStrategy `yaml:"fill_strategy"`

	// SettleDelayMS is the pause between filling and submitting in
	// milliseconds, letting the destination's framework settle.
	// Default: 500.
	SettleDelayMS int `yaml:"settle_delay_ms"`
}

// SettleDelay returns the post-fill settle pause.
func (d Descriptor) SettleDelay() time.Duration {
	if d.SettleDelayMS <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(d.SettleDelayMS) * time.Millisecond
}

// RequiresScriptFill reports whether this destination needs a
// post-navigation script-driven fill even when query-param delivery would
// be usable (the toggle workflow only runs from the fill path).
func (d Descriptor) RequiresScriptFill() bool {
	return d.FillStrategy == FillToggle
}

// WatchSelectors are the scraping selectors for the video watch page:
// transcript panel controls, segment structure, and metadata.
type WatchSelectors struct {
	Title             string   `yaml:"title"`
	Description       string   `yaml:"description"`
	ExpandDescription string   `yaml:"expand_description"`
	TranscriptOpen    []string `yaml:"transcript_open"`
	TranscriptPanel   string   `yaml:"transcript_panel"`
	TranscriptClose   string   `yaml:"transcript_close"`
	Segments          string   `yaml:"segments"`
	SegmentTimestamp  string   `yaml:"segment_timestamp"`
	SegmentText       string   `yaml:"segment_text"`
	Chapters          string   `yaml:"chapters"`
}

// Registry is the loaded descriptor table. Read-only after Load.
type Registry struct {
	descriptors []Descriptor
	byKey       map[string]Descriptor
	defaultKey  string
	watch       WatchSelectors
}

// Lookup returns the descriptor for key, falling back to the configured
// default descriptor when the key is absent.
func (r *Registry) Lookup(key string) Descriptor {
	if d, ok := r.byKey[key]; ok {
		return d
	}
	return r.byKey[r.defaultKey]
}

// Default returns the default chatbot descriptor.
func (r *Registry) Default() Descriptor {
	return r.byKey[r.defaultKey]
}

// MatchURL scans all descriptors' URL patterns for substring containment
// against url, in declaration order. Returns nil when nothing matches.
func (r *Registry) MatchURL(url string) *Descriptor {
	for i := range r.descriptors {
		for _, pat := range r.descriptors[i].URLPatterns {
			if strings.Contains(url, pat) {
				d := r.descriptors[i]
				return &d
			}
		}
	}
	return nil
}

// Descriptors returns the descriptor table in declaration order.
func (r *Registry) Descriptors() []Descriptor {
	return r.descriptors
}

// Watch returns the watch-page scraping selectors.
func (r *Registry) Watch() WatchSelectors {
	return r.watch
}

func (r *Registry) validate() error {
	if len(r.descriptors) == 0 {
		return fmt.Errorf("registry: no chatbot descriptors")
	}
	seen := make(map[string]bool, len(r.descriptors))
	for _, d := range r.descriptors {
		if d.Key == "" {
			return fmt.Errorf("registry: descriptor with empty key")
		}
		if seen[d.Key] {
			return fmt.Errorf("registry: duplicate chatbot key %q", d.Key)
		}
		seen[d.Key] = true
		if d.BaseURL == "" {
			return fmt.Errorf("registry: %s: empty base_url", d.Key)
		}
		if len(d.URLPatterns) == 0 {
			return fmt.Errorf("registry: %s: url_patterns must be non-empty", d.Key)
		}
		if len(d.InputSelectors) == 0 {
			return fmt.Errorf("registry: %s: input_selectors must be non-empty", d.Key)
		}
		switch d.FillStrategy {
		case FillStandard, FillShadowDOM, FillToggle:
		default:
			return fmt.Errorf("registry: %s: unknown fill_strategy %q", d.Key, d.FillStrategy)
		}
		if d.FillStrategy == FillShadowDOM && d.ShadowHostSelector == "" {
			return fmt.Errorf("registry: %s: shadow-dom strategy needs shadow_host_selector", d.Key)
		}
	}
	if !seen[r.defaultKey] {
		return fmt.Errorf("registry: default chatbot %q not declared", r.defaultKey)
	}
	return nil
}
