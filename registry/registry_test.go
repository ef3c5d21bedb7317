package registry

import (
	"strings"
	"testing"
	"time"
)

func loadDefault(t *testing.T) *Registry {
	t.Helper()
	r, err := LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault: %v", err)
	}
	return r
}

func TestLoadDefault(t *testing.T) {
	r := loadDefault(t)

	if got := r.Default().Key; got != "perplexity" {
		t.Errorf("default chatbot: got %q, want perplexity", got)
	}
	for _, key := range []string{"perplexity", "copilot", "lumo"} {
		d := r.Lookup(key)
		if d.Key != key {
			t.Errorf("Lookup(%s): got %q", key, d.Key)
		}
		if len(d.InputSelectors) == 0 {
			t.Errorf("Lookup(%s): no input selectors", key)
		}
	}
	if r.Watch().TranscriptPanel == "" {
		t.Error("watch selectors: transcript panel selector missing")
	}
}

func TestLookup_UnknownFallsBackToDefault(t *testing.T) {
	r := loadDefault(t)

	d := r.Lookup("no-such-bot")
	if d.Key != "perplexity" {
		t.Errorf("Lookup(unknown): got %q, want default perplexity", d.Key)
	}
}

func TestMatchURL(t *testing.T) {
	r := loadDefault(t)

	tests := []struct {
		url  string
		want string
	}{
		{"https://www.perplexity.ai/search?q=x", "perplexity"},
		{"https://copilot.microsoft.com/chats/abc", "copilot"},
		{"https://lumo.proton.me/guest", "lumo"},
		{"https://example.com/", ""},
	}
	for _, tt := range tests {
		d := r.MatchURL(tt.url)
		if tt.want == "" {
			if d != nil {
				t.Errorf("MatchURL(%s): got %q, want no match", tt.url, d.Key)
			}
			continue
		}
		if d == nil || d.Key != tt.want {
			t.Errorf("MatchURL(%s): got %v, want %s", tt.url, d, tt.want)
		}
	}
}

func TestSettleDelay(t *testing.T) {
	r := loadDefault(t)

	if got := r.Lookup("perplexity").SettleDelay(); got != 500*time.Millisecond {
		t.Errorf("perplexity settle delay: got %v, want 500ms", got)
	}
	if got := r.Lookup("lumo").SettleDelay(); got != 800*time.Millisecond {
		t.Errorf("lumo settle delay: got %v, want 800ms", got)
	}
}

func TestRequiresScriptFill(t *testing.T) {
	r := loadDefault(t)

	if r.Lookup("perplexity").RequiresScriptFill() {
		t.Error("perplexity should not require script fill")
	}
	if !r.Lookup("lumo").RequiresScriptFill() {
		t.Error("lumo requires the toggle workflow, so script fill")
	}
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "empty",
			doc:  "chatbots: []",
			want: "no chatbot descriptors",
		},
		{
			name: "duplicate key",
			doc: `
chatbots:
  - {key: a, base_url: "https://a/", url_patterns: [a], input_selectors: [textarea]}
  - {key: a, base_url: "https://a/", url_patterns: [a], input_selectors: [textarea]}
`,
			want: "duplicate",
		},
		{
			name: "missing patterns",
			doc: `
chatbots:
  - {key: a, base_url: "https://a/", input_selectors: [textarea]}
`,
			want: "url_patterns",
		},
		{
			name: "missing input selectors",
			doc: `
chatbots:
  - {key: a, base_url: "https://a/", url_patterns: [a]}
`,
			want: "input_selectors",
		},
		{
			name: "shadow strategy without host",
			doc: `
chatbots:
  - {key: a, base_url: "https://a/", url_patterns: [a], input_selectors: [textarea], fill_strategy: shadow-dom}
`,
			want: "shadow_host_selector",
		},
		{
			name: "unknown default",
			doc: `
default_chatbot: nope
chatbots:
  - {key: a, base_url: "https://a/", url_patterns: [a], input_selectors: [textarea]}
`,
			want: "not declared",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load([]byte(tt.doc))
			if err == nil {
				t.Fatalf("Load: expected error containing %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load: got %v, want error containing %q", err, tt.want)
			}
		})
	}
}
