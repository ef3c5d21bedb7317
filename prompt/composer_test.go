package prompt

import (
	"strings"
	"testing"

	"github.com/Lanshuns/ebutia/settings"
)

const videoURL = "https://www.youtube.com/watch?v=abc123"

func TestLanguageInstruction(t *testing.T) {
	tests := []struct {
		lang string
		want string
	}{
		{"", ""},
		{"Same as transcript", "\n\nDetect and use the same transcript or title language."},
		{"French", "\n\nPlease provide the entire response in French."},
	}
	for _, tt := range tests {
		if got := LanguageInstruction(tt.lang); got != tt.want {
			t.Errorf("LanguageInstruction(%q): got %q, want %q", tt.lang, got, tt.want)
		}
	}
}

func TestCompose_SimpleNoOverride(t *testing.T) {
	s := settings.Default()
	s.PromptMode = settings.PromptSimple

	got := Compose(videoURL, s, "", ActionSummarize)
	want := "Summarize this video: " + videoURL
	if got != want {
		t.Errorf("Compose simple: got %q, want %q", got, want)
	}

	s.Language = "German"
	got = Compose(videoURL, s, "", ActionSummarize)
	want = "Summarize this video: " + videoURL + "\n\nPlease provide the entire response in German."
	if got != want {
		t.Errorf("Compose simple with language: got %q, want %q", got, want)
	}
	if strings.Contains(got, "expert video summarizer") {
		t.Error("simple mode must not contain advanced template text")
	}
}

func TestCompose_AdvancedNoOverride(t *testing.T) {
	s := settings.Default()
	s.PromptMode = settings.PromptAdvanced

	got := Compose(videoURL, s, "", ActionSummarize)
	if !strings.HasPrefix(got, "Video URL: "+videoURL) {
		t.Errorf("advanced prompt missing video URL prefix: %q", got)
	}
	if !strings.Contains(got, "expert video summarizer") {
		t.Errorf("advanced prompt missing template body: %q", got)
	}
}

func TestCompose_UnsetModeFallsBackToAdvanced(t *testing.T) {
	s := settings.Default()
	s.PromptMode = ""

	got := Compose(videoURL, s, "", ActionSummarize)
	if !strings.Contains(got, "expert video summarizer") {
		t.Errorf("unset mode should use the advanced template: %q", got)
	}
}

func TestCompose_OverrideAppended(t *testing.T) {
	s := settings.Default()
	s.PromptMode = settings.PromptSimple
	override := "Title: A video\n\nTranscript:\n[0:00] hello"

	got := Compose(videoURL, s, override, ActionSummarize)
	want := "Summarize this video:\n\n" + override
	if got != want {
		t.Errorf("Compose with override: got %q, want %q", got, want)
	}
}

func TestCompose_SourceTokenSubstitution(t *testing.T) {
	// A selected user template carrying the token substitutes the
	// override at every occurrence instead of appending it.
	s := settings.Default()
	s.UserTemplates = []settings.UserTemplate{{
		ID:       "t1",
		Name:     "quiz",
		Template: "Quiz me on " + SourceToken + " and grade against " + SourceToken,
	}}
	s.SelectedTemplateID = "t1"

	got := Compose(videoURL, s, "X", ActionSummarize)
	if got != "Quiz me on X and grade against X" {
		t.Errorf("token substitution: got %q", got)
	}
}

func TestCompose_SelectedTemplateWithoutToken(t *testing.T) {
	s := settings.Default()
	s.UserTemplates = []settings.UserTemplate{{ID: "t1", Template: "Summarize briefly:"}}
	s.SelectedTemplateID = "t1"

	got := Compose(videoURL, s, "X", ActionSummarize)
	if got != "Summarize briefly:\n\nX" {
		t.Errorf("template without token: got %q", got)
	}
}

func TestCompose_ChatReturnsTrimmedOverride(t *testing.T) {
	s := settings.Default()

	got := Compose(videoURL, s, "  what is this about?  \n", ActionChat)
	if got != "what is this about?" {
		t.Errorf("Compose chat: got %q", got)
	}

	if got := Compose(videoURL, s, "", ActionChat); got != "" {
		t.Errorf("Compose chat with no text: got %q, want empty", got)
	}
}

func TestCompose_Deterministic(t *testing.T) {
	s := settings.Default()
	s.PromptMode = settings.PromptAdvanced
	s.Language = "Spanish"

	a := Compose(videoURL, s, "", ActionSummarize)
	b := Compose(videoURL, s, "", ActionSummarize)
	if a != b {
		t.Error("Compose is not deterministic for identical inputs")
	}
}
