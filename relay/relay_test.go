package relay

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/Lanshuns/ebutia/dbopen"
	"github.com/Lanshuns/ebutia/registry"
	"github.com/Lanshuns/ebutia/settings"
	"github.com/Lanshuns/ebutia/target"
	"github.com/Lanshuns/ebutia/transcript"
)

const watchURL = "https://www.youtube.com/watch?v=abc123"

type fakePrompter struct {
	choice FallbackChoice
	calls  int
	reason string
}

func (p *fakePrompter) NoTranscriptFallback(ctx context.Context, reason string) (FallbackChoice, error) {
	p.calls++
	p.reason = reason
	return p.choice, nil
}

type delivered struct {
	res            target.BuildResult
	transcriptText string
	calls          int
}

// testRelay builds a Relay with an in-memory settings store and seams
// replacing the browser-facing pieces.
func testRelay(t *testing.T, prompter Prompter) (*Relay, *settings.Store, *delivered) {
	t.Helper()

	reg, err := registry.LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault: %v", err)
	}
	db := dbopen.OpenMemory(t, dbopen.WithSchema(settings.Schema))
	store := settings.NewStore(db)

	r := New(Config{
		Registry: reg,
		Settings: store,
		Prompter: prompter,
		Logger:   slog.New(slog.DiscardHandler),
	})

	del := &delivered{}
	r.deliver = func(ctx context.Context, res target.BuildResult, s settings.Settings, transcriptText string) error {
		del.res = res
		del.transcriptText = transcriptText
		del.calls++
		return nil
	}
	r.inspect = func(ctx context.Context, videoURL string) (*transcript.VideoInfo, error) {
		return &transcript.VideoInfo{Title: "t", HasCaptions: true}, nil
	}
	r.extract = func(ctx context.Context, videoURL, videoID string) (*transcript.Data, error) {
		return &transcript.Data{
			Title:    "How Go Works",
			Segments: []transcript.Segment{{Timestamp: "0:00", Text: "hello"}},
		}, nil
	}
	return r, store, del
}

func TestSummarizeWithTranscript(t *testing.T) {
	r, _, del := testRelay(t, nil)

	res, err := r.Summarize(context.Background(), watchURL)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if !res.UsedTranscript {
		t.Error("UsedTranscript = false, want true")
	}
	if res.ChatbotKey != "perplexity" {
		t.Errorf("ChatbotKey = %q, want perplexity (main chatbot for transcript source)", res.ChatbotKey)
	}
	if !strings.Contains(res.Prompt, "Title: How Go Works") {
		t.Errorf("Prompt missing transcript block: %q", res.Prompt)
	}
	if del.calls != 1 || del.transcriptText == "" {
		t.Errorf("deliver calls = %d, transcript %q", del.calls, del.transcriptText)
	}
	// Transcript-carrying prompts travel by handoff, never by URL.
	if del.res.UseQueryParam {
		t.Error("UseQueryParam = true for transcript-source delivery")
	}
}

func TestSummarizeNotAWatchPage(t *testing.T) {
	r, _, _ := testRelay(t, nil)

	_, err := r.Summarize(context.Background(), "https://example.com/")
	if Classify(err) != KindConfig {
		t.Fatalf("Classify = %v (err %v), want config", Classify(err), err)
	}
}

func TestSummarizeNoCaptionsCancelled(t *testing.T) {
	p := &fakePrompter{choice: FallbackCancel}
	r, _, del := testRelay(t, p)
	r.inspect = func(ctx context.Context, videoURL string) (*transcript.VideoInfo, error) {
		return &transcript.VideoInfo{HasCaptions: false}, nil
	}
	extracted := false
	r.extract = func(ctx context.Context, videoURL, videoID string) (*transcript.Data, error) {
		extracted = true
		return nil, nil
	}

	_, err := r.Summarize(context.Background(), watchURL)
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("err = %v, want ErrCancelled", err)
	}
	if extracted {
		t.Error("extraction ran despite probe reporting no captions")
	}
	if p.calls != 1 {
		t.Errorf("prompter calls = %d, want 1", p.calls)
	}
	if del.calls != 0 {
		t.Errorf("deliver calls = %d, want 0", del.calls)
	}
}

func TestSummarizeFallbackOnce(t *testing.T) {
	p := &fakePrompter{choice: FallbackOnce}
	r, store, del := testRelay(t, p)
	r.extract = func(ctx context.Context, videoURL, videoID string) (*transcript.Data, error) {
		return nil, &transcript.NotFoundError{VideoID: videoID}
	}

	res, err := r.Summarize(context.Background(), watchURL)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if res.UsedTranscript {
		t.Error("UsedTranscript = true after fallback")
	}
	// URL-based summaries route to the URL chatbot.
	if res.ChatbotKey != "copilot" {
		t.Errorf("ChatbotKey = %q, want copilot", res.ChatbotKey)
	}
	if del.calls != 1 {
		t.Errorf("deliver calls = %d, want 1", del.calls)
	}

	// "once" must not persist the preference.
	s, err := store.Get(context.Background())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if s.UseURLWhenNoTranscript {
		t.Error("UseURLWhenNoTranscript persisted after a one-time fallback")
	}
}

func TestSummarizeFallbackAlwaysPersists(t *testing.T) {
	p := &fakePrompter{choice: FallbackAlways}
	r, store, _ := testRelay(t, p)
	r.extract = func(ctx context.Context, videoURL, videoID string) (*transcript.Data, error) {
		return nil, &transcript.NotFoundError{VideoID: videoID}
	}

	if _, err := r.Summarize(context.Background(), watchURL); err != nil {
		t.Fatalf("Summarize: %v", err)
	}

	s, err := store.Get(context.Background())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !s.UseURLWhenNoTranscript {
		t.Error("UseURLWhenNoTranscript not persisted after always")
	}

	// A later failure must not re-ask.
	if _, err := r.Summarize(context.Background(), watchURL); err != nil {
		t.Fatalf("Summarize 2: %v", err)
	}
	if p.calls != 1 {
		t.Errorf("prompter calls = %d, want 1", p.calls)
	}
}

func TestSummarizeNoPrompterSurfacesError(t *testing.T) {
	r, _, _ := testRelay(t, nil)
	r.extract = func(ctx context.Context, videoURL, videoID string) (*transcript.Data, error) {
		return nil, &transcript.ParseError{VideoID: videoID}
	}

	_, err := r.Summarize(context.Background(), watchURL)
	if Classify(err) != KindParsing {
		t.Fatalf("Classify = %v (err %v), want parsing", Classify(err), err)
	}
}

func TestAsk(t *testing.T) {
	r, _, del := testRelay(t, nil)

	res, err := r.Ask(context.Background(), "  What is this about?  ", "", false)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if res.Prompt != "What is this about?" {
		t.Errorf("Prompt = %q, want trimmed text", res.Prompt)
	}
	if del.calls != 1 {
		t.Errorf("deliver calls = %d, want 1", del.calls)
	}
}

func TestAskHoverAppendsLink(t *testing.T) {
	r, _, _ := testRelay(t, nil)

	res, err := r.Ask(context.Background(), "Explain this", watchURL, true)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if !strings.Contains(res.Prompt, watchURL) {
		t.Errorf("Prompt missing link: %q", res.Prompt)
	}
	// Hover chats route to the URL chatbot.
	if res.ChatbotKey != "copilot" {
		t.Errorf("ChatbotKey = %q, want copilot", res.ChatbotKey)
	}
}

func TestAskAppliesLanguage(t *testing.T) {
	r, store, _ := testRelay(t, nil)

	s := settings.Default()
	s.Language = "French"
	if err := store.Set(context.Background(), s); err != nil {
		t.Fatalf("Set: %v", err)
	}

	res, err := r.Ask(context.Background(), "What is this about?", "", false)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if !strings.Contains(res.Prompt, "Please provide the entire response in French.") {
		t.Errorf("Prompt missing language instruction: %q", res.Prompt)
	}
}

func TestAskOnWatchPageAppendsTranscript(t *testing.T) {
	r, _, del := testRelay(t, nil)

	res, err := r.Ask(context.Background(), "What changed?", watchURL, false)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if !strings.Contains(res.Prompt, "Title: How Go Works") {
		t.Errorf("Prompt missing transcript: %q", res.Prompt)
	}
	if !res.UsedTranscript {
		t.Error("UsedTranscript = false, want true")
	}
	// Transcript present, so the main chatbot handles the chat.
	if res.ChatbotKey != "perplexity" {
		t.Errorf("ChatbotKey = %q, want perplexity", res.ChatbotKey)
	}
	if del.calls != 1 {
		t.Errorf("deliver calls = %d, want 1", del.calls)
	}
}

func TestAskTranscriptFallback(t *testing.T) {
	prompter := &fakePrompter{choice: FallbackOnce}
	r, _, _ := testRelay(t, prompter)
	r.inspect = func(ctx context.Context, videoURL string) (*transcript.VideoInfo, error) {
		return &transcript.VideoInfo{Title: "t", HasCaptions: false}, nil
	}

	res, err := r.Ask(context.Background(), "What changed?", watchURL, false)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if prompter.calls != 1 {
		t.Errorf("prompter calls = %d, want 1", prompter.calls)
	}
	if strings.Contains(res.Prompt, "Title:") {
		t.Errorf("Prompt should not carry a transcript: %q", res.Prompt)
	}
	if res.ChatbotKey != "copilot" {
		t.Errorf("ChatbotKey = %q, want copilot after URL fallback", res.ChatbotKey)
	}
}

func TestAskEmptyPrompt(t *testing.T) {
	r, _, _ := testRelay(t, nil)

	_, err := r.Ask(context.Background(), "   ", "", false)
	if Classify(err) != KindConfig {
		t.Fatalf("Classify = %v (err %v), want config", Classify(err), err)
	}
}

func TestTranscriptOp(t *testing.T) {
	r, _, _ := testRelay(t, nil)

	data, err := r.Transcript(context.Background(), watchURL)
	if err != nil {
		t.Fatalf("Transcript: %v", err)
	}
	if data.Title != "How Go Works" {
		t.Errorf("Title = %q", data.Title)
	}

	if _, err := r.Transcript(context.Background(), "https://example.com/"); Classify(err) != KindConfig {
		t.Fatalf("Classify = %v, want config", Classify(err))
	}
}
