package filler

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/go-rod/rod"

	"github.com/Lanshuns/ebutia/registry"
)

func testDriver(eval evalFunc) *Driver {
	d := New(slog.New(slog.DiscardHandler))
	d.interval = time.Millisecond
	d.eval = eval
	return d
}

func standardDesc() *registry.Descriptor {
	return &registry.Descriptor{
		Key:             "perplexity",
		InputSelectors:  []string{"textarea"},
		SubmitSelectors: []string{"button[type=submit]"},
	}
}

func TestDeliverFirstAttempt(t *testing.T) {
	calls := 0
	d := testDriver(func(ctx context.Context, page *rod.Page, arg fillArg) (Result, error) {
		calls++
		if arg.Text != "hello" {
			t.Errorf("arg.Text = %q, want %q", arg.Text, "hello")
		}
		if !arg.Submit {
			t.Error("arg.Submit = false, want true")
		}
		return Result{Found: true, Filled: true, Submitted: true}, nil
	})

	res, err := d.Deliver(context.Background(), nil, standardDesc(), "hello", &Session{})
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if !res.Submitted {
		t.Error("Submitted = false, want true")
	}
	if calls != 1 {
		t.Errorf("eval calls = %d, want 1", calls)
	}
}

func TestDeliverRetriesUntilFound(t *testing.T) {
	calls := 0
	d := testDriver(func(ctx context.Context, page *rod.Page, arg fillArg) (Result, error) {
		calls++
		if calls < 5 {
			return Result{}, nil
		}
		return Result{Found: true, Filled: true, Submitted: true}, nil
	})

	res, err := d.Deliver(context.Background(), nil, standardDesc(), "p", nil)
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if !res.Found || calls != 5 {
		t.Errorf("Found = %v after %d calls, want found on call 5", res.Found, calls)
	}
}

func TestDeliverExhaustionIsSilent(t *testing.T) {
	calls := 0
	d := testDriver(func(ctx context.Context, page *rod.Page, arg fillArg) (Result, error) {
		calls++
		return Result{}, errors.New("no such element")
	})

	res, err := d.Deliver(context.Background(), nil, standardDesc(), "p", nil)
	if err != nil {
		t.Fatalf("Deliver after exhaustion = %v, want nil error", err)
	}
	if res.Found {
		t.Error("Found = true, want false")
	}
	if calls != defaultAttempts {
		t.Errorf("eval calls = %d, want %d", calls, defaultAttempts)
	}
}

func TestDeliverHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	d := testDriver(func(ctx context.Context, page *rod.Page, arg fillArg) (Result, error) {
		cancel()
		return Result{}, nil
	})

	_, err := d.Deliver(ctx, nil, standardDesc(), "p", nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Deliver = %v, want context.Canceled", err)
	}
}

func TestWebSearchToggleOncePerSession(t *testing.T) {
	desc := &registry.Descriptor{
		Key:                "lumo",
		InputSelectors:     []string{"textarea"},
		SubmitSelectors:    []string{"button"},
		WebSearchSelectors: []string{"button[aria-label='Web search']"},
	}

	var toggleRequests []bool
	d := testDriver(func(ctx context.Context, page *rod.Page, arg fillArg) (Result, error) {
		toggleRequests = append(toggleRequests, arg.Toggle)
		return Result{Found: true, Filled: true, Toggled: arg.Toggle, Submitted: true}, nil
	})

	sess := &Session{}
	for i := 0; i < 3; i++ {
		if _, err := d.Deliver(context.Background(), nil, desc, "p", sess); err != nil {
			t.Fatalf("Deliver %d: %v", i, err)
		}
	}

	want := []bool{true, false, false}
	for i, got := range toggleRequests {
		if got != want[i] {
			t.Errorf("toggle request %d = %v, want %v", i, got, want[i])
		}
	}
}

func TestNoToggleWithoutSelectors(t *testing.T) {
	d := testDriver(func(ctx context.Context, page *rod.Page, arg fillArg) (Result, error) {
		if arg.Toggle {
			t.Error("arg.Toggle = true for chatbot without web search selectors")
		}
		return Result{Found: true}, nil
	})

	if _, err := d.Deliver(context.Background(), nil, standardDesc(), "p", &Session{}); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
}

func TestFillScriptContract(t *testing.T) {
	// A missing shadow host must fall back to the document scope rather
	// than abort the attempt.
	head := fillJS[:strings.Index(fillJS, "const firstMatch")]
	if strings.Contains(head, "return") {
		t.Error("scope resolution must not return early on a missing shadow root")
	}

	// The settle delay sits between value injection and the submit
	// lookup so the page framework registers the value first.
	filled := strings.Index(fillJS, "result.filled = true")
	settle := strings.Index(fillJS, "sleep(cfg.settleMs)")
	submit := strings.Index(fillJS, "cfg.submitSelectors")
	if filled < 0 || settle < 0 || submit < 0 {
		t.Fatalf("script markers missing: filled=%d settle=%d submit=%d", filled, settle, submit)
	}
	if !(filled < settle && settle < submit) {
		t.Errorf("settle delay out of place: filled=%d settle=%d submit=%d", filled, settle, submit)
	}
}
