package relay

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/Lanshuns/ebutia/delivery"
	"github.com/Lanshuns/ebutia/transcript"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"not found", &transcript.NotFoundError{VideoID: "x"}, KindTranscriptNotFound},
		{"parse", &transcript.ParseError{VideoID: "x"}, KindParsing},
		{"timeout", &transcript.TimeoutError{VideoID: "x", Stage: "panel"}, KindTimeout},
		{"private window", &delivery.PrivateWindowError{}, KindConfig},
		{"deadline", context.DeadlineExceeded, KindTimeout},
		{"wrapped not found", fmt.Errorf("outer: %w", &transcript.NotFoundError{VideoID: "x"}), KindTranscriptNotFound},
		{"app error keeps kind", &Error{Op: "x", Kind: KindTranscriptDisabled}, KindTranscriptDisabled},
		{"plain error", errors.New("boom"), KindUnknown},
		{"nil", nil, KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := &transcript.NotFoundError{VideoID: "x"}
	err := &Error{Op: "transcript", Kind: KindTranscriptNotFound, Err: cause}

	var nf *transcript.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatal("errors.As failed to reach the cause")
	}
	if err.Error() == "" {
		t.Error("empty error string")
	}
}

func TestUserMessageCoversTaxonomy(t *testing.T) {
	kinds := []Kind{
		KindNetwork, KindTranscriptNotFound, KindTranscriptDisabled,
		KindParsing, KindTimeout, KindConfig, KindUnknown,
	}
	seen := make(map[string]Kind)
	for _, k := range kinds {
		msg := UserMessage(k)
		if msg == "" {
			t.Errorf("UserMessage(%v) is empty", k)
		}
		if prev, dup := seen[msg]; dup && k != KindUnknown && prev != KindUnknown {
			t.Errorf("UserMessage(%v) duplicates %v", k, prev)
		}
		seen[msg] = k
	}
}
