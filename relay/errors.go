package relay

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/Lanshuns/ebutia/delivery"
	"github.com/Lanshuns/ebutia/transcript"
)

// Kind classifies relay failures for surfacing and status mapping.
type Kind string

const (
	KindNetwork            Kind = "network"
	KindTranscriptNotFound Kind = "transcript_not_found"
	KindTranscriptDisabled Kind = "transcript_disabled"
	KindParsing            Kind = "parsing"
	KindTimeout            Kind = "timeout"
	KindConfig             Kind = "config"
	KindUnknown            Kind = "unknown"
)

// Error is the relay's failure envelope: an operation, a classification,
// and the underlying cause.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("relay: %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("relay: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrCancelled reports that the operator declined the URL fallback after a
// transcript failure. Not a defect: the action simply stops.
var ErrCancelled = errors.New("relay: action cancelled")

// Classify maps an arbitrary error onto the taxonomy. Wrapped *Error
// values keep their original kind.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}

	var (
		notFound *transcript.NotFoundError
		parse    *transcript.ParseError
		timeout  *transcript.TimeoutError
		private  *delivery.PrivateWindowError
		netErr   net.Error
	)
	switch {
	case errors.As(err, &notFound):
		return KindTranscriptNotFound
	case errors.As(err, &parse):
		return KindParsing
	case errors.As(err, &timeout):
		return KindTimeout
	case errors.As(err, &private):
		return KindConfig
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.As(err, &netErr):
		return KindNetwork
	}
	return KindUnknown
}

// UserMessage renders a kind as the dismissible notice shown to callers.
// Failures here never break the host flow; they degrade to this text.
func UserMessage(k Kind) string {
	switch k {
	case KindNetwork:
		return "Network problem while reaching the page. Check connectivity and try again."
	case KindTranscriptNotFound:
		return "This video has no transcript available."
	case KindTranscriptDisabled:
		return "Transcripts are disabled for this video."
	case KindParsing:
		return "The transcript could not be read from the page."
	case KindTimeout:
		return "The page took too long to respond."
	case KindConfig:
		return "The request conflicts with the current configuration."
	default:
		return "Something went wrong. Please try again."
	}
}
