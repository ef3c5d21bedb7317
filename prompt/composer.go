// Package prompt composes the final chatbot prompt text.
//
// Composition is pure: a settings record, an optional pre-gathered source
// text (formatted transcript or user question), and the action kind go in,
// prompt text comes out. No I/O, fully deterministic.
package prompt

import (
	"strings"

	"github.com/Lanshuns/ebutia/settings"
)

// Action is the user-triggered action kind.
type Action string

const (
	ActionSummarize Action = "summarize"
	ActionChat      Action = "chat"
)

// SourceToken is the placeholder replaced by the gathered source text when
// it appears in a template.
const SourceToken = "{SOURCE}"

// advancedTemplate is the structured summary instruction block.
const advancedTemplate = `
You are an expert video summarizer.
Please summarize this video using precise and concise language.
Use headers and bulleted lists in the summary, to make it scannable.
Maintain the meaning and factual accuracy.`

// LanguageInstruction returns the response-language suffix for a summary
// language label. The empty label yields no instruction; the sentinel
// "Same as transcript" asks the chatbot to detect the language itself.
func LanguageInstruction(language string) string {
	if language == "Same as transcript" {
		return "\n\nDetect and use the same transcript or title language."
	}
	if language != "" {
		return "\n\nPlease provide the entire response in " + language + "."
	}
	return ""
}

// Advanced renders the structured summary prompt for a video URL.
func Advanced(videoURL, language string) string {
	return "Video URL: " + videoURL + "\n" + advancedTemplate + LanguageInstruction(language)
}

// Compose builds the final prompt text.
//
// For chat actions the override (the user's question, already suffixed by
// the caller) is returned trimmed; the composer never sees transcript
// content for chat. For summarize actions with an override (a formatted
// transcript, or URL-fallback content gathered by the caller), the template
// either substitutes the override at every SourceToken occurrence or gets
// the override appended after a blank line. A selected user template
// replaces the built-in body. Without an override the simple or advanced
// video-URL template is used.
func Compose(videoURL string, s settings.Settings, override string, action Action) string {
	if action == ActionChat {
		return strings.TrimSpace(override)
	}

	if override != "" {
		body := advancedTemplate
		if tpl, ok := s.SelectedTemplate(); ok {
			body = tpl.Template
		} else if s.PromptMode == settings.PromptSimple {
			body = "Summarize this video:"
		}
		body += LanguageInstruction(s.Language)

		if strings.Contains(body, SourceToken) {
			return strings.ReplaceAll(body, SourceToken, override)
		}
		return body + "\n\n" + override
	}

	if s.PromptMode == settings.PromptSimple {
		return "Summarize this video: " + videoURL + LanguageInstruction(s.Language)
	}
	return Advanced(videoURL, s.Language)
}
