// Package settings holds the persisted user preference record.
//
// The record is read and written wholesale through a SQLite-backed Store.
// The rest of the relay treats Settings as a value: it never mutates a
// shared instance, it produces an updated copy and asks the Store to
// persist it. Concurrent writers follow last-write-wins.
package settings

// DeliveryMode selects how the destination chatbot page is opened.
type DeliveryMode string

const (
	DeliveryTab   DeliveryMode = "tab"
	DeliveryPopup DeliveryMode = "popup"
)

// PromptMode selects between the short and the structured summary template.
type PromptMode string

const (
	PromptSimple   PromptMode = "simple"
	PromptAdvanced PromptMode = "advanced"
)

// SummarySource selects what the summary prompt is built from.
type SummarySource string

const (
	SourceTranscript SummarySource = "transcript"
	SourceURL        SummarySource = "url"
)

// WindowPosition is the persisted popup window geometry snapshot.
type WindowPosition struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// UserTemplate is a user-defined summary template. A {SOURCE} token in
// the body marks where gathered source text is spliced.
type UserTemplate struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Template string `json:"template"`
}

// Settings is the whole user preference record.
type Settings struct {
	// Chatbot is the main destination chatbot key.
	Chatbot string `json:"chatbot"`

	// URLChatbot, when set, is used instead of Chatbot for URL-based
	// summaries and for chat actions started away from a watch page.
	URLChatbot string `json:"url_chatbot,omitempty"`

	OpenIn        DeliveryMode  `json:"open_in"`
	PromptMode    PromptMode    `json:"prompt_mode"`
	Language      string        `json:"language"`
	SummarySource SummarySource `json:"summary_source"`

	// UseURLWhenNoTranscript skips the fallback prompt and silently
	// degrades to URL-based summaries when a video has no transcript.
	UseURLWhenNoTranscript bool `json:"use_url_when_no_transcript"`

	// GuestMode routes to a chatbot's anonymous-session path when the
	// descriptor declares one.
	GuestMode bool `json:"guest_mode"`

	UsePrivateWindow bool `json:"use_private_window"`
	AlwaysOnTop      bool `json:"always_on_top"`

	// UserTemplates are saved summary templates; SelectedTemplateID
	// picks the one in effect, empty meaning the built-in template.
	UserTemplates      []UserTemplate `json:"user_templates,omitempty"`
	SelectedTemplateID string         `json:"selected_template_id,omitempty"`

	WindowPosition *WindowPosition `json:"window_position,omitempty"`
}

// SelectedTemplate returns the user template picked by
// SelectedTemplateID, if any.
func (s Settings) SelectedTemplate() (UserTemplate, bool) {
	if s.SelectedTemplateID == "" {
		return UserTemplate{}, false
	}
	for _, t := range s.UserTemplates {
		if t.ID == s.SelectedTemplateID {
			return t, true
		}
	}
	return UserTemplate{}, false
}

// Default returns the settings used when nothing has been persisted yet,
// or when the store cannot be read.
func Default() Settings {
	return Settings{
		Chatbot:       "perplexity",
		URLChatbot:    "copilot",
		OpenIn:        DeliveryPopup,
		PromptMode:    PromptSimple,
		Language:      "",
		SummarySource: SourceTranscript,
		GuestMode:     true,
	}
}
