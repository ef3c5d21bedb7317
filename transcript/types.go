// Package transcript extracts a video's transcript by driving the watch
// page's own transcript panel, with a short-term cache keyed by video id.
package transcript

import "fmt"

// Segment is one timestamped transcript line.
type Segment struct {
	Timestamp string `json:"timestamp"`
	Text      string `json:"text"`
}

// Data is the extraction result for one video. Immutable once created.
type Data struct {
	Title    string    `json:"title"`
	Segments []Segment `json:"segments"`
	Chapters []string  `json:"chapters,omitempty"`

	// Description is the video description converted to Markdown,
	// captured opportunistically while the panel is open.
	Description string `json:"description,omitempty"`
}

// NotFoundError reports that no transcript control ever appeared on the
// watch page (the video has no transcript, or the page markup changed).
type NotFoundError struct {
	VideoID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("transcript: no transcript control for video %s", e.VideoID)
}

// ParseError reports that the panel opened but yielded zero usable
// segments.
type ParseError struct {
	VideoID string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("transcript: no segments scraped for video %s", e.VideoID)
}

// TimeoutError reports that an expected element never rendered within the
// wait window.
type TimeoutError struct {
	VideoID string
	Stage   string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("transcript: timed out waiting for %s (video %s)", e.Stage, e.VideoID)
}
