package transcript

import (
	"fmt"
	"strings"
)

// FormatForPrompt renders d as the plain-text block embedded in composed
// prompts: title, numbered chapters when present, then one "[timestamp]
// text" line per segment.
func FormatForPrompt(d *Data) string {
	var b strings.Builder

	if t := strings.TrimSpace(d.Title); t != "" {
		fmt.Fprintf(&b, "Title: %s\n\n", t)
	}

	if len(d.Chapters) > 0 {
		b.WriteString("Chapters:\n")
		for i, ch := range d.Chapters {
			fmt.Fprintf(&b, "%d. %s\n", i+1, strings.TrimSpace(ch))
		}
		b.WriteString("\n")
	}

	b.WriteString("Transcript:\n")
	for _, seg := range d.Segments {
		fmt.Fprintf(&b, "[%s] %s\n", seg.Timestamp, seg.Text)
	}

	return strings.TrimSpace(b.String())
}
