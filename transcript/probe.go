package transcript

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// VideoInfo is the lightweight metadata a plain HTTP fetch of the watch
// page yields, without driving a browser.
type VideoInfo struct {
	Title       string `json:"title"`
	Author      string `json:"author,omitempty"`
	HasCaptions bool   `json:"has_captions"`
}

// Probe checks a watch page over HTTP before any page is opened. A probe
// that reports no captions lets callers skip the transcript panel dance
// entirely.
type Probe struct {
	client *http.Client
}

// NewProbe builds a Probe. client may be nil for a default with a 10s
// timeout.
func NewProbe(client *http.Client) *Probe {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Probe{client: client}
}

// Inspect fetches pageURL and parses its static markup.
func (p *Probe) Inspect(ctx context.Context, pageURL string) (*VideoInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("transcript: build probe request: %w", err)
	}
	req.Header.Set("Accept-Language", "en")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transcript: probe %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("transcript: probe %s: status %d", pageURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("transcript: read probe body: %w", err)
	}
	return parseWatchPage(string(body))
}

// parseWatchPage extracts metadata from raw watch-page HTML. Caption
// availability is detected from the player config blob, which lists
// captionTracks only when the video has any.
func parseWatchPage(body string) (*VideoInfo, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("transcript: parse watch page: %w", err)
	}

	info := &VideoInfo{
		HasCaptions: strings.Contains(body, `"captionTracks"`),
	}

	if v, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
		info.Title = strings.TrimSpace(v)
	}
	if info.Title == "" {
		info.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	if v, ok := doc.Find(`link[itemprop="name"]`).Attr("content"); ok {
		info.Author = strings.TrimSpace(v)
	}
	return info, nil
}
