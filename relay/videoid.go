package relay

import (
	"net/url"
	"strings"
)

// VideoID extracts the video identifier from a watch-page URL. It accepts
// the long form (watch?v=), the short-link host, and shorts/embed paths,
// on both desktop and mobile hosts.
func VideoID(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	switch host {
	case "youtu.be":
		id := strings.Trim(u.Path, "/")
		if i := strings.Index(id, "/"); i >= 0 {
			id = id[:i]
		}
		return id, id != ""
	case "youtube.com", "m.youtube.com", "music.youtube.com":
	default:
		return "", false
	}

	if u.Path == "/watch" {
		id := u.Query().Get("v")
		return id, id != ""
	}
	for _, prefix := range []string{"/shorts/", "/embed/", "/live/"} {
		if rest, ok := strings.CutPrefix(u.Path, prefix); ok {
			if i := strings.Index(rest, "/"); i >= 0 {
				rest = rest[:i]
			}
			return rest, rest != ""
		}
	}
	return "", false
}

// WatchURL builds the canonical watch-page URL for a video id.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + url.QueryEscape(videoID)
}

// IsWatchPage reports whether rawURL points at a video page.
func IsWatchPage(rawURL string) bool {
	_, ok := VideoID(rawURL)
	return ok
}
