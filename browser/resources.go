package browser

import (
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// Destination pages only need their scripts and data to mount the
// composer; heavyweight assets can be dropped to speed delivery up.
// Only asset kinds are blockable so documents, scripts, and fetches
// always pass regardless of configuration.
var blockable = map[string]proto.NetworkResourceType{
	"images":      proto.NetworkResourceTypeImage,
	"fonts":       proto.NetworkResourceTypeFont,
	"media":       proto.NetworkResourceTypeMedia,
	"stylesheets": proto.NetworkResourceTypeStylesheet,
}

// blockedTypes resolves configured names to protocol resource types.
// Unknown names are ignored.
func blockedTypes(names []string) map[proto.NetworkResourceType]bool {
	set := make(map[proto.NetworkResourceType]bool, len(names))
	for _, name := range names {
		if t, ok := blockable[strings.ToLower(name)]; ok {
			set[t] = true
		}
	}
	return set
}

// applyResourceBlocking intercepts page requests and fails those whose
// resource type is in the configured block list.
func applyResourceBlocking(page *rod.Page, names []string) error {
	block := blockedTypes(names)
	if len(block) == 0 {
		return nil
	}

	router := page.HijackRequests()
	router.MustAdd("*", func(h *rod.Hijack) {
		if block[h.Request.Type()] {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})
	go router.Run()

	return nil
}
