package transcript

import (
	"context"
	"log/slog"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/microcosm-cc/bluemonday"

	"github.com/Lanshuns/ebutia/registry"
)

const (
	// panelTimeout bounds the wait for the transcript panel to render
	// after its control is clicked.
	panelTimeout = 5 * time.Second

	// settleDelay gives the page time to populate segments after the
	// panel element exists. Segment insertion has no observable signal.
	settleDelay = 1 * time.Second

	// expandDelay follows a click on the description expander, which
	// reveals the transcript control on collapsed layouts.
	expandDelay = 300 * time.Millisecond
)

// Extractor scrapes transcripts out of an already-open watch page.
type Extractor struct {
	sel    registry.WatchSelectors
	cache  *Cache
	policy *bluemonday.Policy
	logger *slog.Logger
}

// NewExtractor builds an Extractor using the watch-page selectors from the
// chatbot registry. cache may be nil to disable caching.
func NewExtractor(sel registry.WatchSelectors, cache *Cache, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		sel:    sel,
		cache:  cache,
		policy: bluemonday.UGCPolicy(),
		logger: logger,
	}
}

// Extract returns the transcript for the video shown on page. It serves
// from cache when possible, otherwise opens the page's transcript panel,
// scrapes it, and closes it again. The panel close and the cache write are
// best effort.
func (e *Extractor) Extract(ctx context.Context, page *rod.Page, videoID string) (*Data, error) {
	if e.cache != nil {
		cached, err := e.cache.Get(ctx, videoID)
		if err != nil {
			e.logger.Warn("transcript cache read failed", "video_id", videoID, "error", err)
		} else if cached != nil {
			e.logger.Debug("transcript cache hit", "video_id", videoID, "segments", len(cached.Segments))
			return cached, nil
		}
	}

	page = page.Context(ctx)

	if err := e.openPanel(page, videoID); err != nil {
		return nil, err
	}
	time.Sleep(settleDelay)

	d, err := e.scrape(page, videoID)

	e.closePanel(page)

	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		if cerr := e.cache.Put(ctx, videoID, d); cerr != nil {
			e.logger.Warn("transcript cache write failed", "video_id", videoID, "error", cerr)
		}
	}
	return d, nil
}

// openPanel clicks the transcript control, expanding the description first
// when the control is hidden behind the collapsed layout.
func (e *Extractor) openPanel(page *rod.Page, videoID string) error {
	btn := e.findOpenControl(page)
	if btn == nil {
		if e.clickFirst(page, []string{e.sel.ExpandDescription}) {
			time.Sleep(expandDelay)
			btn = e.findOpenControl(page)
		}
	}
	if btn == nil {
		return &NotFoundError{VideoID: videoID}
	}
	if err := btn.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return &NotFoundError{VideoID: videoID}
	}

	if _, err := page.Timeout(panelTimeout).Element(e.sel.TranscriptPanel); err != nil {
		return &TimeoutError{VideoID: videoID, Stage: "transcript panel"}
	}
	return nil
}

func (e *Extractor) findOpenControl(page *rod.Page) *rod.Element {
	for _, sel := range e.sel.TranscriptOpen {
		if has, el, err := page.Has(sel); err == nil && has {
			return el
		}
	}
	return nil
}

// clickFirst clicks the first matching selector and reports whether any
// matched.
func (e *Extractor) clickFirst(page *rod.Page, selectors []string) bool {
	for _, sel := range selectors {
		has, el, err := page.Has(sel)
		if err != nil || !has {
			continue
		}
		if err := el.Click(proto.InputMouseButtonLeft, 1); err == nil {
			return true
		}
	}
	return false
}

func (e *Extractor) scrape(page *rod.Page, videoID string) (*Data, error) {
	d := &Data{Title: e.textOf(page, e.sel.Title)}

	if els, err := page.Elements(e.sel.Chapters); err == nil {
		for _, el := range els {
			if t := e.cleanEl(el); t != "" {
				d.Chapters = append(d.Chapters, t)
			}
		}
	}

	segs, err := page.Elements(e.sel.Segments)
	if err != nil || len(segs) == 0 {
		return nil, &ParseError{VideoID: videoID}
	}
	for _, seg := range segs {
		hasTS, tsEl, err := seg.Has(e.sel.SegmentTimestamp)
		if err != nil || !hasTS {
			continue
		}
		hasText, textEl, err := seg.Has(e.sel.SegmentText)
		if err != nil || !hasText {
			continue
		}
		ts := e.cleanEl(tsEl)
		text := e.cleanEl(textEl)
		if ts == "" || text == "" {
			continue
		}
		d.Segments = append(d.Segments, Segment{Timestamp: ts, Text: text})
	}
	if len(d.Segments) == 0 {
		return nil, &ParseError{VideoID: videoID}
	}

	d.Description = e.description(page)
	return d, nil
}

// description grabs the video description as Markdown. Failures here never
// fail the extraction.
func (e *Extractor) description(page *rod.Page) string {
	has, el, err := page.Has(e.sel.Description)
	if err != nil || !has {
		return ""
	}
	raw, err := el.HTML()
	if err != nil {
		return ""
	}
	md, err := htmltomarkdown.ConvertString(e.policy.Sanitize(raw))
	if err != nil {
		e.logger.Debug("description conversion failed", "error", err)
		return ""
	}
	return strings.TrimSpace(md)
}

func (e *Extractor) closePanel(page *rod.Page) {
	has, el, err := page.Has(e.sel.TranscriptClose)
	if err != nil || !has {
		return
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		e.logger.Debug("transcript panel close failed", "error", err)
	}
}

func (e *Extractor) textOf(page *rod.Page, sel string) string {
	has, el, err := page.Has(sel)
	if err != nil || !has {
		return ""
	}
	return e.cleanEl(el)
}

func (e *Extractor) cleanEl(el *rod.Element) string {
	t, err := el.Text()
	if err != nil {
		return ""
	}
	return strings.Join(strings.Fields(t), " ")
}
