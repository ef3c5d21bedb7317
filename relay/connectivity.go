package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Lanshuns/ebutia/connectivity"
)

// Service names on the connectivity router. Every external surface (HTTP,
// MCP, CLI) dispatches through these, so a single route row can move any
// of them off-box or disable them.
const (
	ServiceSummarize     = "summarize"
	ServiceAsk           = "ask"
	ServiceTranscriptGet = "transcript.get"
	ServiceVideoInfo     = "video.info"
	ServiceSettingsGet   = "settings.get"
	ServiceSettingsSave  = "settings.save"
)

type summarizePayload struct {
	URL string `json:"url"`
}

type askPayload struct {
	Prompt string `json:"prompt"`
	URL    string `json:"url,omitempty"`
	Hover  bool   `json:"hover,omitempty"`
}

type urlPayload struct {
	URL string `json:"url"`
}

// RegisterConnectivity registers the relay's pipeline operations as local
// services.
func (r *Relay) RegisterConnectivity(router *connectivity.Router) {
	router.RegisterLocal(ServiceSummarize, func(ctx context.Context, payload []byte) ([]byte, error) {
		var req summarizePayload
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, fmt.Errorf("relay: decode summarize payload: %w", err)
		}
		res, err := r.Summarize(ctx, req.URL)
		if err != nil {
			return nil, err
		}
		return json.Marshal(res)
	})

	router.RegisterLocal(ServiceAsk, func(ctx context.Context, payload []byte) ([]byte, error) {
		var req askPayload
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, fmt.Errorf("relay: decode ask payload: %w", err)
		}
		res, err := r.Ask(ctx, req.Prompt, req.URL, req.Hover)
		if err != nil {
			return nil, err
		}
		return json.Marshal(res)
	})

	router.RegisterLocal(ServiceTranscriptGet, func(ctx context.Context, payload []byte) ([]byte, error) {
		var req urlPayload
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, fmt.Errorf("relay: decode transcript payload: %w", err)
		}
		data, err := r.Transcript(ctx, req.URL)
		if err != nil {
			return nil, err
		}
		return json.Marshal(data)
	})

	router.RegisterLocal(ServiceVideoInfo, func(ctx context.Context, payload []byte) ([]byte, error) {
		var req urlPayload
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, fmt.Errorf("relay: decode video info payload: %w", err)
		}
		info, err := r.inspect(ctx, req.URL)
		if err != nil {
			return nil, err
		}
		return json.Marshal(info)
	})

	router.RegisterLocal(ServiceSettingsGet, func(ctx context.Context, payload []byte) ([]byte, error) {
		return json.Marshal(r.settingsOrDefault(ctx))
	})

	router.RegisterLocal(ServiceSettingsSave, func(ctx context.Context, payload []byte) ([]byte, error) {
		if r.cfg.Settings == nil {
			return nil, errors.New("relay: no settings store configured")
		}
		updated := r.settingsOrDefault(ctx)
		if err := json.Unmarshal(payload, &updated); err != nil {
			return nil, fmt.Errorf("relay: decode settings payload: %w", err)
		}
		if err := r.cfg.Settings.Set(ctx, updated); err != nil {
			return nil, err
		}
		return json.Marshal(updated)
	})
}
