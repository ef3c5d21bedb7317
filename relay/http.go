package relay

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Lanshuns/ebutia/connectivity"
	"github.com/Lanshuns/ebutia/idgen"
	"github.com/Lanshuns/ebutia/kit"
)

const maxRequestBody = 1 << 20

var requestIDs = idgen.Prefixed("req_", idgen.NanoID(12))

// HTTPHandler builds the relay's HTTP surface. Every operation dispatches
// through the connectivity router, so the routes table governs HTTP
// exactly as it governs MCP.
func HTTPHandler(router *connectivity.Router, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestID)
	r.Use(requestLog(logger))

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Post("/v1/summarize", serviceHandler(router, ServiceSummarize))
	r.Post("/v1/ask", serviceHandler(router, ServiceAsk))
	r.Post("/v1/transcript", serviceHandler(router, ServiceTranscriptGet))
	r.Post("/v1/video-info", serviceHandler(router, ServiceVideoInfo))
	r.Get("/v1/settings", serviceHandler(router, ServiceSettingsGet))
	r.Put("/v1/settings", serviceHandler(router, ServiceSettingsSave))

	return r
}

func serviceHandler(router *connectivity.Router, service string) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		payload, err := io.ReadAll(io.LimitReader(req.Body, maxRequestBody))
		if err != nil {
			writeError(w, http.StatusBadRequest, KindUnknown, "unreadable request body")
			return
		}

		resp, err := router.Call(req.Context(), service, payload)
		if err != nil {
			kind := Classify(err)
			writeError(w, statusFor(err, kind), kind, UserMessage(kind))
			return
		}
		if resp == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(resp)
	}
}

func statusFor(err error, kind Kind) int {
	if errors.Is(err, ErrCancelled) {
		return http.StatusConflict
	}
	var notRoutable *connectivity.ErrServiceNotFound
	if errors.As(err, &notRoutable) {
		return http.StatusNotImplemented
	}
	switch kind {
	case KindConfig:
		return http.StatusBadRequest
	case KindTranscriptNotFound, KindTranscriptDisabled, KindParsing:
		return http.StatusUnprocessableEntity
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, kind Kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"kind":    string(kind),
		"message": message,
	})
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		id := requestIDs()
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, req.WithContext(kit.WithRequestID(req.Context(), id)))
	})
}

func requestLog(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
			next.ServeHTTP(ww, req)
			logger.Info("http request",
				"method", req.Method,
				"path", req.URL.Path,
				"status", ww.Status(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", kit.GetRequestID(req.Context()))
		})
	}
}
