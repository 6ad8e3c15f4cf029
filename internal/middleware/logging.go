package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"go-account-service/internal/model"
)

const (
	requestIDHeader = "X-Request-ID"
	maxRequestIDLen = 64
	// An error envelope is small; anything past this is not parsed.
	maxCapturedBody = 4 << 10
)

// Logging writes one line per request. Paths are logged as route patterns
// and error envelopes are decoded so the log carries the error code.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := acceptRequestID(r.Header.Get(requestIDHeader))
		w.Header().Set(requestIDHeader, requestID)

		started := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		attrs := []slog.Attr{
			slog.String("request_id", requestID),
			slog.String("method", r.Method),
			slog.String("route", logPath(r)),
			slog.Int("status", recorder.status),
			slog.Int64("duration_ms", time.Since(started).Milliseconds()),
			slog.Int("bytes", recorder.written),
			slog.String("remote_ip", remoteIP(r)),
		}
		attrs = append(attrs, envelopeAttrs(recorder)...)

		level := slog.LevelInfo
		switch {
		case recorder.status >= 500:
			level = slog.LevelError
		case recorder.status >= 400:
			level = slog.LevelWarn
		}
		slog.LogAttrs(context.WithoutCancel(r.Context()), level, "request", attrs...)
	})
}

// acceptRequestID keeps a caller supplied id only when it is short and
// printable, so it cannot forge extra log fields.
func acceptRequestID(id string) string {
	if id == "" || len(id) > maxRequestIDLen {
		return uuid.NewString()
	}
	for _, c := range id {
		if c < '!' || c > '~' {
			return uuid.NewString()
		}
	}
	return id
}

func envelopeAttrs(rec *statusRecorder) []slog.Attr {
	if rec.status < 400 || len(rec.body) == 0 {
		return nil
	}

	var envelope model.APIResponse
	if err := json.Unmarshal(rec.body, &envelope); err != nil || envelope.Error == nil {
		return nil
	}

	attrs := []slog.Attr{
		slog.String("error_code", envelope.Error.Code),
		slog.String("error_message", envelope.Error.Message),
	}
	if envelope.Error.Details != "" {
		attrs = append(attrs, slog.String("error_details", envelope.Error.Details))
	}
	return attrs
}

// logPath prefers the matched route pattern so tokens carried in the path
// stay out of the logs.
func logPath(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	written     int
	body        []byte
	wroteHeader bool
}

func (rw *statusRecorder) WriteHeader(statusCode int) {
	if rw.wroteHeader {
		return
	}
	rw.status = statusCode
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	if rw.status >= 400 && len(rw.body) < maxCapturedBody {
		room := maxCapturedBody - len(rw.body)
		rw.body = append(rw.body, b[:min(room, len(b))]...)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.written += n
	return n, err
}

func (rw *statusRecorder) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
