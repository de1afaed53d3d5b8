package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/agustogpt/research-gateway/internal/credential"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

const redacted = "REDACTED"

// RequestLogger returns chi's request logger writing one slog record per
// request. Token query parameters are redacted before logging.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return chiMiddleware.RequestLogger(&slogFormatter{logger: logger})
}

type slogFormatter struct {
	logger *slog.Logger
}

func (f *slogFormatter) NewLogEntry(r *http.Request) chiMiddleware.LogEntry {
	attrs := []any{
		"request_id", chiMiddleware.GetReqID(r.Context()),
		"method", r.Method,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr,
	}
	if q := RedactQuery(r.URL.Query()); q != "" {
		attrs = append(attrs, "query", q)
	}
	return &slogEntry{logger: f.logger.With(attrs...)}
}

type slogEntry struct {
	logger *slog.Logger
}

func (e *slogEntry) Write(status, bytes int, _ http.Header, elapsed time.Duration, _ interface{}) {
	level := slog.LevelInfo
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	e.logger.Log(context.Background(), level, "HTTP request",
		"status", status,
		"bytes", bytes,
		"duration_ms", elapsed.Milliseconds(),
	)
}

func (e *slogEntry) Panic(v interface{}, stack []byte) {
	e.logger.Error("HTTP handler panic", "panic", fmt.Sprint(v), "stack", string(stack))
}

// RedactQuery encodes q with credential parameters replaced.
func RedactQuery(q url.Values) string {
	if len(q) == 0 {
		return ""
	}
	out := make(url.Values, len(q))
	for k, vs := range q {
		if k == credential.ParamName {
			out[k] = []string{redacted}
			continue
		}
		out[k] = vs
	}
	return out.Encode()
}
