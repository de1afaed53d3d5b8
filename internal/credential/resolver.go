// Package credential resolves the caller's authentication token from the
// request context. Resolution is pure selection: tokens are never validated
// locally and their values are never logged.
package credential

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/http"
	"strings"
)

const (
	// ParamName is the URL query parameter and cookie carrying the token.
	ParamName = "jwt_token"
	// Anonymous is the sentinel value returned when no source has a token.
	Anonymous = "anonymous"
)

// Source identifies where a token was found.
type Source string

const (
	SourceURLParam  Source = "url_param"
	SourceManual    Source = "manual"
	SourceCookie    Source = "cookie"
	SourceEnv       Source = "env"
	SourceAnonymous Source = "anonymous"
)

// Candidates are the token sources in descending priority.
type Candidates struct {
	URLParam       string
	ManualOverride string
	Cookie         string
	Env            string
}

// Token is a resolved authentication token.
type Token struct {
	Value  string
	Source Source
}

// Resolve returns the first non-empty candidate in priority order
// url-param > manual-override > cookie > env, or the anonymous sentinel.
func Resolve(c Candidates) Token {
	ordered := []struct {
		value  string
		source Source
	}{
		{c.URLParam, SourceURLParam},
		{c.ManualOverride, SourceManual},
		{c.Cookie, SourceCookie},
		{c.Env, SourceEnv},
	}
	for _, cand := range ordered {
		if v := strings.TrimSpace(cand.value); v != "" {
			return Token{Value: v, Source: cand.source}
		}
	}
	return Token{Value: Anonymous, Source: SourceAnonymous}
}

// IsAnonymous reports whether t is the sentinel.
func (t Token) IsAnonymous() bool {
	return t.Source == SourceAnonymous || t.Value == "" || t.Value == Anonymous
}

// Fingerprint returns a short irreversible identifier for the token.
func (t Token) Fingerprint() string {
	if t.IsAnonymous() {
		return Anonymous
	}
	return Fingerprint(t.Value)
}

// String never includes the token value.
func (t Token) String() string {
	return "token(" + string(t.Source) + ")"
}

// LogValue implements slog.LogValuer so a Token can be passed to a logger
// directly without leaking its value.
func (t Token) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("source", string(t.Source)),
		slog.Bool("anonymous", t.IsAnonymous()),
	)
}

// Fingerprint hashes a raw token value for use as a cache key.
func Fingerprint(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:8])
}

// FromRequest collects the URL parameter and cookie sources from r and
// combines them with the session override and environment fallback.
func FromRequest(r *http.Request, manual, env string) Candidates {
	c := Candidates{
		URLParam:       r.URL.Query().Get(ParamName),
		ManualOverride: manual,
		Env:            env,
	}
	if cookie, err := r.Cookie(ParamName); err == nil {
		c.Cookie = cookie.Value
	}
	return c
}
