package credential

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

const cookieMaxAge = 7 * 24 * time.Hour

type contextKey int

const tokenKey contextKey = iota

// FromContext returns the token resolved for the request, or the anonymous
// sentinel when the middleware did not run.
func FromContext(ctx context.Context) Token {
	if t, ok := ctx.Value(tokenKey).(Token); ok {
		return t
	}
	return Token{Value: Anonymous, Source: SourceAnonymous}
}

// WithToken returns a copy of ctx carrying t.
func WithToken(ctx context.Context, t Token) context.Context {
	return context.WithValue(ctx, tokenKey, t)
}

// MiddlewareOptions configures Middleware.
type MiddlewareOptions struct {
	// Override returns the manual override for the request's session.
	Override func(r *http.Request) string
	// EnvToken is the process-level fallback token.
	EnvToken string
	// IsDev disables the Secure cookie flag for plain-HTTP development.
	IsDev bool
}

// Middleware resolves the request token and stores it in the context.
// A token supplied through the URL is saved to the cookie so subsequent
// requests resolve it without the parameter.
func Middleware(opts MiddlewareOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			manual := ""
			if opts.Override != nil {
				manual = opts.Override(r)
			}

			tok := Resolve(FromRequest(r, manual, opts.EnvToken))
			if tok.Source == SourceURLParam {
				http.SetCookie(w, &http.Cookie{
					Name:     ParamName,
					Value:    tok.Value,
					Path:     "/",
					MaxAge:   int(cookieMaxAge.Seconds()),
					Expires:  time.Now().Add(cookieMaxAge),
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
					Secure:   !opts.IsDev,
				})
			}
			slog.Debug("Resolved request token", "token", tok, "path", r.URL.Path)

			next.ServeHTTP(w, r.WithContext(WithToken(r.Context(), tok)))
		})
	}
}
