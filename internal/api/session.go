package api

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"

	"github.com/agustogpt/research-gateway/internal/credential"
	"github.com/agustogpt/research-gateway/internal/session"
)

type sessionResponse struct {
	session.Snapshot
	Authenticated bool `json:"authenticated"`
}

// GetSession returns the caller's session: token source, profile, search
// selections and the current transcript.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, _, ok := h.sessionProfile(w, r)
	if !ok {
		return
	}
	JSON(w, http.StatusOK, sessionResponse{
		Snapshot:      sess.Snapshot(),
		Authenticated: !credential.FromContext(r.Context()).IsAnonymous(),
	})
}

type setTokenRequest struct {
	Token string `json:"token"`
}

// SetToken stores a manually entered token on the session and re-resolves
// the profile with it.
func (h *Handler) SetToken(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if sess == nil {
		Error(w, http.StatusUnauthorized, "no session")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxRequestBodySize)
	var req setTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	manual := strings.TrimSpace(req.Token)
	if manual == "" {
		Error(w, http.StatusBadRequest, "token is required")
		return
	}
	sess.SetManualToken(manual)
	h.rebind(w, r, sess, manual)
}

// ClearToken removes the manual override and the persisted token cookie.
func (h *Handler) ClearToken(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if sess == nil {
		Error(w, http.StatusUnauthorized, "no session")
		return
	}
	sess.SetManualToken("")
	http.SetCookie(w, &http.Cookie{
		Name:     credential.ParamName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !h.cfg.IsDevelopment(),
	})

	// The cookie is gone for this request too.
	r.Header.Del("Cookie")
	h.rebind(w, r, sess, "")
}

func (h *Handler) rebind(w http.ResponseWriter, r *http.Request, sess *session.Session, manual string) {
	tok := credential.Resolve(credential.FromRequest(r, manual, h.cfg.FallbackToken))
	ctx := credential.WithToken(r.Context(), tok)
	profile := h.profiles.ForSession(ctx, sess, tok)
	JSON(w, http.StatusOK, map[string]interface{}{
		"token_source":  tok.Source,
		"authenticated": !tok.IsAnonymous(),
		"profile":       profile,
	})
}

// ResetChat starts a new chat in the session.
func (h *Handler) ResetChat(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if sess == nil {
		Error(w, http.StatusUnauthorized, "no session")
		return
	}
	sess.Reset()
	JSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// DebugSession shows how the token was resolved. It is only served when
// cookie debugging is enabled and never returns the token value.
func (h *Handler) DebugSession(w http.ResponseWriter, r *http.Request) {
	if !h.cfg.DebugCookies {
		Error(w, http.StatusNotFound, "not found")
		return
	}
	sess := session.FromContext(r.Context())
	if sess == nil {
		Error(w, http.StatusUnauthorized, "no session")
		return
	}

	tok := credential.FromContext(r.Context())
	cookies := make([]string, 0, len(r.Cookies()))
	for _, c := range r.Cookies() {
		cookies = append(cookies, c.Name)
	}
	sort.Strings(cookies)

	resp := map[string]interface{}{
		"session_id":      sess.ID,
		"token_source":    tok.Source,
		"cookie_names":    cookies,
		"manual_override": sess.ManualToken() != "",
		"url_param":       r.URL.Query().Has(credential.ParamName),
	}
	if !tok.IsAnonymous() {
		resp["fingerprint"] = tok.Fingerprint()
		claims, err := credential.Inspect(tok.Value, h.now())
		if err != nil {
			resp["claims_error"] = err.Error()
		} else {
			resp["claims"] = claims
		}
	}
	JSON(w, http.StatusOK, resp)
}
