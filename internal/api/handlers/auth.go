package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sersweai/leadcrm/internal/api/ctxkeys"
	pkgauth "github.com/sersweai/leadcrm/pkg/auth"
)

// AuthHandler exchanges the operator password for a session token.
type AuthHandler struct {
	verifier *pkgauth.Verifier
}

func NewAuthHandler(verifier *pkgauth.Verifier) *AuthHandler {
	return &AuthHandler{verifier: verifier}
}

// LoginRequest is the request body for POST /api/login.
type LoginRequest struct {
	Password string `json:"password"`
}

// LoginResponse carries a session token when SESSION_SECRET is configured; otherwise the
// dashboard keeps sending the password itself as the bearer token.
type LoginResponse struct {
	OK    bool   `json:"ok"`
	Token string `json:"token,omitempty"`
}

// Login handles POST /api/login.
//
// Response codes:
//   - 200 OK: auth disabled, or password accepted
//   - 401 Unauthorized: wrong password
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if !h.verifier.Enabled() {
		writeJSON(w, http.StatusOK, LoginResponse{OK: true})
		return
	}

	var req LoginRequest
	if body, err := readBody(w, r); err == nil {
		_ = json.Unmarshal(body, &req)
	}
	if !h.verifier.CheckPassword(req.Password) {
		writeError(w, http.StatusUnauthorized, "Invalid password")
		return
	}

	token, err := h.verifier.IssueSession()
	if errors.Is(err, pkgauth.ErrSessionsDisabled) {
		writeJSON(w, http.StatusOK, LoginResponse{OK: true})
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to issue session")
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{OK: true, Token: token})
}

// Session handles GET /api/session. It sits behind the auth middleware and reports how the
// caller authenticated, so the dashboard can check a stored token.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	method, _ := ctxkeys.String(r.Context(), ctxkeys.AuthMethod)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "auth": method})
}
