package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/euem/sshbridge/internal/auth"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"error": detail})
}

func (s *Server) setAuthCookie(w http.ResponseWriter, r *http.Request, tok string) {
	http.SetCookie(w, &http.Cookie{
		Name:     AuthCookie,
		Value:    tok,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(s.opts.Tokens.Expiry().Seconds()),
	})
}

func clearAuthCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     AuthCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Identifier string `json:"identifier"`
		Secret     string `json:"secret"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if body.Identifier == "" || body.Secret == "" {
		writeError(w, http.StatusBadRequest, "Identifier and secret required")
		return
	}

	principal, err := s.opts.Verifier.Verify(body.Identifier, body.Secret)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "Invalid credentials")
		} else {
			writeError(w, http.StatusInternalServerError, "Authentication failed")
		}
		return
	}

	tok, err := s.opts.Tokens.Issue(principal)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Authentication failed")
		return
	}

	s.setAuthCookie(w, r, tok)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"user": map[string]interface{}{
			"identifier":  principal.Identifier,
			"role":        principal.Role,
			"permissions": principal.Permissions,
		},
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	clearAuthCookie(w)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Logged out successfully",
	})
}

func (s *Server) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(AuthCookie)
	if err != nil || cookie.Value == "" {
		writeJSON(w, http.StatusOK, map[string]bool{"authenticated": false})
		return
	}

	principal, err := s.opts.Tokens.Validate(cookie.Value)
	if err != nil {
		clearAuthCookie(w)
		writeJSON(w, http.StatusOK, map[string]bool{"authenticated": false})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"authenticated": true,
		"user": map[string]interface{}{
			"identifier":  principal.Identifier,
			"role":        principal.Role,
			"permissions": principal.Permissions,
		},
	})
}
