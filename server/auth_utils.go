package server

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
)

const sessionIDBytes = 32

func generateRandomString(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

// sessionID reads the browser session identifier from the cookie, minting
// and setting a new one when absent. The identifier is opaque; all session
// state lives server-side keyed by it.
func (s *Server) sessionID(w http.ResponseWriter, r *http.Request) (string, error) {
	cookieName := s.config.GetSessionCookieName()
	if cookie, err := r.Cookie(cookieName); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}

	id, err := generateRandomString(sessionIDBytes)
	if err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
	})
	return id, nil
}

// currentSessionID reads the session identifier without minting one.
func (s *Server) currentSessionID(r *http.Request) string {
	cookie, err := r.Cookie(s.config.GetSessionCookieName())
	if err != nil {
		return ""
	}
	return cookie.Value
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
