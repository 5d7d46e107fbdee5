package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"
)

const (
	csrfTokenLength = 32
	CSRFCookie      = "csrf_token"
	CSRFHeader      = "X-CSRF-Token"
	csrfTokenExpiry = 24 * time.Hour
)

// CSRF guards cookie-authenticated browser sessions with a double-submit
// token: safe requests receive a readable csrf_token cookie and unsafe ones
// must echo it in X-CSRF-Token. Requests carrying an explicit token header,
// or no session cookie at all, are not exposed to CSRF and pass through.
func CSRF(secureCookie bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cookieSession(r) {
				next.ServeHTTP(w, r)
				return
			}

			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
				ensureCSRFCookie(w, r, secureCookie)
				next.ServeHTTP(w, r)
				return
			}

			cookie, err := r.Cookie(CSRFCookie)
			if err != nil || cookie.Value == "" {
				csrfRejected(w, "CSRF token missing")
				return
			}
			provided := r.Header.Get(CSRFHeader)
			if provided == "" {
				csrfRejected(w, "CSRF token missing")
				return
			}
			if subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(provided)) != 1 {
				csrfRejected(w, "Invalid CSRF token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// cookieSession reports whether the session comes only from the cookie.
func cookieSession(r *http.Request) bool {
	if r.Header.Get("Authorization") != "" || r.Header.Get("X-Auth-Token") != "" {
		return false
	}
	cookie, err := r.Cookie(SessionCookie)
	return err == nil && cookie.Value != ""
}

func ensureCSRFCookie(w http.ResponseWriter, r *http.Request, secure bool) {
	if c, err := r.Cookie(CSRFCookie); err == nil && c.Value != "" {
		return
	}

	b := make([]byte, csrfTokenLength)
	if _, err := rand.Read(b); err != nil {
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookie,
		Value:    base64.RawURLEncoding.EncodeToString(b),
		Path:     "/",
		HttpOnly: false, // read by the frontend and echoed back
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(csrfTokenExpiry.Seconds()),
	})
}

func csrfRejected(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
