package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

type ctxKey string

const (
	sessionCookieName = "session"
	sessionCtxKey     = ctxKey("session")
)

// Session is the identity carried by the signed session cookie.
type Session struct {
	UserID   uint
	TenantID uint
}

var (
	secret     string
	sessionTTL = 14 * 24 * time.Hour
	secure     bool
)

// Configure sets the signing secret, cookie lifetime and Secure flag.
// Empty or zero values keep the defaults.
func Configure(sessionSecret string, ttl time.Duration, secureCookies bool) {
	secret = sessionSecret
	if ttl > 0 {
		sessionTTL = ttl
	}
	secure = secureCookies
}

// Secret returns the configured secret, then SESSION_SECRET, then a dev value.
func Secret() string {
	if secret != "" {
		return secret
	}
	if s := os.Getenv("SESSION_SECRET"); s != "" {
		return s
	}
	return "devsessionsecret"
}

func sign(payload string) string {
	mac := hmac.New(sha256.New, []byte(Secret()))
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// CreateSession sets a signed cookie holding the user and tenant ids.
func CreateSession(w http.ResponseWriter, s Session) {
	payload := fmt.Sprintf("%d:%d", s.UserID, s.TenantID)
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    payload + "." + sign(payload),
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(sessionTTL),
	})
}

// ClearSession deletes the session cookie.
func ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{Name: sessionCookieName, Value: "", Path: "/", Expires: time.Unix(0, 0), HttpOnly: true, Secure: secure, SameSite: http.SameSiteLaxMode})
}

// ParseSession validates the cookie and returns its session.
func ParseSession(r *http.Request) (Session, bool) {
	c, err := r.Cookie(sessionCookieName)
	if err != nil || c.Value == "" {
		return Session{}, false
	}
	payload, sig, ok := strings.Cut(c.Value, ".")
	if !ok || !hmac.Equal([]byte(sig), []byte(sign(payload))) {
		return Session{}, false
	}
	uidStr, tidStr, ok := strings.Cut(payload, ":")
	if !ok {
		return Session{}, false
	}
	uid, err := strconv.ParseUint(uidStr, 10, 64)
	if err != nil || uid == 0 {
		return Session{}, false
	}
	tid, err := strconv.ParseUint(tidStr, 10, 64)
	if err != nil || tid == 0 {
		return Session{}, false
	}
	return Session{UserID: uint(uid), TenantID: uint(tid)}, true
}

// WithSession stores the session in context. A zero session clears it.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionCtxKey, s)
}

// SessionFromContext extracts the session.
func SessionFromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionCtxKey).(Session)
	if !ok || s.UserID == 0 {
		return Session{}, false
	}
	return s, true
}

// UserIDFromContext extracts the session user id.
func UserIDFromContext(ctx context.Context) (uint, bool) {
	s, ok := SessionFromContext(ctx)
	return s.UserID, ok
}

// Middleware attaches the session to the request context if present.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s, ok := ParseSession(r); ok {
			r = r.WithContext(WithSession(r.Context(), s))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAuth redirects to /login if not authenticated (HTML) or returns 401 JSON.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := SessionFromContext(r.Context()); !ok {
			Unauthenticated(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Unauthenticated answers a request that needs a session it does not have.
func Unauthenticated(w http.ResponseWriter, r *http.Request) {
	accept := r.Header.Get("Accept")
	if strings.Contains(accept, "application/json") && !strings.Contains(accept, "text/html") {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":"unauthorized"}`)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
