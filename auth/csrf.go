package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
)

const (
	csrfCookieName = "csrf_token"
	// CSRFField is the form field carrying the token.
	CSRFField = "csrf_token"
	// CSRFHeader lets scripted clients send the token without a form body.
	CSRFHeader = "X-CSRF-Token"
	csrfCtxKey = ctxKey("csrf")
)

func newCSRFToken() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}

func validTokenShape(t string) bool {
	if len(t) != 32 {
		return false
	}
	_, err := hex.DecodeString(t)
	return err == nil
}

// CSRFTokenFromContext returns the token issued for this request, for templates.
func CSRFTokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(csrfCtxKey).(string)
	return t
}

// WithCSRFToken stores token in ctx.
func WithCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, csrfCtxKey, token)
}

// CSRF issues a per-browser token cookie and rejects state-changing requests
// whose submitted token does not match it.
func CSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := ""
		if c, err := r.Cookie(csrfCookieName); err == nil && validTokenShape(c.Value) {
			token = c.Value
		} else {
			token = newCSRFToken()
			http.SetCookie(w, &http.Cookie{
				Name:     csrfCookieName,
				Value:    token,
				Path:     "/",
				HttpOnly: true,
				Secure:   secure,
				SameSite: http.SameSiteLaxMode,
			})
		}
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
		default:
			submitted := r.Header.Get(CSRFHeader)
			if submitted == "" {
				submitted = r.PostFormValue(CSRFField)
			}
			if subtle.ConstantTimeCompare([]byte(submitted), []byte(token)) != 1 {
				http.Error(w, "Invalid CSRF token", http.StatusBadRequest)
				return
			}
		}
		next.ServeHTTP(w, r.WithContext(WithCSRFToken(r.Context(), token)))
	})
}
