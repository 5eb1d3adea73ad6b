// Package middleware holds the cross-cutting HTTP wrappers of the server:
// panic recovery, login throttling and language preferences.
package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/diewo77/taskflow/httpx"
	"github.com/diewo77/taskflow/internal/logger"
	"go.uber.org/zap"
)

// Recover turns a panic in next into a 500 and logs it with its stack.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			logger.FromContext(r.Context()).Error("panic recovered",
				zap.Any("panic", rec),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.ByteString("stack", debug.Stack()),
			)
			if httpx.WantsJSON(r) {
				httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
				return
			}
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}()
		next.ServeHTTP(w, r)
	})
}
