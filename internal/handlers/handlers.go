// Package handlers holds the HTTP handlers of each area of the application.
// Handlers parse the request, call one service with the request's actor and
// answer with a page, a JSON document or a redirect.
package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/diewo77/taskflow/auth"
	"github.com/diewo77/taskflow/gate"
	"github.com/diewo77/taskflow/httpx"
	"github.com/diewo77/taskflow/i18n"
	"github.com/diewo77/taskflow/internal/logger"
	"github.com/diewo77/taskflow/internal/models"
	"github.com/diewo77/taskflow/internal/policy"
	"github.com/diewo77/taskflow/internal/services"
	"github.com/diewo77/taskflow/view"
	"go.uber.org/zap"
)

// statusFor maps the service error taxonomy to an HTTP status.
func statusFor(err error) int {
	var (
		ve *services.ValidationError
		ce *services.ConflictError
		ee *services.ExternalError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &ve):
		return http.StatusUnprocessableEntity
	case errors.As(err, &ce):
		return http.StatusConflict
	case errors.As(err, &ee):
		return http.StatusBadGateway
	case errors.Is(err, services.ErrAuthenticationRequired), errors.Is(err, gate.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrForbidden), errors.Is(err, gate.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, services.ErrNotFound), errors.Is(err, gate.ErrNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// messageFor is the text shown to the user for err. Internal errors never
// leak their details.
func messageFor(err error) string {
	var (
		ve *services.ValidationError
		ce *services.ConflictError
		ee *services.ExternalError
		fe *services.ForbiddenError
	)
	switch {
	case errors.As(err, &ve):
		return ve.Message
	case errors.As(err, &ce):
		return ce.Message
	case errors.As(err, &ee):
		return ee.Message
	case errors.As(err, &fe):
		return fe.Error()
	}
	switch statusFor(err) {
	case http.StatusForbidden:
		if reason := gate.ReasonOf(err); reason != "" {
			return reason
		}
		return "You do not have permission to do that."
	case http.StatusNotFound:
		return "The page you are looking for does not exist."
	case http.StatusUnauthorized:
		return "Please log in to continue."
	}
	return "Something went wrong. Please try again."
}

// fieldErrors translates per-field violation codes for display.
func fieldErrors(r *http.Request, err error) map[string]string {
	lang := i18n.LangFromContext(r.Context())
	out := map[string]string{}
	var ve *services.ValidationError
	if errors.As(err, &ve) {
		for field, code := range ve.Fields {
			out[field] = i18n.T(lang, code)
		}
	}
	var ce *services.ConflictError
	if errors.As(err, &ce) && ce.Field != "" {
		out[ce.Field] = i18n.T(lang, "already_taken")
	}
	return out
}

// isFormError reports whether err should re-render the submitted form.
func isFormError(err error) bool {
	return services.IsValidationError(err) || services.IsConflictError(err)
}

// fail answers a request whose operation returned err.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	log := logger.FromContext(r.Context())
	if status == http.StatusInternalServerError {
		log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	} else {
		log.Debug("request rejected", zap.String("path", r.URL.Path), zap.Int("status", status), zap.Error(err))
	}
	if status == http.StatusUnauthorized {
		auth.Unauthenticated(w, r)
		return
	}
	if httpx.WantsJSON(r) {
		httpx.JSONError(w, status, messageFor(err), nilIfEmpty(fieldErrors(r, err)))
		return
	}
	renderStatus(w, r, status, "error.html", map[string]any{
		"Status": status,
		"Error":  messageFor(err),
	})
}

func nilIfEmpty(m map[string]string) any {
	if len(m) == 0 {
		return nil
	}
	return m
}

func render(w http.ResponseWriter, r *http.Request, name string, data map[string]any) {
	renderStatus(w, r, http.StatusOK, name, data)
}

func renderStatus(w http.ResponseWriter, r *http.Request, status int, name string, data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	if _, ok := data["Notice"]; !ok {
		data["Notice"] = notice(r)
	}
	if err := view.RenderStatus(w, r, status, name, data); err != nil {
		logger.FromContext(r.Context()).Error("render template", zap.String("template", name), zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// formFailure re-renders a form page with err's message and field errors,
// or answers JSON clients directly.
func formFailure(w http.ResponseWriter, r *http.Request, name string, data map[string]any, err error) {
	if !isFormError(err) {
		fail(w, r, err)
		return
	}
	if httpx.WantsJSON(r) {
		httpx.JSONError(w, statusFor(err), messageFor(err), nilIfEmpty(fieldErrors(r, err)))
		return
	}
	if data == nil {
		data = map[string]any{}
	}
	data["Error"] = messageFor(err)
	data["Errors"] = fieldErrors(r, err)
	renderStatus(w, r, statusFor(err), name, data)
}

// redirect sends the browser to path with a translated notice code (303).
func redirect(w http.ResponseWriter, r *http.Request, path, code string) {
	if code != "" {
		u, err := url.Parse(path)
		if err == nil {
			q := u.Query()
			q.Set("notice", code)
			u.RawQuery = q.Encode()
			path = u.String()
		}
	}
	http.Redirect(w, r, path, http.StatusSeeOther)
}

// notice returns the flash text for a ?notice= code. Unknown codes show nothing.
func notice(r *http.Request) string {
	code := r.URL.Query().Get("notice")
	if code == "" {
		return ""
	}
	msg := i18n.T(i18n.LangFromContext(r.Context()), code)
	if msg == code {
		return ""
	}
	return msg
}

// actorOf returns the request's actor. Routes that call it are wrapped in
// an auth middleware, so a missing actor is the zero value.
func actorOf(r *http.Request) models.Actor {
	a, _ := policy.ActorFromContext(r.Context())
	return a
}

func parseID(raw string) uint {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0
	}
	return uint(id)
}

func pathID(r *http.Request, name string) uint { return parseID(r.PathValue(name)) }

func formID(r *http.Request, name string) uint { return parseID(r.FormValue(name)) }
