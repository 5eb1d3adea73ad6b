// Package view renders the html/template pages of the application. Every page
// is parsed together with layout.html and the partials directory.
package view

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/diewo77/taskflow/auth"
	"github.com/diewo77/taskflow/i18n"
)

var (
	baseDir  string
	once     sync.Once
	reload   bool
	tplCache = struct {
		sync.RWMutex
		m map[string]*template.Template
	}{m: map[string]*template.Template{}}

	// resolvers are set by the host app so templates can ask about the
	// current user without this package importing the domain.
	canResolver  func(*http.Request, string, string) bool
	userResolver func(*http.Request) any
)

// SetCanResolver sets the callback behind the "can" template func.
func SetCanResolver(f func(r *http.Request, resource, action string) bool) {
	if f != nil {
		canResolver = f
	}
}

// SetUserResolver sets the callback that fills .Me for every page.
func SetUserResolver(f func(*http.Request) any) {
	if f != nil {
		userResolver = f
	}
}

// SetReload makes every Render reparse its files. Meant for development.
func SetReload(v bool) { reload = v }

func detectBase() {
	candidates := []string{"templates", "../templates", "../../templates", "../../../templates"}
	for _, c := range candidates {
		if fi, err := os.Stat(filepath.Clean(c)); err == nil && fi.IsDir() {
			baseDir = filepath.Clean(c)
			return
		}
	}
	baseDir = "templates"
}

// SetBaseDir overrides the template base directory.
func SetBaseDir(path string) {
	if path == "" {
		return
	}
	baseDir = filepath.Clean(path)
	once = sync.Once{}
	resetCache()
}

func resetCache() {
	tplCache.Lock()
	tplCache.m = map[string]*template.Template{}
	tplCache.Unlock()
}

// Funcs returns the template funcs bound to r.
func Funcs(r *http.Request) template.FuncMap {
	lang := i18n.LangFromContext(r.Context())
	token := auth.CSRFTokenFromContext(r.Context())
	return template.FuncMap{
		"t":    func(code string) string { return i18n.T(lang, code) },
		"lang": func() string { return lang },
		"can": func(resource, action string) bool {
			if canResolver == nil {
				return false
			}
			return canResolver(r, resource, action)
		},
		"csrfToken": func() string { return token },
		"csrfField": func() template.HTML {
			return template.HTML(fmt.Sprintf(`<input type="hidden" name="%s" value="%s">`,
				auth.CSRFField, template.HTMLEscapeString(token)))
		},
		"year": func() int { return time.Now().Year() },
		"add":  func(a, b int) int { return a + b },
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
		// dict builds a map for passing several values to a partial.
		// Usage: {{ template "stat-card" (dict "Label" "Open" "Value" .Stats.Open) }}
		"dict": func(values ...any) map[string]any {
			if len(values)%2 != 0 {
				return nil
			}
			m := make(map[string]any, len(values)/2)
			for i := 0; i < len(values); i += 2 {
				key, ok := values[i].(string)
				if !ok {
					continue
				}
				m[key] = values[i+1]
			}
			return m
		},
	}
}

// placeholderFuncs satisfies the parser; Render swaps in request-bound funcs
// on a clone before executing.
var placeholderFuncs = Funcs(&http.Request{})

func parse(name string) (*template.Template, error) {
	once.Do(func() {
		if baseDir == "" {
			detectBase()
		}
	})
	mainPath := filepath.Join(baseDir, name)
	if _, err := os.Stat(mainPath); err != nil {
		return nil, err
	}
	files := []string{filepath.Join(baseDir, "layout.html"), mainPath}
	partials, _ := filepath.Glob(filepath.Join(baseDir, "partials", "*.html"))
	files = append(files, partials...)
	return template.New("layout.html").Funcs(placeholderFuncs).ParseFiles(files...)
}

func lookup(name string) (*template.Template, error) {
	if !reload {
		tplCache.RLock()
		t, ok := tplCache.m[name]
		tplCache.RUnlock()
		if ok {
			return t, nil
		}
	}
	t, err := parse(name)
	if err != nil {
		return nil, err
	}
	if !reload {
		tplCache.Lock()
		tplCache.m[name] = t
		tplCache.Unlock()
	}
	return t, nil
}

// Render executes the page name (e.g. "dashboard.html") with a 200 status.
func Render(w http.ResponseWriter, r *http.Request, name string, data map[string]any) error {
	return RenderStatus(w, r, http.StatusOK, name, data)
}

// RenderStatus executes the page into a buffer and writes it with status.
// Nothing is written when execution fails.
func RenderStatus(w http.ResponseWriter, r *http.Request, status int, name string, data map[string]any) error {
	if data == nil {
		data = map[string]any{}
	}
	if _, ok := data["Me"]; !ok && userResolver != nil {
		if me := userResolver(r); me != nil {
			data["Me"] = me
		}
	}
	if _, ok := data["Year"]; !ok {
		data["Year"] = time.Now().Year()
	}
	t, err := lookup(name)
	if err != nil {
		return err
	}
	clone, err := t.Clone()
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := clone.Funcs(Funcs(r)).Execute(&buf, data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err = buf.WriteTo(w)
	return err
}
