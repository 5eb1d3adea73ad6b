package handlers

import (
	"net/http"

	"github.com/diewo77/taskflow/httpx"
	"github.com/diewo77/taskflow/internal/ai"
)

// aiFields are the form inputs the drafting modes read.
var aiFields = []string{"goal", "constraints", "notes", "question"}

type AIHandler struct {
	assistant *ai.Assistant
}

func NewAIHandler(a *ai.Assistant) *AIHandler {
	return &AIHandler{assistant: a}
}

func (h *AIHandler) page(mode ai.Mode, fields map[string]string) map[string]any {
	return map[string]any{
		"Modes":      ai.Modes,
		"Mode":       mode,
		"Fields":     fields,
		"Configured": h.assistant.Configured(),
	}
}

func (h *AIHandler) Form(w http.ResponseWriter, r *http.Request) {
	mode := ai.ParseMode(r.URL.Query().Get("mode"))
	render(w, r, "ai.html", h.page(mode, map[string]string{}))
}

// Draft runs one generation. Generation problems are shown on the page;
// only authorization failures become error responses.
func (h *AIHandler) Draft(w http.ResponseWriter, r *http.Request) {
	mode := ai.ParseMode(r.FormValue("mode"))
	fields := make(map[string]string, len(aiFields))
	for _, k := range aiFields {
		fields[k] = r.FormValue(k)
	}
	res, err := h.assistant.Draft(r.Context(), actorOf(r), mode, fields)
	if err != nil {
		fail(w, r, err)
		return
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, res)
		return
	}
	data := h.page(mode, fields)
	data["Result"] = res
	if !res.OK {
		data["Error"] = res.Error
	}
	render(w, r, "ai.html", data)
}
