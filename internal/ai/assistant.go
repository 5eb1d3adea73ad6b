package ai

import (
	"context"
	"strings"

	"github.com/diewo77/taskflow/gate"
	"github.com/diewo77/taskflow/internal/models"
	"github.com/diewo77/taskflow/internal/policy"
)

// Mode selects the drafting template.
type Mode string

const (
	ModeTaskPlan   Mode = "task_plan"
	ModeDailyDraft Mode = "daily_draft"
	ModeHRPolicy   Mode = "hr_policy"
)

var Modes = []Mode{ModeTaskPlan, ModeDailyDraft, ModeHRPolicy}

// ParseMode falls back to task_plan.
func ParseMode(s string) Mode {
	m := Mode(strings.TrimSpace(s))
	for _, known := range Modes {
		if m == known {
			return m
		}
	}
	return ModeTaskPlan
}

// NotConfiguredMessage is shown before any prompt is built when no key is set.
const NotConfiguredMessage = "AI is not configured. Set OPENAI_API_KEY in your environment and restart the server."

// Generator produces text for a system and a user prompt.
type Generator interface {
	Configured() bool
	Generate(ctx context.Context, systemPrompt, userPrompt string) Result
}

// Assistant turns form fields into prompts for one of the drafting modes.
type Assistant struct {
	gen  Generator
	gate *policy.AuthGate
}

func NewAssistant(gen Generator, g *policy.AuthGate) *Assistant {
	return &Assistant{gen: gen, gate: g}
}

func (a *Assistant) Configured() bool { return a.gen != nil && a.gen.Configured() }

type prompt struct {
	system string
	user   string
}

func buildPrompt(mode Mode, fields map[string]string) (prompt, string) {
	field := func(k string) string { return strings.TrimSpace(fields[k]) }
	switch mode {
	case ModeDailyDraft:
		notes := field("notes")
		if notes == "" {
			return prompt{}, "Raw notes are required to draft daily report."
		}
		return prompt{
			system: "You draft concise professional employee daily reports.",
			user:   "Convert the raw notes into a structured daily report with sections: Work Summary, Blockers, Next Plan.\nNotes:\n" + notes,
		}, ""
	case ModeHRPolicy:
		question := field("question")
		if question == "" {
			return prompt{}, "HR question is required."
		}
		return prompt{
			system: "You are an HR operations advisor. Provide practical, neutral policy draft guidance.",
			user:   "Provide a practical policy draft answer for this HR operations question:\n" + question,
		}, ""
	}
	goal := field("goal")
	if goal == "" {
		return prompt{}, "Goal is required for task planning."
	}
	return prompt{
		system: "You are an operations assistant for a company task management platform. Create practical implementation plans.",
		user: "Create a detailed execution plan for this goal. Include:\n" +
			"1) Task breakdown\n2) Suggested owners\n3) Estimated effort (hours)\n4) Priority\n5) Risks\n" +
			"Goal: " + goal + "\nConstraints: " + field("constraints"),
	}, ""
}

// Draft runs mode over fields for actor. The returned error is an
// authorization failure; every other problem is reported in the Result.
func (a *Assistant) Draft(ctx context.Context, actor models.Actor, mode Mode, fields map[string]string) (Result, error) {
	if a.gate != nil {
		if err := a.gate.Authorize(ctx, actor, gate.ActionCreate, policy.ResourceAI, nil); err != nil {
			return Result{}, err
		}
	}
	if !a.Configured() {
		return failure(NotConfiguredMessage), nil
	}
	p, problem := buildPrompt(mode, fields)
	if problem != "" {
		return failure(problem), nil
	}
	return a.gen.Generate(ctx, p.system, p.user), nil
}
