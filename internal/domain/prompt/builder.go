// Package prompt renders the prompts sent to the analysis engine.
package prompt

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
	"unicode/utf8"

	"github.com/kube-rca/agent/internal/domain/model"
	"github.com/kube-rca/agent/internal/domain/response"
	"github.com/kube-rca/agent/internal/masking"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// charsPerToken converts a token budget into a character ceiling.
const charsPerToken = 4

const defaultQuestion = "Tell me about this incident."

// Step names the context reduction that made an alert prompt fit.
type Step string

const (
	StepFull       Step = "full"
	StepDropLogs   Step = "drop_logs"
	StepDropEvents Step = "drop_events"
	StepCompact    Step = "compact"
	StepOmitted    Step = "omitted"
)

// Config controls prompt rendering. TokenBudget <= 0 means unlimited.
type Config struct {
	TokenBudget       int
	PrometheusEnabled bool
	TempoEnabled      bool
}

// Builder renders prompts. All embedded values are masked.
type Builder struct {
	cfg       Config
	masker    *masking.Masker
	templates *template.Template
}

// NewBuilder parses all embedded templates and returns a Builder.
func NewBuilder(cfg Config, masker *masking.Masker) (*Builder, error) {
	funcs := template.FuncMap{"inc": func(i int) int { return i + 1 }}
	tmpl, err := template.New("prompt").Funcs(funcs).ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parsing prompt templates: %w", err)
	}
	return &Builder{cfg: cfg, masker: masker, templates: tmpl}, nil
}

// Tools returns the tool catalog advertised in prompts.
func (b *Builder) Tools() []ToolInfo {
	return Tools(b.cfg.PrometheusEnabled, b.cfg.TempoEnabled)
}

// AlertInput holds data for the alert analysis prompt. Context is expected
// to be trimmed already.
type AlertInput struct {
	Request   model.AlertAnalysisRequest
	Context   model.KubernetesContext
	Summaries []string
}

type alertTemplateData struct {
	Tools             []ToolInfo
	PrometheusEnabled bool
	TempoEnabled      bool
	Summaries         []string
	AlertJSON         string
	ContextJSON       string
}

// AlertPrompt renders the alert analysis prompt, shrinking the Kubernetes
// context step by step until the prompt fits the token budget. The last
// step is returned even if it still does not fit.
func (b *Builder) AlertPrompt(in AlertInput) (string, Step, error) {
	data := alertTemplateData{
		Tools:             b.Tools(),
		PrometheusEnabled: b.cfg.PrometheusEnabled,
		TempoEnabled:      b.cfg.TempoEnabled,
		Summaries:         b.compactSummaries(in.Summaries),
		AlertJSON:         b.maskedJSON(in.Request.ToMap()),
	}

	limit := b.cfg.TokenBudget * charsPerToken
	var (
		out  string
		step Step
	)
	for _, candidate := range b.contextSteps(in.Context) {
		data.ContextJSON = candidate.render()
		rendered, err := b.execute("alert_analysis.tmpl", data)
		if err != nil {
			return "", "", err
		}
		out, step = rendered, candidate.step
		if b.cfg.TokenBudget <= 0 || utf8.RuneCountInString(rendered) <= limit {
			break
		}
	}
	return out, step, nil
}

type contextStep struct {
	step   Step
	render func() string
}

func (b *Builder) contextSteps(kctx model.KubernetesContext) []contextStep {
	return []contextStep{
		{StepFull, func() string { return b.maskedJSON(kctx.ToMap()) }},
		{StepDropLogs, func() string {
			c := kctx.Clone()
			c.PreviousLogs = []model.LogSnippet{}
			return b.maskedJSON(c.ToMap())
		}},
		{StepDropEvents, func() string {
			c := kctx.Clone()
			c.PreviousLogs = []model.LogSnippet{}
			c.Events = []model.PodEvent{}
			return b.maskedJSON(c.ToMap())
		}},
		{StepCompact, func() string { return b.maskedJSON(kctx.CompactMap()) }},
		{StepOmitted, func() string {
			return fmt.Sprintf("(omitted: Kubernetes context exceeded the prompt budget of %d tokens; use the tools to fetch it)", b.cfg.TokenBudget)
		}},
	}
}

// IncidentInput holds data for the incident summary prompt.
type IncidentInput struct {
	Request   model.IncidentSummaryRequest
	Summaries []string
}

// IncidentPrompt renders the final RCA prompt for a resolved incident.
func (b *Builder) IncidentPrompt(in IncidentInput) (string, error) {
	data := struct {
		Summaries    []string
		IncidentJSON string
	}{
		Summaries:    b.compactSummaries(in.Summaries),
		IncidentJSON: b.maskedJSON(in.Request.ToMap()),
	}
	return b.execute("incident_summary.tmpl", data)
}

// ChatInput holds data for the chat prompt.
type ChatInput struct {
	Request model.ChatRequest
}

// ChatPrompt renders a chat prompt. A blank question is replaced by a
// generic one.
func (b *Builder) ChatPrompt(in ChatInput) (string, error) {
	question := strings.TrimSpace(b.masker.MaskText(in.Request.Message))
	if question == "" {
		question = defaultQuestion
	}
	var contextJSON string
	if len(in.Request.Context) > 0 {
		contextJSON = b.maskedJSON(in.Request.Context)
	}
	data := struct {
		PrometheusEnabled bool
		TempoEnabled      bool
		ContextJSON       string
		Question          string
	}{b.cfg.PrometheusEnabled, b.cfg.TempoEnabled, contextJSON, question}
	return b.execute("chat.tmpl", data)
}

func (b *Builder) compactSummaries(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := response.CompactSummary(b.masker.MaskText(item)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// maskedJSON masks v and renders it as indented JSON with sorted keys.
func (b *Builder) maskedJSON(v map[string]any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(b.masker.MaskObject(v)); err != nil {
		return "{}"
	}
	return strings.TrimRight(buf.String(), "\n")
}

func (b *Builder) execute(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := b.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("rendering %s: %w", name, err)
	}
	return buf.String(), nil
}
