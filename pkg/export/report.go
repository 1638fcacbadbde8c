package export

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	theme "github.com/goliatone/go-theme"
	"github.com/microcosm-cc/bluemonday"

	"github.com/goliatone/go-formdoc/pkg/export/template"
	"github.com/goliatone/go-formdoc/pkg/inspect"
	"github.com/goliatone/go-formdoc/pkg/schema"
)

//go:embed templates/*.tpl
var reportTemplates embed.FS

// ReportFormat selects the output flavor of the report exporter.
type ReportFormat string

const (
	ReportMarkdown ReportFormat = "markdown"
	ReportHTML     ReportFormat = "html"
)

// ReportOption configures a report exporter before construction.
type ReportOption func(*reportConfig)

type reportConfig struct {
	templates fs.FS
	theme     *theme.RendererConfig
}

// WithReportTemplates overrides the embedded templates. The FS must carry
// report.md.tpl and report.html.tpl at its root.
func WithReportTemplates(files fs.FS) ReportOption {
	return func(cfg *reportConfig) {
		if files != nil {
			cfg.templates = files
		}
	}
}

// WithTheme passes a resolved theme configuration to the templates. HTML
// output gets a CSS custom-property block derived from the theme tokens.
func WithTheme(cfg *theme.RendererConfig) ReportOption {
	return func(rc *reportConfig) {
		rc.theme = cfg
	}
}

// WithThemeSelection resolves a theme by name through the selector and wires
// the result like WithTheme. Selection failures surface from NewReport.
func WithThemeSelection(selector theme.ThemeSelector, name, variant string) ReportOption {
	return func(rc *reportConfig) {
		if selector == nil {
			return
		}
		selection, err := selector.Select(name, variant)
		if err != nil || selection == nil {
			return
		}
		rc.theme = rendererConfigFromSelection(selection)
	}
}

// ReportExporter renders a human-readable completion report, either as
// Markdown or as a sanitized HTML fragment.
type ReportExporter struct {
	format ReportFormat
	engine *template.Engine
	policy *bluemonday.Policy
	theme  *theme.RendererConfig
}

// NewReport builds a report exporter for the given format.
func NewReport(format ReportFormat, options ...ReportOption) (*ReportExporter, error) {
	switch format {
	case ReportMarkdown, ReportHTML:
	default:
		return nil, fmt.Errorf("export: report: unsupported format %q", format)
	}

	cfg := &reportConfig{}
	for _, opt := range options {
		if opt != nil {
			opt(cfg)
		}
	}

	templates := cfg.templates
	if templates == nil {
		sub, err := fs.Sub(reportTemplates, "templates")
		if err != nil {
			return nil, fmt.Errorf("export: report: %w", err)
		}
		templates = sub
	}

	engine, err := template.New(template.WithFS(templates))
	if err != nil {
		return nil, fmt.Errorf("export: report: %w", err)
	}

	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class").Globally()

	return &ReportExporter{
		format: format,
		engine: engine,
		policy: policy,
		theme:  cfg.theme,
	}, nil
}

// Name implements Exporter.
func (e *ReportExporter) Name() string {
	if e.format == ReportHTML {
		return "report-html"
	}
	return "report"
}

// Export implements Exporter.
func (e *ReportExporter) Export(doc *schema.Document) ([]byte, error) {
	if doc == nil || doc.Form == nil {
		return nil, fmt.Errorf("export: report: document has no form")
	}

	name := "report.md"
	if e.format == ReportHTML {
		name = "report.html"
	}

	out, err := e.engine.RenderTemplate(name, buildReportContext(doc, e.theme))
	if err != nil {
		return nil, fmt.Errorf("export: report: %w", err)
	}

	if e.format == ReportHTML {
		out = e.policy.Sanitize(out)
		// The style block is generated from our own token map, never from
		// document text, so it is prepended after sanitization.
		if style := cssVarsStyle(themeCSSVars(e.theme)); style != "" {
			out = "<style>\n" + style + "\n</style>\n" + out
		}
	}
	return []byte(out), nil
}

type reportContext struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Status      string         `json:"status"`
	Progress    reportProgress `json:"progress"`
	Issues      []reportIssue  `json:"issues"`
	Groups      []reportGroup  `json:"groups"`
	Notes       []reportNote   `json:"notes"`
	Theme       reportTheme    `json:"theme"`
}

type reportProgress struct {
	Total    int `json:"total"`
	Answered int `json:"answered"`
	Skipped  int `json:"skipped"`
	Aborted  int `json:"aborted"`
}

type reportIssue struct {
	Ref      string `json:"ref"`
	Severity string `json:"severity"`
	Reason   string `json:"reason"`
	Message  string `json:"message"`
}

type reportGroup struct {
	ID     string        `json:"id"`
	Title  string        `json:"title"`
	Fields []reportField `json:"fields"`
}

type reportField struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Kind  string `json:"kind"`
	State string `json:"state"`
	Value string `json:"value"`
}

type reportNote struct {
	Ref  string `json:"ref"`
	By   string `json:"by"`
	Text string `json:"text"`
}

type reportTheme struct {
	Name    string            `json:"name"`
	Variant string            `json:"variant"`
	Tokens  map[string]string `json:"tokens"`
}

func buildReportContext(doc *schema.Document, themeCfg *theme.RendererConfig) reportContext {
	result := inspect.Inspect(doc)

	ctx := reportContext{
		Title:       doc.Title,
		Description: doc.Description,
		Status:      "incomplete",
	}
	if result.Complete {
		ctx.Status = "complete"
	}
	if ctx.Title == "" {
		ctx.Title = doc.Form.Title
	}
	if ctx.Title == "" {
		ctx.Title = doc.Form.ID
	}

	p := inspect.Measure(doc)
	ctx.Progress = reportProgress{
		Total:    p.Fields,
		Answered: p.Answered,
		Skipped:  p.Skipped,
		Aborted:  p.Aborted,
	}

	for _, issue := range result.Issues {
		if issue.Reason == inspect.ReasonOptionalUnanswered {
			continue
		}
		ctx.Issues = append(ctx.Issues, reportIssue{
			Ref:      issue.Ref,
			Severity: string(issue.Severity),
			Reason:   string(issue.Reason),
			Message:  issue.Message,
		})
	}

	for _, group := range doc.Form.Groups {
		view := reportGroup{ID: group.ID, Title: group.Title}
		if group.Synthesized {
			view.Title = ""
		}
		for _, field := range group.Fields {
			view.Fields = append(view.Fields, reportField{
				ID:    field.ID,
				Label: fieldLabel(field),
				Kind:  string(field.Kind),
				State: string(field.Response.State),
				Value: summarizeValue(field),
			})
		}
		ctx.Groups = append(ctx.Groups, view)
	}

	for _, note := range doc.Notes {
		ctx.Notes = append(ctx.Notes, reportNote{Ref: note.Ref, By: note.By, Text: note.Text})
	}

	if themeCfg != nil {
		ctx.Theme = reportTheme{
			Name:    themeCfg.Theme,
			Variant: themeCfg.Variant,
			Tokens:  themeCfg.Tokens,
		}
	}
	return ctx
}

func fieldLabel(field *schema.Field) string {
	if field.Title != "" {
		return field.Title
	}
	return field.ID
}

// summarizeValue renders a one-line summary of the field's current answer.
// Multi-line payloads collapse to counts so the report stays scannable.
func summarizeValue(field *schema.Field) string {
	switch field.Response.State {
	case schema.StateSkipped:
		return withReason("skipped", field.Response.Reason)
	case schema.StateAborted:
		return withReason("aborted", field.Response.Reason)
	}
	if !field.Response.Answered() {
		return ""
	}

	switch v := field.Response.Value.(type) {
	case schema.StringValue:
		return firstLine(string(v))
	case schema.NumberValue:
		return strconv.FormatFloat(float64(v), 'f', -1, 64)
	case schema.DateValue:
		return v.String()
	case schema.YearValue:
		return strconv.Itoa(int(v))
	case schema.ListValue:
		return strings.Join(v, ", ")
	case schema.SelectionValue:
		labels := make([]string, 0, len(v))
		for _, id := range v {
			if opt, ok := field.Option(id); ok && opt.Label != "" {
				labels = append(labels, opt.Label)
			} else {
				labels = append(labels, id)
			}
		}
		return strings.Join(labels, ", ")
	case schema.ChecksValue:
		return fmt.Sprintf("%d of %d resolved", len(v.ResolvedIDs()), len(field.Options))
	case schema.TableValue:
		if len(v) == 1 {
			return "1 row"
		}
		return fmt.Sprintf("%d rows", len(v))
	default:
		return ""
	}
}

func withReason(state, reason string) string {
	if reason == "" {
		return state
	}
	return state + ": " + reason
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx] + " ..."
	}
	return s
}

// rendererConfigFromSelection flattens a theme selection into the renderer
// configuration: variant tokens override base tokens, CSS custom properties
// derive from the merged set, and assets resolve against the manifest prefix.
func rendererConfigFromSelection(selection *theme.Selection) *theme.RendererConfig {
	cfg := &theme.RendererConfig{
		Theme:   selection.Theme,
		Variant: selection.Variant,
	}

	manifest := selection.Manifest
	if manifest == nil {
		return cfg
	}

	tokens := make(map[string]string, len(manifest.Tokens))
	for key, value := range manifest.Tokens {
		tokens[key] = value
	}
	files := make(map[string]string, len(manifest.Assets.Files))
	for key, value := range manifest.Assets.Files {
		files[key] = value
	}
	if variant, ok := manifest.Variants[selection.Variant]; ok {
		for key, value := range variant.Tokens {
			tokens[key] = value
		}
		for key, value := range variant.Assets.Files {
			files[key] = value
		}
	}

	cfg.Tokens = tokens
	cfg.CSSVars = make(map[string]string, len(tokens))
	for key, value := range tokens {
		cfg.CSSVars["--"+key] = value
	}

	prefix := strings.TrimRight(manifest.Assets.Prefix, "/")
	cfg.AssetURL = func(name string) string {
		file, ok := files[name]
		if !ok {
			return ""
		}
		return prefix + "/" + file
	}
	return cfg
}

func themeCSSVars(cfg *theme.RendererConfig) map[string]string {
	if cfg == nil {
		return nil
	}
	return cfg.CSSVars
}

func cssVarsStyle(vars map[string]string) string {
	if len(vars) == 0 {
		return ""
	}
	keys := make([]string, 0, len(vars))
	for key := range vars {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(":root {\n")
	for _, key := range keys {
		b.WriteString("  ")
		b.WriteString(key)
		b.WriteString(": ")
		b.WriteString(vars[key])
		b.WriteString(";\n")
	}
	b.WriteString("}")
	return b.String()
}
