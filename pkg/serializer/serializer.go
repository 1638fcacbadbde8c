// Package serializer renders a document model back to canonical formdoc
// text. The output is a pure function of the model: parsing it again yields a
// structurally equivalent model, and serializing that model reproduces the
// same bytes.
package serializer

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formdoc/internal/tagscan"
	"github.com/goliatone/go-formdoc/pkg/inspect"
	"github.com/goliatone/go-formdoc/pkg/schema"
)

// Serialize renders the document in canonical form.
func Serialize(doc *schema.Document) ([]byte, error) {
	w := &writer{syntax: doc.Syntax}

	if err := w.frontMatter(doc); err != nil {
		return nil, err
	}

	if doc.Preamble != "" {
		w.blank()
		w.text(doc.Preamble)
	}

	form := doc.Form
	if form == nil {
		return nil, fmt.Errorf("serializer: document has no form")
	}

	if !form.Synthesized {
		w.blank()
		w.tag("form", formAttrs(form), false)
	}
	if form.Body != "" {
		w.blank()
		w.text(form.Body)
	}

	for _, group := range form.Groups {
		if !group.Synthesized {
			w.blank()
			w.tag("group", groupAttrs(group), false)
		}
		if group.Body != "" {
			w.blank()
			w.text(group.Body)
		}
		for _, field := range group.Fields {
			w.blank()
			if err := w.field(field); err != nil {
				return nil, err
			}
		}
		if !group.Synthesized {
			w.blank()
			w.tag("group", nil, true)
		}
	}

	if !form.Synthesized {
		w.blank()
		w.tag("form", nil, true)
	}

	for _, note := range doc.Notes {
		w.blank()
		w.note(note)
	}

	return w.bytes(), nil
}

// Hash returns the SHA-256 hex digest of the canonical serialization.
func Hash(doc *schema.Document) (string, error) {
	out, err := Serialize(doc)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(out)
	return hex.EncodeToString(sum[:]), nil
}

type writer struct {
	lines  []string
	syntax schema.TagSyntax
}

func (w *writer) line(s string) {
	w.lines = append(w.lines, s)
}

// blank appends one empty separator line unless the output is empty or
// already ends with one.
func (w *writer) blank() {
	if n := len(w.lines); n > 0 && w.lines[n-1] != "" {
		w.lines = append(w.lines, "")
	}
}

func (w *writer) text(body string) {
	for _, line := range strings.Split(body, "\n") {
		w.line(line)
	}
}

func (w *writer) bytes() []byte {
	var buf bytes.Buffer
	for _, line := range w.lines {
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

func (w *writer) tag(name string, attrs []string, closing bool) {
	var inner string
	if closing {
		inner = "/" + name
	} else {
		inner = name
		if len(attrs) > 0 {
			inner += " " + strings.Join(attrs, " ")
		}
	}
	if w.syntax == schema.SyntaxComment {
		w.line("<!--!" + inner + "-->")
		return
	}
	w.line("[!" + inner + "]")
}

type frontMatterOut struct {
	Formdoc      string            `yaml:"formdoc"`
	Title        string            `yaml:"title,omitempty"`
	Description  string            `yaml:"description,omitempty"`
	Roles        []string          `yaml:"roles,omitempty"`
	Instructions map[string]string `yaml:"instructions,omitempty"`
	Mode         string            `yaml:"mode,omitempty"`
	Progress     progressOut       `yaml:"progress"`
}

// progressOut is the advisory cached summary; parsers must ignore it and the
// inspector recomputes completion from the live model.
type progressOut struct {
	Fields   int `yaml:"fields"`
	Required int `yaml:"required"`
	Answered int `yaml:"answered"`
	Skipped  int `yaml:"skipped"`
	Aborted  int `yaml:"aborted"`
}

func (w *writer) frontMatter(doc *schema.Document) error {
	out := frontMatterOut{
		Formdoc:      doc.Version,
		Title:        doc.Title,
		Description:  doc.Description,
		Roles:        doc.Roles,
		Instructions: doc.Instructions,
		Mode:         doc.Mode,
	}
	if out.Formdoc == "" {
		out.Formdoc = "1.0"
	}
	p := inspect.Measure(doc)
	out.Progress = progressOut{
		Fields:   p.Fields,
		Required: p.Required,
		Answered: p.Answered,
		Skipped:  p.Skipped,
		Aborted:  p.Aborted,
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("serializer: front matter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("serializer: front matter: %w", err)
	}

	w.line("---")
	payload := strings.TrimRight(buf.String(), "\n")
	for _, line := range strings.Split(payload, "\n") {
		w.line(line)
	}
	w.line("---")
	return nil
}

func formAttrs(form *schema.Form) []string {
	attrs := []string{"id=" + tagscan.Quote(form.ID)}
	if form.Title != "" {
		attrs = append(attrs, "title="+tagscan.Quote(form.Title))
	}
	return attrs
}

func groupAttrs(group *schema.Group) []string {
	attrs := []string{"id=" + tagscan.Quote(group.ID)}
	if group.Title != "" {
		attrs = append(attrs, "title="+tagscan.Quote(group.Title))
	}
	return attrs
}

func (w *writer) field(field *schema.Field) error {
	if field.Synthesized {
		// Implicit checklist fields came from bare markers; they serialize
		// back to bare markers so plain checklists stay plain.
		w.markers(field)
		return nil
	}

	w.tag("field", fieldAttrs(field), false)
	if field.Body != "" {
		w.text(field.Body)
	}

	if field.Kind.Selection() {
		w.markers(field)
	} else if field.Response.Answered() {
		content, err := FormatValue(field, field.Response.Value)
		if err != nil {
			return err
		}
		w.fencedValue(content)
	}

	w.tag("field", nil, true)
	return nil
}

func fieldAttrs(field *schema.Field) []string {
	attrs := []string{
		"id=" + tagscan.Quote(field.ID),
		"kind=" + string(field.Kind),
	}
	if field.Title != "" {
		attrs = append(attrs, "title="+tagscan.Quote(field.Title))
	}
	if field.Required {
		attrs = append(attrs, "required")
	}
	if field.Role != "" {
		attrs = append(attrs, "role="+tagscan.Quote(field.Role))
	}
	if field.Priority != schema.DefaultPriority {
		attrs = append(attrs, "priority="+strconv.Itoa(field.Priority))
	}
	if field.Pattern != "" {
		attrs = append(attrs, "pattern="+tagscan.Quote(field.Pattern))
	}
	if field.Min != nil {
		attrs = append(attrs, "min="+formatNumber(*field.Min))
	}
	if field.Max != nil {
		attrs = append(attrs, "max="+formatNumber(*field.Max))
	}
	if field.MinItems != nil {
		attrs = append(attrs, "min_items="+strconv.Itoa(*field.MinItems))
	}
	if field.MaxItems != nil {
		attrs = append(attrs, "max_items="+strconv.Itoa(*field.MaxItems))
	}
	if field.Mode != "" {
		attrs = append(attrs, "mode="+string(field.Mode))
	}
	if len(field.Columns) > 0 {
		specs := make([]string, len(field.Columns))
		for i, col := range field.Columns {
			specs[i] = col.ID + ":" + string(col.Kind)
		}
		attrs = append(attrs, "columns="+tagscan.Quote(strings.Join(specs, ",")))
	}
	switch field.Response.State {
	case schema.StateSkipped, schema.StateAborted:
		attrs = append(attrs, "state="+string(field.Response.State))
		if field.Response.Reason != "" {
			attrs = append(attrs, "reason="+tagscan.Quote(field.Response.Reason))
		}
		if field.Response.By != "" {
			attrs = append(attrs, "by="+tagscan.Quote(field.Response.By))
		}
	case schema.StateAnswered, schema.StateUnanswered:
	}
	return attrs
}

func (w *writer) markers(field *schema.Field) {
	for _, opt := range field.Options {
		mark := schema.MarkBlank
		if field.Response.Answered() {
			switch value := field.Response.Value.(type) {
			case schema.SelectionValue:
				if value.Selected(opt.ID) {
					mark = schema.MarkChecked
				}
			case schema.ChecksValue:
				mark = value.Mark(opt.ID)
			}
		}
		line := "- [" + string(mark) + "]"
		if opt.Label != "" {
			line += " " + opt.Label
		}
		line += " {#" + opt.ID + "}"
		w.line(line)
	}
}

func (w *writer) fencedValue(content string) {
	char, length := chooseFence(content)
	fence := strings.Repeat(string(char), length)
	info := "value"
	if needsRawMarker(content) {
		info = "value raw"
	}
	w.line(fence + info)
	for _, line := range strings.Split(content, "\n") {
		w.line(line)
	}
	w.line(fence)
}

func (w *writer) note(note *schema.Note) {
	attrs := []string{"id=" + tagscan.Quote(note.ID), "ref=" + tagscan.Quote(note.Ref)}
	if note.By != "" {
		attrs = append(attrs, "by="+tagscan.Quote(note.By))
	}
	w.tag("note", attrs, false)
	if note.Text != "" {
		w.text(note.Text)
	}
	w.tag("note", nil, true)
}

// FormatValue renders an answered value to its canonical fence content.
// Exporters reuse it for the values view.
func FormatValue(field *schema.Field, value schema.Value) (string, error) {
	switch v := value.(type) {
	case schema.StringValue:
		return string(v), nil
	case schema.NumberValue:
		return formatNumber(float64(v)), nil
	case schema.DateValue:
		return time.Time(v).Format(schema.DateLayout), nil
	case schema.YearValue:
		return strconv.Itoa(int(v)), nil
	case schema.ListValue:
		return strings.Join(v, "\n"), nil
	case schema.TableValue:
		lines := []string{tagscan.JoinRow(field.ColumnIDs())}
		for _, row := range v {
			cells := make([]string, len(field.Columns))
			for i, col := range field.Columns {
				cells[i] = row[col.ID]
			}
			lines = append(lines, tagscan.JoinRow(cells))
		}
		return strings.Join(lines, "\n"), nil
	case schema.SelectionValue, schema.ChecksValue:
		return "", fmt.Errorf("serializer: field %q: selection values render as markers, not fences", field.ID)
	default:
		return "", fmt.Errorf("serializer: field %q: unhandled value type %T", field.ID, value)
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
