package export

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formdoc/pkg/schema"
)

// ValuesExporter renders the answers alone as YAML, one entry per field
// tagged by response state. Consumers that only care about the data read
// this view instead of reparsing the document.
type ValuesExporter struct{}

// Name implements Exporter.
func (e *ValuesExporter) Name() string { return "values" }

type valuesDoc struct {
	Title  string       `yaml:"title,omitempty"`
	Form   string       `yaml:"form"`
	Fields []valueEntry `yaml:"fields"`
	Notes  []noteEntry  `yaml:"notes,omitempty"`
}

type valueEntry struct {
	ID     string `yaml:"id"`
	Kind   string `yaml:"kind"`
	State  string `yaml:"state"`
	Value  any    `yaml:"value,omitempty"`
	Reason string `yaml:"reason,omitempty"`
	By     string `yaml:"by,omitempty"`
}

type noteEntry struct {
	ID   string `yaml:"id"`
	Ref  string `yaml:"ref"`
	By   string `yaml:"by,omitempty"`
	Text string `yaml:"text"`
}

// Export implements Exporter.
func (e *ValuesExporter) Export(doc *schema.Document) ([]byte, error) {
	if doc == nil || doc.Form == nil {
		return nil, fmt.Errorf("export: values: document has no form")
	}

	out := valuesDoc{Title: doc.Title, Form: doc.Form.ID}
	for _, field := range doc.Fields() {
		entry := valueEntry{
			ID:     field.ID,
			Kind:   string(field.Kind),
			State:  string(field.Response.State),
			Reason: field.Response.Reason,
			By:     field.Response.By,
		}
		if field.Response.Answered() {
			entry.Value = yamlValue(field.Response.Value)
		}
		out.Fields = append(out.Fields, entry)
	}
	for _, note := range doc.Notes {
		out.Notes = append(out.Notes, noteEntry{ID: note.ID, Ref: note.Ref, By: note.By, Text: note.Text})
	}

	data, err := yaml.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("export: values: %w", err)
	}
	return data, nil
}

// yamlValue converts a typed response value to its natural YAML shape.
func yamlValue(value schema.Value) any {
	switch v := value.(type) {
	case schema.StringValue:
		return string(v)
	case schema.NumberValue:
		return float64(v)
	case schema.DateValue:
		return time.Time(v).Format(schema.DateLayout)
	case schema.YearValue:
		return int(v)
	case schema.ListValue:
		return []string(v)
	case schema.SelectionValue:
		return []string(v)
	case schema.ChecksValue:
		marks := make(map[string]string, len(v))
		for id, mark := range v {
			marks[id] = string(mark)
		}
		return marks
	case schema.TableValue:
		rows := make([]map[string]string, 0, len(v))
		for _, row := range v {
			rows = append(rows, map[string]string(row))
		}
		return rows
	default:
		return nil
	}
}
