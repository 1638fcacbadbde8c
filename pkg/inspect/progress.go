package inspect

import "github.com/goliatone/go-formdoc/pkg/schema"

// Progress tallies response states across the whole document. The serializer
// front matter, the report exporter, and patch results all report the same
// counts through it.
type Progress struct {
	Fields   int `json:"fields" yaml:"fields"`
	Required int `json:"required" yaml:"required"`
	Answered int `json:"answered" yaml:"answered"`
	Skipped  int `json:"skipped" yaml:"skipped"`
	Aborted  int `json:"aborted" yaml:"aborted"`
	Invalid  int `json:"invalid,omitempty" yaml:"invalid,omitempty"`
}

// Measure counts every field once. Invalid counts answered fields whose
// stored value breaks a declared constraint.
func Measure(doc *schema.Document) Progress {
	var p Progress
	for _, field := range doc.Fields() {
		p.Fields++
		if field.Required {
			p.Required++
		}
		switch field.Response.State {
		case schema.StateAnswered:
			p.Answered++
			if len(Problems(field, field.Response.Value)) > 0 {
				p.Invalid++
			}
		case schema.StateSkipped:
			p.Skipped++
		case schema.StateAborted:
			p.Aborted++
		}
	}
	return p
}
