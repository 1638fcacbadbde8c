package parser

import (
	"bytes"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formdoc/pkg/schema"
)

// DefaultVersion is assumed when the front matter omits the formdoc key.
const DefaultVersion = "1.0"

type frontMatter struct {
	Formdoc      string            `yaml:"formdoc"`
	Title        string            `yaml:"title"`
	Description  string            `yaml:"description"`
	Roles        []string          `yaml:"roles"`
	Instructions map[string]string `yaml:"instructions"`
	Mode         string            `yaml:"mode"`
	// Progress is an advisory cached summary. It is decoded only so strict
	// front-matter parsing accepts it, then discarded: the inspector always
	// recomputes completion from the live model.
	Progress map[string]any `yaml:"progress"`
}

// splitFrontMatter returns the front matter payload, the remaining body
// lines, and the 1-based line number the body starts at.
func splitFrontMatter(lines []string) (payload []string, body []string, bodyStart int, err error) {
	if len(lines) == 0 || strings.TrimRight(lines[0], " ") != "---" {
		return nil, lines, 1, nil
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimRight(lines[i], " ") == "---" {
			return lines[1:i], lines[i+1:], i + 2, nil
		}
	}
	return nil, nil, 0, errorf(1, "front matter is never closed")
}

func decodeFrontMatter(doc *schema.Document, payload []string) error {
	raw := strings.Join(payload, "\n")
	var fm frontMatter
	if strings.TrimSpace(raw) != "" {
		dec := yaml.NewDecoder(bytes.NewReader([]byte(raw)))
		dec.KnownFields(true)
		if err := dec.Decode(&fm); err != nil {
			return wrapf(1, err, "front matter")
		}
	}

	doc.Version = fm.Formdoc
	if doc.Version == "" {
		doc.Version = DefaultVersion
	}
	doc.Title = fm.Title
	doc.Description = fm.Description
	doc.Roles = fm.Roles
	doc.Instructions = fm.Instructions
	doc.Mode = fm.Mode
	return nil
}
