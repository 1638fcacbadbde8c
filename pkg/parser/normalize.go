package parser

import (
	"fmt"

	"github.com/goliatone/go-formdoc/internal/tagscan"
	"github.com/goliatone/go-formdoc/pkg/schema"
)

// synthesize runs the post-parse normalization pass: documents without
// explicit structure still become full models, so the rest of the pipeline
// never special-cases "no schema" input. Bare checkbox markers collect into
// one implicit checkboxes field; missing form/group wrappers are invented
// around whatever content exists.
func (p *parser) synthesize() error {
	if len(p.bare) > 0 {
		if err := p.synthesizeChecklist(); err != nil {
			return err
		}
	}

	if p.form == nil {
		return nil
	}
	if p.form.Synthesized {
		p.form.ID = p.uniqueID("form")
		if p.form.Title == "" {
			p.form.Title = p.doc.Title
		}
	}
	for _, group := range p.form.Groups {
		if group.Synthesized && group.ID == "" {
			group.ID = p.uniqueID("main")
		}
	}
	return nil
}

func (p *parser) synthesizeChecklist() error {
	mode, err := inferMode(p.bare)
	if err != nil {
		return err
	}

	field := &schema.Field{
		Kind:        schema.KindCheckboxes,
		Mode:        mode,
		Required:    true,
		Priority:    schema.DefaultPriority,
		Synthesized: true,
	}

	seen := make(map[string]struct{})
	var checks schema.ChecksValue
	for _, marker := range p.bare {
		id := marker.OptionID
		if id == "" {
			id = uniqueOption(seen, tagscan.Slug(marker.Label))
		} else if _, dup := seen[id]; dup {
			return errorf(0, "checklist declares option %q twice", id)
		}
		seen[id] = struct{}{}
		field.Options = append(field.Options, &schema.Option{ID: id, Label: marker.Label})

		mark := schema.Mark(marker.Mark)
		if !mode.Allows(mark) {
			return errorf(0, "checklist marker %q is not legal in %s mode", marker.Mark, mode)
		}
		if mark.Resolved() {
			if checks == nil {
				checks = make(schema.ChecksValue)
			}
			checks[id] = mark
		}
	}

	if checks != nil {
		field.Response = schema.Response{State: schema.StateAnswered, Value: checks}
	} else {
		field.Response = schema.Response{State: schema.StateUnanswered}
	}

	if p.form == nil {
		p.form = &schema.Form{Synthesized: true}
		p.doc.Form = p.form
	}
	var group *schema.Group
	if n := len(p.form.Groups); n > 0 {
		group = p.form.Groups[n-1]
	} else {
		group = &schema.Group{Synthesized: true}
		p.form.Groups = append(p.form.Groups, group)
	}
	field.ID = p.uniqueID("checklist")
	group.Fields = append(group.Fields, field)
	return nil
}

// inferMode picks the checkbox mode that covers every bare marker. Mixing
// yes/no markers with progress markers has no single home, so it fails.
func inferMode(markers []*tagscan.Marker) (schema.CheckboxMode, error) {
	hasYN := false
	hasMulti := false
	for _, marker := range markers {
		switch schema.Mark(marker.Mark) {
		case schema.MarkYes, schema.MarkNo:
			hasYN = true
		case schema.MarkPartial, schema.MarkDismissed, schema.MarkUnknown:
			hasMulti = true
		case schema.MarkBlank, schema.MarkChecked:
		default:
			return "", errorf(0, "unknown checklist marker %q", marker.Mark)
		}
	}
	switch {
	case hasYN && hasMulti:
		return "", errorf(0, "checklist mixes yes/no and progress markers")
	case hasYN:
		// MarkChecked is not legal in explicit mode.
		for _, marker := range markers {
			if schema.Mark(marker.Mark) == schema.MarkChecked {
				return "", errorf(0, "checklist mixes yes/no and checked markers")
			}
		}
		return schema.ModeExplicit, nil
	case hasMulti:
		return schema.ModeMulti, nil
	default:
		return schema.ModeSimple, nil
	}
}

// uniqueID returns base, or base-2, base-3, ... until the id is unclaimed,
// then claims it.
func (p *parser) uniqueID(base string) string {
	id := base
	for n := 2; ; n++ {
		if _, taken := p.idLines[id]; !taken {
			break
		}
		id = fmt.Sprintf("%s-%d", base, n)
	}
	p.idLines[id] = 0
	return id
}

func uniqueOption(seen map[string]struct{}, base string) string {
	id := base
	for n := 2; ; n++ {
		if _, taken := seen[id]; !taken {
			return id
		}
		id = fmt.Sprintf("%s-%d", base, n)
	}
}
