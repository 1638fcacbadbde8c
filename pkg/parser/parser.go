// Package parser turns formdoc text into the in-memory document model. It is
// strict: structural problems, duplicate ids, unknown kinds, and values that
// cannot be coerced to their declared kind all fail the parse with a
// ParseError carrying the offending line.
package parser

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-formdoc/internal/tagscan"
	"github.com/goliatone/go-formdoc/pkg/schema"
)

// Parse decodes document text into a sealed document model.
func Parse(input []byte) (*schema.Document, error) {
	text := strings.ReplaceAll(string(input), "\r\n", "\n")
	lines := strings.Split(text, "\n")

	doc := &schema.Document{Syntax: schema.SyntaxBracket}

	payload, body, bodyStart, err := splitFrontMatter(lines)
	if err != nil {
		return nil, err
	}
	if err := decodeFrontMatter(doc, payload); err != nil {
		return nil, err
	}

	p := &parser{
		doc:     doc,
		idLines: make(map[string]int),
	}
	if err := p.run(body, bodyStart); err != nil {
		return nil, err
	}
	if err := p.finish(); err != nil {
		return nil, err
	}
	return doc, nil
}

type parser struct {
	doc *schema.Document

	form       *schema.Form
	formLine   int
	formClosed bool

	group     *schema.Group
	groupLine int

	field *fieldState
	note  *noteState

	// prose builders per open context
	preamble strings.Builder
	formBody strings.Builder
	grpBody  strings.Builder

	// bare checkbox markers found outside any field
	bare []*tagscan.Marker

	syntaxSet bool
	idLines   map[string]int
}

type fieldState struct {
	field   *schema.Field
	line    int
	body    strings.Builder
	fence   *fenceBlock
	markers []*tagscan.Marker
	state   string
	reason  string
	by      string
}

type fenceBlock struct {
	content string
	raw     bool
	line    int
}

type noteState struct {
	note *schema.Note
	line int
	text strings.Builder
}

func (p *parser) run(lines []string, start int) error {
	i := 0
	for i < len(lines) {
		lineNo := start + i
		line := lines[i]

		// Fenced blocks are inert: inside a field with a value info string
		// they become the field value, anywhere else they are literal prose.
		if fence, ok := tagscan.ParseFenceOpen(line); ok && p.note == nil {
			end := i + 1
			for end < len(lines) && !fence.Closes(lines[end]) {
				end++
			}
			if end == len(lines) {
				return errorf(lineNo, "fenced block is never closed")
			}
			content := strings.Join(lines[i+1:end], "\n")
			if p.field != nil && isValueInfo(fence.Info) {
				if p.field.fence != nil {
					return errorf(lineNo, "field %q has more than one value block", p.field.field.ID)
				}
				p.field.fence = &fenceBlock{
					content: content,
					raw:     fence.Info == "value raw",
					line:    lineNo,
				}
			} else {
				for _, raw := range lines[i : end+1] {
					p.prose(raw)
				}
			}
			i = end + 1
			continue
		}

		tag, isTag, err := tagscan.ParseTag(line)
		if isTag && err != nil {
			return wrapf(lineNo, err, "malformed tag")
		}
		if isTag {
			if err := p.handleTag(tag, lineNo); err != nil {
				return err
			}
			i++
			continue
		}

		if marker, ok := tagscan.ParseMarker(line); ok && p.note == nil {
			if err := p.handleMarker(marker, lineNo); err != nil {
				return err
			}
			i++
			continue
		}

		p.prose(line)
		i++
	}
	return nil
}

func isValueInfo(info string) bool {
	return info == "value" || info == "value raw"
}

func (p *parser) prose(line string) {
	var target *strings.Builder
	switch {
	case p.note != nil:
		target = &p.note.text
	case p.field != nil:
		target = &p.field.body
	case p.group != nil:
		target = &p.grpBody
	case p.form != nil && !p.formClosed:
		target = &p.formBody
	default:
		target = &p.preamble
	}
	target.WriteString(line)
	target.WriteByte('\n')
}

func (p *parser) handleMarker(marker *tagscan.Marker, lineNo int) error {
	if p.field == nil {
		p.bare = append(p.bare, marker)
		return nil
	}
	field := p.field.field
	if !field.Kind.Selection() {
		return errorf(lineNo, "field %q of kind %s does not take checkbox markers", field.ID, field.Kind)
	}
	if err := checkMark(field, schema.Mark(marker.Mark)); err != nil {
		return wrapf(lineNo, err, "field %q", field.ID)
	}
	p.field.markers = append(p.field.markers, marker)
	return nil
}

func checkMark(field *schema.Field, mark schema.Mark) error {
	mode := schema.ModeSimple
	if field.Kind == schema.KindCheckboxes {
		mode = field.EffectiveMode()
	}
	if !mode.Allows(mark) {
		return fmt.Errorf("marker %q is not legal in %s mode", string(mark), mode)
	}
	return nil
}

func (p *parser) handleTag(tag *tagscan.Tag, lineNo int) error {
	if !p.syntaxSet {
		p.doc.Syntax = schema.TagSyntax(tag.Syntax)
		p.syntaxSet = true
	}

	if p.note != nil && !(tag.Name == "note" && tag.Closing) {
		return errorf(lineNo, "unexpected tag inside note")
	}

	switch tag.Name {
	case "form":
		if tag.Closing {
			return p.closeForm(lineNo)
		}
		return p.openForm(tag, lineNo)
	case "group":
		if tag.Closing {
			return p.closeGroup(lineNo)
		}
		return p.openGroup(tag, lineNo)
	case "field":
		if tag.Closing {
			return p.closeField(lineNo)
		}
		return p.openField(tag, lineNo)
	case "note":
		if tag.Closing {
			return p.closeNote(lineNo)
		}
		return p.openNote(tag, lineNo)
	default:
		return errorf(lineNo, "unknown tag %q", tag.Name)
	}
}

func (p *parser) claimID(id string, lineNo int) error {
	if prev, exists := p.idLines[id]; exists {
		return errorf(lineNo, "duplicate id %q (first declared on line %d)", id, prev)
	}
	p.idLines[id] = lineNo
	return nil
}

func (p *parser) openForm(tag *tagscan.Tag, lineNo int) error {
	if p.form != nil {
		if p.formClosed {
			return errorf(lineNo, "a document holds exactly one form")
		}
		return errorf(lineNo, "form tags do not nest")
	}
	if p.group != nil || p.field != nil {
		return errorf(lineNo, "form tag must precede groups and fields")
	}
	id, ok := tag.Get("id")
	if !ok || id == "" {
		return errorf(lineNo, "form tag requires an id")
	}
	if err := p.claimID(id, lineNo); err != nil {
		return err
	}
	form := &schema.Form{ID: id}
	for _, attr := range tag.Attrs {
		switch attr.Key {
		case "id":
		case "title":
			form.Title = attr.Value
		default:
			return errorf(lineNo, "form tag does not take attribute %q", attr.Key)
		}
	}
	p.form = form
	p.formLine = lineNo
	p.doc.Form = form
	return nil
}

func (p *parser) closeForm(lineNo int) error {
	if p.form == nil || p.formClosed {
		return errorf(lineNo, "closing form tag without an open form")
	}
	if p.field != nil {
		return errorf(lineNo, "field %q is still open", p.field.field.ID)
	}
	if p.group != nil {
		if !p.group.Synthesized {
			return errorf(lineNo, "group %q is still open", p.group.ID)
		}
		p.group.Body = finishBody(&p.grpBody)
		p.group = nil
	}
	if p.form.Body == "" {
		p.form.Body = finishBody(&p.formBody)
	}
	p.formClosed = true
	return nil
}

func (p *parser) ensureForm(lineNo int) error {
	if p.form == nil {
		p.form = &schema.Form{Synthesized: true}
		p.doc.Form = p.form
		return nil
	}
	if p.formClosed {
		return errorf(lineNo, "content after the closing form tag")
	}
	return nil
}

func (p *parser) openGroup(tag *tagscan.Tag, lineNo int) error {
	if p.field != nil {
		return errorf(lineNo, "group tag inside field %q", p.field.field.ID)
	}
	if p.group != nil {
		if !p.group.Synthesized {
			return errorf(lineNo, "group tags do not nest")
		}
		p.group.Body = finishBody(&p.grpBody)
		p.group = nil
	}
	if err := p.ensureForm(lineNo); err != nil {
		return err
	}
	id, ok := tag.Get("id")
	if !ok || id == "" {
		return errorf(lineNo, "group tag requires an id")
	}
	if err := p.claimID(id, lineNo); err != nil {
		return err
	}
	group := &schema.Group{ID: id}
	for _, attr := range tag.Attrs {
		switch attr.Key {
		case "id":
		case "title":
			group.Title = attr.Value
		default:
			return errorf(lineNo, "group tag does not take attribute %q", attr.Key)
		}
	}
	drained := finishBody(&p.formBody)
	if p.form.Body == "" {
		p.form.Body = drained
	} else if drained != "" {
		// Prose between groups attaches to the group that follows it.
		p.grpBody.WriteString(drained)
		p.grpBody.WriteString("\n\n")
	}
	p.group = group
	p.groupLine = lineNo
	p.form.Groups = append(p.form.Groups, group)
	return nil
}

func (p *parser) closeGroup(lineNo int) error {
	if p.group == nil {
		return errorf(lineNo, "closing group tag without an open group")
	}
	if p.field != nil {
		return errorf(lineNo, "field %q is still open", p.field.field.ID)
	}
	p.group.Body = finishBody(&p.grpBody)
	p.group = nil
	return nil
}

func (p *parser) ensureGroup(lineNo int) error {
	if err := p.ensureForm(lineNo); err != nil {
		return err
	}
	if p.group != nil {
		return nil
	}
	group := &schema.Group{Synthesized: true}
	p.form.Groups = append(p.form.Groups, group)
	p.group = group
	p.groupLine = lineNo
	return nil
}

func (p *parser) openField(tag *tagscan.Tag, lineNo int) error {
	if p.field != nil {
		return errorf(lineNo, "field tags do not nest (field %q is open)", p.field.field.ID)
	}
	if err := p.ensureGroup(lineNo); err != nil {
		return err
	}
	fs, err := fieldFromTag(tag, lineNo)
	if err != nil {
		return err
	}
	if err := p.claimID(fs.field.ID, lineNo); err != nil {
		return err
	}
	p.field = fs
	return nil
}

func (p *parser) closeField(lineNo int) error {
	if p.field == nil {
		return errorf(lineNo, "closing field tag without an open field")
	}
	fs := p.field
	fs.field.Body = finishBody(&fs.body)
	if err := buildResponse(fs); err != nil {
		return err
	}
	p.group.Fields = append(p.group.Fields, fs.field)
	p.field = nil
	return nil
}

func (p *parser) openNote(tag *tagscan.Tag, lineNo int) error {
	note := &schema.Note{}
	for _, attr := range tag.Attrs {
		switch attr.Key {
		case "id":
			note.ID = attr.Value
		case "ref":
			note.Ref = attr.Value
		case "by":
			note.By = attr.Value
		default:
			return errorf(lineNo, "note tag does not take attribute %q", attr.Key)
		}
	}
	if note.Ref == "" {
		return errorf(lineNo, "note tag requires a ref")
	}
	p.note = &noteState{note: note, line: lineNo}
	return nil
}

func (p *parser) closeNote(lineNo int) error {
	if p.note == nil {
		return errorf(lineNo, "closing note tag without an open note")
	}
	p.note.note.Text = finishBody(&p.note.text)
	p.doc.AddNote(p.note.note)
	p.note = nil
	return nil
}

func (p *parser) finish() error {
	if p.field != nil {
		return errorf(p.field.line, "field %q is never closed", p.field.field.ID)
	}
	if p.note != nil {
		return errorf(p.note.line, "note is never closed")
	}
	if p.group != nil {
		if !p.group.Synthesized {
			return errorf(p.groupLine, "group %q is never closed", p.group.ID)
		}
		p.group.Body = finishBody(&p.grpBody)
	}
	if p.form != nil && !p.formClosed {
		if !p.form.Synthesized {
			return errorf(p.formLine, "form %q is never closed", p.form.ID)
		}
		if p.form.Body == "" {
			p.form.Body = finishBody(&p.formBody)
		}
	}

	if err := p.synthesize(); err != nil {
		return err
	}
	if p.doc.Form == nil {
		return errorf(0, "document declares no form structure")
	}

	p.doc.Preamble = finishBody(&p.preamble)

	if err := p.doc.Seal(); err != nil {
		return wrapf(0, err, "seal document")
	}

	for _, note := range p.doc.Notes {
		if !p.doc.ResolveRef(note.Ref) {
			return errorf(0, "note %q references unknown id %q", note.ID, note.Ref)
		}
	}
	return nil
}

func finishBody(b *strings.Builder) string {
	out := strings.TrimSpace(b.String())
	b.Reset()
	return out
}
