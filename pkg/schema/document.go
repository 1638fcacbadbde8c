package schema

import (
	"fmt"
)

// TagSyntax records which of the two interchangeable tag flavors a document
// was authored in. The serializer emits the same flavor back.
type TagSyntax string

const (
	SyntaxBracket TagSyntax = "bracket"
	SyntaxComment TagSyntax = "comment"
)

// Document is the parsed in-memory model: front matter configuration, one
// form tree, and any notes. It is constructed once by the parser, mutated
// only through the patch engine, and read by the inspector, serializer, and
// exporters. A document belongs to exactly one session and is not safe for
// concurrent mutation.
type Document struct {
	Version      string
	Title        string
	Description  string
	Roles        []string
	Instructions map[string]string
	Mode         string
	Syntax       TagSyntax

	// Preamble is prose that appears between the front matter and the form
	// tag. Preserved through serialization.
	Preamble string

	Form  *Form
	Notes []*Note

	index map[string]node
	order map[string]int
}

type node struct {
	form  *Form
	group *Group
	field *Field
}

// DuplicateIDError reports a form/group/field id declared more than once.
type DuplicateIDError struct {
	ID string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("schema: duplicate id %q", e.ID)
}

// Seal builds the id index and traversal order for the current tree. The
// parser calls it once after construction; ids are global across the whole
// document, so a collision anywhere fails the document.
func (d *Document) Seal() error {
	d.index = make(map[string]node)
	d.order = make(map[string]int)

	next := 0
	track := func(id string, n node) error {
		if id == "" {
			return fmt.Errorf("schema: node with empty id")
		}
		if _, exists := d.index[id]; exists {
			return &DuplicateIDError{ID: id}
		}
		d.index[id] = n
		d.order[id] = next
		next++
		return nil
	}

	if d.Form == nil {
		return fmt.Errorf("schema: document has no form")
	}
	if err := track(d.Form.ID, node{form: d.Form}); err != nil {
		return err
	}
	for _, group := range d.Form.Groups {
		if err := track(group.ID, node{group: group}); err != nil {
			return err
		}
		for _, field := range group.Fields {
			if err := track(field.ID, node{field: field}); err != nil {
				return err
			}
			seen := make(map[string]struct{}, len(field.Options))
			for _, opt := range field.Options {
				if opt.ID == "" {
					return fmt.Errorf("schema: field %q has an option with empty id", field.ID)
				}
				if _, dup := seen[opt.ID]; dup {
					return fmt.Errorf("schema: field %q declares option %q twice", field.ID, opt.ID)
				}
				seen[opt.ID] = struct{}{}
			}
		}
	}
	return nil
}

// Field returns the field with the given id.
func (d *Document) Field(id string) (*Field, bool) {
	n, ok := d.index[id]
	if !ok || n.field == nil {
		return nil, false
	}
	return n.field, true
}

// Group returns the group with the given id.
func (d *Document) Group(id string) (*Group, bool) {
	n, ok := d.index[id]
	if !ok || n.group == nil {
		return nil, false
	}
	return n.group, true
}

// Has reports whether any form, group, or field carries the id.
func (d *Document) Has(id string) bool {
	_, ok := d.index[id]
	return ok
}

// Fields returns every field in declaration order.
func (d *Document) Fields() []*Field {
	if d.Form == nil {
		return nil
	}
	var fields []*Field
	for _, group := range d.Form.Groups {
		fields = append(fields, group.Fields...)
	}
	return fields
}

// DeclarationOrder returns the traversal ordinal recorded for the id at seal
// time. Unknown ids sort last.
func (d *Document) DeclarationOrder(id string) int {
	if ord, ok := d.order[id]; ok {
		return ord
	}
	return int(^uint(0) >> 1)
}

// ResolveRef checks a note reference against the tree: either a bare node id
// or "field-id#option-id".
func (d *Document) ResolveRef(ref string) bool {
	nodeID, optionID := SplitRef(ref)
	n, ok := d.index[nodeID]
	if !ok {
		return false
	}
	if optionID == "" {
		return true
	}
	if n.field == nil {
		return false
	}
	_, ok = n.field.Option(optionID)
	return ok
}

// Note returns the note with the given id.
func (d *Document) Note(id string) (*Note, bool) {
	for _, note := range d.Notes {
		if note.ID == id {
			return note, true
		}
	}
	return nil, false
}

// AddNote appends a note, generating an id when the note has none.
func (d *Document) AddNote(note *Note) *Note {
	if note.ID == "" {
		note.ID = NewNoteID()
	}
	d.Notes = append(d.Notes, note)
	return note
}

// RemoveNote deletes the note with the given id, reporting whether it existed.
func (d *Document) RemoveNote(id string) bool {
	for i, note := range d.Notes {
		if note.ID == id {
			d.Notes = append(d.Notes[:i], d.Notes[i+1:]...)
			return true
		}
	}
	return false
}
