package patch

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-formdoc/internal/tagscan"
	"github.com/goliatone/go-formdoc/pkg/inspect"
	"github.com/goliatone/go-formdoc/pkg/parser"
	"github.com/goliatone/go-formdoc/pkg/schema"
)

// Apply runs a batch against the document. Each patch is atomic: it is
// validated completely before the model is touched, and a refused patch is
// recorded as a rejection while the rest of the batch still runs. The batch
// itself is not transactional; partial progress is the point, since agents
// resubmit only what was refused.
func Apply(doc *schema.Document, patches []Patch) Result {
	var res Result
	for i, p := range patches {
		noteID, rej := applyOne(doc, p)
		if rej != nil {
			rej.Index = i
			rej.Op = p.Op
			rej.Field = p.Field
			res.Rejections = append(res.Rejections, rej)
			continue
		}
		res.Applied++
		if noteID != "" {
			res.NoteIDs = append(res.NoteIDs, noteID)
		}
	}
	res.Progress = inspect.Measure(doc)
	return res
}

func applyOne(doc *schema.Document, p Patch) (string, *Rejection) {
	switch p.Op {
	case OpAddNote:
		return addNote(doc, p)
	case OpRemoveNote:
		return "", removeNote(doc, p)
	}

	if !p.Op.Valid() {
		return "", reject(ReasonUnknownOp, "op %q is not a patch operation", p.Op)
	}

	field, ok := doc.Field(p.Field)
	if !ok {
		return "", reject(ReasonUnknownID, "no field with id %q", p.Field)
	}

	switch p.Op {
	case OpClearField:
		field.Response = schema.Response{State: schema.StateUnanswered}
		return "", nil
	case OpSkipField:
		if field.Required {
			return "", reject(ReasonNotAllowed, "field %q is required and cannot be skipped", field.ID)
		}
		if strings.TrimSpace(p.By) == "" {
			return "", reject(ReasonInvalidValue, "skip_field requires by to name who skipped")
		}
		field.Response = schema.Response{State: schema.StateSkipped, Reason: p.Reason, By: p.By}
		return "", nil
	case OpAbortField:
		field.Response = schema.Response{State: schema.StateAborted, Reason: p.Reason, By: p.By}
		return "", nil
	}

	if want := setKind(p.Op); want != field.Kind {
		return "", reject(ReasonKindMismatch, "%s does not apply to field %q of kind %s", p.Op, field.ID, field.Kind)
	}

	value, rej := buildValue(field, p)
	if rej != nil {
		return "", rej
	}
	if value == nil {
		// A checkbox merge that cleared every mark resets the field.
		field.Response = schema.Response{State: schema.StateUnanswered}
		return "", nil
	}
	if problems := inspect.Problems(field, value); len(problems) > 0 {
		return "", reject(ReasonConstraintViolation, "%s", strings.Join(problems, "; "))
	}
	field.Response = schema.Response{State: schema.StateAnswered, Value: value}
	return "", nil
}

func setKind(op Op) schema.FieldKind {
	switch op {
	case OpSetString:
		return schema.KindString
	case OpSetNumber:
		return schema.KindNumber
	case OpSetDate:
		return schema.KindDate
	case OpSetYear:
		return schema.KindYear
	case OpSetStringList:
		return schema.KindStringList
	case OpSetURLList:
		return schema.KindURLList
	case OpSetSingleSelect:
		return schema.KindSingleSelect
	case OpSetMultiSelect:
		return schema.KindMultiSelect
	case OpSetCheckboxes:
		return schema.KindCheckboxes
	case OpSetTable:
		return schema.KindTable
	}
	return ""
}

func buildValue(field *schema.Field, p Patch) (schema.Value, *Rejection) {
	switch p.Op {
	case OpSetString:
		return schema.StringValue(p.Value), nil

	case OpSetNumber:
		n, err := strconv.ParseFloat(strings.TrimSpace(p.Value), 64)
		if err != nil {
			return nil, reject(ReasonInvalidValue, "%q is not a number", p.Value)
		}
		return schema.NumberValue(n), nil

	case OpSetDate:
		t, err := time.Parse(schema.DateLayout, strings.TrimSpace(p.Value))
		if err != nil {
			return nil, reject(ReasonInvalidValue, "%q is not a %s date", p.Value, schema.DateLayout)
		}
		return schema.DateValue(t), nil

	case OpSetYear:
		y, err := strconv.Atoi(strings.TrimSpace(p.Value))
		if err != nil || y < 0 || y > 9999 {
			return nil, reject(ReasonInvalidValue, "%q is not a year", p.Value)
		}
		return schema.YearValue(y), nil

	case OpSetStringList, OpSetURLList:
		items, rej := listItems(p.Values)
		if rej != nil {
			return nil, rej
		}
		if p.Op == OpSetURLList {
			for _, item := range items {
				if !parser.ValidURL(item) {
					return nil, reject(ReasonInvalidValue, "%q is not an absolute URL", item)
				}
			}
		}
		return schema.ListValue(items), nil

	case OpSetSingleSelect:
		if p.Value == "" {
			return nil, reject(ReasonInvalidValue, "single select takes one option id in value")
		}
		return normalizeSelection(field, []string{p.Value})

	case OpSetMultiSelect:
		if len(p.Values) == 0 {
			return nil, reject(ReasonInvalidValue, "multi select takes option ids in values")
		}
		return normalizeSelection(field, p.Values)

	case OpSetCheckboxes:
		return mergeChecks(field, p.Checks)

	case OpSetTable:
		return tableValue(field, p.Rows)
	}
	return nil, reject(ReasonUnknownOp, "op %q is not a patch operation", p.Op)
}

// listItems normalizes list payloads to one trimmed item per entry. Items
// must survive the one-item-per-line inline form, so embedded newlines and
// blank entries are refused instead of silently mangled.
func listItems(raw []string) ([]string, *Rejection) {
	items := make([]string, 0, len(raw))
	for _, item := range raw {
		item = strings.TrimSpace(item)
		if item == "" {
			return nil, reject(ReasonInvalidValue, "list items must not be empty")
		}
		if strings.ContainsAny(item, "\n\r") {
			return nil, reject(ReasonInvalidValue, "list item %q spans multiple lines", item)
		}
		items = append(items, item)
	}
	return items, nil
}

// normalizeSelection validates option membership and reorders the chosen ids
// into option declaration order so repeated applies are byte-stable.
func normalizeSelection(field *schema.Field, ids []string) (schema.Value, *Rejection) {
	chosen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, exists := field.Option(id); !exists {
			return nil, reject(ReasonConstraintViolation, "field %q has no option %q", field.ID, id)
		}
		if chosen[id] {
			return nil, reject(ReasonInvalidValue, "option %q listed twice", id)
		}
		chosen[id] = true
	}
	ordered := make(schema.SelectionValue, 0, len(ids))
	for _, opt := range field.Options {
		if chosen[opt.ID] {
			ordered = append(ordered, opt.ID)
		}
	}
	return ordered, nil
}

// mergeChecks folds the patch's marks into the field's current marks. Options
// the patch does not mention keep their state; a blank mark clears one. The
// merged result replaces the response, so validation sees the full picture.
func mergeChecks(field *schema.Field, updates map[string]string) (schema.Value, *Rejection) {
	if len(updates) == 0 {
		return nil, reject(ReasonInvalidValue, "set_checkboxes takes marks in checks")
	}

	merged := make(schema.ChecksValue)
	if current, ok := field.Response.Value.(schema.ChecksValue); ok && field.Response.Answered() {
		for id, mark := range current {
			merged[id] = mark
		}
	}

	mode := field.EffectiveMode()
	for id, raw := range updates {
		if _, exists := field.Option(id); !exists {
			return nil, reject(ReasonConstraintViolation, "field %q has no option %q", field.ID, id)
		}
		mark := schema.Mark(raw)
		if raw == "" {
			mark = schema.MarkBlank
		}
		if !mode.Allows(mark) {
			return nil, reject(ReasonConstraintViolation, "mark %q is not legal in %s mode", raw, mode)
		}
		if mark.Resolved() {
			merged[id] = mark
		} else {
			delete(merged, id)
		}
	}

	if len(merged) == 0 {
		return nil, nil
	}
	return merged, nil
}

func tableValue(field *schema.Field, raw []map[string]string) (schema.Value, *Rejection) {
	rows := make(schema.TableValue, 0, len(raw))
	for i, cells := range raw {
		for key := range cells {
			if _, exists := field.Column(key); !exists {
				return nil, reject(ReasonInvalidValue, "row %d names unknown column %q", i+1, key)
			}
		}
		row := make(schema.Row, len(field.Columns))
		for _, col := range field.Columns {
			// Cells are trimmed on parse; trim here too so a patched value
			// reserializes to the same bytes it parsed from.
			cell := strings.TrimSpace(cells[col.ID])
			if strings.ContainsAny(cell, "\n\r") {
				return nil, reject(ReasonInvalidValue, "row %d column %q spans multiple lines", i+1, col.ID)
			}
			if err := parser.CheckCell(col.Kind, cell); err != nil {
				return nil, reject(ReasonInvalidValue, "row %d column %q: %v", i+1, col.ID, err)
			}
			row[col.ID] = cell
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func addNote(doc *schema.Document, p Patch) (string, *Rejection) {
	if p.Ref == "" || !doc.ResolveRef(p.Ref) {
		return "", reject(ReasonUnknownID, "ref %q does not resolve", p.Ref)
	}
	text := strings.TrimSpace(p.Text)
	if text == "" {
		return "", reject(ReasonInvalidValue, "note text must not be empty")
	}
	// Structural tag lines inside a note would reparse as tags and corrupt
	// the round trip, so they are refused outright.
	for _, line := range strings.Split(text, "\n") {
		if _, isTag, _ := tagscan.ParseTag(line); isTag {
			return "", reject(ReasonInvalidValue, "note text contains a structural tag line")
		}
	}
	if p.Note != "" {
		// An explicit id pins the note for deterministic replay.
		if _, exists := doc.Note(p.Note); exists {
			return "", reject(ReasonInvalidValue, "note id %q already exists", p.Note)
		}
	}
	note := doc.AddNote(&schema.Note{ID: p.Note, Ref: p.Ref, By: p.By, Text: text})
	if p.Note != "" {
		// Pinned ids are already in the patch; only generated ids need to be
		// reported back so replay can pin them.
		return "", nil
	}
	return note.ID, nil
}

func removeNote(doc *schema.Document, p Patch) *Rejection {
	if p.Note == "" {
		return reject(ReasonInvalidValue, "remove_note takes the note id in note")
	}
	if !doc.RemoveNote(p.Note) {
		return reject(ReasonUnknownID, "no note with id %q", p.Note)
	}
	return nil
}

func reject(reason RejectReason, format string, args ...any) *Rejection {
	return &Rejection{Reason: reason, Message: fmt.Sprintf(format, args...)}
}
