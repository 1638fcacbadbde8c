package parser

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-formdoc/internal/tagscan"
	"github.com/goliatone/go-formdoc/pkg/schema"
)

func fieldFromTag(tag *tagscan.Tag, lineNo int) (*fieldState, error) {
	id, ok := tag.Get("id")
	if !ok || id == "" {
		return nil, errorf(lineNo, "field tag requires an id")
	}
	kindRaw, ok := tag.Get("kind")
	if !ok {
		return nil, errorf(lineNo, "field %q declares no kind", id)
	}
	kind := schema.FieldKind(kindRaw)
	if !kind.Valid() {
		return nil, errorf(lineNo, "field %q has unknown kind %q", id, kindRaw)
	}

	field := &schema.Field{ID: id, Kind: kind, Priority: schema.DefaultPriority}
	fs := &fieldState{field: field, line: lineNo}

	for _, attr := range tag.Attrs {
		switch attr.Key {
		case "id", "kind":
		case "title":
			field.Title = attr.Value
		case "required":
			if !attr.Bare {
				return nil, errorf(lineNo, "field %q: required is a bare attribute", id)
			}
			field.Required = true
		case "role":
			field.Role = attr.Value
		case "priority":
			n, err := strconv.Atoi(attr.Value)
			if err != nil {
				return nil, wrapf(lineNo, err, "field %q: priority", id)
			}
			field.Priority = n
		case "pattern":
			if kind != schema.KindString && !kind.List() {
				return nil, errorf(lineNo, "field %q: pattern does not apply to kind %s", id, kind)
			}
			field.Pattern = attr.Value
		case "min", "max":
			if kind != schema.KindNumber && kind != schema.KindYear {
				return nil, errorf(lineNo, "field %q: %s does not apply to kind %s", id, attr.Key, kind)
			}
			v, err := strconv.ParseFloat(attr.Value, 64)
			if err != nil {
				return nil, wrapf(lineNo, err, "field %q: %s", id, attr.Key)
			}
			if attr.Key == "min" {
				field.Min = &v
			} else {
				field.Max = &v
			}
		case "min_items", "max_items":
			if !kind.List() && kind != schema.KindTable && kind != schema.KindMultiSelect {
				return nil, errorf(lineNo, "field %q: %s does not apply to kind %s", id, attr.Key, kind)
			}
			n, err := strconv.Atoi(attr.Value)
			if err != nil || n < 0 {
				return nil, errorf(lineNo, "field %q: %s must be a non-negative integer", id, attr.Key)
			}
			if attr.Key == "min_items" {
				field.MinItems = &n
			} else {
				field.MaxItems = &n
			}
		case "mode":
			if kind != schema.KindCheckboxes {
				return nil, errorf(lineNo, "field %q: mode applies to checkboxes fields only", id)
			}
			mode := schema.CheckboxMode(attr.Value)
			if !mode.Valid() {
				return nil, errorf(lineNo, "field %q: unknown checkbox mode %q", id, attr.Value)
			}
			field.Mode = mode
		case "columns":
			if kind != schema.KindTable {
				return nil, errorf(lineNo, "field %q: columns applies to table fields only", id)
			}
			cols, err := parseColumns(attr.Value)
			if err != nil {
				return nil, wrapf(lineNo, err, "field %q", id)
			}
			field.Columns = cols
		case "state":
			if attr.Value != string(schema.StateSkipped) && attr.Value != string(schema.StateAborted) {
				return nil, errorf(lineNo, "field %q: state attribute must be skipped or aborted", id)
			}
			fs.state = attr.Value
		case "reason":
			fs.reason = attr.Value
		case "by":
			fs.by = attr.Value
		default:
			return nil, errorf(lineNo, "field tag does not take attribute %q", attr.Key)
		}
	}

	if (fs.reason != "" || fs.by != "") && fs.state == "" {
		return nil, errorf(lineNo, "field %q: reason/by require a state attribute", id)
	}
	if kind == schema.KindTable && len(field.Columns) == 0 {
		return nil, errorf(lineNo, "field %q: table fields declare columns", id)
	}
	return fs, nil
}

func parseColumns(spec string) ([]schema.Column, error) {
	var cols []schema.Column
	seen := make(map[string]struct{})
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, kindRaw, found := strings.Cut(part, ":")
		if !found || id == "" {
			return nil, errorf(0, "column %q must be id:kind", part)
		}
		kind := schema.ColumnKind(kindRaw)
		if !kind.Valid() {
			return nil, errorf(0, "column %q has unknown kind %q", id, kindRaw)
		}
		if _, dup := seen[id]; dup {
			return nil, errorf(0, "column %q declared twice", id)
		}
		seen[id] = struct{}{}
		cols = append(cols, schema.Column{ID: id, Kind: kind})
	}
	if len(cols) == 0 {
		return nil, errorf(0, "columns attribute is empty")
	}
	return cols, nil
}

// buildResponse converts the collected inline representation (fence content
// or option markers) into the field's options and response.
func buildResponse(fs *fieldState) error {
	field := fs.field

	if field.Kind.Selection() {
		if fs.fence != nil {
			return errorf(fs.fence.line, "field %q of kind %s does not take a value block", field.ID, field.Kind)
		}
		return buildSelectionResponse(fs)
	}

	if len(fs.markers) > 0 {
		return errorf(fs.line, "field %q of kind %s does not take checkbox markers", field.ID, field.Kind)
	}

	if fs.state != "" {
		if fs.fence != nil {
			return errorf(fs.fence.line, "field %q is %s and cannot carry a value", field.ID, fs.state)
		}
		field.Response = schema.Response{
			State:  schema.ResponseState(fs.state),
			Reason: fs.reason,
			By:     fs.by,
		}
		return nil
	}

	if fs.fence == nil {
		field.Response = schema.Response{State: schema.StateUnanswered}
		return nil
	}

	value, err := parseFencedValue(field, fs.fence)
	if err != nil {
		return err
	}
	field.Response = schema.Response{State: schema.StateAnswered, Value: value}
	return nil
}

func buildSelectionResponse(fs *fieldState) error {
	field := fs.field

	seen := make(map[string]struct{})
	var checks schema.ChecksValue
	var selected schema.SelectionValue

	for _, marker := range fs.markers {
		id := marker.OptionID
		if id == "" {
			id = tagscan.Slug(marker.Label)
		}
		if _, dup := seen[id]; dup {
			return errorf(fs.line, "field %q declares option %q twice", field.ID, id)
		}
		seen[id] = struct{}{}
		field.Options = append(field.Options, &schema.Option{ID: id, Label: marker.Label})

		mark := schema.Mark(marker.Mark)
		switch field.Kind {
		case schema.KindCheckboxes:
			if mark.Resolved() {
				if checks == nil {
					checks = make(schema.ChecksValue)
				}
				checks[id] = mark
			}
		default: // single_select, multi_select
			if mark == schema.MarkChecked {
				selected = append(selected, id)
			}
		}
	}

	if fs.state != "" {
		if len(checks) > 0 || len(selected) > 0 {
			return errorf(fs.line, "field %q is %s and cannot carry checked markers", field.ID, fs.state)
		}
		field.Response = schema.Response{
			State:  schema.ResponseState(fs.state),
			Reason: fs.reason,
			By:     fs.by,
		}
		return nil
	}

	switch {
	case field.Kind == schema.KindCheckboxes && len(checks) > 0:
		field.Response = schema.Response{State: schema.StateAnswered, Value: checks}
	case field.Kind != schema.KindCheckboxes && len(selected) > 0:
		field.Response = schema.Response{State: schema.StateAnswered, Value: selected}
	default:
		field.Response = schema.Response{State: schema.StateUnanswered}
	}
	return nil
}

func parseFencedValue(field *schema.Field, fence *fenceBlock) (schema.Value, error) {
	content := fence.content
	switch field.Kind {
	case schema.KindString:
		return schema.StringValue(content), nil
	case schema.KindNumber:
		n, err := strconv.ParseFloat(strings.TrimSpace(content), 64)
		if err != nil {
			return nil, errorf(fence.line, "field %q: %q is not a number", field.ID, strings.TrimSpace(content))
		}
		return schema.NumberValue(n), nil
	case schema.KindDate:
		t, err := time.Parse(schema.DateLayout, strings.TrimSpace(content))
		if err != nil {
			return nil, errorf(fence.line, "field %q: %q is not a %s date", field.ID, strings.TrimSpace(content), schema.DateLayout)
		}
		return schema.DateValue(t), nil
	case schema.KindYear:
		y, err := strconv.Atoi(strings.TrimSpace(content))
		if err != nil || y < 0 || y > 9999 {
			return nil, errorf(fence.line, "field %q: %q is not a year", field.ID, strings.TrimSpace(content))
		}
		return schema.YearValue(y), nil
	case schema.KindStringList:
		return schema.ListValue(valueLines(content)), nil
	case schema.KindURLList:
		items := valueLines(content)
		for _, item := range items {
			if !ValidURL(item) {
				return nil, errorf(fence.line, "field %q: %q is not an absolute URL", field.ID, item)
			}
		}
		return schema.ListValue(items), nil
	case schema.KindTable:
		return parseTableValue(field, fence)
	case schema.KindSingleSelect, schema.KindMultiSelect, schema.KindCheckboxes:
		return nil, errorf(fence.line, "field %q of kind %s does not take a value block", field.ID, field.Kind)
	default:
		return nil, errorf(fence.line, "field %q has unknown kind %q", field.ID, field.Kind)
	}
}

func valueLines(content string) []string {
	var items []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			items = append(items, line)
		}
	}
	return items
}

func parseTableValue(field *schema.Field, fence *fenceBlock) (schema.Value, error) {
	lines := valueLines(fence.content)
	if len(lines) == 0 {
		return schema.TableValue(nil), nil
	}
	header := tagscan.SplitRow(lines[0])
	declared := field.ColumnIDs()
	if len(header) != len(declared) {
		return nil, errorf(fence.line, "field %q: table header has %d columns, schema declares %d", field.ID, len(header), len(declared))
	}
	for i, id := range declared {
		if header[i] != id {
			return nil, errorf(fence.line, "field %q: table header column %d is %q, want %q", field.ID, i+1, header[i], id)
		}
	}

	rows := make(schema.TableValue, 0, len(lines)-1)
	for _, line := range lines[1:] {
		cells := tagscan.SplitRow(line)
		if len(cells) != len(declared) {
			return nil, errorf(fence.line, "field %q: table row has %d cells, want %d", field.ID, len(cells), len(declared))
		}
		row := make(schema.Row, len(declared))
		for i, col := range field.Columns {
			cell := cells[i]
			if err := CheckCell(col.Kind, cell); err != nil {
				return nil, wrapf(fence.line, err, "field %q: column %q", field.ID, col.ID)
			}
			row[col.ID] = cell
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// CheckCell validates a cell's text against its column kind. The patch engine
// reuses it when validating table patches.
func CheckCell(kind schema.ColumnKind, cell string) error {
	switch kind {
	case schema.ColumnString:
		return nil
	case schema.ColumnNumber:
		if _, err := strconv.ParseFloat(cell, 64); err != nil {
			return fmt.Errorf("%q is not a number", cell)
		}
		return nil
	case schema.ColumnDate:
		if _, err := time.Parse(schema.DateLayout, cell); err != nil {
			return fmt.Errorf("%q is not a %s date", cell, schema.DateLayout)
		}
		return nil
	case schema.ColumnYear:
		if y, err := strconv.Atoi(cell); err != nil || y < 0 || y > 9999 {
			return fmt.Errorf("%q is not a year", cell)
		}
		return nil
	case schema.ColumnURL:
		if !ValidURL(cell) {
			return fmt.Errorf("%q is not an absolute URL", cell)
		}
		return nil
	default:
		return fmt.Errorf("unknown column kind %q", kind)
	}
}

// ValidURL reports whether the string is an absolute http(s) URL.
func ValidURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
