package inspect

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/goliatone/go-formdoc/pkg/parser"
	"github.com/goliatone/go-formdoc/pkg/schema"
)

// Problems checks a candidate value against the field's declared constraints
// without touching the field's response. The inspector runs it on the stored
// value; the patch engine runs it on incoming values so invalid answers are
// refused before they land. Shape-level problems (wrong value type for the
// kind) cannot normally occur because the parser and patch engine enforce
// shape, but they are reported rather than ignored if a caller wires a model
// by hand.
func Problems(field *schema.Field, value schema.Value) []string {
	var problems []string
	fail := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	switch field.Kind {
	case schema.KindString:
		v, ok := value.(schema.StringValue)
		if !ok {
			fail("value is %T, want string", value)
			return problems
		}
		checkPattern(field, string(v), fail)

	case schema.KindNumber:
		v, ok := value.(schema.NumberValue)
		if !ok {
			fail("value is %T, want number", value)
			return problems
		}
		checkBounds(field, float64(v), fail)

	case schema.KindYear:
		v, ok := value.(schema.YearValue)
		if !ok {
			fail("value is %T, want year", value)
			return problems
		}
		checkBounds(field, float64(v), fail)

	case schema.KindDate:
		if _, ok := value.(schema.DateValue); !ok {
			fail("value is %T, want date", value)
		}

	case schema.KindStringList, schema.KindURLList:
		v, ok := value.(schema.ListValue)
		if !ok {
			fail("value is %T, want list", value)
			return problems
		}
		for _, item := range v {
			checkPattern(field, item, fail)
		}
		checkMaxItems(field, len(v), fail)

	case schema.KindSingleSelect:
		v, ok := value.(schema.SelectionValue)
		if !ok {
			fail("value is %T, want selection", value)
			return problems
		}
		if len(v) > 1 {
			fail("single-select carries %d choices", len(v))
		}
		checkOptionIDs(field, v, fail)

	case schema.KindMultiSelect:
		v, ok := value.(schema.SelectionValue)
		if !ok {
			fail("value is %T, want selection", value)
			return problems
		}
		checkOptionIDs(field, v, fail)
		checkMaxItems(field, len(v), fail)

	case schema.KindCheckboxes:
		v, ok := value.(schema.ChecksValue)
		if !ok {
			fail("value is %T, want checks", value)
			return problems
		}
		mode := field.EffectiveMode()
		for _, id := range v.ResolvedIDs() {
			if _, exists := field.Option(id); !exists {
				fail("mark for unknown option %q", id)
			}
			if !mode.Allows(v.Mark(id)) {
				fail("mark %q is not legal in %s mode", string(v.Mark(id)), mode)
			}
		}

	case schema.KindTable:
		v, ok := value.(schema.TableValue)
		if !ok {
			fail("value is %T, want table", value)
			return problems
		}
		for i, row := range v {
			checkRow(field, i, row, fail)
		}
		checkMaxItems(field, len(v), fail)
	}

	return problems
}

func checkRow(field *schema.Field, idx int, row schema.Row, fail func(string, ...any)) {
	ids := make([]string, 0, len(row))
	for id := range row {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if _, exists := field.Column(id); !exists {
			fail("row %d names unknown column %q", idx+1, id)
		}
	}
	for _, col := range field.Columns {
		if err := parser.CheckCell(col.Kind, row[col.ID]); err != nil {
			fail("row %d column %q: %v", idx+1, col.ID, err)
		}
	}
}

func checkPattern(field *schema.Field, text string, fail func(string, ...any)) {
	if field.Pattern == "" {
		return
	}
	re, err := regexp.Compile(field.Pattern)
	if err != nil {
		fail("pattern %q does not compile: %v", field.Pattern, err)
		return
	}
	if !re.MatchString(text) {
		fail("%q does not match pattern %q", text, field.Pattern)
	}
}

func checkBounds(field *schema.Field, v float64, fail func(string, ...any)) {
	if field.Min != nil && v < *field.Min {
		fail("%v is below minimum %v", v, *field.Min)
	}
	if field.Max != nil && v > *field.Max {
		fail("%v is above maximum %v", v, *field.Max)
	}
}

func checkMaxItems(field *schema.Field, n int, fail func(string, ...any)) {
	if field.MaxItems != nil && n > *field.MaxItems {
		fail("%d items exceed maximum %d", n, *field.MaxItems)
	}
}

func checkOptionIDs(field *schema.Field, ids schema.SelectionValue, fail func(string, ...any)) {
	for _, id := range ids {
		if _, exists := field.Option(id); !exists {
			fail("unknown option %q", id)
		}
	}
}
