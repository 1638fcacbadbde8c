package schema

// FieldKind enumerates the closed set of field kinds a document may declare.
// Every component that branches on kind (parser, patch engine, serializer,
// exporters) switches over these constants and treats anything else as an
// error, so adding a kind means visiting each of those switches.
type FieldKind string

const (
	KindString       FieldKind = "string"
	KindNumber       FieldKind = "number"
	KindDate         FieldKind = "date"
	KindYear         FieldKind = "year"
	KindStringList   FieldKind = "string_list"
	KindURLList      FieldKind = "url_list"
	KindSingleSelect FieldKind = "single_select"
	KindMultiSelect  FieldKind = "multi_select"
	KindCheckboxes   FieldKind = "checkboxes"
	KindTable        FieldKind = "table"
)

// Kinds returns every declared field kind in a stable order.
func Kinds() []FieldKind {
	return []FieldKind{
		KindString,
		KindNumber,
		KindDate,
		KindYear,
		KindStringList,
		KindURLList,
		KindSingleSelect,
		KindMultiSelect,
		KindCheckboxes,
		KindTable,
	}
}

// Valid reports whether the kind belongs to the declared set.
func (k FieldKind) Valid() bool {
	switch k {
	case KindString, KindNumber, KindDate, KindYear,
		KindStringList, KindURLList,
		KindSingleSelect, KindMultiSelect, KindCheckboxes,
		KindTable:
		return true
	}
	return false
}

// Scalar reports whether the kind carries a single scalar value.
func (k FieldKind) Scalar() bool {
	switch k {
	case KindString, KindNumber, KindDate, KindYear:
		return true
	}
	return false
}

// List reports whether the kind carries an ordered list of items.
func (k FieldKind) List() bool {
	return k == KindStringList || k == KindURLList
}

// Selection reports whether the kind owns an option list.
func (k FieldKind) Selection() bool {
	return k == KindSingleSelect || k == KindMultiSelect || k == KindCheckboxes
}

// Fenced reports whether the kind stores its inline value in a fenced block
// rather than in option markers.
func (k FieldKind) Fenced() bool {
	return k.Scalar() || k.List() || k == KindTable
}

// ColumnKind restricts table columns to scalar kinds.
type ColumnKind string

const (
	ColumnString ColumnKind = "string"
	ColumnNumber ColumnKind = "number"
	ColumnDate   ColumnKind = "date"
	ColumnYear   ColumnKind = "year"
	ColumnURL    ColumnKind = "url"
)

// Valid reports whether the column kind belongs to the declared set.
func (k ColumnKind) Valid() bool {
	switch k {
	case ColumnString, ColumnNumber, ColumnDate, ColumnYear, ColumnURL:
		return true
	}
	return false
}

// CheckboxMode selects the marker domain for a checkboxes field.
type CheckboxMode string

const (
	// ModeSimple is the plain two-state checklist: blank or checked.
	ModeSimple CheckboxMode = "simple"
	// ModeExplicit forces a yes/no decision per option; blank means unfilled.
	ModeExplicit CheckboxMode = "explicit"
	// ModeMulti is the five-state progress checklist.
	ModeMulti CheckboxMode = "multi"
)

// Valid reports whether the mode belongs to the declared set.
func (m CheckboxMode) Valid() bool {
	return m == ModeSimple || m == ModeExplicit || m == ModeMulti
}

// Mark is the state recorded inside a checkbox marker, e.g. the "x" in "[x]".
type Mark string

const (
	MarkBlank     Mark = " "
	MarkChecked   Mark = "x"
	MarkYes       Mark = "y"
	MarkNo        Mark = "n"
	MarkPartial   Mark = "~"
	MarkDismissed Mark = "-"
	MarkUnknown   Mark = "?"
)

// Resolved reports whether the mark represents a decision rather than the
// untouched blank state. MarkUnknown counts as resolved: the author looked at
// the option and recorded that the answer cannot be determined.
func (m Mark) Resolved() bool {
	return m != MarkBlank && m != ""
}

// Marks returns the marker domain for the mode, blank first.
func (m CheckboxMode) Marks() []Mark {
	switch m {
	case ModeExplicit:
		return []Mark{MarkBlank, MarkYes, MarkNo}
	case ModeMulti:
		return []Mark{MarkBlank, MarkChecked, MarkPartial, MarkDismissed, MarkUnknown}
	default:
		return []Mark{MarkBlank, MarkChecked}
	}
}

// Allows reports whether the mark is legal under the mode.
func (m CheckboxMode) Allows(mark Mark) bool {
	for _, allowed := range m.Marks() {
		if mark == allowed {
			return true
		}
	}
	return false
}
