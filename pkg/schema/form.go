package schema

// Form is the root of the schema tree. A document owns exactly one form.
type Form struct {
	ID    string
	Title string
	// Body holds the free prose between the opening form tag and the first
	// group. It is preserved verbatim through serialization.
	Body string
	// Synthesized marks forms the parser inferred for documents that carry no
	// explicit form tag. Synthesized wrappers serialize without tags so a
	// plain checklist stays a plain checklist.
	Synthesized bool

	Groups []*Group
}

// Group is an ordered container of fields inside a form.
type Group struct {
	ID          string
	Title       string
	Body        string
	Synthesized bool

	Fields []*Field
}

// Field is a single typed unit of input. Exactly one Response tracks its
// current state; kind-specific constraints live directly on the struct and
// are nil/zero when they do not apply.
type Field struct {
	ID       string
	Title    string
	Body     string
	Kind     FieldKind
	Required bool
	// Role names who is expected to fill the field. Empty means anyone.
	Role     string
	Priority int

	// Scalar / list constraints.
	Pattern  string
	Min      *float64
	Max      *float64
	MinItems *int
	MaxItems *int

	// Selection kinds own options; ids are unique within the field only.
	Options []*Option
	// Checkbox marker domain, checkboxes kind only.
	Mode CheckboxMode
	// Table column declarations, table kind only.
	Columns []Column

	// Synthesized marks implicit checkbox fields collected from bare markers.
	Synthesized bool

	Response Response
}

// DefaultPriority is assigned to fields that do not declare one. Lower values
// sort first when the inspector ranks issues.
const DefaultPriority = 100

// Option is one selectable entry of a selection-style field.
type Option struct {
	ID    string
	Label string
}

// Option returns the option with the given id, if present.
func (f *Field) Option(id string) (*Option, bool) {
	for _, opt := range f.Options {
		if opt.ID == id {
			return opt, true
		}
	}
	return nil, false
}

// Column declares one typed table column.
type Column struct {
	ID   string
	Kind ColumnKind
}

// Column returns the column with the given id, if present.
func (f *Field) Column(id string) (Column, bool) {
	for _, col := range f.Columns {
		if col.ID == id {
			return col, true
		}
	}
	return Column{}, false
}

// ColumnIDs returns the declared column ids in order.
func (f *Field) ColumnIDs() []string {
	ids := make([]string, 0, len(f.Columns))
	for _, col := range f.Columns {
		ids = append(ids, col.ID)
	}
	return ids
}

// EffectiveMode returns the field's checkbox mode, defaulting to simple.
func (f *Field) EffectiveMode() CheckboxMode {
	if f.Mode.Valid() {
		return f.Mode
	}
	return ModeSimple
}
