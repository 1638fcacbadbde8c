package schema

import (
	"sort"
	"time"
)

// ResponseState tracks where a field sits in its fill lifecycle.
type ResponseState string

const (
	StateUnanswered ResponseState = "unanswered"
	StateAnswered   ResponseState = "answered"
	StateSkipped    ResponseState = "skipped"
	StateAborted    ResponseState = "aborted"
)

// Response is the current state and value of one field. Value is non-nil
// exactly when State is answered; Reason and By are set for skipped and
// aborted transitions.
type Response struct {
	State  ResponseState
	Value  Value
	Reason string
	By     string
}

// Answered reports whether the response carries a value.
func (r Response) Answered() bool {
	return r.State == StateAnswered && r.Value != nil
}

// Value is the kind-tagged payload of an answered response. The concrete
// types below form a closed union; consumers switch over them exhaustively.
type Value interface {
	isValue()
}

// StringValue answers a string field.
type StringValue string

// NumberValue answers a number field.
type NumberValue float64

// DateValue answers a date field at day precision.
type DateValue time.Time

// YearValue answers a year field.
type YearValue int

// ListValue answers a string_list or url_list field, one entry per item.
type ListValue []string

// SelectionValue answers a single_select or multi_select field with the
// chosen option ids in option declaration order. A single_select value holds
// exactly one id when valid; the parser preserves whatever the document
// states so the inspector can flag over-selection instead of losing it.
type SelectionValue []string

// ChecksValue answers a checkboxes field with the mark recorded per option
// id. Options missing from the map count as blank.
type ChecksValue map[string]Mark

// TableValue answers a table field with full rows. Cells are stored in their
// canonical text form; the patch engine validates them against the column
// kinds before they get here.
type TableValue []Row

// Row maps column id to cell text. Rows have no identity beyond position.
type Row map[string]string

func (StringValue) isValue()    {}
func (NumberValue) isValue()    {}
func (DateValue) isValue()      {}
func (YearValue) isValue()      {}
func (ListValue) isValue()      {}
func (SelectionValue) isValue() {}
func (ChecksValue) isValue()    {}
func (TableValue) isValue()     {}

// Selected reports whether the selection contains the option id.
func (v SelectionValue) Selected(id string) bool {
	for _, got := range v {
		if got == id {
			return true
		}
	}
	return false
}

// Mark returns the recorded mark for an option id, blank when absent.
func (v ChecksValue) Mark(id string) Mark {
	if mark, ok := v[id]; ok && mark != "" {
		return mark
	}
	return MarkBlank
}

// ResolvedIDs returns the option ids carrying a resolved mark, sorted.
func (v ChecksValue) ResolvedIDs() []string {
	var ids []string
	for id, mark := range v {
		if mark.Resolved() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// DateLayout is the canonical wire format for date values.
const DateLayout = "2006-01-02"

// Time converts the date value back to time.Time.
func (v DateValue) Time() time.Time { return time.Time(v) }

// String formats the date in the canonical layout.
func (v DateValue) String() string { return time.Time(v).Format(DateLayout) }
