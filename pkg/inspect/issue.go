package inspect

// Severity ranks how strongly an issue blocks completion. Only required
// issues keep a document incomplete.
type Severity string

const (
	SeverityRequired    Severity = "required"
	SeverityRecommended Severity = "recommended"
	SeverityOptional    Severity = "optional"
)

// Reason is the machine-readable category of an issue.
type Reason string

const (
	ReasonRequiredMissing    Reason = "required_missing"
	ReasonValidationError    Reason = "validation_error"
	ReasonCheckboxIncomplete Reason = "checkbox_incomplete"
	ReasonMinItemsNotMet     Reason = "min_items_not_met"
	ReasonOptionalUnanswered Reason = "optional_unanswered"
)

// Scope names the kind of node an issue references.
type Scope string

const (
	ScopeField Scope = "field"
	ScopeGroup Scope = "group"
	ScopeForm  Scope = "form"
)

// Issue is one ranked unit of outstanding work on a document.
type Issue struct {
	Ref      string   `json:"ref"`
	Scope    Scope    `json:"scope"`
	Reason   Reason   `json:"reason"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
	Priority int      `json:"priority"`
}

// Result is the outcome of one inspection pass.
type Result struct {
	Issues   []Issue `json:"issues"`
	Complete bool    `json:"complete"`
}
