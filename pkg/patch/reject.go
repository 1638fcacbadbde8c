package patch

import (
	"fmt"

	"github.com/goliatone/go-formdoc/pkg/inspect"
)

// RejectReason is the machine-readable category of a refused patch. Agents
// branch on it when deciding whether a retry can succeed.
type RejectReason string

const (
	// ReasonUnknownOp means the op is not in the declared set.
	ReasonUnknownOp RejectReason = "unknown_op"
	// ReasonUnknownID means the target field, ref, or note does not exist.
	ReasonUnknownID RejectReason = "unknown_id"
	// ReasonKindMismatch means the op does not apply to the field's kind.
	ReasonKindMismatch RejectReason = "kind_mismatch"
	// ReasonInvalidValue means the payload has the wrong shape or cannot be
	// parsed for the field's kind.
	ReasonInvalidValue RejectReason = "invalid_value"
	// ReasonConstraintViolation means the value parsed but breaks a declared
	// constraint (pattern, bounds, item limits, option membership).
	ReasonConstraintViolation RejectReason = "constraint_violation"
	// ReasonNotAllowed means the transition is illegal for the field, e.g.
	// skipping a required field.
	ReasonNotAllowed RejectReason = "not_allowed"
)

// Rejection explains why one patch in a batch was refused. It doubles as a
// typed error so single-patch callers can return it directly.
type Rejection struct {
	Index   int          `json:"index"`
	Op      Op           `json:"op"`
	Field   string       `json:"field,omitempty"`
	Reason  RejectReason `json:"reason"`
	Message string       `json:"message"`
}

func (r *Rejection) Error() string {
	target := r.Field
	if target == "" {
		target = "-"
	}
	return fmt.Sprintf("patch: %s on %q rejected (%s): %s", r.Op, target, r.Reason, r.Message)
}

// Result summarizes one batch application. Applied counts patches that
// landed; NoteIDs lists the ids generated for add_note patches that did not
// pin their own, in batch order. Progress is the document-wide tally after
// the batch.
type Result struct {
	Applied    int              `json:"applied"`
	Rejections []*Rejection     `json:"rejections,omitempty"`
	NoteIDs    []string         `json:"note_ids,omitempty"`
	Progress   inspect.Progress `json:"progress"`
}

// Clean reports whether every patch in the batch applied.
func (r Result) Clean() bool {
	return len(r.Rejections) == 0
}
