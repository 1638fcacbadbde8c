// Package inspect derives the outstanding work on a document: which fields
// still need answers, which answered values violate their constraints, and
// whether the document counts as complete. Inspection is a pure read; calling
// it twice on an unchanged model yields identical output.
package inspect

import (
	"fmt"
	"sort"
	"strings"

	"github.com/goliatone/go-formdoc/pkg/schema"
)

// Inspect walks every field and returns the ranked issue list. Issues sort by
// priority (ascending), then by declaration order, so callers always see the
// most structurally important gaps first. Complete holds exactly when no
// issue carries required severity.
func Inspect(doc *schema.Document) Result {
	var issues []Issue
	for _, field := range doc.Fields() {
		issues = append(issues, fieldIssues(field)...)
	}

	sort.SliceStable(issues, func(i, j int) bool {
		if issues[i].Priority != issues[j].Priority {
			return issues[i].Priority < issues[j].Priority
		}
		return doc.DeclarationOrder(issues[i].Ref) < doc.DeclarationOrder(issues[j].Ref)
	})

	complete := true
	for _, issue := range issues {
		if issue.Severity == SeverityRequired {
			complete = false
			break
		}
	}
	return Result{Issues: issues, Complete: complete}
}

func fieldIssues(field *schema.Field) []Issue {
	var issues []Issue
	add := func(reason Reason, severity Severity, message string) {
		issues = append(issues, Issue{
			Ref:      field.ID,
			Scope:    ScopeField,
			Reason:   reason,
			Message:  message,
			Severity: severity,
			Priority: field.Priority,
		})
	}

	// Aggregate gaps weigh by the field; a broken constraint always blocks.
	gapSeverity := SeverityRecommended
	if field.Required {
		gapSeverity = SeverityRequired
	}

	switch field.Response.State {
	case schema.StateUnanswered:
		if field.Required {
			add(ReasonRequiredMissing, SeverityRequired,
				fmt.Sprintf("required field %q has no answer", field.ID))
		} else {
			add(ReasonOptionalUnanswered, SeverityOptional,
				fmt.Sprintf("optional field %q is still unanswered", field.ID))
		}
		return issues

	case schema.StateSkipped:
		// Skipping is only legal on fields that are not required; a document
		// can still claim it, so surface the gap instead of trusting it.
		if field.Required {
			add(ReasonRequiredMissing, SeverityRequired,
				fmt.Sprintf("required field %q was skipped (%s)", field.ID, field.Response.Reason))
		}
		return issues

	case schema.StateAborted:
		// An explicit "cannot determine" resolves the field for completion.
		return issues
	}

	if problems := Problems(field, field.Response.Value); len(problems) > 0 {
		add(ReasonValidationError, SeverityRequired, strings.Join(problems, "; "))
	}

	if field.Kind == schema.KindCheckboxes && field.Required {
		if unresolved := unresolvedOptions(field); len(unresolved) > 0 {
			add(ReasonCheckboxIncomplete, SeverityRequired,
				fmt.Sprintf("field %q has unresolved options: %s", field.ID, strings.Join(unresolved, ", ")))
		}
	}

	if below, want, got := belowMinItems(field); below {
		add(ReasonMinItemsNotMet, gapSeverity,
			fmt.Sprintf("field %q has %d items, needs at least %d", field.ID, got, want))
	}

	return issues
}

func unresolvedOptions(field *schema.Field) []string {
	checks, _ := field.Response.Value.(schema.ChecksValue)
	var unresolved []string
	for _, opt := range field.Options {
		if checks == nil || !checks.Mark(opt.ID).Resolved() {
			unresolved = append(unresolved, opt.ID)
		}
	}
	return unresolved
}

func belowMinItems(field *schema.Field) (bool, int, int) {
	if field.MinItems == nil || !field.Response.Answered() {
		return false, 0, 0
	}
	count := -1
	switch value := field.Response.Value.(type) {
	case schema.ListValue:
		count = len(value)
	case schema.TableValue:
		count = len(value)
	case schema.SelectionValue:
		if field.Kind == schema.KindMultiSelect {
			count = len(value)
		}
	}
	if count < 0 || count >= *field.MinItems {
		return false, 0, 0
	}
	return true, *field.MinItems, count
}
