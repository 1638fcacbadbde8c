// Package tui implements an interactive agent that walks a person through
// the outstanding issues at a terminal. Prompting goes through a PromptDriver
// so the flow is testable; the default driver uses survey.
package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-formdoc/pkg/harness"
	"github.com/goliatone/go-formdoc/pkg/inspect"
	"github.com/goliatone/go-formdoc/pkg/parser"
	"github.com/goliatone/go-formdoc/pkg/patch"
	"github.com/goliatone/go-formdoc/pkg/schema"
)

// Agent prompts for one field per shown issue. It reads the document to know
// each field's kind and options but never mutates it; all changes flow back
// as patches.
type Agent struct {
	doc    *schema.Document
	driver PromptDriver
	by     string
}

// Option configures the agent.
type Option func(*Agent)

// WithDriver replaces the default survey driver.
func WithDriver(driver PromptDriver) Option {
	return func(a *Agent) { a.driver = driver }
}

// WithActor sets the name recorded on skips, aborts, and notes.
func WithActor(by string) Option {
	return func(a *Agent) { a.by = by }
}

// New builds an interactive agent over a parsed document.
func New(doc *schema.Document, opts ...Option) (*Agent, error) {
	if doc == nil {
		return nil, fmt.Errorf("tui: agent requires a document")
	}
	a := &Agent{doc: doc, driver: NewSurveyDriver(), by: "user"}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Propose asks about each shown issue in turn and returns the collected
// patches. A user interrupt surfaces as a non-retryable agent error.
func (a *Agent) Propose(ctx context.Context, req harness.Request) (*harness.Response, error) {
	start := time.Now()

	for _, rej := range req.Rejections {
		_ = a.driver.Info(ctx, "rejected last turn: "+rej.Error())
	}

	var patches []patch.Patch
	asked := make(map[string]bool)
	for _, issue := range req.Issues {
		if len(patches) >= req.MaxPatches {
			break
		}
		fieldID, _ := schema.SplitRef(issue.Ref)
		if asked[fieldID] {
			continue
		}
		asked[fieldID] = true

		field, ok := a.doc.Field(fieldID)
		if !ok {
			continue
		}
		p, err := a.askField(ctx, field, issue)
		if err != nil {
			if err == ErrAborted {
				return nil, &harness.AgentError{Err: err}
			}
			return nil, &harness.AgentError{Retryable: true, Err: err}
		}
		if p != nil {
			patches = append(patches, *p)
		}
	}

	return &harness.Response{
		Patches: patches,
		Stats:   harness.Stats{Elapsed: time.Since(start)},
	}, nil
}

func (a *Agent) askField(ctx context.Context, field *schema.Field, issue inspect.Issue) (*patch.Patch, error) {
	if err := a.driver.Info(ctx, issue.Message); err != nil {
		return nil, err
	}

	if !field.Required {
		answer, err := a.driver.Confirm(ctx, ConfirmConfig{
			Message: fmt.Sprintf("Answer %q now?", a.label(field)),
			Default: true,
		})
		if err != nil {
			return nil, err
		}
		if !answer {
			skip, err := a.driver.Confirm(ctx, ConfirmConfig{
				Message: "Mark it as skipped?",
			})
			if err != nil {
				return nil, err
			}
			if skip {
				return &patch.Patch{Op: patch.OpSkipField, Field: field.ID, Reason: "declined", By: a.by}, nil
			}
			return nil, nil
		}
	}

	switch field.Kind {
	case schema.KindString:
		text, err := a.driver.TextArea(ctx, TextAreaConfig{Message: a.label(field)})
		if err != nil {
			return nil, err
		}
		return &patch.Patch{Op: patch.OpSetString, Field: field.ID, Value: strings.TrimRight(text, "\n")}, nil

	case schema.KindNumber:
		value, err := a.askScalar(ctx, field, func(s string) error {
			_, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return fmt.Errorf("%q is not a number", s)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		return &patch.Patch{Op: patch.OpSetNumber, Field: field.ID, Value: value}, nil

	case schema.KindDate:
		value, err := a.askScalar(ctx, field, func(s string) error {
			_, err := time.Parse(schema.DateLayout, s)
			if err != nil {
				return fmt.Errorf("%q is not a %s date", s, schema.DateLayout)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		return &patch.Patch{Op: patch.OpSetDate, Field: field.ID, Value: value}, nil

	case schema.KindYear:
		value, err := a.askScalar(ctx, field, func(s string) error {
			if y, err := strconv.Atoi(s); err != nil || y < 0 || y > 9999 {
				return fmt.Errorf("%q is not a year", s)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		return &patch.Patch{Op: patch.OpSetYear, Field: field.ID, Value: value}, nil

	case schema.KindStringList, schema.KindURLList:
		text, err := a.driver.TextArea(ctx, TextAreaConfig{
			Message: a.label(field),
			Help:    "one item per line",
		})
		if err != nil {
			return nil, err
		}
		var items []string
		for _, line := range strings.Split(text, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if field.Kind == schema.KindURLList && !parser.ValidURL(line) {
				_ = a.driver.Info(ctx, fmt.Sprintf("dropping %q: not an absolute URL", line))
				continue
			}
			items = append(items, line)
		}
		op := patch.OpSetStringList
		if field.Kind == schema.KindURLList {
			op = patch.OpSetURLList
		}
		return &patch.Patch{Op: op, Field: field.ID, Values: items}, nil

	case schema.KindSingleSelect:
		idx, err := a.driver.Select(ctx, SelectConfig{
			Message: a.label(field),
			Options: a.optionLabels(field),
		})
		if err != nil {
			return nil, err
		}
		if idx < 0 || idx >= len(field.Options) {
			return nil, nil
		}
		return &patch.Patch{Op: patch.OpSetSingleSelect, Field: field.ID, Value: field.Options[idx].ID}, nil

	case schema.KindMultiSelect:
		indices, err := a.driver.MultiSelect(ctx, SelectConfig{
			Message: a.label(field),
			Options: a.optionLabels(field),
		})
		if err != nil {
			return nil, err
		}
		var ids []string
		for _, idx := range indices {
			if idx < 0 || idx >= len(field.Options) {
				continue
			}
			ids = append(ids, field.Options[idx].ID)
		}
		if len(ids) == 0 {
			return nil, nil
		}
		return &patch.Patch{Op: patch.OpSetMultiSelect, Field: field.ID, Values: ids}, nil

	case schema.KindCheckboxes:
		return a.askCheckboxes(ctx, field)

	case schema.KindTable:
		return a.askTable(ctx, field)
	}
	return nil, nil
}

func (a *Agent) askScalar(ctx context.Context, field *schema.Field, validate func(string) error) (string, error) {
	return a.driver.Input(ctx, InputConfig{
		Message:   a.label(field),
		Validator: func(s string) error { return validate(strings.TrimSpace(s)) },
	})
}

func (a *Agent) askCheckboxes(ctx context.Context, field *schema.Field) (*patch.Patch, error) {
	checks := make(map[string]string, len(field.Options))

	switch field.EffectiveMode() {
	case schema.ModeExplicit:
		for _, opt := range field.Options {
			yes, err := a.driver.Confirm(ctx, ConfirmConfig{Message: a.optionLabel(opt)})
			if err != nil {
				return nil, err
			}
			if yes {
				checks[opt.ID] = string(schema.MarkYes)
			} else {
				checks[opt.ID] = string(schema.MarkNo)
			}
		}

	case schema.ModeMulti:
		marks := []schema.Mark{schema.MarkBlank, schema.MarkChecked, schema.MarkPartial, schema.MarkDismissed, schema.MarkUnknown}
		labels := []string{"leave blank", "done", "partial", "dismissed", "cannot determine"}
		for _, opt := range field.Options {
			idx, err := a.driver.Select(ctx, SelectConfig{
				Message: a.optionLabel(opt),
				Options: labels,
			})
			if err != nil {
				return nil, err
			}
			if idx >= 0 && idx < len(marks) {
				checks[opt.ID] = string(marks[idx])
			}
		}

	default:
		var defaults []int
		if current, ok := field.Response.Value.(schema.ChecksValue); ok {
			for i, opt := range field.Options {
				if current.Mark(opt.ID).Resolved() {
					defaults = append(defaults, i)
				}
			}
		}
		indices, err := a.driver.MultiSelect(ctx, SelectConfig{
			Message:  a.label(field),
			Options:  a.optionLabels(field),
			Defaults: defaults,
		})
		if err != nil {
			return nil, err
		}
		checked := make(map[int]bool, len(indices))
		for _, idx := range indices {
			checked[idx] = true
		}
		for i, opt := range field.Options {
			if checked[i] {
				checks[opt.ID] = string(schema.MarkChecked)
			} else {
				checks[opt.ID] = string(schema.MarkBlank)
			}
		}
	}

	return &patch.Patch{Op: patch.OpSetCheckboxes, Field: field.ID, Checks: checks}, nil
}

func (a *Agent) askTable(ctx context.Context, field *schema.Field) (*patch.Patch, error) {
	var rows []map[string]string
	for {
		row := make(map[string]string, len(field.Columns))
		for _, col := range field.Columns {
			col := col
			cell, err := a.driver.Input(ctx, InputConfig{
				Message: fmt.Sprintf("%s (%s)", col.ID, col.Kind),
				Validator: func(s string) error {
					return parser.CheckCell(col.Kind, strings.TrimSpace(s))
				},
			})
			if err != nil {
				return nil, err
			}
			row[col.ID] = strings.TrimSpace(cell)
		}
		rows = append(rows, row)

		more, err := a.driver.Confirm(ctx, ConfirmConfig{Message: "Add another row?"})
		if err != nil {
			return nil, err
		}
		if !more {
			break
		}
	}
	return &patch.Patch{Op: patch.OpSetTable, Field: field.ID, Rows: rows}, nil
}

func (a *Agent) label(field *schema.Field) string {
	if field.Title != "" {
		return field.Title
	}
	return field.ID
}

func (a *Agent) optionLabel(opt *schema.Option) string {
	if opt.Label != "" {
		return opt.Label
	}
	return opt.ID
}

func (a *Agent) optionLabels(field *schema.Field) []string {
	labels := make([]string, len(field.Options))
	for i, opt := range field.Options {
		labels[i] = a.optionLabel(opt)
	}
	return labels
}
