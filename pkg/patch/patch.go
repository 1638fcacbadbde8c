// Package patch is the only mutation path into a parsed document. Callers
// describe edits as flat wire objects; the engine validates each one in full
// before touching the model, so a rejected patch leaves no trace and the
// batch reports exactly which entries were refused and why.
package patch

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Op enumerates the closed set of patch operations.
type Op string

const (
	OpSetString       Op = "set_string"
	OpSetNumber       Op = "set_number"
	OpSetDate         Op = "set_date"
	OpSetYear         Op = "set_year"
	OpSetStringList   Op = "set_string_list"
	OpSetURLList      Op = "set_url_list"
	OpSetSingleSelect Op = "set_single_select"
	OpSetMultiSelect  Op = "set_multi_select"
	OpSetCheckboxes   Op = "set_checkboxes"
	OpSetTable        Op = "set_table"
	OpClearField      Op = "clear_field"
	OpSkipField       Op = "skip_field"
	OpAbortField      Op = "abort_field"
	OpAddNote         Op = "add_note"
	OpRemoveNote      Op = "remove_note"
)

// Valid reports whether the op belongs to the declared set.
func (o Op) Valid() bool {
	switch o {
	case OpSetString, OpSetNumber, OpSetDate, OpSetYear,
		OpSetStringList, OpSetURLList,
		OpSetSingleSelect, OpSetMultiSelect, OpSetCheckboxes,
		OpSetTable,
		OpClearField, OpSkipField, OpAbortField,
		OpAddNote, OpRemoveNote:
		return true
	}
	return false
}

// Patch is one wire-format edit. Which fields are read depends on Op:
//
//	set_* scalar ops        Field, Value
//	set_*_list              Field, Values (one item each)
//	set_single_select       Field, Value (one option id)
//	set_multi_select        Field, Values (option ids)
//	set_checkboxes          Field, Checks (option id -> mark; merged into the
//	                        current marks, blank clears an option)
//	set_table               Field, Rows (column id -> cell text)
//	clear_field             Field
//	skip_field, abort_field Field, Reason, By
//	add_note                Ref, Text, By; Note optionally pins the new id
//	remove_note             Note
type Patch struct {
	Op     Op                  `json:"op" yaml:"op"`
	Field  string              `json:"field,omitempty" yaml:"field,omitempty"`
	Value  string              `json:"value,omitempty" yaml:"value,omitempty"`
	Values []string            `json:"values,omitempty" yaml:"values,omitempty"`
	Checks map[string]string   `json:"checks,omitempty" yaml:"checks,omitempty"`
	Rows   []map[string]string `json:"rows,omitempty" yaml:"rows,omitempty"`
	Ref    string              `json:"ref,omitempty" yaml:"ref,omitempty"`
	Text   string              `json:"text,omitempty" yaml:"text,omitempty"`
	Note   string              `json:"note,omitempty" yaml:"note,omitempty"`
	Reason string              `json:"reason,omitempty" yaml:"reason,omitempty"`
	By     string              `json:"by,omitempty" yaml:"by,omitempty"`
}

// Decode parses a patch batch from either JSON or YAML. JSON input is
// recognized by a leading '[' so LLM replies and CLI files both work without
// the caller naming the format.
func Decode(data []byte) ([]Patch, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return DecodeJSON(data)
	}
	return DecodeYAML(data)
}

// DecodeJSON parses a JSON array of patches.
func DecodeJSON(data []byte) ([]Patch, error) {
	var patches []Patch
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&patches); err != nil {
		return nil, fmt.Errorf("patch: decode: %w", err)
	}
	return patches, nil
}

// DecodeYAML parses a YAML sequence of patches.
func DecodeYAML(data []byte) ([]Patch, error) {
	var patches []Patch
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&patches); err != nil {
		return nil, fmt.Errorf("patch: decode: %w", err)
	}
	return patches, nil
}
