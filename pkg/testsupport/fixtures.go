// Package testsupport holds shared helpers for package tests: parsing
// fixtures, golden files, and diffing. Helpers fail the test on error to
// keep contract tests concise.
package testsupport

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formdoc/pkg/parser"
	"github.com/goliatone/go-formdoc/pkg/schema"
	"github.com/goliatone/go-formdoc/pkg/serializer"
)

// MustParse parses formdoc text or fails the test.
func MustParse(t *testing.T, input string) *schema.Document {
	t.Helper()

	doc, err := parser.Parse([]byte(input))
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return doc
}

// MustParseFile parses a fixture file or fails the test.
func MustParseFile(t *testing.T, path string) *schema.Document {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	doc, err := parser.Parse(data)
	if err != nil {
		t.Fatalf("parse fixture %s: %v", path, err)
	}
	return doc
}

// MustSerialize renders the canonical text of a document or fails the test.
func MustSerialize(t *testing.T, doc *schema.Document) string {
	t.Helper()

	data, err := serializer.Serialize(doc)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	return string(data)
}

// MustHash returns the content hash of a document or fails the test.
func MustHash(t *testing.T, doc *schema.Document) string {
	t.Helper()

	hash, err := serializer.Hash(doc)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return hash
}

// MustReadGolden reads a golden file and returns its raw bytes.
func MustReadGolden(t *testing.T, path string) []byte {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read golden: %v", err)
	}
	return data
}

// WriteMaybeGolden updates a golden file when UPDATE_GOLDENS is set. Returns
// true if the golden was written (test should exit early).
func WriteMaybeGolden(t *testing.T, path string, data []byte) bool {
	t.Helper()

	if os.Getenv("UPDATE_GOLDENS") == "" {
		return false
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir golden dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write golden: %v", err)
	}
	return true
}

// WriteGolden writes a JSON golden when UPDATE_GOLDENS is set.
func WriteGolden(t *testing.T, path string, value any) {
	t.Helper()

	if os.Getenv("UPDATE_GOLDENS") == "" {
		return
	}
	payload, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		t.Fatalf("marshal golden: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir golden dir: %v", err)
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		t.Fatalf("write golden: %v", err)
	}
}

// CompareGolden returns a diff string if the values differ.
func CompareGolden(want, got any) string {
	return cmp.Diff(want, got)
}

// Context returns a background context for tests.
func Context() context.Context {
	return context.Background()
}
