// Package formdoc embeds typed forms in plain text documents. A form is
// authored as Markdown-friendly tags, parsed into a schema tree, filled
// through typed patches, and serialized back to canonical text that parses
// to the identical model.
//
// The root package re-exports the common entry points; the subpackages under
// pkg/ hold the full surfaces.
package formdoc

import (
	"context"

	"github.com/goliatone/go-formdoc/pkg/export"
	"github.com/goliatone/go-formdoc/pkg/harness"
	"github.com/goliatone/go-formdoc/pkg/inspect"
	"github.com/goliatone/go-formdoc/pkg/parser"
	"github.com/goliatone/go-formdoc/pkg/patch"
	"github.com/goliatone/go-formdoc/pkg/schema"
	"github.com/goliatone/go-formdoc/pkg/serializer"
)

// Document is the parsed in-memory model; alias exported via the root
// package for convenience.
type Document = schema.Document

// Field is a single typed unit of input inside a form.
type Field = schema.Field

// Issue is one ranked unit of outstanding work reported by Inspect.
type Issue = inspect.Issue

// InspectResult is the outcome of one inspection pass.
type InspectResult = inspect.Result

// Patch is one typed mutation of a document.
type Patch = patch.Patch

// ApplyResult reports which patches applied and why the rest were rejected.
type ApplyResult = patch.Result

// Agent proposes patches for the outstanding issues of a session turn.
type Agent = harness.Agent

// Config bounds a harness session.
type Config = harness.Config

// Transcript is the replayable record of a completed session.
type Transcript = harness.Transcript

// Parse builds a document from formdoc text.
func Parse(input []byte) (*Document, error) {
	return parser.Parse(input)
}

// Inspect reports the outstanding work on a document.
func Inspect(doc *Document) InspectResult {
	return inspect.Inspect(doc)
}

// Apply runs a patch batch against a document. Each patch applies or rejects
// independently; a rejection never partially mutates the document.
func Apply(doc *Document, patches []Patch) ApplyResult {
	return patch.Apply(doc, patches)
}

// Serialize renders the canonical text of a document.
func Serialize(doc *Document) ([]byte, error) {
	return serializer.Serialize(doc)
}

// Hash returns the content hash of a document's canonical text.
func Hash(doc *Document) (string, error) {
	return serializer.Hash(doc)
}

// Run drives the agent against the document until it completes or stalls,
// returning the session transcript. It is the simplest entry point for
// callers that just want a filled document.
func Run(ctx context.Context, doc *Document, agent Agent, options ...harness.Option) (*Transcript, error) {
	session, err := harness.NewSession(doc, agent, options...)
	if err != nil {
		return nil, err
	}
	return session.Run(ctx)
}

// Replay verifies a transcript against the original document text.
func Replay(original []byte, transcript *Transcript) error {
	return harness.Replay(original, transcript)
}

// WithConfig passes session bounds through to Run.
func WithConfig(cfg Config) harness.Option {
	return harness.WithConfig(cfg)
}

// Exporters returns the default exporter registry: values, schema, and the
// report flavors.
func Exporters() (*export.Registry, error) {
	return export.DefaultRegistry()
}
