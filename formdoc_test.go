package formdoc_test

import (
	"context"
	"strings"
	"testing"

	formdoc "github.com/goliatone/go-formdoc"
	"github.com/goliatone/go-formdoc/pkg/agents/scripted"
	"github.com/goliatone/go-formdoc/pkg/harness"
	"github.com/goliatone/go-formdoc/pkg/patch"
)

const releaseDoc = `---
formdoc: "1.0"
title: Release Checklist
---

[!form id=release]

[!field id=version kind=string required pattern="^v\\d+\\.\\d+\\.\\d+$"]
Which version ships?
[!/field]

[!field id=channels kind=multi_select required min_items=1]
- [ ] Blog {#blog}
- [ ] Newsletter {#news}
[!/field]

[!/form]
`

func TestEndToEnd(t *testing.T) {
	doc, err := formdoc.Parse([]byte(releaseDoc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	before := formdoc.Inspect(doc)
	if before.Complete || len(before.Issues) != 2 {
		t.Fatalf("fresh document: complete=%v issues=%+v", before.Complete, before.Issues)
	}

	agent := scripted.New([]formdoc.Patch{
		{Op: patch.OpSetString, Field: "version", Value: "v1.4.0"},
		{Op: patch.OpSetMultiSelect, Field: "channels", Values: []string{"news"}},
	})

	transcript, err := formdoc.Run(context.Background(), doc, agent,
		formdoc.WithConfig(formdoc.Config{MaxTurns: 3, MaxIssuesPerTurn: 5, MaxPatchesPerTurn: 10}))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if transcript.Final != harness.StateComplete {
		t.Fatalf("final = %s, turns = %+v", transcript.Final, transcript.Turns)
	}

	after := formdoc.Inspect(doc)
	if !after.Complete {
		t.Errorf("issues remain: %+v", after.Issues)
	}

	out, err := formdoc.Serialize(doc)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if !strings.Contains(string(out), "v1.4.0") {
		t.Errorf("serialized output missing answer:\n%s", out)
	}

	hash, err := formdoc.Hash(doc)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if hash != transcript.FinalHash {
		t.Errorf("hash %q, transcript recorded %q", hash, transcript.FinalHash)
	}

	if err := formdoc.Replay([]byte(releaseDoc), transcript); err != nil {
		t.Errorf("Replay: %v", err)
	}
}

func TestApplyRejectionsAreIndependent(t *testing.T) {
	doc, err := formdoc.Parse([]byte(releaseDoc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	result := formdoc.Apply(doc, []formdoc.Patch{
		{Op: patch.OpSetString, Field: "version", Value: "not-a-version"},
		{Op: patch.OpSetMultiSelect, Field: "channels", Values: []string{"blog"}},
	})

	if result.Applied != 1 || len(result.Rejections) != 1 {
		t.Fatalf("result = %+v", result)
	}
	if result.Rejections[0].Reason != patch.ReasonConstraintViolation {
		t.Errorf("rejection = %+v", result.Rejections[0])
	}

	field, _ := doc.Field("channels")
	if !field.Response.Answered() {
		t.Error("valid patch in the same batch did not apply")
	}
}

func TestExporters(t *testing.T) {
	registry, err := formdoc.Exporters()
	if err != nil {
		t.Fatalf("Exporters: %v", err)
	}
	for _, name := range []string{"values", "schema", "report", "report-html"} {
		if !registry.Has(name) {
			t.Errorf("registry missing %q", name)
		}
	}
}
