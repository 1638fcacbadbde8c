package parser

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formdoc/pkg/schema"
)

const fullDocument = `---
formdoc: "1.0"
title: Project Intake
description: Everything we need before kickoff.
roles:
  - pm
  - agent
instructions:
  agent: Fill what you can verify.
mode: strict
---

Welcome text before the form.

[!form id=intake title="Project Intake"]

Intro prose inside the form.

[!group id=basics title=Basics]

[!field id=name kind=string required title="Project name"]
What is the project called?
` + "```" + `value
Formdoc
` + "```" + `
[!/field]

[!field id=budget kind=number min=0 max=100000]
[!/field]

[!field id=kickoff kind=date]
` + "```" + `value
2026-09-01
` + "```" + `
[!/field]

[!field id=founded kind=year min=1990 max=2026]
` + "```" + `value
2021
` + "```" + `
[!/field]

[!field id=goals kind=string_list min_items=1]
` + "```" + `value
Ship parser
Ship harness
` + "```" + `
[!/field]

[!field id=links kind=url_list]
` + "```" + `value
https://example.com/spec
` + "```" + `
[!/field]

[!field id=tier kind=single_select required]
- [ ] Starter {#starter}
- [x] Growth {#growth}
- [ ] Enterprise {#enterprise}
[!/field]

[!field id=signoff kind=checkboxes mode=explicit]
- [y] Legal {#legal}
- [n] Finance {#finance}
- [ ] Security {#security}
[!/field]

[!field id=milestones kind=table columns="name:string,due:date"]
` + "```" + `value
name | due
Alpha | 2026-10-01
Beta | 2026-11-15
` + "```" + `
[!/field]

[!field id=notes kind=string state=skipped reason="covered elsewhere" by=pm]
[!/field]

[!/group]

[!/form]

[!note id=note-1 ref=name by=pm]
Name was confirmed with the sponsor.
[!/note]
`

func TestParseFullDocument(t *testing.T) {
	doc, err := Parse([]byte(fullDocument))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if doc.Version != "1.0" || doc.Title != "Project Intake" || doc.Mode != "strict" {
		t.Errorf("front matter: version=%q title=%q mode=%q", doc.Version, doc.Title, doc.Mode)
	}
	if diff := cmp.Diff([]string{"pm", "agent"}, doc.Roles); diff != "" {
		t.Errorf("roles mismatch (-want +got):\n%s", diff)
	}
	if doc.Instructions["agent"] != "Fill what you can verify." {
		t.Errorf("instructions = %v", doc.Instructions)
	}
	if doc.Syntax != schema.SyntaxBracket {
		t.Errorf("syntax = %s", doc.Syntax)
	}
	if doc.Preamble != "Welcome text before the form." {
		t.Errorf("preamble = %q", doc.Preamble)
	}

	form := doc.Form
	if form.ID != "intake" || form.Title != "Project Intake" || form.Synthesized {
		t.Fatalf("form = %+v", form)
	}
	if form.Body != "Intro prose inside the form." {
		t.Errorf("form body = %q", form.Body)
	}
	if len(form.Groups) != 1 {
		t.Fatalf("groups = %d", len(form.Groups))
	}
	group := form.Groups[0]
	if group.ID != "basics" || group.Title != "Basics" {
		t.Errorf("group = %+v", group)
	}
	if len(group.Fields) != 10 {
		t.Fatalf("fields = %d", len(group.Fields))
	}

	get := func(id string) *schema.Field {
		t.Helper()
		field, ok := doc.Field(id)
		if !ok {
			t.Fatalf("field %q missing", id)
		}
		return field
	}

	name := get("name")
	if !name.Required || name.Title != "Project name" {
		t.Errorf("name field = %+v", name)
	}
	if name.Body != "What is the project called?" {
		t.Errorf("name body = %q", name.Body)
	}
	if got := name.Response.Value; got != schema.StringValue("Formdoc") {
		t.Errorf("name value = %#v", got)
	}

	budget := get("budget")
	if budget.Response.State != schema.StateUnanswered {
		t.Errorf("budget state = %s", budget.Response.State)
	}
	if budget.Min == nil || *budget.Min != 0 || budget.Max == nil || *budget.Max != 100000 {
		t.Errorf("budget bounds = %v %v", budget.Min, budget.Max)
	}

	if got := get("kickoff").Response.Value.(schema.DateValue).String(); got != "2026-09-01" {
		t.Errorf("kickoff = %s", got)
	}
	if got := get("founded").Response.Value; got != schema.YearValue(2021) {
		t.Errorf("founded = %#v", got)
	}
	if diff := cmp.Diff(schema.ListValue{"Ship parser", "Ship harness"}, get("goals").Response.Value); diff != "" {
		t.Errorf("goals mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(schema.ListValue{"https://example.com/spec"}, get("links").Response.Value); diff != "" {
		t.Errorf("links mismatch (-want +got):\n%s", diff)
	}

	tier := get("tier")
	if len(tier.Options) != 3 || tier.Options[1].ID != "growth" || tier.Options[1].Label != "Growth" {
		t.Errorf("tier options = %+v", tier.Options)
	}
	if diff := cmp.Diff(schema.SelectionValue{"growth"}, tier.Response.Value); diff != "" {
		t.Errorf("tier selection mismatch (-want +got):\n%s", diff)
	}

	signoff := get("signoff")
	if signoff.Mode != schema.ModeExplicit {
		t.Errorf("signoff mode = %s", signoff.Mode)
	}
	want := schema.ChecksValue{"legal": schema.MarkYes, "finance": schema.MarkNo}
	if diff := cmp.Diff(want, signoff.Response.Value); diff != "" {
		t.Errorf("signoff checks mismatch (-want +got):\n%s", diff)
	}

	milestones := get("milestones")
	rows, ok := milestones.Response.Value.(schema.TableValue)
	if !ok || len(rows) != 2 {
		t.Fatalf("milestones value = %#v", milestones.Response.Value)
	}
	if rows[0]["name"] != "Alpha" || rows[1]["due"] != "2026-11-15" {
		t.Errorf("milestones rows = %v", rows)
	}

	skipped := get("notes")
	if skipped.Response.State != schema.StateSkipped || skipped.Response.Reason != "covered elsewhere" || skipped.Response.By != "pm" {
		t.Errorf("skipped response = %+v", skipped.Response)
	}

	if len(doc.Notes) != 1 {
		t.Fatalf("notes = %d", len(doc.Notes))
	}
	note := doc.Notes[0]
	if note.ID != "note-1" || note.Ref != "name" || note.By != "pm" {
		t.Errorf("note = %+v", note)
	}
	if note.Text != "Name was confirmed with the sponsor." {
		t.Errorf("note text = %q", note.Text)
	}
}

func TestParseCommentSyntax(t *testing.T) {
	input := `<!--!form id=f-->
<!--!field id=a kind=string-->
<!--!/field-->
<!--!/form-->
`
	doc, err := Parse([]byte(input))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if doc.Syntax != schema.SyntaxComment {
		t.Errorf("syntax = %s, want comment", doc.Syntax)
	}
}

func TestParseSynthesizesChecklist(t *testing.T) {
	input := `# Groceries

- [x] Milk
- [ ] Eggs {#eggs}
- [x] Bread
`
	doc, err := Parse([]byte(input))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if !doc.Form.Synthesized {
		t.Error("form should be synthesized")
	}
	if len(doc.Form.Groups) != 1 || !doc.Form.Groups[0].Synthesized {
		t.Fatalf("groups = %+v", doc.Form.Groups)
	}

	field, ok := doc.Field("checklist")
	if !ok {
		t.Fatal("synthesized checklist field missing")
	}
	if !field.Synthesized || field.Kind != schema.KindCheckboxes || field.Mode != schema.ModeSimple {
		t.Errorf("checklist field = %+v", field)
	}
	wantIDs := []string{"milk", "eggs", "bread"}
	for i, opt := range field.Options {
		if opt.ID != wantIDs[i] {
			t.Errorf("option %d id = %q, want %q", i, opt.ID, wantIDs[i])
		}
	}
	want := schema.ChecksValue{"milk": schema.MarkChecked, "bread": schema.MarkChecked}
	if diff := cmp.Diff(want, field.Response.Value); diff != "" {
		t.Errorf("checks mismatch (-want +got):\n%s", diff)
	}
}

func TestParseChecklistModeInference(t *testing.T) {
	doc, err := Parse([]byte("- [y] Reviewed\n- [n] Approved\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	field, _ := doc.Field("checklist")
	if field.Mode != schema.ModeExplicit {
		t.Errorf("mode = %s, want explicit", field.Mode)
	}

	doc, err = Parse([]byte("- [~] Docs\n- [-] Tests\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	field, _ = doc.Field("checklist")
	if field.Mode != schema.ModeMulti {
		t.Errorf("mode = %s, want multi", field.Mode)
	}

	if _, err := Parse([]byte("- [y] Yes\n- [~] Partial\n")); err == nil {
		t.Error("mixed yes/no and progress markers should fail")
	}
}

func TestParseImplicitFieldGetsSynthesizedWrappers(t *testing.T) {
	input := `[!field id=solo kind=string]
[!/field]
`
	doc, err := Parse([]byte(input))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !doc.Form.Synthesized {
		t.Error("form should be synthesized")
	}
	if _, ok := doc.Field("solo"); !ok {
		t.Error("field solo missing")
	}
}

func TestParseRawValueBlockStaysInert(t *testing.T) {
	input := `[!form id=f]
[!field id=snippet kind=string]
` + "```" + `value raw
[!field id=inner kind=string]
[!/field]
` + "```" + `
[!/field]
[!/form]
`
	doc, err := Parse([]byte(input))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, ok := doc.Field("inner"); ok {
		t.Error("tag text inside a raw value block was interpreted")
	}
	field, _ := doc.Field("snippet")
	value := string(field.Response.Value.(schema.StringValue))
	if !strings.Contains(value, "[!field id=inner kind=string]") {
		t.Errorf("snippet value = %q", value)
	}
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "duplicate id",
			input: "[!form id=f]\n[!field id=a kind=string]\n[!/field]\n[!field id=a kind=string]\n[!/field]\n[!/form]\n",
			want:  "duplicate id",
		},
		{
			name:  "unknown kind",
			input: "[!field id=a kind=banana]\n[!/field]\n",
			want:  "unknown kind",
		},
		{
			name:  "field never closed",
			input: "[!form id=f]\n[!field id=a kind=string]\n[!/form]\n",
			want:  "still open",
		},
		{
			name:  "content after closing form",
			input: "[!form id=f]\n[!/form]\n[!field id=late kind=string]\n[!/field]\n",
			want:  "after the closing form",
		},
		{
			name:  "fence never closed",
			input: "[!field id=a kind=string]\n```value\ndangling\n[!/field]\n",
			want:  "never closed",
		},
		{
			name:  "second form",
			input: "[!form id=f]\n[!/form]\n[!form id=g]\n[!/form]\n",
			want:  "exactly one form",
		},
		{
			name:  "note with unknown ref",
			input: "[!form id=f]\n[!/form]\n[!note ref=ghost]\ntext\n[!/note]\n",
			want:  "unknown id",
		},
		{
			name:  "invalid url item",
			input: "[!field id=a kind=url_list]\n```value\nnot-a-url\n```\n[!/field]\n",
			want:  "not an absolute URL",
		},
		{
			name:  "table header mismatch",
			input: "[!field id=a kind=table columns=\"x:string\"]\n```value\nwrong\nv\n```\n[!/field]\n",
			want:  "table header",
		},
		{
			name:  "bad number value",
			input: "[!field id=a kind=number]\n```value\nabc\n```\n[!/field]\n",
			want:  "not a number",
		},
		{
			name:  "marker illegal in simple mode",
			input: "[!field id=a kind=checkboxes]\n- [y] Opt {#o}\n[!/field]\n",
			want:  "not legal",
		},
		{
			name:  "reason without state",
			input: "[!field id=a kind=string reason=why]\n[!/field]\n",
			want:  "require a state",
		},
		{
			name:  "skipped field with value",
			input: "[!field id=a kind=string state=skipped]\n```value\nv\n```\n[!/field]\n",
			want:  "cannot carry a value",
		},
		{
			name:  "duplicate option id",
			input: "[!field id=a kind=multi_select]\n- [ ] One {#o}\n- [ ] Two {#o}\n[!/field]\n",
			want:  "twice",
		},
		{
			name:  "unknown front matter key",
			input: "---\nformdoc: \"1.0\"\nbogus: true\n---\n[!form id=f]\n[!/form]\n",
			want:  "front matter",
		},
		{
			name:  "front matter never closed",
			input: "---\ntitle: x\n",
			want:  "never closed",
		},
		{
			name:  "no structure at all",
			input: "just prose\n",
			want:  "no form structure",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.input))
			if err == nil {
				t.Fatal("Parse succeeded, want error")
			}
			perr, ok := AsParseError(err)
			if !ok {
				t.Fatalf("error is %T, want *ParseError", err)
			}
			if !strings.Contains(perr.Error(), tc.want) {
				t.Errorf("error = %q, want substring %q", perr.Error(), tc.want)
			}
		})
	}
}

func TestParseProgressFrontMatterIgnored(t *testing.T) {
	input := `---
formdoc: "1.0"
progress:
  fields: 99
  answered: 99
---
[!form id=f]
[!field id=a kind=string required]
[!/field]
[!/form]
`
	doc, err := Parse([]byte(input))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	field, _ := doc.Field("a")
	if field.Response.State != schema.StateUnanswered {
		t.Errorf("state = %s; cached progress must not affect the model", field.Response.State)
	}
}

func TestParseDefaultVersion(t *testing.T) {
	doc, err := Parse([]byte("[!form id=f]\n[!/form]\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if doc.Version != DefaultVersion {
		t.Errorf("version = %q, want %q", doc.Version, DefaultVersion)
	}
}

func TestValidURL(t *testing.T) {
	valid := []string{"https://example.com", "http://a.b/c?d=e"}
	invalid := []string{"", "example.com", "ftp://example.com", "https://"}
	for _, u := range valid {
		if !ValidURL(u) {
			t.Errorf("ValidURL(%q) = false", u)
		}
	}
	for _, u := range invalid {
		if ValidURL(u) {
			t.Errorf("ValidURL(%q) = true", u)
		}
	}
}

func TestCheckCell(t *testing.T) {
	if err := CheckCell(schema.ColumnNumber, "12.5"); err != nil {
		t.Errorf("number cell: %v", err)
	}
	if err := CheckCell(schema.ColumnNumber, "abc"); err == nil {
		t.Error("bad number cell accepted")
	}
	if err := CheckCell(schema.ColumnDate, "2026-01-02"); err != nil {
		t.Errorf("date cell: %v", err)
	}
	if err := CheckCell(schema.ColumnYear, "10000"); err == nil {
		t.Error("out-of-range year accepted")
	}
	if err := CheckCell(schema.ColumnURL, "https://example.com"); err != nil {
		t.Errorf("url cell: %v", err)
	}
}
