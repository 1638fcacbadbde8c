package tagscan

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseTag(t *testing.T) {
	cases := []struct {
		name string
		line string
		want *Tag
	}{
		{
			name: "bracket open with attrs",
			line: `[!field id=name kind=string required]`,
			want: &Tag{
				Name:   "field",
				Syntax: SyntaxBracket,
				Attrs: []Attr{
					{Key: "id", Value: "name"},
					{Key: "kind", Value: "string"},
					{Key: "required", Bare: true},
				},
			},
		},
		{
			name: "bracket closing",
			line: `[!/field]`,
			want: &Tag{Name: "field", Closing: true, Syntax: SyntaxBracket},
		},
		{
			name: "comment flavor",
			line: `<!--!group id=basics-->`,
			want: &Tag{
				Name:   "group",
				Syntax: SyntaxComment,
				Attrs:  []Attr{{Key: "id", Value: "basics"}},
			},
		},
		{
			name: "comment flavor with inner spaces",
			line: `<!-- !form id=release -->`,
			want: &Tag{
				Name:   "form",
				Syntax: SyntaxComment,
				Attrs:  []Attr{{Key: "id", Value: "release"}},
			},
		},
		{
			name: "quoted value with spaces",
			line: `[!field id=bio kind=string pattern="^[a-z ]+$"]`,
			want: &Tag{
				Name:   "field",
				Syntax: SyntaxBracket,
				Attrs: []Attr{
					{Key: "id", Value: "bio"},
					{Key: "kind", Value: "string"},
					{Key: "pattern", Value: "^[a-z ]+$"},
				},
			},
		},
		{
			name: "escaped quote inside quoted value",
			line: `[!field id=q kind=string pattern="say \"hi\""]`,
			want: &Tag{
				Name:   "field",
				Syntax: SyntaxBracket,
				Attrs: []Attr{
					{Key: "id", Value: "q"},
					{Key: "kind", Value: "string"},
					{Key: "pattern", Value: `say "hi"`},
				},
			},
		},
		{
			name: "leading whitespace tolerated",
			line: `   [!note ref=name]`,
			want: &Tag{
				Name:   "note",
				Syntax: SyntaxBracket,
				Attrs:  []Attr{{Key: "ref", Value: "name"}},
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok, err := ParseTag(tc.line)
			if err != nil {
				t.Fatalf("ParseTag(%q): %v", tc.line, err)
			}
			if !ok {
				t.Fatalf("ParseTag(%q): not recognized as tag", tc.line)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("tag mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseTagNotATag(t *testing.T) {
	lines := []string{
		"plain prose",
		"- [x] a marker line",
		"<!-- ordinary comment -->",
		"[link](https://example.com)",
		"",
	}
	for _, line := range lines {
		if _, ok, err := ParseTag(line); ok || err != nil {
			t.Errorf("ParseTag(%q): ok=%v err=%v, want plain line", line, ok, err)
		}
	}
}

func TestParseTagMalformed(t *testing.T) {
	lines := []string{
		`[!]`,
		`[!field id="unterminated]`,
		`[!/field id=x]`,
		`[!field =oops]`,
		`[!field pattern=a"b]`,
	}
	for _, line := range lines {
		if _, ok, err := ParseTag(line); !ok || err == nil {
			t.Errorf("ParseTag(%q): ok=%v err=%v, want malformed tag error", line, ok, err)
		}
	}
}

func TestTagGet(t *testing.T) {
	tag := &Tag{Attrs: []Attr{{Key: "id", Value: "x"}, {Key: "required", Bare: true}}}

	if v, ok := tag.Get("id"); !ok || v != "x" {
		t.Errorf("Get(id) = %q, %v", v, ok)
	}
	if !tag.Has("required") {
		t.Error("Has(required) = false")
	}
	if tag.Has("missing") {
		t.Error("Has(missing) = true")
	}
}

func TestParseMarker(t *testing.T) {
	cases := []struct {
		line string
		want *Marker
	}{
		{"- [ ] Ship it {#ship}", &Marker{Mark: " ", Label: "Ship it", OptionID: "ship"}},
		{"- [x] Done", &Marker{Mark: "x", Label: "Done"}},
		{"  - [~] Partial {#part}", &Marker{Mark: "~", Label: "Partial", OptionID: "part"}},
		{"- [?] Unsure", &Marker{Mark: "?", Label: "Unsure"}},
	}
	for _, tc := range cases {
		got, ok := ParseMarker(tc.line)
		if !ok {
			t.Fatalf("ParseMarker(%q): not recognized", tc.line)
		}
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Errorf("ParseMarker(%q) mismatch (-want +got):\n%s", tc.line, diff)
		}
	}
}

func TestParseMarkerRejects(t *testing.T) {
	lines := []string{
		"    - [x] indented four spaces",
		"* [x] star bullet",
		"- [xx] two-char state",
		"- plain list item",
	}
	for _, line := range lines {
		if _, ok := ParseMarker(line); ok {
			t.Errorf("ParseMarker(%q): recognized, want plain line", line)
		}
	}
}

func TestSlug(t *testing.T) {
	cases := map[string]string{
		"Ship it":        "ship-it",
		"  Already--ok ": "already-ok",
		"CamelCase2":     "camelcase2",
		"!!!":            "option",
	}
	for label, want := range cases {
		if got := Slug(label); got != want {
			t.Errorf("Slug(%q) = %q, want %q", label, got, want)
		}
	}
}

func TestParseFenceOpen(t *testing.T) {
	fence, ok := ParseFenceOpen("```value")
	if !ok {
		t.Fatal("ParseFenceOpen: not recognized")
	}
	if fence.Char != '`' || fence.Length != 3 || fence.Info != "value" {
		t.Errorf("fence = %+v", fence)
	}

	fence, ok = ParseFenceOpen("~~~~ value raw")
	if !ok {
		t.Fatal("ParseFenceOpen tilde: not recognized")
	}
	if fence.Char != '~' || fence.Length != 4 || fence.Info != "value raw" {
		t.Errorf("fence = %+v", fence)
	}

	if _, ok := ParseFenceOpen("``not a fence"); ok {
		t.Error("two backticks recognized as fence")
	}
	if _, ok := ParseFenceOpen("    ```value"); ok {
		t.Error("over-indented fence recognized")
	}
}

func TestFenceCloses(t *testing.T) {
	fence := &Fence{Char: '`', Length: 3}

	if !fence.Closes("```") {
		t.Error("exact close not recognized")
	}
	if !fence.Closes("`````  ") {
		t.Error("longer run with trailing spaces not recognized")
	}
	if fence.Closes("``` trailing info") {
		t.Error("close with info recognized")
	}
	if fence.Closes("``") {
		t.Error("short run recognized")
	}
}

func TestMaxRun(t *testing.T) {
	value := "plain\n```\nmore\n~~~~~\n    ```````indented too far"
	runs := MaxRun(value)
	if runs['`'] != 3 {
		t.Errorf("backtick run = %d, want 3", runs['`'])
	}
	if runs['~'] != 5 {
		t.Errorf("tilde run = %d, want 5", runs['~'])
	}
}

func TestSplitRowRoundTrip(t *testing.T) {
	cells := []string{"plain", "with | pipe", `back\slash`, ""}
	line := JoinRow(cells)
	if diff := cmp.Diff(cells, SplitRow(line)); diff != "" {
		t.Errorf("row round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestSplitRow(t *testing.T) {
	got := SplitRow(`a | b \| c | d`)
	want := []string{"a", "b | c", "d"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("SplitRow mismatch (-want +got):\n%s", diff)
	}
}
