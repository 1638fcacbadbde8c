package template

import (
	"strings"
	"testing"
	"testing/fstest"
)

func newEngine(t *testing.T, options ...Option) *Engine {
	t.Helper()
	engine, err := New(options...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return engine
}

func TestNewRequiresSource(t *testing.T) {
	if _, err := New(); err == nil {
		t.Error("engine constructed without a template source")
	}
}

func TestRenderString(t *testing.T) {
	engine := newEngine(t, WithFS(fstest.MapFS{}))

	out, err := engine.RenderString("Hello {{ name }}!", map[string]any{"name": "formdoc"})
	if err != nil {
		t.Fatalf("RenderString: %v", err)
	}
	if out != "Hello formdoc!" {
		t.Errorf("out = %q", out)
	}
}

func TestRenderStringStructData(t *testing.T) {
	engine := newEngine(t, WithFS(fstest.MapFS{}))

	data := struct {
		Status string `json:"status"`
		Count  int    `json:"count"`
	}{Status: "complete", Count: 3}

	out, err := engine.RenderString("{{ status }}/{{ count }}", data)
	if err != nil {
		t.Fatalf("RenderString: %v", err)
	}
	if out != "complete/3" {
		t.Errorf("out = %q", out)
	}
}

func TestRenderTemplate(t *testing.T) {
	files := fstest.MapFS{
		"greeting.tpl": &fstest.MapFile{Data: []byte("Hi {{ name }}")},
	}
	engine := newEngine(t, WithFS(files))

	out, err := engine.RenderTemplate("greeting", map[string]any{"name": "there"})
	if err != nil {
		t.Fatalf("RenderTemplate: %v", err)
	}
	if out != "Hi there" {
		t.Errorf("out = %q", out)
	}

	// Extension may be spelled out too.
	out, err = engine.RenderTemplate("greeting.tpl", map[string]any{"name": "again"})
	if err != nil {
		t.Fatalf("RenderTemplate with extension: %v", err)
	}
	if out != "Hi again" {
		t.Errorf("out = %q", out)
	}
}

func TestRenderTemplateMissing(t *testing.T) {
	engine := newEngine(t, WithFS(fstest.MapFS{}))

	if _, err := engine.RenderTemplate("absent", nil); err == nil {
		t.Error("missing template rendered")
	}
}

func TestWithExtension(t *testing.T) {
	files := fstest.MapFS{
		"report.html": &fstest.MapFile{Data: []byte("<p>{{ body }}</p>")},
	}
	engine := newEngine(t, WithFS(files), WithExtension("html"))

	out, err := engine.RenderTemplate("report", map[string]any{"body": "ok"})
	if err != nil {
		t.Fatalf("RenderTemplate: %v", err)
	}
	if !strings.Contains(out, "ok") {
		t.Errorf("out = %q", out)
	}
}

func TestWithGlobalData(t *testing.T) {
	engine := newEngine(t,
		WithFS(fstest.MapFS{}),
		WithGlobalData(map[string]any{"app": "formdoc"}),
	)

	out, err := engine.RenderString("{{ app }}:{{ page }}", map[string]any{"page": "report"})
	if err != nil {
		t.Fatalf("RenderString: %v", err)
	}
	if out != "formdoc:report" {
		t.Errorf("out = %q", out)
	}
}

func TestRenderStringLoops(t *testing.T) {
	engine := newEngine(t, WithFS(fstest.MapFS{}))

	out, err := engine.RenderString(
		"{% for item in items %}{{ item }};{% endfor %}",
		map[string]any{"items": []string{"a", "b"}},
	)
	if err != nil {
		t.Fatalf("RenderString: %v", err)
	}
	if out != "a;b;" {
		t.Errorf("out = %q", out)
	}
}
