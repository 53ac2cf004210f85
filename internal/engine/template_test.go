package engine

import (
	"errors"
	"strings"
	"testing"
)

func TestNewContext(t *testing.T) {
	ctx := NewContext(nil)
	if ctx.Params == nil {
		t.Error("Params should not be nil")
	}
	if ctx.Env == nil {
		t.Error("Env should not be nil")
	}

	child := ctx.WithItem(2.5, 1)
	if child.Item != 2.5 || child.Index != 1 {
		t.Errorf("unexpected child context: %+v", child)
	}
	if ctx.Item != nil {
		t.Error("WithItem should not modify parent")
	}
}

func TestRender(t *testing.T) {
	ctx := NewContext(map[string]any{
		"sample": "LaB6",
		"num":    42,
		"text":   "Hello World",
	})
	ctx.SetEnv("BEAMLINE", "7.3.3")

	tests := []struct {
		name     string
		template string
		expected string
	}{
		{"plain text", "Plain text", "Plain text"},
		{"string param", "sample {{ .Params.sample }}", "sample LaB6"},
		{"number param", "n={{ .Params.num }}", "n=42"},
		{"env", "{{ .Env.BEAMLINE }}", "7.3.3"},
		{"lower", "{{ lower .Params.text }}", "hello world"},
		{"default with value", `{{ default "x" .Params.sample }}`, "LaB6"},
		{"default with nil", `{{ default "x" .Params.missing }}`, "x"},
		{"json", `{{ json .Params.num }}`, "42"},
		{"add", `{{ add 1 .Params.num }}`, "43"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Render(tt.template, ctx)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestRender_InvalidTemplate(t *testing.T) {
	_, err := Render("{{ .Invalid syntax", NewContext(nil))
	if !errors.Is(err, ErrTemplateParse) {
		t.Errorf("expected ErrTemplateParse, got %v", err)
	}
	if !strings.Contains(err.Error(), "template parse") {
		t.Errorf("expected parse error, got %v", err)
	}
}

func TestEvaluate_KeepsType(t *testing.T) {
	ctx := NewContext(map[string]any{"num": 3, "exposure": 0.5})

	tests := []struct {
		expr string
		want any
	}{
		{"{{ .Params.num }}", 3},
		{"{{ .Params.exposure }}", 0.5},
		{"{{ mul .Params.exposure 2 }}", 1.0},
		{"exposure {{ .Params.exposure }}", "exposure 0.5"},
	}

	for _, tt := range tests {
		got, err := Evaluate(tt.expr, ctx)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.expr, err)
		}
		if got != tt.want {
			t.Errorf("%s: expected %v (%T), got %v (%T)", tt.expr, tt.want, tt.want, got, got)
		}
	}
}

func TestRenderConfig(t *testing.T) {
	ctx := NewContext(map[string]any{"detectors": []any{"det1", "camera1"}})
	ctx = ctx.WithItem(1.5, 0)

	config, err := RenderConfig(map[string]any{
		"position": "{{ .Item }}",
		"devices":  "{{ .Params.detectors }}",
		"label":    "point {{ .Index }}",
		"nested":   map[string]any{"x": "{{ .Index }}"},
	}, ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if config["position"] != 1.5 {
		t.Errorf("expected 1.5, got %v", config["position"])
	}
	if devs, ok := config["devices"].([]any); !ok || len(devs) != 2 {
		t.Errorf("expected device list, got %v", config["devices"])
	}
	if config["label"] != "point 0" {
		t.Errorf("unexpected label: %v", config["label"])
	}
	if config["nested"].(map[string]any)["x"] != 0 {
		t.Errorf("unexpected nested: %v", config["nested"])
	}
}

func TestRenderList(t *testing.T) {
	ctx := NewContext(map[string]any{"positions": []any{1.0, 2.0}})

	tests := []struct {
		expr string
		want int
	}{
		{"1, 2, 3", 3},
		{"{{ .Params.positions }}", 2},
		{"{{ linspace 0 1 5 }}", 5},
		{"{{ seq 4 }}", 4},
	}

	for _, tt := range tests {
		got, err := RenderList(tt.expr, ctx)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.expr, err)
		}
		if len(got) != tt.want {
			t.Errorf("%s: expected %d items, got %v", tt.expr, tt.want, got)
		}
	}

	if _, err := RenderList("{{ .Params.missing.x }}", ctx); err == nil {
		t.Error("expected error for non-list")
	}
}

func TestRenderCondition(t *testing.T) {
	ctx := NewContext(map[string]any{"shutter": true, "num": 0})

	tests := []struct {
		cond string
		want bool
	}{
		{"", true},
		{".Params.shutter", true},
		{".Params.num", false},
		{"not .Params.shutter", false},
	}

	for _, tt := range tests {
		got, err := RenderCondition(tt.cond, ctx)
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", tt.cond, err)
		}
		if got != tt.want {
			t.Errorf("%q: expected %v, got %v", tt.cond, tt.want, got)
		}
	}
}

func TestLinspace(t *testing.T) {
	got := Linspace(0, 1, 3)
	if len(got) != 3 || got[0] != 0 || got[1] != 0.5 || got[2] != 1 {
		t.Errorf("unexpected linspace: %v", got)
	}
	if Linspace(0, 1, 0) != nil {
		t.Error("expected nil for num=0")
	}
	if got := Linspace(2, 5, 1); len(got) != 1 || got[0] != 2 {
		t.Errorf("unexpected single point: %v", got)
	}
}
