package engine

import (
	"errors"
	"testing"

	"github.com/shaiso/Acquire/internal/domain"
)

func validSpec() *domain.PlanSpec {
	return &domain.PlanSpec{
		Name: "dscan",
		Parameters: domain.ParameterSchema{
			{Name: "num", Type: domain.ParameterInt, Default: 3},
		},
		Steps: []domain.StepDef{
			{Type: "open_run"},
			{
				Type: "loop",
				Each: "{{ linspace -1 1 .Params.num }}",
				Steps: []domain.StepDef{
					{Type: "checkpoint"},
					{Type: "move", Device: "motor1", Args: map[string]any{"position": "{{ .Item }}"}},
					{Type: "trigger", Device: "det1"},
					{Type: "read", Args: map[string]any{"devices": []any{"det1", "motor1"}}},
				},
			},
			{Type: "close_run"},
		},
	}
}

func TestValidate_Valid(t *testing.T) {
	if err := Validate(validSpec()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		spec    *domain.PlanSpec
		wantErr error
	}{
		{
			name:    "nil spec",
			spec:    nil,
			wantErr: ErrEmptySteps,
		},
		{
			name:    "empty steps",
			spec:    &domain.PlanSpec{Name: "p"},
			wantErr: ErrEmptySteps,
		},
		{
			name:    "empty name",
			spec:    &domain.PlanSpec{Steps: []domain.StepDef{{Type: "checkpoint"}}},
			wantErr: ErrEmptyName,
		},
		{
			name:    "unknown type",
			spec:    &domain.PlanSpec{Name: "p", Steps: []domain.StepDef{{Type: "http"}}},
			wantErr: ErrUnknownStepType,
		},
		{
			name:    "move without device",
			spec:    &domain.PlanSpec{Name: "p", Steps: []domain.StepDef{{Type: "move"}}},
			wantErr: ErrMissingDevice,
		},
		{
			name: "close without open",
			spec: &domain.PlanSpec{Name: "p", Steps: []domain.StepDef{
				{Type: "close_run"},
			}},
			wantErr: ErrUnbalancedRun,
		},
		{
			name: "open without close",
			spec: &domain.PlanSpec{Name: "p", Steps: []domain.StepDef{
				{Type: "open_run"},
			}},
			wantErr: ErrUnbalancedRun,
		},
		{
			name: "loop opens run",
			spec: &domain.PlanSpec{Name: "p", Steps: []domain.StepDef{
				{Type: "loop", Count: "2", Steps: []domain.StepDef{{Type: "open_run"}}},
			}},
			wantErr: ErrUnbalancedRun,
		},
		{
			name: "loop with both each and count",
			spec: &domain.PlanSpec{Name: "p", Steps: []domain.StepDef{
				{Type: "loop", Count: "2", Each: "1,2", Steps: []domain.StepDef{{Type: "checkpoint"}}},
			}},
			wantErr: ErrInvalidLoop,
		},
		{
			name: "duplicate parameter",
			spec: &domain.PlanSpec{
				Name:       "p",
				Parameters: domain.ParameterSchema{{Name: "a"}, {Name: "a"}},
				Steps:      []domain.StepDef{{Type: "checkpoint"}},
			},
			wantErr: ErrInvalidParameter,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.spec)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidate_ErrorPath(t *testing.T) {
	spec := validSpec()
	spec.Steps[1].Steps[1].Device = ""

	err := Validate(spec)

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if vErr.Step != "steps[1].steps[1]" {
		t.Errorf("unexpected path: %s", vErr.Step)
	}
	if vErr.Field != "device" {
		t.Errorf("unexpected field: %s", vErr.Field)
	}
}

func TestParseSpec(t *testing.T) {
	data := []byte(`
name: grid
description: two point grid
metadata:
  purpose: alignment
parameters:
  - name: shutter
    type: bool
    default: false
steps:
  - type: open_run
  - type: loop
    count: "2"
    steps:
      - type: trigger
        device: det1
        when: .Params.shutter
      - type: read
        device: det1
  - type: close_run
`)

	spec, err := ParseSpec(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if spec.Name != "grid" || len(spec.Steps) != 3 {
		t.Fatalf("unexpected spec: %+v", spec)
	}

	cmds, err := Expand(spec, map[string]any{"shutter": false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// open + 2 × read + close (trigger отключён условием)
	if len(cmds) != 4 {
		t.Fatalf("expected 4 commands, got %d", len(cmds))
	}

	md := cmds[0].Args["md"].(map[string]any)
	if md["purpose"] != "alignment" || md["plan_description"] != "two point grid" {
		t.Errorf("plan metadata not merged: %v", md)
	}

	cmds, err = Expand(spec, map[string]any{"shutter": true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cmds) != 6 {
		t.Errorf("expected 6 commands, got %d", len(cmds))
	}
}

func TestExpand_LoopItems(t *testing.T) {
	cmds, err := Expand(validSpec(), map[string]any{"num": 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var positions []any
	for _, cmd := range cmds {
		if cmd.Type == domain.CommandMove {
			positions = append(positions, cmd.Args["position"])
		}
	}

	want := []any{-1.0, 0.0, 1.0}
	if len(positions) != len(want) {
		t.Fatalf("expected %v, got %v", want, positions)
	}
	for i := range want {
		if positions[i] != want[i] {
			t.Errorf("position %d: expected %v, got %v", i, want[i], positions[i])
		}
	}
}

func TestParseSpec_InvalidYAML(t *testing.T) {
	if _, err := ParseSpec([]byte("name: [")); err == nil {
		t.Error("expected parse error")
	}
}
