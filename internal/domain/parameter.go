package domain

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Ошибки параметров плана.
var (
	// ErrParameterRequired — не задан обязательный параметр.
	ErrParameterRequired = errors.New("parameter is required")

	// ErrParameterType — значение не приводится к типу параметра.
	ErrParameterType = errors.New("parameter has wrong type")

	// ErrUnknownParameter — передан параметр, которого нет в схеме.
	ErrUnknownParameter = errors.New("unknown parameter")
)

// ParameterType — тип параметра плана.
type ParameterType string

const (
	ParameterString ParameterType = "str"
	ParameterInt    ParameterType = "int"
	ParameterFloat  ParameterType = "float"
	ParameterBool   ParameterType = "bool"
	ParameterDevice ParameterType = "device"
	ParameterList   ParameterType = "list"
	ParameterChoice ParameterType = "choice"
)

// ParameterDef — определение одного параметра.
type ParameterDef struct {
	// Name — имя параметра (ключ в values).
	Name string `json:"name" yaml:"name"`

	// Title — подпись для диалога.
	Title string `json:"title,omitempty" yaml:"title,omitempty"`

	// Type — тип значения.
	Type ParameterType `json:"type" yaml:"type"`

	// Default — значение по умолчанию.
	Default any `json:"default,omitempty" yaml:"default,omitempty"`

	// Required — параметр обязателен и не имеет значения по умолчанию.
	Required bool `json:"required,omitempty" yaml:"required,omitempty"`

	// Choices — допустимые значения для type=choice.
	Choices []string `json:"choices,omitempty" yaml:"choices,omitempty"`
}

// Label возвращает подпись параметра для UI.
func (d ParameterDef) Label() string {
	if d.Title != "" {
		return d.Title
	}
	return d.Name
}

// ParameterSchema — упорядоченный список параметров плана.
type ParameterSchema []ParameterDef

// Lookup возвращает определение параметра по имени.
func (s ParameterSchema) Lookup(name string) (ParameterDef, bool) {
	for _, d := range s {
		if d.Name == name {
			return d, true
		}
	}
	return ParameterDef{}, false
}

// Defaults возвращает значения по умолчанию.
func (s ParameterSchema) Defaults() map[string]any {
	out := make(map[string]any, len(s))
	for _, d := range s {
		if d.Default != nil {
			out[d.Name] = d.Default
		}
	}
	return out
}

// Coerce проверяет values по схеме и приводит значения к типам параметров.
//
// Отсутствующие значения берутся из Default. Для обязательных параметров
// без значения возвращается ErrParameterRequired.
func (s ParameterSchema) Coerce(values map[string]any) (map[string]any, error) {
	for name := range values {
		if _, ok := s.Lookup(name); !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownParameter, name)
		}
	}

	out := make(map[string]any, len(s))
	for _, d := range s {
		raw, ok := values[d.Name]
		if !ok || raw == nil {
			raw = d.Default
		}
		if raw == nil {
			if d.Required {
				return nil, fmt.Errorf("%w: %s", ErrParameterRequired, d.Name)
			}
			continue
		}

		v, err := coerceValue(d, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrParameterType, d.Name, err)
		}
		out[d.Name] = v
	}
	return out, nil
}

func coerceValue(d ParameterDef, raw any) (any, error) {
	switch d.Type {
	case ParameterString, ParameterDevice, "":
		return fmt.Sprint(raw), nil

	case ParameterInt:
		return toInt(raw)

	case ParameterFloat:
		return toFloat(raw)

	case ParameterBool:
		switch v := raw.(type) {
		case bool:
			return v, nil
		case string:
			return strconv.ParseBool(strings.TrimSpace(v))
		}
		return nil, fmt.Errorf("expected bool, got %T", raw)

	case ParameterChoice:
		v := fmt.Sprint(raw)
		if !slices.Contains(d.Choices, v) {
			return nil, fmt.Errorf("%q is not one of %v", v, d.Choices)
		}
		return v, nil

	case ParameterList:
		switch v := raw.(type) {
		case []any:
			return v, nil
		case []string:
			out := make([]any, len(v))
			for i, s := range v {
				out[i] = s
			}
			return out, nil
		case []float64:
			out := make([]any, len(v))
			for i, f := range v {
				out[i] = f
			}
			return out, nil
		case string:
			var out []any
			for _, part := range strings.Split(v, ",") {
				part = strings.TrimSpace(part)
				if part == "" {
					continue
				}
				if f, err := strconv.ParseFloat(part, 64); err == nil {
					out = append(out, f)
				} else {
					out = append(out, part)
				}
			}
			return out, nil
		}
		return nil, fmt.Errorf("expected list, got %T", raw)
	}

	return nil, fmt.Errorf("unsupported parameter type %q", d.Type)
}

func toInt(raw any) (int, error) {
	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("%v is not an integer", v)
		}
		return int(v), nil
	case string:
		return strconv.Atoi(strings.TrimSpace(v))
	}
	return 0, fmt.Errorf("expected int, got %T", raw)
}

func toFloat(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	}
	return 0, fmt.Errorf("expected float, got %T", raw)
}
