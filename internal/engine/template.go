package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"text/template"
)

// Context — контекст для рендеринга шаблонов плана.
//
// Используется в Go templates для доступа к данным:
//   - {{ .Params.num }}   — связанные параметры плана
//   - {{ .Item }}         — текущий элемент loop
//   - {{ .Index }}        — индекс текущего элемента loop
//   - {{ .Env.VAR_NAME }} — переменные окружения
type Context struct {
	// Params — значения параметров плана.
	Params map[string]any `json:"params"`

	// Item — текущий элемент loop (nil вне loop).
	Item any `json:"item,omitempty"`

	// Index — индекс текущего элемента loop.
	Index int `json:"index"`

	// Env — переменные окружения.
	Env map[string]string `json:"env"`
}

// NewContext создаёт новый контекст с параметрами.
func NewContext(params map[string]any) *Context {
	if params == nil {
		params = make(map[string]any)
	}
	return &Context{
		Params: params,
		Env:    make(map[string]string),
	}
}

// SetEnv устанавливает переменную окружения.
func (c *Context) SetEnv(key, value string) {
	c.Env[key] = value
}

// WithItem возвращает контекст итерации loop.
func (c *Context) WithItem(item any, index int) *Context {
	child := *c
	child.Item = item
	child.Index = index
	return &child
}

// templateFuncs — дополнительные функции для шаблонов.
var templateFuncs = template.FuncMap{
	// json — сериализует значение в JSON строку
	"json": func(v any) string {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("error: %v", err)
		}
		return string(b)
	},

	// default — возвращает значение по умолчанию, если первый аргумент пустой
	"default": func(def, val any) any {
		if val == nil {
			return def
		}
		if s, ok := val.(string); ok && s == "" {
			return def
		}
		return val
	},

	// coalesce — возвращает первое непустое значение
	"coalesce": func(values ...any) any {
		for _, v := range values {
			if v != nil {
				if s, ok := v.(string); ok && s == "" {
					continue
				}
				return v
			}
		}
		return nil
	},

	// fromJSON — парсит JSON строку
	"fromJSON": func(s string) any {
		var result any
		if err := json.Unmarshal([]byte(s), &result); err != nil {
			return nil
		}
		return result
	},

	// linspace — num равномерно распределённых точек от start до stop
	"linspace": func(start, stop, num any) ([]float64, error) {
		a, err := toFloat(start)
		if err != nil {
			return nil, err
		}
		b, err := toFloat(stop)
		if err != nil {
			return nil, err
		}
		n, err := toFloat(num)
		if err != nil {
			return nil, err
		}
		return Linspace(a, b, int(n)), nil
	},

	// seq — целые числа 0..n-1
	"seq": func(n any) ([]int, error) {
		f, err := toFloat(n)
		if err != nil {
			return nil, err
		}
		out := make([]int, int(f))
		for i := range out {
			out[i] = i
		}
		return out, nil
	},

	// add — сумма двух чисел
	"add": func(a, b any) (float64, error) {
		x, err := toFloat(a)
		if err != nil {
			return 0, err
		}
		y, err := toFloat(b)
		if err != nil {
			return 0, err
		}
		return x + y, nil
	},

	// mul — произведение двух чисел
	"mul": func(a, b any) (float64, error) {
		x, err := toFloat(a)
		if err != nil {
			return 0, err
		}
		y, err := toFloat(b)
		if err != nil {
			return 0, err
		}
		return x * y, nil
	},

	"join": func(sep string, items []string) string {
		return strings.Join(items, sep)
	},
	"split": func(sep, s string) []string {
		return strings.Split(s, sep)
	},
	"contains": strings.Contains,
	"lower":    strings.ToLower,
	"upper":    strings.ToUpper,
	"trim":     strings.TrimSpace,
	"replace":  strings.ReplaceAll,
}

// Linspace возвращает num равномерно распределённых точек от start до stop
// включительно.
func Linspace(start, stop float64, num int) []float64 {
	switch {
	case num <= 0:
		return nil
	case num == 1:
		return []float64{start}
	}
	out := make([]float64, num)
	step := (stop - start) / float64(num-1)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	out[num-1] = stop
	return out
}

// toFloat приводит значение шаблона к float64.
func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case float64:
		return n, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", n)
		}
		return f, nil
	}
	return 0, fmt.Errorf("not a number: %v (%T)", v, v)
}

// Render рендерит строковый шаблон с контекстом.
//
// Шаблон может содержать Go template выражения:
//
//	{{ .Params.num }}
//	position: {{ .Item }}
//	{{ if .Params.shutter }}open{{ end }}
func Render(tmpl string, ctx *Context) (string, error) {
	if !strings.Contains(tmpl, "{{") {
		return tmpl, nil
	}

	t, err := template.New("").Funcs(templateFuncs).Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateParse, err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateRender, err)
	}

	return buf.String(), nil
}

// singleExpression возвращает выражение, если вся строка — одно
// действие шаблона {{ ... }}.
func singleExpression(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{{") || !strings.HasSuffix(s, "}}") {
		return "", false
	}
	inner := strings.TrimSpace(s[2 : len(s)-2])
	if strings.Contains(inner, "{{") || strings.Contains(inner, "}}") || inner == "" {
		return "", false
	}
	switch strings.Fields(inner)[0] {
	case "if", "range", "with", "define", "block", "template", "end", "else":
		return "", false
	}
	return inner, true
}

// Evaluate вычисляет одно выражение шаблона и возвращает значение
// с исходным типом (число, список), а не его строковое представление.
func Evaluate(expr string, ctx *Context) (any, error) {
	inner, ok := singleExpression(expr)
	if !ok {
		return Render(expr, ctx)
	}

	var captured any
	funcs := template.FuncMap{
		"capture": func(v any) string {
			captured = v
			return ""
		},
	}

	t, err := template.New("").Funcs(templateFuncs).Funcs(funcs).Parse("{{ capture (" + inner + ") }}")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplateParse, err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplateRender, err)
	}
	return captured, nil
}

// RenderValue рендерит произвольное значение.
// Рекурсивно обрабатывает map и slice. Строка, состоящая из одного
// выражения, заменяется значением выражения.
func RenderValue(value any, ctx *Context) (any, error) {
	if value == nil {
		return nil, nil
	}

	switch v := value.(type) {
	case string:
		if _, ok := singleExpression(v); ok {
			return Evaluate(v, ctx)
		}
		return Render(v, ctx)

	case map[string]any:
		result := make(map[string]any, len(v))
		for key, val := range v {
			rendered, err := RenderValue(val, ctx)
			if err != nil {
				return nil, err
			}
			result[key] = rendered
		}
		return result, nil

	case []any:
		result := make([]any, len(v))
		for i, val := range v {
			rendered, err := RenderValue(val, ctx)
			if err != nil {
				return nil, err
			}
			result[i] = rendered
		}
		return result, nil

	case []string:
		result := make([]string, len(v))
		for i, val := range v {
			rendered, err := Render(val, ctx)
			if err != nil {
				return nil, err
			}
			result[i] = rendered
		}
		return result, nil

	default:
		return value, nil
	}
}

// RenderConfig рендерит аргументы шага.
// Это обёртка над RenderValue для map[string]any.
func RenderConfig(config map[string]any, ctx *Context) (map[string]any, error) {
	if config == nil {
		return make(map[string]any), nil
	}

	rendered, err := RenderValue(config, ctx)
	if err != nil {
		return nil, err
	}

	result, ok := rendered.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected map, got %T", ErrTemplateRender, rendered)
	}

	return result, nil
}

// RenderList вычисляет выражение loop.each и возвращает список элементов.
//
// Выражение без шаблона разбирается как список через запятую.
func RenderList(expr string, ctx *Context) ([]any, error) {
	if !strings.Contains(expr, "{{") {
		var out []any
		for _, part := range strings.Split(expr, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if f, err := strconv.ParseFloat(part, 64); err == nil {
				out = append(out, f)
				continue
			}
			out = append(out, part)
		}
		return out, nil
	}

	value, err := Evaluate(expr, ctx)
	if err != nil {
		return nil, err
	}
	if s, ok := value.(string); ok {
		return RenderList(s, ctx)
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("%w: each must evaluate to a list, got %T", ErrTemplateRender, value)
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, nil
}

// RenderInt вычисляет выражение loop.count.
func RenderInt(expr string, ctx *Context) (int, error) {
	value, err := Evaluate(expr, ctx)
	if err != nil {
		return 0, err
	}
	f, err := toFloat(value)
	if err != nil {
		return 0, fmt.Errorf("%w: count: %v", ErrTemplateRender, err)
	}
	return int(f), nil
}

// RenderCondition рендерит и вычисляет условие.
// Возвращает true, если условие выполняется.
func RenderCondition(condition string, ctx *Context) (bool, error) {
	if condition == "" {
		return true, nil
	}

	tmpl := fmt.Sprintf(`{{if %s}}true{{else}}false{{end}}`, condition)

	result, err := Render(tmpl, ctx)
	if err != nil {
		return false, err
	}

	return result == "true", nil
}
