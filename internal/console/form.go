package console

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/huh"
	"gopkg.in/yaml.v3"

	"github.com/shaiso/Acquire/internal/domain"
	"github.com/shaiso/Acquire/internal/metadata"
)

// HuhForm — форма метаданных в терминале.
//
// Показывает поля шаблона с последними значениями и поле для
// дополнительных строк key=value. Open блокирует вызывающую горутину
// до ответа оператора, поэтому должен выполняться в потоке UI.
type HuhForm struct {
	accessible bool
}

var _ metadata.Form = (*HuhForm)(nil)

// NewHuhForm создаёт форму.
func NewHuhForm() *HuhForm {
	return &HuhForm{}
}

// Accessible включает режим без TUI (обычные строки ввода).
func (f *HuhForm) Accessible(on bool) *HuhForm {
	f.accessible = on
	return f
}

// Open показывает форму и вызывает done с результатом.
func (f *HuhForm) Open(req metadata.Request, done func(metadata.Result)) {
	values := make([]string, len(req.Fields))
	for i, field := range req.Fields {
		values[i] = field.Value
	}
	var extra string
	confirmed := true

	fields := []huh.Field{
		huh.NewNote().Title("Metadata for " + req.Plan),
	}
	for i, field := range req.Fields {
		fields = append(fields, huh.NewInput().
			Title(field.Label()).
			Value(&values[i]))
	}
	fields = append(fields,
		huh.NewText().
			Title("Extra metadata").
			Description("One key=value per line").
			Value(&extra).
			Validate(func(s string) error {
				_, err := parseLines(s, req.Reserved)
				return err
			}),
		huh.NewConfirm().
			Title("Queue the plan?").
			Affirmative("Queue").
			Negative("Cancel").
			Value(&confirmed),
	)

	form := huh.NewForm(huh.NewGroup(fields...)).WithAccessible(f.accessible)
	if err := form.Run(); err != nil {
		if !errors.Is(err, huh.ErrUserAborted) {
			fmt.Println(styleError.Render("metadata form failed: " + err.Error()))
		}
		done(metadata.Result{Cancelled: true})
		return
	}
	if !confirmed {
		done(metadata.Result{Cancelled: true})
		return
	}

	// Строки уже проверены валидатором поля
	md, _ := collect(req.Fields, values, extra, req.Reserved)
	done(metadata.Result{Metadata: md})
}

// collect собирает метаданные из полей шаблона и дополнительных строк.
// Пустые поля пропускаются.
func collect(fields []metadata.Field, values []string, extra string, reserved []string) (domain.RunMetadata, error) {
	md := make(domain.RunMetadata)
	for i, field := range fields {
		if v := strings.TrimSpace(values[i]); v != "" {
			md[field.Name] = v
		}
	}

	lines, err := parseLines(extra, reserved)
	if err != nil {
		return nil, err
	}
	for k, v := range lines {
		md[k] = v
	}
	return md, nil
}

// parseLines разбирает строки key=value. Значение читается как YAML.
func parseLines(text string, reserved []string) (map[string]any, error) {
	out := make(map[string]any)
	for n, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, raw, ok := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("line %d: expected key=value", n+1)
		}
		if slices.Contains(reserved, key) {
			return nil, fmt.Errorf("line %d: %q is reserved", n+1, key)
		}

		raw = strings.TrimSpace(raw)
		var v any
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil || v == nil {
			v = raw
		}
		out[key] = v
	}
	return out, nil
}
