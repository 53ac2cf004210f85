package console

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"

	"github.com/shaiso/Acquire/internal/coordinator"
	"github.com/shaiso/Acquire/internal/domain"
)

// AskFunc задаёт один вопрос (survey.AskOne).
type AskFunc func(p survey.Prompt, response any, opts ...survey.AskOpt) error

// SurveyPrompter — диалог параметров плана в терминале.
//
// Спрашивает каждый параметр схемы по порядку. Пустой ответ означает
// значение по умолчанию. Ctrl+C отменяет submission.
type SurveyPrompter struct {
	ask AskFunc
}

var _ coordinator.ParameterPrompter = (*SurveyPrompter)(nil)

// NewSurveyPrompter создаёт диалог на survey.AskOne.
func NewSurveyPrompter() *SurveyPrompter {
	return &SurveyPrompter{ask: survey.AskOne}
}

// NewSurveyPrompterWith создаёт диалог с заданной функцией вопроса.
func NewSurveyPrompterWith(ask AskFunc) *SurveyPrompter {
	return &SurveyPrompter{ask: ask}
}

// Prompt спрашивает значения параметров.
func (p *SurveyPrompter) Prompt(ctx context.Context, plan string, schema domain.ParameterSchema) (map[string]any, error) {
	values := make(map[string]any, len(schema))

	for _, def := range schema {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		v, err := p.askParameter(plan, def)
		if errors.Is(err, terminal.InterruptErr) {
			return nil, coordinator.ErrCancelled
		}
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", def.Name, err)
		}
		if v != nil {
			values[def.Name] = v
		}
	}
	return values, nil
}

// askParameter возвращает nil, если оператор оставил значение по умолчанию.
func (p *SurveyPrompter) askParameter(plan string, def domain.ParameterDef) (any, error) {
	message := fmt.Sprintf("%s · %s", plan, def.Label())

	switch def.Type {
	case domain.ParameterBool:
		def0, _ := def.Default.(bool)
		var answer bool
		if err := p.ask(&survey.Confirm{Message: message, Default: def0}, &answer); err != nil {
			return nil, err
		}
		return answer, nil

	case domain.ParameterChoice:
		prompt := &survey.Select{Message: message, Options: def.Choices}
		if def.Default != nil {
			prompt.Default = fmt.Sprint(def.Default)
		}
		var answer string
		if err := p.ask(prompt, &answer); err != nil {
			return nil, err
		}
		return answer, nil
	}

	prompt := &survey.Input{
		Message: message,
		Default: formatDefault(def.Default),
	}
	if def.Type == domain.ParameterList {
		prompt.Help = "comma-separated values"
	}

	var answer string
	if err := p.ask(prompt, &answer, survey.WithValidator(parameterValidator(def))); err != nil {
		return nil, err
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		return nil, nil
	}
	return answer, nil
}

// parameterValidator проверяет ответ теми же правилами, что и Bind.
func parameterValidator(def domain.ParameterDef) survey.Validator {
	return func(ans any) error {
		s, _ := ans.(string)
		s = strings.TrimSpace(s)
		if s == "" {
			if def.Required && def.Default == nil {
				return errors.New("value is required")
			}
			return nil
		}
		_, err := domain.ParameterSchema{def}.Coerce(map[string]any{def.Name: s})
		return err
	}
}

// formatDefault показывает значение по умолчанию в поле ввода.
func formatDefault(v any) string {
	switch d := v.(type) {
	case nil:
		return ""
	case []any:
		parts := make([]string, len(d))
		for i, item := range d {
			parts[i] = fmt.Sprint(item)
		}
		return strings.Join(parts, ", ")
	case []string:
		return strings.Join(d, ", ")
	}
	return fmt.Sprint(v)
}
