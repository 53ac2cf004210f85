package metadata

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/shaiso/Acquire/internal/domain"
)

// TemplateVersion — версия формата файла шаблона.
const TemplateVersion = "acquire.metadata.v1"

// Field — поле формы метаданных.
type Field struct {
	Name  string `yaml:"name"`
	Title string `yaml:"title,omitempty"`
	Value string `yaml:"value,omitempty"`
}

// Label возвращает подпись поля.
func (f Field) Label() string {
	if f.Title != "" {
		return f.Title
	}
	return f.Name
}

// DefaultFields — поля нового шаблона.
func DefaultFields() []Field {
	return []Field{{Name: "sample_name", Title: "Sample Name"}}
}

// templateFile — формат файла шаблона.
type templateFile struct {
	Version string  `yaml:"version"`
	Fields  []Field `yaml:"fields"`
}

// Templates — сохраняемый шаблон формы метаданных.
//
// Хранит набор полей и последние введённые значения, чтобы следующая
// форма открывалась с ними. Потокобезопасен.
type Templates struct {
	path string

	mu     sync.RWMutex
	fields []Field
}

// NewTemplates создаёт шаблон в памяти (без файла).
func NewTemplates() *Templates {
	return &Templates{fields: DefaultFields()}
}

// LoadTemplates загружает шаблон из YAML файла.
// Если файла нет, используется шаблон по умолчанию.
func LoadTemplates(path string) (*Templates, error) {
	t := &Templates{path: path, fields: DefaultFields()}
	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return t, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read metadata template: %w", err)
	}

	var file templateFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse metadata template %s: %w", path, err)
	}
	if file.Version != "" && file.Version != TemplateVersion {
		return nil, fmt.Errorf("metadata template %s: unsupported version %q", path, file.Version)
	}
	if len(file.Fields) > 0 {
		t.fields = file.Fields
	}
	return t, nil
}

// Path возвращает путь файла шаблона.
func (t *Templates) Path() string {
	return t.path
}

// Fields возвращает копию полей шаблона.
func (t *Templates) Fields() []Field {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.fields)
}

// Values возвращает последние значения полей (непустые).
func (t *Templates) Values() domain.RunMetadata {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(domain.RunMetadata)
	for _, f := range t.fields {
		if f.Value != "" {
			out[f.Name] = f.Value
		}
	}
	return out
}

// Remember запоминает принятые метаданные и сохраняет шаблон в файл.
//
// Существующие поля сохраняют порядок, новые ключи добавляются в конец
// (в алфавитном порядке).
func (t *Templates) Remember(md domain.RunMetadata) error {
	t.mu.Lock()
	for i, f := range t.fields {
		if v, ok := md[f.Name]; ok {
			t.fields[i].Value = fmt.Sprint(v)
		}
	}
	for _, key := range md.Keys() {
		if !slices.ContainsFunc(t.fields, func(f Field) bool { return f.Name == key }) {
			t.fields = append(t.fields, Field{Name: key, Value: fmt.Sprint(md[key])})
		}
	}
	file := templateFile{Version: TemplateVersion, Fields: slices.Clone(t.fields)}
	t.mu.Unlock()

	if t.path == "" {
		return nil
	}

	data, err := yaml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode metadata template: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return fmt.Errorf("create template dir: %w", err)
	}
	if err := os.WriteFile(t.path, data, 0o644); err != nil {
		return fmt.Errorf("write metadata template: %w", err)
	}
	return nil
}
