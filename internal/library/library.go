package library

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/shaiso/Acquire/internal/domain"
	"github.com/shaiso/Acquire/internal/engine"
)

// Source — происхождение плана.
type Source string

const (
	SourceBuiltin Source = "builtin"
	SourceFile    Source = "file"
	SourceCode    Source = "code"
)

// Info — описание плана для списков (API, CLI, консоль).
type Info struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  domain.ParameterSchema `json:"parameters,omitempty"`
	Source      Source                 `json:"source"`
	Path        string                 `json:"path,omitempty"`
}

type entry struct {
	plan   domain.Plan
	source Source
	path   string
}

// Library — потокобезопасный реестр планов.
type Library struct {
	mu      sync.RWMutex
	entries map[string]entry

	// files — имя плана по пути файла
	files map[string]string

	onChange func(name string, removed bool)
	logger   *slog.Logger
}

// Config — конфигурация Library.
type Config struct {
	// OnChange вызывается после загрузки или удаления плана из файла.
	OnChange func(name string, removed bool)

	Logger *slog.Logger
}

// New создаёт библиотеку со встроенными планами.
func New(cfg Config) *Library {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	l := &Library{
		entries:  make(map[string]entry),
		files:    make(map[string]string),
		onChange: cfg.OnChange,
		logger:   logger,
	}
	for _, p := range engine.Builtins() {
		l.entries[p.Name()] = entry{plan: p, source: SourceBuiltin}
	}
	return l
}

// Register добавляет или заменяет план.
func (l *Library) Register(plan domain.Plan) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if old, ok := l.entries[plan.Name()]; ok && old.source == SourceBuiltin {
		return fmt.Errorf("%w: %s", ErrBuiltinPlan, plan.Name())
	}
	l.entries[plan.Name()] = entry{plan: plan, source: SourceCode}
	return nil
}

// Get возвращает план по имени.
func (l *Library) Get(name string) (domain.Plan, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	e, ok := l.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPlanNotFound, name)
	}
	return e.plan, nil
}

// Info возвращает описание плана.
func (l *Library) Info(name string) (Info, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	e, ok := l.entries[name]
	if !ok {
		return Info{}, fmt.Errorf("%w: %s", ErrPlanNotFound, name)
	}
	return e.info(), nil
}

// List возвращает описания всех планов, отсортированные по имени.
func (l *Library) List() []Info {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Info, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, e.info())
	}
	slices.SortFunc(out, func(a, b Info) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Remove удаляет план. Встроенные планы удалить нельзя.
func (l *Library) Remove(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPlanNotFound, name)
	}
	if e.source == SourceBuiltin {
		return fmt.Errorf("%w: %s", ErrBuiltinPlan, name)
	}
	delete(l.entries, name)
	if e.path != "" {
		delete(l.files, e.path)
	}
	return nil
}

// LoadFile загружает план из YAML файла PlanSpec.
//
// Если файл раньше содержал план с другим именем, старый план удаляется.
func (l *Library) LoadFile(path string) (domain.Plan, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("read plan file: %w", err)
	}

	spec, err := engine.ParseSpec(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(abs), err)
	}
	plan, err := engine.NewSpecPlan(spec)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(abs), err)
	}

	l.mu.Lock()
	if old, ok := l.entries[plan.Name()]; ok && old.source == SourceBuiltin {
		l.mu.Unlock()
		return nil, fmt.Errorf("%s: %w: %s", filepath.Base(abs), ErrBuiltinPlan, plan.Name())
	}
	if prev, ok := l.files[abs]; ok && prev != plan.Name() {
		delete(l.entries, prev)
	}
	l.entries[plan.Name()] = entry{plan: plan, source: SourceFile, path: abs}
	l.files[abs] = plan.Name()
	l.mu.Unlock()

	l.logger.Info("plan loaded", "plan", plan.Name(), "path", abs)
	if l.onChange != nil {
		l.onChange(plan.Name(), false)
	}
	return plan, nil
}

// LoadDir загружает все *.yaml и *.yml файлы каталога.
//
// Ошибочные файлы пропускаются; все ошибки возвращаются вместе.
func (l *Library) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read plan library: %w", err)
	}

	var errs []error
	loaded := 0
	for _, de := range entries {
		if de.IsDir() || !isPlanFile(de.Name()) {
			continue
		}
		if _, err := l.LoadFile(filepath.Join(dir, de.Name())); err != nil {
			l.logger.Warn("skipping plan file", "file", de.Name(), "error", err)
			errs = append(errs, err)
			continue
		}
		loaded++
	}
	return loaded, errors.Join(errs...)
}

// unloadFile удаляет план, загруженный из файла.
func (l *Library) unloadFile(path string) {
	l.mu.Lock()
	name, ok := l.files[path]
	if ok {
		delete(l.files, path)
		delete(l.entries, name)
	}
	l.mu.Unlock()

	if !ok {
		return
	}
	l.logger.Info("plan removed", "plan", name, "path", path)
	if l.onChange != nil {
		l.onChange(name, true)
	}
}

func (e entry) info() Info {
	info := Info{
		Name:   e.plan.Name(),
		Source: e.source,
		Path:   e.path,
	}
	if d, ok := e.plan.(interface{ Description() string }); ok {
		info.Description = d.Description()
	}
	if p, ok := domain.IsParameterized(e.plan); ok {
		info.Parameters = p.Parameters()
	}
	return info
}

func isPlanFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
