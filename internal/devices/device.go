package devices

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Ошибки устройств.
var (
	// ErrDeviceNotFound — устройство не зарегистрировано.
	ErrDeviceNotFound = errors.New("device not found")

	// ErrNotMovable — устройство не поддерживает перемещение.
	ErrNotMovable = errors.New("device is not movable")

	// ErrNotTriggerable — устройство не поддерживает trigger.
	ErrNotTriggerable = errors.New("device is not triggerable")

	// ErrNotReadable — устройство не поддерживает чтение.
	ErrNotReadable = errors.New("device is not readable")

	// ErrOutOfRange — позиция вне пределов устройства.
	ErrOutOfRange = errors.New("position out of range")
)

// Reading — одно прочитанное значение.
type Reading struct {
	Value     any       `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// DataKey — описание одного значения для descriptor документа.
type DataKey struct {
	Source   string `json:"source"`
	Dtype    string `json:"dtype"`
	Shape    []int  `json:"shape"`
	External string `json:"external,omitempty"`
}

// Device — устройство с именем.
type Device interface {
	Name() string
}

// Movable — устройство, которое можно переместить.
type Movable interface {
	Device
	Set(ctx context.Context, position float64) error
	Position() float64
}

// Triggerable — устройство, которое запускает измерение.
type Triggerable interface {
	Device
	Trigger(ctx context.Context) error
}

// Readable — устройство, которое можно прочитать.
type Readable interface {
	Device
	Read(ctx context.Context) (map[string]Reading, error)
	Describe() map[string]DataKey
}

// Asset — resource или datum документ, порождённый устройством.
type Asset struct {
	// Kind — "resource" или "datum".
	Kind string
	Body map[string]any
}

// AssetWriter — устройство, которое пишет данные во внешние файлы.
//
// CollectAssets возвращает документы, накопленные с прошлого вызова.
type AssetWriter interface {
	Device
	CollectAssets() []Asset
}

// Registry — реестр устройств.
//
// Потокобезопасен.
type Registry struct {
	mu      sync.RWMutex
	devices map[string]Device
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{
		devices: make(map[string]Device),
	}
}

// Register регистрирует устройство.
// Если устройство с таким именем уже существует, оно будет перезаписано.
func (r *Registry) Register(d Device) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.devices[d.Name()] = d
}

// Get возвращает устройство по имени.
func (r *Registry) Get(name string) (Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.devices[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, name)
	}
	return d, nil
}

// Has проверяет, зарегистрировано ли устройство.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.devices[name]
	return ok
}

// Names возвращает отсортированный список имён устройств.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.devices))
	for name := range r.devices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
