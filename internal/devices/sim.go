package devices

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SimMotor — симулированный мотор с пределами и скоростью перемещения.
type SimMotor struct {
	name     string
	low      float64
	high     float64
	velocity float64 // единиц в секунду; 0 — мгновенно

	mu       sync.RWMutex
	position float64
}

// NewSimMotor создаёт симулированный мотор в позиции 0.
func NewSimMotor(name string, low, high, velocity float64) *SimMotor {
	return &SimMotor{
		name:     name,
		low:      low,
		high:     high,
		velocity: velocity,
	}
}

// Name возвращает имя мотора.
func (m *SimMotor) Name() string {
	return m.name
}

// Set перемещает мотор. Ждёт окончания перемещения или отмены контекста.
func (m *SimMotor) Set(ctx context.Context, position float64) error {
	if position < m.low || position > m.high {
		return fmt.Errorf("%w: %s=%g (limits %g..%g)", ErrOutOfRange, m.name, position, m.low, m.high)
	}

	if m.velocity > 0 {
		distance := math.Abs(position - m.Position())
		travel := time.Duration(distance / m.velocity * float64(time.Second))
		if travel > 0 {
			timer := time.NewTimer(travel)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	m.mu.Lock()
	m.position = position
	m.mu.Unlock()
	return nil
}

// Position возвращает текущую позицию.
func (m *SimMotor) Position() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.position
}

// Read возвращает позицию мотора.
func (m *SimMotor) Read(_ context.Context) (map[string]Reading, error) {
	return map[string]Reading{
		m.name: {Value: m.Position(), Timestamp: time.Now()},
	}, nil
}

// Describe описывает значение позиции.
func (m *SimMotor) Describe() map[string]DataKey {
	return map[string]DataKey{
		m.name: {Source: "SIM:" + m.name, Dtype: "number", Shape: []int{}},
	}
}

// SimDetector — точечный детектор, сигнал которого — гауссиана от позиции мотора.
type SimDetector struct {
	name   string
	motor  *SimMotor
	center float64
	sigma  float64
	peak   float64

	mu       sync.Mutex
	value    float64
	exposure time.Duration
}

// NewSimDetector создаёт детектор, связанный с мотором.
func NewSimDetector(name string, motor *SimMotor, center, sigma, peak float64) *SimDetector {
	return &SimDetector{
		name:   name,
		motor:  motor,
		center: center,
		sigma:  sigma,
		peak:   peak,
	}
}

// SetExposure задаёт время экспозиции.
func (d *SimDetector) SetExposure(exposure time.Duration) {
	d.mu.Lock()
	d.exposure = exposure
	d.mu.Unlock()
}

// Name возвращает имя детектора.
func (d *SimDetector) Name() string {
	return d.name
}

// Trigger выполняет одно измерение.
func (d *SimDetector) Trigger(ctx context.Context) error {
	d.mu.Lock()
	exposure := d.exposure
	d.mu.Unlock()

	if exposure > 0 {
		timer := time.NewTimer(exposure)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	var x float64
	if d.motor != nil {
		x = d.motor.Position()
	}
	value := d.peak * math.Exp(-math.Pow(x-d.center, 2)/(2*d.sigma*d.sigma))

	d.mu.Lock()
	d.value = value
	d.mu.Unlock()
	return nil
}

// Read возвращает результат последнего измерения.
func (d *SimDetector) Read(_ context.Context) (map[string]Reading, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return map[string]Reading{
		d.name: {Value: d.value, Timestamp: time.Now()},
	}, nil
}

// Describe описывает значение детектора.
func (d *SimDetector) Describe() map[string]DataKey {
	return map[string]DataKey{
		d.name: {Source: "SIM:" + d.name, Dtype: "number", Shape: []int{}},
	}
}

// SimCamera — камера, которая пишет кадры во внешние файлы.
//
// Read возвращает ссылку на datum, сами данные описываются
// resource/datum документами.
type SimCamera struct {
	name  string
	root  string
	shape []int

	mu       sync.Mutex
	resource string
	frame    int
	lastID   string
	assets   []Asset
}

// NewSimCamera создаёт камеру, пишущую в каталог root.
func NewSimCamera(name, root string, width, height int) *SimCamera {
	return &SimCamera{
		name:  name,
		root:  root,
		shape: []int{height, width},
	}
}

// Name возвращает имя камеры.
func (c *SimCamera) Name() string {
	return c.name
}

// Trigger снимает кадр. Первый кадр открывает новый resource.
func (c *SimCamera) Trigger(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.resource == "" {
		c.resource = uuid.NewString()
		c.frame = 0
		c.assets = append(c.assets, Asset{
			Kind: "resource",
			Body: map[string]any{
				"uid":           c.resource,
				"spec":          "NPY_SEQ",
				"root":          c.root,
				"resource_path": c.name + "_" + c.resource[:8],
				"resource_kwargs": map[string]any{
					"shape": c.shape,
				},
			},
		})
	}

	c.lastID = fmt.Sprintf("%s/%d", c.resource, c.frame)
	c.assets = append(c.assets, Asset{
		Kind: "datum",
		Body: map[string]any{
			"datum_id":     c.lastID,
			"resource":     c.resource,
			"datum_kwargs": map[string]any{"frame": c.frame},
		},
	})
	c.frame++
	return nil
}

// Read возвращает datum_id последнего кадра.
func (c *SimCamera) Read(_ context.Context) (map[string]Reading, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return map[string]Reading{
		c.name + "_image": {Value: c.lastID, Timestamp: time.Now()},
	}, nil
}

// Describe описывает кадр как внешние данные.
func (c *SimCamera) Describe() map[string]DataKey {
	return map[string]DataKey{
		c.name + "_image": {
			Source:   "SIM:" + c.name,
			Dtype:    "array",
			Shape:    c.shape,
			External: "FILESTORE:",
		},
	}
}

// CollectAssets возвращает накопленные resource/datum документы.
func (c *SimCamera) CollectAssets() []Asset {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.assets
	c.assets = nil
	return out
}

// Reset закрывает текущий resource: следующий кадр откроет новый.
func (c *SimCamera) Reset() {
	c.mu.Lock()
	c.resource = ""
	c.mu.Unlock()
}

// DefaultRegistry возвращает реестр с симулированным стендом:
// motor1, det1 (гауссиана вокруг 0) и camera1.
func DefaultRegistry() *Registry {
	motor := NewSimMotor("motor1", -10, 10, 0)
	r := NewRegistry()
	r.Register(motor)
	r.Register(NewSimDetector("det1", motor, 0, 1, 1000))
	r.Register(NewSimCamera("camera1", "/tmp/acquire", 64, 48))
	return r
}
