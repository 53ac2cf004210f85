package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shaiso/Acquire/internal/domain"
)

// DefaultPath — файл конфигурации по умолчанию.
const DefaultPath = "acquire.yaml"

// ErrInvalidConfig — ошибка валидации конфигурации.
var ErrInvalidConfig = errors.New("invalid config")

// Config — конфигурация станции.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Coordinator CoordinatorConfig `yaml:"coordinator"`
	Store       StoreConfig       `yaml:"store"`
	MQ          MQConfig          `yaml:"mq"`
	Webhook     WebhookConfig     `yaml:"webhook"`
	Library     LibraryConfig     `yaml:"library"`
	Metadata    MetadataConfig    `yaml:"metadata"`
	Schedules   []domain.Schedule `yaml:"schedules"`
	Tracing     TracingConfig     `yaml:"tracing"`
}

// ServerConfig — HTTP API.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Addr возвращает адрес для http.Server.
func (s ServerConfig) Addr() string {
	return ":" + strconv.Itoa(s.Port)
}

// CoordinatorConfig — координатор и движок.
type CoordinatorConfig struct {
	PollInterval    time.Duration  `yaml:"poll_interval"`
	DefaultPriority int            `yaml:"default_priority"`
	DefaultMetadata map[string]any `yaml:"default_metadata"`
	StepTimeout     time.Duration  `yaml:"step_timeout"`
}

// StoreConfig — хранилище документов.
// Если DatabaseURL пуст, используется SQLite.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url"`
	SQLitePath  string `yaml:"sqlite_path"`
}

// UsePostgres возвращает true, если настроен Postgres.
func (s StoreConfig) UsePostgres() bool {
	return s.DatabaseURL != ""
}

// MQConfig — RabbitMQ. Пустой URL отключает RabbitMQ.
type MQConfig struct {
	URL string `yaml:"url"`
}

// Enabled возвращает true, если RabbitMQ настроен.
func (m MQConfig) Enabled() bool {
	return m.URL != ""
}

// WebhookConfig — HTTP-приёмник документов. Пустой URL его отключает.
type WebhookConfig struct {
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`
	Timeout time.Duration     `yaml:"timeout"`
}

// Enabled возвращает true, если webhook настроен.
func (w WebhookConfig) Enabled() bool {
	return w.URL != ""
}

// LibraryConfig — библиотека планов.
type LibraryConfig struct {
	Dir   string `yaml:"dir"`
	Watch bool   `yaml:"watch"`
}

// MetadataConfig — форма метаданных.
type MetadataConfig struct {
	TemplatePath string `yaml:"template_path"`
}

// TracingConfig — трассировка.
type TracingConfig struct {
	Enabled     bool `yaml:"enabled"`
	PrettyPrint bool `yaml:"pretty_print"`
}

// Default возвращает конфигурацию по умолчанию.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ShutdownTimeout: 10 * time.Second,
		},
		Coordinator: CoordinatorConfig{
			PollInterval:    100 * time.Millisecond,
			DefaultPriority: 1,
			DefaultMetadata: map[string]any{"location": "server"},
		},
		Store: StoreConfig{
			SQLitePath: "acquire.db",
		},
		Library: LibraryConfig{
			Watch: true,
		},
		Metadata: MetadataConfig{
			TemplatePath: defaultTemplatePath(),
		},
	}
}

// Load загружает конфигурацию.
//
// Пустой path: $ACQUIRE_CONFIG, затем ./acquire.yaml. Отсутствие файла
// по умолчанию не ошибка; отсутствие явно указанного файла — ошибка.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = os.Getenv("ACQUIRE_CONFIG")
		explicit = path != ""
	}
	if !explicit {
		path = DefaultPath
	}

	if err := cfg.loadFromFile(path); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
	}

	cfg.applyDefaults()
	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

// applyDefaults заполняет нулевые значения после разбора файла.
func (c *Config) applyDefaults() {
	d := Default()
	if c.Server.Port == 0 {
		c.Server.Port = d.Server.Port
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = d.Server.ShutdownTimeout
	}
	if c.Coordinator.PollInterval <= 0 {
		c.Coordinator.PollInterval = d.Coordinator.PollInterval
	}
	if c.Coordinator.DefaultPriority == 0 {
		c.Coordinator.DefaultPriority = d.Coordinator.DefaultPriority
	}
	if c.Store.SQLitePath == "" {
		c.Store.SQLitePath = d.Store.SQLitePath
	}
	if c.Metadata.TemplatePath == "" {
		c.Metadata.TemplatePath = d.Metadata.TemplatePath
	}
}

func (c *Config) loadFromEnv() {
	if v := os.Getenv("API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("DB_URL"); v != "" {
		c.Store.DatabaseURL = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Store.SQLitePath = v
	}
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		c.MQ.URL = v
	}
	if v := os.Getenv("WEBHOOK_URL"); v != "" {
		c.Webhook.URL = v
	}
	if v := os.Getenv("PLAN_LIBRARY"); v != "" {
		c.Library.Dir = v
	}
	if v := os.Getenv("METADATA_TEMPLATE"); v != "" {
		c.Metadata.TemplatePath = v
	}
	if v := os.Getenv("TRACING_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			c.Tracing.Enabled = enabled
		}
	}
}

// Validate проверяет конфигурацию.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Coordinator.DefaultPriority < 0 {
		errs = append(errs, fmt.Errorf("coordinator.default_priority must not be negative"))
	}
	for _, key := range domain.RunMetadata(c.Coordinator.DefaultMetadata).Collisions(domain.ReservedKeys) {
		errs = append(errs, fmt.Errorf("coordinator.default_metadata: key %q is reserved", key))
	}

	names := make(map[string]bool)
	for i, s := range c.Schedules {
		prefix := fmt.Sprintf("schedules[%d]", i)
		switch {
		case s.Name == "":
			errs = append(errs, fmt.Errorf("%s: name is required", prefix))
		case names[s.Name]:
			errs = append(errs, fmt.Errorf("%s: duplicate name %q", prefix, s.Name))
		}
		names[s.Name] = true

		if s.Plan == "" {
			errs = append(errs, fmt.Errorf("%s: plan is required", prefix))
		}
		if !s.IsCron() && !s.IsInterval() {
			errs = append(errs, fmt.Errorf("%s: cron or interval_sec is required", prefix))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

func defaultTemplatePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".acquire", "metadata.yaml")
	}
	return filepath.Join(dir, "acquire", "metadata.yaml")
}
