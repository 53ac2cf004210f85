// Package station собирает компоненты станции по конфигурации:
// хранилище, библиотеку планов, движок, координатор, sinks документов,
// RabbitMQ и планировщик. Используется серверами acquire-server и
// acquire-console.
package station

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shaiso/Acquire/internal/broker"
	"github.com/shaiso/Acquire/internal/config"
	"github.com/shaiso/Acquire/internal/coordinator"
	"github.com/shaiso/Acquire/internal/domain"
	"github.com/shaiso/Acquire/internal/engine"
	"github.com/shaiso/Acquire/internal/events"
	"github.com/shaiso/Acquire/internal/library"
	"github.com/shaiso/Acquire/internal/metadata"
	"github.com/shaiso/Acquire/internal/mq"
	"github.com/shaiso/Acquire/internal/repo"
	"github.com/shaiso/Acquire/internal/scheduler"
	"github.com/shaiso/Acquire/internal/telemetry"
)

// Options — то, что зависит от интерфейса оператора.
type Options struct {
	// Invoker — поток UI для форм (консоль). Nil — без потока UI.
	Invoker events.Invoker

	// Form — форма метаданных по умолчанию. Nil — без формы.
	Form metadata.Form

	// Prompter — диалог параметров по умолчанию.
	Prompter coordinator.ParameterPrompter
}

// Station — собранная станция.
type Station struct {
	Config      *config.Config
	Engine      *engine.RunEngine
	Coordinator *coordinator.Coordinator
	Library     *library.Library
	Store       repo.Store
	Metrics     *telemetry.Metrics
	Scheduler   *scheduler.Scheduler

	conn       *mq.Connection
	dispatcher *broker.Dispatcher
	relay      *broker.EventRelay
	logger     *slog.Logger
	closers    []func()
}

// New собирает станцию. При ошибке уже открытые ресурсы закрываются.
func New(ctx context.Context, cfg *config.Config, opts Options, logger *slog.Logger) (_ *Station, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	st := &Station{
		Config:  cfg,
		Metrics: telemetry.NewMetrics(),
		logger:  logger,
	}
	defer func() {
		if err != nil {
			st.closeResources()
		}
	}()

	if err := st.openStore(ctx); err != nil {
		return nil, err
	}
	if err := st.loadLibrary(); err != nil {
		return nil, err
	}
	st.connectMQ(ctx)

	templates, err := metadata.LoadTemplates(cfg.Metadata.TemplatePath)
	if err != nil {
		return nil, err
	}

	st.Engine = engine.New(engine.Config{
		DefaultMetadata: domain.RunMetadata(cfg.Coordinator.DefaultMetadata),
		StepTimeout:     cfg.Coordinator.StepTimeout,
		Logger:          logger,
	})

	st.Coordinator = coordinator.New(coordinator.Config{
		Engine:          st.Engine,
		Form:            opts.Form,
		Prompter:        opts.Prompter,
		Invoker:         opts.Invoker,
		Templates:       templates,
		Plans:           st.Library,
		Conn:            st.conn,
		PollInterval:    cfg.Coordinator.PollInterval,
		DefaultPriority: cfg.Coordinator.DefaultPriority,
		Metrics:         st.Metrics,
		Logger:          logger,
	})

	if err := st.attachSinks(); err != nil {
		return nil, err
	}

	sched, err := scheduler.New(scheduler.Config{
		Coordinator: st.Coordinator,
		Plans:       st.Library,
		Schedules:   cfg.Schedules,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}
	st.Scheduler = sched

	return st, nil
}

func (st *Station) openStore(ctx context.Context) error {
	cfg := st.Config.Store
	if cfg.UsePostgres() {
		pool, err := repo.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		if err := repo.Migrate(ctx, pool); err != nil {
			pool.Close()
			return err
		}
		store := repo.NewPostgresStore(pool)
		st.Store = store
		st.closers = append(st.closers, func() { store.Close() })
		st.logger.Info("document store: postgres")
		return nil
	}

	store, err := repo.OpenSQLite(ctx, cfg.SQLitePath)
	if err != nil {
		return err
	}
	st.Store = store
	st.closers = append(st.closers, func() { store.Close() })
	st.logger.Info("document store: sqlite", "path", cfg.SQLitePath)
	return nil
}

func (st *Station) loadLibrary() error {
	st.Library = library.New(library.Config{
		OnChange: func(name string, removed bool) {
			if st.Coordinator == nil {
				return
			}
			if removed {
				st.Coordinator.Notify(events.NoticeInfo, "Plan removed: "+name)
			} else {
				st.Coordinator.Notify(events.NoticeInfo, "Plan loaded: "+name)
			}
		},
		Logger: st.logger,
	})

	dir := st.Config.Library.Dir
	if dir == "" {
		return nil
	}
	n, err := st.Library.LoadDir(dir)
	if err != nil {
		// Остальные файлы загружены, станция работает без сломанных планов
		st.logger.Warn("some plan files failed to load", "dir", dir, "error", err)
	}
	st.logger.Info("plan library loaded", "dir", dir, "plans", n)
	return nil
}

// connectMQ подключает RabbitMQ. Недоступный брокер не мешает станции.
func (st *Station) connectMQ(ctx context.Context) {
	if !st.Config.MQ.Enabled() {
		return
	}

	conn, err := mq.NewConnection(st.Config.MQ.URL, st.logger)
	if err != nil {
		st.logger.Warn("RabbitMQ not available, remote submissions disabled", "error", err)
		return
	}
	if err := mq.SetupTopology(ctx, conn); err != nil {
		st.logger.Warn("failed to setup topology", "error", err)
	}
	st.conn = conn
	st.closers = append(st.closers, func() { conn.Close() })
	st.logger.Info("RabbitMQ connected")
}

func (st *Station) attachSinks() error {
	sinks := []broker.Sink{broker.NewStoreSink(st.Store)}

	var publisher *mq.Publisher
	if st.conn != nil {
		publisher = mq.NewPublisher(st.conn, st.logger)
		sinks = append(sinks, broker.NewPublisherSink(publisher))
	}
	if hook := st.Config.Webhook; hook.Enabled() {
		sinks = append(sinks, broker.NewWebhookSink(broker.WebhookConfig{
			URL:     hook.URL,
			Headers: hook.Headers,
			Timeout: hook.Timeout,
		}))
		st.logger.Info("webhook sink enabled", "url", hook.URL)
	}

	dispatcher, err := broker.Attach(broker.Config{
		Bus:      st.Coordinator.Events(),
		Sinks:    sinks,
		Notifier: st.Coordinator,
		Metrics:  st.Metrics,
		Logger:   st.logger,
	})
	if err != nil {
		return err
	}
	st.dispatcher = dispatcher

	if publisher != nil {
		st.relay = broker.NewEventRelay(st.Coordinator.Events(), publisher, st.logger)
	}
	return nil
}

// Start запускает координатор, планировщик и наблюдение за библиотекой.
func (st *Station) Start(ctx context.Context) error {
	if err := st.Coordinator.Start(ctx); err != nil {
		return err
	}

	go st.Scheduler.Run(ctx)

	if dir := st.Config.Library.Dir; dir != "" && st.Config.Library.Watch {
		if err := st.Library.Watch(ctx, dir); err != nil {
			st.logger.Warn("plan library watch disabled", "dir", dir, "error", err)
		}
	}
	return nil
}

// Close останавливает координатор и закрывает ресурсы.
// Документы, уже испущенные движком, доходят до sinks.
func (st *Station) Close() {
	if st.Coordinator != nil {
		st.Coordinator.Stop()
	}
	st.closeResources()
}

func (st *Station) closeResources() {
	if st.relay != nil {
		st.relay.Close()
	}
	if st.dispatcher != nil {
		st.dispatcher.Detach()
	}
	for i := len(st.closers) - 1; i >= 0; i-- {
		st.closers[i]()
	}
	st.closers = nil
}
