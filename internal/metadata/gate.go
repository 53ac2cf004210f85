package metadata

import (
	"log/slog"
	"time"

	"github.com/shaiso/Acquire/internal/domain"
	"github.com/shaiso/Acquire/internal/events"
)

// Queue — очередь, в которую Gate ставит принятые submissions.
type Queue interface {
	Put(item domain.PrioritizedSubmission)
}

// Config — конфигурация Gate.
type Config struct {
	// Queue — очередь submissions. Обязательна.
	Queue Queue

	// Invoker — поток UI, в котором открываются формы.
	// Nil — форма открывается в вызывающей горутине.
	Invoker events.Invoker

	// Templates — шаблон формы. Nil — шаблон по умолчанию в памяти.
	Templates *Templates

	// OnEnqueue вызывается после постановки submission в очередь.
	OnEnqueue func(item domain.PrioritizedSubmission)

	// OnReject вызывается, если метаданные отклонены.
	OnReject func(c Candidate, err error)

	// OnCancel вызывается, если оператор отменил форму.
	OnCancel func(c Candidate)

	// Logger — логгер.
	Logger *slog.Logger
}

// Gate — шаг сбора метаданных перед постановкой в очередь.
//
// Gate не разделяет состояние с воркером: единственная связь — Queue.
type Gate struct {
	queue     Queue
	invoker   events.Invoker
	templates *Templates
	onEnqueue func(domain.PrioritizedSubmission)
	onReject  func(Candidate, error)
	onCancel  func(Candidate)
	logger    *slog.Logger
}

// NewGate создаёт новый Gate.
func NewGate(cfg Config) *Gate {
	if cfg.Templates == nil {
		cfg.Templates = NewTemplates()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Gate{
		queue:     cfg.Queue,
		invoker:   cfg.Invoker,
		templates: cfg.Templates,
		onEnqueue: cfg.OnEnqueue,
		onReject:  cfg.OnReject,
		onCancel:  cfg.OnCancel,
		logger:    cfg.Logger,
	}
}

// Templates возвращает шаблон формы.
func (g *Gate) Templates() *Templates {
	return g.templates
}

// Begin открывает форму для кандидата. Не ждёт ответа оператора.
//
// При подтверждении метаданные проверяются и submission ставится
// в очередь; при отмене кандидат молча отбрасывается.
func (g *Gate) Begin(c Candidate, form Form) {
	req := Request{
		Plan:     c.Plan.Name(),
		Reserved: domain.ReservedFor(c.Kwargs),
		Fields:   g.templates.Fields(),
	}

	open := func() {
		form.Open(req, func(res Result) {
			if res.Cancelled {
				g.logger.Debug("metadata form cancelled", "plan", req.Plan, "submission_id", c.ID)
				if g.onCancel != nil {
					g.onCancel(c)
				}
				return
			}
			_, _ = g.Admit(c, res.Metadata)
		})
	}

	if g.invoker != nil {
		g.invoker.Invoke(open)
		return
	}
	open()
}

// Admit проверяет метаданные, сливает их с kwargs и ставит submission
// в очередь. При пересечении с зарезервированными ключами возвращает
// *ReservedKeyError и ничего не ставит в очередь.
func (g *Gate) Admit(c Candidate, md domain.RunMetadata) (domain.PrioritizedSubmission, error) {
	if err := Check(c.Kwargs, md); err != nil {
		g.logger.Warn("metadata rejected", "plan", c.Plan.Name(), "submission_id", c.ID, "error", err)
		if g.onReject != nil {
			g.onReject(c, err)
		}
		return domain.PrioritizedSubmission{}, err
	}

	item := domain.PrioritizedSubmission{
		ID:          c.ID,
		Priority:    c.Priority,
		Plan:        c.Plan,
		Metadata:    c.Kwargs.Merge(md),
		Subscribers: c.Subscribers,
		SubmittedAt: time.Now(),
	}
	g.queue.Put(item)

	g.logger.Info("submission enqueued",
		"plan", c.Plan.Name(),
		"submission_id", c.ID,
		"priority", c.Priority,
	)

	if len(md) > 0 {
		if err := g.templates.Remember(md); err != nil {
			g.logger.Warn("failed to save metadata template", "error", err)
		}
	}
	if g.onEnqueue != nil {
		g.onEnqueue(item)
	}
	return item, nil
}

// Check проверяет kwargs и собранные метаданные на пересечение
// с зарезервированными ключами.
func Check(kwargs, md domain.RunMetadata) error {
	if keys := kwargs.Collisions(domain.ReservedKeys); len(keys) > 0 {
		return &ReservedKeyError{Keys: keys}
	}
	if keys := md.Collisions(domain.ReservedFor(kwargs)); len(keys) > 0 {
		return &ReservedKeyError{Keys: keys}
	}
	return nil
}
