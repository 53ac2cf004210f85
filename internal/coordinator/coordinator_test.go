package coordinator

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/shaiso/Acquire/internal/domain"
	"github.com/shaiso/Acquire/internal/engine"
	"github.com/shaiso/Acquire/internal/engine/enginetest"
	"github.com/shaiso/Acquire/internal/events"
	"github.com/shaiso/Acquire/internal/metadata"
)

const waitTimeout = 2 * time.Second

// eventRecorder собирает уведомления в порядке публикации.
type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) record(ev events.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *eventRecorder) all() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event(nil), r.events...)
}

func (r *eventRecorder) kinds() []events.Kind {
	evs := r.all()
	out := make([]events.Kind, len(evs))
	for i, ev := range evs {
		out[i] = ev.Kind()
	}
	return out
}

func (r *eventRecorder) count(kind events.Kind) int {
	n := 0
	for _, ev := range r.all() {
		if ev.Kind() == kind {
			n++
		}
	}
	return n
}

func (r *eventRecorder) waitFor(t *testing.T, kind events.Kind, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return r.count(kind) >= n }, waitTimeout, time.Millisecond,
		"waiting for %d %s events, got %v", n, kind, r.kinds())
}

func (r *eventRecorder) notices() []events.Notice {
	var out []events.Notice
	for _, ev := range r.all() {
		if n, ok := ev.(events.Notice); ok {
			out = append(out, n)
		}
	}
	return out
}

type harness struct {
	c   *Coordinator
	eng *enginetest.Engine
	rec *eventRecorder
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()

	eng := enginetest.New()
	cfg.Engine = eng
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 5 * time.Millisecond
	}

	c := New(cfg)
	rec := &eventRecorder{}
	c.Events().Subscribe(rec.record, events.Synchronous())

	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() {
		eng.Release()
		c.Stop()
	})

	return &harness{c: c, eng: eng, rec: rec}
}

func (h *harness) waitStarted(t *testing.T, plan string) {
	t.Helper()
	select {
	case name := <-h.eng.Started():
		require.Equal(t, plan, name)
	case <-time.After(waitTimeout):
		t.Fatalf("plan %s did not start", plan)
	}
}

func simplePlan(name string) domain.Plan {
	return enginetest.Plan(name, domain.CommandOpenRun, domain.CommandCloseRun)
}

func blockingPlan(name string) domain.Plan {
	return enginetest.Plan(name, domain.CommandOpenRun, enginetest.CommandBlock, domain.CommandCloseRun)
}

// --- Testable properties ---

func TestCoordinator_MutualExclusion(t *testing.T) {
	h := newHarness(t, Config{})

	for i := range 10 {
		_, err := h.c.Submit(context.Background(), simplePlan(fmt.Sprintf("p%d", i)))
		require.NoError(t, err)
	}

	h.rec.waitFor(t, events.KindFinished, 10)
	assert.Equal(t, 1, h.eng.MaxConcurrent())
	assert.Len(t, h.eng.Calls(), 10)
}

func TestCoordinator_QueueDraining(t *testing.T) {
	h := newHarness(t, Config{})

	plans := []domain.Plan{
		simplePlan("a"),
		enginetest.RaisePlan("b", "boom"),
		simplePlan("c"),
		enginetest.RaisePlan("d", "boom again"),
		simplePlan("e"),
	}
	for _, p := range plans {
		_, err := h.c.Submit(context.Background(), p)
		require.NoError(t, err)
	}

	h.rec.waitFor(t, events.KindFinished, len(plans))

	// Каждому Started соответствует следующий за ним Finished той же submission
	var open *events.Started
	pairs := 0
	for _, ev := range h.rec.all() {
		switch e := ev.(type) {
		case events.Started:
			require.Nil(t, open, "Started before previous Finished")
			open = &e
		case events.Finished:
			require.NotNil(t, open, "Finished without Started")
			assert.Equal(t, open.SubmissionID, e.SubmissionID)
			open = nil
			pairs++
		}
	}
	assert.Equal(t, len(plans), pairs)
	assert.Equal(t, 2, h.rec.count(events.KindException))
}

func TestCoordinator_ReadyInvariant(t *testing.T) {
	eng := enginetest.New()
	c := New(Config{Engine: eng, PollInterval: 5 * time.Millisecond})

	var mu sync.Mutex
	var violations []string
	ready := 0
	c.Events().Subscribe(func(ev events.Event) {
		if _, ok := ev.(events.Ready); !ok {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		ready++
		if s := c.Status(); !s.Idle {
			violations = append(violations, fmt.Sprintf("%+v", s))
		}
	}, events.Synchronous())

	// Все submissions в очереди до старта worker: Ready только в конце
	for _, p := range []domain.Plan{simplePlan("a"), enginetest.RaisePlan("b", "bad"), simplePlan("c")} {
		_, err := c.Submit(context.Background(), p)
		require.NoError(t, err)
	}

	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return ready > 0
	}, waitTimeout, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, ready)
	assert.Empty(t, violations)
	assert.True(t, c.IsIdle())
}

func TestCoordinator_MetadataGuard(t *testing.T) {
	tests := []struct {
		name string
		opts []SubmitOption
		keys []string
	}{
		{"uid", []SubmitOption{WithMetadata(map[string]any{"uid": "x"})}, []string{"uid"}},
		{"time", []SubmitOption{WithMetadata(map[string]any{"time": 1.0})}, []string{"time"}},
		{"scan_id", []SubmitOption{WithMetadata(map[string]any{"scan_id": 7})}, []string{"scan_id"}},
		{"plan_type", []SubmitOption{WithMetadata(map[string]any{"plan_type": "x"})}, []string{"plan_type"}},
		{"plan_args", []SubmitOption{WithMetadata(map[string]any{"plan_args": "x"})}, []string{"plan_args"}},
		{"existing kwarg", []SubmitOption{
			WithKwargs(map[string]any{"operator": "kim"}),
			WithMetadata(map[string]any{"operator": "lee"}),
		}, []string{"operator"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, Config{})

			id, err := h.c.Submit(context.Background(), simplePlan("guarded"), tt.opts...)

			var rke *metadata.ReservedKeyError
			require.ErrorAs(t, err, &rke)
			assert.Equal(t, tt.keys, rke.Keys)
			assert.Equal(t, uuid.Nil, id)
			assert.Equal(t, 0, h.c.Status().Unfinished)

			notices := h.rec.notices()
			require.Len(t, notices, 1)
			assert.Equal(t, events.NoticeWarning, notices[0].Level)
			assert.Contains(t, notices[0].Text, "is reserved and cannot be used")
		})
	}
}

func TestCoordinator_AbortWhenIdle(t *testing.T) {
	h := newHarness(t, Config{})

	assert.NoError(t, h.c.Abort("nothing"))
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, h.rec.count(events.KindAborted))
}

func TestCoordinator_AbortWhenRunning(t *testing.T) {
	h := newHarness(t, Config{})

	_, err := h.c.Submit(context.Background(), blockingPlan("long"))
	require.NoError(t, err)
	h.waitStarted(t, "long")

	require.NoError(t, h.c.Abort("beam lost"))
	h.rec.waitFor(t, events.KindReady, 1)

	assert.Equal(t, domain.EngineIdle, h.c.State())
	assert.Zero(t, h.rec.count(events.KindException))

	var finished events.Finished
	var aborted events.Aborted
	for _, ev := range h.rec.all() {
		switch e := ev.(type) {
		case events.Finished:
			finished = e
		case events.Aborted:
			aborted = e
		}
	}
	assert.Equal(t, "beam lost", aborted.Reason)
	assert.Equal(t, events.OutcomeAborted, finished.Outcome)
	assert.Contains(t, h.rec.notices(), events.Notice{Level: events.NoticeInfo, Text: "Run aborted"})
}

func TestCoordinator_PriorityOrdering(t *testing.T) {
	h := newHarness(t, Config{})

	_, err := h.c.Submit(context.Background(), blockingPlan("busy"), WithPriority(0))
	require.NoError(t, err)
	h.waitStarted(t, "busy")

	for _, p := range []int{3, 1, 2} {
		_, err := h.c.Submit(context.Background(), simplePlan(fmt.Sprintf("p%d", p)), WithPriority(p))
		require.NoError(t, err)
	}
	assert.Equal(t, 3, h.c.Status().Pending)

	h.eng.Release()
	h.rec.waitFor(t, events.KindReady, 1)

	var order []string
	for _, call := range h.eng.Calls() {
		order = append(order, call.Plan)
	}
	assert.Equal(t, []string{"busy", "p1", "p2", "p3"}, order)
}

// --- Scenarios ---

func TestCoordinator_ScenarioMetadataReachesStartDocument(t *testing.T) {
	h := newHarness(t, Config{})

	_, err := h.c.Submit(context.Background(), simplePlan("A"),
		WithPriority(1),
		WithMetadata(map[string]any{"sample_name": "foo"}),
	)
	require.NoError(t, err)
	h.rec.waitFor(t, events.KindReady, 1)

	assert.Equal(t, []events.Kind{
		events.KindStarted,
		events.KindDocument, // start
		events.KindDocument, // stop
		events.KindFinished,
		events.KindReady,
	}, h.rec.kinds())

	doc := h.rec.all()[1].(events.DocumentYielded)
	assert.Equal(t, domain.DocumentStart, doc.Name)
	assert.Equal(t, "foo", doc.Body["sample_name"])
}

func TestCoordinator_ScenarioFailureThenNextSubmission(t *testing.T) {
	h := newHarness(t, Config{})

	_, err := h.c.Submit(context.Background(), enginetest.RaisePlan("B", "invalid value"))
	require.NoError(t, err)
	h.rec.waitFor(t, events.KindReady, 1)

	var kinds []events.Kind
	for _, k := range h.rec.kinds() {
		if k != events.KindDocument && k != events.KindNotice {
			kinds = append(kinds, k)
		}
	}
	assert.Equal(t, []events.Kind{
		events.KindStarted, events.KindException, events.KindFinished, events.KindReady,
	}, kinds)

	for _, ev := range h.rec.all() {
		if e, ok := ev.(events.ExceptionRaised); ok {
			assert.Equal(t, "B", e.Plan)
			assert.ErrorContains(t, e.Err, "invalid value")
		}
	}

	// Worker принимает следующую submission
	_, err = h.c.Submit(context.Background(), simplePlan("C"))
	require.NoError(t, err)
	h.rec.waitFor(t, events.KindReady, 2)
	assert.Equal(t, 2, h.rec.count(events.KindFinished))
}

func TestCoordinator_ScenarioReservedMetadataNeverStarts(t *testing.T) {
	h := newHarness(t, Config{})

	_, err := h.c.Submit(context.Background(), simplePlan("D"), WithMetadata(map[string]any{"uid": "x"}))
	require.Error(t, err)

	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, h.rec.count(events.KindStarted))
	assert.Empty(t, h.eng.Calls())
}

// --- Control surface ---

func TestCoordinator_PauseResume(t *testing.T) {
	h := newHarness(t, Config{})

	_, err := h.c.Submit(context.Background(), blockingPlan("long"))
	require.NoError(t, err)
	h.waitStarted(t, "long")

	require.NoError(t, h.c.Pause(false))
	assert.Equal(t, domain.EnginePaused, h.c.State())
	assert.Equal(t, 1, h.rec.count(events.KindPaused))

	// Повторная пауза ничего не делает
	require.NoError(t, h.c.Pause(true))
	assert.Equal(t, 1, h.rec.count(events.KindPaused))

	require.NoError(t, h.c.Resume())
	assert.Equal(t, 1, h.rec.count(events.KindResumed))
	assert.Equal(t, domain.EngineRunning, h.c.State())

	// После продолжения следующая пауза объявляется снова
	require.NoError(t, h.c.Pause(false))
	assert.Equal(t, 2, h.rec.count(events.KindPaused))
	require.NoError(t, h.c.Resume())
	assert.Equal(t, 2, h.rec.count(events.KindResumed))

	h.eng.Release()
	h.rec.waitFor(t, events.KindReady, 1)
}

func TestCoordinator_PlanRequestedPause(t *testing.T) {
	eng := engine.New(engine.Config{})
	c := New(Config{Engine: eng, PollInterval: 5 * time.Millisecond})
	rec := &eventRecorder{}
	c.Events().Subscribe(rec.record, events.Synchronous())
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(c.Stop)

	plan := domain.NewPlan("self-pausing",
		domain.Command{Type: domain.CommandOpenRun},
		domain.Command{Type: domain.CommandPause, Args: map[string]any{"defer": false}},
		domain.Command{Type: domain.CommandCloseRun},
	)
	_, err := c.Submit(context.Background(), plan, SuppressMetadataPrompt())
	require.NoError(t, err)

	rec.waitFor(t, events.KindPaused, 1)
	assert.Equal(t, domain.EnginePaused, c.State())

	require.NoError(t, c.Resume())
	rec.waitFor(t, events.KindReady, 1)
	assert.Equal(t, 1, rec.count(events.KindPaused))
	assert.Equal(t, 1, rec.count(events.KindResumed))
}

func TestCoordinator_DeferredPauseAnnouncedOnce(t *testing.T) {
	h := newHarness(t, Config{})

	plan := enginetest.Plan("long",
		domain.CommandOpenRun, enginetest.CommandBlock, domain.CommandCheckpoint, domain.CommandCloseRun)
	_, err := h.c.Submit(context.Background(), plan)
	require.NoError(t, err)
	h.waitStarted(t, "long")

	require.NoError(t, h.c.Pause(true))
	require.NoError(t, h.c.Pause(true))
	assert.Equal(t, 1, h.rec.count(events.KindPaused))
	assert.Equal(t, domain.EngineRunning, h.c.State())

	// Отложенная пауза срабатывает на checkpoint без нового Paused
	h.eng.Release()
	require.Eventually(t, func() bool { return h.c.State() == domain.EnginePaused }, waitTimeout, time.Millisecond)
	assert.Equal(t, 1, h.rec.count(events.KindPaused))

	require.NoError(t, h.c.Resume())
	h.rec.waitFor(t, events.KindReady, 1)
}

func TestCoordinator_ResumeAfterStop(t *testing.T) {
	h := newHarness(t, Config{})

	_, err := h.c.Submit(context.Background(), blockingPlan("long"))
	require.NoError(t, err)
	h.waitStarted(t, "long")
	require.NoError(t, h.c.Pause(false))

	h.c.Stop()
	assert.NotPanics(t, func() { _ = h.c.Resume() })
	assert.Equal(t, domain.EngineIdle, h.c.State())
}

func TestCoordinator_PauseWhenIdle(t *testing.T) {
	h := newHarness(t, Config{})

	err := h.c.Pause(false)
	assert.ErrorIs(t, err, engine.ErrInvalidState)
	assert.Zero(t, h.rec.count(events.KindPaused))

	notices := h.rec.notices()
	require.Len(t, notices, 1)
	assert.Equal(t, events.NoticeWarning, notices[0].Level)
}

func TestCoordinator_ResumeWhenNotPaused(t *testing.T) {
	h := newHarness(t, Config{})

	assert.NoError(t, h.c.Resume())
	assert.Zero(t, h.rec.count(events.KindResumed))
}

func TestCoordinator_AbortWhilePaused(t *testing.T) {
	h := newHarness(t, Config{})

	_, err := h.c.Submit(context.Background(), blockingPlan("long"))
	require.NoError(t, err)
	h.waitStarted(t, "long")

	require.NoError(t, h.c.Pause(false))
	require.NoError(t, h.c.Abort("sample moved"))

	h.rec.waitFor(t, events.KindReady, 1)
	assert.Equal(t, 1, h.rec.count(events.KindAborted))
	assert.Equal(t, domain.EngineIdle, h.c.State())
}

func TestCoordinator_StopRun(t *testing.T) {
	h := newHarness(t, Config{})

	_, err := h.c.Submit(context.Background(), blockingPlan("long"))
	require.NoError(t, err)
	h.waitStarted(t, "long")

	require.NoError(t, h.c.StopRun("enough"))
	h.rec.waitFor(t, events.KindReady, 1)

	for _, ev := range h.rec.all() {
		if f, ok := ev.(events.Finished); ok {
			assert.Equal(t, events.OutcomeSucceeded, f.Outcome)
		}
	}
	assert.NoError(t, h.c.StopRun("idle"))
}

// panicPlan паникует при итерации команд.
type panicPlan struct{}

func (panicPlan) Name() string { return "panicky" }

func (panicPlan) Commands() iter.Seq[domain.Command] {
	return func(func(domain.Command) bool) {
		panic("driver crashed")
	}
}

func TestCoordinator_WorkerSurvivesPanic(t *testing.T) {
	h := newHarness(t, Config{})

	_, err := h.c.Submit(context.Background(), panicPlan{})
	require.NoError(t, err)
	h.rec.waitFor(t, events.KindFinished, 1)

	for _, ev := range h.rec.all() {
		if e, ok := ev.(events.ExceptionRaised); ok {
			assert.ErrorIs(t, e.Err, ErrPlanPanic)
		}
	}

	_, err = h.c.Submit(context.Background(), simplePlan("after"))
	require.NoError(t, err)
	h.rec.waitFor(t, events.KindFinished, 2)
}

func TestCoordinator_PerRunSubscribers(t *testing.T) {
	h := newHarness(t, Config{})

	var mu sync.Mutex
	var names []domain.DocumentName
	cb := func(doc domain.LifecycleDocument) {
		mu.Lock()
		names = append(names, doc.Name)
		mu.Unlock()
	}

	_, err := h.c.Submit(context.Background(), simplePlan("with-sub"), WithSubscribers(cb))
	require.NoError(t, err)
	_, err = h.c.Submit(context.Background(), simplePlan("without-sub"))
	require.NoError(t, err)
	h.rec.waitFor(t, events.KindFinished, 2)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []domain.DocumentName{domain.DocumentStart, domain.DocumentStop}, names)
}

// --- Parameters and forms ---

func TestCoordinator_ParameterPrompt(t *testing.T) {
	eng := enginetest.New()
	var asked domain.ParameterSchema
	c := New(Config{
		Engine: eng,
		Prompter: PrompterFunc(func(_ context.Context, plan string, schema domain.ParameterSchema) (map[string]any, error) {
			asked = schema
			return map[string]any{"num": "4"}, nil
		}),
	})

	_, err := c.Submit(context.Background(), engine.Count())
	require.NoError(t, err)

	require.NotEmpty(t, asked)
	pending := c.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, 4, domain.PlanArgs(pending[0].Plan)["num"])
}

func TestCoordinator_ParameterPromptCancelled(t *testing.T) {
	eng := enginetest.New()
	c := New(Config{
		Engine: eng,
		Prompter: PrompterFunc(func(context.Context, string, domain.ParameterSchema) (map[string]any, error) {
			return nil, ErrCancelled
		}),
	})
	rec := &eventRecorder{}
	c.Events().Subscribe(rec.record, events.Synchronous())

	_, err := c.Submit(context.Background(), engine.Count())
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Empty(t, c.Pending())
	assert.Empty(t, rec.notices())
}

func TestCoordinator_InvalidParameters(t *testing.T) {
	c := New(Config{Engine: enginetest.New()})

	_, err := c.Submit(context.Background(), engine.Count(), WithParameters(map[string]any{"num": "many"}))
	assert.ErrorIs(t, err, domain.ErrParameterType)
	assert.Empty(t, c.Pending())

	// Обязательный параметр без значения
	_, err = c.Submit(context.Background(), engine.ListScan())
	assert.ErrorIs(t, err, domain.ErrParameterRequired)
}

func TestCoordinator_BoundPlanSkipsPrompt(t *testing.T) {
	prompted := false
	c := New(Config{
		Engine: enginetest.New(),
		Prompter: PrompterFunc(func(context.Context, string, domain.ParameterSchema) (map[string]any, error) {
			prompted = true
			return nil, nil
		}),
	})

	plan, err := engine.Count().Bind(map[string]any{"num": 2})
	require.NoError(t, err)

	_, err = c.Submit(context.Background(), plan)
	require.NoError(t, err)
	assert.False(t, prompted)
}

func TestCoordinator_FormIsNonBlocking(t *testing.T) {
	var done func(metadata.Result)
	form := metadata.FormFunc(func(req metadata.Request, d func(metadata.Result)) {
		done = d
	})
	c := New(Config{Engine: enginetest.New(), Form: form})

	id, err := c.Submit(context.Background(), simplePlan("A"), WithKwargs(map[string]any{"operator": "kim"}))
	require.NoError(t, err)

	// Submit вернулся до подтверждения формы
	assert.Empty(t, c.Pending())
	require.NotNil(t, done)

	done(metadata.Result{Metadata: domain.RunMetadata{"sample_name": "Si"}})
	pending := c.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, id, pending[0].ID)
	assert.Equal(t, domain.RunMetadata{"operator": "kim", "sample_name": "Si"}, pending[0].Metadata)
}

func TestCoordinator_FormCancelledSilently(t *testing.T) {
	c := New(Config{Engine: enginetest.New(), Form: metadata.CancelForm()})
	rec := &eventRecorder{}
	c.Events().Subscribe(rec.record, events.Synchronous())

	_, err := c.Submit(context.Background(), simplePlan("A"))
	require.NoError(t, err)
	assert.Empty(t, c.Pending())
	assert.Empty(t, rec.all())
}

func TestCoordinator_SuppressMetadataPrompt(t *testing.T) {
	opened := false
	form := metadata.FormFunc(func(metadata.Request, func(metadata.Result)) { opened = true })
	c := New(Config{Engine: enginetest.New(), Form: form})

	_, err := c.Submit(context.Background(), simplePlan("A"), SuppressMetadataPrompt())
	require.NoError(t, err)
	assert.False(t, opened)
	assert.Len(t, c.Pending(), 1)
}

func TestCoordinator_SubmitAfterStop(t *testing.T) {
	c := New(Config{Engine: enginetest.New()})
	require.NoError(t, c.Start(context.Background()))
	c.Stop()

	_, err := c.Submit(context.Background(), simplePlan("late"))
	assert.ErrorIs(t, err, ErrStopped)
	assert.True(t, c.IsStopped())

	_, err = New(Config{Engine: enginetest.New()}).Submit(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoPlan)
}

// --- Telemetry ---

type fakeMetrics struct {
	mu          sync.Mutex
	submissions map[SubmissionResult]int
	outcomes    map[events.Outcome]int
	documents   int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{
		submissions: make(map[SubmissionResult]int),
		outcomes:    make(map[events.Outcome]int),
	}
}

func (m *fakeMetrics) SubmissionRecorded(r SubmissionResult) {
	m.mu.Lock()
	m.submissions[r]++
	m.mu.Unlock()
}

func (m *fakeMetrics) RunFinished(o events.Outcome, _ time.Duration) {
	m.mu.Lock()
	m.outcomes[o]++
	m.mu.Unlock()
}

func (m *fakeMetrics) QueueDepth(int) {}

func (m *fakeMetrics) DocumentEmitted(domain.DocumentName) {
	m.mu.Lock()
	m.documents++
	m.mu.Unlock()
}

func TestCoordinator_MetricsAndTracing(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	metrics := newFakeMetrics()
	h := newHarness(t, Config{Metrics: metrics, Tracer: tp.Tracer("test")})

	_, err := h.c.Submit(context.Background(), simplePlan("ok"))
	require.NoError(t, err)
	_, err = h.c.Submit(context.Background(), enginetest.RaisePlan("bad", "x"))
	require.NoError(t, err)
	_, err = h.c.Submit(context.Background(), simplePlan("rejected"), WithMetadata(map[string]any{"uid": "1"}))
	require.Error(t, err)

	h.rec.waitFor(t, events.KindFinished, 2)

	metrics.mu.Lock()
	assert.Equal(t, 2, metrics.submissions[SubmissionAccepted])
	assert.Equal(t, 1, metrics.submissions[SubmissionRejected])
	assert.Equal(t, 1, metrics.outcomes[events.OutcomeSucceeded])
	assert.Equal(t, 1, metrics.outcomes[events.OutcomeFailed])
	assert.Equal(t, 4, metrics.documents)
	metrics.mu.Unlock()

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	status := map[string]codes.Code{}
	for _, s := range spans {
		assert.Equal(t, "plan.execute", s.Name)
		for _, attr := range s.Attributes {
			if attr.Key == "plan.name" {
				status[attr.Value.AsString()] = s.Status.Code
			}
		}
	}
	assert.Equal(t, codes.Ok, status["ok"])
	assert.Equal(t, codes.Error, status["bad"])
}

func TestCoordinator_NotifyPublishesNotice(t *testing.T) {
	h := newHarness(t, Config{})

	h.c.Notify(events.NoticeError, "store unavailable")

	assert.Equal(t, []events.Notice{{Level: events.NoticeError, Text: "store unavailable"}}, h.rec.notices())
}
