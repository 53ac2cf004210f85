package broker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Acquire/internal/domain"
	"github.com/shaiso/Acquire/internal/events"
	"github.com/shaiso/Acquire/internal/repo"
)

// recordingSink запоминает документы и может падать по требованию.
type recordingSink struct {
	name string
	fail func(doc domain.LifecycleDocument) error

	mu   sync.Mutex
	docs []domain.DocumentName
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Consume(_ context.Context, doc domain.LifecycleDocument) error {
	s.mu.Lock()
	s.docs = append(s.docs, doc.Name)
	s.mu.Unlock()
	if s.fail != nil {
		return s.fail(doc)
	}
	return nil
}

func (s *recordingSink) names() []domain.DocumentName {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.DocumentName(nil), s.docs...)
}

type fakeNotifier struct {
	mu    sync.Mutex
	texts []string
}

func (n *fakeNotifier) Notify(_ events.NoticeLevel, text string) {
	n.mu.Lock()
	n.texts = append(n.texts, text)
	n.mu.Unlock()
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.texts)
}

type fakeMetrics struct {
	mu       sync.Mutex
	failures map[string]int
}

func (m *fakeMetrics) SinkFailed(sink string) {
	m.mu.Lock()
	m.failures[sink]++
	m.mu.Unlock()
}

// publishRun публикует полный набор документов одного run.
func publishRun(bus *events.Bus, uid string) {
	now := domain.UnixTime(time.Now())
	bus.Publish(events.DocumentYielded{Name: domain.DocumentStart, Body: map[string]any{
		"uid": uid, "plan_type": "count", "scan_id": 1, "time": now,
	}})
	bus.Publish(events.DocumentYielded{Name: domain.DocumentDescriptor, Body: map[string]any{
		"uid": uid + "-desc", "run_start": uid, "name": "primary", "time": now,
	}})
	bus.Publish(events.DocumentYielded{Name: domain.DocumentEvent, Body: map[string]any{
		"uid": uid + "-ev1", "descriptor": uid + "-desc", "seq_num": 1, "time": now,
	}})
	bus.Publish(events.DocumentYielded{Name: domain.DocumentStop, Body: map[string]any{
		"uid": uid + "-stop", "run_start": uid, "exit_status": "success", "time": now,
		"num_events": map[string]int{"primary": 1},
	}})
}

func TestAttach_NoSinks(t *testing.T) {
	_, err := Attach(Config{Bus: events.NewBus(nil)})
	assert.ErrorIs(t, err, ErrNoSinks)
}

func TestDispatcher_DeliversInOrder(t *testing.T) {
	bus := events.NewBus(nil)
	defer bus.Close()

	sink := &recordingSink{name: "rec"}
	d, err := Attach(Config{Bus: bus, Sinks: []Sink{sink}})
	require.NoError(t, err)
	defer d.Detach()

	publishRun(bus, "run-1")

	want := []domain.DocumentName{
		domain.DocumentStart, domain.DocumentDescriptor, domain.DocumentEvent, domain.DocumentStop,
	}
	require.Eventually(t, func() bool { return len(sink.names()) == len(want) }, 2*time.Second, time.Millisecond)
	assert.Equal(t, want, sink.names())
}

func TestDispatcher_FailingSinkDegradesForRun(t *testing.T) {
	bus := events.NewBus(nil)
	defer bus.Close()

	broken := &recordingSink{name: "broken", fail: func(doc domain.LifecycleDocument) error {
		if doc.Name == domain.DocumentDescriptor {
			return errors.New("disk full")
		}
		return nil
	}}
	healthy := &recordingSink{name: "healthy"}
	notifier := &fakeNotifier{}
	metrics := &fakeMetrics{failures: map[string]int{}}

	d, err := Attach(Config{
		Bus:      bus,
		Sinks:    []Sink{broken, healthy},
		Notifier: notifier,
		Metrics:  metrics,
	})
	require.NoError(t, err)
	defer d.Detach()

	publishRun(bus, "run-1")
	require.Eventually(t, func() bool { return len(healthy.names()) == 4 }, 2*time.Second, time.Millisecond)

	// После отказа broken не получает документы до конца run
	assert.Equal(t, []domain.DocumentName{domain.DocumentStart, domain.DocumentDescriptor}, broken.names())
	assert.Equal(t, []string{"broken"}, d.Degraded())
	assert.Equal(t, 1, notifier.count())
	assert.Equal(t, 1, metrics.failures["broken"])

	// Следующий run снова включает sink
	publishRun(bus, "run-2")
	require.Eventually(t, func() bool { return len(healthy.names()) == 8 }, 2*time.Second, time.Millisecond)
	assert.Len(t, broken.names(), 4)
	assert.Equal(t, 2, notifier.count())
}

func TestDispatcher_SinkPanicIsIsolated(t *testing.T) {
	bus := events.NewBus(nil)
	defer bus.Close()

	panicky := SinkFunc{SinkName: "panicky", Fn: func(context.Context, domain.LifecycleDocument) error {
		panic("boom")
	}}
	healthy := &recordingSink{name: "healthy"}

	d, err := Attach(Config{Bus: bus, Sinks: []Sink{panicky, healthy}})
	require.NoError(t, err)
	defer d.Detach()

	publishRun(bus, "run-1")
	require.Eventually(t, func() bool { return len(healthy.names()) == 4 }, 2*time.Second, time.Millisecond)
	assert.Equal(t, []string{"panicky"}, d.Degraded())
}

func TestStoreSink_PersistsRun(t *testing.T) {
	ctx := context.Background()
	store, err := repo.OpenSQLite(ctx, filepath.Join(t.TempDir(), "docs.db"))
	require.NoError(t, err)
	defer store.Close()

	bus := events.NewBus(nil)
	defer bus.Close()

	d, err := Attach(Config{Bus: bus, Sinks: []Sink{NewStoreSink(store)}})
	require.NoError(t, err)
	defer d.Detach()

	publishRun(bus, "run-1")

	require.Eventually(t, func() bool {
		run, err := store.GetRun(ctx, "run-1")
		return err == nil && run.IsFinished()
	}, 2*time.Second, 5*time.Millisecond)

	run, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusSucceeded, run.Status)
	assert.Equal(t, "count", run.PlanName)

	docs, err := store.ListDocuments(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, docs, 4)
}

func TestStoreSink_DocumentOutsideRun(t *testing.T) {
	ctx := context.Background()
	store, err := repo.OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	defer store.Close()

	sink := NewStoreSink(store)

	tests := []struct {
		name string
		doc  domain.LifecycleDocument
	}{
		{
			name: "event without start",
			doc:  domain.LifecycleDocument{Name: domain.DocumentEvent, Body: map[string]any{"uid": "e1"}},
		},
		{
			name: "stop without start",
			doc:  domain.LifecycleDocument{Name: domain.DocumentStop, Body: map[string]any{"run_start": "x"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, sink.Consume(ctx, tt.doc), ErrNoOpenRun)
		})
	}
}

type fakePublisher struct {
	mu            sync.Mutex
	documents     []string
	notifications []string
	err           error
}

func (p *fakePublisher) PublishDocument(_ context.Context, name string, _ map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.documents = append(p.documents, name)
	return p.err
}

func (p *fakePublisher) PublishNotification(_ context.Context, kind string, _ map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notifications = append(p.notifications, kind)
	return p.err
}

func (p *fakePublisher) snapshot() ([]string, []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.documents...), append([]string(nil), p.notifications...)
}

func TestPublisherSink(t *testing.T) {
	pub := &fakePublisher{}
	sink := NewPublisherSink(pub)

	doc := domain.LifecycleDocument{Name: domain.DocumentStart, Body: map[string]any{"uid": "u"}}
	require.NoError(t, sink.Consume(context.Background(), doc))

	pub.err = errors.New("channel closed")
	assert.Error(t, sink.Consume(context.Background(), doc))

	docs, _ := pub.snapshot()
	assert.Equal(t, []string{"start", "start"}, docs)
}

func TestEventRelay_SkipsDocuments(t *testing.T) {
	bus := events.NewBus(nil)
	defer bus.Close()

	pub := &fakePublisher{}
	relay := NewEventRelay(bus, pub, nil)
	defer relay.Close()

	bus.Publish(events.Started{Plan: "count"})
	bus.Publish(events.DocumentYielded{Name: domain.DocumentStart})
	bus.Publish(events.Notice{Level: events.NoticeInfo, Text: "Run aborted"})

	require.Eventually(t, func() bool {
		_, n := pub.snapshot()
		return len(n) == 2
	}, 2*time.Second, time.Millisecond)

	_, notifications := pub.snapshot()
	assert.Equal(t, []string{"started", "notice"}, notifications)
}

func startDoc(uid, plan string) domain.LifecycleDocument {
	return domain.NewDocument(domain.DocumentStart, map[string]any{"uid": uid, "plan_type": plan})
}

func stopDoc(runStart string) domain.LifecycleDocument {
	return domain.NewDocument(domain.DocumentStop, map[string]any{
		"uid": runStart + "-stop", "run_start": runStart, "exit_status": "success",
	})
}

func TestWebhookSink(t *testing.T) {
	var (
		mu     sync.Mutex
		got    []domain.LifecycleDocument
		tokens []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var doc domain.LifecycleDocument
		if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		mu.Lock()
		got = append(got, doc)
		tokens = append(tokens, r.Header.Get("Authorization"))
		mu.Unlock()

		if doc.Name == domain.DocumentStop {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("archive is read-only"))
		}
	}))
	defer srv.Close()

	sink := NewWebhookSink(WebhookConfig{
		URL:     srv.URL,
		Headers: map[string]string{"Authorization": "Bearer t0k"},
	})
	assert.Equal(t, "webhook", sink.Name())

	ctx := context.Background()
	require.NoError(t, sink.Consume(ctx, startDoc("run-1", "count")))

	err := sink.Consume(ctx, stopDoc("run-1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 503: archive is read-only")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 2)
	assert.Equal(t, domain.DocumentStart, got[0].Name)
	assert.Equal(t, "run-1", got[0].Body["uid"])
	assert.Equal(t, []string{"Bearer t0k", "Bearer t0k"}, tokens)
}

func TestWebhookSink_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	sink := NewWebhookSink(WebhookConfig{URL: url, Timeout: time.Second})
	assert.Error(t, sink.Consume(context.Background(), startDoc("run-1", "count")))
}
