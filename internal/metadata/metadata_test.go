package metadata

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Acquire/internal/domain"
	"github.com/shaiso/Acquire/internal/events"
)

// fakeQueue запоминает поставленные submissions.
type fakeQueue struct {
	mu    sync.Mutex
	items []domain.PrioritizedSubmission
}

func (q *fakeQueue) Put(item domain.PrioritizedSubmission) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()
}

func (q *fakeQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func newCandidate(kwargs domain.RunMetadata) Candidate {
	return Candidate{
		ID:       uuid.New(),
		Plan:     domain.NewPlan("count"),
		Priority: 1,
		Kwargs:   kwargs,
	}
}

func TestReservedKeyError(t *testing.T) {
	tests := []struct {
		name string
		keys []string
		want string
	}{
		{"single", []string{"uid"}, `The field name "uid" is reserved and cannot be used.`},
		{"several", []string{"scan_id", "uid"}, `The field names "scan_id", "uid" are reserved and cannot be used.`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &ReservedKeyError{Keys: tt.keys}
			assert.Equal(t, tt.want, err.Error())
			assert.ErrorIs(t, err, ErrReservedKey)
		})
	}
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name    string
		kwargs  domain.RunMetadata
		md      domain.RunMetadata
		wantErr []string
	}{
		{"clean", domain.RunMetadata{"operator": "x"}, domain.RunMetadata{"sample_name": "Si"}, nil},
		{"engine key in metadata", nil, domain.RunMetadata{"uid": "1"}, []string{"uid"}},
		{"kwarg key in metadata", domain.RunMetadata{"operator": "x"}, domain.RunMetadata{"operator": "y"}, []string{"operator"}},
		{"engine key in kwargs", domain.RunMetadata{"scan_id": 3}, nil, []string{"scan_id"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Check(tt.kwargs, tt.md)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			var rke *ReservedKeyError
			require.ErrorAs(t, err, &rke)
			assert.Equal(t, tt.wantErr, rke.Keys)
		})
	}
}

func TestGate_AcceptEnqueues(t *testing.T) {
	q := &fakeQueue{}
	var enqueued []domain.PrioritizedSubmission
	g := NewGate(Config{
		Queue:     q,
		OnEnqueue: func(item domain.PrioritizedSubmission) { enqueued = append(enqueued, item) },
	})

	c := newCandidate(domain.RunMetadata{"operator": "kim"})
	g.Begin(c, PresetForm(domain.RunMetadata{"sample_name": "LaB6"}))

	require.Equal(t, 1, q.len())
	item := q.items[0]
	assert.Equal(t, c.ID, item.ID)
	assert.Equal(t, 1, item.Priority)
	assert.Equal(t, domain.RunMetadata{"operator": "kim", "sample_name": "LaB6"}, item.Metadata)
	assert.False(t, item.SubmittedAt.IsZero())
	assert.Len(t, enqueued, 1)

	// Значение запомнено для следующей формы
	assert.Equal(t, "LaB6", g.Templates().Values()["sample_name"])
}

func TestGate_CancelDiscards(t *testing.T) {
	q := &fakeQueue{}
	cancelled := 0
	g := NewGate(Config{Queue: q, OnCancel: func(Candidate) { cancelled++ }})

	g.Begin(newCandidate(nil), CancelForm())

	assert.Equal(t, 0, q.len())
	assert.Equal(t, 1, cancelled)
}

func TestGate_RejectReservedKey(t *testing.T) {
	q := &fakeQueue{}
	var rejected error
	g := NewGate(Config{Queue: q, OnReject: func(_ Candidate, err error) { rejected = err }})

	g.Begin(newCandidate(nil), PresetForm(domain.RunMetadata{"uid": "abc"}))

	assert.Equal(t, 0, q.len())
	require.Error(t, rejected)
	assert.Equal(t, `The field name "uid" is reserved and cannot be used.`, rejected.Error())
}

func TestGate_FormSeesReservedKeysAndFields(t *testing.T) {
	q := &fakeQueue{}
	g := NewGate(Config{Queue: q})

	var got Request
	form := FormFunc(func(req Request, done func(Result)) {
		got = req
		done(Result{Cancelled: true})
	})
	g.Begin(newCandidate(domain.RunMetadata{"operator": "kim"}), form)

	assert.Equal(t, "count", got.Plan)
	assert.Contains(t, got.Reserved, "uid")
	assert.Contains(t, got.Reserved, "operator")
	require.Len(t, got.Fields, 1)
	assert.Equal(t, "Sample Name", got.Fields[0].Label())
}

func TestGate_ViaInvoker(t *testing.T) {
	q := &fakeQueue{}
	loop := events.NewLoop()
	g := NewGate(Config{Queue: q, Invoker: loop})

	// Форма не открывается, пока поток UI не обработает задачи
	g.Begin(newCandidate(nil), PresetForm(nil))
	assert.Equal(t, 0, q.len())

	loop.Drain()
	assert.Equal(t, 1, q.len())
}

func TestGate_ConcurrentForms(t *testing.T) {
	q := &fakeQueue{}
	g := NewGate(Config{Queue: q})

	var pending []func(Result)
	form := FormFunc(func(_ Request, done func(Result)) {
		pending = append(pending, done)
	})

	g.Begin(newCandidate(nil), form)
	g.Begin(newCandidate(nil), form)
	require.Len(t, pending, 2)

	// Формы закрываются в обратном порядке
	pending[1](Result{Metadata: domain.RunMetadata{"sample_name": "B"}})
	pending[0](Result{Metadata: domain.RunMetadata{"sample_name": "A"}})

	require.Equal(t, 2, q.len())
	assert.Equal(t, "B", q.items[0].Metadata["sample_name"])
	assert.Equal(t, "A", q.items[1].Metadata["sample_name"])
}

func TestTemplates_MissingFileUsesDefault(t *testing.T) {
	tpl, err := LoadTemplates(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultFields(), tpl.Fields())
}

func TestTemplates_RememberAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "md", "template.yaml")

	tpl, err := LoadTemplates(path)
	require.NoError(t, err)
	require.NoError(t, tpl.Remember(domain.RunMetadata{"sample_name": "Si", "beam_energy": 12.4}))

	reloaded, err := LoadTemplates(path)
	require.NoError(t, err)

	fields := reloaded.Fields()
	require.Len(t, fields, 2)
	assert.Equal(t, "sample_name", fields[0].Name)
	assert.Equal(t, "Si", fields[0].Value)
	assert.Equal(t, "beam_energy", fields[1].Name)
	assert.Equal(t, "12.4", fields[1].Value)
}

func TestTemplates_BadVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "template.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: other\nfields: []\n"), 0o644))

	_, err := LoadTemplates(path)
	assert.Error(t, err)
}
