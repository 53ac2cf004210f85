package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Acquire/internal/domain"
	"github.com/shaiso/Acquire/internal/events"
	"github.com/shaiso/Acquire/internal/mq"
)

type planMap map[string]domain.Plan

func (m planMap) Get(name string) (domain.Plan, error) {
	if p, ok := m[name]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("plan %q not found", name)
}

// delivery прогоняет payload через JSON, как при доставке из очереди.
func delivery(t *testing.T, payload mq.SubmitPayload) *mq.Delivery {
	t.Helper()
	body, err := json.Marshal(mq.NewMessage(mq.MessageTypePlanSubmit, payload))
	require.NoError(t, err)

	var msg mq.Message
	require.NoError(t, json.Unmarshal(body, &msg))
	return &mq.Delivery{Message: msg}
}

func TestHandleSubmission(t *testing.T) {
	priority := 0
	tests := []struct {
		name          string
		payload       mq.SubmitPayload
		wantPermanent bool
		wantPlan      string
	}{
		{
			name:     "accepted",
			payload:  mq.SubmitPayload{Plan: "count", Priority: &priority, Metadata: map[string]any{"sample_name": "Si"}},
			wantPlan: "count",
		},
		{
			name:          "unknown plan",
			payload:       mq.SubmitPayload{Plan: "grid"},
			wantPermanent: true,
		},
		{
			name:          "reserved metadata",
			payload:       mq.SubmitPayload{Plan: "count", Metadata: map[string]any{"scan_id": 7}},
			wantPermanent: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, Config{Plans: planMap{"count": simplePlan("count")}})

			err := h.c.handleSubmission(context.Background(), delivery(t, tt.payload))

			if tt.wantPermanent {
				assert.ErrorIs(t, err, mq.ErrPermanent)
				assert.Zero(t, h.rec.count(events.KindStarted))
				return
			}
			require.NoError(t, err)
			h.rec.waitFor(t, events.KindFinished, 1)

			calls := h.eng.Calls()
			require.Len(t, calls, 1)
			assert.Equal(t, tt.wantPlan, calls[0].Plan)
			assert.Equal(t, "Si", calls[0].Metadata["sample_name"])
		})
	}
}

func TestHandleSubmission_WithoutLibrary(t *testing.T) {
	h := newHarness(t, Config{})

	err := h.c.handleSubmission(context.Background(), delivery(t, mq.SubmitPayload{Plan: "count"}))
	assert.ErrorIs(t, err, mq.ErrPermanent)
	assert.ErrorIs(t, err, ErrUnknownPlan)
}
