package mq

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
)

// fakeAcknowledger запоминает ack/nack.
type fakeAcknowledger struct {
	acked    bool
	nacked   bool
	requeued bool
}

func (a *fakeAcknowledger) Ack(uint64, bool) error {
	a.acked = true
	return nil
}

func (a *fakeAcknowledger) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacked = true
	a.requeued = requeue
	return nil
}

func (a *fakeAcknowledger) Reject(_ uint64, requeue bool) error {
	a.nacked = true
	a.requeued = requeue
	return nil
}

func newRaw(t *testing.T, ack amqp.Acknowledger, redelivered bool) amqp.Delivery {
	t.Helper()
	body, err := json.Marshal(NewMessage(MessageTypePlanSubmit, SubmitPayload{Plan: "count"}))
	if err != nil {
		t.Fatal(err)
	}
	return amqp.Delivery{Acknowledger: ack, Body: body, Redelivered: redelivered}
}

func TestConsumer_HandleDelivery(t *testing.T) {
	tests := []struct {
		name        string
		handlerErr  error
		redelivered bool
		wantAck     bool
		wantRequeue bool
	}{
		{"success", nil, false, true, false},
		{"transient error", errors.New("busy"), false, false, true},
		{"transient error redelivered", errors.New("busy"), true, false, false},
		{"permanent error", Permanent(errors.New("unknown plan")), false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ack := &fakeAcknowledger{}
			c := NewConsumer(nil, slog.Default(), ConsumerConfig{
				Queue: string(QueuePlansSubmit),
				Accept: []MessageType{MessageTypePlanSubmit},
				Handler: func(_ context.Context, d *Delivery) error {
					if d.Message.Type != MessageTypePlanSubmit {
						t.Errorf("type = %s", d.Message.Type)
					}
					if d.Redelivered != tt.redelivered {
						t.Errorf("redelivered = %v", d.Redelivered)
					}
					return tt.handlerErr
				},
			})

			c.handleDelivery(context.Background(), newRaw(t, ack, tt.redelivered))

			if ack.acked != tt.wantAck {
				t.Errorf("acked = %v, want %v", ack.acked, tt.wantAck)
			}
			if !tt.wantAck && !ack.nacked {
				t.Error("expected nack")
			}
			if ack.requeued != tt.wantRequeue {
				t.Errorf("requeue = %v, want %v", ack.requeued, tt.wantRequeue)
			}
		})
	}
}

func TestConsumer_InvalidJSONGoesToDLQ(t *testing.T) {
	ack := &fakeAcknowledger{}
	called := false
	c := NewConsumer(nil, nil, ConsumerConfig{
		Handler: func(context.Context, *Delivery) error {
			called = true
			return nil
		},
	})

	c.handleDelivery(context.Background(), amqp.Delivery{Acknowledger: ack, Body: []byte("{")})

	if called {
		t.Error("handler must not be called")
	}
	if !ack.nacked || ack.requeued {
		t.Errorf("nacked=%v requeued=%v, want nack without requeue", ack.nacked, ack.requeued)
	}
}

func TestConsumer_UnexpectedTypeGoesToDLQ(t *testing.T) {
	ack := &fakeAcknowledger{}
	called := false
	c := NewConsumer(nil, nil, ConsumerConfig{
		Accept: []MessageType{MessageTypePlanSubmit},
		Handler: func(context.Context, *Delivery) error {
			called = true
			return nil
		},
	})

	body, err := json.Marshal(NewMessage(MessageTypeDocument, DocumentPayload{Name: "start"}))
	if err != nil {
		t.Fatal(err)
	}
	c.handleDelivery(context.Background(), amqp.Delivery{Acknowledger: ack, Body: body})

	if called {
		t.Error("handler must not be called")
	}
	if !ack.nacked || ack.requeued {
		t.Errorf("nacked=%v requeued=%v, want nack without requeue", ack.nacked, ack.requeued)
	}
}

func TestDecode(t *testing.T) {
	priority := 3
	msg := NewMessage(MessageTypePlanSubmit, SubmitPayload{
		Plan:       "scan",
		Priority:   &priority,
		Parameters: map[string]any{"num": 5},
	})

	// Сообщение проходит через JSON, как при доставке
	body, err := json.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}
	var decoded Message
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatal(err)
	}

	payload, err := Decode[SubmitPayload](&decoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if payload.Plan != "scan" || payload.Priority == nil || *payload.Priority != 3 {
		t.Errorf("payload = %+v", payload)
	}
	if payload.Parameters["num"] != float64(5) {
		t.Errorf("num = %v", payload.Parameters["num"])
	}
}

func TestPermanentNil(t *testing.T) {
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) must be nil")
	}
	if !errors.Is(Permanent(errors.New("x")), ErrPermanent) {
		t.Error("expected ErrPermanent")
	}
}
