package coordinator

import (
	"context"
	"errors"
	"fmt"

	"github.com/shaiso/Acquire/internal/metadata"
	"github.com/shaiso/Acquire/internal/mq"
)

// handleSubmission обрабатывает удалённую постановку плана в очередь.
//
// Неизвестный план, неверные параметры и зарезервированные ключи
// отправляют сообщение в DLQ.
func (c *Coordinator) handleSubmission(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.Decode[mq.SubmitPayload](&delivery.Message)
	if err != nil {
		c.logger.Error("failed to parse plan.submit payload", "error", err)
		return mq.Permanent(err)
	}

	c.logger.Debug("received plan.submit", "plan", payload.Plan, "message_id", delivery.Message.ID)

	if c.plans == nil {
		return mq.Permanent(fmt.Errorf("%w: %s (no plan library)", ErrUnknownPlan, payload.Plan))
	}
	plan, err := c.plans.Get(payload.Plan)
	if err != nil {
		return mq.Permanent(fmt.Errorf("%w: %s: %w", ErrUnknownPlan, payload.Plan, err))
	}

	opts := []SubmitOption{
		WithParameters(payload.Parameters),
		WithMetadata(payload.Metadata),
	}
	if payload.Priority != nil {
		opts = append(opts, WithPriority(*payload.Priority))
	}

	id, err := c.Submit(ctx, plan, opts...)
	if err != nil {
		if errors.Is(err, ErrStopped) {
			return err
		}
		if errors.Is(err, metadata.ErrReservedKey) {
			c.logger.Warn("remote submission rejected", "plan", payload.Plan, "error", err)
		}
		return mq.Permanent(err)
	}

	c.logger.Info("remote submission enqueued", "plan", payload.Plan, "submission_id", id)
	return nil
}
