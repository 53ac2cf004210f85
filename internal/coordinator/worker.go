package coordinator

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/shaiso/Acquire/internal/domain"
	"github.com/shaiso/Acquire/internal/engine"
	"github.com/shaiso/Acquire/internal/events"
	"github.com/shaiso/Acquire/internal/queue"
)

// workerLoop — единственная горутина, которая вызывает движок.
//
// Get ждёт не дольше pollInterval, чтобы остановка была заметна.
func (c *Coordinator) workerLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		item, err := c.queue.Get(true, c.pollInterval)
		if err != nil {
			if !errors.Is(err, queue.ErrEmpty) {
				c.logger.Error("queue get failed", "error", err)
			}
			continue
		}

		c.execute(ctx, item)
	}
}

// execute выполняет одну submission.
//
// Started всегда предшествует вызову движка, Finished всегда следует
// за ним. Ошибка плана не останавливает worker.
func (c *Coordinator) execute(ctx context.Context, item domain.PrioritizedSubmission) {
	logger := c.logger.With("submission_id", item.ID, "plan", item.PlanName())
	started := time.Now()
	outcome := events.OutcomeSucceeded

	c.metrics.QueueDepth(c.queue.Len())
	logger.Info("plan started", "priority", item.Priority)
	c.bus.Publish(events.Started{
		SubmissionID: item.ID,
		Plan:         item.PlanName(),
		Priority:     item.Priority,
		At:           started,
	})

	defer func() {
		duration := time.Since(started)
		c.bus.Publish(events.Finished{
			SubmissionID: item.ID,
			Plan:         item.PlanName(),
			Outcome:      outcome,
			Duration:     duration,
		})
		c.metrics.RunFinished(outcome, duration)

		if err := c.queue.TaskDone(); err != nil {
			logger.Error("queue bookkeeping failed", "error", err)
		}
		c.checkReady()
	}()

	err := c.runPlan(ctx, item)
	switch {
	case err == nil:
		logger.Info("plan finished", "duration", time.Since(started))

	case errors.Is(err, engine.ErrRunAborted):
		outcome = events.OutcomeAborted
		logger.Info("plan aborted", "reason", err)
		c.Notify(events.NoticeInfo, "Run aborted")

	default:
		outcome = events.OutcomeFailed
		logger.Error("plan failed", "error", err)
		c.Notify(events.NoticeError, fmt.Sprintf("Plan %s failed: %v", item.PlanName(), err))
		c.bus.Publish(events.ExceptionRaised{
			SubmissionID: item.ID,
			Plan:         item.PlanName(),
			Err:          err,
		})
	}
}

// runPlan вызывает движок внутри span plan.execute.
// Panic плана превращается в ошибку.
func (c *Coordinator) runPlan(ctx context.Context, item domain.PrioritizedSubmission) (err error) {
	ctx, span := c.tracer.Start(ctx, "plan.execute",
		trace.WithAttributes(
			attribute.String("plan.name", item.PlanName()),
			attribute.Int("plan.priority", item.Priority),
			attribute.String("submission.id", item.ID.String()),
		),
	)
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("plan panicked", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("%w: %v", ErrPlanPanic, r)
		}
		switch {
		case err == nil:
			span.SetStatus(codes.Ok, "")
		case errors.Is(err, engine.ErrRunAborted):
			span.SetAttributes(attribute.Bool("plan.aborted", true))
		default:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	return c.engine.Run(ctx, item.Plan, item.Metadata, item.Subscribers...)
}

// checkReady публикует Ready, если движок свободен и в очереди нет
// незавершённых submissions.
func (c *Coordinator) checkReady() {
	if c.engine.State() == domain.EngineIdle && c.queue.UnfinishedTasks() == 0 {
		c.logger.Debug("coordinator ready")
		c.bus.Publish(events.Ready{})
	}
}
