package coordinator

import (
	"time"

	"github.com/shaiso/Acquire/internal/domain"
	"github.com/shaiso/Acquire/internal/events"
)

// SubmissionResult — исход Submit.
type SubmissionResult string

const (
	SubmissionAccepted  SubmissionResult = "accepted"
	SubmissionRejected  SubmissionResult = "rejected"
	SubmissionCancelled SubmissionResult = "cancelled"
)

// Metrics — получатель метрик координатора.
type Metrics interface {
	SubmissionRecorded(result SubmissionResult)
	RunFinished(outcome events.Outcome, d time.Duration)
	QueueDepth(n int)
	DocumentEmitted(name domain.DocumentName)
}

type nopMetrics struct{}

func (nopMetrics) SubmissionRecorded(SubmissionResult)       {}
func (nopMetrics) RunFinished(events.Outcome, time.Duration) {}
func (nopMetrics) QueueDepth(int)                            {}
func (nopMetrics) DocumentEmitted(domain.DocumentName)       {}
