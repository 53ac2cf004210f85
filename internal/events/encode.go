package events

// Data возвращает поля уведомления в виде map для передачи по сети
// (SSE, RabbitMQ). Ключи в snake_case.
func Data(ev Event) map[string]any {
	switch e := ev.(type) {
	case Started:
		return map[string]any{
			"submission_id": e.SubmissionID.String(),
			"plan":          e.Plan,
			"priority":      e.Priority,
			"at":            e.At,
		}
	case Finished:
		return map[string]any{
			"submission_id": e.SubmissionID.String(),
			"plan":          e.Plan,
			"outcome":       string(e.Outcome),
			"duration_sec":  e.Duration.Seconds(),
		}
	case Paused:
		return map[string]any{"deferred": e.Deferred}
	case Aborted:
		return map[string]any{"reason": e.Reason}
	case DocumentYielded:
		return map[string]any{"name": string(e.Name), "body": e.Body}
	case ExceptionRaised:
		msg := ""
		if e.Err != nil {
			msg = e.Err.Error()
		}
		return map[string]any{
			"submission_id": e.SubmissionID.String(),
			"plan":          e.Plan,
			"error":         msg,
		}
	case Notice:
		return map[string]any{"level": string(e.Level), "text": e.Text}
	}
	return map[string]any{}
}
