package domain

import (
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
)

// ReservedKeys — ключи метаданных, которые заполняет движок.
//
// Пользовательские метаданные не могут их переопределять.
var ReservedKeys = []string{"plan_type", "plan_args", "scan_id", "time", "uid"}

// RunMetadata — метаданные run (sample_name, пользовательские поля).
//
// Сливаются с keyword-аргументами submission и попадают в start документ.
type RunMetadata map[string]any

// Clone возвращает копию метаданных.
func (m RunMetadata) Clone() RunMetadata {
	if m == nil {
		return RunMetadata{}
	}
	return maps.Clone(m)
}

// Merge возвращает новые метаданные: m, поверх которых записан over.
func (m RunMetadata) Merge(over RunMetadata) RunMetadata {
	out := m.Clone()
	maps.Copy(out, over)
	return out
}

// Keys возвращает отсортированный список ключей.
func (m RunMetadata) Keys() []string {
	return slices.Sorted(maps.Keys(m))
}

// Collisions возвращает отсортированный список ключей из m, попавших в reserved.
func (m RunMetadata) Collisions(reserved []string) []string {
	var out []string
	for key := range m {
		if slices.Contains(reserved, key) {
			out = append(out, key)
		}
	}
	slices.Sort(out)
	return out
}

// ReservedFor возвращает зарезервированные ключи для submission
// с указанными kwargs: базовый набор плюс ключи самих kwargs.
func ReservedFor(kwargs RunMetadata) []string {
	out := slices.Clone(ReservedKeys)
	for _, key := range kwargs.Keys() {
		if !slices.Contains(out, key) {
			out = append(out, key)
		}
	}
	return out
}

// DocumentCallback — получатель lifecycle документов.
type DocumentCallback func(doc LifecycleDocument)

// PrioritizedSubmission — план, ожидающий выполнения в очереди.
//
// Упорядочивается только по Priority: меньшее значение выполняется раньше.
// После постановки в очередь не изменяется.
type PrioritizedSubmission struct {
	// ID — идентификатор submission.
	ID uuid.UUID

	// Priority — приоритет (меньше — раньше).
	Priority int

	// Plan — план для выполнения.
	Plan Plan

	// Metadata — keyword-аргументы, слитые с собранными метаданными.
	Metadata RunMetadata

	// Subscribers — получатели документов только этого run.
	Subscribers []DocumentCallback

	// SubmittedAt — время постановки в очередь.
	SubmittedAt time.Time
}

// PlanName возвращает имя плана submission.
func (s *PrioritizedSubmission) PlanName() string {
	if s.Plan == nil {
		return ""
	}
	return s.Plan.Name()
}
