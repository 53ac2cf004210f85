package domain

import "maps"

// DocumentName — имя lifecycle документа.
type DocumentName string

// Имена документов (модель bluesky event-model).
const (
	DocumentStart      DocumentName = "start"
	DocumentDescriptor DocumentName = "descriptor"
	DocumentEvent      DocumentName = "event"
	DocumentResource   DocumentName = "resource"
	DocumentDatum      DocumentName = "datum"
	DocumentStop       DocumentName = "stop"
)

// Valid проверяет, что имя документа известно.
func (n DocumentName) Valid() bool {
	switch n {
	case DocumentStart, DocumentDescriptor, DocumentEvent,
		DocumentResource, DocumentDatum, DocumentStop:
		return true
	default:
		return false
	}
}

// LifecycleDocument — документ, испускаемый движком во время run.
//
// Документы неизменяемы: получатели не должны модифицировать Body.
type LifecycleDocument struct {
	Name DocumentName   `json:"name"`
	Body map[string]any `json:"body"`
}

// NewDocument создаёт документ с копией body.
func NewDocument(name DocumentName, body map[string]any) LifecycleDocument {
	return LifecycleDocument{Name: name, Body: maps.Clone(body)}
}

// UID возвращает uid документа (datum использует datum_id).
func (d LifecycleDocument) UID() string {
	key := "uid"
	if d.Name == DocumentDatum {
		key = "datum_id"
	}
	s, _ := d.Body[key].(string)
	return s
}

// String возвращает значение строкового поля body.
func (d LifecycleDocument) String(key string) string {
	s, _ := d.Body[key].(string)
	return s
}

// ExitStatus — exit_status в stop документе.
type ExitStatus string

const (
	ExitSuccess ExitStatus = "success"
	ExitAbort   ExitStatus = "abort"
	ExitFail    ExitStatus = "fail"
)

// RunStatus возвращает статус run для exit_status.
func (e ExitStatus) RunStatus() RunStatus {
	switch e {
	case ExitSuccess:
		return RunStatusSucceeded
	case ExitAbort:
		return RunStatusAborted
	default:
		return RunStatusFailed
	}
}
