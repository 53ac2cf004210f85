package repo

import (
	"encoding/json"
	"fmt"

	"github.com/shaiso/Acquire/internal/domain"
)

// runColumns — закодированные JSON поля run.
type runColumns struct {
	metadata  []byte
	numEvents []byte
}

func encodeRun(run *domain.Run) (runColumns, error) {
	var cols runColumns
	var err error
	if cols.metadata, err = json.Marshal(run.Metadata); err != nil {
		return cols, fmt.Errorf("marshal metadata: %w", err)
	}
	if run.NumEvents != nil {
		if cols.numEvents, err = json.Marshal(run.NumEvents); err != nil {
			return cols, fmt.Errorf("marshal num_events: %w", err)
		}
	}
	return cols, nil
}

func decodeRun(run *domain.Run, metadata, numEvents []byte) error {
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &run.Metadata); err != nil {
			return fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	if len(numEvents) > 0 {
		if err := json.Unmarshal(numEvents, &run.NumEvents); err != nil {
			return fmt.Errorf("unmarshal num_events: %w", err)
		}
	}
	return nil
}

func encodeBody(doc domain.LifecycleDocument) ([]byte, error) {
	body, err := json.Marshal(doc.Body)
	if err != nil {
		return nil, fmt.Errorf("marshal %s document: %w", doc.Name, err)
	}
	return body, nil
}

func decodeDocument(name string, body []byte) (domain.LifecycleDocument, error) {
	doc := domain.LifecycleDocument{Name: domain.DocumentName(name)}
	if err := json.Unmarshal(body, &doc.Body); err != nil {
		return doc, fmt.Errorf("unmarshal %s document: %w", name, err)
	}
	return doc, nil
}
