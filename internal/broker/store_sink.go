package broker

import (
	"context"
	"fmt"
	"sync"

	"github.com/shaiso/Acquire/internal/domain"
	"github.com/shaiso/Acquire/internal/repo"
)

// StoreSink сохраняет runs и документы в repo.Store.
//
// Движок выполняет один план за раз, поэтому документы без run_start
// относятся к последнему открытому run.
type StoreSink struct {
	store repo.Store

	mu      sync.Mutex
	current *domain.Run
}

var _ Sink = (*StoreSink)(nil)

// NewStoreSink создаёт новый StoreSink.
func NewStoreSink(store repo.Store) *StoreSink {
	return &StoreSink{store: store}
}

// Name возвращает имя sink.
func (s *StoreSink) Name() string {
	return "store"
}

// Consume сохраняет документ.
//
// start создаёт run, stop закрывает его, остальные документы
// добавляются к открытому run.
func (s *StoreSink) Consume(ctx context.Context, doc domain.LifecycleDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch doc.Name {
	case domain.DocumentStart:
		run := domain.RunFromStart(doc)
		if err := s.store.SaveRun(ctx, run); err != nil {
			return fmt.Errorf("save run %s: %w", run.UID, err)
		}
		s.current = run
		return s.store.AppendDocument(ctx, run.UID, doc)

	case domain.DocumentStop:
		run, err := s.runFor(doc)
		if err != nil {
			return err
		}
		if err := s.store.AppendDocument(ctx, run.UID, doc); err != nil {
			return err
		}
		run.Finish(doc)
		s.current = nil
		if err := s.store.FinishRun(ctx, run); err != nil {
			return fmt.Errorf("finish run %s: %w", run.UID, err)
		}
		return nil

	default:
		run, err := s.runFor(doc)
		if err != nil {
			return err
		}
		return s.store.AppendDocument(ctx, run.UID, doc)
	}
}

func (s *StoreSink) runFor(doc domain.LifecycleDocument) (*domain.Run, error) {
	if s.current == nil {
		return nil, fmt.Errorf("%s document: %w", doc.Name, ErrNoOpenRun)
	}
	if ref := doc.String("run_start"); ref != "" && ref != s.current.UID {
		return nil, fmt.Errorf("%s document references run %s, open run is %s: %w",
			doc.Name, ref, s.current.UID, ErrNoOpenRun)
	}
	return s.current, nil
}
