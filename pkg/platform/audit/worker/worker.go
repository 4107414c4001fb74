package worker

import (
	"context"

	audit "zenid/pkg/platform/audit"
)

// Worker drains the recorder's outbox and hands events to the publisher. It
// keeps publishing off the write path: a slow broker delays the stream, never
// a session transition.
type Worker struct {
	publisher audit.Publisher
	inbox     <-chan audit.Event
}

func NewWorker(publisher audit.Publisher, inbox <-chan audit.Event) *Worker {
	return &Worker{publisher: publisher, inbox: inbox}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.publisher.Publish(ctx, event); err != nil {
				return err
			}
		}
	}
}
