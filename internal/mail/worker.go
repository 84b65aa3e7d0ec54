package mail

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Worker drains a RedisOutbox. Failed sends are logged and dropped.
type Worker struct {
	outbox  *RedisOutbox
	sender  Sender
	log     *zap.Logger
	poll    time.Duration
	backoff time.Duration
}

func NewWorker(outbox *RedisOutbox, sender Sender, log *zap.Logger) *Worker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Worker{outbox: outbox, sender: sender, log: log, poll: 5 * time.Second, backoff: time.Second}
}

// Run processes jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("mail worker started")
	defer w.log.Info("mail worker stopped")
	for ctx.Err() == nil {
		if _, err := w.ProcessOne(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			w.log.Error("mail worker pop failed", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(w.backoff):
			}
		}
	}
	return nil
}

// ProcessOne handles at most one job. It reports false when the queue was empty.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	msg, err := w.outbox.Pop(ctx, w.poll)
	if errors.Is(err, ErrNoMessage) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	deliver(ctx, w.sender, *msg, w.log)
	return true, nil
}
