package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/gm-relay/internal/relay"
)

// RelayWorker runs the two polling loops. Each direction gets its own
// goroutine with a plain ticker; a cycle always finishes before the
// next begins, which the inbox rate limiter depends on.
type RelayWorker struct {
	dispatcher *relay.Dispatcher
	processor  *relay.Processor
	interval   time.Duration
	logger     *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRelayWorker instantiates a worker.
func NewRelayWorker(dispatcher *relay.Dispatcher, processor *relay.Processor, interval time.Duration, logger *zap.Logger) *RelayWorker {
	if interval <= 0 {
		interval = time.Second
	}
	return &RelayWorker{
		dispatcher: dispatcher,
		processor:  processor,
		interval:   interval,
		logger:     logger,
	}
}

// Start launches the poll loops.
func (w *RelayWorker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)

	if w.dispatcher != nil {
		w.wg.Add(1)
		go w.loop(ctx, "outbox", func(c context.Context) (int, error) {
			return w.dispatcher.RunCycle(c)
		})
	}
	if w.processor != nil {
		w.wg.Add(1)
		go w.loop(ctx, "inbox", func(c context.Context) (int, error) {
			return w.processor.RunCycle(c)
		})
	}
	w.logger.Info("relay worker started", zap.Duration("interval", w.interval))
}

func (w *RelayWorker) loop(ctx context.Context, name string, cycle func(context.Context) (int, error)) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			handled, err := cycle(ctx)
			if err != nil {
				w.logger.Error("relay cycle failed", zap.String("queue", name), zap.Error(err))
				continue
			}
			if handled > 0 {
				w.logger.Debug("relay cycle done", zap.String("queue", name), zap.Int("handled", handled))
			}
		}
	}
}

// Stop halts the loops and waits for in-flight cycles.
func (w *RelayWorker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	w.logger.Info("relay worker stopped")
}
