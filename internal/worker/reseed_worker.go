package worker

import (
	"context"
	"time"

	"salestats/internal/log"
)

// Reseeder replaces the store with a fresh copy of the seed document.
type Reseeder interface {
	Initialize(ctx context.Context) (int, error)
}

// ReseedWorker refreshes the store on a fixed interval. A failed run is
// logged and the next tick tries again with a fresh download.
type ReseedWorker struct {
	reseeder Reseeder
	interval time.Duration
	logger   *log.Logger
}

func NewReseedWorker(reseeder Reseeder, interval time.Duration, logger *log.Logger) *ReseedWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &ReseedWorker{
		reseeder: reseeder,
		interval: interval,
		logger:   logger.WithComponent(log.ComponentSeed),
	}
}

// Run blocks until ctx is cancelled.
func (w *ReseedWorker) Run(ctx context.Context) {
	if w.interval <= 0 {
		return
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.InfoContext(ctx, "Reseed worker started", "interval", w.interval.String())

	for {
		select {
		case <-ctx.Done():
			w.logger.InfoContext(ctx, "Reseed worker stopped", log.FieldOperation, log.OpShutdown)
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *ReseedWorker) runOnce(ctx context.Context) {
	start := time.Now()
	n, err := w.reseeder.Initialize(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "Scheduled reseed failed",
			log.FieldOperation, log.OpInitialize,
			log.FieldError, err)
		return
	}
	w.logger.InfoContext(ctx, "Scheduled reseed complete",
		log.FieldOperation, log.OpInitialize,
		log.FieldRecords, n,
		log.FieldDuration, time.Since(start).Milliseconds())
}
