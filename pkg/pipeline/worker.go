// pkg/pipeline/worker.go
package pipeline

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/openbdc/subval/pkg/model"
)

// WorkerState represents the current state of a row worker.
type WorkerState string

const (
	WorkerStateIdle      WorkerState = "idle"
	WorkerStateWorking   WorkerState = "working"
	WorkerStateCompleted WorkerState = "completed"
)

// rowChunk is one unit of row-local validation work. Rows inside a chunk are
// processed in order; chunks are independent of each other.
type rowChunk struct {
	Index   int
	Records []*model.Record
}

// rowWorker drains row chunks from a shared channel and applies a row-local
// validation function to each record. Only row-local work may run here:
// anything that inspects neighboring rows runs after the pool drains.
type rowWorker struct {
	id        int
	process   func(*model.Record)
	logger    *zap.Logger
	state     WorkerState
	stateLock sync.RWMutex
	processed int
}

func newRowWorker(id int, process func(*model.Record), logger *zap.Logger) *rowWorker {
	return &rowWorker{
		id:      id,
		process: process,
		logger:  logger.With(zap.Int("workerID", id)),
		state:   WorkerStateIdle,
	}
}

// GetState returns the current worker state.
func (w *rowWorker) GetState() WorkerState {
	w.stateLock.RLock()
	defer w.stateLock.RUnlock()
	return w.state
}

func (w *rowWorker) setState(state WorkerState) {
	w.stateLock.Lock()
	defer w.stateLock.Unlock()
	w.state = state
}

// Start begins the worker loop. It returns when the chunk channel closes or
// the context is cancelled.
func (w *rowWorker) Start(ctx context.Context, chunks <-chan rowChunk) {
	w.setState(WorkerStateWorking)

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("Worker stopping due to context cancellation")
			w.setState(WorkerStateCompleted)
			return

		case chunk, ok := <-chunks:
			if !ok {
				w.logger.Debug("Worker stopping due to closed chunk channel",
					zap.Int("rowsProcessed", w.processed))
				w.setState(WorkerStateCompleted)
				return
			}
			for _, rec := range chunk.Records {
				if ctx.Err() != nil {
					w.setState(WorkerStateCompleted)
					return
				}
				w.process(rec)
				w.processed++
			}
		}
	}
}

// runRowPool fans records out over a bounded worker pool in chunks and blocks
// until every chunk is processed or the context is cancelled.
func runRowPool(ctx context.Context, recs []*model.Record, chunkSize, workers int, process func(*model.Record), logger *zap.Logger) error {
	if chunkSize <= 0 {
		chunkSize = len(recs)
	}
	if workers <= 0 {
		workers = 1
	}

	chunks := make(chan rowChunk, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		worker := newRowWorker(i, process, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker.Start(ctx, chunks)
		}()
	}

	index := 0
	for start := 0; start < len(recs); start += chunkSize {
		end := start + chunkSize
		if end > len(recs) {
			end = len(recs)
		}
		select {
		case chunks <- rowChunk{Index: index, Records: recs[start:end]}:
			index++
		case <-ctx.Done():
			close(chunks)
			wg.Wait()
			return ctx.Err()
		}
	}
	close(chunks)
	wg.Wait()

	return ctx.Err()
}
