package bootstrap

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/artpar/coreplane/domain/usage"
	"github.com/artpar/coreplane/ports"
)

// LocalUsageRecorder buffers usage records and writes them in batches to the
// store. Records carrying idempotency keys dedupe at the store, so a retried
// flush cannot double-count. Writes are fire-and-forget: failures are logged,
// never returned to the producer.
type LocalUsageRecorder struct {
	store         ports.UsageStore
	log           zerolog.Logger
	buffer        []usage.Record
	mu            sync.Mutex
	batchSize     int
	flushInterval time.Duration
	stopCh        chan struct{}
	wg            sync.WaitGroup
	closeOnce     sync.Once
}

// NewLocalUsageRecorder creates a new local usage recorder.
func NewLocalUsageRecorder(store ports.UsageStore, batchSize int, flushInterval time.Duration, log zerolog.Logger) *LocalUsageRecorder {
	if batchSize == 0 {
		batchSize = 100
	}
	if flushInterval == 0 {
		flushInterval = 10 * time.Second
	}

	r := &LocalUsageRecorder{
		store:         store,
		log:           log,
		buffer:        make([]usage.Record, 0, batchSize),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		stopCh:        make(chan struct{}),
	}

	r.wg.Add(1)
	go r.flushLoop()

	return r
}

// Record queues a usage record for processing.
func (r *LocalUsageRecorder) Record(rec usage.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buffer = append(r.buffer, rec)

	if len(r.buffer) >= r.batchSize {
		r.flushLocked()
	}
}

// Flush forces immediate processing of queued records.
func (r *LocalUsageRecorder) Flush(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushLocked()
	return nil
}

func (r *LocalUsageRecorder) flushLocked() {
	if len(r.buffer) == 0 {
		return
	}

	records := make([]usage.Record, len(r.buffer))
	copy(records, r.buffer)
	r.buffer = r.buffer[:0]

	// Write in background to not block
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := writeRecords(ctx, r.store, records); err != nil {
			r.log.Error().Err(err).Int("records", len(records)).Msg("usage flush failed")
		}
	}()
}

func writeRecords(ctx context.Context, store ports.UsageStore, records []usage.Record) error {
	var firstErr error
	for _, rec := range records {
		if _, _, err := store.Insert(ctx, rec); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *LocalUsageRecorder) flushLoop() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.Flush(context.Background())
		case <-r.stopCh:
			return
		}
	}
}

// Close stops the recorder and flushes remaining records.
func (r *LocalUsageRecorder) Close() error {
	var err error
	r.closeOnce.Do(func() {
		close(r.stopCh)
		r.wg.Wait()

		// Final flush is synchronous so shutdown does not lose records
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		r.mu.Lock()
		defer r.mu.Unlock()

		if len(r.buffer) > 0 {
			err = writeRecords(ctx, r.store, r.buffer)
			r.buffer = r.buffer[:0]
		}
	})
	return err
}

// Ensure interface compliance.
var _ ports.UsageRecorder = (*LocalUsageRecorder)(nil)
