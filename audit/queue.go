package audit

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/cenkalti/backoff/v5"

	"github.com/byteness/sentinel-authz/telemetry"
)

// deadLetter pairs a record that could not be persisted with the error
// that finally gave up on it.
type deadLetter struct {
	record Record
	err    error
}

// queueBufferSize bounds how many records can be in flight between Append
// handing one off and the background worker retrying its persist. Sized
// well above any plausible burst between two Store outages clearing.
const queueBufferSize = 256

// DurableQueue decouples the audit-emitting request path from Store's
// retries: Append only ever enqueues onto a buffered channel, handing off
// in constant time, while a background worker drains the channel and
// retries each record with backoff. A record that exhausts its retries
// moves to a bounded in-memory dead-letter queue instead of blocking or
// being dropped silently. This keeps audit durability best-effort without
// ever letting a wedged downstream sink stall the authorization pipeline
// that's emitting records.
type DurableQueue struct {
	store       Store
	maxTries    uint
	newBackOff  func() backoff.BackOff
	records     chan Record
	wg          sync.WaitGroup
	mu          sync.Mutex
	deadLetters []deadLetter
	dlqCap      int
	dropped     int
}

// NewDurableQueue wraps store with retry-then-DLQ semantics and starts the
// background worker that drains Append's handoff channel. dlqCap bounds
// the number of dead-lettered records retained in memory (config's
// SENTINEL_AUDIT_DLQ_SIZE); once full, the oldest dead letter is evicted
// and counted in Dropped. Call Close when done to stop the worker.
func NewDurableQueue(store Store, dlqCap int) *DurableQueue {
	if dlqCap <= 0 {
		dlqCap = 1000
	}
	q := &DurableQueue{
		store:      store,
		maxTries:   5,
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
		dlqCap:     dlqCap,
		records:    make(chan Record, queueBufferSize),
	}
	q.wg.Add(1)
	go q.run()
	return q
}

// run is the background worker: it drains records until the channel is
// closed, retrying each with backoff before dead-lettering one that
// exhausts its tries.
func (q *DurableQueue) run() {
	defer q.wg.Done()
	for rec := range q.records {
		q.appendWithRetry(rec)
	}
}

// Append hands rec off to the background worker and returns immediately —
// it never waits on a Store round-trip or a backoff delay. A record
// arriving when the handoff buffer is already full is dead-lettered
// directly rather than applying backpressure to the caller, since the
// caller must not block on audit persistence either way.
func (q *DurableQueue) Append(ctx context.Context, rec Record) error {
	select {
	case q.records <- rec:
	default:
		q.deadLetter(rec, errors.New("audit queue buffer full"))
	}
	return nil
}

// Close stops accepting new work and waits for every record already
// handed off to finish its retry cycle (or dead-letter). Safe to call
// once, typically during shutdown.
func (q *DurableQueue) Close() {
	close(q.records)
	q.wg.Wait()
}

func (q *DurableQueue) appendWithRetry(rec Record) {
	ctx := context.Background()
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, q.store.Append(ctx, rec)
	}, backoff.WithBackOff(q.newBackOff()), backoff.WithMaxTries(q.maxTries))

	if err != nil {
		q.deadLetter(rec, err)
		return
	}
	telemetry.AuditRecordsAppendedTotal.Inc()
}

func (q *DurableQueue) deadLetter(rec Record, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.deadLetters) >= q.dlqCap {
		q.deadLetters = q.deadLetters[1:]
		q.dropped++
		telemetry.AuditRecordsDroppedTotal.Inc()
	}
	q.deadLetters = append(q.deadLetters, deadLetter{record: rec, err: err})
	log.Printf("audit: record %s dead-lettered after retries exhausted: %v", rec.ID, err)
}

// DeadLetters returns a snapshot of currently queued dead letters.
func (q *DurableQueue) DeadLetters() []Record {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Record, len(q.deadLetters))
	for i, dl := range q.deadLetters {
		out[i] = dl.record
	}
	return out
}

// Dropped returns the count of dead letters evicted because the DLQ was
// full, i.e. records sentineld could not persist and could not even hold
// onto for later replay.
func (q *DurableQueue) Dropped() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Replay attempts to re-append every currently queued dead letter,
// removing each one that succeeds. Intended to be called periodically
// (e.g. from a background goroutine) once the downstream store recovers,
// or once at shutdown after Close has drained the worker.
func (q *DurableQueue) Replay(ctx context.Context) (recovered int) {
	q.mu.Lock()
	pending := q.deadLetters
	q.deadLetters = nil
	q.mu.Unlock()

	var stillDead []deadLetter
	for _, dl := range pending {
		if err := q.store.Append(ctx, dl.record); err != nil {
			stillDead = append(stillDead, deadLetter{record: dl.record, err: err})
			continue
		}
		recovered++
	}

	if len(stillDead) > 0 {
		q.mu.Lock()
		q.deadLetters = append(stillDead, q.deadLetters...)
		q.mu.Unlock()
	}
	return recovered
}
