package wal

import (
	"errors"
	"sync"
	"time"
)

// ErrFlusherStopped is returned when a flush is requested after Stop.
var ErrFlusherStopped = errors.New("wal: flusher stopped")

// flushRequest asks the flusher's background goroutine to fsync seg and
// report the result back on response.
type flushRequest struct {
	seg      *Segment
	response chan error
}

// Flusher batches concurrent Append fsyncs into as few Sync calls as
// possible without weakening D1: every caller still blocks until its own
// data is durable, but callers that arrive while a flush is already being
// prepared share its fsync instead of issuing one each.
//
// One WAL owns one Flusher; it is not a cross-database singleton.
type Flusher struct {
	requests     chan *flushRequest
	batchSize    int
	batchTimeout time.Duration
	stopOnce     sync.Once
	stopCh       chan struct{}
	wg           sync.WaitGroup
}

func newFlusher() *Flusher {
	f := &Flusher{
		requests:     make(chan *flushRequest, 1000),
		batchSize:    100,
		batchTimeout: 10 * time.Millisecond,
		stopCh:       make(chan struct{}),
	}
	f.wg.Add(1)
	go f.run()
	return f
}

// flush requests seg be fsynced and blocks until that has happened (or
// failed).
func (f *Flusher) flush(seg *Segment) error {
	req := &flushRequest{seg: seg, response: make(chan error, 1)}
	// Check stopCh on its own first: once stopped, the buffered requests
	// channel could still accept the send below, and nothing would answer it.
	select {
	case <-f.stopCh:
		return ErrFlusherStopped
	default:
	}
	select {
	case f.requests <- req:
	case <-f.stopCh:
		return ErrFlusherStopped
	}
	return <-req.response
}

func (f *Flusher) run() {
	defer f.wg.Done()

	var batch []*flushRequest
	timer := time.NewTimer(f.batchTimeout)
	defer timer.Stop()

	for {
		select {
		case req := <-f.requests:
			batch = append(batch, req)
			// Flush immediately once the batch is full, or once no further
			// request is already queued — this keeps low-throughput callers
			// from waiting out the full batch timeout for no reason, while
			// still coalescing genuine bursts into one fsync.
			if len(batch) >= f.batchSize || len(f.requests) == 0 {
				f.flushBatch(batch)
				batch = nil
				resetTimer(timer, f.batchTimeout)
			}

		case <-timer.C:
			if len(batch) > 0 {
				f.flushBatch(batch)
				batch = nil
			}
			resetTimer(timer, f.batchTimeout)

		case <-f.stopCh:
			if len(batch) > 0 {
				f.flushBatch(batch)
			}
			return
		}
	}
}

// flushBatch groups requests by the distinct segments involved (a rotation
// mid-batch can mean not every request targets the same segment) and issues
// one Sync per segment.
func (f *Flusher) flushBatch(batch []*flushRequest) {
	bySegment := make(map[*Segment][]*flushRequest)
	for _, req := range batch {
		bySegment[req.seg] = append(bySegment[req.seg], req)
	}

	for seg, reqs := range bySegment {
		err := seg.Sync()
		for _, req := range reqs {
			req.response <- err
		}
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}

// stop drains any in-flight batch and halts the background goroutine.
func (f *Flusher) stop() {
	f.stopOnce.Do(func() {
		close(f.stopCh)
	})
	f.wg.Wait()
}
