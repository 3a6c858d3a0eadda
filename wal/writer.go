package wal

import (
	"io"
	"os"
	"sync"

	"github.com/flashdb/lsmgo/segmentmanager"
)

// ErrClosed is returned by Write once the writer has been closed.
var ErrClosed = os.ErrClosed

// Writer appends records to a segmentmanager-backed log, one background
// goroutine at a time, fsyncing after every record so Write only returns
// once the record is durable — the same request/done-channel shape as the
// teacher's original WALWriter, generalized from a single file to rotating
// segments.
type Writer struct {
	mu     sync.Mutex
	ch     chan *writeRequest
	done   chan struct{}
	closed bool
	sm     segmentmanager.Manager
	wg     sync.WaitGroup
}

type writeRequest struct {
	log  *Log
	done chan error
}

// NewWriter starts a Writer backed by sm, buffering up to `buffer` pending
// records before Write blocks.
func NewWriter(buffer int, sm segmentmanager.Manager) *Writer {
	w := &Writer{
		ch:   make(chan *writeRequest, buffer),
		done: make(chan struct{}),
		sm:   sm,
	}
	go w.loop()
	return w
}

// Write enqueues l and blocks until it has been durably appended (or the
// writer is closed).
func (w *Writer) Write(l *Log) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	w.wg.Add(1)
	w.mu.Unlock()
	defer w.wg.Done()

	req := &writeRequest{log: l, done: make(chan error, 1)}

	select {
	case w.ch <- req:
		return <-req.done
	case <-w.done:
		return ErrClosed
	}
}

// Close stops accepting new writes, waits for in-flight ones to finish, and
// closes the underlying segment manager.
func (w *Writer) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	w.wg.Wait()
	close(w.ch)
	<-w.done
	return w.sm.Close()
}

func (w *Writer) loop() {
	defer close(w.done)

	for req := range w.ch {
		var encodeErr error
		err := w.sm.Write(req.log.Size(), func(out io.Writer) {
			encodeErr = req.log.Encode(out)
		})
		if err == nil {
			err = encodeErr
		}
		req.done <- err
	}
}
