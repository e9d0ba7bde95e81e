/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"savium-invest-go/internal/models"

	"go.uber.org/zap"
)

const writeTimeout = 10 * time.Second

// Appender persists a transaction log entry
type Appender interface {
	AppendTransaction(ctx context.Context, entry models.TransactionLogEntry) (models.TransactionLogEntry, error)
}

// WriterConfig contains configuration for Writer
type WriterConfig struct {
	Appender     Appender
	Workers      int
	QueueSize    int
	DrainTimeout time.Duration
}

// Writer appends transaction log entries off the request path. Entries still
// queued when the process dies are lost.
type Writer struct {
	appender     Appender
	queue        chan models.TransactionLogEntry
	workers      int
	drainTimeout time.Duration

	started atomic.Bool
	stopped atomic.Bool
	written atomic.Int64
	failed  atomic.Int64

	// Control channels
	stopChan chan struct{}
	doneChan chan struct{}
	stopOnce sync.Once
}

// NewWriter creates a new audit writer
func NewWriter(cfg WriterConfig) *Writer {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 5 * time.Second
	}
	return &Writer{
		appender:     cfg.Appender,
		queue:        make(chan models.TransactionLogEntry, cfg.QueueSize),
		workers:      cfg.Workers,
		drainTimeout: cfg.DrainTimeout,
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
}

// Start launches the worker goroutines
func (w *Writer) Start() {
	if !w.started.CompareAndSwap(false, true) {
		return
	}

	var wg sync.WaitGroup
	for i := 0; i < w.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.workLoop()
		}()
	}
	go func() {
		wg.Wait()
		close(w.doneChan)
	}()

	zap.L().Info("Audit writer started", zap.Int("workers", w.workers), zap.Int("queue_size", cap(w.queue)))
}

// Submit queues an entry without blocking. When the writer is not running or
// the queue is full the entry is written inline instead.
func (w *Writer) Submit(entry models.TransactionLogEntry) {
	if !w.started.Load() || w.stopped.Load() {
		w.write(entry)
		return
	}
	select {
	case w.queue <- entry:
	default:
		zap.L().Warn("Audit queue full, writing inline",
			zap.String("user_id", entry.UserId),
			zap.String("type", entry.Type))
		w.write(entry)
	}
}

// Stop drains queued entries and waits for the workers, up to the drain timeout
func (w *Writer) Stop() {
	w.stopOnce.Do(func() {
		w.stopped.Store(true)
		if !w.started.Load() {
			return
		}
		zap.L().Info("Stopping audit writer", zap.Int("queued", len(w.queue)))
		close(w.stopChan)
		select {
		case <-w.doneChan:
			// A Submit racing Stop can enqueue after the workers exited.
			if n := w.flushRemaining(); n > 0 {
				zap.L().Warn("Audit entries queued after workers stopped, written inline", zap.Int("count", n))
			}
		case <-time.After(w.drainTimeout):
			zap.L().Warn("Audit writer drain timed out", zap.Int("remaining", len(w.queue)))
		}
		zap.L().Info("Audit writer stopped",
			zap.Int64("written", w.written.Load()),
			zap.Int64("failed", w.failed.Load()))
	})
}

// Stats returns the number of entries written and failed so far
func (w *Writer) Stats() (written, failed int64) {
	return w.written.Load(), w.failed.Load()
}

func (w *Writer) workLoop() {
	for {
		select {
		case entry := <-w.queue:
			w.write(entry)
		case <-w.stopChan:
			for {
				select {
				case entry := <-w.queue:
					w.write(entry)
				default:
					return
				}
			}
		}
	}
}

// flushRemaining writes whatever is still queued and returns how many.
func (w *Writer) flushRemaining() int {
	n := 0
	for {
		select {
		case entry := <-w.queue:
			w.write(entry)
			n++
		default:
			return n
		}
	}
}

func (w *Writer) write(entry models.TransactionLogEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if _, err := w.appender.AppendTransaction(ctx, entry); err != nil {
		w.failed.Add(1)
		zap.L().Error("Failed to append transaction log entry",
			zap.String("user_id", entry.UserId),
			zap.String("type", entry.Type),
			zap.String("status", entry.Status),
			zap.Error(err))
		return
	}
	w.written.Add(1)
}
