// Package audit is the best-effort trail of state-changing actions. A
// failed or dropped entry costs an operator log line, never a request.
package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"coverly/internal/domain"
	"coverly/internal/ports"
)

// Recorder buffers entries on a channel and writes them from a detached
// goroutine, decoupled from the request that produced them. Record never
// blocks and never returns an error.
type Recorder struct {
	repo ports.AuditRepository
	ch   chan domain.AuditEntry
	log  *slog.Logger

	closeOnce sync.Once
	done      chan struct{}
}

func NewRecorder(repo ports.AuditRepository, buffer int, log *slog.Logger) *Recorder {
	if buffer < 1 {
		buffer = 1
	}
	r := &Recorder{
		repo: repo,
		ch:   make(chan domain.AuditEntry, buffer),
		log:  log,
		done: make(chan struct{}),
	}
	go r.drain()
	return r
}

// Record enqueues one entry. When the buffer is full the entry is dropped
// and logged; audit pressure must not back up into the pipeline.
func (r *Recorder) Record(action, orgID, userID string, metadata map[string]string) {
	entry := domain.AuditEntry{
		Action:   action,
		OrgID:    orgID,
		UserID:   userID,
		Metadata: metadata,
		At:       time.Now().UTC(),
	}
	select {
	case r.ch <- entry:
	default:
		r.log.Warn("audit buffer full, entry dropped", "action", action, "org_id", orgID)
	}
}

func (r *Recorder) drain() {
	defer close(r.done)
	for entry := range r.ch {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := r.repo.InsertAudit(ctx, entry); err != nil {
			r.log.Error("audit write failed", "action", entry.Action, "org_id", entry.OrgID, "err", err)
		}
		cancel()
	}
}

// Close flushes buffered entries and stops the writer. For shutdown paths;
// Record must not be called after Close.
func (r *Recorder) Close() {
	r.closeOnce.Do(func() { close(r.ch) })
	<-r.done
}
