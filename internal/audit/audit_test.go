package audit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coverly/internal/domain"
)

type memAuditRepo struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
	err     error
}

func (m *memAuditRepo) InsertAudit(_ context.Context, entry domain.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memAuditRepo) all() []domain.AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.AuditEntry(nil), m.entries...)
}

func TestRecorderPersists(t *testing.T) {
	repo := &memAuditRepo{}
	rec := NewRecorder(repo, 16, slog.New(slog.NewTextHandler(io.Discard, nil)))

	rec.Record("vendor_compliance_check", "org-1", "user-1", map[string]string{"vendor_id": "v-1"})
	rec.Record("vendor_compliance_check", "org-1", "user-2", nil)
	rec.Close()

	entries := repo.all()
	require.Len(t, entries, 2)
	assert.Equal(t, "vendor_compliance_check", entries[0].Action)
	assert.Equal(t, "org-1", entries[0].OrgID)
	assert.Equal(t, "v-1", entries[0].Metadata["vendor_id"])
	assert.False(t, entries[0].At.IsZero())
}

func TestRecorderSwallowsSinkFailure(t *testing.T) {
	var buf strings.Builder
	repo := &memAuditRepo{err: errors.New("sink down")}
	rec := NewRecorder(repo, 16, slog.New(slog.NewTextHandler(&buf, nil)))

	// Must not panic, block, or surface an error to the caller.
	rec.Record("vendor_compliance_check", "org-1", "user-1", nil)
	rec.Close()

	assert.Contains(t, buf.String(), "audit write failed")
}

func TestRecorderDropsWhenFull(t *testing.T) {
	var buf strings.Builder
	block := make(chan struct{})
	repo := &blockingRepo{release: block}
	rec := NewRecorder(repo, 1, slog.New(slog.NewTextHandler(&buf, nil)))

	// First entry occupies the writer, second fills the buffer, third drops.
	rec.Record("a", "org", "u", nil)
	rec.Record("b", "org", "u", nil)
	rec.Record("c", "org", "u", nil)
	close(block)
	rec.Close()

	assert.Contains(t, buf.String(), "entry dropped")
}

type blockingRepo struct {
	release chan struct{}
}

func (b *blockingRepo) InsertAudit(_ context.Context, _ domain.AuditEntry) error {
	<-b.release
	return nil
}
