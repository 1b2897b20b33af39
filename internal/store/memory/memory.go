package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/LightDreamhs/MyPetShop3.0/internal/domain"
	"github.com/LightDreamhs/MyPetShop3.0/internal/store"
	"github.com/LightDreamhs/MyPetShop3.0/internal/xid"
)

type Store struct {
	mu        sync.RWMutex
	journal   []domain.JournalEntry
	auditLogs []domain.AuditLog
}

func New() *Store {
	return &Store{
		journal:   make([]domain.JournalEntry, 0, 128),
		auditLogs: make([]domain.AuditLog, 0, 128),
	}
}

func (s *Store) CreateJournalEntry(_ context.Context, entry domain.JournalEntry) (*domain.JournalEntry, error) {
	if strings.TrimSpace(entry.Mode) == "" || strings.TrimSpace(entry.State) == "" {
		return nil, store.ErrInvalidEntry
	}
	if entry.ID == "" {
		entry.ID = xid.New("jrnl")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	entry.Committed = slices.Clone(entry.Committed)
	entry.Failed = slices.Clone(entry.Failed)
	entry.Warnings = slices.Clone(entry.Warnings)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.journal {
		if existing.ID == entry.ID {
			return nil, store.ErrInvalidEntry
		}
	}
	s.journal = append(s.journal, entry)

	created := entry
	return &created, nil
}

func (s *Store) ListJournal(_ context.Context, query domain.JournalQuery) ([]domain.JournalEntry, error) {
	limit := query.Limit
	if limit < 1 {
		limit = store.DefaultListLimit
	}
	from, to := store.Window(query.From, query.To, time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.JournalEntry, 0, min(limit, len(s.journal)))
	for i := len(s.journal) - 1; i >= 0 && len(out) < limit; i-- {
		entry := s.journal[i]
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		if query.State != "" && entry.State != query.State {
			continue
		}
		out = append(out, entry)
	}
	slices.SortStableFunc(out, func(a, b domain.JournalEntry) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = store.DefaultListLimit
	}
	from, to = store.Window(from, to, time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.AuditLog, 0, min(limit, len(s.auditLogs)))
	for i := len(s.auditLogs) - 1; i >= 0 && len(out) < limit; i-- {
		entry := s.auditLogs[i]
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}
