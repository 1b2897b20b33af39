package store

import (
	"context"
	"errors"
	"time"

	"github.com/LightDreamhs/MyPetShop3.0/internal/domain"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidEntry = errors.New("invalid entry")
)

// Repository persists the console's own records. Customer, ledger and
// inventory data stay with the upstream API.
type Repository interface {
	CreateJournalEntry(ctx context.Context, entry domain.JournalEntry) (*domain.JournalEntry, error)
	ListJournal(ctx context.Context, query domain.JournalQuery) ([]domain.JournalEntry, error)
	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)
}

const DefaultListLimit = 100

// Window fills open bounds of a listing with the last 30 days. The open
// upper bound is a minute past now so entries written this instant match.
func Window(from time.Time, to time.Time, now time.Time) (time.Time, time.Time) {
	if to.IsZero() {
		to = now.Add(time.Minute)
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -30)
	}
	return from.UTC(), to.UTC()
}
