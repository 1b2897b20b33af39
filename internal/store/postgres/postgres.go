package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/LightDreamhs/MyPetShop3.0/internal/domain"
	"github.com/LightDreamhs/MyPetShop3.0/internal/store"
	"github.com/LightDreamhs/MyPetShop3.0/internal/xid"
)

const schema = `
CREATE TABLE IF NOT EXISTS checkout_journal (
	id           TEXT PRIMARY KEY,
	operator     TEXT NOT NULL,
	mode         TEXT NOT NULL,
	customer_id  BIGINT,
	amount_cents BIGINT NOT NULL DEFAULT 0,
	state        TEXT NOT NULL,
	committed    JSONB NOT NULL DEFAULT '[]',
	failed       JSONB NOT NULL DEFAULT '[]',
	warnings     JSONB NOT NULL DEFAULT '[]',
	created_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS checkout_journal_created_at_idx ON checkout_journal (created_at DESC);

CREATE TABLE IF NOT EXISTS audit_logs (
	id          TEXT PRIMARY KEY,
	actor       TEXT NOT NULL,
	actor_role  TEXT NOT NULL,
	action      TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	entity_id   TEXT NOT NULL,
	detail      TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL
);
`

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(4)
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// NewWithDB wraps an existing handle; the caller owns its lifecycle.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the console tables when they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *Store) CreateJournalEntry(ctx context.Context, entry domain.JournalEntry) (*domain.JournalEntry, error) {
	if strings.TrimSpace(entry.Mode) == "" || strings.TrimSpace(entry.State) == "" {
		return nil, store.ErrInvalidEntry
	}
	if entry.ID == "" {
		entry.ID = xid.New("jrnl")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	committed, err := jsonList(entry.Committed)
	if err != nil {
		return nil, err
	}
	failed, err := jsonList(entry.Failed)
	if err != nil {
		return nil, err
	}
	warnings, err := jsonList(entry.Warnings)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO checkout_journal (
			id, operator, mode, customer_id, amount_cents, state, committed, failed, warnings, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, entry.ID, entry.Operator, entry.Mode, nullInt64(entry.CustomerID), entry.AmountCents, entry.State, committed, failed, warnings, entry.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidEntry
		}
		return nil, err
	}

	created := entry
	return &created, nil
}

func (s *Store) ListJournal(ctx context.Context, query domain.JournalQuery) ([]domain.JournalEntry, error) {
	limit := query.Limit
	if limit < 1 {
		limit = store.DefaultListLimit
	}
	from, to := store.Window(query.From, query.To, time.Now())

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, operator, mode, customer_id, amount_cents, state, committed, failed, warnings, created_at
		FROM checkout_journal
		WHERE created_at >= $1
			AND created_at < $2
			AND ($3::text = '' OR state = $3::text)
		ORDER BY created_at DESC
		LIMIT $4
	`, from, to, query.State, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.JournalEntry, 0, limit)
	for rows.Next() {
		var (
			entry                       domain.JournalEntry
			customerID                  sql.NullInt64
			committed, failed, warnings []byte
		)
		if err := rows.Scan(&entry.ID, &entry.Operator, &entry.Mode, &customerID, &entry.AmountCents, &entry.State, &committed, &failed, &warnings, &entry.CreatedAt); err != nil {
			return nil, err
		}
		if customerID.Valid {
			id := customerID.Int64
			entry.CustomerID = &id
		}
		if err := decodeLists(&entry, committed, failed, warnings); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (
			id, actor, actor_role, action, entity_type, entity_id, detail, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.Actor, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = store.DefaultListLimit
	}
	from, to = store.Window(from, to, time.Now())

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE created_at >= $1
			AND created_at < $2
		ORDER BY created_at DESC
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.Actor, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func jsonList(values []string) ([]byte, error) {
	if values == nil {
		values = []string{}
	}
	return json.Marshal(values)
}

func decodeLists(entry *domain.JournalEntry, committed []byte, failed []byte, warnings []byte) error {
	for _, col := range []struct {
		raw []byte
		dst *[]string
	}{
		{committed, &entry.Committed},
		{failed, &entry.Failed},
		{warnings, &entry.Warnings},
	} {
		if len(col.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(col.raw, col.dst); err != nil {
			return fmt.Errorf("decode journal %s: %w", entry.ID, err)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullInt64(val *int64) any {
	if val == nil {
		return nil
	}
	return *val
}
