package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists the history log in the action_history table.
// Listing orders by timestamp descending regardless of insert order.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresStore builds a store on top of an open pgx pool.
func NewPostgresStore(log *slog.Logger, pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{
		pool:   pool,
		logger: log.With(slog.String("store", "history")),
	}
}

func (s *PostgresStore) Append(ctx context.Context, entry NewEntry) (Entry, error) {
	stored := Entry{
		ID:          uuid.NewString(),
		Timestamp:   time.Now().UTC(),
		Prompt:      entry.Prompt,
		Actions:     entry.Actions,
		Before:      entry.Before,
		After:       entry.After,
		Summary:     entry.Summary,
		StoreDomain: entry.StoreDomain,
		Status:      StatusExecuted,
	}

	actionsJSON, err := json.Marshal(stored.Actions)
	if err != nil {
		return Entry{}, fmt.Errorf("encode actions: %w", err)
	}
	beforeJSON, err := marshalSnapshot(stored.Before)
	if err != nil {
		return Entry{}, fmt.Errorf("encode before snapshot: %w", err)
	}
	afterJSON, err := marshalSnapshot(stored.After)
	if err != nil {
		return Entry{}, fmt.Errorf("encode after snapshot: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO action_history (id, timestamp, prompt, actions, before_snapshot, after_snapshot, summary, status, store_domain)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		stored.ID, stored.Timestamp, stored.Prompt, actionsJSON, beforeJSON, afterJSON, stored.Summary, string(stored.Status), stored.StoreDomain,
	)
	if err != nil {
		return Entry{}, fmt.Errorf("insert history entry: %w", err)
	}
	return stored, nil
}

func (s *PostgresStore) List(ctx context.Context, limit, offset int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, timestamp, prompt, actions, before_snapshot, after_snapshot, summary, status, store_domain
		FROM action_history
		ORDER BY timestamp DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Entry, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, timestamp, prompt, actions, before_snapshot, after_snapshot, summary, status, store_domain
		FROM action_history
		WHERE id = $1`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	return entry, err
}

// Transition is a compare-and-set on status: the UPDATE matches the expected
// source status, so two concurrent transitions on one entry cannot both win.
func (s *PostgresStore) Transition(ctx context.Context, id string, from, to Status) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE action_history SET status = $1 WHERE id = $2 AND status = $3`,
		string(to), id, string(from))
	if err != nil {
		return fmt.Errorf("update history status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.Get(ctx, id); errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return ErrStatusConflict
	}
	return nil
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM action_history`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count history: %w", err)
	}
	return count, nil
}

func marshalSnapshot(snapshot *Snapshot) ([]byte, error) {
	if snapshot == nil {
		return nil, nil
	}
	return json.Marshal(snapshot)
}

func scanEntry(row pgx.Row) (Entry, error) {
	var (
		entry      Entry
		status     string
		actionsRaw []byte
		beforeRaw  []byte
		afterRaw   []byte
	)
	if err := row.Scan(&entry.ID, &entry.Timestamp, &entry.Prompt, &actionsRaw, &beforeRaw, &afterRaw, &entry.Summary, &status, &entry.StoreDomain); err != nil {
		return Entry{}, err
	}
	entry.Status = Status(status)
	if len(actionsRaw) > 0 {
		if err := json.Unmarshal(actionsRaw, &entry.Actions); err != nil {
			return Entry{}, fmt.Errorf("decode actions: %w", err)
		}
	}
	if len(beforeRaw) > 0 {
		entry.Before = &Snapshot{}
		if err := json.Unmarshal(beforeRaw, entry.Before); err != nil {
			return Entry{}, fmt.Errorf("decode before snapshot: %w", err)
		}
	}
	if len(afterRaw) > 0 {
		entry.After = &Snapshot{}
		if err := json.Unmarshal(afterRaw, entry.After); err != nil {
			return Entry{}, fmt.Errorf("decode after snapshot: %w", err)
		}
	}
	return entry, nil
}
