package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kube-rca/agent/internal/domain/port/outbound"
)

// SummaryRepo implements outbound.SummaryStore using SQLite.
type SummaryRepo struct {
	db *sql.DB
}

var _ outbound.SummaryStore = (*SummaryRepo)(nil)

// NewSummaryRepo creates a new SummaryRepo backed by the given store.
func NewSummaryRepo(store *Store) *SummaryRepo {
	return &SummaryRepo{db: store.DB}
}

// List returns up to limit most recent summaries for sessionKey, oldest first.
func (r *SummaryRepo) List(ctx context.Context, sessionKey string, limit int) ([]string, error) {
	if limit <= 0 {
		return []string{}, nil
	}
	const q = `SELECT summary FROM kube_rca_session_summaries
		WHERE session_key = ? ORDER BY id DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, q, sessionKey, limit)
	if err != nil {
		return nil, fmt.Errorf("listing summaries: %w", err)
	}
	defer rows.Close()

	var newestFirst []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scanning summary: %w", err)
		}
		newestFirst = append(newestFirst, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating summaries: %w", err)
	}

	out := make([]string, len(newestFirst))
	for i, s := range newestFirst {
		out[len(newestFirst)-1-i] = s
	}
	return out, nil
}

// Append inserts summary and deletes everything older than the newest
// maxItems rows of the session, in one transaction.
func (r *SummaryRepo) Append(ctx context.Context, sessionKey, summary string, maxItems int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const insert = `INSERT INTO kube_rca_session_summaries (session_key, summary, created_at) VALUES (?,?,?)`
	if _, err := tx.ExecContext(ctx, insert, sessionKey, summary, time.Now().UTC()); err != nil {
		return fmt.Errorf("inserting summary: %w", err)
	}

	if maxItems > 0 {
		const trim = `DELETE FROM kube_rca_session_summaries
			WHERE session_key = ? AND id NOT IN (
				SELECT id FROM kube_rca_session_summaries
				WHERE session_key = ? ORDER BY id DESC LIMIT ?)`
		if _, err := tx.ExecContext(ctx, trim, sessionKey, sessionKey, maxItems); err != nil {
			return fmt.Errorf("trimming summaries: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing summary: %w", err)
	}
	return nil
}
