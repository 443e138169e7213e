package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"slices"

	"github.com/kube-rca/agent/internal/domain/port/outbound"
)

// SummaryRepo implements outbound.SummaryStore using PostgreSQL.
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
		WHERE session_key = $1 ORDER BY id DESC LIMIT $2`

	rows, err := r.db.QueryContext(ctx, q, sessionKey, limit)
	if err != nil {
		return nil, fmt.Errorf("listing summaries: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scanning summary: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating summaries: %w", err)
	}
	slices.Reverse(out)
	return out, nil
}

// Append inserts summary and keeps only the newest maxItems rows of the
// session.
func (r *SummaryRepo) Append(ctx context.Context, sessionKey, summary string, maxItems int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const insert = `INSERT INTO kube_rca_session_summaries (session_key, summary) VALUES ($1, $2)`
	if _, err := tx.ExecContext(ctx, insert, sessionKey, summary); err != nil {
		return fmt.Errorf("inserting summary: %w", err)
	}

	if maxItems > 0 {
		const trim = `DELETE FROM kube_rca_session_summaries
			WHERE session_key = $1 AND id NOT IN (
				SELECT id FROM kube_rca_session_summaries
				WHERE session_key = $1 ORDER BY id DESC LIMIT $2)`
		if _, err := tx.ExecContext(ctx, trim, sessionKey, maxItems); err != nil {
			return fmt.Errorf("trimming summaries: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing summary: %w", err)
	}
	return nil
}
