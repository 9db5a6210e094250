package db

import (
	"context"
	"database/sql"

	"github.com/hpungsan/snaplabel/internal/content"
	"github.com/hpungsan/snaplabel/internal/errors"
)

// InsertSession records a new session.
func InsertSession(ctx context.Context, db *sql.DB, id string, now int64) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO sessions (id, created_at, last_seen_at) VALUES (?, ?, ?)`,
		id, now, now,
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// TouchSession updates last_seen_at. Returns NOT_FOUND for unknown sessions.
func TouchSession(ctx context.Context, db *sql.DB, id string, now int64) error {
	res, err := db.ExecContext(ctx, `UPDATE sessions SET last_seen_at = ? WHERE id = ?`, now, id)
	if err != nil {
		return errors.NewInternal(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if n == 0 {
		return errors.NewNotFound("session " + id)
	}
	return nil
}

// DeleteSession removes a session and, through the foreign key, its content.
func DeleteSession(ctx context.Context, db *sql.DB, id string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// DeleteIdleSessions removes sessions not seen since cutoff and returns their IDs.
func DeleteIdleSessions(ctx context.Context, db *sql.DB, cutoff int64) ([]string, error) {
	rows, err := db.QueryContext(ctx, `DELETE FROM sessions WHERE last_seen_at < ? RETURNING id`, cutoff)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.NewInternal(err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return ids, nil
}

// CountSessions returns the number of live sessions.
func CountSessions(ctx context.Context, db *sql.DB) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&n); err != nil {
		return 0, errors.NewInternal(err)
	}
	return n, nil
}

// GetLabelContent loads the entries for one label in a session.
// A label with no rows yields empty content.
func GetLabelContent(ctx context.Context, db *sql.DB, sessionID, label string) (content.LabelContent, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT kind, value
		FROM label_content
		WHERE session_id = ? AND label = ?
		ORDER BY position
	`, sessionID, label)
	if err != nil {
		return content.LabelContent{}, errors.NewInternal(err)
	}
	defer rows.Close()

	var entries []content.Entry
	for rows.Next() {
		var e content.Entry
		var kind string
		if err := rows.Scan(&kind, &e.Value); err != nil {
			return content.LabelContent{}, errors.NewInternal(err)
		}
		e.Kind = content.Kind(kind)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return content.LabelContent{}, errors.NewInternal(err)
	}

	return content.LabelContent{Entries: entries}, nil
}

// ReplaceLabelContent swaps all entries of one label in a single transaction.
func ReplaceLabelContent(ctx context.Context, db *sql.DB, sessionID, label string, c content.LabelContent) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewInternal(err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM label_content WHERE session_id = ? AND label = ?`,
		sessionID, label,
	); err != nil {
		return errors.NewInternal(err)
	}

	for i, e := range c.Entries {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO label_content (session_id, label, position, kind, value) VALUES (?, ?, ?, ?, ?)`,
			sessionID, label, i, string(e.Kind), e.Value,
		); err != nil {
			return errors.NewInternal(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}
