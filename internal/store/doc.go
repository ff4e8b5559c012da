package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/playperu/photohunt/internal/hunt"
)

// DocStore keeps each session as a JSONB document in the sessions table.
// The status, owner and version are mirrored into columns so the
// one-active-session index and the compare-and-swap can see them.
type DocStore struct {
	db *sql.DB
}

// NewDocStore expects the schema from the migrations package.
func NewDocStore(db *sql.DB) *DocStore {
	return &DocStore{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (hunt.GameSession, error) {
	var (
		data    string
		version int64
	)
	if err := row.Scan(&data, &version); err != nil {
		return hunt.GameSession{}, err
	}
	var s hunt.GameSession
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return hunt.GameSession{}, fmt.Errorf("decoding session: %w", err)
	}
	s.Version = version
	return s, nil
}

func (d *DocStore) Get(ctx context.Context, id string) (hunt.GameSession, error) {
	s, err := scanSession(d.db.QueryRowContext(ctx,
		`SELECT json(data), version FROM sessions WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return hunt.GameSession{}, ErrNotFound
	}
	return s, err
}

func (d *DocStore) FindActive(ctx context.Context, userID, scenarioID string) (hunt.GameSession, bool, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT json(data), version FROM sessions
		WHERE user_id = ? AND scenario_id = ? AND status = ?
		LIMIT 2
	`, userID, scenarioID, string(hunt.SessionInProgress))
	if err != nil {
		return hunt.GameSession{}, false, err
	}
	defer rows.Close()

	var found []hunt.GameSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return hunt.GameSession{}, false, err
		}
		found = append(found, s)
	}
	if err := rows.Err(); err != nil {
		return hunt.GameSession{}, false, err
	}

	switch len(found) {
	case 0:
		return hunt.GameSession{}, false, nil
	case 1:
		return found[0], true, nil
	default:
		return hunt.GameSession{}, false, fmt.Errorf("%w: user %s scenario %s", ErrIntegrity, userID, scenarioID)
	}
}

func (d *DocStore) Create(ctx context.Context, sess hunt.GameSession) (hunt.GameSession, error) {
	sess.Version = 1
	data, err := json.Marshal(sess)
	if err != nil {
		return hunt.GameSession{}, err
	}

	tx, err := d.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return hunt.GameSession{}, err
	}
	defer tx.Rollback()

	var active int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sessions
		WHERE user_id = ? AND scenario_id = ? AND status = ?
	`, sess.UserID, sess.ScenarioID, string(hunt.SessionInProgress)).Scan(&active)
	if err != nil {
		return hunt.GameSession{}, err
	}
	if active > 0 {
		return hunt.GameSession{}, ErrAlreadyExists
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, scenario_id, status, version, data)
		VALUES (?, ?, ?, ?, ?, jsonb(?))
	`, sess.ID, sess.UserID, sess.ScenarioID, string(sess.Status), sess.Version, string(data))
	if isUniqueConstraintError(err) {
		return hunt.GameSession{}, ErrAlreadyExists
	}
	if err != nil {
		return hunt.GameSession{}, err
	}

	if err := tx.Commit(); err != nil {
		if isUniqueConstraintError(err) {
			return hunt.GameSession{}, ErrAlreadyExists
		}
		return hunt.GameSession{}, err
	}
	return sess, nil
}

func (d *DocStore) AtomicUpdate(ctx context.Context, id string, fn Mutator) (hunt.GameSession, error) {
	cur, err := d.Get(ctx, id)
	if err != nil {
		return hunt.GameSession{}, err
	}

	next, err := apply(cur, fn)
	if err != nil {
		return hunt.GameSession{}, err
	}

	data, err := json.Marshal(next)
	if err != nil {
		return hunt.GameSession{}, err
	}

	result, err := d.db.ExecContext(ctx, `
		UPDATE sessions SET status = ?, version = ?, data = jsonb(?)
		WHERE id = ? AND version = ?
	`, string(next.Status), next.Version, string(data), id, cur.Version)
	if err != nil {
		return hunt.GameSession{}, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return hunt.GameSession{}, err
	}
	if n == 0 {
		if _, err := d.Get(ctx, id); errors.Is(err, ErrNotFound) {
			return hunt.GameSession{}, ErrNotFound
		}
		return hunt.GameSession{}, ErrConflict
	}
	return next, nil
}

func (d *DocStore) CountCompleted(ctx context.Context, userID, scenarioID string) (int, error) {
	var count int
	err := d.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sessions
		WHERE user_id = ? AND scenario_id = ? AND status = ?
	`, userID, scenarioID, string(hunt.SessionCompleted)).Scan(&count)
	return count, err
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

var _ Store = (*DocStore)(nil)
