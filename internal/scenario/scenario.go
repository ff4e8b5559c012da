// Package scenario stores the static scenario definitions sessions are
// played against.
package scenario

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/playperu/photohunt/internal/hunt"
)

var (
	ErrNotFound  = errors.New("scenario not found")
	ErrNameTaken = errors.New("scenario name already in use")

	// ErrStopsFrozen rejects an edit that would change which tasks an
	// existing scenario's sessions were derived from.
	ErrStopsFrozen = errors.New("scenario stops cannot change")
)

//go:embed demo.json
var demoCatalog []byte

// Source is what the engine needs from a scenario provider.
type Source interface {
	Scenario(ctx context.Context, id string) (hunt.Scenario, error)
}

// Summary is a scenario without its locations.
type Summary struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	City          string    `json:"city"`
	Description   string    `json:"description"`
	LocationCount int       `json:"locationCount"`
	CreatedAt     time.Time `json:"createdAt"`
}

// DocStore keeps scenarios as JSONB documents in the scenarios table.
type DocStore struct {
	db *sql.DB
}

func NewDocStore(db *sql.DB) *DocStore {
	return &DocStore{db: db}
}

func (s *DocStore) Scenario(ctx context.Context, id string) (hunt.Scenario, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT json(data) FROM scenarios WHERE id = ?`, id,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return hunt.Scenario{}, ErrNotFound
	}
	if err != nil {
		return hunt.Scenario{}, err
	}

	var sc hunt.Scenario
	if err := json.Unmarshal([]byte(data), &sc); err != nil {
		return hunt.Scenario{}, fmt.Errorf("decoding scenario %s: %w", id, err)
	}
	return sc, nil
}

func (s *DocStore) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT json(data) FROM scenarios ORDER BY name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := []Summary{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var sc hunt.Scenario
		if err := json.Unmarshal([]byte(data), &sc); err != nil {
			return nil, err
		}
		summaries = append(summaries, Summary{
			ID:            sc.ID,
			Name:          sc.Name,
			City:          sc.City,
			Description:   sc.Description,
			LocationCount: len(sc.Locations),
			CreatedAt:     sc.CreatedAt,
		})
	}
	return summaries, rows.Err()
}

// Put validates and upserts a scenario. A blank id gets a generated one.
// An existing scenario keeps its stops: the edit may change names and texts,
// but not the number of locations or their order.
func (s *DocStore) Put(ctx context.Context, sc hunt.Scenario) (hunt.Scenario, error) {
	if err := sc.Normalize(); err != nil {
		return hunt.Scenario{}, err
	}
	if sc.ID == "" {
		sc.ID = uuid.NewString()
	}
	if sc.CreatedAt.IsZero() {
		sc.CreatedAt = time.Now().UTC().Round(0)
	}

	data, err := json.Marshal(sc)
	if err != nil {
		return hunt.Scenario{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return hunt.Scenario{}, err
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx,
		`SELECT json(data) FROM scenarios WHERE id = ?`, sc.ID,
	).Scan(&current)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return hunt.Scenario{}, err
	default:
		var prev hunt.Scenario
		if err := json.Unmarshal([]byte(current), &prev); err != nil {
			return hunt.Scenario{}, fmt.Errorf("decoding scenario %s: %w", sc.ID, err)
		}
		if !sameStops(prev.Locations, sc.Locations) {
			return hunt.Scenario{}, fmt.Errorf("%w: %s", ErrStopsFrozen, sc.ID)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO scenarios (id, name, data) VALUES (?, ?, jsonb(?))
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, data = excluded.data`,
		sc.ID, sc.Name, string(data),
	)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique constraint failed") {
			return hunt.Scenario{}, fmt.Errorf("%w: %s", ErrNameTaken, sc.Name)
		}
		return hunt.Scenario{}, fmt.Errorf("storing scenario %s: %w", sc.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return hunt.Scenario{}, err
	}
	return sc, nil
}

// sameStops reports whether both lists name the same locations in the same
// order. Task ids are positional, so this is what sessions depend on.
func sameStops(a, b []hunt.Location) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name {
			return false
		}
	}
	return true
}

// SeedDemo loads the embedded demo catalog if no scenarios exist.
// It reports how many scenarios were written.
func (s *DocStore) SeedDemo(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scenarios`).Scan(&count); err != nil {
		return 0, err
	}
	if count > 0 {
		return 0, nil
	}

	var catalog []hunt.Scenario
	if err := json.Unmarshal(demoCatalog, &catalog); err != nil {
		return 0, fmt.Errorf("decoding demo catalog: %w", err)
	}
	for _, sc := range catalog {
		if _, err := s.Put(ctx, sc); err != nil {
			return 0, err
		}
	}
	return len(catalog), nil
}

var _ Source = (*DocStore)(nil)
