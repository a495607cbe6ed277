package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/alanyoungcy/updownbot/internal/domain"
)

// StateStore persists tracker state as a single JSONB row.
type StateStore struct {
	client *Client
}

// NewStateStore creates a StateStore on the given client.
func NewStateStore(client *Client) *StateStore {
	return &StateStore{client: client}
}

// Save upserts the full state snapshot.
func (s *StateStore) Save(ctx context.Context, state domain.TrackerState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("postgres: marshal state: %w", err)
	}

	const q = `
		INSERT INTO tracker_state (id, state, updated_at)
		VALUES (1, $1, NOW())
		ON CONFLICT (id) DO UPDATE SET state = EXCLUDED.state, updated_at = NOW()`
	if _, err := s.client.pool.Exec(ctx, q, data); err != nil {
		return fmt.Errorf("postgres: save state: %w", err)
	}
	return nil
}

// Load reads the last snapshot, mapping an empty table to domain.ErrNotFound.
func (s *StateStore) Load(ctx context.Context) (domain.TrackerState, error) {
	var data []byte
	err := s.client.pool.QueryRow(ctx, `SELECT state FROM tracker_state WHERE id = 1`).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.TrackerState{}, domain.ErrNotFound
		}
		return domain.TrackerState{}, fmt.Errorf("postgres: load state: %w", err)
	}

	var state domain.TrackerState
	if err := json.Unmarshal(data, &state); err != nil {
		return domain.TrackerState{}, fmt.Errorf("postgres: decode state: %w", err)
	}
	return state, nil
}
