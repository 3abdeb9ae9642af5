package storage

import (
	"context"
	"fmt"
)

// WindowState records which tabs were active and focused in a window-space,
// by tab unique id.
type WindowState struct {
	WindowID     int
	SpaceID      string
	ActiveTabID  string
	FocusedTabID string
}

// SaveWindowStates replaces every stored window state in one transaction.
func (s *Store) SaveWindowStates(ctx context.Context, states []WindowState) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM window_states"); err != nil {
		return fmt.Errorf("clear window states: %w", err)
	}
	for _, st := range states {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO window_states (window_id, space_id, active_tab_id, focused_tab_id) VALUES (?, ?, ?, ?)",
			st.WindowID, st.SpaceID, st.ActiveTabID, st.FocusedTabID)
		if err != nil {
			return fmt.Errorf("insert window state %d/%s: %w", st.WindowID, st.SpaceID, err)
		}
	}
	return tx.Commit()
}

// LoadWindowStates returns the stored window states ordered by window and
// space.
func (s *Store) LoadWindowStates(ctx context.Context) ([]WindowState, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT window_id, space_id, active_tab_id, focused_tab_id FROM window_states ORDER BY window_id, space_id")
	if err != nil {
		return nil, fmt.Errorf("query window states: %w", err)
	}
	defer rows.Close()

	var out []WindowState
	for rows.Next() {
		var st WindowState
		if err := rows.Scan(&st.WindowID, &st.SpaceID, &st.ActiveTabID, &st.FocusedTabID); err != nil {
			return nil, fmt.Errorf("scan window state: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}
