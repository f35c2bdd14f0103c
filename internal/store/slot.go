package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/taskctl/taskctl/internal/constants"
	"github.com/taskctl/taskctl/internal/domain"
	taskctlerrors "github.com/taskctl/taskctl/internal/errors"
	"github.com/taskctl/taskctl/internal/id"
)

const slotColumns = "id, project_id, name, path, branch, status, task_id, created_at, updated_at"

// scanSlot reads one slot row.
func scanSlot(row rowScanner) (*domain.Slot, error) {
	var (
		sl        domain.Slot
		branch    sql.NullString
		status    string
		taskID    sql.NullString
		createdAt string
		updatedAt string
	)
	if err := row.Scan(&sl.ID, &sl.ProjectID, &sl.Name, &sl.Path, &branch,
		&status, &taskID, &createdAt, &updatedAt); err != nil {
		return nil, mapError(err)
	}
	sl.Branch = textOrEmpty(branch)
	sl.Status = constants.SlotStatus(status)
	sl.TaskID = textOrEmpty(taskID)
	sl.CreatedAt = parseStamp(createdAt)
	sl.UpdatedAt = parseStamp(updatedAt)
	return &sl, nil
}

// CreateSlot registers a new execution slot, available by default.
func (s *Store) CreateSlot(ctx context.Context, sl *domain.Slot) error {
	if sl.Name == "" {
		return fmt.Errorf("%w: slot name", taskctlerrors.ErrEmptyValue)
	}
	if sl.ProjectID == "" {
		return fmt.Errorf("%w: slot project_id", taskctlerrors.ErrEmptyValue)
	}
	if sl.ID == "" {
		sl.ID = id.New()
	}
	if sl.Status == "" {
		sl.Status = constants.SlotStatusAvailable
	}

	now := s.now()
	sl.CreatedAt = now
	sl.UpdatedAt = now

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO slots (id, project_id, name, path, branch, status, task_id, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sl.ID, sl.ProjectID, sl.Name, sl.Path, nullable(sl.Branch),
			string(sl.Status), nullable(sl.TaskID), stamp(now), stamp(now))
		return mapError(err)
	})
}

// GetSlot returns the slot with the exact id.
func (s *Store) GetSlot(ctx context.Context, slotID string) (*domain.Slot, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+slotColumns+" FROM slots WHERE id = ?", slotID)
	sl, err := scanSlot(row)
	if err != nil {
		return nil, fmt.Errorf("get slot %s: %w", slotID, err)
	}
	return sl, nil
}

// ListSlots returns a project's slots ordered by name, which is the
// assignment order the scheduler uses.
func (s *Store) ListSlots(ctx context.Context, projectID string) ([]*domain.Slot, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+slotColumns+" FROM slots WHERE project_id = ? ORDER BY name", projectID)
	if err != nil {
		return nil, mapError(err)
	}
	defer func() { _ = rows.Close() }()

	var slots []*domain.Slot
	for rows.Next() {
		sl, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		slots = append(slots, sl)
	}
	return slots, mapError(rows.Err())
}

// ListAvailableSlots returns a project's available slots ordered by name.
func (s *Store) ListAvailableSlots(ctx context.Context, projectID string) ([]*domain.Slot, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+slotColumns+" FROM slots WHERE project_id = ? AND status = ? ORDER BY name",
		projectID, string(constants.SlotStatusAvailable))
	if err != nil {
		return nil, mapError(err)
	}
	defer func() { _ = rows.Close() }()

	var slots []*domain.Slot
	for rows.Next() {
		sl, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		slots = append(slots, sl)
	}
	return slots, mapError(rows.Err())
}

// DeleteSlot removes a slot. Busy slots are protected: only available or
// error slots may be removed.
func (s *Store) DeleteSlot(ctx context.Context, slotID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		sl, err := slotTx(ctx, tx, slotID)
		if err != nil {
			return err
		}
		if sl.Status != constants.SlotStatusAvailable && sl.Status != constants.SlotStatusError {
			return fmt.Errorf("%w: slot %s is %s", taskctlerrors.ErrSlotBusy, slotID, sl.Status)
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM slots WHERE id = ?", slotID)
		if err != nil {
			return mapError(err)
		}
		return requireRow(res, "slot", slotID)
	})
}

// slotTx reads one slot row inside a transaction.
func slotTx(ctx context.Context, tx *sql.Tx, slotID string) (*domain.Slot, error) {
	row := tx.QueryRowContext(ctx,
		"SELECT "+slotColumns+" FROM slots WHERE id = ?", slotID)
	sl, err := scanSlot(row)
	if err != nil {
		return nil, fmt.Errorf("slot %s: %w", slotID, err)
	}
	return sl, nil
}
