package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"

	contracts "github.com/vsbuffalo/modelops-contracts"
)

// RecordTask logs a submitted task. Keyed by TaskID, so recording the
// same unit of work twice is a no-op; returns whether a new row was
// inserted. The seed is stored as decimal text because SQLite INTEGER
// is signed 64-bit and seeds occupy the full unsigned range.
func (l *Ledger) RecordTask(ctx context.Context, task contracts.SimTask) (bool, error) {
	document, err := json.Marshal(task)
	if err != nil {
		return false, fmt.Errorf("record task: marshal: %w", err)
	}

	res, err := l.db.ExecContext(ctx, `
		INSERT INTO tasks (task_id, sim_root, param_id, entrypoint, bundle_ref, seed, document)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(task_id) DO NOTHING
	`,
		task.TaskID(),
		task.SimRoot(),
		task.ParamID(),
		task.Entrypoint().String(),
		task.BundleRef(),
		strconv.FormatUint(task.Seed(), 10),
		string(document),
	)
	if err != nil {
		return false, fmt.Errorf("record task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record task: %w", err)
	}
	return n > 0, nil
}

// Task reconstructs a logged task from its stored document, or returns
// ErrNotFound. The document re-validates on decode, so a row that was
// tampered with fails here rather than producing an invalid value.
func (l *Ledger) Task(ctx context.Context, taskID string) (contracts.SimTask, error) {
	var document string
	err := l.db.QueryRowContext(ctx, `
		SELECT document FROM tasks WHERE task_id = ?
	`, taskID).Scan(&document)
	if err == sql.ErrNoRows {
		return contracts.SimTask{}, fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	if err != nil {
		return contracts.SimTask{}, fmt.Errorf("task %s: %w", taskID, err)
	}

	var task contracts.SimTask
	if err := json.Unmarshal([]byte(document), &task); err != nil {
		return contracts.SimTask{}, fmt.Errorf("task %s: decode stored document: %w", taskID, err)
	}
	return task, nil
}

// TasksForParam returns the IDs of every logged task that embeds the
// given parameter set, oldest first. One parameter set fans out to many
// tasks across seeds and scenarios.
func (l *Ledger) TasksForParam(ctx context.Context, paramID string) ([]string, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT task_id FROM tasks WHERE param_id = ? ORDER BY created_at, task_id
	`, paramID)
	if err != nil {
		return nil, fmt.Errorf("tasks for %s: %w", paramID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("tasks for %s: %w", paramID, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// TaskCount returns the number of logged tasks.
func (l *Ledger) TaskCount(ctx context.Context) (int, error) {
	var n int
	if err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("task count: %w", err)
	}
	return n, nil
}
