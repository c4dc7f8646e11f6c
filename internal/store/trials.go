package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	contracts "github.com/vsbuffalo/modelops-contracts"
)

// State is a trial's position in the ledger lifecycle. The three
// terminal states mirror contracts.TrialStatus; pending and leased are
// ledger-internal.
type State string

const (
	StatePending State = "pending"
	StateLeased  State = "leased"

	StateCompleted = State(contracts.TrialCompleted)
	StateFailed    = State(contracts.TrialFailed)
	StateTimeout   = State(contracts.TrialTimeout)
)

// Terminal reports whether a trial in this state can still change.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateTimeout:
		return true
	}
	return false
}

// Sentinel errors for ledger lookups and tell conflicts.
var (
	// ErrNotFound means no trial with that param ID exists.
	ErrNotFound = errors.New("trial not found")

	// ErrResultConflict means a finished trial was told a different
	// result. Identical re-tells are no-ops; conflicting ones are bugs
	// upstream and must not be absorbed silently.
	ErrResultConflict = errors.New("conflicting result for finished trial")
)

// Trial is one ledger row.
type Trial struct {
	ParamID     string
	State       State
	Loss        *float64
	Diagnostics []byte
	LeaseID     string
	CreatedAt   string
	ToldAt      string
}

// AddPending registers a parameter set as awaiting evaluation. Returns
// whether a new row was inserted; re-adding a known param ID is a
// no-op, never an error, so ask-side retries are safe.
func (l *Ledger) AddPending(ctx context.Context, paramID string) (bool, error) {
	if !contracts.IsDigestHex(paramID) {
		return false, fmt.Errorf("add pending: param_id %q is not a %d-char hex digest",
			paramID, contracts.DigestHexLen)
	}
	res, err := l.db.ExecContext(ctx, `
		INSERT INTO trials (param_id, status)
		VALUES (?, ?)
		ON CONFLICT(param_id) DO NOTHING
	`, paramID, string(StatePending))
	if err != nil {
		return false, fmt.Errorf("add pending: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("add pending: %w", err)
	}
	return n > 0, nil
}

// Lease marks up to n pending trials as leased under leaseID and
// returns their param IDs, oldest first. An empty result means nothing
// is pending.
func (l *Ledger) Lease(ctx context.Context, leaseID string, n int) ([]string, error) {
	if n < 1 {
		return nil, fmt.Errorf("lease: n must be at least 1, got %d", n)
	}
	if leaseID == "" {
		return nil, fmt.Errorf("lease: lease ID must be non-empty")
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("lease: begin tx: %w", err)
	}
	defer tx.Rollback() // no-op if committed

	rows, err := tx.QueryContext(ctx, `
		SELECT param_id FROM trials
		WHERE status = ?
		ORDER BY created_at, param_id
		LIMIT ?
	`, string(StatePending), n)
	if err != nil {
		return nil, fmt.Errorf("lease: select pending: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("lease: scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("lease: %w", err)
	}

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `
			UPDATE trials SET status = ?, lease_id = ?
			WHERE param_id = ?
		`, string(StateLeased), leaseID, id); err != nil {
			return nil, fmt.Errorf("lease %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("lease: commit: %w", err)
	}
	return ids, nil
}

// Tell records a terminal result.
//
// Semantics match the ask-tell port contract:
//   - unknown param ID: the trial is recorded directly in its terminal
//     state (results may arrive for trials this ledger never leased)
//   - pending or leased trial: moves to the terminal state
//   - finished trial, identical result: no-op
//   - finished trial, different result: ErrResultConflict
func (l *Ledger) Tell(ctx context.Context, result contracts.TrialResult) error {
	status := State(result.Status())
	var loss *float64
	if result.Status().Success() {
		v := result.Loss()
		loss = &v
	}
	diagnostics := string(result.DiagnosticsJSON())

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("tell: begin tx: %w", err)
	}
	defer tx.Rollback()

	var stored Trial
	var storedLoss sql.NullFloat64
	var storedDiag, storedLease sql.NullString
	err = tx.QueryRowContext(ctx, `
		SELECT status, loss, diagnostics, lease_id FROM trials WHERE param_id = ?
	`, result.ParamID()).Scan(&stored.State, &storedLoss, &storedDiag, &storedLease)

	switch {
	case err == sql.ErrNoRows:
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO trials (param_id, status, loss, diagnostics, told_at)
			VALUES (?, ?, ?, ?, strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		`, result.ParamID(), string(status), loss, diagnostics); err != nil {
			return fmt.Errorf("tell: insert: %w", err)
		}

	case err != nil:
		return fmt.Errorf("tell: select: %w", err)

	case stored.State.Terminal():
		if !sameResult(stored.State, storedLoss, storedDiag, status, loss, diagnostics) {
			return fmt.Errorf("tell %s: %w", result.ParamID(), ErrResultConflict)
		}
		return nil // identical re-tell

	default:
		if _, err := tx.ExecContext(ctx, `
			UPDATE trials
			SET status = ?, loss = ?, diagnostics = ?,
			    told_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
			WHERE param_id = ?
		`, string(status), loss, diagnostics, result.ParamID()); err != nil {
			return fmt.Errorf("tell: update: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("tell: commit: %w", err)
	}
	return nil
}

// sameResult compares a stored terminal row against an incoming result.
// Diagnostics compare by their serialized form, which is deterministic
// because encoding/json sorts object keys.
func sameResult(storedState State, storedLoss sql.NullFloat64, storedDiag sql.NullString,
	status State, loss *float64, diagnostics string) bool {
	if storedState != status {
		return false
	}
	if storedLoss.Valid != (loss != nil) {
		return false
	}
	if loss != nil && storedLoss.Float64 != *loss {
		return false
	}
	return storedDiag.String == diagnostics
}

// Trial returns one ledger row, or ErrNotFound.
func (l *Ledger) Trial(ctx context.Context, paramID string) (Trial, error) {
	var t Trial
	var loss sql.NullFloat64
	var diag, lease, toldAt sql.NullString
	err := l.db.QueryRowContext(ctx, `
		SELECT param_id, status, loss, diagnostics, lease_id, created_at, told_at
		FROM trials WHERE param_id = ?
	`, paramID).Scan(&t.ParamID, &t.State, &loss, &diag, &lease, &t.CreatedAt, &toldAt)
	if err == sql.ErrNoRows {
		return Trial{}, fmt.Errorf("trial %s: %w", paramID, ErrNotFound)
	}
	if err != nil {
		return Trial{}, fmt.Errorf("trial %s: %w", paramID, err)
	}
	if loss.Valid {
		t.Loss = &loss.Float64
	}
	if diag.Valid {
		t.Diagnostics = []byte(diag.String)
	}
	t.LeaseID = lease.String
	t.ToldAt = toldAt.String
	return t, nil
}

// ListByState returns the param IDs in a given state, oldest first.
func (l *Ledger) ListByState(ctx context.Context, state State) ([]string, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT param_id FROM trials WHERE status = ? ORDER BY created_at, param_id
	`, string(state))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", state, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("list %s: %w", state, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountByState returns how many trials sit in each state.
func (l *Ledger) CountByState(ctx context.Context) (map[State]int, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM trials GROUP BY status
	`)
	if err != nil {
		return nil, fmt.Errorf("count trials: %w", err)
	}
	defer rows.Close()

	out := make(map[State]int)
	for rows.Next() {
		var state State
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, fmt.Errorf("count trials: %w", err)
		}
		out[state] = n
	}
	return out, rows.Err()
}
