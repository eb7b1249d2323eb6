package journal

import (
	"fmt"

	"github.com/starford/elrelease/internal/models"
)

// File detail kinds stored in run_files.
const (
	detailChanged = "changed"
	detailFailure = "failure"
	detailWarning = "warning"
)

// Recorder is what release operations need from the journal.
type Recorder interface {
	Record(project string, run *models.Run) error
}

// Verify *DB satisfies Recorder at compile time.
var _ Recorder = (*DB)(nil)

// Record stores run and its per-file details in one transaction and sets run.ID.
func (db *DB) Record(project string, run *models.Run) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("journal: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	res, err := tx.Exec(`
		INSERT INTO runs (project, operation, version, previous, committed, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, project, run.Operation, run.Version, run.Previous, run.Committed, run.StartedAt.UTC())
	if err != nil {
		return fmt.Errorf("journal: insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("journal: run id: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO run_files (run_id, kind, detail) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("journal: prepare detail insert: %w", err)
	}
	defer stmt.Close()
	for kind, details := range map[string][]string{
		detailChanged: run.Changed,
		detailFailure: run.Failures,
		detailWarning: run.Warnings,
	} {
		for _, d := range details {
			if _, err := stmt.Exec(id, kind, d); err != nil {
				return fmt.Errorf("journal: insert detail: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("journal: commit: %w", err)
	}
	run.ID = id
	return nil
}

// Runs returns the newest runs for project, at most limit of them.
func (db *DB) Runs(project string, limit int) ([]models.Run, error) {
	rows, err := db.conn.Query(`
		SELECT id, operation, version, previous, committed, started_at
		FROM runs WHERE project = ?
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, project, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: runs: %w", err)
	}
	defer rows.Close()

	var out []models.Run
	for rows.Next() {
		var r models.Run
		if err := rows.Scan(&r.ID, &r.Operation, &r.Version, &r.Previous, &r.Committed, &r.StartedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if err := db.loadDetails(&out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (db *DB) loadDetails(r *models.Run) error {
	rows, err := db.conn.Query(`SELECT kind, detail FROM run_files WHERE run_id = ? ORDER BY rowid`, r.ID)
	if err != nil {
		return fmt.Errorf("journal: details: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var kind, detail string
		if err := rows.Scan(&kind, &detail); err != nil {
			return err
		}
		switch kind {
		case detailChanged:
			r.Changed = append(r.Changed, detail)
		case detailFailure:
			r.Failures = append(r.Failures, detail)
		case detailWarning:
			r.Warnings = append(r.Warnings, detail)
		}
	}
	return rows.Err()
}
