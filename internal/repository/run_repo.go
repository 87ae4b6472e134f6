package repository

import (
	"database/sql"
	"fmt"
	"time"
)

// RunKind distinguishes the two reconciliation pipelines.
type RunKind string

const (
	RunMovement RunKind = "movement"
	RunFiscal   RunKind = "fiscal"
)

// RunStatus tracks the lifecycle of a stored run.
type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Run is one persisted reconciliation execution: the uploaded input files,
// the serialized result and the derived summary.
type Run struct {
	ID          string    `json:"id"`
	Kind        RunKind   `json:"kind"`
	Status      RunStatus `json:"status"`
	FileHash    string    `json:"file_hash"`
	SourceFile  string    `json:"source_file"`
	TargetFile  string    `json:"target_file"`
	SummaryJSON string    `json:"summary"`
	ResultJSON  string    `json:"-"`
	CreatedBy   string    `json:"created_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type RunRepo struct {
	db *sql.DB
}

func NewRunRepo(db *sql.DB) *RunRepo {
	return &RunRepo{db: db}
}

func (r *RunRepo) Insert(run *Run) error {
	_, err := r.db.Exec(
		`INSERT INTO runs
		(id, kind, status, file_hash, source_file, target_file, summary_json, result_json, created_by, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		run.ID, string(run.Kind), string(run.Status), run.FileHash,
		run.SourceFile, run.TargetFile, run.SummaryJSON, run.ResultJSON,
		run.CreatedBy, run.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (r *RunRepo) GetByID(id string) (*Run, error) {
	row := r.db.QueryRow(
		`SELECT id, kind, status, file_hash, source_file, target_file,
		        summary_json, result_json, created_by, created_at
		 FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return run, err
}

// GetByHash returns the earlier run that ingested the same input files, if
// any. Used for ingestion idempotency.
func (r *RunRepo) GetByHash(hash string) (*Run, error) {
	row := r.db.QueryRow(
		`SELECT id, kind, status, file_hash, source_file, target_file,
		        summary_json, result_json, created_by, created_at
		 FROM runs WHERE file_hash = ? ORDER BY created_at LIMIT 1`, hash)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return run, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var kind, status, createdAt string
	if err := row.Scan(&run.ID, &kind, &status, &run.FileHash,
		&run.SourceFile, &run.TargetFile, &run.SummaryJSON, &run.ResultJSON,
		&run.CreatedBy, &createdAt); err != nil {
		return nil, err
	}
	run.Kind = RunKind(kind)
	run.Status = RunStatus(status)
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		run.CreatedAt = t
	}
	return &run, nil
}

// RunFilter narrows List results.
type RunFilter struct {
	Kind  string
	Page  int
	Limit int
}

// List returns runs newest first, without their result payloads.
func (r *RunRepo) List(filter RunFilter) ([]Run, int, error) {
	where := ""
	args := []any{}
	if filter.Kind != "" {
		where = " WHERE kind = ?"
		args = append(args, filter.Kind)
	}

	var total int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM runs"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count runs: %w", err)
	}

	if filter.Limit < 1 {
		filter.Limit = 50
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	args = append(args, filter.Limit, (filter.Page-1)*filter.Limit)

	rows, err := r.db.Query(
		`SELECT id, kind, status, file_hash, source_file, target_file,
		        summary_json, '', created_by, created_at
		 FROM runs`+where+` ORDER BY created_at DESC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, *run)
	}
	return out, total, rows.Err()
}

// DashboardStats aggregates the run history for the dashboard endpoint.
type DashboardStats struct {
	TotalRuns    int        `json:"total_runs"`
	MovementRuns int        `json:"movement_runs"`
	FiscalRuns   int        `json:"fiscal_runs"`
	LastRunAt    *time.Time `json:"last_run_at,omitempty"`
	LastStatus   string     `json:"last_status,omitempty"`
}

func (r *RunRepo) GetDashboardStats() (*DashboardStats, error) {
	stats := &DashboardStats{}
	err := r.db.QueryRow(
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN kind = 'movement' THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN kind = 'fiscal' THEN 1 ELSE 0 END), 0)
		 FROM runs`).Scan(&stats.TotalRuns, &stats.MovementRuns, &stats.FiscalRuns)
	if err != nil {
		return nil, fmt.Errorf("run stats: %w", err)
	}

	var createdAt, status string
	err = r.db.QueryRow(
		`SELECT created_at, status FROM runs ORDER BY created_at DESC LIMIT 1`).
		Scan(&createdAt, &status)
	if err == nil {
		if t, perr := time.Parse(time.RFC3339, createdAt); perr == nil {
			stats.LastRunAt = &t
		}
		stats.LastStatus = status
	} else if err != sql.ErrNoRows {
		return nil, fmt.Errorf("last run: %w", err)
	}
	return stats, nil
}
