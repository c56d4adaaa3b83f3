package store

import (
	"context"
	"database/sql"
	"time"
)

type Repository interface {
	CreateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]*Run, error)
	UpdateRunStatus(ctx context.Context, id, status, errorMsg string) error
	FinishRun(ctx context.Context, run *Run) error

	CreateSegments(ctx context.Context, segments []*RunSegment) error
	GetSegments(ctx context.Context, runID string) ([]*RunSegment, error)
	UpdateSegment(ctx context.Context, runID, segmentID, status, artifactPath, errorMsg string) error

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) CreateRun(ctx context.Context, run *Run) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO runs (id, script_path, status, total_segments, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, run.ID, run.ScriptPath, run.Status, run.TotalSegments,
		run.CreatedAt.Format(time.RFC3339), run.UpdatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) GetRun(ctx context.Context, id string) (*Run, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, script_path, status, total_segments, succeeded, failed, artifact_path, edl_path, error, created_at, updated_at
		FROM runs WHERE id = ?
	`, id)
	return r.scanRun(row)
}

func (r *SQLiteRepository) scanRun(row *sql.Row) (*Run, error) {
	var run Run
	var artifactPath, edlPath, errorMsg sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&run.ID, &run.ScriptPath, &run.Status, &run.TotalSegments,
		&run.Succeeded, &run.Failed, &artifactPath, &edlPath, &errorMsg, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	run.ArtifactPath = artifactPath.String
	run.EDLPath = edlPath.String
	run.Error = errorMsg.String
	run.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	run.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &run, nil
}

func (r *SQLiteRepository) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, script_path, status, total_segments, succeeded, failed, artifact_path, edl_path, error, created_at, updated_at
		FROM runs ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var run Run
		var artifactPath, edlPath, errorMsg sql.NullString
		var createdAt, updatedAt string

		if err := rows.Scan(&run.ID, &run.ScriptPath, &run.Status, &run.TotalSegments,
			&run.Succeeded, &run.Failed, &artifactPath, &edlPath, &errorMsg, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		run.ArtifactPath = artifactPath.String
		run.EDLPath = edlPath.String
		run.Error = errorMsg.String
		run.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		run.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

func (r *SQLiteRepository) UpdateRunStatus(ctx context.Context, id, status, errorMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, error = ?, updated_at = datetime('now') WHERE id = ?
	`, status, nullString(errorMsg), id)
	return err
}

func (r *SQLiteRepository) FinishRun(ctx context.Context, run *Run) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, succeeded = ?, failed = ?, artifact_path = ?, edl_path = ?, error = ?, updated_at = datetime('now')
		WHERE id = ?
	`, run.Status, run.Succeeded, run.Failed, nullString(run.ArtifactPath),
		nullString(run.EDLPath), nullString(run.Error), run.ID)
	return err
}

func (r *SQLiteRepository) CreateSegments(ctx context.Context, segments []*RunSegment) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, s := range segments {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO run_segments (run_id, segment_id, speaker, start_sec, end_sec, kind, lane, status)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, s.RunID, s.SegmentID, s.Speaker, s.Start, s.End, s.Kind, s.Lane, s.Status); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *SQLiteRepository) GetSegments(ctx context.Context, runID string) ([]*RunSegment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT run_id, segment_id, speaker, start_sec, end_sec, kind, lane, status, artifact_path, error
		FROM run_segments WHERE run_id = ? ORDER BY start_sec
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var segments []*RunSegment
	for rows.Next() {
		var s RunSegment
		var artifactPath, errorMsg sql.NullString
		if err := rows.Scan(&s.RunID, &s.SegmentID, &s.Speaker, &s.Start, &s.End,
			&s.Kind, &s.Lane, &s.Status, &artifactPath, &errorMsg); err != nil {
			return nil, err
		}
		s.ArtifactPath = artifactPath.String
		s.Error = errorMsg.String
		segments = append(segments, &s)
	}
	return segments, rows.Err()
}

func (r *SQLiteRepository) UpdateSegment(ctx context.Context, runID, segmentID, status, artifactPath, errorMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE run_segments SET status = ?, artifact_path = ?, error = ?
		WHERE run_id = ? AND segment_id = ?
	`, status, nullString(artifactPath), nullString(errorMsg), runID, segmentID)
	return err
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM config WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
