package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/reelworks/stylecast/internal/models"
)

const jobColumns = `
	job_id, status, progress, queue_position, request_data,
	output_filename, error_message, created_at, updated_at, start_time
`

func scanJob(row interface{ Scan(...interface{}) error }) (*models.Job, error) {
	job := &models.Job{}
	err := row.Scan(
		&job.JobID, &job.Status, &job.Progress, &job.QueuePosition,
		&job.RequestData, &job.OutputFilename, &job.ErrorMessage,
		&job.CreatedAt, &job.UpdatedAt, &job.StartTime,
	)
	if err != nil {
		return nil, err
	}
	return job, nil
}

// CreateJob inserts a new job in in_queue state, minting a job ID when the
// caller left it empty. Mirrors what the API layer does; kept here for
// standalone deployments and tests.
func (db *DB) CreateJob(ctx context.Context, job *models.Job) error {
	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}
	query := `
		INSERT INTO jobs (job_id, status, progress, request_data)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`
	return db.QueryRowContext(
		ctx, query,
		job.JobID, models.JobStatusInQueue, 0, job.RequestData,
	).Scan(&job.CreatedAt, &job.UpdatedAt)
}

func (db *DB) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE job_id = $1`

	job, err := scanJob(db.QueryRowContext(ctx, query, jobID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("job not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// NextInQueue returns the single oldest queued job, ties broken by job_id,
// or nil when the queue is empty.
func (db *DB) NextInQueue(ctx context.Context) (*models.Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE status = $1
		ORDER BY created_at, job_id
		LIMIT 1
	`

	job, err := scanJob(db.QueryRowContext(ctx, query, models.JobStatusInQueue))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query next job: %w", err)
	}
	return job, nil
}

// QueuePosition reports how many queued jobs precede the given one. Polling
// clients use this for wait estimates; the renderer never reads it.
func (db *DB) QueuePosition(ctx context.Context, jobID string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM jobs
		WHERE status = $1
		  AND (created_at, job_id) < (SELECT created_at, job_id FROM jobs WHERE job_id = $2)
	`
	var position int
	if err := db.QueryRowContext(ctx, query, models.JobStatusInQueue, jobID).Scan(&position); err != nil {
		return 0, fmt.Errorf("failed to compute queue position: %w", err)
	}
	return position, nil
}

// MarkRendering transitions a job to rendering, stamping start_time and
// resetting progress for this attempt.
func (db *DB) MarkRendering(ctx context.Context, jobID string) error {
	query := `
		UPDATE jobs
		SET status = $1, progress = 0, start_time = $2, updated_at = $2
		WHERE job_id = $3
	`
	_, err := db.ExecContext(ctx, query, models.JobStatusRendering, time.Now().UTC(), jobID)
	return err
}

// UpdateProgress persists render progress. Progress only moves forward
// within an attempt; the GREATEST guard keeps a late write from regressing it.
func (db *DB) UpdateProgress(ctx context.Context, jobID string, progress int) error {
	query := `
		UPDATE jobs
		SET progress = GREATEST(progress, $1), updated_at = $2
		WHERE job_id = $3
	`
	_, err := db.ExecContext(ctx, query, progress, time.Now().UTC(), jobID)
	return err
}

func (db *DB) MarkComplete(ctx context.Context, jobID, outputFilename string) error {
	query := `
		UPDATE jobs
		SET status = $1, progress = 100, output_filename = $2, updated_at = $3
		WHERE job_id = $4
	`
	_, err := db.ExecContext(ctx, query, models.JobStatusComplete, outputFilename, time.Now().UTC(), jobID)
	return err
}

func (db *DB) MarkFailed(ctx context.Context, jobID, errorMessage string) error {
	query := `
		UPDATE jobs
		SET status = $1, error_message = $2, updated_at = $3
		WHERE job_id = $4
	`
	_, err := db.ExecContext(ctx, query, models.JobStatusFailed, errorMessage, time.Now().UTC(), jobID)
	return err
}

// FailStaleRendering marks every job stuck in rendering as failed. Called
// once at startup: no worker process can predate this process, so such jobs
// have no live owner.
func (db *DB) FailStaleRendering(ctx context.Context) (int64, error) {
	query := `
		UPDATE jobs
		SET status = $1, error_message = $2, updated_at = $3
		WHERE status = $4
	`
	res, err := db.ExecContext(
		ctx, query,
		models.JobStatusFailed, "interrupted by restart", time.Now().UTC(), models.JobStatusRendering,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep stale jobs: %w", err)
	}
	return res.RowsAffected()
}
