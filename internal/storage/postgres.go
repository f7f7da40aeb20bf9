/**
 * PostgreSQL Job Store
 *
 * Persists processing job records for audit and API lookup.
 */

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	_ "github.com/lib/pq"
)

// JobRecord is one row in the processing_jobs table.
type JobRecord struct {
	JobID            string
	DocumentName     string
	Status           string
	Confidence       float64
	ProcessingTimeMs int64
	Pages            int
	Attempts         int
	ProfileUsed      string
	ErrorCode        string
	ErrorMessage     string
	Metadata         map[string]interface{}
}

// JobStore handles database operations for job persistence.
type JobStore struct {
	db *sql.DB
}

// sanitizeConfidence clamps the score to [0, 100] and rounds it to two
// decimals so the NUMERIC(5,2) column never sees excess float precision.
func sanitizeConfidence(confidence float64) float64 {
	if confidence < 0 {
		return 0
	}
	if confidence > 100 {
		return 100
	}
	return float64(int(confidence*100+0.5)) / 100
}

// NewJobStore opens a connection pool against databaseURL and verifies it
// with a few ping attempts, since the database may still be starting.
func NewJobStore(databaseURL string) (*JobStore, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err = retry.Do(
		func() error { return db.PingContext(ctx) },
		retry.Attempts(5),
		retry.Delay(2*time.Second),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &JobStore{db: db}, nil
}

// UpsertJob writes the job record, creating the row on the first status
// update and updating it afterwards.
func (s *JobStore) UpsertJob(ctx context.Context, rec *JobRecord) error {
	if rec.JobID == "" {
		return fmt.Errorf("job ID is required")
	}
	if rec.Status == "" {
		return fmt.Errorf("status is required")
	}

	metadataJSON, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO processing_jobs (
			id, document_name, status, confidence, processing_time_ms,
			pages, attempts, profile_used, error_code, error_message,
			metadata, created_at, updated_at
		) VALUES (
			$1::uuid, $2, $3, NULLIF($4::NUMERIC(5,2), 0), NULLIF($5, 0),
			NULLIF($6, 0), NULLIF($7, 0), NULLIF($8, ''), NULLIF($9, ''),
			NULLIF($10, ''), COALESCE($11::jsonb, '{}'::jsonb), NOW(), NOW()
		)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			confidence = COALESCE(EXCLUDED.confidence, processing_jobs.confidence),
			processing_time_ms = COALESCE(EXCLUDED.processing_time_ms, processing_jobs.processing_time_ms),
			pages = COALESCE(EXCLUDED.pages, processing_jobs.pages),
			attempts = COALESCE(EXCLUDED.attempts, processing_jobs.attempts),
			profile_used = COALESCE(EXCLUDED.profile_used, processing_jobs.profile_used),
			error_code = NULLIF(EXCLUDED.error_code, ''),
			error_message = NULLIF(EXCLUDED.error_message, ''),
			metadata = COALESCE(EXCLUDED.metadata, processing_jobs.metadata),
			updated_at = NOW()
		RETURNING id
	`

	var returnedID string
	err = s.db.QueryRowContext(
		ctx,
		query,
		rec.JobID,
		rec.DocumentName,
		rec.Status,
		sanitizeConfidence(rec.Confidence),
		rec.ProcessingTimeMs,
		rec.Pages,
		rec.Attempts,
		rec.ProfileUsed,
		rec.ErrorCode,
		rec.ErrorMessage,
		metadataJSON,
	).Scan(&returnedID)
	if err != nil {
		return fmt.Errorf("failed to upsert job (job=%s, status=%s): %w", rec.JobID, rec.Status, err)
	}
	return nil
}

// Close closes the connection pool.
func (s *JobStore) Close() error {
	return s.db.Close()
}
