/**
 * Storage Manager
 *
 * Coordinates artifact writes on the filesystem with job persistence in
 * PostgreSQL. The job store is optional so the CLI can run without a
 * database.
 */

package storage

import (
	"context"

	scanerrors "github.com/scandoc/scandoc/internal/errors"
	"github.com/scandoc/scandoc/internal/logging"
	"github.com/scandoc/scandoc/internal/processor"
)

// Manager coordinates filesystem and database persistence.
type Manager struct {
	artifacts *ArtifactStore
	jobs      *JobStore
	logger    *logging.Logger
}

// ManagerConfig holds the configuration for NewManager.
type ManagerConfig struct {
	OutputDir   string
	DatabaseURL string
	Logger      *logging.Logger
}

// NewManager creates a storage manager. When DatabaseURL is empty, job
// persistence is disabled and only filesystem artifacts are written.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Logger == nil {
		cfg.Logger = logging.NewLogger("storage")
	}

	m := &Manager{
		artifacts: NewArtifactStore(cfg.OutputDir, cfg.Logger),
		logger:    cfg.Logger,
	}

	if cfg.DatabaseURL != "" {
		jobs, err := NewJobStore(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		m.jobs = jobs
	}

	return m, nil
}

// PersistResult writes the artifacts for a finished run and records the job
// outcome. The job ID defaults to the result's document ID when the run was
// not queued.
func (m *Manager) PersistResult(ctx context.Context, jobID string, result processor.ProcessingResult, plainText, markdown string) (ArtifactPaths, error) {
	paths, err := m.artifacts.Save(result.DocumentName, result.DocumentPath, plainText, markdown)
	if err != nil {
		return ArtifactPaths{}, err
	}

	if m.jobs == nil {
		return paths, nil
	}
	if jobID == "" {
		jobID = result.DocumentID
	}

	rec := &JobRecord{
		JobID:            jobID,
		DocumentName:     result.DocumentName,
		Status:           string(result.Status),
		Confidence:       result.Confidence,
		ProcessingTimeMs: result.Duration().Milliseconds(),
		Pages:            result.PageCount(),
		Attempts:         result.Attempts,
		ProfileUsed:      result.Profile.Level.String(),
		Metadata: map[string]interface{}{
			"escalations":  result.Escalations,
			"tables":       result.TableCount(),
			"table_errors": result.TableErrorPages,
			"output_dir":   paths.Dir,
		},
	}
	if err := m.jobs.UpsertJob(ctx, rec); err != nil {
		return paths, scanerrors.NewStorageError(result.DocumentName, err)
	}
	return paths, nil
}

// RecordFailure persists a failed job without writing artifacts.
func (m *Manager) RecordFailure(ctx context.Context, jobID, documentName string, procErr error) error {
	if m.jobs == nil {
		return nil
	}

	rec := &JobRecord{
		JobID:        jobID,
		DocumentName: documentName,
		Status:       string(processor.StatusFailed),
		ErrorCode:    string(scanerrors.CodeOf(procErr)),
		ErrorMessage: procErr.Error(),
	}
	return m.jobs.UpsertJob(ctx, rec)
}

// Close releases the database pool if one was opened.
func (m *Manager) Close() error {
	if m.jobs != nil {
		return m.jobs.Close()
	}
	return nil
}
