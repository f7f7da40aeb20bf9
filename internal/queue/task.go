package queue

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/scandoc/scandoc/internal/profile"
)

// TaskTypeProcessDocument is the asynq task type for document processing.
const TaskTypeProcessDocument = "document:process"

// ProfileOverrides carries optional per-job deviations from the named
// profile. Zero values mean "keep the profile default".
type ProfileOverrides struct {
	Language            string  `json:"language,omitempty"`
	DPI                 int     `json:"dpi,omitempty"`
	ConfidenceThreshold float64 `json:"confidenceThreshold,omitempty"`
	MaxRetries          int     `json:"maxRetries,omitempty"`
	Preprocess          *bool   `json:"preprocess,omitempty"`
}

// ProcessPayload is the JSON body of a document:process task.
type ProcessPayload struct {
	JobID        string           `json:"jobId"`
	DocumentPath string           `json:"documentPath"`
	Profile      string           `json:"profile"`
	Overrides    ProfileOverrides `json:"overrides,omitempty"`
}

// NewProcessTask serializes the payload into an asynq task.
func NewProcessTask(payload ProcessPayload) (*asynq.Task, error) {
	if payload.JobID == "" {
		return nil, fmt.Errorf("job ID is required")
	}
	if payload.DocumentPath == "" {
		return nil, fmt.Errorf("document path is required")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return asynq.NewTask(TaskTypeProcessDocument, body), nil
}

// ParseProcessPayload deserializes and validates a task body.
func ParseProcessPayload(task *asynq.Task) (ProcessPayload, error) {
	var payload ProcessPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	if payload.JobID == "" {
		return payload, fmt.Errorf("job ID is required")
	}
	if payload.DocumentPath == "" {
		return payload, fmt.Errorf("document path is required")
	}
	return payload, nil
}

// BuildProfile resolves the payload against the worker's default profile.
// The default supplies the base; a named profile in the payload swaps the
// strategy level while keeping the worker's run language and budgets, and
// explicit payload overrides apply last.
func (p ProcessPayload) BuildProfile(def profile.Profile) (profile.Profile, error) {
	base := def
	if p.Profile != "" && p.Profile != def.Name() {
		named, err := profile.ByName(p.Profile)
		if err != nil {
			return profile.Profile{}, err
		}
		base, err = named.With(
			profile.WithLanguage(def.Language),
			profile.WithMaxRetries(def.MaxRetries),
			profile.WithMaxProcessingTime(def.MaxProcessingTime),
			profile.WithDenoiseFilter(def.DenoiseFilter),
		)
		if err != nil {
			return profile.Profile{}, err
		}
	}

	var opts []profile.Option
	if p.Overrides.Language != "" {
		opts = append(opts, profile.WithLanguage(p.Overrides.Language))
	}
	if p.Overrides.DPI > 0 {
		opts = append(opts, profile.WithDPI(p.Overrides.DPI))
	}
	if p.Overrides.ConfidenceThreshold > 0 {
		opts = append(opts, profile.WithConfidenceThreshold(p.Overrides.ConfidenceThreshold))
	}
	if p.Overrides.MaxRetries > 0 {
		opts = append(opts, profile.WithMaxRetries(p.Overrides.MaxRetries))
	}
	if p.Overrides.Preprocess != nil {
		opts = append(opts, profile.WithPreprocessing(*p.Overrides.Preprocess))
	}
	if len(opts) == 0 {
		return base, nil
	}
	return base.With(opts...)
}
