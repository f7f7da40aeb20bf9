package queue

import (
	"testing"
	"time"

	"github.com/hibiken/asynq"

	"github.com/scandoc/scandoc/internal/profile"
)

func TestProcessTaskRoundTrip(t *testing.T) {
	pre := true
	in := ProcessPayload{
		JobID:        "7f61c740-6a0e-4f1f-9f43-0d2f9a9a2f10",
		DocumentPath: "/docs/factura.pdf",
		Profile:      "fast",
		Overrides: ProfileOverrides{
			Language:   "eng",
			DPI:        200,
			Preprocess: &pre,
		},
	}

	task, err := NewProcessTask(in)
	if err != nil {
		t.Fatalf("NewProcessTask failed: %v", err)
	}
	if task.Type() != TaskTypeProcessDocument {
		t.Errorf("task type = %s, want %s", task.Type(), TaskTypeProcessDocument)
	}

	out, err := ParseProcessPayload(task)
	if err != nil {
		t.Fatalf("ParseProcessPayload failed: %v", err)
	}
	if out.JobID != in.JobID || out.DocumentPath != in.DocumentPath || out.Profile != in.Profile {
		t.Errorf("payload mismatch: %+v", out)
	}
	if out.Overrides.Language != "eng" || out.Overrides.DPI != 200 {
		t.Errorf("overrides mismatch: %+v", out.Overrides)
	}
	if out.Overrides.Preprocess == nil || !*out.Overrides.Preprocess {
		t.Error("preprocess override lost")
	}
}

func TestNewProcessTaskValidation(t *testing.T) {
	if _, err := NewProcessTask(ProcessPayload{DocumentPath: "/a.pdf"}); err == nil {
		t.Error("missing job ID should be rejected")
	}
	if _, err := NewProcessTask(ProcessPayload{JobID: "x"}); err == nil {
		t.Error("missing document path should be rejected")
	}
}

func TestParseProcessPayloadMalformed(t *testing.T) {
	task := asynq.NewTask(TaskTypeProcessDocument, []byte("{not json"))
	if _, err := ParseProcessPayload(task); err == nil {
		t.Error("malformed JSON should be rejected")
	}

	task = asynq.NewTask(TaskTypeProcessDocument, []byte(`{"profile":"fast"}`))
	if _, err := ParseProcessPayload(task); err == nil {
		t.Error("payload without identifiers should be rejected")
	}
}

func TestBuildProfile(t *testing.T) {
	payload := ProcessPayload{
		JobID:        "x",
		DocumentPath: "/a.pdf",
		Profile:      "fast",
	}
	prof, err := payload.BuildProfile(profile.Balanced())
	if err != nil {
		t.Fatalf("BuildProfile failed: %v", err)
	}
	if prof.Level != profile.LevelFast {
		t.Errorf("Level = %v, want fast", prof.Level)
	}

	payload.Overrides = ProfileOverrides{Language: "eng", DPI: 450, ConfidenceThreshold: 70}
	prof, err = payload.BuildProfile(profile.Balanced())
	if err != nil {
		t.Fatalf("BuildProfile with overrides failed: %v", err)
	}
	if prof.Language != "eng" || prof.DPI != 450 || prof.ConfidenceThreshold != 70 {
		t.Errorf("overrides not applied: %+v", prof)
	}

	payload.Profile = "turbo"
	if _, err := payload.BuildProfile(profile.Balanced()); err == nil {
		t.Error("unknown profile name should be rejected")
	}
}

func TestBuildProfileUsesWorkerDefaults(t *testing.T) {
	def, err := profile.Balanced().With(
		profile.WithLanguage("eng"),
		profile.WithMaxRetries(5),
		profile.WithMaxProcessingTime(90*time.Second),
		profile.WithDPI(400),
	)
	if err != nil {
		t.Fatal(err)
	}

	// No named profile: the worker's default applies wholesale.
	payload := ProcessPayload{JobID: "x", DocumentPath: "/a.pdf"}
	prof, err := payload.BuildProfile(def)
	if err != nil {
		t.Fatalf("BuildProfile failed: %v", err)
	}
	if prof != def {
		t.Errorf("payload without a profile should use the default: %+v", prof)
	}

	// A named profile swaps the strategy but keeps the worker's run
	// language and budgets.
	payload.Profile = "high_quality"
	prof, err = payload.BuildProfile(def)
	if err != nil {
		t.Fatalf("BuildProfile failed: %v", err)
	}
	if prof.Level != profile.LevelHighQuality || prof.DPI != 600 {
		t.Errorf("named profile not applied: %+v", prof)
	}
	if prof.Language != "eng" || prof.MaxRetries != 5 || prof.MaxProcessingTime != 90*time.Second {
		t.Errorf("worker defaults lost on named profile: %+v", prof)
	}

	// Payload overrides beat both.
	payload.Overrides = ProfileOverrides{Language: "deu"}
	prof, err = payload.BuildProfile(def)
	if err != nil {
		t.Fatalf("BuildProfile failed: %v", err)
	}
	if prof.Language != "deu" {
		t.Errorf("Language = %q, want payload override", prof.Language)
	}
}
