package profile

import (
	"time"

	"github.com/scandoc/scandoc/internal/errors"
)

// DenoiseFilter selects the smoothing filter applied by the preprocessing
// pipeline's denoising stage.
type DenoiseFilter string

const (
	// DenoiseBilateral preserves edges while smoothing and is the default.
	DenoiseBilateral DenoiseFilter = "bilateral"
	DenoiseGaussian  DenoiseFilter = "gaussian"
	DenoiseMedian    DenoiseFilter = "median"
)

// Level orders profiles by aggressiveness. Escalation walks this order
// upward and never downward.
type Level int

const (
	LevelFast Level = iota
	LevelBalanced
	LevelHighQuality
)

// String returns the profile name for a level.
func (l Level) String() string {
	switch l {
	case LevelFast:
		return "fast"
	case LevelBalanced:
		return "balanced"
	case LevelHighQuality:
		return "high_quality"
	default:
		return "unknown"
	}
}

// Defaults shared by the named constructors.
const (
	DefaultLanguage          = "spa"
	DefaultMaxRetries        = 2
	DefaultMaxProcessingTime = 5 * time.Minute
)

// Profile is an immutable strategy for one processing run. Escalation never
// mutates a profile; it produces a new value.
type Profile struct {
	Level               Level
	Language            string
	DPI                 int
	ConfidenceThreshold float64
	Preprocess          bool
	EnableDenoise       bool
	EnableContrast      bool
	EnableDeskew        bool
	DenoiseFilter       DenoiseFilter
	MaxRetries          int
	MaxProcessingTime   time.Duration
}

// Name returns the profile's name in the aggressiveness order.
func (p Profile) Name() string { return p.Level.String() }

// Aggressiveness exposes the total order used for escalation decisions.
func (p Profile) Aggressiveness() int { return int(p.Level) }

// Fast is tuned for clean digitally-generated documents: low DPI, no
// preprocessing, a permissive threshold.
func Fast() Profile {
	return Profile{
		Level:               LevelFast,
		Language:            DefaultLanguage,
		DPI:                 150,
		ConfidenceThreshold: 50,
		DenoiseFilter:       DenoiseBilateral,
		MaxRetries:          DefaultMaxRetries,
		MaxProcessingTime:   DefaultMaxProcessingTime,
	}
}

// Balanced is the default profile: standard DPI, no preprocessing.
func Balanced() Profile {
	return Profile{
		Level:               LevelBalanced,
		Language:            DefaultLanguage,
		DPI:                 300,
		ConfidenceThreshold: 60,
		DenoiseFilter:       DenoiseBilateral,
		MaxRetries:          DefaultMaxRetries,
		MaxProcessingTime:   DefaultMaxProcessingTime,
	}
}

// HighQuality runs the full preprocessing pipeline at high DPI for degraded
// scans.
func HighQuality() Profile {
	return Profile{
		Level:               LevelHighQuality,
		Language:            DefaultLanguage,
		DPI:                 600,
		ConfidenceThreshold: 80,
		Preprocess:          true,
		EnableDenoise:       true,
		EnableContrast:      true,
		EnableDeskew:        true,
		DenoiseFilter:       DenoiseBilateral,
		MaxRetries:          DefaultMaxRetries,
		MaxProcessingTime:   DefaultMaxProcessingTime,
	}
}

// ByName resolves a named profile. Unknown names fail with an
// INVALID_PROFILE error.
func ByName(name string) (Profile, error) {
	switch name {
	case "fast":
		return Fast(), nil
	case "balanced", "":
		return Balanced(), nil
	case "high_quality", "high":
		return HighQuality(), nil
	default:
		return Profile{}, errors.NewInvalidProfileError("unknown profile name: " + name)
	}
}

// Option overrides a single field during Custom construction.
type Option func(*Profile)

// WithLanguage sets the recognition language code.
func WithLanguage(lang string) Option {
	return func(p *Profile) { p.Language = lang }
}

// WithDPI sets the rasterization resolution.
func WithDPI(dpi int) Option {
	return func(p *Profile) { p.DPI = dpi }
}

// WithConfidenceThreshold sets the minimum acceptable document confidence.
func WithConfidenceThreshold(threshold float64) Option {
	return func(p *Profile) { p.ConfidenceThreshold = threshold }
}

// WithPreprocessing enables or disables the full preprocessing pipeline.
func WithPreprocessing(enabled bool) Option {
	return func(p *Profile) {
		p.Preprocess = enabled
		p.EnableDenoise = enabled
		p.EnableContrast = enabled
		p.EnableDeskew = enabled
	}
}

// WithDenoiseFilter selects the denoising filter.
func WithDenoiseFilter(filter DenoiseFilter) Option {
	return func(p *Profile) { p.DenoiseFilter = filter }
}

// WithMaxRetries sets the retry budget.
func WithMaxRetries(n int) Option {
	return func(p *Profile) { p.MaxRetries = n }
}

// WithMaxProcessingTime sets the wall-clock budget for one document.
func WithMaxProcessingTime(d time.Duration) Option {
	return func(p *Profile) { p.MaxProcessingTime = d }
}

// Custom builds a profile from Balanced plus explicit overrides. It is the
// only constructor that can fail: DPI must be positive, the confidence
// threshold must sit in [0,100] and the retry budget must be non-negative.
func Custom(opts ...Option) (Profile, error) {
	p := Balanced()
	for _, opt := range opts {
		opt(&p)
	}
	if err := p.validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// With returns a copy of the profile with the given overrides applied and
// re-validated.
func (p Profile) With(opts ...Option) (Profile, error) {
	for _, opt := range opts {
		opt(&p)
	}
	if err := p.validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

func (p Profile) validate() error {
	if p.DPI <= 0 {
		return errors.NewInvalidProfileError("dpi must be positive")
	}
	if p.ConfidenceThreshold < 0 || p.ConfidenceThreshold > 100 {
		return errors.NewInvalidProfileError("confidence threshold must be in [0,100]")
	}
	if p.MaxRetries < 0 {
		return errors.NewInvalidProfileError("max retries must be non-negative")
	}
	if p.MaxProcessingTime <= 0 {
		return errors.NewInvalidProfileError("max processing time must be positive")
	}
	if p.Language == "" {
		return errors.NewInvalidProfileError("language is required")
	}
	switch p.DenoiseFilter {
	case DenoiseBilateral, DenoiseGaussian, DenoiseMedian:
	default:
		return errors.NewInvalidProfileError("unknown denoise filter: " + string(p.DenoiseFilter))
	}
	return nil
}

// Escalate returns the next more-aggressive profile in the total order with
// preprocessing forced on, preserving the run's language and budgets. The
// second return is false when the profile is already at the top.
func (p Profile) Escalate() (Profile, bool) {
	if p.Level >= LevelHighQuality {
		if !p.Preprocess {
			// Same level but with the pipeline switched on still counts
			// as an escalation step.
			next := p
			WithPreprocessing(true)(&next)
			return next, true
		}
		return p, false
	}

	var next Profile
	switch p.Level {
	case LevelFast:
		next = Balanced()
	default:
		next = HighQuality()
	}

	// Escalation changes strategy, not the run's identity or budgets.
	next.Language = p.Language
	next.MaxRetries = p.MaxRetries
	next.MaxProcessingTime = p.MaxProcessingTime
	next.DenoiseFilter = p.DenoiseFilter
	WithPreprocessing(true)(&next)
	return next, true
}
