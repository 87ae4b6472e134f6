package matching

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Defaults for a movement reconciliation run. The potential window is wider
// than the acceptance tolerance so near-miss amounts still surface as
// suggestions instead of disappearing.
const (
	DefaultAmountTolerance     = 0.01
	DefaultDatePenaltyPerDay   = 0.01
	DefaultSimilarityThreshold = 0.6
	DefaultPotentialWindow     = 0.05
)

// Config holds optional overrides for the engine tunables. A nil field keeps
// the value it would otherwise have (the package default, or the engine's own
// configuration on a per-run request); an explicit zero is honored, so
// exact-only matching is expressible.
type Config struct {
	AmountTolerance     *float64 `json:"amount_tolerance,omitempty" validate:"omitempty,gte=0"`
	DatePenaltyPerDay   *float64 `json:"date_penalty_per_day,omitempty" validate:"omitempty,gte=0"`
	SimilarityThreshold *float64 `json:"description_similarity_threshold,omitempty" validate:"omitempty,gte=0,lte=1"`
	PotentialWindow     *float64 `json:"potential_window,omitempty" validate:"omitempty,gte=0"`
}

// Float wraps a literal for use as a Config override.
func Float(v float64) *float64 { return &v }

// DefaultConfig returns an empty override set: every tunable at its default.
func DefaultConfig() Config { return Config{} }

var validate = validator.New()

// settings is the resolved form the engine runs with.
type settings struct {
	amountTolerance     float64
	datePenaltyPerDay   float64
	similarityThreshold float64
	potentialWindow     float64
}

func defaultSettings() settings {
	return settings{
		amountTolerance:     DefaultAmountTolerance,
		datePenaltyPerDay:   DefaultDatePenaltyPerDay,
		similarityThreshold: DefaultSimilarityThreshold,
		potentialWindow:     DefaultPotentialWindow,
	}
}

// apply validates c and overlays its non-nil fields onto s. An overridden
// amount tolerance drags the potential window up with it unless the window is
// overridden too: suggestions must never be narrower than acceptance.
func (s settings) apply(c Config) (settings, error) {
	if err := validate.Struct(c); err != nil {
		return settings{}, fmt.Errorf("matching config: %w", err)
	}
	if c.AmountTolerance != nil {
		s.amountTolerance = *c.AmountTolerance
		if c.PotentialWindow == nil && s.amountTolerance > s.potentialWindow {
			s.potentialWindow = s.amountTolerance
		}
	}
	if c.DatePenaltyPerDay != nil {
		s.datePenaltyPerDay = *c.DatePenaltyPerDay
	}
	if c.SimilarityThreshold != nil {
		s.similarityThreshold = *c.SimilarityThreshold
	}
	if c.PotentialWindow != nil {
		s.potentialWindow = *c.PotentialWindow
	}
	return s, nil
}
