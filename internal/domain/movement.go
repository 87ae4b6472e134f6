package domain

import "time"

// Origin identifies which side of a movement reconciliation a record came from.
type Origin string

const (
	OriginBank   Origin = "bank"
	OriginLedger Origin = "ledger"
)

// MatchStatus is the confidence level of an accepted pairing.
type MatchStatus string

const (
	StatusMatchedExact MatchStatus = "matched_exact"
	StatusMatchedFuzzy MatchStatus = "matched_fuzzy"
	StatusPotential    MatchStatus = "potential"
)

// CanonicalMovement is one normalized statement or ledger row. It is built once
// by the ingestion layer and never mutated afterwards.
//
// NetAmount uses the same convention for both origins: credit - debit, positive
// meaning an inflow. The builder owns the convention; the matching engine only
// compares NetAmount values.
type CanonicalMovement struct {
	ID             string     `json:"id"`
	Origin         Origin     `json:"origin"`
	DateOfMovement *time.Time `json:"date_of_movement,omitempty"`
	DateOfValue    *time.Time `json:"date_of_value,omitempty"`
	Description    string     `json:"description"`
	Debit          float64    `json:"debit"`
	Credit         float64    `json:"credit"`
	NetAmount      float64    `json:"net_amount"`
	Balance        *float64   `json:"balance,omitempty"`
}

// MovementDate returns the calendar day of the movement, or nil when the source
// row carried no parseable date.
func (m *CanonicalMovement) MovementDate() *time.Time {
	if m.DateOfMovement == nil {
		return nil
	}
	d := m.DateOfMovement.Truncate(24 * time.Hour)
	return &d
}

// MatchResult is one accepted pairing between a source and a target movement.
type MatchResult struct {
	SourceID              string      `json:"source_id"`
	TargetID              string      `json:"target_id"`
	NetAmount             float64     `json:"net_amount"`
	AmountDiff            float64     `json:"amount_diff"`
	DateDiffDays          int         `json:"date_diff_days"`
	DescriptionSimilarity float64     `json:"description_similarity"`
	Status                MatchStatus `json:"status"`
}

// ReconciliationSummary holds the derived counts for a movement run. It is
// recomputed from the sets on demand and never stored on its own.
type ReconciliationSummary struct {
	TotalSource     int `json:"total_source"`
	TotalTarget     int `json:"total_target"`
	Matched         int `json:"matched"`
	Potential       int `json:"potential"`
	UnmatchedSource int `json:"unmatched_source"`
	UnmatchedTarget int `json:"unmatched_target"`
}
