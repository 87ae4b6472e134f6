// Package matching implements the movement matching engine: a three-phase
// matcher between bank-statement movements and accounting-ledger movements.
//
// Phase 1 pairs records with identical net amount (to the cent) and identical
// calendar date. Phase 2 scores the remaining records by description
// similarity with a per-day date penalty, accepting the best candidate above a
// threshold. Phase 3 emits non-binding suggestions for amount-compatible
// leftovers. Every record is consumable at most once; the outcome depends only
// on input order and configuration, so identical runs are byte-identical.
package matching

import (
	"context"
	"math"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/contacerta/reconciler/internal/domain"
	"github.com/contacerta/reconciler/internal/normalize"
)

// Request is the input contract of one movement reconciliation run. Source
// holds the bank movements, Target the ledger movements. Config fields left
// nil inherit the serving engine's configuration.
type Request struct {
	Source []domain.CanonicalMovement `json:"source"`
	Target []domain.CanonicalMovement `json:"target"`
	Config Config                     `json:"config"`
}

// Result is the full outcome of one run. Potential entries consume nothing:
// their records also appear in the unmatched sets.
type Result struct {
	Matches         []domain.MatchResult         `json:"matches"`
	Potential       []domain.MatchResult         `json:"potential"`
	UnmatchedSource []domain.CanonicalMovement   `json:"unmatched_source"`
	UnmatchedTarget []domain.CanonicalMovement   `json:"unmatched_target"`
	Summary         domain.ReconciliationSummary `json:"summary"`
}

// Engine runs movement reconciliations. It owns no resources and performs no
// I/O, so a single engine may serve concurrent runs.
type Engine struct {
	cfg settings
	log *logrus.Entry
}

// NewEngine validates the configuration and returns an engine. Nil config
// fields fall back to the package defaults.
func NewEngine(cfg Config, log *logrus.Logger) (*Engine, error) {
	resolved, err := defaultSettings().apply(cfg)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Engine{cfg: resolved, log: log.WithField("component", "matching")}, nil
}

// Config returns the effective configuration as a fully populated override
// set.
func (e *Engine) Config() Config {
	c := e.cfg
	return Config{
		AmountTolerance:     &c.amountTolerance,
		DatePenaltyPerDay:   &c.datePenaltyPerDay,
		SimilarityThreshold: &c.similarityThreshold,
		PotentialWindow:     &c.potentialWindow,
	}
}

// Reconcile executes the three phases under the engine's configuration. The
// context is checked between phases: on cancellation no partial result is
// returned, only a CancelledError.
func (e *Engine) Reconcile(ctx context.Context, source, target []domain.CanonicalMovement) (*Result, error) {
	return e.reconcile(ctx, source, target, e.cfg)
}

// ReconcileWith executes one run with the request's config overrides layered
// on the engine's configuration. The overrides apply to this run only.
func (e *Engine) ReconcileWith(ctx context.Context, req Request) (*Result, error) {
	cfg, err := e.cfg.apply(req.Config)
	if err != nil {
		return nil, err
	}
	return e.reconcile(ctx, req.Source, req.Target, cfg)
}

func (e *Engine) reconcile(ctx context.Context, source, target []domain.CanonicalMovement, cfg settings) (*Result, error) {
	run := newRun(source, target, cfg)

	phases := []struct {
		name string
		fn   func()
	}{
		{"exact", run.exactPhase},
		{"fuzzy", run.fuzzyPhase},
		{"potential", run.potentialPhase},
	}
	for _, p := range phases {
		if err := ctx.Err(); err != nil {
			return nil, &domain.CancelledError{Phase: p.name, Cause: err}
		}
		p.fn()
	}

	res := run.result()
	e.log.WithFields(logrus.Fields{
		"source":    res.Summary.TotalSource,
		"target":    res.Summary.TotalTarget,
		"matched":   res.Summary.Matched,
		"potential": res.Summary.Potential,
	}).Info("reconciliation complete")
	return res, nil
}

// run carries the per-run state: the input slices plus the elimination pools.
// srcUsed/tgtUsed are flipped exactly once per consumed record.
type run struct {
	cfg     settings
	source  []domain.CanonicalMovement
	target  []domain.CanonicalMovement
	srcUsed []bool
	tgtUsed []bool

	matches   []domain.MatchResult
	potential []domain.MatchResult
}

func newRun(source, target []domain.CanonicalMovement, cfg settings) *run {
	return &run{
		cfg:     cfg,
		source:  source,
		target:  target,
		srcUsed: make([]bool, len(source)),
		tgtUsed: make([]bool, len(target)),
	}
}

// cents converts a net amount to an exact integer cent count for grouping.
func cents(v float64) int64 {
	return int64(math.Round(v * 100))
}

// exactKey groups movements by (net amount in cents, calendar date). Movements
// without a movement date never take part in the exact phase.
func exactKey(m *domain.CanonicalMovement) (string, bool) {
	d := m.MovementDate()
	if d == nil {
		return "", false
	}
	return d.Format("2006-01-02") + "|" + strconv.FormatInt(cents(m.NetAmount), 10), true
}

// exactPhase pairs each source with the first unused target sharing its
// (cents, date) group, in source-then-target input order. The similarity on
// the emitted match is informational only.
func (r *run) exactPhase() {
	groups := make(map[string][]int, len(r.target))
	for j := range r.target {
		if key, ok := exactKey(&r.target[j]); ok {
			groups[key] = append(groups[key], j)
		}
	}

	for i := range r.source {
		key, ok := exactKey(&r.source[i])
		if !ok {
			continue
		}
		for _, j := range groups[key] {
			if r.tgtUsed[j] {
				continue
			}
			r.srcUsed[i] = true
			r.tgtUsed[j] = true
			r.matches = append(r.matches, domain.MatchResult{
				SourceID:              r.source[i].ID,
				TargetID:              r.target[j].ID,
				NetAmount:             r.source[i].NetAmount,
				AmountDiff:            0,
				DateDiffDays:          0,
				DescriptionSimilarity: normalize.Similarity(r.source[i].Description, r.target[j].Description),
				Status:                domain.StatusMatchedExact,
			})
			break
		}
	}
}

// dateDiffDays returns the absolute difference in calendar days, plus whether
// both dates were present. A missing date contributes no penalty.
func dateDiffDays(a, b *domain.CanonicalMovement) (int, bool) {
	da, db := a.MovementDate(), b.MovementDate()
	if da == nil || db == nil {
		return 0, false
	}
	d := int(da.Sub(*db).Hours() / 24)
	if d < 0 {
		d = -d
	}
	return d, true
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// fuzzyPhase scores every amount-compatible remaining target for each
// remaining source and accepts the best candidate when its penalized score
// clears the similarity threshold. There is no date pre-filter: distant dates
// only lose score, they are never excluded.
func (r *run) fuzzyPhase() {
	const eps = 1e-9
	for i := range r.source {
		if r.srcUsed[i] {
			continue
		}
		src := &r.source[i]

		bestJ := -1
		bestScore := math.Inf(-1)
		var bestSim float64
		var bestDiff int
		for j := range r.target {
			if r.tgtUsed[j] {
				continue
			}
			tgt := &r.target[j]
			if math.Abs(src.NetAmount-tgt.NetAmount) > r.cfg.amountTolerance+eps {
				continue
			}
			diff, _ := dateDiffDays(src, tgt)
			sim := normalize.Similarity(src.Description, tgt.Description)
			score := sim - r.cfg.datePenaltyPerDay*float64(diff)
			if score > bestScore {
				bestScore = score
				bestJ = j
				bestSim = sim
				bestDiff = diff
			}
		}

		if bestJ < 0 || bestScore < r.cfg.similarityThreshold {
			continue
		}
		r.srcUsed[i] = true
		r.tgtUsed[bestJ] = true
		r.matches = append(r.matches, domain.MatchResult{
			SourceID:              src.ID,
			TargetID:              r.target[bestJ].ID,
			NetAmount:             src.NetAmount,
			AmountDiff:            roundCents(src.NetAmount - r.target[bestJ].NetAmount),
			DateDiffDays:          bestDiff,
			DescriptionSimilarity: bestSim,
			Status:                domain.StatusMatchedFuzzy,
		})
	}
}

// potentialPhase suggests, for each still-unmatched source, the unconsumed
// target with the closest date inside the potential window. Suggestions
// consume nothing: both records stay in the unmatched sets and a target may
// back more than one suggestion.
func (r *run) potentialPhase() {
	const eps = 1e-9
	const noDate = math.MaxInt32
	for i := range r.source {
		if r.srcUsed[i] {
			continue
		}
		src := &r.source[i]

		bestJ := -1
		bestDD := noDate + 1
		for j := range r.target {
			if r.tgtUsed[j] {
				continue
			}
			tgt := &r.target[j]
			if math.Abs(src.NetAmount-tgt.NetAmount) > r.cfg.potentialWindow+eps {
				continue
			}
			dd, ok := dateDiffDays(src, tgt)
			if !ok {
				dd = noDate
			}
			if dd < bestDD {
				bestDD = dd
				bestJ = j
			}
		}
		if bestJ < 0 {
			continue
		}
		tgt := &r.target[bestJ]
		dd, _ := dateDiffDays(src, tgt)
		r.potential = append(r.potential, domain.MatchResult{
			SourceID:              src.ID,
			TargetID:              tgt.ID,
			NetAmount:             src.NetAmount,
			AmountDiff:            roundCents(src.NetAmount - tgt.NetAmount),
			DateDiffDays:          dd,
			DescriptionSimilarity: normalize.Similarity(src.Description, tgt.Description),
			Status:                domain.StatusPotential,
		})
	}
}

func (r *run) result() *Result {
	res := &Result{
		Matches:   r.matches,
		Potential: r.potential,
	}
	for i := range r.source {
		if !r.srcUsed[i] {
			res.UnmatchedSource = append(res.UnmatchedSource, r.source[i])
		}
	}
	for j := range r.target {
		if !r.tgtUsed[j] {
			res.UnmatchedTarget = append(res.UnmatchedTarget, r.target[j])
		}
	}
	res.Summary = Summarize(res)
	return res
}

// Summarize derives the run counts from the match sets. It is the only place
// summaries come from; nothing caches them.
func Summarize(res *Result) domain.ReconciliationSummary {
	return domain.ReconciliationSummary{
		TotalSource:     len(res.Matches) + len(res.UnmatchedSource),
		TotalTarget:     len(res.Matches) + len(res.UnmatchedTarget),
		Matched:         len(res.Matches),
		Potential:       len(res.Potential),
		UnmatchedSource: len(res.UnmatchedSource),
		UnmatchedTarget: len(res.UnmatchedTarget),
	}
}
