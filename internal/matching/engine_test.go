package matching

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contacerta/reconciler/internal/domain"
)

func day(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func mov(id string, origin domain.Origin, net float64, date *time.Time, desc string) domain.CanonicalMovement {
	return domain.CanonicalMovement{
		ID:             id,
		Origin:         origin,
		DateOfMovement: date,
		Description:    desc,
		NetAmount:      net,
	}
}

func bank(id string, net float64, date string, desc string) domain.CanonicalMovement {
	return mov(id, domain.OriginBank, net, day(date), desc)
}

func ledger(id string, net float64, date string, desc string) domain.CanonicalMovement {
	return mov(id, domain.OriginLedger, net, day(date), desc)
}

func newTestEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	e, err := NewEngine(cfg, log)
	require.NoError(t, err)
	return e
}

func TestExactMatchScenarioA(t *testing.T) {
	e := newTestEngine(t, Config{})
	source := []domain.CanonicalMovement{
		bank("b1", 100.00, "2025-01-05", "PAGAMENTO FORNECEDOR X"),
	}
	target := []domain.CanonicalMovement{
		ledger("l1", 100.00, "2025-01-05", "PGTO FORNECEDOR X"),
	}

	res, err := e.Reconcile(context.Background(), source, target)
	require.NoError(t, err)

	require.Len(t, res.Matches, 1)
	m := res.Matches[0]
	assert.Equal(t, domain.StatusMatchedExact, m.Status)
	assert.Equal(t, "b1", m.SourceID)
	assert.Equal(t, "l1", m.TargetID)
	assert.Zero(t, m.AmountDiff)
	assert.Zero(t, m.DateDiffDays)
	assert.Greater(t, m.DescriptionSimilarity, 0.0, "similarity is informational but computed")
	assert.Empty(t, res.UnmatchedSource)
	assert.Empty(t, res.UnmatchedTarget)
}

func TestToleranceMissScenarioB(t *testing.T) {
	e := newTestEngine(t, Config{})
	source := []domain.CanonicalMovement{
		bank("b1", 100.02, "2025-01-05", "PAGAMENTO FORNECEDOR X"),
	}
	target := []domain.CanonicalMovement{
		ledger("l1", 100.00, "2025-01-05", "PAGAMENTO FORNECEDOR X"),
	}

	res, err := e.Reconcile(context.Background(), source, target)
	require.NoError(t, err)

	assert.Empty(t, res.Matches, "0.02 exceeds the 0.01 acceptance tolerance")
	require.Len(t, res.Potential, 1)
	p := res.Potential[0]
	assert.Equal(t, domain.StatusPotential, p.Status)
	assert.InDelta(t, 0.02, p.AmountDiff, 1e-9)

	// Potential consumes nothing.
	require.Len(t, res.UnmatchedSource, 1)
	require.Len(t, res.UnmatchedTarget, 1)
}

func TestFuzzyMatchWithinTolerance(t *testing.T) {
	e := newTestEngine(t, Config{})
	source := []domain.CanonicalMovement{
		bank("b1", 250.00, "2025-02-10", "TRANSFERENCIA RENDA ESCRITORIO"),
	}
	target := []domain.CanonicalMovement{
		ledger("l1", 250.01, "2025-02-12", "RENDA ESCRITORIO"),
		ledger("l2", 250.01, "2025-02-12", "COMPRA COMBUSTIVEL"),
	}

	res, err := e.Reconcile(context.Background(), source, target)
	require.NoError(t, err)

	require.Len(t, res.Matches, 1)
	m := res.Matches[0]
	assert.Equal(t, domain.StatusMatchedFuzzy, m.Status)
	assert.Equal(t, "l1", m.TargetID)
	assert.Equal(t, 2, m.DateDiffDays)
	assert.InDelta(t, -0.01, m.AmountDiff, 1e-9)
	assert.GreaterOrEqual(t, m.DescriptionSimilarity, 0.6, "stored similarity is raw, not penalized")
}

func TestExactPrecedenceOverFuzzy(t *testing.T) {
	// The same-amount same-date pair must resolve in the exact phase even
	// though another target has a far better description.
	e := newTestEngine(t, Config{})
	source := []domain.CanonicalMovement{
		bank("b1", 75.00, "2025-03-01", "PAGAMENTO SEGURO AUTO"),
	}
	target := []domain.CanonicalMovement{
		ledger("l1", 75.00, "2025-03-01", "MOVIMENTO DIVERSO"),
		ledger("l2", 75.00, "2025-03-04", "PAGAMENTO SEGURO AUTO"),
	}

	res, err := e.Reconcile(context.Background(), source, target)
	require.NoError(t, err)

	require.Len(t, res.Matches, 1)
	assert.Equal(t, domain.StatusMatchedExact, res.Matches[0].Status)
	assert.Equal(t, "l1", res.Matches[0].TargetID)
}

func TestExclusivityAndCoverage(t *testing.T) {
	e := newTestEngine(t, Config{})
	source := []domain.CanonicalMovement{
		bank("b1", 100.00, "2025-01-05", "PAGAMENTO FORNECEDOR X"),
		bank("b2", 100.00, "2025-01-05", "PAGAMENTO FORNECEDOR Y"),
		bank("b3", 30.00, "2025-01-07", "TAXA BANCARIA"),
		bank("b4", -12.34, "2025-01-09", "COMISSAO"),
	}
	target := []domain.CanonicalMovement{
		ledger("l1", 100.00, "2025-01-05", "PGTO FORNECEDOR X"),
		ledger("l2", 100.00, "2025-01-05", "PGTO FORNECEDOR Y"),
		ledger("l3", 30.01, "2025-01-08", "TAXA BANCARIA JANEIRO"),
	}

	res, err := e.Reconcile(context.Background(), source, target)
	require.NoError(t, err)

	// Exclusivity: no id repeats on either side of matches.
	srcSeen := map[string]bool{}
	tgtSeen := map[string]bool{}
	for _, m := range res.Matches {
		assert.False(t, srcSeen[m.SourceID], "source %s matched twice", m.SourceID)
		assert.False(t, tgtSeen[m.TargetID], "target %s matched twice", m.TargetID)
		srcSeen[m.SourceID] = true
		tgtSeen[m.TargetID] = true
	}

	// Coverage: matches + unmatched reconstruct each input exactly.
	assert.Equal(t, len(source), len(res.Matches)+len(res.UnmatchedSource))
	assert.Equal(t, len(target), len(res.Matches)+len(res.UnmatchedTarget))

	// Summary is consistent with the sets it derives from.
	assert.Equal(t, len(res.Matches), res.Summary.Matched)
	assert.Equal(t, len(res.Potential), res.Summary.Potential)
	assert.Equal(t, len(source), res.Summary.TotalSource)
	assert.Equal(t, len(target), res.Summary.TotalTarget)
}

func TestIdempotence(t *testing.T) {
	e := newTestEngine(t, Config{})
	source := []domain.CanonicalMovement{
		bank("b1", 100.00, "2025-01-05", "PAGAMENTO FORNECEDOR X"),
		bank("b2", 40.50, "2025-01-06", "RENDA"),
		bank("b3", 40.50, "2025-01-06", "RENDA ALUGUER"),
	}
	target := []domain.CanonicalMovement{
		ledger("l1", 40.50, "2025-01-06", "RENDA"),
		ledger("l2", 100.00, "2025-01-05", "PAGAMENTO FORNECEDOR X"),
	}

	first, err := e.Reconcile(context.Background(), source, target)
	require.NoError(t, err)
	a, err := json.Marshal(first)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := e.Reconcile(context.Background(), source, target)
		require.NoError(t, err)
		b, err := json.Marshal(again)
		require.NoError(t, err)
		assert.Equal(t, string(a), string(b), "run %d diverged", i)
	}
}

func TestFuzzyTieBreaksByTargetOrder(t *testing.T) {
	// Identical candidates: the earliest target in input order wins.
	e := newTestEngine(t, Config{})
	source := []domain.CanonicalMovement{
		bank("b1", 60.00, "2025-04-01", "QUOTA ASSOCIACAO"),
	}
	target := []domain.CanonicalMovement{
		ledger("l1", 60.00, "2025-04-03", "QUOTA ASSOCIACAO"),
		ledger("l2", 60.00, "2025-04-03", "QUOTA ASSOCIACAO"),
	}

	res, err := e.Reconcile(context.Background(), source, target)
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, "l1", res.Matches[0].TargetID)
}

func TestMissingDatesCarryNoPenalty(t *testing.T) {
	e := newTestEngine(t, Config{})
	source := []domain.CanonicalMovement{
		mov("b1", domain.OriginBank, 88.00, nil, "PAGAMENTO AGUA"),
	}
	target := []domain.CanonicalMovement{
		ledger("l1", 88.00, "2025-05-20", "PAGAMENTO AGUA"),
	}

	res, err := e.Reconcile(context.Background(), source, target)
	require.NoError(t, err)

	// No exact match without a date, but the fuzzy phase scores it with
	// zero date penalty.
	require.Len(t, res.Matches, 1)
	m := res.Matches[0]
	assert.Equal(t, domain.StatusMatchedFuzzy, m.Status)
	assert.Zero(t, m.DateDiffDays)
}

func TestPotentialTargetMayBackMultipleSuggestions(t *testing.T) {
	e := newTestEngine(t, Config{})
	source := []domain.CanonicalMovement{
		bank("b1", 10.02, "2025-06-01", "DESPESA A"),
		bank("b2", 10.03, "2025-06-02", "DESPESA B"),
	}
	target := []domain.CanonicalMovement{
		ledger("l1", 10.00, "2025-06-01", "LANCAMENTO GENERICO"),
	}

	res, err := e.Reconcile(context.Background(), source, target)
	require.NoError(t, err)

	assert.Empty(t, res.Matches)
	require.Len(t, res.Potential, 2)
	assert.Equal(t, "l1", res.Potential[0].TargetID)
	assert.Equal(t, "l1", res.Potential[1].TargetID)
	assert.Len(t, res.UnmatchedSource, 2)
	assert.Len(t, res.UnmatchedTarget, 1)
}

func TestPotentialPicksClosestDate(t *testing.T) {
	e := newTestEngine(t, Config{})
	source := []domain.CanonicalMovement{
		bank("b1", 20.02, "2025-07-10", "DESPESA VARIA"),
	}
	target := []domain.CanonicalMovement{
		ledger("l1", 20.00, "2025-07-01", "OUTRO MOVIMENTO"),
		ledger("l2", 20.00, "2025-07-09", "OUTRO MOVIMENTO"),
	}

	res, err := e.Reconcile(context.Background(), source, target)
	require.NoError(t, err)
	require.Len(t, res.Potential, 1)
	assert.Equal(t, "l2", res.Potential[0].TargetID)
	assert.Equal(t, 1, res.Potential[0].DateDiffDays)
}

func TestCancellationReturnsNoPartialResult(t *testing.T) {
	e := newTestEngine(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := e.Reconcile(ctx, []domain.CanonicalMovement{
		bank("b1", 1, "2025-01-01", "X"),
	}, nil)

	assert.Nil(t, res)
	var cerr *domain.CancelledError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "exact", cerr.Phase)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConfigValidation(t *testing.T) {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	_, err := NewEngine(Config{SimilarityThreshold: Float(1.5)}, log)
	assert.Error(t, err)

	_, err = NewEngine(Config{AmountTolerance: Float(-0.01)}, log)
	assert.Error(t, err)

	e, err := NewEngine(Config{}, log)
	require.NoError(t, err)
	cfg := e.Config()
	assert.Equal(t, DefaultAmountTolerance, *cfg.AmountTolerance)
	assert.Equal(t, DefaultSimilarityThreshold, *cfg.SimilarityThreshold)
	assert.Equal(t, DefaultPotentialWindow, *cfg.PotentialWindow)
}

func TestExplicitZeroToleranceIsHonored(t *testing.T) {
	// A half-cent difference clears the default tolerance but an explicit
	// zero must demand cent-exact amounts.
	source := []domain.CanonicalMovement{
		bank("b1", 100.005, "2025-01-05", "PAGAMENTO FORNECEDOR X"),
	}
	target := []domain.CanonicalMovement{
		ledger("l1", 100.00, "2025-01-06", "PAGAMENTO FORNECEDOR X"),
	}

	res, err := newTestEngine(t, Config{}).Reconcile(context.Background(), source, target)
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, domain.StatusMatchedFuzzy, res.Matches[0].Status)

	strict := newTestEngine(t, Config{AmountTolerance: Float(0)})
	res, err = strict.Reconcile(context.Background(), source, target)
	require.NoError(t, err)
	assert.Empty(t, res.Matches)
}

func TestReconcileWithPerRunConfig(t *testing.T) {
	e := newTestEngine(t, Config{})
	req := Request{
		Source: []domain.CanonicalMovement{
			bank("b1", 100.03, "2025-01-05", "PAGAMENTO FORNECEDOR X"),
		},
		Target: []domain.CanonicalMovement{
			ledger("l1", 100.00, "2025-01-05", "PAGAMENTO FORNECEDOR X"),
		},
	}

	// Under the engine's defaults the 0.03 gap only yields a suggestion.
	res, err := e.ReconcileWith(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, res.Matches)
	require.Len(t, res.Potential, 1)

	// A per-run tolerance turns it into a fuzzy match without touching the
	// engine's own configuration.
	req.Config = Config{AmountTolerance: Float(0.05)}
	res, err = e.ReconcileWith(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, domain.StatusMatchedFuzzy, res.Matches[0].Status)
	assert.InDelta(t, 0.03, res.Matches[0].AmountDiff, 1e-9)

	assert.Equal(t, DefaultAmountTolerance, *e.Config().AmountTolerance)
}

func TestReconcileWithRejectsBadConfig(t *testing.T) {
	e := newTestEngine(t, Config{})
	_, err := e.ReconcileWith(context.Background(), Request{
		Config: Config{SimilarityThreshold: Float(2)},
	})
	assert.Error(t, err)
}
