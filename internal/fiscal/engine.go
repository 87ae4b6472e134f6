// Package fiscal reconciles the tax authority's declared-transactions map
// against the supplier ledger map. Unlike the movement matcher there is no
// scoring: the partition is a deterministic relational computation over two
// join keys, K4 = (tax id, document number, document value, deductible VAT)
// and K3 = K4 without the VAT field.
package fiscal

import (
	"context"

	"github.com/contacerta/reconciler/internal/domain"
)

// Result is the output contract of one fiscal reconciliation run.
type Result struct {
	domain.FiscalPartition
	Summary domain.FiscalSummary `json:"summary"`
}

// Reconcile partitions the two record sets:
//
//   - identical K4 on both sides -> Matched (cross-product on duplicate keys:
//     every duplicate pairs with every matching duplicate, a documented sharp
//     edge rather than a silent dedup)
//   - K3 equal but VAT different -> VATDivergent
//   - no K4 counterpart -> OnlyInAuthority / OnlyInLedger
//
// It refuses to run only when a mandatory key field is missing (SchemaError)
// or the context is cancelled.
func Reconcile(ctx context.Context, authority, ledger []domain.FiscalRecord) (*Result, error) {
	if err := checkSchema(authority, domain.FiscalAuthority); err != nil {
		return nil, err
	}
	if err := checkSchema(ledger, domain.FiscalLedger); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, &domain.CancelledError{Phase: "join", Cause: err}
	}

	// Ledger indexes; slices keep the ledger's input order so the pair
	// emission order is deterministic.
	byK4 := make(map[string][]int, len(ledger))
	byK3 := make(map[string][]int, len(ledger))
	for j := range ledger {
		byK4[ledger[j].KeyK4()] = append(byK4[ledger[j].KeyK4()], j)
		byK3[ledger[j].KeyK3()] = append(byK3[ledger[j].KeyK3()], j)
	}

	part := domain.FiscalPartition{}

	for i := range authority {
		a := &authority[i]
		k4 := a.KeyK4()
		for _, j := range byK4[k4] {
			part.Matched = append(part.Matched, domain.FiscalPair{Authority: *a, Ledger: ledger[j]})
		}
		// inner-join(K3) minus matched: same document, different VAT.
		for _, j := range byK3[a.KeyK3()] {
			if ledger[j].KeyK4() != k4 {
				part.VATDivergent = append(part.VATDivergent, domain.FiscalPair{Authority: *a, Ledger: ledger[j]})
			}
		}
		if len(byK4[k4]) == 0 {
			part.OnlyInAuthority = append(part.OnlyInAuthority, *a)
		}
	}

	authK4 := make(map[string]bool, len(authority))
	for i := range authority {
		authK4[authority[i].KeyK4()] = true
	}
	for j := range ledger {
		if !authK4[ledger[j].KeyK4()] {
			part.OnlyInLedger = append(part.OnlyInLedger, ledger[j])
		}
	}

	res := &Result{FiscalPartition: part}
	res.Summary = Summarize(len(authority), len(ledger), &part)
	return res, nil
}

// checkSchema rejects input sets whose mandatory key fields were never
// resolved during ingestion. An empty tax id or document number cannot be
// defaulted: it would corrupt every downstream partition.
func checkSchema(records []domain.FiscalRecord, source domain.FiscalSource) error {
	for i := range records {
		if records[i].TaxID == "" {
			return &domain.SchemaError{Source: source, Field: "tax_id"}
		}
		if records[i].DocumentNumber == "" {
			return &domain.SchemaError{Source: source, Field: "document_number"}
		}
	}
	return nil
}

// Summarize derives the run counts from a partition.
func Summarize(totalAuthority, totalLedger int, p *domain.FiscalPartition) domain.FiscalSummary {
	return domain.FiscalSummary{
		TotalAuthority:  totalAuthority,
		TotalLedger:     totalLedger,
		Matched:         len(p.Matched),
		VATDivergent:    len(p.VATDivergent),
		OnlyInAuthority: len(p.OnlyInAuthority),
		OnlyInLedger:    len(p.OnlyInLedger),
	}
}
