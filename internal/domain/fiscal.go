package domain

import "github.com/shopspring/decimal"

// FiscalSource identifies which map a fiscal record was loaded from.
type FiscalSource string

const (
	FiscalAuthority FiscalSource = "authority"
	FiscalLedger    FiscalSource = "ledger"
)

// FiscalRecord is one declared document from either the tax authority map or
// the supplier ledger map. DocumentValue and DeductibleVAT are kept as
// 2-decimal values so join-key equality is exact.
//
// PartyName is display-only and never participates in a join key.
type FiscalRecord struct {
	TaxID          string          `json:"tax_id"`
	DocumentNumber string          `json:"document_number"`
	DocumentValue  decimal.Decimal `json:"document_value"`
	DeductibleVAT  decimal.Decimal `json:"deductible_vat"`
	PartyName      string          `json:"party_name,omitempty"`
	Source         FiscalSource    `json:"source"`
}

// KeyK4 is the full join key: identical K4 on both sides means matched.
func (r *FiscalRecord) KeyK4() string {
	return r.KeyK3() + "|" + r.DeductibleVAT.StringFixed(2)
}

// KeyK3 drops the VAT field; K3-equal but K4-unequal pairs are VAT divergences.
func (r *FiscalRecord) KeyK3() string {
	return r.TaxID + "|" + r.DocumentNumber + "|" + r.DocumentValue.StringFixed(2)
}

// FiscalPair couples one authority record with one ledger record. Duplicate
// keys within a set pair as a full cross-product, so the same record may appear
// in more than one pair.
type FiscalPair struct {
	Authority FiscalRecord `json:"authority"`
	Ledger    FiscalRecord `json:"ledger"`
}

// FiscalPartition is the outcome of a fiscal reconciliation run.
type FiscalPartition struct {
	Matched         []FiscalPair   `json:"matched"`
	VATDivergent    []FiscalPair   `json:"vat_divergent"`
	OnlyInAuthority []FiscalRecord `json:"only_in_authority"`
	OnlyInLedger    []FiscalRecord `json:"only_in_ledger"`
}

// FiscalSummary holds the derived counts for a fiscal run.
type FiscalSummary struct {
	TotalAuthority  int `json:"total_authority"`
	TotalLedger     int `json:"total_ledger"`
	Matched         int `json:"matched"`
	VATDivergent    int `json:"vat_divergent"`
	OnlyInAuthority int `json:"only_in_authority"`
	OnlyInLedger    int `json:"only_in_ledger"`
}
