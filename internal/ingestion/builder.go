package ingestion

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/contacerta/reconciler/internal/domain"
	"github.com/contacerta/reconciler/internal/normalize"
)

var dateLayouts = []string{"02/01/2006", "2006-01-02", "02-01-2006", "02.01.2006"}

// parseDate is lenient like the amount parser: day-first formats are tried
// in order and an unparseable value degrades to nil, never an error.
func parseDate(raw string) *time.Time {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	if i := strings.IndexByte(s, ' '); i > 0 {
		s = s[:i] // drop a time-of-day suffix
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &t
		}
	}
	return nil
}

func cell(row []string, cols map[string]int, field string) string {
	i, ok := cols[field]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

// rowEmpty reports whether every cell of a row is blank.
func rowEmpty(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// BuildMovements maps a raw sheet into canonical movements for one origin.
// The header row is located by alias resolution; rows before it are banner
// noise and skipped. Malformed cells degrade to zero amounts and nil dates.
//
// Net amount uses credit - debit for both origins (positive = inflow); the
// engine relies on the two sides sharing one convention.
func BuildMovements(rows [][]string, origin domain.Origin) ([]domain.CanonicalMovement, error) {
	headerIdx, cols := findHeader(rows, movementAliases, 2)
	if headerIdx < 0 {
		return nil, fmt.Errorf("build movements: no recognizable header in %d rows", len(rows))
	}

	prefix := "BNK"
	if origin == domain.OriginLedger {
		prefix = "LDG"
	}

	var out []domain.CanonicalMovement
	for _, row := range rows[headerIdx+1:] {
		if rowEmpty(row) {
			continue
		}
		debit := normalize.ParseAmount(cell(row, cols, FieldDebit))
		credit := normalize.ParseAmount(cell(row, cols, FieldCredit))

		m := domain.CanonicalMovement{
			ID:             fmt.Sprintf("%s-%04d", prefix, len(out)+1),
			Origin:         origin,
			DateOfMovement: parseDate(cell(row, cols, FieldDateMovement)),
			DateOfValue:    parseDate(cell(row, cols, FieldDateValue)),
			Description:    normalize.Text(cell(row, cols, FieldDescription)),
			Debit:          debit,
			Credit:         credit,
			NetAmount:      roundCents(credit - debit),
		}
		if _, ok := cols[FieldBalance]; ok {
			if raw := cell(row, cols, FieldBalance); strings.TrimSpace(raw) != "" {
				b := normalize.ParseAmount(raw)
				m.Balance = &b
			}
		}
		out = append(out, m)
	}
	return out, nil
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// BuildFiscalRecords maps a raw sheet into fiscal records. Unlike movements,
// the four join-key columns are mandatory: a sheet that cannot supply one
// yields a SchemaError naming the canonical field, because defaulting a tax id
// or document number would corrupt every downstream partition.
func BuildFiscalRecords(rows [][]string, source domain.FiscalSource) ([]domain.FiscalRecord, error) {
	aliases := supplierAliases
	if source == domain.FiscalAuthority {
		aliases = authorityAliases
	}

	headerIdx, cols := findHeader(rows, aliases, 1)
	if headerIdx < 0 {
		return nil, &domain.SchemaError{Source: source, Field: FieldTaxID}
	}
	for _, field := range []string{FieldTaxID, FieldDocumentNumber, FieldDocumentValue, FieldDeductibleVAT} {
		if _, ok := cols[field]; !ok {
			return nil, &domain.SchemaError{Source: source, Field: field}
		}
	}

	var out []domain.FiscalRecord
	for _, row := range rows[headerIdx+1:] {
		if rowEmpty(row) {
			continue
		}
		r := domain.FiscalRecord{
			TaxID:          strings.TrimSpace(cell(row, cols, FieldTaxID)),
			DocumentNumber: strings.ToUpper(strings.TrimSpace(cell(row, cols, FieldDocumentNumber))),
			DocumentValue:  decimal.NewFromFloat(normalize.ParseAmount(cell(row, cols, FieldDocumentValue))).Round(2),
			DeductibleVAT:  decimal.NewFromFloat(normalize.ParseAmount(cell(row, cols, FieldDeductibleVAT))).Round(2),
			PartyName:      normalize.PartyName(cell(row, cols, FieldPartyName)),
			Source:         source,
		}
		out = append(out, r)
	}
	return out, nil
}
