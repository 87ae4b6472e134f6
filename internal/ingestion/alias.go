package ingestion

import (
	"strings"
	"unicode"

	"github.com/contacerta/reconciler/internal/normalize"
)

// Canonical field names used by the builders. The alias tables below map each
// one to the ordered list of header spellings seen across vendor file
// variants; resolution happens once per file, never inside the engines.
const (
	FieldDateMovement   = "date_movement"
	FieldDateValue      = "date_value"
	FieldDescription    = "description"
	FieldDebit          = "debit"
	FieldCredit         = "credit"
	FieldBalance        = "balance"
	FieldTaxID          = "tax_id"
	FieldDocumentNumber = "document_number"
	FieldDocumentValue  = "document_value"
	FieldDeductibleVAT  = "deductible_vat"
	FieldPartyName      = "party_name"
)

type aliasTable map[string][]string

var movementAliases = aliasTable{
	FieldDateMovement: {"data mov.", "data movimento", "data mov", "data_mov"},
	FieldDateValue:    {"data valor", "data_valor"},
	FieldDescription:  {"descritivo", "descricao", "description"},
	FieldDebit:        {"débito", "debito kz", "debito", "debito_kz"},
	FieldCredit:       {"crédito", "credito kz", "credito", "credito_kz"},
	FieldBalance:      {"saldo disponivel kz", "saldo disponivel", "saldo apos movimento", "movimento", "saldo"},
}

var authorityAliases = aliasTable{
	FieldTaxID:          {"nº de identificação fiscal", "nif"},
	FieldDocumentNumber: {"nº do documento", "numero do documento"},
	FieldDocumentValue:  {"valor do documento"},
	FieldDeductibleVAT:  {"iva dedutível - valor", "iva dedutivel valor", "iva dedutivel"},
	FieldPartyName:      {"nome / firma", "nome firma"},
}

var supplierAliases = aliasTable{
	FieldTaxID:          {"nif", "nº de identificação fiscal"},
	FieldDocumentNumber: {"número do documento", "numero do documento", "nº do documento"},
	FieldDocumentValue:  {"valor do documento"},
	FieldDeductibleVAT:  {"iva dedutível valor", "iva dedutivel valor", "iva dedutivel"},
	FieldPartyName:      {"nome / denominação", "nome denominacao", "nome / firma"},
}

// headerKey canonicalizes a header cell for comparison: diacritics and
// non-alphanumerics dropped, lowercased. "Nº do Documento" and
// "NUMERO DO DOCUMENTO" collide on purpose.
func headerKey(s string) string {
	s = strings.ToLower(normalize.Text(s))
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// resolveColumns maps canonical fields to column indices for one header row.
// For each field the candidate spellings are tried in order with exact
// (normalized) equality; a containment fallback then catches vendor suffixes
// like "DEBITO Kz (AOA)". Unresolved fields are simply absent from the map.
func resolveColumns(header []string, aliases aliasTable, fields []string) map[string]int {
	keys := make([]string, len(header))
	for i, h := range header {
		keys[i] = headerKey(h)
	}

	out := make(map[string]int, len(fields))
	for _, field := range fields {
		if i, ok := findColumn(keys, aliases[field]); ok {
			out[field] = i
		}
	}
	return out
}

func findColumn(keys []string, candidates []string) (int, bool) {
	for _, cand := range candidates {
		ck := headerKey(cand)
		for i, k := range keys {
			if k != "" && k == ck {
				return i, true
			}
		}
	}
	for _, cand := range candidates {
		ck := headerKey(cand)
		if ck == "" {
			continue
		}
		for i, k := range keys {
			if k != "" && (strings.Contains(k, ck) || strings.Contains(ck, k)) {
				return i, true
			}
		}
	}
	return 0, false
}

// fieldsOf returns the canonical field list of a table in a stable order.
func fieldsOf(aliases aliasTable) []string {
	switch {
	case aliases["date_movement"] != nil:
		return []string{FieldDateMovement, FieldDateValue, FieldDescription, FieldDebit, FieldCredit, FieldBalance}
	default:
		return []string{FieldTaxID, FieldDocumentNumber, FieldDocumentValue, FieldDeductibleVAT, FieldPartyName}
	}
}

// findHeader scans the first rows of a sheet for the row that resolves the
// most canonical fields; vendor exports bury the header under title and
// company banner rows. Returns the row index and its resolution, or -1.
func findHeader(rows [][]string, aliases aliasTable, minFields int) (int, map[string]int) {
	fields := fieldsOf(aliases)
	limit := len(rows)
	if limit > 12 {
		limit = 12
	}
	bestRow, bestCount := -1, 0
	var bestCols map[string]int
	for i := 0; i < limit; i++ {
		cols := resolveColumns(rows[i], aliases, fields)
		if len(cols) > bestCount {
			bestRow, bestCount, bestCols = i, len(cols), cols
		}
	}
	if bestCount < minFields {
		return -1, nil
	}
	return bestRow, bestCols
}
