package ingestion

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

// bai statement rows start with the movement date followed by the value date.
var baiRowPattern = regexp.MustCompile(`^(\d{2}/\d{2}/\d{4})\s+(\d{2}/\d{2}/\d{4})\s+(.+)$`)

// amountToken matches trailing money columns like "2.507,55" or "-1.030,00".
var amountToken = regexp.MustCompile(`^-?[\d.]*\d,\d{2}$`)

// ReadBAIStatement extracts movement rows from a BAI bank statement PDF. The
// statement is a six-column table (movement date, value date, description,
// debit, credit, balance); rows are reconstructed from the text layer and
// returned under a synthetic header so the movement builder can resolve the
// columns through the normal alias table.
//
// Extraction is best effort: pages without a text layer contribute nothing.
func ReadBAIStatement(data []byte) ([][]string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	rows := [][]string{
		{"Data Mov.", "Data Valor", "Descritivo", "Débito", "Crédito", "Saldo"},
	}
	for p := 1; p <= reader.NumPage(); p++ {
		page := reader.Page(p)
		if page.V.IsNull() {
			continue
		}
		textRows, err := page.GetTextByRow()
		if err != nil {
			continue
		}
		for _, tr := range textRows {
			var parts []string
			for _, word := range tr.Content {
				parts = append(parts, word.S)
			}
			line := strings.TrimSpace(strings.Join(parts, " "))
			if row, ok := parseBAIRow(line); ok {
				rows = append(rows, row)
			}
		}
	}

	if len(rows) == 1 {
		return nil, fmt.Errorf("no movement rows found in pdf (scanned statement?)")
	}
	return rows, nil
}

// parseBAIRow splits one statement line into the six columns. The trailing
// amount tokens are peeled off the right: balance always present, preceded by
// either the credit or the debit amount (the other column is empty).
func parseBAIRow(line string) ([]string, bool) {
	m := baiRowPattern.FindStringSubmatch(line)
	if m == nil {
		return nil, false
	}
	dateMov, dateVal, rest := m[1], m[2], m[3]

	tokens := strings.Fields(rest)
	var amounts []string
	for len(tokens) > 0 && amountToken.MatchString(tokens[len(tokens)-1]) {
		amounts = append([]string{tokens[len(tokens)-1]}, amounts...)
		tokens = tokens[:len(tokens)-1]
		if len(amounts) == 3 {
			break
		}
	}
	if len(amounts) < 2 {
		return nil, false
	}
	desc := strings.Join(tokens, " ")

	debit, credit := "", ""
	balance := amounts[len(amounts)-1]
	switch len(amounts) {
	case 3:
		debit, credit = amounts[0], amounts[1]
	case 2:
		// One movement column only; its sign decides the side.
		if strings.HasPrefix(amounts[0], "-") {
			debit = strings.TrimPrefix(amounts[0], "-")
		} else {
			credit = amounts[0]
		}
	}
	return []string{dateMov, dateVal, desc, debit, credit, balance}, true
}
