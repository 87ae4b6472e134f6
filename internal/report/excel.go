// Package report renders persisted reconciliation runs into the documents
// accountants actually hand over: an Excel workbook with one sheet per result
// category, and a compact PDF summary.
package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/contacerta/reconciler/internal/domain"
	"github.com/contacerta/reconciler/internal/fiscal"
	"github.com/contacerta/reconciler/internal/matching"
	"github.com/contacerta/reconciler/internal/repository"
)

const headerFill = "D9D9D9"

func headerStyle(f *excelize.File) (int, error) {
	return f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{headerFill}},
	})
}

// writeSheet creates a sheet with a styled header row followed by data rows.
func writeSheet(f *excelize.File, name string, header []string, rows [][]any) error {
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("sheet %s: %w", name, err)
	}

	style, err := headerStyle(f)
	if err != nil {
		return err
	}
	for col, h := range header {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(name, cell, h); err != nil {
			return err
		}
	}
	endCell, _ := excelize.CoordinatesToCellName(len(header), 1)
	if err := f.SetCellStyle(name, "A1", endCell, style); err != nil {
		return err
	}

	for i, row := range rows {
		for col, v := range row {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			if err := f.SetCellValue(name, cell, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func fmtDate(t *repository.Run) string {
	return t.CreatedAt.Format("2006-01-02 15:04")
}

func movementDate(m *domain.CanonicalMovement) string {
	if m.DateOfMovement == nil {
		return ""
	}
	return m.DateOfMovement.Format("2006-01-02")
}

// MovementWorkbook renders a movement run into a five-sheet workbook.
func MovementWorkbook(run *repository.Run, res *matching.Result) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := writeSheet(f, "Resumo", []string{"Campo", "Valor"}, [][]any{
		{"Execução", run.ID},
		{"Data", fmtDate(run)},
		{"Total extrato", res.Summary.TotalSource},
		{"Total contabilidade", res.Summary.TotalTarget},
		{"Conciliados", res.Summary.Matched},
		{"Potenciais", res.Summary.Potential},
		{"Só no extrato", res.Summary.UnmatchedSource},
		{"Só na contabilidade", res.Summary.UnmatchedTarget},
	}); err != nil {
		return nil, err
	}

	matchHeader := []string{"Extrato", "Contabilidade", "Valor", "Dif. Valor", "Dif. Dias", "Semelhança", "Estado"}
	matchRows := func(list []domain.MatchResult) [][]any {
		rows := make([][]any, 0, len(list))
		for _, m := range list {
			rows = append(rows, []any{
				m.SourceID, m.TargetID, m.NetAmount, m.AmountDiff,
				m.DateDiffDays, m.DescriptionSimilarity, string(m.Status),
			})
		}
		return rows
	}
	if err := writeSheet(f, "Conciliados", matchHeader, matchRows(res.Matches)); err != nil {
		return nil, err
	}
	if err := writeSheet(f, "Potenciais", matchHeader, matchRows(res.Potential)); err != nil {
		return nil, err
	}

	movHeader := []string{"ID", "Data", "Descritivo", "Débito", "Crédito", "Valor Líquido"}
	movRows := func(list []domain.CanonicalMovement) [][]any {
		rows := make([][]any, 0, len(list))
		for i := range list {
			m := &list[i]
			rows = append(rows, []any{m.ID, movementDate(m), m.Description, m.Debit, m.Credit, m.NetAmount})
		}
		return rows
	}
	if err := writeSheet(f, "So Extrato", movHeader, movRows(res.UnmatchedSource)); err != nil {
		return nil, err
	}
	if err := writeSheet(f, "So Contabilidade", movHeader, movRows(res.UnmatchedTarget)); err != nil {
		return nil, err
	}

	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}
	return f, nil
}

// FiscalWorkbook renders a fiscal run into the four partition sheets.
func FiscalWorkbook(run *repository.Run, res *fiscal.Result) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := writeSheet(f, "Resumo", []string{"Campo", "Valor"}, [][]any{
		{"Execução", run.ID},
		{"Data", fmtDate(run)},
		{"Total AGT", res.Summary.TotalAuthority},
		{"Total contabilidade", res.Summary.TotalLedger},
		{"Conciliados", res.Summary.Matched},
		{"Divergência IVA", res.Summary.VATDivergent},
		{"Só no AGT", res.Summary.OnlyInAuthority},
		{"Só na contabilidade", res.Summary.OnlyInLedger},
	}); err != nil {
		return nil, err
	}

	pairHeader := []string{"NIF", "Documento", "Valor", "IVA AGT", "IVA Contab.", "Fornecedor"}
	pairRows := func(list []domain.FiscalPair) [][]any {
		rows := make([][]any, 0, len(list))
		for _, p := range list {
			rows = append(rows, []any{
				p.Authority.TaxID, p.Authority.DocumentNumber,
				p.Authority.DocumentValue.InexactFloat64(),
				p.Authority.DeductibleVAT.InexactFloat64(),
				p.Ledger.DeductibleVAT.InexactFloat64(),
				p.Authority.PartyName,
			})
		}
		return rows
	}
	if err := writeSheet(f, "Conciliados", pairHeader, pairRows(res.Matched)); err != nil {
		return nil, err
	}
	if err := writeSheet(f, "Divergencia IVA", pairHeader, pairRows(res.VATDivergent)); err != nil {
		return nil, err
	}

	recHeader := []string{"NIF", "Documento", "Valor", "IVA", "Fornecedor"}
	recRows := func(list []domain.FiscalRecord) [][]any {
		rows := make([][]any, 0, len(list))
		for _, r := range list {
			rows = append(rows, []any{
				r.TaxID, r.DocumentNumber,
				r.DocumentValue.InexactFloat64(), r.DeductibleVAT.InexactFloat64(),
				r.PartyName,
			})
		}
		return rows
	}
	if err := writeSheet(f, "So AGT", recHeader, recRows(res.OnlyInAuthority)); err != nil {
		return nil, err
	}
	if err := writeSheet(f, "So Contabilidade", recHeader, recRows(res.OnlyInLedger)); err != nil {
		return nil, err
	}

	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}
	return f, nil
}
