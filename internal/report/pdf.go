package report

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"

	"github.com/contacerta/reconciler/internal/domain"
	"github.com/contacerta/reconciler/internal/fiscal"
	"github.com/contacerta/reconciler/internal/matching"
	"github.com/contacerta/reconciler/internal/repository"
)

// maxDetailRows caps the per-category detail in the PDF. The Excel workbook
// carries the full data; the PDF is a signing document, not an export.
const maxDetailRows = 40

type pdfDoc struct {
	*fpdf.Fpdf
	tr func(string) string
}

func newPDF(title string) *pdfDoc {
	p := fpdf.New("P", "mm", "A4", "")
	doc := &pdfDoc{Fpdf: p, tr: p.UnicodeTranslatorFromDescriptor("")}
	p.SetTitle(title, true)
	p.SetAutoPageBreak(true, 15)
	p.AddPage()
	p.SetFont("Helvetica", "B", 14)
	p.CellFormat(0, 10, doc.tr(title), "", 1, "C", false, 0, "")
	p.Ln(2)
	return doc
}

func (d *pdfDoc) meta(run *repository.Run) {
	d.SetFont("Helvetica", "", 9)
	d.CellFormat(0, 5, d.tr(fmt.Sprintf("Execução: %s", run.ID)), "", 1, "L", false, 0, "")
	d.CellFormat(0, 5, d.tr(fmt.Sprintf("Data: %s", run.CreatedAt.Format("2006-01-02 15:04"))), "", 1, "L", false, 0, "")
	d.Ln(3)
}

func (d *pdfDoc) sectionTitle(s string) {
	d.SetFont("Helvetica", "B", 11)
	d.CellFormat(0, 7, d.tr(s), "", 1, "L", false, 0, "")
}

func (d *pdfDoc) summaryRow(label string, value any) {
	d.SetFont("Helvetica", "", 9)
	d.CellFormat(70, 6, d.tr(label), "1", 0, "L", false, 0, "")
	d.CellFormat(40, 6, fmt.Sprintf("%v", value), "1", 1, "R", false, 0, "")
}

func (d *pdfDoc) tableHeader(widths []float64, cols []string) {
	d.SetFont("Helvetica", "B", 8)
	d.SetFillColor(217, 217, 217)
	for i, c := range cols {
		d.CellFormat(widths[i], 6, d.tr(c), "1", 0, "L", true, 0, "")
	}
	d.Ln(-1)
}

func (d *pdfDoc) tableRow(widths []float64, cells []string) {
	d.SetFont("Helvetica", "", 8)
	for i, c := range cells {
		d.CellFormat(widths[i], 5, d.tr(c), "1", 0, "L", false, 0, "")
	}
	d.Ln(-1)
}

func (d *pdfDoc) truncNote(total int) {
	if total > maxDetailRows {
		d.SetFont("Helvetica", "I", 8)
		d.CellFormat(0, 5, d.tr(fmt.Sprintf("... %d linhas adicionais no ficheiro Excel", total-maxDetailRows)), "", 1, "L", false, 0, "")
	}
	d.Ln(3)
}

func (d *pdfDoc) output() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// MovementPDF renders a movement run summary with truncated detail tables.
func MovementPDF(run *repository.Run, res *matching.Result) ([]byte, error) {
	d := newPDF("Relatório de Conciliação Bancária")
	d.meta(run)

	d.sectionTitle("Resumo")
	d.summaryRow("Total extrato", res.Summary.TotalSource)
	d.summaryRow("Total contabilidade", res.Summary.TotalTarget)
	d.summaryRow("Conciliados", res.Summary.Matched)
	d.summaryRow("Potenciais", res.Summary.Potential)
	d.summaryRow("Só no extrato", res.Summary.UnmatchedSource)
	d.summaryRow("Só na contabilidade", res.Summary.UnmatchedTarget)
	d.Ln(4)

	widths := []float64{28, 28, 26, 22, 18, 22, 26}
	cols := []string{"Extrato", "Contab.", "Valor", "Dif. Valor", "Dias", "Semelhança", "Estado"}
	detail := func(title string, list []domain.MatchResult) {
		d.sectionTitle(title)
		d.tableHeader(widths, cols)
		for i, m := range list {
			if i == maxDetailRows {
				break
			}
			d.tableRow(widths, []string{
				m.SourceID, m.TargetID,
				fmt.Sprintf("%.2f", m.NetAmount),
				fmt.Sprintf("%.2f", m.AmountDiff),
				fmt.Sprintf("%d", m.DateDiffDays),
				fmt.Sprintf("%.2f", m.DescriptionSimilarity),
				string(m.Status),
			})
		}
		d.truncNote(len(list))
	}
	detail("Conciliados", res.Matches)
	detail("Potenciais", res.Potential)

	movWidths := []float64{24, 24, 92, 30}
	movCols := []string{"ID", "Data", "Descritivo", "Valor Líquido"}
	movDetail := func(title string, list []domain.CanonicalMovement) {
		d.sectionTitle(title)
		d.tableHeader(movWidths, movCols)
		for i := range list {
			if i == maxDetailRows {
				break
			}
			m := &list[i]
			d.tableRow(movWidths, []string{
				m.ID, movementDate(m), m.Description,
				fmt.Sprintf("%.2f", m.NetAmount),
			})
		}
		d.truncNote(len(list))
	}
	movDetail("Só no Extrato", res.UnmatchedSource)
	movDetail("Só na Contabilidade", res.UnmatchedTarget)

	return d.output()
}

// FiscalPDF renders a fiscal run summary with truncated partition tables.
func FiscalPDF(run *repository.Run, res *fiscal.Result) ([]byte, error) {
	d := newPDF("Relatório de Conciliação Fiscal")
	d.meta(run)

	d.sectionTitle("Resumo")
	d.summaryRow("Total AGT", res.Summary.TotalAuthority)
	d.summaryRow("Total contabilidade", res.Summary.TotalLedger)
	d.summaryRow("Conciliados", res.Summary.Matched)
	d.summaryRow("Divergência IVA", res.Summary.VATDivergent)
	d.summaryRow("Só no AGT", res.Summary.OnlyInAuthority)
	d.summaryRow("Só na contabilidade", res.Summary.OnlyInLedger)
	d.Ln(4)

	pairWidths := []float64{28, 34, 28, 25, 25, 50}
	pairCols := []string{"NIF", "Documento", "Valor", "IVA AGT", "IVA Contab.", "Fornecedor"}
	pairDetail := func(title string, list []domain.FiscalPair) {
		d.sectionTitle(title)
		d.tableHeader(pairWidths, pairCols)
		for i, p := range list {
			if i == maxDetailRows {
				break
			}
			d.tableRow(pairWidths, []string{
				p.Authority.TaxID, p.Authority.DocumentNumber,
				p.Authority.DocumentValue.StringFixed(2),
				p.Authority.DeductibleVAT.StringFixed(2),
				p.Ledger.DeductibleVAT.StringFixed(2),
				p.Authority.PartyName,
			})
		}
		d.truncNote(len(list))
	}
	pairDetail("Conciliados", res.Matched)
	pairDetail("Divergência IVA", res.VATDivergent)

	recWidths := []float64{28, 36, 28, 25, 73}
	recCols := []string{"NIF", "Documento", "Valor", "IVA", "Fornecedor"}
	recDetail := func(title string, list []domain.FiscalRecord) {
		d.sectionTitle(title)
		d.tableHeader(recWidths, recCols)
		for i, r := range list {
			if i == maxDetailRows {
				break
			}
			d.tableRow(recWidths, []string{
				r.TaxID, r.DocumentNumber,
				r.DocumentValue.StringFixed(2),
				r.DeductibleVAT.StringFixed(2),
				r.PartyName,
			})
		}
		d.truncNote(len(list))
	}
	recDetail("Só no AGT", res.OnlyInAuthority)
	recDetail("Só na Contabilidade", res.OnlyInLedger)

	return d.output()
}
