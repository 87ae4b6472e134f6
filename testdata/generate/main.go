// Generates sample input files for manual testing: a BAI-style bank statement,
// the matching ledger export and the two fiscal maps (AGT and supplier). The
// movement pair is seeded with exact matches, date-shifted fuzzy candidates
// and rows present on only one side; the fiscal pair with VAT divergences and
// one-sided documents.
package main

import (
	"encoding/csv"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ptAmount formats 1234.5 as "1.234,50".
func ptAmount(v float64) string {
	s := fmt.Sprintf("%.2f", math.Abs(v))
	parts := strings.SplitN(s, ".", 2)
	intPart, decPart := parts[0], parts[1]

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	out := b.String() + "," + decPart
	if v < 0 {
		out = "-" + out
	}
	return out
}

type movement struct {
	date        time.Time
	description string
	debit       float64
	credit      float64
}

func main() {
	rng := rand.New(rand.NewSource(42))
	baseDir := "testdata"
	if len(os.Args) > 1 {
		baseDir = os.Args[1]
	}

	start := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)

	descriptions := []string{
		"TRF RENDA ESCRITORIO",
		"PAG FORNECEDOR ALFA LDA",
		"DEPOSITO CLIENTE BETA",
		"TAXA MANUTENCAO CONTA",
		"PAG SEGURO VIATURA",
		"TRF SALARIOS",
		"COMPRA COMBUSTIVEL",
		"PAG ENERGIA ELECTRICA",
		"RECEBIMENTO CLIENTE GAMA",
		"PAG COMUNICACOES",
	}

	var bank, ledger []movement
	for i := 0; i < 60; i++ {
		date := start.AddDate(0, 0, rng.Intn(28))
		desc := descriptions[rng.Intn(len(descriptions))]
		amount := math.Round((50+rng.Float64()*4950)*100) / 100

		m := movement{date: date, description: desc}
		if rng.Float64() < 0.7 {
			m.debit = amount
		} else {
			m.credit = amount
		}
		bank = append(bank, m)

		roll := rng.Float64()
		switch {
		case roll < 0.70:
			// Exact counterpart.
			ledger = append(ledger, m)
		case roll < 0.85:
			// Fuzzy counterpart: posted a few days later, description trimmed.
			shifted := m
			shifted.date = date.AddDate(0, 0, 1+rng.Intn(3))
			shifted.description = strings.TrimPrefix(desc, "TRF ")
			shifted.description = strings.TrimPrefix(shifted.description, "PAG ")
			ledger = append(ledger, shifted)
		default:
			// Bank-only movement.
		}
	}
	// A few ledger-only entries.
	for i := 0; i < 6; i++ {
		ledger = append(ledger, movement{
			date:        start.AddDate(0, 0, rng.Intn(28)),
			description: fmt.Sprintf("LANCAMENTO MANUAL %d", i+1),
			debit:       math.Round((20+rng.Float64()*500)*100) / 100,
		})
	}

	writeBankCSV(filepath.Join(baseDir, "extrato_bancario.csv"), bank)
	writeLedgerCSV(filepath.Join(baseDir, "contabilidade.csv"), ledger)
	writeFiscalFiles(rng, baseDir)

	fmt.Println("Sample files written to", baseDir)
}

func writeBankCSV(path string, movements []movement) {
	f, err := os.Create(path)
	if err != nil {
		panic(err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Comma = ';'
	defer w.Flush()

	w.Write([]string{"Data Mov.", "Data Valor", "Descritivo", "Débito", "Crédito", "Saldo"})

	balance := 10000.0
	for _, m := range movements {
		balance = math.Round((balance-m.debit+m.credit)*100) / 100
		debit, credit := "", ""
		if m.debit > 0 {
			debit = ptAmount(m.debit)
		}
		if m.credit > 0 {
			credit = ptAmount(m.credit)
		}
		w.Write([]string{
			m.date.Format("02/01/2006"),
			m.date.Format("02/01/2006"),
			m.description,
			debit,
			credit,
			ptAmount(balance),
		})
	}
	fmt.Printf("Generated %d bank movements -> %s\n", len(movements), path)
}

func writeLedgerCSV(path string, movements []movement) {
	f, err := os.Create(path)
	if err != nil {
		panic(err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Comma = ';'
	defer w.Flush()

	w.Write([]string{"Data Movimento", "Descrição", "Débito", "Crédito"})
	for _, m := range movements {
		debit, credit := "", ""
		if m.debit > 0 {
			debit = ptAmount(m.debit)
		}
		if m.credit > 0 {
			credit = ptAmount(m.credit)
		}
		w.Write([]string{m.date.Format("02/01/2006"), m.description, debit, credit})
	}
	fmt.Printf("Generated %d ledger entries -> %s\n", len(movements), path)
}

type fiscalDoc struct {
	nif    string
	name   string
	docNum string
	value  float64
	vat    float64
}

func writeFiscalFiles(rng *rand.Rand, baseDir string) {
	suppliers := []struct{ nif, name string }{
		{"5417000001", "FORNECEDOR ALFA LDA"},
		{"5417000002", "BETA COMERCIO GERAL"},
		{"5417000003", "GAMA SERVICOS SA"},
		{"5417000004", "DELTA LOGISTICA LDA"},
	}

	var agt, supplier []fiscalDoc
	for i := 0; i < 40; i++ {
		s := suppliers[rng.Intn(len(suppliers))]
		value := math.Round((100+rng.Float64()*9900)*100) / 100
		doc := fiscalDoc{
			nif:    s.nif,
			name:   s.name,
			docNum: fmt.Sprintf("FT 2025/%d", i+1),
			value:  value,
			vat:    math.Round(value*0.14*100) / 100,
		}
		agt = append(agt, doc)

		roll := rng.Float64()
		switch {
		case roll < 0.75:
			supplier = append(supplier, doc)
		case roll < 0.88:
			// Same document booked with a different deductible VAT.
			diverged := doc
			diverged.vat = math.Round(doc.vat*0.5*100) / 100
			supplier = append(supplier, diverged)
		default:
			// AGT-only document.
		}
	}
	for i := 0; i < 4; i++ {
		s := suppliers[rng.Intn(len(suppliers))]
		value := math.Round((100+rng.Float64()*2000)*100) / 100
		supplier = append(supplier, fiscalDoc{
			nif:    s.nif,
			name:   s.name,
			docNum: fmt.Sprintf("FR 2025/%d", i+1),
			value:  value,
			vat:    math.Round(value*0.14*100) / 100,
		})
	}

	writeCSV(filepath.Join(baseDir, "mapa_agt.csv"),
		[]string{"Nº de Identificação Fiscal", "Nome / Firma", "Nº do Documento", "Valor do Documento", "IVA Dedutível - Valor"},
		agt)
	writeCSV(filepath.Join(baseDir, "mapa_fornecedores.csv"),
		[]string{"NIF", "NOME / DENOMINAÇÃO", "NÚMERO DO DOCUMENTO", "VALOR DO DOCUMENTO", "IVA DEDUTÍVEL VALOR"},
		supplier)
}

func writeCSV(path string, header []string, docs []fiscalDoc) {
	f, err := os.Create(path)
	if err != nil {
		panic(err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Comma = ';'
	defer w.Flush()

	w.Write(header)
	for _, d := range docs {
		w.Write([]string{d.nif, d.name, d.docNum, ptAmount(d.value), ptAmount(d.vat)})
	}
	fmt.Printf("Generated %d fiscal documents -> %s\n", len(docs), path)
}
