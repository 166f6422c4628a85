package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/pkg/errors"
)

var (
	periodRx = regexp.MustCompile(`(?i)statement period.*?(\d{2})/\d{2}/(\d{4})`)
	yearRx   = regexp.MustCompile(`\b(20\d{2})\b`)
	txnRx    = regexp.MustCompile(`^(\d{2}/\d{2})\s+(.+?)\s+(-?[\d,]+\.\d{2})$`)
)

// statementText pulls plain text out of every page of a PDF statement.
func statementText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if os.IsNotExist(err) {
		return "", errors.Wrapf(errInputNotFound, "statement %q", path)
	}
	if err != nil {
		return "", errors.Wrapf(errMalformedInput, "%q: %v", path, err)
	}
	defer f.Close()

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String(), nil
}

// statementYear finds the statement year so MM/DD lines can be dated. The
// statement period header is the reliable source; a bare year anywhere in
// the text is the fallback.
func statementYear(text string) int {
	if m := periodRx.FindStringSubmatch(text); m != nil {
		if y, err := strconv.Atoi(m[2]); err == nil {
			return y
		}
	}
	if m := yearRx.FindStringSubmatch(text); m != nil {
		y, _ := strconv.Atoi(m[1])
		return y
	}
	return time.Now().Year()
}

// extractTransactions parses MM/DD description amount lines out of statement
// text. Lines under an OTHER CREDITS heading keep a positive sign, lines
// under PURCHASES are negated, since the statement prints both unsigned.
func extractTransactions(text string, year int) []Record {
	var recs []Record
	sign := -1.0
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		upper := strings.ToUpper(line)
		switch {
		case strings.Contains(upper, "OTHER CREDITS"):
			sign = 1.0
			continue
		case strings.Contains(upper, "PURCHASES") || strings.Contains(upper, "CHARGES"):
			sign = -1.0
			continue
		}
		m := txnRx.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		date, err := time.ParseInLocation("01/02/2006",
			fmt.Sprintf("%s/%d", m[1], year), time.UTC)
		if err != nil {
			continue
		}
		amt, err := strconv.ParseFloat(strings.ReplaceAll(m[3], ",", ""), 64)
		if err != nil {
			continue
		}
		desc := strings.TrimSpace(m[2])
		recs = append(recs, Record{
			Date:        date,
			Description: desc,
			Payee:       cleanPayee(desc),
			Amount:      sign * abs(amt),
		})
	}
	return recs
}

// runExtract is the `extract` subcommand: read a PDF card statement and
// write its transactions as a CSV the `import` subcommand understands.
func runExtract(cfg *config, pdfPath, outPath string) error {
	text, err := statementText(pdfPath)
	if err != nil {
		return err
	}
	year := statementYear(text)
	recs := extractTransactions(text, year)
	if len(recs) == 0 {
		return errors.Wrapf(errMalformedInput, "no transactions found in %q", pdfPath)
	}

	if outPath == "" {
		outPath = strings.TrimSuffix(pdfPath, ".pdf") + ".csv"
	}
	f, err := os.Create(outPath)
	if err != nil {
		return errors.Wrapf(err, "create %q", outPath)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"Date", "Description", "Amount"}); err != nil {
		return errors.Wrap(err, "write header")
	}
	for _, r := range recs {
		row := []string{r.Date.Format("01/02/2006"), r.Description,
			fmt.Sprintf("%.2f", r.Amount)}
		if err := w.Write(row); err != nil {
			return errors.Wrap(err, "write row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return errors.Wrapf(err, "flush %q", outPath)
	}
	fmt.Printf("Extracted %d transaction(s) from %q into %q.\n", len(recs), pdfPath, outPath)
	return nil
}
