// Package report renders peer comparison rows as Markdown and HTML.
package report

import (
	"bytes"
	"fmt"
	"strings"

	"dart_accounts/pkg/core/compare"

	"github.com/shopspring/decimal"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var hundred = decimal.NewFromInt(100)

// md is shared; goldmark converters are safe for concurrent use.
var md = goldmark.New(goldmark.WithExtensions(extension.Table))

// Markdown renders rows as a titled table with a prior-period change column.
// Row order is kept as given.
func Markdown(title string, rows []compare.Row) string {
	var b strings.Builder
	if title != "" {
		fmt.Fprintf(&b, "## %s\n\n", escape(title))
	}
	if len(rows) == 0 {
		b.WriteString("_No matching accounts._\n")
		return b.String()
	}

	b.WriteString("| 회사 | 코드 | 당기 | 전기 | 증감 | 증감률 |\n")
	b.WriteString("|---|---|---:|---:|---:|---:|\n")
	for _, r := range rows {
		change := r.ThstrmAmount.Sub(r.FrmtrmAmount)
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n",
			escape(r.CorpName),
			escape(r.CorpCode),
			FormatAmount(r.ThstrmAmount),
			FormatAmount(r.FrmtrmAmount),
			FormatAmount(change),
			changeRate(change, r.FrmtrmAmount),
		)
	}
	return b.String()
}

// HTML converts the Markdown report to an HTML fragment.
func HTML(title string, rows []compare.Row) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(Markdown(title, rows)), &buf); err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}
	return buf.String(), nil
}

// FormatAmount prints a whole-won amount with thousands separators.
func FormatAmount(d decimal.Decimal) string {
	s := d.Round(0).Abs().StringFixed(0)
	var b strings.Builder
	if d.Round(0).IsNegative() {
		b.WriteByte('-')
	}
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return b.String()
}

func changeRate(change, prior decimal.Decimal) string {
	if prior.IsZero() {
		return "-"
	}
	return change.Div(prior.Abs()).Mul(hundred).StringFixed(1) + "%"
}

func escape(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
