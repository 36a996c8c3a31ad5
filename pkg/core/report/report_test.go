package report

import (
	"strings"
	"testing"

	"dart_accounts/pkg/core/compare"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rows() []compare.Row {
	return []compare.Row{
		{CorpCode: "00126380", CorpName: "삼성전자", ThstrmAmount: decimal.NewFromInt(455905980000000), FrmtrmAmount: decimal.NewFromInt(448424507000000)},
		{CorpCode: "00164779", CorpName: "SK하이닉스", ThstrmAmount: decimal.NewFromInt(100330000), FrmtrmAmount: decimal.NewFromInt(200000000)},
		{CorpCode: "00999999", CorpName: "A|B", ThstrmAmount: decimal.NewFromInt(5)},
	}
}

func TestFormatAmount(t *testing.T) {
	tests := map[string]decimal.Decimal{
		"0":                   decimal.Zero,
		"999":                 decimal.NewFromInt(999),
		"1,000":               decimal.NewFromInt(1000),
		"-1,234,567":          decimal.NewFromInt(-1234567),
		"455,905,980,000,000": decimal.NewFromInt(455905980000000),
		"13":                  decimal.RequireFromString("12.6"),
	}
	for want, in := range tests {
		assert.Equal(t, want, FormatAmount(in))
	}
}

func TestMarkdown(t *testing.T) {
	out := Markdown("자산총계 2024", rows())

	assert.True(t, strings.HasPrefix(out, "## 자산총계 2024\n"))
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 7)
	assert.Equal(t, "| 삼성전자 | 00126380 | 455,905,980,000,000 | 448,424,507,000,000 | 7,481,473,000,000 | 1.7% |", lines[4])
	assert.Equal(t, "| SK하이닉스 | 00164779 | 100,330,000 | 200,000,000 | -99,670,000 | -49.8% |", lines[5])
	assert.Equal(t, `| A\|B | 00999999 | 5 | 0 | 5 | - |`, lines[6])
}

func TestMarkdownEmpty(t *testing.T) {
	assert.Equal(t, "_No matching accounts._\n", Markdown("", nil))
}

func TestHTML(t *testing.T) {
	out, err := HTML("자산총계", rows())
	require.NoError(t, err)

	assert.Contains(t, out, "<h2>자산총계</h2>")
	assert.Contains(t, out, "<table>")
	for _, r := range rows()[:2] {
		assert.Contains(t, out, r.CorpName)
		assert.Contains(t, out, r.CorpCode)
	}
	assert.Contains(t, out, "A|B")
}
