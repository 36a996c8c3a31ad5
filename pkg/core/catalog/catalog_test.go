package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"dart_accounts/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()
	require.NotNil(t, c)
	assert.Same(t, c, Default())

	d, ok := c.Lookup("BS_TOTAL_ASSETS")
	require.True(t, ok)
	assert.Equal(t, models.BalanceSheet, d.StatementType)
	assert.Contains(t, d.IDs, "ifrs-full_assets")
	assert.Contains(t, d.Names, "자산총계")

	_, ok = c.Lookup("NOPE")
	assert.False(t, ok)
}

func TestListScopedByStatement(t *testing.T) {
	c := Default()

	bs := c.List(models.BalanceSheet)
	cis := c.List(models.ComprehensiveIncome)
	require.NotEmpty(t, bs)
	require.NotEmpty(t, cis)
	assert.Equal(t, c.Len(), len(bs)+len(cis))

	for _, e := range bs {
		d, _ := c.Lookup(e.Key)
		assert.Equal(t, models.BalanceSheet, d.StatementType, e.Key)
	}
	for _, e := range cis {
		d, _ := c.Lookup(e.Key)
		assert.Equal(t, models.ComprehensiveIncome, d.StatementType, e.Key)
	}
}

func TestListKeepsRegistrationOrder(t *testing.T) {
	c, err := New([]Definition{
		{Key: "B", StatementType: models.BalanceSheet, Names: []string{"b"}},
		{Key: "C", StatementType: models.ComprehensiveIncome, Names: []string{"c"}},
		{Key: "A", StatementType: models.BalanceSheet, Names: []string{"a"}},
	})
	require.NoError(t, err)

	assert.Equal(t, []Entry{{Key: "B", Label: "B"}, {Key: "A", Label: "A"}}, c.List(models.BalanceSheet))
}

func TestNewRejectsRomanNumeralOnlyNames(t *testing.T) {
	_, err := New([]Definition{
		{Key: "X", StatementType: models.BalanceSheet, Names: []string{"x", "IV.", "(ii)"}},
	})
	assert.ErrorIs(t, err, ErrNoMatchValues)
}

func TestNewNormalizes(t *testing.T) {
	c, err := New([]Definition{{
		Key:           "K",
		StatementType: models.BalanceSheet,
		Label:         "k",
		IDs:           []string{" IFRS-Full_Assets ", "ifrs-full_assets", ""},
		Names:         []string{"자산 총계", "자산총계", "I."},
	}})
	require.NoError(t, err)

	d, _ := c.Lookup("K")
	assert.Equal(t, []string{"ifrs-full_assets"}, d.IDs)
	assert.Equal(t, []string{"자산총계"}, d.Names)
}

func TestNewRejectsInvalid(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrEmptyCatalog)

	_, err = New([]Definition{{StatementType: models.BalanceSheet, Names: []string{"a"}}})
	assert.ErrorIs(t, err, ErrMissingKey)

	_, err = New([]Definition{
		{Key: "A", StatementType: models.BalanceSheet, Names: []string{"a"}},
		{Key: "A", StatementType: models.BalanceSheet, Names: []string{"b"}},
	})
	assert.ErrorIs(t, err, ErrDuplicateKey)

	_, err = New([]Definition{{Key: "A", StatementType: models.BalanceSheet, Names: []string{"()"}}})
	assert.ErrorIs(t, err, ErrNoMatchValues)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	content := `
definitions:
  - key: CIS_REVENUE
    statement_type: cis
    label: 매출
    ids: [ifrs-full_Revenue]
    names: [매출액]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	c, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []Entry{{Key: "CIS_REVENUE", Label: "매출"}}, c.List(models.ComprehensiveIncome))

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParseRejectsUnknownStatement(t *testing.T) {
	_, err := Parse([]byte("definitions:\n  - key: A\n    statement_type: CF\n    names: [a]\n"))
	assert.ErrorIs(t, err, models.ErrInvalidField)
}
