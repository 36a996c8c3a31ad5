// Package compare reconciles one account across many companies for a single
// reporting period, producing one amount per company.
package compare

import (
	"errors"
	"slices"
	"strings"

	"dart_accounts/pkg/core/catalog"
	"dart_accounts/pkg/core/classify"
	"dart_accounts/pkg/models"

	"github.com/shopspring/decimal"
)

// ErrValidation is returned when the request names neither a canonical key nor
// a raw account.
var ErrValidation = errors.New("canon_key or account_id/account_nm is required")

// Mode selects how lines are matched to the requested account.
type Mode string

const (
	ModeRaw       Mode = "raw"
	ModeCanonical Mode = "canonical"
)

// Selector names the account to compare. CanonKey takes precedence.
type Selector struct {
	CanonKey  catalog.Key `json:"canon_key,omitempty"`
	AccountID string      `json:"account_id,omitempty"`
	AccountNm string      `json:"account_nm,omitempty"`
}

// Mode reports which reconciliation the selector asks for.
func (s Selector) Mode() (Mode, error) {
	switch {
	case s.CanonKey != "":
		return ModeCanonical, nil
	case s.AccountID != "" || s.AccountNm != "":
		return ModeRaw, nil
	}
	return "", ErrValidation
}

// Request is one peer comparison.
type Request struct {
	Scope    models.Scope
	Selector Selector
	// CorpCodes limits the comparison to these companies. In raw mode every
	// listed company gets a row, zero-valued when nothing matched.
	CorpCodes []string
	// CorpNames fills Row.CorpName; unknown codes get an empty name.
	CorpNames map[string]string
}

// Row is the reconciled amount of one company.
type Row struct {
	CorpCode     string          `json:"corp_code"`
	CorpName     string          `json:"corp_name"`
	ThstrmAmount decimal.Decimal `json:"thstrm_amount"`
	FrmtrmAmount decimal.Decimal `json:"frmtrm_amount"`
}

// Candidate is a line that classified to the requested canonical key.
type Candidate struct {
	Item  models.RawLineItem
	Score classify.Score
}

// CompareCandidates orders candidates best first: higher score, then larger
// absolute current-period amount. Missing amounts count as zero. Candidates
// equal under both rules compare as 0 and the earlier line is kept.
func CompareCandidates(a, b Candidate) int {
	if a.Score != b.Score {
		if a.Score > b.Score {
			return -1
		}
		return 1
	}
	return amountOf(b.Item.ThstrmAmount).Abs().Cmp(amountOf(a.Item.ThstrmAmount).Abs())
}

// CompareRows orders output rows by current amount descending, then corp code.
func CompareRows(a, b Row) int {
	if c := b.ThstrmAmount.Cmp(a.ThstrmAmount); c != 0 {
		return c
	}
	return strings.Compare(a.CorpCode, b.CorpCode)
}

// Comparator runs peer comparisons. It is safe for concurrent use when its
// classifier is.
type Comparator struct {
	classifier classify.Interface
}

// New returns a comparator using c for canonical mode.
func New(c classify.Interface) *Comparator {
	return &Comparator{classifier: c}
}

// Compare reconciles items, which the caller has already read for the
// request's scope and companies.
func (c *Comparator) Compare(req Request, items []models.RawLineItem) ([]Row, error) {
	mode, err := req.Selector.Mode()
	if err != nil {
		return nil, err
	}

	items = c.inScope(req, items)

	var rows []Row
	switch mode {
	case ModeCanonical:
		rows = c.canonical(req, items)
	default:
		rows = c.raw(req, items)
	}

	for i := range rows {
		rows[i].CorpName = req.CorpNames[rows[i].CorpCode]
	}
	slices.SortFunc(rows, CompareRows)
	return rows, nil
}

func (c *Comparator) inScope(req Request, items []models.RawLineItem) []models.RawLineItem {
	var wanted map[string]bool
	if len(req.CorpCodes) > 0 {
		wanted = make(map[string]bool, len(req.CorpCodes))
		for _, code := range req.CorpCodes {
			wanted[code] = true
		}
	}

	out := make([]models.RawLineItem, 0, len(items))
	for _, li := range items {
		if !req.Scope.Contains(li) {
			continue
		}
		if wanted != nil && !wanted[li.CorpCode] {
			continue
		}
		out = append(out, li)
	}
	return out
}

// raw sums every line whose account matches exactly, per company. Companies
// that report one account on several ord lines are summed once per line.
func (c *Comparator) raw(req Request, items []models.RawLineItem) []Row {
	sel := req.Selector
	match := func(li models.RawLineItem) bool {
		if sel.AccountID != "" {
			return models.Deref(li.AccountID) == sel.AccountID
		}
		return models.Deref(li.AccountNm) == sel.AccountNm
	}

	sums := map[string]*Row{}
	var order []string
	ensure := func(code string) *Row {
		r, ok := sums[code]
		if !ok {
			r = &Row{CorpCode: code}
			sums[code] = r
			order = append(order, code)
		}
		return r
	}

	for _, code := range req.CorpCodes {
		ensure(code)
	}
	for _, li := range items {
		if !match(li) {
			continue
		}
		r := ensure(li.CorpCode)
		r.ThstrmAmount = r.ThstrmAmount.Add(amountOf(li.ThstrmAmount))
		r.FrmtrmAmount = r.FrmtrmAmount.Add(amountOf(li.FrmtrmAmount))
	}

	rows := make([]Row, 0, len(order))
	for _, code := range order {
		rows = append(rows, *sums[code])
	}
	return rows
}

// canonical keeps one best line per company among lines classifying to the
// requested key. Companies without such a line get no row.
func (c *Comparator) canonical(req Request, items []models.RawLineItem) []Row {
	key := req.Selector.CanonKey

	best := map[string]Candidate{}
	var order []string
	for _, li := range items {
		res, ok := c.classifier.Classify(li.SjDiv, models.Deref(li.AccountID), models.Deref(li.AccountNm))
		if !ok || res.Key != key {
			continue
		}
		cand := Candidate{Item: li, Score: res.Score}
		cur, seen := best[li.CorpCode]
		if !seen {
			order = append(order, li.CorpCode)
		}
		if !seen || CompareCandidates(cand, cur) < 0 {
			best[li.CorpCode] = cand
		}
	}

	rows := make([]Row, 0, len(order))
	for _, code := range order {
		cand := best[code]
		rows = append(rows, Row{
			CorpCode:     code,
			ThstrmAmount: amountOf(cand.Item.ThstrmAmount),
			FrmtrmAmount: amountOf(cand.Item.FrmtrmAmount),
		})
	}
	return rows
}

func amountOf(v decimal.NullDecimal) decimal.Decimal {
	if !v.Valid {
		return decimal.Zero
	}
	return v.Decimal
}
