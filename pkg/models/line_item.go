package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidField is returned when an upstream row carries a value outside the
// known enums. Rows are validated once, where they enter the engine.
var ErrInvalidField = errors.New("invalid line item field")

// StatementType is the DART sj_div of a line item.
type StatementType string

const (
	BalanceSheet        StatementType = "BS"
	ComprehensiveIncome StatementType = "CIS"
)

// FsDiv distinguishes separate (OFS) and consolidated (CFS) statements.
type FsDiv string

const (
	Separate     FsDiv = "OFS"
	Consolidated FsDiv = "CFS"
)

// ReportCode is the DART reprt_code filing period.
type ReportCode string

const (
	ReportAnnual   ReportCode = "11011"
	ReportHalfYear ReportCode = "11012"
	ReportQ1       ReportCode = "11013"
	ReportQ3       ReportCode = "11014"
)

// ParseStatementType validates an sj_div value.
func ParseStatementType(s string) (StatementType, error) {
	switch st := StatementType(strings.ToUpper(strings.TrimSpace(s))); st {
	case BalanceSheet, ComprehensiveIncome:
		return st, nil
	}
	return "", fmt.Errorf("%w: sj_div %q", ErrInvalidField, s)
}

// ParseFsDiv validates an fs_div value.
func ParseFsDiv(s string) (FsDiv, error) {
	switch fd := FsDiv(strings.ToUpper(strings.TrimSpace(s))); fd {
	case Separate, Consolidated:
		return fd, nil
	}
	return "", fmt.Errorf("%w: fs_div %q", ErrInvalidField, s)
}

// ParseReportCode validates a reprt_code value.
func ParseReportCode(s string) (ReportCode, error) {
	switch rc := ReportCode(strings.TrimSpace(s)); rc {
	case ReportAnnual, ReportHalfYear, ReportQ1, ReportQ3:
		return rc, nil
	}
	return "", fmt.Errorf("%w: reprt_code %q", ErrInvalidField, s)
}

// NormalizedCache holds the lazily computed matching keys stored next to a
// line item. A nil field has not been computed yet.
//
// CanonKey is the empty string (not nil) when the row was classified and no
// canonical definition matched.
type NormalizedCache struct {
	AccountNmNorm *string `json:"account_nm_norm"`
	AccountIDNorm *string `json:"account_id_norm"`
	CanonKey      *string `json:"canon_key"`
	CanonScore    *int    `json:"canon_score"`
}

// Complete reports whether the cache needs no backfill.
func (c NormalizedCache) Complete() bool {
	return c.AccountNmNorm != nil && c.AccountIDNorm != nil && c.CanonKey != nil
}

// RawLineItem is one financial statement line as filed by one company.
type RawLineItem struct {
	ID           int64               `json:"id"`
	CorpCode     string              `json:"corp_code"`
	BsnsYear     string              `json:"bsns_year"`
	ReprtCode    ReportCode          `json:"reprt_code"`
	FsDiv        FsDiv               `json:"fs_div"`
	SjDiv        StatementType       `json:"sj_div"`
	AccountID    *string             `json:"account_id"`
	AccountNm    *string             `json:"account_nm"`
	ThstrmAmount decimal.NullDecimal `json:"thstrm_amount"`
	FrmtrmAmount decimal.NullDecimal `json:"frmtrm_amount"`
	Ord          *int                `json:"ord"`
	Currency     *string             `json:"currency"`

	Cache NormalizedCache `json:"cache"`
}

// NoStandardAccountID is what DART files as account_id for company-specific
// lines that have no standard element.
const NoStandardAccountID = "-표준계정코드 미사용-"

// AccountIDPtr trims a filed account_id and maps "" and NoStandardAccountID
// to nil.
func AccountIDPtr(raw *string) *string {
	if raw == nil {
		return nil
	}
	id := strings.TrimSpace(*raw)
	if id == NoStandardAccountID {
		return nil
	}
	return StringPtr(id)
}

// HasAccountID reports whether the line carries a non-empty account_id.
func (li RawLineItem) HasAccountID() bool {
	return li.AccountID != nil && *li.AccountID != ""
}

// Scope selects one reporting period/statement. Empty fields match anything.
type Scope struct {
	Year      string        `json:"year"`
	ReprtCode ReportCode    `json:"reprt_code"`
	FsDiv     FsDiv         `json:"fs_div"`
	SjDiv     StatementType `json:"sj_div"`
}

// Contains reports whether the line item falls inside the scope.
func (s Scope) Contains(li RawLineItem) bool {
	if s.Year != "" && s.Year != li.BsnsYear {
		return false
	}
	if s.ReprtCode != "" && s.ReprtCode != li.ReprtCode {
		return false
	}
	if s.FsDiv != "" && s.FsDiv != li.FsDiv {
		return false
	}
	if s.SjDiv != "" && s.SjDiv != li.SjDiv {
		return false
	}
	return true
}

// StringPtr returns nil for "" so optional text columns stay null.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
