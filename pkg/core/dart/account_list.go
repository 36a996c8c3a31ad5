// Package dart converts OpenDART "single company full financial statements"
// (fnlttSinglAcntAll) responses into validated line items.
package dart

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"dart_accounts/pkg/models"

	"github.com/shopspring/decimal"
)

// OpenDART status codes we act on.
const (
	StatusOK     = "000"
	StatusNoData = "013"
)

// ErrAPIStatus is returned for any OpenDART status other than OK or no-data.
var ErrAPIStatus = errors.New("opendart returned an error status")

type response struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	List    []row  `json:"list"`
}

type row struct {
	CorpCode     string `json:"corp_code"`
	BsnsYear     string `json:"bsns_year"`
	ReprtCode    string `json:"reprt_code"`
	SjDiv        string `json:"sj_div"`
	AccountID    string `json:"account_id"`
	AccountNm    string `json:"account_nm"`
	ThstrmAmount string `json:"thstrm_amount"`
	FrmtrmAmount string `json:"frmtrm_amount"`
	Ord          string `json:"ord"`
	Currency     string `json:"currency"`
}

// ParseResult is the outcome of one response.
type ParseResult struct {
	Items []models.RawLineItem
	// Skipped counts rows of statements other than BS/CIS (CF, SCE, IS).
	Skipped int
}

// ParseAccountList decodes a response body. fsDiv is the fs_div the request
// was made with; the response does not echo it.
func ParseAccountList(r io.Reader, fsDiv models.FsDiv) (ParseResult, error) {
	var resp response
	if err := json.NewDecoder(r).Decode(&resp); err != nil {
		return ParseResult{}, fmt.Errorf("failed to decode opendart response: %w", err)
	}

	switch resp.Status {
	case StatusOK:
	case StatusNoData:
		return ParseResult{}, nil
	default:
		return ParseResult{}, fmt.Errorf("%w: %s %s", ErrAPIStatus, resp.Status, resp.Message)
	}

	var res ParseResult
	for i, rw := range resp.List {
		st, err := models.ParseStatementType(rw.SjDiv)
		if err != nil {
			res.Skipped++
			continue
		}
		li, err := rw.toModel(st, fsDiv)
		if err != nil {
			return ParseResult{}, fmt.Errorf("row %d (%s %s): %w", i, rw.CorpCode, rw.AccountNm, err)
		}
		res.Items = append(res.Items, li)
	}
	return res, nil
}

func (rw row) toModel(st models.StatementType, fsDiv models.FsDiv) (models.RawLineItem, error) {
	rc, err := models.ParseReportCode(rw.ReprtCode)
	if err != nil {
		return models.RawLineItem{}, err
	}
	th, err := ParseAmount(rw.ThstrmAmount)
	if err != nil {
		return models.RawLineItem{}, err
	}
	fr, err := ParseAmount(rw.FrmtrmAmount)
	if err != nil {
		return models.RawLineItem{}, err
	}

	li := models.RawLineItem{
		CorpCode:     rw.CorpCode,
		BsnsYear:     rw.BsnsYear,
		ReprtCode:    rc,
		FsDiv:        fsDiv,
		SjDiv:        st,
		AccountID:    models.AccountIDPtr(&rw.AccountID),
		AccountNm:    models.StringPtr(strings.TrimSpace(rw.AccountNm)),
		ThstrmAmount: th,
		FrmtrmAmount: fr,
		Currency:     models.StringPtr(rw.Currency),
	}
	if ord, err := strconv.Atoi(strings.TrimSpace(rw.Ord)); err == nil {
		li.Ord = &ord
	}
	return li, nil
}

// ParseAmount reads a DART amount: digits with optional thousands separators,
// a leading minus or accounting parentheses. "" and "-" mean not reported.
func ParseAmount(s string) (decimal.NullDecimal, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return decimal.NullDecimal{}, nil
	}

	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}
	s = strings.ReplaceAll(s, ",", "")

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("%w: amount %q", models.ErrInvalidField, s)
	}
	if neg {
		d = d.Neg()
	}
	return decimal.NewNullDecimal(d), nil
}
