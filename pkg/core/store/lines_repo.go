package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"dart_accounts/pkg/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// ErrRowNotFound is returned when a cache write matches no row.
var ErrRowNotFound = errors.New("line item not found")

// Schema assumption (managed by the dashboard's migrations):
//
//	fin_statement_lines (
//	  id bigserial primary key,
//	  corp_code text, bsns_year text, reprt_code text, fs_div text, sj_div text,
//	  account_id text, account_nm text,
//	  thstrm_amount numeric, frmtrm_amount numeric, ord int, currency text,
//	  account_nm_norm text, account_id_norm text, canon_key text, canon_score int
//	)
//	corps (corp_code text primary key, corp_name text)
const lineColumns = `id, corp_code, bsns_year, reprt_code, fs_div, sj_div,
	account_id, account_nm, thstrm_amount::text, frmtrm_amount::text, ord, currency,
	account_nm_norm, account_id_norm, canon_key, canon_score`

// validRowFilter keeps rows whose enum columns toModel accepts and whose text
// columns scan into Go strings.
const validRowFilter = `corp_code IS NOT NULL
  AND bsns_year IS NOT NULL
  AND btrim(reprt_code) IN ('11011', '11012', '11013', '11014')
  AND upper(btrim(fs_div)) IN ('OFS', 'CFS')`

// querier is the part of pgxpool.Pool the repo needs.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// LinesRepo reads filed line items and writes their cache columns.
type LinesRepo struct {
	db querier
}

// NewLinesRepo creates a repository on db, usually GetPool().
func NewLinesRepo(db querier) *LinesRepo {
	return &LinesRepo{db: db}
}

// linesQuery builds the bulk read for a scope. Cached canon_key values are not
// used to narrow it; they may predate the catalog in use.
func linesQuery(scope models.Scope, corpCodes []string) (string, []any) {
	var (
		where = []string{"sj_div IN ('BS', 'CIS')"}
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(args))))
	}

	if scope.Year != "" {
		add("bsns_year = ?", scope.Year)
	}
	if scope.ReprtCode != "" {
		add("reprt_code = ?", string(scope.ReprtCode))
	}
	if scope.FsDiv != "" {
		add("fs_div = ?", string(scope.FsDiv))
	}
	if scope.SjDiv != "" {
		add("sj_div = ?", string(scope.SjDiv))
	}
	if len(corpCodes) > 0 {
		add("corp_code = ANY(?)", corpCodes)
	}

	sql := "SELECT " + lineColumns + "\nFROM fin_statement_lines\nWHERE " +
		strings.Join(where, "\n  AND ") +
		"\nORDER BY corp_code, ord NULLS LAST, id"
	return sql, args
}

// ReadLines returns every BS/CIS line of the scope, optionally limited to some
// companies. This is the single bulk read behind a comparison or picker.
func (r *LinesRepo) ReadLines(ctx context.Context, scope models.Scope, corpCodes []string) ([]models.RawLineItem, error) {
	sql, args := linesQuery(scope, corpCodes)
	return r.queryLines(ctx, sql, args...)
}

// SelectIncomplete returns up to limit rows with a missing cache column,
// oldest first. Rows that would fail validation in toModel are left out so a
// single malformed row cannot stall every batch.
func (r *LinesRepo) SelectIncomplete(ctx context.Context, limit int) ([]models.RawLineItem, error) {
	sql := "SELECT " + lineColumns + `
FROM fin_statement_lines
WHERE sj_div IN ('BS', 'CIS')
  AND (account_nm_norm IS NULL OR account_id_norm IS NULL OR canon_key IS NULL)
  AND ` + validRowFilter + `
ORDER BY id
LIMIT $1`
	return r.queryLines(ctx, sql, limit)
}

// WriteCache stores the cache columns of one row.
func (r *LinesRepo) WriteCache(ctx context.Context, id int64, cache models.NormalizedCache) error {
	query := `
		UPDATE fin_statement_lines
		SET account_nm_norm = $2,
			account_id_norm = $3,
			canon_key = $4,
			canon_score = $5
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, id, cache.AccountNmNorm, cache.AccountIDNorm, cache.CanonKey, cache.CanonScore)
	if err != nil {
		return fmt.Errorf("failed to update cache: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %d", ErrRowNotFound, id)
	}
	return nil
}

// CorpNames maps corp codes to display names. Unknown codes are absent.
func (r *LinesRepo) CorpNames(ctx context.Context, corpCodes []string) (map[string]string, error) {
	names := make(map[string]string, len(corpCodes))
	if len(corpCodes) == 0 {
		return names, nil
	}

	rows, err := r.db.Query(ctx, `SELECT corp_code, corp_name FROM corps WHERE corp_code = ANY($1)`, corpCodes)
	if err != nil {
		return nil, fmt.Errorf("failed to load corp names: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var code, name string
		if err := rows.Scan(&code, &name); err != nil {
			return nil, fmt.Errorf("failed to scan corp name: %w", err)
		}
		names[code] = name
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read corp names: %w", err)
	}
	return names, nil
}

func (r *LinesRepo) queryLines(ctx context.Context, sql string, args ...any) ([]models.RawLineItem, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query line items: %w", err)
	}
	defer rows.Close()

	var out []models.RawLineItem
	for rows.Next() {
		var c lineRow
		if err := rows.Scan(
			&c.ID, &c.CorpCode, &c.BsnsYear, &c.ReprtCode, &c.FsDiv, &c.SjDiv,
			&c.AccountID, &c.AccountNm, &c.Thstrm, &c.Frmtrm, &c.Ord, &c.Currency,
			&c.NmNorm, &c.IDNorm, &c.CanonKey, &c.CanonScore,
		); err != nil {
			return nil, fmt.Errorf("failed to scan line item: %w", err)
		}
		li, err := c.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, li)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read line items: %w", err)
	}
	return out, nil
}

// lineRow is one scanned row before validation.
type lineRow struct {
	ID         int64
	CorpCode   string
	BsnsYear   string
	ReprtCode  string
	FsDiv      string
	SjDiv      string
	AccountID  *string
	AccountNm  *string
	Thstrm     *string
	Frmtrm     *string
	Ord        *int32
	Currency   *string
	NmNorm     *string
	IDNorm     *string
	CanonKey   *string
	CanonScore *int32
}

// toModel validates the enums and parses amounts at the storage boundary.
func (c lineRow) toModel() (models.RawLineItem, error) {
	fail := func(err error) (models.RawLineItem, error) {
		return models.RawLineItem{}, fmt.Errorf("line item %d: %w", c.ID, err)
	}

	rc, err := models.ParseReportCode(c.ReprtCode)
	if err != nil {
		return fail(err)
	}
	fd, err := models.ParseFsDiv(c.FsDiv)
	if err != nil {
		return fail(err)
	}
	st, err := models.ParseStatementType(c.SjDiv)
	if err != nil {
		return fail(err)
	}
	th, err := parseAmount(c.Thstrm)
	if err != nil {
		return fail(err)
	}
	fr, err := parseAmount(c.Frmtrm)
	if err != nil {
		return fail(err)
	}

	li := models.RawLineItem{
		ID:           c.ID,
		CorpCode:     c.CorpCode,
		BsnsYear:     c.BsnsYear,
		ReprtCode:    rc,
		FsDiv:        fd,
		SjDiv:        st,
		AccountID:    models.AccountIDPtr(c.AccountID),
		AccountNm:    c.AccountNm,
		ThstrmAmount: th,
		FrmtrmAmount: fr,
		Currency:     c.Currency,
		Cache: models.NormalizedCache{
			AccountNmNorm: c.NmNorm,
			AccountIDNorm: c.IDNorm,
			CanonKey:      c.CanonKey,
		},
	}
	if c.Ord != nil {
		ord := int(*c.Ord)
		li.Ord = &ord
	}
	if c.CanonScore != nil {
		score := int(*c.CanonScore)
		li.Cache.CanonScore = &score
	}
	return li, nil
}

// parseAmount reads a numeric column rendered as text. NULL stays invalid.
func parseAmount(s *string) (decimal.NullDecimal, error) {
	if s == nil || *s == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("%w: amount %q", models.ErrInvalidField, *s)
	}
	return decimal.NewNullDecimal(d), nil
}
