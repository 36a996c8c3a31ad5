package accounts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"dart_accounts/pkg/core/catalog"
	"dart_accounts/pkg/core/classify"
	"dart_accounts/pkg/core/grouping"
	"dart_accounts/pkg/core/logging"
	"dart_accounts/pkg/core/metrics"
	"dart_accounts/pkg/models"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	items []models.RawLineItem
	names map[string]string
	err   error

	lastScope models.Scope
	lastCorps []string
}

func (f *fakeReader) ReadLines(_ context.Context, scope models.Scope, corpCodes []string) ([]models.RawLineItem, error) {
	f.lastScope, f.lastCorps = scope, corpCodes
	return f.items, f.err
}

func (f *fakeReader) CorpNames(_ context.Context, codes []string) (map[string]string, error) {
	out := map[string]string{}
	for _, c := range codes {
		if n, ok := f.names[c]; ok {
			out[c] = n
		}
	}
	return out, nil
}

func bsLine(corp, id, nm string, th int64) models.RawLineItem {
	return models.RawLineItem{
		CorpCode:     corp,
		BsnsYear:     "2024",
		ReprtCode:    models.ReportAnnual,
		FsDiv:        models.Consolidated,
		SjDiv:        models.BalanceSheet,
		AccountID:    models.StringPtr(id),
		AccountNm:    models.StringPtr(nm),
		ThstrmAmount: decimal.NewNullDecimal(decimal.NewFromInt(th)),
	}
}

func newTestHandler(reader *fakeReader) (*Handler, *metrics.Metrics) {
	m := metrics.New()
	c := classify.New(catalog.Default())
	return NewHandler(reader, catalog.Default(), c, m, logging.Discard()), m
}

func serve(h *Handler, method, target string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	h.Register(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestHandleCanonKeys(t *testing.T) {
	h, _ := newTestHandler(&fakeReader{})

	rec := serve(h, http.MethodGet, "/api/accounts/canon-keys?sj_div=bs")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	var entries []catalog.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.NotEmpty(t, entries)
	assert.Equal(t, catalog.Key("BS_TOTAL_LIABILITIES_AND_EQUITY"), entries[0].Key)
	for _, e := range entries {
		assert.NotContains(t, string(e.Key), "CIS_")
	}

	rec = serve(h, http.MethodGet, "/api/accounts/canon-keys")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleClassify(t *testing.T) {
	h, m := newTestHandler(&fakeReader{})

	rec := serve(h, http.MethodGet, "/api/accounts/classify?sj_div=BS&account_id=ifrs-full_Assets&account_nm=%EC%9E%90%EC%82%B0%EC%B4%9D%EA%B3%84")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ClassifyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Matched)
	assert.Equal(t, catalog.Key("BS_TOTAL_ASSETS"), resp.Key)
	assert.Equal(t, classify.ExactID, resp.Score)
	assert.Equal(t, "자산총계", resp.Label)

	rec = serve(h, http.MethodGet, "/api/accounts/classify?sj_div=CIS&account_nm=zzz")
	require.Equal(t, http.StatusOK, rec.Code)
	resp = ClassifyResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Matched)
	assert.Empty(t, resp.Key)

	n, err := testutil.GatherAndCount(m.Registry(), "dart_accounts_classifications_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestHandleList(t *testing.T) {
	reader := &fakeReader{items: []models.RawLineItem{
		bsLine("A", "ifrs-full_Assets", "자산총계", 100),
		bsLine("A", "", "기타", 1),
		bsLine("B", "ifrs-full_Assets", "자산총계", 300),
	}}
	h, _ := newTestHandler(reader)

	rec := serve(h, http.MethodGet, "/api/accounts/list?year=2024&reprt_code=11011&fs_div=CFS&sj_div=BS&corp_code=A,B")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"A", "B"}, reader.lastCorps)
	assert.Equal(t, models.Scope{Year: "2024", ReprtCode: models.ReportAnnual, FsDiv: models.Consolidated, SjDiv: models.BalanceSheet}, reader.lastScope)

	var groups []grouping.AccountGroup
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &groups))
	require.Len(t, groups, 2)
	assert.Equal(t, "ifrs-full_Assets|자산총계", groups[0].Key)
	assert.Equal(t, "NA|기타", groups[1].Key)

	rec = serve(h, http.MethodGet, "/api/accounts/list?fs_div=XYZ")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func decodeRows(t *testing.T, rec *httptest.ResponseRecorder) CompareResponse {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp CompareResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHandleCompareCanonical(t *testing.T) {
	reader := &fakeReader{
		items: []models.RawLineItem{
			bsLine("A", "ifrs-full_Assets", "자산총계", 100),
			bsLine("A", "ifrs-full_CurrentAssets", "유동자산", 40),
			bsLine("B", "", "자산총계", 300),
		},
		names: map[string]string{"A": "알파", "B": "베타"},
	}
	h, m := newTestHandler(reader)

	resp := decodeRows(t, serve(h, http.MethodGet, "/api/accounts/compare?year=2024&canon_key=BS_TOTAL_ASSETS"))
	assert.Equal(t, models.BalanceSheet, reader.lastScope.SjDiv)

	assert.Equal(t, "canonical", string(resp.Mode))
	require.Len(t, resp.Rows, 2)
	assert.Equal(t, "B", resp.Rows[0].CorpCode)
	assert.Equal(t, "베타", resp.Rows[0].CorpName)
	assert.Equal(t, "300", resp.Rows[0].ThstrmAmount.String())
	assert.Equal(t, "A", resp.Rows[1].CorpCode)
	assert.Equal(t, "100", resp.Rows[1].ThstrmAmount.String())

	n, err := testutil.GatherAndCount(m.Registry(), "dart_accounts_compare_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestHandleCompareCanonicalIgnoresStaleCache(t *testing.T) {
	unmatched, other := "", "BS_CURRENT_ASSETS"
	cachedAsNoMatch := bsLine("A", "", "자산총계", 100)
	cachedAsNoMatch.Cache.CanonKey = &unmatched
	retargeted := bsLine("B", "ifrs-full_Assets", "자산총계", 300)
	retargeted.Cache.CanonKey = &other

	reader := &fakeReader{items: []models.RawLineItem{cachedAsNoMatch, retargeted}}
	h, _ := newTestHandler(reader)

	resp := decodeRows(t, serve(h, http.MethodGet, "/api/accounts/compare?canon_key=BS_TOTAL_ASSETS"))
	require.Len(t, resp.Rows, 2)
	assert.Equal(t, "B", resp.Rows[0].CorpCode)
	assert.Equal(t, "A", resp.Rows[1].CorpCode)
	assert.Equal(t, "100", resp.Rows[1].ThstrmAmount.String())
}

func TestHandleCompareRawZeroFills(t *testing.T) {
	reader := &fakeReader{
		items: []models.RawLineItem{
			bsLine("A", "ifrs-full_CurrentAssets", "유동자산", 40),
			bsLine("B", "ifrs-full_Assets", "자산총계", 300),
		},
		names: map[string]string{"A": "알파"},
	}
	h, _ := newTestHandler(reader)

	resp := decodeRows(t, serve(h, http.MethodGet, "/api/accounts/compare?corp_code=A&corp_code=B,C&account_nm=%EC%9C%A0%EB%8F%99%EC%9E%90%EC%82%B0"))
	assert.Equal(t, "raw", string(resp.Mode))
	require.Len(t, resp.Rows, 3)
	assert.Equal(t, "A", resp.Rows[0].CorpCode)
	assert.Equal(t, "알파", resp.Rows[0].CorpName)
	assert.Equal(t, "40", resp.Rows[0].ThstrmAmount.String())
	for _, r := range resp.Rows[1:] {
		assert.True(t, r.ThstrmAmount.IsZero())
	}
	assert.Equal(t, "B", resp.Rows[1].CorpCode)
	assert.Equal(t, "C", resp.Rows[2].CorpCode)
	assert.Empty(t, resp.Rows[2].CorpName)
}

func TestHandleCompareReports(t *testing.T) {
	reader := &fakeReader{
		items: []models.RawLineItem{bsLine("A", "ifrs-full_Assets", "자산총계", 1234567)},
		names: map[string]string{"A": "알파"},
	}
	h, _ := newTestHandler(reader)

	rec := serve(h, http.MethodGet, "/api/accounts/compare?canon_key=BS_TOTAL_ASSETS&format=md")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/markdown")
	assert.Contains(t, rec.Body.String(), "| 알파 | A | 1,234,567 |")

	rec = serve(h, http.MethodGet, "/api/accounts/compare?canon_key=BS_TOTAL_ASSETS&format=html")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "<table>")
	assert.Contains(t, rec.Body.String(), "알파")

	rec = serve(h, http.MethodGet, "/api/accounts/compare?canon_key=BS_TOTAL_ASSETS&format=pdf")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCompareErrors(t *testing.T) {
	h, _ := newTestHandler(&fakeReader{err: errors.New("connection refused")})

	rec := serve(h, http.MethodGet, "/api/accounts/compare?year=2024")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(h, http.MethodGet, "/api/accounts/compare?canon_key=NOPE")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown canon_key")

	rec = serve(h, http.MethodGet, "/api/accounts/compare?canon_key=BS_TOTAL_ASSETS")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestPreflightAndMethods(t *testing.T) {
	h, _ := newTestHandler(&fakeReader{})
	h.AllowedOrigin = "https://dashboard.example"

	rec := serve(h, http.MethodOptions, "/api/accounts/compare")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://dashboard.example", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = serve(h, http.MethodPost, "/api/accounts/list")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
