package accounts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"dart_accounts/pkg/core/catalog"
	"dart_accounts/pkg/core/classify"
	"dart_accounts/pkg/core/compare"
	"dart_accounts/pkg/core/grouping"
	"dart_accounts/pkg/core/logging"
	"dart_accounts/pkg/core/metrics"
	"dart_accounts/pkg/core/report"
	"dart_accounts/pkg/models"

	"github.com/google/uuid"
)

// ErrUnknownCanonKey is returned when canon_key is not in the catalog.
var ErrUnknownCanonKey = errors.New("unknown canon_key")

// LineReader is the storage the handlers read from; store.LinesRepo implements it.
type LineReader interface {
	ReadLines(ctx context.Context, scope models.Scope, corpCodes []string) ([]models.RawLineItem, error)
	CorpNames(ctx context.Context, corpCodes []string) (map[string]string, error)
}

// ClassifyResponse is the body of /api/accounts/classify.
type ClassifyResponse struct {
	Matched bool           `json:"matched"`
	Key     catalog.Key    `json:"canon_key,omitempty"`
	Label   string         `json:"label,omitempty"`
	Score   classify.Score `json:"score"`
}

// CompareResponse is the JSON body of /api/accounts/compare.
type CompareResponse struct {
	Mode compare.Mode  `json:"mode"`
	Rows []compare.Row `json:"rows"`
}

// Handler holds dependencies for account endpoints
type Handler struct {
	Reader     LineReader
	Catalog    *catalog.Catalog
	Classifier classify.Interface
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
	// AllowedOrigin is sent as Access-Control-Allow-Origin; empty means "*".
	AllowedOrigin string

	comparator *compare.Comparator
}

// NewHandler creates a new accounts handler. classifier is usually a
// classify.Memo over a classifier built from cat.
func NewHandler(reader LineReader, cat *catalog.Catalog, classifier classify.Interface, m *metrics.Metrics, logger *slog.Logger) *Handler {
	return &Handler{
		Reader:     reader,
		Catalog:    cat,
		Classifier: classifier,
		Metrics:    m,
		Logger:     logging.Component(logger, "api"),
		comparator: compare.New(classifier),
	}
}

// Register mounts the endpoints on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/accounts/canon-keys", h.HandleCanonKeys)
	mux.HandleFunc("/api/accounts/classify", h.HandleClassify)
	mux.HandleFunc("/api/accounts/list", h.HandleList)
	mux.HandleFunc("/api/accounts/compare", h.HandleCompare)
}

// HandleCanonKeys lists the picker entries of one statement type.
func (h *Handler) HandleCanonKeys(w http.ResponseWriter, r *http.Request) {
	if h.preflight(w, r) {
		return
	}

	st, err := models.ParseStatementType(r.URL.Query().Get("sj_div"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, h.Catalog.List(st))
}

// HandleClassify classifies a single account, for checking mappings by hand.
func (h *Handler) HandleClassify(w http.ResponseWriter, r *http.Request) {
	if h.preflight(w, r) {
		return
	}

	q := r.URL.Query()
	st, err := models.ParseStatementType(q.Get("sj_div"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	res, ok := h.Classifier.Classify(st, q.Get("account_id"), q.Get("account_nm"))
	h.Metrics.Classification(string(st), int(res.Score))

	resp := ClassifyResponse{Matched: ok}
	if ok {
		resp.Key, resp.Score = res.Key, res.Score
		if def, found := h.Catalog.Lookup(res.Key); found {
			resp.Label = def.Label
		}
	}
	h.writeJSON(w, resp)
}

// HandleList returns the distinct accounts filed in a scope.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	if h.preflight(w, r) {
		return
	}

	q := r.URL.Query()
	scope, err := parseScope(q)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	items, err := h.Reader.ReadLines(r.Context(), scope, corpCodes(q))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, grouping.ListAccounts(scope, items))
}

// HandleCompare reconciles one account across companies. format=md and
// format=html return a rendered report instead of JSON.
func (h *Handler) HandleCompare(w http.ResponseWriter, r *http.Request) {
	if h.preflight(w, r) {
		return
	}

	q := r.URL.Query()
	format := strings.ToLower(q.Get("format"))
	switch format {
	case "", "json", "md", "html":
	default:
		h.fail(w, r, fmt.Errorf("%w: format %q", models.ErrInvalidField, format))
		return
	}

	rows, mode, title, err := h.compare(r.Context(), q)
	h.Metrics.Compare(string(mode), len(rows), err)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	switch format {
	case "md":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		fmt.Fprint(w, report.Markdown(title, rows))
	case "html":
		out, err := report.HTML(title, rows)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, out)
	default:
		h.writeJSON(w, CompareResponse{Mode: mode, Rows: rows})
	}
}

func (h *Handler) compare(ctx context.Context, q url.Values) ([]compare.Row, compare.Mode, string, error) {
	scope, err := parseScope(q)
	if err != nil {
		return nil, "", "", err
	}
	req := compare.Request{
		Scope:     scope,
		CorpCodes: corpCodes(q),
		Selector: compare.Selector{
			CanonKey:  catalog.Key(strings.TrimSpace(q.Get("canon_key"))),
			AccountID: strings.TrimSpace(q.Get("account_id")),
			AccountNm: strings.TrimSpace(q.Get("account_nm")),
		},
	}

	mode, err := req.Selector.Mode()
	if err != nil {
		return nil, "", "", err
	}

	var title string
	if mode == compare.ModeCanonical {
		def, ok := h.Catalog.Lookup(req.Selector.CanonKey)
		if !ok {
			return nil, mode, "", fmt.Errorf("%w: %s", ErrUnknownCanonKey, req.Selector.CanonKey)
		}
		req.Scope.SjDiv = def.StatementType
		title = def.Label
	} else {
		title = req.Selector.AccountNm
		if title == "" {
			title = req.Selector.AccountID
		}
	}

	// Every line is classified against the live catalog; cached canon keys
	// may be stale and are not trusted here.
	items, err := h.Reader.ReadLines(ctx, req.Scope, req.CorpCodes)
	if err != nil {
		return nil, mode, "", fmt.Errorf("failed to read line items: %w", err)
	}

	rows, err := h.comparator.Compare(req, items)
	if err != nil {
		return nil, mode, "", err
	}

	codes := make([]string, len(rows))
	for i, row := range rows {
		codes[i] = row.CorpCode
	}
	names, err := h.Reader.CorpNames(ctx, codes)
	if err != nil {
		return nil, mode, "", fmt.Errorf("failed to read corp names: %w", err)
	}
	for i := range rows {
		rows[i].CorpName = names[rows[i].CorpCode]
	}

	if scope.Year != "" {
		title = strings.TrimSpace(title + " " + scope.Year)
	}
	return rows, mode, title, nil
}

// parseScope reads year, reprt_code, fs_div and sj_div. Absent values match
// any line.
func parseScope(q url.Values) (models.Scope, error) {
	var (
		scope models.Scope
		err   error
	)
	scope.Year = strings.TrimSpace(q.Get("year"))
	if v := q.Get("reprt_code"); v != "" {
		if scope.ReprtCode, err = models.ParseReportCode(v); err != nil {
			return models.Scope{}, err
		}
	}
	if v := q.Get("fs_div"); v != "" {
		if scope.FsDiv, err = models.ParseFsDiv(v); err != nil {
			return models.Scope{}, err
		}
	}
	if v := q.Get("sj_div"); v != "" {
		if scope.SjDiv, err = models.ParseStatementType(v); err != nil {
			return models.Scope{}, err
		}
	}
	return scope, nil
}

// corpCodes accepts repeated corp_code params as well as comma-separated lists.
func corpCodes(q url.Values) []string {
	var out []string
	for _, v := range q["corp_code"] {
		for _, code := range strings.Split(v, ",") {
			if code = strings.TrimSpace(code); code != "" {
				out = append(out, code)
			}
		}
	}
	return out
}

// preflight sets CORS headers and answers OPTIONS requests.
func (h *Handler) preflight(w http.ResponseWriter, r *http.Request) bool {
	origin := h.AllowedOrigin
	if origin == "" {
		origin = "*"
	}
	w.Header().Set("Access-Control-Allow-Origin", origin)
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return true
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return true
	}
	return false
}

func (h *Handler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Logger.Error("failed to encode response", "error", err)
	}
}

// fail maps validation errors to 400 and everything else to 500. Server
// errors are logged under a request id that is also returned to the client.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if isBadRequest(err) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	reqID := uuid.NewString()
	h.Logger.Error("request failed", "request_id", reqID, "path", r.URL.Path, "error", err)
	w.Header().Set("X-Request-ID", reqID)
	http.Error(w, "internal error (request "+reqID+")", http.StatusInternalServerError)
}

func isBadRequest(err error) bool {
	return errors.Is(err, compare.ErrValidation) ||
		errors.Is(err, models.ErrInvalidField) ||
		errors.Is(err, ErrUnknownCanonKey)
}
