package api

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/stijnvankasteren/insider-trading-app/internal/forms"
	"github.com/stijnvankasteren/insider-trading-app/internal/model"
	"github.com/stijnvankasteren/insider-trading-app/internal/store"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
	maxCSVLimit      = 5000
	maxOffset        = 1_000_000
)

var tickerRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,15}$`)

// Handler serves the read-side endpoints.
type Handler struct {
	store  store.TradeStore
	logger *slog.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithLogger sets the logger for the handler.
func WithLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) { h.logger = logger }
}

// NewHandler creates the read-side handler.
func NewHandler(st store.TradeStore, opts ...HandlerOption) *Handler {
	h := &Handler{
		store:  st,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// queryError is a filter-validation failure, reported as a 400.
type queryError struct{ detail string }

func (e *queryError) Error() string { return e.detail }

func checkAllowedParams(q url.Values, allowed map[string]bool) error {
	var unexpected []string
	for key := range q {
		if !allowed[key] {
			unexpected = append(unexpected, key)
		}
	}
	if len(unexpected) > 0 {
		sort.Strings(unexpected)
		return &queryError{"Unexpected query parameter(s): " + strings.Join(unexpected, ", ")}
	}
	return nil
}

func parseLimit(q url.Values, def, max int) (int, error) {
	raw := q.Get("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > max {
		return 0, &queryError{fmt.Sprintf("Invalid limit (expected 1..%d)", max)}
	}
	return n, nil
}

func parseDateParam(q url.Values, name string) (*time.Time, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation("2006-01-02", raw, time.UTC)
	if err != nil {
		return nil, &queryError{fmt.Sprintf("Invalid %s date (expected YYYY-MM-DD)", name)}
	}
	return &t, nil
}

// txCandidates expands a type filter the way producers actually label
// transactions: the raw value, the value without a form/schedule prefix, and
// both prefixed spellings. Matching runs against transaction_type and form.
func txCandidates(value string) []string {
	value = strings.ToLower(strings.TrimSpace(value))
	base := value
	if rest := strings.TrimSpace(strings.TrimPrefix(base, "form")); rest != "" && strings.HasPrefix(base, "form") {
		base = rest
	} else if rest := strings.TrimSpace(strings.TrimPrefix(base, "schedule")); rest != "" && strings.HasPrefix(base, "schedule") {
		base = rest
	}

	set := map[string]bool{
		value:                                 true,
		base:                                  true,
		strings.TrimSpace("form " + base):     true,
		strings.TrimSpace("schedule " + base): true,
	}
	candidates := make([]string, 0, len(set))
	for c := range set {
		candidates = append(candidates, c)
	}
	sort.Strings(candidates)
	return candidates
}

// parseTradeFilter validates the shared filter parameters for listing and
// export.
func parseTradeFilter(q url.Values) (model.TradeFilter, error) {
	var f model.TradeFilter

	if form := strings.TrimSpace(q.Get("form")); form != "" {
		if len(form) > 32 {
			return f, &queryError{"Invalid form (too long)"}
		}
		normalized := forms.Normalize(form)
		if prefix := forms.Prefix(normalized); prefix != "" {
			f.FormPrefix = prefix
		} else if normalized != "" {
			f.FormExact = normalized
		}
	} else if source := q.Get("source"); strings.TrimSpace(source) != "" {
		slug := forms.NormalizeSource(source)
		if slug == "" {
			return f, &queryError{"Invalid source: " + source}
		}
		f.FormPrefix = forms.SourcePrefix(slug)
	}

	if ticker := strings.TrimSpace(q.Get("ticker")); ticker != "" {
		if !tickerRe.MatchString(ticker) {
			return f, &queryError{"Invalid ticker"}
		}
		f.TickerContains = ticker
	}
	if person := strings.TrimSpace(q.Get("person")); person != "" {
		if len(person) > 256 {
			return f, &queryError{"Invalid person (too long)"}
		}
		f.PersonContains = person
	}
	if txType := strings.TrimSpace(q.Get("type")); txType != "" {
		if len(txType) > 32 {
			return f, &queryError{"Invalid type (too long)"}
		}
		f.TxCandidates = txCandidates(txType)
	}

	from, err := parseDateParam(q, "from")
	if err != nil {
		return f, err
	}
	f.From = from

	to, err := parseDateParam(q, "to")
	if err != nil {
		return f, err
	}
	f.To = to

	return f, nil
}

func (h *Handler) writeFilterError(w http.ResponseWriter, err error) {
	if qe, ok := err.(*queryError); ok {
		WriteError(w, http.StatusBadRequest, qe.detail)
		return
	}
	h.logger.Error("list trades failed", "error", err)
	WriteError(w, http.StatusInternalServerError, "Failed to list trades")
}

// TradePayload is the wire shape of one trade, shared by list responses and
// feed events.
type TradePayload struct {
	ExternalID      string  `json:"external_id"`
	Ticker          *string `json:"ticker"`
	CompanyName     *string `json:"company_name"`
	PersonName      *string `json:"person_name"`
	PersonSlug      *string `json:"person_slug"`
	TransactionType *string `json:"transaction_type"`
	Form            *string `json:"form"`
	TransactionDate *string `json:"transaction_date"`
	FiledAt         *string `json:"filed_at"`
	AmountUSDLow    *int64  `json:"amount_usd_low"`
	AmountUSDHigh   *int64  `json:"amount_usd_high"`
	Shares          *int64  `json:"shares"`
	PriceUSD        *string `json:"price_usd"`
	URL             *string `json:"url"`
}

func ToTradePayload(t model.Trade) TradePayload {
	out := TradePayload{
		ExternalID:      t.ExternalID,
		Ticker:          t.Ticker,
		CompanyName:     t.CompanyName,
		PersonName:      t.PersonName,
		PersonSlug:      t.PersonSlug,
		TransactionType: t.TransactionType,
		Form:            t.Form,
		AmountUSDLow:    t.AmountUSDLow,
		AmountUSDHigh:   t.AmountUSDHigh,
		Shares:          t.Shares,
		URL:             t.URL,
	}
	if t.TransactionDate != nil {
		s := t.TransactionDate.Format("2006-01-02")
		out.TransactionDate = &s
	}
	if t.FiledAt != nil {
		s := t.FiledAt.Format(time.RFC3339)
		out.FiledAt = &s
	}
	if t.PriceUSD != nil {
		s := t.PriceUSD.String()
		out.PriceUSD = &s
	}
	return out
}

type listResponse struct {
	Items  []TradePayload `json:"items"`
	Total  int64       `json:"total"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

var listParams = map[string]bool{
	"form": true, "source": true, "ticker": true, "person": true,
	"type": true, "from": true, "to": true, "limit": true, "offset": true,
}

// ListTrades serves GET /api/trades.
func (h *Handler) ListTrades(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if err := checkAllowedParams(q, listParams); err != nil {
		h.writeFilterError(w, err)
		return
	}

	f, err := parseTradeFilter(q)
	if err != nil {
		h.writeFilterError(w, err)
		return
	}

	f.Limit, err = parseLimit(q, defaultListLimit, maxListLimit)
	if err != nil {
		h.writeFilterError(w, err)
		return
	}
	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 || n > maxOffset {
			h.writeFilterError(w, &queryError{"Invalid offset"})
			return
		}
		f.Offset = n
	}

	trades, total, err := h.store.ListTrades(r.Context(), f)
	if err != nil {
		h.writeFilterError(w, err)
		return
	}

	items := make([]TradePayload, 0, len(trades))
	for _, t := range trades {
		items = append(items, ToTradePayload(t))
	}
	WriteJSON(w, http.StatusOK, listResponse{
		Items:  items,
		Total:  total,
		Limit:  f.Limit,
		Offset: f.Offset,
	})
}

var csvParams = map[string]bool{
	"form": true, "source": true, "ticker": true, "person": true,
	"type": true, "from": true, "to": true, "limit": true,
}

var csvHeader = []string{
	"ticker", "company_name", "person_name", "transaction_type", "form",
	"transaction_date", "filed_at", "amount_usd_low", "amount_usd_high",
	"shares", "price_usd", "url", "external_id",
}

// ExportCSV serves GET /api/trades.csv.
func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if err := checkAllowedParams(q, csvParams); err != nil {
		h.writeFilterError(w, err)
		return
	}

	f, err := parseTradeFilter(q)
	if err != nil {
		h.writeFilterError(w, err)
		return
	}
	f.Limit, err = parseLimit(q, maxCSVLimit, maxCSVLimit)
	if err != nil {
		h.writeFilterError(w, err)
		return
	}

	trades, _, err := h.store.ListTrades(r.Context(), f)
	if err != nil {
		h.writeFilterError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="trades.csv"`)

	cw := csv.NewWriter(w)
	_ = cw.Write(csvHeader)
	emptyIfNil := func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	}
	for _, t := range trades {
		j := ToTradePayload(t)
		record := []string{
			emptyIfNil(j.Ticker),
			emptyIfNil(j.CompanyName),
			emptyIfNil(j.PersonName),
			emptyIfNil(j.TransactionType),
			emptyIfNil(j.Form),
			emptyIfNil(j.TransactionDate),
			emptyIfNil(j.FiledAt),
			formatInt(j.AmountUSDLow),
			formatInt(j.AmountUSDHigh),
			formatInt(j.Shares),
			emptyIfNil(j.PriceUSD),
			emptyIfNil(j.URL),
			j.ExternalID,
		}
		_ = cw.Write(record)
	}
	cw.Flush()
}

func formatInt(n *int64) string {
	if n == nil {
		return ""
	}
	return strconv.FormatInt(*n, 10)
}
