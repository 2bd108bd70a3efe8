package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"

	"github.com/stijnvankasteren/insider-trading-app/internal/coerce"
	"github.com/stijnvankasteren/insider-trading-app/internal/config"
	"github.com/stijnvankasteren/insider-trading-app/internal/forms"
	"github.com/stijnvankasteren/insider-trading-app/internal/model"
	"github.com/stijnvankasteren/insider-trading-app/internal/store"
)

// maxReportedErrors caps the errors array in a batch report.
const maxReportedErrors = 50

// RequestError rejects a whole batch before any item is processed.
type RequestError struct {
	Status int
	Detail string
}

func (e *RequestError) Error() string { return e.Detail }

// Publisher receives committed trades for live distribution. op is
// "inserted" or "updated".
type Publisher func(op string, t *model.Trade)

// Pipeline normalizes and upserts trade batches.
type Pipeline struct {
	store   store.TradeStore
	cfg     config.IngestConfig
	logger  *slog.Logger
	publish Publisher
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithLogger sets the logger for the pipeline.
func WithLogger(logger *slog.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = logger }
}

// WithPublisher installs a hook that receives trades after the batch commits.
func WithPublisher(fn Publisher) PipelineOption {
	return func(p *Pipeline) { p.publish = fn }
}

// NewPipeline creates an ingestion pipeline on top of the given store.
func NewPipeline(st store.TradeStore, cfg config.IngestConfig, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		store:  st,
		cfg:    cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type pendingEvent struct {
	op    string
	trade *model.Trade
}

// Process runs one decoded request body through the pipeline. body is either
// a single object or an array of objects. A *RequestError rejects the batch
// with a client status; any other error is a storage failure and the batch
// rolls back untouched.
func (p *Pipeline) Process(ctx context.Context, body any) (*model.BatchReport, error) {
	report := &model.BatchReport{Errors: []model.ItemError{}}

	type indexed struct {
		idx     int
		payload map[string]any
	}
	var entries []indexed

	switch b := body.(type) {
	case []any:
		for idx, el := range b {
			payload, ok := el.(map[string]any)
			if !ok {
				report.Errors = append(report.Errors, model.ItemError{
					Index: idx,
					Error: "Each item must be an object",
				})
				continue
			}
			entries = append(entries, indexed{idx: idx, payload: payload})
		}
	case map[string]any:
		entries = append(entries, indexed{idx: 0, payload: b})
	default:
		return nil, &RequestError{
			Status: http.StatusBadRequest,
			Detail: "Body must be an object or an array of objects",
		}
	}

	maxItems := p.cfg.MaxItems
	if maxItems < 1 {
		maxItems = 1
	}
	if len(entries) > maxItems {
		return nil, &RequestError{
			Status: http.StatusRequestEntityTooLarge,
			Detail: fmt.Sprintf("Too many items (max %d)", maxItems),
		}
	}

	batch, err := p.store.BeginBatch(ctx)
	if err != nil {
		return nil, err
	}
	defer batch.Rollback(ctx)

	var events []pendingEvent
	for _, e := range entries {
		op, trade, err := p.processItem(ctx, batch, e.payload)
		if err != nil {
			if _, ok := err.(itemError); ok {
				report.Errors = append(report.Errors, model.ItemError{Index: e.idx, Error: err.Error()})
				continue
			}
			return nil, err
		}
		switch op {
		case "inserted":
			report.Inserted++
			events = append(events, pendingEvent{op: op, trade: trade})
		case "updated":
			report.Updated++
			events = append(events, pendingEvent{op: op, trade: trade})
		case "skipped":
			report.SkippedEmpty++
		}
	}

	if err := batch.Commit(ctx); err != nil {
		return nil, err
	}

	if len(report.Errors) > maxReportedErrors {
		report.Errors = report.Errors[:maxReportedErrors]
	}

	if p.publish != nil {
		for _, ev := range events {
			p.publish(ev.op, ev.trade)
		}
	}
	return report, nil
}

// itemError marks an error as a per-item failure rather than a batch abort.
type itemError struct{ err error }

func (e itemError) Error() string { return e.err.Error() }

// processItem normalizes one payload and stages its upsert. It returns the
// outcome op: "inserted", "updated", or "skipped".
func (p *Pipeline) processItem(ctx context.Context, batch store.Batch, payload map[string]any) (string, *model.Trade, error) {
	it, err := parseItem(payload, p.cfg.RejectUnknownFields)
	if err != nil {
		return "", nil, itemError{err}
	}

	var formValue string
	if it.form != nil {
		formValue = forms.Normalize(*it.form)
	}
	// Some scrapers put the form label in transaction_type. Promote it when
	// it classifies and the form field does not.
	if formValue == "" && it.txType != nil {
		if maybe := forms.Normalize(*it.txType); forms.Prefix(maybe) != "" {
			formValue = maybe
			it.txType = nil
		}
	}

	prefix := forms.Prefix(formValue)
	if prefix == "" {
		return "", nil, itemError{fmt.Errorf("Missing or invalid 'form'")}
	}

	if err := deriveAmounts(prefix, it); err != nil {
		return "", nil, itemError{err}
	}

	externalID := ""
	if it.externalID != nil {
		externalID = *it.externalID
	} else {
		externalID = generateExternalID(it, formValue)
	}

	personSlug := it.personSlug
	if personSlug == nil && it.personName != nil {
		if slug := coerce.Slugify(*it.personName); slug != "" {
			personSlug = &slug
		}
	}

	trade := &model.Trade{
		ExternalID:      externalID,
		Ticker:          it.ticker,
		CompanyName:     it.companyName,
		PersonName:      it.personName,
		PersonSlug:      personSlug,
		TransactionType: it.txType,
		Form:            &formValue,
		TransactionDate: it.txDate,
		FiledAt:         it.filedAt,
		AmountUSDLow:    it.amountLow,
		AmountUSDHigh:   it.amountHigh,
		Shares:          it.shares,
		PriceUSD:        it.price,
		URL:             it.url,
		Raw:             p.capRawPayload(payload),
	}

	if !hasTradeData(trade) {
		return "skipped", nil, nil
	}

	existing, err := batch.FindByExternalID(ctx, externalID)
	if err != nil {
		return "", nil, err
	}
	if existing != nil {
		existing.MergeFrom(trade)
		if err := batch.Update(ctx, existing); err != nil {
			return "", nil, err
		}
		return "updated", existing, nil
	}

	if err := batch.Insert(ctx, trade); err != nil {
		return "", nil, err
	}
	return "inserted", trade, nil
}

// hasTradeData reports whether the trade carries any substantive field. The
// form label alone does not count: a payload that classifies but says
// nothing else is noise, not a trade.
func hasTradeData(t *model.Trade) bool {
	return t.Ticker != nil ||
		t.CompanyName != nil ||
		t.PersonName != nil ||
		t.PersonSlug != nil ||
		t.TransactionType != nil ||
		t.TransactionDate != nil ||
		t.FiledAt != nil ||
		t.AmountUSDLow != nil ||
		t.AmountUSDHigh != nil ||
		t.Shares != nil ||
		t.PriceUSD != nil ||
		t.URL != nil
}

// capRawPayload bounds the stored copy of the original payload. Oversized
// payloads collapse to a marker plus their key list so the row stays small
// while the event remains traceable.
func (p *Pipeline) capRawPayload(payload map[string]any) map[string]any {
	maxBytes := p.cfg.MaxRawBytes
	if maxBytes < config.MinIngestMaxRawBytes {
		maxBytes = config.MinIngestMaxRawBytes
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return map[string]any{"truncated": true}
	}
	if len(encoded) <= maxBytes {
		return payload
	}

	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) > 50 {
		keys = keys[:50]
	}
	return map[string]any{"truncated": true, "keys": keys}
}
