package ingest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/stijnvankasteren/insider-trading-app/internal/config"
	"github.com/stijnvankasteren/insider-trading-app/internal/model"
	"github.com/stijnvankasteren/insider-trading-app/internal/store"
)

func newTestServer(cfg config.IngestConfig) (*httptest.Server, *store.Memory) {
	mem := store.NewMemory()
	pipeline := NewPipeline(mem, cfg)
	handler := NewHandler(pipeline, mem, cfg)

	r := chi.NewRouter()
	r.Mount("/api/ingest", handler.Routes())
	return httptest.NewServer(r), mem
}

func postTrades(t *testing.T, srv *httptest.Server, secret, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/ingest/trades", strings.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set(SecretHeader, secret)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	return resp
}

func decodeDetail(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	var body struct {
		Detail string `json:"detail"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Detail
}

func TestIngestTrades_NoSecretConfigured(t *testing.T) {
	srv, _ := newTestServer(config.IngestConfig{MaxItems: 100, MaxRawBytes: 50_000})
	defer srv.Close()

	resp := postTrades(t, srv, "anything", `{"form":"4","ticker":"AAPL"}`)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500 when no secret is configured", resp.StatusCode)
	}
	if detail := decodeDetail(t, resp); detail != "Ingest secret not configured" {
		t.Errorf("detail = %q", detail)
	}
}

func TestIngestTrades_Auth(t *testing.T) {
	srv, _ := newTestServer(testIngestConfig())
	defer srv.Close()

	resp := postTrades(t, srv, "", `{"form":"4","ticker":"AAPL"}`)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("missing header: status = %d, want 401", resp.StatusCode)
	}
	resp.Body.Close()

	resp = postTrades(t, srv, "wrong", `{"form":"4","ticker":"AAPL"}`)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("wrong secret: status = %d, want 401", resp.StatusCode)
	}
	if detail := decodeDetail(t, resp); detail != "Invalid ingest secret" {
		t.Errorf("detail = %q", detail)
	}
}

func TestIngestTrades_RotatedSecretAccepted(t *testing.T) {
	cfg := testIngestConfig()
	cfg.PreviousSecret = "old-secret"
	srv, _ := newTestServer(cfg)
	defer srv.Close()

	resp := postTrades(t, srv, "old-secret", `{"external_id":"r1","form":"4","ticker":"AAPL"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("previous secret: status = %d, want 200", resp.StatusCode)
	}
}

func TestIngestTrades_SingleObject(t *testing.T) {
	srv, mem := newTestServer(testIngestConfig())
	defer srv.Close()

	resp := postTrades(t, srv, "test-secret",
		`{"external_id":"h-1","form":"4","ticker":"aapl","shares":100,"price_usd":"10.005"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var report model.BatchReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Inserted != 1 {
		t.Errorf("inserted = %d, want 1 (errors: %v)", report.Inserted, report.Errors)
	}

	trades, _, _ := mem.ListTrades(context.Background(), model.TradeFilter{Limit: 10})
	if len(trades) != 1 {
		t.Fatalf("stored = %d, want 1", len(trades))
	}
	if trades[0].AmountUSDLow == nil || *trades[0].AmountUSDLow != 1001 {
		t.Errorf("amount = %v, want 1001 (digits must survive JSON decoding)", trades[0].AmountUSDLow)
	}
}

func TestIngestTrades_MalformedJSON(t *testing.T) {
	srv, _ := newTestServer(testIngestConfig())
	defer srv.Close()

	resp := postTrades(t, srv, "test-secret", `{"form": `)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestIngestTrades_BodyShapeError(t *testing.T) {
	srv, _ := newTestServer(testIngestConfig())
	defer srv.Close()

	resp := postTrades(t, srv, "test-secret", `"a string"`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	if detail := decodeDetail(t, resp); detail != "Body must be an object or an array of objects" {
		t.Errorf("detail = %q", detail)
	}
}

func TestIngestTrades_TooManyItems(t *testing.T) {
	cfg := testIngestConfig()
	cfg.MaxItems = 1
	srv, _ := newTestServer(cfg)
	defer srv.Close()

	resp := postTrades(t, srv, "test-secret", `[{"form":"4"},{"form":"4"}]`)
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", resp.StatusCode)
	}
	if detail := decodeDetail(t, resp); detail != "Too many items (max 1)" {
		t.Errorf("detail = %q", detail)
	}
}

func deleteTrades(t *testing.T, srv *httptest.Server, secret, query string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/ingest/trades"+query, nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if secret != "" {
		req.Header.Set(SecretHeader, secret)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	return resp
}

func TestDeleteTrades(t *testing.T) {
	srv, mem := newTestServer(testIngestConfig())
	defer srv.Close()

	seed := `[
		{"external_id":"d1","form":"4","ticker":"A"},
		{"external_id":"d2","form":"4/A","ticker":"B"},
		{"external_id":"d3","form":"13d","ticker":"C"}
	]`
	resp := postTrades(t, srv, "test-secret", seed)
	resp.Body.Close()

	// Missing confirm.
	resp = deleteTrades(t, srv, "test-secret", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("no confirm: status = %d, want 400", resp.StatusCode)
	}
	if detail := decodeDetail(t, resp); detail != "Add ?confirm=true to delete trades" {
		t.Errorf("detail = %q", detail)
	}

	// Unexpected parameter.
	resp = deleteTrades(t, srv, "test-secret", "?confirm=true&nuke=yes")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unexpected param: status = %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()

	// Unclassifiable form.
	resp = deleteTrades(t, srv, "test-secret", "?confirm=true&form=bogus")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid form: status = %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()

	// Scoped delete removes the form family, amendments included.
	resp = deleteTrades(t, srv, "test-secret", "?confirm=true&form=4")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("scoped delete: status = %d, want 200", resp.StatusCode)
	}
	var scoped deleteResponse
	if err := json.NewDecoder(resp.Body).Decode(&scoped); err != nil {
		t.Fatalf("decode: %v", err)
	}
	resp.Body.Close()
	if scoped.Deleted != 2 {
		t.Errorf("deleted = %d, want 2", scoped.Deleted)
	}
	if scoped.Form == nil || *scoped.Form != "FORM 4" {
		t.Errorf("form = %v, want FORM 4", scoped.Form)
	}

	// Full wipe.
	resp = deleteTrades(t, srv, "test-secret", "?confirm=true")
	var wipe deleteResponse
	if err := json.NewDecoder(resp.Body).Decode(&wipe); err != nil {
		t.Fatalf("decode: %v", err)
	}
	resp.Body.Close()
	if wipe.Deleted != 1 {
		t.Errorf("deleted = %d, want remaining 1", wipe.Deleted)
	}
	if wipe.Form != nil {
		t.Errorf("form = %v, want null", *wipe.Form)
	}

	trades, _, _ := mem.ListTrades(context.Background(), model.TradeFilter{Limit: 10})
	if len(trades) != 0 {
		t.Errorf("remaining trades = %d, want 0", len(trades))
	}
}
