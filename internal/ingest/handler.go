package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/stijnvankasteren/insider-trading-app/internal/api"
	"github.com/stijnvankasteren/insider-trading-app/internal/config"
	"github.com/stijnvankasteren/insider-trading-app/internal/forms"
	"github.com/stijnvankasteren/insider-trading-app/internal/store"
)

// maxBodyBytes caps decoded ingest request bodies.
const maxBodyBytes = 10 << 20 // 10 MiB

// SecretHeader carries the shared ingest secret.
const SecretHeader = "X-Ingest-Secret"

// Handler serves the producer-facing ingest endpoints.
type Handler struct {
	pipeline *Pipeline
	store    store.TradeStore
	cfg      config.IngestConfig
	logger   *slog.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithHandlerLogger sets the logger for the handler.
func WithHandlerLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) { h.logger = logger }
}

// NewHandler creates the ingest handler.
func NewHandler(pipeline *Pipeline, st store.TradeStore, cfg config.IngestConfig, opts ...HandlerOption) *Handler {
	h := &Handler{
		pipeline: pipeline,
		store:    st,
		cfg:      cfg,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the ingest sub-router, mounted under /api/ingest.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/trades", h.ingestTrades)
	r.Delete("/trades", h.deleteTrades)
	return r
}

// requireSecret authenticates the request or writes the failure response.
func (h *Handler) requireSecret(w http.ResponseWriter, r *http.Request) bool {
	if len(h.cfg.Secrets()) == 0 {
		api.WriteError(w, http.StatusInternalServerError, "Ingest secret not configured")
		return false
	}
	if !h.cfg.MatchesSecret(r.Header.Get(SecretHeader)) {
		api.WriteError(w, http.StatusUnauthorized, "Invalid ingest secret")
		return false
	}
	return true
}

func (h *Handler) ingestTrades(w http.ResponseWriter, r *http.Request) {
	if !h.requireSecret(w, r) {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	// Preserve the exact digits of numeric literals; prices lose precision
	// through float64.
	dec.UseNumber()

	var body any
	if err := dec.Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			api.WriteError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		api.WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	report, err := h.pipeline.Process(r.Context(), body)
	if err != nil {
		var reqErr *RequestError
		if errors.As(err, &reqErr) {
			api.WriteError(w, reqErr.Status, reqErr.Detail)
			return
		}
		h.logger.Error("ingest batch failed", "error", err)
		api.WriteError(w, http.StatusInternalServerError, "Failed to store trades")
		return
	}

	h.logger.Info("ingest batch processed",
		"inserted", report.Inserted,
		"updated", report.Updated,
		"skipped_empty", report.SkippedEmpty,
		"errors", len(report.Errors),
	)
	api.WriteJSON(w, http.StatusOK, report)
}

type deleteResponse struct {
	Deleted int64   `json:"deleted"`
	Form    *string `json:"form"`
}

func (h *Handler) deleteTrades(w http.ResponseWriter, r *http.Request) {
	if !h.requireSecret(w, r) {
		return
	}

	query := r.URL.Query()
	var unexpected []string
	for key := range query {
		if key != "confirm" && key != "form" {
			unexpected = append(unexpected, key)
		}
	}
	if len(unexpected) > 0 {
		sort.Strings(unexpected)
		api.WriteError(w, http.StatusBadRequest,
			fmt.Sprintf("Unexpected query parameter(s): %s", strings.Join(unexpected, ", ")))
		return
	}

	confirm, _ := strconv.ParseBool(query.Get("confirm"))
	if !confirm {
		api.WriteError(w, http.StatusBadRequest, "Add ?confirm=true to delete trades")
		return
	}

	var formPrefix *string
	if query.Has("form") {
		form := query.Get("form")
		prefix := forms.Prefix(forms.Normalize(form))
		if strings.TrimSpace(form) != "" && prefix == "" {
			api.WriteError(w, http.StatusBadRequest, "Invalid form: "+form)
			return
		}
		if prefix != "" {
			formPrefix = &prefix
		}
	}

	target := ""
	if formPrefix != nil {
		target = *formPrefix
	}
	deleted, err := h.store.DeleteByFormPrefix(r.Context(), target)
	if err != nil {
		h.logger.Error("delete trades failed", "error", err)
		api.WriteError(w, http.StatusInternalServerError, "Failed to delete trades")
		return
	}

	h.logger.Info("trades deleted", "count", deleted, "form", target)
	api.WriteJSON(w, http.StatusOK, deleteResponse{Deleted: deleted, Form: formPrefix})
}
