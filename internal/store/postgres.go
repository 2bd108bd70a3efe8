package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/stijnvankasteren/insider-trading-app/internal/config"
	"github.com/stijnvankasteren/insider-trading-app/internal/model"
)

// Postgres is the production TradeStore backed by a pgx connection pool.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// PostgresOption configures a Postgres store.
type PostgresOption func(*Postgres)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) PostgresOption {
	return func(p *Postgres) { p.logger = logger }
}

// NewPostgres creates a connection pool and verifies connectivity.
func NewPostgres(ctx context.Context, cfg config.DBConfig, opts ...PostgresOption) (*Postgres, error) {
	connStr := BuildConnString(cfg)

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	p := &Postgres{
		pool:   pool,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS trades (
		id               BIGSERIAL PRIMARY KEY,
		external_id      TEXT NOT NULL UNIQUE,
		ticker           TEXT,
		company_name     TEXT,
		person_name      TEXT,
		person_slug      TEXT,
		transaction_type TEXT,
		form             TEXT,
		transaction_date DATE,
		filed_at         TIMESTAMPTZ,
		amount_usd_low   BIGINT,
		amount_usd_high  BIGINT,
		shares           BIGINT,
		price_usd        NUMERIC(14,4),
		url              TEXT,
		raw              JSONB,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS ix_trades_ticker ON trades (ticker)`,
	`CREATE INDEX IF NOT EXISTS ix_trades_person_name ON trades (person_name)`,
	`CREATE INDEX IF NOT EXISTS ix_trades_person_slug ON trades (person_slug)`,
	`CREATE INDEX IF NOT EXISTS ix_trades_transaction_type ON trades (transaction_type)`,
	`CREATE INDEX IF NOT EXISTS ix_trades_form ON trades (form)`,
	`CREATE INDEX IF NOT EXISTS ix_trades_transaction_date ON trades (transaction_date)`,
	`CREATE INDEX IF NOT EXISTS ix_trades_filed_at ON trades (filed_at)`,
	`CREATE INDEX IF NOT EXISTS ix_trades_form_date ON trades (form, transaction_date)`,
}

// EnsureSchema creates the trades table and its indexes when missing.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Ping verifies the connection is healthy.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close closes the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

// tradeColumns is the shared select list. price_usd and raw come back as
// text so scanning does not depend on driver-specific numeric/jsonb codecs.
const tradeColumns = `id, external_id, ticker, company_name, person_name, person_slug,
	transaction_type, form, transaction_date, filed_at,
	amount_usd_low, amount_usd_high, shares, price_usd::text, url, raw::text, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrade(row rowScanner) (*model.Trade, error) {
	var (
		t         model.Trade
		priceText *string
		rawText   *string
	)
	err := row.Scan(
		&t.ID, &t.ExternalID, &t.Ticker, &t.CompanyName, &t.PersonName, &t.PersonSlug,
		&t.TransactionType, &t.Form, &t.TransactionDate, &t.FiledAt,
		&t.AmountUSDLow, &t.AmountUSDHigh, &t.Shares, &priceText, &t.URL, &rawText, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if priceText != nil {
		price, err := decimal.NewFromString(*priceText)
		if err != nil {
			return nil, fmt.Errorf("parse stored price %q: %w", *priceText, err)
		}
		t.PriceUSD = &price
	}
	if rawText != nil {
		if err := json.Unmarshal([]byte(*rawText), &t.Raw); err != nil {
			return nil, fmt.Errorf("decode stored raw payload: %w", err)
		}
	}
	return &t, nil
}

// tradeArgs orders the bind parameters for insert/update, external_id first.
func tradeArgs(t *model.Trade) ([]any, error) {
	var priceText *string
	if t.PriceUSD != nil {
		s := t.PriceUSD.String()
		priceText = &s
	}

	var rawText *string
	if t.Raw != nil {
		b, err := json.Marshal(t.Raw)
		if err != nil {
			return nil, fmt.Errorf("encode raw payload: %w", err)
		}
		s := string(b)
		rawText = &s
	}

	return []any{
		t.ExternalID, t.Ticker, t.CompanyName, t.PersonName, t.PersonSlug,
		t.TransactionType, t.Form, t.TransactionDate, t.FiledAt,
		t.AmountUSDLow, t.AmountUSDHigh, t.Shares, priceText, t.URL, rawText,
	}, nil
}

// BeginBatch opens a transaction for one ingestion batch.
func (p *Postgres) BeginBatch(ctx context.Context) (Batch, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin batch: %w", err)
	}
	return &pgxBatch{tx: tx}, nil
}

type pgxBatch struct {
	tx pgx.Tx
}

func (b *pgxBatch) FindByExternalID(ctx context.Context, externalID string) (*model.Trade, error) {
	row := b.tx.QueryRow(ctx,
		`SELECT `+tradeColumns+` FROM trades WHERE external_id = $1`,
		externalID,
	)
	t, err := scanTrade(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find trade %s: %w", externalID, err)
	}
	return t, nil
}

func (b *pgxBatch) Insert(ctx context.Context, t *model.Trade) error {
	args, err := tradeArgs(t)
	if err != nil {
		return err
	}
	err = b.tx.QueryRow(ctx,
		`INSERT INTO trades (
			external_id, ticker, company_name, person_name, person_slug,
			transaction_type, form, transaction_date, filed_at,
			amount_usd_low, amount_usd_high, shares, price_usd, url, raw
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13::numeric, $14, $15::jsonb)
		RETURNING id, created_at`,
		args...,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert trade %s: %w", t.ExternalID, err)
	}
	return nil
}

func (b *pgxBatch) Update(ctx context.Context, t *model.Trade) error {
	args, err := tradeArgs(t)
	if err != nil {
		return err
	}
	_, err = b.tx.Exec(ctx,
		`UPDATE trades SET
			ticker = $2, company_name = $3, person_name = $4, person_slug = $5,
			transaction_type = $6, form = $7, transaction_date = $8, filed_at = $9,
			amount_usd_low = $10, amount_usd_high = $11, shares = $12,
			price_usd = $13::numeric, url = $14, raw = $15::jsonb
		WHERE external_id = $1`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("update trade %s: %w", t.ExternalID, err)
	}
	return nil
}

func (b *pgxBatch) Commit(ctx context.Context) error {
	if err := b.tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

func (b *pgxBatch) Rollback(ctx context.Context) error {
	err := b.tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("rollback batch: %w", err)
	}
	return nil
}

// buildFilter renders a TradeFilter as a WHERE clause. The returned args
// continue the placeholder sequence from 1.
func buildFilter(f model.TradeFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.FormPrefix != "" {
		conds = append(conds, "lower(form) LIKE "+arg(strings.ToLower(f.FormPrefix)+"%"))
	} else if f.FormExact != "" {
		conds = append(conds, "lower(form) = "+arg(strings.ToLower(f.FormExact)))
	}
	if f.TickerContains != "" {
		conds = append(conds, "lower(ticker) LIKE "+arg(LikeContains(strings.ToLower(f.TickerContains))))
	}
	if f.PersonContains != "" {
		conds = append(conds, "lower(person_name) LIKE "+arg(LikeContains(strings.ToLower(f.PersonContains))))
	}
	if len(f.TxCandidates) > 0 {
		ph := arg(f.TxCandidates)
		conds = append(conds, fmt.Sprintf(
			"(lower(transaction_type) = ANY(%s) OR lower(form) = ANY(%s))", ph, ph,
		))
	}
	if f.From != nil {
		conds = append(conds, "transaction_date >= "+arg(*f.From))
	}
	if f.To != nil {
		conds = append(conds, "transaction_date <= "+arg(*f.To))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListTrades returns one page of trades plus the total match count.
func (p *Postgres) ListTrades(ctx context.Context, f model.TradeFilter) ([]model.Trade, int64, error) {
	where, args := buildFilter(f)

	var total int64
	err := p.pool.QueryRow(ctx, "SELECT count(*) FROM trades"+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count trades: %w", err)
	}

	query := "SELECT " + tradeColumns + " FROM trades" + where +
		" ORDER BY (filed_at IS NULL), filed_at DESC, created_at DESC" +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, f.Limit, f.Offset)

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list trades: %w", err)
	}
	defer rows.Close()

	var trades []model.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan trade: %w", err)
		}
		trades = append(trades, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list trades: %w", err)
	}
	return trades, total, nil
}

// DeleteByFormPrefix removes trades by form prefix; empty prefix wipes the table.
func (p *Postgres) DeleteByFormPrefix(ctx context.Context, prefix string) (int64, error) {
	query := "DELETE FROM trades"
	var args []any
	if prefix != "" {
		query += " WHERE lower(form) LIKE $1"
		args = append(args, strings.ToLower(prefix)+"%")
	}

	tag, err := p.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete trades: %w", err)
	}
	return tag.RowsAffected(), nil
}
