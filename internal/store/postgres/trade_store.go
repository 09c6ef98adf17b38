package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/tenorarb/internal/domain"
)

// TradeStore implements domain.TradeJournal using PostgreSQL: one row per
// placed pair in trades, one row per settled (or abandoned) outcome in
// trade_outcomes.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a TradeStore backed by the given connection pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

var _ domain.TradeJournal = (*TradeStore)(nil)

// RecordTrade inserts a placed trade pair and returns its journal row id.
func (s *TradeStore) RecordTrade(ctx context.Context, rec domain.TradeRecord) (int64, error) {
	const query = `
		INSERT INTO trades (
			trade_uid, symbol, placed_at, size, simulated,
			condition_id_15, token_id_15, outcome_15, price_15,
			condition_id_5, token_id_5, outcome_5, price_5
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12, $13
		) RETURNING id`

	var id int64
	err := s.pool.QueryRow(ctx, query,
		rec.ID, rec.Symbol, rec.PlacedAt, rec.Size, rec.Simulated,
		rec.Leg15.ConditionID, rec.Leg15.TokenID, rec.Leg15.Outcome, rec.Leg15.Price,
		rec.Leg5.ConditionID, rec.Leg5.TokenID, rec.Leg5.Outcome, rec.Leg5.Price,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("postgres: record trade: %w", err)
	}
	return id, nil
}

// RecordOutcome inserts a settled (or abandoned) round outcome. The row is
// self-contained, so a zero tradeID just leaves the placement reference
// null.
func (s *TradeStore) RecordOutcome(ctx context.Context, tradeID int64, out domain.RoundOutcome) error {
	const query = `
		INSERT INTO trade_outcomes (
			trade_id, symbol, trade_uid, placed_at, size, simulated,
			condition_id_15, token_id_15, outcome_15, price_15,
			condition_id_5, token_id_5, outcome_5, price_5,
			cost, payout, pnl, won_15, won_5,
			targets, abandoned, resolved_at, description
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10,
			$11, $12, $13, $14,
			$15, $16, $17, $18, $19,
			$20, $21, $22, $23
		)`

	var ref *int64
	if tradeID > 0 {
		ref = &tradeID
	}
	targets := out.Targets
	if targets == nil {
		targets = []domain.RedemptionTarget{}
	}

	t := out.Trade
	_, err := s.pool.Exec(ctx, query,
		ref, out.Symbol, t.ID, t.PlacedAt, t.Size, t.Simulated,
		t.Leg15.ConditionID, t.Leg15.TokenID, t.Leg15.Outcome, t.Leg15.Price,
		t.Leg5.ConditionID, t.Leg5.TokenID, t.Leg5.Outcome, t.Leg5.Price,
		out.Result.Cost, out.Result.Payout, out.Result.PnL, out.Result.Won15, out.Result.Won5,
		targets, out.Abandoned, out.ResolvedAt, out.Description,
	)
	if err != nil {
		return fmt.Errorf("postgres: record outcome: %w", err)
	}
	return nil
}

const outcomeSelectCols = `symbol, trade_uid, placed_at, size, simulated,
	condition_id_15, token_id_15, outcome_15, price_15,
	condition_id_5, token_id_5, outcome_5, price_5,
	cost, payout, pnl, won_15, won_5,
	targets, abandoned, resolved_at, description`

func scanOutcomeRows(rows pgx.Rows) ([]domain.RoundOutcome, error) {
	var outs []domain.RoundOutcome
	for rows.Next() {
		var o domain.RoundOutcome
		if err := rows.Scan(
			&o.Symbol, &o.Trade.ID, &o.Trade.PlacedAt, &o.Trade.Size, &o.Trade.Simulated,
			&o.Trade.Leg15.ConditionID, &o.Trade.Leg15.TokenID, &o.Trade.Leg15.Outcome, &o.Trade.Leg15.Price,
			&o.Trade.Leg5.ConditionID, &o.Trade.Leg5.TokenID, &o.Trade.Leg5.Outcome, &o.Trade.Leg5.Price,
			&o.Result.Cost, &o.Result.Payout, &o.Result.PnL, &o.Result.Won15, &o.Result.Won5,
			&o.Targets, &o.Abandoned, &o.ResolvedAt, &o.Description,
		); err != nil {
			return nil, err
		}
		o.Trade.Symbol = o.Symbol
		o.Trade.Leg15.Tenor = domain.Tenor15m
		o.Trade.Leg5.Tenor = domain.Tenor5m
		outs = append(outs, o)
	}
	return outs, rows.Err()
}

// ListRecent returns settled outcomes, newest first, with pagination and
// optional time filtering.
func (s *TradeStore) ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.RoundOutcome, error) {
	query := `SELECT ` + outcomeSelectCols + ` FROM trade_outcomes`
	var args []any
	argIdx := 1

	var conds []string
	if opts.Since != nil {
		conds = append(conds, fmt.Sprintf("resolved_at >= $%d", argIdx))
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		conds = append(conds, fmt.Sprintf("resolved_at <= $%d", argIdx))
		args = append(args, *opts.Until)
		argIdx++
	}
	for i, cond := range conds {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}

	query += " ORDER BY resolved_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list outcomes: %w", err)
	}
	defer rows.Close()

	outs, err := scanOutcomeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan outcomes: %w", err)
	}
	return outs, nil
}

// SumPnL returns the realised profit and loss across outcomes settled at
// or after the given time.
func (s *TradeStore) SumPnL(ctx context.Context, since time.Time) (float64, error) {
	var total *float64
	err := s.pool.QueryRow(ctx,
		"SELECT SUM(pnl) FROM trade_outcomes WHERE resolved_at >= $1", since,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("postgres: sum pnl: %w", err)
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}
