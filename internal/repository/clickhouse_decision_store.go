package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/evandro-godoy/wtnps-finadv/internal/domain/models"
	pkgch "github.com/evandro-godoy/wtnps-finadv/pkg/clickhouse"
	applogger "github.com/evandro-godoy/wtnps-finadv/pkg/logger"
)

// CHDecisionStore persists one audit row per final decision in ClickHouse.
type CHDecisionStore struct {
	db *sql.DB
	l  *applogger.Logger
}

// DecisionSchema contains the idempotent DDL for the audit table.
var DecisionSchema = []string{
	`CREATE DATABASE IF NOT EXISTS finadv`,
	`CREATE TABLE IF NOT EXISTS finadv.decisions (
        ts           DateTime64(3, 'UTC'),
        symbol       LowCardinality(String),
        signal       LowCardinality(String),
        confidence   Float64,
        setup_valid  UInt8,
        rule_matched String,
        decision     LowCardinality(String)
    ) ENGINE = MergeTree()
    PARTITION BY toYYYYMM(ts)
    ORDER BY (symbol, ts)`,
}

func NewCHDecisionStore(ch *pkgch.Client) *CHDecisionStore {
	return &CHDecisionStore{db: ch.DB()}
}

// SetLogger injects a structured logger.
func (s *CHDecisionStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHDecisionStore) Insert(ctx context.Context, d models.FinalDecisionEvent) error {
	start := time.Now()
	const q = `
        INSERT INTO finadv.decisions
            (ts, symbol, signal, confidence, setup_valid, rule_matched, decision)
        VALUES (?, ?, ?, ?, ?, ?, ?)
    `
	valid := uint8(0)
	if d.SetupValid {
		valid = 1
	}
	_, err := s.db.ExecContext(ctx, q,
		d.Timestamp, d.Symbol, d.Signal.String(), d.Confidence,
		valid, d.RuleMatched, d.Decision.String(),
	)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse decision insert error",
				applogger.String("symbol", d.Symbol),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("insert decision: %w", err)
	}
	if s.l != nil {
		s.l.Debug("clickhouse decision insert ok",
			applogger.String("symbol", d.Symbol),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return nil
}

func (s *CHDecisionStore) Latest(ctx context.Context, symbol string, limit int) ([]models.FinalDecisionEvent, error) {
	start := time.Now()
	const q = `
        SELECT ts, symbol, signal, confidence, setup_valid, rule_matched, decision
        FROM finadv.decisions
        WHERE symbol = ?
        ORDER BY ts DESC
        LIMIT ?
    `
	rows, err := s.db.QueryContext(ctx, q, symbol, limit)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse latest_decisions query error",
				applogger.String("symbol", symbol),
				applogger.Int("limit", limit),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("latest decisions: %w", err)
	}
	defer rows.Close()

	out := make([]models.FinalDecisionEvent, 0, limit)
	for rows.Next() {
		var (
			d           models.FinalDecisionEvent
			signalStr   string
			decisionStr string
			validRaw    uint8
		)
		if err := rows.Scan(&d.Timestamp, &d.Symbol, &signalStr, &d.Confidence, &validRaw, &d.RuleMatched, &decisionStr); err != nil {
			if s.l != nil {
				s.l.Error("clickhouse latest_decisions scan error",
					applogger.String("symbol", symbol),
					applogger.Error(err),
				)
			}
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		d.SetupValid = validRaw == 1
		if cls, err := models.ParseSignalClass(signalStr); err == nil {
			d.Signal = cls
		}
		if cls, err := models.ParseSignalClass(decisionStr); err == nil {
			d.Decision = cls
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if s.l != nil {
		s.l.Debug("clickhouse latest_decisions ok",
			applogger.String("symbol", symbol),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

func (s *CHDecisionStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
