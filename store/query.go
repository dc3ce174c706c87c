package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"orderflow-engine/model"
)

// Filter selects a subset of signals, mirroring the query params accepted
// by `GET /api/signals?limit&signal_type&direction&outcome&start_date&end_date`.
type Filter struct {
	Type      model.SignalType
	Direction model.Direction
	Outcome   model.Outcome
	Start     time.Time
	End       time.Time
	Limit     int
	Offset    int
}

// QuerySignals returns signals matching filter, most recent first.
func (s *Store) QuerySignals(filter Filter) ([]model.Signal, error) {
	var clauses []string
	var args []interface{}

	if filter.Type != "" {
		clauses = append(clauses, "type = ?")
		args = append(args, string(filter.Type))
	}
	if filter.Direction != "" {
		clauses = append(clauses, "direction = ?")
		args = append(args, string(filter.Direction))
	}
	if filter.Outcome != "" {
		clauses = append(clauses, "outcome = ?")
		args = append(args, string(filter.Outcome))
	}
	if !filter.Start.IsZero() {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, filter.Start.Format(time.RFC3339Nano))
	}
	if !filter.End.IsZero() {
		clauses = append(clauses, "created_at <= ?")
		args = append(args, filter.End.Format(time.RFC3339Nano))
	}

	query := "SELECT id, session_id, created_at, symbol, timestamp, type, direction, price_at_emit, price_after_1m, price_after_5m, outcome FROM signals"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", filter.Limit, filter.Offset)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("QuerySignals: %w", err)
	}
	defer rows.Close()

	var out []model.Signal
	for rows.Next() {
		sig, err := scanSignal(rows)
		if err != nil {
			return nil, fmt.Errorf("QuerySignals: scan: %w", err)
		}
		out = append(out, sig)
	}
	return out, rows.Err()
}

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanSignal(row scannable) (model.Signal, error) {
	var (
		id, sessionID, createdAt, symbol, sigType, direction, priceAtEmit, outcome string
		timestamp                                                                  int64
		priceAfter1m, priceAfter5m                                                 *string
	)
	if err := row.Scan(&id, &sessionID, &createdAt, &symbol, &timestamp, &sigType, &direction, &priceAtEmit, &priceAfter1m, &priceAfter5m, &outcome); err != nil {
		return model.Signal{}, err
	}

	sig := model.Signal{
		Symbol:    symbol,
		Timestamp: timestamp,
		Type:      model.SignalType(sigType),
		Direction: model.Direction(direction),
		Outcome:   model.Outcome(outcome),
	}
	sig.ID, _ = uuid.Parse(id)
	sig.SessionID, _ = uuid.Parse(sessionID)
	sig.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	sig.PriceAtEmit, _ = decimal.NewFromString(priceAtEmit)
	if priceAfter1m != nil {
		d, err := decimal.NewFromString(*priceAfter1m)
		if err == nil {
			sig.PriceAfter1m = &d
		}
	}
	if priceAfter5m != nil {
		d, err := decimal.NewFromString(*priceAfter5m)
		if err == nil {
			sig.PriceAfter5m = &d
		}
	}
	return sig, nil
}

// TypeStat is one row of the aggregate-stats-by-type-and-direction
// surface the `GET /api/stats` documents.
type TypeStat struct {
	Type      model.SignalType
	Direction model.Direction
	Count     int64
	Wins      int64
	Losses    int64
	Breakeven int64
	Pending   int64
}

// Stats computes aggregate signal counts grouped by type and direction.
func (s *Store) Stats() ([]TypeStat, error) {
	rows, err := s.db.Query(`
		SELECT type, direction,
			COUNT(*) AS total,
			SUM(CASE WHEN outcome='win' THEN 1 ELSE 0 END) AS wins,
			SUM(CASE WHEN outcome='loss' THEN 1 ELSE 0 END) AS losses,
			SUM(CASE WHEN outcome='breakeven' THEN 1 ELSE 0 END) AS breakeven,
			SUM(CASE WHEN outcome='pending' THEN 1 ELSE 0 END) AS pending
		FROM signals
		GROUP BY type, direction
	`)
	if err != nil {
		return nil, fmt.Errorf("Stats: %w", err)
	}
	defer rows.Close()

	var out []TypeStat
	for rows.Next() {
		var st TypeStat
		var t, d string
		if err := rows.Scan(&t, &d, &st.Count, &st.Wins, &st.Losses, &st.Breakeven, &st.Pending); err != nil {
			return nil, fmt.Errorf("Stats: scan: %w", err)
		}
		st.Type, st.Direction = model.SignalType(t), model.Direction(d)
		out = append(out, st)
	}
	return out, rows.Err()
}

// QuerySessions returns the most recent sessions, backing
// `GET /api/sessions?limit`.
func (s *Store) QuerySessions(limit int) ([]model.Session, error) {
	query := "SELECT id, started_at, ended_at, mode, symbols, session_high, session_low, total_volume FROM sessions ORDER BY started_at DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("QuerySessions: %w", err)
	}
	defer rows.Close()

	var out []model.Session
	for rows.Next() {
		var (
			id, startedAt, mode, symbolsCSV, high, low string
			endedAt                                     *string
			totalVolume                                 int64
		)
		if err := rows.Scan(&id, &startedAt, &endedAt, &mode, &symbolsCSV, &high, &low, &totalVolume); err != nil {
			return nil, fmt.Errorf("QuerySessions: scan: %w", err)
		}
		sess := model.Session{Mode: model.SessionMode(mode), TotalVolume: totalVolume}
		sess.ID, _ = uuid.Parse(id)
		sess.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
		if endedAt != nil {
			t, err := time.Parse(time.RFC3339Nano, *endedAt)
			if err == nil {
				sess.EndedAt = &t
			}
		}
		if symbolsCSV != "" {
			sess.Symbols = strings.Split(symbolsCSV, ",")
		}
		sess.SessionHigh, _ = decimal.NewFromString(high)
		sess.SessionLow, _ = decimal.NewFromString(low)
		out = append(out, sess)
	}
	return out, rows.Err()
}
