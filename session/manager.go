// Package session implements C11: opening/closing sessions and owning
// the running per-session aggregates and per-type signal counters.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"orderflow-engine/model"
)

// Manager owns one session's record and running counters, with an
// explicit Open/Close lifecycle. It is shared by every symbol's ingest
// task (RecordTrade/RecordSignal), the outcome scheduler (RecordOutcome)
// and the periodic SessionStats broadcast (Snapshot); its mutex
// serializes them.
type Manager struct {
	mu      sync.Mutex
	session model.Session
	types   map[model.SignalType]*model.TypeStats
}

// Open starts a new session in mode over symbols.
func Open(mode model.SessionMode, symbols []string) *Manager {
	return &Manager{
		session: model.Session{
			ID:        uuid.New(),
			StartedAt: time.Now().UTC(),
			Mode:      mode,
			Symbols:   symbols,
		},
		types: make(map[model.SignalType]*model.TypeStats),
	}
}

// ID returns the session's identifier.
func (m *Manager) ID() uuid.UUID { return m.session.ID }

// RecordTrade folds a trade's price/size into the running session-high,
// session-low and total-volume.
func (m *Manager) RecordTrade(price decimal.Decimal, size int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session.SessionHigh.IsZero() || price.GreaterThan(m.session.SessionHigh) {
		m.session.SessionHigh = price
	}
	if m.session.SessionLow.IsZero() || price.LessThan(m.session.SessionLow) {
		m.session.SessionLow = price
	}
	m.session.TotalVolume += size
}

// RecordSignal folds a freshly emitted signal into its type's counters.
func (m *Manager) RecordSignal(sig model.Signal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ts := m.statsFor(sig.Type)
	ts.Count++
	if sig.Direction == model.DirectionBullish {
		ts.Bullish++
	} else {
		ts.Bearish++
	}
}

// RecordOutcome folds a terminal outcome into its type's win/loss/rate
// counters.
func (m *Manager) RecordOutcome(sig model.Signal, move1m, move5m float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ts := m.statsFor(sig.Type)
	switch sig.Outcome {
	case model.OutcomeWin:
		ts.Wins++
	case model.OutcomeLoss:
		ts.Losses++
	case model.OutcomeBreakeven:
		ts.Breakeven++
	default:
		// A signal left pending at session end adds no sample to the win
		// rate or the move averages.
		return
	}
	decided := float64(ts.Wins + ts.Losses)
	if decided > 0 {
		ts.WinRate = float64(ts.Wins) / decided * 100
	}
	terminal := float64(ts.Wins + ts.Losses + ts.Breakeven)
	ts.AvgMove1m = runningAvg(ts.AvgMove1m, move1m, terminal)
	ts.AvgMove5m = runningAvg(ts.AvgMove5m, move5m, terminal)
}

func runningAvg(prevAvg, sample, countAfter float64) float64 {
	if countAfter <= 1 {
		return sample
	}
	return prevAvg + (sample-prevAvg)/countAfter
}

func (m *Manager) statsFor(t model.SignalType) *model.TypeStats {
	ts, ok := m.types[t]
	if !ok {
		ts = &model.TypeStats{Type: t}
		m.types[t] = ts
	}
	return ts
}

// Snapshot returns the current SessionStats, emitted every 1s.
func (m *Manager) Snapshot(timestamp int64) model.SessionStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	byType := make([]model.TypeStats, 0, len(m.types))
	for _, ts := range m.types {
		byType = append(byType, *ts)
	}
	return model.SessionStats{
		SessionID:   m.session.ID,
		Timestamp:   timestamp,
		SessionHigh: m.session.SessionHigh,
		SessionLow:  m.session.SessionLow,
		TotalVolume: m.session.TotalVolume,
		ByType:      byType,
	}
}

// Close ends the session, recording EndedAt, and returns the final
// record for persistence.
func (m *Manager) Close() model.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	m.session.EndedAt = &now
	return m.session
}

// Current returns a copy of the session record as it stands right now.
func (m *Manager) Current() model.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}
