// Package confluence implements C7: correlating detector outputs within a
// sliding time window into higher-order confluence signals. Tags are
// kept in a slice ordered by emission time; the window is swept by time,
// never by a pointer graph between signals.
package confluence

import (
	"github.com/shopspring/decimal"

	"orderflow-engine/model"
)

// Tag is one contributing signal recorded in the sliding window.
type Tag struct {
	Type      model.SignalType
	Direction model.Direction
	Price     decimal.Decimal
	Timestamp int64
	used      bool // consumed by a prior confluence emission
}

// Engine owns one symbol's sliding window of recent signal tags.
type Engine struct {
	symbol    string
	windowMs  int64
	tags      []Tag
}

// New creates an engine with the given sliding window (default 30s).
func New(symbol string, windowMs int64) *Engine {
	return &Engine{symbol: symbol, windowMs: windowMs}
}

// Record adds a newly-emitted signal to the window and evaluates whether
// it completes a confluence: two or more distinct signal types agreeing
// in direction within the window. Each tag participates in at most one
// confluence.
func (e *Engine) Record(sigType model.SignalType, direction model.Direction, price decimal.Decimal, timestamp int64) (model.ConfluenceEvent, bool) {
	e.tags = append(e.tags, Tag{Type: sigType, Direction: direction, Price: price, Timestamp: timestamp})
	e.evict(timestamp)

	byDirection := make(map[model.Direction]map[model.SignalType]*Tag)
	for i := range e.tags {
		t := &e.tags[i]
		if t.used {
			continue
		}
		m, ok := byDirection[t.Direction]
		if !ok {
			m = make(map[model.SignalType]*Tag)
			byDirection[t.Direction] = m
		}
		// keep the most recent tag per (direction, type)
		if existing, ok := m[t.Type]; !ok || t.Timestamp >= existing.Timestamp {
			m[t.Type] = t
		}
	}

	dir, types := bestDirection(byDirection)
	if len(types) < 2 {
		return model.ConfluenceEvent{}, false
	}

	tagNames := make([]string, 0, len(types))
	var sumPrice decimal.Decimal
	var latest int64
	for _, t := range types {
		t.used = true
		tagNames = append(tagNames, string(t.Type))
		sumPrice = sumPrice.Add(t.Price)
		if t.Timestamp > latest {
			latest = t.Timestamp
		}
	}

	avgPrice := sumPrice.Div(decimal.NewFromInt(int64(len(types))))

	return model.ConfluenceEvent{
		Symbol:    e.symbol,
		Price:     avgPrice,
		Direction: dir,
		Score:     len(types),
		Signals:   tagNames,
		Timestamp: latest,
	}, true
}

// bestDirection picks the direction with the most distinct contributing
// types (majority by count); ties broken by most recent tag timestamp
// across the tied directions.
func bestDirection(byDirection map[model.Direction]map[model.SignalType]*Tag) (model.Direction, []*Tag) {
	var bestDir model.Direction
	var bestTags []*Tag
	var bestLatest int64
	first := true

	for dir, m := range byDirection {
		tags := make([]*Tag, 0, len(m))
		var latest int64
		for _, t := range m {
			tags = append(tags, t)
			if t.Timestamp > latest {
				latest = t.Timestamp
			}
		}
		if first || len(tags) > len(bestTags) || (len(tags) == len(bestTags) && latest > bestLatest) {
			bestDir, bestTags, bestLatest, first = dir, tags, latest, false
		}
	}
	return bestDir, bestTags
}

func (e *Engine) evict(now int64) {
	cutoff := now - e.windowMs
	i := 0
	for i < len(e.tags) && e.tags[i].Timestamp < cutoff {
		i++
	}
	e.tags = e.tags[i:]
}
