package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// TickTable maps symbol to its minimum price increment. Unlisted symbols
// fall back to a configured default.
type TickTable struct {
	Ticks       map[string]float64 `yaml:"ticks"`
	defaultTick float64
}

// NewTickTable builds a table that falls back to defaultTick for any
// symbol not present in overrides.
func NewTickTable(defaultTick float64, overrides map[string]float64) *TickTable {
	return &TickTable{Ticks: overrides, defaultTick: defaultTick}
}

// LoadTickTable reads a YAML file of the form `ticks: {SYMBOL: 0.5}`. A
// missing file is not an error; it just yields an empty override table.
func LoadTickTable(path string, defaultTick float64) (*TickTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewTickTable(defaultTick, nil), nil
		}
		return nil, err
	}
	var doc struct {
		Ticks map[string]float64 `yaml:"ticks"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return NewTickTable(defaultTick, doc.Ticks), nil
}

// TickFor returns the tick size for symbol.
func (t *TickTable) TickFor(symbol string) float64 {
	if t == nil {
		return 0.25
	}
	if v, ok := t.Ticks[symbol]; ok {
		return v
	}
	return t.defaultTick
}
