package store

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"

	"orderflow-engine/model"
)

// ExportCSV renders signals as CSV, with the Signal field order fixed so
// CSV export -> re-import round-trips the same Signal set.
func ExportCSV(signals []model.Signal) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"id", "session_id", "created_at", "symbol", "timestamp", "type", "direction", "price_at_emit", "price_after_1m", "price_after_5m", "outcome"}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("ExportCSV: %w", err)
	}

	for _, sig := range signals {
		p1, p5 := "", ""
		if sig.PriceAfter1m != nil {
			p1 = sig.PriceAfter1m.String()
		}
		if sig.PriceAfter5m != nil {
			p5 = sig.PriceAfter5m.String()
		}
		row := []string{
			sig.ID.String(), sig.SessionID.String(), sig.CreatedAt.Format("2006-01-02T15:04:05.999999999Z07:00"),
			sig.Symbol, strconv.FormatInt(sig.Timestamp, 10), string(sig.Type), string(sig.Direction),
			sig.PriceAtEmit.String(), p1, p5, string(sig.Outcome),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("ExportCSV: %w", err)
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// ImportCSV parses the format ExportCSV writes, for the round-trip
// property in 
func ImportCSV(data []byte) ([]model.Signal, error) {
	r := csv.NewReader(bytes.NewReader(data))
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("ImportCSV: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	var out []model.Signal
	for _, rec := range records[1:] { // skip header
		row := &rowScanner{cols: rec}
		sig, err := scanSignal(row)
		if err != nil {
			return nil, fmt.Errorf("ImportCSV: %w", err)
		}
		out = append(out, sig)
	}
	return out, nil
}

// rowScanner adapts a CSV record to the scannable interface scanSignal
// expects, so query and export share one parsing path.
type rowScanner struct {
	cols []string
}

func (r *rowScanner) Scan(dest ...interface{}) error {
	if len(dest) != len(r.cols) {
		return fmt.Errorf("rowScanner: column count mismatch: %d vs %d", len(dest), len(r.cols))
	}
	for i, d := range dest {
		switch v := d.(type) {
		case *string:
			*v = r.cols[i]
		case *int64:
			n, err := strconv.ParseInt(r.cols[i], 10, 64)
			if err != nil {
				return err
			}
			*v = n
		case **string:
			if r.cols[i] == "" {
				*v = nil
			} else {
				s := r.cols[i]
				*v = &s
			}
		default:
			return fmt.Errorf("rowScanner: unsupported dest type %T", d)
		}
	}
	return nil
}

// ExportJSON renders signals as a JSON array, backing
// `GET /api/signals/export?format=json`.
func ExportJSON(signals []model.Signal) ([]byte, error) {
	return json.Marshal(signals)
}
