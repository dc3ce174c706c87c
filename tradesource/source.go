// Package tradesource implements C1: a lazy, unbounded sequence of
// normalized trade events, behind one contract shared by the live vendor
// adapter, the demo generator, and historical replay.
package tradesource

import (
	"context"
	"errors"

	"orderflow-engine/model"
)

// ErrEnd is returned by Next when the source is exhausted: a replay source
// at the end of its trades, a live source once its Run loop has returned.
// The demo source never ends.
var ErrEnd = errors.New("tradesource: end of stream")

// SourceFatal wraps an unrecoverable source error (auth/config) that must
// abort the pipeline rather than be retried.
type SourceFatal struct {
	Err error
}

func (e *SourceFatal) Error() string { return "tradesource: fatal: " + e.Err.Error() }
func (e *SourceFatal) Unwrap() error { return e.Err }

// Source is the shared contract of all three trade-source variants.
type Source interface {
	// Next blocks until the next trade is available, the context is
	// canceled, or the source ends. A *SourceFatal error means the
	// pipeline must shut down; ErrEnd means a clean end of stream.
	Next(ctx context.Context) (model.Trade, error)
}
