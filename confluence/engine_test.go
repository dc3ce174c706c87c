package confluence

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderflow-engine/model"
)

func TestTwoAgreeingTypesWithinWindowEmit(t *testing.T) {
	e := New("ESZ5", 30000)
	_, ok := e.Record(model.SignalDeltaFlip, model.DirectionBullish, decimal.NewFromInt(100), 0)
	require.False(t, ok)

	evt, ok := e.Record(model.SignalAbsorption, model.DirectionBullish, decimal.NewFromInt(101), 5000)
	require.True(t, ok)
	assert.Equal(t, 2, evt.Score)
	assert.Equal(t, model.DirectionBullish, evt.Direction)
	assert.ElementsMatch(t, []string{"delta_flip", "absorption"}, evt.Signals)
}

func TestTagOutsideWindowDoesNotCount(t *testing.T) {
	e := New("ESZ5", 10000)
	e.Record(model.SignalDeltaFlip, model.DirectionBullish, decimal.NewFromInt(100), 0)
	_, ok := e.Record(model.SignalAbsorption, model.DirectionBullish, decimal.NewFromInt(101), 15000)
	assert.False(t, ok, "first tag fell outside the 10s window by the time the second arrived")
}

func TestEachTagParticipatesOnlyOnce(t *testing.T) {
	e := New("ESZ5", 30000)
	e.Record(model.SignalDeltaFlip, model.DirectionBullish, decimal.NewFromInt(100), 0)
	evt1, ok := e.Record(model.SignalAbsorption, model.DirectionBullish, decimal.NewFromInt(100), 1000)
	require.True(t, ok)
	assert.Equal(t, 2, evt1.Score)

	// A third tag of a brand-new type should not immediately re-trigger
	// using the already-consumed delta_flip/absorption tags.
	_, ok2 := e.Record(model.SignalStackedImbalance, model.DirectionBullish, decimal.NewFromInt(100), 2000)
	assert.False(t, ok2)
}

func TestDisagreeingDirectionsDoNotConfluence(t *testing.T) {
	e := New("ESZ5", 30000)
	e.Record(model.SignalDeltaFlip, model.DirectionBullish, decimal.NewFromInt(100), 0)
	_, ok := e.Record(model.SignalAbsorption, model.DirectionBearish, decimal.NewFromInt(100), 1000)
	assert.False(t, ok)
}
