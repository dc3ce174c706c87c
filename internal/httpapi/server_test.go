package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderflow-engine/model"
	"orderflow-engine/store"
)

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	st, err := store.Open(":memory:", 100)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return NewServer(st, nil), st
}

func seedSignal(t *testing.T, st *store.Store, symbol string, sigType model.SignalType, outcome model.Outcome) {
	t.Helper()
	st.EnqueueSignal(model.Signal{
		ID:          uuid.New(),
		SessionID:   uuid.New(),
		CreatedAt:   time.Now().UTC(),
		Symbol:      symbol,
		Timestamp:   1000,
		Type:        sigType,
		Direction:   model.DirectionBullish,
		PriceAtEmit: decimal.NewFromInt(100),
		Outcome:     outcome,
	})
	require.NoError(t, st.Flush(context.Background()))
}

func TestHandleSignalsFiltersByType(t *testing.T) {
	srv, st := newTestServer(t)
	seedSignal(t, st, "ESZ5", model.SignalDeltaFlip, model.OutcomePending)
	seedSignal(t, st, "ESZ5", model.SignalAbsorption, model.OutcomePending)

	req := httptest.NewRequest(http.MethodGet, "/api/signals?signal_type=absorption", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got []model.Signal
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	require.Len(t, got, 1)
	assert.Equal(t, model.SignalAbsorption, got[0].Type)
}

func TestHandleExportCSV(t *testing.T) {
	srv, st := newTestServer(t)
	seedSignal(t, st, "ESZ5", model.SignalDeltaFlip, model.OutcomeWin)

	req := httptest.NewRequest(http.MethodGet, "/api/signals/export?format=csv", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "ESZ5")
}

func TestHandleExportUnsupportedFormat(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/signals/export?format=xml", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleStatsGroupsByTypeAndDirection(t *testing.T) {
	srv, st := newTestServer(t)
	seedSignal(t, st, "ESZ5", model.SignalDeltaFlip, model.OutcomeWin)
	seedSignal(t, st, "ESZ5", model.SignalAbsorption, model.OutcomeLoss)

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got []store.TypeStat
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Len(t, got, 2)
}

func TestHandleSignalsBadLimitReturns400(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/signals?limit=notanumber", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
