package tradesource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"orderflow-engine/metrics"
	"orderflow-engine/model"
)

// LiveSource subscribes to the upstream market-data vendor feed over a
// WebSocket connection, parses normalized trade messages, and classifies
// the aggressor side. On disconnect it retries with exponential backoff
// (base 1s, cap 30s, random +-1s jitter); it only returns a *SourceFatal
// error on unrecoverable failures: a missing API key, a bad URL, or an
// authentication rejection.
type LiveSource struct {
	URL    string
	APIKey string

	mu       sync.Mutex
	conn     *websocket.Conn
	trades   chan model.Trade
	lastMsg  time.Time
	closed   chan struct{}
	closeOnce sync.Once
}

// wireTrade is the vendor's normalized JSON trade message.
type wireTrade struct {
	TradeID   string  `json:"trade_id"`
	Symbol    string  `json:"symbol"`
	Timestamp int64   `json:"timestamp"`
	Price     float64 `json:"price"`
	Size      int64   `json:"size"`
	Side      string  `json:"side"`
}

// NewLiveSource constructs a live source against url, authenticating with
// apiKey. The connection is not opened until Run is started.
func NewLiveSource(url, apiKey string) *LiveSource {
	return &LiveSource{
		URL:    url,
		APIKey: apiKey,
		trades: make(chan model.Trade, 256),
		closed: make(chan struct{}),
	}
}

// Run connects and reconnects until ctx is canceled or a fatal auth error
// occurs, feeding parsed trades into the internal channel that Next reads
// from. Callers must start Run in its own goroutine before calling Next.
func (s *LiveSource) Run(ctx context.Context) error {
	defer close(s.trades)

	attempt := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := s.connectAndAuthenticate(ctx); err != nil {
			var fatal *SourceFatal
			if errors.As(err, &fatal) {
				return fatal
			}
			log.Printf("⚠️ live trade source: connect failed: %v", err)
			metrics.SourceReconnects.Inc()
			if !s.sleepBackoff(ctx, attempt) {
				return nil
			}
			attempt++
			continue
		}
		attempt = 0

		if err := s.readLoop(ctx); err != nil {
			log.Printf("⚠️ live trade source: connection dropped: %v", err)
			metrics.SourceReconnects.Inc()
			if !s.sleepBackoff(ctx, attempt) {
				return nil
			}
			attempt++
		}
	}
}

func (s *LiveSource) connectAndAuthenticate(ctx context.Context) error {
	if s.APIKey == "" {
		return &SourceFatal{Err: fmt.Errorf("missing API key")}
	}

	u, err := url.Parse(s.URL)
	if err != nil {
		return &SourceFatal{Err: fmt.Errorf("bad URL: %w", err)}
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.APIKey)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return &SourceFatal{Err: fmt.Errorf("authentication rejected: %w", err)}
		}
		return fmt.Errorf("dial: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.lastMsg = time.Now()
	s.mu.Unlock()
	log.Printf("🔌 live trade source connected to %s", s.URL)
	return nil
}

func (s *LiveSource) readLoop(ctx context.Context) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close()
			return nil
		default:
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		s.mu.Lock()
		s.lastMsg = time.Now()
		s.mu.Unlock()

		trade, ok := s.parse(data)
		if !ok {
			continue
		}

		select {
		case s.trades <- trade:
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *LiveSource) parse(data []byte) (model.Trade, bool) {
	var wt wireTrade
	if err := json.Unmarshal(data, &wt); err != nil {
		metrics.MalformedTrades.Inc()
		return model.Trade{}, false
	}
	if wt.Symbol == "" || wt.Size <= 0 || wt.Timestamp <= 0 {
		metrics.MalformedTrades.Inc()
		return model.Trade{}, false
	}
	side := model.SideBuy
	if wt.Side == "sell" || wt.Side == "s" {
		side = model.SideSell
	}
	return model.Trade{
		TradeID:   wt.TradeID,
		Symbol:    wt.Symbol,
		Timestamp: wt.Timestamp,
		Price:     decimal.NewFromFloat(wt.Price),
		Size:      wt.Size,
		Aggressor: side,
	}, true
}

// sleepBackoff waits base*2^attempt (capped at 30s) with +-1s jitter.
// Returns false if ctx was canceled while waiting.
func (s *LiveSource) sleepBackoff(ctx context.Context, attempt int) bool {
	base := time.Second
	capDur := 30 * time.Second
	d := base << attempt
	if d > capDur || d <= 0 {
		d = capDur
	}
	jitter := time.Duration(rand.Int63n(int64(2*time.Second))) - time.Second
	wait := d + jitter
	if wait < 0 {
		wait = 0
	}
	select {
	case <-time.After(wait):
		return true
	case <-ctx.Done():
		return false
	}
}

// RunHealthMonitor reconnects the underlying connection if no message has
// been received in over 5 minutes.
func (s *LiveSource) RunHealthMonitor(ctx context.Context) {
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			silent := time.Since(s.lastMsg)
			conn := s.conn
			s.mu.Unlock()
			if silent > 5*time.Minute && conn != nil {
				log.Printf("⚠️ live trade source: no messages for %s, forcing reconnect", silent)
				_ = conn.Close()
			}
		}
	}
}

func (s *LiveSource) Next(ctx context.Context) (model.Trade, error) {
	select {
	case trade, ok := <-s.trades:
		if !ok {
			return model.Trade{}, ErrEnd
		}
		return trade, nil
	case <-ctx.Done():
		return model.Trade{}, ctx.Err()
	}
}
