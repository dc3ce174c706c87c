package tradesource

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"orderflow-engine/model"
)

// DemoSource is a pseudo-random walk trade generator: price in
// [20000, 20300], inter-trade delay uniform in [10, 50] ms, size 85% in
// [1..5], 13% in [5..50], 2% in [50..150], buy probability 0.52.
type DemoSource struct {
	Symbol string
	rng    *rand.Rand
	price  float64
	timer  *time.Timer
}

// NewDemoSource builds a demo source for symbol, seeded from seed for
// reproducible tests.
func NewDemoSource(symbol string, seed int64) *DemoSource {
	return &DemoSource{
		Symbol: symbol,
		rng:    rand.New(rand.NewSource(seed)),
		price:  20000 + rand.New(rand.NewSource(seed)).Float64()*300,
	}
}

func (d *DemoSource) Next(ctx context.Context) (model.Trade, error) {
	delayMs := 10 + d.rng.Intn(41) // [10,50]
	select {
	case <-ctx.Done():
		return model.Trade{}, ctx.Err()
	case <-time.After(time.Duration(delayMs) * time.Millisecond):
	}

	d.walkPrice()

	aggressor := model.SideSell
	if d.rng.Float64() < 0.52 {
		aggressor = model.SideBuy
	}

	return model.Trade{
		TradeID:   uuid.NewString(),
		Symbol:    d.Symbol,
		Timestamp: time.Now().UnixMilli(),
		Price:     decimal.NewFromFloat(d.price),
		Size:      d.randomSize(),
		Aggressor: aggressor,
	}, nil
}

func (d *DemoSource) walkPrice() {
	step := (d.rng.Float64() - 0.5) * 0.5
	d.price += step
	if d.price < 20000 {
		d.price = 20000
	}
	if d.price > 20300 {
		d.price = 20300
	}
}

func (d *DemoSource) randomSize() int64 {
	r := d.rng.Float64()
	switch {
	case r < 0.85:
		return int64(1 + d.rng.Intn(5)) // [1,5]
	case r < 0.98:
		return int64(5 + d.rng.Intn(46)) // [5,50]
	default:
		return int64(50 + d.rng.Intn(101)) // [50,150]
	}
}
