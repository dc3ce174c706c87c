// Package broadcast implements C9: fan-out of typed messages to all
// subscribers with per-subscriber backpressure, over gorilla/websocket.
package broadcast

import (
	"encoding/json"

	"orderflow-engine/model"
)

// Type is the wire discriminant for every envelope the hub emits.
type Type string

const (
	TypeBubble           Type = "Bubble"
	TypeCVDPoint         Type = "CVDPoint"
	TypeVolumeProfile    Type = "VolumeProfile"
	TypeAbsorption       Type = "Absorption"
	TypeAbsorptionZones  Type = "AbsorptionZones"
	TypeDeltaFlip        Type = "DeltaFlip"
	TypeStackedImbalance Type = "StackedImbalance"
	TypeConfluence       Type = "Confluence"
	TypeSessionStats     Type = "SessionStats"
	TypeReplayStatus     Type = "ReplayStatus"
	TypeConnected        Type = "Connected"
	TypeError            Type = "Error"
)

// freshX is the presentational `x` placement, in [0,1], stamped on every
// freshly emitted event: its starting position near the right edge of
// the consumer's horizontal time axis.
const freshX = 0.92

// Envelope is the outer wire shape every broadcast message shares: a
// discriminant `type`, the presentational `x` placement, and the
// type-specific `payload`.
type Envelope struct {
	Type    Type        `json:"type"`
	X       float64     `json:"x"`
	Payload interface{} `json:"payload"`
}

func wrap(t Type, payload interface{}) Envelope {
	return Envelope{Type: t, X: freshX, Payload: payload}
}

// Marshal encodes an envelope to JSON. Field names inside payload structs
// use lowerCamelCase json tags throughout.
func Marshal(env Envelope) ([]byte, error) { return json.Marshal(env) }

// --- payload shapes, lowerCamelCase on the wire ---

type bubblePayload struct {
	Symbol        string  `json:"symbol"`
	BucketStart   int64   `json:"bucketStart"`
	BuyVolume     int64   `json:"buyVolume"`
	SellVolume    int64   `json:"sellVolume"`
	Delta         int64   `json:"delta"`
	VWAP          string  `json:"vwap"`
	DominantSide  string  `json:"dominantSide"`
	SignificantImbalance bool `json:"significantImbalance"`
}

func BubbleEnvelope(agg model.Aggregate, significantImbalanceThreshold float64) Envelope {
	return wrap(TypeBubble, bubblePayload{
		Symbol:               agg.Symbol,
		BucketStart:          agg.BucketStart,
		BuyVolume:            agg.BuyVolume,
		SellVolume:           agg.SellVolume,
		Delta:                agg.Delta(),
		VWAP:                 agg.VWAP.String(),
		DominantSide:         string(agg.DominantSide()),
		SignificantImbalance: agg.SignificantImbalance(significantImbalanceThreshold),
	})
}

type cvdPointPayload struct {
	Symbol    string `json:"symbol"`
	Timestamp int64  `json:"timestamp"`
	Value     int64  `json:"value"`
}

func CVDPointEnvelope(p model.CVDPoint) Envelope {
	return wrap(TypeCVDPoint, cvdPointPayload{Symbol: p.Symbol, Timestamp: p.Timestamp, Value: p.Value})
}

type priceLevelPayload struct {
	Price      string `json:"price"`
	BuyVolume  int64  `json:"buyVolume"`
	SellVolume int64  `json:"sellVolume"`
}

type lvnZonePayload struct {
	MeanPrice string `json:"meanPrice"`
	LowPrice  string `json:"lowPrice"`
	HighPrice string `json:"highPrice"`
}

type volumeProfilePayload struct {
	Symbol    string              `json:"symbol"`
	Timestamp int64               `json:"timestamp"`
	Levels    []priceLevelPayload `json:"levels"`
	POC       string              `json:"poc"`
	VAH       string              `json:"vah"`
	VAL       string              `json:"val"`
	LVNZones  []lvnZonePayload    `json:"lvnZones"`
}

func VolumeProfileEnvelope(s model.VolumeProfileSnapshot) Envelope {
	levels := make([]priceLevelPayload, len(s.Levels))
	for i, l := range s.Levels {
		levels[i] = priceLevelPayload{Price: l.Price.String(), BuyVolume: l.BuyVolume, SellVolume: l.SellVolume}
	}
	zones := make([]lvnZonePayload, len(s.LVNZones))
	for i, z := range s.LVNZones {
		zones[i] = lvnZonePayload{MeanPrice: z.MeanPrice.String(), LowPrice: z.LowPrice.String(), HighPrice: z.HighPrice.String()}
	}
	return wrap(TypeVolumeProfile, volumeProfilePayload{
		Symbol: s.Symbol, Timestamp: s.Timestamp, Levels: levels,
		POC: s.POC.String(), VAH: s.VAH.String(), VAL: s.VAL.String(), LVNZones: zones,
	})
}

type absorptionPayload struct {
	Symbol        string `json:"symbol"`
	Price         string `json:"price"`
	Type          string `json:"type"`
	TotalAbsorbed int64  `json:"totalAbsorbed"`
	EventCount    int64  `json:"eventCount"`
	Strength      string `json:"strength"`
	AtKeyLevel    bool   `json:"atKeyLevel"`
	AgainstTrend  bool   `json:"againstTrend"`
}

func AbsorptionEnvelope(e model.AbsorptionEvent) Envelope {
	a := e.Accumulator
	return wrap(TypeAbsorption, absorptionPayload{
		Symbol: a.Symbol, Price: a.Price.String(), Type: string(a.Type),
		TotalAbsorbed: a.TotalAbsorbed, EventCount: a.EventCount, Strength: string(a.Strength),
		AtKeyLevel: e.AtKeyLevel, AgainstTrend: e.AgainstTrend,
	})
}

type absorptionZonesPayload struct {
	Symbol string              `json:"symbol"`
	Zones  []absorptionPayload `json:"zones"`
}

func AbsorptionZonesEnvelope(symbol string, zones []model.AbsorptionAccumulator) Envelope {
	out := make([]absorptionPayload, len(zones))
	for i, a := range zones {
		out[i] = absorptionPayload{Symbol: a.Symbol, Price: a.Price.String(), Type: string(a.Type), TotalAbsorbed: a.TotalAbsorbed, EventCount: a.EventCount, Strength: string(a.Strength)}
	}
	return wrap(TypeAbsorptionZones, absorptionZonesPayload{Symbol: symbol, Zones: out})
}

type deltaFlipPayload struct {
	Symbol    string `json:"symbol"`
	Timestamp int64  `json:"timestamp"`
	Direction string `json:"direction"`
	CVDValue  int64  `json:"cvdValue"`
}

func DeltaFlipEnvelope(symbol string, timestamp int64, direction model.Direction, cvd int64) Envelope {
	return wrap(TypeDeltaFlip, deltaFlipPayload{Symbol: symbol, Timestamp: timestamp, Direction: string(direction), CVDValue: cvd})
}

type stackedImbalancePayload struct {
	Symbol         string `json:"symbol"`
	Side           string `json:"side"`
	LevelCount     int    `json:"levelCount"`
	PriceHigh      string `json:"priceHigh"`
	PriceLow       string `json:"priceLow"`
	TotalImbalance int64  `json:"totalImbalance"`
}

func StackedImbalanceEnvelope(e model.StackedImbalanceEvent) Envelope {
	return wrap(TypeStackedImbalance, stackedImbalancePayload{
		Symbol: e.Symbol, Side: string(e.Side), LevelCount: e.LevelCount,
		PriceHigh: e.PriceHigh.String(), PriceLow: e.PriceLow.String(), TotalImbalance: e.TotalImbalance,
	})
}

type confluencePayload struct {
	Symbol    string   `json:"symbol"`
	Price     string   `json:"price"`
	Direction string   `json:"direction"`
	Score     int      `json:"score"`
	Signals   []string `json:"signals"`
}

func ConfluenceEnvelope(e model.ConfluenceEvent) Envelope {
	return wrap(TypeConfluence, confluencePayload{
		Symbol: e.Symbol, Price: e.Price.String(), Direction: string(e.Direction), Score: e.Score, Signals: e.Signals,
	})
}

type typeStatsPayload struct {
	Type      string  `json:"type"`
	Count     int64   `json:"count"`
	Bullish   int64   `json:"bullish"`
	Bearish   int64   `json:"bearish"`
	Wins      int64   `json:"wins"`
	Losses    int64   `json:"losses"`
	Breakeven int64   `json:"breakeven"`
	AvgMove1m float64 `json:"avgMove1m"`
	AvgMove5m float64 `json:"avgMove5m"`
	WinRate   float64 `json:"winRate"`
}

type sessionStatsPayload struct {
	SessionID   string             `json:"sessionId"`
	Timestamp   int64              `json:"timestamp"`
	SessionHigh string             `json:"sessionHigh"`
	SessionLow  string             `json:"sessionLow"`
	TotalVolume int64              `json:"totalVolume"`
	ByType      []typeStatsPayload `json:"byType"`
}

func SessionStatsEnvelope(s model.SessionStats) Envelope {
	byType := make([]typeStatsPayload, len(s.ByType))
	for i, ts := range s.ByType {
		byType[i] = typeStatsPayload{
			Type: string(ts.Type), Count: ts.Count, Bullish: ts.Bullish, Bearish: ts.Bearish,
			Wins: ts.Wins, Losses: ts.Losses, Breakeven: ts.Breakeven, AvgMove1m: ts.AvgMove1m, AvgMove5m: ts.AvgMove5m, WinRate: ts.WinRate,
		}
	}
	return wrap(TypeSessionStats, sessionStatsPayload{
		SessionID: s.SessionID.String(), Timestamp: s.Timestamp,
		SessionHigh: s.SessionHigh.String(), SessionLow: s.SessionLow.String(), TotalVolume: s.TotalVolume, ByType: byType,
	})
}

type replayStatusPayload struct {
	Running   bool    `json:"running"`
	Speed     float64 `json:"speed"`
	VirtualMs int64   `json:"virtualMs"`
}

func ReplayStatusEnvelope(running bool, speed float64, virtualMs int64) Envelope {
	return wrap(TypeReplayStatus, replayStatusPayload{Running: running, Speed: speed, VirtualMs: virtualMs})
}

type connectedPayload struct {
	Connected bool   `json:"connected"`
	SessionID string `json:"sessionId"`
}

func ConnectedEnvelope(sessionID string) Envelope {
	return wrap(TypeConnected, connectedPayload{Connected: true, SessionID: sessionID})
}

type errorPayload struct {
	Message string `json:"message"`
}

func ErrorEnvelope(message string) Envelope {
	return wrap(TypeError, errorPayload{Message: message})
}

// ClientCommand is an inbound message from a subscriber:
// `{action: "replay_pause"|"replay_resume"|"set_replay_speed", speed?}`
// and `{action: "set_min_size", min_size}`.
type ClientCommand struct {
	Action  string   `json:"action"`
	Speed   *float64 `json:"speed,omitempty"`
	MinSize *int64   `json:"min_size,omitempty"`
}

func ParseClientCommand(data []byte) (ClientCommand, error) {
	var cmd ClientCommand
	err := json.Unmarshal(data, &cmd)
	return cmd, err
}
