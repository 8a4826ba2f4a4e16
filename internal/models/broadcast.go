package models

// BroadcastType identifies a pushed update
type BroadcastType string

const (
	BroadcastNewSignal    BroadcastType = "new_signal"
	BroadcastMarketUpdate BroadcastType = "market_update"
)

// BroadcastMessage is the envelope pushed to real-time subscribers
type BroadcastMessage struct {
	Type   BroadcastType      `json:"type"`
	Signal *Signal            `json:"signal,omitempty"`
	Data   map[string]Summary `json:"data,omitempty"`
}

// NewSignalMessage wraps a freshly generated signal
func NewSignalMessage(s *Signal) BroadcastMessage {
	return BroadcastMessage{Type: BroadcastNewSignal, Signal: s}
}

// MarketUpdateMessage wraps per-symbol quote summaries
func MarketUpdateMessage(data map[string]Summary) BroadcastMessage {
	return BroadcastMessage{Type: BroadcastMarketUpdate, Data: data}
}
