package realtime

import (
	"time"

	"github.com/wonny/phwatch/internal/contracts"
)

// LatestSignal is the most recent classification seen for one contract
// ⭐ SSOT: live signal state shared by the cache and the websocket stream
type LatestSignal struct {
	Contract       string                `json:"contract"`
	SnapshotMinute time.Time             `json:"snapshot_minute"`
	TradeSignal    contracts.TradeSignal `json:"tradeSignal"`
	TimeSignal     *float64              `json:"timeSignal"`
	ExcessStrength float64               `json:"excess_strength"`
	ReceivedAt     time.Time             `json:"received_at"`
	IsStale        bool                  `json:"is_stale"`
}

// MessageType tags websocket payloads
type MessageType string

const (
	MessageStatus   MessageType = "status"
	MessageOverview MessageType = "overview"
	MessageAlert    MessageType = "alert"
)

// Message is the envelope written to websocket clients
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// NewMessage stamps a payload with the current time
func NewMessage(t MessageType, payload interface{}) Message {
	return Message{Type: t, Timestamp: time.Now(), Payload: payload}
}
