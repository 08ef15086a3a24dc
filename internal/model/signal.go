package model

import "time"

// TradingSignal is the persisted shape of a trading signal.
//
// No generation or consumption logic exists yet — the signal engine is a
// separate system. The struct and its table are the agreed storage contract;
// /api/signals currently serves a static placeholder built from it.
type TradingSignal struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id,omitempty"`
	Symbol      string     `json:"symbol"`
	SignalType  string     `json:"type"` // "BUY" or "SELL"
	EntryPrice  float64    `json:"entry_price"`
	TargetPrice float64    `json:"target_price,omitempty"`
	StopLoss    float64    `json:"stop_loss,omitempty"`
	Timeframe   string     `json:"timeframe,omitempty"` // e.g. "1h", "4h", "1d"
	Status      string     `json:"status"`              // pending, executed, cancelled
	CreatedAt   time.Time  `json:"created_at"`
	ExecutedAt  *time.Time `json:"executed_at,omitempty"`
}

// SignalPerformance records the outcome of a closed signal.
type SignalPerformance struct {
	ID         string    `json:"id"`
	SignalID   string    `json:"signal_id"`
	ExitPrice  float64   `json:"exit_price"`
	ProfitLoss float64   `json:"profit_loss"` // percentage
	ExitReason string    `json:"exit_reason"` // target_hit, stop_loss, manual
	ClosedAt   time.Time `json:"closed_at"`
}
