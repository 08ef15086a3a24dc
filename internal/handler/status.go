package handler

import (
	"net/http"
	"time"

	"github.com/miicoin/miicoin-server/internal/model"
)

// StatusHandler serves the root pages and the read-only signal and bot
// endpoints. The trading engine is not wired up yet, so /api/signals and
// /api/bot/status return placeholder payloads in the shapes the frontend
// consumes.
type StatusHandler struct{}

func NewStatusHandler() *StatusHandler {
	return &StatusHandler{}
}

// HandleIndex handles GET /.
func (h *StatusHandler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"service": "miicoin-server",
		"message": "MiiCoin signal dashboard API",
	})
}

// HandleDashboard handles GET /dashboard, the landing target after login.
func (h *StatusHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "welcome to your dashboard",
	})
}

// HandleSignals handles GET /api/signals.
func (h *StatusHandler) HandleSignals(w http.ResponseWriter, r *http.Request) {
	signals := []model.TradingSignal{
		{
			Symbol:      "MIICOIN/USDT",
			SignalType:  "BUY",
			EntryPrice:  1.234,
			TargetPrice: 1.35,
			StopLoss:    1.2,
			Timeframe:   "4h",
			Status:      "pending",
			CreatedAt:   time.Now().UTC(),
		},
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"signals": signals,
	})
}

// HandleBotStatus handles GET /api/bot/status.
func (h *StatusHandler) HandleBotStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "running",
		"active_trades": 0,
		"last_trade":    nil,
	})
}
