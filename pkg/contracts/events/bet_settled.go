package events

import "time"

// Evento publicado no tópico "wager_bet_settled" após a liquidação.
type BetSettled struct {
	EventID            string    `json:"event_id"`
	Bet                string    `json:"bet"`
	Pool               string    `json:"pool"`
	Player             string    `json:"player"`
	Amount             uint64    `json:"amount"`
	PredictedTimeAlive uint64    `json:"predicted_time_alive"`
	ActualTimeAlive    uint64    `json:"actual_time_alive"`
	Diff               uint64    `json:"diff"`
	Multiplier         uint64    `json:"multiplier"` // milésimos (1000 = 1x)
	Won                bool      `json:"won"`
	Gross              uint64    `json:"gross"`
	Fee                uint64    `json:"fee"`
	Payout             uint64    `json:"payout"`
	SettledAt          time.Time `json:"settled_at"`
}
