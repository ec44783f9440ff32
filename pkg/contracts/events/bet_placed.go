package events

import "time"

// Evento publicado no tópico "wager_bet_placed" após o commit da aposta.
type BetPlaced struct {
	EventID            string    `json:"event_id"`
	Bet                string    `json:"bet"`
	Pool               string    `json:"pool"`
	Player             string    `json:"player"`
	Sequence           uint64    `json:"sequence"`
	Amount             uint64    `json:"amount"`
	PredictedTimeAlive uint64    `json:"predicted_time_alive"`
	Timestamp          time.Time `json:"timestamp"`
}
