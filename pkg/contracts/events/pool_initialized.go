package events

import "time"

// Evento publicado no tópico "wager_pool_initialized".
type PoolInitialized struct {
	EventID   string    `json:"event_id"`
	Pool      string    `json:"pool"`
	Authority string    `json:"authority"`
	Vault     string    `json:"vault"`
	MinBet    uint64    `json:"min_bet"`
	MaxBet    uint64    `json:"max_bet"`
	HouseEdge uint16    `json:"house_edge"` // basis points
	CreatedAt time.Time `json:"created_at"`
}
