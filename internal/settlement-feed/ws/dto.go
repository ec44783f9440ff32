package ws

import "encoding/json"

// Tipos de update enviados aos clientes
const (
	TypePoolInitialized = "pool_initialized"
	TypeBetPlaced       = "bet_placed"
	TypeBetSettled      = "bet_settled"
)

// ClientMsg representa uma mensagem recebida do cliente WebSocket
// Type: subscribe | unsubscribe | ping
// Pool: obrigatório para subscribe/unsubscribe
type ClientMsg struct {
	Type string `json:"type"`
	Pool string `json:"pool"`
}

// Update é o payload publicado no Redis e repassado aos inscritos do pool
type Update struct {
	Pool    string          `json:"pool"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}
