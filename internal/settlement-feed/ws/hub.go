package ws

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"
)

// Hub gerencia conexões WebSocket e assinaturas por pool
type Hub struct {
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	// pool -> conexões inscritas
	subs map[string]map[*client]struct{}
}

// client serializa as escritas de uma conexão (gorilla não aceita escrita concorrente)
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

// NewHub cria uma instância de Hub com política customizada de origem
func NewHub(allowOrigin func(r *http.Request) bool) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		subs:     make(map[string]map[*client]struct{}),
	}
}

// HandleWS gerencia o ciclo de vida de uma conexão WebSocket
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	c := &client{conn: conn}

	for {
		var msg ClientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		switch msg.Type {
		case "subscribe":
			if pool, ok := poolKey(msg.Pool); ok {
				h.subscribe(pool, c)
				c.reply(map[string]string{"type": "subscribed", "pool": pool})
			} else {
				c.reply(map[string]string{"type": "error", "error": "invalid pool"})
			}
		case "unsubscribe":
			if pool, ok := poolKey(msg.Pool); ok {
				h.unsubscribe(pool, c)
			}
		case "ping":
			c.reply(map[string]string{"type": "pong"})
		}
	}

	// remove a conexão de todas as assinaturas ao desconectar
	h.mu.Lock()
	for pool, set := range h.subs {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, pool)
		}
	}
	h.mu.Unlock()
}

func (c *client) reply(v any) {
	b, _ := json.Marshal(v)
	_ = c.write(b)
}

func (h *Hub) subscribe(pool string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[pool]; !ok {
		h.subs[pool] = make(map[*client]struct{})
	}
	h.subs[pool][c] = struct{}{}
}

func (h *Hub) unsubscribe(pool string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m, ok := h.subs[pool]; ok {
		delete(m, c)
		if len(m) == 0 {
			delete(h.subs, pool)
		}
	}
}

// Subscribers retorna quantas conexões acompanham o pool
func (h *Hub) Subscribers(pool string) int {
	key, ok := poolKey(pool)
	if !ok {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[key])
}

// Broadcast envia o update para todos os inscritos no pool
func (h *Hub) Broadcast(update Update) {
	key, ok := poolKey(update.Pool)
	if !ok {
		return
	}
	h.mu.RLock()
	conns := make([]*client, 0, len(h.subs[key]))
	for c := range h.subs[key] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()
	if len(conns) == 0 {
		return
	}

	b, _ := json.Marshal(update)
	for _, c := range conns {
		_ = c.write(b)
	}
}

// poolKey normaliza o endereço (checksum) para chave de assinatura
func poolKey(pool string) (string, bool) {
	if !common.IsHexAddress(pool) {
		return "", false
	}
	return common.HexToAddress(pool).Hex(), true
}
