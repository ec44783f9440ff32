package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"

	"github.com/radieske/wager-pool/internal/settlement-feed/ws"
)

// publisher é o subconjunto de *redis.Client usado aqui
type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// UpdatePublisher leva os updates do consumer ao canal lido por ws.StartRedisSubscriber.
// O pool sai sempre em checksum para casar com a chave do hub em qualquer réplica.
type UpdatePublisher struct {
	r       publisher
	channel string
}

func NewUpdatePublisher(r *redis.Client, channel string) *UpdatePublisher {
	return &UpdatePublisher{r: r, channel: channel}
}

// Publish normaliza o pool e publica o update serializado no canal
func (p *UpdatePublisher) Publish(ctx context.Context, upd ws.Update) error {
	if !common.IsHexAddress(upd.Pool) {
		return fmt.Errorf("update without valid pool: %q", upd.Pool)
	}
	upd.Pool = common.HexToAddress(upd.Pool).Hex()

	b, err := json.Marshal(upd)
	if err != nil {
		return fmt.Errorf("marshal update: %w", err)
	}
	return p.r.Publish(ctx, p.channel, b).Err()
}
