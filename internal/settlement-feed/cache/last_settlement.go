package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/wager-pool/pkg/contracts/events"
)

// LastSettlement guarda a última liquidação de cada pool no Redis
type LastSettlement struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewLastSettlement(c *redis.Client, ttl time.Duration) *LastSettlement {
	return &LastSettlement{Client: c, TTL: ttl}
}

func key(pool string) string { return "wager:last_settled:" + pool }

// SetLast grava o evento como última liquidação do pool
func (r *LastSettlement) SetLast(ctx context.Context, ev events.BetSettled) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return r.Client.Set(ctx, key(ev.Pool), b, r.TTL).Err()
}

// GetLast retorna a última liquidação; false se não houver (ou expirou)
func (r *LastSettlement) GetLast(ctx context.Context, pool string) (events.BetSettled, bool, error) {
	b, err := r.Client.Get(ctx, key(pool)).Bytes()
	if err == redis.Nil {
		return events.BetSettled{}, false, nil
	}
	if err != nil {
		return events.BetSettled{}, false, err
	}
	var ev events.BetSettled
	if err := json.Unmarshal(b, &ev); err != nil {
		return events.BetSettled{}, false, err
	}
	return ev, true, nil
}
