package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// PoolCache guarda a visão serializada de um pool por TTL curto.
// Os totais são só informativos; toda mutação passa pelo banco.
type PoolCache struct {
	R   *redis.Client
	TTL time.Duration
}

func NewPoolCache(r *redis.Client, ttl time.Duration) *PoolCache { return &PoolCache{R: r, TTL: ttl} }

func keyPool(addr string) string { return "wager:pool:" + addr }

// Get preenche dst se a chave existir
func (c *PoolCache) Get(ctx context.Context, addr string, dst any) (bool, error) {
	b, err := c.R.Get(ctx, keyPool(addr)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(b, dst)
}

func (c *PoolCache) Set(ctx context.Context, addr string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.R.Set(ctx, keyPool(addr), b, c.TTL).Err()
}

// Invalidate remove a visão depois de apostas/liquidações
func (c *PoolCache) Invalidate(ctx context.Context, addr string) error {
	return c.R.Del(ctx, keyPool(addr)).Err()
}

// ReplayGuard garante uso único de cada requisição assinada (SET NX com TTL)
type ReplayGuard struct {
	R   *redis.Client
	TTL time.Duration
}

func NewReplayGuard(r *redis.Client, ttl time.Duration) *ReplayGuard { return &ReplayGuard{R: r, TTL: ttl} }

// Claim retorna false se a requisição (auth.RequestID) já foi usada
func (g *ReplayGuard) Claim(ctx context.Context, requestID string) (bool, error) {
	return g.R.SetNX(ctx, "wager:req:"+requestID, 1, g.TTL).Result()
}
