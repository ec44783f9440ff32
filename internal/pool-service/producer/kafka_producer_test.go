package producer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	sharedkafka "github.com/radieske/wager-pool/internal/shared/kafka"
	"github.com/radieske/wager-pool/internal/wager"
	"github.com/radieske/wager-pool/pkg/contracts/events"
)

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

var _ sharedkafka.MessageWriter = (*fakeWriter)(nil)

var testTopics = Topics{
	PoolInitialized: "wager_pool_initialized",
	BetPlaced:       "wager_bet_placed",
	BetSettled:      "wager_bet_settled",
}

func TestKafkaPublisher_KeysByPool(t *testing.T) {
	w := &fakeWriter{}
	p := NewKafkaPublisher(w, testTopics, zap.NewNop())
	ctx := context.Background()

	authority := common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	player := common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	pool := wager.Pool{
		Address:   wager.PoolAddress(authority),
		Authority: authority,
		Vault:     wager.VaultAddress(wager.PoolAddress(authority)),
		MinBet:    100,
		MaxBet:    10_000,
		HouseEdge: 500,
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	bet := wager.Bet{
		Address:            wager.BetAddress(pool.Address, player, 0),
		Pool:               pool.Address,
		Player:             player,
		Amount:             1_000,
		PredictedTimeAlive: 10_000,
	}

	p.PoolInitialized(ctx, pool)
	p.BetPlaced(ctx, bet)

	require.Len(t, w.msgs, 2)
	assert.Equal(t, testTopics.PoolInitialized, w.msgs[0].Topic)
	assert.Equal(t, testTopics.BetPlaced, w.msgs[1].Topic)
	for _, m := range w.msgs {
		assert.Equal(t, pool.Address.Hex(), string(m.Key))
	}

	var placed events.BetPlaced
	require.NoError(t, json.Unmarshal(w.msgs[1].Value, &placed))
	assert.Equal(t, bet.Address.Hex(), placed.Bet)
	assert.Equal(t, uint64(1_000), placed.Amount)
	assert.NotEmpty(t, placed.EventID)
}

func TestKafkaPublisher_WriteFailureIsSwallowed(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := NewKafkaPublisher(w, testTopics, zap.NewNop())

	assert.NotPanics(t, func() {
		p.BetPlaced(context.Background(), wager.Bet{})
	})
	assert.Empty(t, w.msgs)
}
