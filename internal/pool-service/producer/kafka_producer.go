package producer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	sharedkafka "github.com/radieske/wager-pool/internal/shared/kafka"
	"github.com/radieske/wager-pool/internal/wager"
	"github.com/radieske/wager-pool/pkg/contracts/events"
)

// Topics agrupa os tópicos de saída
type Topics struct {
	PoolInitialized string
	BetPlaced       string
	BetSettled      string
}

// KafkaPublisher publica os eventos de domínio depois do commit.
// Falha de publicação só é logada: o estado já foi persistido.
type KafkaPublisher struct {
	Writer  sharedkafka.MessageWriter
	Topics  Topics
	Log     *zap.Logger
	Timeout time.Duration
}

func NewKafkaPublisher(w sharedkafka.MessageWriter, topics Topics, log *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{Writer: w, Topics: topics, Log: log, Timeout: 2 * time.Second}
}

func (p *KafkaPublisher) PoolInitialized(ctx context.Context, pool wager.Pool) {
	p.publish(ctx, p.Topics.PoolInitialized, pool.Address.Hex(), events.PoolInitialized{
		EventID:   uuid.NewString(),
		Pool:      pool.Address.Hex(),
		Authority: pool.Authority.Hex(),
		Vault:     pool.Vault.Hex(),
		MinBet:    pool.MinBet,
		MaxBet:    pool.MaxBet,
		HouseEdge: pool.HouseEdge,
		CreatedAt: pool.CreatedAt,
	})
}

func (p *KafkaPublisher) BetPlaced(ctx context.Context, b wager.Bet) {
	p.publish(ctx, p.Topics.BetPlaced, b.Pool.Hex(), events.BetPlaced{
		EventID:            uuid.NewString(),
		Bet:                b.Address.Hex(),
		Pool:               b.Pool.Hex(),
		Player:             b.Player.Hex(),
		Sequence:           b.Sequence,
		Amount:             b.Amount,
		PredictedTimeAlive: b.PredictedTimeAlive,
		Timestamp:          b.Timestamp,
	})
}

func (p *KafkaPublisher) BetSettled(ctx context.Context, s wager.Settlement) {
	b := s.Bet
	p.publish(ctx, p.Topics.BetSettled, b.Pool.Hex(), events.BetSettled{
		EventID:            uuid.NewString(),
		Bet:                b.Address.Hex(),
		Pool:               b.Pool.Hex(),
		Player:             b.Player.Hex(),
		Amount:             b.Amount,
		PredictedTimeAlive: b.PredictedTimeAlive,
		ActualTimeAlive:    b.ActualTimeAlive,
		Diff:               s.Outcome.Diff,
		Multiplier:         s.Outcome.Multiplier,
		Won:                b.Won,
		Gross:              s.Outcome.Gross,
		Fee:                s.Outcome.Fee,
		Payout:             b.Payout,
		SettledAt:          b.SettledAt,
	})
}

// publish usa a chave do pool para manter a ordem dos eventos por pool
func (p *KafkaPublisher) publish(ctx context.Context, topic, key string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		p.Log.Error("marshal event", zap.String("topic", topic), zap.Error(err))
		return
	}

	// não herda o cancelamento da requisição HTTP que originou o evento
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.Timeout)
	defer cancel()

	err = p.Writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: b,
		Time:  time.Now(),
	})
	if err != nil {
		p.Log.Warn("publish event failed", zap.String("topic", topic), zap.String("key", key), zap.Error(err))
	}
}
