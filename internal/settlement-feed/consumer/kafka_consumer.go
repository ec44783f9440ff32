package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/wager-pool/internal/settlement-feed/ws"
	sharedkafka "github.com/radieske/wager-pool/internal/shared/kafka"
	"github.com/radieske/wager-pool/pkg/contracts/events"
)

// Topics mapeia os tópicos consumidos
type Topics struct {
	PoolInitialized string
	BetPlaced       string
	BetSettled      string
}

var errUnknownTopic = errors.New("unknown topic")

// Processor consome eventos de aposta do Kafka, guarda a última liquidação
// por pool e repassa tudo ao canal Redis lido pelo WebSocket.
// Mensagens que não decodificam vão para a DLQ e são commitadas.
type Processor struct {
	Log         *zap.Logger
	Reader      MessageReader
	Cache       SettlementCache
	Broadcaster Broadcaster
	DLQ         DeadLetterWriter // opcional
	Topics      Topics

	OnConsumed  func(topic string) // métricas
	OnBroadcast func()             // métricas
	OnError     func(stage string) // métricas por fase

	RetryDelay time.Duration
}

// Run inicia o loop principal de consumo
func (p *Processor) Run(ctx context.Context) error {
	for {
		m, err := p.Reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err() // encerra se o contexto for cancelado
			}
			p.Log.Warn("kafka fetch failed", zap.Error(err))
			p.fail("read")
			if !sleep(ctx, p.retryDelay()) {
				return ctx.Err()
			}
			continue
		}

		if p.OnConsumed != nil {
			p.OnConsumed(m.Topic)
		}
		p.Handle(ctx, m)

		if err := p.Reader.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.Warn("kafka commit failed", zap.Int64("offset", m.Offset), zap.Error(err))
			p.fail("commit")
		}
	}
}

// Handle processa uma mensagem; falhas de cache/broadcast são só logadas
func (p *Processor) Handle(ctx context.Context, m kafka.Message) {
	upd, settled, err := p.decode(m)
	if err != nil {
		p.Log.Warn("invalid message", zap.String("topic", m.Topic), zap.Int64("offset", m.Offset), zap.Error(err))
		p.fail("decode")
		p.deadLetter(ctx, m, err)
		return
	}

	if settled != nil {
		if err := p.Cache.SetLast(ctx, *settled); err != nil {
			p.Log.Warn("redis set last settlement failed", zap.String("pool", settled.Pool), zap.Error(err))
			p.fail("cache")
			// não bloqueia o broadcast se o cache falhar
		}
	}

	pctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	if err := p.Broadcaster.Publish(pctx, upd); err != nil {
		p.Log.Warn("ws broadcast publish failed", zap.String("pool", upd.Pool), zap.Error(err))
		p.fail("broadcast")
		return
	}
	if p.OnBroadcast != nil {
		p.OnBroadcast()
	}
}

// decode valida o payload conforme o tópico e monta o Update do WebSocket
func (p *Processor) decode(m kafka.Message) (ws.Update, *events.BetSettled, error) {
	switch m.Topic {
	case p.Topics.BetSettled:
		var ev events.BetSettled
		if err := json.Unmarshal(m.Value, &ev); err != nil {
			return ws.Update{}, nil, err
		}
		if ev.Pool == "" || ev.Bet == "" {
			return ws.Update{}, nil, errors.New("bet settled without pool/bet")
		}
		return ws.Update{Pool: ev.Pool, Type: ws.TypeBetSettled, Payload: m.Value}, &ev, nil

	case p.Topics.BetPlaced:
		var ev events.BetPlaced
		if err := json.Unmarshal(m.Value, &ev); err != nil {
			return ws.Update{}, nil, err
		}
		if ev.Pool == "" {
			return ws.Update{}, nil, errors.New("bet placed without pool")
		}
		return ws.Update{Pool: ev.Pool, Type: ws.TypeBetPlaced, Payload: m.Value}, nil, nil

	case p.Topics.PoolInitialized:
		var ev events.PoolInitialized
		if err := json.Unmarshal(m.Value, &ev); err != nil {
			return ws.Update{}, nil, err
		}
		if ev.Pool == "" {
			return ws.Update{}, nil, errors.New("pool initialized without pool")
		}
		return ws.Update{Pool: ev.Pool, Type: ws.TypePoolInitialized, Payload: m.Value}, nil, nil
	}
	return ws.Update{}, nil, fmt.Errorf("%w: %q", errUnknownTopic, m.Topic)
}

// deadLetter copia a mensagem original para a DLQ com a causa nos headers
func (p *Processor) deadLetter(ctx context.Context, m kafka.Message, cause error) {
	if p.DLQ == nil {
		return
	}
	err := sharedkafka.WriteJSON(ctx, p.DLQ, string(m.Key), m.Value,
		kafka.Header{Key: "source_topic", Value: []byte(m.Topic)},
		kafka.Header{Key: "error", Value: []byte(cause.Error())},
	)
	if err != nil {
		p.Log.Error("dlq write failed", zap.String("topic", m.Topic), zap.Error(err))
		p.fail("dlq")
	}
}

func (p *Processor) fail(stage string) {
	if p.OnError != nil {
		p.OnError(stage)
	}
}

func (p *Processor) retryDelay() time.Duration {
	if p.RetryDelay > 0 {
		return p.RetryDelay
	}
	return 500 * time.Millisecond
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
