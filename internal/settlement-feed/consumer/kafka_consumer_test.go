package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/wager-pool/internal/settlement-feed/ws"
	"github.com/radieske/wager-pool/pkg/contracts/events"
)

const pool = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

var topics = Topics{
	PoolInitialized: "wager_pool_initialized",
	BetPlaced:       "wager_bet_placed",
	BetSettled:      "wager_bet_settled",
}

type mocks struct {
	reader *MockMessageReader
	cache  *MockSettlementCache
	pub    *MockBroadcaster
	dlq    *MockDeadLetterWriter
	stages []string
}

func newProcessor(t *testing.T) (*Processor, *mocks) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	m := &mocks{
		reader: NewMockMessageReader(ctrl),
		cache:  NewMockSettlementCache(ctrl),
		pub:    NewMockBroadcaster(ctrl),
		dlq:    NewMockDeadLetterWriter(ctrl),
	}
	p := &Processor{
		Log:         zap.NewNop(),
		Reader:      m.reader,
		Cache:       m.cache,
		Broadcaster: m.pub,
		DLQ:         m.dlq,
		Topics:      topics,
		OnError:     func(stage string) { m.stages = append(m.stages, stage) },
		RetryDelay:  time.Millisecond,
	}
	return p, m
}

func settledMessage(t *testing.T) (kafka.Message, events.BetSettled) {
	t.Helper()
	ev := events.BetSettled{
		EventID:    "e1",
		Bet:        "0x0000000000000000000000000000000000000b01",
		Pool:       pool,
		Player:     "0x0000000000000000000000000000000000000b0b",
		Amount:     1000,
		Multiplier: 10000,
		Won:        true,
		Gross:      10000,
		Fee:        500,
		Payout:     9500,
		SettledAt:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	b, err := json.Marshal(ev)
	require.NoError(t, err)
	return kafka.Message{Topic: topics.BetSettled, Key: []byte(pool), Value: b}, ev
}

func TestProcessor_HandleSettled(t *testing.T) {
	p, m := newProcessor(t)
	msg, ev := settledMessage(t)

	gomock.InOrder(
		m.cache.EXPECT().SetLast(gomock.Any(), ev).Return(nil),
		m.pub.EXPECT().
			Publish(gomock.Any(), gomock.Any()).
			Do(func(_ context.Context, upd ws.Update) {
				assert.Equal(t, pool, upd.Pool)
				assert.Equal(t, ws.TypeBetSettled, upd.Type)
				assert.JSONEq(t, string(msg.Value), string(upd.Payload))
			}).
			Return(nil),
	)

	broadcasts := 0
	p.OnBroadcast = func() { broadcasts++ }
	p.Handle(context.Background(), msg)

	assert.Equal(t, 1, broadcasts)
	assert.Empty(t, m.stages)
}

func TestProcessor_HandleBetPlacedSkipsCache(t *testing.T) {
	p, m := newProcessor(t)
	b, err := json.Marshal(events.BetPlaced{EventID: "e2", Bet: "0x01", Pool: pool, Amount: 10})
	require.NoError(t, err)

	m.pub.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)

	p.Handle(context.Background(), kafka.Message{Topic: topics.BetPlaced, Value: b})
	assert.Empty(t, m.stages)
}

func TestProcessor_CacheFailureStillBroadcasts(t *testing.T) {
	p, m := newProcessor(t)
	msg, _ := settledMessage(t)

	m.cache.EXPECT().SetLast(gomock.Any(), gomock.Any()).Return(errors.New("redis down"))
	m.pub.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)

	p.Handle(context.Background(), msg)
	assert.Equal(t, []string{"cache"}, m.stages)
}

func TestProcessor_DeadLetters(t *testing.T) {
	tests := []struct {
		name string
		msg  kafka.Message
	}{
		{name: "invalid json", msg: kafka.Message{Topic: topics.BetSettled, Value: []byte("{oops")}},
		{name: "missing pool", msg: kafka.Message{Topic: topics.BetPlaced, Value: []byte(`{"bet":"0x01"}`)}},
		{name: "unknown topic", msg: kafka.Message{Topic: "wager_unknown", Value: []byte(`{}`)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, m := newProcessor(t)

			m.dlq.EXPECT().
				WriteMessages(gomock.Any(), gomock.Any()).
				Do(func(_ context.Context, msgs ...kafka.Message) {
					require.Len(t, msgs, 1)
					assert.Equal(t, tt.msg.Value, msgs[0].Value)
					require.Len(t, msgs[0].Headers, 2)
					assert.Equal(t, "source_topic", msgs[0].Headers[0].Key)
					assert.Equal(t, tt.msg.Topic, string(msgs[0].Headers[0].Value))
				}).
				Return(nil)

			p.Handle(context.Background(), tt.msg)
			assert.Equal(t, []string{"decode"}, m.stages)
		})
	}
}

func TestProcessor_RunCommitsAndStops(t *testing.T) {
	p, m := newProcessor(t)
	msg, _ := settledMessage(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var consumed []string
	p.OnConsumed = func(topic string) { consumed = append(consumed, topic) }

	gomock.InOrder(
		m.reader.EXPECT().FetchMessage(gomock.Any()).Return(kafka.Message{}, errors.New("broker unavailable")),
		m.reader.EXPECT().FetchMessage(gomock.Any()).Return(msg, nil),
		m.cache.EXPECT().SetLast(gomock.Any(), gomock.Any()).Return(nil),
		m.pub.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil),
		m.reader.EXPECT().CommitMessages(gomock.Any(), msg).Return(nil),
		m.reader.EXPECT().FetchMessage(gomock.Any()).DoAndReturn(func(context.Context) (kafka.Message, error) {
			cancel()
			return kafka.Message{}, context.Canceled
		}),
	)

	err := p.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{topics.BetSettled}, consumed)
	assert.Equal(t, []string{"read"}, m.stages)
}
