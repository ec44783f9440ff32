package consumer

import (
	"context"

	"github.com/segmentio/kafka-go"

	"github.com/radieske/wager-pool/internal/settlement-feed/ws"
	"github.com/radieske/wager-pool/pkg/contracts/events"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	MessageReader interface {
		FetchMessage(ctx context.Context) (kafka.Message, error)
		CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	}
	SettlementCache interface {
		SetLast(ctx context.Context, ev events.BetSettled) error
	}
	Broadcaster interface {
		Publish(ctx context.Context, upd ws.Update) error
	}
	DeadLetterWriter interface {
		WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	}
)
