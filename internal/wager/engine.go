package wager

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Notifier recebe os eventos de domínio após o commit.
type Notifier interface {
	PoolInitialized(ctx context.Context, p Pool)
	BetPlaced(ctx context.Context, b Bet)
	BetSettled(ctx context.Context, s Settlement)
}

// Metrics recebe a observação de cada operação do engine.
type Metrics interface {
	Observe(op string, err error, start time.Time)
	ObserveStake(amount uint64)
	ObserveSettlement(o Outcome)
}

// Engine implementa as operações de pool, aposta e liquidação sobre um Store.
type Engine struct {
	store    Store
	log      *zap.Logger
	notifier Notifier
	metrics  Metrics
	now      func() time.Time
}

// NewEngine cria um engine; notifier e metrics podem ser nil.
func NewEngine(store Store, log *zap.Logger, notifier Notifier, metrics Metrics) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{store: store, log: log, notifier: notifier, metrics: metrics, now: time.Now}
}

// WithClock troca o relógio usado nos timestamps (testes).
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// InitializePool cria o pool da authority e registra seu vault.
func (e *Engine) InitializePool(ctx context.Context, authority common.Address, params PoolParams) (p Pool, err error) {
	defer e.observe("initialize_pool", time.Now(), &err)

	if authority == (common.Address{}) {
		return Pool{}, invalidConfig("authority required")
	}
	if err := params.Validate(); err != nil {
		return Pool{}, err
	}

	addr := PoolAddress(authority)
	p = Pool{
		Address:   addr,
		Authority: authority,
		Vault:     VaultAddress(addr),
		MinBet:    params.MinBet,
		MaxBet:    params.MaxBet,
		HouseEdge: params.HouseEdge,
		CreatedAt: e.now().UTC(),
	}

	err = e.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.CreatePool(ctx, p); err != nil {
			return fmt.Errorf("create pool: %w", err)
		}
		adopted, err := tx.OpenVault(ctx, p.Vault, p.Address)
		if err != nil {
			return fmt.Errorf("open vault: %w", err)
		}
		if adopted > 0 {
			// saldo enviado ao endereço antes do pool existir conta como aporte
			p.TotalFunded = adopted
			if err := tx.UpdatePoolTotals(ctx, p); err != nil {
				return fmt.Errorf("adopt vault balance: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		e.log.Warn("initialize pool rejected", zap.String("authority", authority.Hex()), zap.Error(err))
		return Pool{}, err
	}

	e.log.Info("pool initialized",
		zap.String("pool", p.Address.Hex()),
		zap.String("authority", authority.Hex()),
		zap.Uint64("min_bet", p.MinBet),
		zap.Uint64("max_bet", p.MaxBet),
		zap.Uint16("house_edge", p.HouseEdge),
	)
	if e.notifier != nil {
		e.notifier.PoolInitialized(ctx, p)
	}
	return p, nil
}

// PlaceBet cria a aposta e move o stake do jogador para o vault na mesma transação.
func (e *Engine) PlaceBet(ctx context.Context, player, pool common.Address, amount, predicted uint64) (b Bet, err error) {
	defer e.observe("place_bet", time.Now(), &err)

	if player == (common.Address{}) {
		return Bet{}, ErrUnauthorizedPlayer
	}

	err = e.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		p, err := tx.LockPool(ctx, pool)
		if err != nil {
			return err
		}
		if !p.Accepts(amount) {
			return fmt.Errorf("%w: %d outside [%d, %d]", ErrInvalidBetAmount, amount, p.MinBet, p.MaxBet)
		}

		seq, err := tx.NextBetSequence(ctx, p.Address, player)
		if err != nil {
			return fmt.Errorf("bet sequence: %w", err)
		}
		b = Bet{
			Address:            BetAddress(p.Address, player, seq),
			Pool:               p.Address,
			Player:             player,
			Sequence:           seq,
			Amount:             amount,
			PredictedTimeAlive: predicted,
			Timestamp:          e.now().UTC(),
		}
		if err := tx.CreateBet(ctx, b); err != nil {
			return fmt.Errorf("create bet: %w", err)
		}
		if err := tx.Transfer(ctx, player, p.Vault, amount, "stake:"+b.Address.Hex()); err != nil {
			return fmt.Errorf("escrow stake: %w", err)
		}

		if p.TotalWagered, err = addChecked(p.TotalWagered, amount); err != nil {
			return fmt.Errorf("total wagered: %w", err)
		}
		return tx.UpdatePoolTotals(ctx, p)
	})
	if err != nil {
		e.log.Warn("place bet rejected",
			zap.String("pool", pool.Hex()),
			zap.String("player", player.Hex()),
			zap.Uint64("amount", amount),
			zap.Error(err),
		)
		return Bet{}, err
	}

	e.log.Info("bet placed",
		zap.String("bet", b.Address.Hex()),
		zap.String("pool", b.Pool.Hex()),
		zap.String("player", player.Hex()),
		zap.Uint64("amount", amount),
		zap.Uint64("predicted_time_alive", predicted),
	)
	if e.metrics != nil {
		e.metrics.ObserveStake(amount)
	}
	if e.notifier != nil {
		e.notifier.BetPlaced(ctx, b)
	}
	return b, nil
}

// SettleBet liquida a aposta uma única vez. Guard de liquidação, gravação do
// resultado e transferência do vault acontecem na mesma transação: se o vault
// não cobrir o payout nada é gravado.
func (e *Engine) SettleBet(ctx context.Context, caller, bet common.Address, actual uint64) (s Settlement, err error) {
	defer e.observe("settle_bet", time.Now(), &err)

	err = e.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		b, err := tx.LockBet(ctx, bet)
		if err != nil {
			return err
		}
		if b.Settled {
			return ErrBetAlreadySettled
		}
		if b.Player != caller {
			return ErrUnauthorizedPlayer
		}

		p, err := tx.LockPool(ctx, b.Pool)
		if err != nil {
			return err
		}
		out, err := ComputeOutcome(b.Amount, b.PredictedTimeAlive, actual, p.HouseEdge)
		if err != nil {
			return err
		}

		b.ActualTimeAlive = actual
		b.Won = out.Won
		b.Payout = out.Payout
		b.Settled = true
		b.SettledAt = e.now().UTC()
		if err := tx.UpdateBetSettlement(ctx, b); err != nil {
			return fmt.Errorf("update bet: %w", err)
		}

		if out.Won {
			if p.TotalPaidOut, err = addChecked(p.TotalPaidOut, out.Payout); err != nil {
				return fmt.Errorf("total paid out: %w", err)
			}
			if err := tx.UpdatePoolTotals(ctx, p); err != nil {
				return err
			}
			// último passo: saída do vault sob a custódia do pool
			if err := tx.TransferFromVault(ctx, custodyFor(p), b.Player, out.Payout, "payout:"+b.Address.Hex()); err != nil {
				return fmt.Errorf("pay out: %w", err)
			}
		}

		s = Settlement{Bet: b, Outcome: out}
		return nil
	})
	if err != nil {
		e.log.Warn("settle bet rejected",
			zap.String("bet", bet.Hex()),
			zap.String("caller", caller.Hex()),
			zap.Error(err),
		)
		return Settlement{}, err
	}

	e.log.Info("bet settled",
		zap.String("bet", s.Bet.Address.Hex()),
		zap.String("pool", s.Bet.Pool.Hex()),
		zap.Uint64("diff", s.Outcome.Diff),
		zap.Uint64("multiplier", s.Outcome.Multiplier),
		zap.Bool("won", s.Bet.Won),
		zap.Uint64("payout", s.Bet.Payout),
	)
	if e.metrics != nil {
		e.metrics.ObserveSettlement(s.Outcome)
	}
	if e.notifier != nil {
		e.notifier.BetSettled(ctx, s)
	}
	return s, nil
}

func (e *Engine) observe(op string, start time.Time, err *error) {
	if e.metrics != nil {
		e.metrics.Observe(op, *err, start)
	}
}
