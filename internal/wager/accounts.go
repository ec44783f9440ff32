package wager

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// FundVault deposita fundos da própria authority no vault do pool, para
// cobrir payouts acima dos stakes recebidos.
func (e *Engine) FundVault(ctx context.Context, authority, pool common.Address, amount uint64) (p Pool, err error) {
	defer e.observe("fund_vault", time.Now(), &err)

	if amount == 0 {
		return Pool{}, fmt.Errorf("%w: zero amount", ErrInvalidAmount)
	}
	err = e.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		if p, err = tx.LockPool(ctx, pool); err != nil {
			return err
		}
		if p.Authority != authority {
			return ErrUnauthorizedAuthority
		}
		if err := tx.Transfer(ctx, authority, p.Vault, amount, "fund:"+p.Address.Hex()); err != nil {
			return fmt.Errorf("fund vault: %w", err)
		}
		if p.TotalFunded, err = addChecked(p.TotalFunded, amount); err != nil {
			return fmt.Errorf("total funded: %w", err)
		}
		return tx.UpdatePoolTotals(ctx, p)
	})
	if err != nil {
		e.log.Warn("fund vault rejected", zap.String("pool", pool.Hex()), zap.Error(err))
		return Pool{}, err
	}
	e.log.Info("vault funded", zap.String("pool", p.Address.Hex()), zap.Uint64("amount", amount))
	return p, nil
}

// Deposit credita saldo externo em uma conta de usuário.
func (e *Engine) Deposit(ctx context.Context, account common.Address, amount uint64, ref string) (balance uint64, err error) {
	defer e.observe("deposit", time.Now(), &err)

	if account == (common.Address{}) || amount == 0 {
		return 0, fmt.Errorf("%w: deposit requires account and positive amount", ErrInvalidAmount)
	}
	err = e.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.Credit(ctx, account, amount, "deposit:"+ref)
	})
	if err != nil {
		return 0, err
	}
	return e.store.Balance(ctx, account)
}

// Pool retorna o pool pelo endereço.
func (e *Engine) Pool(ctx context.Context, addr common.Address) (Pool, error) {
	return e.store.Pool(ctx, addr)
}

// Bet retorna a aposta pelo endereço.
func (e *Engine) Bet(ctx context.Context, addr common.Address) (Bet, error) {
	return e.store.Bet(ctx, addr)
}

// Bets lista apostas de um pool.
func (e *Engine) Bets(ctx context.Context, f BetFilter) ([]Bet, error) {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 100
	}
	return e.store.Bets(ctx, f)
}

// Balance retorna o saldo de uma conta (usuário ou vault).
func (e *Engine) Balance(ctx context.Context, account common.Address) (uint64, error) {
	return e.store.Balance(ctx, account)
}

// Audit confere a conservação do vault: tudo que saiu em payouts deve ter
// entrado como stake ou aporte da authority, e o saldo deve bater.
func (e *Engine) Audit(ctx context.Context, pool common.Address) (Audit, error) {
	p, err := e.store.Pool(ctx, pool)
	if err != nil {
		return Audit{}, err
	}
	bal, err := e.store.Balance(ctx, p.Vault)
	if err != nil {
		return Audit{}, err
	}
	open := true
	bets, err := e.store.Bets(ctx, BetFilter{Pool: pool, Open: &open, Limit: 0})
	if err != nil {
		return Audit{}, err
	}

	a := Audit{
		Pool:         p.Address,
		VaultBalance: bal,
		TotalWagered: p.TotalWagered,
		TotalFunded:  p.TotalFunded,
		TotalPaidOut: p.TotalPaidOut,
		OpenBets:     len(bets),
	}
	inflow, err := addChecked(p.TotalWagered, p.TotalFunded)
	a.Balanced = err == nil && p.TotalPaidOut <= inflow && inflow-p.TotalPaidOut == bal
	if !a.Balanced {
		e.log.Error("vault conservation violated",
			zap.String("pool", p.Address.Hex()),
			zap.Uint64("vault_balance", bal),
			zap.Uint64("total_wagered", p.TotalWagered),
			zap.Uint64("total_funded", p.TotalFunded),
			zap.Uint64("total_paid_out", p.TotalPaidOut),
		)
	}
	return a, nil
}
