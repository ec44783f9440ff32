package repo

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/radieske/wager-pool/internal/wager"
)

// Memory implementa wager.Store em memória (ENV local e testes).
// Cada transação grava num overlay com só os registros tocados; o commit
// aplica o overlay sob o lock de escrita.
type Memory struct {
	mu sync.RWMutex
	st *memState
}

// NewMemory cria um store vazio.
func NewMemory() *Memory { return &Memory{st: newMemState()} }

type seqKey struct{ pool, player common.Address }

type memState struct {
	pools    map[common.Address]wager.Pool
	bets     map[common.Address]wager.Bet
	seqs     map[seqKey]uint64
	balances map[common.Address]uint64
	vaults   map[common.Address]common.Address // vault -> pool
	journal  []LedgerEntry
}

func newMemState() *memState {
	return &memState{
		pools:    map[common.Address]wager.Pool{},
		bets:     map[common.Address]wager.Bet{},
		seqs:     map[seqKey]uint64{},
		balances: map[common.Address]uint64{},
		vaults:   map[common.Address]common.Address{},
	}
}

// apply publica o overlay de uma transação bem-sucedida
func (s *memState) apply(w *memState) {
	for k, v := range w.pools {
		s.pools[k] = v
	}
	for k, v := range w.bets {
		s.bets[k] = v
	}
	for k, v := range w.seqs {
		s.seqs[k] = v
	}
	for k, v := range w.balances {
		s.balances[k] = v
	}
	for k, v := range w.vaults {
		s.vaults[k] = v
	}
	s.journal = append(s.journal, w.journal...)
}

// InTx executa fn sobre um overlay; erro descarta o overlay inteiro.
func (m *Memory) InTx(ctx context.Context, fn func(ctx context.Context, tx wager.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{base: m.st, w: newMemState()}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	m.st.apply(tx.w)
	return nil
}

func (m *Memory) Pool(_ context.Context, addr common.Address) (wager.Pool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.st.pools[addr]
	if !ok {
		return wager.Pool{}, wager.ErrPoolNotFound
	}
	return p, nil
}

func (m *Memory) Bet(_ context.Context, addr common.Address) (wager.Bet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.st.bets[addr]
	if !ok {
		return wager.Bet{}, wager.ErrBetNotFound
	}
	return b, nil
}

func (m *Memory) Bets(_ context.Context, f wager.BetFilter) ([]wager.Bet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []wager.Bet
	for _, b := range m.st.bets {
		if b.Pool != f.Pool {
			continue
		}
		if f.Player != nil && b.Player != *f.Player {
			continue
		}
		if f.Open != nil && b.Settled == *f.Open {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].Address.Hex() < out[j].Address.Hex()
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *Memory) Balance(_ context.Context, account common.Address) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.balances[account], nil
}

// Journal retorna uma cópia do livro de movimentações.
func (m *Memory) Journal() []LedgerEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]LedgerEntry(nil), m.st.journal...)
}

// memTx lê do overlay e cai no estado base quando o registro não foi tocado
type memTx struct {
	base *memState
	w    *memState
}

func (t *memTx) pool(addr common.Address) (wager.Pool, bool) {
	if p, ok := t.w.pools[addr]; ok {
		return p, true
	}
	p, ok := t.base.pools[addr]
	return p, ok
}

func (t *memTx) bet(addr common.Address) (wager.Bet, bool) {
	if b, ok := t.w.bets[addr]; ok {
		return b, true
	}
	b, ok := t.base.bets[addr]
	return b, ok
}

func (t *memTx) balance(account common.Address) (uint64, bool) {
	if v, ok := t.w.balances[account]; ok {
		return v, true
	}
	v, ok := t.base.balances[account]
	return v, ok
}

func (t *memTx) vaultPool(vault common.Address) (common.Address, bool) {
	if p, ok := t.w.vaults[vault]; ok {
		return p, true
	}
	p, ok := t.base.vaults[vault]
	return p, ok
}

func (t *memTx) CreatePool(_ context.Context, p wager.Pool) error {
	if _, ok := t.pool(p.Address); ok {
		return fmt.Errorf("pool %s: %w", p.Address.Hex(), wager.ErrRecordExists)
	}
	t.w.pools[p.Address] = p
	return nil
}

func (t *memTx) LockPool(_ context.Context, addr common.Address) (wager.Pool, error) {
	p, ok := t.pool(addr)
	if !ok {
		return wager.Pool{}, wager.ErrPoolNotFound
	}
	return p, nil
}

func (t *memTx) UpdatePoolTotals(_ context.Context, p wager.Pool) error {
	cur, ok := t.pool(p.Address)
	if !ok {
		return wager.ErrPoolNotFound
	}
	cur.TotalWagered = p.TotalWagered
	cur.TotalPaidOut = p.TotalPaidOut
	cur.TotalFunded = p.TotalFunded
	t.w.pools[p.Address] = cur
	return nil
}

func (t *memTx) NextBetSequence(_ context.Context, pool, player common.Address) (uint64, error) {
	k := seqKey{pool, player}
	seq, ok := t.w.seqs[k]
	if !ok {
		seq = t.base.seqs[k]
	}
	t.w.seqs[k] = seq + 1
	return seq, nil
}

func (t *memTx) CreateBet(_ context.Context, b wager.Bet) error {
	if _, ok := t.bet(b.Address); ok {
		return fmt.Errorf("bet %s: %w", b.Address.Hex(), wager.ErrRecordExists)
	}
	t.w.bets[b.Address] = b
	return nil
}

func (t *memTx) LockBet(_ context.Context, addr common.Address) (wager.Bet, error) {
	b, ok := t.bet(addr)
	if !ok {
		return wager.Bet{}, wager.ErrBetNotFound
	}
	return b, nil
}

func (t *memTx) UpdateBetSettlement(_ context.Context, b wager.Bet) error {
	cur, ok := t.bet(b.Address)
	if !ok {
		return wager.ErrBetNotFound
	}
	if cur.Settled {
		return wager.ErrBetAlreadySettled
	}
	cur.ActualTimeAlive = b.ActualTimeAlive
	cur.Settled = b.Settled
	cur.Won = b.Won
	cur.Payout = b.Payout
	cur.SettledAt = b.SettledAt
	t.w.bets[b.Address] = cur
	return nil
}

// OpenVault registra o vault; uma conta de usuário já creditada no endereço
// é convertida e seu saldo devolvido para entrar como aporte do pool.
func (t *memTx) OpenVault(_ context.Context, vault, pool common.Address) (uint64, error) {
	if _, isVault := t.vaultPool(vault); isVault {
		return 0, fmt.Errorf("vault %s: %w", vault.Hex(), wager.ErrRecordExists)
	}
	bal, _ := t.balance(vault)
	t.w.vaults[vault] = pool
	t.w.balances[vault] = bal
	return bal, nil
}

func (t *memTx) Credit(_ context.Context, account common.Address, amount uint64, ref string) error {
	if _, isVault := t.vaultPool(account); isVault {
		return wager.ErrVaultCustody
	}
	if err := t.add(account, amount); err != nil {
		return err
	}
	t.record(common.Address{}, account, amount, OpCredit, ref)
	return nil
}

func (t *memTx) Transfer(_ context.Context, from, to common.Address, amount uint64, ref string) error {
	if _, isVault := t.vaultPool(from); isVault {
		return wager.ErrVaultCustody
	}
	return t.move(from, to, amount, OpTransfer, ref)
}

func (t *memTx) TransferFromVault(_ context.Context, c wager.Custody, to common.Address, amount uint64, ref string) error {
	if !c.Valid() {
		return wager.ErrVaultCustody
	}
	if pool, ok := t.vaultPool(c.Vault()); !ok || pool != c.Pool() {
		return wager.ErrVaultCustody
	}
	return t.move(c.Vault(), to, amount, OpPayout, ref)
}

func (t *memTx) move(from, to common.Address, amount uint64, op, ref string) error {
	bal, _ := t.balance(from)
	if bal < amount {
		return wager.ErrInsufficientFunds
	}
	t.w.balances[from] = bal - amount
	if err := t.add(to, amount); err != nil {
		return err
	}
	t.record(from, to, amount, op, ref)
	return nil
}

func (t *memTx) add(account common.Address, amount uint64) error {
	bal, _ := t.balance(account)
	if bal+amount < bal {
		return wager.ErrArithmeticOverflow
	}
	t.w.balances[account] = bal + amount
	return nil
}

func (t *memTx) record(from, to common.Address, amount uint64, op, ref string) {
	t.w.journal = append(t.w.journal, LedgerEntry{
		ID:        uuid.NewString(),
		From:      from,
		To:        to,
		Amount:    amount,
		Operation: op,
		Ref:       ref,
		CreatedAt: time.Now().UTC(),
	})
}
