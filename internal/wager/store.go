package wager

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// Store é o substrato de registros + saldos. InTx executa fn como uma unidade
// atômica: se fn retornar erro nada é persistido.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	Pool(ctx context.Context, addr common.Address) (Pool, error)
	Bet(ctx context.Context, addr common.Address) (Bet, error)
	Bets(ctx context.Context, filter BetFilter) ([]Bet, error)
	Balance(ctx context.Context, account common.Address) (uint64, error)
}

// BetFilter filtra a listagem de apostas de um pool.
type BetFilter struct {
	Pool   common.Address
	Player *common.Address
	Open   *bool
	Limit  int // 0 = sem limite
}

// Tx são as operações disponíveis dentro de uma transação. Lock* bloqueiam o
// registro até o fim da transação.
type Tx interface {
	CreatePool(ctx context.Context, p Pool) error
	LockPool(ctx context.Context, addr common.Address) (Pool, error)
	UpdatePoolTotals(ctx context.Context, p Pool) error

	NextBetSequence(ctx context.Context, pool, player common.Address) (uint64, error)
	CreateBet(ctx context.Context, b Bet) error
	LockBet(ctx context.Context, addr common.Address) (Bet, error)
	UpdateBetSettlement(ctx context.Context, b Bet) error

	// OpenVault registra o vault como conta de custódia. Saldo de usuário
	// creditado antes no mesmo endereço é adotado e devolvido em adopted.
	// Vault já registrado => ErrRecordExists.
	OpenVault(ctx context.Context, vault, pool common.Address) (adopted uint64, err error)
	// Credit adiciona saldo vindo de fora do sistema (depósito).
	Credit(ctx context.Context, account common.Address, amount uint64, ref string) error
	// Transfer move saldo autorizado pela assinatura de from; recusa
	// origem que seja um vault (ErrVaultCustody).
	Transfer(ctx context.Context, from, to common.Address, amount uint64, ref string) error
	// TransferFromVault é a única saída de um vault.
	TransferFromVault(ctx context.Context, c Custody, to common.Address, amount uint64, ref string) error
}
