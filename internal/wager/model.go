package wager

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// MaxHouseEdge é 100% em basis points.
const MaxHouseEdge = 10000

// Pool é a configuração e as estatísticas agregadas de um mercado de apostas.
// Authority, MinBet, MaxBet e HouseEdge não mudam depois da criação.
type Pool struct {
	Address   common.Address
	Authority common.Address
	Vault     common.Address

	MinBet    uint64
	MaxBet    uint64
	HouseEdge uint16 // basis points (100 = 1%)

	// contadores de auditoria, só crescem
	TotalWagered uint64
	TotalPaidOut uint64
	TotalFunded  uint64

	CreatedAt time.Time
}

// PoolParams são os parâmetros informados em initialize_pool.
type PoolParams struct {
	MinBet    uint64
	MaxBet    uint64
	HouseEdge uint16
}

// Validate aplica as regras de configuração do pool.
func (p PoolParams) Validate() error {
	switch {
	case p.MinBet == 0:
		return invalidConfig("min_bet must be greater than zero")
	case p.MinBet > p.MaxBet:
		return invalidConfig("min_bet greater than max_bet")
	case p.MaxBet > MaxStake:
		return invalidConfig("max_bet above supported stake bound")
	case p.HouseEdge > MaxHouseEdge:
		return invalidConfig("house_edge above 10000 basis points")
	}
	return nil
}

// Accepts indica se o valor está dentro de [MinBet, MaxBet].
func (p Pool) Accepts(amount uint64) bool {
	return amount >= p.MinBet && amount <= p.MaxBet
}

// Bet é a aposta de um jogador: stake + previsão, liquidada uma única vez.
type Bet struct {
	Address  common.Address
	Pool     common.Address
	Player   common.Address
	Sequence uint64

	Amount             uint64
	PredictedTimeAlive uint64 // ms
	ActualTimeAlive    uint64 // ms, zero até a liquidação

	Settled   bool
	Won       bool
	Payout    uint64
	Timestamp time.Time
	SettledAt time.Time
}

// Settlement é o resultado devolvido por settle_bet.
type Settlement struct {
	Bet     Bet
	Outcome Outcome
}

// Won e Payout espelham os campos gravados na aposta.
func (s Settlement) Won() bool      { return s.Bet.Won }
func (s Settlement) Payout() uint64 { return s.Bet.Payout }

// Audit é o resultado da verificação de conservação do vault.
type Audit struct {
	Pool         common.Address
	VaultBalance uint64
	TotalWagered uint64
	TotalFunded  uint64
	TotalPaidOut uint64
	OpenBets     int
	// Balanced é falso se o vault pagou mais do que recebeu.
	Balanced bool
}
