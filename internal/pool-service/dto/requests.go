package dto

import (
	"strconv"

	"github.com/radieske/wager-pool/internal/shared/auth"
)

// Operações assinadas (primeiro campo da mensagem canônica)
const (
	OpInitializePool = "initialize_pool"
	OpFundVault      = "fund_vault"
	OpPlaceBet       = "place_bet"
	OpSettleBet      = "settle_bet"
)

type InitializePoolRequest struct {
	auth.Signed
	MinBet    uint64 `json:"min_bet"`
	MaxBet    uint64 `json:"max_bet"`
	HouseEdge uint16 `json:"house_edge"` // basis points
}

func (r InitializePoolRequest) SignedFields() []string {
	return []string{u64(r.MinBet), u64(r.MaxBet), u64(uint64(r.HouseEdge))}
}

type FundVaultRequest struct {
	auth.Signed
	Amount uint64 `json:"amount"`
}

func (r FundVaultRequest) SignedFields(pool string) []string {
	return []string{pool, u64(r.Amount)}
}

type PlaceBetRequest struct {
	auth.Signed
	Amount             uint64 `json:"amount"`
	PredictedTimeAlive uint64 `json:"predicted_time_alive"` // ms
}

func (r PlaceBetRequest) SignedFields(pool string) []string {
	return []string{pool, u64(r.Amount), u64(r.PredictedTimeAlive)}
}

type SettleBetRequest struct {
	auth.Signed
	ActualTimeAlive uint64 `json:"actual_time_alive"` // ms, informado pelo oráculo
}

func (r SettleBetRequest) SignedFields(bet string) []string {
	return []string{bet, u64(r.ActualTimeAlive)}
}

// DepositRequest credita saldo de desenvolvimento (faucet, sem assinatura)
type DepositRequest struct {
	Amount      uint64 `json:"amount"`
	ExternalRef string `json:"external_ref,omitempty"`
}

func u64(v uint64) string { return strconv.FormatUint(v, 10) }
