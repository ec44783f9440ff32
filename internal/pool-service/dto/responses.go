package dto

import (
	"time"

	"github.com/radieske/wager-pool/internal/wager"
)

type PoolResponse struct {
	Address      string    `json:"address"`
	Authority    string    `json:"authority"`
	Vault        string    `json:"vault"`
	MinBet       uint64    `json:"min_bet"`
	MaxBet       uint64    `json:"max_bet"`
	HouseEdge    uint16    `json:"house_edge"`
	TotalWagered uint64    `json:"total_wagered"`
	TotalPaidOut uint64    `json:"total_paid_out"`
	TotalFunded  uint64    `json:"total_funded"`
	CreatedAt    time.Time `json:"created_at"`
}

func NewPoolResponse(p wager.Pool) PoolResponse {
	return PoolResponse{
		Address:      p.Address.Hex(),
		Authority:    p.Authority.Hex(),
		Vault:        p.Vault.Hex(),
		MinBet:       p.MinBet,
		MaxBet:       p.MaxBet,
		HouseEdge:    p.HouseEdge,
		TotalWagered: p.TotalWagered,
		TotalPaidOut: p.TotalPaidOut,
		TotalFunded:  p.TotalFunded,
		CreatedAt:    p.CreatedAt,
	}
}

type BetResponse struct {
	Address            string     `json:"address"`
	Pool               string     `json:"pool"`
	Player             string     `json:"player"`
	Sequence           uint64     `json:"sequence"`
	Amount             uint64     `json:"amount"`
	PredictedTimeAlive uint64     `json:"predicted_time_alive"`
	ActualTimeAlive    uint64     `json:"actual_time_alive"`
	Settled            bool       `json:"settled"`
	Won                bool       `json:"won"`
	Payout             uint64     `json:"payout"`
	Timestamp          time.Time  `json:"timestamp"`
	SettledAt          *time.Time `json:"settled_at,omitempty"`
}

func NewBetResponse(b wager.Bet) BetResponse {
	r := BetResponse{
		Address:            b.Address.Hex(),
		Pool:               b.Pool.Hex(),
		Player:             b.Player.Hex(),
		Sequence:           b.Sequence,
		Amount:             b.Amount,
		PredictedTimeAlive: b.PredictedTimeAlive,
		ActualTimeAlive:    b.ActualTimeAlive,
		Settled:            b.Settled,
		Won:                b.Won,
		Payout:             b.Payout,
		Timestamp:          b.Timestamp,
	}
	if b.Settled {
		t := b.SettledAt
		r.SettledAt = &t
	}
	return r
}

type SettlementResponse struct {
	Bet        BetResponse `json:"bet"`
	Won        bool        `json:"won"`
	Payout     uint64      `json:"payout"`
	Diff       uint64      `json:"diff"`
	Multiplier uint64      `json:"multiplier"` // milésimos
	Gross      uint64      `json:"gross"`
	Fee        uint64      `json:"fee"`
}

func NewSettlementResponse(s wager.Settlement) SettlementResponse {
	return SettlementResponse{
		Bet:        NewBetResponse(s.Bet),
		Won:        s.Won(),
		Payout:     s.Payout(),
		Diff:       s.Outcome.Diff,
		Multiplier: s.Outcome.Multiplier,
		Gross:      s.Outcome.Gross,
		Fee:        s.Outcome.Fee,
	}
}

type AccountResponse struct {
	Address string `json:"address"`
	Balance uint64 `json:"balance"`
}

type AuditResponse struct {
	Pool         string `json:"pool"`
	VaultBalance uint64 `json:"vault_balance"`
	TotalWagered uint64 `json:"total_wagered"`
	TotalFunded  uint64 `json:"total_funded"`
	TotalPaidOut uint64 `json:"total_paid_out"`
	OpenBets     int    `json:"open_bets"`
	Balanced     bool   `json:"balanced"`
}

func NewAuditResponse(a wager.Audit) AuditResponse {
	return AuditResponse{
		Pool:         a.Pool.Hex(),
		VaultBalance: a.VaultBalance,
		TotalWagered: a.TotalWagered,
		TotalFunded:  a.TotalFunded,
		TotalPaidOut: a.TotalPaidOut,
		OpenBets:     a.OpenBets,
		Balanced:     a.Balanced,
	}
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
