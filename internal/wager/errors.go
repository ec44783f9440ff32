package wager

import (
	"errors"
	"fmt"
)

// Erros de domínio. Todos abortam a operação inteira (nenhum estado é gravado).
var (
	// validação
	ErrInvalidBetAmount  = errors.New("invalid bet amount")
	ErrInvalidPoolConfig = errors.New("invalid pool config")
	ErrInvalidAmount     = errors.New("invalid amount")

	// autorização
	ErrUnauthorizedPlayer    = errors.New("unauthorized player")
	ErrUnauthorizedAuthority = errors.New("unauthorized authority")
	ErrVaultCustody          = errors.New("vault funds require pool custody")

	// conflito de estado
	ErrBetAlreadySettled = errors.New("bet already settled")
	ErrRecordExists      = errors.New("record already exists")

	// não encontrado
	ErrPoolNotFound    = errors.New("pool not found")
	ErrBetNotFound     = errors.New("bet not found")
	ErrAccountNotFound = errors.New("account not found")

	// recursos / aritmética
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrArithmeticOverflow = errors.New("arithmetic overflow")
)

var codes = []struct {
	err  error
	code string
}{
	{ErrInvalidBetAmount, "invalid_bet_amount"},
	{ErrInvalidPoolConfig, "invalid_pool_config"},
	{ErrInvalidAmount, "invalid_amount"},
	{ErrUnauthorizedPlayer, "unauthorized_player"},
	{ErrUnauthorizedAuthority, "unauthorized_authority"},
	{ErrVaultCustody, "vault_custody"},
	{ErrBetAlreadySettled, "bet_already_settled"},
	{ErrRecordExists, "record_exists"},
	{ErrPoolNotFound, "pool_not_found"},
	{ErrBetNotFound, "bet_not_found"},
	{ErrAccountNotFound, "account_not_found"},
	{ErrInsufficientFunds, "insufficient_funds"},
	{ErrArithmeticOverflow, "arithmetic_overflow"},
}

// Code retorna o código estável de um erro de domínio ("internal" para os demais).
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "internal"
}

func invalidConfig(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidPoolConfig, reason)
}
