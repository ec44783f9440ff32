package repo

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Tipos de operação gravados no livro (ledger_entries.operation).
const (
	OpCredit   = "CREDIT"
	OpTransfer = "TRANSFER"
	OpPayout   = "PAYOUT"
)

// LedgerEntry é uma linha do livro de movimentações. From zero = crédito externo.
type LedgerEntry struct {
	ID        string
	From      common.Address
	To        common.Address
	Amount    uint64
	Operation string
	Ref       string
	CreatedAt time.Time
}
