package wager

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Tags de domínio usadas na derivação determinística de endereços.
var (
	poolTag  = []byte("pool")
	vaultTag = []byte("vault")
	betTag   = []byte("bet")
)

// PoolAddress deriva o endereço do pool de uma authority (um pool por authority).
func PoolAddress(authority common.Address) common.Address {
	return derive(poolTag, authority.Bytes())
}

// VaultAddress deriva o endereço do vault de custódia de um pool.
func VaultAddress(pool common.Address) common.Address {
	return derive(vaultTag, pool.Bytes())
}

// BetAddress deriva a chave de uma aposta a partir de (pool, player, seq).
func BetAddress(pool, player common.Address, seq uint64) common.Address {
	return derive(betTag, pool.Bytes(), player.Bytes(), binary.BigEndian.AppendUint64(nil, seq))
}

// derive = últimos 20 bytes de keccak256(tag || parts...)
func derive(tag []byte, parts ...[]byte) common.Address {
	data := append([][]byte{tag}, parts...)
	return common.BytesToAddress(crypto.Keccak256(data...))
}

// Custody representa a autoridade de custódia do vault de um pool.
// Só pode ser obtida via custodyFor e nunca é serializada; a camada de
// ledger aceita saídas do vault apenas com uma Custody válida.
type Custody struct {
	pool  common.Address
	vault common.Address
}

func custodyFor(p Pool) Custody {
	return Custody{pool: p.Address, vault: VaultAddress(p.Address)}
}

// Pool retorna o pool ao qual a custódia pertence.
func (c Custody) Pool() common.Address { return c.pool }

// Vault retorna o vault que a custódia autoriza a debitar.
func (c Custody) Vault() common.Address { return c.vault }

// Valid confere que a custódia foi derivada e não é o valor zero.
func (c Custody) Valid() bool {
	return c.pool != (common.Address{}) && c.vault == VaultAddress(c.pool)
}
