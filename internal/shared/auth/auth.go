// Package auth verifica que uma operação foi assinada pelo dono de uma identidade.
//
// Identidades são endereços de 20 bytes derivados de chaves secp256k1. A
// mensagem assinada é canônica (Message) e recebe o prefixo EIP-191 antes do
// hash, de modo que carteiras comuns conseguem assinar.
package auth

import (
	"crypto/ecdsa"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrInvalidSignature = errors.New("invalid signature")
	ErrSignerMismatch   = errors.New("signature does not match address")
	ErrStaleNonce       = errors.New("nonce outside accepted window")
	ErrReplayedRequest  = errors.New("signature already used")
)

const domain = "wager-pool"

// Message monta a mensagem canônica "wager-pool|op|campo|campo...".
func Message(op string, fields ...string) []byte {
	parts := append([]string{domain, op}, fields...)
	return []byte(strings.Join(parts, "|"))
}

// Sign assina msg e devolve a assinatura em hex (65 bytes, 0x-prefixada).
func Sign(key *ecdsa.PrivateKey, msg []byte) (string, error) {
	sig, err := crypto.Sign(accounts.TextHash(msg), key)
	if err != nil {
		return "", err
	}
	return hexutil.Encode(sig), nil
}

// Recover devolve o endereço que assinou msg.
func Recover(msg []byte, sigHex string) (common.Address, error) {
	sig, err := hexutil.Decode(sigHex)
	if err != nil || len(sig) != crypto.SignatureLength {
		return common.Address{}, ErrInvalidSignature
	}
	// carteiras usam v = 27/28
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(accounts.TextHash(msg), sig)
	if err != nil {
		return common.Address{}, ErrInvalidSignature
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// Signed são os campos de autenticação presentes em toda requisição mutável.
type Signed struct {
	Address   string `json:"address"`
	Nonce     int64  `json:"nonce"` // unix ms
	Signature string `json:"signature"`
}

// Fields monta os campos assinados: endereço, nonce e os campos da operação.
func (s Signed) Fields(fields ...string) []string {
	return append([]string{common.HexToAddress(s.Address).Hex(), strconv.FormatInt(s.Nonce, 10)}, fields...)
}

// RequestID identifica a mensagem assinada (não a assinatura, que é maleável).
func (s Signed) RequestID(op string, fields ...string) string {
	return crypto.Keccak256Hash(Message(op, s.Fields(fields...)...)).Hex()
}

// Verifier confere assinatura e janela do nonce.
type Verifier struct {
	Window time.Duration
	Now    func() time.Time
}

func NewVerifier(window time.Duration) *Verifier {
	return &Verifier{Window: window, Now: time.Now}
}

// Verify retorna a identidade autenticada para a operação op.
func (v *Verifier) Verify(op string, s Signed, fields ...string) (common.Address, error) {
	if !common.IsHexAddress(s.Address) {
		return common.Address{}, ErrInvalidSignature
	}
	if v.Window > 0 {
		age := v.Now().Sub(time.UnixMilli(s.Nonce))
		if age > v.Window || age < -v.Window {
			return common.Address{}, ErrStaleNonce
		}
	}

	claimed := common.HexToAddress(s.Address)
	signer, err := Recover(Message(op, s.Fields(fields...)...), s.Signature)
	if err != nil {
		return common.Address{}, err
	}
	if signer != claimed {
		return common.Address{}, ErrSignerMismatch
	}
	return signer, nil
}

// SignRequest preenche Signed para o dono de key (usado pelo cliente).
func SignRequest(key *ecdsa.PrivateKey, op string, nonce time.Time, fields ...string) (Signed, error) {
	s := Signed{
		Address: crypto.PubkeyToAddress(key.PublicKey).Hex(),
		Nonce:   nonce.UnixMilli(),
	}
	sig, err := Sign(key, Message(op, s.Fields(fields...)...))
	if err != nil {
		return Signed{}, err
	}
	s.Signature = sig
	return s, nil
}
