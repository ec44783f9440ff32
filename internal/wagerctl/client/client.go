package client

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/radieske/wager-pool/internal/pool-service/dto"
	"github.com/radieske/wager-pool/internal/shared/auth"
)

// APIError é a resposta de erro do pool-service
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("pool-service http %d: %s (%s)", e.Status, e.Message, e.Code)
}

// Client fala com o pool-service assinando as operações com a chave local
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Key     *ecdsa.PrivateKey // nil para consultas/deposit
	Now     func() time.Time
}

func New(base string, key *ecdsa.PrivateKey) *Client {
	return &Client{
		BaseURL: base,
		HTTP:    &http.Client{Timeout: 5 * time.Second},
		Key:     key,
		Now:     time.Now,
	}
}

func (c *Client) sign(op string, fields ...string) (auth.Signed, error) {
	if c.Key == nil {
		return auth.Signed{}, fmt.Errorf("%s requires a private key", op)
	}
	return auth.SignRequest(c.Key, op, c.Now(), fields...)
}

func (c *Client) InitializePool(ctx context.Context, minBet, maxBet uint64, houseEdge uint16) (dto.PoolResponse, error) {
	req := dto.InitializePoolRequest{MinBet: minBet, MaxBet: maxBet, HouseEdge: houseEdge}
	signed, err := c.sign(dto.OpInitializePool, req.SignedFields()...)
	if err != nil {
		return dto.PoolResponse{}, err
	}
	req.Signed = signed

	var out dto.PoolResponse
	return out, c.do(ctx, http.MethodPost, "/v1/pools", req, &out)
}

func (c *Client) FundVault(ctx context.Context, pool common.Address, amount uint64) (dto.PoolResponse, error) {
	req := dto.FundVaultRequest{Amount: amount}
	signed, err := c.sign(dto.OpFundVault, req.SignedFields(pool.Hex())...)
	if err != nil {
		return dto.PoolResponse{}, err
	}
	req.Signed = signed

	var out dto.PoolResponse
	return out, c.do(ctx, http.MethodPost, "/v1/pools/"+pool.Hex()+"/fund", req, &out)
}

func (c *Client) PlaceBet(ctx context.Context, pool common.Address, amount, predicted uint64) (dto.BetResponse, error) {
	req := dto.PlaceBetRequest{Amount: amount, PredictedTimeAlive: predicted}
	signed, err := c.sign(dto.OpPlaceBet, req.SignedFields(pool.Hex())...)
	if err != nil {
		return dto.BetResponse{}, err
	}
	req.Signed = signed

	var out dto.BetResponse
	return out, c.do(ctx, http.MethodPost, "/v1/pools/"+pool.Hex()+"/bets", req, &out)
}

func (c *Client) SettleBet(ctx context.Context, bet common.Address, actual uint64) (dto.SettlementResponse, error) {
	req := dto.SettleBetRequest{ActualTimeAlive: actual}
	signed, err := c.sign(dto.OpSettleBet, req.SignedFields(bet.Hex())...)
	if err != nil {
		return dto.SettlementResponse{}, err
	}
	req.Signed = signed

	var out dto.SettlementResponse
	return out, c.do(ctx, http.MethodPost, "/v1/bets/"+bet.Hex()+"/settle", req, &out)
}

func (c *Client) Deposit(ctx context.Context, account common.Address, amount uint64, ref string) (dto.AccountResponse, error) {
	var out dto.AccountResponse
	req := dto.DepositRequest{Amount: amount, ExternalRef: ref}
	return out, c.do(ctx, http.MethodPost, "/v1/accounts/"+account.Hex()+"/deposit", req, &out)
}

func (c *Client) Pool(ctx context.Context, pool common.Address) (dto.PoolResponse, error) {
	var out dto.PoolResponse
	return out, c.do(ctx, http.MethodGet, "/v1/pools/"+pool.Hex(), nil, &out)
}

func (c *Client) Bet(ctx context.Context, bet common.Address) (dto.BetResponse, error) {
	var out dto.BetResponse
	return out, c.do(ctx, http.MethodGet, "/v1/bets/"+bet.Hex(), nil, &out)
}

// Bets lista apostas do pool; player nil lista todos
func (c *Client) Bets(ctx context.Context, pool common.Address, player *common.Address, openOnly bool, limit int) ([]dto.BetResponse, error) {
	q := url.Values{}
	if player != nil {
		q.Set("player", player.Hex())
	}
	if openOnly {
		q.Set("open", "true")
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/v1/pools/" + pool.Hex() + "/bets"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out []dto.BetResponse
	return out, c.do(ctx, http.MethodGet, path, nil, &out)
}

func (c *Client) Balance(ctx context.Context, account common.Address) (dto.AccountResponse, error) {
	var out dto.AccountResponse
	return out, c.do(ctx, http.MethodGet, "/v1/accounts/"+account.Hex(), nil, &out)
}

func (c *Client) Audit(ctx context.Context, pool common.Address) (dto.AuditResponse, error) {
	var out dto.AuditResponse
	return out, c.do(ctx, http.MethodGet, "/v1/pools/"+pool.Hex()+"/audit", nil, &out)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		var e dto.ErrorResponse
		_ = json.NewDecoder(res.Body).Decode(&e)
		return &APIError{Status: res.StatusCode, Code: e.Code, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(res.Body).Decode(out)
}
