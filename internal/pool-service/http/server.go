package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"

	"github.com/radieske/wager-pool/internal/pool-service/dto"
	"github.com/radieske/wager-pool/internal/shared/auth"
	"github.com/radieske/wager-pool/internal/wager"
)

// Engine são as operações do engine expostas pela API
type Engine interface {
	InitializePool(ctx context.Context, authority common.Address, params wager.PoolParams) (wager.Pool, error)
	FundVault(ctx context.Context, authority, pool common.Address, amount uint64) (wager.Pool, error)
	PlaceBet(ctx context.Context, player, pool common.Address, amount, predicted uint64) (wager.Bet, error)
	SettleBet(ctx context.Context, caller, bet common.Address, actual uint64) (wager.Settlement, error)
	Deposit(ctx context.Context, account common.Address, amount uint64, ref string) (uint64, error)

	Pool(ctx context.Context, addr common.Address) (wager.Pool, error)
	Bet(ctx context.Context, addr common.Address) (wager.Bet, error)
	Bets(ctx context.Context, f wager.BetFilter) ([]wager.Bet, error)
	Balance(ctx context.Context, account common.Address) (uint64, error)
	Audit(ctx context.Context, pool common.Address) (wager.Audit, error)
}

// PoolCache é o cache de leitura de pools (opcional)
type PoolCache interface {
	Get(ctx context.Context, addr string, dst any) (bool, error)
	Set(ctx context.Context, addr string, v any) error
	Invalidate(ctx context.Context, addr string) error
}

// ReplayGuard marca requisições assinadas como usadas (opcional)
type ReplayGuard interface {
	Claim(ctx context.Context, requestID string) (bool, error)
}

// Server expõe as operações de pool, aposta e liquidação via HTTP
type Server struct {
	log      *zap.Logger
	engine   Engine
	verifier *auth.Verifier
	cache    PoolCache
	replay   ReplayGuard

	AllowDeposits bool
	Limiter       ratelimit.Limiter
}

// NewServer instancia o servidor HTTP; cache e replay podem ser nil
func NewServer(log *zap.Logger, e Engine, v *auth.Verifier, c PoolCache, r ReplayGuard) *Server {
	return &Server{log: log, engine: e, verifier: v, cache: c, replay: r}
}

// Router retorna o roteador com as rotas da API
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	if s.Limiter != nil {
		r.Use(s.rateLimit)
	}

	r.Post("/v1/pools", s.initializePool)                 // initialize_pool
	r.Get("/v1/pools/{addr}", s.getPool)                  // pool + totais
	r.Post("/v1/pools/{addr}/fund", s.fundVault)          // aporte da authority
	r.Get("/v1/pools/{addr}/audit", s.auditPool)          // conservação do vault
	r.Post("/v1/pools/{addr}/bets", s.placeBet)           // place_bet
	r.Get("/v1/pools/{addr}/bets", s.listBets)            // ?player=&open=&limit=
	r.Get("/v1/bets/{addr}", s.getBet)                    // aposta
	r.Post("/v1/bets/{addr}/settle", s.settleBet)         // settle_bet
	r.Get("/v1/accounts/{addr}", s.getAccount)            // saldo
	r.Post("/v1/accounts/{addr}/deposit", s.depositFunds) // faucet (ALLOW_DEPOSITS)
	return r
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.Limiter.Take()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) initializePool(w http.ResponseWriter, r *http.Request) {
	var req dto.InitializePoolRequest
	if !decode(w, r, &req) {
		return
	}
	authority, ok := s.authenticate(w, r, dto.OpInitializePool, req.Signed, req.SignedFields())
	if !ok {
		return
	}

	p, err := s.engine.InitializePool(r.Context(), authority, wager.PoolParams{
		MinBet:    req.MinBet,
		MaxBet:    req.MaxBet,
		HouseEdge: req.HouseEdge,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.NewPoolResponse(p))
}

func (s *Server) getPool(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r)
	if !ok {
		return
	}

	var cached dto.PoolResponse
	if s.cache != nil {
		if hit, _ := s.cache.Get(r.Context(), addr.Hex(), &cached); hit {
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	p, err := s.engine.Pool(r.Context(), addr)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := dto.NewPoolResponse(p)
	if s.cache != nil {
		_ = s.cache.Set(r.Context(), addr.Hex(), resp)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) fundVault(w http.ResponseWriter, r *http.Request) {
	pool, ok := pathAddress(w, r)
	if !ok {
		return
	}
	var req dto.FundVaultRequest
	if !decode(w, r, &req) {
		return
	}
	authority, ok := s.authenticate(w, r, dto.OpFundVault, req.Signed, req.SignedFields(pool.Hex()))
	if !ok {
		return
	}

	p, err := s.engine.FundVault(r.Context(), authority, pool, req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	s.invalidate(r.Context(), pool)
	writeJSON(w, http.StatusOK, dto.NewPoolResponse(p))
}

func (s *Server) auditPool(w http.ResponseWriter, r *http.Request) {
	pool, ok := pathAddress(w, r)
	if !ok {
		return
	}
	a, err := s.engine.Audit(r.Context(), pool)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewAuditResponse(a))
}

func (s *Server) placeBet(w http.ResponseWriter, r *http.Request) {
	pool, ok := pathAddress(w, r)
	if !ok {
		return
	}
	var req dto.PlaceBetRequest
	if !decode(w, r, &req) {
		return
	}
	player, ok := s.authenticate(w, r, dto.OpPlaceBet, req.Signed, req.SignedFields(pool.Hex()))
	if !ok {
		return
	}

	b, err := s.engine.PlaceBet(r.Context(), player, pool, req.Amount, req.PredictedTimeAlive)
	if err != nil {
		writeError(w, err)
		return
	}
	s.invalidate(r.Context(), pool)
	writeJSON(w, http.StatusCreated, dto.NewBetResponse(b))
}

func (s *Server) listBets(w http.ResponseWriter, r *http.Request) {
	pool, ok := pathAddress(w, r)
	if !ok {
		return
	}

	f := wager.BetFilter{Pool: pool}
	q := r.URL.Query()
	if v := q.Get("player"); v != "" {
		if !common.IsHexAddress(v) {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "invalid player", Code: "bad_request"})
			return
		}
		player := common.HexToAddress(v)
		f.Player = &player
	}
	if v := q.Get("open"); v != "" {
		open, err := strconv.ParseBool(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "invalid open", Code: "bad_request"})
			return
		}
		f.Open = &open
	}
	if v := q.Get("limit"); v != "" {
		f.Limit, _ = strconv.Atoi(v)
	}

	bets, err := s.engine.Bets(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]dto.BetResponse, 0, len(bets))
	for _, b := range bets {
		out = append(out, dto.NewBetResponse(b))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getBet(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r)
	if !ok {
		return
	}
	b, err := s.engine.Bet(r.Context(), addr)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewBetResponse(b))
}

func (s *Server) settleBet(w http.ResponseWriter, r *http.Request) {
	bet, ok := pathAddress(w, r)
	if !ok {
		return
	}
	var req dto.SettleBetRequest
	if !decode(w, r, &req) {
		return
	}
	caller, ok := s.authenticate(w, r, dto.OpSettleBet, req.Signed, req.SignedFields(bet.Hex()))
	if !ok {
		return
	}

	st, err := s.engine.SettleBet(r.Context(), caller, bet, req.ActualTimeAlive)
	if err != nil {
		writeError(w, err)
		return
	}
	s.invalidate(r.Context(), st.Bet.Pool)
	writeJSON(w, http.StatusOK, dto.NewSettlementResponse(st))
}

func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r)
	if !ok {
		return
	}
	bal, err := s.engine.Balance(r.Context(), addr)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.AccountResponse{Address: addr.Hex(), Balance: bal})
}

// depositFunds credita saldo de desenvolvimento na conta
func (s *Server) depositFunds(w http.ResponseWriter, r *http.Request) {
	if !s.AllowDeposits {
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "deposits disabled", Code: "deposits_disabled"})
		return
	}
	addr, ok := pathAddress(w, r)
	if !ok {
		return
	}
	var req dto.DepositRequest
	if !decode(w, r, &req) {
		return
	}
	bal, err := s.engine.Deposit(r.Context(), addr, req.Amount, req.ExternalRef)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.AccountResponse{Address: addr.Hex(), Balance: bal})
}

// authenticate verifica assinatura, nonce e replay; escreve a resposta de erro
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request, op string, signed auth.Signed, fields []string) (common.Address, bool) {
	who, err := s.verifier.Verify(op, signed, fields...)
	if err != nil {
		s.log.Warn("auth rejected", zap.String("op", op), zap.String("address", signed.Address), zap.Error(err))
		writeError(w, err)
		return common.Address{}, false
	}
	if s.replay != nil {
		fresh, err := s.replay.Claim(r.Context(), signed.RequestID(op, fields...))
		if err != nil {
			s.log.Error("replay guard", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, dto.ErrorResponse{Error: "replay guard unavailable", Code: "unavailable"})
			return common.Address{}, false
		}
		if !fresh {
			writeError(w, auth.ErrReplayedRequest)
			return common.Address{}, false
		}
	}
	return who, true
}

func (s *Server) invalidate(ctx context.Context, pool common.Address) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, pool.Hex()); err != nil {
		s.log.Warn("pool cache invalidate", zap.String("pool", pool.Hex()), zap.Error(err))
	}
}

func pathAddress(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	v := chi.URLParam(r, "addr")
	if !common.IsHexAddress(v) {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "invalid address", Code: "bad_request"})
		return common.Address{}, false
	}
	return common.HexToAddress(v), true
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "bad json", Code: "bad_request"})
		return false
	}
	return true
}

// writeError traduz erros de domínio/autenticação em status + código
func writeError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeJSON(w, status, dto.ErrorResponse{Error: err.Error(), Code: code})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrInvalidSignature), errors.Is(err, auth.ErrSignerMismatch):
		return http.StatusUnauthorized, "invalid_signature"
	case errors.Is(err, auth.ErrStaleNonce):
		return http.StatusUnauthorized, "stale_nonce"
	case errors.Is(err, auth.ErrReplayedRequest):
		return http.StatusConflict, "replayed_request"
	}

	code := wager.Code(err)
	switch code {
	case "invalid_bet_amount", "invalid_pool_config", "invalid_amount":
		return http.StatusBadRequest, code
	case "unauthorized_player", "unauthorized_authority", "vault_custody":
		return http.StatusForbidden, code
	case "pool_not_found", "bet_not_found", "account_not_found":
		return http.StatusNotFound, code
	case "bet_already_settled", "record_exists", "insufficient_funds":
		return http.StatusConflict, code
	case "arithmetic_overflow":
		return http.StatusUnprocessableEntity, code
	}
	return http.StatusInternalServerError, code
}

// writeJSON serializa e envia resposta JSON
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
