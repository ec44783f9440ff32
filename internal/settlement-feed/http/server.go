package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"github.com/radieske/wager-pool/pkg/contracts/events"
)

// LastSettlementReader lê a última liquidação de um pool
type LastSettlementReader interface {
	GetLast(ctx context.Context, pool string) (events.BetSettled, bool, error)
}

// API expõe o WebSocket do feed e a consulta da última liquidação
type API struct {
	WS    http.HandlerFunc
	Cache LastSettlementReader
}

// Router retorna o roteador HTTP do feed
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/ws", a.WS)                                               // subscribe/unsubscribe por pool
	r.Get("/v1/pools/{addr}/last-settlement", a.getLastSettlement) // cache Redis
	return r
}

// writeJSON serializa a resposta em JSON e define o status HTTP
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *API) getLastSettlement(w http.ResponseWriter, r *http.Request) {
	addr := chi.URLParam(r, "addr")
	if !common.IsHexAddress(addr) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid address"})
		return
	}

	ev, ok, err := a.Cache.GetLast(r.Context(), common.HexToAddress(addr).Hex())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no settlement"})
		return
	}
	writeJSON(w, http.StatusOK, ev)
}
