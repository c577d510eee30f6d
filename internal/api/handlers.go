package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"
	"github.com/holiman/uint256"

	"roundpool/internal/amm"
	"roundpool/internal/vault"
	"roundpool/pkg/types"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins for local development
		// TODO: restrict in production
		return true
	},
}

// Handlers holds all HTTP handler dependencies. Trade endpoints trust the
// user address in the request body; the server is meant to sit behind an
// authenticating gateway.
type Handlers struct {
	engine *amm.Engine
	vault  *vault.Vault
	hub    *Hub
	dryRun bool
	logger *slog.Logger
}

// NewHandlers creates a new handlers instance.
func NewHandlers(engine *amm.Engine, v *vault.Vault, hub *Hub, dryRun bool, logger *slog.Logger) *Handlers {
	return &Handlers{
		engine: engine,
		vault:  v,
		hub:    hub,
		dryRun: dryRun,
		logger: logger.With("component", "api-handlers"),
	}
}

// HandleHealth returns a simple health check response.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleStatus returns the resolution window status.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.engine.CheckResolutionStatus())
}

// HandleMarkets returns the market registry.
func (h *Handlers) HandleMarkets(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.engine.Markets())
}

// HandleCurrentRound returns a market's current round state.
func (h *Handlers) HandleCurrentRound(w http.ResponseWriter, r *http.Request) {
	marketID, err := pathUint(r, "id")
	if err != nil {
		h.writeError(w, err)
		return
	}
	info, err := h.engine.CurrentRoundInfo(marketID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, info)
}

// HandleRound returns any round's state.
func (h *Handlers) HandleRound(w http.ResponseWriter, r *http.Request) {
	marketID, err := pathUint(r, "id")
	if err != nil {
		h.writeError(w, err)
		return
	}
	roundID, err := pathUint(r, "round")
	if err != nil {
		h.writeError(w, err)
		return
	}
	info, err := h.engine.RoundInfo(marketID, roundID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, info)
}

// HandleAmountOut previews an enter trade.
// Query: amount (decimal), round, side (YES|NO).
func (h *Handlers) HandleAmountOut(w http.ResponseWriter, r *http.Request) {
	marketID, err := pathUint(r, "id")
	if err != nil {
		h.writeError(w, err)
		return
	}
	amount, err := types.ParseAmount(r.URL.Query().Get("amount"))
	if err != nil {
		h.writeError(w, fmt.Errorf("%s: %w", err, amm.ErrInvalidInput))
		return
	}
	roundID, err := strconv.ParseUint(r.URL.Query().Get("round"), 10, 64)
	if err != nil {
		h.writeError(w, fmt.Errorf("bad round: %w", amm.ErrInvalidInput))
		return
	}
	side, err := parseSide(r.URL.Query().Get("side"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	out, err := h.engine.AmountOut(amount, marketID, roundID, side)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"amount_out": types.FormatAmount(out)})
}

type enterRequest struct {
	User         string `json:"user"`
	RoundID      uint64 `json:"round_id"`
	Side         string `json:"side"`
	GrossAmount  string `json:"gross_amount_in"`
	MinAmountOut string `json:"min_amount_out"`
}

// HandleEnter executes an enter trade for the given user.
func (h *Handlers) HandleEnter(w http.ResponseWriter, r *http.Request) {
	marketID, err := pathUint(r, "id")
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req enterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, fmt.Errorf("bad body: %w", amm.ErrInvalidInput))
		return
	}
	user, err := parseAddress(req.User)
	if err != nil {
		h.writeError(w, err)
		return
	}
	side, err := parseSide(req.Side)
	if err != nil {
		h.writeError(w, err)
		return
	}
	gross, err := types.ParseAmount(req.GrossAmount)
	if err != nil {
		h.writeError(w, fmt.Errorf("%s: %w", err, amm.ErrInvalidInput))
		return
	}
	minOut, err := optionalAmount(req.MinAmountOut)
	if err != nil {
		h.writeError(w, err)
		return
	}
	out, err := h.engine.EnterMarket(user, minOut, marketID, req.RoundID, side, gross)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"amount_out": types.FormatAmount(out)})
}

type exitRequest struct {
	User         string `json:"user"`
	RoundID      uint64 `json:"round_id"`
	ClaimedYes   string `json:"claimed_yes"`
	ClaimedNo    string `json:"claimed_no"`
	AmountToSell string `json:"amount_to_sell"`
	MinAmountOut string `json:"min_amount_out"`
}

// HandleExit executes a rebalancing exit for the given user.
func (h *Handlers) HandleExit(w http.ResponseWriter, r *http.Request) {
	marketID, err := pathUint(r, "id")
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req exitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, fmt.Errorf("bad body: %w", amm.ErrInvalidInput))
		return
	}
	user, err := parseAddress(req.User)
	if err != nil {
		h.writeError(w, err)
		return
	}
	claimedYes, err := optionalAmount(req.ClaimedYes)
	if err != nil {
		h.writeError(w, err)
		return
	}
	claimedNo, err := optionalAmount(req.ClaimedNo)
	if err != nil {
		h.writeError(w, err)
		return
	}
	sell, err := optionalAmount(req.AmountToSell)
	if err != nil {
		h.writeError(w, err)
		return
	}
	minOut, err := optionalAmount(req.MinAmountOut)
	if err != nil {
		h.writeError(w, err)
		return
	}
	out, err := h.engine.ExitMarket(user, minOut, marketID, req.RoundID, claimedYes, claimedNo, sell)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"net_amount_out": types.FormatAmount(out)})
}

type redeemRequest struct {
	User   string `json:"user"`
	Capped bool   `json:"capped"`
}

// HandleRedeem settles a user's pending rounds for a market.
func (h *Handlers) HandleRedeem(w http.ResponseWriter, r *http.Request) {
	marketID, err := pathUint(r, "id")
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req redeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, fmt.Errorf("bad body: %w", amm.ErrInvalidInput))
		return
	}
	user, err := parseAddress(req.User)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if req.Capped {
		err = h.engine.RedeemRoundsCapped(user, marketID)
	} else {
		err = h.engine.RedeemPendingRounds(user, marketID)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{
		"balance": types.FormatAmount(h.vault.Balance(user)),
	})
}

type resolveRequest struct {
	Caller string `json:"caller"`
}

// HandleResolve fires resolution on behalf of the given caller, who
// collects the resolver incentive.
func (h *Handlers) HandleResolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, fmt.Errorf("bad body: %w", amm.ErrInvalidInput))
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.engine.ResolveMarkets(r.Context(), caller); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.engine.CheckResolutionStatus())
}

// HandleUserPosition returns a user's balances in a market's current round.
func (h *Handlers) HandleUserPosition(w http.ResponseWriter, r *http.Request) {
	user, err := parseAddress(r.PathValue("addr"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	marketID, err := pathUint(r, "id")
	if err != nil {
		h.writeError(w, err)
		return
	}
	pos, err := h.engine.UserCurrentRoundPosition(user, marketID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, pos)
}

// HandleUserUnclaimed returns a user's pending redemption rounds, paged
// when the page query parameter is present.
func (h *Handlers) HandleUserUnclaimed(w http.ResponseWriter, r *http.Request) {
	user, err := parseAddress(r.PathValue("addr"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	marketID, err := pathUint(r, "id")
	if err != nil {
		h.writeError(w, err)
		return
	}
	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		page, err := strconv.Atoi(pageStr)
		if err != nil {
			h.writeError(w, fmt.Errorf("bad page: %w", amm.ErrInvalidInput))
			return
		}
		h.writeJSON(w, http.StatusOK, h.engine.UserUnclaimedRoundsPage(user, marketID, page))
		return
	}
	rounds := h.engine.UserUnclaimedRounds(user, marketID)
	h.writeJSON(w, http.StatusOK, types.UnclaimedRounds{Total: len(rounds), RoundIDs: rounds})
}

// HandleUserBalance returns a user's vault balance.
func (h *Handlers) HandleUserBalance(w http.ResponseWriter, r *http.Request) {
	user, err := parseAddress(r.PathValue("addr"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{
		"balance": types.FormatAmount(h.vault.Balance(user)),
	})
}

type depositRequest struct {
	User   string `json:"user"`
	Amount string `json:"amount"`
}

// HandleDeposit mints vault balance. Only available in dry-run mode; in
// production funds arrive through the settlement bridge, not the API.
func (h *Handlers) HandleDeposit(w http.ResponseWriter, r *http.Request) {
	if !h.dryRun {
		http.Error(w, "deposits are disabled outside dry-run", http.StatusForbidden)
		return
	}
	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, fmt.Errorf("bad body: %w", amm.ErrInvalidInput))
		return
	}
	user, err := parseAddress(req.User)
	if err != nil {
		h.writeError(w, err)
		return
	}
	amount, err := types.ParseAmount(req.Amount)
	if err != nil {
		h.writeError(w, fmt.Errorf("%s: %w", err, amm.ErrInvalidInput))
		return
	}
	if err := h.vault.Deposit(user, amount); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{
		"balance": types.FormatAmount(h.vault.Balance(user)),
	})
}

// HandleWebSocket upgrades the connection and subscribes it to the event
// stream.
func (h *Handlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	newWSClient(h.hub, conn)
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, amm.ErrNotAuthorised):
		status = http.StatusForbidden
	case errors.Is(err, vault.ErrInsufficientFunds):
		status = http.StatusPaymentRequired
	case errors.Is(err, amm.ErrInvalidInput),
		errors.Is(err, amm.ErrInvalidRound),
		errors.Is(err, amm.ErrRoundExpired),
		errors.Is(err, amm.ErrRoundNotYetInitialised),
		errors.Is(err, amm.ErrSlippageReached),
		errors.Is(err, amm.ErrInvalidReserves),
		errors.Is(err, amm.ErrInvalidTimestamp),
		errors.Is(err, amm.ErrArithmetic):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "error", err)
	}
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func pathUint(r *http.Request, key string) (uint64, error) {
	v, err := strconv.ParseUint(r.PathValue(key), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad %s: %w", key, amm.ErrInvalidInput)
	}
	return v, nil
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("bad address %q: %w", s, amm.ErrInvalidInput)
	}
	return common.HexToAddress(s), nil
}

func parseSide(s string) (types.Side, error) {
	switch strings.ToUpper(s) {
	case "YES":
		return types.SideYes, nil
	case "NO":
		return types.SideNo, nil
	default:
		return 0, fmt.Errorf("bad side %q: %w", s, amm.ErrInvalidInput)
	}
}

func optionalAmount(s string) (*uint256.Int, error) {
	if s == "" {
		return new(uint256.Int), nil
	}
	v, err := types.ParseAmount(s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", err, amm.ErrInvalidInput)
	}
	return v, nil
}
