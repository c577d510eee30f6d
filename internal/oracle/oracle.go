// Package oracle supplies the settlement reference prices that resolution
// compares against each market's threshold.
//
// HTTPSource talks to a price service over REST:
//
//	GET /price?market_id=N  →  {"market_id": N, "price": "123.45"}
//
// Every request carries a timeout and is automatically retried on
// transport errors and 5xx responses. Static serves fixed prices for
// tests and dry runs.
package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/holiman/uint256"

	"roundpool/internal/config"
	"roundpool/pkg/types"
)

// HTTPSource fetches settlement prices from a REST price service.
type HTTPSource struct {
	http   *resty.Client
	logger *slog.Logger
}

// NewHTTPSource creates a price client with retry from config.
func NewHTTPSource(cfg config.OracleConfig, logger *slog.Logger) *HTTPSource {
	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Accept", "application/json")

	return &HTTPSource{
		http:   httpClient,
		logger: logger.With("component", "oracle"),
	}
}

type priceResponse struct {
	MarketID uint64 `json:"market_id"`
	Price    string `json:"price"`
}

// SettlementPrice fetches the current reference price for a market.
func (s *HTTPSource) SettlementPrice(ctx context.Context, marketID uint64) (*uint256.Int, error) {
	var result priceResponse
	resp, err := s.http.R().
		SetContext(ctx).
		SetQueryParam("market_id", strconv.FormatUint(marketID, 10)).
		SetResult(&result).
		Get("/price")
	if err != nil {
		return nil, fmt.Errorf("get price: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("get price: status %d: %s", resp.StatusCode(), resp.String())
	}

	price, err := types.ParseAmount(result.Price)
	if err != nil {
		return nil, fmt.Errorf("get price market %d: %w", marketID, err)
	}
	s.logger.Debug("settlement price", "market", marketID, "price", result.Price)
	return price, nil
}

// Static serves configured prices without any network calls. Markets
// without an explicit price fall back to the default; with no default
// either, SettlementPrice fails.
type Static struct {
	mu       sync.RWMutex
	prices   map[uint64]*uint256.Int
	fallback *uint256.Int
}

// NewStatic creates a static source. fallback may be nil.
func NewStatic(fallback *uint256.Int) *Static {
	s := &Static{prices: make(map[uint64]*uint256.Int)}
	if fallback != nil {
		s.fallback = new(uint256.Int).Set(fallback)
	}
	return s
}

// SetPrice fixes the price reported for one market.
func (s *Static) SetPrice(marketID uint64, price *uint256.Int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[marketID] = new(uint256.Int).Set(price)
}

// SettlementPrice returns the fixed price for a market.
func (s *Static) SettlementPrice(_ context.Context, marketID uint64) (*uint256.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.prices[marketID]; ok {
		return new(uint256.Int).Set(p), nil
	}
	if s.fallback != nil {
		return new(uint256.Int).Set(s.fallback), nil
	}
	return nil, fmt.Errorf("no price for market %d", marketID)
}
