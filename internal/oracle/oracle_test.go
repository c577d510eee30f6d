package oracle

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/holiman/uint256"

	"roundpool/internal/config"
	"roundpool/pkg/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newHTTPSourceFor(url string) *HTTPSource {
	return NewHTTPSource(config.OracleConfig{
		BaseURL:    url,
		Timeout:    2 * time.Second,
		RetryCount: 2,
	}, testLogger())
}

func TestHTTPSourcePrice(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/price" {
			t.Errorf("path = %s, want /price", r.URL.Path)
		}
		if got := r.URL.Query().Get("market_id"); got != "7" {
			t.Errorf("market_id = %s, want 7", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"market_id": 7, "price": "123.45"}`))
	}))
	defer srv.Close()

	price, err := newHTTPSourceFor(srv.URL).SettlementPrice(context.Background(), 7)
	if err != nil {
		t.Fatalf("SettlementPrice: %v", err)
	}
	want, _ := types.ParseAmount("123.45")
	if !price.Eq(want) {
		t.Errorf("price = %s, want %s", price.Dec(), want.Dec())
	}
}

func TestHTTPSourceRetriesServerErrors(t *testing.T) {
	t.Parallel()
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"market_id": 1, "price": "99"}`))
	}))
	defer srv.Close()

	price, err := newHTTPSourceFor(srv.URL).SettlementPrice(context.Background(), 1)
	if err != nil {
		t.Fatalf("SettlementPrice: %v", err)
	}
	if want, _ := types.ParseAmount("99"); !price.Eq(want) {
		t.Errorf("price = %s, want 99", types.FormatAmount(price))
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3 (two retries)", got)
	}
}

func TestHTTPSourceClientError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unknown market", http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := newHTTPSourceFor(srv.URL).SettlementPrice(context.Background(), 1); err == nil {
		t.Error("SettlementPrice succeeded on 404")
	}
}

func TestHTTPSourceBadPrice(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"market_id": 1, "price": "-5"}`))
	}))
	defer srv.Close()

	if _, err := newHTTPSourceFor(srv.URL).SettlementPrice(context.Background(), 1); err == nil {
		t.Error("SettlementPrice accepted a negative price")
	}
}

func TestStaticFallbackAndOverride(t *testing.T) {
	t.Parallel()
	s := NewStatic(uint256.NewInt(101))
	s.SetPrice(2, uint256.NewInt(99))

	if p, err := s.SettlementPrice(context.Background(), 1); err != nil || p.Uint64() != 101 {
		t.Errorf("fallback price = %v, %v; want 101", p, err)
	}
	if p, err := s.SettlementPrice(context.Background(), 2); err != nil || p.Uint64() != 99 {
		t.Errorf("override price = %v, %v; want 99", p, err)
	}
}

func TestStaticNoPrice(t *testing.T) {
	t.Parallel()
	s := NewStatic(nil)
	if _, err := s.SettlementPrice(context.Background(), 1); err == nil {
		t.Error("SettlementPrice succeeded with no prices configured")
	}
}

func TestStaticReturnsCopy(t *testing.T) {
	t.Parallel()
	s := NewStatic(uint256.NewInt(50))
	p, err := s.SettlementPrice(context.Background(), 1)
	if err != nil {
		t.Fatalf("SettlementPrice: %v", err)
	}
	p.SetUint64(1)
	if q, _ := s.SettlementPrice(context.Background(), 1); q.Uint64() != 50 {
		t.Errorf("stored price mutated through copy: %s", q.Dec())
	}
}
