package hyperliquid

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jd0713/schadenfreude/internal/config"
	"github.com/jd0713/schadenfreude/pkg/utils"
)

const testAddress = "0x1234567890abcdef1234567890abcdef12345678"

func testLogger() *utils.Logger {
	return utils.InitLogger(utils.LogConfig{Level: "error", Output: "/dev/null"})
}

func testConfig(url string) config.HyperliquidConfig {
	return config.HyperliquidConfig{
		PrivateURL:       url,
		PublicURL:        url,
		BatchSizeLocal:   2,
		BatchSizeRemote:  2,
		BatchDelayLocal:  time.Millisecond,
		BatchDelayRemote: time.Millisecond,
		Timeout:          5 * time.Second,
	}
}

const accountStateJSON = `{
	"assetPositions": [
		{
			"type": "oneWay",
			"position": {
				"coin": "BTC",
				"entryPx": "42000.5",
				"szi": "0.5",
				"leverage": {"type": "cross", "value": 10},
				"liquidationPx": "38000.0",
				"marginUsed": "2100.0",
				"positionValue": "21000.25",
				"unrealizedPnl": "-150.5",
				"returnOnEquity": "-0.07",
				"maxLeverage": 50
			}
		},
		{
			"type": "oneWay",
			"position": {
				"coin": "ETH",
				"entryPx": "3000",
				"szi": "0",
				"leverage": {"type": "cross", "value": 5},
				"liquidationPx": "",
				"marginUsed": "0",
				"positionValue": "0",
				"unrealizedPnl": "0",
				"returnOnEquity": "0",
				"maxLeverage": 50
			}
		}
	],
	"marginSummary": {"accountValue": "10000", "totalNtlPos": "21000", "totalRawUsd": "10000", "totalMarginUsed": "2100"},
	"crossMarginSummary": {"accountValue": "10000", "totalNtlPos": "21000", "totalRawUsd": "10000", "totalMarginUsed": "2100"},
	"withdrawable": "7900",
	"time": 1700000000000
}`

func TestGetAccountState(t *testing.T) {
	var gotBody map[string]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(accountStateJSON))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), testLogger())
	defer client.Close()

	state, err := client.GetAccountState(context.Background(), testAddress)
	if err != nil {
		t.Fatalf("GetAccountState() error: %v", err)
	}

	// Проверяем тело запроса
	if gotBody["type"] != "clearinghouseState" {
		t.Errorf("request type = %q, expected clearinghouseState", gotBody["type"])
	}
	if gotBody["user"] != testAddress {
		t.Errorf("request user = %q, expected %q", gotBody["user"], testAddress)
	}

	if len(state.AssetPositions) != 2 {
		t.Fatalf("got %d asset positions, expected 2", len(state.AssetPositions))
	}

	pos := state.AssetPositions[0].Position
	if pos.Coin != "BTC" {
		t.Errorf("coin = %q, expected BTC", pos.Coin)
	}
	if pos.Leverage.Value != 10 {
		t.Errorf("leverage = %v, expected 10", pos.Leverage.Value)
	}
}

func TestGetAccountState_InvalidAddress(t *testing.T) {
	client := NewClient(testConfig("http://localhost:1"), testLogger())
	defer client.Close()

	_, err := client.GetAccountState(context.Background(), "not-an-address")
	if err != ErrInvalidAddress {
		t.Errorf("expected ErrInvalidAddress, got %v", err)
	}
}

func TestAccountState_Positions(t *testing.T) {
	var state AccountState
	if err := json.Unmarshal([]byte(accountStateJSON), &state); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	positions := state.Positions(testAddress)

	// Позиция с нулевым размером должна быть отброшена
	if len(positions) != 1 {
		t.Fatalf("got %d positions, expected 1", len(positions))
	}

	p := positions[0]
	if p.Address != testAddress {
		t.Errorf("address = %q, expected %q", p.Address, testAddress)
	}
	if p.Coin != "BTC" {
		t.Errorf("coin = %q, expected BTC", p.Coin)
	}
	if p.EntryPrice != 42000.5 {
		t.Errorf("entry price = %v, expected 42000.5", p.EntryPrice)
	}
	if p.Size != 0.5 {
		t.Errorf("size = %v, expected 0.5", p.Size)
	}
	if p.LiquidationPrice != 38000.0 {
		t.Errorf("liquidation price = %v, expected 38000", p.LiquidationPrice)
	}
	if !p.IsLong() {
		t.Error("position should be long")
	}
}

func TestGetAllMids(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"BTC": "50000.5", "ETH": "3000", "BROKEN": "not-a-number", "DELISTED": "0"}`))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), testLogger())
	defer client.Close()

	mids, err := client.GetAllMids(context.Background())
	if err != nil {
		t.Fatalf("GetAllMids() error: %v", err)
	}

	if mids["BTC"] != 50000.5 {
		t.Errorf("BTC price = %v, expected 50000.5", mids["BTC"])
	}
	if mids["ETH"] != 3000 {
		t.Errorf("ETH price = %v, expected 3000", mids["ETH"])
	}

	// Непарсящиеся и нулевые цены не должны попадать в результат
	if _, ok := mids["BROKEN"]; ok {
		t.Error("unparseable price should be omitted")
	}
	if _, ok := mids["DELISTED"]; ok {
		t.Error("zero price should be omitted")
	}
}

func TestGetAllMids_RetriesServerErrors(t *testing.T) {
	var calls int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"BTC": "50000"}`))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), testLogger())
	defer client.Close()

	mids, err := client.GetAllMids(context.Background())
	if err != nil {
		t.Fatalf("GetAllMids() error after retry: %v", err)
	}

	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("server called %d times, expected 2", calls)
	}
	if mids["BTC"] != 50000 {
		t.Errorf("BTC price = %v, expected 50000", mids["BTC"])
	}
}

func TestGetAccountStates_PartialFailure(t *testing.T) {
	failing := "0xdead567890abcdef1234567890abcdef12345678"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req map[string]string
		json.Unmarshal(body, &req)

		if req["user"] == failing {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(accountStateJSON))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), testLogger())
	defer client.Close()

	addresses := []string{
		"0x1111567890abcdef1234567890abcdef12345678",
		failing,
		"0x2222567890abcdef1234567890abcdef12345678",
	}

	states, err := client.GetAccountStates(context.Background(), addresses)
	if err != nil {
		t.Fatalf("GetAccountStates() error: %v", err)
	}

	// Неудачный адрес опускается, остальные возвращаются
	if len(states) != 2 {
		t.Fatalf("got %d states, expected 2", len(states))
	}
	if _, ok := states[failing]; ok {
		t.Error("failing address should be omitted from result")
	}
}

func TestGetAccountStates_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(accountStateJSON))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), testLogger())
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.GetAccountStates(ctx, []string{testAddress, testAddress, testAddress})
	if err == nil {
		t.Error("expected context error for cancelled context")
	}
}

func TestAPIError_Temporary(t *testing.T) {
	tests := []struct {
		status    int
		temporary bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
		{http.StatusBadRequest, false},
		{http.StatusNotFound, false},
	}

	for _, tt := range tests {
		err := &APIError{StatusCode: tt.status}
		if err.Temporary() != tt.temporary {
			t.Errorf("APIError{%d}.Temporary() = %v, expected %v", tt.status, err.Temporary(), tt.temporary)
		}
	}
}

func TestValidAddress(t *testing.T) {
	tests := []struct {
		address string
		valid   bool
	}{
		{testAddress, true},
		{"", false},
		{"0x123", false},
		{"1234567890abcdef1234567890abcdef1234567890", false},
	}

	for _, tt := range tests {
		if got := validAddress(tt.address); got != tt.valid {
			t.Errorf("validAddress(%q) = %v, expected %v", tt.address, got, tt.valid)
		}
	}
}
