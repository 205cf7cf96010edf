package hyperliquid

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/jd0713/schadenfreude/internal/config"
	"github.com/jd0713/schadenfreude/pkg/ratelimit"
	"github.com/jd0713/schadenfreude/pkg/retry"
	"github.com/jd0713/schadenfreude/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Адрес для health check запросов - пустой аккаунт, всегда валидный
const pingAddress = "0x0000000000000000000000000000000000000000"

// Client - клиент Hyperliquid info API.
//
// Два endpoint'а с разными классами латентности:
//   - private (обычно локальная нода): clearinghouseState, без rate limit
//   - public (api.hyperliquid.xyz): allMids, под token bucket limiter
type Client struct {
	cfg  config.HyperliquidConfig
	http *HTTPClient

	// Лимитер только для публичного API - локальная нода лимита не требует
	publicLimiter *ratelimit.RateLimiter

	log *utils.Logger
}

// NewClient создаёт клиент Hyperliquid API
func NewClient(cfg config.HyperliquidConfig, logger *utils.Logger) *Client {
	httpCfg := DefaultHTTPClientConfig()
	if cfg.Timeout > 0 {
		httpCfg.TotalTimeout = cfg.Timeout
		httpCfg.ReadTimeout = cfg.Timeout
	}

	return &Client{
		cfg:           cfg,
		http:          NewHTTPClient(httpCfg),
		publicLimiter: ratelimit.NewRateLimiter(10, 20),
		log:           logger.WithComponent("hyperliquid"),
	}
}

// Close закрывает соединения клиента
func (c *Client) Close() {
	c.http.Close()
}

// infoRequest - тело POST запроса к info endpoint
type infoRequest struct {
	Type string `json:"type"`
	User string `json:"user,omitempty"`
}

// post выполняет POST запрос и декодирует JSON ответ в out
func (c *Client) post(ctx context.Context, url string, payload infoRequest, out interface{}) (err error) {
	endpoint := "public"
	if url == c.cfg.PrivateURL {
		endpoint = "private"
	}
	start := time.Now()
	defer func() { observeRequest(endpoint, time.Since(start).Seconds(), err) }()

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, Body: truncate(string(respBody), 200)}
	}

	if len(respBody) == 0 {
		return ErrEmptyResponse
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}

	return nil
}

// GetAccountState возвращает состояние аккаунта (clearinghouseState)
// с открытыми позициями и маржой
func (c *Client) GetAccountState(ctx context.Context, address string) (*AccountState, error) {
	if !validAddress(address) {
		return nil, ErrInvalidAddress
	}

	var state AccountState
	err := c.post(ctx, c.cfg.PrivateURL, infoRequest{Type: "clearinghouseState", User: address}, &state)
	if err != nil {
		return nil, fmt.Errorf("clearinghouseState for %s: %w", address, err)
	}

	return &state, nil
}

// GetAllMids возвращает текущие mid-цены всех инструментов.
// Публичный endpoint: rate limit + retry с backoff.
// Неизвестная или нулевая цена в ответе означает "цена недоступна" -
// такие записи не попадают в результат.
func (c *Client) GetAllMids(ctx context.Context) (map[string]float64, error) {
	if err := c.publicLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	cfg := retry.NetworkConfig()
	cfg.RetryIf = func(err error) bool {
		return retry.RetryIfNotContext(err) && retry.IsRetryable(err)
	}
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		c.log.Warn("retrying allMids",
			utils.Int("attempt", attempt),
			utils.Err(err),
			utils.String("delay", delay.String()),
		)
	}

	raw, err := retry.DoWithResult(ctx, func() (map[string]string, error) {
		var mids map[string]string
		if err := c.post(ctx, c.cfg.PublicURL, infoRequest{Type: "allMids"}, &mids); err != nil {
			return nil, err
		}
		return mids, nil
	}, cfg)
	if err != nil {
		return nil, fmt.Errorf("allMids: %w", err)
	}

	prices := make(map[string]float64, len(raw))
	for coin, s := range raw {
		if price := parseNum(s); price > 0 {
			prices[coin] = price
		}
	}

	return prices, nil
}

// GetAccountStates загружает состояния нескольких аккаунтов батчами.
//
// Размер батча и пауза между батчами зависят от класса латентности
// endpoint'а (локальная нода против публичного API). Внутри батча
// запросы идут параллельно. Неудачные адреса логируются и опускаются -
// частичный результат лучше, чем отсутствие результата.
//
// Ошибка возвращается только при отмене контекста.
func (c *Client) GetAccountStates(ctx context.Context, addresses []string) (map[string]*AccountState, error) {
	states := make(map[string]*AccountState, len(addresses))
	if len(addresses) == 0 {
		return states, nil
	}

	batchSize := c.cfg.BatchSize()
	batchDelay := c.cfg.BatchDelay()

	var mu sync.Mutex
	failed := 0

	for start := 0; start < len(addresses); start += batchSize {
		end := start + batchSize
		if end > len(addresses) {
			end = len(addresses)
		}
		batch := addresses[start:end]

		var wg sync.WaitGroup
		for _, address := range batch {
			wg.Add(1)
			go func(address string) {
				defer wg.Done()

				state, err := c.GetAccountState(ctx, address)
				if err != nil {
					c.log.Warn("failed to fetch account state",
						utils.Address(address),
						utils.Err(err),
					)
					mu.Lock()
					failed++
					mu.Unlock()
					return
				}

				mu.Lock()
				states[address] = state
				mu.Unlock()
			}(address)
		}
		wg.Wait()

		if ctx.Err() != nil {
			return states, ctx.Err()
		}

		// Пауза между батчами, кроме последнего
		if end < len(addresses) {
			select {
			case <-time.After(batchDelay):
			case <-ctx.Done():
				return states, ctx.Err()
			}
		}
	}

	if failed > 0 {
		c.log.Warn("account states fetched with failures",
			utils.Int("total", len(addresses)),
			utils.Int("failed", failed),
		)
	}

	return states, nil
}

// PingPrivate проверяет доступность private endpoint'а
func (c *Client) PingPrivate(ctx context.Context) error {
	var state AccountState
	return c.post(ctx, c.cfg.PrivateURL, infoRequest{Type: "clearinghouseState", User: pingAddress}, &state)
}

// PingPublic проверяет доступность публичного API
func (c *Client) PingPublic(ctx context.Context) error {
	if err := c.publicLimiter.Wait(ctx); err != nil {
		return err
	}
	var mids map[string]string
	return c.post(ctx, c.cfg.PublicURL, infoRequest{Type: "allMids"}, &mids)
}

// validAddress - минимальная проверка формата EVM адреса
func validAddress(address string) bool {
	return len(address) == 42 && strings.HasPrefix(address, "0x")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
