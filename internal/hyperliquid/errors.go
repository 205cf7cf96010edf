package hyperliquid

import (
	"errors"
	"fmt"
)

// Ошибки клиента
var (
	ErrEmptyResponse  = errors.New("hyperliquid: empty response body")
	ErrInvalidAddress = errors.New("hyperliquid: invalid address")
)

// APIError - ошибка HTTP уровня от Hyperliquid API
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("hyperliquid: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Temporary: 429 и 5xx имеет смысл повторить, 4xx - нет
func (e *APIError) Temporary() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
