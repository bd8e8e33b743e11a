package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/shaiso/Tendera/internal/telemetry"
)

const (
	defaultMaxRetries   = 3
	defaultInitialDelay = 500 * time.Millisecond
	defaultMaxDelay     = 30 * time.Second

	// maxErrorBody — сколько байт тела ошибки сохраняем для диагностики.
	maxErrorBody = 512
)

// Config — конфигурация клиента портала.
type Config struct {
	// BaseURL — базовый URL портала закупок.
	BaseURL string

	// MaxRetries — число повторов для временных ошибок (429/503).
	// Всего делается MaxRetries+1 попыток.
	MaxRetries int

	// InitialDelay — стартовая задержка экспоненциального backoff.
	InitialDelay time.Duration

	// MaxDelay — потолок задержки, в том числе для Retry-After подсказки.
	MaxDelay time.Duration

	// HTTPClient — опциональный транспорт (для тестов).
	HTTPClient *http.Client

	Logger *slog.Logger
}

// Client — устойчивый HTTP-клиент портала закупок.
//
// Повторяет запрос при 429/503 с экспоненциальной задержкой;
// подсказка Retry-After от сервера имеет приоритет над расчётной
// задержкой и ограничивается MaxDelay. Состояние между вызовами
// не разделяется: счётчик попыток свой у каждого логического вызова.
type Client struct {
	baseURL      string
	maxRetries   int
	initialDelay time.Duration
	maxDelay     time.Duration
	httpClient   *http.Client
	logger       *slog.Logger
}

// NewClient создаёт новый Client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, ErrMissingBaseURL
	}

	c := &Client{
		baseURL:      cfg.BaseURL,
		maxRetries:   cfg.MaxRetries,
		initialDelay: cfg.InitialDelay,
		maxDelay:     cfg.MaxDelay,
		httpClient:   cfg.HTTPClient,
		logger:       cfg.Logger,
	}

	if c.maxRetries <= 0 {
		c.maxRetries = defaultMaxRetries
	}
	if c.initialDelay <= 0 {
		c.initialDelay = defaultInitialDelay
	}
	if c.maxDelay <= 0 {
		c.maxDelay = defaultMaxDelay
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}

	return c, nil
}

// Do выполняет запрос к порталу с повторами для временных ошибок.
//
// Успешный ответ парсится как JSON-объект. Неповторяемые ошибки
// (все 4xx кроме 429) возвращаются после первой же попытки.
// После исчерпания повторов возвращается последняя ошибка, обёрнутая
// с числом сделанных попыток.
func (c *Client) Do(ctx context.Context, method, path string, body any) (map[string]any, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
	}

	schedule := backoff.NewExponentialBackOff()
	schedule.InitialInterval = c.initialDelay
	schedule.Multiplier = 2
	schedule.RandomizationFactor = 0
	schedule.MaxInterval = c.maxDelay
	schedule.MaxElapsedTime = 0
	schedule.Reset()

	var lastErr error
	attempts := c.maxRetries + 1

	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := c.attempt(ctx, method, path, payload)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return nil, err
		}
		if attempt == attempts {
			break
		}

		delay := schedule.NextBackOff()
		if remote, ok := err.(*RemoteError); ok && remote.RetryAfter > 0 {
			// Подсказка сервера важнее расчётной задержки
			delay = min(remote.RetryAfter, c.maxDelay)
		}

		c.logger.Warn("portal request failed, retrying",
			"method", method,
			"path", path,
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)
		telemetry.RemoteRetries.Inc()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, fmt.Errorf("after %d attempts: %w", attempts, lastErr)
}

// attempt выполняет одну попытку запроса.
func (c *Client) attempt(ctx context.Context, method, path string, payload []byte) (map[string]any, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Транспортные ошибки считаем временными
		return nil, &RemoteError{StatusCode: 0, Retryable: true, Body: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var result map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			if err == io.EOF {
				return map[string]any{}, nil
			}
			return nil, fmt.Errorf("decode response: %w", err)
		}
		return result, nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	remote := &RemoteError{
		StatusCode: resp.StatusCode,
		Retryable:  resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable,
		Body:       string(raw),
	}
	if remote.Retryable {
		remote.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
	}

	return nil, remote
}

// SearchRFPs выполняет поиск RFP на портале.
// Ожидает в ответе поле records с массивом объектов.
func (c *Client) SearchRFPs(ctx context.Context, criteria map[string]any) ([]map[string]any, error) {
	result, err := c.Do(ctx, http.MethodPost, "/api/v1/search", criteria)
	if err != nil {
		return nil, err
	}

	raw, ok := result["records"].([]any)
	if !ok {
		return nil, nil
	}

	records := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]any); ok {
			records = append(records, m)
		}
	}
	return records, nil
}

// parseRetryAfter разбирает заголовок Retry-After:
// число секунд или HTTP-дата.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	if at, err := http.ParseTime(header); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}

	return 0
}
