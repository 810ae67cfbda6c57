// Package scheduleapi - клиент ресурса /api/schedule.
package scheduleapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"pmSchedule/internal/logger"
	"pmSchedule/internal/middleware"
	"pmSchedule/internal/models/schedule"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const resourcePath = "/api/schedule"

type Config struct {
	BaseURL      string
	Timeout      time.Duration
	FetchRetries int
	// RetryInterval - начальный интервал между повторами чтения
	RetryInterval time.Duration
	HTTPClient    *http.Client
}

type Client struct {
	base          *url.URL
	http          *http.Client
	timeout       time.Duration
	retries       int
	retryInterval time.Duration
	guard         *Guard
}

func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("адрес API: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("адрес API %q должен быть абсолютным", cfg.BaseURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}

	retryInterval := cfg.RetryInterval
	if retryInterval <= 0 {
		retryInterval = 200 * time.Millisecond
	}

	return &Client{
		base:          base,
		http:          httpClient,
		timeout:       cfg.Timeout,
		retries:       cfg.FetchRetries,
		retryInterval: retryInterval,
		guard:         NewGuard(),
	}, nil
}

// FetchAll загружает весь график. Чтение повторяется при сетевых ошибках и 5xx.
func (c *Client) FetchAll(ctx context.Context) ([]schedule.Task, error) {
	start := time.Now()
	var tasks []schedule.Task

	operation := func() error {
		result, err := c.fetchOnce(ctx)
		if err != nil {
			return err
		}
		tasks = result
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryInterval
	retries := c.retries
	if retries < 0 {
		retries = 0
	}

	err := backoff.RetryNotify(operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, uint64(retries)), ctx),
		func(err error, wait time.Duration) {
			logger.Warn("Client: Повтор загрузки графика", zap.Error(err), zap.Duration("wait", wait))
		})
	if err != nil {
		var fetchErr *FetchError
		if !errors.As(err, &fetchErr) {
			fetchErr = &FetchError{Err: err}
		}
		logger.Error("Client: Не удалось загрузить график", fetchErr, zap.Duration("ms", time.Since(start)))
		return nil, fetchErr
	}

	logger.Info("Client: График загружен",
		zap.Int("count", len(tasks)),
		zap.Duration("ms", time.Since(start)))
	return tasks, nil
}

func (c *Client) fetchOnce(ctx context.Context) ([]schedule.Task, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodGet, resourcePath, nil)
	if err != nil {
		return nil, backoff.Permanent(&FetchError{Err: err})
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &FetchError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fetchErr := &FetchError{StatusCode: resp.StatusCode, Err: errors.New(readReason(resp.Body))}
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, fetchErr
		}
		return nil, backoff.Permanent(fetchErr)
	}

	var tasks []schedule.Task
	if err := json.NewDecoder(resp.Body).Decode(&tasks); err != nil {
		return nil, backoff.Permanent(&FetchError{StatusCode: resp.StatusCode, Err: fmt.Errorf("разбор ответа: %w", err)})
	}
	if tasks == nil {
		tasks = []schedule.Task{}
	}
	return tasks, nil
}

// Save выбирает POST или PUT по наличию id
func (c *Client) Save(ctx context.Context, task schedule.Task) error {
	if task.HasID() {
		return c.Update(ctx, task.ID, task)
	}
	return c.Create(ctx, task)
}

func (c *Client) Create(ctx context.Context, task schedule.Task) error {
	task.ID = 0
	return c.mutate(ctx, "create", DraftKey(task), 0, http.MethodPost, resourcePath, task)
}

func (c *Client) Update(ctx context.Context, id int64, task schedule.Task) error {
	task.ID = id
	return c.mutate(ctx, "update", RecordKey(id), id, http.MethodPut, recordPath(id), task)
}

func (c *Client) Remove(ctx context.Context, id int64) error {
	return c.mutate(ctx, "delete", RecordKey(id), id, http.MethodDelete, recordPath(id), nil)
}

func (c *Client) mutate(ctx context.Context, op, key string, id int64, method, path string, body any) error {
	start := time.Now()

	release, err := c.guard.Acquire(key)
	if err != nil {
		logger.Warn("Client: Повторное изменение отклонено",
			zap.String("operation", op),
			zap.String("key", key))
		return &MutationError{Op: op, ID: id, Reason: err.Error(), Err: err}
	}
	defer release()

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &MutationError{Op: op, ID: id, Reason: "кодирование записи", Err: err}
		}
		payload = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, path, payload)
	if err != nil {
		return &MutationError{Op: op, ID: id, Reason: err.Error(), Err: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		logger.Error("Client: Ошибка запроса изменения", err, zap.String("operation", op), zap.Int64("task_id", id))
		return &MutationError{Op: op, ID: id, Reason: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		reason := readReason(resp.Body)
		logger.Warn("Client: Сервер отклонил изменение",
			zap.String("operation", op),
			zap.Int64("task_id", id),
			zap.Int("http_status", resp.StatusCode),
			zap.String("reason", reason))
		return &MutationError{Op: op, ID: id, StatusCode: resp.StatusCode, Reason: reason}
	}
	// тело ответа не используется, после изменения список всегда перечитывается
	_, _ = io.Copy(io.Discard, resp.Body)

	logger.Info("Client: Изменение выполнено",
		zap.String("operation", op),
		zap.Int64("task_id", id),
		zap.Duration("ms", time.Since(start)))
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	target := c.base.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if requestID := middleware.GetRequestID(ctx); requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}
	return req, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func recordPath(id int64) string {
	return resourcePath + "/" + strconv.FormatInt(id, 10)
}

// readReason достаёт message или error из JSON-ответа, иначе отдаёт текст как есть
func readReason(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(data) == 0 {
		return "пустой ответ"
	}

	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &payload) == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return strings.TrimSpace(string(data))
}
