// Package rest выполняет вызовы инструментов как HTTP запросы к backend.
//
// Аргументы вызова раскладываются по трём корзинам согласно таблице
// маршрутизации инструмента:
//   - path: подставляются в {placeholders} шаблона пути
//   - query: кодируются в строку запроса
//   - body: уходят JSON объектом (только если корзина не пуста)
//
// Аргументы, которых нет в таблице, отбрасываются. Повторов нет:
// любая неудача - одна RemoteCallError.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/ilkoid/apichat/pkg/config"
	"github.com/ilkoid/apichat/pkg/openapi"
	"github.com/ilkoid/apichat/pkg/tools"
	"github.com/ilkoid/apichat/pkg/utils"
)

// maxErrorBody - сколько байт тела ошибки попадает в RemoteCallError.
const maxErrorBody = 512

// HTTPClient интерфейс для выполнения HTTP запросов.
//
// Позволяет мокировать HTTP клиент в тестах (Rule 9).
// Стандартный *http.Client реализует этот интерфейс.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client - адаптер удалённых вызовов. Реализует tools.Invoker.
type Client struct {
	baseURL    string
	token      string
	rateLimit  int
	burst      int
	httpClient HTTPClient

	mu       sync.Mutex
	limiters map[string]*rate.Limiter // operation → limiter
}

var _ tools.Invoker = (*Client)(nil)

// NewFromConfig создает клиент из конфигурации api секции.
//
// cfg.BaseURL обязателен: вызывающий код подставляет servers[0]
// из описания API, если в конфиге он пуст.
func NewFromConfig(cfg config.APIConfig) (*Client, error) {
	cfg = cfg.GetDefaults()

	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("api.base_url is required (or servers[0] in the api description)")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid api.base_url: %w", err)
	}

	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid api.timeout format: %w", err)
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		rateLimit:  cfg.RateLimit,
		burst:      cfg.BurstLimit,
		httpClient: &http.Client{Timeout: timeout},
		limiters:   make(map[string]*rate.Limiter),
	}, nil
}

// WithHTTPClient подменяет HTTP клиент (тесты, кастомный транспорт).
func (c *Client) WithHTTPClient(hc HTTPClient) *Client {
	c.httpClient = hc
	return c
}

// BaseURL возвращает базовый URL backend.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Request - собранный HTTP запрос до отправки.
type Request struct {
	Method string
	Path   string     // путь после подстановки
	Query  url.Values // nil если корзина пуста
	Body   map[string]any
}

// Build раскладывает аргументы по корзинам и подставляет путь.
//
// Не выполняет сетевых операций. Неразрешённый placeholder - ErrBadRequest.
func Build(binding tools.Binding, routing tools.Routing, args map[string]any) (Request, error) {
	req := Request{Method: binding.Method, Path: binding.PathTemplate}

	// Стабильный порядок: одинаковые аргументы дают одинаковый URL
	names := make([]string, 0, len(args))
	for name := range args {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		value := args[name]
		loc, ok := routing.Params[name]
		if !ok {
			utils.Debug("Argument not in routing table, dropped", "tool", routing.Operation, "arg", name)
			continue
		}
		if !loc.Valid() {
			return Request{}, &RemoteCallError{
				Operation: routing.Operation,
				Type:      ErrBadRequest,
				Err:       fmt.Errorf("unsupported location %q for argument %s", loc, name),
			}
		}

		switch loc {
		case openapi.InPath:
			if value == nil {
				continue
			}
			req.Path = strings.ReplaceAll(req.Path, "{"+name+"}", url.PathEscape(formatValue(value)))

		case openapi.InQuery:
			if value == nil {
				continue
			}
			if req.Query == nil {
				req.Query = url.Values{}
			}
			if items, isList := value.([]any); isList {
				for _, item := range items {
					req.Query.Add(name, formatValue(item))
				}
				continue
			}
			req.Query.Set(name, formatValue(value))

		case openapi.InBody:
			if req.Body == nil {
				req.Body = make(map[string]any)
			}
			req.Body[name] = value
		}
	}

	if start := strings.Index(req.Path, "{"); start >= 0 && strings.Contains(req.Path[start:], "}") {
		return Request{}, &RemoteCallError{
			Operation: routing.Operation,
			Type:      ErrBadRequest,
			Err:       fmt.Errorf("unresolved path placeholder in %s", req.Path),
		}
	}
	return req, nil
}

// URL собирает полный адрес запроса.
func (r Request) URL(baseURL string) string {
	u := baseURL + r.Path
	if len(r.Query) > 0 {
		u += "?" + r.Query.Encode()
	}
	return u
}

// Invoke выполняет вызов операции.
//
// Возвращает разобранный JSON ответа (map, slice или скаляр) либо nil
// для пустого 2xx ответа. Любая неудача - *RemoteCallError.
func (c *Client) Invoke(ctx context.Context, binding tools.Binding, routing tools.Routing, args map[string]any) (any, error) {
	req, err := Build(binding, routing, args)
	if err != nil {
		return nil, err
	}
	op := routing.Operation

	limiter := c.getOrCreateLimiter(op)
	if err := limiter.Wait(ctx); err != nil {
		return nil, &RemoteCallError{Operation: op, Type: classifyTransport(err), Err: fmt.Errorf("rate limiter wait: %w", err)}
	}

	var body io.Reader
	if len(req.Body) > 0 {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, &RemoteCallError{Operation: op, Type: ErrBadRequest, Err: fmt.Errorf("marshal body: %w", err)}
		}
		body = bytes.NewReader(data)
	}

	target := req.URL(c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, &RemoteCallError{Operation: op, Type: ErrBadRequest, Err: err}
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		utils.Warn("Remote call failed", "tool", op, "method", req.Method, "url", target, "error", err)
		return nil, &RemoteCallError{Operation: op, Type: classifyTransport(err), Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RemoteCallError{Operation: op, Type: classifyTransport(err), Status: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	utils.Debug("Remote call completed",
		"tool", op,
		"method", req.Method,
		"url", target,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RemoteCallError{
			Operation: op,
			Type:      classifyStatus(resp.StatusCode),
			Status:    resp.StatusCode,
			Body:      truncate(strings.TrimSpace(string(data)), maxErrorBody),
		}
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var result any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, &RemoteCallError{
			Operation: op,
			Type:      ErrBadResponse,
			Status:    resp.StatusCode,
			Body:      truncate(string(data), maxErrorBody),
			Err:       fmt.Errorf("unmarshal error: %w", err),
		}
	}
	return result, nil
}

// getOrCreateLimiter возвращает limiter операции или создаёт новый.
//
// rateLimit в запросах/минуту → rate.Limit в запросах/секунду.
func (c *Client) getOrCreateLimiter(operation string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	if limiter, exists := c.limiters[operation]; exists {
		return limiter
	}

	limiter := rate.NewLimiter(rate.Limit(float64(c.rateLimit)/60.0), c.burst)
	c.limiters[operation] = limiter
	return limiter
}

// formatValue печатает аргумент для пути или строки запроса.
//
// Числа без дробной части печатаются как целые: модель присылает
// 2021 как float64, а backend ждёт "2021".
func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(val)
	case json.Number:
		return val.String()
	case int, int32, int64, uint, uint32, uint64:
		return fmt.Sprint(val)
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	}
}

// truncate обрезает s до n байт, не разрывая UTF-8 символ.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
