package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ErrRemoteCall - базовая ошибка удалённого вызова.
var ErrRemoteCall = errors.New("remote call failed")

// ErrorType представляет тип ошибки при вызове backend.
type ErrorType int

const (
	ErrUnknown ErrorType = iota
	ErrAuthFailed
	ErrNotFound
	ErrTimeout
	ErrNetwork
	ErrRateLimit
	ErrServer
	ErrBadRequest
	ErrBadResponse
)

// String возвращает строковое представление типа ошибки.
func (e ErrorType) String() string {
	switch e {
	case ErrAuthFailed:
		return "auth_failed"
	case ErrNotFound:
		return "not_found"
	case ErrTimeout:
		return "timeout"
	case ErrNetwork:
		return "network_error"
	case ErrRateLimit:
		return "rate_limit"
	case ErrServer:
		return "server_error"
	case ErrBadRequest:
		return "bad_request"
	case ErrBadResponse:
		return "bad_response"
	default:
		return "unknown"
	}
}

// HumanMessage возвращает человекочитаемое сообщение для типа ошибки.
//
// Сообщение уходит модели в результате инструмента, поэтому оно
// говорит что произошло, а не как это чинить в коде.
func (e ErrorType) HumanMessage() string {
	switch e {
	case ErrAuthFailed:
		return "The backend rejected the credentials."
	case ErrNotFound:
		return "The requested record does not exist."
	case ErrTimeout:
		return "The backend did not answer in time."
	case ErrNetwork:
		return "The backend is unreachable."
	case ErrRateLimit:
		return "Too many requests to the backend, try again later."
	case ErrServer:
		return "The backend failed to process the request."
	case ErrBadRequest:
		return "The backend rejected the arguments."
	case ErrBadResponse:
		return "The backend returned a response that is not valid JSON."
	default:
		return "Unknown error while calling the backend."
	}
}

// RemoteCallError - неуспешный вызов операции backend.
//
// Одна ошибка на вызов, повторов нет.
type RemoteCallError struct {
	Operation string
	Type      ErrorType
	Status    int    // 0 если ответа не было
	Body      string // усечённое тело ответа
	Err       error
}

func (e *RemoteCallError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "remote call '%s' failed (%s)", e.Operation, e.Type)
	if e.Status != 0 {
		fmt.Fprintf(&b, ": status %d", e.Status)
	}
	if e.Body != "" {
		fmt.Fprintf(&b, ", body: %s", e.Body)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Is проверяет что ошибка является ErrRemoteCall.
func (e *RemoteCallError) Is(target error) bool {
	return target == ErrRemoteCall
}

func (e *RemoteCallError) Unwrap() error {
	return e.Err
}

// Message - сообщение для модели: описание типа плюс детали backend.
func (e *RemoteCallError) Message() string {
	msg := e.Type.HumanMessage()
	if e.Body != "" {
		msg += " " + e.Body
	}
	return msg
}

// classifyStatus классифицирует не-2xx ответ.
func classifyStatus(status int) ErrorType {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return ErrAuthFailed
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusTooManyRequests:
		return ErrRateLimit
	case status == http.StatusRequestTimeout, status == http.StatusGatewayTimeout:
		return ErrTimeout
	case status >= 500:
		return ErrServer
	case status >= 400:
		return ErrBadRequest
	default:
		return ErrUnknown
	}
}

// classifyTransport классифицирует ошибку транспорта.
//
// Сначала по типам, затем по тексту ошибки (как делают HTTP клиенты,
// оборачивающие ошибки в строки).
func classifyTransport(err error) ErrorType {
	if err == nil {
		return ErrUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"):
		return ErrTimeout
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "no such host"),
		strings.Contains(msg, "connection reset"):
		return ErrNetwork
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrNetwork
	}
	return ErrUnknown
}

// ErrorPayload формирует JSON ошибки вызова инструмента:
//
//	{"error": {"type": "not_found", "message": "..."}}
//
// Такой результат получает модель вместо данных backend.
func ErrorPayload(err error) string {
	errType, message := "tool_error", err.Error()

	var rcErr *RemoteCallError
	switch {
	case errors.As(err, &rcErr):
		errType, message = rcErr.Type.String(), rcErr.Message()
	case errors.Is(err, context.DeadlineExceeded):
		errType, message = "timeout", "The operation did not finish in time."
	case errors.Is(err, context.Canceled):
		errType, message = "cancelled", "The operation was cancelled."
	}

	data, _ := json.Marshal(map[string]any{
		"error": map[string]string{"type": errType, "message": message},
	})
	return string(data)
}
