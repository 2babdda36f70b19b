// Интерфейс Провайдера через который работает всё приложение.

package llm

import (
	"context"
	"errors"
	"fmt"
)

// Provider - контракт для любого AI-сервиса.
type Provider interface {
	// Generate отправляет историю и (опционально) определения инструментов,
	// возвращает ответ модели: текст или запросы на вызов инструментов.
	Generate(ctx context.Context, messages []Message, tools ...any) (Message, error)
}

// ErrModelService - базовая ошибка сервиса модели.
var ErrModelService = errors.New("model service error")

// ModelServiceError - сервис модели недоступен или вернул ошибку.
//
// Прерывает обработку текущего сообщения.
type ModelServiceError struct {
	Model string
	Err   error
}

func (e *ModelServiceError) Error() string {
	return fmt.Sprintf("model '%s': %v", e.Model, e.Err)
}

// Is проверяет что ошибка является ErrModelService.
func (e *ModelServiceError) Is(target error) bool {
	return target == ErrModelService
}

func (e *ModelServiceError) Unwrap() error {
	return e.Err
}
