// Package postprocess готовит финальный текст модели к выводу в HTML.
//
// Модель получает инструкцию использовать фиксированные id для контейнера
// графика ("graph_app") и canvas ("canvas_app"). Несколько графиков на одной
// странице конфликтовали бы, поэтому каждый ответ с графиком получает
// собственную пару id: graph1/canvas1, graph2/canvas2 и т.д.
package postprocess

import (
	"strconv"
	"strings"
	"sync/atomic"
)

const (
	// GraphMarker - id контейнера графика в ответе модели.
	GraphMarker = "graph_app"
	// CanvasMarker - id canvas элемента в ответе модели.
	CanvasMarker = "canvas_app"
)

// fences - маркеры markdown блоков, которые модель добавляет вокруг HTML.
var fences = []string{"```html", "```"}

// ArtifactCounter - монотонный счётчик пар id, один на сессию.
//
// Безопасен для конкурентного использования. Нулевое значение
// не готово к работе: используйте NewArtifactCounter.
type ArtifactCounter struct {
	next atomic.Int64
}

// NewArtifactCounter создаёт счётчик, начинающий с 1.
func NewArtifactCounter() *ArtifactCounter {
	c := &ArtifactCounter{}
	c.next.Store(1)
	return c
}

// Take возвращает текущее значение и увеличивает счётчик.
func (c *ArtifactCounter) Take() int64 {
	return c.next.Add(1) - 1
}

// Peek возвращает значение, которое получит следующий график.
func (c *ArtifactCounter) Peek() int64 {
	return c.next.Load()
}

// Process убирает markdown обёртку и нумерует маркеры графика.
//
// Текст без маркера graph_app после удаления обёрток не меняется,
// счётчик при этом не трогается. Повторная обработка результата
// ничего не меняет.
func Process(text string, counter *ArtifactCounter) string {
	for _, fence := range fences {
		text = strings.ReplaceAll(text, fence, "")
	}

	if !strings.Contains(text, GraphMarker) || counter == nil {
		return text
	}

	n := strconv.FormatInt(counter.Take(), 10)
	text = strings.ReplaceAll(text, GraphMarker, "graph"+n)
	text = strings.ReplaceAll(text, CanvasMarker, "canvas"+n)
	return text
}
