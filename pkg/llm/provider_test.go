package llm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestModelServiceError(t *testing.T) {
	cause := errors.New("503 service unavailable")
	err := error(&ModelServiceError{Model: "gemini-2.0-flash", Err: cause})

	assert.True(t, errors.Is(err, ErrModelService))
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "gemini-2.0-flash")
}

func TestApplyOptions(t *testing.T) {
	o := Apply(WithTemperature(0.2), WithMaxTokens(512))
	assert.Equal(t, 0.2, o.Temperature)
	assert.Equal(t, 512, o.MaxTokens)
	assert.Equal(t, GenerateOptions{}, Apply())
}
