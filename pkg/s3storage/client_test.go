package s3storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURI(t *testing.T) {
	bucket, key, err := ParseURI("s3://specs/locadora/openapi.yaml")
	require.NoError(t, err)
	assert.Equal(t, "specs", bucket)
	assert.Equal(t, "locadora/openapi.yaml", key)

	for _, bad := range []string{"specs/openapi.yaml", "s3://", "s3://specs", "s3://specs/"} {
		_, _, err := ParseURI(bad)
		assert.Error(t, err, bad)
	}
}
