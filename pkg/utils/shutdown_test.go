//go:build !windows

package utils

import (
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupGracefulShutdown_CancelsOnSignal(t *testing.T) {
	ctx, shutdown := SetupGracefulShutdownWithContext()
	defer shutdown()

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGTERM))

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context was not cancelled by SIGTERM")
	}
}

func TestSetupGracefulShutdown_CleanupCancels(t *testing.T) {
	ctx, shutdown := SetupGracefulShutdownWithContext()
	shutdown()
	assert.Error(t, ctx.Err())
}
