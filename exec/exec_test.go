package exec

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	ctx := context.Background()

	t.Run("captures stdout", func(t *testing.T) {
		result, err := Run(ctx, Config{Command: "echo", Args: []string{"hello"}})
		require.NoError(t, err)
		assert.Equal(t, "hello\n", string(result.Stdout))
		assert.Equal(t, 0, result.ExitCode)
		assert.Greater(t, result.Duration, time.Duration(0))
	})

	t.Run("captures stderr", func(t *testing.T) {
		result, err := Run(ctx, Config{Command: "sh", Args: []string{"-c", "echo oops >&2"}})
		require.NoError(t, err)
		assert.Equal(t, "oops\n", string(result.Stderr))
		assert.Empty(t, result.Stdout)
	})

	t.Run("non-zero exit is not an error", func(t *testing.T) {
		result, err := Run(ctx, Config{Command: "sh", Args: []string{"-c", "exit 3"}})
		require.NoError(t, err)
		assert.Equal(t, 3, result.ExitCode)
	})

	t.Run("empty command is rejected", func(t *testing.T) {
		_, err := Run(ctx, Config{})
		assert.Error(t, err)
	})

	t.Run("missing binary is an error", func(t *testing.T) {
		_, err := Run(ctx, Config{Command: "definitely-not-a-real-binary-xyz"})
		assert.Error(t, err)
	})

	t.Run("timeout is an error", func(t *testing.T) {
		_, err := Run(ctx, Config{
			Command: "sleep",
			Args:    []string{"5"},
			Timeout: 50 * time.Millisecond,
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "timed out")
	})

	t.Run("cancellation is an error", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := Run(cancelled, Config{Command: "sleep", Args: []string{"5"}})
		assert.Error(t, err)
	})
}

func TestBinaryExists(t *testing.T) {
	assert.True(t, BinaryExists("sh"))
	assert.False(t, BinaryExists("definitely-not-a-real-binary-xyz"))
}
