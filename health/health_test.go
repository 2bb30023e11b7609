package health

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinger struct {
	err error
}

func (p *fakePinger) Ping(context.Context) error { return p.err }

func TestPingCheck(t *testing.T) {
	ctx := context.Background()

	t.Run("nil pinger is degraded", func(t *testing.T) {
		status := PingCheck(ctx, "queue", nil)
		assert.Equal(t, StateDegraded, status.State)
		assert.Contains(t, status.Message, "queue")
		assert.Equal(t, "queue", status.Details["dependency"])
	})

	t.Run("failing ping is unhealthy", func(t *testing.T) {
		status := PingCheck(ctx, "store", &fakePinger{err: errors.New("connection refused")})
		assert.Equal(t, StateUnhealthy, status.State)
		assert.True(t, status.IsUnhealthy())
		assert.Equal(t, "connection refused", status.Details["error"])
	})

	t.Run("successful ping is healthy", func(t *testing.T) {
		status := PingCheck(ctx, "store", &fakePinger{})
		assert.Equal(t, StateHealthy, status.State)
		assert.True(t, status.IsHealthy())
	})
}

func TestBinaryCheck(t *testing.T) {
	t.Run("existing binary is healthy", func(t *testing.T) {
		// sh is present on any platform these tests run on.
		status := BinaryCheck("sh")
		assert.Equal(t, StateHealthy, status.State)
		assert.Contains(t, status.Message, "sh")
	})

	t.Run("missing binary is degraded", func(t *testing.T) {
		status := BinaryCheck("definitely-not-a-real-binary-xyz")
		assert.Equal(t, StateDegraded, status.State)
		assert.Equal(t, "definitely-not-a-real-binary-xyz", status.Details["binary"])
	})

	t.Run("empty name is unhealthy", func(t *testing.T) {
		status := BinaryCheck("")
		assert.Equal(t, StateUnhealthy, status.State)
	})
}

func TestCombine(t *testing.T) {
	healthy := NewHealthyStatus("ok")
	degraded := NewDegradedStatus("partial", nil)
	unhealthy := NewUnhealthyStatus("down", nil)

	tests := []struct {
		name     string
		statuses map[string]Status
		want     State
	}{
		{"all healthy", map[string]Status{"a": healthy, "b": healthy}, StateHealthy},
		{"one degraded", map[string]Status{"a": healthy, "b": degraded}, StateDegraded},
		{"one unhealthy", map[string]Status{"a": healthy, "b": unhealthy}, StateUnhealthy},
		{"unhealthy beats degraded", map[string]Status{"a": degraded, "b": unhealthy}, StateUnhealthy},
		{"empty", map[string]Status{}, StateHealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			combined := Combine(tt.statuses)
			assert.Equal(t, tt.want, combined.State)
			assert.Len(t, combined.Details, len(tt.statuses))
		})
	}
}

func TestCombinePreservesPerCheckStatus(t *testing.T) {
	combined := Combine(map[string]Status{
		"queue": NewUnhealthyStatus("down", nil),
		"store": NewHealthyStatus("ok"),
	})

	queue, ok := combined.Details["queue"].(Status)
	require.True(t, ok)
	assert.Equal(t, StateUnhealthy, queue.State)
}
