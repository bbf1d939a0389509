package taskgroup

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectAllSucceed(t *testing.T) {
	results := Collect(context.Background(), 7, 4, 10, func(_ context.Context, i int) (int, error) {
		return i * i, nil
	})

	require.Len(t, results, 10)
	for i, r := range results {
		assert.Equal(t, i, r.Index)
		assert.Equal(t, int64(7), r.Gen)
		assert.Equal(t, i*i, r.Value)
		assert.NoError(t, r.Err)
	}
	assert.Empty(t, Failures(results))
}

func TestCollectJoinsFailures(t *testing.T) {
	boom := errors.New("boom")

	results := Collect(context.Background(), 1, 2, 5, func(_ context.Context, i int) (string, error) {
		if i%2 == 1 {
			return "", fmt.Errorf("task %d: %w", i, boom)
		}
		return fmt.Sprintf("ok-%d", i), nil
	})

	// Failures never cancel siblings: all five results are present.
	require.Len(t, results, 5)
	assert.Equal(t, "ok-0", results[0].Value)
	assert.ErrorIs(t, results[1].Err, boom)
	assert.Equal(t, "ok-2", results[2].Value)
	assert.ErrorIs(t, results[3].Err, boom)
	assert.Equal(t, "ok-4", results[4].Value)

	failed := Failures(results)
	require.Len(t, failed, 2)
	assert.Equal(t, 1, failed[0].Index)
	assert.Equal(t, 3, failed[1].Index)
}

func TestCollectRespectsLimit(t *testing.T) {
	var inFlight, peak atomic.Int32

	Collect(context.Background(), 1, 3, 24, func(_ context.Context, _ int) (struct{}, error) {
		cur := inFlight.Add(1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		inFlight.Add(-1)
		return struct{}{}, nil
	})

	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestCollectZeroTasks(t *testing.T) {
	results := Collect(context.Background(), 1, 4, 0, func(_ context.Context, _ int) (int, error) {
		t.Fatal("task must not run")
		return 0, nil
	})
	assert.Nil(t, results)
}

func TestCollectUnboundedLimit(t *testing.T) {
	results := Collect(context.Background(), 3, 0, 8, func(_ context.Context, i int) (int, error) {
		return i, nil
	})
	require.Len(t, results, 8)
}

func TestCollectPassesContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := Collect(ctx, 1, 2, 3, func(ctx context.Context, i int) (int, error) {
		return 0, ctx.Err()
	})

	// A cancelled context surfaces per task, never as a missing result.
	require.Len(t, results, 3)
	for _, r := range results {
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
}
