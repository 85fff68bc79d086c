package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewClientWithAddr(mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestJSONRoundTripAndTTL(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	type entry struct {
		Name string  `json:"name"`
		IDs  []int64 `json:"ids"`
	}

	var got entry
	ok, err := c.GetJSON(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.SetJSON(ctx, "k", entry{Name: "a", IDs: []int64{1, 2}}, time.Hour))
	ok, err = c.GetJSON(ctx, "k", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, entry{Name: "a", IDs: []int64{1, 2}}, got)

	mr.FastForward(2 * time.Hour)
	ok, err = c.GetJSON(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetJSONRejectsGarbage(t *testing.T) {
	c, mr := newTestClient(t)
	require.NoError(t, mr.Set("bad", "{not json"))

	var v map[string]any
	_, err := c.GetJSON(context.Background(), "bad", &v)
	assert.Error(t, err)
}

func TestGenerations(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	g, err := c.Generation(ctx, "media")
	require.NoError(t, err)
	assert.Equal(t, int64(0), g)

	g, err = c.BumpGeneration(ctx, "media")
	require.NoError(t, err)
	assert.Equal(t, int64(1), g)

	g, err = c.Generation(ctx, "media")
	require.NoError(t, err)
	assert.Equal(t, int64(1), g)
}

func TestCounterSeedAndAdjust(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	_, ok, err := c.AdjustCounter(ctx, "counter", 1)
	require.NoError(t, err)
	assert.False(t, ok, "unseeded counters are not created by an adjustment")

	seeded, err := c.SeedCounter(ctx, "counter", 5, "counters", 0)
	require.NoError(t, err)
	assert.True(t, seeded)

	seeded, err = c.SeedCounter(ctx, "counter", 100, "counters", 0)
	require.NoError(t, err)
	assert.False(t, seeded)

	v, ok, err := c.AdjustCounter(ctx, "counter", 2)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(7), v)

	v, _, err = c.AdjustCounter(ctx, "counter", -20)
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)

	v, ok, err = c.GetCounter(ctx, "counter")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(0), v)
}

func TestSeedCounterDropsSeedsFromAnOldGeneration(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	gen, err := c.Generation(ctx, "counters:1")
	require.NoError(t, err)
	_, err = c.BumpGeneration(ctx, "counters:1")
	require.NoError(t, err)

	seeded, err := c.SeedCounter(ctx, "counter", 5, "counters:1", gen)
	require.NoError(t, err)
	assert.False(t, seeded)
	_, ok, err := c.GetCounter(ctx, "counter")
	require.NoError(t, err)
	assert.False(t, ok)

	seeded, err = c.SeedCounter(ctx, "counter", 6, "counters:1", gen+1)
	require.NoError(t, err)
	assert.True(t, seeded)
	v, _, err := c.GetCounter(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, int64(6), v)
}

func TestAdjustCounterConcurrent(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	_, err := c.SeedCounter(ctx, "reads", 0, "counters", 0)
	require.NoError(t, err)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := c.AdjustCounter(ctx, "reads", 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	v, _, err := c.GetCounter(ctx, "reads")
	require.NoError(t, err)
	assert.Equal(t, int64(n), v)
}

func TestLists(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	_, ok, err := c.RangeList(ctx, "list")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.ReplaceList(ctx, "list", []any{"a", "b"}, time.Hour))
	require.NoError(t, c.ReplaceList(ctx, "list", []any{"c"}, time.Hour))

	values, ok, err := c.RangeList(ctx, "list")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"c"}, values)

	require.NoError(t, c.Del(ctx, "list"))
	_, ok, err = c.RangeList(ctx, "list")
	require.NoError(t, err)
	assert.False(t, ok)
}
