package trace

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/storyviz/internal/ir"
)

func TestClockMonotonic(t *testing.T) {
	c := NewClock()
	assert.Equal(t, int64(0), c.Current())
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())
	assert.Equal(t, int64(2), c.Current())

	resumed := NewClockAt(41)
	assert.Equal(t, int64(42), resumed.Next())
}

func TestClockConcurrentUnique(t *testing.T) {
	c := NewClock()
	const n = 100
	seen := make(chan int64, n)
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seen <- c.Next()
		}()
	}
	wg.Wait()
	close(seen)

	unique := map[int64]bool{}
	for v := range seen {
		unique[v] = true
	}
	assert.Len(t, unique, n)
}

func TestUUIDv7Generator(t *testing.T) {
	id := UUIDv7Generator{}.Generate()
	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}

func TestFixedGenerator(t *testing.T) {
	g := NewFixedGenerator("run-1", "run-2")
	assert.Equal(t, "run-1", g.Generate())
	assert.Equal(t, "run-2", g.Generate())
	assert.Panics(t, func() { g.Generate() })
}

func TestLogRecordsAndDigests(t *testing.T) {
	ctx := context.Background()
	a, b := NewLog(), NewLog()
	for _, l := range []*Log{a, b} {
		require.NoError(t, l.Record(ctx, ir.Call{Seq: 1, Component: "queue", Action: "add_element"}))
	}

	assert.Equal(t, 1, a.Len())
	da, err := a.Digest()
	require.NoError(t, err)
	db, err := b.Digest()
	require.NoError(t, err)
	assert.Equal(t, da, db)

	a.Reset()
	assert.Equal(t, 0, a.Len())
}

func TestTeeForwardsToAll(t *testing.T) {
	ctx := context.Background()
	first, second := NewLog(), NewLog()
	failing := RecorderFunc(func(context.Context, ir.Call) error { return errors.New("disk full") })

	err := Tee(first, failing, nil, second).Record(ctx, ir.Call{Seq: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 1, first.Len())
	assert.Equal(t, 1, second.Len())
}
