package slipwatch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebouncerCoalescesBursts(t *testing.T) {
	var calls int32
	d := newDebouncer(20*time.Millisecond, func(string) { atomic.AddInt32(&calls, 1) })

	for i := 0; i < 10; i++ {
		d.touch("slip.png")
		time.Sleep(2 * time.Millisecond)
	}
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDebouncerDistinctPaths(t *testing.T) {
	var calls int32
	d := newDebouncer(10*time.Millisecond, func(string) { atomic.AddInt32(&calls, 1) })

	d.touch("a.png")
	d.touch("b.png")
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestDebouncerStopSuppressesPendingDeliveries(t *testing.T) {
	var calls int32
	d := newDebouncer(20*time.Millisecond, func(string) { atomic.AddInt32(&calls, 1) })

	d.touch("late.png")
	d.stop()
	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, atomic.LoadInt32(&calls))

	// touches after stop are ignored too
	d.touch("later.png")
	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

// Timers firing concurrently with stop must never corrupt state or deliver
// after the stopped flag settles; the sink stays callable throughout.
func TestDebouncerStopRacesFiringTimers(t *testing.T) {
	var mu sync.Mutex
	delivered := 0
	d := newDebouncer(time.Microsecond, func(string) {
		mu.Lock()
		delivered++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			d.touch(fmt.Sprintf("slip-%d.png", i))
		}
	}()
	time.Sleep(100 * time.Microsecond)
	d.stop()
	wg.Wait()
	time.Sleep(20 * time.Millisecond)
	// no assertion on the count: the guarantee under test is no panic and no
	// deliveries once stop has returned
	mu.Lock()
	settled := delivered
	mu.Unlock()
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, settled, delivered)
	mu.Unlock()
}

// Cancelling mid-burst must shut Run down cleanly even with debounce timers
// still pending or firing; the files are not decodable images, so every
// ingest fails fast without reaching the recognition engine.
func TestRunShutsDownCleanlyMidBurst(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 5; i++ {
		p := filepath.Join(dir, fmt.Sprintf("pre-%d.png", i))
		require.NoError(t, os.WriteFile(p, []byte("not an image"), 0o644))
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, Options{Dir: dir, Dry: true, Workers: 2, Debounce: 5 * time.Millisecond})
	}()

	// keep events flowing while the watcher is up, then cancel with timers
	// in every state: pending, firing and already delivered
	for i := 0; i < 20; i++ {
		p := filepath.Join(dir, fmt.Sprintf("burst-%d.png", i%4))
		_ = os.WriteFile(p, []byte("still not an image"), 0o644)
		time.Sleep(2 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
