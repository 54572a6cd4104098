package utilities

import (
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSnowflakeID_UniqueAcrossGoroutines(t *testing.T) {
	const workers, per = 8, 200
	var (
		mu   sync.Mutex
		seen = make(map[string]struct{}, workers*per)
		wg   sync.WaitGroup
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < per; j++ {
				id := NewSnowflakeID()
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, workers*per)

	// cached node yields numeric snowflakes, not the ksuid fallback
	_, err := strconv.ParseInt(NewSnowflakeID(), 10, 64)
	require.NoError(t, err)
}
