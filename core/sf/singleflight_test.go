package sf

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSingleflight_dedup(t *testing.T) {
	s := New[int]()

	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})

	var wg sync.WaitGroup
	results := make([]*int, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := s.Do("k", func() (*int, error) {
				if calls.Add(1) == 1 {
					close(started)
				}
				<-release
				out := 7
				return &out, nil
			})
			require.NoError(t, err)
			results[i] = v
		}()
	}

	<-started
	close(release)
	wg.Wait()

	require.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		require.NotNil(t, r)
		require.Equal(t, 7, *r)
	}
}
