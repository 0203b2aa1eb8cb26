package idgen

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()

	gen := New()
	assert.NotNil(t, gen)
	assert.NotNil(t, gen.sf)
}

func TestGeneratePrefixedIDs(t *testing.T) {
	t.Parallel()

	gen := New()

	testcases := []struct {
		name   string
		prefix string
		fn     func() (string, error)
	}{
		{name: "request ID", prefix: "req-", fn: gen.GenerateRequestID},
		{name: "sweep ID", prefix: "sweep-", fn: gen.GenerateSweepID},
		{name: "default request ID", prefix: "req-", fn: GenerateRequestID},
		{name: "default sweep ID", prefix: "sweep-", fn: GenerateSweepID},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			id, err := tc.fn()
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(id, tc.prefix), "unexpected id %s", id)
			assert.Greater(t, len(id), len(tc.prefix))
		})
	}
}

func TestGenerateID_Increasing(t *testing.T) {
	t.Parallel()

	gen := New()
	var last uint64
	for i := 0; i < 100; i++ {
		id, err := gen.GenerateID()
		require.NoError(t, err)
		assert.Greater(t, id, last)
		last = id
	}
}

func TestGenerateRequestID_ConcurrentUnique(t *testing.T) {
	t.Parallel()

	gen := New()
	const n = 200

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		ids = make(map[string]struct{}, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := gen.GenerateRequestID()
			assert.NoError(t, err)
			mu.Lock()
			ids[id] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, ids, n)
}

func TestDefaultGenerator_Singleton(t *testing.T) {
	t.Parallel()

	assert.Same(t, DefaultGenerator(), DefaultGenerator())
}
