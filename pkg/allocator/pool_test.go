package allocator

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jiayi-1994/zstack-macpool/pkg/macrange"
)

func mustRange(t *testing.T, start, end string) macrange.Range {
	t.Helper()
	r, err := macrange.ParseRange(start, end)
	require.NoError(t, err)
	return r
}

func TestNewMACPool(t *testing.T) {
	tests := []struct {
		name     string
		ranges   [][2]string
		exclude  []string
		max      int
		wantSize int
		wantUsed int
		wantErr  bool
	}{
		{
			name:     "single range",
			ranges:   [][2]string{{"00:1a:4a:00:00:00", "00:1a:4a:00:00:0f"}},
			max:      100,
			wantSize: 16,
		},
		{
			name:     "capped by maxAddresses",
			ranges:   [][2]string{{"00:1a:4a:00:00:00", "00:1a:4a:00:ff:ff"}},
			max:      10,
			wantSize: 10,
		},
		{
			name:     "maxAddresses of one",
			ranges:   [][2]string{{"00:1a:4a:00:00:00", "00:1a:4a:00:ff:ff"}},
			max:      1,
			wantSize: 1,
		},
		{
			name: "cap spans ranges",
			ranges: [][2]string{
				{"00:1a:4a:00:00:00", "00:1a:4a:00:00:0f"},
				{"00:1a:4a:00:01:00", "00:1a:4a:00:01:0f"},
			},
			max:      20,
			wantSize: 20,
		},
		{
			name: "overlapping ranges are merged",
			ranges: [][2]string{
				{"00:1a:4a:00:00:00", "00:1a:4a:00:00:0f"},
				{"00:1a:4a:00:00:08", "00:1a:4a:00:00:17"},
			},
			max:      100,
			wantSize: 24,
		},
		{
			name:     "multicast part is skipped",
			ranges:   [][2]string{{"00:ff:ff:ff:ff:fe", "01:00:00:00:00:05"}},
			max:      100,
			wantSize: 2,
		},
		{
			name:     "exclusions are reserved",
			ranges:   [][2]string{{"00:1a:4a:00:00:00", "00:1a:4a:00:00:0f"}},
			exclude:  []string{"00:1A:4A:00:00:00", "001a4a000001", "00:00:00:00:00:01"},
			max:      100,
			wantSize: 16,
			wantUsed: 2,
		},
		{
			name:    "all multicast",
			ranges:  [][2]string{{"01:00:00:00:00:00", "01:00:00:00:00:ff"}},
			max:     100,
			wantErr: true,
		},
		{
			name:    "inverted range",
			ranges:  [][2]string{{"00:00:00:00:00:09", "00:00:00:00:00:01"}},
			max:     100,
			wantErr: true,
		},
		{
			name:    "non-positive maxAddresses",
			ranges:  [][2]string{{"00:1a:4a:00:00:00", "00:1a:4a:00:00:0f"}},
			max:     0,
			wantErr: true,
		},
		{
			name:    "malformed exclusion",
			ranges:  [][2]string{{"00:1a:4a:00:00:00", "00:1a:4a:00:00:0f"}},
			exclude: []string{"not-a-mac"},
			max:     100,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ranges []macrange.Range
			for _, r := range tt.ranges {
				ranges = append(ranges, mustRange(t, r[0], r[1]))
			}

			pool, err := NewMACPool(tt.name, ranges, tt.exclude, tt.max)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.name, pool.Name())
			assert.Equal(t, tt.wantSize, pool.Size())
			assert.Equal(t, tt.wantUsed, pool.Used())
			assert.Equal(t, tt.wantSize-tt.wantUsed, pool.Available())
			assert.Len(t, pool.Ranges(), len(tt.ranges))
		})
	}
}

func TestMACPoolAllocateNext(t *testing.T) {
	pool, err := NewMACPool("next", []macrange.Range{mustRange(t, "00:ff:ff:ff:ff:fe", "01:00:00:00:00:01")}, nil, 10)
	require.NoError(t, err)

	mac, err := pool.AllocateNext()
	require.NoError(t, err)
	assert.Equal(t, "00:ff:ff:ff:ff:fe", mac)

	mac, err = pool.AllocateNext()
	require.NoError(t, err)
	assert.Equal(t, "00:ff:ff:ff:ff:ff", mac)

	_, err = pool.AllocateNext()
	var exhausted *PoolExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, "next", exhausted.Pool)
}

func TestMACPoolAllocateAndRelease(t *testing.T) {
	pool, err := NewMACPool("specific", []macrange.Range{mustRange(t, "00:1a:4a:00:00:00", "00:1a:4a:00:00:0f")},
		[]string{"00:1a:4a:00:00:0f"}, 100)
	require.NoError(t, err)

	require.NoError(t, pool.Allocate("00:1A:4A:00:00:05"))
	assert.True(t, pool.IsAllocated("00:1a:4a:00:00:05"))
	assert.True(t, pool.Contains("001a4a000005"))

	var already *MACAlreadyAllocatedError
	assert.ErrorAs(t, pool.Allocate("00:1a:4a:00:00:05"), &already)
	assert.Equal(t, "00:1a:4a:00:00:05", already.MAC)
	assert.ErrorAs(t, pool.Allocate("00:1a:4a:00:00:0f"), &already)

	var outOfRange *MACOutOfRangeError
	assert.ErrorAs(t, pool.Allocate("00:1a:4a:00:00:10"), &outOfRange)
	assert.False(t, pool.Contains("00:1a:4a:00:00:10"))

	err = pool.Allocate("zz:00:00:00:00:00")
	assert.True(t, macrange.IsParseError(err))
	assert.False(t, pool.IsAllocated("zz:00:00:00:00:00"))

	require.NoError(t, pool.Release("00:1a:4a:00:00:05"))
	assert.False(t, pool.IsAllocated("00:1a:4a:00:00:05"))
	// Releasing a free address is a no-op.
	require.NoError(t, pool.Release("00:1a:4a:00:00:05"))

	var excluded *MACExcludedError
	assert.ErrorAs(t, pool.Release("00:1a:4a:00:00:0f"), &excluded)
	assert.True(t, pool.IsAllocated("00:1a:4a:00:00:0f"))
	assert.Equal(t, 1, pool.Used())

	require.NoError(t, pool.Allocate("00:1a:4a:00:00:09"))
	require.NoError(t, pool.Allocate("00:1a:4a:00:00:02"))
	assert.Equal(t, []string{"00:1a:4a:00:00:02", "00:1a:4a:00:00:09"}, pool.Allocated())
}

func TestMACPoolPreview(t *testing.T) {
	pool, err := NewMACPool("preview", []macrange.Range{mustRange(t, "00:1a:4a:00:00:00", "00:1a:4a:00:00:03")}, nil, 100)
	require.NoError(t, err)

	assert.Nil(t, pool.Preview(0))
	assert.Equal(t, []string{"00:1a:4a:00:00:00", "00:1a:4a:00:00:01"}, pool.Preview(2))
	assert.Len(t, pool.Preview(10), 4)
}

func TestMACPoolConcurrentAllocation(t *testing.T) {
	pool, err := NewMACPool("concurrent", []macrange.Range{mustRange(t, "00:1a:4a:00:00:00", "00:1a:4a:00:03:ff")}, nil, 4096)
	require.NoError(t, err)
	require.Equal(t, 1024, pool.Size())

	const workers = 8
	results := make(chan string, pool.Size())
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				mac, err := pool.AllocateNext()
				if err != nil {
					return
				}
				results <- mac
			}
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[string]bool)
	for mac := range results {
		assert.False(t, seen[mac], "duplicate %s", mac)
		seen[mac] = true
	}
	assert.Len(t, seen, 1024)
	assert.Equal(t, 0, pool.Available())
}

func TestMACPoolRetire(t *testing.T) {
	pool, err := NewMACPool("old", []macrange.Range{mustRange(t, "00:1a:4a:00:00:00", "00:1a:4a:00:00:0f")},
		[]string{"00:1a:4a:00:00:00"}, 100)
	require.NoError(t, err)

	require.NoError(t, pool.Allocate("00:1a:4a:00:00:05"))
	mac, err := pool.AllocateNext()
	require.NoError(t, err)
	assert.Equal(t, "00:1a:4a:00:00:01", mac)
	assert.False(t, pool.IsRetired())

	assert.Equal(t, []string{"00:1a:4a:00:00:01", "00:1a:4a:00:00:05"}, pool.Retire())
	assert.True(t, pool.IsRetired())

	var retired *PoolRetiredError
	_, err = pool.AllocateNext()
	require.ErrorAs(t, err, &retired)
	assert.Equal(t, "old", retired.Pool)
	assert.ErrorAs(t, pool.Allocate("00:1a:4a:00:00:07"), &retired)
	assert.ErrorAs(t, pool.Release("00:1a:4a:00:00:05"), &retired)

	// The final allocations are unchanged by the rejected calls.
	assert.Equal(t, []string{"00:1a:4a:00:00:01", "00:1a:4a:00:00:05"}, pool.Allocated())
}

func TestMACPoolRetireDuringAllocation(t *testing.T) {
	pool, err := NewMACPool("busy", []macrange.Range{mustRange(t, "00:1a:4a:00:00:00", "00:1a:4a:00:ff:ff")}, nil, 4096)
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted []string
	)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				mac, err := pool.AllocateNext()
				if err != nil {
					return
				}
				mu.Lock()
				granted = append(granted, mac)
				mu.Unlock()
			}
		}()
	}

	final := pool.Retire()
	wg.Wait()

	// Every MAC handed out before the pool froze is in its final list.
	assert.ElementsMatch(t, granted, final)
}

func TestBitmap(t *testing.T) {
	b := NewBitmap(130)
	assert.Equal(t, 130, b.Size())
	assert.Equal(t, 0, b.FindFirstClear())

	for i := 0; i < 129; i++ {
		require.NoError(t, b.Set(i))
	}
	assert.Error(t, b.Set(3))
	assert.Error(t, b.Set(130))
	assert.Error(t, b.Set(-1))
	assert.Equal(t, 129, b.FindFirstClear())

	require.NoError(t, b.Set(129))
	assert.Equal(t, -1, b.FindFirstClear())
	assert.Equal(t, 0, b.Available())

	require.NoError(t, b.Clear(64))
	assert.False(t, b.IsSet(64))
	assert.Equal(t, 64, b.FindFirstClear())
	assert.Equal(t, 129, b.Allocated())
	assert.Error(t, b.Clear(500))
	assert.False(t, b.IsSet(500))
}
