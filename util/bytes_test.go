package util

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUint64ToBytes(t *testing.T) {
	require.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 1}, Uint64ToBytes(1))
	require.EqualValues(t, 1, BytesToUint64(Uint64ToBytes(1)))
	require.EqualValues(t, uint64(math.MaxUint64), BytesToUint64(Uint64ToBytes(math.MaxUint64)))
	// short input is padded
	require.EqualValues(t, 0x0102, BytesToUint64([]byte{1, 2}))
	require.EqualValues(t, 0, BytesToUint64(nil))
}

func TestInt64ToLE(t *testing.T) {
	require.Equal(t, []byte{1, 0, 0, 0, 0, 0, 0, 0}, Int64ToLE(1))
	require.Equal(t, []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, Int64ToLE(-1))
	for _, v := range []int64{0, 1, -1, 1700000000, math.MinInt64, math.MaxInt64} {
		require.Equal(t, v, LEToInt64(Int64ToLE(v)))
	}
}
