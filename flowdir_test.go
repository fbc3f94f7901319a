package flowgrid_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgrid/flowgrid"
	"github.com/flowgrid/flowgrid/testutil"
)

func TestTotalWeight_SumsAllNibbles(t *testing.T) {
	tests := []struct {
		name string
		v    int
		want int
	}{
		{"zero", 0, 0},
		{"single nibble", 0xF0, 15},
		{"low nibble", 0x7, 7},
		{"all ones", 0x11111111, 8},
		{"all max", -0x1 & 0xFFFFFFFF, 120},
		{"mixed", 0x305A0021, 3 + 0 + 5 + 10 + 0 + 0 + 2 + 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, flowgrid.TotalWeight(tt.v))

			sum := 0
			for d := 0; d < flowgrid.NumDirections; d++ {
				sum += flowgrid.DirWeight(tt.v, d)
			}
			assert.Equal(t, flowgrid.TotalWeight(tt.v), sum)
		})
	}
}

func TestDirWeight(t *testing.T) {
	v := 15 << 4 // all outflow toward direction 1
	assert.Equal(t, 15, flowgrid.DirWeight(v, 1))
	for d := 0; d < flowgrid.NumDirections; d++ {
		if d != 1 {
			assert.Zero(t, flowgrid.DirWeight(v, d))
		}
	}
}

func TestReverseDir(t *testing.T) {
	want := [8]int{4, 5, 6, 7, 0, 1, 2, 3}
	for d := 0; d < flowgrid.NumDirections; d++ {
		assert.Equal(t, want[d], flowgrid.ReverseDir(d))
		// A neighbor's reverse offset lands back on the origin.
		dx, dy := flowgrid.Offset(d)
		rx, ry := flowgrid.Offset(flowgrid.ReverseDir(d))
		assert.Zero(t, dx+rx)
		assert.Zero(t, dy+ry)
	}
}

func TestOffsets_Geometry(t *testing.T) {
	// Direction 0 is east; numbering proceeds through the compass ring.
	dx, dy := flowgrid.Offset(0)
	assert.Equal(t, [2]int{1, 0}, [2]int{dx, dy})
	dx, dy = flowgrid.Offset(2)
	assert.Equal(t, [2]int{0, -1}, [2]int{dx, dy})
	dx, dy = flowgrid.Offset(4)
	assert.Equal(t, [2]int{-1, 0}, [2]int{dx, dy})
	dx, dy = flowgrid.Offset(6)
	assert.Equal(t, [2]int{0, 1}, [2]int{dx, dy})
}

func TestIsLocalHighPoint_MFD(t *testing.T) {
	// Center routes everywhere; its own neighbors all receive, center
	// receives nothing.
	fd := testutil.FlowDirMem(t, [][]int{
		{0, 0, 0},
		{0, 0x11111111, 0},
		{0, 0, 0},
	}, 4, 4, flowgrid.MFD)

	high, err := fd.IsLocalHighPoint(1, 1)
	require.NoError(t, err)
	assert.True(t, high)

	high, err = fd.IsLocalHighPoint(2, 1)
	require.NoError(t, err)
	assert.False(t, high)
}

func TestIsLocalHighPoint_D8(t *testing.T) {
	// (0,1) flows east into (1,1); (1,1) flows north into (1,0).
	// Cells encode direction indices; 2 = north, 0 = east.
	fd := testutil.FlowDirMem(t, [][]int{
		{2, 2, 2},
		{0, 2, 2},
		{2, 2, 2},
	}, 4, 4, flowgrid.D8)

	high, err := fd.IsLocalHighPoint(1, 1)
	require.NoError(t, err)
	assert.False(t, high, "(1,1) receives from (0,1)")

	high, err = fd.IsLocalHighPoint(0, 1)
	require.NoError(t, err)
	assert.False(t, high, "(0,1) receives from (0,2) flowing north")

	high, err = fd.IsLocalHighPoint(0, 0)
	require.NoError(t, err)
	assert.True(t, high)
}

func TestIsLocalHighPoint_MatchesUpslopeEmpty(t *testing.T) {
	fd := testutil.FlowDirMem(t, [][]int{
		{0x00000020, 0, 0},
		{0x11111111, 0x00F00000, 0},
		{0, 0, 0},
	}, 4, 4, flowgrid.MFD)

	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			p, err := fd.Pixel(x, y)
			require.NoError(t, err)
			ups := testutil.Collect(t, flowgrid.UpslopeNeighbors(p))

			high, err := fd.IsLocalHighPoint(x, y)
			require.NoError(t, err)
			assert.Equal(t, len(ups) == 0, high, "cell (%d,%d)", x, y)
		}
	}
}

func TestFlowModel_String(t *testing.T) {
	assert.Equal(t, "D8", flowgrid.D8.String())
	assert.Equal(t, "MFD", flowgrid.MFD.String())
}

func TestIsClose(t *testing.T) {
	assert.True(t, flowgrid.IsClose(1.0, 1.0))
	assert.True(t, flowgrid.IsClose(1.0, 1.0+1e-9))
	assert.True(t, flowgrid.IsClose(1e6, 1e6*(1+1e-6)))
	assert.False(t, flowgrid.IsClose(1.0, 1.001))
	assert.True(t, flowgrid.IsClose(math.NaN(), math.NaN()))
	assert.False(t, flowgrid.IsClose(math.NaN(), 1.0))
}
