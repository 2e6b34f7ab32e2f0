package fusion

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZoneFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		distance float64
		want     Zone
	}{
		{0, 1},
		{49.999, 1},
		{50, 2},
		{99.9, 2},
		{100, 3},
		{150, 4},
		{200, 5},
		{249.99, 5},
		{250, 6},
		{399.99, 6},
		{400, 7},
		{1e6, 7},
		{-1, 0},
		{math.NaN(), 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ZoneFor(tt.distance), "distance %v", tt.distance)
	}
}

func TestZoneForIsTotalAndMonotonic(t *testing.T) {
	t.Parallel()

	prev := Zone(1)
	for d := 0.0; d <= 600; d += 0.25 {
		z := ZoneFor(d)
		require.True(t, z.Valid(), "distance %v", d)

		matches := 0
		for zone := Zone(1); zone <= ZoneCount; zone++ {
			low, high := zone.Bounds()
			if low <= d && d < high {
				matches++
			}
		}
		require.Equal(t, 1, matches, "distance %v", d)
		require.GreaterOrEqual(t, z, prev)
		prev = z
	}
}

func TestPartition(t *testing.T) {
	t.Parallel()

	dets := []NormalizedDetection{
		{Sensor: SensorRGB1, Distance: 120},
		{Sensor: SensorRGB4, Distance: 10},
		{Sensor: SensorUAV, Distance: 500},
		{Sensor: SensorSWIR, Distance: 11},
	}

	zones, err := Partition(dets)
	require.NoError(t, err)

	near := zones.Zone(1)
	require.Len(t, near, 2)
	assert.Equal(t, SensorRGB4, near[0].Sensor)
	assert.Equal(t, SensorSWIR, near[1].Sensor)
	assert.Equal(t, Zone(1), near[0].Zone)
	assert.Len(t, zones.Zone(3), 1)
	assert.Len(t, zones.Zone(7), 1)
	assert.Nil(t, zones.Zone(8))

	all := zones.All()
	require.Len(t, all, 4)
	assert.Equal(t, []Zone{1, 1, 3, 7}, []Zone{all[0].Zone, all[1].Zone, all[2].Zone, all[3].Zone})

	t.Run("negative distance is malformed", func(t *testing.T) {
		_, err := Partition([]NormalizedDetection{{Sensor: SensorRGB1, Distance: -3}})
		assert.ErrorIs(t, err, ErrMalformedDetection)
	})
}
