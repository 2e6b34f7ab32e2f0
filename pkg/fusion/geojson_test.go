package fusion

import (
	"encoding/json"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportFeatureCollection(t *testing.T) {
	t.Parallel()

	report, err := newTestDetector(t).Run(Input{
		Pose: testPose,
		ImageSets: []ImageDetectionSet{
			aheadSet(SensorRGB1, ClassCar, 70),
			aheadSet(SensorThermal, ClassCar, 75),
		},
	})
	require.NoError(t, err)

	fc := report.FeatureCollection()
	// два положення ТЗ, два виявлення, один результат
	require.Len(t, fc.Features, 5)

	assert.Equal(t, "vehicle", fc.Features[0].Properties["layer"])
	assert.Equal(t, "current", fc.Features[0].Properties["position"])
	assert.Equal(t, orb.Point(testPose.Current), fc.Features[0].Geometry)

	assert.Equal(t, "detection", fc.Features[2].Properties["layer"])
	assert.Equal(t, "beige", fc.Features[2].Properties["marker-color"])
	assert.Equal(t, "red", fc.Features[3].Properties["marker-color"])

	fused := fc.Features[4]
	assert.Equal(t, "fused", fused.Properties["layer"])
	assert.Equal(t, 2, fused.Properties["members"])
	assert.Equal(t, []string{"RGB1", "Thermal"}, fused.Properties["sensors"])

	data, err := json.Marshal(fc)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"FeatureCollection"`)
}

func TestFusedDetectionJSON(t *testing.T) {
	t.Parallel()

	in := FusedDetection{ObjectClass: ClassDog, Coordinate: orb.Point{30.5, 50.4}}
	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"dog":[50.4,30.5]}`, string(data))

	var out FusedDetection
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in.ObjectClass, out.ObjectClass)
	assert.Equal(t, in.Coordinate, out.Coordinate)

	assert.Error(t, json.Unmarshal([]byte(`{"dog":[1,2],"car":[3,4]}`), &out))
}
