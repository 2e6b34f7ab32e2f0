package fusion

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"obstacle-detection-system/pkg/geodesy"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	uavPoint := geodesy.Destination(origin, 210, 270)
	in := Input{
		Pose: testPose,
		ImageSets: []ImageDetectionSet{
			aheadSet(SensorRGB1, ClassCar, 30),
			aheadSet(SensorThermal, ClassPerson, 140),
		},
		AerialSets: []AerialDetectionSet{{Objects: []RawDetection{
			{ObjectClass: ClassHorse, EnteringROI: true, GPS: &uavPoint},
		}}},
	}

	dets, err := Normalize(in)
	require.NoError(t, err)
	require.Len(t, dets, 3)

	assert.Equal(t, SensorRGB1, dets[0].Sensor)
	assert.Equal(t, 30.0, dets[0].Distance)
	assert.InDelta(t, 0, dets[0].RelativeBearing, 1e-6)

	assert.Equal(t, SensorThermal, dets[1].Sensor)
	assert.Equal(t, ClassPerson, dets[1].ObjectClass)

	uav := dets[2]
	assert.Equal(t, SensorUAV, uav.Sensor)
	assert.Equal(t, uavPoint, uav.Coordinate)
	assert.InDelta(t, 210, uav.Distance, 1e-6)
	// азимут 270° стає відносним -90°
	assert.InDelta(t, -90, uav.RelativeBearing, 1e-3)
}

func TestNormalizeSkipsObjectsOutsideROI(t *testing.T) {
	t.Parallel()

	set := aheadSet(SensorRGB4, ClassBus, 20, 60)
	set.Objects[0].EnteringROI = false

	dets, err := Normalize(Input{Pose: testPose, ImageSets: []ImageDetectionSet{set}})
	require.NoError(t, err)
	require.Len(t, dets, 1)
	assert.Equal(t, 60.0, dets[0].Distance)
}

func TestNormalizeErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  func() Input
		want   error
		sensor SensorKind
		index  int
	}{
		{
			name: "unknown class",
			input: func() Input {
				return Input{Pose: testPose, ImageSets: []ImageDetectionSet{aheadSet(SensorRGB1, "Car", 10)}}
			},
			want: ErrUnknownObjectClass, sensor: SensorRGB1, index: 0,
		},
		{
			name: "non-numeric box outside ROI still fails",
			input: func() Input {
				set := aheadSet(SensorSWIR, ClassRock, 10, 20)
				set.Objects[1].EnteringROI = false
				set.Objects[1].Box.XMax = math.NaN()
				return Input{Pose: testPose, ImageSets: []ImageDetectionSet{set}}
			},
			want: ErrMalformedDetection, sensor: SensorSWIR, index: 1,
		},
		{
			name: "negative range",
			input: func() Input {
				return Input{Pose: testPose, ImageSets: []ImageDetectionSet{aheadSet(SensorMonochrome, ClassDog, -5)}}
			},
			want: ErrMalformedDetection, sensor: SensorMonochrome, index: 0,
		},
		{
			name: "aerial sensor in image set",
			input: func() Input {
				return Input{Pose: testPose, ImageSets: []ImageDetectionSet{aheadSet(SensorUAV, ClassDog, 5)}}
			},
			want: ErrMalformedDetection, sensor: SensorUAV, index: -1,
		},
		{
			name: "zero image size",
			input: func() Input {
				set := aheadSet(SensorRGB4, ClassDog, 5)
				set.Image.Height = 0
				return Input{Pose: testPose, ImageSets: []ImageDetectionSet{set}}
			},
			want: ErrMalformedDetection, sensor: SensorRGB4, index: -1,
		},
		{
			name: "aerial without GPS",
			input: func() Input {
				return Input{Pose: testPose, AerialSets: []AerialDetectionSet{{Objects: []RawDetection{
					{ObjectClass: ClassCar, EnteringROI: true},
				}}}}
			},
			want: ErrMalformedDetection, sensor: SensorUAV, index: 0,
		},
		{
			name: "pose out of range",
			input: func() Input {
				return Input{Pose: VehiclePose{Current: geodesy.Point(91, 0), Previous: origin}}
			},
			want: ErrMalformedDetection, sensor: "vehicle", index: -1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dets, err := Normalize(tt.input())
			assert.Nil(t, dets)
			require.ErrorIs(t, err, tt.want)

			var detErr *DetectionError
			require.True(t, errors.As(err, &detErr))
			assert.Equal(t, tt.sensor, detErr.Sensor)
			assert.Equal(t, tt.index, detErr.Index)
		})
	}
}
