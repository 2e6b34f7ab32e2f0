package fusion

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"obstacle-detection-system/pkg/geodesy"
)

func TestCameraAngle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		x, y float64
		want float64
	}{
		{"centre", 0, 100, 0},
		{"right diagonal", 100, 100, 45},
		{"left diagonal", -100, 100, -45},
		{"bottom edge right", 50, 0, 90},
		{"bottom edge left", -50, 0, -90},
		{"bottom centre", 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CameraAngle(tt.x, tt.y), 1e-9)
		})
	}
}

func TestEstimateCoordinate(t *testing.T) {
	t.Parallel()

	img := ImageSize{Width: 1000, Height: 600}

	t.Run("straight ahead follows the heading", func(t *testing.T) {
		est := EstimateCoordinate(BoundingBox{XMin: 450, XMax: 550, YMax: 400}, 80, img, testPose)
		assert.InDelta(t, 0, est.CameraAngle, 1e-9)
		assert.InDelta(t, 0, est.Heading, 1e-9)
		assert.InDelta(t, 80, geodesy.Distance(origin, est.Coordinate), 1e-6)
		assert.Greater(t, est.Coordinate.Lat(), origin.Lat())
	})

	t.Run("offset adds the camera angle to the heading", func(t *testing.T) {
		// центр рамки на 100 px правіше, 100 px від нижнього краю
		est := EstimateCoordinate(BoundingBox{XMin: 550, XMax: 650, YMax: 500}, 40, img, testPose)
		assert.InDelta(t, 45, est.CameraAngle, 1e-9)
		assert.InDelta(t, 45, est.Bearing, 1e-9)
		assert.InDelta(t, 45, geodesy.Bearing(origin, est.Coordinate), 1e-3)
	})

	t.Run("stationary vehicle does not produce NaN", func(t *testing.T) {
		pose := VehiclePose{Current: origin, Previous: origin}
		est := EstimateCoordinate(BoundingBox{XMin: 0, XMax: 100, YMax: 600}, 15, img, pose)
		assert.True(t, finite(est.Coordinate.Lat(), est.Coordinate.Lon()))
		assert.InDelta(t, -90, est.CameraAngle, 1e-9)
	})
}
