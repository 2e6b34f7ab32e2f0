package fusion

import (
	"math"

	"github.com/paulmach/orb"

	"obstacle-detection-system/pkg/geodesy"
)

// Estimate результат оцінки положення об'єкта за даними зображення
type Estimate struct {
	Coordinate  orb.Point
	CameraAngle float64
	Heading     float64
	Bearing     float64
}

// CameraAngle обчислює кут до об'єкта відносно лінії візування камери.
// x зміщення від центру кадру, y відстань від нижнього краю кадру.
// При y == 0 кут насичується до ±90°, а при x == 0 дорівнює 0.
func CameraAngle(x, y float64) float64 {
	if y == 0 {
		switch {
		case x > 0:
			return 90
		case x < 0:
			return -90
		default:
			return 0
		}
	}
	return math.Atan(x/y) * 180 / math.Pi
}

// EstimateCoordinate перетворює рамку виявлення та дальність на абсолютну
// координату з урахуванням курсу транспортного засобу
func EstimateCoordinate(box BoundingBox, rangeMeters float64, img ImageSize, pose VehiclePose) Estimate {
	x := (box.XMin+box.XMax)/2 - img.Width/2
	y := img.Height - box.YMax

	angle := CameraAngle(x, y)
	heading := pose.Heading()
	bearing := angle + heading

	return Estimate{
		Coordinate:  geodesy.Destination(pose.Current, rangeMeters, bearing),
		CameraAngle: angle,
		Heading:     heading,
		Bearing:     bearing,
	}
}
