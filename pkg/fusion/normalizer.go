package fusion

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"

	"obstacle-detection-system/pkg/geodesy"
)

// Normalize приводить набори виявлень усіх сенсорів до спільного вигляду.
// До результату потрапляють лише виявлення з прапорцем входу в зону інтересу.
// Будь-яке пошкоджене виявлення перериває нормалізацію.
func Normalize(in Input) ([]NormalizedDetection, error) {
	if err := validatePose(in.Pose); err != nil {
		return nil, err
	}

	var result []NormalizedDetection
	for _, set := range in.ImageSets {
		dets, err := normalizeImageSet(set, in.Pose)
		if err != nil {
			return nil, err
		}
		result = append(result, dets...)
	}

	for _, set := range in.AerialSets {
		dets, err := normalizeAerialSet(set, in.Pose)
		if err != nil {
			return nil, err
		}
		result = append(result, dets...)
	}

	return result, nil
}

func normalizeImageSet(set ImageDetectionSet, pose VehiclePose) ([]NormalizedDetection, error) {
	if !set.Sensor.Valid() || set.Sensor.IsAerial() {
		return nil, &DetectionError{Sensor: set.Sensor, Index: -1, Err: malformed("sensor %q is not an image sensor", set.Sensor)}
	}
	if !finite(set.Image.Width, set.Image.Height) || set.Image.Width <= 0 || set.Image.Height <= 0 {
		return nil, &DetectionError{Sensor: set.Sensor, Index: -1, Err: malformed("invalid image size %vx%v", set.Image.Width, set.Image.Height)}
	}

	var result []NormalizedDetection
	for i, det := range set.Objects {
		if err := validateImageDetection(det); err != nil {
			return nil, &DetectionError{Sensor: set.Sensor, Index: i, Err: err}
		}
		if !det.EnteringROI {
			continue
		}

		est := EstimateCoordinate(det.Box, det.Distance, set.Image, pose)
		result = append(result, NormalizedDetection{
			Sensor:          set.Sensor,
			ObjectClass:     det.ObjectClass,
			Coordinate:      est.Coordinate,
			Distance:        det.Distance,
			RelativeBearing: geodesy.RelativeBearing(geodesy.Bearing(pose.Current, est.Coordinate)),
		})
	}
	return result, nil
}

func normalizeAerialSet(set AerialDetectionSet, pose VehiclePose) ([]NormalizedDetection, error) {
	var result []NormalizedDetection
	for i, det := range set.Objects {
		if err := validateAerialDetection(det); err != nil {
			return nil, &DetectionError{Sensor: SensorUAV, Index: i, Err: err}
		}
		if !det.EnteringROI {
			continue
		}

		coord := *det.GPS
		result = append(result, NormalizedDetection{
			Sensor:          SensorUAV,
			ObjectClass:     det.ObjectClass,
			Coordinate:      coord,
			Distance:        geodesy.Distance(pose.Current, coord),
			RelativeBearing: geodesy.RelativeBearing(geodesy.Bearing(pose.Current, coord)),
		})
	}
	return result, nil
}

func validateImageDetection(det RawDetection) error {
	if !det.ObjectClass.Valid() {
		return unknownClass(det.ObjectClass)
	}
	if !finite(det.Box.XMin, det.Box.XMax, det.Box.YMax) {
		return malformed("non-numeric bounding box")
	}
	if !finite(det.Distance) || det.Distance < 0 {
		return malformed("invalid distance %v", det.Distance)
	}
	return nil
}

func validateAerialDetection(det RawDetection) error {
	if !det.ObjectClass.Valid() {
		return unknownClass(det.ObjectClass)
	}
	if det.GPS == nil {
		return malformed("missing GPS fix")
	}
	return validatePoint(*det.GPS)
}

func validatePose(pose VehiclePose) error {
	if err := validatePoint(pose.Current); err != nil {
		return &DetectionError{Sensor: "vehicle", Index: -1, Err: err}
	}
	if err := validatePoint(pose.Previous); err != nil {
		return &DetectionError{Sensor: "vehicle", Index: -1, Err: err}
	}
	return nil
}

func validatePoint(p orb.Point) error {
	if !finite(p.Lat(), p.Lon()) {
		return malformed("non-numeric coordinate")
	}
	if p.Lat() < -90 || p.Lat() > 90 || p.Lon() < -180 || p.Lon() > 180 {
		return malformed("coordinate (%v, %v) out of range", p.Lat(), p.Lon())
	}
	return nil
}

func unknownClass(class ObjectClass) error {
	return fmt.Errorf("%w: %q", ErrUnknownObjectClass, class)
}

func finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
