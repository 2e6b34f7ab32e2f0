package fusion

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// sensorColors кольори маркерів сенсорів на карті
var sensorColors = map[SensorKind]string{
	SensorRGB1:       "beige",
	SensorRGB4:       "green",
	SensorMonochrome: "blue",
	SensorThermal:    "red",
	SensorSWIR:       "purple",
	SensorUAV:        "lightgray",
}

const (
	vehicleColor = "black"
	fusedColor   = "orange"
)

// SensorColor повертає колір маркера сенсора
func SensorColor(kind SensorKind) string {
	if color, ok := sensorColors[kind]; ok {
		return color
	}
	return "gray"
}

// FeatureCollection будує GeoJSON-шар запуску: положення транспортного засобу,
// нормалізовані виявлення кожного сенсора та результати злиття
func (r *Report) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	for _, pos := range []struct {
		role  string
		point orb.Point
	}{{"current", r.Pose.Current}, {"previous", r.Pose.Previous}} {
		f := geojson.NewFeature(pos.point)
		f.Properties["layer"] = "vehicle"
		f.Properties["position"] = pos.role
		f.Properties["marker-color"] = vehicleColor
		fc.Append(f)
	}

	for _, det := range r.Detections {
		f := geojson.NewFeature(det.Coordinate)
		f.Properties["layer"] = "detection"
		f.Properties["sensor"] = string(det.Sensor)
		f.Properties["class"] = string(det.ObjectClass)
		f.Properties["zone"] = int(det.Zone)
		f.Properties["distance"] = det.Distance
		f.Properties["relative_bearing"] = det.RelativeBearing
		f.Properties["marker-color"] = SensorColor(det.Sensor)
		fc.Append(f)
	}

	for _, res := range r.Results {
		f := geojson.NewFeature(res.Coordinate)
		sensors := make([]string, len(res.Sensors))
		for i, s := range res.Sensors {
			sensors[i] = string(s)
		}
		f.Properties["layer"] = "fused"
		f.Properties["class"] = string(res.ObjectClass)
		f.Properties["zone"] = int(res.Zone)
		f.Properties["members"] = res.Members
		f.Properties["sensors"] = sensors
		f.Properties["marker-color"] = fusedColor
		fc.Append(f)
	}

	return fc
}
