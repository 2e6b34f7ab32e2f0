package fusion

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/paulmach/orb"

	"obstacle-detection-system/pkg/geodesy"
)

// SensorKind ідентифікує бортовий сенсор, що надіслав виявлення
type SensorKind string

const (
	SensorRGB1       SensorKind = "RGB1"
	SensorRGB4       SensorKind = "RGB4"
	SensorMonochrome SensorKind = "Monochrome"
	SensorThermal    SensorKind = "Thermal"
	SensorSWIR       SensorKind = "SWIR"
	SensorUAV        SensorKind = "UAV"
)

// SensorKinds перелічує всі відомі сенсори: спершу п'ять камер, потім БПЛА
var SensorKinds = []SensorKind{
	SensorRGB1,
	SensorRGB4,
	SensorMonochrome,
	SensorThermal,
	SensorSWIR,
	SensorUAV,
}

// ParseSensorKind перетворює назву сенсора (без урахування регістру) на SensorKind
func ParseSensorKind(s string) (SensorKind, error) {
	for _, kind := range SensorKinds {
		if strings.EqualFold(string(kind), strings.TrimSpace(s)) {
			return kind, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSensorKind, s)
}

// Valid повідомляє, чи належить сенсор до відомого переліку
func (k SensorKind) Valid() bool {
	for _, kind := range SensorKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// IsAerial повідомляє, чи є сенсор повітряним (координати надходять напряму з GPS)
func (k SensorKind) IsAerial() bool {
	return k == SensorUAV
}

// VehiclePose містить поточне та попереднє положення транспортного засобу
type VehiclePose struct {
	Current  orb.Point
	Previous orb.Point
}

// Heading повертає курс руху як азимут від попереднього до поточного положення
func (p VehiclePose) Heading() float64 {
	return geodesy.Bearing(p.Previous, p.Current)
}

// BoundingBox описує межі рамки виявлення в координатах зображення
type BoundingBox struct {
	XMin float64
	XMax float64
	YMax float64
}

// ImageSize розміри кадру сенсора в пікселях
type ImageSize struct {
	Width  float64
	Height float64
}

// RawDetection сире виявлення від одного сенсора.
// Камери заповнюють Box та Distance, БПЛА заповнює GPS.
type RawDetection struct {
	ObjectClass ObjectClass
	EnteringROI bool
	Box         BoundingBox
	Distance    float64
	GPS         *orb.Point
}

// ImageDetectionSet набір виявлень однієї камери
type ImageDetectionSet struct {
	Sensor  SensorKind
	Image   ImageSize
	Objects []RawDetection
}

// AerialDetectionSet набір виявлень БПЛА з прямими GPS-координатами
type AerialDetectionSet struct {
	Objects []RawDetection
}

// Input вхідні дані одного запуску злиття
type Input struct {
	Pose       VehiclePose
	ImageSets  []ImageDetectionSet
	AerialSets []AerialDetectionSet
}

// NormalizedDetection виявлення, приведене до спільного вигляду
type NormalizedDetection struct {
	Sensor          SensorKind
	ObjectClass     ObjectClass
	Coordinate      orb.Point
	Distance        float64
	RelativeBearing float64
	Zone            Zone
}

// FusedDetection результат злиття: клас об'єкта та його координата.
// У JSON подається як {"<клас>": [широта, довгота]}.
type FusedDetection struct {
	ObjectClass ObjectClass
	Coordinate  orb.Point
	Zone        Zone
	Sensors     []SensorKind
	Members     int
}

// Lat широта результату
func (f FusedDetection) Lat() float64 { return f.Coordinate.Lat() }

// Lon довгота результату
func (f FusedDetection) Lon() float64 { return f.Coordinate.Lon() }

func (f FusedDetection) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[ObjectClass][2]float64{
		f.ObjectClass: {f.Coordinate.Lat(), f.Coordinate.Lon()},
	})
}

func (f *FusedDetection) UnmarshalJSON(data []byte) error {
	var record map[string][2]float64
	if err := json.Unmarshal(data, &record); err != nil {
		return err
	}
	if len(record) != 1 {
		return fmt.Errorf("fused detection record must hold exactly one class, got %d", len(record))
	}
	for name, coord := range record {
		class, err := ParseObjectClass(name)
		if err != nil {
			return err
		}
		*f = FusedDetection{
			ObjectClass: class,
			Coordinate:  geodesy.Point(coord[0], coord[1]),
		}
	}
	return nil
}
