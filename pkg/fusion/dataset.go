package fusion

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"obstacle-detection-system/pkg/geodesy"
)

// number приймає як JSON-число, так і рядок з числом
type number struct {
	value float64
	set   bool
}

func (n *number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return malformed("non-numeric value %q", s)
		}
		n.value, n.set = v, true
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return malformed("non-numeric value %s", data)
	}
	n.value, n.set = v, true
	return nil
}

type imageSizeJSON struct {
	Width  number `json:"image_width"`
	Height number `json:"image_height"`
}

type imageSetJSON struct {
	Camera    string         `json:"camera"`
	ImageSize *imageSizeJSON `json:"imagesize"`
	Objects   []objectJSON   `json:"objects"`
}

type gpsJSON struct {
	Latitude  number `json:"latitude"`
	Longitude number `json:"longitude"`
}

type objectJSON struct {
	ObjectClass string   `json:"objectclass"`
	CategoryID  *int     `json:"category_id"`
	XMin        number   `json:"x_min"`
	XMax        number   `json:"x_max"`
	YMax        number   `json:"y_max"`
	Distance    number   `json:"distance"`
	EnteringROI *bool    `json:"entering_ROI"`
	GPS         *gpsJSON `json:"GPS_object"`
}

type aerialSetJSON struct {
	Objects []objectJSON `json:"objects"`
}

// DecodeSet декодує набір виявлень сенсора kind у форматі файлів бортових
// сенсорів і додає його до вхідних даних
func (in *Input) DecodeSet(kind SensorKind, r io.Reader) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownSensorKind, kind)
	}
	if kind.IsAerial() {
		set, err := DecodeAerialDetectionSet(r)
		if err != nil {
			return err
		}
		in.AerialSets = append(in.AerialSets, set)
		return nil
	}

	set, err := DecodeImageDetectionSet(r, kind)
	if err != nil {
		return err
	}
	in.ImageSets = append(in.ImageSets, set)
	return nil
}

// DecodeImageDetectionSet декодує набір виявлень камери. Якщо kind не порожній,
// поле camera має з ним збігатися (або бути відсутнім).
func DecodeImageDetectionSet(r io.Reader, kind SensorKind) (ImageDetectionSet, error) {
	var raw imageSetJSON
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return ImageDetectionSet{}, &DetectionError{Sensor: kind, Index: -1, Err: fmt.Errorf("%w: %v", ErrMalformedDetection, err)}
	}

	sensor := kind
	if raw.Camera != "" {
		camera, err := ParseSensorKind(raw.Camera)
		if err != nil {
			return ImageDetectionSet{}, &DetectionError{Sensor: kind, Index: -1, Err: malformed("unknown camera %q", raw.Camera)}
		}
		if kind != "" && camera != kind {
			return ImageDetectionSet{}, &DetectionError{Sensor: kind, Index: -1, Err: malformed("camera %s does not match sensor %s", camera, kind)}
		}
		sensor = camera
	}
	if sensor == "" || sensor.IsAerial() {
		return ImageDetectionSet{}, &DetectionError{Sensor: sensor, Index: -1, Err: malformed("missing camera")}
	}
	if raw.ImageSize == nil || !raw.ImageSize.Width.set || !raw.ImageSize.Height.set {
		return ImageDetectionSet{}, &DetectionError{Sensor: sensor, Index: -1, Err: malformed("missing imagesize")}
	}

	set := ImageDetectionSet{
		Sensor: sensor,
		Image: ImageSize{
			Width:  raw.ImageSize.Width.value,
			Height: raw.ImageSize.Height.value,
		},
		Objects: make([]RawDetection, 0, len(raw.Objects)),
	}
	for i, obj := range raw.Objects {
		det, err := obj.imageDetection()
		if err != nil {
			return ImageDetectionSet{}, &DetectionError{Sensor: sensor, Index: i, Err: err}
		}
		set.Objects = append(set.Objects, det)
	}
	return set, nil
}

// DecodeAerialDetectionSet декодує набір виявлень БПЛА
func DecodeAerialDetectionSet(r io.Reader) (AerialDetectionSet, error) {
	var raw aerialSetJSON
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return AerialDetectionSet{}, &DetectionError{Sensor: SensorUAV, Index: -1, Err: fmt.Errorf("%w: %v", ErrMalformedDetection, err)}
	}

	set := AerialDetectionSet{Objects: make([]RawDetection, 0, len(raw.Objects))}
	for i, obj := range raw.Objects {
		det, err := obj.aerialDetection()
		if err != nil {
			return AerialDetectionSet{}, &DetectionError{Sensor: SensorUAV, Index: i, Err: err}
		}
		set.Objects = append(set.Objects, det)
	}
	return set, nil
}

func (o objectJSON) class() (ObjectClass, error) {
	if o.ObjectClass != "" {
		return ParseObjectClass(o.ObjectClass)
	}
	if o.CategoryID != nil {
		return ObjectClassFromCategoryID(*o.CategoryID)
	}
	return "", malformed("missing objectclass")
}

func (o objectJSON) imageDetection() (RawDetection, error) {
	class, err := o.class()
	if err != nil {
		return RawDetection{}, err
	}
	if o.EnteringROI == nil {
		return RawDetection{}, malformed("missing entering_ROI")
	}
	fields := []struct {
		name string
		n    number
	}{{"x_min", o.XMin}, {"x_max", o.XMax}, {"y_max", o.YMax}, {"distance", o.Distance}}
	for _, f := range fields {
		if !f.n.set {
			return RawDetection{}, malformed("missing %s", f.name)
		}
	}
	return RawDetection{
		ObjectClass: class,
		EnteringROI: *o.EnteringROI,
		Box: BoundingBox{
			XMin: o.XMin.value,
			XMax: o.XMax.value,
			YMax: o.YMax.value,
		},
		Distance: o.Distance.value,
	}, nil
}

func (o objectJSON) aerialDetection() (RawDetection, error) {
	class, err := o.class()
	if err != nil {
		return RawDetection{}, err
	}
	if o.EnteringROI == nil {
		return RawDetection{}, malformed("missing entering_ROI")
	}
	if o.GPS == nil || !o.GPS.Latitude.set || !o.GPS.Longitude.set {
		return RawDetection{}, malformed("missing GPS_object")
	}
	gps := geodesy.Point(o.GPS.Latitude.value, o.GPS.Longitude.value)
	return RawDetection{
		ObjectClass: class,
		EnteringROI: *o.EnteringROI,
		GPS:         &gps,
	}, nil
}

// ParsePosition розбирає положення у вигляді "широта, довгота"
func ParsePosition(s string) (lat, lon float64, err error) {
	parts := strings.Split(strings.Trim(strings.TrimSpace(s), "()"), ",")
	if len(parts) != 2 {
		return 0, 0, malformed("position %q must be \"lat, lon\"", s)
	}
	lat, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, malformed("invalid latitude in %q", s)
	}
	lon, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, malformed("invalid longitude in %q", s)
	}
	return lat, lon, nil
}
