package fusion

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedDetection = errors.New("malformed detection")
	ErrUnknownObjectClass = errors.New("unknown object class")
	ErrUnknownSensorKind  = errors.New("unknown sensor kind")
	ErrInvalidConfig      = errors.New("invalid fusion config")
)

// DetectionError вказує на виявлення, через яке запуск було перервано
type DetectionError struct {
	Sensor SensorKind
	Index  int
	Err    error
}

func (e *DetectionError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s detection set: %v", e.Sensor, e.Err)
	}
	return fmt.Sprintf("%s detection %d: %v", e.Sensor, e.Index, e.Err)
}

func (e *DetectionError) Unwrap() error {
	return e.Err
}

func malformed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMalformedDetection, fmt.Sprintf(format, args...))
}
