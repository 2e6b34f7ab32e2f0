package domain

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"obstacle-detection-system/pkg/fusion"
	"obstacle-detection-system/pkg/geodesy"
)

// Enums для статусів
type SensorUnitStatus string
type FusionRunStatus string

const (
	// Статуси сенсорних блоків
	SensorUnitStatusActive      SensorUnitStatus = "active"
	SensorUnitStatusInactive    SensorUnitStatus = "inactive"
	SensorUnitStatusMaintenance SensorUnitStatus = "maintenance"

	// Статуси запусків злиття
	FusionRunStatusRunning   FusionRunStatus = "running"
	FusionRunStatusCompleted FusionRunStatus = "completed"
	FusionRunStatusFailed    FusionRunStatus = "failed"
)

// Valid повідомляє, чи є статус одним з відомих
func (s SensorUnitStatus) Valid() bool {
	switch s {
	case SensorUnitStatusActive, SensorUnitStatusInactive, SensorUnitStatusMaintenance:
		return true
	}
	return false
}

var (
	ErrSensorUnitNotFound  = errors.New("sensor unit not found")
	ErrDuplicateSerial     = errors.New("sensor unit with this serial number already exists")
	ErrFusionRunNotFound   = errors.New("fusion run not found")
	ErrFusedObjectNotFound = errors.New("fused object not found")
	ErrObjectNotFound      = errors.New("object not found")
)

// SensorUnit представляє бортовий сенсор, зареєстрований у системі
type SensorUnit struct {
	ID               uuid.UUID         `json:"id"`
	Kind             fusion.SensorKind `json:"kind"`
	SerialNumber     string            `json:"serial_number"`
	Configuration    json.RawMessage   `json:"configuration,omitempty"`
	Status           SensorUnitStatus  `json:"status"`
	CreatedAt        time.Time         `json:"created_at"`
	LastConnectionAt time.Time         `json:"last_connection_at"`
}

// SensorUnitFilter умови відбору сенсорних блоків; порожні поля не враховуються
type SensorUnitFilter struct {
	Kind         fusion.SensorKind
	SerialNumber string
	Status       SensorUnitStatus
}

// Matches перевіряє блок на відповідність фільтру
func (f SensorUnitFilter) Matches(unit *SensorUnit) bool {
	if f.Kind != "" && unit.Kind != f.Kind {
		return false
	}
	if f.SerialNumber != "" && unit.SerialNumber != f.SerialNumber {
		return false
	}
	if f.Status != "" && unit.Status != f.Status {
		return false
	}
	return true
}

// Position географічне положення в десяткових градусах
type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// PositionFromPose повертає поточне та попереднє положення транспортного засобу
func PositionFromPose(pose fusion.VehiclePose) (current, previous Position) {
	return Position{Latitude: pose.Current.Lat(), Longitude: pose.Current.Lon()},
		Position{Latitude: pose.Previous.Lat(), Longitude: pose.Previous.Lon()}
}

// FusionRun представляє один запуск злиття виявлень
type FusionRun struct {
	ID                uuid.UUID       `json:"id"`
	Status            FusionRunStatus `json:"status"`
	VehicleCurrent    Position        `json:"vehicle_current"`
	VehiclePrevious   Position        `json:"vehicle_previous"`
	DistanceThreshold float64         `json:"distance_threshold"`
	AngleThreshold    float64         `json:"angle_threshold"`
	DetectionCount    int             `json:"detection_count"`
	ResultCount       int             `json:"result_count"`
	ResultKey         string          `json:"result_key,omitempty"`
	Error             string          `json:"error,omitempty"`
	StartedAt         time.Time       `json:"started_at"`
	FinishedAt        *time.Time      `json:"finished_at"`
}

// Pose відновлює положення транспортного засобу запуску
func (r *FusionRun) Pose() fusion.VehiclePose {
	return fusion.VehiclePose{
		Current:  geodesy.Point(r.VehicleCurrent.Latitude, r.VehicleCurrent.Longitude),
		Previous: geodesy.Point(r.VehiclePrevious.Latitude, r.VehiclePrevious.Longitude),
	}
}

// FusedObject представляє результат злиття, збережений для запуску
type FusedObject struct {
	ID          uuid.UUID `json:"id"`
	RunID       uuid.UUID `json:"run_id"`
	Seq         int       `json:"seq"`
	ObjectClass string    `json:"object_class"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Zone        int       `json:"zone"`
	MemberCount int       `json:"member_count"`
	Sensors     []string  `json:"sensors"`
}

// NewFusedObject перетворює результат злиття на запис
func NewFusedObject(runID uuid.UUID, seq int, det fusion.FusedDetection) *FusedObject {
	sensors := make([]string, len(det.Sensors))
	for i, s := range det.Sensors {
		sensors[i] = string(s)
	}
	return &FusedObject{
		ID:          uuid.New(),
		RunID:       runID,
		Seq:         seq,
		ObjectClass: string(det.ObjectClass),
		Latitude:    det.Lat(),
		Longitude:   det.Lon(),
		Zone:        int(det.Zone),
		MemberCount: det.Members,
		Sensors:     sensors,
	}
}

// FusedDetection відновлює результат злиття із запису
func (o *FusedObject) FusedDetection() fusion.FusedDetection {
	sensors := make([]fusion.SensorKind, len(o.Sensors))
	for i, s := range o.Sensors {
		sensors[i] = fusion.SensorKind(s)
	}
	return fusion.FusedDetection{
		ObjectClass: fusion.ObjectClass(o.ObjectClass),
		Coordinate:  geodesy.Point(o.Latitude, o.Longitude),
		Zone:        fusion.Zone(o.Zone),
		Sensors:     sensors,
		Members:     o.MemberCount,
	}
}

// DetectionRecord нормалізоване виявлення, що брало участь у запуску
type DetectionRecord struct {
	ID              uuid.UUID `json:"id"`
	RunID           uuid.UUID `json:"run_id"`
	Seq             int       `json:"seq"`
	Sensor          string    `json:"sensor"`
	ObjectClass     string    `json:"object_class"`
	Latitude        float64   `json:"latitude"`
	Longitude       float64   `json:"longitude"`
	Distance        float64   `json:"distance"`
	RelativeBearing float64   `json:"relative_bearing"`
	Zone            int       `json:"zone"`
}

// NewDetectionRecord перетворює нормалізоване виявлення на запис
func NewDetectionRecord(runID uuid.UUID, seq int, det fusion.NormalizedDetection) *DetectionRecord {
	return &DetectionRecord{
		ID:              uuid.New(),
		RunID:           runID,
		Seq:             seq,
		Sensor:          string(det.Sensor),
		ObjectClass:     string(det.ObjectClass),
		Latitude:        det.Coordinate.Lat(),
		Longitude:       det.Coordinate.Lon(),
		Distance:        det.Distance,
		RelativeBearing: det.RelativeBearing,
		Zone:            int(det.Zone),
	}
}

// NormalizedDetection відновлює нормалізоване виявлення із запису
func (d *DetectionRecord) NormalizedDetection() fusion.NormalizedDetection {
	return fusion.NormalizedDetection{
		Sensor:          fusion.SensorKind(d.Sensor),
		ObjectClass:     fusion.ObjectClass(d.ObjectClass),
		Coordinate:      geodesy.Point(d.Latitude, d.Longitude),
		Distance:        d.Distance,
		RelativeBearing: d.RelativeBearing,
		Zone:            fusion.Zone(d.Zone),
	}
}
