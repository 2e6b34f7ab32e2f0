package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"obstacle-detection-system/internal/domain"
	"obstacle-detection-system/internal/infrastructure/migrations"
	"obstacle-detection-system/internal/ports"
	"obstacle-detection-system/pkg/fusion"
	"obstacle-detection-system/pkg/geodesy"
)

type archive struct {
	runs       ports.FusionRunRepository
	objects    ports.FusedObjectRepository
	detections ports.DetectionRepository
}

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migrations.Up(db, migrations.SQLite, nil))
	return db
}

func archives(t *testing.T) map[string]archive {
	db := openSQLite(t)
	return map[string]archive{
		"memory": {
			runs:       NewMemoryFusionRunRepository(),
			objects:    NewMemoryFusedObjectRepository(),
			detections: NewMemoryDetectionRepository(),
		},
		"sqlite": {
			runs:       NewSQLiteFusionRunRepository(db),
			objects:    NewSQLiteFusedObjectRepository(db),
			detections: NewSQLiteDetectionRepository(db),
		},
	}
}

func newRun(startedAt time.Time) *domain.FusionRun {
	return &domain.FusionRun{
		ID:                uuid.New(),
		Status:            domain.FusionRunStatusRunning,
		VehicleCurrent:    domain.Position{Latitude: 50.4501, Longitude: 30.5234},
		VehiclePrevious:   domain.Position{Latitude: 50.4491, Longitude: 30.5234},
		DistanceThreshold: 20,
		AngleThreshold:    20,
		StartedAt:         startedAt.UTC().Truncate(time.Millisecond),
	}
}

func TestFusionRunRepositories(t *testing.T) {
	ctx := context.Background()
	for name, a := range archives(t) {
		t.Run(name, func(t *testing.T) {
			base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
			older, newer := newRun(base), newRun(base.Add(time.Minute))
			require.NoError(t, a.runs.Save(ctx, older))
			require.NoError(t, a.runs.Save(ctx, newer))

			finished := base.Add(2 * time.Minute)
			newer.Status = domain.FusionRunStatusCompleted
			newer.DetectionCount = 4
			newer.ResultCount = 2
			newer.ResultKey = "results/" + newer.ID.String() + ".json"
			newer.FinishedAt = &finished
			require.NoError(t, a.runs.Update(ctx, newer))

			got, err := a.runs.FindByID(ctx, newer.ID)
			require.NoError(t, err)
			require.NotNil(t, got.FinishedAt)
			assert.True(t, finished.Equal(*got.FinishedAt))
			got.FinishedAt = newer.FinishedAt
			assert.True(t, newer.StartedAt.Equal(got.StartedAt))
			got.StartedAt = newer.StartedAt
			assert.Empty(t, cmp.Diff(newer, got))

			recent, err := a.runs.FindRecent(ctx, 1)
			require.NoError(t, err)
			require.Len(t, recent, 1)
			assert.Equal(t, newer.ID, recent[0].ID)

			_, err = a.runs.FindByID(ctx, uuid.New())
			assert.ErrorIs(t, err, domain.ErrFusionRunNotFound)
			assert.ErrorIs(t, a.runs.Update(ctx, newRun(base)), domain.ErrFusionRunNotFound)
		})
	}
}

func TestFusedObjectRepositories(t *testing.T) {
	ctx := context.Background()
	for name, a := range archives(t) {
		t.Run(name, func(t *testing.T) {
			run := newRun(time.Now())
			require.NoError(t, a.runs.Save(ctx, run))

			center := geodesy.Point(50.4501, 30.5234)
			near := geodesy.Destination(center, 30, 45)
			far := geodesy.Destination(center, 500, 180)

			objects := []*domain.FusedObject{
				domain.NewFusedObject(run.ID, 0, fusion.FusedDetection{
					ObjectClass: fusion.ClassCar, Coordinate: near, Zone: 1,
					Sensors: []fusion.SensorKind{fusion.SensorRGB1, fusion.SensorUAV}, Members: 2,
				}),
				domain.NewFusedObject(run.ID, 1, fusion.FusedDetection{
					ObjectClass: fusion.ClassRock, Coordinate: far, Zone: 7,
					Sensors: []fusion.SensorKind{fusion.SensorSWIR}, Members: 1,
				}),
			}
			require.NoError(t, a.objects.SaveBatch(ctx, objects))

			got, err := a.objects.FindByRunID(ctx, run.ID)
			require.NoError(t, err)
			assert.Empty(t, cmp.Diff(objects, got))

			found, err := a.objects.FindByLocation(ctx, center.Lat(), center.Lon(), 100)
			require.NoError(t, err)
			require.Len(t, found, 1)
			assert.Equal(t, "car", found[0].ObjectClass)
			assert.Equal(t, []string{"RGB1", "UAV"}, found[0].Sensors)

			none, err := a.objects.FindByRunID(ctx, uuid.New())
			require.NoError(t, err)
			assert.Empty(t, none)

			other := newRun(time.Now())
			require.NoError(t, a.runs.Save(ctx, other))
			require.NoError(t, a.objects.SaveBatch(ctx, []*domain.FusedObject{
				domain.NewFusedObject(other.ID, 0, fusion.FusedDetection{
					ObjectClass: fusion.ClassDog, Coordinate: near, Zone: 1,
					Sensors: []fusion.SensorKind{fusion.SensorThermal}, Members: 1,
				}),
			}))

			require.NoError(t, a.objects.DeleteByRunID(ctx, run.ID))
			got, err = a.objects.FindByRunID(ctx, run.ID)
			require.NoError(t, err)
			assert.Empty(t, got)
			kept, err := a.objects.FindByRunID(ctx, other.ID)
			require.NoError(t, err)
			assert.Len(t, kept, 1)
		})
	}
}

func TestDetectionRepositories(t *testing.T) {
	ctx := context.Background()
	for name, a := range archives(t) {
		t.Run(name, func(t *testing.T) {
			run := newRun(time.Now())
			require.NoError(t, a.runs.Save(ctx, run))

			records := []*domain.DetectionRecord{
				domain.NewDetectionRecord(run.ID, 1, fusion.NormalizedDetection{
					Sensor: fusion.SensorThermal, ObjectClass: fusion.ClassPerson,
					Coordinate: geodesy.Point(50.451, 30.524), Distance: 120, RelativeBearing: -3, Zone: 3,
				}),
				domain.NewDetectionRecord(run.ID, 0, fusion.NormalizedDetection{
					Sensor: fusion.SensorRGB1, ObjectClass: fusion.ClassDog,
					Coordinate: geodesy.Point(50.4502, 30.5235), Distance: 12, RelativeBearing: 8, Zone: 1,
				}),
			}
			require.NoError(t, a.detections.SaveBatch(ctx, records))

			got, err := a.detections.FindByRunID(ctx, run.ID)
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Empty(t, cmp.Diff(records[1], got[0]))
			assert.Equal(t, fusion.SensorThermal, got[1].NormalizedDetection().Sensor)

			require.NoError(t, a.detections.DeleteByRunID(ctx, run.ID))
			got, err = a.detections.FindByRunID(ctx, run.ID)
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestMemorySensorUnitRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySensorUnitRepository()

	unit := &domain.SensorUnit{
		ID:            uuid.New(),
		Kind:          fusion.SensorThermal,
		SerialNumber:  "TH-001",
		Configuration: json.RawMessage(`{"fov":50}`),
		Status:        domain.SensorUnitStatusInactive,
		CreatedAt:     time.Now(),
	}
	require.NoError(t, repo.Save(ctx, unit))

	dup := *unit
	dup.ID = uuid.New()
	assert.ErrorIs(t, repo.Save(ctx, &dup), domain.ErrDuplicateSerial)

	other := &domain.SensorUnit{ID: uuid.New(), Kind: fusion.SensorUAV, SerialNumber: "UAV-7", Status: domain.SensorUnitStatusActive}
	require.NoError(t, repo.Save(ctx, other))

	all, err := repo.FindAll(ctx, domain.SensorUnitFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, unit.ID, all[0].ID)

	thermal, err := repo.FindAll(ctx, domain.SensorUnitFilter{Kind: fusion.SensorThermal})
	require.NoError(t, err)
	require.Len(t, thermal, 1)

	unit.Status = domain.SensorUnitStatusActive
	require.NoError(t, repo.Update(ctx, unit))
	active, err := repo.FindAll(ctx, domain.SensorUnitFilter{Status: domain.SensorUnitStatusActive})
	require.NoError(t, err)
	assert.Len(t, active, 2)

	require.NoError(t, repo.Delete(ctx, other.ID))
	_, err = repo.FindByID(ctx, other.ID)
	assert.ErrorIs(t, err, domain.ErrSensorUnitNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, other.ID), domain.ErrSensorUnitNotFound)
}

func TestPostgresLocationQueryUsesIndex(t *testing.T) {
	schema, err := os.ReadFile("../migrations/postgres/000001_init.up.sql")
	require.NoError(t, err)

	// запит має містити той самий вираз, що й індекс, інакше GIST не використовується
	assert.Contains(t, string(schema), "fused_objects USING GIST (("+fusedObjectLocation+"))")
	assert.Contains(t, findByLocationQuery, "ST_DWithin("+fusedObjectLocation+",")
	assert.Equal(t, 1, strings.Count(findByLocationQuery, "ST_DistanceSphere("))
	assert.Greater(t, locationSlack, 1.0)
}
