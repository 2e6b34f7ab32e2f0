package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"obstacle-detection-system/internal/application"
	"obstacle-detection-system/internal/domain"
	"obstacle-detection-system/internal/infrastructure/repositories"
	"obstacle-detection-system/internal/infrastructure/storage"
)

const (
	vehicleJSON = `{"current":{"latitude":50.4501,"longitude":30.5234},"previous":{"latitude":50.4491,"longitude":30.5234}}`

	rgbSet = `{"camera":"RGB1","imagesize":{"image_width":1280,"image_height":720},"objects":[
		{"objectclass":"person","x_min":600,"x_max":680,"y_max":500,"distance":40,"entering_ROI":true}]}`
	thermalSet = `{"camera":"Thermal","imagesize":{"image_width":1280,"image_height":720},"objects":[
		{"objectclass":"person","x_min":600,"x_max":680,"y_max":500,"distance":"40","entering_ROI":true}]}`
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	store := storage.NewMemoryStorage()
	sets := application.NewDetectionSetService(store, nil)
	units := application.NewSensorUnitService(repositories.NewMemorySensorUnitRepository(), nil)
	fusionService := application.NewFusionService(
		repositories.NewMemoryFusionRunRepository(),
		repositories.NewMemoryFusedObjectRepository(),
		repositories.NewMemoryDetectionRepository(),
		application.WithResultStorage(store),
		application.WithDetectionSets(sets),
	)

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		NewSensorHandler(units, nil).RegisterRoutes(r)
		NewDetectionSetHandler(sets, nil).RegisterRoutes(r)
		NewFusionHandler(fusionService, nil).RegisterRoutes(r)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, body string) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, rd)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestSensorRoutes(t *testing.T) {
	srv := newTestServer(t)
	base := srv.URL + "/api/v1/sensors"

	resp, body := do(t, http.MethodPost, base, `{"kind":"swir","serial_number":"SW-1","configuration":{"gain":2}}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var unit domain.SensorUnit
	require.NoError(t, json.Unmarshal(body, &unit))
	assert.Equal(t, "SWIR", string(unit.Kind))

	resp, _ = do(t, http.MethodPost, base, `{"kind":"swir","serial_number":"SW-1"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, base, `{"kind":"radar","serial_number":"RD-1"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = do(t, http.MethodGet, base+"/"+unit.ID.String(), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "SW-1")

	resp, _ = do(t, http.MethodPut, base+"/"+unit.ID.String()+"/status", `{"status":"maintenance"}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = do(t, http.MethodPut, base+"/"+unit.ID.String()+"/config", `{"gain":4}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = do(t, http.MethodGet, base+"?status=maintenance", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var units []domain.SensorUnit
	require.NoError(t, json.Unmarshal(body, &units))
	require.Len(t, units, 1)
	assert.JSONEq(t, `{"gain":4}`, string(units[0].Configuration))

	resp, _ = do(t, http.MethodGet, base+"/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, base+"/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDetectionSetRoutes(t *testing.T) {
	srv := newTestServer(t)
	base := srv.URL + "/api/v1/detection-sets"

	resp, body := do(t, http.MethodPost, base+"?type=RGB1", rgbSet)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var uploaded map[string]string
	require.NoError(t, json.Unmarshal(body, &uploaded))
	key := uploaded["object_key"]
	assert.True(t, strings.HasPrefix(key, "detection-sets/RGB1/"))

	resp, _ = do(t, http.MethodPost, base, rgbSet)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, base+"?type=RGB1", `{"camera":"RGB1","objects":[]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = do(t, http.MethodGet, base+"?type=rgb1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var keys []string
	require.NoError(t, json.Unmarshal(body, &keys))
	assert.Equal(t, []string{key}, keys)

	resp, body = do(t, http.MethodGet, srv.URL+"/api/v1/"+key, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, rgbSet, string(body))

	resp, _ = do(t, http.MethodGet, base+"/RGB1/absent.json", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFusionRoutes(t *testing.T) {
	srv := newTestServer(t)
	base := srv.URL + "/api/v1/fusion"

	payload := fmt.Sprintf(`{"vehicle":%s,"image_sets":[%s,%s],"aerial_sets":[{"objects":[]}]}`, vehicleJSON, rgbSet, thermalSet)
	resp, body := do(t, http.MethodPost, base+"/runs", payload)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var created struct {
		Run     domain.FusionRun  `json:"run"`
		Results []json.RawMessage `json:"results"`
	}
	require.NoError(t, json.Unmarshal(body, &created))
	assert.Equal(t, domain.FusionRunStatusCompleted, created.Run.Status)
	require.Len(t, created.Results, 1)
	assert.Contains(t, string(created.Results[0]), `"person"`)
	runURL := base + "/runs/" + created.Run.ID.String()

	resp, body = do(t, http.MethodGet, runURL, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), created.Run.ID.String())

	resp, body = do(t, http.MethodGet, runURL+"/results", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var results []map[string][2]float64
	require.NoError(t, json.Unmarshal(body, &results))
	require.Len(t, results, 1)
	coord := results[0]["person"]
	assert.InDelta(t, 50.4501, coord[0], 0.001)

	resp, body = do(t, http.MethodGet, runURL+"/map", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	fc, err := geojson.UnmarshalFeatureCollection(body)
	require.NoError(t, err)
	assert.Len(t, fc.Features, 5)

	resp, body = do(t, http.MethodGet, base+"/runs?limit=10", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var runs []domain.FusionRun
	require.NoError(t, json.Unmarshal(body, &runs))
	assert.Len(t, runs, 1)

	resp, body = do(t, http.MethodGet, fmt.Sprintf("%s/objects?lat=%f&lon=%f&radius=25", base, coord[0], coord[1]), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var objects []domain.FusedObject
	require.NoError(t, json.Unmarshal(body, &objects))
	assert.Len(t, objects, 1)

	resp, _ = do(t, http.MethodGet, base+"/objects?lat=95&lon=0", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, base+"/runs/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFusionRouteErrors(t *testing.T) {
	srv := newTestServer(t)
	base := srv.URL + "/api/v1/fusion/runs"

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"bad json", `{"vehicle":`, http.StatusBadRequest},
		{"unknown class", fmt.Sprintf(`{"vehicle":%s,"image_sets":[%s]}`, vehicleJSON, strings.Replace(rgbSet, "person", "ghost", 1)), http.StatusBadRequest},
		{"missing camera", fmt.Sprintf(`{"vehicle":%s,"image_sets":[{"imagesize":{"image_width":1,"image_height":1},"objects":[]}]}`, vehicleJSON), http.StatusBadRequest},
		{"invalid config", fmt.Sprintf(`{"vehicle":%s,"config":{"angle_threshold":-5}}`, vehicleJSON), http.StatusBadRequest},
		{"invalid vehicle", `{"vehicle":{"current":{"latitude":120,"longitude":0},"previous":{"latitude":0,"longitude":0}}}`, http.StatusBadRequest},
		{"empty input", fmt.Sprintf(`{"vehicle":%s}`, vehicleJSON), http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, http.MethodPost, base, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode, string(body))
		})
	}
}

func TestFusionFromStorageRoute(t *testing.T) {
	srv := newTestServer(t)

	var keys []string
	for kind, set := range map[string]string{"RGB1": rgbSet, "Thermal": thermalSet} {
		resp, body := do(t, http.MethodPost, srv.URL+"/api/v1/detection-sets?type="+kind, set)
		require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
		var uploaded map[string]string
		require.NoError(t, json.Unmarshal(body, &uploaded))
		keys = append(keys, uploaded["object_key"])
	}

	keysJSON, err := json.Marshal(keys)
	require.NoError(t, err)
	payload := fmt.Sprintf(`{"vehicle":%s,"object_keys":%s,"config":{"distance_threshold":5}}`, vehicleJSON, keysJSON)

	resp, body := do(t, http.MethodPost, srv.URL+"/api/v1/fusion/runs/from-storage", payload)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var created RunResponse
	require.NoError(t, json.Unmarshal(body, &created))
	assert.Equal(t, 5.0, created.Run.DistanceThreshold)
	assert.Len(t, created.Results, 1)

	resp, _ = do(t, http.MethodPost, srv.URL+"/api/v1/fusion/runs/from-storage", fmt.Sprintf(`{"vehicle":%s}`, vehicleJSON))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestFusionRequestBodyLimit(t *testing.T) {
	fusionService := application.NewFusionService(
		repositories.NewMemoryFusionRunRepository(),
		repositories.NewMemoryFusedObjectRepository(),
		repositories.NewMemoryDetectionRepository(),
	)
	h := NewFusionHandler(fusionService, nil)
	h.maxRunBody = 1 << 10
	h.maxStorageRunBody = 1 << 10

	r := chi.NewRouter()
	h.RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	padding := strings.Repeat(" ", 2<<10)
	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"run within limit", "/fusion/runs", `{"vehicle":` + vehicleJSON + `,"image_sets":[` + rgbSet + `]}`, http.StatusCreated},
		{"run too large", "/fusion/runs", `{"vehicle":` + vehicleJSON + `,` + padding + `"image_sets":[` + rgbSet + `]}`, http.StatusRequestEntityTooLarge},
		{"from storage too large", "/fusion/runs/from-storage", `{"vehicle":` + vehicleJSON + `,"object_keys":["` + strings.Repeat("a", 2<<10) + `"]}`, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, http.MethodPost, srv.URL+tt.path, tt.body)
			assert.Equal(t, tt.want, resp.StatusCode, string(body))
		})
	}
}
