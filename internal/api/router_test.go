package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voltwatch/backend/internal/api/controllers"
	"github.com/voltwatch/backend/internal/db/models"
	"github.com/voltwatch/backend/internal/services"
	"github.com/voltwatch/backend/internal/testutil"
	"github.com/voltwatch/backend/internal/timeframe"
)

type apiSetup struct {
	*testutil.TestSetup
	provider *services.ServiceProvider
	relay    *httptest.Server
}

func newAPISetup(t *testing.T) *apiSetup {
	ts := testutil.NewTestSetup(t)
	t.Cleanup(ts.Cleanup)

	relay := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(relay.Close)

	provider := services.NewServiceProvider(ts.Logger, ts.Config, ts.DB)
	require.NoError(t, provider.Initialize(context.Background()))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	router := NewRouter(ts.Config, ts.Logger, ts.DB, provider)
	router.SetupRoutes()
	ts.Router = router.GetEngine()

	return &apiSetup{TestSetup: ts, provider: provider, relay: relay}
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func (s *apiSetup) register(t *testing.T, username string) controllers.TokenResponse {
	resp := s.ExecuteRequest(http.MethodPost, "/api/auth/register", controllers.RegisterRequest{
		Username: username,
		Password: "long-enough-password",
	}, nil)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	var token controllers.TokenResponse
	s.ParseResponse(resp, &token)
	return token
}

func (s *apiSetup) createDevice(t *testing.T, token, name string) controllers.CreateDeviceResponse {
	resp := s.ExecuteRequest(http.MethodPost, "/api/v1/devices", services.DeviceInput{
		Name: name,
		Host: s.relay.URL,
	}, bearer(token))
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	var created controllers.CreateDeviceResponse
	s.ParseResponse(resp, &created)
	return created
}

func TestHealth(t *testing.T) {
	s := newAPISetup(t)

	resp := s.ExecuteRequest(http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.NotEmpty(t, resp.Header().Get("X-Request-ID"))
}

func TestAuth_RequiresToken(t *testing.T) {
	s := newAPISetup(t)

	resp := s.ExecuteRequest(http.MethodGet, "/api/v1/devices", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = s.ExecuteRequest(http.MethodGet, "/api/v1/devices", nil, bearer("not-a-token"))
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestIngestAndSeries(t *testing.T) {
	s := newAPISetup(t)
	owner := s.register(t, "owner")
	created := s.createDevice(t, owner.Token, "meter-1")
	deviceID := created.Device.ID

	ingest := func(key string, body interface{}) *httptest.ResponseRecorder {
		return s.ExecuteRequest(http.MethodPost, "/api/v1/samples", body, map[string]string{controllers.DeviceKeyHeader: key})
	}
	current, voltage := 2.0, 220.0

	resp := ingest(created.Key, controllers.IngestRequest{DeviceID: deviceID, Current: &current, Voltage: &voltage})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	var sample models.Sample
	s.ParseResponse(resp, &sample)
	assert.Equal(t, 440.0, sample.Power)

	resp = ingest("wrong-key", controllers.IngestRequest{DeviceID: deviceID, Current: &current, Voltage: &voltage})
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = ingest(created.Key, controllers.IngestRequest{DeviceID: deviceID, Current: &current})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = s.ExecuteRequest(http.MethodGet, fmt.Sprintf("/api/v1/series?frame=todayLive&deviceId=%d", deviceID), nil, bearer(owner.Token))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var series controllers.SeriesResponse
	s.ParseResponse(resp, &series)
	assert.Equal(t, timeframe.TodayLive, series.Frame)
	assert.Equal(t, int64(60000), series.BucketWidthMs)
	require.Len(t, series.Buckets, 1)
	assert.Equal(t, 1, series.Buckets[0].SampleCount)
	assert.Equal(t, 220.0, series.Buckets[0].Voltage)

	// operators must name a device
	resp = s.ExecuteRequest(http.MethodGet, "/api/v1/series?frame=todayLive", nil, bearer(owner.Token))
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	other := s.register(t, "other")
	resp = s.ExecuteRequest(http.MethodGet, fmt.Sprintf("/api/v1/series?frame=todayLive&deviceId=%d", deviceID), nil, bearer(other.Token))
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = s.ExecuteRequest(http.MethodGet, "/api/v1/series?frame=custom", nil, bearer(s.CreateTestAuthToken(99, models.RoleAdmin)))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestDeviceStatePolling(t *testing.T) {
	s := newAPISetup(t)
	owner := s.register(t, "owner")
	created := s.createDevice(t, owner.Token, "meter-1")
	path := fmt.Sprintf("/api/v1/devices/%d/state", created.Device.ID)

	running := true
	resp := s.ExecuteRequest(http.MethodPut, path, controllers.SetStateRequest{Running: &running}, bearer(owner.Token))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = s.ExecuteRequest(http.MethodGet, path, nil, map[string]string{controllers.DeviceKeyHeader: created.Key})
	require.Equal(t, http.StatusOK, resp.Code)
	var state map[string]interface{}
	s.ParseResponse(resp, &state)
	assert.Equal(t, float64(1), state["status"])
	assert.Equal(t, true, state["isRunning"])

	resp = s.ExecuteRequest(http.MethodGet, path, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestTimeFrames(t *testing.T) {
	s := newAPISetup(t)
	user := bearer(s.CreateTestAuthToken(1, models.RoleUser))
	admin := bearer(s.CreateTestAuthToken(2, models.RoleAdmin))

	resp := s.ExecuteRequest(http.MethodGet, "/api/v1/timeframes", nil, user)
	require.Equal(t, http.StatusOK, resp.Code)
	var windows map[string]timeframe.Window
	s.ParseResponse(resp, &windows)
	assert.Contains(t, windows, "today")
	assert.Contains(t, windows, "last30days")
	assert.NotContains(t, windows, "custom")

	resp = s.ExecuteRequest(http.MethodGet, "/api/v1/timeframes?frame=yesterday", nil, user)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = s.ExecuteRequest(http.MethodGet,
		"/api/v1/timeframes?startDate=2024-03-01T10:00:00Z&endDate=2024-03-02T10:00:00Z", nil, user)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	s.ParseResponse(resp, &windows)
	require.Contains(t, windows, "custom")
	assert.Equal(t, "2024-03-01T00:00:00Z", windows["custom"].StartDate.UTC().Format("2006-01-02T15:04:05Z07:00"))

	resp = s.ExecuteRequest(http.MethodPut, "/api/v1/admin/timeframes", controllers.SetFramesRequest{Frames: []string{"today"}}, user)
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = s.ExecuteRequest(http.MethodPut, "/api/v1/admin/timeframes", controllers.SetFramesRequest{Frames: []string{"yesterday"}}, admin)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = s.ExecuteRequest(http.MethodPut, "/api/v1/admin/timeframes", controllers.SetFramesRequest{Frames: []string{"today"}}, admin)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = s.ExecuteRequest(http.MethodGet, "/api/v1/timeframes", nil, user)
	require.Equal(t, http.StatusOK, resp.Code)
	windows = nil
	s.ParseResponse(resp, &windows)
	assert.Len(t, windows, 1)
	assert.Contains(t, windows, "today")
}

func TestJobs(t *testing.T) {
	s := newAPISetup(t)
	admin := bearer(s.CreateTestAuthToken(1, models.RoleAdmin))

	resp := s.ExecuteRequest(http.MethodGet, "/api/v1/admin/jobs", nil, bearer(s.CreateTestAuthToken(2, models.RoleUser)))
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = s.ExecuteRequest(http.MethodGet, "/api/v1/admin/jobs", nil, admin)
	require.Equal(t, http.StatusOK, resp.Code)
	var jobs []controllers.JobResponse
	s.ParseResponse(resp, &jobs)
	names := make([]string, 0, len(jobs))
	for _, job := range jobs {
		names = append(names, job.Name)
	}
	assert.Equal(t, []string{"retention", "rollup", "schedules"}, names)

	resp = s.ExecuteRequest(http.MethodPost, "/api/v1/admin/jobs/schedules/run", nil, admin)
	assert.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = s.ExecuteRequest(http.MethodPost, "/api/v1/admin/jobs/unknown/run", nil, admin)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}
