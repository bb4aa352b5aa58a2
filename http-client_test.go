package schedclient_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"

	"github.com/Jumanaiqbal/schedclient"
	"github.com/Jumanaiqbal/schedclient/internal/auth"
	"github.com/Jumanaiqbal/schedclient/internal/resilient"
	"github.com/Jumanaiqbal/schedclient/internal/upload"
)

type recorder struct {
	mu         sync.Mutex
	calls      map[string]int
	requestIDs []string
}

func (r *recorder) record(req *http.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.calls == nil {
		r.calls = make(map[string]int)
	}
	r.calls[req.Method+" "+req.URL.Path]++
	r.requestIDs = append(r.requestIDs, req.Header.Get(schedclient.HeaderRequestID))
}

func (r *recorder) count(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[key]
}

func (r *recorder) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		n += c
	}
	return n
}

func getApiServer(handler http.HandlerFunc) (*httptest.Server, *recorder) {
	rec := &recorder{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		handler(w, r)
	})), rec
}

func writeJSON(w http.ResponseWriter, statusCode int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = io.WriteString(w, body)
}

func createClient(t *testing.T, serverURL string, opts ...func(*schedclient.Config)) *schedclient.Client {
	t.Helper()
	cfg := schedclient.DefaultConfig()
	cfg.BaseURL = serverURL + "/api"
	cfg.Retry.BaseDelay = time.Millisecond
	for _, o := range opts {
		o(cfg)
	}
	client, err := schedclient.Create(cfg,
		schedclient.WithTokenStore(auth.NewMemoryStore(map[string]string{auth.TokenKey: "secret"})))
	assert.NilError(t, err)
	return client
}

func TestGetRegistrationsOk(t *testing.T) {
	s, rec := getApiServer(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, r.URL.Query().Get("status"), "pending")
		assert.Equal(t, r.Header.Get("Authorization"), "Bearer secret")
		writeJSON(w, http.StatusOK, `{"success":true,"data":[{"id":1,"studentName":"Ada"}],"pagination":{"page":1,"limit":10,"total":1}}`)
	})
	defer s.Close()
	client := createClient(t, s.URL)

	resp, err := client.GetRegistrations(context.Background(), map[string]string{"status": "pending"})
	assert.NilError(t, err)
	assert.Equal(t, 1, rec.count("GET /api/registrations"), "expected 1 call")
	assert.Assert(t, resp.Success)
	assert.Equal(t, len(resp.Data), 1)
	assert.Equal(t, resp.Data[0]["studentName"], "Ada")
	assert.Equal(t, resp.Pagination.Total, 1)
	assert.Assert(t, rec.requestIDs[0] != "")
}

func TestRequestIDStableAcrossRetries(t *testing.T) {
	attempts := 0
	s, rec := getApiServer(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		if attempts < 3 {
			writeJSON(w, http.StatusServiceUnavailable, `{}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"success":true,"data":[]}`)
	})
	defer s.Close()
	client := createClient(t, s.URL)

	_, err := client.GetStudents(context.Background())
	assert.NilError(t, err)
	assert.Equal(t, 3, rec.total(), "expected 3 calls")
	assert.Equal(t, rec.requestIDs[0], rec.requestIDs[1])
	assert.Equal(t, rec.requestIDs[1], rec.requestIDs[2])

	_, err = client.GetStudents(context.Background())
	assert.NilError(t, err)
	assert.Assert(t, rec.requestIDs[3] != rec.requestIDs[0], "expected a new id per logical call")
}

func TestRetriesExhaustedReturnsTransportError(t *testing.T) {
	s, rec := getApiServer(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusServiceUnavailable, `{"error":"database unavailable"}`)
	})
	defer s.Close()
	client := createClient(t, s.URL)

	_, err := client.GetInstructors(context.Background())
	transportErr, ok := schedclient.AsTransportError(err)
	assert.Assert(t, ok)
	assert.Equal(t, transportErr.Error(), "database unavailable")
	assert.Equal(t, transportErr.StatusCode(), http.StatusServiceUnavailable)
	assert.Equal(t, transportErr.Request.Retries, 2)
	assert.Equal(t, transportErr.Request.Path, "/instructors")
	assert.Equal(t, 3, rec.total(), "expected 3 calls")
}

func TestRetryOverride(t *testing.T) {
	s, rec := getApiServer(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusBadGateway, `{}`)
	})
	defer s.Close()
	cfg := schedclient.DefaultConfig()
	cfg.BaseURL = s.URL + "/api"
	client, err := schedclient.Create(cfg,
		schedclient.WithTokenStore(auth.NewMemoryStore(nil)),
		schedclient.WithRetry(4, time.Millisecond))
	assert.NilError(t, err)

	_, err = client.GetClassTypes(context.Background())
	assert.Assert(t, schedclient.IsTransportError(err))
	assert.Equal(t, 5, rec.total(), "expected 5 calls")
}

func TestUnauthorizedPassesThrough(t *testing.T) {
	s, rec := getApiServer(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusUnauthorized, `{"error":"token expired"}`)
	})
	defer s.Close()
	client := createClient(t, s.URL)

	_, err := client.GetConfig(context.Background())
	assert.Assert(t, schedclient.IsUnauthorized(err))
	assert.Assert(t, !schedclient.IsTransportError(err))
	var statusErr *schedclient.StatusError
	assert.Assert(t, errors.As(err, &statusErr))
	assert.Equal(t, statusErr.StatusCode(), http.StatusUnauthorized)
	assert.Equal(t, 1, rec.total(), "expected 1 call")
}

func TestForbiddenPassesThrough(t *testing.T) {
	s, rec := getApiServer(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusForbidden, `{"error":"admins only"}`)
	})
	defer s.Close()
	client := createClient(t, s.URL)

	_, err := client.GetConfig(context.Background())
	assert.Assert(t, schedclient.IsForbidden(err))
	assert.Assert(t, !schedclient.IsPortConflict(err))
	assert.Equal(t, 1, rec.total(), "expected 1 call")
}

func TestPortConflict(t *testing.T) {
	s, rec := getApiServer(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Server", "AirTunes/860.7.1")
		w.WriteHeader(http.StatusForbidden)
	})
	defer s.Close()
	client := createClient(t, s.URL)
	u, _ := url.Parse(s.URL)

	_, err := client.GetDashboardSummary(context.Background())
	assert.Assert(t, schedclient.IsPortConflict(err))
	assert.Assert(t, !schedclient.IsForbidden(err))
	assert.Assert(t, is.Contains(err.Error(), "port "+u.Port()))
	assert.Assert(t, is.Contains(err.Error(), "AirTunes"))
	assert.Equal(t, 1, rec.total(), "expected 1 call")
}

func TestPortConflictDetectionDisabled(t *testing.T) {
	s, _ := getApiServer(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Server", "AirTunes/860.7.1")
		w.WriteHeader(http.StatusForbidden)
	})
	defer s.Close()
	client := createClient(t, s.URL, func(c *schedclient.Config) { c.ConflictDetection = false })

	_, err := client.GetDashboardSummary(context.Background())
	assert.Assert(t, schedclient.IsForbidden(err))
	assert.Assert(t, !schedclient.IsPortConflict(err))
}

func TestNotFound(t *testing.T) {
	s, rec := getApiServer(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, `{"error":"no such route"}`)
	})
	defer s.Close()
	client := createClient(t, s.URL)

	_, err := client.GetReportFilters(context.Background())
	assert.Assert(t, schedclient.IsNotFound(err))
	assert.Assert(t, schedclient.IsTransportError(err))
	assert.Equal(t, err.Error(), resilient.MessageNotFound)
	assert.Equal(t, 1, rec.total(), "expected 1 call")
}

func TestBackendDown(t *testing.T) {
	s, _ := getApiServer(func(w http.ResponseWriter, _ *http.Request) {})
	serverURL := s.URL
	s.Close()
	client := createClient(t, serverURL)

	_, err := client.GetStudents(context.Background())
	transportErr, ok := schedclient.AsTransportError(err)
	assert.Assert(t, ok)
	assert.Equal(t, transportErr.Error(), resilient.MessageBackendDown)
	assert.Equal(t, transportErr.Request.Retries, 2)
	assert.Assert(t, !schedclient.IsTimeout(err))
}

func TestContextCancelError(t *testing.T) {
	s, rec := getApiServer(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, `{}`)
	})
	defer s.Close()
	client := createClient(t, s.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.GetStudents(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Assert(t, !schedclient.IsTransportError(err))
	assert.Equal(t, 0, rec.total(), "expected 0 call")
}

func TestCircuitBreaker(t *testing.T) {
	s, rec := getApiServer(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusInternalServerError, `{}`)
	})
	defer s.Close()
	cfg := schedclient.DefaultConfig()
	cfg.BaseURL = s.URL + "/api"
	client, err := schedclient.Create(cfg,
		schedclient.WithTokenStore(auth.NewMemoryStore(nil)),
		schedclient.WithRetry(0, time.Millisecond),
		schedclient.WithCircuitBreaker(1, 2, time.Second, time.Second))
	assert.NilError(t, err)

	for i := 0; i < 3; i++ {
		_, err := client.GetStudents(context.Background())
		assert.Assert(t, schedclient.IsTransportError(err))
		assert.Equal(t, schedclient.IsCircuitOpen(err), i > 1)
	}
	assert.Equal(t, 2, rec.total(), "expected only 2 requests to reach server")
}

func TestRetryWithCircuitBreaker(t *testing.T) {
	s, rec := getApiServer(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusInternalServerError, `{}`)
	})
	defer s.Close()
	cfg := schedclient.DefaultConfig()
	cfg.BaseURL = s.URL + "/api"
	client, err := schedclient.Create(cfg,
		schedclient.WithTokenStore(auth.NewMemoryStore(nil)),
		schedclient.WithRetry(2, time.Millisecond),
		schedclient.WithCircuitBreaker(1, 2, time.Second, time.Second))
	assert.NilError(t, err)

	_, err = client.GetStudents(context.Background())
	assert.Assert(t, schedclient.IsCircuitOpen(err))
	assert.Equal(t, 2, rec.total(), "expected the open breaker to stop the retries")
}

func TestRequestTimeoutIsFixed(t *testing.T) {
	s, rec := getApiServer(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(100 * time.Millisecond)
		writeJSON(w, http.StatusOK, `{"success":true,"data":[]}`)
	})
	defer s.Close()
	client := createClient(t, s.URL)

	_, err := client.GetStudents(context.Background())
	assert.NilError(t, err)
	assert.Equal(t, 1, rec.total(), "expected 1 call")
	assert.Equal(t, 60*time.Second, schedclient.DefaultTimeout)
}

func TestCreateRejectsInvalidConfig(t *testing.T) {
	cfg := schedclient.DefaultConfig()
	cfg.BaseURL = "not a url"
	_, err := schedclient.Create(cfg)
	assert.ErrorContains(t, err, "invalid configuration")
}

func TestGetDashboardStatsDefaultsTo30Days(t *testing.T) {
	s, _ := getApiServer(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, r.URL.Query().Get("days"), "30")
		writeJSON(w, http.StatusOK, `{"success":true,"data":{"dailyStats":[{"date":"2024-03-04","count":2},{"date":"2024-03-11","count":3},{"date":"2024-03-10","count":1}]}}`)
	})
	defer s.Close()
	client := createClient(t, s.URL)

	dashboard, err := client.GetDashboardStats(context.Background(), 0)
	assert.NilError(t, err)
	assert.Equal(t, len(dashboard.DailyStats), 3)
	weekdays := dashboard.ByWeekday()
	assert.Equal(t, len(weekdays), 7)
	assert.Equal(t, weekdays[0].Count, 5)
	assert.Equal(t, weekdays[6].Count, 1)
}

func TestGetConfigUnwrapsData(t *testing.T) {
	s, _ := getApiServer(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/config/ui" {
			writeJSON(w, http.StatusOK, `{"theme":"light"}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"success":true,"data":{"theme":"dark"}}`)
	})
	defer s.Close()
	client := createClient(t, s.URL)

	cfg, err := client.GetConfig(context.Background())
	assert.NilError(t, err)
	assert.Equal(t, cfg["theme"], "dark")

	ui, err := client.GetUIConfig(context.Background())
	assert.NilError(t, err)
	assert.Equal(t, ui["theme"], "light")
}

func TestGetClassesReportQuery(t *testing.T) {
	s, _ := getApiServer(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, q.Get("instructorId"), "7")
		assert.Equal(t, q.Get("page"), "2")
		assert.Equal(t, q.Get("limit"), "25")
		writeJSON(w, http.StatusOK, `{"success":true,"data":[],"pagination":{"page":2,"limit":25,"total":30}}`)
	})
	defer s.Close()
	client := createClient(t, s.URL)

	resp, err := client.GetClassesReport(context.Background(), schedclient.ReportQuery{
		Filters: map[string]string{"instructorId": "7"},
		Page:    2,
		Limit:   25,
	})
	assert.NilError(t, err)
	assert.Equal(t, resp.Pagination.Page, 2)
}

func TestUploadCSV(t *testing.T) {
	s, rec := getApiServer(func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile(upload.FieldName)
		assert.NilError(t, err)
		defer file.Close()
		content, _ := io.ReadAll(file)
		assert.Equal(t, header.Filename, "registrations.csv")
		assert.Equal(t, string(content), "studentId,classId\n1,2\n")
		writeJSON(w, http.StatusOK, `{"success":true,"results":[{"line":2,"success":true},{"line":3,"success":false,"error":"unknown class"}]}`)
	})
	defer s.Close()
	client := createClient(t, s.URL)

	result, err := client.UploadCSV(context.Background(), "/tmp/registrations.csv", strings.NewReader("studentId,classId\n1,2\n"))
	assert.NilError(t, err)
	succeeded, failed := result.Counts()
	assert.Equal(t, succeeded, 1)
	assert.Equal(t, failed, 1)
	assert.Equal(t, 1, rec.count("POST /api/registrations/upload"), "expected 1 call")
}

func TestUploadCSVRejectsInvalidFile(t *testing.T) {
	s, rec := getApiServer(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, `{}`)
	})
	defer s.Close()
	client := createClient(t, s.URL)

	_, err := client.UploadCSV(context.Background(), "registrations.xlsx", strings.NewReader("x"))
	assert.ErrorIs(t, err, upload.ErrNotCSV)

	_, err = client.UploadCSV(context.Background(), "big.csv", strings.NewReader(strings.Repeat("a", upload.MaxFileSize+1)))
	assert.ErrorIs(t, err, upload.ErrFileTooBig)
	assert.Equal(t, 0, rec.total(), "expected 0 call")
}

func TestAutoCreateStudents(t *testing.T) {
	s, _ := getApiServer(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			StudentIDs []string `json:"studentIds"`
		}
		assert.NilError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.DeepEqual(t, body.StudentIDs, []string{"1001", "1002"})
		writeJSON(w, http.StatusOK, `{"success":true,"created":2}`)
	})
	defer s.Close()
	client := createClient(t, s.URL)

	result, err := client.AutoCreateStudents(context.Background(), []string{"1001", "1002"})
	assert.NilError(t, err)
	assert.Equal(t, result["created"], float64(2))
}

func configServer(bulkStatus int) (*httptest.Server, *recorder) {
	return getApiServer(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/config/bulk" {
			writeJSON(w, bulkStatus, `{"success":true,"updated":2}`)
			return
		}
		var entry schedclient.ConfigEntry
		_ = json.NewDecoder(r.Body).Decode(&entry)
		if entry.Key == "bad" {
			writeJSON(w, http.StatusBadRequest, `{"error":"invalid value"}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"success":true,"data":{"key":"`+entry.Key+`"}}`)
	})
}

func TestUpdateConfig(t *testing.T) {
	s, _ := configServer(http.StatusOK)
	defer s.Close()
	client := createClient(t, s.URL)

	data, err := client.UpdateConfig(context.Background(), schedclient.ConfigEntry{Key: "theme", Value: "dark"})
	assert.NilError(t, err)
	assert.Equal(t, string(data), `{"key":"theme"}`)
}

func TestUpdateConfigsReportsEveryKey(t *testing.T) {
	s, rec := configServer(http.StatusOK)
	defer s.Close()
	client := createClient(t, s.URL)

	results, err := client.UpdateConfigs(context.Background(), []schedclient.ConfigEntry{
		{Key: "theme", Value: "dark"},
		{Key: "bad", Value: 1},
		{Key: "maxClasses", Value: 4},
	})
	var updateErr *schedclient.ConfigUpdateError
	assert.Assert(t, errors.As(err, &updateErr))
	assert.ErrorContains(t, err, "bad")
	assert.Equal(t, len(results.Results), 3)
	assert.Equal(t, results.Results[0].Key, "theme")
	assert.Assert(t, results.Results[0].OK)
	assert.Assert(t, !results.Results[1].OK)
	assert.Assert(t, is.Contains(results.Results[1].Error, "invalid value"))
	assert.Assert(t, results.Results[2].OK)
	assert.Equal(t, len(results.Failed()), 1)
	assert.Equal(t, 3, rec.count("PUT /api/config"), "expected 3 calls")
}

func TestUpdateConfigsAllOk(t *testing.T) {
	s, _ := configServer(http.StatusOK)
	defer s.Close()
	client := createClient(t, s.URL)

	results, err := client.UpdateConfigs(context.Background(), []schedclient.ConfigEntry{{Key: "theme", Value: "dark"}})
	assert.NilError(t, err)
	assert.Equal(t, len(results.Failed()), 0)
}

func TestBulkUpdateConfig(t *testing.T) {
	s, rec := configServer(http.StatusOK)
	defer s.Close()
	client := createClient(t, s.URL)

	results, err := client.BulkUpdateConfig(context.Background(), []schedclient.ConfigEntry{{Key: "a", Value: 1}, {Key: "b", Value: 2}})
	assert.NilError(t, err)
	assert.Equal(t, string(results.Bulk), `{"success":true,"updated":2}`)
	assert.Equal(t, 0, rec.count("PUT /api/config"), "expected no per-key calls")
}

func TestBulkUpdateConfigFallsBackPerKey(t *testing.T) {
	s, rec := configServer(http.StatusNotFound)
	defer s.Close()
	client := createClient(t, s.URL)

	results, err := client.BulkUpdateConfig(context.Background(), []schedclient.ConfigEntry{
		{Key: "theme", Value: "dark"},
		{Value: "orphan"},
		{Key: "bad", Value: 1},
		{Key: "maxClasses", Value: 4},
	})
	assert.NilError(t, err)
	assert.Equal(t, len(results.Results), 4)
	assert.Assert(t, results.Results[0].OK)
	assert.Equal(t, results.Results[1].Error, "missing key")
	assert.Assert(t, !results.Results[2].OK)
	assert.Assert(t, results.Results[3].OK)
	assert.Equal(t, 3, rec.count("PUT /api/config"), "expected the keyless entry to be skipped")
}

func TestBulkUpdateConfigUnauthorizedDoesNotFallBack(t *testing.T) {
	s, rec := configServer(http.StatusUnauthorized)
	defer s.Close()
	client := createClient(t, s.URL)

	_, err := client.BulkUpdateConfig(context.Background(), []schedclient.ConfigEntry{{Key: "a", Value: 1}})
	assert.Assert(t, schedclient.IsUnauthorized(err))
	assert.Equal(t, 0, rec.count("PUT /api/config"), "expected no per-key calls")
}
