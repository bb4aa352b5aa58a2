package common

import (
	"context"
	"io"

	"github.com/Jumanaiqbal/schedclient"
)

// SchedulingApi is the typed surface of the scheduling backend, implemented by *schedclient.Client.
// Every call is retried on http-408|429|5xx and network errors.
// Failures are *schedclient.TransportError, except 401 and 403, which are returned unchanged.
type SchedulingApi interface {
	UploadCSV(ctx context.Context, name string, content io.Reader) (*schedclient.UploadResult, error)
	GetRegistrations(ctx context.Context, filters map[string]string) (*schedclient.ListResponse, error)
	GetDashboardStats(ctx context.Context, days int) (*schedclient.DashboardStats, error)
	GetDashboardSummary(ctx context.Context) (schedclient.Record, error)
	GetClassesReport(ctx context.Context, q schedclient.ReportQuery) (*schedclient.ListResponse, error)
	GetReportFilters(ctx context.Context) (*schedclient.ReportFilters, error)

	GetConfig(ctx context.Context) (schedclient.Record, error)
	GetUIConfig(ctx context.Context) (schedclient.Record, error)
	UpdateConfig(ctx context.Context, entry schedclient.ConfigEntry) ([]byte, error)
	// concurrent per-key writes, all results returned
	UpdateConfigs(ctx context.Context, entries []schedclient.ConfigEntry) (*schedclient.ConfigUpdateResults, error)
	// bulk endpoint with per-key fallback
	BulkUpdateConfig(ctx context.Context, entries []schedclient.ConfigEntry) (*schedclient.ConfigUpdateResults, error)

	GetStudents(ctx context.Context) (*schedclient.ListResponse, error)
	GetInstructors(ctx context.Context) (*schedclient.ListResponse, error)
	GetClassTypes(ctx context.Context) (*schedclient.ListResponse, error)
	AutoCreateStudents(ctx context.Context, studentIDs []string) (schedclient.Record, error)
}

var _ SchedulingApi = (*schedclient.Client)(nil)
