package schedclient

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Jumanaiqbal/schedclient/internal/stats"
)

// Record is a backend row whose fields are not fixed by the client.
type Record map[string]any

type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages,omitempty"`
}

// ListResponse is the envelope every listing endpoint answers with.
type ListResponse struct {
	Success    bool        `json:"success"`
	Message    string      `json:"message,omitempty"`
	Data       []Record    `json:"data"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

type UploadLineResult struct {
	Line    int    `json:"line"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Data    Record `json:"data,omitempty"`
}

type UploadResult struct {
	Success bool               `json:"success"`
	Message string             `json:"message,omitempty"`
	Results []UploadLineResult `json:"results"`
}

func (r *UploadResult) Counts() (succeeded, failed int) {
	for _, line := range r.Results {
		if line.Success {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed
}

type DashboardStats struct {
	DailyStats []stats.DailyStat `json:"dailyStats"`
}

func (s *DashboardStats) ByWeekday() []stats.WeekdayCount {
	return stats.ByWeekday(s.DailyStats)
}

// Reported returns the daily stats as the backend sent them, ordered by date.
func (s *DashboardStats) Reported() []stats.DailyStat {
	return stats.Sorted(s.DailyStats)
}

// Daily returns one entry per day of the window ending at end, zero-filled.
func (s *DashboardStats) Daily(days int, end time.Time) []stats.DailyStat {
	return stats.FillGaps(s.DailyStats, days, end)
}

type ReportFilters struct {
	Instructors []Record `json:"instructors"`
	Students    []Record `json:"students"`
	ClassTypes  []Record `json:"classTypes"`
}

// ReportQuery selects a page of the classes report.
// Zero Page or Limit leaves the choice to the backend.
type ReportQuery struct {
	Filters map[string]string
	Page    int
	Limit   int
}

type ConfigEntry struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

type ConfigUpdateResult struct {
	Key   string          `json:"key"`
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

// ConfigUpdateResults holds either the raw answer of the bulk endpoint or the per-key results.
type ConfigUpdateResults struct {
	Bulk    json.RawMessage      `json:"bulk,omitempty"`
	Results []ConfigUpdateResult `json:"results,omitempty"`
}

func (r *ConfigUpdateResults) Failed() []ConfigUpdateResult {
	var failed []ConfigUpdateResult
	for _, result := range r.Results {
		if !result.OK {
			failed = append(failed, result)
		}
	}
	return failed
}

// ConfigUpdateError is returned by UpdateConfigs when at least one key was not saved.
// Results covers every key, successful or not.
type ConfigUpdateError struct {
	Results []ConfigUpdateResult
}

func (e *ConfigUpdateError) Error() string {
	var keys []string
	for _, result := range e.Results {
		if !result.OK {
			keys = append(keys, result.Key)
		}
	}
	return fmt.Sprintf("one or more config updates failed: %s", strings.Join(keys, ", "))
}
