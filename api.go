package schedclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"

	"github.com/Jumanaiqbal/schedclient/internal/common"
	"github.com/Jumanaiqbal/schedclient/internal/upload"
)

const HeaderRequestID = "X-Request-ID"

const defaultStatsDays = 30

func (c *Client) send(ctx context.Context, resource string, r *common.Request) (*common.Response, error) {
	callID := uuid.NewString()
	if r.Header == nil {
		r.Header = make(http.Header)
	}
	r.Header.Set(HeaderRequestID, callID)
	c.logger.Debug().
		Str("call_id", callID).
		Str("resource", resource).
		Str("method", r.Method).
		Str("path", r.Path).
		Msg("api request")
	return c.api.SendResource(ctx, resource, r)
}

func (c *Client) get(ctx context.Context, resource, path string, query url.Values) (*common.Response, error) {
	return c.send(ctx, resource, &common.Request{Method: http.MethodGet, Path: path, Query: query})
}

func (c *Client) sendJSON(ctx context.Context, resource, method, path string, payload any) (*common.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", resource, err)
	}
	return c.send(ctx, resource, &common.Request{Method: method, Path: path, Body: body})
}

func decodeBody[T any](resp *common.Response) (*T, error) {
	out := new(T)
	if len(bytes.TrimSpace(resp.Body)) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}

// decodeData decodes the "data" member of the body when it is present and not null,
// else the whole body.
func decodeData[T any](resp *common.Response) (*T, error) {
	raw := unwrapData(resp.Body)
	out := new(T)
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}

func unwrapData(body []byte) json.RawMessage {
	body = bytes.TrimSpace(body)
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Data) > 0 && string(envelope.Data) != "null" {
		return envelope.Data
	}
	return body
}

func toQuery(filters map[string]string) url.Values {
	query := make(url.Values, len(filters))
	for k, v := range filters {
		query.Set(k, v)
	}
	return query
}

// UploadCSV sends a registrations CSV as the single multipart field "csvFile".
// The file is validated locally first; an invalid file never reaches the backend.
func (c *Client) UploadCSV(ctx context.Context, name string, content io.Reader) (*UploadResult, error) {
	data, err := io.ReadAll(io.LimitReader(content, upload.MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if err := upload.Validate(name, int64(len(data))); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(upload.FieldName, filepath.Base(name))
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	resp, err := c.send(ctx, "registrations.upload", &common.Request{
		Method: http.MethodPost,
		Path:   "/registrations/upload",
		Header: http.Header{"Content-Type": []string{w.FormDataContentType()}},
		Body:   buf.Bytes(),
	})
	if err != nil {
		return nil, err
	}
	return decodeBody[UploadResult](resp)
}

func (c *Client) GetRegistrations(ctx context.Context, filters map[string]string) (*ListResponse, error) {
	resp, err := c.get(ctx, "registrations.list", "/registrations", toQuery(filters))
	if err != nil {
		return nil, err
	}
	return decodeBody[ListResponse](resp)
}

// GetDashboardStats returns the daily class counts of the last days days; 30 when days is not positive.
func (c *Client) GetDashboardStats(ctx context.Context, days int) (*DashboardStats, error) {
	if days <= 0 {
		days = defaultStatsDays
	}
	resp, err := c.get(ctx, "dashboard.stats", "/dashboard/stats", url.Values{"days": []string{strconv.Itoa(days)}})
	if err != nil {
		return nil, err
	}
	return decodeData[DashboardStats](resp)
}

func (c *Client) GetDashboardSummary(ctx context.Context) (Record, error) {
	resp, err := c.get(ctx, "dashboard.summary", "/dashboard/summary", nil)
	if err != nil {
		return nil, err
	}
	summary, err := decodeData[Record](resp)
	if err != nil {
		return nil, err
	}
	return *summary, nil
}

func (c *Client) GetClassesReport(ctx context.Context, q ReportQuery) (*ListResponse, error) {
	query := toQuery(q.Filters)
	if q.Page > 0 {
		query.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		query.Set("limit", strconv.Itoa(q.Limit))
	}
	resp, err := c.get(ctx, "reports.classes", "/reports/classes", query)
	if err != nil {
		return nil, err
	}
	return decodeBody[ListResponse](resp)
}

func (c *Client) GetReportFilters(ctx context.Context) (*ReportFilters, error) {
	resp, err := c.get(ctx, "reports.filters", "/reports/filters", nil)
	if err != nil {
		return nil, err
	}
	return decodeData[ReportFilters](resp)
}

func (c *Client) GetStudents(ctx context.Context) (*ListResponse, error) {
	return c.list(ctx, "students.list", "/students")
}

func (c *Client) GetInstructors(ctx context.Context) (*ListResponse, error) {
	return c.list(ctx, "instructors.list", "/instructors")
}

func (c *Client) GetClassTypes(ctx context.Context) (*ListResponse, error) {
	return c.list(ctx, "classtypes.list", "/class-types")
}

func (c *Client) list(ctx context.Context, resource, path string) (*ListResponse, error) {
	resp, err := c.get(ctx, resource, path, nil)
	if err != nil {
		return nil, err
	}
	return decodeBody[ListResponse](resp)
}

// AutoCreateStudents asks the backend to create placeholder students for unknown IDs.
func (c *Client) AutoCreateStudents(ctx context.Context, studentIDs []string) (Record, error) {
	resp, err := c.sendJSON(ctx, "students.autocreate", http.MethodPost, "/students/auto-create",
		map[string]any{"studentIds": studentIDs})
	if err != nil {
		return nil, err
	}
	result, err := decodeBody[Record](resp)
	if err != nil {
		return nil, err
	}
	return *result, nil
}
