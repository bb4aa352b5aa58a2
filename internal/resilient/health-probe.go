package resilient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

const healthPath = "/health"

type healthStatus struct {
	reachable  bool
	statusCode int
}

func (s healthStatus) String() string {
	if s.reachable {
		return "reachable"
	}
	if s.statusCode != 0 {
		return fmt.Sprintf("unreachable (status %d)", s.statusCode)
	}
	return "unreachable"
}

type healthProber struct {
	client *http.Client
	url    string
	sfg    singleflight.Group
}

func newHealthProber(baseURL *url.URL, timeout time.Duration) *healthProber {
	return &healthProber{
		client: &http.Client{Timeout: timeout},
		url:    strings.TrimSuffix(baseURL.String(), "/") + healthPath,
	}
}

// probe never fails: any error is reported as an unreachable backend.
// Concurrent callers share one in-flight probe, which outlives the cancellation of whichever
// caller started it; the probe client timeout bounds it.
func (p *healthProber) probe(ctx context.Context) healthStatus {
	v, _, _ := p.sfg.Do(p.url, func() (interface{}, error) {
		return p.check(context.WithoutCancel(ctx)), nil
	})
	return v.(healthStatus)
}

func (p *healthProber) check(ctx context.Context) healthStatus {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return healthStatus{}
	}
	resp, err := p.client.Do(request)
	if err != nil {
		return healthStatus{}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		return healthStatus{reachable: true, statusCode: resp.StatusCode}
	}
	return healthStatus{statusCode: resp.StatusCode}
}
