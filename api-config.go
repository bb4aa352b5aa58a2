package schedclient

import (
	"context"
	"errors"
	"net/http"

	"golang.org/x/sync/errgroup"
)

const maxParallelConfigWrites = 8

func (c *Client) GetConfig(ctx context.Context) (Record, error) {
	return c.getConfig(ctx, "config.get", "/config")
}

func (c *Client) GetUIConfig(ctx context.Context) (Record, error) {
	return c.getConfig(ctx, "config.ui", "/config/ui")
}

func (c *Client) getConfig(ctx context.Context, resource, path string) (Record, error) {
	resp, err := c.get(ctx, resource, path, nil)
	if err != nil {
		return nil, err
	}
	cfg, err := decodeData[Record](resp)
	if err != nil {
		return nil, err
	}
	return *cfg, nil
}

// UpdateConfig saves a single key and returns what the backend stored, unwrapped from "data".
func (c *Client) UpdateConfig(ctx context.Context, entry ConfigEntry) ([]byte, error) {
	resp, err := c.sendJSON(ctx, "config.update", http.MethodPut, "/config", entry)
	if err != nil {
		return nil, err
	}
	return unwrapData(resp.Body), nil
}

// UpdateConfigs saves every entry concurrently.
// Results always cover every entry in order; a *ConfigUpdateError is returned alongside them
// when any entry failed.
func (c *Client) UpdateConfigs(ctx context.Context, entries []ConfigEntry) (*ConfigUpdateResults, error) {
	results := make([]ConfigUpdateResult, len(entries))

	var g errgroup.Group
	g.SetLimit(maxParallelConfigWrites)
	for i, entry := range entries {
		g.Go(func() error {
			results[i] = c.updateEntry(ctx, entry)
			return nil
		})
	}
	_ = g.Wait()

	out := &ConfigUpdateResults{Results: results}
	if len(out.Failed()) > 0 {
		return out, &ConfigUpdateError{Results: results}
	}
	return out, nil
}

// BulkUpdateConfig prefers the bulk endpoint. When it fails with a *TransportError the entries
// are saved one by one instead; every entry is attempted and each outcome is recorded, so the
// fallback only returns an error when ctx is done.
// 401 and 403 responses and context errors from the bulk call are returned as is.
func (c *Client) BulkUpdateConfig(ctx context.Context, entries []ConfigEntry) (*ConfigUpdateResults, error) {
	resp, err := c.sendJSON(ctx, "config.bulk", http.MethodPut, "/config/bulk",
		map[string]any{"configs": entries})
	if err == nil {
		return &ConfigUpdateResults{Bulk: resp.Body}, nil
	}
	if !IsTransportError(err) {
		return nil, err
	}
	c.logger.Warn().Err(err).Int("entries", len(entries)).Msg("bulk config update failed, saving keys one by one")

	results := make([]ConfigUpdateResult, 0, len(entries))
	for _, entry := range entries {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return &ConfigUpdateResults{Results: results}, ctxErr
		}
		if entry.Key == "" {
			results = append(results, ConfigUpdateResult{Error: "missing key"})
			continue
		}
		results = append(results, c.updateEntry(ctx, entry))
	}
	return &ConfigUpdateResults{Results: results}, nil
}

func (c *Client) updateEntry(ctx context.Context, entry ConfigEntry) ConfigUpdateResult {
	data, err := c.UpdateConfig(ctx, entry)
	if err != nil {
		return ConfigUpdateResult{Key: entry.Key, Error: errorText(err)}
	}
	return ConfigUpdateResult{Key: entry.Key, OK: true, Data: data}
}

// errorText prefers the body the backend answered with over the error message.
func errorText(err error) string {
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.Response != nil && len(statusErr.Response.Body) > 0 {
		return string(statusErr.Response.Body)
	}
	return err.Error()
}
