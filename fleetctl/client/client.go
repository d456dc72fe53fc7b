package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kavos113/quickfleet/fleet-manager/domain"
)

const DefaultServer = "http://localhost:8080"

// APIError is the decoded error body of a non-2xx response.
type APIError struct {
	Status  int    `json:"-"`
	Message string `json:"error"`
	Code    string `json:"code"`
	Reason  string `json:"reason,omitempty"`
	State   string `json:"state,omitempty"`
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s (%s)", e.Message, e.Code)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.State != "" {
		msg += " [state " + e.State + "]"
	}
	return msg
}

type Client struct {
	base string
	http *http.Client
}

func New(server string, timeout time.Duration) *Client {
	if server == "" {
		server = DefaultServer
	}
	return &Client{
		base: strings.TrimRight(server, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

type RefreshResult struct {
	domain.FleetView
	Started bool `json:"started"`
}

type ActionResult struct {
	InstanceID string `json:"instanceId"`
	Action     string `json:"action"`
	CommandID  string `json:"commandId,omitempty"`
}

func (c *Client) Fleet(ctx context.Context) (*domain.FleetView, error) {
	var view domain.FleetView
	if err := c.do(ctx, http.MethodGet, "/api/fleet", nil, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func (c *Client) Refresh(ctx context.Context) (*RefreshResult, error) {
	var out RefreshResult
	if err := c.do(ctx, http.MethodPost, "/api/fleet/refresh", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Instances(ctx context.Context) ([]domain.Instance, error) {
	var out struct {
		Instances []domain.Instance `json:"instances"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/instances", nil, &out); err != nil {
		return nil, err
	}
	return out.Instances, nil
}

func (c *Client) AddWatch(ctx context.Context, instanceID string) (*domain.WatchEntry, error) {
	var entry domain.WatchEntry
	body := map[string]string{"instanceId": instanceID}
	if err := c.do(ctx, http.MethodPost, "/api/watch", body, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (c *Client) RemoveWatch(ctx context.Context, instanceID string) error {
	return c.do(ctx, http.MethodDelete, "/api/watch/"+url.PathEscape(instanceID), nil, nil)
}

func (c *Client) SetScriptPath(ctx context.Context, instanceID, path string) (*domain.WatchEntry, error) {
	var entry domain.WatchEntry
	body := map[string]string{"path": path}
	if err := c.do(ctx, http.MethodPut, "/api/watch/"+url.PathEscape(instanceID)+"/script-path", body, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (c *Client) SetPower(ctx context.Context, instanceID, action string) (*ActionResult, error) {
	var out ActionResult
	body := map[string]string{"action": action}
	if err := c.do(ctx, http.MethodPost, "/api/instances/"+url.PathEscape(instanceID)+"/power", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SetScript(ctx context.Context, instanceID, action, scriptPath string) (*ActionResult, error) {
	var out ActionResult
	body := map[string]string{"action": action, "scriptPath": scriptPath}
	if err := c.do(ctx, http.MethodPost, "/api/instances/"+url.PathEscape(instanceID)+"/script", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		bs, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(bs)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach %s: %w", c.base, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		if apiErr.Code == "" {
			apiErr.Code = fmt.Sprintf("HTTP_%d", resp.StatusCode)
		}
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
