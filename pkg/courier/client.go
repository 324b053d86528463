package courier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/monoco-io/fabric/pkg/metrics"
	"github.com/monoco-io/fabric/pkg/types"
)

// Client is the typed HTTP client for the courier API, used by the
// CLI and by agents claiming messages
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for a courier at addr (host:port)
func NewClient(addr string) *Client {
	if addr == "" {
		addr = DefaultAddr
	}
	return &Client{
		baseURL: "http://" + addr,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// MessageStatus is the API's view of one message
type MessageStatus struct {
	Success   bool             `json:"success"`
	MessageID string           `json:"message_id"`
	Status    string           `json:"status"`
	Lock      *types.LockEntry `json:"lock,omitempty"`
}

// ClaimResponse is the result of a claim call
type ClaimResponse struct {
	Success   bool             `json:"success"`
	MessageID string           `json:"message_id"`
	Lock      *types.LockEntry `json:"lock,omitempty"`
	ClaimedBy string           `json:"claimed_by,omitempty"`
	Error     string           `json:"error,omitempty"`
	Message   string           `json:"message,omitempty"`
}

// CompleteResponse is the result of a complete call
type CompleteResponse struct {
	Success      bool   `json:"success"`
	MessageID    string `json:"message_id"`
	ArchivedPath string `json:"archived_path,omitempty"`
}

// FailResponse is the result of a fail call
type FailResponse struct {
	Success        bool   `json:"success"`
	MessageID      string `json:"message_id"`
	Status         string `json:"status"`
	RetryCount     int    `json:"retry_count"`
	DeadletterPath string `json:"deadletter_path,omitempty"`
}

// apiError is the decoded error envelope
type apiError struct {
	Code    string
	Message string
	Status  int
}

func (e *apiError) Error() string {
	return fmt.Sprintf("courier API error %d (%s): %s", e.Status, e.Code, e.Message)
}

// do executes a request and decodes the response into out. Non-2xx
// responses become *apiError.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach courier: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var envelope struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		json.NewDecoder(resp.Body).Decode(&envelope)
		return &apiError{
			Code:    envelope.Error,
			Message: envelope.Message,
			Status:  resp.StatusCode,
		}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Health fetches the courier health report
func (c *Client) Health(ctx context.Context) (*metrics.HealthStatus, error) {
	var health metrics.HealthStatus
	if err := c.do(ctx, http.MethodGet, "/health", nil, &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// GetMessage fetches a message's lifecycle status
func (c *Client) GetMessage(ctx context.Context, id string) (*MessageStatus, error) {
	var status MessageStatus
	if err := c.do(ctx, http.MethodGet, APIPrefix+"/messages/"+id, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Claim leases a message. timeout <= 0 uses the server default.
func (c *Client) Claim(ctx context.Context, id, agentID string, timeout time.Duration) (*ClaimResponse, error) {
	body := claimRequest{AgentID: agentID}
	if timeout > 0 {
		body.Timeout = int(timeout / time.Second)
	}
	var resp ClaimResponse
	if err := c.do(ctx, http.MethodPost, APIPrefix+"/messages/"+id+"/claim", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Complete finishes a claimed message
func (c *Client) Complete(ctx context.Context, id, agentID string) (*CompleteResponse, error) {
	var resp CompleteResponse
	if err := c.do(ctx, http.MethodPost, APIPrefix+"/messages/"+id+"/complete", agentRequest{AgentID: agentID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Fail reports a processing failure
func (c *Client) Fail(ctx context.Context, id, agentID, reason string, retryable bool) (*FailResponse, error) {
	body := failRequest{AgentID: agentID, Reason: reason, Retryable: &retryable}
	var resp FailResponse
	if err := c.do(ctx, http.MethodPost, APIPrefix+"/messages/"+id+"/fail", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Register adds a project to the courier registry
func (c *Client) Register(ctx context.Context, slug, path string, config map[string]string) error {
	return c.do(ctx, http.MethodPost, APIPrefix+"/registry/register", registerRequest{
		Slug:   slug,
		Path:   path,
		Config: config,
	}, nil)
}

// ListProjects returns the registered projects
func (c *Client) ListProjects(ctx context.Context) ([]*Project, error) {
	var resp struct {
		Success  bool       `json:"success"`
		Projects []*Project `json:"projects"`
	}
	if err := c.do(ctx, http.MethodPost, APIPrefix+"/registry/list", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Projects, nil
}
