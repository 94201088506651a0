package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/oxygene76/fractaltree/pkg/colonization"
	"github.com/oxygene76/fractaltree/pkg/jobs"
	"github.com/oxygene76/fractaltree/pkg/utils"
)

// APIError is a non-2xx response from the growth service
type APIError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"error"`
	Codespace  string `json:"codespace"`
	Code       uint32 `json:"code"`
}

func (e *APIError) Error() string {
	if e.Codespace != "" {
		return fmt.Sprintf("%s (%s/%d, HTTP %d)", e.Message, e.Codespace, e.Code, e.StatusCode)
	}
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.StatusCode)
}

// IsNotFound reports whether the service did not know the job
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// StreamMessage is one websocket frame from /ws/jobs/{id}
type StreamMessage struct {
	Kind     string                 `json:"kind"`
	Snapshot *colonization.Snapshot `json:"snapshot,omitempty"`
	Job      *jobs.GrowthJob        `json:"job,omitempty"`
}

// GrowthClient talks to a running growth service
type GrowthClient struct {
	baseURL    string
	httpClient *http.Client
	dialer     *websocket.Dialer
}

// NewGrowthClient creates a client for the service at baseURL (http://host:port)
func NewGrowthClient(baseURL string) (*GrowthClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid service url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported service url scheme: %q", u.Scheme)
	}

	return &GrowthClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		dialer:     websocket.DefaultDialer,
	}, nil
}

// SubmitJob queues a growth job with cfg
func (c *GrowthClient) SubmitJob(ctx context.Context, cfg *utils.Config) (*jobs.GrowthJob, error) {
	body, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}

	var resp struct {
		Job *jobs.GrowthJob `json:"job"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/jobs", body, &resp); err != nil {
		return nil, err
	}
	if resp.Job == nil {
		return nil, fmt.Errorf("service returned no job")
	}
	log.Printf("Submitted growth job %s", resp.Job.ID)
	return resp.Job, nil
}

// GetJob fetches the current job state
func (c *GrowthClient) GetJob(ctx context.Context, id string) (*jobs.GrowthJob, error) {
	var job jobs.GrowthJob
	if err := c.do(ctx, http.MethodGet, "/api/v1/jobs/"+url.PathEscape(id), nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// ListJobs fetches all jobs known to the service
func (c *GrowthClient) ListJobs(ctx context.Context) ([]jobs.GrowthJob, error) {
	var resp struct {
		Jobs []jobs.GrowthJob `json:"jobs"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/jobs", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

// CancelJob requests cancellation of a job
func (c *GrowthClient) CancelJob(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/jobs/"+url.PathEscape(id)+"/cancel", nil, nil)
}

// WaitForJob polls until the job reaches a terminal status
func (c *GrowthClient) WaitForJob(ctx context.Context, id string, interval time.Duration) (*jobs.GrowthJob, error) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		job, err := c.GetJob(ctx, id)
		if err != nil {
			return nil, err
		}
		if job.Status.Finished() {
			return job, nil
		}

		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-ticker.C:
		}
	}
}

// StreamSnapshots calls fn for every snapshot of the job until the service
// closes the stream, fn returns an error or ctx is done. It returns the final
// job state when the service sends one.
func (c *GrowthClient) StreamSnapshots(ctx context.Context, id string, fn func(*colonization.Snapshot) error) (*jobs.GrowthJob, error) {
	wsURL := "ws" + strings.TrimPrefix(c.baseURL, "http") + "/ws/jobs/" + url.PathEscape(id)

	conn, _, err := c.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	var final *jobs.GrowthJob
	for {
		var msg StreamMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return final, ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return final, nil
			}
			return final, fmt.Errorf("stream read failed: %w", err)
		}

		switch msg.Kind {
		case "snapshot":
			if msg.Snapshot != nil {
				if err := fn(msg.Snapshot); err != nil {
					return final, err
				}
			}
		case "end":
			final = msg.Job
		}
	}
}

func (c *GrowthClient) do(ctx context.Context, method, path string, body []byte, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if json.Unmarshal(data, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
